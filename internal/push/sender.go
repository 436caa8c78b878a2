package push

import (
	"context"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/AlvinAlvito/posi-mobile/internal/observability"
)

type Gateway interface {
	Send(ctx context.Context, tokens []string, n Notification) (Result, int, error)
}

// Sender wraps the gateway with a rate limiter and circuit breaker. Push is
// best-effort throughout the pipeline: every failure is logged and swallowed
// so delivery records and HTTP responses are never affected.
type Sender struct {
	Gateway Gateway
	Limiter *rate.Limiter
	Breaker *gobreaker.CircuitBreaker
}

func (s *Sender) Send(ctx context.Context, tokens []string, n Notification) Result {
	if s == nil || s.Gateway == nil || len(tokens) == 0 {
		observability.PushSend.WithLabelValues("skipped").Inc()
		return Result{Skipped: true}
	}

	if s.Limiter != nil {
		waitCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := s.Limiter.Wait(waitCtx)
		cancel()
		if err != nil {
			observability.PushSend.WithLabelValues("rate_limited_local").Inc()
			return Result{Skipped: true}
		}
	}

	start := time.Now()
	resAny, err := s.execute(ctx, tokens, n)
	if err != nil {
		observability.PushSend.WithLabelValues("error").Inc()
		slog.Warn("push send failed", "err", err, "tokens", len(tokens))
		return Result{Failure: len(tokens)}
	}

	observability.PushSend.WithLabelValues("ok").Inc()
	observability.PushLatency.Observe(time.Since(start).Seconds())
	return resAny.(Result)
}

func (s *Sender) execute(ctx context.Context, tokens []string, n Notification) (any, error) {
	call := func() (any, error) {
		reqCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
		defer cancel()
		res, _, err := s.Gateway.Send(reqCtx, tokens, n)
		if err != nil {
			return nil, err
		}
		return res, nil
	}
	if s.Breaker == nil {
		return call()
	}
	return s.Breaker.Execute(call)
}
