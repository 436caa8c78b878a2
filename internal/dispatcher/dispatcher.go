package dispatcher

import (
	"context"
	"log/slog"
	"strconv"
	"sync/atomic"

	"github.com/AlvinAlvito/posi-mobile/internal/domain"
	"github.com/AlvinAlvito/posi-mobile/internal/observability"
	"github.com/AlvinAlvito/posi-mobile/internal/push"
	"github.com/AlvinAlvito/posi-mobile/internal/realtime"
	"github.com/AlvinAlvito/posi-mobile/internal/store"
	"github.com/AlvinAlvito/posi-mobile/internal/util"
)

const DefaultBatchSize = 100

type Store interface {
	OldestSendingBroadcast(ctx context.Context) (store.BroadcastJob, bool, error)
	PendingTargets(ctx context.Context, broadcastID int64, limit int) ([]store.PendingTarget, error)
	DeviceTokens(ctx context.Context, userIDs []int64) (map[int64][]string, error)
	DeliverTarget(ctx context.Context, in store.TargetDelivery) (store.DeliveryResult, error)
	MarkTargetFailed(ctx context.Context, targetID int64, errText string) error
	TargetCounts(ctx context.Context, broadcastID int64) (store.TargetCounts, error)
	UpdateBroadcastStatus(ctx context.Context, broadcastID int64, status string, markSent bool) error
}

type Capability interface {
	QueueSupported(ctx context.Context) bool
	Demote()
}

// Dispatcher drains pending broadcast targets in the background. One logical
// worker per process: Start is an idempotent fire-and-forget signal guarded
// by a compare-and-set, so signaling while a loop is active is a no-op.
// Cross-process mutual exclusion is not provided.
type Dispatcher struct {
	Store      Store
	Capability Capability
	Publisher  realtime.Publisher
	Push       *push.Sender
	BatchSize  int

	// SchemaErr classifies store errors caused by missing queue columns
	// (schema drift); such errors demote the capability flag instead of
	// being treated as fatal.
	SchemaErr func(error) bool

	running atomic.Bool
}

// Start launches the worker loop on a new goroutine unless one is already
// active. The caller never blocks on processing.
func (d *Dispatcher) Start(ctx context.Context) {
	if !d.running.CompareAndSwap(false, true) {
		return
	}
	go d.run(ctx)
}

// Running reports whether the worker loop is active.
func (d *Dispatcher) Running() bool { return d.running.Load() }

func (d *Dispatcher) run(ctx context.Context) {
	defer d.running.Store(false)

	if !d.Capability.QueueSupported(ctx) {
		return
	}

	for {
		if ctx.Err() != nil {
			return
		}
		job, found, err := d.Store.OldestSendingBroadcast(ctx)
		if err != nil {
			d.handleLoopError(err)
			return
		}
		if !found {
			return
		}
		if err := d.processBatch(ctx, job); err != nil {
			d.handleLoopError(err)
			return
		}
	}
}

func (d *Dispatcher) handleLoopError(err error) {
	if d.SchemaErr != nil && d.SchemaErr(err) {
		d.Capability.Demote()
		slog.Warn("queue schema not available, dispatcher stopped", "err", err)
		return
	}
	slog.Error("dispatcher fatal", "err", err)
}

// processBatch handles one bounded batch of the job's pending targets, then
// finalizes. Targets are processed sequentially in id order so progress is
// deterministic and resumable; a target's failure never aborts its siblings.
func (d *Dispatcher) processBatch(ctx context.Context, job store.BroadcastJob) error {
	batchSize := d.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	targets, err := d.Store.PendingTargets(ctx, job.ID, batchSize)
	if err != nil {
		return err
	}
	if len(targets) == 0 {
		return d.finalize(ctx, job.ID)
	}

	tokens, err := d.Store.DeviceTokens(ctx, distinctUserIDs(targets))
	if err != nil {
		return err
	}

	topic := domain.ResolveTopic("", job.Title, job.DataJSON)
	for _, target := range targets {
		res, err := d.Store.DeliverTarget(ctx, store.TargetDelivery{
			TargetID:      target.ID,
			UserID:        target.UserID,
			AdminID:       job.AdminID,
			CompetitionID: job.CompetitionID,
			Topic:         topic,
			Title:         job.Title,
			Body:          job.Body,
		})
		if err != nil {
			observability.TargetsProcessed.WithLabelValues("failed").Inc()
			if markErr := d.Store.MarkTargetFailed(ctx, target.ID, util.Truncate(err.Error(), 1000)); markErr != nil {
				return markErr
			}
			continue
		}
		observability.TargetsProcessed.WithLabelValues("sent").Inc()
		d.notify(ctx, job, target.UserID, res, tokens[target.UserID])
	}

	return d.finalize(ctx, job.ID)
}

// notify runs after the target's transaction committed; both channels are
// best-effort and never influence the delivery record.
func (d *Dispatcher) notify(ctx context.Context, job store.BroadcastJob, userID int64, res store.DeliveryResult, tokens []string) {
	event := realtime.MessageEvent{
		ID:         res.MessageID,
		TicketID:   res.TicketID,
		SenderType: domain.SenderAdmin,
		Text:       job.Body,
		CreatedAt:  util.NowUTC(),
	}
	for _, room := range []string{realtime.TicketRoom(res.TicketID), realtime.UserRoom(userID)} {
		if err := d.Publisher.Publish(ctx, room, realtime.EventMessageNew, event); err != nil {
			observability.RealtimePublish.WithLabelValues("error").Inc()
			slog.Warn("realtime publish failed", "err", err, "room", room)
		} else {
			observability.RealtimePublish.WithLabelValues("ok").Inc()
		}
	}

	if len(tokens) > 0 {
		d.Push.Send(ctx, tokens, push.Notification{
			Title: job.Title,
			Body:  util.Truncate(job.Body, 120),
			Data: map[string]string{
				"type":          "broadcast",
				"competitionId": strconv.FormatInt(job.CompetitionID, 10),
				"ticketId":      strconv.FormatInt(res.TicketID, 10),
			},
		})
	}
}

// finalize applies the terminal-status rule: failed wins over sent, and any
// remaining pending targets keep the broadcast in sending.
func (d *Dispatcher) finalize(ctx context.Context, broadcastID int64) error {
	counts, err := d.Store.TargetCounts(ctx, broadcastID)
	if err != nil {
		return err
	}

	switch {
	case counts.Pending > 0:
		return d.Store.UpdateBroadcastStatus(ctx, broadcastID, string(domain.BroadcastSending), false)
	case counts.Failed > 0:
		observability.BroadcastsFinalized.WithLabelValues("failed").Inc()
		return d.Store.UpdateBroadcastStatus(ctx, broadcastID, string(domain.BroadcastFailed), false)
	default:
		observability.BroadcastsFinalized.WithLabelValues("sent").Inc()
		return d.Store.UpdateBroadcastStatus(ctx, broadcastID, string(domain.BroadcastSent), true)
	}
}

func distinctUserIDs(targets []store.PendingTarget) []int64 {
	seen := make(map[int64]struct{}, len(targets))
	out := make([]int64, 0, len(targets))
	for _, t := range targets {
		if t.UserID <= 0 {
			continue
		}
		if _, ok := seen[t.UserID]; ok {
			continue
		}
		seen[t.UserID] = struct{}{}
		out = append(out, t.UserID)
	}
	return out
}
