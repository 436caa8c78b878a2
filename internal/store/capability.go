package store

import (
	"context"
	"log/slog"
	"sync"
)

// SchemaProber checks the store metadata for a column's existence.
type SchemaProber interface {
	HasColumn(ctx context.Context, table, column string) (bool, error)
}

type capState int32

const (
	capUnknown capState = iota
	capSupported
	capUnsupported
)

// Capability memoizes whether the queue schema (status-tracked broadcasts
// and targets) is present. The answer is probed lazily once per process and
// can be demoted back to unsupported when an undefined-column error surfaces
// mid-run, so later calls fall back to the legacy path.
type Capability struct {
	Prober SchemaProber

	mu    sync.Mutex
	state capState
}

func NewCapability(p SchemaProber) *Capability {
	return &Capability{Prober: p}
}

func (c *Capability) QueueSupported(ctx context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != capUnknown {
		return c.state == capSupported
	}

	supported, err := c.probe(ctx)
	if err != nil {
		c.state = capUnsupported
		slog.Warn("queue schema probe failed, falling back to legacy mode", "err", err)
		return false
	}
	if supported {
		c.state = capSupported
	} else {
		c.state = capUnsupported
		slog.Warn("queue schema incomplete, falling back to legacy mode")
	}
	return supported
}

func (c *Capability) probe(ctx context.Context) (bool, error) {
	hasBroadcastStatus, err := c.Prober.HasColumn(ctx, "chat_broadcasts", "status")
	if err != nil {
		return false, err
	}
	hasTargetStatus, err := c.Prober.HasColumn(ctx, "chat_broadcast_targets", "status")
	if err != nil {
		return false, err
	}
	return hasBroadcastStatus && hasTargetStatus, nil
}

// Demote flips the cached answer to unsupported. Called when a query fails
// on a column the probe claimed to exist (schema drift).
func (c *Capability) Demote() {
	c.mu.Lock()
	c.state = capUnsupported
	c.mu.Unlock()
}
