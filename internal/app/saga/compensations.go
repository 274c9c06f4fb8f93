package saga

import (
	"context"
	"log/slog"
)

type step struct {
	name string
	fn   func(ctx context.Context) error
}

// Compensations collects undo actions as a saga makes forward progress.
// On failure Run executes them in reverse order; a compensation that fails
// is logged for the reconciliation sweep to pick up, never retried inline.
type Compensations struct {
	Logger *slog.Logger
	steps  []step
}

func (c *Compensations) Add(name string, fn func(ctx context.Context) error) {
	c.steps = append(c.steps, step{name: name, fn: fn})
}

func (c *Compensations) Run(ctx context.Context) {
	for i := len(c.steps) - 1; i >= 0; i-- {
		s := c.steps[i]
		if err := s.fn(ctx); err != nil && c.Logger != nil {
			c.Logger.Error("saga compensation failed", "step", s.name, "error", err)
		}
	}
}
