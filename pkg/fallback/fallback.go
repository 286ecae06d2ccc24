// Package fallback evaluates an ordered list of data-source attempts and keeps
// the first one that produces rows.
package fallback

import (
	"context"

	"go.uber.org/zap"
)

type Attempt[T any] struct {
	Name string
	Run  func(ctx context.Context) ([]T, error)
}

type Result[T any] struct {
	Items  []T
	Source string
	Errors []error
}

// Observer is notified once per evaluated attempt with outcome "hit", "empty"
// or "error".
type Observer func(chain, attempt, outcome string)

type Chain[T any] struct {
	name     string
	attempts []Attempt[T]
	logger   *zap.Logger
	observe  Observer
}

func New[T any](name string, logger *zap.Logger, observe Observer) *Chain[T] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Chain[T]{name: name, logger: logger, observe: observe}
}

func (c *Chain[T]) Add(name string, run func(ctx context.Context) ([]T, error)) *Chain[T] {
	c.attempts = append(c.attempts, Attempt[T]{Name: name, Run: run})
	return c
}

// AddIf appends the attempt only when cond holds, which keeps optional
// sources (unconfigured vendors) out of the chain.
func (c *Chain[T]) AddIf(cond bool, name string, run func(ctx context.Context) ([]T, error)) *Chain[T] {
	if cond {
		c.Add(name, run)
	}
	return c
}

// Run never fails: attempt errors are collected and the next attempt is
// tried. A cancelled context stops the chain with whatever was gathered.
func (c *Chain[T]) Run(ctx context.Context) Result[T] {
	var res Result[T]
	for _, a := range c.attempts {
		if ctx.Err() != nil {
			res.Errors = append(res.Errors, ctx.Err())
			return res
		}

		items, err := a.Run(ctx)
		switch {
		case err != nil:
			c.logger.Warn("Fallback attempt failed",
				zap.String("chain", c.name),
				zap.String("attempt", a.Name),
				zap.Error(err),
			)
			res.Errors = append(res.Errors, err)
			c.notify(a.Name, "error")
		case len(items) == 0:
			c.logger.Debug("Fallback attempt empty",
				zap.String("chain", c.name),
				zap.String("attempt", a.Name),
			)
			c.notify(a.Name, "empty")
		default:
			c.notify(a.Name, "hit")
			res.Items = items
			res.Source = a.Name
			return res
		}
	}
	return res
}

func (c *Chain[T]) notify(attempt, outcome string) {
	if c.observe != nil {
		c.observe(c.name, attempt, outcome)
	}
}
