package policy

import (
	"context"
	"fmt"
	"time"
)

// Recorder receives policy events. *obs.Metrics satisfies it.
type Recorder interface {
	BudgetRecorder
	IncRateLimited()
}

// GuardConfig configures a Guard.
type GuardConfig struct {
	Rate RateLimitConfig
	// DefaultBudgetMS applies to calls that pass a zero budget. Zero means
	// unbounded.
	DefaultBudgetMS int
	Clock           func() time.Time
}

// Guard applies rate limiting and a per-call budget around a unit of work.
type Guard struct {
	rate          *TokenBucket
	defaultBudget int
	recorder      Recorder
	now           func() time.Time
}

// NewGuard constructs a Guard. recorder may be nil.
func NewGuard(cfg GuardConfig, recorder Recorder) (*Guard, error) {
	if cfg.DefaultBudgetMS < 0 {
		return nil, ErrInvalidBudget
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Guard{
		rate:          NewTokenBucket(cfg.Rate, cfg.Clock()),
		defaultBudget: cfg.DefaultBudgetMS,
		recorder:      recorder,
		now:           cfg.Clock,
	}, nil
}

// DefaultBudgetMS returns the budget applied when callers pass none.
func (g *Guard) DefaultBudgetMS() int {
	return g.defaultBudget
}

// Execute runs fn under the rate limiter and a budget of budgetMS
// milliseconds (0 selects the default). When the budget runs out before fn
// returns successfully the error wraps ErrBudgetExceeded.
func (g *Guard) Execute(parent context.Context, budgetMS int, fn func(context.Context) error) error {
	if budgetMS == 0 {
		budgetMS = g.defaultBudget
	}

	if !g.rate.Allow(g.now()) {
		if g.recorder != nil {
			g.recorder.IncRateLimited()
		}
		return ErrRateLimited
	}

	var recorder BudgetRecorder
	if g.recorder != nil {
		recorder = g.recorder
	}
	arbiter, err := NewBudgetArbiter(parent, budgetMS, recorder)
	if err != nil {
		return err
	}
	defer arbiter.Cancel()

	err = fn(arbiter.Context())
	if err == nil {
		return nil
	}
	if budgetErr := arbiter.Err(); budgetErr != nil {
		return fmt.Errorf("%w: %w", budgetErr, err)
	}
	return err
}
