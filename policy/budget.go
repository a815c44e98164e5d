package policy

import (
	"context"
	"errors"
	"time"
)

// BudgetRecorder receives budget exhaustion events.
type BudgetRecorder interface {
	IncBudgetHit()
}

// BudgetArbiter bounds one call to a wall-clock budget and records whether
// the budget ran out.
type BudgetArbiter struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// NewBudgetArbiter derives a deadline-bound context from parent. A zero
// budget only adds cancellation; a negative one is rejected.
func NewBudgetArbiter(parent context.Context, budgetMS int, recorder BudgetRecorder) (*BudgetArbiter, error) {
	if budgetMS < 0 {
		return nil, ErrInvalidBudget
	}
	if parent == nil {
		parent = context.Background()
	}

	if budgetMS == 0 {
		ctx, cancel := context.WithCancel(parent)
		return &BudgetArbiter{ctx: ctx, cancel: cancel}, nil
	}

	ctx, cancel := context.WithTimeout(parent, time.Duration(budgetMS)*time.Millisecond)
	a := &BudgetArbiter{ctx: ctx, cancel: cancel}
	if recorder != nil {
		context.AfterFunc(ctx, func() {
			if a.Hit() {
				recorder.IncBudgetHit()
			}
		})
	}
	return a, nil
}

// Context returns the budget-bound context.
func (a *BudgetArbiter) Context() context.Context {
	return a.ctx
}

// Cancel releases the context. It is safe to call more than once.
func (a *BudgetArbiter) Cancel() {
	a.cancel()
}

// Hit reports whether the budget deadline was reached.
func (a *BudgetArbiter) Hit() bool {
	if a == nil {
		return false
	}
	return errors.Is(a.ctx.Err(), context.DeadlineExceeded)
}

// Err returns ErrBudgetExceeded once the budget is spent.
func (a *BudgetArbiter) Err() error {
	if a.Hit() {
		return ErrBudgetExceeded
	}
	return nil
}
