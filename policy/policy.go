package policy

import "errors"

var (
	// ErrRateLimited indicates the caller exceeded the request rate.
	ErrRateLimited = errors.New("rate limited")
	// ErrBudgetExceeded indicates the per-request budget has been exhausted.
	ErrBudgetExceeded = errors.New("budget exceeded")
	// ErrInvalidBudget indicates the provided budget is invalid.
	ErrInvalidBudget = errors.New("invalid budget")
)
