package health

import (
	"context"
	"time"
)

// FuncChecker adapts a check function to a Checker. A nil error is healthy.
type FuncChecker struct {
	fn func(ctx context.Context) error
}

// NewFuncChecker wraps fn
func NewFuncChecker(fn func(ctx context.Context) error) *FuncChecker {
	return &FuncChecker{fn: fn}
}

// Check runs the function
func (f *FuncChecker) Check(ctx context.Context) Result {
	start := time.Now()
	if err := f.fn(ctx); err != nil {
		return Result{
			Healthy:   false,
			Message:   err.Error(),
			CheckedAt: start,
			Duration:  time.Since(start),
		}
	}
	return Result{
		Healthy:   true,
		Message:   "ok",
		CheckedAt: start,
		Duration:  time.Since(start),
	}
}

// Type returns the health check type
func (f *FuncChecker) Type() CheckType {
	return CheckTypeFunc
}
