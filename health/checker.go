package health

import (
	"context"
	"time"
)

// Status is the outcome class of a check.
type Status int

const (
	// StatusHealthy means the component works.
	StatusHealthy Status = iota
	// StatusDegraded means the component works but some callers will not be
	// served silently.
	StatusDegraded
	// StatusUnhealthy means the component does not work.
	StatusUnhealthy
)

func (s Status) String() string {
	switch s {
	case StatusHealthy:
		return "healthy"
	case StatusDegraded:
		return "degraded"
	case StatusUnhealthy:
		return "unhealthy"
	default:
		return "unknown"
	}
}

// Result is the outcome of one check.
type Result struct {
	Status  Status
	Message string

	// Details carries check-specific facts, such as entity counts.
	Details map[string]any

	// Duration is set by the Runner.
	Duration time.Duration

	// Err is the failure behind an Unhealthy result.
	Err error
}

// Healthy returns a healthy result.
func Healthy(message string) Result {
	return Result{Status: StatusHealthy, Message: message}
}

// Degraded returns a degraded result.
func Degraded(message string) Result {
	return Result{Status: StatusDegraded, Message: message}
}

// Unhealthy returns an unhealthy result caused by err.
func Unhealthy(message string, err error) Result {
	return Result{Status: StatusUnhealthy, Message: message, Err: err}
}

// WithDetails returns r with details attached.
func (r Result) WithDetails(details map[string]any) Result {
	r.Details = details
	return r
}

// Checker inspects one component.
//
// Contract:
// - Check must honor ctx cancellation; the Runner stops waiting at its
//   deadline either way.
// - Name must be stable; the Runner uses it as the check's identity.
type Checker interface {
	Name() string
	Check(ctx context.Context) Result
}

// CheckFunc adapts a function to Checker.
type CheckFunc struct {
	name string
	fn   func(context.Context) Result
}

// NewCheckFunc returns a Checker named name that calls fn.
func NewCheckFunc(name string, fn func(context.Context) Result) *CheckFunc {
	return &CheckFunc{name: name, fn: fn}
}

func (f *CheckFunc) Name() string { return f.name }

func (f *CheckFunc) Check(ctx context.Context) Result { return f.fn(ctx) }
