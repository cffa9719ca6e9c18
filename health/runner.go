package health

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultTimeout bounds a whole Run.
const DefaultTimeout = 10 * time.Second

// Config configures a Runner.
type Config struct {
	// Timeout bounds a whole Run. Checks still running at the deadline are
	// reported Unhealthy with ErrCheckTimeout.
	// Default: DefaultTimeout
	Timeout time.Duration
}

// NamedResult is a Result tagged with its checker's name.
type NamedResult struct {
	Name string
	Result
}

// Report is the outcome of a Run.
type Report struct {
	// Status is the worst status among Checks.
	Status Status
	// Checks are in registration order.
	Checks []NamedResult
}

// Runner runs a set of checkers.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - Registering a name twice replaces the earlier checker in place.
type Runner struct {
	config   Config
	mu       sync.RWMutex
	checkers []Checker
}

// NewRunner creates a Runner.
func NewRunner(config Config) *Runner {
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	return &Runner{config: config}
}

// Register adds c.
func (r *Runner) Register(c Checker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, existing := range r.checkers {
		if existing.Name() == c.Name() {
			r.checkers[i] = c
			return
		}
	}
	r.checkers = append(r.checkers, c)
}

// Names returns the registered checker names in registration order.
func (r *Runner) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, len(r.checkers))
	for i, c := range r.checkers {
		names[i] = c.Name()
	}
	return names
}

// Run runs every checker concurrently and waits for all of them or the
// timeout, whichever comes first.
func (r *Runner) Run(ctx context.Context) Report {
	r.mu.RLock()
	checkers := append([]Checker(nil), r.checkers...)
	r.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()

	results := make([]NamedResult, len(checkers))
	var g errgroup.Group
	for i, c := range checkers {
		g.Go(func() error {
			results[i] = NamedResult{Name: c.Name(), Result: runCheck(ctx, c)}
			return nil
		})
	}
	_ = g.Wait()

	statuses := make([]Status, len(results))
	for i, res := range results {
		statuses[i] = res.Status
	}
	return Report{Status: Overall(statuses...), Checks: results}
}

// Overall returns the worst of statuses, or StatusHealthy for none.
func Overall(statuses ...Status) Status {
	worst := StatusHealthy
	for _, s := range statuses {
		if s > worst {
			worst = s
		}
	}
	return worst
}

func runCheck(ctx context.Context, c Checker) Result {
	start := time.Now()
	done := make(chan Result, 1)
	go func() {
		defer func() {
			if v := recover(); v != nil {
				done <- Unhealthy("check panicked", fmt.Errorf("%w: %v", ErrCheckPanicked, v))
			}
		}()
		done <- c.Check(ctx)
	}()

	var res Result
	select {
	case res = <-done:
	case <-ctx.Done():
		res = Unhealthy("check timed out", ErrCheckTimeout)
	}
	res.Duration = time.Since(start)
	return res
}
