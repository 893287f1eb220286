// Package metrics defines observability hooks for embed resolution.
package metrics

import "time"

// Outcome labels a resolved link.
type Outcome string

const (
	OutcomeReplaced  Outcome = "replaced"
	OutcomeUnchanged Outcome = "unchanged"
	OutcomeFailed    Outcome = "failed"
)

// Recorder receives per-link outcomes and per-document timings. Implementations
// must be safe for concurrent use; the rewriter calls them from many goroutines.
type Recorder interface {
	IncOutcome(provider string, outcome Outcome)
	IncFetchError(status int)
	ObserveRewriteDuration(d time.Duration)
}

// NoopRecorder is a Recorder that does nothing (default when metrics are not configured).
type NoopRecorder struct{}

func (NoopRecorder) IncOutcome(string, Outcome)           {}
func (NoopRecorder) IncFetchError(int)                    {}
func (NoopRecorder) ObserveRewriteDuration(time.Duration) {}
