// internal/dispatch/observer.go
package dispatch

import (
	"context"
	"time"
)

// Outcome is the final state of one unit.
type Outcome struct {
	Stage    string
	Family   string
	Input    string
	Artifact string
	ExitCode int
	Failure  *ToolFailure
	Started  time.Time
	Finished time.Time

	// Pending marks a successful unit whose artifact is assigned by
	// directory reconciliation once the whole stage has run.
	Pending bool
}

// OK reports whether the unit produced its artifact.
func (o Outcome) OK() bool { return o.Failure == nil }

// Observer is notified as units start and finish. Calls arrive from worker
// goroutines concurrently; implementations must be safe for that.
type Observer interface {
	UnitStarted(ctx context.Context, stage, family string)
	UnitFinished(ctx context.Context, o Outcome)
}

// Observers fans notifications out to each element in order.
type Observers []Observer

func (obs Observers) UnitStarted(ctx context.Context, stage, family string) {
	for _, o := range obs {
		o.UnitStarted(ctx, stage, family)
	}
}

func (obs Observers) UnitFinished(ctx context.Context, oc Outcome) {
	for _, o := range obs {
		o.UnitFinished(ctx, oc)
	}
}
