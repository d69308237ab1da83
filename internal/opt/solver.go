// Package opt contains the CLRP solvers: the greedy constructor and the
// simulated-annealing optimizer, behind a common Solver contract.
package opt

import (
	"context"
	"errors"
	"time"

	"clrpd/internal/clrp"
)

// ErrConstruction signals that no feasible initial solution exists under the
// current facility costs. No partial solution is returned alongside it.
var ErrConstruction = errors.New("construction failed")

// StopReason reports why a solver run ended. These are informational, not
// errors: a run that hits its iteration or time bound still returns its best
// feasible solution.
type StopReason string

const (
	StopConstructed    StopReason = "constructed"
	StopTempFloor      StopReason = "temperature_floor"
	StopIterationLimit StopReason = "iteration_limit"
	StopTimeBudget     StopReason = "time_budget"
	StopStagnation     StopReason = "stagnation"
	StopCanceled       StopReason = "canceled"
)

// Result is the uniform outcome type all solvers report through, so runs are
// interchangeable and comparable.
type Result struct {
	Solution      *clrp.Solution
	Cost          float64
	Iterations    int
	Accepted      int
	AcceptedWorse int
	Infeasible    int
	Duration      time.Duration
	Reason        StopReason
	Seed          int64
}

// Solver produces a feasible solution for an instance.
type Solver interface {
	Name() string
	Solve(ctx context.Context, inst *clrp.Instance) (Result, error)
}

// Refiner improves an externally supplied feasible solution. The refiner
// takes ownership of initial; callers must not touch it afterwards.
type Refiner interface {
	Refine(ctx context.Context, initial *clrp.Solution) (Result, error)
}

// ProgressEvent is a structured snapshot of the optimizer state, emitted to
// the injected sink at a configured sampling interval.
type ProgressEvent struct {
	Iteration   int     `json:"iteration"`
	Temperature float64 `json:"temperature"`
	CurrentCost float64 `json:"currentCost"`
	BestCost    float64 `json:"bestCost"`
	Accepted    bool    `json:"accepted"`
}

// ProgressSink receives progress events. The core has no opinion on the sink
// implementation; nil sinks are allowed and skipped.
type ProgressSink interface {
	Progress(ProgressEvent)
}

// ProgressFunc adapts a function to the ProgressSink interface.
type ProgressFunc func(ProgressEvent)

func (f ProgressFunc) Progress(ev ProgressEvent) { f(ev) }
