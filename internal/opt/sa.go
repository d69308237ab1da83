package opt

import (
	"context"
	"math"
	"math/rand"
	"time"

	"clrpd/internal/clrp"
)

// Annealer is the simulated-annealing optimizer. It explores the neighborhood
// by random moves under the Metropolis criterion, cools geometrically between
// fixed-size batches, and intensifies the incumbent best with a deterministic
// local search at every cooling step.
//
// A fixed non-zero Seed makes the whole run reproducible.
type Annealer struct {
	Cfg  Config
	Seed int64
	Sink ProgressSink
}

func (a *Annealer) Name() string { return "sa" }

// Solve constructs a greedy starting solution and refines it.
func (a *Annealer) Solve(ctx context.Context, inst *clrp.Instance) (Result, error) {
	initial, err := Construct(inst)
	if err != nil {
		return Result{}, err
	}
	return a.Refine(ctx, initial)
}

// Refine anneals from the supplied feasible solution. It always returns the
// best solution seen, never the final state of the walk.
func (a *Annealer) Refine(ctx context.Context, initial *clrp.Solution) (Result, error) {
	if err := a.Cfg.Validate(); err != nil {
		return Result{}, err
	}
	seed := a.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	inst := initial.Instance()
	ev := clrp.NewEvaluator(inst)
	cfg := a.Cfg

	weights := cfg.MoveWeights
	if len(weights) == 0 {
		weights = make([]float64, numMoves)
		for i := range weights {
			weights[i] = 1
		}
	}

	batch := cfg.IterationsPerNode * inst.NumNodes()
	if batch <= 0 {
		batch = cfg.MaxIterations
	}
	var deadline time.Time
	if cfg.TimeBudget > 0 {
		deadline = time.Now().Add(cfg.TimeBudget)
	}

	start := time.Now()
	curr := initial
	best := initial.Clone()
	res := Result{Seed: seed, Reason: StopTempFloor}
	temp := cfg.InitialTemp
	stale := 0

cooling:
	for temp > cfg.FinalTemp {
		batchBest := best.Cost
		for i := 0; i < batch; i++ {
			select {
			case <-ctx.Done():
				res.Reason = StopCanceled
				break cooling
			default:
			}
			if !deadline.IsZero() && time.Now().After(deadline) {
				res.Reason = StopTimeBudget
				break cooling
			}
			if cfg.MaxIterations > 0 && res.Iterations >= cfg.MaxIterations {
				res.Reason = StopIterationLimit
				break cooling
			}
			res.Iterations++

			cand := curr.Clone()
			accepted := false
			if applyMove(selectMove(weights, rng), cand, ev, rng) {
				delta := cand.Cost - curr.Cost
				if delta <= 0 || rng.Float64() < math.Exp(-delta/(cfg.K*temp)) {
					accepted = true
					res.Accepted++
					if delta > 0 {
						res.AcceptedWorse++
					}
					curr = cand
					if curr.Cost < best.Cost-eps {
						best = curr.Clone()
					}
				}
			} else {
				res.Infeasible++
			}
			if a.Sink != nil && cfg.ProgressEvery > 0 && res.Iterations%cfg.ProgressEvery == 0 {
				a.Sink.Progress(ProgressEvent{
					Iteration:   res.Iterations,
					Temperature: temp,
					CurrentCost: curr.Cost,
					BestCost:    best.Cost,
					Accepted:    accepted,
				})
			}
		}

		temp *= cfg.Cooling

		polished := best.Clone()
		localSearch(polished, ev)
		if polished.Cost < best.Cost-eps {
			best = polished
			curr = polished.Clone()
		}

		if best.Cost < batchBest-eps {
			stale = 0
		} else {
			stale++
			if cfg.Stagnation > 0 && stale >= cfg.Stagnation {
				res.Reason = StopStagnation
				break
			}
		}
	}

	res.Solution = best
	res.Cost = best.Cost
	res.Duration = time.Since(start)
	return res, nil
}
