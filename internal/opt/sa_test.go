package opt

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"clrpd/internal/clrp"
)

func testSAConfig() Config {
	cfg := DefaultConfig()
	cfg.Cooling = 0.9
	cfg.IterationsPerNode = 20
	cfg.Stagnation = 10
	cfg.ProgressEvery = 0
	return cfg
}

func TestAnnealerNeverWorseThanGreedy(t *testing.T) {
	for _, inst := range []*clrp.Instance{testInstance(t), testInstance2E(t)} {
		initial, err := Construct(inst)
		if err != nil {
			t.Fatalf("%s: Construct: %v", inst.Name, err)
		}
		greedyCost := initial.Cost
		a := &Annealer{Cfg: testSAConfig(), Seed: 42}
		res, err := a.Refine(context.Background(), initial)
		if err != nil {
			t.Fatalf("%s: Refine: %v", inst.Name, err)
		}
		if res.Cost > greedyCost {
			t.Fatalf("%s: annealed cost %v worse than greedy %v", inst.Name, res.Cost, greedyCost)
		}
		if err := res.Solution.Validate(); err != nil {
			t.Fatalf("%s: best solution infeasible: %v", inst.Name, err)
		}
		ev := clrp.NewEvaluator(inst)
		if got := ev.Cost(res.Solution); !almostEqual(got, res.Cost) {
			t.Fatalf("%s: cached cost %v != scratch cost %v", inst.Name, res.Cost, got)
		}
	}
}

func almostEqual(a, b float64) bool {
	d := a - b
	return d < 1e-6 && d > -1e-6
}

func TestAnnealerDeterministic(t *testing.T) {
	inst := testInstance(t)
	run := func() Result {
		a := &Annealer{Cfg: testSAConfig(), Seed: 7}
		res, err := a.Solve(context.Background(), inst)
		if err != nil {
			t.Fatalf("Solve: %v", err)
		}
		return res
	}
	r1, r2 := run(), run()
	if r1.Cost != r2.Cost || r1.Iterations != r2.Iterations || r1.Accepted != r2.Accepted {
		t.Fatalf("same seed diverged: (%v,%d,%d) vs (%v,%d,%d)",
			r1.Cost, r1.Iterations, r1.Accepted, r2.Cost, r2.Iterations, r2.Accepted)
	}
}

func TestAnnealerBestMonotonic(t *testing.T) {
	inst := testInstance(t)
	cfg := testSAConfig()
	cfg.ProgressEvery = 10
	last := -1.0
	sink := ProgressFunc(func(ev ProgressEvent) {
		if last >= 0 && ev.BestCost > last+1e-9 {
			t.Errorf("best cost rose from %v to %v at iteration %d", last, ev.BestCost, ev.Iteration)
		}
		last = ev.BestCost
	})
	a := &Annealer{Cfg: cfg, Seed: 3, Sink: sink}
	if _, err := a.Solve(context.Background(), inst); err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if last < 0 {
		t.Fatalf("no progress events emitted")
	}
}

func TestAnnealerStopsOnIterationLimit(t *testing.T) {
	inst := testInstance(t)
	cfg := testSAConfig()
	cfg.MaxIterations = 50
	cfg.Stagnation = 0
	a := &Annealer{Cfg: cfg, Seed: 1}
	res, err := a.Solve(context.Background(), inst)
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if res.Reason != StopIterationLimit {
		t.Fatalf("reason = %q, want %q", res.Reason, StopIterationLimit)
	}
	if res.Iterations != 50 {
		t.Fatalf("iterations = %d, want 50", res.Iterations)
	}
}

func TestAnnealerStopsOnCancel(t *testing.T) {
	inst := testInstance(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	a := &Annealer{Cfg: testSAConfig(), Seed: 1}
	res, err := a.Solve(ctx, inst)
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if res.Reason != StopCanceled {
		t.Fatalf("reason = %q, want %q", res.Reason, StopCanceled)
	}
	// a canceled run still reports its best feasible solution
	if res.Solution == nil || res.Solution.Validate() != nil {
		t.Fatalf("canceled run lost the incumbent solution")
	}
}

func TestAnnealerStopsOnTimeBudget(t *testing.T) {
	inst := testInstance(t)
	cfg := testSAConfig()
	cfg.Stagnation = 0
	cfg.TimeBudget = time.Nanosecond
	a := &Annealer{Cfg: cfg, Seed: 1}
	res, err := a.Solve(context.Background(), inst)
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if res.Reason != StopTimeBudget {
		t.Fatalf("reason = %q, want %q", res.Reason, StopTimeBudget)
	}
}

func TestAnnealerDegenerateInstanceTerminates(t *testing.T) {
	inst, err := clrp.NewInstance("single",
		[]clrp.Facility{{ID: "D1", X: 0, Y: 0, OpeningCost: 1, Capacity: 10}},
		nil,
		[]clrp.Customer{{ID: "C1", X: 1, Y: 0, Demand: 5}},
		testFleet())
	if err != nil {
		t.Fatalf("NewInstance: %v", err)
	}
	a := &Annealer{Cfg: testSAConfig(), Seed: 9}
	res, err := a.Solve(context.Background(), inst)
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if res.Reason != StopTempFloor && res.Reason != StopStagnation {
		t.Fatalf("reason = %q, want temperature floor or stagnation", res.Reason)
	}
	if err := res.Solution.Validate(); err != nil {
		t.Fatalf("solution infeasible: %v", err)
	}
}

func TestAnnealerRejectsBadConfig(t *testing.T) {
	inst := testInstance(t)
	cfg := testSAConfig()
	cfg.Cooling = 1.5
	a := &Annealer{Cfg: cfg, Seed: 1}
	if _, err := a.Solve(context.Background(), inst); err == nil {
		t.Fatalf("expected config validation error")
	}
}

// Every move applied through the optimizer's dispatch must leave the cached
// cost and the load bookkeeping consistent with a from-scratch evaluation.
func TestMovesKeepSolutionConsistent(t *testing.T) {
	for _, inst := range []*clrp.Instance{testInstance(t), testInstance2E(t)} {
		s, err := Construct(inst)
		if err != nil {
			t.Fatalf("%s: Construct: %v", inst.Name, err)
		}
		ev := clrp.NewEvaluator(inst)
		rng := rand.New(rand.NewSource(11))
		applied := 0
		for i := 0; i < 2000; i++ {
			cand := s.Clone()
			kind := selectMove([]float64{1, 1, 1, 1, 1}, rng)
			if !applyMove(kind, cand, ev, rng) {
				continue
			}
			applied++
			if err := cand.Validate(); err != nil {
				t.Fatalf("%s: %s left an infeasible solution after %d applies: %v",
					inst.Name, moveNames[kind], applied, err)
			}
			if got := ev.Cost(cand); !almostEqual(got, cand.Cost) {
				t.Fatalf("%s: %s cached cost %v != scratch %v", inst.Name, moveNames[kind], cand.Cost, got)
			}
			s = cand
		}
		if applied == 0 {
			t.Fatalf("%s: no move ever applied", inst.Name)
		}
	}
}

// Fractional demands drift the incrementally maintained load caches a few
// ulps away from an exact re-sum; applied moves must still validate.
func TestMovesKeepFractionalLoadsFeasible(t *testing.T) {
	inst, err := clrp.NewInstance("fractional",
		[]clrp.Facility{
			{ID: "D1", X: 0, Y: 0, OpeningCost: 100, Capacity: 10},
			{ID: "D2", X: 10, Y: 0, OpeningCost: 80, Capacity: 15},
		},
		nil,
		[]clrp.Customer{
			{ID: "C1", X: 1, Y: 1, Demand: 0.1},
			{ID: "C2", X: 2, Y: 3, Demand: 0.3},
			{ID: "C3", X: 9, Y: 1, Demand: 0.7},
			{ID: "C4", X: 8, Y: 3, Demand: 0.9},
			{ID: "C5", X: 5, Y: 2, Demand: 1.1},
		},
		testFleet())
	if err != nil {
		t.Fatalf("NewInstance: %v", err)
	}
	s, err := Construct(inst)
	if err != nil {
		t.Fatalf("Construct: %v", err)
	}
	ev := clrp.NewEvaluator(inst)
	rng := rand.New(rand.NewSource(17))
	applied := 0
	for i := 0; i < 3000; i++ {
		cand := s.Clone()
		kind := selectMove([]float64{1, 1, 1, 1, 1}, rng)
		if !applyMove(kind, cand, ev, rng) {
			continue
		}
		applied++
		if err := cand.Validate(); err != nil {
			t.Fatalf("%s left an infeasible solution after %d applies: %v",
				moveNames[kind], applied, err)
		}
		s = cand
	}
	if applied == 0 {
		t.Fatal("no move ever applied")
	}
}

func TestLocalSearchImprovesOrKeeps(t *testing.T) {
	inst := testInstance(t)
	s, err := Construct(inst)
	if err != nil {
		t.Fatalf("Construct: %v", err)
	}
	before := s.Cost
	localSearch(s, clrp.NewEvaluator(inst))
	if s.Cost > before+1e-9 {
		t.Fatalf("local search worsened cost: %v -> %v", before, s.Cost)
	}
	if err := s.Validate(); err != nil {
		t.Fatalf("local search broke feasibility: %v", err)
	}
}
