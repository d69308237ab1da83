package opt

import (
	"context"
	"errors"
	"testing"

	"clrpd/internal/clrp"
)

func testFleet() clrp.Fleet {
	return clrp.Fleet{
		Primary:   clrp.VehicleClass{Capacity: 40, FixedCost: 20, CostPerDist: 1},
		Secondary: clrp.VehicleClass{Capacity: 10, FixedCost: 5, CostPerDist: 1},
	}
}

func testInstance(t *testing.T) *clrp.Instance {
	t.Helper()
	inst, err := clrp.NewInstance("two-depots",
		[]clrp.Facility{
			{ID: "D1", X: 0, Y: 0, OpeningCost: 100, Capacity: 10},
			{ID: "D2", X: 10, Y: 0, OpeningCost: 80, Capacity: 15},
		},
		nil,
		[]clrp.Customer{
			{ID: "C1", X: 1, Y: 1, Demand: 4},
			{ID: "C2", X: 2, Y: 3, Demand: 3},
			{ID: "C3", X: 9, Y: 1, Demand: 6},
			{ID: "C4", X: 8, Y: 3, Demand: 5},
		},
		testFleet())
	if err != nil {
		t.Fatalf("NewInstance: %v", err)
	}
	return inst
}

func testInstance2E(t *testing.T) *clrp.Instance {
	t.Helper()
	inst, err := clrp.NewInstance("one-depot-two-sats",
		[]clrp.Facility{
			{ID: "D1", X: 0, Y: 0, OpeningCost: 50, Capacity: 100},
		},
		[]clrp.Facility{
			{ID: "S1", X: 5, Y: 0, OpeningCost: 20, Capacity: 20},
			{ID: "S2", X: 0, Y: 5, OpeningCost: 25, Capacity: 20},
		},
		[]clrp.Customer{
			{ID: "C1", X: 6, Y: 1, Demand: 4},
			{ID: "C2", X: 7, Y: 0, Demand: 3},
			{ID: "C3", X: 1, Y: 6, Demand: 6},
		},
		testFleet())
	if err != nil {
		t.Fatalf("NewInstance: %v", err)
	}
	return inst
}

func TestConstructTwoDepots(t *testing.T) {
	inst := testInstance(t)
	s, err := Construct(inst)
	if err != nil {
		t.Fatalf("Construct: %v", err)
	}
	if err := s.Validate(); err != nil {
		t.Fatalf("constructed solution infeasible: %v", err)
	}
	// the cheaper-per-unit depot alone cannot cover demand 18, so both open
	if !s.Open[0] || !s.Open[1] {
		t.Fatalf("expected both depots open, got %v", s.Open)
	}
	// opening 180, D1->C1->C2 (5+9), D2->C3 (5+4), D2->C4 (5+8)
	if want := 216.0; s.Cost != want {
		t.Fatalf("cost = %v, want %v", s.Cost, want)
	}
}

func TestConstructDeterministic(t *testing.T) {
	inst := testInstance(t)
	a, err := Construct(inst)
	if err != nil {
		t.Fatalf("Construct: %v", err)
	}
	b, err := Construct(inst)
	if err != nil {
		t.Fatalf("Construct: %v", err)
	}
	if a.Cost != b.Cost || len(a.Routes) != len(b.Routes) {
		t.Fatalf("construction not deterministic: %v vs %v", a.Cost, b.Cost)
	}
	for ri := range a.Routes {
		ra, rb := a.Routes[ri], b.Routes[ri]
		if ra.Origin != rb.Origin || len(ra.Stops) != len(rb.Stops) {
			t.Fatalf("route %d differs between runs", ri)
		}
		for i := range ra.Stops {
			if ra.Stops[i] != rb.Stops[i] {
				t.Fatalf("route %d stop %d differs between runs", ri, i)
			}
		}
	}
}

func TestConstructTwoEchelon(t *testing.T) {
	inst := testInstance2E(t)
	s, err := Construct(inst)
	if err != nil {
		t.Fatalf("Construct: %v", err)
	}
	if err := s.Validate(); err != nil {
		t.Fatalf("constructed solution infeasible: %v", err)
	}
	if !s.Open[0] {
		t.Fatalf("expected the only depot open")
	}
	ev := clrp.NewEvaluator(inst)
	if got := ev.Cost(s); got != s.Cost {
		t.Fatalf("cached cost %v != scratch cost %v", s.Cost, got)
	}
	// every loaded satellite must be supplied
	for sl := range inst.Satellites {
		sf := inst.NumFacilities() - len(inst.Satellites) + sl
		if s.FacLoad[sf] > 0 && s.SatDepot[sl] == -1 {
			t.Fatalf("satellite %d loaded but unsupplied", sl)
		}
	}
}

func TestConstructFailsWhenCapacityShort(t *testing.T) {
	inst, err := clrp.NewInstance("short",
		[]clrp.Facility{
			{ID: "D1", X: 0, Y: 0, OpeningCost: 10, Capacity: 5},
		},
		nil,
		[]clrp.Customer{
			{ID: "C1", X: 1, Y: 0, Demand: 4},
			{ID: "C2", X: 2, Y: 0, Demand: 4},
		},
		testFleet())
	if err != nil {
		t.Fatalf("NewInstance: %v", err)
	}
	if _, err := Construct(inst); !errors.Is(err, ErrConstruction) {
		t.Fatalf("err = %v, want ErrConstruction", err)
	}
	g := Greedy{}
	if _, err := g.Solve(context.Background(), inst); !errors.Is(err, ErrConstruction) {
		t.Fatalf("Solve err = %v, want ErrConstruction", err)
	}
}

func TestGreedySolveResult(t *testing.T) {
	inst := testInstance(t)
	res, err := Greedy{}.Solve(context.Background(), inst)
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if res.Reason != StopConstructed {
		t.Fatalf("reason = %q, want %q", res.Reason, StopConstructed)
	}
	if res.Cost != res.Solution.Cost {
		t.Fatalf("result cost %v != solution cost %v", res.Cost, res.Solution.Cost)
	}
}
