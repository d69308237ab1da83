package clrp

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestCostFromScratch(t *testing.T) {
	inst := testInstance(t)
	s := feasibleSolution(t, inst)
	// opening 100+80, route D1->C1->C2->D1 = 5 + (2+3+4),
	// D2->C3->D2 = 5 + 4, D2->C4->D2 = 5 + 8
	want := 180.0 + 14 + 9 + 13
	if got := NewEvaluator(inst).Cost(s); !almostEqual(got, want) {
		t.Fatalf("cost = %v, want %v", got, want)
	}
	if !almostEqual(s.Cost, want) {
		t.Fatalf("cached cost = %v, want %v", s.Cost, want)
	}
}

// A route with a single stop must be charged both the origin->stop leg and
// the return leg. Silently dropping the origin leg is the defect this test
// pins down.
func TestRouteCostIncludesOriginLegs(t *testing.T) {
	inst := testInstance(t)
	ev := NewEvaluator(inst)
	r := Route{Tier: TierSecondary, Origin: 1, Stops: []int{2}, Load: 6}
	d := inst.Distance(inst.FacilityNode(1), inst.CustomerNode(2))
	want := inst.Fleet.Secondary.FixedCost + 2*d*inst.Fleet.Secondary.CostPerDist
	if got := ev.RouteCost(r); !almostEqual(got, want) {
		t.Fatalf("single-stop route cost = %v, want %v", got, want)
	}

	// same rule on the primary tier
	two := testInstance2E(t)
	ev2 := NewEvaluator(two)
	pr := Route{Tier: TierPrimary, Origin: 0, Stops: []int{1}, Load: 7}
	dp := two.Distance(two.FacilityNode(0), two.FacilityNode(1))
	wantP := two.Fleet.Primary.FixedCost + 2*dp*two.Fleet.Primary.CostPerDist
	if got := ev2.RouteCost(pr); !almostEqual(got, wantP) {
		t.Fatalf("primary single-stop route cost = %v, want %v", got, wantP)
	}
}

func TestEmptyRouteCostsNothing(t *testing.T) {
	inst := testInstance(t)
	ev := NewEvaluator(inst)
	if got := ev.RouteCost(Route{Tier: TierSecondary, Origin: 0}); got != 0 {
		t.Fatalf("empty route cost = %v, want 0", got)
	}
}

func TestInsertDeltaMatchesScratch(t *testing.T) {
	inst := testInstance(t)
	ev := NewEvaluator(inst)
	r := Route{Tier: TierSecondary, Origin: 0, Stops: []int{0, 1}}
	before := ev.RouteCost(r)
	for pos := 0; pos <= len(r.Stops); pos++ {
		stops := make([]int, 0, 3)
		stops = append(stops, r.Stops[:pos]...)
		stops = append(stops, 3)
		stops = append(stops, r.Stops[pos:]...)
		after := ev.RouteCost(Route{Tier: TierSecondary, Origin: 0, Stops: stops})
		if got := ev.InsertDelta(r, pos, 3); !almostEqual(got, after-before) {
			t.Fatalf("InsertDelta pos %d = %v, want %v", pos, got, after-before)
		}
	}
}

func TestInsertDeltaEmptyRouteIncludesFixedCost(t *testing.T) {
	inst := testInstance(t)
	ev := NewEvaluator(inst)
	r := Route{Tier: TierSecondary, Origin: 1}
	after := ev.RouteCost(Route{Tier: TierSecondary, Origin: 1, Stops: []int{2}})
	if got := ev.InsertDelta(r, 0, 2); !almostEqual(got, after) {
		t.Fatalf("InsertDelta into empty route = %v, want %v", got, after)
	}
}

func TestRemoveDeltaMatchesScratch(t *testing.T) {
	inst := testInstance(t)
	ev := NewEvaluator(inst)
	r := Route{Tier: TierSecondary, Origin: 0, Stops: []int{0, 1, 2}}
	before := ev.RouteCost(r)
	for pos := 0; pos < len(r.Stops); pos++ {
		stops := make([]int, 0, 2)
		stops = append(stops, r.Stops[:pos]...)
		stops = append(stops, r.Stops[pos+1:]...)
		after := ev.RouteCost(Route{Tier: TierSecondary, Origin: 0, Stops: stops})
		if got := ev.RemoveDelta(r, pos); !almostEqual(got, after-before) {
			t.Fatalf("RemoveDelta pos %d = %v, want %v", pos, got, after-before)
		}
	}
	// removing the only stop releases the fixed cost as well
	single := Route{Tier: TierSecondary, Origin: 0, Stops: []int{2}}
	if got := ev.RemoveDelta(single, 0); !almostEqual(got, -ev.RouteCost(single)) {
		t.Fatalf("RemoveDelta last stop = %v, want %v", got, -ev.RouteCost(single))
	}
}

func TestSwapWithinDeltaMatchesScratch(t *testing.T) {
	inst := testInstance(t)
	ev := NewEvaluator(inst)
	r := Route{Tier: TierSecondary, Origin: 0, Stops: []int{0, 1, 2, 3}}
	before := ev.RouteCost(r)
	for i := 0; i < len(r.Stops); i++ {
		for j := i + 1; j < len(r.Stops); j++ {
			stops := append([]int(nil), r.Stops...)
			stops[i], stops[j] = stops[j], stops[i]
			after := ev.RouteCost(Route{Tier: TierSecondary, Origin: 0, Stops: stops})
			if got := ev.SwapWithinDelta(r, i, j); !almostEqual(got, after-before) {
				t.Fatalf("SwapWithinDelta(%d,%d) = %v, want %v", i, j, got, after-before)
			}
		}
	}
}

func TestSwapAcrossDeltaMatchesScratch(t *testing.T) {
	inst := testInstance(t)
	ev := NewEvaluator(inst)
	a := Route{Tier: TierSecondary, Origin: 0, Stops: []int{0, 1}}
	b := Route{Tier: TierSecondary, Origin: 1, Stops: []int{2, 3}}
	before := ev.RouteCost(a) + ev.RouteCost(b)
	for i := range a.Stops {
		for j := range b.Stops {
			sa := append([]int(nil), a.Stops...)
			sb := append([]int(nil), b.Stops...)
			sa[i], sb[j] = sb[j], sa[i]
			after := ev.RouteCost(Route{Tier: TierSecondary, Origin: 0, Stops: sa}) +
				ev.RouteCost(Route{Tier: TierSecondary, Origin: 1, Stops: sb})
			if got := ev.SwapAcrossDelta(a, i, b, j); !almostEqual(got, after-before) {
				t.Fatalf("SwapAcrossDelta(%d,%d) = %v, want %v", i, j, got, after-before)
			}
		}
	}
}

func TestReverseDeltaMatchesScratch(t *testing.T) {
	inst := testInstance(t)
	ev := NewEvaluator(inst)
	r := Route{Tier: TierSecondary, Origin: 1, Stops: []int{3, 0, 2, 1}}
	before := ev.RouteCost(r)
	for i := 0; i < len(r.Stops); i++ {
		for j := i + 1; j < len(r.Stops); j++ {
			stops := append([]int(nil), r.Stops...)
			for a, b := i, j; a < b; a, b = a+1, b-1 {
				stops[a], stops[b] = stops[b], stops[a]
			}
			after := ev.RouteCost(Route{Tier: TierSecondary, Origin: 1, Stops: stops})
			if got := ev.ReverseDelta(r, i, j); !almostEqual(got, after-before) {
				t.Fatalf("ReverseDelta(%d,%d) = %v, want %v", i, j, got, after-before)
			}
		}
	}
}

func TestToggleDelta(t *testing.T) {
	inst := testInstance(t)
	ev := NewEvaluator(inst)
	if got := ev.ToggleDelta(1, true); got != 80 {
		t.Fatalf("open delta = %v, want 80", got)
	}
	if got := ev.ToggleDelta(1, false); got != -80 {
		t.Fatalf("close delta = %v, want -80", got)
	}
}
