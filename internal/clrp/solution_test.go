package clrp

import (
	"errors"
	"testing"
)

// feasibleSolution opens both depots of testInstance and serves the four
// customers on three secondary routes.
func feasibleSolution(t *testing.T, inst *Instance) *Solution {
	t.Helper()
	s := NewSolution(inst)
	s.Open[0] = true
	s.Open[1] = true
	s.AddRoute(Route{Tier: TierSecondary, Origin: 0, Stops: []int{0, 1}, Load: 7})
	s.AddRoute(Route{Tier: TierSecondary, Origin: 1, Stops: []int{2}, Load: 6})
	s.AddRoute(Route{Tier: TierSecondary, Origin: 1, Stops: []int{3}, Load: 5})
	s.CustRoute[0], s.CustRoute[1] = 0, 0
	s.CustRoute[2] = 1
	s.CustRoute[3] = 2
	s.FacLoad[0] = 7
	s.FacLoad[1] = 11
	s.Cost = NewEvaluator(inst).Cost(s)
	return s
}

// feasibleSolution2E serves testInstance2E through both satellites and one
// primary route.
func feasibleSolution2E(t *testing.T, inst *Instance) *Solution {
	t.Helper()
	s := NewSolution(inst)
	s.Open[0], s.Open[1], s.Open[2] = true, true, true
	s.AddRoute(Route{Tier: TierSecondary, Origin: 1, Stops: []int{0, 1}, Load: 7})
	s.AddRoute(Route{Tier: TierSecondary, Origin: 2, Stops: []int{2}, Load: 6})
	s.CustRoute[0], s.CustRoute[1] = 0, 0
	s.CustRoute[2] = 1
	s.FacLoad[1] = 7
	s.FacLoad[2] = 6
	s.AddRoute(Route{Tier: TierPrimary, Origin: 0, Stops: []int{1, 2}, Load: 13})
	s.SatDepot[0], s.SatDepot[1] = 0, 0
	s.FacLoad[0] = 13
	s.Cost = NewEvaluator(inst).Cost(s)
	return s
}

func TestValidateFeasible(t *testing.T) {
	s := feasibleSolution(t, testInstance(t))
	if err := s.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	s2 := feasibleSolution2E(t, testInstance2E(t))
	if err := s2.Validate(); err != nil {
		t.Fatalf("Validate 2E: %v", err)
	}
}

func TestValidateDetectsViolations(t *testing.T) {
	inst := testInstance(t)

	t.Run("customer served twice", func(t *testing.T) {
		s := feasibleSolution(t, inst)
		s.Routes[1].Stops = append(s.Routes[1].Stops, 0)
		s.Routes[1].Load += 4
		s.FacLoad[1] += 4
		if err := s.Validate(); !errors.Is(err, ErrInfeasible) {
			t.Fatalf("got %v", err)
		}
	})

	t.Run("route overload", func(t *testing.T) {
		s := feasibleSolution(t, inst)
		// merge C3 into route 2 alongside C4: load 11 > vehicle capacity 10
		s.RemoveRoute(1)
		ri := s.CustRoute[3]
		s.Routes[ri].Stops = append(s.Routes[ri].Stops, 2)
		s.Routes[ri].Load += 6
		s.CustRoute[2] = ri
		if err := s.Validate(); !errors.Is(err, ErrInfeasible) {
			t.Fatalf("got %v", err)
		}
	})

	t.Run("closed origin", func(t *testing.T) {
		s := feasibleSolution(t, inst)
		s.Open[0] = false
		if err := s.Validate(); !errors.Is(err, ErrInfeasible) {
			t.Fatalf("got %v", err)
		}
	})

	t.Run("facility overload", func(t *testing.T) {
		s := feasibleSolution(t, inst)
		// move C3 onto depot 0: load 13 > capacity 10
		s.Routes[1].Origin = 0
		s.FacLoad[0] += 6
		s.FacLoad[1] -= 6
		if err := s.Validate(); !errors.Is(err, ErrInfeasible) {
			t.Fatalf("got %v", err)
		}
	})

	t.Run("orphaned satellite", func(t *testing.T) {
		inst2 := testInstance2E(t)
		s := feasibleSolution2E(t, inst2)
		pr := s.SatRouteIndex(2)
		s.Routes[pr].Stops = []int{1}
		s.Routes[pr].Load = 7
		s.FacLoad[0] = 7
		if err := s.Validate(); !errors.Is(err, ErrInfeasible) {
			t.Fatalf("got %v", err)
		}
	})
}

// Incremental load maintenance leaves the cached route and facility loads a
// few ulps away from an exact re-sum once demands are fractional. Validate
// treats caches within tolerance as equal while still rejecting stale ones.
func TestValidateToleratesLoadDrift(t *testing.T) {
	s := feasibleSolution(t, testInstance(t))
	s.Routes[0].Load += 3e-13
	s.FacLoad[0] += 3e-13
	if err := s.Validate(); err != nil {
		t.Fatalf("Validate rejected drifted caches: %v", err)
	}
	s.Routes[0].Load += 1e-6
	if err := s.Validate(); !errors.Is(err, ErrInfeasible) {
		t.Fatalf("got %v, want ErrInfeasible for stale cache", err)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	s := feasibleSolution(t, testInstance(t))
	c := s.Clone()
	c.Routes[0].Stops[0] = 3
	c.Open[0] = false
	c.CustRoute[0] = -1
	c.FacLoad[0] = 0
	if s.Routes[0].Stops[0] != 0 || !s.Open[0] || s.CustRoute[0] != 0 || s.FacLoad[0] != 7 {
		t.Fatal("mutating clone leaked into original")
	}
	if err := s.Validate(); err != nil {
		t.Fatalf("original corrupted: %v", err)
	}
}

func TestRemoveRouteRenumbers(t *testing.T) {
	s := feasibleSolution(t, testInstance(t))
	s.Routes[1].Stops = nil
	s.Routes[1].Load = 0
	s.FacLoad[1] -= 6
	s.CustRoute[2] = -1
	s.RemoveRoute(1)
	if s.CustRoute[3] != 1 {
		t.Fatalf("customer 3 route = %d, want renumbered 1", s.CustRoute[3])
	}
	if len(s.Routes) != 2 {
		t.Fatalf("routes = %d, want 2", len(s.Routes))
	}
}

func TestSatRouteIndex(t *testing.T) {
	s := feasibleSolution2E(t, testInstance2E(t))
	if got := s.SatRouteIndex(1); got != 2 {
		t.Fatalf("SatRouteIndex(1) = %d, want 2", got)
	}
	if got := s.SatRouteIndex(0); got != -1 {
		t.Fatalf("SatRouteIndex(depot) = %d, want -1", got)
	}
}
