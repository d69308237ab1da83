package clrp

import (
	"errors"
	"testing"
)

// testFleet matches the single-capacity fleets of the Prodhon-style sets.
func testFleet() Fleet {
	return Fleet{
		Primary:   VehicleClass{Capacity: 40, FixedCost: 20, CostPerDist: 1},
		Secondary: VehicleClass{Capacity: 10, FixedCost: 5, CostPerDist: 1},
	}
}

// testInstance has two depots (capacity 10 and 15, opening cost 100 and 80)
// and four customers (demand 4, 3, 6, 5) on a small grid.
func testInstance(t *testing.T) *Instance {
	t.Helper()
	inst, err := NewInstance("grid",
		[]Facility{
			{ID: "D1", X: 0, Y: 0, OpeningCost: 100, Capacity: 10},
			{ID: "D2", X: 10, Y: 0, OpeningCost: 80, Capacity: 15},
		},
		nil,
		[]Customer{
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

// testInstance2E has one depot supplying two satellites which serve three
// customers.
func testInstance2E(t *testing.T) *Instance {
	t.Helper()
	inst, err := NewInstance("two-echelon",
		[]Facility{{ID: "D1", X: 0, Y: 0, OpeningCost: 50, Capacity: 100}},
		[]Facility{
			{ID: "S1", X: 5, Y: 0, OpeningCost: 20, Capacity: 20},
			{ID: "S2", X: 0, Y: 5, OpeningCost: 25, Capacity: 20},
		},
		[]Customer{
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

func TestNewInstanceRejectsInvalid(t *testing.T) {
	fleet := testFleet()
	depot := Facility{ID: "D", X: 0, Y: 0, OpeningCost: 10, Capacity: 50}
	cases := []struct {
		name      string
		depots    []Facility
		customers []Customer
		fleet     Fleet
	}{
		{"no depots", nil, []Customer{{ID: "C", Demand: 1}}, fleet},
		{"no customers", []Facility{depot}, nil, fleet},
		{"zero demand", []Facility{depot}, []Customer{{ID: "C", Demand: 0}}, fleet},
		{"negative demand", []Facility{depot}, []Customer{{ID: "C", Demand: -2}}, fleet},
		{"demand above vehicle capacity", []Facility{depot}, []Customer{{ID: "C", Demand: 11}}, fleet},
		{"zero facility capacity", []Facility{{ID: "D", Capacity: 0}}, []Customer{{ID: "C", Demand: 1}}, fleet},
		{"zero vehicle capacity", []Facility{depot}, []Customer{{ID: "C", Demand: 1}}, Fleet{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewInstance("bad", tc.depots, nil, tc.customers, tc.fleet)
			if !errors.Is(err, ErrInstanceInvalid) {
				t.Fatalf("got %v, want ErrInstanceInvalid", err)
			}
		})
	}
}

func TestDistanceMatrixCeiledAndSymmetric(t *testing.T) {
	inst := testInstance(t)
	d1 := inst.FacilityNode(0)
	c1 := inst.CustomerNode(0)
	// D1 (0,0) -> C1 (1,1): sqrt(2) ceiled to 2.
	if got := inst.Distance(d1, c1); got != 2 {
		t.Fatalf("d(D1,C1) = %v, want 2", got)
	}
	for i := 0; i < inst.NumNodes(); i++ {
		if inst.Distance(i, i) != 0 {
			t.Fatalf("d(%d,%d) != 0", i, i)
		}
		for j := 0; j < inst.NumNodes(); j++ {
			if inst.Distance(i, j) != inst.Distance(j, i) {
				t.Fatalf("matrix not symmetric at (%d,%d)", i, j)
			}
		}
	}
}

func TestServingFacilities(t *testing.T) {
	single := testInstance(t)
	lo, hi := single.ServingFacilities()
	if lo != 0 || hi != 2 {
		t.Fatalf("single echelon serving range [%d,%d), want [0,2)", lo, hi)
	}
	if single.TwoEchelon() {
		t.Fatal("instance without satellites reported two-echelon")
	}

	two := testInstance2E(t)
	lo, hi = two.ServingFacilities()
	if lo != 1 || hi != 3 {
		t.Fatalf("two echelon serving range [%d,%d), want [1,3)", lo, hi)
	}
	if !two.TwoEchelon() {
		t.Fatal("instance with satellites not reported two-echelon")
	}
	if two.IsDepot(1) || !two.IsDepot(0) {
		t.Fatal("IsDepot misclassifies facility tiers")
	}
}

func TestTotalDemand(t *testing.T) {
	if got := testInstance(t).TotalDemand(); got != 18 {
		t.Fatalf("total demand = %v, want 18", got)
	}
}
