// Package clrp holds the capacitated location-routing problem model:
// immutable instances, mutable solutions, and cost evaluation.
package clrp

import (
	"errors"
	"fmt"
	"math"
)

// ErrInstanceInvalid marks a structural precondition violation detected at
// instance construction. The solvers never see an invalid instance.
var ErrInstanceInvalid = errors.New("invalid instance")

// Tier identifies a routing echelon.
type Tier uint8

const (
	// TierPrimary routes run depot -> satellites (two-echelon instances only).
	TierPrimary Tier = iota + 1
	// TierSecondary routes run serving facility -> customers.
	TierSecondary
)

func (t Tier) String() string {
	switch t {
	case TierPrimary:
		return "primary"
	case TierSecondary:
		return "secondary"
	}
	return "unknown"
}

// Facility is a candidate site that can be opened at a fixed cost.
type Facility struct {
	ID          string
	X, Y        float64
	OpeningCost float64
	Capacity    float64
}

// Customer is a demand point that must be served by exactly one route.
type Customer struct {
	ID     string
	X, Y   float64
	Demand float64
}

// VehicleClass describes one vehicle tier of the fleet.
type VehicleClass struct {
	Capacity    float64
	FixedCost   float64 // per route
	CostPerDist float64
}

// Fleet carries the vehicle classes per tier. Primary is ignored on
// single-echelon instances.
type Fleet struct {
	Primary   VehicleClass
	Secondary VehicleClass
}

// Instance is an immutable CLRP instance. Facilities are addressed by a
// global facility index: depots first, then satellites. An instance with no
// satellites is single-echelon and customers are served directly from depots.
type Instance struct {
	Name       string
	Depots     []Facility
	Satellites []Facility
	Customers  []Customer
	Fleet      Fleet

	dist        [][]float64
	totalDemand float64
}

// NewInstance validates the inputs and precomputes the distance matrix.
// Distances are Euclidean, rounded up to integers as the Prodhon/Tuzun
// benchmark sets define them.
func NewInstance(name string, depots, satellites []Facility, customers []Customer, fleet Fleet) (*Instance, error) {
	if len(depots) == 0 {
		return nil, fmt.Errorf("%w: no depots", ErrInstanceInvalid)
	}
	if len(customers) == 0 {
		return nil, fmt.Errorf("%w: no customers", ErrInstanceInvalid)
	}
	if fleet.Secondary.Capacity <= 0 {
		return nil, fmt.Errorf("%w: secondary vehicle capacity must be > 0", ErrInstanceInvalid)
	}
	if len(satellites) > 0 && fleet.Primary.Capacity <= 0 {
		return nil, fmt.Errorf("%w: primary vehicle capacity must be > 0 on a two-echelon instance", ErrInstanceInvalid)
	}
	for _, f := range append(append([]Facility{}, depots...), satellites...) {
		if f.Capacity <= 0 {
			return nil, fmt.Errorf("%w: facility %s has non-positive capacity", ErrInstanceInvalid, f.ID)
		}
		if f.OpeningCost < 0 {
			return nil, fmt.Errorf("%w: facility %s has negative opening cost", ErrInstanceInvalid, f.ID)
		}
	}
	total := 0.0
	for _, c := range customers {
		if c.Demand <= 0 {
			return nil, fmt.Errorf("%w: customer %s has non-positive demand", ErrInstanceInvalid, c.ID)
		}
		if c.Demand > fleet.Secondary.Capacity {
			return nil, fmt.Errorf("%w: customer %s demand %v exceeds vehicle capacity %v",
				ErrInstanceInvalid, c.ID, c.Demand, fleet.Secondary.Capacity)
		}
		total += c.Demand
	}

	inst := &Instance{
		Name:        name,
		Depots:      depots,
		Satellites:  satellites,
		Customers:   customers,
		Fleet:       fleet,
		totalDemand: total,
	}
	inst.dist = buildDistanceMatrix(inst)
	return inst, nil
}

func buildDistanceMatrix(inst *Instance) [][]float64 {
	n := inst.NumNodes()
	xs := make([]float64, n)
	ys := make([]float64, n)
	for f := 0; f < inst.NumFacilities(); f++ {
		fac := inst.FacilityAt(f)
		xs[f], ys[f] = fac.X, fac.Y
	}
	off := inst.NumFacilities()
	for i, c := range inst.Customers {
		xs[off+i], ys[off+i] = c.X, c.Y
	}
	m := make([][]float64, n)
	for i := range m {
		m[i] = make([]float64, n)
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			m[i][j] = math.Ceil(math.Hypot(xs[i]-xs[j], ys[i]-ys[j]))
		}
	}
	return m
}

// TwoEchelon reports whether the instance has a satellite tier.
func (inst *Instance) TwoEchelon() bool { return len(inst.Satellites) > 0 }

// NumFacilities is the number of candidate facilities across both tiers.
func (inst *Instance) NumFacilities() int { return len(inst.Depots) + len(inst.Satellites) }

// NumNodes is the number of distance-matrix nodes (facilities + customers).
func (inst *Instance) NumNodes() int { return inst.NumFacilities() + len(inst.Customers) }

// TotalDemand is the aggregate customer demand.
func (inst *Instance) TotalDemand() float64 { return inst.totalDemand }

// IsDepot reports whether facility index f is a top-tier depot.
func (inst *Instance) IsDepot(f int) bool { return f < len(inst.Depots) }

// FacilityAt returns the facility for a global facility index.
func (inst *Instance) FacilityAt(f int) *Facility {
	if f < len(inst.Depots) {
		return &inst.Depots[f]
	}
	return &inst.Satellites[f-len(inst.Depots)]
}

// FacilityNode maps a global facility index to its distance-matrix node.
func (inst *Instance) FacilityNode(f int) int { return f }

// CustomerNode maps a customer index to its distance-matrix node.
func (inst *Instance) CustomerNode(c int) int { return inst.NumFacilities() + c }

// Distance returns the precomputed distance between two matrix nodes.
func (inst *Instance) Distance(i, j int) float64 { return inst.dist[i][j] }

// ServingFacilities returns the global indices of facilities that may serve
// customers directly: satellites on a two-echelon instance, depots otherwise.
func (inst *Instance) ServingFacilities() (lo, hi int) {
	if inst.TwoEchelon() {
		return len(inst.Depots), inst.NumFacilities()
	}
	return 0, len(inst.Depots)
}
