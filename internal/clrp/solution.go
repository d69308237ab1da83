package clrp

import (
	"errors"
	"fmt"
	"math"
)

// loadEps absorbs the float drift that incremental load bookkeeping
// accumulates against a scratch recomputation on fractional demands.
const loadEps = 1e-9

// ErrInfeasible is returned by Validate when a solution breaks one of the
// feasibility invariants. Inside the optimizer it is non-fatal: the candidate
// is discarded and the run continues.
var ErrInfeasible = errors.New("infeasible solution")

// Route is a single vehicle trip. Origin is a global facility index. Stops
// hold global facility indices for primary routes and customer indices for
// secondary routes. Load is the demand carried by the vehicle: the summed
// customer demand on secondary routes, the summed downstream satellite load
// on primary routes.
type Route struct {
	Tier   Tier
	Origin int
	Stops  []int
	Load   float64
}

// Solution is the mutable working state of a solver run. It is owned
// exclusively by the solver mutating it; candidates are produced via Clone.
type Solution struct {
	inst *Instance

	// Open[f] reports whether facility f is opened.
	Open []bool
	// Routes in no particular order. Indices are referenced by CustRoute.
	Routes []Route
	// CustRoute[c] is the index into Routes of the secondary route serving
	// customer c, or -1 while unassigned.
	CustRoute []int
	// SatDepot[s] is the global depot index supplying satellite s (local
	// satellite index), or -1. Unused on single-echelon instances.
	SatDepot []int
	// FacLoad[f] is the demand flowing through facility f: direct customer
	// demand for serving facilities, supplied satellite load for depots on
	// two-echelon instances.
	FacLoad []float64

	// Cost caches the total cost. It must always equal a scratch
	// recomputation; the evaluator's delta functions keep it in sync.
	Cost float64
}

// NewSolution returns an empty solution for inst: nothing open, no routes,
// all customers unassigned.
func NewSolution(inst *Instance) *Solution {
	s := &Solution{
		inst:      inst,
		Open:      make([]bool, inst.NumFacilities()),
		CustRoute: make([]int, len(inst.Customers)),
		SatDepot:  make([]int, len(inst.Satellites)),
		FacLoad:   make([]float64, inst.NumFacilities()),
	}
	for i := range s.CustRoute {
		s.CustRoute[i] = -1
	}
	for i := range s.SatDepot {
		s.SatDepot[i] = -1
	}
	return s
}

// Instance returns the instance this solution belongs to.
func (s *Solution) Instance() *Instance { return s.inst }

// Clone deep-copies the solution. The clone shares only the immutable
// instance with the original.
func (s *Solution) Clone() *Solution {
	c := &Solution{
		inst:      s.inst,
		Open:      append([]bool(nil), s.Open...),
		Routes:    make([]Route, len(s.Routes)),
		CustRoute: append([]int(nil), s.CustRoute...),
		SatDepot:  append([]int(nil), s.SatDepot...),
		FacLoad:   append([]float64(nil), s.FacLoad...),
		Cost:      s.Cost,
	}
	for i, r := range s.Routes {
		c.Routes[i] = Route{Tier: r.Tier, Origin: r.Origin, Stops: append([]int(nil), r.Stops...), Load: r.Load}
	}
	return c
}

// AddRoute appends a route and returns its index.
func (s *Solution) AddRoute(r Route) int {
	s.Routes = append(s.Routes, r)
	return len(s.Routes) - 1
}

// RemoveRoute deletes route ri and renumbers the customer assignment for the
// routes shifted down behind it.
func (s *Solution) RemoveRoute(ri int) {
	s.Routes = append(s.Routes[:ri], s.Routes[ri+1:]...)
	for c, r := range s.CustRoute {
		if r > ri {
			s.CustRoute[c] = r - 1
		} else if r == ri {
			s.CustRoute[c] = -1
		}
	}
}

// SatRouteIndex returns the index of the primary route whose stops contain
// satellite facility sf, or -1.
func (s *Solution) SatRouteIndex(sf int) int {
	for ri, r := range s.Routes {
		if r.Tier != TierPrimary {
			continue
		}
		for _, st := range r.Stops {
			if st == sf {
				return ri
			}
		}
	}
	return -1
}

// Validate checks the five feasibility invariants:
//  1. every customer appears in exactly one secondary route,
//  2. no route load exceeds its tier's vehicle capacity,
//  3. every route originates at an open facility,
//  4. every facility referenced by a route or assignment is open and within
//     its throughput capacity,
//  5. on two-echelon instances every used satellite is supplied by exactly
//     one primary route from an open depot.
func (s *Solution) Validate() error {
	inst := s.inst
	seen := make([]int, len(inst.Customers))
	satSupply := make([]int, len(inst.Satellites))
	facLoad := make([]float64, inst.NumFacilities())

	for ri, r := range s.Routes {
		vcap := inst.Fleet.Secondary.Capacity
		if r.Tier == TierPrimary {
			vcap = inst.Fleet.Primary.Capacity
		}
		if !s.Open[r.Origin] {
			return fmt.Errorf("%w: route %d originates at closed facility %d", ErrInfeasible, ri, r.Origin)
		}
		load := 0.0
		switch r.Tier {
		case TierSecondary:
			for _, c := range r.Stops {
				seen[c]++
				if s.CustRoute[c] != ri {
					return fmt.Errorf("%w: customer %d assignment disagrees with route %d", ErrInfeasible, c, ri)
				}
				load += inst.Customers[c].Demand
			}
			facLoad[r.Origin] += load
		case TierPrimary:
			if !inst.IsDepot(r.Origin) {
				return fmt.Errorf("%w: primary route %d originates at non-depot %d", ErrInfeasible, ri, r.Origin)
			}
			for _, sf := range r.Stops {
				if inst.IsDepot(sf) {
					return fmt.Errorf("%w: primary route %d visits depot %d", ErrInfeasible, ri, sf)
				}
				sl := sf - len(inst.Depots)
				satSupply[sl]++
				if s.SatDepot[sl] != r.Origin {
					return fmt.Errorf("%w: satellite %d supply disagrees with route %d", ErrInfeasible, sl, ri)
				}
				if !s.Open[sf] {
					return fmt.Errorf("%w: primary route %d visits closed satellite %d", ErrInfeasible, ri, sf)
				}
				load += s.FacLoad[sf]
			}
			facLoad[r.Origin] += load
		default:
			return fmt.Errorf("%w: route %d has unknown tier", ErrInfeasible, ri)
		}
		if load > vcap+loadEps {
			return fmt.Errorf("%w: route %d load %v exceeds vehicle capacity %v", ErrInfeasible, ri, load, vcap)
		}
		if math.Abs(load-r.Load) > loadEps {
			return fmt.Errorf("%w: route %d cached load %v, recomputed %v", ErrInfeasible, ri, r.Load, load)
		}
	}

	for c, n := range seen {
		if n != 1 {
			return fmt.Errorf("%w: customer %d appears in %d routes", ErrInfeasible, c, n)
		}
	}
	for f := 0; f < inst.NumFacilities(); f++ {
		fac := inst.FacilityAt(f)
		if math.Abs(facLoad[f]-s.FacLoad[f]) > loadEps {
			return fmt.Errorf("%w: facility %s cached load %v, recomputed %v", ErrInfeasible, fac.ID, s.FacLoad[f], facLoad[f])
		}
		if facLoad[f] > fac.Capacity+loadEps {
			return fmt.Errorf("%w: facility %s load %v exceeds capacity %v", ErrInfeasible, fac.ID, facLoad[f], fac.Capacity)
		}
		if facLoad[f] > loadEps && !s.Open[f] {
			return fmt.Errorf("%w: closed facility %s carries load", ErrInfeasible, fac.ID)
		}
	}
	if inst.TwoEchelon() {
		for sl := range inst.Satellites {
			sf := len(inst.Depots) + sl
			used := s.FacLoad[sf] > loadEps
			if used && satSupply[sl] != 1 {
				return fmt.Errorf("%w: satellite %d supplied by %d primary routes", ErrInfeasible, sl, satSupply[sl])
			}
			if !used && satSupply[sl] > 1 {
				return fmt.Errorf("%w: idle satellite %d supplied %d times", ErrInfeasible, sl, satSupply[sl])
			}
		}
	}
	return nil
}
