package opt

import (
	"context"
	"fmt"
	"sort"
	"time"

	"clrpd/internal/clrp"
)

// Greedy is the deterministic constructor: it opens the cheapest sufficient
// facility subset and serves every customer from its nearest open facility,
// splitting routes at vehicle capacity. Ties break on the lower index, so
// repeated runs produce identical solutions.
type Greedy struct{}

func (Greedy) Name() string { return "greedy" }

func (g Greedy) Solve(_ context.Context, inst *clrp.Instance) (Result, error) {
	start := time.Now()
	s, err := Construct(inst)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Solution: s,
		Cost:     s.Cost,
		Duration: time.Since(start),
		Reason:   StopConstructed,
	}, nil
}

// Construct builds a feasible solution or fails with ErrConstruction. It
// never returns a partial solution.
func Construct(inst *clrp.Instance) (*clrp.Solution, error) {
	s := clrp.NewSolution(inst)
	ev := clrp.NewEvaluator(inst)
	lo, hi := inst.ServingFacilities()

	if err := openByRatio(s, inst, lo, hi, inst.TotalDemand()); err != nil {
		return nil, err
	}

	remaining := make([]float64, inst.NumFacilities())
	for f := lo; f < hi; f++ {
		if s.Open[f] {
			remaining[f] = inst.FacilityAt(f).Capacity
		}
	}
	assigned := make([][]int, inst.NumFacilities())
	for c := range inst.Customers {
		d := inst.Customers[c].Demand
		best, bestDist := -1, 0.0
		for f := lo; f < hi; f++ {
			if !s.Open[f] || remaining[f] < d {
				continue
			}
			dist := inst.Distance(inst.CustomerNode(c), inst.FacilityNode(f))
			if best == -1 || dist < bestDist {
				best, bestDist = f, dist
			}
		}
		if best == -1 {
			// aggregate capacity was opened, but fragmentation can still
			// strand a single customer; open the next affordable facility
			f, ok := openNextFacility(s, inst, lo, hi, d)
			if !ok {
				return nil, fmt.Errorf("%w: no open facility can serve customer %s", ErrConstruction, inst.Customers[c].ID)
			}
			remaining[f] = inst.FacilityAt(f).Capacity
			best = f
		}
		remaining[best] -= d
		assigned[best] = append(assigned[best], c)
		s.FacLoad[best] += d
	}

	for f := lo; f < hi; f++ {
		buildSecondaryRoutes(s, inst, f, assigned[f])
	}

	if inst.TwoEchelon() {
		if err := supplySatellites(s, inst); err != nil {
			return nil, err
		}
	}

	s.Cost = ev.Cost(s)
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConstruction, err)
	}
	return s, nil
}

// openByRatio opens facilities in [lo, hi) by ascending opening-cost /
// capacity ratio until the opened capacity covers demand.
func openByRatio(s *clrp.Solution, inst *clrp.Instance, lo, hi int, demand float64) error {
	order := ratioOrder(inst, lo, hi)
	opened := 0.0
	for _, f := range order {
		if opened >= demand {
			break
		}
		s.Open[f] = true
		opened += inst.FacilityAt(f).Capacity
	}
	if opened < demand {
		return fmt.Errorf("%w: aggregate facility capacity %v below total demand %v", ErrConstruction, opened, demand)
	}
	return nil
}

// openNextFacility opens the best-ratio closed facility in [lo, hi) whose
// capacity can absorb demand d.
func openNextFacility(s *clrp.Solution, inst *clrp.Instance, lo, hi int, d float64) (int, bool) {
	for _, f := range ratioOrder(inst, lo, hi) {
		if s.Open[f] || inst.FacilityAt(f).Capacity < d {
			continue
		}
		s.Open[f] = true
		return f, true
	}
	return -1, false
}

func ratioOrder(inst *clrp.Instance, lo, hi int) []int {
	order := make([]int, 0, hi-lo)
	for f := lo; f < hi; f++ {
		order = append(order, f)
	}
	sort.SliceStable(order, func(i, j int) bool {
		a, b := inst.FacilityAt(order[i]), inst.FacilityAt(order[j])
		return a.OpeningCost/a.Capacity < b.OpeningCost/b.Capacity
	})
	return order
}

// buildSecondaryRoutes chains the customers assigned to facility f in
// nearest-neighbor order, starting a new route whenever the next customer
// would exceed the vehicle capacity.
func buildSecondaryRoutes(s *clrp.Solution, inst *clrp.Instance, f int, customers []int) {
	vcap := inst.Fleet.Secondary.Capacity
	unvisited := append([]int(nil), customers...)
	last := inst.FacilityNode(f)
	route := clrp.Route{Tier: clrp.TierSecondary, Origin: f}
	for len(unvisited) > 0 {
		best, bestDist := -1, 0.0
		for i, c := range unvisited {
			if route.Load+inst.Customers[c].Demand > vcap {
				continue
			}
			dist := inst.Distance(last, inst.CustomerNode(c))
			if best == -1 || dist < bestDist {
				best, bestDist = i, dist
			}
		}
		if best == -1 {
			ri := s.AddRoute(route)
			for _, c := range route.Stops {
				s.CustRoute[c] = ri
			}
			route = clrp.Route{Tier: clrp.TierSecondary, Origin: f}
			last = inst.FacilityNode(f)
			continue
		}
		c := unvisited[best]
		unvisited = append(unvisited[:best], unvisited[best+1:]...)
		route.Stops = append(route.Stops, c)
		route.Load += inst.Customers[c].Demand
		last = inst.CustomerNode(c)
	}
	if len(route.Stops) > 0 {
		ri := s.AddRoute(route)
		for _, c := range route.Stops {
			s.CustRoute[c] = ri
		}
	}
}

// supplySatellites opens depots and builds the primary routes feeding every
// loaded satellite, one tier above the customer assignment.
func supplySatellites(s *clrp.Solution, inst *clrp.Instance) error {
	nd := len(inst.Depots)
	total := 0.0
	for sl := range inst.Satellites {
		total += s.FacLoad[nd+sl]
	}
	if total == 0 {
		return nil
	}
	if err := openByRatio(s, inst, 0, nd, total); err != nil {
		return err
	}

	remaining := make([]float64, nd)
	for f := 0; f < nd; f++ {
		if s.Open[f] {
			remaining[f] = inst.FacilityAt(f).Capacity
		}
	}
	supplied := make([][]int, nd) // depot -> satellite facility indices
	for sl := range inst.Satellites {
		sf := nd + sl
		load := s.FacLoad[sf]
		if load == 0 {
			continue
		}
		best, bestDist := -1, 0.0
		for f := 0; f < nd; f++ {
			if !s.Open[f] || remaining[f] < load {
				continue
			}
			dist := inst.Distance(inst.FacilityNode(sf), inst.FacilityNode(f))
			if best == -1 || dist < bestDist {
				best, bestDist = f, dist
			}
		}
		if best == -1 {
			f, ok := openNextFacility(s, inst, 0, nd, load)
			if !ok {
				return fmt.Errorf("%w: no depot can supply satellite %s", ErrConstruction, inst.Satellites[sl].ID)
			}
			remaining[f] = inst.FacilityAt(f).Capacity
			best = f
		}
		remaining[best] -= load
		supplied[best] = append(supplied[best], sf)
		s.SatDepot[sl] = best
		s.FacLoad[best] += load
	}

	vcap := inst.Fleet.Primary.Capacity
	for f := 0; f < nd; f++ {
		unvisited := append([]int(nil), supplied[f]...)
		last := inst.FacilityNode(f)
		route := clrp.Route{Tier: clrp.TierPrimary, Origin: f}
		for len(unvisited) > 0 {
			best, bestDist := -1, 0.0
			for i, sf := range unvisited {
				if route.Load+s.FacLoad[sf] > vcap {
					continue
				}
				dist := inst.Distance(last, inst.FacilityNode(sf))
				if best == -1 || dist < bestDist {
					best, bestDist = i, dist
				}
			}
			if best == -1 {
				if len(route.Stops) == 0 {
					// a satellite load above the primary vehicle capacity
					// cannot be delivered on any route
					return fmt.Errorf("%w: satellite load exceeds primary vehicle capacity", ErrConstruction)
				}
				s.AddRoute(route)
				route = clrp.Route{Tier: clrp.TierPrimary, Origin: f}
				last = inst.FacilityNode(f)
				continue
			}
			sf := unvisited[best]
			unvisited = append(unvisited[:best], unvisited[best+1:]...)
			route.Stops = append(route.Stops, sf)
			route.Load += s.FacLoad[sf]
			last = inst.FacilityNode(sf)
		}
		if len(route.Stops) > 0 {
			s.AddRoute(route)
		}
	}
	return nil
}
