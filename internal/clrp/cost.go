package clrp

// Evaluator computes total and incremental costs for solutions of one
// instance. It is stateless beyond the instance reference; all methods are
// pure computations.
type Evaluator struct {
	inst *Instance
}

func NewEvaluator(inst *Instance) *Evaluator { return &Evaluator{inst: inst} }

func (e *Evaluator) class(t Tier) VehicleClass {
	if t == TierPrimary {
		return e.inst.Fleet.Primary
	}
	return e.inst.Fleet.Secondary
}

func (e *Evaluator) stopNode(t Tier, stop int) int {
	if t == TierPrimary {
		return e.inst.FacilityNode(stop)
	}
	return e.inst.CustomerNode(stop)
}

// RouteDistance is the full round-trip length of a route: the leg from the
// origin facility to the first stop, every consecutive-stop leg, and the
// return leg from the last stop back to the origin. The origin legs are part
// of the distance on every tier.
func (e *Evaluator) RouteDistance(r Route) float64 {
	if len(r.Stops) == 0 {
		return 0
	}
	origin := e.inst.FacilityNode(r.Origin)
	prev := origin
	total := 0.0
	for _, st := range r.Stops {
		n := e.stopNode(r.Tier, st)
		total += e.inst.Distance(prev, n)
		prev = n
	}
	total += e.inst.Distance(prev, origin)
	return total
}

// RouteCost is the fixed vehicle cost plus the tier-rate distance cost of a
// route. Empty routes cost nothing.
func (e *Evaluator) RouteCost(r Route) float64 {
	if len(r.Stops) == 0 {
		return 0
	}
	cl := e.class(r.Tier)
	return cl.FixedCost + cl.CostPerDist*e.RouteDistance(r)
}

// Cost recomputes the total solution cost from scratch: opening costs of all
// open facilities plus every route's cost.
func (e *Evaluator) Cost(s *Solution) float64 {
	total := 0.0
	for f, open := range s.Open {
		if open {
			total += e.inst.FacilityAt(f).OpeningCost
		}
	}
	for _, r := range s.Routes {
		total += e.RouteCost(r)
	}
	return total
}

// neighbors returns the matrix nodes before and after position pos in r,
// which is the origin on both route boundaries.
func (e *Evaluator) neighbors(r Route, pos int) (prev, next int) {
	origin := e.inst.FacilityNode(r.Origin)
	prev, next = origin, origin
	if pos > 0 {
		prev = e.stopNode(r.Tier, r.Stops[pos-1])
	}
	if pos < len(r.Stops)-1 {
		next = e.stopNode(r.Tier, r.Stops[pos+1])
	}
	return prev, next
}

// InsertDelta is the cost change of inserting stop before position pos of r
// (pos == len(r.Stops) appends). A previously empty route additionally incurs
// the fixed vehicle cost.
func (e *Evaluator) InsertDelta(r Route, pos, stop int) float64 {
	cl := e.class(r.Tier)
	origin := e.inst.FacilityNode(r.Origin)
	prev, next := origin, origin
	if pos > 0 {
		prev = e.stopNode(r.Tier, r.Stops[pos-1])
	}
	if pos < len(r.Stops) {
		next = e.stopNode(r.Tier, r.Stops[pos])
	}
	n := e.stopNode(r.Tier, stop)
	delta := cl.CostPerDist * (e.inst.Distance(prev, n) + e.inst.Distance(n, next) - e.inst.Distance(prev, next))
	if len(r.Stops) == 0 {
		delta += cl.FixedCost
	}
	return delta
}

// RemoveDelta is the cost change of deleting the stop at position pos of r.
// Removing the last stop releases the fixed vehicle cost.
func (e *Evaluator) RemoveDelta(r Route, pos int) float64 {
	cl := e.class(r.Tier)
	prev, next := e.neighbors(r, pos)
	n := e.stopNode(r.Tier, r.Stops[pos])
	delta := cl.CostPerDist * (e.inst.Distance(prev, next) - e.inst.Distance(prev, n) - e.inst.Distance(n, next))
	if len(r.Stops) == 1 {
		delta -= cl.FixedCost
	}
	return delta
}

// ReplaceDelta is the cost change of substituting the stop at position pos
// of r with stop.
func (e *Evaluator) ReplaceDelta(r Route, pos, stop int) float64 {
	cl := e.class(r.Tier)
	prev, next := e.neighbors(r, pos)
	old := e.stopNode(r.Tier, r.Stops[pos])
	n := e.stopNode(r.Tier, stop)
	return cl.CostPerDist * (e.inst.Distance(prev, n) + e.inst.Distance(n, next) -
		e.inst.Distance(prev, old) - e.inst.Distance(old, next))
}

// SwapWithinDelta is the cost change of exchanging the stops at positions i
// and j of the same route. Adjacent positions are handled explicitly.
func (e *Evaluator) SwapWithinDelta(r Route, i, j int) float64 {
	if i == j {
		return 0
	}
	if i > j {
		i, j = j, i
	}
	cl := e.class(r.Tier)
	si := e.stopNode(r.Tier, r.Stops[i])
	sj := e.stopNode(r.Tier, r.Stops[j])
	prevI, _ := e.neighbors(r, i)
	_, nextJ := e.neighbors(r, j)
	if j == i+1 {
		return cl.CostPerDist * (e.inst.Distance(prevI, sj) + e.inst.Distance(si, nextJ) -
			e.inst.Distance(prevI, si) - e.inst.Distance(sj, nextJ))
	}
	nextI := e.stopNode(r.Tier, r.Stops[i+1])
	prevJ := e.stopNode(r.Tier, r.Stops[j-1])
	return cl.CostPerDist * (e.inst.Distance(prevI, sj) + e.inst.Distance(sj, nextI) +
		e.inst.Distance(prevJ, si) + e.inst.Distance(si, nextJ) -
		e.inst.Distance(prevI, si) - e.inst.Distance(si, nextI) -
		e.inst.Distance(prevJ, sj) - e.inst.Distance(sj, nextJ))
}

// SwapAcrossDelta is the cost change of exchanging the stop at position i of
// route a with the stop at position j of a different route b.
func (e *Evaluator) SwapAcrossDelta(a Route, i int, b Route, j int) float64 {
	return e.ReplaceDelta(a, i, b.Stops[j]) + e.ReplaceDelta(b, j, a.Stops[i])
}

// ReverseDelta is the cost change of reversing the stop segment [i, j] of r.
// Only the two boundary edges change; the distance matrix is symmetric.
func (e *Evaluator) ReverseDelta(r Route, i, j int) float64 {
	if i >= j {
		return 0
	}
	cl := e.class(r.Tier)
	prev, _ := e.neighbors(r, i)
	_, next := e.neighbors(r, j)
	si := e.stopNode(r.Tier, r.Stops[i])
	sj := e.stopNode(r.Tier, r.Stops[j])
	return cl.CostPerDist * (e.inst.Distance(prev, sj) + e.inst.Distance(si, next) -
		e.inst.Distance(prev, si) - e.inst.Distance(sj, next))
}

// ToggleDelta is the opening-cost change of opening or closing facility f.
// Route rebuilds caused by a toggle are charged through the route deltas of
// the rebuild itself.
func (e *Evaluator) ToggleDelta(f int, open bool) float64 {
	c := e.inst.FacilityAt(f).OpeningCost
	if open {
		return c
	}
	return -c
}
