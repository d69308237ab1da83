package opt

import (
	"math/rand"

	"clrpd/internal/clrp"
)

// Neighborhood move kinds, selectable by roulette wheel.
const (
	moveRelocate = iota
	moveSwap
	moveTwoOpt
	moveToggle
	moveRelocateSat
	numMoves
)

var moveNames = [numMoves]string{"relocate", "swap", "two_opt", "toggle_facility", "relocate_satellite"}

const eps = 1e-9

// applyMove mutates s in place and keeps s.Cost in sync through the
// evaluator's delta functions. It returns false when the move is infeasible;
// s may then be half-mutated and must be discarded (moves always operate on
// a clone of the optimizer's current solution).
func applyMove(kind int, s *clrp.Solution, ev *clrp.Evaluator, rng *rand.Rand) bool {
	switch kind {
	case moveRelocate:
		return relocateCustomer(s, ev, rng)
	case moveSwap:
		return swapCustomers(s, ev, rng)
	case moveTwoOpt:
		return twoOptRoute(s, ev, rng)
	case moveToggle:
		return toggleFacility(s, ev, rng)
	case moveRelocateSat:
		return relocateSatellite(s, ev, rng)
	}
	return false
}

// selectMove picks a move index by roulette wheel over the weights.
func selectMove(weights []float64, rng *rand.Rand) int {
	sum := 0.0
	for _, w := range weights {
		sum += w
	}
	if sum <= 0 {
		return rng.Intn(numMoves)
	}
	r := rng.Float64() * sum
	acc := 0.0
	for i, w := range weights {
		acc += w
		if r <= acc {
			return i
		}
	}
	return len(weights) - 1
}

func stopIndex(stops []int, v int) int {
	for i, s := range stops {
		if s == v {
			return i
		}
	}
	return -1
}

// shiftServingLoad adjusts the demand flowing through serving facility f by
// d, propagating through the primary echelon: attaching the satellite to a
// depot when its load becomes positive, detaching it when the load drops to
// zero, and otherwise adjusting the supplying route and depot loads. The
// mutation is atomic: on a false return nothing has changed.
func shiftServingLoad(s *clrp.Solution, ev *clrp.Evaluator, f int, d float64) bool {
	inst := s.Instance()
	old := s.FacLoad[f]
	nl := old + d
	if nl > inst.FacilityAt(f).Capacity+eps {
		return false
	}
	if !inst.TwoEchelon() || inst.IsDepot(f) {
		s.FacLoad[f] = nl
		return true
	}
	sl := f - len(inst.Depots)
	switch {
	case old <= eps && nl > eps:
		if !satAttachBest(s, ev, f, nl, -1) {
			return false
		}
		s.FacLoad[f] = nl
	case nl <= eps:
		s.FacLoad[f] = 0
		satDetach(s, ev, sl, old)
	default:
		ri := s.SatRouteIndex(f)
		dep := s.SatDepot[sl]
		if s.Routes[ri].Load+d > inst.Fleet.Primary.Capacity+eps {
			return false
		}
		if s.FacLoad[dep]+d > inst.FacilityAt(dep).Capacity+eps {
			return false
		}
		s.FacLoad[f] = nl
		s.Routes[ri].Load += d
		s.FacLoad[dep] += d
	}
	return true
}

// satAttachBest inserts satellite f (carrying load) at the cheapest feasible
// position among the primary routes of open depots, or on a fresh route.
// The depot exclude is skipped. FacLoad[f] is left to the caller.
func satAttachBest(s *clrp.Solution, ev *clrp.Evaluator, f int, load float64, exclude int) bool {
	inst := s.Instance()
	pcap := inst.Fleet.Primary.Capacity
	if load > pcap+eps {
		return false
	}
	bestDep, bestRoute, bestPos := -1, -1, -1
	bestDelta := 0.0
	for dep := 0; dep < len(inst.Depots); dep++ {
		if dep == exclude || !s.Open[dep] {
			continue
		}
		if s.FacLoad[dep]+load > inst.FacilityAt(dep).Capacity+eps {
			continue
		}
		for ri, r := range s.Routes {
			if r.Tier != clrp.TierPrimary || r.Origin != dep || r.Load+load > pcap+eps {
				continue
			}
			for pos := 0; pos <= len(r.Stops); pos++ {
				delta := ev.InsertDelta(r, pos, f)
				if bestDep == -1 || delta < bestDelta {
					bestDep, bestRoute, bestPos, bestDelta = dep, ri, pos, delta
				}
			}
		}
		fresh := clrp.Route{Tier: clrp.TierPrimary, Origin: dep}
		delta := ev.InsertDelta(fresh, 0, f)
		if bestDep == -1 || delta < bestDelta {
			bestDep, bestRoute, bestPos, bestDelta = dep, -1, 0, delta
		}
	}
	if bestDep == -1 {
		return false
	}
	attachSat(s, f, load, bestDep, bestRoute, bestPos)
	s.Cost += bestDelta
	return true
}

func attachSat(s *clrp.Solution, f int, load float64, dep, ri, pos int) {
	if ri == -1 {
		s.AddRoute(clrp.Route{Tier: clrp.TierPrimary, Origin: dep, Stops: []int{f}, Load: load})
	} else {
		r := &s.Routes[ri]
		r.Stops = append(r.Stops[:pos], append([]int{f}, r.Stops[pos:]...)...)
		r.Load += load
	}
	s.SatDepot[f-len(s.Instance().Depots)] = dep
	s.FacLoad[dep] += load
}

// satDetach removes satellite sl's stop from its supplying primary route.
// prevLoad is the load it carried; FacLoad of the satellite itself is left
// to the caller.
func satDetach(s *clrp.Solution, ev *clrp.Evaluator, sl int, prevLoad float64) {
	inst := s.Instance()
	f := len(inst.Depots) + sl
	ri := s.SatRouteIndex(f)
	if ri == -1 {
		return
	}
	r := &s.Routes[ri]
	pos := stopIndex(r.Stops, f)
	s.Cost += ev.RemoveDelta(*r, pos)
	r.Stops = append(r.Stops[:pos], r.Stops[pos+1:]...)
	r.Load -= prevLoad
	s.FacLoad[r.Origin] -= prevLoad
	s.SatDepot[sl] = -1
	if len(r.Stops) == 0 {
		s.RemoveRoute(ri)
	}
}

// removeCustomer takes customer c off its route, releasing route, facility
// and upstream loads. Empty routes are dropped.
func removeCustomer(s *clrp.Solution, ev *clrp.Evaluator, c int) {
	inst := s.Instance()
	ri := s.CustRoute[c]
	r := &s.Routes[ri]
	origin := r.Origin
	pos := stopIndex(r.Stops, c)
	dem := inst.Customers[c].Demand
	s.Cost += ev.RemoveDelta(*r, pos)
	r.Stops = append(r.Stops[:pos], r.Stops[pos+1:]...)
	r.Load -= dem
	s.CustRoute[c] = -1
	if len(r.Stops) == 0 {
		s.RemoveRoute(ri)
	}
	// releasing load cannot fail
	shiftServingLoad(s, ev, origin, -dem)
}

// insertCustomerRandom places customer c at a random feasible position on
// facility f: a random capacity-respecting route of f or a fresh route.
func insertCustomerRandom(s *clrp.Solution, ev *clrp.Evaluator, rng *rand.Rand, c, f int) bool {
	inst := s.Instance()
	dem := inst.Customers[c].Demand
	vcap := inst.Fleet.Secondary.Capacity
	cands := []int{-1} // -1 opens a fresh route
	for ri, r := range s.Routes {
		if r.Tier == clrp.TierSecondary && r.Origin == f && r.Load+dem <= vcap+eps {
			cands = append(cands, ri)
		}
	}
	ri := cands[rng.Intn(len(cands))]
	if !shiftServingLoad(s, ev, f, dem) {
		return false
	}
	if ri == -1 {
		fresh := clrp.Route{Tier: clrp.TierSecondary, Origin: f}
		s.Cost += ev.InsertDelta(fresh, 0, c)
		s.CustRoute[c] = s.AddRoute(clrp.Route{Tier: clrp.TierSecondary, Origin: f, Stops: []int{c}, Load: dem})
		return true
	}
	r := &s.Routes[ri]
	pos := rng.Intn(len(r.Stops) + 1)
	s.Cost += ev.InsertDelta(*r, pos, c)
	r.Stops = append(r.Stops[:pos], append([]int{c}, r.Stops[pos:]...)...)
	r.Load += dem
	s.CustRoute[c] = ri
	return true
}

// insertCustomerBest places customer c at the cheapest feasible position on
// any open serving facility except exclude, trying candidates in ascending
// delta order until one admits the upstream load shift.
func insertCustomerBest(s *clrp.Solution, ev *clrp.Evaluator, c, exclude int) bool {
	inst := s.Instance()
	dem := inst.Customers[c].Demand
	vcap := inst.Fleet.Secondary.Capacity
	lo, hi := inst.ServingFacilities()

	type cand struct {
		f, ri, pos int
		delta      float64
	}
	var cands []cand
	for f := lo; f < hi; f++ {
		if f == exclude || !s.Open[f] {
			continue
		}
		if s.FacLoad[f]+dem > inst.FacilityAt(f).Capacity+eps {
			continue
		}
		for ri, r := range s.Routes {
			if r.Tier != clrp.TierSecondary || r.Origin != f || r.Load+dem > vcap+eps {
				continue
			}
			for pos := 0; pos <= len(r.Stops); pos++ {
				cands = append(cands, cand{f, ri, pos, ev.InsertDelta(r, pos, c)})
			}
		}
		fresh := clrp.Route{Tier: clrp.TierSecondary, Origin: f}
		cands = append(cands, cand{f, -1, 0, ev.InsertDelta(fresh, 0, c)})
	}
	// stable selection sort keeps equal-delta candidates in scan order
	for len(cands) > 0 {
		best := 0
		for i := 1; i < len(cands); i++ {
			if cands[i].delta < cands[best].delta {
				best = i
			}
		}
		cd := cands[best]
		cands = append(cands[:best], cands[best+1:]...)
		if !shiftServingLoad(s, ev, cd.f, dem) {
			continue
		}
		if cd.ri == -1 {
			s.Cost += cd.delta
			s.CustRoute[c] = s.AddRoute(clrp.Route{Tier: clrp.TierSecondary, Origin: cd.f, Stops: []int{c}, Load: dem})
		} else {
			r := &s.Routes[cd.ri]
			s.Cost += cd.delta
			r.Stops = append(r.Stops[:cd.pos], append([]int{c}, r.Stops[cd.pos:]...)...)
			r.Load += dem
			s.CustRoute[c] = cd.ri
		}
		return true
	}
	return false
}

// relocateCustomer moves one random customer to a random open serving
// facility (possibly its own, at a new position).
func relocateCustomer(s *clrp.Solution, ev *clrp.Evaluator, rng *rand.Rand) bool {
	inst := s.Instance()
	c := rng.Intn(len(inst.Customers))
	lo, hi := inst.ServingFacilities()
	f := lo + rng.Intn(hi-lo)
	if !s.Open[f] {
		return false
	}
	removeCustomer(s, ev, c)
	return insertCustomerRandom(s, ev, rng, c, f)
}

// swapCustomers exchanges two random customers between their routes.
func swapCustomers(s *clrp.Solution, ev *clrp.Evaluator, rng *rand.Rand) bool {
	inst := s.Instance()
	n := len(inst.Customers)
	if n < 2 {
		return false
	}
	c1 := rng.Intn(n)
	c2 := rng.Intn(n - 1)
	if c2 >= c1 {
		c2++
	}
	r1, r2 := s.CustRoute[c1], s.CustRoute[c2]
	p1 := stopIndex(s.Routes[r1].Stops, c1)
	p2 := stopIndex(s.Routes[r2].Stops, c2)
	if r1 == r2 {
		s.Cost += ev.SwapWithinDelta(s.Routes[r1], p1, p2)
		s.Routes[r1].Stops[p1], s.Routes[r1].Stops[p2] = c2, c1
		return true
	}
	d1 := inst.Customers[c1].Demand
	d2 := inst.Customers[c2].Demand
	diff := d2 - d1
	vcap := inst.Fleet.Secondary.Capacity
	if s.Routes[r1].Load+diff > vcap+eps || s.Routes[r2].Load-diff > vcap+eps {
		return false
	}
	delta := ev.SwapAcrossDelta(s.Routes[r1], p1, s.Routes[r2], p2)
	f1, f2 := s.Routes[r1].Origin, s.Routes[r2].Origin
	if f1 != f2 {
		if !shiftServingLoad(s, ev, f1, diff) {
			return false
		}
		if !shiftServingLoad(s, ev, f2, -diff) {
			return false
		}
	}
	s.Routes[r1].Stops[p1] = c2
	s.Routes[r2].Stops[p2] = c1
	s.Routes[r1].Load += diff
	s.Routes[r2].Load -= diff
	s.CustRoute[c1], s.CustRoute[c2] = r2, r1
	s.Cost += delta
	return true
}

// twoOptRoute reverses a random contiguous segment of a random route.
func twoOptRoute(s *clrp.Solution, ev *clrp.Evaluator, rng *rand.Rand) bool {
	if len(s.Routes) == 0 {
		return false
	}
	ri := rng.Intn(len(s.Routes))
	r := &s.Routes[ri]
	n := len(r.Stops)
	if n < 3 {
		return false
	}
	i := rng.Intn(n - 1)
	j := i + 1 + rng.Intn(n-1-i)
	s.Cost += ev.ReverseDelta(*r, i, j)
	for a, b := i, j; a < b; a, b = a+1, b-1 {
		r.Stops[a], r.Stops[b] = r.Stops[b], r.Stops[a]
	}
	return true
}

// toggleFacility opens or closes one random facility, rebuilding the routes
// the toggle affects.
func toggleFacility(s *clrp.Solution, ev *clrp.Evaluator, rng *rand.Rand) bool {
	inst := s.Instance()
	f := rng.Intn(inst.NumFacilities())
	if s.Open[f] {
		return closeFacility(s, ev, f)
	}
	return openFacility(s, ev, f)
}

// openFacility opens f and pulls in customers that sit closer to it than to
// their current serving facility, while capacity allows.
func openFacility(s *clrp.Solution, ev *clrp.Evaluator, f int) bool {
	inst := s.Instance()
	s.Open[f] = true
	s.Cost += ev.ToggleDelta(f, true)
	lo, hi := inst.ServingFacilities()
	if f < lo || f >= hi {
		// a depot opens bare; relocate-satellite exploits it later
		return true
	}
	fn := inst.FacilityNode(f)
	spare := inst.FacilityAt(f).Capacity
	for c := range inst.Customers {
		dem := inst.Customers[c].Demand
		if dem > spare {
			continue
		}
		cur := s.Routes[s.CustRoute[c]].Origin
		cn := inst.CustomerNode(c)
		if inst.Distance(cn, fn) >= inst.Distance(cn, inst.FacilityNode(cur)) {
			continue
		}
		removeCustomer(s, ev, c)
		if !insertCustomerBest(s, ev, c, -1) {
			return false
		}
		if s.Routes[s.CustRoute[c]].Origin == f {
			spare -= dem
		}
	}
	return true
}

// closeFacility closes f after reinserting everything it serves elsewhere.
// Infeasible when the remaining open facilities cannot absorb the load.
func closeFacility(s *clrp.Solution, ev *clrp.Evaluator, f int) bool {
	inst := s.Instance()
	lo, hi := inst.ServingFacilities()
	if f >= lo && f < hi {
		for {
			moved := false
			for c := range inst.Customers {
				ri := s.CustRoute[c]
				if ri == -1 || s.Routes[ri].Origin != f {
					continue
				}
				removeCustomer(s, ev, c)
				if !insertCustomerBest(s, ev, c, f) {
					return false
				}
				moved = true
			}
			if !moved {
				break
			}
		}
	} else if inst.TwoEchelon() {
		// depot: push its satellites onto other depots
		for sl := range inst.Satellites {
			if s.SatDepot[sl] != f {
				continue
			}
			sf := len(inst.Depots) + sl
			load := s.FacLoad[sf]
			satDetach(s, ev, sl, load)
			if !satAttachBest(s, ev, sf, load, f) {
				return false
			}
		}
	}
	s.Open[f] = false
	s.Cost += ev.ToggleDelta(f, false)
	return true
}

// relocateSatellite reattaches one random loaded satellite to a random open
// depot at a random position (two-echelon instances only).
func relocateSatellite(s *clrp.Solution, ev *clrp.Evaluator, rng *rand.Rand) bool {
	inst := s.Instance()
	if !inst.TwoEchelon() || len(inst.Depots) < 1 {
		return false
	}
	sl := rng.Intn(len(inst.Satellites))
	sf := len(inst.Depots) + sl
	load := s.FacLoad[sf]
	if load <= eps {
		return false
	}
	dep := rng.Intn(len(inst.Depots))
	if !s.Open[dep] {
		return false
	}
	if s.SatDepot[sl] != dep && s.FacLoad[dep]+load > inst.FacilityAt(dep).Capacity+eps {
		return false
	}
	satDetach(s, ev, sl, load)
	pcap := inst.Fleet.Primary.Capacity
	cands := []int{-1}
	for ri, r := range s.Routes {
		if r.Tier == clrp.TierPrimary && r.Origin == dep && r.Load+load <= pcap+eps {
			cands = append(cands, ri)
		}
	}
	ri := cands[rng.Intn(len(cands))]
	if ri == -1 {
		fresh := clrp.Route{Tier: clrp.TierPrimary, Origin: dep}
		s.Cost += ev.InsertDelta(fresh, 0, sf)
		attachSat(s, sf, load, dep, -1, 0)
		// attachSat added the depot load; the fresh-route delta is already in
		return true
	}
	r := &s.Routes[ri]
	pos := rng.Intn(len(r.Stops) + 1)
	s.Cost += ev.InsertDelta(*r, pos, sf)
	attachSat(s, sf, load, dep, ri, pos)
	return true
}
