package opt

import "clrpd/internal/clrp"

// localSearch runs deterministic intra-route improvement over every route:
// best-improvement segment reversal plus single-stop relocation, repeated
// until no pass improves. Loads and facility assignments are untouched, so
// feasibility is preserved by construction.
func localSearch(s *clrp.Solution, ev *clrp.Evaluator) {
	for improved := true; improved; {
		improved = false
		for ri := range s.Routes {
			if twoOptImproveRoute(s, ev, ri) {
				improved = true
			}
			if orOptImproveRoute(s, ev, ri) {
				improved = true
			}
		}
	}
}

func twoOptImproveRoute(s *clrp.Solution, ev *clrp.Evaluator, ri int) bool {
	r := &s.Routes[ri]
	improved := false
	for again := true; again; {
		again = false
		n := len(r.Stops)
		for i := 0; i < n-1; i++ {
			for j := i + 1; j < n; j++ {
				delta := ev.ReverseDelta(*r, i, j)
				if delta < -eps {
					for a, b := i, j; a < b; a, b = a+1, b-1 {
						r.Stops[a], r.Stops[b] = r.Stops[b], r.Stops[a]
					}
					s.Cost += delta
					again, improved = true, true
				}
			}
		}
	}
	return improved
}

func orOptImproveRoute(s *clrp.Solution, ev *clrp.Evaluator, ri int) bool {
	r := &s.Routes[ri]
	improved := false
	for again := true; again; {
		again = false
		for i := 0; i < len(r.Stops); i++ {
			stop := r.Stops[i]
			remove := ev.RemoveDelta(*r, i)
			rest := clrp.Route{Tier: r.Tier, Origin: r.Origin}
			rest.Stops = append(rest.Stops, r.Stops[:i]...)
			rest.Stops = append(rest.Stops, r.Stops[i+1:]...)
			for pos := 0; pos <= len(rest.Stops); pos++ {
				if pos == i {
					continue
				}
				delta := remove + ev.InsertDelta(rest, pos, stop)
				if delta < -eps {
					stops := make([]int, 0, len(r.Stops))
					stops = append(stops, rest.Stops[:pos]...)
					stops = append(stops, stop)
					stops = append(stops, rest.Stops[pos:]...)
					r.Stops = stops
					s.Cost += delta
					again, improved = true, true
					break
				}
			}
			if again {
				break
			}
		}
	}
	return improved
}
