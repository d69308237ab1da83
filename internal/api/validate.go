package api

import (
	"fmt"

	"clrpd/internal/clrp"
	"clrpd/internal/model"
)

func validateSolveRequest(req *model.SolveRequest) error {
	if req.InstanceID == "" {
		return fmt.Errorf("instanceId is required")
	}
	switch req.Algorithm {
	case "", "greedy", "sa", "sa_portfolio":
	default:
		return fmt.Errorf("invalid algorithm: %s", req.Algorithm)
	}
	if len(req.Seeds) > 0 && req.Algorithm != "sa_portfolio" {
		return fmt.Errorf("seeds is only valid for sa_portfolio")
	}
	if req.TimeBudgetMs < 0 {
		return fmt.Errorf("timeBudgetMs must be >= 0")
	}
	if req.MaxIterations < 0 {
		return fmt.Errorf("maxIterations must be >= 0")
	}
	if req.IterationsPerNode < 0 {
		return fmt.Errorf("iterationsPerNode must be >= 0")
	}
	if req.Stagnation < 0 {
		return fmt.Errorf("stagnation must be >= 0")
	}
	if req.Cooling != 0 && (req.Cooling <= 0 || req.Cooling >= 1) {
		return fmt.Errorf("cooling must be in (0,1)")
	}
	if req.InitialTemp < 0 || req.FinalTemp < 0 || req.K < 0 {
		return fmt.Errorf("initialTemp, finalTemp and k must be >= 0")
	}
	for i, w := range req.MoveWeights {
		if w < 0 {
			return fmt.Errorf("moveWeights[%d] must be >= 0", i)
		}
	}
	return nil
}

// buildInstance converts the wire form to a validated clrp.Instance. IDs left
// empty get positional defaults (d1.., s1.., c1..).
func buildInstance(in model.InstanceIn) (*clrp.Instance, error) {
	if in.Name == "" {
		return nil, fmt.Errorf("name is required")
	}
	depots := make([]clrp.Facility, len(in.Depots))
	for i, f := range in.Depots {
		depots[i] = toFacility(f, "d", i)
	}
	sats := make([]clrp.Facility, len(in.Satellites))
	for i, f := range in.Satellites {
		sats[i] = toFacility(f, "s", i)
	}
	customers := make([]clrp.Customer, len(in.Customers))
	for i, c := range in.Customers {
		id := c.ID
		if id == "" {
			id = fmt.Sprintf("c%d", i+1)
		}
		customers[i] = clrp.Customer{ID: id, X: c.X, Y: c.Y, Demand: c.Demand}
	}
	fleet := clrp.Fleet{Secondary: toVehicleClass(in.Fleet.Secondary)}
	if in.Fleet.Primary != nil {
		fleet.Primary = toVehicleClass(*in.Fleet.Primary)
	}
	return clrp.NewInstance(in.Name, depots, sats, customers, fleet)
}

func toFacility(f model.FacilityIn, prefix string, i int) clrp.Facility {
	id := f.ID
	if id == "" {
		id = fmt.Sprintf("%s%d", prefix, i+1)
	}
	return clrp.Facility{ID: id, X: f.X, Y: f.Y, OpeningCost: f.OpeningCost, Capacity: f.Capacity}
}

func toVehicleClass(v model.VehicleClassIn) clrp.VehicleClass {
	rate := v.CostPerDist
	if rate == 0 {
		rate = 1
	}
	return clrp.VehicleClass{Capacity: v.Capacity, FixedCost: v.FixedCost, CostPerDist: rate}
}
