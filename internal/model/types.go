package model

import "time"

// Wire types for the HTTP API.

type FacilityIn struct {
	ID          string  `json:"id,omitempty"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	OpeningCost float64 `json:"openingCost"`
	Capacity    float64 `json:"capacity"`
}

type CustomerIn struct {
	ID     string  `json:"id,omitempty"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Demand float64 `json:"demand"`
}

type VehicleClassIn struct {
	Capacity    float64 `json:"capacity"`
	FixedCost   float64 `json:"fixedCost,omitempty"`
	CostPerDist float64 `json:"costPerDist,omitempty"`
}

type InstanceIn struct {
	Name       string          `json:"name"`
	Depots     []FacilityIn    `json:"depots"`
	Satellites []FacilityIn    `json:"satellites,omitempty"`
	Customers  []CustomerIn    `json:"customers"`
	Fleet      FleetIn         `json:"fleet"`
}

type FleetIn struct {
	Primary   *VehicleClassIn `json:"primary,omitempty"`
	Secondary VehicleClassIn  `json:"secondary"`
}

type InstanceOut struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Depots      int       `json:"depots"`
	Satellites  int       `json:"satellites,omitempty"`
	Customers   int       `json:"customers"`
	TotalDemand float64   `json:"totalDemand"`
	TwoEchelon  bool      `json:"twoEchelon"`
	CreatedAt   time.Time `json:"createdAt"`
}

// SolveRequest starts an optimizer run. Zero-valued tuning fields fall back
// to the server's solver defaults.
type SolveRequest struct {
	InstanceID        string        `json:"instanceId"`
	Algorithm         string        `json:"algorithm,omitempty"` // greedy, sa, sa_portfolio
	Seed              int64         `json:"seed,omitempty"`
	Seeds             []int64       `json:"seeds,omitempty"` // sa_portfolio only
	InitialTemp       float64       `json:"initialTemp,omitempty"`
	FinalTemp         float64       `json:"finalTemp,omitempty"`
	Cooling           float64       `json:"cooling,omitempty"`
	K                 float64       `json:"k,omitempty"`
	IterationsPerNode int           `json:"iterationsPerNode,omitempty"`
	MaxIterations     int           `json:"maxIterations,omitempty"`
	Stagnation        int           `json:"stagnation,omitempty"`
	TimeBudgetMs      int           `json:"timeBudgetMs,omitempty"`
	MoveWeights       []float64     `json:"moveWeights,omitempty"`
	// Wait makes the request block until the run finishes instead of
	// returning the pending run immediately.
	Wait bool `json:"wait,omitempty"`
}

// Run statuses.
const (
	RunPending   = "pending"
	RunRunning   = "running"
	RunCompleted = "completed"
	RunFailed    = "failed"
)

type Run struct {
	ID            string       `json:"id"`
	InstanceID    string       `json:"instanceId"`
	Algorithm     string       `json:"algorithm"`
	Status        string       `json:"status"`
	Seed          int64        `json:"seed,omitempty"`
	Cost          float64      `json:"cost,omitempty"`
	Iterations    int          `json:"iterations,omitempty"`
	Accepted      int          `json:"accepted,omitempty"`
	AcceptedWorse int          `json:"acceptedWorse,omitempty"`
	Infeasible    int          `json:"infeasible,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	DurationMs    int64        `json:"durationMs,omitempty"`
	Error         string       `json:"error,omitempty"`
	Solution      *SolutionOut `json:"solution,omitempty"`
	CreatedAt     time.Time    `json:"createdAt"`
	FinishedAt    *time.Time   `json:"finishedAt,omitempty"`
}

type SolutionOut struct {
	Cost           float64    `json:"cost"`
	OpenFacilities []string   `json:"openFacilities"`
	Routes         []RouteOut `json:"routes"`
}

type RouteOut struct {
	Tier     string   `json:"tier"` // primary, secondary
	Origin   string   `json:"origin"`
	Stops    []string `json:"stops"`
	Load     float64  `json:"load"`
	Distance float64  `json:"distance"`
	Cost     float64  `json:"cost"`
}

// ProgressOut is the per-run optimizer progress sample pushed over SSE,
// WebSocket and the event broker.
type ProgressOut struct {
	RunID       string  `json:"runId"`
	Iteration   int     `json:"iteration"`
	Temperature float64 `json:"temperature"`
	CurrentCost float64 `json:"currentCost"`
	BestCost    float64 `json:"bestCost"`
	Accepted    bool    `json:"accepted"`
}

// Webhook subscriptions.

type SubscriptionRequest struct {
	URL    string   `json:"url"`
	Events []string `json:"events"`
	Secret string   `json:"secret"`
}

type Subscription struct {
	ID     string   `json:"id"`
	URL    string   `json:"url"`
	Events []string `json:"events"`
	Secret string   `json:"secret,omitempty"`
}
