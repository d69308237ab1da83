package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"clrpd/internal/clrp"
	"clrpd/internal/loader"
	"clrpd/internal/metrics"
	"clrpd/internal/model"
	"clrpd/internal/opt"
	"clrpd/internal/store"
	"clrpd/internal/webhooks"
)

// InstancesHandler handles POST/GET /v1/instances
func (s *Server) InstancesHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var in model.InstanceIn
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
			return
		}
		inst, err := buildInstance(in)
		if err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid instance", err.Error(), r.URL.Path)
			return
		}
		out, err := s.Store.SaveInstance(r.Context(), inst)
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "Save instance failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusCreated, out)
	case http.MethodGet:
		cursor := r.URL.Query().Get("cursor")
		limit := queryInt(r, "limit", 100)
		items, next, err := s.Store.ListInstances(r.Context(), cursor, limit)
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "List instances failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items, "nextCursor": next})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// InstanceImportHandler handles POST /v1/instances/import. The body is a raw
// Prodhon/Tuzun benchmark file; the instance name comes from the name query
// parameter.
func (s *Server) InstanceImportHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	name := r.URL.Query().Get("name")
	if name == "" {
		writeProblem(w, http.StatusBadRequest, "Missing name", "name query parameter is required", r.URL.Path)
		return
	}
	inst, err := loader.Parse(name, r.Body)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid instance file", err.Error(), r.URL.Path)
		return
	}
	out, err := s.Store.SaveInstance(r.Context(), inst)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Save instance failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

// InstanceByIDHandler handles GET/DELETE /v1/instances/{id}
func (s *Server) InstanceByIDHandler(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/v1/instances/")
	if id == "" || strings.Contains(id, "/") {
		writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
		return
	}
	switch r.Method {
	case http.MethodGet:
		_, meta, err := s.Store.GetInstance(r.Context(), id)
		if err != nil {
			writeProblem(w, http.StatusNotFound, "Instance not found", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, meta)
	case http.MethodDelete:
		p := s.getPrincipal(r)
		if !p.IsAdmin() {
			writeProblem(w, http.StatusForbidden, "Forbidden", "admin required", r.URL.Path)
			return
		}
		if err := s.Store.DeleteInstance(r.Context(), id); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				writeProblem(w, http.StatusNotFound, "Instance not found", err.Error(), r.URL.Path)
				return
			}
			writeProblem(w, http.StatusInternalServerError, "Delete instance failed", err.Error(), r.URL.Path)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// SolveHandler handles POST /v1/solve. Runs execute asynchronously unless the
// request sets wait; either way the response carries the run record.
func (s *Server) SolveHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !s.limiter.Allow() {
		writeProblem(w, http.StatusTooManyRequests, "Rate limit exceeded", "retry later", r.URL.Path)
		return
	}
	p := s.getPrincipal(r)
	if !(p.IsAdmin() || p.Role == "operator") {
		writeProblem(w, http.StatusForbidden, "Forbidden", "operator or admin required", r.URL.Path)
		return
	}
	var req model.SolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return
	}
	if err := validateSolveRequest(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid solve request", err.Error(), r.URL.Path)
		return
	}
	inst, _, err := s.Store.GetInstance(r.Context(), req.InstanceID)
	if err != nil {
		writeProblem(w, http.StatusNotFound, "Instance not found", err.Error(), r.URL.Path)
		return
	}
	algo := req.Algorithm
	if algo == "" {
		algo = "sa"
	}
	run := model.Run{
		ID:         uuid.New().String(),
		InstanceID: req.InstanceID,
		Algorithm:  algo,
		Status:     model.RunPending,
		Seed:       req.Seed,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.Store.CreateRun(r.Context(), run); err != nil {
		writeProblem(w, http.StatusInternalServerError, "Create run failed", err.Error(), r.URL.Path)
		return
	}
	if req.Wait {
		s.executeRun(run, inst, req)
		done, err := s.Store.GetRun(r.Context(), run.ID)
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "Get run failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, done)
		return
	}
	go s.executeRun(run, inst, req)
	writeJSON(w, http.StatusAccepted, run)
}

// executeRun drives one solver run to completion, persisting state
// transitions and fanning progress out through the broker.
func (s *Server) executeRun(run model.Run, inst *clrp.Instance, req model.SolveRequest) {
	// detached from the request: the run outlives the HTTP exchange
	ctx := context.Background()

	run.Status = model.RunRunning
	_ = s.Store.UpdateRun(ctx, run)

	sink := opt.ProgressFunc(func(ev opt.ProgressEvent) {
		s.Broker.Publish(run.ID, SSEEvent{Type: "run.progress", Data: map[string]any{
			"runId":       run.ID,
			"iteration":   ev.Iteration,
			"temperature": ev.Temperature,
			"currentCost": ev.CurrentCost,
			"bestCost":    ev.BestCost,
			"accepted":    ev.Accepted,
		}})
	})

	cfg := s.solveConfig(req)
	var solver opt.Solver
	switch run.Algorithm {
	case "greedy":
		solver = opt.Greedy{}
	case "sa_portfolio":
		seeds := req.Seeds
		if len(seeds) == 0 {
			seeds = defaultSeeds(req.Seed)
		}
		solver = &opt.Portfolio{Cfg: cfg, Seeds: seeds, Sink: sink}
	default:
		solver = &opt.Annealer{Cfg: cfg, Seed: req.Seed, Sink: sink}
	}

	res, err := solver.Solve(ctx, inst)
	now := time.Now().UTC()
	run.FinishedAt = &now
	if err != nil {
		run.Status = model.RunFailed
		run.Error = err.Error()
		_ = s.Store.UpdateRun(ctx, run)
		metrics.SolverRuns.WithLabelValues(run.Algorithm, "failed").Inc()
		data := map[string]any{"runId": run.ID, "instanceId": run.InstanceID, "error": run.Error}
		s.Pub.Emit(ctx, webhooks.EventRunFailed, data)
		s.Broker.Publish(run.ID, SSEEvent{Type: "run.failed", Data: data})
		return
	}

	run.Status = model.RunCompleted
	run.Seed = res.Seed
	run.Cost = res.Cost
	run.Iterations = res.Iterations
	run.Accepted = res.Accepted
	run.AcceptedWorse = res.AcceptedWorse
	run.Infeasible = res.Infeasible
	run.Reason = string(res.Reason)
	run.DurationMs = res.Duration.Milliseconds()
	run.Solution = solutionOut(inst, res.Solution)
	_ = s.Store.UpdateRun(ctx, run)

	metrics.SolverRuns.WithLabelValues(run.Algorithm, "completed").Inc()
	metrics.SolverDuration.WithLabelValues(run.Algorithm).Observe(res.Duration.Seconds())
	metrics.SolverIterations.WithLabelValues(run.Algorithm).Observe(float64(res.Iterations))
	opt.RecordResult(inst.Name, run.Algorithm, res)

	data := map[string]any{
		"runId":      run.ID,
		"instanceId": run.InstanceID,
		"cost":       run.Cost,
		"iterations": run.Iterations,
		"reason":     run.Reason,
	}
	s.Pub.Emit(ctx, webhooks.EventRunCompleted, data)
	s.Broker.Publish(run.ID, SSEEvent{Type: "run.completed", Data: data})
}

// solveConfig overlays the request's non-zero tuning fields on the server
// defaults.
func (s *Server) solveConfig(req model.SolveRequest) opt.Config {
	cfg := s.Solver
	if req.InitialTemp > 0 {
		cfg.InitialTemp = req.InitialTemp
	}
	if req.FinalTemp > 0 {
		cfg.FinalTemp = req.FinalTemp
	}
	if req.Cooling > 0 {
		cfg.Cooling = req.Cooling
	}
	if req.K > 0 {
		cfg.K = req.K
	}
	if req.IterationsPerNode > 0 {
		cfg.IterationsPerNode = req.IterationsPerNode
	}
	if req.MaxIterations > 0 {
		cfg.MaxIterations = req.MaxIterations
	}
	if req.Stagnation > 0 {
		cfg.Stagnation = req.Stagnation
	}
	if req.TimeBudgetMs > 0 {
		cfg.TimeBudget = time.Duration(req.TimeBudgetMs) * time.Millisecond
	}
	if len(req.MoveWeights) > 0 {
		cfg.MoveWeights = req.MoveWeights
	}
	return cfg
}

// defaultSeeds spreads a portfolio around the requested seed, or around 1
// when none was given.
func defaultSeeds(seed int64) []int64 {
	if seed == 0 {
		seed = 1
	}
	return []int64{seed, seed + 1, seed + 2, seed + 3}
}

// solutionOut converts a solver solution to its wire form, resolving node
// indices back to facility and customer IDs.
func solutionOut(inst *clrp.Instance, sol *clrp.Solution) *model.SolutionOut {
	if sol == nil {
		return nil
	}
	ev := clrp.NewEvaluator(inst)
	out := &model.SolutionOut{Cost: sol.Cost}
	for f := 0; f < inst.NumFacilities(); f++ {
		if sol.Open[f] {
			out.OpenFacilities = append(out.OpenFacilities, inst.FacilityAt(f).ID)
		}
	}
	for _, rt := range sol.Routes {
		ro := model.RouteOut{
			Tier:     rt.Tier.String(),
			Origin:   inst.FacilityAt(rt.Origin).ID,
			Load:     rt.Load,
			Distance: ev.RouteDistance(rt),
			Cost:     ev.RouteCost(rt),
		}
		for _, stop := range rt.Stops {
			if rt.Tier == clrp.TierPrimary {
				ro.Stops = append(ro.Stops, inst.FacilityAt(stop).ID)
			} else {
				ro.Stops = append(ro.Stops, inst.Customers[stop].ID)
			}
		}
		out.Routes = append(out.Routes, ro)
	}
	return out
}

// RunsHandler handles GET /v1/runs
func (s *Server) RunsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	instanceID := r.URL.Query().Get("instanceId")
	status := r.URL.Query().Get("status")
	cursor := r.URL.Query().Get("cursor")
	limit := queryInt(r, "limit", 100)
	items, next, err := s.Store.ListRuns(r.Context(), instanceID, status, cursor, limit)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "List runs failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "nextCursor": next})
}

// RunByIDHandler handles GET /v1/runs/{id}, /v1/runs/{id}/solution,
// /v1/runs/{id}/events/stream (SSE) and /v1/runs/{id}/events/ws (WebSocket).
func (s *Server) RunByIDHandler(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/runs/")
	if rest == r.URL.Path || rest == "" {
		writeProblem(w, http.StatusNotFound, "Not Found", "missing id", r.URL.Path)
		return
	}
	parts := strings.Split(rest, "/")
	id := parts[0]

	if len(parts) == 3 && parts[1] == "events" && parts[2] == "stream" {
		s.runEventsSSE(w, r, id)
		return
	}
	if len(parts) == 3 && parts[1] == "events" && parts[2] == "ws" {
		s.RunEventsWSHandler(w, r, id)
		return
	}
	if len(parts) == 2 && parts[1] == "solution" {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		run, err := s.Store.GetRun(r.Context(), id)
		if err != nil {
			writeProblem(w, http.StatusNotFound, "Run not found", err.Error(), r.URL.Path)
			return
		}
		if run.Solution == nil {
			writeProblem(w, http.StatusNotFound, "Solution not available", "run status: "+run.Status, r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, run.Solution)
		return
	}
	if len(parts) != 1 {
		writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	run, err := s.Store.GetRun(r.Context(), id)
	if err != nil {
		writeProblem(w, http.StatusNotFound, "Run not found", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// runEventsSSE streams run progress and lifecycle events over SSE with
// periodic heartbeats.
func (s *Server) runEventsSSE(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeProblem(w, http.StatusInternalServerError, "Streaming unsupported", "", r.URL.Path)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := s.Broker.Subscribe(id)
	defer s.Broker.Unsubscribe(id, ch)

	heartbeat := func() {
		fmt.Fprintf(w, "event: heartbeat\n")
		fmt.Fprintf(w, "data: {\"runId\":\"%s\",\"ts\":\"%s\"}\n\n", id, time.Now().Format(time.RFC3339))
		flusher.Flush()
	}
	heartbeat()

	notify := r.Context().Done()
	for {
		select {
		case <-notify:
			return
		case evt := <-ch:
			b, _ := json.Marshal(evt.Data)
			fmt.Fprintf(w, "event: %s\n", evt.Type)
			fmt.Fprintf(w, "data: %s\n\n", string(b))
			flusher.Flush()
		case <-time.After(15 * time.Second):
			heartbeat()
		}
	}
}

// SubscriptionsHandler handles POST/GET /v1/subscriptions
func (s *Server) SubscriptionsHandler(w http.ResponseWriter, r *http.Request) {
	p := s.getPrincipal(r)
	if !p.IsAdmin() {
		writeProblem(w, http.StatusForbidden, "Forbidden", "admin required", r.URL.Path)
		return
	}
	switch r.Method {
	case http.MethodPost:
		var req model.SubscriptionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
			return
		}
		if req.URL == "" || len(req.Events) == 0 {
			writeProblem(w, http.StatusBadRequest, "Invalid subscription", "url and events are required", r.URL.Path)
			return
		}
		sub, err := s.Store.CreateSubscription(r.Context(), req)
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "Create subscription failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusCreated, sub)
	case http.MethodGet:
		cursor := r.URL.Query().Get("cursor")
		limit := queryInt(r, "limit", 100)
		items, next, err := s.Store.ListSubscriptions(r.Context(), cursor, limit)
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "List subscriptions failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items, "nextCursor": next})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// SubscriptionByIDHandler handles DELETE /v1/subscriptions/{id}
func (s *Server) SubscriptionByIDHandler(w http.ResponseWriter, r *http.Request) {
	if !strings.HasPrefix(r.URL.Path, "/v1/subscriptions/") {
		writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
		return
	}
	if r.Method != http.MethodDelete {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	p := s.getPrincipal(r)
	if !p.IsAdmin() {
		writeProblem(w, http.StatusForbidden, "Forbidden", "admin required", r.URL.Path)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/v1/subscriptions/")
	if err := s.Store.DeleteSubscription(r.Context(), id); err != nil {
		writeProblem(w, http.StatusInternalServerError, "Delete subscription failed", err.Error(), r.URL.Path)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// WebhookDeliveriesHandler handles GET /v1/admin/webhook-deliveries
func (s *Server) WebhookDeliveriesHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/v1/admin/webhook-deliveries" {
		writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
		return
	}
	p := s.getPrincipal(r)
	if !p.IsAdmin() {
		writeProblem(w, http.StatusForbidden, "Forbidden", "admin required", r.URL.Path)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	status := r.URL.Query().Get("status")
	cursor := r.URL.Query().Get("cursor")
	limit := queryInt(r, "limit", 100)
	items, next, err := s.Store.ListWebhookDeliveries(r.Context(), status, cursor, limit)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "List deliveries failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "nextCursor": next})
}

// WebhookDeliveryRetryHandler handles POST /v1/admin/webhook-deliveries/{id}/retry
func (s *Server) WebhookDeliveryRetryHandler(w http.ResponseWriter, r *http.Request) {
	if !strings.HasPrefix(r.URL.Path, "/v1/admin/webhook-deliveries/") || !strings.HasSuffix(r.URL.Path, "/retry") {
		writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
		return
	}
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	p := s.getPrincipal(r)
	if !p.IsAdmin() {
		writeProblem(w, http.StatusForbidden, "Forbidden", "admin required", r.URL.Path)
		return
	}
	id := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/v1/admin/webhook-deliveries/"), "/retry")
	if err := s.Store.RetryWebhookDelivery(r.Context(), id); err != nil {
		writeProblem(w, http.StatusInternalServerError, "Retry delivery failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]int{"accepted": 1})
}

// SolverResultsHandler handles GET /v1/admin/solver-results. It reports the
// in-memory best result per algorithm for one instance name, so solvers can
// be compared without reloading run history.
func (s *Server) SolverResultsHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/v1/admin/solver-results" || r.Method != http.MethodGet {
		writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
		return
	}
	p := s.getPrincipal(r)
	if !p.IsAdmin() {
		writeProblem(w, http.StatusForbidden, "Forbidden", "admin required", r.URL.Path)
		return
	}
	name := r.URL.Query().Get("instance")
	if name == "" {
		writeProblem(w, http.StatusBadRequest, "Missing instance", "instance query parameter is required", r.URL.Path)
		return
	}
	items := []map[string]any{}
	for algo, res := range opt.GetResults(name) {
		items = append(items, map[string]any{
			"algo":          algo,
			"cost":          res.Cost,
			"iterations":    res.Iterations,
			"accepted":      res.Accepted,
			"acceptedWorse": res.AcceptedWorse,
			"infeasible":    res.Infeasible,
			"durationMs":    res.Duration.Milliseconds(),
			"reason":        string(res.Reason),
			"seed":          res.Seed,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// Health
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	// Check DB connectivity when using the Postgres store
	type pinger interface{ Ping(ctx context.Context) error }
	if pg, ok := s.Store.(pinger); ok {
		ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
		defer cancel()
		if err := pg.Ping(ctx); err != nil {
			writeProblem(w, http.StatusServiceUnavailable, "Not Ready", err.Error(), r.URL.Path)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
