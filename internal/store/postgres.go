package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"clrpd/internal/clrp"
	"clrpd/internal/model"
)

type Postgres struct {
	db *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	p := &Postgres{db: db}
	if err := p.ensureSchema(); err != nil {
		return nil, err
	}
	return p, nil
}

// Ping reports database connectivity; the readiness probe uses it.
func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

func (p *Postgres) ensureSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS instances (
			id UUID PRIMARY KEY,
			name TEXT NOT NULL,
			data JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS runs (
			id UUID PRIMARY KEY,
			instance_id UUID NOT NULL,
			algorithm TEXT NOT NULL,
			status TEXT NOT NULL,
			seed BIGINT NOT NULL DEFAULT 0,
			cost DOUBLE PRECISION NOT NULL DEFAULT 0,
			iterations INT NOT NULL DEFAULT 0,
			accepted INT NOT NULL DEFAULT 0,
			accepted_worse INT NOT NULL DEFAULT 0,
			infeasible INT NOT NULL DEFAULT 0,
			reason TEXT,
			duration_ms BIGINT NOT NULL DEFAULT 0,
			error TEXT,
			solution JSONB,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			finished_at TIMESTAMPTZ
		)`,
		`CREATE INDEX IF NOT EXISTS runs_instance_idx ON runs (instance_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS subscriptions (
			id UUID PRIMARY KEY,
			url TEXT NOT NULL,
			events JSONB NOT NULL,
			secret TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS webhook_deliveries (
			id UUID PRIMARY KEY,
			subscription_id UUID,
			event_type TEXT NOT NULL,
			url TEXT NOT NULL,
			secret TEXT,
			payload BYTEA NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			attempts INT NOT NULL DEFAULT 0,
			next_attempt_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			last_error TEXT,
			response_code INT NOT NULL DEFAULT 0,
			latency_ms INT NOT NULL DEFAULT 0,
			delivered_at TIMESTAMPTZ,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
	}
	for _, s := range stmts {
		if _, err := p.db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (p *Postgres) SaveInstance(ctx context.Context, inst *clrp.Instance) (model.InstanceOut, error) {
	id := uuid.New().String()
	now := time.Now().UTC()
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO instances (id, name, data, created_at) VALUES ($1,$2,$3,$4)`,
		id, inst.Name, encodeInstance(inst), now)
	if err != nil {
		return model.InstanceOut{}, err
	}
	return instanceMeta(id, inst, now), nil
}

func (p *Postgres) GetInstance(ctx context.Context, id string) (*clrp.Instance, model.InstanceOut, error) {
	var data []byte
	var createdAt time.Time
	err := p.db.QueryRowContext(ctx,
		`SELECT data, created_at FROM instances WHERE id=$1`, id).Scan(&data, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.InstanceOut{}, ErrNotFound
	}
	if err != nil {
		return nil, model.InstanceOut{}, err
	}
	inst, err := decodeInstance(data)
	if err != nil {
		return nil, model.InstanceOut{}, err
	}
	return inst, instanceMeta(id, inst, createdAt), nil
}

func (p *Postgres) ListInstances(ctx context.Context, cursor string, limit int) ([]model.InstanceOut, string, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var rows *sql.Rows
	var err error
	if cursor != "" {
		rows, err = p.db.QueryContext(ctx,
			`SELECT id::text, data, created_at FROM instances WHERE id::text > $1 ORDER BY id LIMIT $2`, cursor, limit)
	} else {
		rows, err = p.db.QueryContext(ctx,
			`SELECT id::text, data, created_at FROM instances ORDER BY id LIMIT $1`, limit)
	}
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()
	out := []model.InstanceOut{}
	for rows.Next() {
		var id string
		var data []byte
		var createdAt time.Time
		if err := rows.Scan(&id, &data, &createdAt); err != nil {
			return nil, "", err
		}
		inst, err := decodeInstance(data)
		if err != nil {
			return nil, "", err
		}
		out = append(out, instanceMeta(id, inst, createdAt))
	}
	next := ""
	if len(out) == limit {
		next = out[len(out)-1].ID
	}
	return out, next, rows.Err()
}

func (p *Postgres) DeleteInstance(ctx context.Context, id string) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM instances WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) CreateRun(ctx context.Context, run model.Run) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO runs (id, instance_id, algorithm, status, seed, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6)`,
		run.ID, run.InstanceID, run.Algorithm, run.Status, run.Seed, run.CreatedAt)
	return err
}

func (p *Postgres) UpdateRun(ctx context.Context, run model.Run) error {
	res, err := p.db.ExecContext(ctx,
		`UPDATE runs SET status=$2, seed=$3, cost=$4, iterations=$5, accepted=$6,
		        accepted_worse=$7, infeasible=$8, reason=$9, duration_ms=$10,
		        error=$11, solution=$12, finished_at=$13
		 WHERE id=$1`,
		run.ID, run.Status, run.Seed, run.Cost, run.Iterations, run.Accepted,
		run.AcceptedWorse, run.Infeasible, nullIfEmpty(run.Reason), run.DurationMs,
		nullIfEmpty(run.Error), solutionJSON(run.Solution), run.FinishedAt)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) GetRun(ctx context.Context, id string) (model.Run, error) {
	row := p.db.QueryRowContext(ctx,
		`SELECT id::text, instance_id::text, algorithm, status, seed, cost, iterations,
		        accepted, accepted_worse, infeasible, reason, duration_ms, error,
		        solution, created_at, finished_at
		 FROM runs WHERE id=$1`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Run{}, ErrNotFound
	}
	return run, err
}

func (p *Postgres) ListRuns(ctx context.Context, instanceID, status, cursor string, limit int) ([]model.Run, string, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	q := `SELECT id::text, instance_id::text, algorithm, status, seed, cost, iterations,
	             accepted, accepted_worse, infeasible, reason, duration_ms, error,
	             solution, created_at, finished_at
	      FROM runs WHERE 1=1`
	args := []any{}
	if instanceID != "" {
		args = append(args, instanceID)
		q += ` AND instance_id=$` + itoa(len(args))
	}
	if status != "" {
		args = append(args, status)
		q += ` AND status=$` + itoa(len(args))
	}
	if cursor != "" {
		args = append(args, cursor)
		q += ` AND id::text > $` + itoa(len(args))
	}
	args = append(args, limit)
	q += ` ORDER BY id LIMIT $` + itoa(len(args))
	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()
	out := []model.Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, "", err
		}
		out = append(out, run)
	}
	next := ""
	if len(out) == limit {
		next = out[len(out)-1].ID
	}
	return out, next, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (model.Run, error) {
	var run model.Run
	var reason, errMsg sql.NullString
	var solution []byte
	var finishedAt sql.NullTime
	err := row.Scan(&run.ID, &run.InstanceID, &run.Algorithm, &run.Status, &run.Seed,
		&run.Cost, &run.Iterations, &run.Accepted, &run.AcceptedWorse, &run.Infeasible,
		&reason, &run.DurationMs, &errMsg, &solution, &run.CreatedAt, &finishedAt)
	if err != nil {
		return model.Run{}, err
	}
	run.Reason = reason.String
	run.Error = errMsg.String
	if len(solution) > 0 {
		var sol model.SolutionOut
		if err := json.Unmarshal(solution, &sol); err == nil {
			run.Solution = &sol
		}
	}
	if finishedAt.Valid {
		t := finishedAt.Time
		run.FinishedAt = &t
	}
	return run, nil
}

func (p *Postgres) CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error) {
	s := model.Subscription{ID: uuid.New().String(), URL: req.URL, Events: req.Events, Secret: req.Secret}
	events, _ := json.Marshal(req.Events)
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO subscriptions (id, url, events, secret) VALUES ($1,$2,$3,$4)`,
		s.ID, s.URL, events, nullIfEmpty(s.Secret))
	if err != nil {
		return model.Subscription{}, err
	}
	return s, nil
}

func (p *Postgres) GetSubscriptionsForEvent(ctx context.Context, eventType string) ([]model.Subscription, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT id::text, url, events, secret FROM subscriptions WHERE events @> to_jsonb(ARRAY[$1]::text[])`, eventType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Subscription
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (p *Postgres) ListSubscriptions(ctx context.Context, cursor string, limit int) ([]model.Subscription, string, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var rows *sql.Rows
	var err error
	if cursor != "" {
		rows, err = p.db.QueryContext(ctx,
			`SELECT id::text, url, events, secret FROM subscriptions WHERE id::text > $1 ORDER BY id LIMIT $2`, cursor, limit)
	} else {
		rows, err = p.db.QueryContext(ctx,
			`SELECT id::text, url, events, secret FROM subscriptions ORDER BY id LIMIT $1`, limit)
	}
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()
	out := []model.Subscription{}
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, "", err
		}
		out = append(out, s)
	}
	next := ""
	if len(out) == limit {
		next = out[len(out)-1].ID
	}
	return out, next, rows.Err()
}

func scanSubscription(rows *sql.Rows) (model.Subscription, error) {
	var s model.Subscription
	var events []byte
	var secret sql.NullString
	if err := rows.Scan(&s.ID, &s.URL, &events, &secret); err != nil {
		return model.Subscription{}, err
	}
	_ = json.Unmarshal(events, &s.Events)
	s.Secret = secret.String
	return s, nil
}

func (p *Postgres) DeleteSubscription(ctx context.Context, id string) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM subscriptions WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) EnqueueWebhook(ctx context.Context, subscriptionID, eventType, url, secret string, payload []byte) (string, error) {
	id := uuid.New().String()
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO webhook_deliveries (id, subscription_id, event_type, url, secret, payload, status, next_attempt_at)
		 VALUES ($1,$2,$3,$4,$5,$6,'pending',now())`,
		id, nullIfEmpty(subscriptionID), eventType, url, nullIfEmpty(secret), payload)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (p *Postgres) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := p.db.QueryContext(ctx,
		`SELECT id::text, COALESCE(subscription_id::text,''), event_type, url, COALESCE(secret,''), payload, status, attempts
		 FROM webhook_deliveries
		 WHERE status IN ('pending','retry') AND next_attempt_at <= now()
		 ORDER BY next_attempt_at LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []WebhookDelivery{}
	for rows.Next() {
		var d WebhookDelivery
		if err := rows.Scan(&d.ID, &d.SubscriptionID, &d.EventType, &d.URL, &d.Secret, &d.Payload, &d.Status, &d.Attempts); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (p *Postgres) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error {
	if success {
		_, err := p.db.ExecContext(ctx,
			`UPDATE webhook_deliveries SET attempts=attempts+1, status='delivered', delivered_at=now(),
			        updated_at=now(), response_code=$2, latency_ms=$3 WHERE id=$1`,
			id, responseCode, latencyMs)
		return err
	}
	next := time.Now().Add(time.Minute)
	if nextAttemptAt != nil {
		next = *nextAttemptAt
	}
	_, err := p.db.ExecContext(ctx,
		`UPDATE webhook_deliveries SET attempts=attempts+1, status='retry', last_error=$2,
		        next_attempt_at=$3, updated_at=now(), response_code=$4, latency_ms=$5 WHERE id=$1`,
		id, nullIfEmpty(lastError), next, responseCode, latencyMs)
	return err
}

func (p *Postgres) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error {
	_, err := p.db.ExecContext(ctx,
		`UPDATE webhook_deliveries SET status='failed', last_error=$2, updated_at=now(),
		        response_code=$3, latency_ms=$4 WHERE id=$1`,
		id, nullIfEmpty(lastError), responseCode, latencyMs)
	return err
}

func (p *Postgres) ListWebhookDeliveries(ctx context.Context, status, cursor string, limit int) ([]map[string]any, string, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	q := `SELECT id::text, event_type, status, attempts, url, next_attempt_at, COALESCE(last_error,'')
	      FROM webhook_deliveries WHERE 1=1`
	args := []any{}
	if status != "" {
		args = append(args, status)
		q += ` AND status=$` + itoa(len(args))
	}
	if cursor != "" {
		args = append(args, cursor)
		q += ` AND id::text > $` + itoa(len(args))
	}
	args = append(args, limit)
	q += ` ORDER BY id LIMIT $` + itoa(len(args))
	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()
	out := []map[string]any{}
	last := ""
	for rows.Next() {
		var id, eventType, st, url, lastErr string
		var attempts int
		var nextAt time.Time
		if err := rows.Scan(&id, &eventType, &st, &attempts, &url, &nextAt, &lastErr); err != nil {
			return nil, "", err
		}
		item := map[string]any{"id": id, "eventType": eventType, "status": st, "attempts": attempts, "url": url, "nextAttemptAt": nextAt}
		if lastErr != "" {
			item["lastError"] = lastErr
		}
		out = append(out, item)
		last = id
	}
	next := ""
	if len(out) == limit {
		next = last
	}
	return out, next, rows.Err()
}

func (p *Postgres) RetryWebhookDelivery(ctx context.Context, id string) error {
	_, err := p.db.ExecContext(ctx,
		`UPDATE webhook_deliveries SET status='pending', next_attempt_at=now(), updated_at=now() WHERE id=$1`, id)
	return err
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func solutionJSON(sol *model.SolutionOut) any {
	if sol == nil {
		return nil
	}
	b, err := json.Marshal(sol)
	if err != nil {
		return nil
	}
	return b
}

func itoa(n int) string {
	if n < 10 {
		return string(rune('0' + n))
	}
	return string(rune('0'+n/10)) + string(rune('0'+n%10))
}
