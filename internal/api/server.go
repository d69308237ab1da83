package api

import (
	"os"
	"strconv"
	"strings"

	"golang.org/x/time/rate"

	"clrpd/internal/auth"
	"clrpd/internal/opt"
	"clrpd/internal/store"
	"clrpd/internal/webhooks"
)

type Server struct {
	Store  store.Store
	Pub    *webhooks.Publisher
	Auth   *auth.Verifier
	Broker EventBroker

	// Solver holds the server-wide solver defaults; per-request overrides
	// are layered on top in SolveHandler.
	Solver opt.Config

	limiter *rate.Limiter
}

// NewServer creates a Server. If DATABASE_URL is unset, uses the in-memory
// store; if REDIS_URL is unset, uses the in-process event broker. Solver
// defaults come from the YAML file named by SOLVER_CONFIG, if any.
func NewServer() (*Server, error) {
	dsn := os.Getenv("DATABASE_URL")
	var s store.Store
	if strings.TrimSpace(dsn) == "" {
		s = store.NewMemory()
	} else {
		sp, err := store.NewPostgres(dsn)
		if err != nil {
			return nil, err
		}
		s = sp
	}

	var broker EventBroker
	if os.Getenv("REDIS_URL") != "" {
		if rb, err := NewRedisBroker(); err == nil {
			broker = rb
		} else {
			broker = NewBroker()
		}
	} else {
		broker = NewBroker()
	}

	cfg := opt.DefaultConfig()
	if path := os.Getenv("SOLVER_CONFIG"); path != "" {
		c, err := opt.LoadConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = c
	}

	return &Server{
		Store:   s,
		Pub:     webhooks.NewPublisher(s),
		Auth:    auth.NewVerifierFromEnv(),
		Broker:  broker,
		Solver:  cfg,
		limiter: newSolveLimiter(),
	}, nil
}

// newSolveLimiter builds the solve-endpoint rate limiter from RATE_RPS and
// RATE_BURST. Defaults allow 5 solves per second with a burst of 10.
func newSolveLimiter() *rate.Limiter {
	rps := 5.0
	if v := os.Getenv("RATE_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			rps = f
		}
	}
	burst := 10
	if v := os.Getenv("RATE_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			burst = n
		}
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}

// NewWebhookWorker creates a background worker for webhook deliveries.
func (s *Server) NewWebhookWorker() *webhooks.Worker {
	return webhooks.NewWorker(s.Store)
}
