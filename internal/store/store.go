package store

import (
	"context"
	"errors"
	"time"

	"clrpd/internal/clrp"
	"clrpd/internal/model"
)

// Store is the persistence interface used by the API server.
type Store interface {
	// Instances
	SaveInstance(ctx context.Context, inst *clrp.Instance) (model.InstanceOut, error)
	GetInstance(ctx context.Context, id string) (*clrp.Instance, model.InstanceOut, error)
	ListInstances(ctx context.Context, cursor string, limit int) ([]model.InstanceOut, string, error)
	DeleteInstance(ctx context.Context, id string) error

	// Solver runs
	CreateRun(ctx context.Context, run model.Run) error
	UpdateRun(ctx context.Context, run model.Run) error
	GetRun(ctx context.Context, id string) (model.Run, error)
	ListRuns(ctx context.Context, instanceID, status, cursor string, limit int) ([]model.Run, string, error)

	// Webhook subscriptions
	CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error)
	GetSubscriptionsForEvent(ctx context.Context, eventType string) ([]model.Subscription, error)
	ListSubscriptions(ctx context.Context, cursor string, limit int) ([]model.Subscription, string, error)
	DeleteSubscription(ctx context.Context, id string) error

	// Webhook deliveries
	EnqueueWebhook(ctx context.Context, subscriptionID, eventType, url, secret string, payload []byte) (string, error)
	FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error)
	MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error
	FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error
	ListWebhookDeliveries(ctx context.Context, status, cursor string, limit int) ([]map[string]any, string, error)
	RetryWebhookDelivery(ctx context.Context, id string) error
}

var ErrNotFound = errors.New("not found")
