package reconcile

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/orderflowhq/orderflow-backend/internal/orders"
	"github.com/orderflowhq/orderflow-backend/internal/stock"
	"github.com/orderflowhq/orderflow-backend/pkg/db/models"
	"github.com/orderflowhq/orderflow-backend/pkg/logger"
	"github.com/orderflowhq/orderflow-backend/pkg/metrics"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// lifecycle is the slice of the order engine the coordinator drives.
type lifecycle interface {
	MarkPaid(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	MarkPaymentFailed(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	MarkRefunded(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
}

// paymentAdapter is the gateway surface the coordinator needs: verified
// events in, refunds out.
type paymentAdapter interface {
	VerifyEvent(payload []byte, sigHeader string) (*stripe.Event, error)
	Refund(ctx context.Context, intentID string, amount *decimal.Decimal) (*stripe.Refund, error)
}

// eventGuard deduplicates webhook deliveries by provider event id.
type eventGuard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Delete(ctx context.Context, eventID string) error
}

// CoordinatorParams wires the reconciliation coordinator.
type CoordinatorParams struct {
	Orders    orders.Repository
	Stock     stock.Repository
	Engine    lifecycle
	Catalog   ProductLoader
	Payments  paymentAdapter
	Guard     eventGuard
	Tx        txRunner
	Notifier  orders.Notifier
	Pricing   Pricing
	Checkouts *metrics.CheckoutMetrics
	Webhooks  *metrics.WebhookMetrics
	Logger    *logger.Logger
}

// Coordinator owns the flows that touch more than one resource at a time:
// checkout (stock + order), webhooks (payment + order) and refunds
// (gateway + order). Single-resource reads and transitions live in their
// own services.
type Coordinator struct {
	orders    orders.Repository
	stock     stock.Repository
	engine    lifecycle
	catalog   ProductLoader
	payments  paymentAdapter
	guard     eventGuard
	tx        txRunner
	notifier  orders.Notifier
	pricing   Pricing
	checkouts *metrics.CheckoutMetrics
	webhooks  *metrics.WebhookMetrics
	logg      *logger.Logger
}

// NewCoordinator validates and assembles the coordinator.
func NewCoordinator(params CoordinatorParams) (*Coordinator, error) {
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Stock == nil {
		return nil, fmt.Errorf("stock repository required")
	}
	if params.Engine == nil {
		return nil, fmt.Errorf("lifecycle engine required")
	}
	if params.Catalog == nil {
		return nil, fmt.Errorf("product loader required")
	}
	if params.Payments == nil {
		return nil, fmt.Errorf("payment adapter required")
	}
	if params.Guard == nil {
		return nil, fmt.Errorf("event guard required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Coordinator{
		orders:    params.Orders,
		stock:     params.Stock,
		engine:    params.Engine,
		catalog:   params.Catalog,
		payments:  params.Payments,
		guard:     params.Guard,
		tx:        params.Tx,
		notifier:  params.Notifier,
		pricing:   params.Pricing,
		checkouts: params.Checkouts,
		webhooks:  params.Webhooks,
		logg:      params.Logger,
	}, nil
}

func (c *Coordinator) notify(order *models.Order) {
	if c.notifier == nil || order == nil {
		return
	}
	c.notifier.NotifyOrderUpdate(orders.Snapshot(order))
}
