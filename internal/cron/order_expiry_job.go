package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/orderflowhq/orderflow-backend/pkg/db/models"
	pkgerrors "github.com/orderflowhq/orderflow-backend/pkg/errors"
	"github.com/orderflowhq/orderflow-backend/pkg/logger"
)

type stalePendingReader interface {
	ListStalePending(ctx context.Context, cutoff time.Time) ([]models.Order, error)
}

type orderCanceller interface {
	Cancel(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
}

// OrderExpiryJobParams configure the pending-order expiry job.
type OrderExpiryJobParams struct {
	Logger *logger.Logger
	Orders stalePendingReader
	Engine orderCanceller
	TTL    time.Duration
	Now    func() time.Time
}

// NewOrderExpiryJob builds the job that cancels orders stuck in payment
// pending past the TTL. Cancellation goes through the lifecycle engine so
// stock release and notifications follow the normal path.
func NewOrderExpiryJob(params OrderExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders reader required")
	}
	if params.Engine == nil {
		return nil, fmt.Errorf("lifecycle engine required")
	}
	if params.TTL <= 0 {
		return nil, fmt.Errorf("expiry ttl must be positive")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &orderExpiryJob{
		logg:   params.Logger,
		orders: params.Orders,
		engine: params.Engine,
		ttl:    params.TTL,
		now:    now,
	}, nil
}

type orderExpiryJob struct {
	logg   *logger.Logger
	orders stalePendingReader
	engine orderCanceller
	ttl    time.Duration
	now    func() time.Time
}

func (j *orderExpiryJob) Name() string { return "order-expiry" }

func (j *orderExpiryJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.ttl)
	stale, err := j.orders.ListStalePending(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("query stale pending orders: %w", err)
	}

	var errs []error
	expired := 0
	for _, order := range stale {
		if _, err := j.engine.Cancel(ctx, order.ID); err != nil {
			// An order that moved on since the query lost the race, not failed.
			if pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
				continue
			}
			errs = append(errs, fmt.Errorf("expire order %s: %w", order.ID, err))
			continue
		}
		expired++
	}

	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"candidates": len(stale),
		"expired":    expired,
	}), "order expiry sweep complete")
	return multierr.Combine(errs...)
}
