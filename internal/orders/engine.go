package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/orderflowhq/orderflow-backend/internal/stock"
	"github.com/orderflowhq/orderflow-backend/pkg/db/models"
	"github.com/orderflowhq/orderflow-backend/pkg/enums"
	pkgerrors "github.com/orderflowhq/orderflow-backend/pkg/errors"
	"github.com/orderflowhq/orderflow-backend/pkg/logger"
	"github.com/orderflowhq/orderflow-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Notifier receives order snapshots after a transition has committed.
// Implementations must not block; failures are the notifier's problem.
type Notifier interface {
	NotifyOrderUpdate(snapshot types.OrderSnapshot)
}

// Engine owns every status transition. All writes validate against the
// persisted row via conditional UPDATEs, never against a copy the caller
// happens to hold.
type Engine struct {
	repo     Repository
	stock    stock.Repository
	tx       txRunner
	notifier Notifier
	logg     *logger.Logger
}

// NewEngine wires the lifecycle engine.
func NewEngine(repo Repository, stockRepo stock.Repository, tx txRunner, notifier Notifier, logg *logger.Logger) (*Engine, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if stockRepo == nil {
		return nil, fmt.Errorf("stock repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Engine{
		repo:     repo,
		stock:    stockRepo,
		tx:       tx,
		notifier: notifier,
		logg:     logg,
	}, nil
}

var cancellableStatuses = []enums.OrderStatus{
	enums.OrderStatusPending,
	enums.OrderStatusConfirmed,
	enums.OrderStatusProcessing,
}

// statusPredecessors lists the states an admin move may come from. Cancel and
// refund have their own paths; delivered-to-delivered is an idempotent no-op.
var statusPredecessors = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusConfirmed:  {enums.OrderStatusPending},
	enums.OrderStatusProcessing: {enums.OrderStatusPending, enums.OrderStatusConfirmed},
	enums.OrderStatusShipped:    {enums.OrderStatusConfirmed, enums.OrderStatusProcessing},
	enums.OrderStatusDelivered:  {enums.OrderStatusShipped},
}

// MarkPaid flips payment to paid and auto-confirms a still-pending order in
// the same statement. Replays report AlreadyProcessed.
func (e *Engine) MarkPaid(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	won, err := e.repo.TransitionPayment(ctx, orderID,
		[]enums.PaymentStatus{enums.PaymentStatusPending, enums.PaymentStatusFailed},
		map[string]any{
			"payment_status": enums.PaymentStatusPaid,
			"status": gorm.Expr("CASE WHEN status = ? THEN ? ELSE status END",
				enums.OrderStatusPending, enums.OrderStatusConfirmed),
		})
	if err != nil {
		return nil, err
	}

	order, findErr := e.repo.FindByID(ctx, orderID)
	if findErr != nil {
		return nil, findErr
	}
	if !won {
		return order, pkgerrors.New(pkgerrors.CodeAlreadyProcessed, "payment already recorded")
	}

	e.logg.Info(e.logg.WithOrderID(ctx, orderID.String()), "order payment captured")
	e.notify(order)
	return order, nil
}

// MarkPaymentFailed records a failed payment attempt. The order status and
// its reservations stay untouched so the customer can retry.
func (e *Engine) MarkPaymentFailed(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	won, err := e.repo.TransitionPayment(ctx, orderID,
		[]enums.PaymentStatus{enums.PaymentStatusPending},
		map[string]any{"payment_status": enums.PaymentStatusFailed})
	if err != nil {
		return nil, err
	}

	order, findErr := e.repo.FindByID(ctx, orderID)
	if findErr != nil {
		return nil, findErr
	}
	if !won {
		return order, pkgerrors.New(pkgerrors.CodeAlreadyProcessed, "payment state already settled")
	}

	e.logg.Warn(e.logg.WithOrderID(ctx, orderID.String()), "order payment failed")
	e.notify(order)
	return order, nil
}

// Cancel flips the order to cancelled and returns every reserved unit in one
// transaction. The conditional flip guarantees a racing second cancel loses,
// so stock is released exactly once.
func (e *Engine) Cancel(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var cancelled *models.Order
	err := e.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := e.repo.WithTx(tx)
		ledger := e.stock.WithTx(tx)

		won, err := repo.TransitionStatus(ctx, orderID, cancellableStatuses, map[string]any{
			"status":       enums.OrderStatusCancelled,
			"cancelled_at": time.Now().UTC(),
		})
		if err != nil {
			return err
		}

		order, err := repo.FindByID(ctx, orderID)
		if err != nil {
			return err
		}
		if !won {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("order in status %q cannot be cancelled", order.Status)).
				WithDetails(map[string]any{"status": order.Status})
		}

		for _, item := range order.Items {
			if err := ledger.Release(ctx, item.ProductID, item.Qty); err != nil {
				return fmt.Errorf("releasing %s: %w", item.ProductID, err)
			}
		}
		cancelled = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logg.Info(e.logg.WithOrderID(ctx, orderID.String()), "order cancelled, stock released")
	e.notify(cancelled)
	return cancelled, nil
}

// UpdateStatusInput carries the admin-side order update.
type UpdateStatusInput struct {
	Status            enums.OrderStatus
	TrackingNumber    *string
	EstimatedDelivery *time.Time
}

// UpdateStatus advances the order along the fulfillment path. Cancellation is
// routed through Cancel so stock release stays on one path; refunds are
// payment-driven and rejected here.
func (e *Engine) UpdateStatus(ctx context.Context, orderID uuid.UUID, input UpdateStatusInput) (*models.Order, error) {
	if !input.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid order status %q", input.Status))
	}
	if input.Status == enums.OrderStatusCancelled {
		return e.Cancel(ctx, orderID)
	}
	if input.Status == enums.OrderStatusRefunded || input.Status == enums.OrderStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("status %q cannot be set directly", input.Status))
	}

	set := map[string]any{"status": input.Status}
	if input.TrackingNumber != nil {
		set["tracking_number"] = *input.TrackingNumber
	}
	if input.EstimatedDelivery != nil {
		set["estimated_delivery"] = *input.EstimatedDelivery
	}
	if input.Status == enums.OrderStatusDelivered {
		// First delivery wins the timestamp.
		set["delivered_at"] = gorm.Expr("COALESCE(delivered_at, ?)", time.Now().UTC())
	}

	won, err := e.repo.TransitionStatus(ctx, orderID, statusPredecessors[input.Status], set)
	if err != nil {
		return nil, err
	}

	order, findErr := e.repo.FindByID(ctx, orderID)
	if findErr != nil {
		return nil, findErr
	}
	if !won {
		if order.Status == input.Status {
			// Redundant update: keep the persisted row, delivered_at included.
			return order, nil
		}
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("cannot move order from %q to %q", order.Status, input.Status)).
			WithDetails(map[string]any{"from": order.Status, "to": input.Status})
	}

	e.logg.Info(e.logg.WithFields(ctx, map[string]any{
		"order_id": orderID.String(),
		"status":   input.Status.String(),
	}), "order status updated")
	e.notify(order)
	return order, nil
}

// MarkRefunded records a completed refund. The order status follows only when
// fulfillment has not shipped; stock reversal stays cancel-only.
func (e *Engine) MarkRefunded(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	won, err := e.repo.TransitionPayment(ctx, orderID,
		[]enums.PaymentStatus{enums.PaymentStatusPaid},
		map[string]any{
			"payment_status": enums.PaymentStatusRefunded,
			"status": gorm.Expr("CASE WHEN status IN ? THEN ? ELSE status END",
				cancellableStatuses, enums.OrderStatusRefunded),
		})
	if err != nil {
		return nil, err
	}

	order, findErr := e.repo.FindByID(ctx, orderID)
	if findErr != nil {
		return nil, findErr
	}
	if !won {
		if order.PaymentStatus == enums.PaymentStatusRefunded {
			return order, pkgerrors.New(pkgerrors.CodeAlreadyProcessed, "refund already recorded")
		}
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "only paid orders can be refunded").
			WithDetails(map[string]any{"payment_status": order.PaymentStatus})
	}

	e.logg.Info(e.logg.WithOrderID(ctx, orderID.String()), "order refunded")
	e.notify(order)
	return order, nil
}

func (e *Engine) notify(order *models.Order) {
	if e.notifier == nil || order == nil {
		return
	}
	e.notifier.NotifyOrderUpdate(Snapshot(order))
}

// Snapshot converts an order row into its realtime/tracking view.
func Snapshot(o *models.Order) types.OrderSnapshot {
	return types.OrderSnapshot{
		OrderID:       o.ID.String(),
		OrderNumber:   o.OrderNumber,
		UserID:        o.UserID.String(),
		Status:        o.Status.String(),
		PaymentStatus: o.PaymentStatus.String(),
		Total:         o.Total.StringFixed(2),
		UpdatedAt:     o.UpdatedAt,
	}
}
