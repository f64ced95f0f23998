package reconcile

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/orderflowhq/orderflow-backend/pkg/db/models"
	"github.com/orderflowhq/orderflow-backend/pkg/enums"
	pkgerrors "github.com/orderflowhq/orderflow-backend/pkg/errors"
)

// RefundInput carries an admin refund request. A nil amount refunds the full
// charge.
type RefundInput struct {
	OrderID uuid.UUID
	Amount  *decimal.Decimal
}

// Refund reconciles a refund across the gateway and the order row: sanity
// checks run locally, the gateway call goes out, and only a gateway success
// flips the order. A gateway failure leaves the order exactly as it was.
func (c *Coordinator) Refund(ctx context.Context, input RefundInput) (*models.Order, error) {
	order, err := c.orders.FindByID(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}
	if order.PaymentIntentID == nil || *order.PaymentIntentID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no payment recorded for order")
	}
	if order.PaymentStatus != enums.PaymentStatusPaid {
		if order.PaymentStatus == enums.PaymentStatusRefunded {
			return order, pkgerrors.New(pkgerrors.CodeAlreadyProcessed, "refund already recorded")
		}
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "only paid orders can be refunded").
			WithDetails(map[string]any{"payment_status": order.PaymentStatus})
	}
	if input.Amount != nil {
		if !input.Amount.IsPositive() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund amount must be positive")
		}
		if input.Amount.GreaterThan(order.Total) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund amount exceeds order total").
				WithDetails(map[string]any{
					"amount": input.Amount.StringFixed(2),
					"total":  order.Total.StringFixed(2),
				})
		}
	}

	if _, err := c.payments.Refund(ctx, *order.PaymentIntentID, input.Amount); err != nil {
		return nil, err
	}

	refunded, err := c.engine.MarkRefunded(ctx, order.ID)
	if err != nil {
		return refunded, err
	}

	c.logg.Info(c.logg.WithOrderID(ctx, order.ID.String()), "refund reconciled")
	return refunded, nil
}
