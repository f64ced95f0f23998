package controllers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/orderflowhq/orderflow-backend/api/responses"
	"github.com/orderflowhq/orderflow-backend/api/validators"
	"github.com/orderflowhq/orderflow-backend/internal/orders"
	"github.com/orderflowhq/orderflow-backend/internal/payments"
	"github.com/orderflowhq/orderflow-backend/internal/reconcile"
	pkgerrors "github.com/orderflowhq/orderflow-backend/pkg/errors"
	"github.com/orderflowhq/orderflow-backend/pkg/logger"
)

type createIntentRequest struct {
	OrderID string `json:"order_id" validate:"required,uuid"`
}

type refundRequest struct {
	OrderID string           `json:"order_id" validate:"required,uuid"`
	Amount  *decimal.Decimal `json:"amount"`
}

// CreateIntent opens a payment intent for an order the caller owns. Replays
// return the already-recorded intent instead of opening a second charge.
func CreateIntent(ordersSvc *orders.Service, paymentsSvc *payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ordersSvc == nil || paymentsSvc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments unavailable"))
			return
		}

		userID, isAdmin, err := callerIdentity(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body createIntentRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orderID, err := uuid.Parse(body.OrderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order_id"))
			return
		}

		// Ownership gate: paying for somebody else's order is a 404.
		if _, err := ordersSvc.Get(r.Context(), orderID, userID, isAdmin); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := paymentsSvc.CreateIntent(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}

// RefundOrder issues a full or partial refund for a paid order. Stock is
// never restocked by a refund; that is a separate inventory decision.
func RefundOrder(coord *reconcile.Coordinator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if coord == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments unavailable"))
			return
		}

		var body refundRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orderID, err := uuid.Parse(body.OrderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order_id"))
			return
		}

		order, err := coord.Refund(r.Context(), reconcile.RefundInput{OrderID: orderID, Amount: body.Amount})
		if err != nil {
			if pkgerrors.IsCode(err, pkgerrors.CodeAlreadyProcessed) && order != nil {
				responses.WriteSuccess(w, orderViewFrom(order))
				return
			}
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, orderViewFrom(order))
	}
}
