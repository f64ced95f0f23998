package controllers

import (
	"net/http"
	"time"

	"github.com/orderflowhq/orderflow-backend/api/responses"
	"github.com/orderflowhq/orderflow-backend/api/validators"
	"github.com/orderflowhq/orderflow-backend/internal/orders"
	"github.com/orderflowhq/orderflow-backend/pkg/enums"
	pkgerrors "github.com/orderflowhq/orderflow-backend/pkg/errors"
	"github.com/orderflowhq/orderflow-backend/pkg/logger"
)

type updateOrderRequest struct {
	Status            string     `json:"status" validate:"required"`
	TrackingNumber    *string    `json:"tracking_number"`
	EstimatedDelivery *time.Time `json:"estimated_delivery"`
}

// UpdateOrderStatus drives an order along the fulfillment path. Transitions
// outside the lifecycle table are rejected, not coerced.
func UpdateOrderStatus(engine *orders.Engine, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if engine == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders unavailable"))
			return
		}

		orderID, err := validators.UUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body updateOrderRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status, err := enums.ParseOrderStatus(body.Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
			return
		}

		order, err := engine.UpdateStatus(r.Context(), orderID, orders.UpdateStatusInput{
			Status:            status,
			TrackingNumber:    body.TrackingNumber,
			EstimatedDelivery: body.EstimatedDelivery,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, orderViewFrom(order))
	}
}

// OrderStats returns the admin dashboard aggregates.
func OrderStats(svc *orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders unavailable"))
			return
		}

		stats, err := svc.Stats(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, stats)
	}
}
