package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/orderflowhq/orderflow-backend/api/middleware"
	"github.com/orderflowhq/orderflow-backend/api/responses"
	"github.com/orderflowhq/orderflow-backend/api/validators"
	"github.com/orderflowhq/orderflow-backend/internal/reconcile"
	pkgerrors "github.com/orderflowhq/orderflow-backend/pkg/errors"
	"github.com/orderflowhq/orderflow-backend/pkg/logger"
	"github.com/orderflowhq/orderflow-backend/pkg/types"
)

type checkoutItemRequest struct {
	ProductID string  `json:"product_id" validate:"required,uuid"`
	Quantity  int     `json:"quantity" validate:"required,gt=0"`
	Variant   *string `json:"variant"`
}

type checkoutRequest struct {
	Items           []checkoutItemRequest `json:"items" validate:"required,min=1,dive"`
	ShippingAddress types.Address         `json:"shipping_address" validate:"required"`
	BillingAddress  *types.Address        `json:"billing_address"`
	Notes           *string               `json:"notes"`
}

// Checkout places an order for the authenticated caller. Reservation and
// order creation are atomic; a failure on any line leaves stock untouched.
func Checkout(coord *reconcile.Coordinator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if coord == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout unavailable"))
			return
		}

		userID, err := uuid.Parse(middleware.UserIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid identity"))
			return
		}

		var body checkoutRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := reconcile.CheckoutInput{
			UserID:          userID,
			Items:           make([]reconcile.CheckoutItemInput, 0, len(body.Items)),
			ShippingAddress: body.ShippingAddress,
			BillingAddress:  body.BillingAddress,
			Notes:           body.Notes,
		}
		for _, item := range body.Items {
			productID, err := uuid.Parse(item.ProductID)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid product_id"))
				return
			}
			input.Items = append(input.Items, reconcile.CheckoutItemInput{
				ProductID: productID,
				Quantity:  item.Quantity,
				Variant:   item.Variant,
			})
		}

		order, err := coord.Checkout(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, orderViewFrom(order))
	}
}
