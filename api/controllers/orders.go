package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/orderflowhq/orderflow-backend/api/middleware"
	"github.com/orderflowhq/orderflow-backend/api/responses"
	"github.com/orderflowhq/orderflow-backend/api/validators"
	"github.com/orderflowhq/orderflow-backend/internal/orders"
	pkgerrors "github.com/orderflowhq/orderflow-backend/pkg/errors"
	"github.com/orderflowhq/orderflow-backend/pkg/logger"
)

func callerIdentity(r *http.Request) (uuid.UUID, bool, error) {
	userID, err := uuid.Parse(middleware.UserIDFromContext(r.Context()))
	if err != nil {
		return uuid.Nil, false, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid identity")
	}
	return userID, middleware.IsAdmin(middleware.RoleFromContext(r.Context())), nil
}

// ListOrders returns the caller's orders; admins see every order.
func ListOrders(svc *orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders unavailable"))
			return
		}

		userID, isAdmin, err := callerIdentity(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.List(r.Context(), userID, isAdmin)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, orderViewsFrom(list))
	}
}

// GetOrder returns a single order, hidden from non-owners.
func GetOrder(svc *orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders unavailable"))
			return
		}

		userID, isAdmin, err := callerIdentity(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orderID, err := validators.UUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Get(r.Context(), orderID, userID, isAdmin)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, orderViewFrom(order))
	}
}

// CancelOrder cancels an order the caller owns. Stock held by the order is
// released in the same transaction as the status flip.
func CancelOrder(svc *orders.Service, engine *orders.Engine, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil || engine == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders unavailable"))
			return
		}

		userID, isAdmin, err := callerIdentity(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orderID, err := validators.UUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		// Ownership check before the transition: non-owners get a 404, not
		// a state error that confirms the order exists.
		if _, err := svc.Get(r.Context(), orderID, userID, isAdmin); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := engine.Cancel(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, orderViewFrom(order))
	}
}

// TrackOrder resolves the public status snapshot by order number. No auth:
// the order number itself is the capability.
func TrackOrder(svc *orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders unavailable"))
			return
		}

		snapshot, err := svc.Track(r.Context(), chi.URLParam(r, "orderNumber"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, snapshot)
	}
}
