package controllers

import (
	"net/http"

	"github.com/orderflowhq/orderflow-backend/api/responses"
	"github.com/orderflowhq/orderflow-backend/api/validators"
	"github.com/orderflowhq/orderflow-backend/internal/stock"
	pkgerrors "github.com/orderflowhq/orderflow-backend/pkg/errors"
	"github.com/orderflowhq/orderflow-backend/pkg/logger"
)

type setStockRequest struct {
	Quantity *int `json:"quantity" validate:"required,gte=0"`
}

// SetStock overwrites the available quantity for one product.
func SetStock(svc *stock.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inventory unavailable"))
			return
		}

		productID, err := validators.UUIDParam(r, "productID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body setStockRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		item, err := svc.SetAvailable(r.Context(), productID, *body.Quantity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, stockItemViewFrom(item))
	}
}

// GetStock returns the available quantity for one product.
func GetStock(svc *stock.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inventory unavailable"))
			return
		}

		productID, err := validators.UUIDParam(r, "productID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		item, err := svc.Query(r.Context(), productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, stockItemViewFrom(item))
	}
}

// LowStock lists products at or below a threshold, default from the service.
func LowStock(svc *stock.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inventory unavailable"))
			return
		}

		threshold, err := validators.IntQuery(r, "threshold", 0)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items, err := svc.LowStock(r.Context(), threshold)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, stockItemViewsFrom(items))
	}
}

// StockReport aggregates inventory health for the admin dashboard.
func StockReport(svc *stock.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inventory unavailable"))
			return
		}

		report, err := svc.Report(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, stockReportView{
			TotalProducts: report.TotalProducts,
			TotalUnits:    report.TotalUnits,
			LowStock:      stockItemViewsFrom(report.LowStock),
			OutOfStock:    stockItemViewsFrom(report.OutOfStock),
		})
	}
}
