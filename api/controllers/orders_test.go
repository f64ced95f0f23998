package controllers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/orderflowhq/orderflow-backend/internal/reconcile"
	"github.com/orderflowhq/orderflow-backend/pkg/enums"
	"github.com/orderflowhq/orderflow-backend/pkg/types"
)

func TestListOrdersScopesToCaller(t *testing.T) {
	h := newAPIHarness(t)
	productID := seedProduct(t, h.db, "Widget", "10.00")
	seedStock(t, h.db, productID, 10)

	alice := uuid.New()
	bob := uuid.New()
	placeOrder(t, h, alice, []reconcile.CheckoutItemInput{{ProductID: productID, Quantity: 1}})
	placeOrder(t, h, bob, []reconcile.CheckoutItemInput{{ProductID: productID, Quantity: 1}})

	handler := ListOrders(h.orders, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
	req = authed(req, alice, enums.ActorRoleCustomer)

	resp := serve(handler, req)
	require.Equal(t, http.StatusOK, resp.Code)

	var envelope struct {
		Data []orderView `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	require.Len(t, envelope.Data, 1)
	require.Equal(t, alice.String(), envelope.Data[0].UserID)

	// Admin sees every order.
	req = httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
	req = authed(req, uuid.New(), enums.ActorRoleAdmin)
	resp = serve(handler, req)
	require.Equal(t, http.StatusOK, resp.Code)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	require.Len(t, envelope.Data, 2)
}

func TestGetOrderHiddenFromStrangers(t *testing.T) {
	h := newAPIHarness(t)
	productID := seedProduct(t, h.db, "Widget", "10.00")
	seedStock(t, h.db, productID, 10)

	owner := uuid.New()
	order := placeOrder(t, h, owner, []reconcile.CheckoutItemInput{{ProductID: productID, Quantity: 1}})

	handler := GetOrder(h.orders, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/"+order.ID.String(), nil)
	req = withURLParam(req, "id", order.ID.String())
	req = authed(req, uuid.New(), enums.ActorRoleCustomer)
	resp := serve(handler, req)
	require.Equal(t, http.StatusNotFound, resp.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/orders/"+order.ID.String(), nil)
	req = withURLParam(req, "id", order.ID.String())
	req = authed(req, owner, enums.ActorRoleCustomer)
	resp = serve(handler, req)
	require.Equal(t, http.StatusOK, resp.Code)

	var envelope struct {
		Data orderView `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	require.Equal(t, order.ID.String(), envelope.Data.ID)
}

func TestGetOrderInvalidID(t *testing.T) {
	h := newAPIHarness(t)

	handler := GetOrder(h.orders, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/not-a-uuid", nil)
	req = withURLParam(req, "id", "not-a-uuid")
	req = authed(req, uuid.New(), enums.ActorRoleCustomer)

	resp := serve(handler, req)
	require.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestCancelOrderReleasesStock(t *testing.T) {
	h := newAPIHarness(t)
	productID := seedProduct(t, h.db, "Widget", "10.00")
	seedStock(t, h.db, productID, 5)

	owner := uuid.New()
	order := placeOrder(t, h, owner, []reconcile.CheckoutItemInput{{ProductID: productID, Quantity: 2}})
	require.Equal(t, 3, availableQty(t, h.db, productID))

	handler := CancelOrder(h.orders, h.engine, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/"+order.ID.String()+"/cancel", nil)
	req = withURLParam(req, "id", order.ID.String())
	req = authed(req, owner, enums.ActorRoleCustomer)

	resp := serve(handler, req)
	require.Equal(t, http.StatusOK, resp.Code)

	var envelope struct {
		Data orderView `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	require.Equal(t, "cancelled", envelope.Data.Status)
	require.Equal(t, 5, availableQty(t, h.db, productID))
}

func TestCancelOrderStrangerGets404(t *testing.T) {
	h := newAPIHarness(t)
	productID := seedProduct(t, h.db, "Widget", "10.00")
	seedStock(t, h.db, productID, 5)

	order := placeOrder(t, h, uuid.New(), []reconcile.CheckoutItemInput{{ProductID: productID, Quantity: 1}})

	handler := CancelOrder(h.orders, h.engine, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/"+order.ID.String()+"/cancel", nil)
	req = withURLParam(req, "id", order.ID.String())
	req = authed(req, uuid.New(), enums.ActorRoleCustomer)

	resp := serve(handler, req)
	require.Equal(t, http.StatusNotFound, resp.Code)
	// The reservation stays held.
	require.Equal(t, 4, availableQty(t, h.db, productID))
}

func TestTrackOrderPublicSnapshot(t *testing.T) {
	h := newAPIHarness(t)
	productID := seedProduct(t, h.db, "Widget", "10.00")
	seedStock(t, h.db, productID, 5)

	order := placeOrder(t, h, uuid.New(), []reconcile.CheckoutItemInput{{ProductID: productID, Quantity: 1}})

	handler := TrackOrder(h.orders, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/track/"+order.OrderNumber, nil)
	req = withURLParam(req, "orderNumber", order.OrderNumber)

	resp := serve(handler, req)
	require.Equal(t, http.StatusOK, resp.Code)

	var envelope struct {
		Data types.OrderSnapshot `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	require.Equal(t, order.OrderNumber, envelope.Data.OrderNumber)
	require.Equal(t, "pending", envelope.Data.Status)

	// Unknown numbers 404 without leaking anything else.
	req = httptest.NewRequest(http.MethodGet, "/api/v1/track/ORD-00000000-XXXX", nil)
	req = withURLParam(req, "orderNumber", "ORD-00000000-XXXX")
	resp = serve(handler, req)
	require.Equal(t, http.StatusNotFound, resp.Code)
}
