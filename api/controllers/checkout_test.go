package controllers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/orderflowhq/orderflow-backend/pkg/enums"
)

const addressJSON = `{"line1":"1 Main St","city":"Austin","state":"TX","postal_code":"78701","country":"US"}`

func checkoutBody(productID uuid.UUID, qty int) string {
	return `{"items":[{"product_id":"` + productID.String() + `","quantity":` + strconv.Itoa(qty) + `}],` +
		`"shipping_address":` + addressJSON + `}`
}

func TestCheckoutCreatesOrder(t *testing.T) {
	h := newAPIHarness(t)
	userID := uuid.New()
	productID := seedProduct(t, h.db, "Widget", "10.00")
	seedStock(t, h.db, productID, 5)

	handler := Checkout(h.coord, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(checkoutBody(productID, 2)))
	req.Header.Set("Content-Type", "application/json")
	req = authed(req, userID, enums.ActorRoleCustomer)

	resp := serve(handler, req)
	require.Equal(t, http.StatusCreated, resp.Code)

	var envelope struct {
		Data orderView `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	require.NotEmpty(t, envelope.Data.OrderNumber)
	require.Equal(t, "pending", envelope.Data.Status)
	require.Equal(t, "pending", envelope.Data.PaymentStatus)
	require.Equal(t, "20.00", envelope.Data.Subtotal)
	require.Equal(t, "1.60", envelope.Data.Tax)
	require.Equal(t, "10.00", envelope.Data.ShippingFee)
	require.Equal(t, "31.60", envelope.Data.Total)
	require.Len(t, envelope.Data.Items, 1)

	require.Equal(t, 3, availableQty(t, h.db, productID))
}

func TestCheckoutInsufficientStock(t *testing.T) {
	h := newAPIHarness(t)
	productID := seedProduct(t, h.db, "Widget", "10.00")
	seedStock(t, h.db, productID, 1)

	handler := Checkout(h.coord, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(checkoutBody(productID, 3)))
	req.Header.Set("Content-Type", "application/json")
	req = authed(req, uuid.New(), enums.ActorRoleCustomer)

	resp := serve(handler, req)
	require.Equal(t, http.StatusConflict, resp.Code)
	require.Equal(t, 1, availableQty(t, h.db, productID))
}

func TestCheckoutRejectsMalformedBody(t *testing.T) {
	h := newAPIHarness(t)

	handler := Checkout(h.coord, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(`{"items":[]}`))
	req.Header.Set("Content-Type", "application/json")
	req = authed(req, uuid.New(), enums.ActorRoleCustomer)

	resp := serve(handler, req)
	require.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestCheckoutRequiresIdentity(t *testing.T) {
	h := newAPIHarness(t)
	productID := seedProduct(t, h.db, "Widget", "10.00")
	seedStock(t, h.db, productID, 5)

	handler := Checkout(h.coord, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(checkoutBody(productID, 1)))
	req.Header.Set("Content-Type", "application/json")

	resp := serve(handler, req)
	require.Equal(t, http.StatusUnauthorized, resp.Code)
}
