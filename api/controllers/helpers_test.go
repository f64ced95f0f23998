package controllers

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/orderflowhq/orderflow-backend/api/middleware"
	"github.com/orderflowhq/orderflow-backend/internal/orders"
	"github.com/orderflowhq/orderflow-backend/internal/payments"
	"github.com/orderflowhq/orderflow-backend/internal/reconcile"
	"github.com/orderflowhq/orderflow-backend/internal/stock"
	"github.com/orderflowhq/orderflow-backend/pkg/config"
	"github.com/orderflowhq/orderflow-backend/pkg/db/models"
	"github.com/orderflowhq/orderflow-backend/pkg/enums"
	"github.com/orderflowhq/orderflow-backend/pkg/logger"
	"github.com/orderflowhq/orderflow-backend/pkg/types"
)

func setupAPIDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:api_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	stmts := []string{`
CREATE TABLE IF NOT EXISTS products (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  image_url TEXT,
  price NUMERIC NOT NULL,
  active INTEGER NOT NULL DEFAULT 1
);`, `
CREATE TABLE IF NOT EXISTS stock_items (
  product_id TEXT PRIMARY KEY,
  available_qty INTEGER NOT NULL DEFAULT 0,
  updated_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  order_number TEXT NOT NULL UNIQUE,
  user_id TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  payment_status TEXT NOT NULL DEFAULT 'pending',
  subtotal NUMERIC NOT NULL,
  tax NUMERIC NOT NULL,
  shipping_fee NUMERIC NOT NULL,
  total NUMERIC NOT NULL,
  payment_intent_id TEXT,
  shipping_address TEXT NOT NULL,
  billing_address TEXT,
  notes TEXT,
  tracking_number TEXT,
  estimated_delivery DATETIME,
  delivered_at DATETIME,
  cancelled_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS order_items (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  name TEXT NOT NULL,
  image_url TEXT,
  variant TEXT,
  price NUMERIC NOT NULL,
  qty INTEGER NOT NULL,
  total NUMERIC NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`}
	for _, stmt := range stmts {
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}

func seedProduct(t *testing.T, db *gorm.DB, name, price string) uuid.UUID {
	t.Helper()
	id := uuid.New()
	require.NoError(t, db.Exec(
		`INSERT INTO products (id, name, price, active) VALUES (?, ?, ?, 1)`,
		id, name, decimal.RequireFromString(price)).Error)
	return id
}

func seedStock(t *testing.T, db *gorm.DB, productID uuid.UUID, qty int) {
	t.Helper()
	require.NoError(t, db.Exec(
		`INSERT INTO stock_items (product_id, available_qty) VALUES (?, ?)`,
		productID, qty).Error)
}

func availableQty(t *testing.T, db *gorm.DB, productID uuid.UUID) int {
	t.Helper()
	var qty int
	require.NoError(t, db.Raw(
		`SELECT available_qty FROM stock_items WHERE product_id = ?`, productID).Scan(&qty).Error)
	return qty
}

type gormTxRunner struct {
	db *gorm.DB
}

func (r gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

type stubGatewayClient struct {
	mu      sync.Mutex
	intents map[string]*stripe.PaymentIntent
	refunds int
}

func newStubGatewayClient() *stubGatewayClient {
	return &stubGatewayClient{intents: map[string]*stripe.PaymentIntent{}}
}

func (s *stubGatewayClient) CreateIntent(ctx context.Context, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	intent := &stripe.PaymentIntent{
		ID:           "pi_" + uuid.NewString()[:8],
		ClientSecret: "cs_test",
		Amount:       *params.Amount,
		Currency:     stripe.Currency(*params.Currency),
	}
	s.intents[intent.ID] = intent
	return intent, nil
}

func (s *stubGatewayClient) GetIntent(ctx context.Context, id string) (*stripe.PaymentIntent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if intent, ok := s.intents[id]; ok {
		return intent, nil
	}
	return &stripe.PaymentIntent{ID: id, ClientSecret: "cs_test"}, nil
}

func (s *stubGatewayClient) CreateRefund(ctx context.Context, params *stripe.RefundParams) (*stripe.Refund, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refunds++
	return &stripe.Refund{ID: "re_test"}, nil
}

func (s *stubGatewayClient) refundCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refunds
}

type coordAdapter struct {
	gateway *stubGatewayClient
}

func (a coordAdapter) VerifyEvent(payload []byte, sigHeader string) (*stripe.Event, error) {
	return nil, nil
}

func (a coordAdapter) Refund(ctx context.Context, intentID string, amount *decimal.Decimal) (*stripe.Refund, error) {
	return a.gateway.CreateRefund(ctx, &stripe.RefundParams{PaymentIntent: stripe.String(intentID)})
}

type fakeGuard struct{}

func (fakeGuard) CheckAndMark(ctx context.Context, eventID string) (bool, error) { return false, nil }
func (fakeGuard) Delete(ctx context.Context, eventID string) error               { return nil }

type apiHarness struct {
	db      *gorm.DB
	orders  *orders.Service
	engine  *orders.Engine
	stock   *stock.Service
	pay     *payments.Service
	coord   *reconcile.Coordinator
	gateway *stubGatewayClient
}

func newAPIHarness(t *testing.T) *apiHarness {
	t.Helper()

	db := setupAPIDB(t)
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	ordersRepo := orders.NewRepository(db)
	stockRepo := stock.NewRepository(db)
	tx := gormTxRunner{db: db}

	engine, err := orders.NewEngine(ordersRepo, stockRepo, tx, nil, logg)
	require.NoError(t, err)

	ordersSvc, err := orders.NewService(ordersRepo, logg)
	require.NoError(t, err)

	stockSvc, err := stock.NewService(stockRepo, logg)
	require.NoError(t, err)

	gateway := newStubGatewayClient()
	paySvc, err := payments.NewService(payments.ServiceParams{
		Orders:        ordersRepo,
		Gateway:       gateway,
		SigningSecret: "whsec_test",
		Logger:        logg,
	})
	require.NoError(t, err)

	pricing, err := reconcile.NewPricing(config.CheckoutConfig{
		TaxRate:               "0.08",
		ShippingFlatFee:       "10",
		FreeShippingThreshold: "100",
	})
	require.NoError(t, err)

	coord, err := reconcile.NewCoordinator(reconcile.CoordinatorParams{
		Orders:   ordersRepo,
		Stock:    stockRepo,
		Engine:   engine,
		Catalog:  reconcile.NewProductLoader(db),
		Payments: coordAdapter{gateway: gateway},
		Guard:    fakeGuard{},
		Tx:       tx,
		Pricing:  pricing,
		Logger:   logg,
	})
	require.NoError(t, err)

	return &apiHarness{
		db:      db,
		orders:  ordersSvc,
		engine:  engine,
		stock:   stockSvc,
		pay:     paySvc,
		coord:   coord,
		gateway: gateway,
	}
}

func authed(req *http.Request, userID uuid.UUID, role enums.ActorRole) *http.Request {
	return req.WithContext(middleware.WithIdentity(req.Context(), userID.String(), string(role)))
}

func withURLParam(req *http.Request, name, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(name, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func placeOrder(t *testing.T, h *apiHarness, userID uuid.UUID, items []reconcile.CheckoutItemInput) *models.Order {
	t.Helper()
	order, err := h.coord.Checkout(context.Background(), reconcile.CheckoutInput{
		UserID: userID,
		Items:  items,
		ShippingAddress: types.Address{
			Line1:      "1 Main St",
			City:       "Austin",
			State:      "TX",
			PostalCode: "78701",
			Country:    "US",
		},
	})
	require.NoError(t, err)
	return order
}

func serve(handler http.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	return resp
}
