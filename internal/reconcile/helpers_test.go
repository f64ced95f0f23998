package reconcile

import (
	"context"
	"io"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/orderflowhq/orderflow-backend/internal/orders"
	"github.com/orderflowhq/orderflow-backend/internal/stock"
	"github.com/orderflowhq/orderflow-backend/pkg/config"
	"github.com/orderflowhq/orderflow-backend/pkg/db/models"
	"github.com/orderflowhq/orderflow-backend/pkg/logger"
	"github.com/orderflowhq/orderflow-backend/pkg/types"
)

func setupReconcileDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:reconcile_" + uuid.NewString() + "?mode=memory&cache=shared"
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

type stubAdapter struct {
	verifyFn func(payload []byte, sigHeader string) (*stripe.Event, error)
	refundFn func(ctx context.Context, intentID string, amount *decimal.Decimal) (*stripe.Refund, error)

	mu          sync.Mutex
	refundCalls []string
}

func (s *stubAdapter) VerifyEvent(payload []byte, sigHeader string) (*stripe.Event, error) {
	return s.verifyFn(payload, sigHeader)
}

func (s *stubAdapter) Refund(ctx context.Context, intentID string, amount *decimal.Decimal) (*stripe.Refund, error) {
	s.mu.Lock()
	s.refundCalls = append(s.refundCalls, intentID)
	s.mu.Unlock()
	if s.refundFn != nil {
		return s.refundFn(ctx, intentID, amount)
	}
	return &stripe.Refund{ID: "re_test"}, nil
}

func (s *stubAdapter) refundCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.refundCalls)
}

type fakeGuard struct {
	mu    sync.Mutex
	marks map[string]bool
}

func newFakeGuard() *fakeGuard {
	return &fakeGuard{marks: map[string]bool{}}
}

func (g *fakeGuard) CheckAndMark(ctx context.Context, eventID string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.marks[eventID] {
		return true, nil
	}
	g.marks[eventID] = true
	return false, nil
}

func (g *fakeGuard) Delete(ctx context.Context, eventID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.marks, eventID)
	return nil
}

func (g *fakeGuard) marked(eventID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.marks[eventID]
}

type recordingNotifier struct {
	mu        sync.Mutex
	snapshots []types.OrderSnapshot
}

func (n *recordingNotifier) NotifyOrderUpdate(snapshot types.OrderSnapshot) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.snapshots = append(n.snapshots, snapshot)
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.snapshots)
}

type testHarness struct {
	db       *gorm.DB
	coord    *Coordinator
	orders   orders.Repository
	stock    stock.Repository
	engine   *orders.Engine
	adapter  *stubAdapter
	guard    *fakeGuard
	notifier *recordingNotifier
}

func newTestHarness(t *testing.T) *testHarness {
	t.Helper()

	db := setupReconcileDB(t)
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	ordersRepo := orders.NewRepository(db)
	stockRepo := stock.NewRepository(db)
	notifier := &recordingNotifier{}
	tx := gormTxRunner{db: db}

	engine, err := orders.NewEngine(ordersRepo, stockRepo, tx, notifier, logg)
	require.NoError(t, err)

	pricing, err := NewPricing(config.CheckoutConfig{
		TaxRate:               "0.08",
		ShippingFlatFee:       "10",
		FreeShippingThreshold: "100",
	})
	require.NoError(t, err)

	adapter := &stubAdapter{}
	guard := newFakeGuard()

	coord, err := NewCoordinator(CoordinatorParams{
		Orders:   ordersRepo,
		Stock:    stockRepo,
		Engine:   engine,
		Catalog:  NewProductLoader(db),
		Payments: adapter,
		Guard:    guard,
		Tx:       tx,
		Notifier: notifier,
		Pricing:  pricing,
		Logger:   logg,
	})
	require.NoError(t, err)

	return &testHarness{
		db:       db,
		coord:    coord,
		orders:   ordersRepo,
		stock:    stockRepo,
		engine:   engine,
		adapter:  adapter,
		guard:    guard,
		notifier: notifier,
	}
}

func shippingAddressFixture() types.Address {
	return types.Address{
		Line1:      "1 Main St",
		City:       "Austin",
		State:      "TX",
		PostalCode: "78701",
		Country:    "US",
	}
}

func placeOrder(t *testing.T, h *testHarness, userID uuid.UUID, items []CheckoutItemInput) *models.Order {
	t.Helper()
	order, err := h.coord.Checkout(context.Background(), CheckoutInput{
		UserID:          userID,
		Items:           items,
		ShippingAddress: shippingAddressFixture(),
	})
	require.NoError(t, err)
	return order
}
