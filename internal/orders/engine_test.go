package orders

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/orderflowhq/orderflow-backend/internal/stock"
	"github.com/orderflowhq/orderflow-backend/pkg/db/models"
	"github.com/orderflowhq/orderflow-backend/pkg/enums"
	pkgerrors "github.com/orderflowhq/orderflow-backend/pkg/errors"
	"github.com/orderflowhq/orderflow-backend/pkg/logger"
	"github.com/orderflowhq/orderflow-backend/pkg/types"
)

type gormTxRunner struct {
	db *gorm.DB
}

func (g gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return g.db.WithContext(ctx).Transaction(fn)
}

type recordingNotifier struct {
	mu        sync.Mutex
	snapshots []types.OrderSnapshot
}

func (r *recordingNotifier) NotifyOrderUpdate(s types.OrderSnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots = append(r.snapshots, s)
}

func (r *recordingNotifier) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.snapshots)
}

func newEngineForTest(t *testing.T, db *gorm.DB) (*Engine, *recordingNotifier, stock.Repository) {
	t.Helper()
	notifier := &recordingNotifier{}
	stockRepo := stock.NewRepository(db)
	engine, err := NewEngine(NewRepository(db), stockRepo, gormTxRunner{db: db}, notifier,
		logger.New(logger.Options{ServiceName: "test", Output: io.Discard}))
	require.NoError(t, err)
	return engine, notifier, stockRepo
}

func TestMarkPaidConfirmsAndReplaysAsNoOp(t *testing.T) {
	t.Parallel()

	db := setupOrdersTestDB(t)
	engine, notifier, _ := newEngineForTest(t, db)
	ctx := context.Background()

	order := createOrderFixture(t, db, orderFixture{})

	paid, err := engine.MarkPaid(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusConfirmed, paid.Status)
	assert.Equal(t, enums.PaymentStatusPaid, paid.PaymentStatus)
	assert.Equal(t, 1, notifier.count())

	// Replay: one transition, one notification, second reports AlreadyProcessed.
	replayed, err := engine.MarkPaid(ctx, order.ID)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeAlreadyProcessed))
	assert.Equal(t, enums.OrderStatusConfirmed, replayed.Status)
	assert.Equal(t, 1, notifier.count())
}

func TestMarkPaidDoesNotDemoteAdvancedOrder(t *testing.T) {
	t.Parallel()

	db := setupOrdersTestDB(t)
	engine, _, _ := newEngineForTest(t, db)
	ctx := context.Background()

	// Payment retry succeeding after a failure: the order already moved on.
	order := createOrderFixture(t, db, orderFixture{
		status:        enums.OrderStatusProcessing,
		paymentStatus: enums.PaymentStatusFailed,
	})

	paid, err := engine.MarkPaid(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusProcessing, paid.Status)
	assert.Equal(t, enums.PaymentStatusPaid, paid.PaymentStatus)
}

func TestMarkPaymentFailedLeavesOrderAndStock(t *testing.T) {
	t.Parallel()

	db := setupOrdersTestDB(t)
	engine, notifier, stockRepo := newEngineForTest(t, db)
	ctx := context.Background()

	product := uuid.New()
	_, err := stockRepo.SetAvailable(ctx, product, 3)
	require.NoError(t, err)

	order := createOrderFixture(t, db, orderFixture{
		items: []models.OrderItem{{ProductID: product, Name: "widget", Qty: 2}},
	})

	failed, err := engine.MarkPaymentFailed(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPending, failed.Status)
	assert.Equal(t, enums.PaymentStatusFailed, failed.PaymentStatus)
	assert.Equal(t, 1, notifier.count())

	// Reservations stay held.
	item, err := stockRepo.Find(ctx, product)
	require.NoError(t, err)
	assert.Equal(t, 3, item.AvailableQty)

	_, err = engine.MarkPaymentFailed(ctx, order.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeAlreadyProcessed))
}

func TestCancelReleasesStockExactlyOnce(t *testing.T) {
	t.Parallel()

	db := setupOrdersTestDB(t)
	engine, notifier, stockRepo := newEngineForTest(t, db)
	ctx := context.Background()

	productA := uuid.New()
	productB := uuid.New()
	// Post-reservation levels: checkout already decremented.
	_, err := stockRepo.SetAvailable(ctx, productA, 0)
	require.NoError(t, err)
	_, err = stockRepo.SetAvailable(ctx, productB, 1)
	require.NoError(t, err)

	order := createOrderFixture(t, db, orderFixture{
		status: enums.OrderStatusConfirmed,
		items: []models.OrderItem{
			{ProductID: productA, Name: "widget", Qty: 3},
			{ProductID: productB, Name: "gadget", Qty: 1},
		},
	})

	cancelled, err := engine.Cancel(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancelledAt)
	assert.Equal(t, 1, notifier.count())

	itemA, err := stockRepo.Find(ctx, productA)
	require.NoError(t, err)
	assert.Equal(t, 3, itemA.AvailableQty)
	itemB, err := stockRepo.Find(ctx, productB)
	require.NoError(t, err)
	assert.Equal(t, 2, itemB.AvailableQty)

	// Double cancel loses the conditional flip: no second release.
	_, err = engine.Cancel(ctx, order.ID)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
	itemA, err = stockRepo.Find(ctx, productA)
	require.NoError(t, err)
	assert.Equal(t, 3, itemA.AvailableQty)
	assert.Equal(t, 1, notifier.count())
}

func TestCancelRejectedAfterShipment(t *testing.T) {
	t.Parallel()

	db := setupOrdersTestDB(t)
	engine, _, _ := newEngineForTest(t, db)
	ctx := context.Background()

	for _, status := range []enums.OrderStatus{enums.OrderStatusShipped, enums.OrderStatusDelivered} {
		order := createOrderFixture(t, db, orderFixture{status: status})
		_, err := engine.Cancel(ctx, order.ID)
		require.Error(t, err)
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict), "status %s", status)
	}
}

func TestUpdateStatusFollowsTable(t *testing.T) {
	t.Parallel()

	db := setupOrdersTestDB(t)
	engine, _, _ := newEngineForTest(t, db)
	ctx := context.Background()

	order := createOrderFixture(t, db, orderFixture{status: enums.OrderStatusConfirmed})

	tracking := "1Z999"
	updated, err := engine.UpdateStatus(ctx, order.ID, UpdateStatusInput{
		Status:         enums.OrderStatusShipped,
		TrackingNumber: &tracking,
	})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusShipped, updated.Status)
	require.NotNil(t, updated.TrackingNumber)
	assert.Equal(t, tracking, *updated.TrackingNumber)

	// Skipping straight from pending to delivered is rejected.
	other := createOrderFixture(t, db, orderFixture{})
	_, err = engine.UpdateStatus(ctx, other.ID, UpdateStatusInput{Status: enums.OrderStatusDelivered})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
}

func TestDeliveredAtSetOnce(t *testing.T) {
	t.Parallel()

	db := setupOrdersTestDB(t)
	engine, _, _ := newEngineForTest(t, db)
	ctx := context.Background()

	order := createOrderFixture(t, db, orderFixture{status: enums.OrderStatusShipped})

	first, err := engine.UpdateStatus(ctx, order.ID, UpdateStatusInput{Status: enums.OrderStatusDelivered})
	require.NoError(t, err)
	require.NotNil(t, first.DeliveredAt)
	deliveredAt := *first.DeliveredAt

	time.Sleep(10 * time.Millisecond)

	second, err := engine.UpdateStatus(ctx, order.ID, UpdateStatusInput{Status: enums.OrderStatusDelivered})
	require.NoError(t, err)
	require.NotNil(t, second.DeliveredAt)
	assert.True(t, deliveredAt.Equal(*second.DeliveredAt),
		"delivered_at drifted: %v vs %v", deliveredAt, *second.DeliveredAt)
}

func TestMarkRefundedBeforeAndAfterShipment(t *testing.T) {
	t.Parallel()

	db := setupOrdersTestDB(t)
	engine, _, stockRepo := newEngineForTest(t, db)
	ctx := context.Background()

	product := uuid.New()
	_, err := stockRepo.SetAvailable(ctx, product, 0)
	require.NoError(t, err)

	// Pre-shipment: both statuses flip, stock untouched.
	early := createOrderFixture(t, db, orderFixture{
		status:        enums.OrderStatusConfirmed,
		paymentStatus: enums.PaymentStatusPaid,
		items:         []models.OrderItem{{ProductID: product, Name: "widget", Qty: 2}},
	})
	refunded, err := engine.MarkRefunded(ctx, early.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusRefunded, refunded.Status)
	assert.Equal(t, enums.PaymentStatusRefunded, refunded.PaymentStatus)

	item, err := stockRepo.Find(ctx, product)
	require.NoError(t, err)
	assert.Equal(t, 0, item.AvailableQty, "refund must never touch stock")

	// Post-shipment: payment flips, fulfillment status stays.
	late := createOrderFixture(t, db, orderFixture{
		status:        enums.OrderStatusShipped,
		paymentStatus: enums.PaymentStatusPaid,
	})
	refunded, err = engine.MarkRefunded(ctx, late.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusShipped, refunded.Status)
	assert.Equal(t, enums.PaymentStatusRefunded, refunded.PaymentStatus)

	// Unpaid orders cannot be refunded.
	unpaid := createOrderFixture(t, db, orderFixture{})
	_, err = engine.MarkRefunded(ctx, unpaid.ID)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	// Replay reports AlreadyProcessed.
	_, err = engine.MarkRefunded(ctx, early.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeAlreadyProcessed))
}
