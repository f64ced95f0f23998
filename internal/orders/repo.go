package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/orderflowhq/orderflow-backend/pkg/db/models"
	"github.com/orderflowhq/orderflow-backend/pkg/enums"
	pkgerrors "github.com/orderflowhq/orderflow-backend/pkg/errors"
)

// Repository is the order store. Status writes are conditional on the
// persisted row so racing transitions cannot both win.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) (*models.Order, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByNumber(ctx context.Context, orderNumber string) (*models.Order, error)
	FindByIntentID(ctx context.Context, intentID string) (*models.Order, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Order, error)
	ListAll(ctx context.Context) ([]models.Order, error)
	ListStalePending(ctx context.Context, cutoff time.Time) ([]models.Order, error)
	SetPaymentIntentID(ctx context.Context, id uuid.UUID, intentID string) error
	UpdateShippingInfo(ctx context.Context, id uuid.UUID, tracking *string, estimated *time.Time) error
	TransitionStatus(ctx context.Context, id uuid.UUID, from []enums.OrderStatus, set map[string]any) (bool, error)
	TransitionPayment(ctx context.Context, id uuid.UUID, from []enums.PaymentStatus, set map[string]any) (bool, error)
	Stats(ctx context.Context) (*Stats, error)
}

// Stats aggregates order counts and paid revenue.
type Stats struct {
	TotalOrders    int64                       `json:"total_orders"`
	CountsByStatus map[enums.OrderStatus]int64 `json:"counts_by_status"`
	PaidRevenue    decimal.Decimal             `json:"paid_revenue"`
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an order repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, order *models.Order) (*models.Order, error) {
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		return nil, fmt.Errorf("creating order: %w", err)
	}
	return order, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("id = ?", id).
		First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if err != nil {
		return nil, fmt.Errorf("loading order %s: %w", id, err)
	}
	return &order, nil
}

func (r *repository) FindByNumber(ctx context.Context, orderNumber string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("order_number = ?", orderNumber).
		First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if err != nil {
		return nil, fmt.Errorf("loading order %s: %w", orderNumber, err)
	}
	return &order, nil
}

func (r *repository) FindByIntentID(ctx context.Context, intentID string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("payment_intent_id = ?", intentID).
		First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if err != nil {
		return nil, fmt.Errorf("loading order by intent %s: %w", intentID, err)
	}
	return &order, nil
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("listing orders for %s: %w", userID, err)
	}
	return orders, nil
}

func (r *repository) ListAll(ctx context.Context) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Order("created_at DESC").
		Find(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	return orders, nil
}

func (r *repository) ListStalePending(ctx context.Context, cutoff time.Time) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.WithContext(ctx).
		Where("status = ? AND payment_status = ? AND created_at < ?",
			enums.OrderStatusPending, enums.PaymentStatusPending, cutoff).
		Order("created_at ASC").
		Find(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("listing stale pending orders: %w", err)
	}
	return orders, nil
}

func (r *repository) SetPaymentIntentID(ctx context.Context, id uuid.UUID, intentID string) error {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", id).
		Update("payment_intent_id", intentID)
	if res.Error != nil {
		return fmt.Errorf("storing intent id on %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return nil
}

func (r *repository) UpdateShippingInfo(ctx context.Context, id uuid.UUID, tracking *string, estimated *time.Time) error {
	set := map[string]any{}
	if tracking != nil {
		set["tracking_number"] = *tracking
	}
	if estimated != nil {
		set["estimated_delivery"] = *estimated
	}
	if len(set) == 0 {
		return nil
	}
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", id).
		Updates(set)
	if res.Error != nil {
		return fmt.Errorf("updating shipping info on %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return nil
}

// TransitionStatus applies set only when the current status is in from.
// The bool reports whether this caller won the transition.
func (r *repository) TransitionStatus(ctx context.Context, id uuid.UUID, from []enums.OrderStatus, set map[string]any) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(set)
	if res.Error != nil {
		return false, fmt.Errorf("transitioning order %s: %w", id, res.Error)
	}
	return res.RowsAffected > 0, nil
}

// TransitionPayment applies set only when the current payment status is in from.
func (r *repository) TransitionPayment(ctx context.Context, id uuid.UUID, from []enums.PaymentStatus, set map[string]any) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND payment_status IN ?", id, from).
		Updates(set)
	if res.Error != nil {
		return false, fmt.Errorf("transitioning payment on %s: %w", id, res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) Stats(ctx context.Context) (*Stats, error) {
	type statusCount struct {
		Status enums.OrderStatus
		Count  int64
	}
	var rows []statusCount
	err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("counting orders: %w", err)
	}

	stats := &Stats{CountsByStatus: map[enums.OrderStatus]int64{}}
	for _, row := range rows {
		stats.CountsByStatus[row.Status] = row.Count
		stats.TotalOrders += row.Count
	}

	var revenue decimal.NullDecimal
	err = r.db.WithContext(ctx).
		Model(&models.Order{}).
		Select("SUM(total)").
		Where("payment_status = ?", enums.PaymentStatusPaid).
		Scan(&revenue).Error
	if err != nil {
		return nil, fmt.Errorf("summing paid revenue: %w", err)
	}
	if revenue.Valid {
		stats.PaidRevenue = revenue.Decimal
	}
	return stats, nil
}
