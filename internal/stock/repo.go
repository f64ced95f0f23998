package stock

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/orderflowhq/orderflow-backend/pkg/db/models"
	pkgerrors "github.com/orderflowhq/orderflow-backend/pkg/errors"
)

// Repository is the only write path to stock rows. Quantity mutations go
// through conditional SQL so concurrent callers can never oversell.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Reserve(ctx context.Context, productID uuid.UUID, qty int) error
	Release(ctx context.Context, productID uuid.UUID, qty int) error
	SetAvailable(ctx context.Context, productID uuid.UUID, qty int) (*models.StockItem, error)
	Find(ctx context.Context, productID uuid.UUID) (*models.StockItem, error)
	ListBelowThreshold(ctx context.Context, threshold int) ([]models.StockItem, error)
	ListAll(ctx context.Context) ([]models.StockItem, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a stock repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// Reserve decrements available quantity only when enough remains. The guard
// lives in the WHERE clause, so losing a race reads as zero rows affected.
func (r *repository) Reserve(ctx context.Context, productID uuid.UUID, qty int) error {
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "reserve quantity must be positive")
	}

	res := r.db.WithContext(ctx).
		Model(&models.StockItem{}).
		Where("product_id = ? AND available_qty >= ?", productID, qty).
		Update("available_qty", gorm.Expr("available_qty - ?", qty))
	if res.Error != nil {
		return fmt.Errorf("reserving stock for %s: %w", productID, res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}

	// Zero rows means either the product has no stock row or not enough
	// remains. Probe to report the right failure.
	if _, err := r.Find(ctx, productID); err != nil {
		return err
	}
	return pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock").
		WithDetails(map[string]any{"product_id": productID.String(), "requested": qty})
}

// Release returns quantity to the pool. Callers own the exactly-once
// guarantee; the increment itself is unconditional.
func (r *repository) Release(ctx context.Context, productID uuid.UUID, qty int) error {
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "release quantity must be positive")
	}

	res := r.db.WithContext(ctx).
		Model(&models.StockItem{}).
		Where("product_id = ?", productID).
		Update("available_qty", gorm.Expr("available_qty + ?", qty))
	if res.Error != nil {
		return fmt.Errorf("releasing stock for %s: %w", productID, res.Error)
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "stock item not found")
	}
	return nil
}

// SetAvailable overwrites the available quantity, creating the row if needed.
func (r *repository) SetAvailable(ctx context.Context, productID uuid.UUID, qty int) (*models.StockItem, error) {
	if qty < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "available quantity cannot be negative")
	}

	item := models.StockItem{ProductID: productID, AvailableQty: qty}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "product_id"}},
			DoUpdates: clause.Assignments(map[string]any{"available_qty": qty}),
		}).
		Create(&item).Error
	if err != nil {
		return nil, fmt.Errorf("upserting stock for %s: %w", productID, err)
	}
	return r.Find(ctx, productID)
}

func (r *repository) Find(ctx context.Context, productID uuid.UUID) (*models.StockItem, error) {
	var item models.StockItem
	err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "stock item not found")
	}
	if err != nil {
		return nil, fmt.Errorf("loading stock for %s: %w", productID, err)
	}
	return &item, nil
}

func (r *repository) ListBelowThreshold(ctx context.Context, threshold int) ([]models.StockItem, error) {
	var items []models.StockItem
	err := r.db.WithContext(ctx).
		Where("available_qty < ?", threshold).
		Order("available_qty ASC").
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("listing low stock: %w", err)
	}
	return items, nil
}

func (r *repository) ListAll(ctx context.Context) ([]models.StockItem, error) {
	var items []models.StockItem
	err := r.db.WithContext(ctx).
		Order("product_id ASC").
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("listing stock: %w", err)
	}
	return items, nil
}
