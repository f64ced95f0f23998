package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	pkgerrors "github.com/orderflowhq/orderflow-backend/pkg/errors"
)

// Product is the catalog view checkout prices against. Name and price are
// copied onto the order item at creation and never re-read.
type Product struct {
	ID       uuid.UUID
	Name     string
	ImageURL *string
	Price    decimal.Decimal
}

// ProductLoader supplies products by id. The catalog itself is owned
// elsewhere; checkout only reads it.
type ProductLoader interface {
	Load(ctx context.Context, productID uuid.UUID) (*Product, error)
}

type catalogProduct struct {
	ID       uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	Name     string          `gorm:"column:name;not null"`
	ImageURL *string         `gorm:"column:image_url"`
	Price    decimal.Decimal `gorm:"column:price;type:numeric(10,2);not null"`
	Active   bool            `gorm:"column:active;not null;default:true"`
}

func (catalogProduct) TableName() string {
	return "products"
}

type gormProductLoader struct {
	db *gorm.DB
}

// NewProductLoader builds a read-only loader over the products table.
func NewProductLoader(db *gorm.DB) ProductLoader {
	return &gormProductLoader{db: db}
}

func (l *gormProductLoader) Load(ctx context.Context, productID uuid.UUID) (*Product, error) {
	var row catalogProduct
	err := l.db.WithContext(ctx).
		Where("id = ? AND active = ?", productID, true).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found").
			WithDetails(map[string]any{"product_id": productID.String()})
	}
	if err != nil {
		return nil, fmt.Errorf("loading product %s: %w", productID, err)
	}
	return &Product{
		ID:       row.ID,
		Name:     row.Name,
		ImageURL: row.ImageURL,
		Price:    row.Price,
	}, nil
}
