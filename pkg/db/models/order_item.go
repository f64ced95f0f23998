package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderItem captures the snapshot of each line within an order. Name and
// price are copied from the catalog at checkout and never updated after.
type OrderItem struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID   uuid.UUID `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID uuid.UUID `gorm:"column:product_id;type:uuid;not null"`

	Name     string          `gorm:"column:name;not null"`
	ImageURL *string         `gorm:"column:image_url"`
	Variant  *string         `gorm:"column:variant"`
	Price    decimal.Decimal `gorm:"column:price;type:numeric(10,2);not null"`
	Qty      int             `gorm:"column:qty;not null"`
	Total    decimal.Decimal `gorm:"column:total;type:numeric(10,2);not null"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
