package models

import (
	"time"

	"github.com/google/uuid"
)

// StockItem tracks the available count per product. The quantity is only
// mutated through conditional SQL in the stock ledger, never read-modify-write.
type StockItem struct {
	ProductID    uuid.UUID `gorm:"column:product_id;type:uuid;primaryKey"`
	AvailableQty int       `gorm:"column:available_qty;not null;default:0"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
