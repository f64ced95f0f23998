package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/orderflowhq/orderflow-backend/pkg/enums"
	"github.com/orderflowhq/orderflow-backend/pkg/types"
)

// Order is the durable record of a placed order. Rows are never deleted;
// cancellation and refund are status flips.
type Order struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderNumber string    `gorm:"column:order_number;uniqueIndex;not null"`
	UserID      uuid.UUID `gorm:"column:user_id;type:uuid;not null;index"`

	Status        enums.OrderStatus   `gorm:"column:status;type:text;not null;default:'pending'"`
	PaymentStatus enums.PaymentStatus `gorm:"column:payment_status;type:text;not null;default:'pending'"`

	// Money fields are frozen at creation: total = subtotal + tax + shipping.
	Subtotal    decimal.Decimal `gorm:"column:subtotal;type:numeric(10,2);not null"`
	Tax         decimal.Decimal `gorm:"column:tax;type:numeric(10,2);not null"`
	ShippingFee decimal.Decimal `gorm:"column:shipping_fee;type:numeric(10,2);not null"`
	Total       decimal.Decimal `gorm:"column:total;type:numeric(10,2);not null"`

	PaymentIntentID *string `gorm:"column:payment_intent_id;index"`

	ShippingAddress types.Address  `gorm:"column:shipping_address;type:jsonb;serializer:json"`
	BillingAddress  *types.Address `gorm:"column:billing_address;type:jsonb;serializer:json"`
	Notes           *string        `gorm:"column:notes"`

	TrackingNumber    *string    `gorm:"column:tracking_number"`
	EstimatedDelivery *time.Time `gorm:"column:estimated_delivery"`
	DeliveredAt       *time.Time `gorm:"column:delivered_at"`
	CancelledAt       *time.Time `gorm:"column:cancelled_at"`

	Items []OrderItem `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
