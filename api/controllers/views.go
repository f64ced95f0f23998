package controllers

import (
	"time"

	"github.com/orderflowhq/orderflow-backend/pkg/db/models"
)

// View structs shape API payloads; DB models stay free of json tags so the
// wire format can evolve without touching the schema mapping.

type orderItemView struct {
	ID        string  `json:"id"`
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	ImageURL  *string `json:"image_url,omitempty"`
	Variant   *string `json:"variant,omitempty"`
	Price     string  `json:"price"`
	Qty       int     `json:"qty"`
	Total     string  `json:"total"`
}

type orderView struct {
	ID            string `json:"id"`
	OrderNumber   string `json:"order_number"`
	UserID        string `json:"user_id"`
	Status        string `json:"status"`
	PaymentStatus string `json:"payment_status"`

	Subtotal    string `json:"subtotal"`
	Tax         string `json:"tax"`
	ShippingFee string `json:"shipping_fee"`
	Total       string `json:"total"`

	PaymentIntentID *string `json:"payment_intent_id,omitempty"`

	ShippingAddress any     `json:"shipping_address"`
	BillingAddress  any     `json:"billing_address,omitempty"`
	Notes           *string `json:"notes,omitempty"`

	TrackingNumber    *string    `json:"tracking_number,omitempty"`
	EstimatedDelivery *time.Time `json:"estimated_delivery,omitempty"`
	DeliveredAt       *time.Time `json:"delivered_at,omitempty"`
	CancelledAt       *time.Time `json:"cancelled_at,omitempty"`

	Items []orderItemView `json:"items"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type stockItemView struct {
	ProductID    string    `json:"product_id"`
	AvailableQty int       `json:"available_qty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type stockReportView struct {
	TotalProducts int             `json:"total_products"`
	TotalUnits    int             `json:"total_units"`
	LowStock      []stockItemView `json:"low_stock"`
	OutOfStock    []stockItemView `json:"out_of_stock"`
}

func orderItemViewFrom(item models.OrderItem) orderItemView {
	return orderItemView{
		ID:        item.ID.String(),
		ProductID: item.ProductID.String(),
		Name:      item.Name,
		ImageURL:  item.ImageURL,
		Variant:   item.Variant,
		Price:     item.Price.StringFixed(2),
		Qty:       item.Qty,
		Total:     item.Total.StringFixed(2),
	}
}

func orderViewFrom(order *models.Order) orderView {
	items := make([]orderItemView, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemViewFrom(item))
	}

	view := orderView{
		ID:              order.ID.String(),
		OrderNumber:     order.OrderNumber,
		UserID:          order.UserID.String(),
		Status:          string(order.Status),
		PaymentStatus:   string(order.PaymentStatus),
		Subtotal:        order.Subtotal.StringFixed(2),
		Tax:             order.Tax.StringFixed(2),
		ShippingFee:     order.ShippingFee.StringFixed(2),
		Total:           order.Total.StringFixed(2),
		PaymentIntentID: order.PaymentIntentID,
		ShippingAddress: order.ShippingAddress,
		Notes:           order.Notes,

		TrackingNumber:    order.TrackingNumber,
		EstimatedDelivery: order.EstimatedDelivery,
		DeliveredAt:       order.DeliveredAt,
		CancelledAt:       order.CancelledAt,

		Items:     items,
		CreatedAt: order.CreatedAt,
		UpdatedAt: order.UpdatedAt,
	}
	if order.BillingAddress != nil {
		view.BillingAddress = order.BillingAddress
	}
	return view
}

func orderViewsFrom(list []models.Order) []orderView {
	views := make([]orderView, 0, len(list))
	for i := range list {
		views = append(views, orderViewFrom(&list[i]))
	}
	return views
}

func stockItemViewFrom(item *models.StockItem) stockItemView {
	return stockItemView{
		ProductID:    item.ProductID.String(),
		AvailableQty: item.AvailableQty,
		UpdatedAt:    item.UpdatedAt,
	}
}

func stockItemViewsFrom(list []models.StockItem) []stockItemView {
	views := make([]stockItemView, 0, len(list))
	for i := range list {
		views = append(views, stockItemViewFrom(&list[i]))
	}
	return views
}
