package types

import "time"

// OrderSnapshot is the wire-friendly view pushed to realtime subscribers and
// returned by the public tracking endpoint.
type OrderSnapshot struct {
	OrderID       string    `json:"order_id"`
	OrderNumber   string    `json:"order_number"`
	UserID        string    `json:"user_id"`
	Status        string    `json:"status"`
	PaymentStatus string    `json:"payment_status"`
	Total         string    `json:"total"`
	UpdatedAt     time.Time `json:"updated_at"`
}
