package reconcile

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/orderflowhq/orderflow-backend/internal/orders"
	"github.com/orderflowhq/orderflow-backend/pkg/db/models"
	"github.com/orderflowhq/orderflow-backend/pkg/enums"
	pkgerrors "github.com/orderflowhq/orderflow-backend/pkg/errors"
	"github.com/orderflowhq/orderflow-backend/pkg/metrics"
	"github.com/orderflowhq/orderflow-backend/pkg/types"
)

// CheckoutItemInput is one requested line.
type CheckoutItemInput struct {
	ProductID uuid.UUID
	Quantity  int
	Variant   *string
}

// CheckoutInput carries a validated checkout request.
type CheckoutInput struct {
	UserID          uuid.UUID
	Items           []CheckoutItemInput
	ShippingAddress types.Address
	BillingAddress  *types.Address
	Notes           *string
}

// Checkout places an order: prices every line against the catalog, then
// reserves stock and writes the order in one transaction. The first short
// item aborts the whole attempt; rollback is the compensating release, so a
// rejected checkout leaves zero reservations behind.
func (c *Coordinator) Checkout(ctx context.Context, input CheckoutInput) (*models.Order, error) {
	start := time.Now()
	order, err := c.checkout(ctx, input)
	c.checkouts.Observe(checkoutResult(err), time.Since(start))
	if err != nil {
		return nil, err
	}

	c.logg.Info(c.logg.WithFields(ctx, map[string]any{
		"order_id":     order.ID.String(),
		"order_number": order.OrderNumber,
		"total":        order.Total.StringFixed(2),
	}), "order placed")
	c.notify(order)
	return order, nil
}

func (c *Coordinator) checkout(ctx context.Context, input CheckoutInput) (*models.Order, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if len(input.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one item is required")
	}
	for _, item := range input.Items {
		if item.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "item quantity must be positive").
				WithDetails(map[string]any{"product_id": item.ProductID.String()})
		}
	}

	shipping := input.ShippingAddress
	shipping.Normalize()
	if err := shipping.Validate(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid shipping address")
	}
	var billing *types.Address
	if input.BillingAddress != nil {
		normalized := *input.BillingAddress
		normalized.Normalize()
		if err := normalized.Validate(); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid billing address")
		}
		billing = &normalized
	}

	// Prices are frozen here: later catalog edits never touch this order.
	items := make([]models.OrderItem, 0, len(input.Items))
	subtotal := decimal.Zero
	for _, in := range input.Items {
		product, err := c.catalog.Load(ctx, in.ProductID)
		if err != nil {
			return nil, err
		}
		lineTotal := product.Price.Mul(decimal.NewFromInt(int64(in.Quantity)))
		items = append(items, models.OrderItem{
			ID:        uuid.New(),
			ProductID: product.ID,
			Name:      product.Name,
			ImageURL:  product.ImageURL,
			Variant:   in.Variant,
			Price:     product.Price,
			Qty:       in.Quantity,
			Total:     lineTotal,
		})
		subtotal = subtotal.Add(lineTotal)
	}

	tax, shippingFee, total := c.pricing.Totals(subtotal)
	order := &models.Order{
		ID:              uuid.New(),
		OrderNumber:     orders.NewOrderNumber(time.Now()),
		UserID:          input.UserID,
		Status:          enums.OrderStatusPending,
		PaymentStatus:   enums.PaymentStatusPending,
		Subtotal:        subtotal,
		Tax:             tax,
		ShippingFee:     shippingFee,
		Total:           total,
		ShippingAddress: shipping,
		BillingAddress:  billing,
		Notes:           input.Notes,
		Items:           items,
	}

	err := c.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ledger := c.stock.WithTx(tx)
		for _, item := range order.Items {
			if err := ledger.Reserve(ctx, item.ProductID, item.Qty); err != nil {
				return err
			}
		}
		_, err := c.orders.WithTx(tx).Create(ctx, order)
		return err
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func checkoutResult(err error) string {
	switch {
	case err == nil:
		return metrics.CheckoutResultPlaced
	case pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock):
		return metrics.CheckoutResultInsufficientStock
	case pkgerrors.IsCode(err, pkgerrors.CodeValidation),
		pkgerrors.IsCode(err, pkgerrors.CodeNotFound):
		return metrics.CheckoutResultInvalid
	default:
		return metrics.CheckoutResultError
	}
}
