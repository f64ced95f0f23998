package payments

import (
	"context"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/paymentintent"
	"github.com/stripe/stripe-go/v84/refund"

	pkgstripe "github.com/orderflowhq/orderflow-backend/pkg/stripe"
)

// GatewayClient exposes the subset of Stripe operations the payment adapter
// needs, so services can be tested against a stub.
type GatewayClient interface {
	CreateIntent(ctx context.Context, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	GetIntent(ctx context.Context, id string) (*stripe.PaymentIntent, error)
	CreateRefund(ctx context.Context, params *stripe.RefundParams) (*stripe.Refund, error)
}

type gatewayWrapper struct{}

// NewGatewayClient wraps the initialized Stripe client.
func NewGatewayClient(api *pkgstripe.Client) GatewayClient {
	if api == nil {
		return nil
	}
	return &gatewayWrapper{}
}

func (w *gatewayWrapper) CreateIntent(ctx context.Context, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	if params != nil {
		params.Context = ctx
	}
	return paymentintent.New(params)
}

func (w *gatewayWrapper) GetIntent(ctx context.Context, id string) (*stripe.PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	return paymentintent.Get(id, params)
}

func (w *gatewayWrapper) CreateRefund(ctx context.Context, params *stripe.RefundParams) (*stripe.Refund, error) {
	if params != nil {
		params.Context = ctx
	}
	return refund.New(params)
}
