package payments

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"

	"github.com/orderflowhq/orderflow-backend/internal/orders"
	"github.com/orderflowhq/orderflow-backend/pkg/enums"
	pkgerrors "github.com/orderflowhq/orderflow-backend/pkg/errors"
	"github.com/orderflowhq/orderflow-backend/pkg/logger"
)

// MetadataOrderID is the intent metadata key linking gateway events back to
// the order they settle.
const MetadataOrderID = "order_id"

// IntentResult is returned to the client so it can complete payment.
type IntentResult struct {
	IntentID     string `json:"intent_id"`
	ClientSecret string `json:"client_secret"`
	AmountCents  int64  `json:"amount_cents"`
	Currency     string `json:"currency"`
}

type ServiceParams struct {
	Orders        orders.Repository
	Gateway       GatewayClient
	SigningSecret string
	Logger        *logger.Logger
}

// Service adapts the payment gateway: intents out, verified events in.
type Service struct {
	orders        orders.Repository
	gateway       GatewayClient
	signingSecret string
	logg          *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Gateway == nil {
		return nil, fmt.Errorf("gateway client required")
	}
	if params.SigningSecret == "" {
		return nil, fmt.Errorf("signing secret required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Service{
		orders:        params.Orders,
		gateway:       params.Gateway,
		signingSecret: params.SigningSecret,
		logg:          params.Logger,
	}, nil
}

// CreateIntent returns payment credentials for an order. Idempotent per
// order: a recorded intent is fetched and returned, never recreated, so a
// double click cannot double charge.
func (s *Service) CreateIntent(ctx context.Context, orderID uuid.UUID) (*IntentResult, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.PaymentStatus == enums.PaymentStatusPaid {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is already paid")
	}

	if order.PaymentIntentID != nil && *order.PaymentIntentID != "" {
		intent, err := s.gateway.GetIntent(ctx, *order.PaymentIntentID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fetch existing payment intent")
		}
		return intentResult(intent), nil
	}

	amount := amountCents(order.Total)
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amount),
		Currency: stripe.String(string(stripe.CurrencyUSD)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.AddMetadata(MetadataOrderID, order.ID.String())
	params.AddMetadata("order_number", order.OrderNumber)

	intent, err := s.gateway.CreateIntent(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment intent")
	}

	if err := s.orders.SetPaymentIntentID(ctx, order.ID, intent.ID); err != nil {
		return nil, err
	}

	s.logg.Info(s.logg.WithOrderID(ctx, order.ID.String()), "payment intent created")
	return intentResult(intent), nil
}

// VerifyEvent checks the gateway signature over the raw payload. A bad
// signature is its own failure class: the controller rejects instead of
// acking, and nothing downstream runs.
func (s *Service) VerifyEvent(payload []byte, sigHeader string) (*stripe.Event, error) {
	if sigHeader == "" {
		return nil, pkgerrors.New(pkgerrors.CodeSignatureInvalid, "signature header missing")
	}
	event, err := webhook.ConstructEvent(payload, sigHeader, s.signingSecret)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeSignatureInvalid, err, "verify event signature")
	}
	return &event, nil
}

// Refund issues a gateway refund against a recorded intent. A nil amount
// refunds the full charge.
func (s *Service) Refund(ctx context.Context, intentID string, amount *decimal.Decimal) (*stripe.Refund, error) {
	if intentID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "intent id is required")
	}

	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(intentID),
	}
	if amount != nil {
		params.Amount = stripe.Int64(amountCents(*amount))
	}

	refunded, err := s.gateway.CreateRefund(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create refund")
	}
	return refunded, nil
}

// OrderIDFromEvent extracts the order id embedded in the intent metadata.
func OrderIDFromEvent(intent *stripe.PaymentIntent) (uuid.UUID, error) {
	if intent == nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "payment intent missing")
	}
	raw, ok := intent.Metadata[MetadataOrderID]
	if !ok || raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "order id metadata missing")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "parse order id metadata")
	}
	return id, nil
}

func intentResult(intent *stripe.PaymentIntent) *IntentResult {
	return &IntentResult{
		IntentID:     intent.ID,
		ClientSecret: intent.ClientSecret,
		AmountCents:  intent.Amount,
		Currency:     string(intent.Currency),
	}
}

func amountCents(d decimal.Decimal) int64 {
	return d.Shift(2).Round(0).IntPart()
}
