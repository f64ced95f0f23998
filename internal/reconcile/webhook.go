package reconcile

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/orderflowhq/orderflow-backend/internal/payments"
	"github.com/orderflowhq/orderflow-backend/pkg/db/models"
	pkgerrors "github.com/orderflowhq/orderflow-backend/pkg/errors"
	"github.com/orderflowhq/orderflow-backend/pkg/metrics"
)

// HandleWebhook is the single entry point for gateway deliveries: verify the
// signature over the raw bytes, deduplicate by event id, then apply the
// event through the lifecycle engine. An AlreadyProcessed return means the
// delivery is a replay the caller should ack; any other error means the
// delivery was not applied.
func (c *Coordinator) HandleWebhook(ctx context.Context, payload []byte, sigHeader string) error {
	event, err := c.payments.VerifyEvent(payload, sigHeader)
	if err != nil {
		c.webhooks.IncEvent("unknown", metrics.WebhookOutcomeRejected)
		return err
	}
	eventType := string(event.Type)

	seen, err := c.guard.CheckAndMark(ctx, event.ID)
	if err != nil {
		c.webhooks.IncEvent(eventType, metrics.WebhookOutcomeFailed)
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "webhook idempotency check")
	}
	if seen {
		c.webhooks.IncEvent(eventType, metrics.WebhookOutcomeDuplicate)
		c.logg.Info(c.logg.WithField(ctx, "event_id", event.ID), "duplicate webhook delivery acked")
		return pkgerrors.New(pkgerrors.CodeAlreadyProcessed, "event already processed")
	}

	outcome, err := c.applyEvent(ctx, event)
	if err != nil && !pkgerrors.IsCode(err, pkgerrors.CodeAlreadyProcessed) {
		// Release the mark so the provider's retry can land.
		if delErr := c.guard.Delete(ctx, event.ID); delErr != nil {
			c.logg.Error(c.logg.WithField(ctx, "event_id", event.ID),
				"releasing webhook idempotency mark", delErr)
		}
		c.webhooks.IncEvent(eventType, metrics.WebhookOutcomeFailed)
		return err
	}

	c.webhooks.IncEvent(eventType, outcome)
	return err
}

func (c *Coordinator) applyEvent(ctx context.Context, event *stripe.Event) (string, error) {
	switch event.Type {
	case stripe.EventTypePaymentIntentSucceeded:
		return c.applyIntentEvent(ctx, event, c.engine.MarkPaid)
	case stripe.EventTypePaymentIntentPaymentFailed:
		return c.applyIntentEvent(ctx, event, c.engine.MarkPaymentFailed)
	default:
		c.logg.Info(c.logg.WithField(ctx, "event_type", string(event.Type)),
			"unhandled webhook event acked")
		return metrics.WebhookOutcomeIgnored, nil
	}
}

type transitionFn func(ctx context.Context, orderID uuid.UUID) (*models.Order, error)

func (c *Coordinator) applyIntentEvent(ctx context.Context, event *stripe.Event, apply transitionFn) (string, error) {
	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		return metrics.WebhookOutcomeFailed, pkgerrors.Wrap(pkgerrors.CodeValidation, err,
			fmt.Sprintf("decode %s payload", event.Type))
	}

	orderID, err := payments.OrderIDFromEvent(&intent)
	if err != nil {
		// No order metadata means the intent is not ours. Ack and move on.
		c.logg.Warn(c.logg.WithField(ctx, "intent_id", intent.ID),
			"webhook intent without order metadata acked")
		return metrics.WebhookOutcomeIgnored, nil
	}

	if _, err := apply(ctx, orderID); err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeAlreadyProcessed) {
			return metrics.WebhookOutcomeDuplicate, err
		}
		return metrics.WebhookOutcomeFailed, err
	}
	return metrics.WebhookOutcomeProcessed, nil
}
