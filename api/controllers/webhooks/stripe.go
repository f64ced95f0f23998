package webhooks

import (
	"context"
	"io"
	"net/http"

	"github.com/orderflowhq/orderflow-backend/api/responses"
	pkgerrors "github.com/orderflowhq/orderflow-backend/pkg/errors"
	"github.com/orderflowhq/orderflow-backend/pkg/logger"
)

// Stripe caps event payloads well above anything the provider sends.
const maxEventBody = 1 << 16

// Reconciler applies a verified provider event to the order it references.
type Reconciler interface {
	HandleWebhook(ctx context.Context, payload []byte, sigHeader string) error
}

// Stripe receives payment events. Every accepted delivery is acked with a
// 200 so the provider stops retrying; only verification and transient
// failures surface as errors.
func Stripe(coord Reconciler, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if coord == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhooks unavailable"))
			return
		}

		sigHeader := r.Header.Get("Stripe-Signature")
		if sigHeader == "" {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeSignatureInvalid, "missing Stripe-Signature header"))
			return
		}

		payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxEventBody))
		if err != nil {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unreadable event payload"))
			return
		}

		if err := coord.HandleWebhook(r.Context(), payload, sigHeader); err != nil {
			if pkgerrors.IsCode(err, pkgerrors.CodeAlreadyProcessed) {
				responses.WriteAck(w)
				return
			}
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteAck(w)
	}
}
