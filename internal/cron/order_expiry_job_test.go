package cron

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/orderflowhq/orderflow-backend/pkg/db/models"
	pkgerrors "github.com/orderflowhq/orderflow-backend/pkg/errors"
	"github.com/orderflowhq/orderflow-backend/pkg/logger"
)

type stubStaleReader struct {
	orders []models.Order
	cutoff time.Time
	err    error
}

func (s *stubStaleReader) ListStalePending(ctx context.Context, cutoff time.Time) ([]models.Order, error) {
	s.cutoff = cutoff
	return s.orders, s.err
}

type stubCanceller struct {
	cancelled []uuid.UUID
	errs      map[uuid.UUID]error
}

func (s *stubCanceller) Cancel(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if err, ok := s.errs[orderID]; ok {
		return nil, err
	}
	s.cancelled = append(s.cancelled, orderID)
	return &models.Order{ID: orderID}, nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func newExpiryJob(t *testing.T, reader *stubStaleReader, canceller *stubCanceller, ttl time.Duration) Job {
	t.Helper()
	job, err := NewOrderExpiryJob(OrderExpiryJobParams{
		Logger: testLogger(),
		Orders: reader,
		Engine: canceller,
		TTL:    ttl,
	})
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	return job
}

func TestOrderExpiryCancelsStaleOrders(t *testing.T) {
	t.Parallel()

	first, second := uuid.New(), uuid.New()
	reader := &stubStaleReader{orders: []models.Order{{ID: first}, {ID: second}}}
	canceller := &stubCanceller{}
	job := newExpiryJob(t, reader, canceller, 240*time.Hour)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(canceller.cancelled) != 2 {
		t.Fatalf("expected both orders cancelled, got %v", canceller.cancelled)
	}

	wantCutoff := time.Now().UTC().Add(-240 * time.Hour)
	if diff := reader.cutoff.Sub(wantCutoff); diff < -time.Minute || diff > time.Minute {
		t.Fatalf("cutoff %s not near expected %s", reader.cutoff, wantCutoff)
	}
}

func TestOrderExpirySkipsRacedTransitions(t *testing.T) {
	t.Parallel()

	moved, stale := uuid.New(), uuid.New()
	reader := &stubStaleReader{orders: []models.Order{{ID: moved}, {ID: stale}}}
	canceller := &stubCanceller{errs: map[uuid.UUID]error{
		moved: pkgerrors.New(pkgerrors.CodeStateConflict, "order already confirmed"),
	}}
	job := newExpiryJob(t, reader, canceller, time.Hour)

	// A stale candidate that transitioned between query and cancel is not a failure.
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(canceller.cancelled) != 1 || canceller.cancelled[0] != stale {
		t.Fatalf("expected only the stale order cancelled, got %v", canceller.cancelled)
	}
}

func TestOrderExpiryAggregatesFailures(t *testing.T) {
	t.Parallel()

	broken, ok := uuid.New(), uuid.New()
	reader := &stubStaleReader{orders: []models.Order{{ID: broken}, {ID: ok}}}
	canceller := &stubCanceller{errs: map[uuid.UUID]error{
		broken: pkgerrors.New(pkgerrors.CodeInternal, "db unavailable"),
	}}
	job := newExpiryJob(t, reader, canceller, time.Hour)

	err := job.Run(context.Background())
	if err == nil {
		t.Fatal("expected aggregated error")
	}
	if len(canceller.cancelled) != 1 {
		t.Fatalf("failure on one order must not stop the sweep, got %v", canceller.cancelled)
	}
}

func TestNewOrderExpiryJobValidation(t *testing.T) {
	t.Parallel()

	_, err := NewOrderExpiryJob(OrderExpiryJobParams{
		Logger: testLogger(),
		Orders: &stubStaleReader{},
		Engine: &stubCanceller{},
		TTL:    0,
	})
	if err == nil {
		t.Fatal("expected error for zero ttl")
	}
}
