package orders

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/orderflowhq/orderflow-backend/pkg/db/models"
	pkgerrors "github.com/orderflowhq/orderflow-backend/pkg/errors"
	"github.com/orderflowhq/orderflow-backend/pkg/logger"
	"github.com/orderflowhq/orderflow-backend/pkg/types"
)

// Service is the read surface of the order store.
type Service struct {
	repo Repository
	logg *logger.Logger
}

// NewService wires the order read service.
func NewService(repo Repository, logg *logger.Logger) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Service{repo: repo, logg: logg}, nil
}

// List returns the caller's orders, or every order for admins.
func (s *Service) List(ctx context.Context, userID uuid.UUID, isAdmin bool) ([]models.Order, error) {
	if isAdmin {
		return s.repo.ListAll(ctx)
	}
	return s.repo.ListByUser(ctx, userID)
}

// Get loads one order, enforcing ownership for non-admin callers.
func (s *Service) Get(ctx context.Context, orderID, userID uuid.UUID, isAdmin bool) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !isAdmin && order.UserID != userID {
		// Hide existence from non-owners.
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}

// Track resolves the public status view by order number. No auth: the order
// number itself is the capability.
func (s *Service) Track(ctx context.Context, orderNumber string) (*types.OrderSnapshot, error) {
	if orderNumber == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order number is required")
	}
	order, err := s.repo.FindByNumber(ctx, orderNumber)
	if err != nil {
		return nil, err
	}
	snapshot := Snapshot(order)
	return &snapshot, nil
}

// Stats returns the admin dashboard aggregates.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	return s.repo.Stats(ctx)
}
