package stock

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/orderflowhq/orderflow-backend/pkg/db/models"
	"github.com/orderflowhq/orderflow-backend/pkg/logger"
)

// DefaultLowStockThreshold applies when a caller does not supply one.
const DefaultLowStockThreshold = 10

// Report summarizes the ledger for the admin dashboard.
type Report struct {
	TotalProducts int                `json:"total_products"`
	TotalUnits    int                `json:"total_units"`
	LowStock      []models.StockItem `json:"low_stock"`
	OutOfStock    []models.StockItem `json:"out_of_stock"`
}

// Service exposes the stock ledger operations.
type Service struct {
	repo Repository
	logg *logger.Logger
}

// NewService wires the ledger service.
func NewService(repo Repository, logg *logger.Logger) (*Service, error) {
	if repo == nil {
		return nil, errors.New("stock repository is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	return &Service{repo: repo, logg: logg}, nil
}

// Reserve holds qty units of a product, failing when not enough remain.
func (s *Service) Reserve(ctx context.Context, productID uuid.UUID, qty int) error {
	return s.repo.Reserve(ctx, productID, qty)
}

// Release returns qty units of a product to the pool.
func (s *Service) Release(ctx context.Context, productID uuid.UUID, qty int) error {
	return s.repo.Release(ctx, productID, qty)
}

// SetAvailable overwrites a product's on-hand quantity.
func (s *Service) SetAvailable(ctx context.Context, productID uuid.UUID, qty int) (*models.StockItem, error) {
	item, err := s.repo.SetAvailable(ctx, productID, qty)
	if err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"product_id":    productID.String(),
		"available_qty": qty,
	}), "stock level overwritten")
	return item, nil
}

// Query returns the current stock row for a product.
func (s *Service) Query(ctx context.Context, productID uuid.UUID) (*models.StockItem, error) {
	return s.repo.Find(ctx, productID)
}

// LowStock lists products under the threshold (default when <= 0).
func (s *Service) LowStock(ctx context.Context, threshold int) ([]models.StockItem, error) {
	if threshold <= 0 {
		threshold = DefaultLowStockThreshold
	}
	return s.repo.ListBelowThreshold(ctx, threshold)
}

// Report builds the inventory summary used by admins.
func (s *Service) Report(ctx context.Context) (*Report, error) {
	items, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("building inventory report: %w", err)
	}

	report := &Report{
		TotalProducts: len(items),
		LowStock:      []models.StockItem{},
		OutOfStock:    []models.StockItem{},
	}
	for _, item := range items {
		report.TotalUnits += item.AvailableQty
		switch {
		case item.AvailableQty == 0:
			report.OutOfStock = append(report.OutOfStock, item)
		case item.AvailableQty < DefaultLowStockThreshold:
			report.LowStock = append(report.LowStock, item)
		}
	}
	return report, nil
}
