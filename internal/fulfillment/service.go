// Package fulfillment runs the order processing pipeline: cart markup in,
// per-customer and merged report artifacts out.
package fulfillment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shipbee/backoffice/internal/extract"
	"github.com/shipbee/backoffice/internal/orderstore"
	"github.com/shipbee/backoffice/internal/reports"
	"github.com/shipbee/backoffice/pkg/enums"
	pkgerrors "github.com/shipbee/backoffice/pkg/errors"
	"github.com/shipbee/backoffice/pkg/logger"
)

type orderWriter interface {
	EnsureOrder(ctx context.Context, orderID string) error
	ArtifactPaths(orderID string, key orderstore.Key) (pdfPath, csvPath string)
	MergedArtifactPaths(orderID, stem string) (pdfPath, csvPath string)
	MergeMetadata(ctx context.Context, orderID string, entries map[orderstore.Key]int) error
	SetStatus(ctx context.Context, orderID string, status enums.OrderStatus) error
}

// CustomerCart is one uploaded cart snapshot with its operator-entered
// out-of-stock count.
type CustomerCart struct {
	Customer   string
	Markup     string
	OutOfStock int
}

// CustomerResult summarizes what processing did for one cart.
type CustomerResult struct {
	Key        orderstore.Key `json:"key"`
	Customer   string         `json:"customer"`
	Items      int            `json:"items"`
	OutOfStock int            `json:"out_of_stock"`
	Skipped    bool           `json:"skipped"`
}

// ProcessResult is the full pipeline outcome for one order.
type ProcessResult struct {
	OrderID    string           `json:"order_id"`
	Customers  []CustomerResult `json:"customers"`
	MergedRows int              `json:"merged_rows"`
}

// Service runs the processing pipeline.
type Service interface {
	ProcessCarts(ctx context.Context, orderID string, carts []CustomerCart) (*ProcessResult, error)
}

type service struct {
	store orderWriter
	logg  *logger.Logger
	now   func() time.Time
}

// NewService builds the fulfillment service backed by the order store.
func NewService(store orderWriter, logg *logger.Logger) (Service, error) {
	if store == nil {
		return nil, fmt.Errorf("order store required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{store: store, logg: logg, now: time.Now}, nil
}

// ProcessCarts extracts every cart, writes the per-customer artifacts, and
// produces the merged report. Carts with no extractable items are skipped and
// reported as such; an order where every cart is empty still gets metadata
// and a pending status, but no merged artifacts.
func (s *service) ProcessCarts(ctx context.Context, orderID string, carts []CustomerCart) (*ProcessResult, error) {
	if err := orderstore.ValidateOrderID(orderID); err != nil {
		return nil, err
	}
	if len(carts) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one cart is required")
	}
	for _, cart := range carts {
		if strings.TrimSpace(cart.Customer) == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer name is required for every cart")
		}
	}

	if err := s.store.EnsureOrder(ctx, orderID); err != nil {
		return nil, err
	}

	date := s.now()
	metadata := make(map[orderstore.Key]int, len(carts))
	var merged []reports.MergedItem
	results := make([]CustomerResult, 0, len(carts))

	for _, cart := range carts {
		customer := strings.TrimSpace(cart.Customer)
		cctx := s.logg.WithCustomer(s.logg.WithOrderID(ctx, orderID), customer)

		items := extract.Items(cart.Markup)
		if len(items) == 0 {
			s.logg.Warn(cctx, "no items extracted from cart, skipping customer")
			results = append(results, CustomerResult{Customer: customer, Skipped: true})
			continue
		}

		key := orderstore.NewKey(customer, date)
		pdfPath, csvPath := s.store.ArtifactPaths(orderID, key)
		if err := reports.WriteCustomerPDF(pdfPath, customer, items, cart.OutOfStock); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "write customer report")
		}
		if err := reports.WriteCustomerCSV(csvPath, customer, items); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "write customer export")
		}

		totalQty := 0
		for _, item := range items {
			totalQty += item.Quantity
			merged = append(merged, reports.MergedItem{
				SKU:      item.SKU,
				Quantity: item.Quantity,
				Price:    item.Price,
				Customer: customer,
			})
		}

		metadata[key] = cart.OutOfStock
		results = append(results, CustomerResult{
			Key:        key,
			Customer:   customer,
			Items:      totalQty,
			OutOfStock: cart.OutOfStock,
		})
		s.logg.Info(cctx, "customer artifacts written")
	}

	if len(merged) > 0 {
		stem := fmt.Sprintf("%s-merged-%s", orderID, date.Format("2006-01-02"))
		pdfPath, csvPath := s.store.MergedArtifactPaths(orderID, stem)
		if err := reports.WriteMergedPDF(pdfPath, orderID, merged); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "write merged report")
		}
		if err := reports.WriteMergedCSV(csvPath, merged); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "write merged export")
		}
	}

	if err := s.store.MergeMetadata(ctx, orderID, metadata); err != nil {
		return nil, err
	}
	if err := s.store.SetStatus(ctx, orderID, enums.OrderStatusPending); err != nil {
		return nil, err
	}

	return &ProcessResult{
		OrderID:    orderID,
		Customers:  results,
		MergedRows: len(merged),
	}, nil
}
