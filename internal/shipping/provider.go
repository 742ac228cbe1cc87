// Package shipping loads the shared shipping spreadsheet and answers
// per-order, per-customer delivery questions: who gets the parcel, where it
// goes, and how much cash the courier collects.
package shipping

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/shipbee/backoffice/pkg/config"
	pkgerrors "github.com/shipbee/backoffice/pkg/errors"
	"github.com/shipbee/backoffice/pkg/logger"
)

// Record is the joined shipping view for one customer on one order.
type Record struct {
	FullName   string          `json:"full_name"`
	Phone      string          `json:"phone"`
	Address    string          `json:"address"`
	SoldPrice  decimal.Decimal `json:"sold_price"`
	AmountPaid decimal.Decimal `json:"amount_paid"`
	ItemCount  int             `json:"item_count"`
	MapLink    string          `json:"map_link"`
}

// AmountDue is the cash the courier collects on delivery.
func (r Record) AmountDue() decimal.Decimal {
	return r.SoldPrice.Sub(r.AmountPaid)
}

type lineRow struct {
	fullName    string
	orderNumber string
	itemCount   int
	soldPrice   decimal.Decimal
	amountPaid  decimal.Decimal
}

type baseRow struct {
	phone   string
	address string
	mapLink string
}

// Provider fetches the spreadsheet lazily and caches the parsed rows for the
// configured TTL. Refresh drops the cache early when the operator knows the
// sheet changed.
type Provider struct {
	cfg    config.ShippingConfig
	logg   *logger.Logger
	client *http.Client

	mu        sync.RWMutex
	lines     []lineRow
	base      map[string]baseRow
	fetchedAt time.Time
}

func NewProvider(cfg config.ShippingConfig, logg *logger.Logger) (*Provider, error) {
	if strings.TrimSpace(cfg.SheetURL) == "" {
		return nil, fmt.Errorf("shipping sheet url required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Provider{
		cfg:    cfg,
		logg:   logg,
		client: &http.Client{Timeout: cfg.FetchTimeout},
	}, nil
}

// ForOrder returns every shipping record whose order number matches the
// identifier cut at its first comma, trimmed. Operators paste identifiers
// with annotations after a comma; the sheet carries the bare number. Matched
// lines join to the base sheet on the customer full name, so customers absent
// from the base sheet still list, without phone/address/map link.
func (p *Provider) ForOrder(ctx context.Context, orderID string) ([]Record, error) {
	lines, base, err := p.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	want := matchKey(orderID)
	var records []Record
	for _, line := range lines {
		if line.orderNumber != want {
			continue
		}
		rec := Record{
			FullName:   line.fullName,
			SoldPrice:  line.soldPrice,
			AmountPaid: line.amountPaid,
			ItemCount:  line.itemCount,
		}
		if b, ok := base[matchKey(line.fullName)]; ok {
			rec.Phone = b.phone
			rec.Address = b.address
			rec.MapLink = b.mapLink
		}
		records = append(records, rec)
	}
	return records, nil
}

// ForCustomer finds the one record on the order matching the customer name.
func (p *Provider) ForCustomer(ctx context.Context, orderID, customer string) (*Record, error) {
	records, err := p.ForOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	want := matchKey(customer)
	for _, rec := range records {
		if matchKey(rec.FullName) == want {
			r := rec
			return &r, nil
		}
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("no shipping record for %q on order %q", customer, orderID))
}

// Refresh discards the cache and fetches the sheet immediately.
func (p *Provider) Refresh(ctx context.Context) error {
	lines, base, err := p.fetch(ctx)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.lines, p.base, p.fetchedAt = lines, base, time.Now()
	p.mu.Unlock()
	return nil
}

func (p *Provider) snapshot(ctx context.Context) ([]lineRow, map[string]baseRow, error) {
	p.mu.RLock()
	if p.base != nil && time.Since(p.fetchedAt) < p.cfg.CacheTTL {
		lines, base := p.lines, p.base
		p.mu.RUnlock()
		return lines, base, nil
	}
	p.mu.RUnlock()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.base != nil && time.Since(p.fetchedAt) < p.cfg.CacheTTL {
		return p.lines, p.base, nil
	}
	lines, base, err := p.fetch(ctx)
	if err != nil {
		// serve stale data over failing the request outright
		if p.base != nil {
			p.logg.Warn(ctx, "spreadsheet refresh failed, serving stale shipping data")
			return p.lines, p.base, nil
		}
		return nil, nil, err
	}
	p.lines, p.base, p.fetchedAt = lines, base, time.Now()
	return p.lines, p.base, nil
}

// fetch downloads and parses the workbook. The read is idempotent, so one
// retry on failure is safe.
func (p *Provider) fetch(ctx context.Context) ([]lineRow, map[string]baseRow, error) {
	lines, base, err := p.fetchOnce(ctx)
	if err != nil && p.cfg.RetryOnFailure {
		p.logg.Warn(ctx, "spreadsheet fetch failed, retrying once")
		lines, base, err = p.fetchOnce(ctx)
	}
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fetch shipping spreadsheet")
	}
	return lines, base, nil
}

func (p *Provider) fetchOnce(ctx context.Context) ([]lineRow, map[string]baseRow, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.SheetURL, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("download sheet: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, nil, fmt.Errorf("download sheet: status %d", resp.StatusCode)
	}

	wb, err := excelize.OpenReader(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("parse workbook: %w", err)
	}
	defer wb.Close()

	lines, err := parseLines(wb, p.cfg.LinesSheet)
	if err != nil {
		return nil, nil, err
	}
	base, err := parseBase(wb, p.cfg.BaseSheet)
	if err != nil {
		return nil, nil, err
	}
	return lines, base, nil
}

func parseLines(wb *excelize.File, sheet string) ([]lineRow, error) {
	rows, err := wb.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	cols := headerIndex(rows[0])
	lines := make([]lineRow, 0, len(rows)-1)
	for _, row := range rows[1:] {
		line := lineRow{
			fullName:    cell(row, cols, "customer full name"),
			orderNumber: cell(row, cols, "order number"),
			soldPrice:   cellDecimal(row, cols, "sold price"),
			amountPaid:  cellDecimal(row, cols, "amount paid"),
		}
		if qty, err := strconv.Atoi(cell(row, cols, "item count")); err == nil {
			line.itemCount = qty
		}
		if line.fullName == "" && line.orderNumber == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines, nil
}

func parseBase(wb *excelize.File, sheet string) (map[string]baseRow, error) {
	rows, err := wb.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	base := make(map[string]baseRow)
	if len(rows) == 0 {
		return base, nil
	}

	cols := headerIndex(rows[0])
	for _, row := range rows[1:] {
		name := cell(row, cols, "customer full name")
		if name == "" {
			continue
		}
		base[matchKey(name)] = baseRow{
			phone:   cell(row, cols, "phone"),
			address: cell(row, cols, "address"),
			mapLink: cell(row, cols, "map link"),
		}
	}
	return base, nil
}

// matchKey normalizes a customer name for joining: the part before the first
// comma, trimmed. Sheet rows sometimes carry annotations after a comma.
func matchKey(name string) string {
	if i := strings.Index(name, ","); i >= 0 {
		name = name[:i]
	}
	return strings.TrimSpace(name)
}

func headerIndex(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	return cols
}

func cell(row []string, cols map[string]int, name string) string {
	if i, ok := cols[name]; ok && i < len(row) {
		return strings.TrimSpace(row[i])
	}
	return ""
}

func cellDecimal(row []string, cols map[string]int, name string) decimal.Decimal {
	raw := cell(row, cols, name)
	if raw == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero
	}
	return d
}
