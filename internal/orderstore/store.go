// Package orderstore persists orders as directory trees on the local
// filesystem: report artifacts under individual/ and merged/, the review
// status and out-of-stock metadata as small JSON files. Orders move between
// the active root and an archived/ subtree without touching their contents.
package orderstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/shipbee/backoffice/internal/reports"
	"github.com/shipbee/backoffice/pkg/enums"
	pkgerrors "github.com/shipbee/backoffice/pkg/errors"
	"github.com/shipbee/backoffice/pkg/logger"
)

const (
	individualPDFDir = "individual/pdf"
	individualCSVDir = "individual/csv"
	mergedPDFDir     = "merged/pdf"
	mergedCSVDir     = "merged/csv"
	metadataFile     = "individual/metadata.json"
	statusFile       = "status.json"
	archivedDir      = "archived"
)

var orderSubdirs = []string{individualPDFDir, individualCSVDir, mergedPDFDir, mergedCSVDir}

// Store is the filesystem-backed order repository. All mutating operations
// take a per-order advisory lock, so concurrent requests against the same
// order serialize instead of racing on metadata.json or directory moves.
type Store struct {
	root  string
	logg  *logger.Logger
	locks *lockTable
}

// OrderSummary is one row of the active or archived listing.
type OrderSummary struct {
	ID       string            `json:"id"`
	Status   enums.OrderStatus `json:"status"`
	Archived bool              `json:"archived"`
}

// CustomerSummary is one row of the per-order customer listing, derived from
// the artifacts on disk.
type CustomerSummary struct {
	Key        Key    `json:"key"`
	Name       string `json:"name"`
	TotalItems int    `json:"total_items"`
	OutOfStock int    `json:"out_of_stock"`
}

type statusDoc struct {
	Status string `json:"status"`
}

// New builds a Store rooted at dataDir, creating it if needed.
func New(dataDir string, logg *logger.Logger) (*Store, error) {
	if strings.TrimSpace(dataDir) == "" {
		return nil, fmt.Errorf("data directory required")
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	return &Store{
		root:  dataDir,
		logg:  logg,
		locks: newLockTable(),
	}, nil
}

// ValidateOrderID rejects identifiers that would escape the data directory or
// collide with the reserved archive subtree.
func ValidateOrderID(id string) error {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	if trimmed == archivedDir {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id is reserved")
	}
	if trimmed == "." || trimmed == ".." ||
		strings.ContainsAny(trimmed, `/\`) ||
		strings.ContainsRune(trimmed, 0) {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id contains illegal characters")
	}
	return nil
}

func (s *Store) orderDir(orderID string) string {
	return filepath.Join(s.root, orderID)
}

func (s *Store) archivedOrderDir(orderID string) string {
	return filepath.Join(s.root, archivedDir, orderID)
}

// Exists reports whether an active order directory is present.
func (s *Store) Exists(orderID string) bool {
	info, err := os.Stat(s.orderDir(orderID))
	return err == nil && info.IsDir()
}

// EnsureOrder idempotently creates the order's directory skeleton.
func (s *Store) EnsureOrder(ctx context.Context, orderID string) error {
	if err := ValidateOrderID(orderID); err != nil {
		return err
	}
	unlock := s.locks.acquire(orderID)
	defer unlock()

	for _, sub := range orderSubdirs {
		if err := os.MkdirAll(filepath.Join(s.orderDir(orderID), sub), 0o755); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create order directories")
		}
	}
	return nil
}

// ArtifactPaths returns the destination paths for a customer's PDF and CSV.
func (s *Store) ArtifactPaths(orderID string, key Key) (pdfPath, csvPath string) {
	base := s.orderDir(orderID)
	return filepath.Join(base, individualPDFDir, key.String()+".pdf"),
		filepath.Join(base, individualCSVDir, key.String()+".csv")
}

// MergedArtifactPaths returns the destination paths for the merged PDF and CSV.
func (s *Store) MergedArtifactPaths(orderID, stem string) (pdfPath, csvPath string) {
	base := s.orderDir(orderID)
	return filepath.Join(base, mergedPDFDir, stem+".pdf"),
		filepath.Join(base, mergedCSVDir, stem+".csv")
}

// MergeMetadata folds new out-of-stock counts into metadata.json, overwriting
// per key on reprocessing. An empty map still materializes the file so a
// processed order always carries metadata.
func (s *Store) MergeMetadata(ctx context.Context, orderID string, entries map[Key]int) error {
	unlock := s.locks.acquire(orderID)
	defer unlock()

	existing, err := s.readMetadata(ctx, orderID)
	if err != nil {
		return err
	}
	for key, count := range entries {
		existing[key] = count
	}
	return s.writeJSONAtomic(filepath.Join(s.orderDir(orderID), metadataFile), existing)
}

// Metadata returns the out-of-stock counts, fail-open to empty.
func (s *Store) Metadata(ctx context.Context, orderID string) (map[Key]int, error) {
	return s.readMetadata(ctx, orderID)
}

func (s *Store) readMetadata(ctx context.Context, orderID string) (map[Key]int, error) {
	path := filepath.Join(s.orderDir(orderID), metadataFile)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return map[Key]int{}, nil
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "read metadata")
	}
	meta := map[Key]int{}
	if err := json.Unmarshal(data, &meta); err != nil {
		if s.logg != nil {
			s.logg.Warn(s.logg.WithOrderID(ctx, orderID), "metadata unreadable, treating as empty")
		}
		return map[Key]int{}, nil
	}
	return meta, nil
}

// Status reads the order's review status. A missing or unreadable status file
// means pending; the parse failure is logged, not surfaced.
func (s *Store) Status(ctx context.Context, orderID string) enums.OrderStatus {
	data, err := os.ReadFile(filepath.Join(s.orderDir(orderID), statusFile))
	if err != nil {
		return enums.OrderStatusPending
	}
	var doc statusDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		if s.logg != nil {
			s.logg.Warn(s.logg.WithOrderID(ctx, orderID), "status file unreadable, defaulting to pending")
		}
		return enums.OrderStatusPending
	}
	status, err := enums.ParseOrderStatus(doc.Status)
	if err != nil {
		if s.logg != nil {
			s.logg.Warn(s.logg.WithOrderID(ctx, orderID), "unknown status value, defaulting to pending")
		}
		return enums.OrderStatusPending
	}
	return status
}

// SetStatus replaces the status file atomically.
func (s *Store) SetStatus(ctx context.Context, orderID string, status enums.OrderStatus) error {
	if !status.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "status must be pending or checked")
	}
	if !s.Exists(orderID) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	unlock := s.locks.acquire(orderID)
	defer unlock()

	return s.writeJSONAtomic(filepath.Join(s.orderDir(orderID), statusFile), statusDoc{Status: status.String()})
}

// Rename moves an active order to a new identifier. The destination must not
// exist, in either the active root or the archive.
func (s *Store) Rename(ctx context.Context, orderID, newID string) error {
	if err := ValidateOrderID(newID); err != nil {
		return err
	}
	if !s.Exists(orderID) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	// both identifiers locked: the destination existence check below must not
	// race a concurrent rename to the same destination
	unlock := s.locks.acquirePair(orderID, newID)
	defer unlock()

	if pathExists(s.orderDir(newID)) || pathExists(s.archivedOrderDir(newID)) {
		return pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("order %q already exists", newID))
	}
	if err := os.Rename(s.orderDir(orderID), s.orderDir(newID)); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "rename order")
	}
	return nil
}

// Archive moves the order into the archived subtree, removing it from the
// active listing.
func (s *Store) Archive(ctx context.Context, orderID string) error {
	if !s.Exists(orderID) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	unlock := s.locks.acquire(orderID)
	defer unlock()

	if err := os.MkdirAll(filepath.Join(s.root, archivedDir), 0o755); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create archive directory")
	}
	if pathExists(s.archivedOrderDir(orderID)) {
		return pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("order %q already archived", orderID))
	}
	if err := os.Rename(s.orderDir(orderID), s.archivedOrderDir(orderID)); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "archive order")
	}
	return nil
}

// Unarchive restores an archived order to the active listing.
func (s *Store) Unarchive(ctx context.Context, orderID string) error {
	if err := ValidateOrderID(orderID); err != nil {
		return err
	}
	unlock := s.locks.acquire(orderID)
	defer unlock()

	if !pathExists(s.archivedOrderDir(orderID)) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "archived order not found")
	}
	if pathExists(s.orderDir(orderID)) {
		return pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("order %q already active", orderID))
	}
	if err := os.Rename(s.archivedOrderDir(orderID), s.orderDir(orderID)); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "unarchive order")
	}
	return nil
}

// Delete removes the order tree recursively. Deleting a missing order is not
// an error.
func (s *Store) Delete(ctx context.Context, orderID string) error {
	if err := ValidateOrderID(orderID); err != nil {
		return err
	}
	unlock := s.locks.acquire(orderID)
	defer unlock()

	if err := os.RemoveAll(s.orderDir(orderID)); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete order")
	}
	return nil
}

// List returns active orders sorted by identifier, with their status.
func (s *Store) List(ctx context.Context) ([]OrderSummary, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list orders")
	}
	summaries := make([]OrderSummary, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() || entry.Name() == archivedDir {
			continue
		}
		summaries = append(summaries, OrderSummary{
			ID:     entry.Name(),
			Status: s.Status(ctx, entry.Name()),
		})
	}
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].ID < summaries[j].ID })
	return summaries, nil
}

// ListArchived returns archived order identifiers sorted by name.
func (s *Store) ListArchived(ctx context.Context) ([]OrderSummary, error) {
	entries, err := os.ReadDir(filepath.Join(s.root, archivedDir))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list archived orders")
	}
	summaries := make([]OrderSummary, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		summaries = append(summaries, OrderSummary{ID: entry.Name(), Archived: true})
	}
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].ID < summaries[j].ID })
	return summaries, nil
}

// Customers derives the per-customer listing from the artifacts on disk: one
// row per individual PDF, item totals from the matching CSV, out-of-stock
// counts from metadata. A PDF without a CSV lists with total 0.
func (s *Store) Customers(ctx context.Context, orderID string) ([]CustomerSummary, error) {
	pdfDir := filepath.Join(s.orderDir(orderID), individualPDFDir)
	entries, err := os.ReadDir(pdfDir)
	if os.IsNotExist(err) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list customer artifacts")
	}

	meta, err := s.readMetadata(ctx, orderID)
	if err != nil {
		return nil, err
	}

	var summaries []CustomerSummary
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".pdf") {
			continue
		}
		key := Key(strings.TrimSuffix(name, ".pdf"))

		total := 0
		csvPath := filepath.Join(s.orderDir(orderID), individualCSVDir, key.String()+".csv")
		rows, err := reports.ReadCSV(csvPath)
		if err != nil {
			if s.logg != nil {
				ctx := s.logg.WithFields(ctx, map[string]any{"order_id": orderID, "customer_key": key.String()})
				s.logg.Warn(ctx, "customer export missing or unreadable, listing total 0")
			}
		} else {
			for _, row := range rows {
				total += row.Quantity
			}
		}

		summaries = append(summaries, CustomerSummary{
			Key:        key,
			Name:       key.DisplayName(),
			TotalItems: total,
			OutOfStock: meta[key],
		})
	}
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].Key < summaries[j].Key })
	return summaries, nil
}

// LatestMergedPDF returns the newest merged PDF path for download.
func (s *Store) LatestMergedPDF(orderID string) (string, error) {
	dir := filepath.Join(s.orderDir(orderID), mergedPDFDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", pkgerrors.New(pkgerrors.CodeNotFound, "merged report not found")
	}
	var pdfs []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".pdf") {
			pdfs = append(pdfs, entry.Name())
		}
	}
	if len(pdfs) == 0 {
		return "", pkgerrors.New(pkgerrors.CodeNotFound, "merged report not found")
	}
	sort.Strings(pdfs)
	return filepath.Join(dir, pdfs[len(pdfs)-1]), nil
}

// CustomerPDF returns the report path for the given artifact key.
func (s *Store) CustomerPDF(orderID string, key Key) (string, error) {
	path := filepath.Join(s.orderDir(orderID), individualPDFDir, key.String()+".pdf")
	if !pathExists(path) {
		return "", pkgerrors.New(pkgerrors.CodeNotFound, "customer report not found")
	}
	return path, nil
}

// LatestMergedCSV returns the newest merged CSV path, used by the SKU lookup.
func (s *Store) LatestMergedCSV(orderID string) (string, error) {
	dir := filepath.Join(s.orderDir(orderID), mergedCSVDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", pkgerrors.New(pkgerrors.CodeNotFound, "merged export not found")
	}
	var csvs []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(strings.ToLower(entry.Name()), ".csv") {
			csvs = append(csvs, entry.Name())
		}
	}
	if len(csvs) == 0 {
		return "", pkgerrors.New(pkgerrors.CodeNotFound, "merged export not found")
	}
	sort.Strings(csvs)
	return filepath.Join(dir, csvs[len(csvs)-1]), nil
}

func (s *Store) writeJSONAtomic(path string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode json")
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create temp file")
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "write temp file")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "close temp file")
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "replace file")
	}
	return nil
}

func pathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
