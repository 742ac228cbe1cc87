package orderstore

import (
	"regexp"
	"strings"
	"time"
)

// Key identifies one customer's artifacts within an order. It is generated
// once at processing time and threaded through metadata entries and report
// filenames, so the listing surface never has to reverse-engineer a customer
// name out of a PDF filename.
type Key string

var (
	nonWordRuns = regexp.MustCompile(`\W+`)
	dateSuffix  = regexp.MustCompile(`-\d{4}-\d{2}-\d{2}$`)
)

// NewKey builds the artifact key for a customer processed on the given date,
// e.g. "Jane_Doe-2026-08-28".
func NewKey(customer string, date time.Time) Key {
	safe := nonWordRuns.ReplaceAllString(customer, "_")
	return Key(safe + "-" + date.Format("2006-01-02"))
}

func (k Key) String() string {
	return string(k)
}

// DisplayName recovers the human-readable customer name from the key.
func (k Key) DisplayName() string {
	stem := dateSuffix.ReplaceAllString(string(k), "")
	return strings.ReplaceAll(stem, "_", " ")
}

// NormalizeName reduces a customer name to the sanitized form keys are built
// from. Names recovered from a key lose their punctuation, so comparing
// normalized forms is the only equality that holds on both sides.
func NormalizeName(name string) string {
	return strings.Trim(nonWordRuns.ReplaceAllString(name, "_"), "_")
}
