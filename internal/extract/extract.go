// Package extract pulls line items out of saved shopping-cart HTML snapshots.
//
// The cart pages embed their state as JSON fragments inside script tags, so
// extraction is positional: the i-th SKU match is correlated with the i-th
// quantity, name, and price match from independent searches. This is a narrow
// contract, not a general HTML parser.
package extract

import (
	"regexp"
	"strconv"

	"github.com/shopspring/decimal"
)

// LineItem is one extracted cart row. Price is empty when the snapshot has no
// usable price field at the item's position.
type LineItem struct {
	SKU      string              `json:"sku"`
	Quantity int                 `json:"quantity"`
	Name     string              `json:"name"`
	Price    decimal.NullDecimal `json:"price"`
}

var (
	skuPattern       = regexp.MustCompile(`"goods_sn"\s*:\s*"([^"]+)"`)
	quantityPattern  = regexp.MustCompile(`"quantity"\s*:\s*"([^"]+)"`)
	namePattern      = regexp.MustCompile(`"goods_name"\s*:\s*"([^"]+)"`)
	estimatedPattern = regexp.MustCompile(`"estimatedPrice"\s*:\s*\{[^\}]*"amount"\s*:\s*"([\d.]+)"`)
	unitPattern      = regexp.MustCompile(`"unitPrice"\s*:\s*\{[^\}]*"amount"\s*:\s*"([\d.]+)"`)
)

// Items extracts all line items from the snapshot. The post-discount
// "estimatedPrice" at the same position wins over "unitPrice"; with neither,
// the price stays empty. Ragged inputs (fewer quantity or name matches than
// SKU matches) truncate the result rather than erroring. An empty result is a
// valid outcome for markup without cart records.
func Items(markup string) []LineItem {
	skus := captures(skuPattern, markup)
	quantities := captures(quantityPattern, markup)
	names := captures(namePattern, markup)
	estimated := captures(estimatedPattern, markup)
	unit := captures(unitPattern, markup)

	n := len(skus)
	if len(quantities) < n {
		n = len(quantities)
	}
	if len(names) < n {
		n = len(names)
	}

	items := make([]LineItem, 0, n)
	for i := 0; i < n; i++ {
		items = append(items, LineItem{
			SKU:      skus[i],
			Quantity: parseQuantity(quantities[i]),
			Name:     names[i],
			Price:    priceAt(estimated, unit, i),
		})
	}
	return items
}

func captures(pattern *regexp.Regexp, markup string) []string {
	matches := pattern.FindAllStringSubmatch(markup, -1)
	values := make([]string, 0, len(matches))
	for _, m := range matches {
		values = append(values, m[1])
	}
	return values
}

func parseQuantity(raw string) int {
	qty, err := strconv.Atoi(raw)
	if err != nil || qty < 0 {
		return 0
	}
	return qty
}

func priceAt(estimated, unit []string, i int) decimal.NullDecimal {
	if i < len(estimated) && estimated[i] != "" {
		if d, err := decimal.NewFromString(estimated[i]); err == nil {
			return decimal.NullDecimal{Decimal: d, Valid: true}
		}
	}
	if i < len(unit) && unit[i] != "" {
		if d, err := decimal.NewFromString(unit[i]); err == nil {
			return decimal.NullDecimal{Decimal: d, Valid: true}
		}
	}
	return decimal.NullDecimal{}
}
