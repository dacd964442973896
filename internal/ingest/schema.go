// Package ingest implements the bulk upload front door: detecting the
// incoming row schema, inferring missing fields from a lexicon, deduping
// within a batch, archiving the source file, and handing the normalized
// rows to the batch orchestrator.
package ingest

import (
	"time"

	"github.com/shopspring/decimal"

	"manifold/internal/models"
)

// Schema names the two supported row shapes.
type Schema string

const (
	SchemaLegacy   Schema = "legacy"
	SchemaExtended Schema = "extended"
	SchemaUnknown  Schema = "unknown"
)

// legacyColumns are the header set a legacy-shaped pricelist carries:
// name, use_category, unit, price, with an optional description. extended
// rows replace unit/price with unit_price/calc_unit and add the rest of
// the price bundle, sku, and count.
var legacyColumns = []string{"name", "use_category", "unit", "price"}
var extendedColumns = []string{"name", "unit_price", "calc_unit"}

// DetectSchema classifies a header row as legacy or extended based on which
// columns are present. unit_price+calc_unit is the extended signature,
// since legacy carries the same concepts under unit/price instead. Unknown
// is returned when neither full column set is present.
func DetectSchema(headers []string) Schema {
	present := make(map[string]bool, len(headers))
	for _, h := range headers {
		present[normalizeHeader(h)] = true
	}
	hasAll := func(cols []string) bool {
		for _, c := range cols {
			if !present[c] {
				return false
			}
		}
		return true
	}
	switch {
	case hasAll(extendedColumns):
		return SchemaExtended
	case hasAll(legacyColumns):
		return SchemaLegacy
	default:
		return SchemaUnknown
	}
}

func normalizeHeader(h string) string {
	out := make([]rune, 0, len(h))
	for _, r := range h {
		switch r {
		case ' ', '-':
			out = append(out, '_')
		default:
			if r >= 'A' && r <= 'Z' {
				r = r - 'A' + 'a'
			}
			out = append(out, r)
		}
	}
	return string(out)
}

// Row is a single parsed input row before lexicon inference and dedup.
// Price fields use decimal.Decimal to avoid float rounding on supplier
// prices; the optional price-bundle fields are nil when the column was
// absent or blank.
type Row struct {
	Name              string
	SKU               string
	UseCategory       string
	Description       string
	UnitPrice         decimal.Decimal
	UnitPriceCurrency string
	BuyPrice          *decimal.Decimal
	SalePrice         *decimal.Decimal
	UnitCalcPrice     *decimal.Decimal
	CalcUnit          string
	Count             float64
	DatePriceChange   *time.Time
}

// ToRawProduct converts a Row into the RawProduct shape the batch
// orchestrator consumes, stamping supplier/pricelist linkage.
func (r Row) ToRawProduct(supplierID, pricelistID string) models.RawProduct {
	rp := models.RawProduct{
		SupplierID:        supplierID,
		PricelistID:       pricelistID,
		Name:              r.Name,
		SKU:               r.SKU,
		UseCategory:       r.UseCategory,
		Description:       r.Description,
		UnitPrice:         r.UnitPrice,
		UnitPriceCurrency: r.UnitPriceCurrency,
		CalcUnit:          r.CalcUnit,
		Count:             r.Count,
		DatePriceChange:   r.DatePriceChange,
	}
	if r.BuyPrice != nil {
		rp.BuyPrice = *r.BuyPrice
	}
	if r.SalePrice != nil {
		rp.SalePrice = *r.SalePrice
	}
	if r.UnitCalcPrice != nil {
		rp.UnitCalcPrice = *r.UnitCalcPrice
	}
	return rp
}
