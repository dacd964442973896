package ingest

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectSchema_Legacy(t *testing.T) {
	assert.Equal(t, SchemaLegacy, DetectSchema([]string{"Name", "Use Category", "Unit", "Price"}))
}

func TestDetectSchema_LegacyWithOptionalDescription(t *testing.T) {
	assert.Equal(t, SchemaLegacy, DetectSchema([]string{"name", "use_category", "unit", "price", "description"}))
}

func TestDetectSchema_Extended(t *testing.T) {
	assert.Equal(t, SchemaExtended, DetectSchema([]string{"name", "unit_price", "calc_unit", "use_category", "sku"}))
}

func TestDetectSchema_ExtendedWithoutOptionalColumns(t *testing.T) {
	assert.Equal(t, SchemaExtended, DetectSchema([]string{"name", "unit_price", "calc_unit"}))
}

func TestDetectSchema_Unknown(t *testing.T) {
	assert.Equal(t, SchemaUnknown, DetectSchema([]string{"name", "description"}))
}

func TestNormalizeHeader(t *testing.T) {
	assert.Equal(t, "unit_price", normalizeHeader("Unit Price"))
	assert.Equal(t, "calc_unit", normalizeHeader("Calc-Unit"))
	assert.Equal(t, "sku", normalizeHeader("SKU"))
}

func TestRow_ToRawProduct(t *testing.T) {
	price := decimal.RequireFromString("10.50")
	r := Row{
		Name: "Brick", SKU: "B-1", UseCategory: "masonry", Description: "red clay brick",
		UnitPrice: price, UnitPriceCurrency: "RUB", CalcUnit: "pcs", Count: 100,
	}
	rp := r.ToRawProduct("supplier-1", "pricelist-1")
	assert.Equal(t, "supplier-1", rp.SupplierID)
	assert.Equal(t, "pricelist-1", rp.PricelistID)
	assert.Equal(t, "Brick", rp.Name)
	assert.Equal(t, "masonry", rp.UseCategory)
	assert.Equal(t, "red clay brick", rp.Description)
	assert.True(t, price.Equal(rp.UnitPrice))
	assert.Equal(t, 100.0, rp.Count)
}

func TestRow_ToRawProduct_OptionalPriceBundleOmittedWhenNil(t *testing.T) {
	r := Row{Name: "Sand", CalcUnit: "kg", Count: 1}
	rp := r.ToRawProduct("supplier-1", "pricelist-1")
	require.True(t, rp.BuyPrice.IsZero())
	require.True(t, rp.SalePrice.IsZero())
	require.True(t, rp.UnitCalcPrice.IsZero())
}
