package ingest

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"manifold/internal/objectstore"
)

func TestParseCSV_LegacySchema(t *testing.T) {
	csv := "name,use_category,unit,price,description\nBrick,masonry,pcs,10.50,red clay brick\nCement,binders,kg,5.00,\n"
	rows, schema, err := parseCSV([]byte(csv))
	require.NoError(t, err)
	assert.Equal(t, SchemaLegacy, schema)
	require.Len(t, rows, 2)
	assert.Equal(t, "Brick", rows[0].Name)
	assert.Equal(t, "masonry", rows[0].UseCategory)
	assert.Equal(t, "pcs", rows[0].CalcUnit)
	assert.Equal(t, "red clay brick", rows[0].Description)
	assert.True(t, decimal.RequireFromString("10.50").Equal(rows[0].UnitPrice))
	assert.Equal(t, "RUB", rows[0].UnitPriceCurrency, "currency defaults to RUB when absent")
	assert.Equal(t, 1.0, rows[0].Count, "count defaults to 1 when absent")
}

func TestParseCSV_LegacyAcceptsDecimalComma(t *testing.T) {
	csv := "name,use_category,unit,price\nBrick,masonry,pcs,\"10,50\"\n"
	rows, _, err := parseCSV([]byte(csv))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, decimal.RequireFromString("10.50").Equal(rows[0].UnitPrice))
}

func TestParseCSV_ExtendedSchema(t *testing.T) {
	csv := "name,sku,use_category,unit_price,unit_price_currency,unit_calc_price,buy_price,sale_price,calc_unit,count,date_price_change\n" +
		"Rebar,R-12,metal,100.00,USD,95.00,80.00,110.00,kg,25,2024-03-01\n"
	rows, schema, err := parseCSV([]byte(csv))
	require.NoError(t, err)
	assert.Equal(t, SchemaExtended, schema)
	require.Len(t, rows, 1)
	row := rows[0]
	assert.Equal(t, "R-12", row.SKU)
	assert.Equal(t, "USD", row.UnitPriceCurrency)
	assert.Equal(t, 25.0, row.Count)
	require.NotNil(t, row.UnitCalcPrice)
	assert.True(t, decimal.RequireFromString("95.00").Equal(*row.UnitCalcPrice))
	require.NotNil(t, row.BuyPrice)
	assert.True(t, decimal.RequireFromString("80.00").Equal(*row.BuyPrice))
	require.NotNil(t, row.SalePrice)
	assert.True(t, decimal.RequireFromString("110.00").Equal(*row.SalePrice))
	require.NotNil(t, row.DatePriceChange)
	assert.Equal(t, 2024, row.DatePriceChange.Year())
}

func TestParseCSV_SkipsBlankNameRows(t *testing.T) {
	csv := "name,unit_price,calc_unit\n,10.50,pcs\nCement,5.00,kg\n"
	rows, _, err := parseCSV([]byte(csv))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Cement", rows[0].Name)
}

func TestParseCSV_UnrecognizedColumnsErrors(t *testing.T) {
	csv := "foo,bar\n1,2\n"
	_, _, err := parseCSV([]byte(csv))
	assert.Error(t, err)
}

func TestParseCSV_EmptyFileErrors(t *testing.T) {
	_, _, err := parseCSV([]byte(""))
	assert.Error(t, err)
}

func TestDedupRows_RemovesDuplicateNameUnitPairs(t *testing.T) {
	rows := []Row{
		{Name: "Brick", CalcUnit: "pcs"},
		{Name: "brick", CalcUnit: "PCS"},
		{Name: "Cement", CalcUnit: "kg"},
	}
	out, dupes := dedupRows(rows)
	assert.Len(t, out, 2)
	assert.Equal(t, 1, dupes)
}

func TestArchiveKeyFor(t *testing.T) {
	assert.Equal(t, "ingest/sup-1/pl-1/file.csv", objectstore.ArchiveKey("sup-1", "pl-1", "file.csv"))
}
