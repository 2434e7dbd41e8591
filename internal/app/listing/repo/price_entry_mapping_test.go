package repo

import (
	"encoding/json"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"cloud.google.com/go/spanner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/light-bringer/storefront-listview/internal/app/listing/domain"
	"github.com/light-bringer/storefront-listview/internal/models/m_price_entry"
)

const selectCols = "SELECT entry_id, establishment, beverage, price_numerator, price_denominator, entry_date, receipt_url, verified, created_at, updated_at FROM price_entries"

func sampleData() *m_price_entry.Data {
	return &m_price_entry.Data{
		EntryID:          "e-1",
		Establishment:    "Established Coffee",
		Beverage:         "Flat White",
		PriceNumerator:   16,
		PriceDenominator: 5,
		EntryDate:        civil.Date{Year: 2025, Month: time.March, Day: 4},
		Verified:         true,
		CreatedAt:        time.Date(2025, 3, 4, 9, 30, 0, 0, time.UTC),
		UpdatedAt:        time.Date(2025, 3, 5, 10, 0, 0, 0, time.UTC),
	}
}

func TestBuildListQuery_Defaults(t *testing.T) {
	b, err := buildListQuery(domain.DefaultQueryState(), 10)
	require.NoError(t, err)

	stmt := b.Build()
	assert.Equal(t, selectCols+" ORDER BY created_at DESC, entry_id ASC LIMIT @limit", stmt.SQL)
	assert.Equal(t, map[string]interface{}{"limit": int64(10)}, stmt.Params)

	assert.Equal(t, "SELECT COUNT(*) FROM price_entries", b.Count().Build().SQL)
}

func TestBuildListQuery_AllParameters(t *testing.T) {
	q := domain.DefaultQueryState().
		WithSearchTerm("flat").
		WithDateRange(&domain.DateRange{
			Start: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
			End:   time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC),
		}).
		WithFilter("verified", "true").
		WithFilter("beverage", "Latte").
		WithToggledSort("price").
		WithPage(3)

	b, err := buildListQuery(q, 20)
	require.NoError(t, err)

	stmt := b.Build()
	assert.Equal(t, selectCols+
		" WHERE (LOWER(establishment) LIKE @p0 OR LOWER(beverage) LIKE @p1)"+
		" AND entry_date >= @p2 AND entry_date < @p3"+
		" AND LOWER(beverage) = @p4 AND verified = @p5"+
		" ORDER BY (price_numerator / price_denominator) ASC, entry_id ASC"+
		" LIMIT @limit OFFSET @offset", stmt.SQL)
	assert.Equal(t, map[string]interface{}{
		"p0":     "%flat%",
		"p1":     "%flat%",
		"p2":     civil.Date{Year: 2025, Month: time.January, Day: 1},
		"p3":     civil.Date{Year: 2025, Month: time.February, Day: 1},
		"p4":     "latte",
		"p5":     true,
		"limit":  int64(20),
		"offset": int64(40),
	}, stmt.Params)

	count := b.Count().Build()
	assert.NotContains(t, count.SQL, "ORDER BY")
	assert.NotContains(t, count.Params, "limit")
}

func TestBuildListQuery_OpenEndedRange(t *testing.T) {
	q := domain.DefaultQueryState().WithDateRange(&domain.DateRange{
		End: time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC),
	})

	b, err := buildListQuery(q, 10)
	require.NoError(t, err)

	stmt := b.Build()
	assert.Contains(t, stmt.SQL, "WHERE entry_date < @p0 ORDER BY")
	assert.Equal(t, civil.Date{Year: 2026, Month: time.January, Day: 1}, stmt.Params["p0"])
}

func TestBuildListQuery_Rejects(t *testing.T) {
	t.Run("unsortable field", func(t *testing.T) {
		_, err := buildListQuery(domain.DefaultQueryState().WithToggledSort("receipt_url"), 10)
		assert.ErrorIs(t, err, domain.ErrUnsortableField)
	})

	t.Run("unknown filter", func(t *testing.T) {
		_, err := buildListQuery(domain.DefaultQueryState().WithFilter("rating", "5"), 10)
		assert.ErrorContains(t, err, `unknown filter "rating"`)
	})

	t.Run("bad boolean filter", func(t *testing.T) {
		_, err := buildListQuery(domain.DefaultQueryState().WithFilter("verified", "maybe"), 10)
		assert.Error(t, err)
	})
}

func TestSortableFieldsAreMapped(t *testing.T) {
	for _, f := range SortableFields() {
		_, ok := sortColumns[f]
		assert.True(t, ok, f)
	}
	assert.Contains(t, SortableFields(), domain.DefaultSortField)
}

func TestDataToRecord(t *testing.T) {
	r, err := dataToRecord(sampleData())
	require.NoError(t, err)

	assert.Equal(t, "e-1", r.ID())
	assert.Equal(t, json.Number("3.20"), r[FieldPrice])
	price, ok := r.Float(FieldPrice)
	require.True(t, ok)
	assert.Equal(t, 3.2, price)
	assert.Equal(t, "2025-03-04", r[FieldEntryDate])
	assert.Equal(t, true, r[FieldVerified])
	assert.False(t, r.Has(FieldUploadedDocument))

	d := sampleData()
	d.ReceiptURL = spanner.NullString{StringVal: "https://receipts.example/r1.jpg", Valid: true}
	r, err = dataToRecord(d)
	require.NoError(t, err)
	assert.Equal(t, "https://receipts.example/r1.jpg", r[FieldUploadedDocument])

	d.PriceDenominator = 0
	_, err = dataToRecord(d)
	assert.Error(t, err)
}

func TestApplyRecord_ChangedColumns(t *testing.T) {
	before := sampleData()

	t.Run("unchanged record writes nothing", func(t *testing.T) {
		r, err := dataToRecord(before)
		require.NoError(t, err)

		after := *before
		require.NoError(t, applyRecord(&after, r))
		assert.Empty(t, changedColumns(before, &after))
	})

	t.Run("only edited columns", func(t *testing.T) {
		after := *before
		err := applyRecord(&after, domain.Record{
			domain.FieldID:        "e-1",
			FieldPrice:            "£3.45",
			FieldVerified:         "false",
			FieldUploadedDocument: "https://receipts.example/r2.jpg",
			FieldCreatedAt:        "ignored",
		})
		require.NoError(t, err)

		assert.Equal(t, map[string]interface{}{
			m_price_entry.PriceNumerator:   int64(69),
			m_price_entry.PriceDenominator: int64(20),
			m_price_entry.Verified:         false,
			m_price_entry.ReceiptURL:       spanner.NullString{StringVal: "https://receipts.example/r2.jpg", Valid: true},
		}, changedColumns(before, &after))
	})

	t.Run("clearing the document", func(t *testing.T) {
		withDoc := *before
		withDoc.ReceiptURL = spanner.NullString{StringVal: "x", Valid: true}
		after := withDoc
		require.NoError(t, applyRecord(&after, domain.Record{FieldUploadedDocument: nil}))
		assert.Equal(t, spanner.NullString{}, after.ReceiptURL)
	})

	t.Run("entry date", func(t *testing.T) {
		after := *before
		require.NoError(t, applyRecord(&after, domain.Record{FieldEntryDate: "2025-04-01"}))
		assert.Equal(t, civil.Date{Year: 2025, Month: time.April, Day: 1}, after.EntryDate)
	})
}

func TestApplyRecord_Rejects(t *testing.T) {
	tests := map[string]domain.Record{
		"empty establishment": {FieldEstablishment: "  "},
		"negative price":      {FieldPrice: -1.5},
		"price not a number":  {FieldPrice: "cheap"},
		"bad date":            {FieldEntryDate: "yesterday"},
		"bad verified":        {FieldVerified: 3},
	}

	for name, r := range tests {
		t.Run(name, func(t *testing.T) {
			data := sampleData()
			assert.Error(t, applyRecord(data, r))
		})
	}
}

func TestNewEntryData(t *testing.T) {
	today := civil.Date{Year: 2025, Month: time.June, Day: 1}

	data, err := newEntryData("new-id", domain.Record{
		FieldEstablishment: "Kaffe O",
		FieldBeverage:      "Cortado",
		FieldPrice:         json.Number("3.10"),
	}, today)
	require.NoError(t, err)
	assert.Equal(t, "new-id", data.EntryID)
	assert.Equal(t, today, data.EntryDate)
	assert.Equal(t, int64(31), data.PriceNumerator)
	assert.Equal(t, int64(10), data.PriceDenominator)

	_, err = newEntryData("new-id", domain.Record{FieldEstablishment: "Kaffe O"}, today)
	assert.ErrorContains(t, err, `"beverage" is required`)
}
