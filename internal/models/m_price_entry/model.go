package m_price_entry

import (
	"cloud.google.com/go/spanner"
)

// Model provides type-safe database operations for price entries.
type Model struct{}

// NewModel creates a new price entry model.
func NewModel() *Model {
	return &Model{}
}

// InsertMut creates a mutation inserting a price entry. Both timestamps are
// set to the commit timestamp.
func (m *Model) InsertMut(data *Data) *spanner.Mutation {
	return spanner.Insert(
		TableName,
		[]string{
			EntryID,
			Establishment,
			Beverage,
			PriceNumerator,
			PriceDenominator,
			EntryDate,
			ReceiptURL,
			Verified,
			CreatedAt,
			UpdatedAt,
		},
		[]interface{}{
			data.EntryID,
			data.Establishment,
			data.Beverage,
			data.PriceNumerator,
			data.PriceDenominator,
			data.EntryDate,
			data.ReceiptURL,
			data.Verified,
			spanner.CommitTimestamp,
			spanner.CommitTimestamp,
		},
	)
}

// UpdateMut creates a mutation updating the given columns of one entry.
// updated_at is always refreshed. An empty updates map yields nil.
func (m *Model) UpdateMut(entryID string, updates map[string]interface{}) *spanner.Mutation {
	if len(updates) == 0 {
		return nil
	}

	columns := make([]string, 0, len(updates)+2)
	values := make([]interface{}, 0, len(updates)+2)

	columns = append(columns, EntryID)
	values = append(values, entryID)

	for col, val := range updates {
		if col == EntryID || col == CreatedAt || col == UpdatedAt {
			continue
		}
		columns = append(columns, col)
		values = append(values, val)
	}

	columns = append(columns, UpdatedAt)
	values = append(values, spanner.CommitTimestamp)

	return spanner.Update(TableName, columns, values)
}

// DeleteMut creates a mutation deleting one entry.
func (m *Model) DeleteMut(entryID string) *spanner.Mutation {
	return spanner.Delete(TableName, spanner.Key{entryID})
}

// ReadColumns returns the column names read into Data, in struct order.
func (m *Model) ReadColumns() []string {
	return []string{
		EntryID,
		Establishment,
		Beverage,
		PriceNumerator,
		PriceDenominator,
		EntryDate,
		ReceiptURL,
		Verified,
		CreatedAt,
		UpdatedAt,
	}
}
