package testutil

import (
	"context"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"cloud.google.com/go/spanner"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/light-bringer/storefront-listview/internal/models/m_price_entry"
)

// EntryFixture describes a price entry inserted directly into the database.
// Prices are in cents.
type EntryFixture struct {
	Establishment string
	Beverage      string
	PriceCents    int64
	EntryDate     civil.Date
	ReceiptURL    string
	Verified      bool
	CreatedAt     time.Time
}

// CreateTestEntry inserts a price entry and returns its id. A zero
// CreatedAt uses the current time.
func CreateTestEntry(t *testing.T, client *spanner.Client, f EntryFixture) string {
	t.Helper()

	id := uuid.New().String()
	created := f.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	entryDate := f.EntryDate
	if !entryDate.IsValid() {
		entryDate = civil.DateOf(created)
	}

	data := &m_price_entry.Data{
		EntryID:          id,
		Establishment:    f.Establishment,
		Beverage:         f.Beverage,
		PriceNumerator:   f.PriceCents,
		PriceDenominator: 100,
		EntryDate:        entryDate,
		ReceiptURL:       spanner.NullString{StringVal: f.ReceiptURL, Valid: f.ReceiptURL != ""},
		Verified:         f.Verified,
		CreatedAt:        created,
		UpdatedAt:        created,
	}

	// InsertMut stamps commit timestamps, so write the fixture times explicitly.
	mut, err := spanner.InsertStruct(m_price_entry.TableName, data)
	require.NoError(t, err, "failed to build test entry mutation")
	_, err = client.Apply(context.Background(), []*spanner.Mutation{mut})
	require.NoError(t, err, "failed to create test entry")

	return id
}
