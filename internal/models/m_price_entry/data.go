package m_price_entry

import (
	"time"

	"cloud.google.com/go/civil"
	"cloud.google.com/go/spanner"
)

// Data represents a price entry row in the database.
type Data struct {
	EntryID          string             `spanner:"entry_id"`
	Establishment    string             `spanner:"establishment"`
	Beverage         string             `spanner:"beverage"`
	PriceNumerator   int64              `spanner:"price_numerator"`
	PriceDenominator int64              `spanner:"price_denominator"`
	EntryDate        civil.Date         `spanner:"entry_date"`
	ReceiptURL       spanner.NullString `spanner:"receipt_url"`
	Verified         bool               `spanner:"verified"`
	CreatedAt        time.Time          `spanner:"created_at"`
	UpdatedAt        time.Time          `spanner:"updated_at"`
}
