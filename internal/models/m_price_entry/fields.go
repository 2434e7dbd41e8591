package m_price_entry

// Table name constant
const TableName = "price_entries"

// Field name constants for type-safe database access
const (
	EntryID          = "entry_id"
	Establishment    = "establishment"
	Beverage         = "beverage"
	PriceNumerator   = "price_numerator"
	PriceDenominator = "price_denominator"
	EntryDate        = "entry_date"
	ReceiptURL       = "receipt_url"
	Verified         = "verified"
	CreatedAt        = "created_at"
	UpdatedAt        = "updated_at"
)

// PriceExpr orders rows by the decimal value of the stored rational price.
const PriceExpr = "(" + PriceNumerator + " / " + PriceDenominator + ")"
