package repo

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"cloud.google.com/go/civil"
	"cloud.google.com/go/spanner"

	"github.com/light-bringer/storefront-listview/internal/app/listing/domain"
	"github.com/light-bringer/storefront-listview/internal/models/m_price_entry"
	"github.com/light-bringer/storefront-listview/internal/pkg/query"
)

// Record fields exposed for a price entry.
const (
	FieldEstablishment    = "establishment"
	FieldBeverage         = "beverage"
	FieldPrice            = "price"
	FieldEntryDate        = "entry_date"
	FieldUploadedDocument = "uploaded_document"
	FieldVerified         = "verified"
	FieldCreatedAt        = "created_at"
	FieldUpdatedAt        = "updated_at"
)

// sortColumns maps sortable record fields to SQL expressions.
var sortColumns = map[string]string{
	FieldCreatedAt:     m_price_entry.CreatedAt,
	FieldPrice:         m_price_entry.PriceExpr,
	FieldEntryDate:     m_price_entry.EntryDate,
	FieldEstablishment: m_price_entry.Establishment,
	FieldBeverage:      m_price_entry.Beverage,
}

// SortableFields returns the record fields FetchPage can order by.
func SortableFields() []string {
	return []string{FieldCreatedAt, FieldPrice, FieldEntryDate, FieldEstablishment, FieldBeverage}
}

var (
	errEmptyText     = errors.New("must not be empty")
	errPriceNegative = errors.New("price must not be negative")
	errPriceRange    = errors.New("price exceeds storage range")
)

// buildListQuery translates a query state into the page query. The count
// query is derived with Count().
func buildListQuery(q domain.QueryState, pageSize int) (*query.Builder, error) {
	b := query.From(m_price_entry.TableName).Select(m_price_entry.NewModel().ReadColumns()...)

	if term := strings.TrimSpace(q.SearchTerm); term != "" {
		b = b.Where(query.Or(
			query.Contains(m_price_entry.Establishment, term),
			query.Contains(m_price_entry.Beverage, term),
		))
	}

	if dr := q.DateRange; dr != nil {
		if !dr.Start.IsZero() {
			b = b.Where(query.Gte(m_price_entry.EntryDate, civil.DateOf(dr.Start)))
		}
		if !dr.End.IsZero() {
			b = b.Where(query.Lt(m_price_entry.EntryDate, civil.DateOf(dr.End).AddDays(1)))
		}
	}

	for _, field := range slices.Sorted(maps.Keys(q.Filters)) {
		cond, err := filterCondition(field, q.Filters[field])
		if err != nil {
			return nil, err
		}
		b = b.Where(cond)
	}

	sortField := q.SortField
	if sortField == "" {
		sortField = domain.DefaultSortField
	}
	col, ok := sortColumns[sortField]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsortableField, sortField)
	}
	dir := query.Asc
	if q.SortOrder == domain.SortDesc {
		dir = query.Desc
	}

	return b.OrderBy(col, dir).ThenBy(m_price_entry.EntryID, query.Asc).Page(q.Page, pageSize), nil
}

func filterCondition(field, value string) (query.Condition, error) {
	switch field {
	case FieldEstablishment:
		return query.EqFold(m_price_entry.Establishment, value), nil
	case FieldBeverage:
		return query.EqFold(m_price_entry.Beverage, value), nil
	case FieldVerified:
		v, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("filter %q: %w", field, err)
		}
		return query.Eq(m_price_entry.Verified, v), nil
	}
	return nil, fmt.Errorf("unknown filter %q", field)
}

// dataToRecord converts a row into the record shape served to list views.
func dataToRecord(data *m_price_entry.Data) (domain.Record, error) {
	price, err := domain.NewMoney(data.PriceNumerator, data.PriceDenominator)
	if err != nil {
		return nil, fmt.Errorf("entry %s: invalid price: %w", data.EntryID, err)
	}

	r := domain.Record{
		domain.FieldID:     data.EntryID,
		FieldEstablishment: data.Establishment,
		FieldBeverage:      data.Beverage,
		FieldPrice:         json.Number(price.String()),
		FieldEntryDate:     data.EntryDate.String(),
		FieldVerified:      data.Verified,
		FieldCreatedAt:     data.CreatedAt.UTC(),
		FieldUpdatedAt:     data.UpdatedAt.UTC(),
	}
	if data.ReceiptURL.Valid {
		r[FieldUploadedDocument] = data.ReceiptURL.StringVal
	}
	return r, nil
}

// applyRecord writes the editable fields present in r onto data.
// Fields absent from r keep their stored value; read-only fields are ignored.
func applyRecord(data *m_price_entry.Data, r domain.Record) error {
	if r.Has(FieldEstablishment) {
		s, err := requiredText(r, FieldEstablishment)
		if err != nil {
			return err
		}
		data.Establishment = s
	}

	if r.Has(FieldBeverage) {
		s, err := requiredText(r, FieldBeverage)
		if err != nil {
			return err
		}
		data.Beverage = s
	}

	if r.Has(FieldPrice) {
		price, err := domain.MoneyFromField(r, FieldPrice)
		if err != nil {
			return err
		}
		if price.IsNegative() {
			return errPriceNegative
		}
		if !price.FitsInt64() {
			return errPriceRange
		}
		data.PriceNumerator = price.Numerator()
		data.PriceDenominator = price.Denominator()
	}

	if r.Has(FieldEntryDate) {
		d, err := parseDate(r, FieldEntryDate)
		if err != nil {
			return err
		}
		data.EntryDate = d
	}

	if v, ok := r[FieldVerified]; ok {
		b, err := parseBool(v)
		if err != nil {
			return fmt.Errorf("field %q: %w", FieldVerified, err)
		}
		data.Verified = b
	}

	if v, ok := r[FieldUploadedDocument]; ok {
		s := strings.TrimSpace(r.String(FieldUploadedDocument))
		data.ReceiptURL = spanner.NullString{StringVal: s, Valid: v != nil && s != ""}
	}

	return nil
}

// changedColumns lists the editable columns that differ between before and after.
func changedColumns(before, after *m_price_entry.Data) map[string]interface{} {
	updates := make(map[string]interface{})
	if before.Establishment != after.Establishment {
		updates[m_price_entry.Establishment] = after.Establishment
	}
	if before.Beverage != after.Beverage {
		updates[m_price_entry.Beverage] = after.Beverage
	}
	if before.PriceNumerator != after.PriceNumerator || before.PriceDenominator != after.PriceDenominator {
		updates[m_price_entry.PriceNumerator] = after.PriceNumerator
		updates[m_price_entry.PriceDenominator] = after.PriceDenominator
	}
	if before.EntryDate != after.EntryDate {
		updates[m_price_entry.EntryDate] = after.EntryDate
	}
	if before.ReceiptURL != after.ReceiptURL {
		updates[m_price_entry.ReceiptURL] = after.ReceiptURL
	}
	if before.Verified != after.Verified {
		updates[m_price_entry.Verified] = after.Verified
	}
	return updates
}

func requiredText(r domain.Record, field string) (string, error) {
	s := strings.TrimSpace(r.String(field))
	if s == "" {
		return "", fmt.Errorf("field %q %w", field, errEmptyText)
	}
	return s, nil
}

func parseDate(r domain.Record, field string) (civil.Date, error) {
	if d, ok := r[field].(civil.Date); ok {
		return d, nil
	}
	t, ok := r.Time(field)
	if !ok {
		return civil.Date{}, fmt.Errorf("field %q is not a date", field)
	}
	return civil.DateOf(t), nil
}

func parseBool(v any) (bool, error) {
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		return strconv.ParseBool(b)
	case nil:
		return false, nil
	}
	return false, fmt.Errorf("not a boolean: %v", v)
}

// newEntryData builds a fresh row from a record, for inserts.
func newEntryData(id string, r domain.Record, today civil.Date) (*m_price_entry.Data, error) {
	data := &m_price_entry.Data{
		EntryID:   id,
		EntryDate: today,
	}
	for _, field := range []string{FieldEstablishment, FieldBeverage, FieldPrice} {
		if !r.Has(field) {
			return nil, fmt.Errorf("field %q is required", field)
		}
	}
	if err := applyRecord(data, r); err != nil {
		return nil, err
	}
	return data, nil
}
