// Package memsource is a DataSource that holds a whole collection in memory
// and does search, filtering, sorting and pagination itself, the way the
// coffee-shop list works on the full /api/cafes/ response.
package memsource

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/light-bringer/storefront-listview/internal/app/listing/contracts"
	"github.com/light-bringer/storefront-listview/internal/app/listing/domain"
)

// DefaultPageSize is used when no page size is configured.
const DefaultPageSize = 20

// Source is an in-memory DataSource. It is safe for concurrent use.
type Source struct {
	mu           sync.RWMutex
	records      []domain.Record
	pageSize     int
	searchFields []string
	dateField    string
	validate     func(domain.Record) error
	derive       func(domain.Record) domain.Record
}

var (
	_ contracts.DataSource    = (*Source)(nil)
	_ contracts.RecordCreator = (*Source)(nil)
)

// Option configures a Source.
type Option func(*Source)

// WithPageSize sets the number of records per page.
func WithPageSize(n int) Option {
	return func(s *Source) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

// WithSearchFields sets the fields the search term is matched against.
// Defaults to "name".
func WithSearchFields(fields ...string) Option {
	return func(s *Source) { s.searchFields = fields }
}

// WithDateField sets the field the date range applies to.
// Defaults to domain.DefaultSortField.
func WithDateField(field string) Option {
	return func(s *Source) { s.dateField = field }
}

// WithValidator rejects updates for which fn returns an error.
func WithValidator(fn func(domain.Record) error) Option {
	return func(s *Source) { s.validate = fn }
}

// WithDerived rewrites every record through fn when the source is loaded
// and when a record is created, e.g. domain.WithPostcode to make postcode
// prefixes filterable.
func WithDerived(fn func(domain.Record) domain.Record) Option {
	return func(s *Source) { s.derive = fn }
}

// New creates a Source over a copy of records.
func New(records []domain.Record, opts ...Option) *Source {
	s := &Source{
		records:      domain.CloneRecords(records),
		pageSize:     DefaultPageSize,
		searchFields: []string{"name"},
		dateField:    domain.DefaultSortField,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.derive != nil {
		for i, r := range s.records {
			s.records[i] = s.derive(r)
		}
	}
	return s
}

// FetchPage filters, sorts and slices the collection.
// A page past the end yields no records with the real total page count.
func (s *Source) FetchPage(ctx context.Context, q domain.QueryState) (*domain.ResultPage, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.TransportError("fetch page", err)
	}

	s.mu.RLock()
	matched := make([]domain.Record, 0, len(s.records))
	for _, r := range s.records {
		if s.matches(r, q) {
			matched = append(matched, r.Clone())
		}
	}
	pageSize := s.pageSize
	s.mu.RUnlock()

	if q.SortField != "" {
		field, desc := q.SortField, q.SortOrder == domain.SortDesc
		slices.SortStableFunc(matched, func(a, b domain.Record) int {
			c := Compare(a, b, field)
			if desc {
				return -c
			}
			return c
		})
	}

	total := domain.TotalPagesFor(len(matched), pageSize)
	page := max(q.Page, 1)
	from := min((page-1)*pageSize, len(matched))
	to := min(from+pageSize, len(matched))

	return domain.NewResultPage(matched[from:to], total), nil
}

// UpdateRecord replaces the stored record with the same id, recomputing
// derived fields.
func (s *Source) UpdateRecord(ctx context.Context, r domain.Record) (domain.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.TransportError("update record", err)
	}
	id := r.ID()
	if id == "" {
		return nil, domain.ValidationError("update record", domain.ErrMissingID)
	}
	if s.validate != nil {
		if err := s.validate(r); err != nil {
			return nil, domain.ValidationError("update record", err)
		}
	}

	r = r.Clone()
	if s.derive != nil {
		r = s.derive(r)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexOf(id)
	if idx < 0 {
		return nil, domain.NotFoundError("update record", id)
	}
	s.records[idx] = r
	return r.Clone(), nil
}

// CreateRecord appends r. A record without an id gets a generated one.
func (s *Source) CreateRecord(ctx context.Context, r domain.Record) (domain.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.TransportError("create record", err)
	}
	r = r.Clone()
	if r.ID() == "" {
		r[domain.FieldID] = uuid.NewString()
	}
	if s.validate != nil {
		if err := s.validate(r); err != nil {
			return nil, domain.ValidationError("create record", err)
		}
	}
	if s.derive != nil {
		r = s.derive(r)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.indexOf(r.ID()) >= 0 {
		return nil, domain.ValidationError("create record", fmt.Errorf("id %q already exists", r.ID()))
	}
	s.records = append(s.records, r)
	return r.Clone(), nil
}

// DeleteRecord removes the record with the given id.
func (s *Source) DeleteRecord(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return domain.TransportError("delete record", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexOf(id)
	if idx < 0 {
		return domain.NotFoundError("delete record", id)
	}
	s.records = slices.Delete(s.records, idx, idx+1)
	return nil
}

// Records returns a copy of the whole collection.
func (s *Source) Records() []domain.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.CloneRecords(s.records)
}

// Len returns the collection size.
func (s *Source) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func (s *Source) indexOf(id string) int {
	return slices.IndexFunc(s.records, func(r domain.Record) bool { return r.ID() == id })
}

func (s *Source) matches(r domain.Record, q domain.QueryState) bool {
	if term := strings.ToLower(strings.TrimSpace(q.SearchTerm)); term != "" {
		found := false
		for _, f := range s.searchFields {
			if strings.Contains(strings.ToLower(r.String(f)), term) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	for field, want := range q.Filters {
		if !strings.EqualFold(r.String(field), want) {
			return false
		}
	}

	if q.DateRange != nil && !q.DateRange.IsZero() {
		t, ok := r.Time(s.dateField)
		if !ok || !q.DateRange.Contains(t) {
			return false
		}
	}
	return true
}

// Compare orders two records by field: numerically when both values are
// numbers, chronologically when both are timestamps, otherwise as
// case-insensitive strings. Records missing the field sort first.
func Compare(a, b domain.Record, field string) int {
	ha, hb := a.Has(field), b.Has(field)
	switch {
	case !ha && !hb:
		return 0
	case !ha:
		return -1
	case !hb:
		return 1
	}

	if fa, ok := a.Float(field); ok {
		if fb, ok := b.Float(field); ok {
			return cmp.Compare(fa, fb)
		}
	}
	if ta, ok := a.Time(field); ok {
		if tb, ok := b.Time(field); ok {
			return ta.Compare(tb)
		}
	}
	return strings.Compare(strings.ToLower(a.String(field)), strings.ToLower(b.String(field)))
}
