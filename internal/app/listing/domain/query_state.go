package domain

import (
	"maps"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Query parameter names understood by the storefront collection API.
const (
	ParamSearch    = "search"
	ParamStartDate = "start_date"
	ParamEndDate   = "end_date"
	ParamPage      = "page"
	ParamSort      = "sort"
	ParamOrder     = "order"
)

// DefaultSortField is the field lists are ordered by until the user picks another.
const DefaultSortField = "created_at"

// SortOrder is the direction of the active sort.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// Flip returns the opposite order.
func (o SortOrder) Flip() SortOrder {
	if o == SortAsc {
		return SortDesc
	}
	return SortAsc
}

// DateRange bounds a listing by calendar date. A zero Start or End leaves
// that side open.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// NewDateRange validates and builds a date range.
func NewDateRange(start, end time.Time) (DateRange, error) {
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		return DateRange{}, ErrInvalidDateRange
	}
	return DateRange{Start: start, End: end}, nil
}

// IsZero reports whether both sides are open.
func (d DateRange) IsZero() bool {
	return d.Start.IsZero() && d.End.IsZero()
}

// Contains reports whether t falls inside the range. End is inclusive of
// the whole calendar day.
func (d DateRange) Contains(t time.Time) bool {
	if !d.Start.IsZero() && t.Before(d.Start) {
		return false
	}
	if !d.End.IsZero() && !t.Before(d.End.AddDate(0, 0, 1)) {
		return false
	}
	return true
}

// QueryState is an immutable snapshot of the parameters driving a fetch.
// Every With* method returns a modified copy.
type QueryState struct {
	SearchTerm string
	DateRange  *DateRange
	Filters    map[string]string
	Page       int
	SortField  string
	SortOrder  SortOrder
}

// DefaultQueryState is the state a list view starts with.
func DefaultQueryState() QueryState {
	return QueryState{
		Page:      1,
		SortField: DefaultSortField,
		SortOrder: SortDesc,
	}
}

// Clone returns a deep copy.
func (q QueryState) Clone() QueryState {
	out := q
	if q.DateRange != nil {
		dr := *q.DateRange
		out.DateRange = &dr
	}
	out.Filters = maps.Clone(q.Filters)
	return out
}

// WithSearchTerm replaces the search term and resets to the first page.
func (q QueryState) WithSearchTerm(term string) QueryState {
	out := q.Clone()
	out.SearchTerm = term
	out.Page = 1
	return out
}

// WithDateRange replaces the date bounds and resets to the first page.
// A nil range clears the bounds.
func (q QueryState) WithDateRange(dr *DateRange) QueryState {
	out := q.Clone()
	if dr == nil || dr.IsZero() {
		out.DateRange = nil
	} else {
		c := *dr
		out.DateRange = &c
	}
	out.Page = 1
	return out
}

// WithFilter sets an exact-match filter and resets to the first page.
// An empty value removes the filter.
func (q QueryState) WithFilter(field, value string) QueryState {
	out := q.Clone()
	if value == "" {
		delete(out.Filters, field)
		if len(out.Filters) == 0 {
			out.Filters = nil
		}
	} else {
		if out.Filters == nil {
			out.Filters = make(map[string]string)
		}
		out.Filters[field] = value
	}
	out.Page = 1
	return out
}

// WithToggledSort flips the order when field is already the sort field,
// otherwise sorts ascending by field. The page is kept.
func (q QueryState) WithToggledSort(field string) QueryState {
	out := q.Clone()
	if out.SortField == field {
		out.SortOrder = out.SortOrder.Flip()
	} else {
		out.SortField = field
		out.SortOrder = SortAsc
	}
	return out
}

// WithPage moves to page n. Callers range-check n.
func (q QueryState) WithPage(n int) QueryState {
	out := q.Clone()
	out.Page = n
	return out
}

// Values renders the state as collection API query parameters.
func (q QueryState) Values() url.Values {
	v := url.Values{}
	v.Set(ParamSearch, q.SearchTerm)
	start, end := "", ""
	if q.DateRange != nil {
		if !q.DateRange.Start.IsZero() {
			start = q.DateRange.Start.Format(dateLayout)
		}
		if !q.DateRange.End.IsZero() {
			end = q.DateRange.End.Format(dateLayout)
		}
	}
	v.Set(ParamStartDate, start)
	v.Set(ParamEndDate, end)
	v.Set(ParamPage, strconv.Itoa(q.Page))
	v.Set(ParamSort, q.SortField)
	v.Set(ParamOrder, string(q.SortOrder))
	for _, k := range slices.Sorted(maps.Keys(q.Filters)) {
		v.Set(k, q.Filters[k])
	}
	return v
}

var reservedParams = map[string]bool{
	ParamSearch:    true,
	ParamStartDate: true,
	ParamEndDate:   true,
	ParamPage:      true,
	ParamSort:      true,
	ParamOrder:     true,
}

// ParseQueryState is the inverse of Values. Missing parameters fall back
// to DefaultQueryState; any parameter that is not one of the reserved names
// becomes an exact-match filter.
func ParseQueryState(v url.Values) (QueryState, error) {
	q := DefaultQueryState()
	q.SearchTerm = strings.TrimSpace(v.Get(ParamSearch))

	if p := v.Get(ParamPage); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil || n < 1 {
			return QueryState{}, ErrInvalidPage
		}
		q.Page = n
	}

	if s := v.Get(ParamSort); s != "" {
		q.SortField = s
	}
	switch o := SortOrder(strings.ToLower(v.Get(ParamOrder))); o {
	case "":
	case SortAsc, SortDesc:
		q.SortOrder = o
	default:
		return QueryState{}, ErrInvalidSortOrder
	}

	var dr DateRange
	if s := v.Get(ParamStartDate); s != "" {
		t, err := time.Parse(dateLayout, s)
		if err != nil {
			return QueryState{}, ErrInvalidDateRange
		}
		dr.Start = t
	}
	if s := v.Get(ParamEndDate); s != "" {
		t, err := time.Parse(dateLayout, s)
		if err != nil {
			return QueryState{}, ErrInvalidDateRange
		}
		dr.End = t
	}
	if !dr.IsZero() {
		checked, err := NewDateRange(dr.Start, dr.End)
		if err != nil {
			return QueryState{}, err
		}
		q.DateRange = &checked
	}

	for k := range v {
		if reservedParams[k] {
			continue
		}
		if val := v.Get(k); val != "" {
			if q.Filters == nil {
				q.Filters = make(map[string]string)
			}
			q.Filters[k] = val
		}
	}

	return q, nil
}
