// Package listview implements the list view state machine shared by the
// storefront listings (coffee shops, price history).
//
// A Controller owns the query state, the last successfully fetched page and
// any provisional local edits. Every state mutation issues exactly one fetch
// to the DataSource; responses are committed only if they answer the most
// recently issued fetch (last-request-wins). Writes are optimistic and are
// rolled back from a snapshot when the remote call fails.
package listview

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/light-bringer/storefront-listview/internal/app/listing/contracts"
	"github.com/light-bringer/storefront-listview/internal/app/listing/domain"
	"github.com/light-bringer/storefront-listview/internal/pkg/clock"
)

// Controller translates query-state changes into fetches and exposes a
// stable view of the latest successful result.
type Controller struct {
	source contracts.DataSource
	logger *zap.Logger
	clock  clock.Clock

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu         sync.Mutex
	query      domain.QueryState
	records    []domain.Record
	fetched    map[string]domain.Record // last server copy per id, for rollback
	order      []string                 // ids of the fetched page, in display order
	commits    map[string]uint64        // latest commit issued per id
	commitSeq  uint64
	totalPages int
	changes    *domain.ChangeTracker
	seq        uint64 // latest issued fetch
	generation uint64 // bumps each time a fetched page replaces the display
	inFlight   int
	err        error
	fetchedAt  time.Time
	closed     bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Controller) { c.logger = logger }
}

// WithClock sets the clock used to stamp fetches.
func WithClock(clk clock.Clock) Option {
	return func(c *Controller) { c.clock = clk }
}

// WithQuery sets the initial query state instead of domain.DefaultQueryState.
func WithQuery(q domain.QueryState) Option {
	return func(c *Controller) {
		if q.Page < 1 {
			q.Page = 1
		}
		c.query = q.Clone()
	}
}

// New creates a Controller over source. No fetch is issued until Start.
func New(source contracts.DataSource, opts ...Option) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		source:     source,
		logger:     zap.NewNop(),
		clock:      clock.NewRealClock(),
		ctx:        ctx,
		cancel:     cancel,
		query:      domain.DefaultQueryState(),
		fetched:    make(map[string]domain.Record),
		commits:    make(map[string]uint64),
		totalPages: 1,
		changes:    domain.NewChangeTracker(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start issues the initial fetch for the current query state.
func (c *Controller) Start() {
	c.Refresh()
}

// SetSearchTerm replaces the search term and returns to the first page.
// An empty term means no filter.
func (c *Controller) SetSearchTerm(term string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.query = c.query.WithSearchTerm(term)
	c.fetchLocked()
}

// SetDateRange replaces the date bounds and returns to the first page.
// It is a no-op returning false when end is before start.
func (c *Controller) SetDateRange(start, end time.Time) bool {
	dr, err := domain.NewDateRange(start, end)
	if err != nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.query = c.query.WithDateRange(&dr)
	c.fetchLocked()
	return true
}

// ClearDateRange removes the date bounds and returns to the first page.
func (c *Controller) ClearDateRange() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.query = c.query.WithDateRange(nil)
	c.fetchLocked()
}

// SetFilter sets an exact-match filter on field; an empty value removes it.
// Returns to the first page.
func (c *Controller) SetFilter(field, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.query = c.query.WithFilter(field, value)
	c.fetchLocked()
}

// ToggleSort flips the order when field is the active sort field, otherwise
// sorts ascending by field. The current page is kept.
func (c *Controller) ToggleSort(field string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.query = c.query.WithToggledSort(field)
	c.fetchLocked()
}

// GoToPage moves to page n. Out-of-range pages are ignored: nothing changes,
// nothing is fetched and false is returned.
func (c *Controller) GoToPage(n int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.goToPageLocked(n)
}

// NextPage moves one page forward if there is one.
func (c *Controller) NextPage() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.goToPageLocked(c.query.Page + 1)
}

// PrevPage moves one page back if there is one.
func (c *Controller) PrevPage() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.goToPageLocked(c.query.Page - 1)
}

func (c *Controller) goToPageLocked(n int) bool {
	if n < 1 || n > c.totalPages {
		return false
	}
	c.query = c.query.WithPage(n)
	c.fetchLocked()
	return true
}

// Refresh re-issues the fetch for the current query state. It is the
// user-facing retry after a failure.
func (c *Controller) Refresh() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fetchLocked()
}

// fetchLocked issues one fetch for the current query. c.mu must be held.
func (c *Controller) fetchLocked() {
	if c.closed {
		return
	}
	c.seq++
	seq := c.seq
	q := c.query.Clone()
	c.inFlight++

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		page, err := c.source.FetchPage(c.ctx, q)
		c.applyFetch(seq, q, page, err)
	}()
}

func (c *Controller) applyFetch(seq uint64, q domain.QueryState, page *domain.ResultPage, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inFlight--

	if c.closed {
		return
	}
	if seq != c.seq {
		c.logger.Debug("dropping superseded response",
			zap.Uint64("seq", seq),
			zap.Uint64("latest", c.seq),
		)
		return
	}

	if err == nil && page == nil {
		err = domain.DecodeError("fetch page", errors.New("empty response"))
	}
	if err != nil {
		if !domain.IsClassified(err) {
			err = domain.TransportError("fetch page", err)
		}
		c.logger.Warn("fetch failed, keeping last page",
			zap.Int("page", q.Page),
			zap.Error(err),
		)
		c.err = err
		return
	}

	c.records = domain.CloneRecords(page.Records)
	c.fetched = make(map[string]domain.Record, len(page.Records))
	c.order = make([]string, 0, len(page.Records))
	for _, r := range page.Records {
		c.fetched[r.ID()] = r.Clone()
		c.order = append(c.order, r.ID())
	}
	c.totalPages = max(page.TotalPages, 1)
	c.changes.Reset()
	c.generation++
	c.err = nil
	c.fetchedAt = c.clock.Now()

	if c.query.Page > c.totalPages {
		c.logger.Debug("clamping page",
			zap.Int("page", c.query.Page),
			zap.Int("total_pages", c.totalPages),
		)
		c.query = c.query.WithPage(c.totalPages)
		c.fetchLocked()
	}
}

// Edit patches one field of a displayed record locally. The edit is
// provisional: it is discarded by the next fetch unless committed.
func (c *Controller) Edit(id, field string, value any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx := c.indexLocked(id)
	if idx < 0 {
		return domain.NotFoundError("edit record", id)
	}
	c.records[idx] = c.records[idx].Patch(map[string]any{field: value})
	c.changes.MarkDirty(id, field)
	return nil
}

// Commit sends the displayed version of record id to the DataSource.
// On success the local copy is kept and becomes the new rollback baseline;
// on failure the record reverts to its last fetched value and the error
// flag is set. Only that record is committed; use CommitPending to flush
// every edited record.
func (c *Controller) Commit(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx := c.indexLocked(id)
	if idx < 0 {
		return domain.NotFoundError("commit record", id)
	}
	c.commitLocked(id, c.records[idx].Clone())
	return nil
}

// CommitPending commits every record that has local edits and returns how
// many commits were issued.
func (c *Controller) CommitPending() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, id := range c.changes.DirtyIDs() {
		idx := c.indexLocked(id)
		if idx < 0 {
			continue
		}
		c.commitLocked(id, c.records[idx].Clone())
		n++
	}
	return n
}

func (c *Controller) commitLocked(id string, record domain.Record) {
	if c.closed {
		return
	}
	gen := c.generation
	sent := c.changes.DirtyFields(id)
	c.commitSeq++
	seq := c.commitSeq
	c.commits[id] = seq
	c.inFlight++

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		stored, err := c.source.UpdateRecord(c.ctx, record)

		c.mu.Lock()
		defer c.mu.Unlock()
		c.inFlight--
		if c.closed {
			return
		}
		latest := c.commits[id] == seq
		if latest {
			delete(c.commits, id)
		}
		// A newer page replaced the one this write was issued against.
		stale := gen != c.generation

		if err != nil {
			if !domain.IsClassified(err) {
				err = domain.TransportError("update record", err)
			}
			c.logger.Warn("commit failed, reverting record",
				zap.String("id", id),
				zap.Error(err),
			)
			c.err = err
			if stale {
				return
			}
			if base, ok := c.fetched[id]; ok {
				if idx := c.indexLocked(id); idx >= 0 {
					c.records[idx] = base.Clone()
				}
			}
			c.changes.Clear(id)
			return
		}

		if stale {
			return
		}
		if stored == nil {
			stored = record
		}
		c.fetched[id] = stored.Clone()
		c.changes.ClearFields(id, sent)
		// An earlier failed commit may have reverted the displayed copy.
		if latest && !c.changes.Dirty(id) {
			if idx := c.indexLocked(id); idx >= 0 {
				c.records[idx] = stored.Clone()
			}
		}
	}()
}

// Remove drops record id from the displayed sequence immediately and asks
// the DataSource to delete it. On failure the record is put back at its
// original position and the error flag is set. TotalPages is left as is
// until the next fetch.
func (c *Controller) Remove(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx := c.indexLocked(id)
	if idx < 0 {
		return domain.NotFoundError("remove record", id)
	}
	if c.closed {
		return nil
	}
	snapshot := c.records[idx].Clone()
	c.records = slices.Delete(c.records, idx, idx+1)
	gen := c.generation
	c.inFlight++

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		err := c.source.DeleteRecord(c.ctx, id)

		c.mu.Lock()
		defer c.mu.Unlock()
		c.inFlight--
		if c.closed {
			return
		}

		if err != nil {
			if !domain.IsClassified(err) {
				err = domain.TransportError("delete record", err)
			}
			c.logger.Warn("delete failed, restoring record",
				zap.String("id", id),
				zap.Error(err),
			)
			c.err = err
			if gen != c.generation {
				return
			}
			c.restoreLocked(snapshot, idx)
			return
		}

		if gen == c.generation {
			delete(c.fetched, id)
			c.changes.Clear(id)
		}
	}()
	return nil
}

// restoreLocked puts a removed record back before the first record that
// followed it on the fetched page and is still displayed. Other removes may
// have shifted the list since, so the index it was removed from is only a
// fallback.
func (c *Controller) restoreLocked(record domain.Record, removedAt int) {
	at := slices.Index(c.order, record.ID())
	if at < 0 {
		c.records = slices.Insert(c.records, min(removedAt, len(c.records)), record)
		return
	}
	for _, next := range c.order[at+1:] {
		if idx := c.indexLocked(next); idx >= 0 {
			c.records = slices.Insert(c.records, idx, record)
			return
		}
	}
	c.records = append(c.records, record)
}

func (c *Controller) indexLocked(id string) int {
	for i, r := range c.records {
		if r.ID() == id {
			return i
		}
	}
	return -1
}

// View is an immutable snapshot of the controller state.
type View struct {
	Query      domain.QueryState
	Records    []domain.Record
	TotalPages int
	Err        error
	InFlight   int
	Pending    []string // ids with uncommitted local edits
	FetchedAt  time.Time
}

// HasPrev reports whether a previous page exists.
func (v View) HasPrev() bool { return v.Query.Page > 1 }

// HasNext reports whether a next page exists.
func (v View) HasNext() bool { return v.Query.Page < v.TotalPages }

// View returns a snapshot of the current state.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return View{
		Query:      c.query.Clone(),
		Records:    domain.CloneRecords(c.records),
		TotalPages: c.totalPages,
		Err:        c.err,
		InFlight:   c.inFlight,
		Pending:    c.changes.DirtyIDs(),
		FetchedAt:  c.fetchedAt,
	}
}

// Query returns the current query state.
func (c *Controller) Query() domain.QueryState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.query.Clone()
}

// Err returns the sticky error left by the last failed request, if any.
// It is cleared by the next successful fetch.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Wait blocks until every in-flight request has settled, including fetches
// issued while waiting (such as a page clamp).
func (c *Controller) Wait() {
	c.wg.Wait()
}

// Close cancels outstanding requests and waits for them to return.
// Responses arriving after Close are discarded.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.cancel()
	c.wg.Wait()
}
