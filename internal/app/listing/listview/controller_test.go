package listview

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/light-bringer/storefront-listview/internal/app/listing/domain"
	"github.com/light-bringer/storefront-listview/internal/pkg/clock"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const waitFor = 2 * time.Second

type fetchReply struct {
	page *domain.ResultPage
	err  error
}

type fetchCall struct {
	query domain.QueryState
	reply chan fetchReply
}

type updateCall struct {
	record domain.Record
	reply  chan error
}

type deleteCall struct {
	id    string
	reply chan error
}

// fakeSource parks every request until the test answers it.
type fakeSource struct {
	fetches chan *fetchCall
	updates chan *updateCall
	deletes chan *deleteCall
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		fetches: make(chan *fetchCall, 16),
		updates: make(chan *updateCall, 16),
		deletes: make(chan *deleteCall, 16),
	}
}

func (f *fakeSource) FetchPage(ctx context.Context, q domain.QueryState) (*domain.ResultPage, error) {
	call := &fetchCall{query: q, reply: make(chan fetchReply, 1)}
	f.fetches <- call
	select {
	case r := <-call.reply:
		return r.page, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *fakeSource) UpdateRecord(ctx context.Context, r domain.Record) (domain.Record, error) {
	call := &updateCall{record: r, reply: make(chan error, 1)}
	f.updates <- call
	select {
	case err := <-call.reply:
		if err != nil {
			return nil, err
		}
		return r, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *fakeSource) DeleteRecord(ctx context.Context, id string) error {
	call := &deleteCall{id: id, reply: make(chan error, 1)}
	f.deletes <- call
	select {
	case err := <-call.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func nextFetch(t *testing.T, f *fakeSource) *fetchCall {
	t.Helper()
	select {
	case c := <-f.fetches:
		return c
	case <-time.After(waitFor):
		require.FailNow(t, "expected a fetch")
		return nil
	}
}

func nextUpdate(t *testing.T, f *fakeSource) *updateCall {
	t.Helper()
	select {
	case c := <-f.updates:
		return c
	case <-time.After(waitFor):
		require.FailNow(t, "expected an update")
		return nil
	}
}

func nextDelete(t *testing.T, f *fakeSource) *deleteCall {
	t.Helper()
	select {
	case c := <-f.deletes:
		return c
	case <-time.After(waitFor):
		require.FailNow(t, "expected a delete")
		return nil
	}
}

// settle waits until the controller has exactly n requests outstanding.
func settle(t *testing.T, c *Controller, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return c.View().InFlight == n
	}, waitFor, 5*time.Millisecond)
}

func page(total int, records ...domain.Record) *domain.ResultPage {
	return domain.NewResultPage(records, total)
}

// started returns a controller whose initial fetch resolved with p.
func started(t *testing.T, p *domain.ResultPage, opts ...Option) (*Controller, *fakeSource) {
	t.Helper()
	src := newFakeSource()
	c := New(src, opts...)
	t.Cleanup(c.Close)

	c.Start()
	nextFetch(t, src).reply <- fetchReply{page: p}
	settle(t, c, 0)
	return c, src
}

func ids(records []domain.Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.ID()
	}
	return out
}

func TestController_StartFetchesDefaults(t *testing.T) {
	src := newFakeSource()
	now := time.Date(2025, 7, 1, 8, 0, 0, 0, time.UTC)
	c := New(src, WithClock(clock.NewMockClock(now)))
	defer c.Close()

	c.Start()
	call := nextFetch(t, src)
	assert.Equal(t, domain.DefaultQueryState(), call.query)

	call.reply <- fetchReply{page: page(3, domain.Record{"id": 1}, domain.Record{"id": 2})}
	settle(t, c, 0)

	v := c.View()
	assert.Equal(t, []string{"1", "2"}, ids(v.Records))
	assert.Equal(t, 3, v.TotalPages)
	assert.NoError(t, v.Err)
	assert.Equal(t, now, v.FetchedAt)
	assert.True(t, v.HasNext())
	assert.False(t, v.HasPrev())
}

func TestController_ToggleSortScenario(t *testing.T) {
	c, src := started(t, page(1,
		domain.Record{"id": 1, "price": 5},
		domain.Record{"id": 2, "price": 3},
	))

	c.ToggleSort("price")

	call := nextFetch(t, src)
	assert.Equal(t, "price", call.query.SortField)
	assert.Equal(t, domain.SortAsc, call.query.SortOrder)
	assert.Equal(t, 1, call.query.Page)
	assert.Equal(t, "price", call.query.Values().Get("sort"))
	assert.Equal(t, "asc", call.query.Values().Get("order"))

	call.reply <- fetchReply{page: page(1, domain.Record{"id": 2, "price": 3}, domain.Record{"id": 1, "price": 5})}
	settle(t, c, 0)
	assert.Equal(t, []string{"2", "1"}, ids(c.View().Records))

	c.ToggleSort("price")
	assert.Equal(t, domain.SortDesc, nextFetch(t, src).query.SortOrder)
}

func TestController_MutationsResetPage(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)

	mutations := map[string]func(c *Controller){
		"search":           func(c *Controller) { c.SetSearchTerm("mocha") },
		"date range":       func(c *Controller) { c.SetDateRange(start, end) },
		"clear date range": func(c *Controller) { c.ClearDateRange() },
		"filter":           func(c *Controller) { c.SetFilter("rating", "5") },
	}

	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			c, src := started(t, page(5))
			require.True(t, c.GoToPage(3))
			nextFetch(t, src).reply <- fetchReply{page: page(5)}
			settle(t, c, 0)

			mutate(c)

			call := nextFetch(t, src)
			assert.Equal(t, 1, call.query.Page)
			assert.Equal(t, 1, c.Query().Page)
			call.reply <- fetchReply{page: page(5)}
			settle(t, c, 0)
		})
	}

	t.Run("toggle sort keeps page", func(t *testing.T) {
		c, src := started(t, page(5))
		require.True(t, c.GoToPage(3))
		nextFetch(t, src).reply <- fetchReply{page: page(5)}
		settle(t, c, 0)

		c.ToggleSort("price")

		assert.Equal(t, 3, nextFetch(t, src).query.Page)
	})
}

func TestController_GoToPageOutOfRange(t *testing.T) {
	c, _ := started(t, page(2))
	before := c.Query()

	for _, n := range []int{0, -1, 3} {
		assert.False(t, c.GoToPage(n), "page %d", n)
		v := c.View()
		assert.Equal(t, 0, v.InFlight, "no fetch for page %d", n)
		assert.Equal(t, before, v.Query)
	}
}

func TestController_NextPrevPage(t *testing.T) {
	c, src := started(t, page(2))

	assert.False(t, c.PrevPage())
	require.True(t, c.NextPage())
	assert.Equal(t, 2, nextFetch(t, src).query.Page)
	assert.False(t, c.NextPage(), "already on the last page")
	assert.True(t, c.PrevPage())
	assert.Equal(t, 1, nextFetch(t, src).query.Page)
}

func TestController_SetDateRangeRejectsReversedBounds(t *testing.T) {
	c, _ := started(t, page(1))
	start := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	ok := c.SetDateRange(start, start.AddDate(0, 0, -1))

	assert.False(t, ok)
	assert.Nil(t, c.Query().DateRange)
	assert.Equal(t, 0, c.View().InFlight)
}

func TestController_LastRequestWins(t *testing.T) {
	c, src := started(t, page(1, domain.Record{"id": "initial"}))

	c.SetSearchTerm("a")
	callA := nextFetch(t, src)
	c.SetSearchTerm("b")
	callB := nextFetch(t, src)

	callB.reply <- fetchReply{page: page(1, domain.Record{"id": "from-b"})}
	settle(t, c, 1)
	callA.reply <- fetchReply{page: page(4, domain.Record{"id": "from-a"})}
	settle(t, c, 0)

	v := c.View()
	assert.Equal(t, []string{"from-b"}, ids(v.Records))
	assert.Equal(t, 1, v.TotalPages)
	assert.Equal(t, "b", v.Query.SearchTerm)
}

func TestController_StaleFailureIsDropped(t *testing.T) {
	c, src := started(t, page(1, domain.Record{"id": "initial"}))

	c.Refresh()
	stale := nextFetch(t, src)
	c.Refresh()
	latest := nextFetch(t, src)

	latest.reply <- fetchReply{page: page(1, domain.Record{"id": "fresh"})}
	settle(t, c, 1)
	stale.reply <- fetchReply{err: domain.TransportError("fetch page", errors.New("timeout"))}
	settle(t, c, 0)

	assert.NoError(t, c.Err())
	assert.Equal(t, []string{"fresh"}, ids(c.View().Records))
}

func TestController_FetchFailureKeepsLastPage(t *testing.T) {
	c, src := started(t, page(2, domain.Record{"id": 1}))

	c.Refresh()
	nextFetch(t, src).reply <- fetchReply{err: domain.DecodeError("fetch page", errors.New("bad json"))}
	settle(t, c, 0)

	v := c.View()
	assert.ErrorIs(t, v.Err, domain.ErrDecode)
	assert.Equal(t, []string{"1"}, ids(v.Records))
	assert.Equal(t, 2, v.TotalPages)

	t.Run("error is sticky across writes", func(t *testing.T) {
		require.NoError(t, c.Edit("1", "name", "x"))
		assert.ErrorIs(t, c.Err(), domain.ErrDecode)
	})

	t.Run("next successful fetch clears it", func(t *testing.T) {
		c.Refresh()
		nextFetch(t, src).reply <- fetchReply{page: page(2, domain.Record{"id": 1})}
		settle(t, c, 0)
		assert.NoError(t, c.Err())
	})
}

func TestController_UnclassifiedFetchErrorIsTransport(t *testing.T) {
	c, src := started(t, page(1))

	c.Refresh()
	nextFetch(t, src).reply <- fetchReply{err: errors.New("connection reset")}
	settle(t, c, 0)

	assert.ErrorIs(t, c.Err(), domain.ErrTransport)
}

func TestController_NilPageIsDecodeError(t *testing.T) {
	c, src := started(t, page(1, domain.Record{"id": 1}))

	c.Refresh()
	nextFetch(t, src).reply <- fetchReply{}
	settle(t, c, 0)

	assert.ErrorIs(t, c.Err(), domain.ErrDecode)
	assert.Len(t, c.View().Records, 1)
}

func TestController_ClampsPageAfterShrink(t *testing.T) {
	c, src := started(t, page(3))
	require.True(t, c.GoToPage(3))

	nextFetch(t, src).reply <- fetchReply{page: page(2)}

	clamp := nextFetch(t, src)
	assert.Equal(t, 2, clamp.query.Page)
	assert.Equal(t, 2, c.Query().Page)

	clamp.reply <- fetchReply{page: page(2, domain.Record{"id": "p2"})}
	settle(t, c, 0)
	assert.Equal(t, []string{"p2"}, ids(c.View().Records))
}

func TestController_OptimisticRemove(t *testing.T) {
	records := []domain.Record{{"id": "a"}, {"id": "b"}, {"id": "c"}}

	t.Run("removed before the remote call resolves", func(t *testing.T) {
		c, src := started(t, page(4, records...))

		require.NoError(t, c.Remove("b"))
		assert.Equal(t, []string{"a", "c"}, ids(c.View().Records))

		call := nextDelete(t, src)
		assert.Equal(t, "b", call.id)
		call.reply <- nil
		settle(t, c, 0)

		v := c.View()
		assert.Equal(t, []string{"a", "c"}, ids(v.Records))
		assert.Equal(t, 4, v.TotalPages, "total pages stays stale until the next fetch")
		assert.NoError(t, v.Err)
	})

	t.Run("restored in place on failure", func(t *testing.T) {
		c, src := started(t, page(1, records...))

		require.NoError(t, c.Remove("b"))
		assert.Equal(t, []string{"a", "c"}, ids(c.View().Records))

		nextDelete(t, src).reply <- domain.NotFoundError("delete record", "b")
		settle(t, c, 0)

		v := c.View()
		assert.Equal(t, []string{"a", "b", "c"}, ids(v.Records))
		assert.ErrorIs(t, v.Err, domain.ErrNotFound)
	})

	t.Run("overlapping failures restore fetched order", func(t *testing.T) {
		for name, failFirst := range map[string]string{"first removed fails first": "a", "last removed fails first": "b"} {
			t.Run(name, func(t *testing.T) {
				c, src := started(t, page(1,
					domain.Record{"id": "a"}, domain.Record{"id": "x"},
					domain.Record{"id": "b"}, domain.Record{"id": "c"},
				))

				require.NoError(t, c.Remove("a"))
				require.NoError(t, c.Remove("b"))
				assert.Equal(t, []string{"x", "c"}, ids(c.View().Records))

				calls := map[string]*deleteCall{}
				for i := 0; i < 2; i++ {
					call := nextDelete(t, src)
					calls[call.id] = call
				}
				failSecond := "b"
				if failFirst == "b" {
					failSecond = "a"
				}

				calls[failFirst].reply <- domain.TransportError("delete record", errors.New("unreachable"))
				settle(t, c, 1)
				calls[failSecond].reply <- domain.TransportError("delete record", errors.New("unreachable"))
				settle(t, c, 0)

				assert.Equal(t, []string{"a", "x", "b", "c"}, ids(c.View().Records))
			})
		}
	})

	t.Run("restored after later survivors are gone", func(t *testing.T) {
		c, src := started(t, page(1, records...))

		require.NoError(t, c.Remove("b"))
		require.NoError(t, c.Remove("c"))
		calls := map[string]*deleteCall{}
		for i := 0; i < 2; i++ {
			call := nextDelete(t, src)
			calls[call.id] = call
		}

		calls["c"].reply <- nil
		settle(t, c, 1)
		calls["b"].reply <- domain.TransportError("delete record", errors.New("unreachable"))
		settle(t, c, 0)

		assert.Equal(t, []string{"a", "b"}, ids(c.View().Records))
	})

	t.Run("not restored over a newer page", func(t *testing.T) {
		c, src := started(t, page(1, records...))

		require.NoError(t, c.Remove("b"))
		del := nextDelete(t, src)

		c.Refresh()
		nextFetch(t, src).reply <- fetchReply{page: page(1, domain.Record{"id": "z"})}
		settle(t, c, 1)

		del.reply <- domain.TransportError("delete record", errors.New("unreachable"))
		settle(t, c, 0)

		v := c.View()
		assert.Equal(t, []string{"z"}, ids(v.Records))
		assert.ErrorIs(t, v.Err, domain.ErrTransport)
	})

	t.Run("unknown id", func(t *testing.T) {
		c, _ := started(t, page(1, records...))
		assert.ErrorIs(t, c.Remove("nope"), domain.ErrNotFound)
	})
}

func TestController_EditIsProvisional(t *testing.T) {
	c, src := started(t, page(1, domain.Record{"id": 1, "price": 3.0}))

	require.NoError(t, c.Edit("1", "price", 4.5))
	v := c.View()
	assert.Equal(t, 4.5, v.Records[0]["price"])
	assert.Equal(t, []string{"1"}, v.Pending)

	c.Refresh()
	nextFetch(t, src).reply <- fetchReply{page: page(1, domain.Record{"id": 1, "price": 3.0})}
	settle(t, c, 0)

	v = c.View()
	assert.Equal(t, 3.0, v.Records[0]["price"])
	assert.Empty(t, v.Pending)

	assert.ErrorIs(t, c.Edit("99", "price", 1.0), domain.ErrNotFound)
}

func TestController_Commit(t *testing.T) {
	t.Run("validation failure reverts to fetched value", func(t *testing.T) {
		c, src := started(t, page(1, domain.Record{"id": 1, "price": 3.0, "name": "Café"}))

		require.NoError(t, c.Edit("1", "price", -2.0))
		require.NoError(t, c.Commit("1"))

		call := nextUpdate(t, src)
		assert.Equal(t, -2.0, call.record["price"])
		call.reply <- domain.ValidationError("update record", errors.New("price must be positive"))
		settle(t, c, 0)

		v := c.View()
		assert.Equal(t, domain.Record{"id": 1, "price": 3.0, "name": "Café"}, v.Records[0])
		assert.ErrorIs(t, v.Err, domain.ErrValidation)
		assert.Empty(t, v.Pending)
	})

	t.Run("success keeps local copy", func(t *testing.T) {
		c, src := started(t, page(1, domain.Record{"id": 1, "price": 3.0}))

		require.NoError(t, c.Edit("1", "price", 3.4))
		require.NoError(t, c.Commit("1"))
		nextUpdate(t, src).reply <- nil
		settle(t, c, 0)

		v := c.View()
		assert.Equal(t, 3.4, v.Records[0]["price"])
		assert.Empty(t, v.Pending)
		assert.NoError(t, v.Err)

		// The committed value is the new rollback baseline.
		require.NoError(t, c.Edit("1", "price", 9.9))
		require.NoError(t, c.Commit("1"))
		nextUpdate(t, src).reply <- domain.ValidationError("update record", nil)
		settle(t, c, 0)
		assert.Equal(t, 3.4, c.View().Records[0]["price"])
	})

	t.Run("later success after an earlier failure shows the stored value", func(t *testing.T) {
		c, src := started(t, page(1, domain.Record{"id": 1, "price": 3.0}))

		require.NoError(t, c.Edit("1", "price", 5.0))
		require.NoError(t, c.Commit("1"))
		first := nextUpdate(t, src)

		require.NoError(t, c.Edit("1", "price", 6.0))
		require.NoError(t, c.Commit("1"))
		second := nextUpdate(t, src)

		first.reply <- domain.ValidationError("update record", errors.New("rejected"))
		settle(t, c, 1)
		assert.Equal(t, 3.0, c.View().Records[0]["price"])

		second.reply <- nil
		settle(t, c, 0)

		v := c.View()
		assert.Equal(t, 6.0, v.Records[0]["price"])
		assert.Empty(t, v.Pending)

		// The stored value is the rollback baseline.
		require.NoError(t, c.Edit("1", "price", 9.9))
		require.NoError(t, c.Commit("1"))
		nextUpdate(t, src).reply <- domain.ValidationError("update record", nil)
		settle(t, c, 0)
		assert.Equal(t, 6.0, c.View().Records[0]["price"])
	})

	t.Run("unknown id", func(t *testing.T) {
		c, _ := started(t, page(1))
		assert.ErrorIs(t, c.Commit("1"), domain.ErrNotFound)
	})
}

func TestController_CommitPending(t *testing.T) {
	c, src := started(t, page(1,
		domain.Record{"id": 1, "price": 1.0},
		domain.Record{"id": 2, "price": 2.0},
		domain.Record{"id": 3, "price": 3.0},
	))

	require.NoError(t, c.Edit("1", "price", 1.5))
	require.NoError(t, c.Edit("3", "price", 3.5))

	assert.Equal(t, 2, c.CommitPending())

	committed := map[string]bool{}
	for i := 0; i < 2; i++ {
		call := nextUpdate(t, src)
		committed[call.record.ID()] = true
		call.reply <- nil
	}
	settle(t, c, 0)

	assert.Equal(t, map[string]bool{"1": true, "3": true}, committed)
	assert.Empty(t, c.View().Pending)
}

func TestController_CloseDiscardsLateResponses(t *testing.T) {
	src := newFakeSource()
	c := New(src, WithQuery(domain.QueryState{SortField: "price", SortOrder: domain.SortAsc}))

	c.Start()
	call := nextFetch(t, src)
	assert.Equal(t, 1, call.query.Page, "initial page is normalized")

	c.Close()

	v := c.View()
	assert.Empty(t, v.Records)
	assert.NoError(t, v.Err)

	c.Refresh()
	assert.Equal(t, 0, c.View().InFlight, "closed controller issues no fetch")
}
