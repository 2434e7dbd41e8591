package repo

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/spanner"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"

	"github.com/light-bringer/storefront-listview/internal/app/listing/contracts"
	"github.com/light-bringer/storefront-listview/internal/app/listing/domain"
	"github.com/light-bringer/storefront-listview/internal/models/m_price_entry"
	"github.com/light-bringer/storefront-listview/internal/pkg/clock"
	"github.com/light-bringer/storefront-listview/internal/pkg/committer"
)

// DefaultPageSize is the number of entries per page when none is configured.
const DefaultPageSize = 10

// PriceHistorySource implements contracts.DataSource over the price_entries table.
type PriceHistorySource struct {
	client    *spanner.Client
	committer *committer.Committer
	model     *m_price_entry.Model
	clock     clock.Clock
	logger    *zap.Logger
	pageSize  int
}

var (
	_ contracts.DataSource    = (*PriceHistorySource)(nil)
	_ contracts.RecordCreator = (*PriceHistorySource)(nil)
)

// Option configures a PriceHistorySource.
type Option func(*PriceHistorySource)

// WithPageSize sets the number of entries per page. Non-positive sizes are ignored.
func WithPageSize(n int) Option {
	return func(s *PriceHistorySource) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *PriceHistorySource) { s.logger = logger }
}

// WithClock sets the clock used to date new entries.
func WithClock(clk clock.Clock) Option {
	return func(s *PriceHistorySource) { s.clock = clk }
}

// NewPriceHistorySource creates a PriceHistorySource.
func NewPriceHistorySource(client *spanner.Client, c *committer.Committer, opts ...Option) *PriceHistorySource {
	s := &PriceHistorySource{
		client:    client,
		committer: c,
		model:     m_price_entry.NewModel(),
		clock:     clock.NewRealClock(),
		logger:    zap.NewNop(),
		pageSize:  DefaultPageSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PageSize returns the configured page size.
func (s *PriceHistorySource) PageSize() int {
	return s.pageSize
}

// FetchPage returns one page of entries and the total page count. Both
// queries read the same snapshot.
func (s *PriceHistorySource) FetchPage(ctx context.Context, q domain.QueryState) (*domain.ResultPage, error) {
	const op = "fetch page"

	b, err := buildListQuery(q, s.pageSize)
	if err != nil {
		return nil, domain.ValidationError(op, err)
	}

	txn := s.client.ReadOnlyTransaction()
	defer txn.Close()

	var total int64
	countIter := txn.Query(ctx, b.Count().Build())
	err = countIter.Do(func(row *spanner.Row) error {
		return row.Column(0, &total)
	})
	if err != nil {
		return nil, s.classify(op, "", err)
	}

	iter := txn.Query(ctx, b.Build())
	defer iter.Stop()

	records := make([]domain.Record, 0, s.pageSize)
	for {
		row, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, s.classify(op, "", err)
		}

		var data m_price_entry.Data
		if err := row.ToStruct(&data); err != nil {
			return nil, domain.DecodeError(op, err)
		}
		r, err := dataToRecord(&data)
		if err != nil {
			return nil, domain.DecodeError(op, err)
		}
		records = append(records, r)
	}

	return domain.NewResultPage(records, domain.TotalPagesFor(int(total), s.pageSize)), nil
}

// UpdateRecord writes the editable fields of r that differ from the stored
// row and returns the stored entry.
func (s *PriceHistorySource) UpdateRecord(ctx context.Context, r domain.Record) (domain.Record, error) {
	const op = "update record"

	id := r.ID()
	if id == "" {
		return nil, domain.ValidationError(op, domain.ErrMissingID)
	}

	var after m_price_entry.Data
	var changed bool
	ts, err := s.committer.InTransaction(ctx, func(ctx context.Context, txn *spanner.ReadWriteTransaction) (*committer.CommitPlan, error) {
		before, err := s.readEntry(ctx, txn, id)
		if err != nil {
			return nil, err
		}

		after = *before
		if err := applyRecord(&after, r); err != nil {
			return nil, domain.ValidationError(op, err)
		}

		updates := changedColumns(before, &after)
		changed = len(updates) > 0

		plan := committer.NewPlan()
		plan.Add(s.model.UpdateMut(id, updates))
		return plan, nil
	})
	if err != nil {
		return nil, s.classify(op, id, err)
	}
	if changed {
		after.UpdatedAt = ts
	}

	stored, err := dataToRecord(&after)
	if err != nil {
		return nil, domain.DecodeError(op, err)
	}
	s.logger.Debug("price entry updated", zap.String("entry_id", id), zap.Bool("changed", changed))
	return stored, nil
}

// DeleteRecord removes an entry. Unknown ids report ErrNotFound.
func (s *PriceHistorySource) DeleteRecord(ctx context.Context, id string) error {
	const op = "delete record"

	_, err := s.committer.InTransaction(ctx, func(ctx context.Context, txn *spanner.ReadWriteTransaction) (*committer.CommitPlan, error) {
		if _, err := s.readEntry(ctx, txn, id); err != nil {
			return nil, err
		}
		plan := committer.NewPlan()
		plan.Add(s.model.DeleteMut(id))
		return plan, nil
	})
	if err != nil {
		return s.classify(op, id, err)
	}

	s.logger.Debug("price entry deleted", zap.String("entry_id", id))
	return nil
}

// CreateRecord inserts a new entry from r and returns it with its generated id.
// establishment, beverage and price are required; entry_date defaults to today.
func (s *PriceHistorySource) CreateRecord(ctx context.Context, r domain.Record) (domain.Record, error) {
	const op = "create record"

	id := uuid.New().String()
	data, err := newEntryData(id, r, clock.Today(s.clock))
	if err != nil {
		return nil, domain.ValidationError(op, err)
	}

	plan := committer.NewPlan()
	plan.Add(s.model.InsertMut(data))
	ts, err := s.committer.Apply(ctx, plan)
	if err != nil {
		return nil, s.classify(op, id, err)
	}
	data.CreatedAt = ts
	data.UpdatedAt = ts

	return dataToRecord(data)
}

func (s *PriceHistorySource) readEntry(ctx context.Context, txn *spanner.ReadWriteTransaction, id string) (*m_price_entry.Data, error) {
	row, err := txn.ReadRow(ctx, m_price_entry.TableName, spanner.Key{id}, s.model.ReadColumns())
	if err != nil {
		return nil, err
	}
	var data m_price_entry.Data
	if err := row.ToStruct(&data); err != nil {
		return nil, domain.DecodeError("read entry", err)
	}
	return &data, nil
}

// classify maps Spanner failures onto the error taxonomy. Errors already
// classified pass through.
func (s *PriceHistorySource) classify(op, id string, err error) error {
	if domain.IsClassified(err) {
		return err
	}

	switch code := spanner.ErrCode(err); {
	case code == codes.NotFound && id != "":
		return domain.NotFoundError(op, id)
	case code == codes.InvalidArgument, code == codes.FailedPrecondition, code == codes.OutOfRange:
		return domain.ValidationError(op, err)
	}

	if !errors.Is(err, context.Canceled) {
		s.logger.Warn("spanner operation failed",
			zap.String("op", op),
			zap.String("entry_id", id),
			zap.Error(err),
		)
	}
	return domain.TransportError(op, fmt.Errorf("spanner: %w", err))
}
