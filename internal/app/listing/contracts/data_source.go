package contracts

import (
	"context"

	"github.com/light-bringer/storefront-listview/internal/app/listing/domain"
)

// DataSource is the only boundary the list view depends on: paginated read
// and write access to a remote record collection.
//
// Implementations classify failures with the domain error taxonomy
// (domain.ErrTransport, ErrDecode, ErrValidation, ErrNotFound).
type DataSource interface {
	// FetchPage returns the records matching query and the total page count.
	// Fails with ErrTransport or ErrDecode.
	FetchPage(ctx context.Context, query domain.QueryState) (*domain.ResultPage, error)

	// UpdateRecord persists record and returns the stored version.
	// Fails with ErrTransport, ErrValidation or ErrNotFound.
	UpdateRecord(ctx context.Context, record domain.Record) (domain.Record, error)

	// DeleteRecord removes the record with the given id.
	// Fails with ErrTransport or ErrNotFound.
	DeleteRecord(ctx context.Context, id string) error
}

// RecordCreator is implemented by sources that accept new records.
type RecordCreator interface {
	// CreateRecord stores a new record and returns it with its assigned id.
	// Fails with ErrTransport or ErrValidation.
	CreateRecord(ctx context.Context, record domain.Record) (domain.Record, error)
}
