package services

import (
	"context"
	"fmt"

	"cloud.google.com/go/spanner"
	"go.uber.org/zap"

	"github.com/light-bringer/storefront-listview/internal/app/listing/repo"
	"github.com/light-bringer/storefront-listview/internal/config"
	"github.com/light-bringer/storefront-listview/internal/pkg/clock"
	"github.com/light-bringer/storefront-listview/internal/pkg/committer"
	httphandler "github.com/light-bringer/storefront-listview/internal/transport/http"
)

// ServiceOptions holds all dependencies for the application.
type ServiceOptions struct {
	SpannerClient  *spanner.Client
	PriceHistory   *repo.PriceHistorySource
	RecordsHandler *httphandler.RecordsHandler
}

// NewServiceOptions creates and wires up all application dependencies.
func NewServiceOptions(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*ServiceOptions, error) {
	// 1. Initialize Spanner client
	spannerClient, err := spanner.NewClient(ctx, cfg.Spanner.Database())
	if err != nil {
		return nil, fmt.Errorf("failed to create Spanner client: %w", err)
	}

	// 2. Create infrastructure components
	clk := clock.NewRealClock()
	comm := committer.NewCommitter(spannerClient)

	// 3. Create the data source
	priceHistory := repo.NewPriceHistorySource(spannerClient, comm,
		repo.WithPageSize(cfg.Listing.PageSize),
		repo.WithClock(clk),
		repo.WithLogger(logger.Named("price_history")),
	)

	// 4. Create HTTP handler
	recordsHandler := httphandler.NewRecordsHandler(priceHistory, logger.Named("http"))

	return &ServiceOptions{
		SpannerClient:  spannerClient,
		PriceHistory:   priceHistory,
		RecordsHandler: recordsHandler,
	}, nil
}

// Close closes all resources.
func (s *ServiceOptions) Close() {
	if s.SpannerClient != nil {
		s.SpannerClient.Close()
	}
}
