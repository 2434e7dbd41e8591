package main

import (
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/light-bringer/storefront-listview/internal/app/listing/domain"
	"github.com/light-bringer/storefront-listview/internal/app/listing/httpsource"
	"github.com/light-bringer/storefront-listview/internal/config"
	"github.com/light-bringer/storefront-listview/internal/pkg/logger"
)

// app carries state shared by every subcommand once configuration is loaded.
type app struct {
	out     io.Writer
	cfgFile string
	apiURL  string
	verbose bool

	cfg *config.Config
	log *zap.Logger
}

func newRootCmd(out io.Writer) *cobra.Command {
	a := &app{out: out}

	root := &cobra.Command{
		Use:   "browse",
		Short: "Browse storefront listings",
		Long: `browse pages through price history entries and coffee shops served by a
storefront API.

Example usage:
  browse prices --search latte --sort price --order asc
  browse prices --start 2025-01-01 --end 2025-01-31 --page 2
  browse edit 42 price=3.40 --search latte
  browse add establishment="Kaffe O" beverage=Cortado price=3.10
  browse cafes --rating 5 --postcode BT7`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
	}
	root.SetOut(out)

	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (YAML)")
	root.PersistentFlags().StringVar(&a.apiURL, "api", "", "storefront API base URL (overrides api.base_url)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "verbose logging to stderr")

	root.AddCommand(
		newPricesCmd(a),
		newEditCmd(a),
		newAddCmd(a),
		newDeleteCmd(a),
		newCafesCmd(a),
	)
	return root
}

func (a *app) init() error {
	cfg, err := config.Load(a.cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if a.apiURL != "" {
		cfg.API.BaseURL = a.apiURL
	}
	a.cfg = cfg

	level := "warn"
	if a.verbose {
		level = "debug"
	}
	a.log, err = logger.New(level, true)
	if err != nil {
		return err
	}
	a.log.Debug("configuration loaded",
		zap.String("api", cfg.API.BaseURL),
		zap.Duration("timeout", cfg.API.Timeout),
	)
	return nil
}

func (a *app) client() *httpsource.Client {
	return httpsource.New(a.cfg.API.BaseURL,
		httpsource.WithTimeout(a.cfg.API.Timeout),
		httpsource.WithLogger(a.log.Named("api")),
	)
}

// queryFlags are the listing flags shared by commands that select a page.
type queryFlags struct {
	search  string
	start   string
	end     string
	sort    string
	order   string
	page    int
	filters []string
	columns []string
}

func (f *queryFlags) register(cmd *cobra.Command, sortDefault, orderDefault string, columns []string) {
	cmd.Flags().StringVarP(&f.search, "search", "s", "", "search term")
	cmd.Flags().StringVar(&f.start, "start", "", "first date to include (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.end, "end", "", "last date to include (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.sort, "sort", sortDefault, "field to sort by")
	cmd.Flags().StringVar(&f.order, "order", orderDefault, "sort order (asc or desc)")
	cmd.Flags().IntVarP(&f.page, "page", "p", 1, "page number")
	cmd.Flags().StringArrayVarP(&f.filters, "filter", "f", nil, "exact-match filter as field=value (repeatable)")
	cmd.Flags().StringSliceVar(&f.columns, "columns", columns, "fields to show")
}

// state converts the flags into a query state, validated the same way the
// API validates query parameters.
func (f *queryFlags) state() (domain.QueryState, error) {
	v := url.Values{}
	v.Set(domain.ParamSearch, f.search)
	v.Set(domain.ParamStartDate, f.start)
	v.Set(domain.ParamEndDate, f.end)
	v.Set(domain.ParamSort, f.sort)
	v.Set(domain.ParamOrder, f.order)
	v.Set(domain.ParamPage, strconv.Itoa(f.page))

	for _, kv := range f.filters {
		field, value, ok := strings.Cut(kv, "=")
		if !ok || field == "" {
			return domain.QueryState{}, fmt.Errorf("filter %q must be field=value", kv)
		}
		if v.Has(field) {
			return domain.QueryState{}, fmt.Errorf("filter %q uses a reserved or repeated field", kv)
		}
		v.Set(field, value)
	}

	q, err := domain.ParseQueryState(v)
	if err != nil {
		return domain.QueryState{}, fmt.Errorf("invalid query: %w", err)
	}
	return q, nil
}
