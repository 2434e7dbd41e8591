package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/light-bringer/storefront-listview/internal/app/listing/contracts"
	"github.com/light-bringer/storefront-listview/internal/app/listing/domain"
	"github.com/light-bringer/storefront-listview/internal/app/listing/listview"
	"github.com/light-bringer/storefront-listview/internal/cli/output"
)

var priceColumns = []string{"id", "entry_date", "establishment", "beverage", "price", "verified"}

func newPricesCmd(a *app) *cobra.Command {
	var f queryFlags
	cmd := &cobra.Command{
		Use:     "prices",
		Aliases: []string{"ls"},
		Short:   "List price history entries",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := f.state()
			if err != nil {
				return err
			}
			c, v, err := openPage(a.client(), q, a.log)
			if err != nil {
				return err
			}
			defer c.Close()
			return a.render(v, f.columns)
		},
	}
	f.register(cmd, domain.DefaultSortField, string(domain.SortDesc), priceColumns)
	return cmd
}

func newEditCmd(a *app) *cobra.Command {
	var f queryFlags
	cmd := &cobra.Command{
		Use:   "edit ID FIELD=VALUE...",
		Short: "Edit fields of a price entry shown on the selected page",
		Long: `edit loads the page selected by the listing flags, edits the entry in place
and commits it. If the API rejects the change the entry is shown as it was.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			q, err := f.state()
			if err != nil {
				return err
			}

			changes, err := parseChanges(args[1:])
			if err != nil {
				return err
			}

			c, _, err := openPage(a.client(), q, a.log)
			if err != nil {
				return err
			}
			defer c.Close()

			for field, value := range changes {
				if err := c.Edit(id, field, value); err != nil {
					return fmt.Errorf("entry %s is not on page %d: %w", id, q.Page, err)
				}
			}
			if err := c.Commit(id); err != nil {
				return err
			}
			c.Wait()

			v := c.View()
			if v.Err != nil {
				_ = a.render(v, f.columns)
				return fmt.Errorf("update rejected: %w", v.Err)
			}
			fmt.Fprintf(a.out, "Updated entry %s\n\n", id)
			return a.render(v, f.columns)
		},
	}
	f.register(cmd, domain.DefaultSortField, string(domain.SortDesc), priceColumns)
	return cmd
}

func newDeleteCmd(a *app) *cobra.Command {
	var f queryFlags
	cmd := &cobra.Command{
		Use:     "delete ID",
		Aliases: []string{"rm"},
		Short:   "Delete a price entry shown on the selected page",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			q, err := f.state()
			if err != nil {
				return err
			}

			c, _, err := openPage(a.client(), q, a.log)
			if err != nil {
				return err
			}
			defer c.Close()

			if err := c.Remove(id); err != nil {
				return fmt.Errorf("entry %s is not on page %d: %w", id, q.Page, err)
			}
			c.Wait()
			if err := c.Err(); err != nil {
				return fmt.Errorf("delete failed: %w", err)
			}

			// Reload so the page and the page count reflect the deletion.
			c.Refresh()
			c.Wait()
			fmt.Fprintf(a.out, "Deleted entry %s\n\n", id)
			return a.render(c.View(), f.columns)
		},
	}
	f.register(cmd, domain.DefaultSortField, string(domain.SortDesc), priceColumns)
	return cmd
}

func newAddCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "add FIELD=VALUE...",
		Short: "Submit a new price entry",
		Long: `add submits a price entry. establishment, beverage and price are required;
entry_date defaults to today on the server.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			changes, err := parseChanges(args)
			if err != nil {
				return err
			}
			r := make(domain.Record, len(changes))
			for field, value := range changes {
				r[field] = value
			}

			stored, err := a.client().CreateRecord(cmd.Context(), r)
			if err != nil {
				return fmt.Errorf("submit rejected: %w", err)
			}
			fmt.Fprintf(a.out, "Added entry %s\n\n", stored.ID())

			table := output.NewTable(a.out, priceColumns)
			table.AddRecords([]domain.Record{stored})
			return table.Render()
		},
	}
}

// parseChanges reads FIELD=VALUE arguments. The id field cannot be set.
func parseChanges(args []string) (map[string]string, error) {
	changes := make(map[string]string, len(args))
	for _, kv := range args {
		field, value, ok := strings.Cut(kv, "=")
		if !ok || field == "" || field == domain.FieldID {
			return nil, fmt.Errorf("change %q must be field=value on an editable field", kv)
		}
		changes[field] = value
	}
	return changes, nil
}

// openPage starts a controller on q and waits for the first page.
func openPage(src contracts.DataSource, q domain.QueryState, log *zap.Logger) (*listview.Controller, listview.View, error) {
	c := listview.New(src, listview.WithQuery(q), listview.WithLogger(log.Named("listview")))
	c.Start()
	c.Wait()

	v := c.View()
	if v.Err != nil {
		c.Close()
		return nil, v, fmt.Errorf("loading page %d: %w", q.Page, v.Err)
	}
	return c, v, nil
}

func (a *app) render(v listview.View, columns []string) error {
	if len(v.Records) == 0 {
		fmt.Fprintln(a.out, "No entries found matching your filters.")
	} else {
		table := output.NewTable(a.out, columns)
		table.AddRecords(v.Records)
		if err := table.Render(); err != nil {
			return err
		}
	}

	nav := ""
	if v.HasPrev() {
		nav += fmt.Sprintf(" (prev: --page %d)", v.Query.Page-1)
	}
	if v.HasNext() {
		nav += fmt.Sprintf(" (next: --page %d)", v.Query.Page+1)
	}
	fmt.Fprintf(a.out, "\nPage %d of %d%s\n", v.Query.Page, v.TotalPages, nav)
	return nil
}
