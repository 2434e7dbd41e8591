package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/light-bringer/storefront-listview/internal/app/listing/domain"
	"github.com/light-bringer/storefront-listview/internal/app/listing/httpsource"
	"github.com/light-bringer/storefront-listview/internal/app/listing/memsource"
)

var cafeColumns = []string{"name", "address", domain.FieldPostcode, "rating"}

func newCafesCmd(a *app) *cobra.Command {
	var (
		f         queryFlags
		rating    string
		postcode  string
		postcodes bool
	)
	cmd := &cobra.Command{
		Use:   "cafes",
		Short: "List coffee shops, filtered by rating, postcode and name",
		Long: `cafes loads the whole coffee shop collection once and filters, sorts and
pages it locally. --search matches name and address; --postcode matches the
BT district (BT1, BT7, ...) parsed from the address.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if rating != "" {
				f.filters = append(f.filters, "rating="+rating)
			}
			if postcode != "" {
				f.filters = append(f.filters, domain.FieldPostcode+"="+strings.ToUpper(postcode))
			}
			q, err := f.state()
			if err != nil {
				return err
			}

			records, err := a.client().FetchCollection(cmd.Context(), httpsource.CafesPath)
			if err != nil {
				return err
			}
			if postcodes {
				fmt.Fprintf(a.out, "Postcodes: %s\n\n", strings.Join(domain.PostcodePrefixes(records), ", "))
			}

			src := memsource.New(records,
				memsource.WithPageSize(a.cfg.Listing.PageSize),
				memsource.WithSearchFields("name", "address"),
				memsource.WithDerived(domain.WithPostcode),
			)
			c, v, err := openPage(src, q, a.log)
			if err != nil {
				return err
			}
			defer c.Close()
			return a.render(v, f.columns)
		},
	}
	f.register(cmd, "name", string(domain.SortAsc), cafeColumns)
	cmd.Flags().StringVar(&rating, "rating", "", "only shops with this rating")
	cmd.Flags().StringVar(&postcode, "postcode", "", "only shops in this postcode district")
	cmd.Flags().BoolVar(&postcodes, "postcodes", false, "print the postcode districts present")
	return cmd
}
