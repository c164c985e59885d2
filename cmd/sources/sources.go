package sources

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hazardwatch/hazardwatch/internal/conf"
	"github.com/hazardwatch/hazardwatch/internal/httpclient"
	"github.com/hazardwatch/hazardwatch/internal/sources"
)

// Command creates the command that lists the enabled sources.
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "List the enabled sources and their polling intervals",
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := sources.FromSettings(settings, httpclient.New(nil))
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tCATEGORY\tINTERVAL")
			for _, e := range registry.Entries() {
				interval := "manual"
				if e.Interval > 0 {
					interval = e.Interval.String()
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", e.Source.Name(), e.Source.Category(), interval)
			}
			return w.Flush()
		},
	}
}
