package ingest

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/hazardwatch/hazardwatch/internal/app"
	"github.com/hazardwatch/hazardwatch/internal/conf"
	"github.com/hazardwatch/hazardwatch/internal/errors"
	"github.com/hazardwatch/hazardwatch/internal/hazard"
	pipeline "github.com/hazardwatch/hazardwatch/internal/ingest"
)

// Command creates the command that ingests sources once.
func Command(settings *conf.Settings) *cobra.Command {
	var actorID string

	cmd := &cobra.Command{
		Use:   "ingest [source...]",
		Short: "Run ingestion once for the named sources, or all enabled sources",
		Long: `Fetch the named sources once, store new hazards and print a report per source.

Examples:
  hazardwatch ingest
  hazardwatch ingest bmkg-felt dibi --actor=operator`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.New(settings)
			if err != nil {
				return err
			}
			defer a.Close()

			names := args
			if len(names) == 0 {
				names = a.Registry.Names()
			}
			actor := hazard.Actor{ID: actorID}

			var errs []error
			for _, name := range names {
				if err := cmd.Context().Err(); err != nil {
					return err
				}
				report, err := a.Pipeline.RunReport(cmd.Context(), name, actor)
				if err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", name, err)
					errs = append(errs, err)
					continue
				}
				printReport(cmd.OutOrStdout(), report)
			}
			return errors.Join(errs...)
		},
	}

	cmd.Flags().StringVar(&actorID, "actor", "", "Attribute created records to this actor instead of the system")
	return cmd
}

func printReport(w io.Writer, r *pipeline.Report) {
	fmt.Fprintf(w, "%s: fetched %d, eligible %d (stale %d, duplicate %d, malformed %d) in %s\n",
		r.Source, r.Fetched, r.Eligible, r.Stale, r.Duplicate, r.Malformed, r.Duration.Round(time.Millisecond))
	if !r.HasNewData() && r.Matched == 0 {
		return
	}
	fmt.Fprintf(w, "  hazards: %d created, %d matched\n", len(r.Created), r.Matched)
	fmt.Fprintf(w, "  locations: %d created, %d updated, %d deleted\n", r.Locations.Created, r.Locations.Updated, r.Locations.Deleted)
	fmt.Fprintf(w, "  impacts: %d created, %d updated, %d deleted\n", r.Impacts.Created, r.Impacts.Updated, r.Impacts.Deleted)
	fmt.Fprintf(w, "  attachments: %d created, %d cloned, %d skipped\n", r.Attachments.Created, r.AttachmentsCloned, r.AttachmentsSkipped)
	if r.Geocoded > 0 {
		fmt.Fprintf(w, "  geocoded: %d\n", r.Geocoded)
	}
	if !r.NewCursor.IsZero() {
		fmt.Fprintf(w, "  cursor: %s -> %s\n", formatCursor(r.Cursor), formatCursor(r.NewCursor))
	}
	for _, h := range r.Created {
		fmt.Fprintf(w, "  + %s\n", h.Text())
	}
}

func formatCursor(t time.Time) string {
	if t.IsZero() {
		return "none"
	}
	return t.In(hazard.Jakarta).Format(time.DateTime)
}
