package serve

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hazardwatch/hazardwatch/internal/app"
	"github.com/hazardwatch/hazardwatch/internal/conf"
)

// Command creates the command that runs the scheduler and the admin API
// until SIGINT or SIGTERM.
func Command(settings *conf.Settings) *cobra.Command {
	var noScheduler bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run periodic ingestion and the admin API",
		Long:  "Poll every enabled source at its interval and serve the admin API until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if noScheduler {
				settings.Scheduler.Enabled = false
			}

			a, err := app.New(settings)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.Serve(ctx)
		},
	}

	cmd.Flags().BoolVar(&noScheduler, "no-scheduler", false, "Serve the admin API without periodic ingestion")
	return cmd
}
