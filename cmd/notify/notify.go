package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/hazardwatch/hazardwatch/internal/conf"
	"github.com/hazardwatch/hazardwatch/internal/hazard"
	"github.com/hazardwatch/hazardwatch/internal/notify"
	"github.com/hazardwatch/hazardwatch/internal/observability/metrics"
)

// Command returns a cobra command that sends a test notification through
// every configured notifier.
func Command(settings *conf.Settings) *cobra.Command {
	var (
		title     string
		category  string
		magnitude float64
		wait      time.Duration
	)

	cmd := &cobra.Command{
		Use:   "notify",
		Short: "Send a test notification to the configured MQTT broker and shoutrrr URLs",
		Long: `Send a synthetic hazard through the configured notifiers.

Examples:
  hazardwatch notify
  hazardwatch notify --title="Banjir Jakarta Timur" --category=flood`,
		RunE: func(cmd *cobra.Command, args []string) error {
			classification, ok := hazard.ParseClassification(category)
			if !ok {
				return fmt.Errorf("unknown category %q", category)
			}

			m, err := metrics.NewNotifyMetrics(prometheus.NewRegistry())
			if err != nil {
				return err
			}
			notifier, err := notify.FromSettings(settings, m)
			if err != nil {
				return err
			}
			defer notifier.Close()
			if _, ok := notifier.(notify.Nop); ok {
				return fmt.Errorf("no notifier is enabled, see notify.mqtt and notify.shoutrrr")
			}

			summary := notify.HazardSummary{
				UUID:           uuid.NewString(),
				Feed:           "test",
				Source:         "hazardwatch",
				Classification: classification,
				Category:       classification.String(),
				Title:          title,
				OccurAt:        time.Now(),
				Description:    "Test notification, no action required.",
			}
			if classification == hazard.Earthquake && magnitude > 0 {
				summary.Magnitude = &magnitude
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), wait)
			defer cancel()
			if err := notifier.NotifyCreated(ctx, []notify.HazardSummary{summary}); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Test notification sent")
			return nil
		},
	}

	cmd.Flags().StringVar(&title, "title", "Test hazard", "Hazard title")
	cmd.Flags().StringVar(&category, "category", hazard.Earthquake.String(), "Hazard category name, e.g. earthquake or flood")
	cmd.Flags().Float64Var(&magnitude, "magnitude", 5.0, "Magnitude for earthquake test messages")
	cmd.Flags().DurationVar(&wait, "timeout", 30*time.Second, "Maximum time to wait for delivery")
	return cmd
}
