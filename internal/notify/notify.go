// Package notify announces newly ingested hazards after their transaction
// committed. Notification failures are reported to the caller for logging;
// they never undo a committed run.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hazardwatch/hazardwatch/internal/conf"
	"github.com/hazardwatch/hazardwatch/internal/errors"
	"github.com/hazardwatch/hazardwatch/internal/hazard"
	"github.com/hazardwatch/hazardwatch/internal/logging"
	"github.com/hazardwatch/hazardwatch/internal/observability/metrics"
)

// HazardSummary is the notification payload of one created hazard.
type HazardSummary struct {
	UUID           string                `json:"uuid"`
	Feed           string                `json:"feed"`
	Source         string                `json:"source"`
	Classification hazard.Classification `json:"classify"`
	Category       string                `json:"category"`
	Title          string                `json:"incident"`
	OccurAt        time.Time             `json:"occur_at"`
	Description    string                `json:"description,omitempty"`
	Magnitude      *float64              `json:"magnitude,omitempty"`
	Depth          *float64              `json:"depth,omitempty"`
	ShakemapURL    string                `json:"shakemap_url,omitempty"`
	Locations      int                   `json:"locations"`
}

// Summarize builds the summary of a candidate stored under uuid.
func Summarize(uuid string, c *hazard.Candidate) HazardSummary {
	s := HazardSummary{
		UUID:           uuid,
		Feed:           c.Feed,
		Source:         c.Source,
		Classification: c.Classification,
		Category:       c.Classification.String(),
		Title:          c.Title,
		OccurAt:        c.OccurAt,
		Description:    c.Description,
	}
	if eq, ok := c.Detail.(hazard.EarthquakeDetail); ok {
		mag, depth := eq.Magnitude, eq.Depth
		s.Magnitude, s.Depth = &mag, &depth
		s.ShakemapURL = eq.ShakemapURL
	}
	for _, loc := range c.Locations {
		if !loc.Deleted() {
			s.Locations++
		}
	}
	return s
}

// Text renders a one-paragraph human readable message.
func (s HazardSummary) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", strings.ToUpper(s.Category), s.Title)
	if s.Magnitude != nil && *s.Magnitude > 0 {
		fmt.Fprintf(&b, " M%.1f", *s.Magnitude)
	}
	if s.Depth != nil && *s.Depth > 0 {
		fmt.Fprintf(&b, ", depth %.0f km", *s.Depth)
	}
	fmt.Fprintf(&b, " at %s WIB (%s)", s.OccurAt.In(hazard.Jakarta).Format("2006-01-02 15:04:05"), s.Source)
	if s.Description != "" {
		b.WriteString("\n")
		b.WriteString(s.Description)
	}
	if s.ShakemapURL != "" {
		b.WriteString("\n")
		b.WriteString(s.ShakemapURL)
	}
	return b.String()
}

// Notifier announces created hazards.
type Notifier interface {
	NotifyCreated(ctx context.Context, hazards []HazardSummary) error
	Close()
}

func getLogger() *slog.Logger {
	return logging.ForService("notify")
}

// Nop discards notifications.
type Nop struct{}

// NotifyCreated implements Notifier.
func (Nop) NotifyCreated(context.Context, []HazardSummary) error { return nil }

// Close implements Notifier.
func (Nop) Close() {}

// Multi fans out to several notifiers and joins their errors.
type Multi []Notifier

// NotifyCreated implements Notifier.
func (m Multi) NotifyCreated(ctx context.Context, hazards []HazardSummary) error {
	if len(hazards) == 0 {
		return nil
	}
	var errs []error
	for _, n := range m {
		if err := n.NotifyCreated(ctx, hazards); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close implements Notifier.
func (m Multi) Close() {
	for _, n := range m {
		n.Close()
	}
}

// FromSettings builds the enabled notifiers. With none enabled it returns Nop.
func FromSettings(settings *conf.Settings, m *metrics.NotifyMetrics) (Notifier, error) {
	var notifiers Multi

	if mq := settings.Notify.MQTT; mq.Enabled {
		notifiers = append(notifiers, NewMQTT(MQTTConfig{
			Broker:   mq.Broker,
			ClientID: "hazardwatch-" + settings.Main.Name,
			Username: mq.Username,
			Password: mq.Password,
			Topic:    mq.Topic,
			Retain:   mq.Retain,
		}, m))
	}

	if sh := settings.Notify.Shoutrrr; sh.Enabled {
		n, err := NewShoutrrr(sh.URLs, settings.HTTP.Timeout, m)
		if err != nil {
			notifiers.Close()
			return nil, err
		}
		notifiers = append(notifiers, n)
	}

	switch len(notifiers) {
	case 0:
		return Nop{}, nil
	case 1:
		return notifiers[0], nil
	default:
		return notifiers, nil
	}
}
