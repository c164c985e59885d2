package notify

import (
	"context"
	"io"
	"log"
	"strings"
	"time"

	shoutrrr "github.com/nicholas-fedor/shoutrrr"
	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"

	"github.com/hazardwatch/hazardwatch/internal/errors"
	"github.com/hazardwatch/hazardwatch/internal/observability/metrics"
)

const channelShoutrrr = "shoutrrr"

// sender is implemented by shoutrrr's router.ServiceRouter.
type sender interface {
	Send(message string, params *stypes.Params) []error
}

// Shoutrrr sends one text message per created hazard to every configured
// service URL.
type Shoutrrr struct {
	sender  sender
	metrics *metrics.NotifyMetrics
}

// NewShoutrrr validates urls and builds the sender. m may be nil.
func NewShoutrrr(urls []string, timeout time.Duration, m *metrics.NotifyMetrics) (*Shoutrrr, error) {
	if len(urls) == 0 {
		return nil, errors.Newf("at least one notification URL is required").
			Component("notify").
			Category(errors.CategoryConfiguration).
			Build()
	}
	router, err := shoutrrr.CreateSender(urls...)
	if err != nil {
		// The raw error may echo tokens from the URL
		return nil, errors.Newf("invalid notification URL: %s", redact(err.Error(), urls)).
			Component("notify").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if timeout > 0 {
		router.Timeout = timeout
	}
	router.SetLogger(log.New(io.Discard, "", 0))
	return &Shoutrrr{sender: router, metrics: m}, nil
}

// NotifyCreated implements Notifier. The router applies its own timeout.
func (s *Shoutrrr) NotifyCreated(_ context.Context, hazards []HazardSummary) error {
	var errs []error
	for i := range hazards {
		h := &hazards[i]
		params := stypes.Params{}
		params.SetTitle("New " + h.Category + " reported by " + h.Source)

		start := time.Now()
		var firstErr error
		for _, e := range s.sender.Send(h.Text(), &params) {
			if e != nil {
				firstErr = e
				break
			}
		}
		if s.metrics != nil {
			s.metrics.RecordPublish(channelShoutrrr, time.Since(start), firstErr)
		}
		if firstErr != nil {
			errs = append(errs, firstErr)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return errors.New(err).
			Component("notify").
			Category(errors.CategoryNotification).
			Context("failed", len(errs)).
			Build()
	}
	return nil
}

// Close implements Notifier.
func (s *Shoutrrr) Close() {}

// redact replaces every configured URL in msg.
func redact(msg string, urls []string) string {
	for _, u := range urls {
		if u != "" {
			msg = strings.ReplaceAll(msg, u, "[redacted]")
		}
	}
	return msg
}
