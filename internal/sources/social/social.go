// Package social reads earthquake reports that BMKG accounts post on X
// (Twitter) through the v2 recent search API.
package social

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/hazardwatch/hazardwatch/internal/errors"
	"github.com/hazardwatch/hazardwatch/internal/hazard"
	"github.com/hazardwatch/hazardwatch/internal/httpclient"
	"github.com/hazardwatch/hazardwatch/internal/logging"
)

// Name is the source and cursor key.
const Name = "social"

var (
	urlPattern       = regexp.MustCompile(`http\S+`)
	magnitudePattern = regexp.MustCompile(`(?i)\b(?:mag(?:nitudo)?|m)\s*[:=]?\s*(\d+(?:[.,]\d+)?)`)
)

// Fetcher retrieves a response body.
type Fetcher interface {
	Fetch(ctx context.Context, url string, opts ...httpclient.RequestOption) ([]byte, error)
}

// Config configures the source.
type Config struct {
	URL        string
	Accounts   []string
	MaxResults int
}

// Source searches recent posts of each configured account.
type Source struct {
	client     Fetcher
	url        string
	accounts   []string
	maxResults int
}

// NewTransport wraps base so every request carries the bearer token.
func NewTransport(token string, base http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return &oauth2.Transport{
		Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}),
		Base:   base,
	}
}

// New creates the source. client must authenticate its requests; see NewTransport.
func New(cfg Config, client Fetcher) *Source {
	// The API accepts 10 to 100 results per request
	maxResults := min(max(cfg.MaxResults, 10), 100)
	return &Source{
		client:     client,
		url:        cfg.URL,
		accounts:   cfg.Accounts,
		maxResults: maxResults,
	}
}

func getLogger() *slog.Logger {
	return logging.ForService("sources.social")
}

// Name implements sources.Source.
func (s *Source) Name() string { return Name }

// Category implements sources.Source.
func (s *Source) Category() hazard.Classification { return hazard.Earthquake }

// Fetch searches every account in turn. A failing account is skipped with a
// warning; the source is unavailable only when every account fails.
func (s *Source) Fetch(ctx context.Context, _ time.Time) ([]hazard.Candidate, error) {
	logger := getLogger()

	var (
		candidates []hazard.Candidate
		failures   []error
	)
	for _, account := range s.accounts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		body, err := s.client.Fetch(ctx, s.url, httpclient.WithQuery(s.query(account)))
		if err != nil {
			logger.Warn("Social search failed for account",
				"account", account,
				"error", err)
			failures = append(failures, err)
			continue
		}
		found, err := Parse(body)
		if err != nil {
			logger.Warn("Social search response is malformed",
				"account", account,
				"error", err)
			continue
		}
		candidates = append(candidates, found...)
	}

	if len(s.accounts) > 0 && len(failures) == len(s.accounts) {
		return nil, errors.New(errors.Join(failures...)).
			Component("sources.social").
			Category(errors.CategoryNetwork).
			Context("accounts", len(s.accounts)).
			Build()
	}
	return candidates, nil
}

func (s *Source) query(account string) map[string]string {
	return map[string]string{
		"query":        fmt.Sprintf("from:%s has:media info gempa", account),
		"expansions":   "attachments.media_keys,author_id",
		"media.fields": "url",
		"tweet.fields": "created_at",
		"max_results":  strconv.Itoa(s.maxResults),
	}
}

type searchResponse struct {
	Data     []post `json:"data"`
	Includes struct {
		Media []media `json:"media"`
		Users []user  `json:"users"`
	} `json:"includes"`
}

type post struct {
	ID          string    `json:"id"`
	Text        string    `json:"text"`
	AuthorID    string    `json:"author_id"`
	CreatedAt   time.Time `json:"created_at"`
	Attachments struct {
		MediaKeys []string `json:"media_keys"`
	} `json:"attachments"`
}

type media struct {
	MediaKey string `json:"media_key"`
	Type     string `json:"type"`
	URL      string `json:"url"`
}

type user struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
}

// Parse converts a search response into candidates. Posts without a
// creation time or readable text are dropped.
func Parse(body []byte) ([]hazard.Candidate, error) {
	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, errors.New(err).
			Component("sources.social").
			Category(errors.CategoryFileParsing).
			Build()
	}

	mediaByKey := make(map[string]media, len(resp.Includes.Media))
	for _, m := range resp.Includes.Media {
		mediaByKey[m.MediaKey] = m
	}
	users := make(map[string]user, len(resp.Includes.Users))
	for _, u := range resp.Includes.Users {
		users[u.ID] = u
	}

	candidates := make([]hazard.Candidate, 0, len(resp.Data))
	for _, p := range resp.Data {
		title := CleanText(p.Text)
		if title == "" || p.CreatedAt.IsZero() {
			getLogger().Warn("Dropping social post without text or time", "post_id", p.ID)
			continue
		}

		source := users[p.AuthorID].Name
		if source == "" {
			source = users[p.AuthorID].Username
		}
		if source == "" {
			source = "BMKG"
		}

		detail := hazard.EarthquakeDetail{}
		if m, ok := Magnitude(p.Text); ok {
			detail.Magnitude = m
		}

		c := hazard.Candidate{
			Feed:           Name,
			Source:         source,
			Classification: hazard.Earthquake,
			Title:          title,
			OccurAt:        p.CreatedAt.In(hazard.Jakarta),
			Description:    title,
		}
		if photo := firstPhoto(p, mediaByKey); photo != "" {
			detail.ShakemapURL = photo
			c.Attachments = []hazard.AttachmentPayload{{
				URL:        photo,
				Identifier: hazard.AttachmentShakemap,
			}}
		}
		c.Detail = detail
		candidates = append(candidates, c)
	}
	return candidates, nil
}

func firstPhoto(p post, mediaByKey map[string]media) string {
	for _, key := range p.Attachments.MediaKeys {
		if m, ok := mediaByKey[key]; ok && m.URL != "" && (m.Type == "" || m.Type == "photo") {
			return m.URL
		}
	}
	return ""
}

// CleanText removes links and collapses whitespace.
func CleanText(text string) string {
	text = urlPattern.ReplaceAllString(text, "")
	return strings.Join(strings.Fields(text), " ")
}

// Magnitude extracts a magnitude such as "Mag:5.2" or "M 4,8" from text.
func Magnitude(text string) (float64, bool) {
	m := magnitudePattern.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", "."), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
