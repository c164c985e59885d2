// Package dibi scrapes the BNPB Indonesian disaster database (DIBI).
package dibi

import (
	"bytes"
	"context"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/net/html"

	"github.com/hazardwatch/hazardwatch/internal/errors"
	"github.com/hazardwatch/hazardwatch/internal/hazard"
	"github.com/hazardwatch/hazardwatch/internal/httpclient"
	"github.com/hazardwatch/hazardwatch/internal/logging"
)

// Name is the source and cursor key of the scraper.
const Name = "dibi"

// pageSize is the number of rows DIBI shows per list page.
const pageSize = 10

// Fetcher retrieves a response body.
type Fetcher interface {
	Fetch(ctx context.Context, url string, opts ...httpclient.RequestOption) ([]byte, error)
}

// Scraper reads DIBI list pages and the detail page of every listed event.
type Scraper struct {
	client   Fetcher
	listURL  string
	dibiCode string
	category hazard.Classification
	pages    int
}

// Config configures a Scraper.
type Config struct {
	URL      string
	Classify string // classification code, name or DIBI code filter; empty for all
	Pages    int
}

// New creates a scraper. Classify may be one of our classification codes or
// names; it is translated to the DIBI code for list queries.
func New(cfg Config, client Fetcher) (*Scraper, error) {
	s := &Scraper{client: client, listURL: cfg.URL, pages: max(cfg.Pages, 1)}
	if cfg.Classify != "" {
		c, ok := hazard.ParseClassification(cfg.Classify)
		if !ok {
			return nil, errors.Newf("unknown DIBI classify filter %q", cfg.Classify).
				Component("sources.dibi").
				Category(errors.CategoryConfiguration).
				Build()
		}
		code, ok := hazard.DIBICode(c)
		if !ok {
			return nil, errors.Newf("classification %s has no DIBI code", c).
				Component("sources.dibi").
				Category(errors.CategoryConfiguration).
				Build()
		}
		s.category, s.dibiCode = c, code
	}
	return s, nil
}

func getLogger() *slog.Logger {
	return logging.ForService("sources.dibi")
}

// Name implements sources.Source.
func (s *Scraper) Name() string { return Name }

// Category implements sources.Source.
func (s *Scraper) Category() hazard.Classification { return s.category }

// Fetch reads the configured number of list pages. Rows dated before the
// day of since are skipped without fetching their detail page. A failing
// first list page makes the source unavailable; later failures end paging.
func (s *Scraper) Fetch(ctx context.Context, since time.Time) ([]hazard.Candidate, error) {
	logger := getLogger()

	var links []string
	for page := range s.pages {
		body, err := s.client.Fetch(ctx, s.listURL, httpclient.WithQuery(s.listQuery(page)))
		if err != nil {
			if page == 0 {
				return nil, err
			}
			logger.Warn("DIBI list page failed, stopping pagination",
				"page", page,
				"error", err)
			break
		}

		rows, err := ParseList(body, s.listURL)
		if err != nil {
			logger.Warn("DIBI list page is malformed",
				"page", page,
				"error", err)
			break
		}
		if len(rows) == 0 {
			break
		}
		for _, row := range rows {
			if !row.Date.IsZero() && !since.IsZero() && row.Date.Before(dayOf(since)) {
				continue
			}
			links = append(links, row.DetailURL)
		}
	}

	candidates := make([]hazard.Candidate, 0, len(links))
	for _, link := range links {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		body, err := s.client.Fetch(ctx, link)
		if err != nil {
			logger.Warn("DIBI detail page failed, record skipped",
				"url", link,
				"error", err)
			continue
		}
		c, err := ParseDetail(body)
		if err != nil {
			logger.Warn("Dropping malformed DIBI record",
				"url", link,
				"error", err)
			continue
		}
		if s.category != "" && c.Classification != s.category {
			continue
		}
		candidates = append(candidates, *c)
	}
	return candidates, nil
}

func (s *Scraper) listQuery(page int) map[string]string {
	return map[string]string{
		"pr":    "",
		"kb":    "",
		"jn":    s.dibiCode,
		"th":    "",
		"bl":    "",
		"tb":    "2",
		"st":    "3",
		"start": strconv.Itoa(page * pageSize),
	}
}

// dayOf truncates t to midnight in Jakarta.
func dayOf(t time.Time) time.Time {
	t = t.In(hazard.Jakarta)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, hazard.Jakarta)
}

// Row is one entry of a list page.
type Row struct {
	DetailURL string
	Date      time.Time // zero when the row carries no parseable date
}

// ParseList extracts the detail links of the #mytabel rows. Relative links
// are resolved against base.
func ParseList(body []byte, base string) ([]Row, error) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, parseError(err)
	}
	table := find(doc, byID("mytabel"))
	if table == nil {
		return nil, parseError(errors.NewStd("list page has no #mytabel"))
	}
	baseURL, _ := url.Parse(base)

	var rows []Row
	for _, tr := range findAll(table, byTag("tr")) {
		a := find(tr, byTagAttr("a", "title", "Detail Bencana"))
		if a == nil {
			continue
		}
		href := attr(a, "href")
		if href == "" {
			continue
		}
		if baseURL != nil {
			if ref, err := url.Parse(href); err == nil {
				href = baseURL.ResolveReference(ref).String()
			}
		}
		rows = append(rows, Row{DetailURL: href, Date: rowDate(tr)})
	}
	return rows, nil
}

// rowDate reads the Tahun, Bulan and Tanggal spans of a row.
func rowDate(tr *html.Node) time.Time {
	part := func(title string) int {
		n, err := strconv.Atoi(text(find(tr, byTagAttr("span", "title", title))))
		if err != nil {
			return 0
		}
		return n
	}
	year, month, day := part("Tahun"), part("Bulan"), part("Tanggal")
	if year == 0 || month < 1 || month > 12 || day == 0 {
		return time.Time{}
	}
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, hazard.Jakarta)
}

func parseError(err error) error {
	return errors.New(err).
		Component("sources.dibi").
		Category(errors.CategoryFileParsing).
		Build()
}
