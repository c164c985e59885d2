package bmkg

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hazardwatch/hazardwatch/internal/errors"
	"github.com/hazardwatch/hazardwatch/internal/hazard"
	"github.com/hazardwatch/hazardwatch/internal/httpclient"
)

const base = "https://data.bmkg.example/TEWS/"

func readFixture(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return data
}

func newMockedFeed(t *testing.T, kind Kind, fixture string) *Feed {
	t.Helper()
	client := httpclient.New(&httpclient.Config{MaxRetries: 0})
	httpmock.ActivateNonDefault(client.HTTPClient())
	t.Cleanup(httpmock.DeactivateAndReset)

	url := base + fixture
	httpmock.RegisterResponder("GET", url,
		httpmock.NewBytesResponder(http.StatusOK, readFixture(t, fixture)))
	return New(kind, url, "https://data.bmkg.example/TEWS", client)
}

func TestFeed_Recent(t *testing.T) {
	feed := newMockedFeed(t, Recent, "autogempa.json")
	assert.Equal(t, "bmkg-recent", feed.Name())
	assert.Equal(t, hazard.Earthquake, feed.Category())

	candidates, err := feed.Fetch(context.Background(), hazard.Epoch)
	require.NoError(t, err)
	require.Len(t, candidates, 1)

	c := candidates[0]
	assert.Equal(t, "bmkg-recent", c.Feed)
	assert.Equal(t, SourceLabel, c.Source)
	assert.Equal(t, hazard.Earthquake, c.Classification)
	assert.Equal(t, "Pusat gempa berada di laut 82 km BaratDaya Gunungkidul", c.Title)
	assert.Equal(t, time.Date(2021, 10, 23, 9, 51, 58, 0, hazard.Jakarta).Unix(), c.OccurAt.Unix())
	assert.Equal(t, hazard.Jakarta, c.OccurAt.Location())
	assert.Equal(t,
		"III Bantul, II - III Kab. Gunung Kidul, II Kec. Wates Gempa ini dirasakan untuk diteruskan pada masyarakat",
		c.Description)

	detail, ok := c.Detail.(hazard.EarthquakeDetail)
	require.True(t, ok)
	assert.InDelta(t, 4.9, detail.Magnitude, 1e-9)
	assert.InDelta(t, 10.0, detail.Depth, 1e-9)
	assert.InDelta(t, -8.47, detail.Latitude, 1e-9)
	assert.InDelta(t, 110.37, detail.Longitude, 1e-9)
	assert.Equal(t, base+"20211023095158.mmi.jpg", detail.ShakemapURL)

	require.Len(t, c.Attachments, 1)
	assert.Equal(t, detail.ShakemapURL, c.Attachments[0].URL)
	assert.Equal(t, hazard.AttachmentShakemap, c.Attachments[0].Identifier)

	require.Len(t, c.Locations, 3)
	assert.Equal(t, "Bantul", c.Locations[0].Fields.SubAdministrativeArea)
	assert.Equal(t, "III", c.Locations[0].Fields.Severity)
	assert.Equal(t, "Gunung Kidul", c.Locations[1].Fields.SubAdministrativeArea)
	assert.Equal(t, "II-III", c.Locations[1].Fields.Severity)
	assert.Equal(t, "Wates", c.Locations[2].Fields.SubAdministrativeArea)

	require.Len(t, c.Locations[1].Impacts, 1)
	impact := c.Locations[1].Impacts[0]
	assert.Equal(t, hazard.ImpactScale, impact.Identifier)
	assert.Equal(t, hazard.MetricMMI, impact.Metric)
	assert.Equal(t, "II-III", impact.Value)
}

func TestFeed_Felt(t *testing.T) {
	feed := newMockedFeed(t, Felt, "gempadirasakan.json")

	candidates, err := feed.Fetch(context.Background(), hazard.Epoch)
	require.NoError(t, err)
	require.Len(t, candidates, 2, "the record with broken coordinates is dropped")

	first := candidates[0]
	assert.Equal(t, "III Bantul, II Des. Srigading", first.Description)
	require.Len(t, first.Attachments, 1)
	assert.Equal(t, base+"20211023095158.mmi.jpg", first.Attachments[0].URL,
		"shakemap name is derived from the local time of the same record")

	// Tanggal and Jam fallback, numeric magnitude
	second := candidates[1]
	assert.Equal(t, time.Date(2021, 10, 22, 23, 5, 10, 0, hazard.Jakarta).Unix(), second.OccurAt.Unix())
	detail := second.Detail.(hazard.EarthquakeDetail)
	assert.InDelta(t, 3.6, detail.Magnitude, 1e-9)
	assert.Equal(t, base+"20211022230510.mmi.jpg", detail.ShakemapURL)
	assert.Equal(t, "Srigading", first.Locations[1].Fields.SubAdministrativeArea)
}

func TestFeed_Realtime(t *testing.T) {
	feed := newMockedFeed(t, Realtime, "gempaterkini.json")

	candidates, err := feed.Fetch(context.Background(), hazard.Epoch)
	require.NoError(t, err)
	require.Len(t, candidates, 1)

	c := candidates[0]
	assert.Equal(t, "Tidak berpotensi tsunami", c.Description)
	assert.Empty(t, c.Attachments, "realtime records have no shakemap")
	assert.Empty(t, c.Locations)
	assert.InDelta(t, 35.0, c.Detail.(hazard.EarthquakeDetail).Depth, 1e-9)
}

func TestFeed_MalformedPayload(t *testing.T) {
	client := httpclient.New(&httpclient.Config{MaxRetries: 0})
	httpmock.ActivateNonDefault(client.HTTPClient())
	t.Cleanup(httpmock.DeactivateAndReset)

	httpmock.RegisterResponder("GET", base+"autogempa.json",
		httpmock.NewStringResponder(http.StatusOK, "<html>maintenance</html>"))

	feed := New(Recent, base+"autogempa.json", base, client)
	candidates, err := feed.Fetch(context.Background(), hazard.Epoch)
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestFeed_EmptyPayload(t *testing.T) {
	var logs bytes.Buffer
	previous := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&logs, nil)))
	t.Cleanup(func() { slog.SetDefault(previous) })

	client := httpclient.New(&httpclient.Config{MaxRetries: 0})
	httpmock.ActivateNonDefault(client.HTTPClient())
	t.Cleanup(httpmock.DeactivateAndReset)

	httpmock.RegisterResponder("GET", base+"gempaterkini.json",
		httpmock.NewStringResponder(http.StatusOK, `{"Infogempa":{"gempa":[]}}`))

	feed := New(Realtime, base+"gempaterkini.json", base, client)
	candidates, err := feed.Fetch(context.Background(), hazard.Epoch)
	require.NoError(t, err)
	assert.Empty(t, candidates)
	assert.Contains(t, logs.String(), "BMKG feed returned no usable records")
	assert.Contains(t, logs.String(), "feed=bmkg-realtime")
}

func TestParse_DecimalDepth(t *testing.T) {
	body := []byte(`{"Infogempa":{"gempa":[{
		"DateTime": "2021-10-21T14:20:11+00:00",
		"Coordinates": "1.12,126.20",
		"Magnitude": "5.3",
		"Kedalaman": "7.5 km",
		"Wilayah": "120 km BaratLaut HALMAHERABARAT-MALUT",
		"Potensi": "Tidak berpotensi tsunami"
	}]}}`)

	candidates, err := Parse(Realtime, body, base)
	require.NoError(t, err)
	require.Len(t, candidates, 1, "a decimal depth must not drop the record")
	assert.InDelta(t, 8.0, candidates[0].Detail.(hazard.EarthquakeDetail).Depth, 1e-9)
	assert.Equal(t, "7.5 km", candidates[0].RawMetrics["depth"])
}

func TestFeed_Unavailable(t *testing.T) {
	client := httpclient.New(&httpclient.Config{MaxRetries: 1, RetryDelay: time.Millisecond})
	httpmock.ActivateNonDefault(client.HTTPClient())
	t.Cleanup(httpmock.DeactivateAndReset)

	httpmock.RegisterResponder("GET", base+"autogempa.json",
		httpmock.NewStringResponder(http.StatusServiceUnavailable, "down"))

	feed := New(Recent, base+"autogempa.json", base, client)
	_, err := feed.Fetch(context.Background(), hazard.Epoch)
	require.Error(t, err)
	assert.True(t, errors.IsSourceUnavailable(err))
	assert.Equal(t, 2, httpmock.GetTotalCallCount())
}

func TestParse_MissingGempa(t *testing.T) {
	_, err := Parse(Felt, []byte(`{"Infogempa":{}}`), base)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryFileParsing))
}

func TestParseDepth(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"10 km", 10, false},
		{"kedalaman 35 km", 35, false},
		{"  7  ", 7, false},
		{"7.5 km", 8, false},
		{"10.4 km", 10, false},
		{"NaN km", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDepth(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseLocalDate(t *testing.T) {
	got, err := parseLocalDate("05 Agu 2022", "01:02:03 WIB")
	require.NoError(t, err)
	assert.True(t, got.Equal(time.Date(2022, 8, 5, 1, 2, 3, 0, hazard.Jakarta)))

	_, err = parseLocalDate("05 Foo 2022", "01:02:03 WIB")
	assert.Error(t, err)
	_, err = parseLocalDate("05 Agu 2022", "late")
	assert.Error(t, err)
}

func TestShakemapURL(t *testing.T) {
	utc := time.Date(2021, 10, 23, 2, 51, 58, 0, time.UTC)
	assert.Equal(t, base+"20211023095158.mmi.jpg", ShakemapURL(base, utc))
}
