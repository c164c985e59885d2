package social

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hazardwatch/hazardwatch/internal/errors"
	"github.com/hazardwatch/hazardwatch/internal/hazard"
	"github.com/hazardwatch/hazardwatch/internal/httpclient"
)

const searchBody = `{
  "data": [
    {
      "id": "1451789",
      "text": "#Gempa Mag:5.2, 23-Okt-21 09:51:58 WIB, Lok:8.47 LS 110.37 BT, Kedalaman:10 Km https://t.co/abc123",
      "author_id": "42",
      "created_at": "2021-10-23T02:55:00.000Z",
      "attachments": {"media_keys": ["3_99"]}
    },
    {
      "id": "1451790",
      "text": "https://t.co/onlylink",
      "author_id": "42",
      "created_at": "2021-10-23T03:00:00.000Z"
    }
  ],
  "includes": {
    "media": [{"media_key": "3_99", "type": "photo", "url": "https://pbs.twimg.example/media/shakemap.jpg"}],
    "users": [{"id": "42", "name": "BMKG", "username": "infoBMKG"}]
  },
  "meta": {"result_count": 2}
}`

func newTestSource(t *testing.T, handler http.HandlerFunc, accounts ...string) *Source {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := httpclient.New(&httpclient.Config{
		MaxRetries: 0,
		Transport:  NewTransport("secret-token", http.DefaultTransport),
	})
	t.Cleanup(client.Close)
	return New(Config{URL: server.URL + "/2/tweets/search/recent", Accounts: accounts, MaxResults: 5}, client)
}

func TestSource_Fetch(t *testing.T) {
	var calls atomic.Int32
	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "Bearer secret-token", r.Header.Get("Authorization"))
		q := r.URL.Query()
		assert.Equal(t, "from:infoBMKG has:media info gempa", q.Get("query"))
		assert.Equal(t, "attachments.media_keys,author_id", q.Get("expansions"))
		assert.Equal(t, "url", q.Get("media.fields"))
		assert.Equal(t, "created_at", q.Get("tweet.fields"))
		assert.Equal(t, "10", q.Get("max_results"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(searchBody))
	}, "infoBMKG")

	assert.Equal(t, "social", src.Name())
	assert.Equal(t, hazard.Earthquake, src.Category())

	candidates, err := src.Fetch(context.Background(), hazard.Epoch)
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
	require.Len(t, candidates, 1, "the post that is only a link is dropped")

	c := candidates[0]
	assert.Equal(t, "social", c.Feed)
	assert.Equal(t, "BMKG", c.Source)
	assert.Equal(t, hazard.Earthquake, c.Classification)
	assert.Equal(t, "#Gempa Mag:5.2, 23-Okt-21 09:51:58 WIB, Lok:8.47 LS 110.37 BT, Kedalaman:10 Km", c.Title)
	assert.True(t, c.OccurAt.Equal(time.Date(2021, 10, 23, 2, 55, 0, 0, time.UTC)))
	assert.Equal(t, hazard.Jakarta, c.OccurAt.Location())

	detail := c.Detail.(hazard.EarthquakeDetail)
	assert.InDelta(t, 5.2, detail.Magnitude, 1e-9)

	require.Len(t, c.Attachments, 1)
	assert.Equal(t, "https://pbs.twimg.example/media/shakemap.jpg", c.Attachments[0].URL)
	assert.Equal(t, hazard.AttachmentShakemap, c.Attachments[0].Identifier)
}

func TestSource_PartialFailure(t *testing.T) {
	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("query") == "from:broken has:media info gempa" {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		_, _ = w.Write([]byte(searchBody))
	}, "broken", "infoBMKG")

	candidates, err := src.Fetch(context.Background(), hazard.Epoch)
	require.NoError(t, err)
	assert.Len(t, candidates, 1)
}

func TestSource_AllAccountsFail(t *testing.T) {
	src := newTestSource(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}, "a", "b")

	_, err := src.Fetch(context.Background(), hazard.Epoch)
	require.Error(t, err)
	assert.True(t, errors.IsSourceUnavailable(err))
}

func TestParse_Malformed(t *testing.T) {
	_, err := Parse([]byte("not json"))
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryFileParsing))

	candidates, err := Parse([]byte(`{"meta":{"result_count":0}}`))
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestMagnitude(t *testing.T) {
	tests := []struct {
		text string
		want float64
		ok   bool
	}{
		{"#Gempa Mag:5.2, 23-Okt-21", 5.2, true},
		{"Gempa M 4,8 guncang Alor", 4.8, true},
		{"Magnitudo: 6.1 Kedalaman 10 km", 6.1, true},
		{"Info gempa dirasakan", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, ok := Magnitude(tt.text)
			assert.Equal(t, tt.ok, ok)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestCleanText(t *testing.T) {
	assert.Equal(t, "Gempa dirasakan", CleanText("Gempa  https://t.co/x dirasakan http://example.com/y"))
}
