package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hazardwatch/hazardwatch/internal/conf"
	"github.com/hazardwatch/hazardwatch/internal/errors"
	"github.com/hazardwatch/hazardwatch/internal/hazard"
	"github.com/hazardwatch/hazardwatch/internal/observability/metrics"
)

func earthquake() *hazard.Candidate {
	return &hazard.Candidate{
		Feed:           "bmkg-recent",
		Source:         "BMKG",
		Classification: hazard.Earthquake,
		Title:          "Gempa M5.2 Pusat gempa berada di laut 45 km BaratDaya Kab. Sukabumi",
		OccurAt:        time.Date(2024, 3, 1, 10, 15, 0, 0, hazard.Jakarta),
		Description:    "Tidak berpotensi tsunami",
		Detail: hazard.EarthquakeDetail{
			Magnitude:   5.2,
			Depth:       10,
			ShakemapURL: "https://data.bmkg.go.id/DataMKG/TEWS/20240301101500.mmi.jpg",
		},
		Locations: []hazard.LocationPayload{
			{Fields: hazard.LocationFields{SubAdministrativeArea: "Sukabumi"}},
			{UUID: "gone", Delete: true},
		},
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize("3f1c", earthquake())

	assert.Equal(t, "3f1c", s.UUID)
	assert.Equal(t, "bmkg-recent", s.Feed)
	require.NotNil(t, s.Magnitude)
	assert.InDelta(t, 5.2, *s.Magnitude, 0.001)
	require.NotNil(t, s.Depth)
	assert.Equal(t, 1, s.Locations, "deleted locations are not counted")
	assert.NotEmpty(t, s.ShakemapURL)
}

func TestSummarize_FloodHasNoSeismicFields(t *testing.T) {
	c := &hazard.Candidate{
		Source:         "BNPB",
		Classification: hazard.Flood,
		Title:          "Banjir Kab. Bandung",
		OccurAt:        time.Date(2024, 3, 1, 0, 0, 0, 0, hazard.Jakarta),
		Detail:         hazard.FloodDetail{},
	}
	s := Summarize("u", c)
	assert.Nil(t, s.Magnitude)
	assert.Nil(t, s.Depth)

	payload, err := json.Marshal(s)
	require.NoError(t, err)
	assert.NotContains(t, string(payload), "magnitude")
}

func TestText(t *testing.T) {
	text := Summarize("u", earthquake()).Text()

	assert.Contains(t, text, "M5.2")
	assert.Contains(t, text, "depth 10 km")
	assert.Contains(t, text, "2024-03-01 10:15:00 WIB (BMKG)")
	assert.Contains(t, text, "Tidak berpotensi tsunami")
	assert.Contains(t, text, "mmi.jpg")
}

type recordingNotifier struct {
	mu     sync.Mutex
	got    []HazardSummary
	err    error
	closed bool
}

func (r *recordingNotifier) NotifyCreated(_ context.Context, hs []HazardSummary) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, hs...)
	return r.err
}

func (r *recordingNotifier) Close() { r.closed = true }

func TestMulti_FansOutAndJoinsErrors(t *testing.T) {
	ok := &recordingNotifier{}
	failing := &recordingNotifier{err: fmt.Errorf("boom")}
	m := Multi{ok, failing}

	err := m.NotifyCreated(t.Context(), []HazardSummary{{UUID: "a"}, {UUID: "b"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.Len(t, ok.got, 2)
	assert.Len(t, failing.got, 2)

	m.Close()
	assert.True(t, ok.closed)
	assert.True(t, failing.closed)
}

func TestMulti_EmptyBatchIsNoop(t *testing.T) {
	r := &recordingNotifier{}
	require.NoError(t, Multi{r}.NotifyCreated(t.Context(), nil))
	assert.Empty(t, r.got)
}

func TestFromSettings_NothingEnabled(t *testing.T) {
	n, err := FromSettings(&conf.Settings{}, nil)
	require.NoError(t, err)
	assert.IsType(t, Nop{}, n)
}

func TestFromSettings_InvalidShoutrrrURL(t *testing.T) {
	s := &conf.Settings{}
	s.Notify.Shoutrrr.Enabled = true
	s.Notify.Shoutrrr.URLs = []string{"nosuchservice://token@host"}

	_, err := FromSettings(s, nil)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
	assert.NotContains(t, err.Error(), "token@host")
}

// fakeToken completes immediately with err.
type fakeToken struct {
	err  error
	done chan struct{}
}

func newFakeToken(err error) *fakeToken {
	ch := make(chan struct{})
	close(ch)
	return &fakeToken{err: err, done: ch}
}

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{}          { return t.done }
func (t *fakeToken) Error() error                   { return t.err }

type published struct {
	topic    string
	retained bool
	payload  []byte
}

type fakeMQTTClient struct {
	connected    bool
	connectErr   error
	publishErr   error
	connects     int
	disconnected bool
	messages     []published
}

func (c *fakeMQTTClient) IsConnected() bool { return c.connected }

func (c *fakeMQTTClient) Connect() mqtt.Token {
	c.connects++
	if c.connectErr == nil {
		c.connected = true
	}
	return newFakeToken(c.connectErr)
}

func (c *fakeMQTTClient) Publish(topic string, _ byte, retained bool, payload any) mqtt.Token {
	b, _ := payload.([]byte)
	c.messages = append(c.messages, published{topic: topic, retained: retained, payload: b})
	return newFakeToken(c.publishErr)
}

func (c *fakeMQTTClient) Disconnect(uint) {
	c.connected = false
	c.disconnected = true
}

func newTestMQTT(t *testing.T, fake *fakeMQTTClient) (*MQTT, *metrics.NotifyMetrics) {
	t.Helper()
	m, err := metrics.NewNotifyMetrics(prometheus.NewRegistry())
	require.NoError(t, err)
	n := NewMQTT(MQTTConfig{Broker: "tcp://localhost:1883", Topic: "hazards/new", Retain: true}, m)
	n.newClient = func(*mqtt.ClientOptions) mqttClient { return fake }
	return n, m
}

func TestMQTT_PublishesOneMessagePerHazard(t *testing.T) {
	fake := &fakeMQTTClient{}
	n, m := newTestMQTT(t, fake)

	hazards := []HazardSummary{Summarize("a", earthquake()), Summarize("b", earthquake())}
	require.NoError(t, n.NotifyCreated(t.Context(), hazards))
	require.NoError(t, n.NotifyCreated(t.Context(), hazards[:1]))

	assert.Equal(t, 1, fake.connects, "connection is reused")
	require.Len(t, fake.messages, 3)
	assert.Equal(t, "hazards/new", fake.messages[0].topic)
	assert.True(t, fake.messages[0].retained)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(fake.messages[1].payload, &decoded))
	assert.Equal(t, "b", decoded["uuid"])
	assert.Equal(t, "bmkg-recent", decoded["feed"])

	assert.InDelta(t, 3, testutil.ToFloat64(m.MessagesTotal.WithLabelValues("mqtt", metrics.StatusSuccess)), 0)

	n.Close()
	assert.True(t, fake.disconnected)
}

func TestMQTT_ConnectFailure(t *testing.T) {
	fake := &fakeMQTTClient{connectErr: fmt.Errorf("refused")}
	n, _ := newTestMQTT(t, fake)

	err := n.NotifyCreated(t.Context(), []HazardSummary{{UUID: "a"}})
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryMQTTPublish))
	assert.Empty(t, fake.messages)
}

func TestMQTT_PublishFailureIsReported(t *testing.T) {
	fake := &fakeMQTTClient{publishErr: fmt.Errorf("not authorized")}
	n, m := newTestMQTT(t, fake)

	err := n.NotifyCreated(t.Context(), []HazardSummary{{UUID: "a"}})
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryMQTTPublish))
	assert.InDelta(t, 1, testutil.ToFloat64(m.MessagesTotal.WithLabelValues("mqtt", metrics.StatusError)), 0)
}

func TestMQTT_EmptyBatchDoesNotConnect(t *testing.T) {
	fake := &fakeMQTTClient{}
	n, _ := newTestMQTT(t, fake)
	require.NoError(t, n.NotifyCreated(t.Context(), nil))
	assert.Zero(t, fake.connects)
}

type fakeSender struct {
	messages []string
	titles   []string
	errs     []error
}

func (s *fakeSender) Send(message string, params *stypes.Params) []error {
	s.messages = append(s.messages, message)
	title, _ := params.Title()
	s.titles = append(s.titles, title)
	return s.errs
}

func TestShoutrrr_SendsTextWithTitle(t *testing.T) {
	fake := &fakeSender{}
	n := &Shoutrrr{sender: fake}

	require.NoError(t, n.NotifyCreated(t.Context(), []HazardSummary{Summarize("a", earthquake())}))
	require.Len(t, fake.messages, 1)
	assert.Contains(t, fake.messages[0], "[EARTHQUAKE]")
	assert.Equal(t, "New earthquake reported by BMKG", fake.titles[0])
}

func TestShoutrrr_ServiceErrors(t *testing.T) {
	fake := &fakeSender{errs: []error{nil, fmt.Errorf("telegram: 401")}}
	n := &Shoutrrr{sender: fake}

	err := n.NotifyCreated(t.Context(), []HazardSummary{{UUID: "a"}, {UUID: "b"}})
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryNotification))
	assert.Len(t, fake.messages, 2)
}

func TestNewShoutrrr_RequiresURLs(t *testing.T) {
	_, err := NewShoutrrr(nil, time.Second, nil)
	require.Error(t, err)
}
