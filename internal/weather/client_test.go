package weather

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Snapshot(t *testing.T) {
	var gotQuery map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		gotQuery = map[string]string{
			"latitude":  q.Get("latitude"),
			"longitude": q.Get("longitude"),
			"current":   q.Get("current"),
			"timezone":  q.Get("timezone"),
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"latitude":28.625,"current":{"time":"2026-10-16T10:00","temperature_2m":40.2,"weathercode":0}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second, nil)
	snap, err := c.Snapshot(context.Background(), 28.61, 77.2)
	require.NoError(t, err)

	assert.Equal(t, 40.2, snap.TemperatureC)
	assert.Equal(t, 0, snap.Code)
	assert.Equal(t, map[string]string{
		"latitude":  "28.61",
		"longitude": "77.2",
		"current":   "temperature_2m,weathercode",
		"timezone":  "auto",
	}, gotQuery)
}

func TestClient_SnapshotErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusInternalServerError, `{"error":true}`},
		{"malformed json", http.StatusOK, `{"current":`},
		{"missing current", http.StatusOK, `{"latitude":1}`},
		{"missing weathercode", http.StatusOK, `{"current":{"temperature_2m":12}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewClient(srv.URL, time.Second, nil).Snapshot(context.Background(), 1, 2)
			require.ErrorIs(t, err, ErrUnavailable)
		})
	}
}

func TestClient_SnapshotNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewClient(url, time.Second, nil).Snapshot(context.Background(), 1, 2)
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestClient_SnapshotTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	_, err := NewClient(srv.URL, 50*time.Millisecond, nil).Snapshot(context.Background(), 1, 2)
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestClient_Current(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, detailFields, r.URL.Query().Get("current"))
		w.Write([]byte(`{"current":{"time":"2026-10-16T10:00","interval":900,"temperature_2m":21.5,"weathercode":61,"windspeed_10m":12.1,"relativehumidity_2m":80,"precipitation":0.4,"apparent_temperature":20.9}}`))
	}))
	defer srv.Close()

	cur, err := NewClient(srv.URL, time.Second, nil).Current(context.Background(), -36.79, 146.97)
	require.NoError(t, err)
	assert.Equal(t, 21.5, cur.Temperature)
	assert.Equal(t, 61, cur.WeatherCode)
	require.NotNil(t, cur.WindSpeed)
	assert.Equal(t, 12.1, *cur.WindSpeed)
	require.NotNil(t, cur.Precipitation)
	assert.Equal(t, 0.4, *cur.Precipitation)
}

func TestClient_Daily(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "temperature_2m_max,temperature_2m_min,precipitation_sum,uv_index_max,windspeed_10m_max", q.Get("daily"))
		assert.Empty(t, q.Get("current"))
		assert.Equal(t, "auto", q.Get("timezone"))
		w.Write([]byte(`{"daily_units":{"temperature_2m_max":"°C"},"daily":{
			"time":["2026-10-16","2026-10-17"],
			"temperature_2m_max":[31.2,29.8],
			"temperature_2m_min":[22.0,21.4],
			"precipitation_sum":[0.0,null],
			"uv_index_max":[7.1,6.5],
			"windspeed_10m_max":[14.0,18.3]}}`))
	}))
	defer srv.Close()

	d, err := NewClient(srv.URL, time.Second, nil).Daily(context.Background(), 28.61, 77.2)
	require.NoError(t, err)
	assert.Equal(t, 2, d.Days())
	assert.Equal(t, []string{"2026-10-16", "2026-10-17"}, d.Time)
	require.NotNil(t, d.TemperatureMax[0])
	assert.Equal(t, 31.2, *d.TemperatureMax[0])
	assert.Nil(t, d.PrecipitationSum[1])
	assert.Equal(t, 18.3, *d.WindSpeedMax[1])
}

func TestClient_DailyErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusBadGateway, "upstream down"},
		{"missing daily", http.StatusOK, `{"latitude":1}`},
		{"no days", http.StatusOK, `{"daily":{"time":[]}}`},
		{"ragged columns", http.StatusOK, `{"daily":{"time":["2026-10-16"],"temperature_2m_max":[1,2],"temperature_2m_min":[1],"precipitation_sum":[0],"uv_index_max":[1],"windspeed_10m_max":[1]}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewClient(srv.URL, time.Second, nil).Daily(context.Background(), 1, 2)
			require.ErrorIs(t, err, ErrUnavailable)
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		code  int
		want  Condition
		emoji string
	}{
		{0, ConditionClear, "☀️"},
		{2, ConditionPartlyCloudy, "⛅"},
		{48, ConditionFog, "🌫️"},
		{63, ConditionRain, "🌧️"},
		{81, ConditionRain, "🌧️"},
		{86, ConditionSnow, "❄️"},
		{96, ConditionStorm, "⛈️"},
		{4, ConditionUnknown, "🌫️"},
		{-1, ConditionUnknown, "🌫️"},
	}
	for _, tt := range tests {
		got := Classify(tt.code)
		assert.Equal(t, tt.want, got, "code %d", tt.code)
		assert.Equal(t, tt.emoji, got.Emoji(), "code %d", tt.code)
		assert.NotEmpty(t, got.Mood())
	}
}
