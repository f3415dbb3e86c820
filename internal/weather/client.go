// Package weather fetches current conditions and daily aggregates from the
// Open-Meteo forecast API.
//
// Open-Meteo is public and unauthenticated. Coordinates are passed through
// as given and the timezone is resolved by the API ("timezone=auto").
package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/albapepper/skyvibes/internal/httputil"
	"github.com/albapepper/skyvibes/internal/metrics"
)

// ErrUnavailable is returned for network errors, non-200 responses and
// payloads missing the requested current fields.
var ErrUnavailable = errors.New("weather unavailable")

const (
	snapshotFields = "temperature_2m,weathercode"
	detailFields   = "temperature_2m,weathercode,windspeed_10m,relativehumidity_2m,precipitation,apparent_temperature"
	dailyFields    = "temperature_2m_max,temperature_2m_min,precipitation_sum,uv_index_max,windspeed_10m_max"
)

// Snapshot is the per-device reading the notification run needs.
type Snapshot struct {
	TemperatureC float64
	Code         int
}

// Current is the detailed "current" block served by the weather proxy.
type Current struct {
	Time                string   `json:"time,omitempty"`
	Interval            int      `json:"interval,omitempty"`
	Temperature         float64  `json:"temperature_2m"`
	WeatherCode         int      `json:"weathercode"`
	WindSpeed           *float64 `json:"windspeed_10m,omitempty"`
	RelativeHumidity    *float64 `json:"relativehumidity_2m,omitempty"`
	Precipitation       *float64 `json:"precipitation,omitempty"`
	ApparentTemperature *float64 `json:"apparent_temperature,omitempty"`
}

// Daily is the "daily" block: one column per field, indexed by day. Open-Meteo
// reports gaps as null.
type Daily struct {
	Time             []string   `json:"time"`
	TemperatureMax   []*float64 `json:"temperature_2m_max"`
	TemperatureMin   []*float64 `json:"temperature_2m_min"`
	PrecipitationSum []*float64 `json:"precipitation_sum"`
	UVIndexMax       []*float64 `json:"uv_index_max"`
	WindSpeedMax     []*float64 `json:"windspeed_10m_max"`
}

// Days is the number of forecast days in the block.
func (d *Daily) Days() int { return len(d.Time) }

func (d *Daily) columnsAligned() bool {
	n := len(d.Time)
	for _, col := range [][]*float64{d.TemperatureMax, d.TemperatureMin, d.PrecipitationSum, d.UVIndexMax, d.WindSpeedMax} {
		if len(col) != n {
			return false
		}
	}
	return true
}

// Client is the HTTP client for the forecast endpoint.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
}

// NewClient creates a forecast client. timeout bounds every request.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		httpClient: httputil.NewClient(timeout),
		baseURL:    baseURL,
		logger:     logger,
	}
}

// Snapshot returns current temperature and weather code at the coordinates.
func (c *Client) Snapshot(ctx context.Context, lat, lon float64) (Snapshot, error) {
	var payload struct {
		Current *struct {
			Temperature *float64 `json:"temperature_2m"`
			WeatherCode *int     `json:"weathercode"`
		} `json:"current"`
	}
	if err := c.get(ctx, lat, lon, "current", snapshotFields, &payload); err != nil {
		return Snapshot{}, err
	}
	if payload.Current == nil || payload.Current.Temperature == nil || payload.Current.WeatherCode == nil {
		return Snapshot{}, fmt.Errorf("%w: response missing current temperature_2m/weathercode", ErrUnavailable)
	}
	return Snapshot{
		TemperatureC: *payload.Current.Temperature,
		Code:         *payload.Current.WeatherCode,
	}, nil
}

// Current returns the detailed current block at the coordinates.
func (c *Client) Current(ctx context.Context, lat, lon float64) (*Current, error) {
	var payload struct {
		Current *Current `json:"current"`
	}
	if err := c.get(ctx, lat, lon, "current", detailFields, &payload); err != nil {
		return nil, err
	}
	if payload.Current == nil {
		return nil, fmt.Errorf("%w: response missing current block", ErrUnavailable)
	}
	return payload.Current, nil
}

// Daily returns the multi-day forecast block at the coordinates.
func (c *Client) Daily(ctx context.Context, lat, lon float64) (*Daily, error) {
	var payload struct {
		Daily *Daily `json:"daily"`
	}
	if err := c.get(ctx, lat, lon, "daily", dailyFields, &payload); err != nil {
		return nil, err
	}
	if payload.Daily == nil || payload.Daily.Days() == 0 {
		return nil, fmt.Errorf("%w: response missing daily block", ErrUnavailable)
	}
	if !payload.Daily.columnsAligned() {
		return nil, fmt.Errorf("%w: daily columns differ in length", ErrUnavailable)
	}
	return payload.Daily, nil
}

func (c *Client) get(ctx context.Context, lat, lon float64, block, fields string, out any) (err error) {
	start := time.Now()
	defer func() {
		metrics.ObserveCall(metrics.ServiceWeather, time.Since(start).Seconds(), err)
	}()

	params := url.Values{}
	params.Set("latitude", formatCoord(lat))
	params.Set("longitude", formatCoord(lon))
	params.Set(block, fields)
	params.Set("timezone", "auto")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read response body: %v", ErrUnavailable, err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: open-meteo returned %d: %s", ErrUnavailable, resp.StatusCode, httputil.Truncate(body, 200))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}

	c.logger.Debug("Weather fetched", "block", block, "lat", lat, "lon", lon, "duration", time.Since(start).Round(time.Millisecond))
	return nil
}

func formatCoord(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
