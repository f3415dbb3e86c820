// Package geocode resolves device coordinates to a place name.
//
// Reverse lookups go to a Nominatim-compatible /reverse endpoint. The public
// Nominatim instance allows one request per second and requires a
// User-Agent, so outbound calls share a token bucket limiter.
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/albapepper/skyvibes/internal/httputil"
	"github.com/albapepper/skyvibes/internal/metrics"
)

// ErrNoResult is returned when the service has no locality for the point.
var ErrNoResult = errors.New("no geocoding result")

// Address is the subset of the reverse geocoding address record we read.
type Address struct {
	City    string `json:"city"`
	Town    string `json:"town"`
	Village string `json:"village"`
	State   string `json:"state"`
	Country string `json:"country"`
}

// Locality returns the most specific settlement name available.
func (a Address) Locality() string {
	switch {
	case a.City != "":
		return a.City
	case a.Town != "":
		return a.Town
	default:
		return a.Village
	}
}

// NominatimClient performs rate-limited reverse geocoding.
type NominatimClient struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	limiter    *rate.Limiter
}

// NewNominatimClient creates a client allowing rps requests per second.
// rps <= 0 disables limiting.
func NewNominatimClient(baseURL, userAgent string, rps float64, timeout time.Duration) *NominatimClient {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	return &NominatimClient{
		httpClient: httputil.NewClient(timeout),
		baseURL:    baseURL,
		userAgent:  userAgent,
		limiter:    rate.NewLimiter(limit, 1),
	}
}

// Reverse returns the address record for the coordinates.
func (c *NominatimClient) Reverse(ctx context.Context, lat, lon float64) (addr Address, err error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return Address{}, fmt.Errorf("rate limit wait: %w", err)
	}

	start := time.Now()
	defer func() {
		metrics.ObserveCall(metrics.ServiceGeocoder, time.Since(start).Seconds(), err)
	}()

	params := url.Values{}
	params.Set("format", "jsonv2")
	params.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	params.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	params.Set("zoom", "10")
	params.Set("addressdetails", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return Address{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Address{}, fmt.Errorf("reverse geocode: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Address{}, fmt.Errorf("read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return Address{}, fmt.Errorf("geocoder returned %d", resp.StatusCode)
	}

	var payload struct {
		Error   string   `json:"error"`
		Address *Address `json:"address"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return Address{}, fmt.Errorf("decode response: %w", err)
	}
	if payload.Error != "" || payload.Address == nil {
		return Address{}, ErrNoResult
	}
	return *payload.Address, nil
}
