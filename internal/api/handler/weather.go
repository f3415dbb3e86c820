package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/albapepper/skyvibes/internal/api/respond"
	"github.com/albapepper/skyvibes/internal/cache"
	"github.com/albapepper/skyvibes/internal/weather"
)

const msgMissingCoords = "Missing latitude or longitude"

type weatherQuery struct {
	Lat float64 `validate:"gte=-90,lte=90"`
	Lon float64 `validate:"gte=-180,lte=180"`
}

// WeatherResponse is the Open-Meteo current block plus display hints.
type WeatherResponse struct {
	*weather.Current
	Condition weather.Condition `json:"condition"`
	Emoji     string            `json:"emoji"`
	Mood      string            `json:"mood"`
}

// ForecastResponse wraps the Open-Meteo daily block the way the app reads it.
type ForecastResponse struct {
	Daily *weather.Daily `json:"daily"`
}

// GetWeather proxies current conditions for the app's home screen.
// @Summary Current weather
// @Description Returns Open-Meteo current conditions at the coordinates, enriched with condition, emoji and mood. Responses are cached for 5 minutes per ~1 km cell.
// @Tags weather
// @Produce json
// @Param lat query number true "Latitude"
// @Param lon query number true "Longitude"
// @Success 200 {object} WeatherResponse
// @Success 304
// @Failure 400 {object} respond.ErrorResponse
// @Failure 500 {object} respond.ErrorResponse
// @Router /api/weather [get]
func (h *Handler) GetWeather(w http.ResponseWriter, r *http.Request) {
	q, ok := h.coords(w, r)
	if !ok {
		return
	}
	h.serveCached(w, r, cache.WeatherKey(q.Lat, q.Lon), cache.TTLWeather, func(ctx context.Context) (any, error) {
		current, err := h.Weather.Current(ctx, q.Lat, q.Lon)
		if err != nil {
			return nil, err
		}
		cond := weather.Classify(current.WeatherCode)
		return WeatherResponse{Current: current, Condition: cond, Emoji: cond.Emoji(), Mood: cond.Mood()}, nil
	})
}

// GetForecast proxies the daily forecast for the app's forecast screen.
// @Summary Daily forecast
// @Description Returns the Open-Meteo daily block (max/min temperature, precipitation, UV index, wind) at the coordinates. Responses are cached for 30 minutes per ~1 km cell.
// @Tags weather
// @Produce json
// @Param lat query number true "Latitude"
// @Param lon query number true "Longitude"
// @Success 200 {object} ForecastResponse
// @Success 304
// @Failure 400 {object} respond.ErrorResponse
// @Failure 500 {object} respond.ErrorResponse
// @Router /api/forecast [get]
func (h *Handler) GetForecast(w http.ResponseWriter, r *http.Request) {
	q, ok := h.coords(w, r)
	if !ok {
		return
	}
	h.serveCached(w, r, cache.ForecastKey(q.Lat, q.Lon), cache.TTLForecast, func(ctx context.Context) (any, error) {
		daily, err := h.Weather.Daily(ctx, q.Lat, q.Lon)
		if err != nil {
			return nil, err
		}
		return ForecastResponse{Daily: daily}, nil
	})
}

// coords parses and range-checks lat/lon, answering 400 itself on failure.
func (h *Handler) coords(w http.ResponseWriter, r *http.Request) (weatherQuery, bool) {
	q, ok := parseWeatherQuery(r)
	if !ok {
		respond.WriteError(w, http.StatusBadRequest, msgMissingCoords)
		return q, false
	}
	if err := validate.Struct(q); err != nil {
		respond.WriteError(w, http.StatusBadRequest, "Invalid latitude or longitude")
		return q, false
	}
	return q, true
}

// serveCached answers from the cache when it can, honours If-None-Match and
// otherwise renders, stores and writes a fresh body. Upstream failures are
// not cached.
func (h *Handler) serveCached(w http.ResponseWriter, r *http.Request, key string, ttl time.Duration,
	render func(ctx context.Context) (any, error)) {
	if e, hit := h.Cache.Lookup(key); hit {
		if cache.NotModified(r.Header.Get("If-None-Match"), e.ETag) {
			respond.WriteNotModified(w, e.ETag)
			return
		}
		respond.WriteJSON(w, e.Body, e.ETag, ttl, true)
		return
	}

	v, err := render(r.Context())
	if err != nil {
		h.Logger.Error("Weather proxy failed", "key", key, "error", err)
		respond.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	body, err := json.Marshal(v)
	if err != nil {
		respond.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	e := h.Cache.Store(key, body, ttl)
	respond.WriteJSON(w, e.Body, e.ETag, ttl, false)
}

func parseWeatherQuery(r *http.Request) (weatherQuery, bool) {
	lat, err := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	if err != nil {
		return weatherQuery{}, false
	}
	lon, err := strconv.ParseFloat(r.URL.Query().Get("lon"), 64)
	if err != nil {
		return weatherQuery{}, false
	}
	return weatherQuery{Lat: lat, Lon: lon}, true
}
