package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/albapepper/skyvibes/internal/api/respond"
	"github.com/albapepper/skyvibes/internal/devices"
)

// RegisterRequest is the body the app sends after obtaining a push token.
type RegisterRequest struct {
	Token     string   `json:"token" validate:"required"`
	Latitude  *float64 `json:"latitude,omitempty" validate:"omitempty,gte=-90,lte=90"`
	Longitude *float64 `json:"longitude,omitempty" validate:"omitempty,gte=-180,lte=180"`
}

// RegisterDevice stores or refreshes a push token.
// @Summary Register device token
// @Description Upserts a push token by value. Coordinates, when present, overwrite the stored ones.
// @Tags devices
// @Accept json
// @Produce json
// @Param request body RegisterRequest true "Device"
// @Success 200 {object} respond.SuccessResponse
// @Failure 400 {object} respond.ErrorResponse
// @Failure 500 {object} respond.ErrorResponse
// @Router /api/device-tokens [post]
func (h *Handler) RegisterDevice(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if err := validate.Struct(req); err != nil {
		respond.WriteError(w, http.StatusBadRequest, "Missing token or coordinates out of range")
		return
	}

	rec := devices.Record{Token: req.Token, Latitude: req.Latitude, Longitude: req.Longitude}
	if err := h.Devices.Upsert(r.Context(), rec); err != nil {
		if errors.Is(err, devices.ErrInvalidRecord) {
			respond.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.Logger.Error("Device registration failed", "error", err)
		respond.WriteError(w, http.StatusInternalServerError, "Failed to save token")
		return
	}

	h.Logger.Info("Device registered", "has_coordinates", rec.HasCoordinates())
	respond.WriteSuccess(w)
}
