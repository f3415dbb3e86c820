package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/albapepper/skyvibes/internal/api/respond"
	"github.com/albapepper/skyvibes/internal/notifications"
)

// Trigger response texts. The app and the external cron match on these.
const (
	TextSent            = "✅ Sent custom weird weather & wisdom blasts"
	TextTokensFailed    = "❌ Failed to fetch tokens"
	TextWeatherFailed   = "❌ Failed to fetch weather"
	TextDispatchFailed  = "❌ Failed to dispatch notifications"
	TextUnexpectedError = "❌ Failed to send notifications"
)

// SendWeatherNotifications runs one notification pass over every registered
// device.
// @Summary Send weather notifications
// @Description Loads every device, resolves its location, fetches current weather and sends two pushes per device in a single relay batch. Accepts GET and POST.
// @Tags notifications
// @Produce plain
// @Success 200 {string} string
// @Failure 500 {string} string
// @Router /api/send-weather-notifications [post]
func (h *Handler) SendWeatherNotifications(w http.ResponseWriter, r *http.Request) {
	// A started run finishes even if the caller hangs up; every outbound
	// call is bounded by its own timeout.
	ctx := context.WithoutCancel(r.Context())

	// Geocoding is rate limited per device, so a run can outlast the
	// server's WriteTimeout. The caller still gets the result text.
	if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil {
		h.Logger.Debug("Write deadline not lifted", "error", err)
	}

	result, err := h.Runner.Run(ctx)
	if err != nil {
		h.Logger.Error("Notification run failed", "error", err)
		respond.WriteText(w, http.StatusInternalServerError, triggerFailureText(err))
		return
	}

	h.Logger.Info("Notification run served", "summary", result.Summary())
	respond.WriteText(w, http.StatusOK, TextSent)
}

func triggerFailureText(err error) string {
	switch {
	case errors.Is(err, notifications.ErrStoreUnavailable):
		return TextTokensFailed
	case errors.Is(err, notifications.ErrWeatherUnavailable):
		return TextWeatherFailed
	case errors.Is(err, notifications.ErrDispatchFailed):
		return TextDispatchFailed
	default:
		return TextUnexpectedError
	}
}

// PushRequest is the body of a single push.
type PushRequest struct {
	Token string `json:"token" validate:"required"`
	Title string `json:"title" validate:"required"`
	Body  string `json:"body" validate:"required"`
}

// SendNotification relays one message to one device.
// @Summary Send one push notification
// @Description Relays a single {title, body} message to the given push token.
// @Tags notifications
// @Accept json
// @Produce json
// @Param request body PushRequest true "Message"
// @Success 200 {object} respond.SuccessResponse
// @Failure 400 {object} respond.ErrorResponse
// @Failure 500 {object} respond.ErrorResponse
// @Router /api/send-notification [post]
func (h *Handler) SendNotification(w http.ResponseWriter, r *http.Request) {
	var req PushRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteError(w, http.StatusBadRequest, "Missing fields")
		return
	}
	if err := validate.Struct(req); err != nil {
		respond.WriteError(w, http.StatusBadRequest, "Missing fields")
		return
	}

	pushID := uuid.NewString()
	msg := notifications.NewMessage(req.Token, req.Title, req.Body)
	result, err := h.Pusher.Send(r.Context(), []notifications.Message{msg})
	if err != nil {
		h.Logger.Error("Single push failed", "push_id", pushID, "error", err)
		respond.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.Logger.Info("Single push sent", "push_id", pushID,
		"delivered", result.Delivered, "rejected", result.Rejected)
	respond.WriteSuccess(w)
}
