// Package notifications composes and sends the personalised weather push
// notifications.
//
// Pipeline: load devices → resolve location + fetch weather per device (fan
// out) → compose two messages per device → flatten in device order → send
// one batch to the push relay. Each run is stateless.
package notifications

import (
	"errors"
	"fmt"
	"math/rand/v2"
)

// --------------------------------------------------------------------------
// Errors
// --------------------------------------------------------------------------

var (
	// ErrStoreUnavailable aborts a run before any per-device work starts.
	ErrStoreUnavailable = errors.New("device store unavailable")
	// ErrWeatherUnavailable marks a per-device weather lookup failure.
	ErrWeatherUnavailable = errors.New("weather unavailable")
	// ErrDispatchFailed is returned when the relay POST fails outright.
	ErrDispatchFailed = errors.New("dispatch failed")
)

// DeviceError is a failure scoped to one device of a run.
type DeviceError struct {
	Index int
	Token string
	Err   error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("device %d (%s): %v", e.Index, redactToken(e.Token), e.Err)
}

func (e *DeviceError) Unwrap() error { return e.Err }

// --------------------------------------------------------------------------
// Types
// --------------------------------------------------------------------------

// Message is one push-relay message. The JSON shape is the relay's wire
// format.
type Message struct {
	To    string `json:"to"`
	Sound string `json:"sound"`
	Title string `json:"title"`
	Body  string `json:"body"`
}

const defaultSound = "default"

// NewMessage builds a message with the default sound.
func NewMessage(token, title, body string) Message {
	return Message{To: token, Sound: defaultSound, Title: title, Body: body}
}

// RandomSource picks an index in [0, n). *rand.Rand satisfies it.
type RandomSource interface {
	IntN(n int) int
}

type globalRand struct{}

func (globalRand) IntN(n int) int { return rand.IntN(n) }

// DefaultRandom uses the auto-seeded global generator.
var DefaultRandom RandomSource = globalRand{}

// redactToken keeps the tail of a push token for log correlation.
func redactToken(token string) string {
	const keep = 6
	if len(token) <= keep {
		return "…"
	}
	return "…" + token[len(token)-keep:]
}
