// Package devices owns registered push destinations: the device_tokens rows
// written by the app's registration flow and read by the notification run.
package devices

import (
	"context"
	"errors"
	"fmt"
	"math"
)

// Record is one registered device. Latitude and Longitude are nil for
// devices that never granted location permission.
type Record struct {
	Token     string   `json:"token"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// HasCoordinates reports whether both coordinates are present.
func (r Record) HasCoordinates() bool {
	return r.Latitude != nil && r.Longitude != nil
}

// Store reads and registers device records.
type Store interface {
	// FetchAll returns every registered device.
	FetchAll(ctx context.Context) ([]Record, error)
	// Upsert inserts the record or, when the token exists, overwrites the
	// coordinates that are present on r.
	Upsert(ctx context.Context, r Record) error
	Close() error
}

// ErrInvalidRecord is returned by Validate.
var ErrInvalidRecord = errors.New("invalid device record")

// Validate checks the token is present and coordinates, when given, are in
// range.
func Validate(r Record) error {
	if r.Token == "" {
		return fmt.Errorf("%w: token is required", ErrInvalidRecord)
	}
	if r.Latitude != nil && (math.IsNaN(*r.Latitude) || *r.Latitude < -90 || *r.Latitude > 90) {
		return fmt.Errorf("%w: latitude out of range", ErrInvalidRecord)
	}
	if r.Longitude != nil && (math.IsNaN(*r.Longitude) || *r.Longitude < -180 || *r.Longitude > 180) {
		return fmt.Errorf("%w: longitude out of range", ErrInvalidRecord)
	}
	return nil
}

// Float returns a pointer to f.
func Float(f float64) *float64 { return &f }
