package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Profile is a birth-chart subject owned by a user. The two fact blobs are
// back-filled by the fact resolver and are either absent or a previously
// resolved ephemeris result.
type Profile struct {
	ID             uuid.UUID `json:"id"`
	UserID         uuid.UUID `json:"user_id"`
	FullName       string    `json:"full_name"`
	Gender         string    `json:"gender,omitempty"`
	DateOfBirth    time.Time `json:"date_of_birth"`
	BirthTime      string    `json:"birth_time,omitempty"` // "HH:MM", local to birth place
	BirthPlaceName string    `json:"birth_place_name,omitempty"`
	BirthLat       float64   `json:"birth_lat"`
	BirthLon       float64   `json:"birth_lon"`
	BirthTZ        float64   `json:"birth_tz"` // UTC offset in hours, e.g. 5.5

	PlanetaryPositions json.RawMessage `json:"planetary_positions,omitempty"`
	DashaDetails       json.RawMessage `json:"dasha_details,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BirthClock returns the hour and minute of birth, defaulting to midnight
// when the birth time is unknown or malformed.
func (p *Profile) BirthClock() (hour, minute int) {
	t, err := time.Parse("15:04", p.BirthTime)
	if err != nil {
		return 0, 0
	}
	return t.Hour(), t.Minute()
}
