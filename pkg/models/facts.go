package models

import "encoding/json"

// AstrologicalFacts is a cached ephemeris computation result for one profile
// state. Either half may be nil when the upstream call for it did not
// succeed; a partial result is valid and is cached as such.
type AstrologicalFacts struct {
	PlanetaryPositions json.RawMessage `json:"planetary_positions"`
	DashaDetails       json.RawMessage `json:"dasha_details"`
}

// Partial reports whether one of the two halves is missing.
func (f *AstrologicalFacts) Partial() bool {
	return f.PlanetaryPositions == nil || f.DashaDetails == nil
}

// Empty reports whether neither half resolved.
func (f *AstrologicalFacts) Empty() bool {
	return f.PlanetaryPositions == nil && f.DashaDetails == nil
}
