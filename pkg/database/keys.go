package database

import (
	"fmt"

	"github.com/google/uuid"
)

// Cache key construction lives here so the facts and transcript namespaces
// cannot collide. Callers never build key strings themselves.

// FactsKey returns the cache key for a profile's resolved astrological facts.
func FactsKey(profileID uuid.UUID) string {
	return fmt.Sprintf("facts:%s", profileID)
}

// TranscriptKey returns the cache key for a session's recent turns.
func TranscriptKey(sessionID uuid.UUID) string {
	return fmt.Sprintf("transcript:%s", sessionID)
}
