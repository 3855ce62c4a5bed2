package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/astrodarshan/astro-engine/pkg/apperrors"
	"github.com/astrodarshan/astro-engine/pkg/database"
	"github.com/astrodarshan/astro-engine/pkg/ephemeris"
	"github.com/astrodarshan/astro-engine/pkg/models"
	"github.com/astrodarshan/astro-engine/pkg/repositories"
)

// FactService resolves a profile's computed astrological facts through a
// cache-aside lookup against the slow ephemeris computation.
type FactService interface {
	// Resolve returns the profile's facts, consulting the ephemeris API
	// only on a cache miss. A partial result (one half absent) is valid
	// and is cached as such.
	Resolve(ctx context.Context, profile *models.Profile) (*models.AstrologicalFacts, error)

	// Invalidate drops the cached facts for a profile, forcing the next
	// Resolve to recompute. Called before recomputation on profile edits.
	Invalidate(ctx context.Context, profileID uuid.UUID) error
}

type factService struct {
	cache     database.Cache
	ephemeris ephemeris.Client
	profiles  repositories.ProfileRepository
	ttl       time.Duration
	logger    *zap.Logger
}

// NewFactService creates a FactService with the given cache validity horizon.
func NewFactService(
	cache database.Cache,
	ephemerisClient ephemeris.Client,
	profiles repositories.ProfileRepository,
	ttl time.Duration,
	logger *zap.Logger,
) FactService {
	return &factService{
		cache:     cache,
		ephemeris: ephemerisClient,
		profiles:  profiles,
		ttl:       ttl,
		logger:    logger.Named("facts"),
	}
}

var _ FactService = (*factService)(nil)

func (s *factService) Resolve(ctx context.Context, profile *models.Profile) (*models.AstrologicalFacts, error) {
	key := database.FactsKey(profile.ID)

	cached, err := s.cache.Get(ctx, key)
	if err == nil {
		var facts models.AstrologicalFacts
		if jsonErr := json.Unmarshal([]byte(cached), &facts); jsonErr == nil {
			return &facts, nil
		}
		s.logger.Warn("Discarding undecodable cached facts", zap.String("key", key))
	} else if !errors.Is(err, apperrors.ErrCacheMiss) {
		// A cache outage degrades to recomputation rather than failing
		// the consultation.
		s.logger.Warn("Facts cache read failed", zap.Error(err))
	}

	facts, err := s.compute(ctx, profile)
	if err != nil {
		return nil, err
	}

	// Concurrent resolutions for the same profile may race here; last
	// writer wins. The payload is idempotent for a fixed profile state.
	payload, err := json.Marshal(facts)
	if err != nil {
		return nil, fmt.Errorf("marshal facts: %w", err)
	}
	if err := s.cache.Set(ctx, key, string(payload), s.ttl); err != nil {
		s.logger.Warn("Facts cache write failed", zap.Error(err))
	}

	if !facts.Empty() {
		if err := s.profiles.SetFacts(ctx, profile.ID, facts); err != nil {
			s.logger.Warn("Profile facts back-fill failed",
				zap.String("profile_id", profile.ID.String()),
				zap.Error(err))
		}
	}

	return facts, nil
}

func (s *factService) compute(ctx context.Context, profile *models.Profile) (*models.AstrologicalFacts, error) {
	hour, minute := profile.BirthClock()
	details := ephemeris.BirthDetails{
		FullName: profile.FullName,
		Day:      profile.DateOfBirth.Day(),
		Month:    int(profile.DateOfBirth.Month()),
		Year:     profile.DateOfBirth.Year(),
		Hour:     hour,
		Minute:   minute,
		Gender:   profile.Gender,
		Place:    profile.BirthPlaceName,
		Lat:      profile.BirthLat,
		Lon:      profile.BirthLon,
		TZone:    profile.BirthTZ,
	}

	positions, err := s.ephemeris.PlanetaryPositions(ctx, details)
	if err != nil {
		return nil, err
	}
	dasha, err := s.ephemeris.VimshottariDasha(ctx, details)
	if err != nil {
		return nil, err
	}

	facts := &models.AstrologicalFacts{
		PlanetaryPositions: positions,
		DashaDetails:       dasha,
	}
	if facts.Partial() {
		s.logger.Warn("Resolved partial facts",
			zap.String("profile_id", profile.ID.String()),
			zap.Bool("has_positions", positions != nil),
			zap.Bool("has_dasha", dasha != nil))
	}
	return facts, nil
}

func (s *factService) Invalidate(ctx context.Context, profileID uuid.UUID) error {
	return s.cache.Delete(ctx, database.FactsKey(profileID))
}
