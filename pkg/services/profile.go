package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/astrodarshan/astro-engine/pkg/apperrors"
	"github.com/astrodarshan/astro-engine/pkg/geocode"
	"github.com/astrodarshan/astro-engine/pkg/models"
	"github.com/astrodarshan/astro-engine/pkg/repositories"
)

// ProfileInput carries the caller-supplied birth details for creating or
// updating a profile. Coordinates are optional when a place name is given.
type ProfileInput struct {
	FullName       string  `json:"full_name"`
	Gender         string  `json:"gender"`
	DateOfBirth    string  `json:"date_of_birth"` // "2006-01-02"
	BirthTime      string  `json:"birth_time"`    // "HH:MM", optional
	BirthPlaceName string  `json:"birth_place_name"`
	BirthLat       float64 `json:"birth_lat"`
	BirthLon       float64 `json:"birth_lon"`
	BirthTZ        float64 `json:"birth_tz"`
}

// ProfileService manages birth profiles. Any edit to birth details
// invalidates cached facts and eagerly recomputes them so the next
// consultation sees fresh data.
type ProfileService interface {
	Create(ctx context.Context, userID uuid.UUID, input ProfileInput) (*models.Profile, error)
	Get(ctx context.Context, userID, profileID uuid.UUID) (*models.Profile, error)
	List(ctx context.Context, userID uuid.UUID) ([]*models.Profile, error)
	Update(ctx context.Context, userID, profileID uuid.UUID, input ProfileInput) (*models.Profile, error)
	Delete(ctx context.Context, userID, profileID uuid.UUID) error
}

type profileService struct {
	profiles repositories.ProfileRepository
	facts    FactService
	geocoder geocode.Geocoder
	logger   *zap.Logger
}

// NewProfileService creates a ProfileService.
func NewProfileService(
	profiles repositories.ProfileRepository,
	facts FactService,
	geocoder geocode.Geocoder,
	logger *zap.Logger,
) ProfileService {
	return &profileService{
		profiles: profiles,
		facts:    facts,
		geocoder: geocoder,
		logger:   logger.Named("profile"),
	}
}

var _ ProfileService = (*profileService)(nil)

var birthTimePattern = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

func (s *profileService) Create(ctx context.Context, userID uuid.UUID, input ProfileInput) (*models.Profile, error) {
	profile, err := s.build(ctx, input)
	if err != nil {
		return nil, err
	}
	profile.ID = uuid.New()
	profile.UserID = userID

	if err := s.profiles.Create(ctx, profile); err != nil {
		return nil, err
	}

	s.recompute(ctx, profile)
	return profile, nil
}

func (s *profileService) Get(ctx context.Context, userID, profileID uuid.UUID) (*models.Profile, error) {
	return s.profiles.GetOwned(ctx, userID, profileID)
}

func (s *profileService) List(ctx context.Context, userID uuid.UUID) ([]*models.Profile, error) {
	return s.profiles.ListByUser(ctx, userID)
}

func (s *profileService) Update(ctx context.Context, userID, profileID uuid.UUID, input ProfileInput) (*models.Profile, error) {
	existing, err := s.profiles.GetOwned(ctx, userID, profileID)
	if err != nil {
		return nil, err
	}

	profile, err := s.build(ctx, input)
	if err != nil {
		return nil, err
	}
	profile.ID = existing.ID
	profile.UserID = existing.UserID
	profile.CreatedAt = existing.CreatedAt

	if err := s.profiles.Update(ctx, profile); err != nil {
		return nil, err
	}

	// Invalidate before recomputing so a failed recompute cannot leave a
	// stale entry serving the old birth details.
	if err := s.facts.Invalidate(ctx, profile.ID); err != nil {
		s.logger.Warn("Facts invalidation failed",
			zap.String("profile_id", profile.ID.String()),
			zap.Error(err))
	}
	s.recompute(ctx, profile)
	return profile, nil
}

func (s *profileService) Delete(ctx context.Context, userID, profileID uuid.UUID) error {
	if err := s.profiles.Delete(ctx, userID, profileID); err != nil {
		return err
	}
	if err := s.facts.Invalidate(ctx, profileID); err != nil {
		s.logger.Warn("Facts invalidation failed",
			zap.String("profile_id", profileID.String()),
			zap.Error(err))
	}
	return nil
}

// build validates the input and resolves missing coordinates from the place
// name.
func (s *profileService) build(ctx context.Context, input ProfileInput) (*models.Profile, error) {
	name := strings.TrimSpace(input.FullName)
	if name == "" {
		return nil, fmt.Errorf("%w: full_name is required", apperrors.ErrValidation)
	}

	dob, err := time.Parse("2006-01-02", input.DateOfBirth)
	if err != nil {
		return nil, fmt.Errorf("%w: date_of_birth must be YYYY-MM-DD", apperrors.ErrValidation)
	}

	birthTime := strings.TrimSpace(input.BirthTime)
	if birthTime != "" && !birthTimePattern.MatchString(birthTime) {
		return nil, fmt.Errorf("%w: birth_time must be HH:MM", apperrors.ErrValidation)
	}

	lat, lon := input.BirthLat, input.BirthLon
	place := strings.TrimSpace(input.BirthPlaceName)
	if lat == 0 && lon == 0 && place != "" {
		lat, lon, err = s.geocoder.Geocode(ctx, place)
		if err != nil {
			return nil, fmt.Errorf("geocode %q: %w", place, err)
		}
	}

	return &models.Profile{
		FullName:       name,
		Gender:         strings.ToLower(strings.TrimSpace(input.Gender)),
		DateOfBirth:    dob,
		BirthTime:      birthTime,
		BirthPlaceName: place,
		BirthLat:       lat,
		BirthLon:       lon,
		BirthTZ:        input.BirthTZ,
	}, nil
}

// recompute warms the fact cache. A failure here only delays facts to the
// first consultation, so it is logged rather than surfaced.
func (s *profileService) recompute(ctx context.Context, profile *models.Profile) {
	facts, err := s.facts.Resolve(ctx, profile)
	if err != nil {
		s.logger.Warn("Facts recomputation failed",
			zap.String("profile_id", profile.ID.String()),
			zap.Error(err))
		return
	}
	profile.PlanetaryPositions = facts.PlanetaryPositions
	profile.DashaDetails = facts.DashaDetails
}
