package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/astrodarshan/astro-engine/pkg/apperrors"
	"github.com/astrodarshan/astro-engine/pkg/database"
	"github.com/astrodarshan/astro-engine/pkg/models"
)

// ProfileRepository provides data access for birth profiles. The fact blobs
// are written only through SetFacts; everything else treats them as opaque.
type ProfileRepository interface {
	Create(ctx context.Context, profile *models.Profile) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Profile, error)
	GetOwned(ctx context.Context, userID, id uuid.UUID) (*models.Profile, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Profile, error)
	Update(ctx context.Context, profile *models.Profile) error
	Delete(ctx context.Context, userID, id uuid.UUID) error

	// SetFacts back-fills the resolved fact blobs onto the profile row.
	SetFacts(ctx context.Context, id uuid.UUID, facts *models.AstrologicalFacts) error
}

type profileRepository struct {
	db *database.DB
}

// NewProfileRepository creates a new ProfileRepository.
func NewProfileRepository(db *database.DB) ProfileRepository {
	return &profileRepository{db: db}
}

var _ ProfileRepository = (*profileRepository)(nil)

const profileColumns = `
	id, user_id, full_name, COALESCE(gender, ''), date_of_birth,
	COALESCE(birth_time, ''), COALESCE(birth_place_name, ''),
	COALESCE(birth_lat, 0), COALESCE(birth_lon, 0), COALESCE(birth_tz, 0),
	planetary_positions, dasha_details, created_at, updated_at`

func scanProfile(row pgx.Row) (*models.Profile, error) {
	var p models.Profile
	var positions, dasha []byte

	err := row.Scan(
		&p.ID, &p.UserID, &p.FullName, &p.Gender, &p.DateOfBirth,
		&p.BirthTime, &p.BirthPlaceName,
		&p.BirthLat, &p.BirthLon, &p.BirthTZ,
		&positions, &dasha, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.PlanetaryPositions = positions
	p.DashaDetails = dasha
	return &p, nil
}

func (r *profileRepository) Create(ctx context.Context, profile *models.Profile) error {
	if profile.ID == uuid.Nil {
		profile.ID = uuid.New()
	}
	now := time.Now().UTC()
	profile.CreatedAt = now
	profile.UpdatedAt = now

	query := `
		INSERT INTO profiles (
			id, user_id, full_name, gender, date_of_birth, birth_time,
			birth_place_name, birth_lat, birth_lon, birth_tz, created_at, updated_at
		) VALUES ($1, $2, $3, NULLIF($4, ''), $5, NULLIF($6, ''), NULLIF($7, ''), $8, $9, $10, $11, $11)`

	_, err := r.db.Exec(ctx, query,
		profile.ID, profile.UserID, profile.FullName, profile.Gender,
		profile.DateOfBirth, profile.BirthTime, profile.BirthPlaceName,
		profile.BirthLat, profile.BirthLon, profile.BirthTZ, now,
	)
	if err != nil {
		return fmt.Errorf("failed to create profile: %w", err)
	}
	return nil
}

func (r *profileRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Profile, error) {
	query := `SELECT` + profileColumns + ` FROM profiles WHERE id = $1`

	profile, err := scanProfile(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return profile, nil
}

func (r *profileRepository) GetOwned(ctx context.Context, userID, id uuid.UUID) (*models.Profile, error) {
	query := `SELECT` + profileColumns + ` FROM profiles WHERE id = $1 AND user_id = $2`

	profile, err := scanProfile(r.db.QueryRow(ctx, query, id, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return profile, nil
}

func (r *profileRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Profile, error) {
	query := `SELECT` + profileColumns + ` FROM profiles WHERE user_id = $1 ORDER BY created_at`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	defer rows.Close()

	profiles := make([]*models.Profile, 0)
	for rows.Next() {
		profile, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}
		profiles = append(profiles, profile)
	}
	return profiles, rows.Err()
}

func (r *profileRepository) Update(ctx context.Context, profile *models.Profile) error {
	profile.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE profiles SET
			full_name = $3, gender = NULLIF($4, ''), date_of_birth = $5,
			birth_time = NULLIF($6, ''), birth_place_name = NULLIF($7, ''),
			birth_lat = $8, birth_lon = $9, birth_tz = $10, updated_at = $11
		WHERE id = $1 AND user_id = $2`

	tag, err := r.db.Exec(ctx, query,
		profile.ID, profile.UserID, profile.FullName, profile.Gender,
		profile.DateOfBirth, profile.BirthTime, profile.BirthPlaceName,
		profile.BirthLat, profile.BirthLon, profile.BirthTZ, profile.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *profileRepository) Delete(ctx context.Context, userID, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM profiles WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *profileRepository) SetFacts(ctx context.Context, id uuid.UUID, facts *models.AstrologicalFacts) error {
	query := `
		UPDATE profiles SET planetary_positions = $2, dasha_details = $3, updated_at = $4
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query,
		id, []byte(facts.PlanetaryPositions), []byte(facts.DashaDetails), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to set profile facts: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}
