package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/astrodarshan/astro-engine/pkg/apperrors"
	"github.com/astrodarshan/astro-engine/pkg/database"
	"github.com/astrodarshan/astro-engine/pkg/models"
)

// OTPRepository provides data access for one-time codes.
type OTPRepository interface {
	Save(ctx context.Context, otp *models.OTP) error
	GetLatest(ctx context.Context, phone string) (*models.OTP, error)
	DeleteForPhone(ctx context.Context, phone string) error
}

type otpRepository struct {
	db *database.DB
}

// NewOTPRepository creates a new OTPRepository.
func NewOTPRepository(db *database.DB) OTPRepository {
	return &otpRepository{db: db}
}

var _ OTPRepository = (*otpRepository)(nil)

func (r *otpRepository) Save(ctx context.Context, otp *models.OTP) error {
	if otp.ID == uuid.Nil {
		otp.ID = uuid.New()
	}

	query := `
		INSERT INTO otps (id, phone, code, ip_address, expires_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := r.db.Exec(ctx, query, otp.ID, otp.Phone, otp.Code, otp.IPAddress, otp.ExpiresAt)
	if err != nil {
		return fmt.Errorf("failed to save otp: %w", err)
	}
	return nil
}

func (r *otpRepository) GetLatest(ctx context.Context, phone string) (*models.OTP, error) {
	query := `
		SELECT id, phone, code, COALESCE(ip_address, ''), expires_at, created_at
		FROM otps
		WHERE phone = $1
		ORDER BY created_at DESC
		LIMIT 1`

	var otp models.OTP
	err := r.db.QueryRow(ctx, query, phone).Scan(
		&otp.ID, &otp.Phone, &otp.Code, &otp.IPAddress, &otp.ExpiresAt, &otp.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get otp: %w", err)
	}
	return &otp, nil
}

func (r *otpRepository) DeleteForPhone(ctx context.Context, phone string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM otps WHERE phone = $1`, phone)
	if err != nil {
		return fmt.Errorf("failed to delete otps: %w", err)
	}
	return nil
}
