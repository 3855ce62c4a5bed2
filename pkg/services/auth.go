package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/nyaruka/phonenumbers"
	"go.uber.org/zap"

	"github.com/astrodarshan/astro-engine/pkg/apperrors"
	"github.com/astrodarshan/astro-engine/pkg/auth"
	"github.com/astrodarshan/astro-engine/pkg/config"
	"github.com/astrodarshan/astro-engine/pkg/logging"
	"github.com/astrodarshan/astro-engine/pkg/models"
	"github.com/astrodarshan/astro-engine/pkg/repositories"
	"github.com/astrodarshan/astro-engine/pkg/sms"
)

// TokenPair is the result of a successful login or refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// AuthService implements phone OTP onboarding with rotating refresh tokens.
type AuthService interface {
	// RequestOTP normalizes the phone number, issues a one-time code, and
	// delivers it through the SMS gateway.
	RequestOTP(ctx context.Context, rawPhone, ipAddress string) error

	// VerifyOTP checks the latest code for the phone, creating and
	// verifying the account on first login.
	VerifyOTP(ctx context.Context, rawPhone, code string) (*TokenPair, error)

	// Refresh rotates a refresh token, invalidating the presented one.
	Refresh(ctx context.Context, refreshToken string) (*TokenPair, error)

	// Logout revokes a refresh token. Revoking an unknown token is a no-op.
	Logout(ctx context.Context, refreshToken string) error
}

type authService struct {
	users  repositories.UserRepository
	otps   repositories.OTPRepository
	sender sms.Sender
	tokens *auth.TokenService
	cfg    config.AuthConfig
	logger *zap.Logger
	now    func() time.Time
}

// NewAuthService creates an AuthService.
func NewAuthService(
	users repositories.UserRepository,
	otps repositories.OTPRepository,
	sender sms.Sender,
	tokens *auth.TokenService,
	cfg config.AuthConfig,
	logger *zap.Logger,
) AuthService {
	return &authService{
		users:  users,
		otps:   otps,
		sender: sender,
		tokens: tokens,
		cfg:    cfg,
		logger: logger.Named("auth"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

var _ AuthService = (*authService)(nil)

func (s *authService) RequestOTP(ctx context.Context, rawPhone, ipAddress string) error {
	phone, err := s.normalizePhone(rawPhone)
	if err != nil {
		return err
	}

	code, err := generateOTPCode()
	if err != nil {
		return fmt.Errorf("generate otp: %w", err)
	}

	otp := &models.OTP{
		Phone:     phone,
		Code:      code,
		IPAddress: ipAddress,
		ExpiresAt: s.now().Add(s.cfg.OTPTTL),
	}
	if err := s.otps.Save(ctx, otp); err != nil {
		return fmt.Errorf("save otp: %w", err)
	}

	if err := s.sender.SendOTP(ctx, phone, code); err != nil {
		return fmt.Errorf("send otp: %w", err)
	}

	s.logger.Info("OTP issued", zap.String("phone", logging.MaskPhone(phone)))
	return nil
}

func (s *authService) VerifyOTP(ctx context.Context, rawPhone, code string) (*TokenPair, error) {
	phone, err := s.normalizePhone(rawPhone)
	if err != nil {
		return nil, err
	}

	otp, err := s.otps.GetLatest(ctx, phone)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, apperrors.ErrOTPInvalid
	}
	if err != nil {
		return nil, fmt.Errorf("load otp: %w", err)
	}
	if otp.Expired(s.now()) {
		return nil, apperrors.ErrOTPExpired
	}
	if otp.Code != code {
		return nil, apperrors.ErrOTPInvalid
	}

	if err := s.otps.DeleteForPhone(ctx, phone); err != nil {
		s.logger.Warn("OTP cleanup failed", zap.String("phone", logging.MaskPhone(phone)), zap.Error(err))
	}

	user, err := s.users.GetOrCreateByPhone(ctx, phone)
	if err != nil {
		return nil, fmt.Errorf("get or create user: %w", err)
	}
	if !user.IsVerified {
		if err := s.users.MarkVerified(ctx, user.ID); err != nil {
			return nil, fmt.Errorf("mark verified: %w", err)
		}
	}

	return s.issuePair(ctx, user.ID)
}

func (s *authService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	stored, err := s.users.GetRefreshToken(ctx, refreshToken)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, apperrors.ErrTokenInvalid
	}
	if err != nil {
		return nil, fmt.Errorf("load refresh token: %w", err)
	}

	// Rotation: the presented token is consumed whether or not it is
	// still valid.
	if err := s.users.DeleteRefreshToken(ctx, refreshToken); err != nil {
		return nil, fmt.Errorf("delete refresh token: %w", err)
	}
	if s.now().After(stored.ExpiresAt) {
		return nil, apperrors.ErrTokenInvalid
	}

	return s.issuePair(ctx, stored.UserID)
}

func (s *authService) Logout(ctx context.Context, refreshToken string) error {
	if err := s.users.DeleteRefreshToken(ctx, refreshToken); err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		return fmt.Errorf("delete refresh token: %w", err)
	}
	return nil
}

func (s *authService) issuePair(ctx context.Context, userID uuid.UUID) (*TokenPair, error) {
	access, err := s.tokens.IssueAccessToken(userID, s.now())
	if err != nil {
		return nil, err
	}

	refresh, expiresAt, err := s.tokens.NewRefreshToken()
	if err != nil {
		return nil, err
	}
	if err := s.users.SaveRefreshToken(ctx, &models.RefreshToken{
		UserID:    userID,
		Token:     refresh,
		ExpiresAt: expiresAt,
	}); err != nil {
		return nil, fmt.Errorf("save refresh token: %w", err)
	}

	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (s *authService) normalizePhone(raw string) (string, error) {
	parsed, err := phonenumbers.Parse(raw, s.cfg.DefaultRegion)
	if err != nil || !phonenumbers.IsValidNumber(parsed) {
		return "", apperrors.ErrInvalidPhone
	}
	return phonenumbers.Format(parsed, phonenumbers.E164), nil
}

func generateOTPCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}
