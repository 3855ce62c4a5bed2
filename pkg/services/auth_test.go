package services

import (
	"context"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/astrodarshan/astro-engine/pkg/apperrors"
	"github.com/astrodarshan/astro-engine/pkg/auth"
	"github.com/astrodarshan/astro-engine/pkg/config"
	"github.com/astrodarshan/astro-engine/pkg/models"
	"github.com/astrodarshan/astro-engine/pkg/sms"
)

type fakeUserRepo struct {
	mu       sync.Mutex
	byPhone  map[string]*models.User
	refresh  map[string]*models.RefreshToken
	verified map[uuid.UUID]bool
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{
		byPhone:  make(map[string]*models.User),
		refresh:  make(map[string]*models.RefreshToken),
		verified: make(map[uuid.UUID]bool),
	}
}

func (r *fakeUserRepo) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.byPhone {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (r *fakeUserRepo) GetOrCreateByPhone(_ context.Context, phone string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.byPhone[phone]; ok {
		return u, nil
	}
	u := &models.User{ID: uuid.New(), Phone: phone, CreatedAt: time.Now().UTC()}
	r.byPhone[phone] = u
	return u, nil
}

func (r *fakeUserRepo) MarkVerified(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.verified[id] = true
	return nil
}

func (r *fakeUserRepo) SaveRefreshToken(_ context.Context, token *models.RefreshToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refresh[token.Token] = token
	return nil
}

func (r *fakeUserRepo) GetRefreshToken(_ context.Context, token string) (*models.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.refresh[token]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return stored, nil
}

func (r *fakeUserRepo) DeleteRefreshToken(_ context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.refresh, token)
	return nil
}

type fakeOTPRepo struct {
	mu      sync.Mutex
	byPhone map[string][]*models.OTP
}

func newFakeOTPRepo() *fakeOTPRepo {
	return &fakeOTPRepo{byPhone: make(map[string][]*models.OTP)}
}

func (r *fakeOTPRepo) Save(_ context.Context, otp *models.OTP) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if otp.ID == uuid.Nil {
		otp.ID = uuid.New()
	}
	r.byPhone[otp.Phone] = append(r.byPhone[otp.Phone], otp)
	return nil
}

func (r *fakeOTPRepo) GetLatest(_ context.Context, phone string) (*models.OTP, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	codes := r.byPhone[phone]
	if len(codes) == 0 {
		return nil, apperrors.ErrNotFound
	}
	return codes[len(codes)-1], nil
}

func (r *fakeOTPRepo) DeleteForPhone(_ context.Context, phone string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byPhone, phone)
	return nil
}

type authFixture struct {
	svc    *authService
	users  *fakeUserRepo
	otps   *fakeOTPRepo
	sender *sms.MockSender
	tokens *auth.TokenService
}

func newAuthFixture() *authFixture {
	cfg := config.AuthConfig{
		JWTSecret:       "test-secret",
		AccessTokenTTL:  30 * time.Minute,
		RefreshTokenTTL: 168 * time.Hour,
		OTPTTL:          5 * time.Minute,
		DefaultRegion:   "IN",
	}
	users := newFakeUserRepo()
	otps := newFakeOTPRepo()
	sender := &sms.MockSender{}
	tokens := auth.NewTokenService(&cfg)
	svc := NewAuthService(users, otps, sender, tokens, cfg, zap.NewNop()).(*authService)
	return &authFixture{svc: svc, users: users, otps: otps, sender: sender, tokens: tokens}
}

func TestAuthService_RequestOTP_NormalizesAndSends(t *testing.T) {
	f := newAuthFixture()

	err := f.svc.RequestOTP(context.Background(), "98765 43210", "203.0.113.9")

	require.NoError(t, err)
	require.Len(t, f.sender.Sent, 1)
	assert.True(t, strings.HasPrefix(f.sender.Sent[0], "+919876543210:"))

	otp, err := f.otps.GetLatest(context.Background(), "+919876543210")
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^\d{6}$`), otp.Code)
	assert.Equal(t, "203.0.113.9", otp.IPAddress)
	assert.WithinDuration(t, time.Now().Add(5*time.Minute), otp.ExpiresAt, time.Minute)
}

func TestAuthService_RequestOTP_InvalidPhone(t *testing.T) {
	f := newAuthFixture()

	err := f.svc.RequestOTP(context.Background(), "12345", "")

	assert.ErrorIs(t, err, apperrors.ErrInvalidPhone)
	assert.Empty(t, f.sender.Sent)
}

func TestAuthService_VerifyOTP_CreatesAndVerifiesUser(t *testing.T) {
	f := newAuthFixture()
	require.NoError(t, f.svc.RequestOTP(context.Background(), "+919876543210", ""))
	otp, err := f.otps.GetLatest(context.Background(), "+919876543210")
	require.NoError(t, err)

	pair, err := f.svc.VerifyOTP(context.Background(), "9876543210", otp.Code)

	require.NoError(t, err)
	require.NotNil(t, pair)
	assert.NotEmpty(t, pair.RefreshToken)

	userID, err := f.tokens.VerifyAccessToken(pair.AccessToken)
	require.NoError(t, err)
	user, err := f.users.GetByID(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, "+919876543210", user.Phone)
	assert.True(t, f.users.verified[userID])
}

func TestAuthService_VerifyOTP_WrongCode(t *testing.T) {
	f := newAuthFixture()
	require.NoError(t, f.svc.RequestOTP(context.Background(), "+919876543210", ""))

	_, err := f.svc.VerifyOTP(context.Background(), "+919876543210", "000000")

	assert.ErrorIs(t, err, apperrors.ErrOTPInvalid)
}

func TestAuthService_VerifyOTP_Expired(t *testing.T) {
	f := newAuthFixture()
	require.NoError(t, f.svc.RequestOTP(context.Background(), "+919876543210", ""))
	otp, err := f.otps.GetLatest(context.Background(), "+919876543210")
	require.NoError(t, err)

	f.svc.now = func() time.Time { return time.Now().UTC().Add(10 * time.Minute) }
	_, err = f.svc.VerifyOTP(context.Background(), "+919876543210", otp.Code)

	assert.ErrorIs(t, err, apperrors.ErrOTPExpired)
}

func TestAuthService_VerifyOTP_NoCodeIssued(t *testing.T) {
	f := newAuthFixture()

	_, err := f.svc.VerifyOTP(context.Background(), "+919876543210", "123456")

	assert.ErrorIs(t, err, apperrors.ErrOTPInvalid)
}

func TestAuthService_VerifyOTP_CodeIsConsumed(t *testing.T) {
	f := newAuthFixture()
	require.NoError(t, f.svc.RequestOTP(context.Background(), "+919876543210", ""))
	otp, err := f.otps.GetLatest(context.Background(), "+919876543210")
	require.NoError(t, err)

	_, err = f.svc.VerifyOTP(context.Background(), "+919876543210", otp.Code)
	require.NoError(t, err)
	_, err = f.svc.VerifyOTP(context.Background(), "+919876543210", otp.Code)

	assert.ErrorIs(t, err, apperrors.ErrOTPInvalid)
}

func TestAuthService_Refresh_RotatesToken(t *testing.T) {
	f := newAuthFixture()
	require.NoError(t, f.svc.RequestOTP(context.Background(), "+919876543210", ""))
	otp, err := f.otps.GetLatest(context.Background(), "+919876543210")
	require.NoError(t, err)
	pair, err := f.svc.VerifyOTP(context.Background(), "+919876543210", otp.Code)
	require.NoError(t, err)

	rotated, err := f.svc.Refresh(context.Background(), pair.RefreshToken)

	require.NoError(t, err)
	assert.NotEqual(t, pair.RefreshToken, rotated.RefreshToken)

	// The presented token is consumed by rotation.
	_, err = f.svc.Refresh(context.Background(), pair.RefreshToken)
	assert.ErrorIs(t, err, apperrors.ErrTokenInvalid)
}

func TestAuthService_Refresh_UnknownToken(t *testing.T) {
	f := newAuthFixture()

	_, err := f.svc.Refresh(context.Background(), "nope")

	assert.ErrorIs(t, err, apperrors.ErrTokenInvalid)
}

func TestAuthService_Refresh_ExpiredTokenIsConsumed(t *testing.T) {
	f := newAuthFixture()
	userID := uuid.New()
	require.NoError(t, f.users.SaveRefreshToken(context.Background(), &models.RefreshToken{
		UserID:    userID,
		Token:     "stale",
		ExpiresAt: time.Now().UTC().Add(-time.Hour),
	}))

	_, err := f.svc.Refresh(context.Background(), "stale")

	assert.ErrorIs(t, err, apperrors.ErrTokenInvalid)
	_, err = f.users.GetRefreshToken(context.Background(), "stale")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestAuthService_Logout(t *testing.T) {
	f := newAuthFixture()
	require.NoError(t, f.users.SaveRefreshToken(context.Background(), &models.RefreshToken{
		UserID: uuid.New(), Token: "tok", ExpiresAt: time.Now().Add(time.Hour),
	}))

	require.NoError(t, f.svc.Logout(context.Background(), "tok"))
	require.NoError(t, f.svc.Logout(context.Background(), "tok"))

	_, err := f.users.GetRefreshToken(context.Background(), "tok")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
