// Package ephemeris wraps the external astrology computation API. The
// numeric computation itself is opaque; responses are carried through as raw
// JSON documents.
package ephemeris

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/astrodarshan/astro-engine/pkg/apperrors"
	"github.com/astrodarshan/astro-engine/pkg/config"
)

// BirthDetails are the request parameters shared by both computation calls.
type BirthDetails struct {
	FullName string
	Day      int
	Month    int
	Year     int
	Hour     int
	Minute   int
	Gender   string
	Place    string
	Lat      float64
	Lon      float64
	TZone    float64 // UTC offset in hours
}

// Client is the contract for the two independent computation calls. A nil
// document with a nil error means the upstream answered with a non-success
// status; callers treat that half as absent rather than failing.
type Client interface {
	PlanetaryPositions(ctx context.Context, d BirthDetails) (json.RawMessage, error)
	VimshottariDasha(ctx context.Context, d BirthDetails) (json.RawMessage, error)
}

// HTTPClient implements Client against the Divine API.
type HTTPClient struct {
	baseURL   string
	apiKey    string
	authToken string
	http      *http.Client
	logger    *zap.Logger
}

// NewHTTPClient creates an ephemeris client from configuration.
func NewHTTPClient(cfg *config.EphemerisConfig, logger *zap.Logger) *HTTPClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &HTTPClient{
		baseURL:   strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:    cfg.APIKey,
		authToken: cfg.AuthToken,
		http:      &http.Client{Timeout: timeout},
		logger:    logger.Named("ephemeris"),
	}
}

var _ Client = (*HTTPClient)(nil)

// PlanetaryPositions fetches the planetary position document for a birth chart.
func (c *HTTPClient) PlanetaryPositions(ctx context.Context, d BirthDetails) (json.RawMessage, error) {
	return c.post(ctx, "/planetary-positions", d)
}

// VimshottariDasha fetches the dasha/antardasha timeline document.
func (c *HTTPClient) VimshottariDasha(ctx context.Context, d BirthDetails) (json.RawMessage, error) {
	return c.post(ctx, "/vimshottari-dasha", d)
}

func (c *HTTPClient) post(ctx context.Context, path string, d BirthDetails) (json.RawMessage, error) {
	form := url.Values{}
	form.Set("api_key", c.apiKey)
	form.Set("full_name", d.FullName)
	form.Set("day", strconv.Itoa(d.Day))
	form.Set("month", strconv.Itoa(d.Month))
	form.Set("year", strconv.Itoa(d.Year))
	form.Set("hour", strconv.Itoa(d.Hour))
	form.Set("min", strconv.Itoa(d.Minute))
	form.Set("sec", "0")
	form.Set("gender", strings.ToLower(d.Gender))
	form.Set("place", d.Place)
	form.Set("lat", strconv.FormatFloat(d.Lat, 'f', -1, 64))
	form.Set("lon", strconv.FormatFloat(d.Lon, 'f', -1, 64))
	form.Set("tzone", strconv.FormatFloat(d.TZone, 'f', -1, 64))
	form.Set("lan", "en")
	form.Set("dasha_type", "antar-dasha")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+c.authToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: ephemeris %s: %v", apperrors.ErrUpstreamUnavailable, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: ephemeris %s: read body: %v", apperrors.ErrUpstreamUnavailable, path, err)
	}

	// A non-success status degrades to an absent half, not a hard failure.
	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("Ephemeris call returned non-success status",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode))
		return nil, nil
	}

	if !json.Valid(body) {
		c.logger.Warn("Ephemeris call returned malformed JSON", zap.String("path", path))
		return nil, nil
	}

	return json.RawMessage(body), nil
}

// MockClient is a configurable mock for testing fact resolution.
type MockClient struct {
	PlanetaryPositionsFunc func(ctx context.Context, d BirthDetails) (json.RawMessage, error)
	VimshottariDashaFunc   func(ctx context.Context, d BirthDetails) (json.RawMessage, error)

	PlanetaryPositionsCalls int
	VimshottariDashaCalls   int
}

var _ Client = (*MockClient)(nil)

// PlanetaryPositions implements Client.
func (m *MockClient) PlanetaryPositions(ctx context.Context, d BirthDetails) (json.RawMessage, error) {
	m.PlanetaryPositionsCalls++
	if m.PlanetaryPositionsFunc != nil {
		return m.PlanetaryPositionsFunc(ctx, d)
	}
	return nil, nil
}

// VimshottariDasha implements Client.
func (m *MockClient) VimshottariDasha(ctx context.Context, d BirthDetails) (json.RawMessage, error) {
	m.VimshottariDashaCalls++
	if m.VimshottariDashaFunc != nil {
		return m.VimshottariDashaFunc(ctx, d)
	}
	return nil, nil
}
