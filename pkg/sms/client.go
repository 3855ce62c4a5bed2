// Package sms delivers OTP codes through an external SMS gateway.
package sms

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/astrodarshan/astro-engine/pkg/apperrors"
	"github.com/astrodarshan/astro-engine/pkg/config"
	"github.com/astrodarshan/astro-engine/pkg/logging"
)

// Sender delivers a one-time code to a phone number.
type Sender interface {
	SendOTP(ctx context.Context, phone, code string) error
}

// GatewayClient implements Sender against a 2Factor-style HTTP gateway.
type GatewayClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  *zap.Logger
}

// NewGatewayClient creates an SMS gateway client from configuration.
func NewGatewayClient(cfg *config.SMSConfig, logger *zap.Logger) *GatewayClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &GatewayClient{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: timeout},
		logger:  logger.Named("sms"),
	}
}

var _ Sender = (*GatewayClient)(nil)

// SendOTP delivers the code via the gateway's templated SMS endpoint.
func (c *GatewayClient) SendOTP(ctx context.Context, phone, code string) error {
	url := fmt.Sprintf("%s/%s/SMS/%s/%s/OTP1", c.baseURL, c.apiKey, phone, code)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: sms gateway: %v", apperrors.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: sms gateway returned status %d", apperrors.ErrUpstreamUnavailable, resp.StatusCode)
	}

	c.logger.Info("OTP sent", zap.String("phone", logging.MaskPhone(phone)))
	return nil
}

// MockSender records sent codes for tests.
type MockSender struct {
	SendOTPFunc func(ctx context.Context, phone, code string) error
	Sent        []string // "phone:code" pairs in send order
}

var _ Sender = (*MockSender)(nil)

// SendOTP implements Sender.
func (m *MockSender) SendOTP(ctx context.Context, phone, code string) error {
	m.Sent = append(m.Sent, phone+":"+code)
	if m.SendOTPFunc != nil {
		return m.SendOTPFunc(ctx, phone, code)
	}
	return nil
}
