// Package auth is the client side of the external token-validation service.
// The service owns all JWT concerns; this package only forwards bearer
// tokens and interprets the verdict.
package auth

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/kinglands/rooms/internal/v1/logging"
)

const (
	validatePath   = "/api/v1/auth/token/validate/"
	requestTimeout = 5 * time.Second
	maxAttempts    = 5
)

// TokenValidator answers whether a bearer token is currently valid.
type TokenValidator interface {
	Validate(ctx context.Context, token string) (bool, error)
}

// HTTPValidator validates tokens against the auth service over HTTP.
// Transport failures are retried with exponential backoff; an HTTP verdict
// of any kind is final.
type HTTPValidator struct {
	baseURL string
	client  *http.Client
}

// NewHTTPValidator creates a validator for the given auth service base URL.
func NewHTTPValidator(baseURL string) *HTTPValidator {
	return &HTTPValidator{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: requestTimeout},
	}
}

// Validate calls the auth service and reports whether the token is valid.
// Only transport errors are retried, up to maxAttempts.
func (v *HTTPValidator) Validate(ctx context.Context, token string) (bool, error) {
	url := v.baseURL + validatePath

	var valid bool
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Authorization", "Bearer "+token)

		resp, err := v.client.Do(req)
		if err != nil {
			logging.Warn(ctx, "token validation request failed, retrying", zap.Error(err))
			return err
		}
		defer resp.Body.Close()

		valid = resp.StatusCode == http.StatusOK
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 1 * time.Second
	bo.MaxInterval = 10 * time.Second

	err := backoff.Retry(operation, backoff.WithContext(
		backoff.WithMaxRetries(bo, maxAttempts-1), ctx))
	if err != nil {
		return false, fmt.Errorf("auth: validate token: %w", err)
	}
	return valid, nil
}

// MockValidator accepts every token except those in Denied. For tests and
// development mode.
type MockValidator struct {
	Denied map[string]bool
}

func (m *MockValidator) Validate(_ context.Context, token string) (bool, error) {
	return !m.Denied[token], nil
}

// GetAllowedOriginsFromEnv reads a comma-separated origin allowlist from the
// environment, falling back to defaults for local development.
func GetAllowedOriginsFromEnv(envVarName string, defaultOrigins []string) []string {
	originsStr := os.Getenv(envVarName)
	if originsStr == "" {
		logging.Warn(context.Background(), fmt.Sprintf(
			"%s environment variable not set. Using default development origins:\n%s",
			envVarName, defaultOrigins))
		return defaultOrigins
	}
	return strings.Split(originsStr, ",")
}
