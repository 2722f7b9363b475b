// Package auth decides which participant a connection acts for. Wallets
// and sessions live outside wagerd, so the decision is delegated.
package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

var (
	// ErrInvalidToken indicates the credentials were rejected.
	ErrInvalidToken = errors.New("auth: invalid token")

	// ErrUnavailable indicates the auth service could not give an answer.
	ErrUnavailable = errors.New("auth: unavailable")
)

// DefaultTimeout bounds a single validation round trip.
const DefaultTimeout = 500 * time.Millisecond

// Identity is the participant a connection is allowed to act for.
type Identity struct {
	Participant string `json:"participant"`
}

// Validator checks the credentials a client presents when it authenticates.
type Validator interface {
	Validate(ctx context.Context, player, token string) (Identity, error)
}

// HTTPValidator asks an external service to validate credentials.
type HTTPValidator struct {
	url     string
	secret  string
	timeout time.Duration
	client  *http.Client
}

// NewHTTPValidator creates a validator posting to url. A non-empty secret
// is sent in the X-Admin-Secret header.
func NewHTTPValidator(url, secret string) *HTTPValidator {
	return &HTTPValidator{
		url:     url,
		secret:  secret,
		timeout: DefaultTimeout,
		client:  &http.Client{},
	}
}

type validateRequest struct {
	Player string `json:"player"`
	Token  string `json:"token"`
}

type validateResponse struct {
	Valid       bool   `json:"valid"`
	Participant string `json:"participant,omitempty"`
}

// Validate returns the participant the service maps the credentials to,
// defaulting to player when the service does not name one.
func (v *HTTPValidator) Validate(ctx context.Context, player, token string) (Identity, error) {
	if token == "" {
		return Identity{}, ErrInvalidToken
	}

	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	body, err := json.Marshal(validateRequest{Player: player, Token: token})
	if err != nil {
		return Identity{}, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.url, bytes.NewReader(body))
	if err != nil {
		return Identity{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if v.secret != "" {
		req.Header.Set("X-Admin-Secret", v.secret)
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		return Identity{}, ErrInvalidToken
	default:
		return Identity{}, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var out validateResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return Identity{}, fmt.Errorf("%w: decode error: %v", ErrUnavailable, err)
	}
	if !out.Valid {
		return Identity{}, ErrInvalidToken
	}
	if out.Participant == "" {
		out.Participant = player
	}
	return Identity{Participant: out.Participant}, nil
}

// NoopValidator trusts the name the client gives.
type NoopValidator struct{}

func (NoopValidator) Validate(_ context.Context, player, _ string) (Identity, error) {
	return Identity{Participant: player}, nil
}
