package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// HTTPVerifier calls the identity provider's userinfo endpoint with the
// caller's bearer token. Provider outages trip the breaker so requests fail
// fast as unauthenticated instead of piling up; authorization fails closed
// either way.
type HTTPVerifier struct {
	client  *http.Client
	url     string
	breaker *breaker
}

func NewHTTPVerifier(baseURL, userinfoPath string, timeoutMs, failThreshold, openForMs int) *HTTPVerifier {
	if timeoutMs <= 0 {
		timeoutMs = 2000
	}
	return &HTTPVerifier{
		client:  &http.Client{Timeout: time.Duration(timeoutMs) * time.Millisecond},
		url:     strings.TrimRight(baseURL, "/") + userinfoPath,
		breaker: newBreaker(failThreshold, time.Duration(openForMs)*time.Millisecond),
	}
}

var _ Verifier = (*HTTPVerifier)(nil)

type userinfoResponse struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
}

func (v *HTTPVerifier) Verify(ctx context.Context, token string) (Identity, error) {
	if token == "" {
		return Identity{}, ErrUnauthenticated
	}
	if !v.breaker.tryAcquire() {
		return Identity{}, fmt.Errorf("%w: identity provider unavailable", ErrUnauthenticated)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.url, nil)
	if err != nil {
		v.breaker.onFailure()
		return Identity{}, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := v.client.Do(req)
	if err != nil {
		v.breaker.onFailure()
		return Identity{}, fmt.Errorf("%w: userinfo request failed", ErrUnauthenticated)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusOK:
		// fallthrough to decode below
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		// Provider is healthy, the token is bad.
		v.breaker.onSuccess()
		return Identity{}, ErrUnauthenticated
	default:
		v.breaker.onFailure()
		return Identity{}, fmt.Errorf("%w: userinfo status %d", ErrUnauthenticated, resp.StatusCode)
	}

	var ui userinfoResponse
	if err := json.NewDecoder(resp.Body).Decode(&ui); err != nil || ui.Sub == "" {
		v.breaker.onFailure()
		return Identity{}, fmt.Errorf("%w: bad userinfo payload", ErrUnauthenticated)
	}
	v.breaker.onSuccess()

	id := Identity{Subject: ui.Sub}
	if ui.EmailVerified {
		id.Email = ui.Email
	}
	return id, nil
}
