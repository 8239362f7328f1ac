// Package commerce talks to the storefront's commerce backend.
package commerce

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var (
	// ErrNetwork means the backend could not be reached.
	ErrNetwork = errors.New("commerce backend unreachable")
	// ErrUnauthorized means the backend rejected our credentials.
	ErrUnauthorized = errors.New("commerce backend rejected credentials")
)

// StatusError is a non-2xx answer other than an authorization failure.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("commerce backend returned %d: %s", e.StatusCode, e.Body)
}

// EligibilityResponse is the backend's card-present eligibility answer for an order.
type EligibilityResponse struct {
	Eligible bool   `json:"eligible"`
	Reason   string `json:"reason"`
	Currency string `json:"currency"`
}

// Client is a thin REST client for the commerce backend.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewClient(baseURL, token string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// CheckOrderEligibility asks whether orderID on siteID can be paid with a card reader.
func (c *Client) CheckOrderEligibility(ctx context.Context, siteID, orderID string) (*EligibilityResponse, error) {
	endpoint := fmt.Sprintf("%s/sites/%s/orders/%s/card-present-eligibility",
		c.baseURL, url.PathEscape(siteID), url.PathEscape(orderID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build eligibility request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, ErrUnauthorized
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		var body struct {
			Message string `json:"message"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&body)
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: body.Message}
	}

	var out EligibilityResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding eligibility response failed: %w", err)
	}
	return &out, nil
}
