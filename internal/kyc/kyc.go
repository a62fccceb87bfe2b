// Package kyc is a thin client for the external identity store. The engine
// only asks one question: is this user verified. Documents, uploads and
// review queues live entirely in the collaborator.
package kyc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const requestTimeout = 5 * time.Second

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: requestTimeout},
	}
}

// IsVerified reports whether the user has completed KYC and been admin
// verified. Transport failures are retried with exponential backoff before
// being surfaced as transient.
func (c *Client) IsVerified(ctx context.Context, userID string) (bool, error) {
	endpoint := fmt.Sprintf("%s/users/%s/verification", c.baseURL, url.PathEscape(userID))

	var verified bool

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return backoff.Permanent(err)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusNotFound:
			verified = false
			return nil
		case resp.StatusCode >= 500:
			return fmt.Errorf("kyc store returned status %d", resp.StatusCode)
		case resp.StatusCode != http.StatusOK:
			return backoff.Permanent(fmt.Errorf("kyc store returned status %d", resp.StatusCode))
		}

		var body struct {
			Verified bool `json:"verified"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return err
		}

		verified = body.Verified
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)

	if err := backoff.Retry(operation, policy); err != nil {
		return false, err
	}

	return verified, nil
}
