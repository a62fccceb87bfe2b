// Package payment talks to the external payment-verification service that
// confirms whether the funds behind a subscription purchase actually
// arrived. The engine activates a subscription only on its say-so.
package payment

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

// Confirm re-checks a purchase reference with the verification service.
// Called from the verification callback so a forged or replayed callback
// cannot activate an unpaid subscription.
func (c *Client) Confirm(ctx context.Context, reference string) (bool, error) {
	endpoint := fmt.Sprintf("%s/payments/%s", c.baseURL, url.PathEscape(reference))

	var confirmed bool

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
			confirmed = false
			return nil
		case resp.StatusCode >= 500:
			return fmt.Errorf("payment service returned status %d", resp.StatusCode)
		case resp.StatusCode != http.StatusOK:
			return backoff.Permanent(fmt.Errorf("payment service returned status %d", resp.StatusCode))
		}

		var body struct {
			Status string `json:"status"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return err
		}

		confirmed = body.Status == "confirmed"
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)

	if err := backoff.Retry(operation, policy); err != nil {
		return false, err
	}

	return confirmed, nil
}
