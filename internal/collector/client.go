package collector

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"scholarsync/pkg/utils"
)

const (
	// maxAttempts is the total number of tries per request, rate limits and
	// transport faults included.
	maxAttempts = 3

	// defaultRetryWait is the base backoff unit: a 429 waits
	// (attempt+1) x this, a timeout waits exactly this, anything else half.
	defaultRetryWait = 2 * time.Second
)

// Client issues signed GET requests against the remote faculty activity API.
// Signing is per request and nothing is mutated after construction, so one
// Client may be shared by all sync workers.
//
// Requests that keep failing degrade to "no data" rather than an error:
// callers treat a subject the remote will not answer for as having zero
// activities. Only context cancellation propagates.
type Client struct {
	host       string
	publicKey  string
	privateKey string
	databaseID string

	httpc     *http.Client
	retryWait time.Duration
	wait      func(ctx context.Context, d time.Duration) error
}

// NewClient builds a Client from the environment-derived config. Missing
// credentials are a configuration error and must abort startup.
func NewClient(cfg utils.APIConfig) (*Client, error) {
	if cfg.PublicKey == "" || cfg.PrivateKey == "" || cfg.DatabaseID == "" {
		return nil, errors.New("missing required API credentials (API_PUBLIC_KEY, API_PRIVATE_KEY, TENANT_1_DATABASE_ID)")
	}
	return &Client{
		host:       strings.TrimRight(cfg.Host, "/"),
		publicKey:  cfg.PublicKey,
		privateKey: cfg.PrivateKey,
		databaseID: cfg.DatabaseID,
		httpc:      &http.Client{Timeout: 30 * time.Second},
		retryWait:  defaultRetryWait,
		wait:       waitWithContext,
	}, nil
}

// sign computes the request signature. The signed material is method,
// timestamp and endpoint path only; the query string is deliberately
// excluded, which is how the remote API defines it.
func (c *Client) sign(method, timestamp, endpoint string) string {
	message := fmt.Sprintf("%s\n\n\n%s\n%s", method, timestamp, endpoint)
	mac := hmac.New(sha1.New, []byte(c.privateKey))
	mac.Write([]byte(message))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// request performs one signed GET with retries and decodes the JSON body.
// A nil payload with a nil error means the remote had no usable data for
// this request (rate-limit exhaustion, HTML error page, wrong shape).
func (c *Client) request(ctx context.Context, endpoint, query string) (any, error) {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		timestamp := time.Now().UTC().Format("2006-01-02 15:04:05")
		signature := c.sign(http.MethodGet, timestamp, endpoint)

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.host+endpoint+query, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("TimeStamp", timestamp)
		req.Header.Set("Authorization", "INTF "+c.publicKey+":"+signature)
		req.Header.Set("INTF-DatabaseID", c.databaseID)

		resp, err := c.httpc.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			delay := c.retryWait / 2
			if isTimeout(err) {
				delay = c.retryWait
			}
			if attempt < maxAttempts-1 {
				if waitErr := c.wait(ctx, delay); waitErr != nil {
					return nil, waitErr
				}
				continue
			}
			return nil, nil
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			if attempt < maxAttempts-1 {
				if waitErr := c.wait(ctx, c.retryWait/2); waitErr != nil {
					return nil, waitErr
				}
				continue
			}
			return nil, nil
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			// linear backoff, and we sleep even on the last attempt,
			// matching the remote's published rate-limit guidance
			if waitErr := c.wait(ctx, time.Duration(attempt+1)*c.retryWait); waitErr != nil {
				return nil, waitErr
			}
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			if attempt < maxAttempts-1 {
				if waitErr := c.wait(ctx, c.retryWait/2); waitErr != nil {
					return nil, waitErr
				}
				continue
			}
			return nil, nil
		}

		if strings.HasPrefix(strings.TrimSpace(string(body)), "<") {
			// the remote wraps certain faults in HTML error pages behind a 200
			return nil, nil
		}

		var payload any
		if err := json.Unmarshal(body, &payload); err != nil {
			return nil, nil
		}
		return payload, nil
	}

	return nil, nil
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func waitWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
