// Package primary drives the network-based synchronization path: a small
// HTTP JSON API exposing a health probe and a batch-submit endpoint.
package primary

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/dmitrijs2005/wearsync/internal/agent/models"
	"github.com/dmitrijs2005/wearsync/internal/logging"
)

// DefaultTimeout bounds every probe and submit request.
const DefaultTimeout = 5 * time.Second

const (
	maxSubmitRetries = 2
	retryBaseDelay   = 200 * time.Millisecond
)

type healthResponse struct {
	Status     string `json:"status"`
	ServerTime int64  `json:"serverTime"`
	Version    string `json:"version"`
}

type submitRequest struct {
	DeviceID          string          `json:"deviceId"`
	Data              []models.Record `json:"data"`
	LastSyncTimestamp int64           `json:"lastSyncTimestamp"`
}

type submitResponse struct {
	Success           bool   `json:"success"`
	Message           string `json:"message"`
	LastSyncTimestamp int64  `json:"lastSyncTimestamp"`
	SyncedCount       int    `json:"syncedCount"`
}

// Driver issues bounded-timeout requests against a configurable endpoint and
// classifies network failures. Safe for concurrent use; SetEndpoint does not
// affect requests already in flight.
type Driver struct {
	mu       sync.RWMutex
	endpoint string

	timeout time.Duration
	client  *http.Client
	log     logging.Logger
}

// NewDriver builds a driver for the given endpoint base URL
// (e.g. "http://10.0.0.2:8080"). A non-positive timeout selects DefaultTimeout.
func NewDriver(endpoint string, timeout time.Duration, log logging.Logger) *Driver {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Driver{
		endpoint: endpoint,
		timeout:  timeout,
		client:   &http.Client{Timeout: timeout},
		log:      log,
	}
}

// SetEndpoint reconfigures the base URL for subsequent requests.
func (d *Driver) SetEndpoint(url string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.endpoint = url
}

// Endpoint returns the currently configured base URL.
func (d *Driver) Endpoint() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.endpoint
}

// Probe issues a health request and returns true only on a successful,
// decodable response within the timeout. All other outcomes are logged and
// reported as false, never as an error.
func (d *Driver) Probe(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.Endpoint()+"/health", nil)
	if err != nil {
		d.log.Warn(ctx, "health probe setup failed", "error", err)
		return false
	}

	resp, err := d.client.Do(req)
	if err != nil {
		d.log.Debug(ctx, "health probe failed", "error", err)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		d.log.Debug(ctx, "health probe returned non-2xx", "status", resp.StatusCode)
		return false
	}

	var hr healthResponse
	if err := json.NewDecoder(resp.Body).Decode(&hr); err != nil {
		d.log.Warn(ctx, "health probe response malformed", "error", err)
		return false
	}
	return true
}

// Submit posts the batch with device identity and the last known sync
// checkpoint. A non-2xx response is Rejected; a timeout, refused connection
// or socket-level failure is Unreachable. Network-level failures are retried
// with fibonacci backoff inside the same bounded timeout.
func (d *Driver) Submit(ctx context.Context, batch []models.Record, deviceID string, lastSync int64) Outcome {
	body, err := json.Marshal(submitRequest{
		DeviceID:          deviceID,
		Data:              batch,
		LastSyncTimestamp: lastSync,
	})
	if err != nil {
		return Unreachable(fmt.Errorf("failed to encode batch: %w", err))
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	url := d.Endpoint() + "/data"

	var out Outcome
	backoff := retry.WithMaxRetries(maxSubmitRetries, retry.NewFibonacci(retryBaseDelay))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := d.client.Do(req)
		if err != nil {
			d.log.Debug(ctx, "submit attempt failed", "error", err)
			return retry.RetryableError(err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			out = Rejected(fmt.Sprintf("%s: %s", resp.Status, bytes.TrimSpace(msg)))
			return nil
		}

		var sr submitResponse
		if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
			return retry.RetryableError(fmt.Errorf("malformed submit response: %w", err))
		}
		if !sr.Success {
			out = Rejected(sr.Message)
			return nil
		}

		out = Accepted(sr.SyncedCount)
		return nil
	})
	if err != nil {
		return Unreachable(err)
	}
	return out
}
