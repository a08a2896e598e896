// Package vast is a small client for the vast.ai console API, used to
// watch the rented GPU instances that run OCR and model training.
package vast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"
)

const DefaultBaseURL = "https://console.vast.ai/api/v0"

var ErrNotFound = errors.New("vast: instance not found")

// Instance mirrors the fields of the console API instance object that the
// pipeline cares about.
type Instance struct {
	ID             int64   `json:"id"`
	Label          string  `json:"label"`
	ActualStatus   string  `json:"actual_status"`
	IntendedStatus string  `json:"intended_status"`
	StatusMsg      string  `json:"status_msg"`
	GPUName        string  `json:"gpu_name"`
	NumGPUs        int     `json:"num_gpus"`
	PublicIP       string  `json:"public_ipaddr"`
	SSHHost        string  `json:"ssh_host"`
	SSHPort        int     `json:"ssh_port"`
	DPHTotal       float64 `json:"dph_total"`
}

// Running reports whether the machine is actually up, not merely requested.
func (i Instance) Running() bool {
	return i.ActualStatus == "running"
}

type Client struct {
	http    *http.Client
	apiKey  string
	baseURL string
}

func NewClient(apiKey string) *Client {
	return &Client{
		http:    &http.Client{Timeout: 30 * time.Second},
		apiKey:  apiKey,
		baseURL: DefaultBaseURL,
	}
}

// NewClientWithBaseURL is used by tests and self-hosted proxies.
func NewClientWithBaseURL(apiKey, baseURL string) *Client {
	c := NewClient(apiKey)
	c.baseURL = baseURL
	return c
}

type instancesResp struct {
	Instances []Instance `json:"instances"`
}

// List returns all instances on the account.
func (c *Client) List(ctx context.Context) ([]Instance, error) {
	if c.apiKey == "" {
		return nil, errors.New("missing VAST_API_KEY")
	}
	u := fmt.Sprintf("%s/instances/?api_key=%s", c.baseURL, url.QueryEscape(c.apiKey))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("vast list instances: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("vast status %d", resp.StatusCode)
	}
	var r instancesResp
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return nil, fmt.Errorf("vast decode response: %w", err)
	}
	return r.Instances, nil
}

// Get returns one instance by ID.
func (c *Client) Get(ctx context.Context, id int64) (Instance, error) {
	instances, err := c.List(ctx)
	if err != nil {
		return Instance{}, err
	}
	for _, in := range instances {
		if in.ID == id {
			return in, nil
		}
	}
	return Instance{}, fmt.Errorf("%w: %d", ErrNotFound, id)
}

// WaitRunning polls until the instance reports actual_status "running" or
// the context expires.
func (c *Client) WaitRunning(ctx context.Context, id int64, interval time.Duration) (Instance, error) {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		in, err := c.Get(ctx, id)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return Instance{}, err
		}
		if err == nil && in.Running() {
			log.Info().
				Int64("instance", id).
				Str("gpu", in.GPUName).
				Str("ssh_host", in.SSHHost).
				Msg("vast instance running")
			return in, nil
		}
		if err == nil {
			log.Debug().
				Int64("instance", id).
				Str("actual_status", in.ActualStatus).
				Str("status_msg", in.StatusMsg).
				Msg("vast instance not ready")
		}

		select {
		case <-ctx.Done():
			return Instance{}, fmt.Errorf("waiting for instance %d: %w", id, ctx.Err())
		case <-ticker.C:
		}
	}
}
