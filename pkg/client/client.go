package client

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// Status mirrors the control API's status payload.
type Status struct {
	Name      string    `json:"name"`
	Running   bool      `json:"running"`
	PID       int       `json:"pid"`
	StartedAt time.Time `json:"started_at"`
	StoppedAt time.Time `json:"stopped_at"`
	ExitCode  int       `json:"exit_code"`
	Restarts  int       `json:"restarts"`
	State     string    `json:"state"`
}

// StopResult reports how a stop concluded.
type StopResult struct {
	OK      bool   `json:"ok"`
	Outcome string `json:"outcome"`
}

type apiError struct {
	Error string `json:"error"`
}

// Config holds client settings.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		BaseURL: "http://127.0.0.1:9091/api",
		Timeout: 10 * time.Second,
	}
}

// Client talks to a running entrypoint's control API.
type Client struct {
	http *resty.Client
}

func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultConfig().BaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	rc := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout)
	return &Client{http: rc}
}

// Statuses returns all services in registration order.
func (c *Client) Statuses(ctx context.Context) ([]Status, error) {
	var out []Status
	var apiErr apiError
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		SetError(&apiErr).
		Get("/status")
	if err != nil {
		return nil, fmt.Errorf("get statuses: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("get statuses: %s", errText(resp, apiErr))
	}
	return out, nil
}

// Status returns one service's snapshot.
func (c *Client) Status(ctx context.Context, name string) (Status, error) {
	var out Status
	var apiErr apiError
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("name", name).
		SetResult(&out).
		SetError(&apiErr).
		Get("/status")
	if err != nil {
		return Status{}, fmt.Errorf("get status %s: %w", name, err)
	}
	if resp.IsError() {
		return Status{}, fmt.Errorf("get status %s: %s", name, errText(resp, apiErr))
	}
	return out, nil
}

// Stop stops one service, waiting up to grace for it to exit voluntarily.
func (c *Client) Stop(ctx context.Context, name string, grace time.Duration) (StopResult, error) {
	var out StopResult
	var apiErr apiError
	req := c.http.R().
		SetContext(ctx).
		SetQueryParam("name", name).
		SetResult(&out).
		SetError(&apiErr)
	if grace > 0 {
		req.SetQueryParam("wait", grace.String())
	}
	resp, err := req.Post("/stop")
	if err != nil {
		return StopResult{}, fmt.Errorf("stop %s: %w", name, err)
	}
	if resp.IsError() {
		return StopResult{}, fmt.Errorf("stop %s: %s", name, errText(resp, apiErr))
	}
	return out, nil
}

func errText(resp *resty.Response, apiErr apiError) string {
	if apiErr.Error != "" {
		return apiErr.Error
	}
	return resp.Status()
}
