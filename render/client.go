// Package render talks to the mixdown render service: submit a plan,
// poll the job until it reaches a terminal state, hand back the output
// location. Rendering itself happens server side.
package render

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"mixdeck/mixplan"
)

// State is the lifecycle phase of a render job.
type State string

const (
	StateQueued  State = "queued"
	StateRunning State = "running"
	StateDone    State = "done"
	StateFailed  State = "failed"
)

// Terminal reports whether the job will not change state again.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// Job is the render service's view of one submitted plan.
type Job struct {
	ID        string  `json:"jobId"`
	State     State   `json:"status"`
	Progress  float64 `json:"progress"`
	OutputURI string  `json:"outputUri"`
	Error     string  `json:"error,omitempty"`
}

// Client communicates with the render service REST API.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	log     *slog.Logger
}

// NewClient creates a render service client for baseURL. The API key is
// optional; when set it is sent as a bearer token.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 30 * time.Second},
		log:     slog.With("component", "render"),
	}
}

type submitResp struct {
	JobID string `json:"jobId"`
	Error string `json:"error"`
}

// Submit validates and submits a mixdown plan, returning the job ID to
// poll.
func (c *Client) Submit(ctx context.Context, plan mixplan.Plan) (string, error) {
	if err := plan.Validate(); err != nil {
		return "", err
	}
	body, err := json.Marshal(plan)
	if err != nil {
		return "", fmt.Errorf("marshal plan: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/mixdown", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("submit plan: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		// Error bodies are JSON when the service produced them, but
		// proxies in between may answer with anything.
		var result submitResp
		if json.Unmarshal(data, &result) == nil && result.Error != "" {
			return "", fmt.Errorf("render service: %s", result.Error)
		}
		return "", fmt.Errorf("render service: unexpected status %s", resp.Status)
	}

	var result submitResp
	if err := json.Unmarshal(data, &result); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if result.JobID == "" {
		return "", fmt.Errorf("render service: response carries no job id")
	}
	return result.JobID, nil
}

// Status fetches the current state of a job.
func (c *Client) Status(ctx context.Context, jobID string) (Job, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/mixdown/"+jobID, nil)
	if err != nil {
		return Job{}, fmt.Errorf("create request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return Job{}, fmt.Errorf("poll job: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return Job{}, fmt.Errorf("render service: unknown job %q", jobID)
	}
	if resp.StatusCode != http.StatusOK {
		return Job{}, fmt.Errorf("render service: unexpected status %s", resp.Status)
	}

	var job Job
	if err := json.NewDecoder(resp.Body).Decode(&job); err != nil {
		return Job{}, fmt.Errorf("decode job: %w", err)
	}
	if job.ID == "" {
		job.ID = jobID
	}
	return job, nil
}

// PollUntilDone polls a job at the given interval until it reaches a
// terminal state or the context ends. Transient poll failures are
// logged and retried; a failed job is returned alongside an error.
func (c *Client) PollUntilDone(ctx context.Context, jobID string, interval time.Duration) (Job, error) {
	for {
		job, err := c.Status(ctx, jobID)
		if err != nil {
			if ctx.Err() != nil {
				return Job{}, ctx.Err()
			}
			c.log.Warn("poll failed, retrying", "job", jobID, "error", err)
		} else {
			switch job.State {
			case StateDone:
				return job, nil
			case StateFailed:
				if job.Error != "" {
					return job, fmt.Errorf("render service: job %s failed: %s", jobID, job.Error)
				}
				return job, fmt.Errorf("render service: job %s failed", jobID)
			}
		}

		select {
		case <-ctx.Done():
			return Job{}, ctx.Err()
		case <-time.After(interval):
		}
	}
}
