// Package jobs talks to the backend job server that computes spectrograms.
// The backend is polled on a fixed interval until the job reaches a terminal
// status; the result blob is fetched exactly once.
package jobs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Status of a spectrogram job as reported by the backend.
type Status string

// All job statuses.
const (
	StatusPending         Status = "pending"
	StatusSubmitted       Status = "submitted"
	StatusRunning         Status = "running"
	StatusFetchingResults Status = "fetching_results"
	StatusCompleted       Status = "completed"
	StatusFailed          Status = "failed"
)

// Terminal indicates if no further status change can happen.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Metadata of a job, as returned by the job-metadata endpoint.
type Metadata struct {
	Status        Status `json:"status"`
	ResultsID     string `json:"results_id,omitempty"`
	MemoryWarning bool   `json:"memory_warning,omitempty"`
}

// Terminal failure modes of Await, distinct so the caller can show distinct
// messages.
var (
	ErrRetriesExhausted = errors.New("job polling failed repeatedly")
	ErrJobStale         = errors.New("job did not complete in time")
	ErrJobFailed        = errors.New("job failed")
)

// Config of the job client.
type Config struct {
	BaseURL      string
	PollInterval time.Duration
	RetryLimit   int
	StaleAfter   time.Duration
	HTTPClient   *http.Client
}

// Client polls the backend job server.
type Client struct {
	base       string
	httpClient *http.Client
	interval   time.Duration
	retryLimit int
	staleAfter time.Duration
	logger     *zap.Logger
}

// NewClient returns a job client for the given backend.
func NewClient(config Config, logger *zap.Logger) *Client {
	if config.PollInterval <= 0 {
		config.PollInterval = 2 * time.Second
	}
	if config.RetryLimit <= 0 {
		config.RetryLimit = 5
	}
	if config.StaleAfter <= 0 {
		config.StaleAfter = 30 * time.Minute
	}
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		base:       config.BaseURL,
		httpClient: config.HTTPClient,
		interval:   config.PollInterval,
		retryLimit: config.RetryLimit,
		staleAfter: config.StaleAfter,
		logger:     logger,
	}
}

type createRequest struct {
	Width  int            `json:"width"`
	Height int            `json:"height"`
	Config map[string]any `json:"config"`
}

type createResponse struct {
	Status  string `json:"status"`
	JobID   string `json:"job_id"`
	Message string `json:"message,omitempty"`
}

// CreateSpectrogram submits a spectrogram job and returns its ID.
func (c *Client) CreateSpectrogram(ctx context.Context, width, height int, config map[string]any) (string, error) {
	body, err := json.Marshal(createRequest{Width: width, Height: height, Config: config})
	if err != nil {
		return "", errors.Wrap(err, "cannot encode job request")
	}

	endpoint := fmt.Sprintf("%s/api/create_spectrogram/", c.base)
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", errors.Wrap(err, "cannot create job request")
	}
	request.Header.Set("Content-Type", "application/json")

	var response createResponse
	if err := c.doJSON(request, &response); err != nil {
		return "", err
	}
	if response.JobID == "" {
		return "", errors.Errorf("job submission rejected: %s", response.Message)
	}

	c.logger.Info("spectrogram job submitted", zap.String("job", response.JobID))
	return response.JobID, nil
}

// Metadata fetches the current status of the given job.
func (c *Client) Metadata(ctx context.Context, jobID string) (Metadata, error) {
	endpoint := fmt.Sprintf("%s/api/job-metadata/%s/", c.base, jobID)
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Metadata{}, errors.Wrap(err, "cannot create metadata request")
	}

	var metadata Metadata
	if err := c.doJSON(request, &metadata); err != nil {
		return Metadata{}, err
	}
	return metadata, nil
}

// FetchResult downloads the result blob of a completed job.
func (c *Client) FetchResult(ctx context.Context, jobID string) ([]byte, error) {
	endpoint := fmt.Sprintf("%s/api/job-data/%s/?download=true", c.base, jobID)
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, errors.Wrap(err, "cannot create result request")
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, errors.Wrap(err, "result download failed")
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return nil, errors.Errorf("result download failed with status %d", response.StatusCode)
	}
	return io.ReadAll(response.Body)
}

// Await polls the job until it reaches a terminal status and returns the
// result blob. Consecutive polling failures beyond the retry limit abort with
// ErrRetriesExhausted; a job exceeding the stale timeout aborts with
// ErrJobStale. Cancelling the context stops the poller.
func (c *Client) Await(ctx context.Context, jobID string) ([]byte, error) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	deadline := time.Now().Add(c.staleAfter)
	failures := 0

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}

		if time.Now().After(deadline) {
			c.logger.Warn("job went stale", zap.String("job", jobID))
			return nil, ErrJobStale
		}

		metadata, err := c.Metadata(ctx, jobID)
		if err != nil {
			failures++
			c.logger.Warn("job poll failed",
				zap.String("job", jobID), zap.Int("failures", failures), zap.Error(err))
			if failures >= c.retryLimit {
				return nil, ErrRetriesExhausted
			}
			continue
		}
		failures = 0

		if metadata.MemoryWarning {
			c.logger.Warn("backend reports memory pressure", zap.String("job", jobID))
		}

		switch metadata.Status {
		case StatusCompleted:
			c.logger.Info("job completed", zap.String("job", jobID), zap.String("results", metadata.ResultsID))
			return c.FetchResult(ctx, jobID)
		case StatusFailed:
			return nil, ErrJobFailed
		default:
			c.logger.Debug("job still in progress",
				zap.String("job", jobID), zap.String("status", string(metadata.Status)))
		}
	}
}

func (c *Client) doJSON(request *http.Request, into any) error {
	response, err := c.httpClient.Do(request)
	if err != nil {
		return errors.Wrap(err, "http request failed")
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return errors.Errorf("http request failed with status %d", response.StatusCode)
	}
	if err := json.NewDecoder(response.Body).Decode(into); err != nil {
		return errors.Wrap(err, "cannot decode response")
	}
	return nil
}
