// Package remote talks to the remote progress store over HTTP
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tildaslashalef/farmboard/internal/config"
	"github.com/tildaslashalef/farmboard/internal/loggy"
	"github.com/tildaslashalef/farmboard/internal/progress"
	"golang.org/x/time/rate"
)

// HealthCheckUserID is the user id the liveness probe asks for
const HealthCheckUserID = "health_check"

const progressPath = "/api/progress"

// Gateway is the remote progress store as seen by the sync engine
type Gateway interface {
	// FetchProgress returns nil, nil when the store has no record for userID
	FetchProgress(ctx context.Context, userID string) (*progress.UserProgress, error)
	UpsertMission(ctx context.Context, userID, missionID string, p progress.MissionProgress) error
	DeleteMission(ctx context.Context, userID, missionID string) error
	// Probe reports whether the store answers at all
	Probe(ctx context.Context) bool
}

// UpsertRequest is the body of POST /api/progress
type UpsertRequest struct {
	UserID    string                    `json:"userId"`
	MissionID string                    `json:"missionId"`
	Progress  *progress.MissionProgress `json:"progress"`
}

// SyncResponse is the body of successful write responses
type SyncResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// Client handles HTTP communication with the progress store
type Client struct {
	baseURL      string
	probeTimeout time.Duration
	httpClient   *http.Client
	limiter      *rate.Limiter
	logger       *loggy.Logger
}

var _ Gateway = (*Client)(nil)

// NewClient creates a new HTTP client for the progress store
func NewClient(cfg config.RemoteConfig, logger *loggy.Logger) *Client {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 100,
		IdleConnTimeout:     90 * time.Second,
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	probeTimeout := cfg.ProbeTimeout
	if probeTimeout <= 0 {
		probeTimeout = 3 * time.Second
	}

	return &Client{
		baseURL:      strings.TrimRight(cfg.URL, "/"),
		probeTimeout: probeTimeout,
		httpClient:   &http.Client{Transport: transport},
		limiter:      limiter,
		logger:       logger,
	}
}

// FetchProgress retrieves the stored progress of userID
func (c *Client) FetchProgress(ctx context.Context, userID string) (*progress.UserProgress, error) {
	resp, err := c.do(ctx, http.MethodGet, c.progressURL(url.Values{"userId": {userID}}), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	var p progress.UserProgress
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return nil, fmt.Errorf("decoding progress response: %w", err)
	}
	if p.UserID == "" {
		p.UserID = userID
	}
	p.Normalize()
	return &p, nil
}

// UpsertMission stores p as the record of missionID
func (c *Client) UpsertMission(ctx context.Context, userID, missionID string, p progress.MissionProgress) error {
	body := UpsertRequest{UserID: userID, MissionID: missionID, Progress: &p}
	_, err := c.sendRequest(ctx, http.MethodPost, c.progressURL(nil), body)
	return err
}

// DeleteMission removes the record of missionID
func (c *Client) DeleteMission(ctx context.Context, userID, missionID string) error {
	q := url.Values{"userId": {userID}, "missionId": {missionID}}
	_, err := c.sendRequest(ctx, http.MethodDelete, c.progressURL(q), nil)
	return err
}

// Probe asks for the health check user. A 2xx or 4xx answer counts as live,
// including 404; redirects and 5xx do not.
func (c *Client) Probe(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, c.probeTimeout)
	defer cancel()

	resp, err := c.do(ctx, http.MethodGet, c.progressURL(url.Values{"userId": {HealthCheckUserID}}), nil)
	if err != nil {
		c.logger.Debug("Remote store probe failed", "error", err)
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices:
		return true
	case resp.StatusCode >= http.StatusBadRequest && resp.StatusCode < http.StatusInternalServerError:
		return true
	}
	c.logger.Debug("Remote store probe got unexpected status", "status", resp.StatusCode)
	return false
}

func (c *Client) progressURL(q url.Values) string {
	if len(q) == 0 {
		return c.baseURL + progressPath
	}
	return c.baseURL + progressPath + "?" + q.Encode()
}

// sendRequest sends body as JSON and decodes the write response
func (c *Client) sendRequest(ctx context.Context, method, url string, body interface{}) (*SyncResponse, error) {
	resp, err := c.do(ctx, method, url, body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	var syncResp SyncResponse
	if err := json.NewDecoder(resp.Body).Decode(&syncResp); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return &syncResp, nil
}

func (c *Client) do(ctx context.Context, method, url string, body interface{}) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("waiting for rate limiter: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	return resp, nil
}

// checkStatus turns a non-2xx response into an *APIError
func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	apiErr := &APIError{StatusCode: resp.StatusCode}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(data, apiErr); err != nil || (apiErr.ErrorCode == "" && apiErr.Message == "") {
		apiErr.Message = strings.TrimSpace(string(data))
	}
	apiErr.StatusCode = resp.StatusCode
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}
