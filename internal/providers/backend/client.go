package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"fomo/internal/domain"
	"fomo/internal/logging"
	"fomo/internal/ports"
)

// Config controls the capture backend client.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client talks to the local capture and transcription backend. It implements
// ports.CaptureBackend and ports.SnapshotSource.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger
}

var (
	_ ports.CaptureBackend = (*Client)(nil)
	_ ports.SnapshotSource = (*Client)(nil)
)

// APIError is a request the backend answered with success=false or a non-2xx
// status.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("backend error %d: %s", e.Status, e.Message)
	}
	return "backend error: " + e.Message
}

func NewClient(cfg Config) *Client {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = "http://localhost:5000"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    base,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logging.WithComponent("backend_client"),
	}
}

func (c *Client) StartCapture(ctx context.Context, meetingID string, title string) error {
	body := map[string]string{"meetingId": meetingID, "title": title}
	return c.do(ctx, http.MethodPost, "/session/start", body, nil)
}

func (c *Client) StopCapture(ctx context.Context, meetingID string) error {
	return c.do(ctx, http.MethodPost, sessionPath(meetingID, "stop"), nil, nil)
}

func (c *Client) PauseCapture(ctx context.Context, meetingID string) error {
	return c.do(ctx, http.MethodPost, sessionPath(meetingID, "pause"), nil, nil)
}

func (c *Client) ResumeCapture(ctx context.Context, meetingID string) error {
	return c.do(ctx, http.MethodPost, sessionPath(meetingID, "resume"), nil, nil)
}

// Snapshot returns the backend's current view of a meeting. Segments and items
// are passed through as received; the poll strategy validates them.
func (c *Client) Snapshot(ctx context.Context, meetingID string) (ports.Snapshot, error) {
	var snapshot ports.Snapshot
	if err := c.do(ctx, http.MethodGet, sessionPath(meetingID, ""), nil, &snapshot); err != nil {
		return ports.Snapshot{}, err
	}
	return snapshot, nil
}

// Analyze asks the backend to summarise the meeting and extract action items.
// Items without an id get one; items that still fail validation are dropped.
func (c *Client) Analyze(ctx context.Context, meetingID string) (ports.Analysis, error) {
	var analysis ports.Analysis
	if err := c.do(ctx, http.MethodPost, sessionPath(meetingID, "analyze"), nil, &analysis); err != nil {
		return ports.Analysis{}, err
	}

	items := make([]domain.ActionItem, 0, len(analysis.ActionItems))
	for _, item := range analysis.ActionItems {
		if strings.TrimSpace(item.ID) == "" {
			item.ID = "action_" + uuid.NewString()
		}
		normalized, err := domain.NormalizeActionItem(item)
		if err != nil {
			c.logger.Warn().Err(err).Str("meetingId", meetingID).Msg("dropping invalid analysed action item")
			continue
		}
		normalized.MeetingID = meetingID
		items = append(items, normalized)
	}
	analysis.ActionItems = items
	return analysis, nil
}

func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

type envelope struct {
	Success *bool           `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   json.RawMessage `json:"error"`
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var env envelope
	decodeErr := json.Unmarshal(raw, &env)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		message := strings.TrimSpace(string(raw))
		if decodeErr == nil {
			if m := errorMessage(env.Error); m != "" {
				message = m
			}
		}
		if message == "" {
			message = http.StatusText(resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Message: message}
	}
	if decodeErr != nil {
		return fmt.Errorf("decode response: %w", decodeErr)
	}
	if env.Success != nil && !*env.Success {
		message := errorMessage(env.Error)
		if message == "" {
			message = "request failed"
		}
		return &APIError{Message: message}
	}

	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode response data: %w", err)
	}
	return nil
}

// errorMessage accepts either a string or an object with a message field.
func errorMessage(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return strings.TrimSpace(text)
	}
	var obj struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		if obj.Code != "" && obj.Message != "" {
			return obj.Code + ": " + obj.Message
		}
		return strings.TrimSpace(obj.Message)
	}
	return strings.TrimSpace(string(raw))
}

func sessionPath(meetingID, action string) string {
	path := "/session/" + url.PathEscape(meetingID)
	if action != "" {
		path += "/" + action
	}
	return path
}

// IsAPIError reports whether err is a response from the backend rather than a
// transport failure.
func IsAPIError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr)
}
