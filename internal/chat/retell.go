package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/wolfman30/pharmacy-assistant/pkg/logging"
)

const (
	// DefaultRetellBaseURL is the Retell API root.
	DefaultRetellBaseURL = "https://api.retellai.com/v2"
	// DefaultModel is requested when no model is configured.
	DefaultModel = "gpt-4o-mini"
)

// RetellClient calls Retell's chat-completions endpoint.
type RetellClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *logging.Logger
}

// RetellOption configures a RetellClient.
type RetellOption func(*RetellClient)

// WithBaseURL overrides the API root.
func WithBaseURL(baseURL string) RetellOption {
	return func(c *RetellClient) {
		if baseURL != "" {
			c.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) RetellOption {
	return func(c *RetellClient) {
		c.httpClient = client
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *logging.Logger) RetellOption {
	return func(c *RetellClient) {
		c.logger = logger
	}
}

// NewRetellClient creates a Retell client.
func NewRetellClient(apiKey string, opts ...RetellOption) (*RetellClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("chat: retell api key is required")
	}
	c := &RetellClient{
		apiKey:     apiKey,
		baseURL:    DefaultRetellBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logging.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Complete posts req to <base>/chat/completions.
func (c *RetellClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("chat: marshal completion request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("chat: create completion request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("chat: retell request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("chat: read retell response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("chat: retell api error (status %d): %s", resp.StatusCode, retellErrorMessage(body))
	}

	var out CompletionResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("chat: decode retell response: %w", err)
	}
	c.logger.Debug("retell completion received", "id", out.ID, "choices", len(out.Choices))
	return &out, nil
}

func retellErrorMessage(body []byte) string {
	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil {
		if envelope.Error.Message != "" {
			return envelope.Error.Message
		}
		if envelope.Message != "" {
			return envelope.Message
		}
	}
	return strings.TrimSpace(string(body))
}
