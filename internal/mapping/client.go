package mapping

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"policonv/internal/canonical"
	"policonv/internal/config"
	"policonv/internal/port"
)

const (
	apiURL     = "https://api.anthropic.com/v1/messages"
	apiVersion = "2023-06-01"
)

// Client implements port.MappingClient using the Anthropic Messages API to
// fill gaps the deterministic mapper left open.
type Client struct {
	apiKey   string
	model    string
	endpoint string
	prompt   PromptBundle
	client   *http.Client
}

// NewClient creates a mapping client from the mapper config.
func NewClient(cfg *config.MapperConfig) *Client {
	return NewClientWithEndpoint(cfg, apiURL)
}

// NewClientWithEndpoint creates a client pointing at a custom API endpoint (for testing).
func NewClientWithEndpoint(cfg *config.MapperConfig, endpoint string) *Client {
	model := cfg.DefaultModel
	if model == "" {
		model = "claude-sonnet-4-20250514"
	}
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		apiKey:   cfg.APIKey,
		model:    model,
		endpoint: endpoint,
		prompt:   BuildPromptBundle(canonical.SchemaVersion),
		client:   &http.Client{Timeout: timeout},
	}
}

// GenerateBundle sends the deterministic skeleton and extraction payload to
// the model and parses the returned bundle.
func (c *Client) GenerateBundle(ctx context.Context, req port.MappingRequest) (*port.MappingResponse, error) {
	skeletonJSON, err := json.Marshal(req.Deterministic)
	if err != nil {
		return nil, fmt.Errorf("marshaling skeleton: %w", err)
	}

	contentBlocks := []map[string]interface{}{
		{"type": "text", "text": c.prompt.GuidanceText()},
		{"type": "text", "text": "Deterministic canonical skeleton (do not overwrite high-confidence values):"},
		{"type": "text", "text": string(skeletonJSON)},
		{"type": "text", "text": "Extraction JSON:"},
		{"type": "text", "text": string(req.Payload)},
	}

	reqBody := map[string]interface{}{
		"model":      c.model,
		"max_tokens": 16384,
		"system":     c.prompt.SystemPrompt,
		"messages": []map[string]interface{}{
			{
				"role":    "user",
				"content": contentBlocks,
			},
		},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", apiVersion)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("calling anthropic API: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("anthropic API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	return c.parseResponse(respBody)
}

// apiResponse models the Anthropic Messages API response.
type apiResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}

func (c *Client) parseResponse(body []byte) (*port.MappingResponse, error) {
	var resp apiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("unmarshaling response: %w", err)
	}

	if len(resp.Content) == 0 {
		return nil, fmt.Errorf("empty response from API")
	}

	if resp.StopReason == "max_tokens" {
		return nil, fmt.Errorf("output truncated (stop_reason: max_tokens): response exceeded output token limit")
	}

	text := stripCodeFences(resp.Content[0].Text)
	if text == "" {
		return nil, fmt.Errorf("empty response from API")
	}

	bundle, err := canonical.ParseBundle([]byte(text))
	if err != nil {
		return nil, fmt.Errorf("parsing mapped bundle JSON: %w (raw: %s)", err, truncate(text, 500))
	}

	return &port.MappingResponse{
		Bundle:      bundle,
		RawResponse: text,
		ModelUsed:   c.model,
	}, nil
}

func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
