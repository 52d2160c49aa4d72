package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// HTTPClient talks to the memory service over its JSON API.
type HTTPClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewHTTPClient builds a client for the memory service at baseURL. A nil
// httpClient falls back to http.DefaultClient.
func NewHTTPClient(apiKey, baseURL string, httpClient *http.Client) *HTTPClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &HTTPClient{
		apiKey:     strings.TrimSpace(apiKey),
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: httpClient,
	}
}

// Configured reports whether the client has enough configuration to make
// requests.
func (c *HTTPClient) Configured() bool {
	return c != nil && c.baseURL != ""
}

func (c *HTTPClient) Search(ctx context.Context, query string, topK int, subjectID string) ([]Record, error) {
	if !c.Configured() {
		return nil, fmt.Errorf("memory service url is not configured")
	}
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("query is required")
	}
	if topK <= 0 {
		topK = 3
	}

	body, err := json.Marshal(map[string]any{
		"query":      query,
		"top_k":      topK,
		"subject_id": subjectID,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	var decoded struct {
		Matches []struct {
			Score    float64 `json:"score"`
			Metadata struct {
				Content    string `json:"content"`
				Category   string `json:"category"`
				Date       string `json:"date"`
				Importance string `json:"importance"`
			} `json:"metadata"`
		} `json:"matches"`
	}
	if err := c.post(ctx, "/v1/memories/search", body, &decoded); err != nil {
		return nil, err
	}

	records := make([]Record, 0, len(decoded.Matches))
	for _, m := range decoded.Matches {
		records = append(records, Record{
			Content:    m.Metadata.Content,
			Category:   m.Metadata.Category,
			Date:       m.Metadata.Date,
			Importance: m.Metadata.Importance,
			Score:      m.Score,
		})
	}
	return records, nil
}

func (c *HTTPClient) Save(ctx context.Context, subjectID, content string, attrs Attributes) (string, error) {
	if !c.Configured() {
		return "", fmt.Errorf("memory service url is not configured")
	}
	if strings.TrimSpace(content) == "" {
		return "", fmt.Errorf("content is required")
	}

	body, err := json.Marshal(map[string]any{
		"subject_id": subjectID,
		"content":    content,
		"metadata":   attrs,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	var decoded struct {
		ID string `json:"id"`
	}
	if err := c.post(ctx, "/v1/memories", body, &decoded); err != nil {
		return "", err
	}
	if decoded.ID == "" {
		return "", fmt.Errorf("memory service returned an empty id")
	}
	return decoded.ID, nil
}

func (c *HTTPClient) post(ctx context.Context, path string, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 8192))
		return fmt.Errorf("memory service error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
