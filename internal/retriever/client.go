// Package retriever proxies company Q&A requests to the external
// retrieval-augmented generation service.
package retriever

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
)

// ErrUnavailable marks transient retriever failures (quota, 5xx, transport).
// Callers fall back to a degraded canned answer instead of failing the turn.
var ErrUnavailable = errors.New("retriever: service unavailable")

// Config describes how to reach the retriever service.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client answers company questions through the retriever service.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewClient validates the configuration and returns a ready-to-use client.
func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("retriever: base URL required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		http: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// HistoryMessage is one prior conversation turn shared with the retriever.
type HistoryMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Answer is the retriever's grounded response.
type Answer struct {
	Answer  string   `json:"answer"`
	Sources []string `json:"sources,omitempty"`
}

// Answer sends the question plus recent history and returns the grounded reply.
func (c *Client) Answer(ctx context.Context, question string, history []HistoryMessage) (Answer, error) {
	if strings.TrimSpace(question) == "" {
		return Answer{}, errors.New("retriever: question required")
	}

	payload := map[string]any{
		"question": question,
		"history":  history,
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return Answer{}, fmt.Errorf("retriever: failed to encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/answer", bytes.NewReader(data))
	if err != nil {
		return Answer{}, fmt.Errorf("retriever: request build failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if strings.TrimSpace(c.apiKey) != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.apiKey))
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return Answer{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Answer{}, fmt.Errorf("%w: read response failed: %v", ErrUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return Answer{}, fmt.Errorf("%w: %s: %s", ErrUnavailable, resp.Status, strings.TrimSpace(string(body)))
	case resp.StatusCode >= 400:
		return Answer{}, fmt.Errorf("retriever: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var out Answer
	if err := json.Unmarshal(body, &out); err != nil {
		return Answer{}, fmt.Errorf("retriever: decode response failed: %w", err)
	}
	return out, nil
}
