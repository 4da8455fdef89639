// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

const (
	anthropicAPIVersion      = "2023-06-01"
	defaultAnthropicEndpoint = "https://api.anthropic.com/v1/messages"
	defaultAnthropicMaxTok   = 1024
)

// =============================================================================
// Anthropic Wire Types
// =============================================================================

type anthropicRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	System      string    `json:"system,omitempty"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature *float64  `json:"temperature,omitempty"`
	Stream      bool      `json:"stream,omitempty"`
}

type anthropicResponse struct {
	Content []anthropicContent `json:"content"`
	Error   *anthropicError    `json:"error,omitempty"`
}

type anthropicContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Streaming events arrive as SSE frames typed content_block_delta with a
// text_delta payload.
type anthropicStreamEvent struct {
	Type  string          `json:"type"`
	Delta anthropicDelta  `json:"delta"`
	Error *anthropicError `json:"error,omitempty"`
}

type anthropicDelta struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// =============================================================================
// Client Implementation
// =============================================================================

// AnthropicClient implements ChatClient against the Anthropic Messages API.
// Unlike the OpenAI-compatible endpoints, the system prompt travels as a
// top-level field, so system-role messages are lifted out of the list.
//
// Thread Safety: AnthropicClient is safe for concurrent use.
type AnthropicClient struct {
	httpClient *http.Client
	endpoint   string
	apiKey     string
	model      string
}

// NewAnthropicClient creates a client for the Anthropic Messages API.
//
// Inputs:
//
//	endpoint - Full messages endpoint URL. Empty uses the public API.
//	model    - Default model name. Empty resolves from ANTHROPIC_MODEL.
//
// The API key is read from ANTHROPIC_API_KEY; calls fail without it.
func NewAnthropicClient(endpoint, model string) *AnthropicClient {
	if endpoint == "" {
		endpoint = defaultAnthropicEndpoint
	}
	if model == "" {
		model = os.Getenv("ANTHROPIC_MODEL")
	}
	return &AnthropicClient{
		httpClient: &http.Client{Timeout: 120 * time.Second},
		endpoint:   endpoint,
		apiKey:     os.Getenv("ANTHROPIC_API_KEY"),
		model:      model,
	}
}

// Chat implements ChatClient.
func (c *AnthropicClient) Chat(ctx context.Context, messages []Message, opts ChatOptions) (string, error) {
	resp, err := c.post(ctx, messages, opts, false)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("anthropic: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("anthropic: status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var parsed anthropicResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("anthropic: decode response: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("anthropic: api error (%s): %s", parsed.Error.Type, parsed.Error.Message)
	}

	var text strings.Builder
	for _, block := range parsed.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	return text.String(), nil
}

// ChatStream implements ChatClient.
func (c *AnthropicClient) ChatStream(ctx context.Context, messages []Message, opts ChatOptions, onToken func(string)) (string, error) {
	resp, err := c.post(ctx, messages, opts, true)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("anthropic: status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var full strings.Builder
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))

		var event anthropicStreamEvent
		if err := json.Unmarshal([]byte(data), &event); err != nil {
			continue
		}
		switch event.Type {
		case "content_block_delta":
			if event.Delta.Type != "text_delta" || event.Delta.Text == "" {
				continue
			}
			full.WriteString(event.Delta.Text)
			if onToken != nil {
				onToken(event.Delta.Text)
			}
		case "error":
			if event.Error != nil {
				return full.String(), fmt.Errorf("anthropic: stream error (%s): %s", event.Error.Type, event.Error.Message)
			}
		case "message_stop":
			return full.String(), nil
		}
	}
	if err := scanner.Err(); err != nil {
		return full.String(), fmt.Errorf("anthropic: stream read: %w", err)
	}
	return full.String(), nil
}

func (c *AnthropicClient) post(ctx context.Context, messages []Message, opts ChatOptions, stream bool) (*http.Response, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("anthropic: ANTHROPIC_API_KEY is not set")
	}
	model := opts.Model
	if model == "" {
		model = c.model
	}
	if model == "" {
		return nil, fmt.Errorf("anthropic: model must be set in ChatOptions or at construction")
	}

	// Anthropic rejects system-role entries in the messages list.
	var system strings.Builder
	chat := make([]Message, 0, len(messages))
	for _, m := range messages {
		if m.Role == "system" {
			if system.Len() > 0 {
				system.WriteString("\n\n")
			}
			system.WriteString(m.Content)
			continue
		}
		chat = append(chat, m)
	}

	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTok
	}
	reqBody := anthropicRequest{
		Model:     model,
		Messages:  chat,
		System:    system.String(),
		MaxTokens: maxTokens,
		Stream:    stream,
	}
	if opts.Temperature > 0 {
		reqBody.Temperature = &opts.Temperature
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("anthropic: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("anthropic: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", anthropicAPIVersion)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("anthropic: request failed: %w", err)
	}
	return resp, nil
}
