// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package llm provides chat clients for OpenAI-compatible completion
// endpoints. The dialog engine consumes them through the ChatClient
// interface so any provider can back classification and response
// generation.
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

// Message is one chat turn sent to the model.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatOptions tune a single chat call.
type ChatOptions struct {
	// Model overrides the client's default model when non-empty.
	Model string

	// Temperature controls randomness. Zero means provider default.
	Temperature float64

	// MaxTokens limits the response length. Zero means provider default.
	MaxTokens int
}

// ChatClient is the provider-agnostic chat interface.
//
// Thread Safety: Implementations must be safe for concurrent use.
type ChatClient interface {
	// Chat sends the messages and returns the full completion.
	Chat(ctx context.Context, messages []Message, opts ChatOptions) (string, error)

	// ChatStream sends the messages and invokes onToken for each streamed
	// content delta, returning the accumulated completion.
	ChatStream(ctx context.Context, messages []Message, opts ChatOptions, onToken func(string)) (string, error)
}

// =============================================================================
// Ollama Wire Types
// =============================================================================

const (
	defaultOllamaBaseURL = "http://localhost:11434"
	chatCompletionsPath  = "/v1/chat/completions"
)

type ollamaRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Stream      bool      `json:"stream"`
	Temperature *float64  `json:"temperature,omitempty"`
	MaxTokens   *int      `json:"max_tokens,omitempty"`
}

type ollamaResponse struct {
	Choices []ollamaChoice `json:"choices"`
	Error   *ollamaError   `json:"error,omitempty"`
}

type ollamaChoice struct {
	Message Message     `json:"message"`
	Delta   ollamaDelta `json:"delta"`
}

type ollamaDelta struct {
	Content string `json:"content"`
}

type ollamaError struct {
	Message string `json:"message"`
}

// =============================================================================
// Client Implementation
// =============================================================================

// OllamaClient talks to an Ollama (or any OpenAI-compatible) chat
// completions endpoint using raw net/http.
//
// Thread Safety: OllamaClient is safe for concurrent use.
type OllamaClient struct {
	httpClient *http.Client
	baseURL    string
	model      string
}

// ResolveOllamaURL returns the Ollama base URL from OLLAMA_BASE_URL, falling
// back to the local default.
func ResolveOllamaURL() string {
	if url := os.Getenv("OLLAMA_BASE_URL"); url != "" {
		return strings.TrimRight(url, "/")
	}
	return defaultOllamaBaseURL
}

// NewOllamaClient creates a client for the given base URL and default model.
//
// Inputs:
//
//	baseURL - Endpoint base ("http://host:11434"). Empty resolves from the
//	          OLLAMA_BASE_URL environment variable.
//	model   - Default model name. Empty resolves from OLLAMA_MODEL.
func NewOllamaClient(baseURL, model string) *OllamaClient {
	if baseURL == "" {
		baseURL = ResolveOllamaURL()
	}
	if model == "" {
		model = os.Getenv("OLLAMA_MODEL")
	}
	return &OllamaClient{
		httpClient: &http.Client{Timeout: 120 * time.Second},
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
	}
}

// Chat implements ChatClient.
func (c *OllamaClient) Chat(ctx context.Context, messages []Message, opts ChatOptions) (string, error) {
	resp, err := c.post(ctx, messages, opts, false)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("ollama: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ollama: status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var parsed ollamaResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("ollama: decode response: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("ollama: api error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("ollama: empty choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

// ChatStream implements ChatClient. Tokens arrive as SSE "data:" lines and
// are forwarded to onToken as they decode; the accumulated text is returned.
func (c *OllamaClient) ChatStream(ctx context.Context, messages []Message, opts ChatOptions, onToken func(string)) (string, error) {
	resp, err := c.post(ctx, messages, opts, true)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("ollama: status %d: %s", resp.StatusCode, truncate(string(body), 200))
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
		if data == "[DONE]" {
			break
		}
		var chunk ollamaResponse
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			// Malformed frames are skipped, matching lenient SSE consumers.
			continue
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		token := chunk.Choices[0].Delta.Content
		if token == "" {
			continue
		}
		full.WriteString(token)
		if onToken != nil {
			onToken(token)
		}
	}
	if err := scanner.Err(); err != nil {
		return full.String(), fmt.Errorf("ollama: stream read: %w", err)
	}
	return full.String(), nil
}

func (c *OllamaClient) post(ctx context.Context, messages []Message, opts ChatOptions, stream bool) (*http.Response, error) {
	model := opts.Model
	if model == "" {
		model = c.model
	}
	if model == "" {
		return nil, fmt.Errorf("ollama: model must be set in ChatOptions or at construction")
	}

	reqBody := ollamaRequest{
		Model:    model,
		Messages: messages,
		Stream:   stream,
	}
	if opts.Temperature > 0 {
		reqBody.Temperature = &opts.Temperature
	}
	if opts.MaxTokens > 0 {
		reqBody.MaxTokens = &opts.MaxTokens
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("ollama: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+chatCompletionsPath, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("ollama: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama: request failed: %w", err)
	}
	return resp, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
