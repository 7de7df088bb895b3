// Package openrouter implements the reasoning backend against the
// OpenRouter chat-completions API
package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/square-key-labs/saloncall-ai/src/logger"
	"github.com/square-key-labs/saloncall-ai/src/services"
)

const defaultBaseURL = "https://openrouter.ai/api/v1"

// Config holds OpenRouter connection and sampling settings
type Config struct {
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int

	// BaseURL and HTTPClient override the endpoint, used by tests
	BaseURL    string
	HTTPClient *http.Client
}

// Client is a non-streaming chat-completions client. Responses come back
// whole because the reply is synthesized to audio before playback, so
// token streaming buys nothing here.
type Client struct {
	apiKey      string
	model       string
	temperature float64
	maxTokens   int
	baseURL     string
	httpClient  *http.Client
	log         *logger.Logger
}

func New(config Config) *Client {
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &Client{
		apiKey:      config.APIKey,
		model:       config.Model,
		temperature: config.Temperature,
		maxTokens:   config.MaxTokens,
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		httpClient:  httpClient,
		log:         logger.WithPrefix("openrouter"),
	}
}

type chatRequest struct {
	Model       string             `json:"model"`
	Messages    []services.Message `json:"messages"`
	Tools       []services.Tool    `json:"tools,omitempty"`
	ToolChoice  string             `json:"tool_choice,omitempty"`
	Temperature float64            `json:"temperature"`
	MaxTokens   int                `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content   string              `json:"content"`
			ToolCalls []services.ToolCall `json:"tool_calls"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Complete sends one chat-completions request and returns the assistant's
// message, either final text or tool invocations
func (c *Client) Complete(ctx context.Context, messages []services.Message, tools []services.Tool) (*services.Completion, error) {
	request := chatRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}
	if len(tools) > 0 {
		request.Tools = tools
		request.ToolChoice = "auto"
	}

	bodyBytes, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("encode chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/chat/completions", bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("build chat request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("chat request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("openrouter API error (status %d): %s", resp.StatusCode, string(body))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode chat response: %w", err)
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("openrouter API error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("openrouter returned no choices")
	}

	choice := parsed.Choices[0].Message
	c.log.Debug("completion: %d tool calls, %d chars", len(choice.ToolCalls), len(choice.Content))
	return &services.Completion{
		Content:   choice.Content,
		ToolCalls: choice.ToolCalls,
	}, nil
}
