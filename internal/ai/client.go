// Package ai is the client for the external text-generation endpoint. The
// endpoint speaks the chat-completions JSON shape.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
)

var (
	ErrNotConfigured   = errors.New("llm service is not configured")
	ErrInvalidResponse = errors.New("invalid response structure from llm api")
)

// Generator turns a prompt into generated text.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type completionResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Client calls an LLM over HTTP. Deadlines come from the caller's context.
type Client struct {
	URL   string
	Model string
	HTTP  *http.Client
}

// NewClient creates a client. A nil httpClient uses http.DefaultClient.
func NewClient(url, model string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		URL:   strings.TrimSpace(url),
		Model: strings.TrimSpace(model),
		HTTP:  httpClient,
	}
}

// Generate sends prompt as a single user message and returns the first choice.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	if c.URL == "" || c.Model == "" {
		log.Println("[ai] LLM API URL or model is not configured")
		return "", ErrNotConfigured
	}

	body, err := json.Marshal(completionRequest{
		Model:    c.Model,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
		Stream:   false,
	})
	if err != nil {
		return "", fmt.Errorf("encode llm request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build llm request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	log.Printf("[ai] sending prompt to LLM: %s", truncate(prompt, 200))
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to get response from llm: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		log.Printf("[ai] LLM returned %d: %s", resp.StatusCode, snippet)
		return "", fmt.Errorf("failed to get response from llm: status %d", resp.StatusCode)
	}

	var parsed completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if len(parsed.Choices) == 0 {
		return "", ErrInvalidResponse
	}

	log.Println("[ai] received response from LLM")
	return parsed.Choices[0].Message.Content, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
