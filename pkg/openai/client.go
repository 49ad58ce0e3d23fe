// Package openai is a client for OpenAI-compatible chat completion and
// embedding endpoints. It works against api.openai.com and against local
// servers speaking the same API (vLLM, Ollama's /v1 surface, LM Studio).
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/DoorwiseAI/doorwise-mvp/pkg/resilience"
)

// Opts configures the client.
type Opts struct {
	BaseURL string
	APIKey  string
	// ChatModel and EmbedModel name the models used by Complete and Embed.
	ChatModel  string
	EmbedModel string
	// RequestsPerSecond caps the outbound request rate. Zero disables limiting.
	RequestsPerSecond float64
	Burst             int
	Timeout           time.Duration
	// Breaker protects against a flapping backend. Nil disables it.
	Breaker *resilience.Breaker
}

// Client calls an OpenAI-compatible HTTP API.
type Client struct {
	baseURL    string
	apiKey     string
	chatModel  string
	embedModel string
	limiter    *rate.Limiter
	breaker    *resilience.Breaker
	http       *http.Client
}

// New creates a client. BaseURL should include the version prefix, e.g.
// "https://api.openai.com/v1".
func New(opts Opts) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}
	return &Client{
		baseURL:    opts.BaseURL,
		apiKey:     opts.APIKey,
		chatModel:  opts.ChatModel,
		embedModel: opts.EmbedModel,
		limiter:    limiter,
		breaker:    opts.Breaker,
		http:       &http.Client{Timeout: timeout},
	}
}

// Message is one chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest parameterizes one completion call.
type ChatRequest struct {
	Messages    []Message
	Temperature float64
	MaxTokens   int
}

type chatPayload struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type chatReply struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
	Error *apiError `json:"error"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// Chat returns the first completion choice's content.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (string, error) {
	payload := chatPayload{
		Model:       c.chatModel,
		Messages:    req.Messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	var reply chatReply
	if err := c.post(ctx, "/chat/completions", payload, &reply); err != nil {
		return "", err
	}
	if reply.Error != nil {
		return "", fmt.Errorf("openai: chat: %s: %s", reply.Error.Type, reply.Error.Message)
	}
	if len(reply.Choices) == 0 {
		return "", fmt.Errorf("openai: chat: empty choices")
	}
	return reply.Choices[0].Message.Content, nil
}

type embedPayload struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedReply struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Error *apiError `json:"error"`
}

// Embed returns the embedding for one text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts in one call, preserving input order.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	var reply embedReply
	if err := c.post(ctx, "/embeddings", embedPayload{Model: c.embedModel, Input: texts}, &reply); err != nil {
		return nil, err
	}
	if reply.Error != nil {
		return nil, fmt.Errorf("openai: embed: %s: %s", reply.Error.Type, reply.Error.Message)
	}
	if len(reply.Data) != len(texts) {
		return nil, fmt.Errorf("openai: embed: got %d embeddings for %d inputs", len(reply.Data), len(texts))
	}
	out := make([][]float32, len(texts))
	for _, d := range reply.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, fmt.Errorf("openai: embed: index %d out of range", d.Index)
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}

func (c *Client) post(ctx context.Context, path string, payload, reply any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("openai: rate limit wait: %w", err)
		}
	}
	call := func(ctx context.Context) error {
		return c.doPost(ctx, path, payload, reply)
	}
	if c.breaker != nil {
		return c.breaker.Call(ctx, call)
	}
	return call(ctx)
}

func (c *Client) doPost(ctx context.Context, path string, payload, reply any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("openai: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("openai: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("openai: %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("openai: %s: status %d: %s", path, resp.StatusCode, snippet)
	}
	if err := json.NewDecoder(resp.Body).Decode(reply); err != nil {
		return fmt.Errorf("openai: %s: decode response: %w", path, err)
	}
	return nil
}
