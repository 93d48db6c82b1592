package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"booking-agent/internal/domain"
	"booking-agent/internal/integrations/paramstore"
)

// Getter is the parameter retrieval interface required by Client.
// *paramstore.Client satisfies this interface.
type Getter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

// HTTPStatusError captures non-2xx upstream responses with status-aware
// context so callers can react to rate limiting without depending on the SDK
// error types.
type HTTPStatusError struct {
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("openai: unexpected status %d: %s", e.StatusCode, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// Client is a focused OpenAI client for tool-calling chat completions and
// input moderation, built on the go-openai SDK.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	getter      Getter
	paramPrefix string

	initOnce sync.Once
	api      *openai.Client
	initErr  error
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSpace(baseURL)
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// NewClient creates a new Client backed by the given paramstore.Getter for
// API key retrieval. The key is fetched from SSM on the first call and the
// underlying SDK client is reused for the lifetime of the process.
func NewClient(ps Getter, paramPrefix string, opts ...Option) (*Client, error) {
	if ps == nil {
		return nil, errors.New("openai: paramstore getter must not be nil")
	}
	paramPrefix = strings.TrimRight(strings.TrimSpace(paramPrefix), "/")
	if paramPrefix == "" {
		return nil, errors.New("openai: parameter prefix must not be empty")
	}
	c := &Client{
		httpClient:  &http.Client{Timeout: 60 * time.Second},
		getter:      ps,
		paramPrefix: paramPrefix,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// resolveAPI builds the SDK client on the first call, fetching the API key
// from the parameter store, and returns the cached client afterwards.
func (c *Client) resolveAPI(ctx context.Context) (*openai.Client, error) {
	c.initOnce.Do(func() {
		key, err := paramstore.SecretToken(ctx, c.getter, c.tokenParameterName())
		if err != nil {
			c.initErr = err
			return
		}
		cfg := openai.DefaultConfig(key)
		if c.baseURL != "" {
			cfg.BaseURL = strings.TrimRight(c.baseURL, "/")
		}
		if c.httpClient != nil {
			cfg.HTTPClient = c.httpClient
		}
		c.api = openai.NewClientWithConfig(cfg)
	})
	return c.api, c.initErr
}

func (c *Client) tokenParameterName() string {
	return c.paramPrefix + "/open-ai-token"
}

// ChatTools runs one chat completion with the given tool definitions. The
// result carries either final assistant content or the tool calls the model
// wants executed before it can answer.
func (c *Client) ChatTools(ctx context.Context, model string, messages []domain.ChatMessage, tools []domain.ToolDefinition) (domain.ChatResult, error) {
	if model == "" {
		return domain.ChatResult{}, errors.New("openai: model must not be empty")
	}

	api, err := c.resolveAPI(ctx)
	if err != nil {
		return domain.ChatResult{}, err
	}

	req := openai.ChatCompletionRequest{
		Model:    model,
		Messages: toSDKMessages(messages),
		Tools:    toSDKTools(tools),
	}

	resp, err := api.CreateChatCompletion(ctx, req)
	if err != nil {
		return domain.ChatResult{}, wrapSDKError("chat completion", err)
	}
	if len(resp.Choices) == 0 {
		return domain.ChatResult{}, errors.New("openai: no choices in response")
	}

	msg := resp.Choices[0].Message
	result := domain.ChatResult{Content: msg.Content}
	for _, tc := range msg.ToolCalls {
		result.ToolCalls = append(result.ToolCalls, domain.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: json.RawMessage(tc.Function.Arguments),
		})
	}
	return result, nil
}

// Moderate calls the Moderations API and returns true if the input is flagged.
func (c *Client) Moderate(ctx context.Context, input string) (bool, error) {
	api, err := c.resolveAPI(ctx)
	if err != nil {
		return false, err
	}

	resp, err := api.Moderations(ctx, openai.ModerationRequest{Input: input})
	if err != nil {
		return false, wrapSDKError("moderation", err)
	}
	if len(resp.Results) == 0 {
		return false, errors.New("openai: no results in moderation response")
	}
	return resp.Results[0].Flagged, nil
}

func toSDKMessages(messages []domain.ChatMessage) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		sdkMsg := openai.ChatCompletionMessage{
			Role:       m.Role,
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
			Name:       m.Name,
		}
		for _, tc := range m.ToolCalls {
			sdkMsg.ToolCalls = append(sdkMsg.ToolCalls, openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      tc.Name,
					Arguments: string(tc.Arguments),
				},
			})
		}
		out = append(out, sdkMsg)
	}
	return out
}

func toSDKTools(tools []domain.ToolDefinition) []openai.Tool {
	out := make([]openai.Tool, 0, len(tools))
	for _, t := range tools {
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	return out
}

// wrapSDKError translates go-openai errors into the local HTTPStatusError so
// consumers can inspect the upstream status without importing the SDK.
func wrapSDKError(op string, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("openai: %s failed: %w", op, &HTTPStatusError{
			StatusCode: apiErr.HTTPStatusCode,
			Body:       apiErr.Message,
		})
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return fmt.Errorf("openai: %s failed: %w", op, &HTTPStatusError{
			StatusCode: reqErr.HTTPStatusCode,
			Body:       reqErr.Error(),
		})
	}
	return fmt.Errorf("openai: %s failed: %w", op, err)
}
