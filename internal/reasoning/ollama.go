// internal/reasoning/ollama.go
package reasoning

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/glimpse/internal/config"
	"github.com/xkilldash9x/glimpse/internal/decision"
	"github.com/xkilldash9x/glimpse/internal/llmutil"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// -- Ollama wire types --

type ollamaMessage struct {
	Role      string           `json:"role"`
	Content   string           `json:"content"`
	Images    []string         `json:"images,omitempty"`
	ToolCalls []ollamaToolCall `json:"tool_calls,omitempty"`
}

type ollamaToolCall struct {
	Function struct {
		Name      string              `json:"name"`
		Arguments jsoniter.RawMessage `json:"arguments"`
	} `json:"function"`
}

type ollamaTool struct {
	Type     string             `json:"type"`
	Function ollamaToolFunction `json:"function"`
}

type ollamaToolFunction struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
}

type ollamaOptions struct {
	Temperature float32 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Tools    []ollamaTool    `json:"tools,omitempty"`
	Stream   bool            `json:"stream"`
	Options  ollamaOptions   `json:"options"`
}

type ollamaChatResponse struct {
	Model           string        `json:"model"`
	Message         ollamaMessage `json:"message"`
	Done            bool          `json:"done"`
	TotalDuration   int64         `json:"total_duration"`
	PromptEvalCount int           `json:"prompt_eval_count"`
	EvalCount       int           `json:"eval_count"`
}

type ollamaTagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// OllamaClient talks to an Ollama server's chat API.
type OllamaClient struct {
	caller
	endpoint   string
	cfg        config.ReasoningConfig
	httpClient *http.Client
	tools      []ollamaTool
}

var _ Client = (*OllamaClient)(nil)

// NewOllamaClient builds a client for cfg.Endpoint (default http://localhost:11434).
func NewOllamaClient(cfg config.ReasoningConfig, logger *zap.Logger) *OllamaClient {
	endpoint := strings.TrimRight(cfg.Endpoint, "/")
	if endpoint == "" {
		endpoint = "http://localhost:11434"
	}
	schema := decision.ToolSchema()
	return &OllamaClient{
		caller:     newCaller(cfg.Timeout, cfg.RequestsPerMinute, logger.Named("reasoning.ollama")),
		endpoint:   endpoint,
		cfg:        cfg,
		httpClient: &http.Client{},
		tools: []ollamaTool{{
			Type: "function",
			Function: ollamaToolFunction{
				Name:        schema.Name,
				Description: schema.Description,
				Parameters:  schema.JSONSchema(),
			},
		}},
	}
}

// Decide sends the screenshot and task to /api/chat and parses the single computer call.
func (c *OllamaClient) Decide(ctx context.Context, req Request) (decision.Decision, Context, error) {
	payload := c.buildRequest(req)
	body, err := json.Marshal(payload)
	if err != nil {
		return decision.Decision{}, req.Context, fmt.Errorf("failed to marshal chat request: %w", err)
	}

	var resp ollamaChatResponse
	start := time.Now()
	err = c.do(ctx, func(ctx context.Context) error {
		return c.post(ctx, "/api/chat", body, &resp)
	})
	if err != nil {
		return decision.Decision{}, req.Context, err
	}

	c.logger.Debug("Chat completed",
		zap.Duration("latency", time.Since(start)),
		zap.Int("prompt_tokens", resp.PromptEvalCount),
		zap.Int("completion_tokens", resp.EvalCount),
		zap.Int("tool_calls", len(resp.Message.ToolCalls)))

	d, err := c.parse(resp.Message)
	if err != nil {
		return decision.Decision{}, req.Context, err
	}
	return d, appendDecision(req, d), nil
}

func (c *OllamaClient) parse(msg ollamaMessage) (decision.Decision, error) {
	if len(msg.ToolCalls) > 0 {
		if len(msg.ToolCalls) > 1 {
			c.logger.Warn("Model returned several tool calls; using the first", zap.Int("count", len(msg.ToolCalls)))
		}
		call := msg.ToolCalls[0].Function
		return decision.ParseToolCall(call.Name, call.Arguments)
	}
	return decision.ParseContent(msg.Content)
}

func (c *OllamaClient) buildRequest(req Request) ollamaChatRequest {
	user := ollamaMessage{Role: "user", Content: UserPrompt(req)}
	if req.Screenshot != nil && len(req.Screenshot.PNG) > 0 {
		user.Images = []string{base64.StdEncoding.EncodeToString(req.Screenshot.PNG)}
	}
	return ollamaChatRequest{
		Model: c.cfg.Model,
		Messages: []ollamaMessage{
			{Role: "system", Content: SystemPrompt},
			user,
		},
		Tools:  c.tools,
		Stream: false,
		Options: ollamaOptions{
			Temperature: c.cfg.Temperature,
			NumPredict:  c.cfg.MaxTokens,
		},
	}
}

// Check lists the server's models and confirms the configured one is among them.
func (c *OllamaClient) Check(ctx context.Context) (Status, error) {
	status := Status{Provider: config.ProviderOllama, Endpoint: c.endpoint, Model: c.cfg.Model}

	var tags ollamaTagsResponse
	err := c.do(ctx, func(ctx context.Context) error {
		return c.get(ctx, "/api/tags", &tags)
	})
	if err != nil {
		return status, fmt.Errorf("ollama endpoint %s is not reachable: %w", c.endpoint, err)
	}

	found := false
	for _, m := range tags.Models {
		status.Models = append(status.Models, m.Name)
		if m.Name == c.cfg.Model || strings.TrimSuffix(m.Name, ":latest") == c.cfg.Model {
			found = true
		}
	}
	if !found {
		return status, fmt.Errorf("%w: %s (pull it with 'ollama pull %s')", ErrModelNotFound, c.cfg.Model, c.cfg.Model)
	}
	return status, nil
}

func (c *OllamaClient) post(ctx context.Context, path string, body []byte, out interface{}) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	return c.send(httpReq, out)
}

func (c *OllamaClient) get(ctx context.Context, path string, out interface{}) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}
	return c.send(httpReq, out)
}

func (c *OllamaClient) send(httpReq *http.Request, out interface{}) error {
	if c.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to execute HTTP request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return &EndpointError{StatusCode: resp.StatusCode, Body: llmutil.Truncate(string(respBody), 500)}
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to decode response payload: %w", err)
	}
	return nil
}
