// internal/reasoning/gemini.go
package reasoning

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/xkilldash9x/glimpse/internal/config"
	"github.com/xkilldash9x/glimpse/internal/decision"
)

// GeminiClient asks a Gemini model through the genai SDK, forcing a function call.
type GeminiClient struct {
	caller
	client *genai.Client
	cfg    config.ReasoningConfig
	gen    *genai.GenerateContentConfig
}

var _ Client = (*GeminiClient)(nil)

// NewGeminiClient initializes the SDK client. cfg.Endpoint, when set, overrides the API base URL.
func NewGeminiClient(ctx context.Context, cfg config.ReasoningConfig, logger *zap.Logger) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini API key is required")
	}

	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.Endpoint != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: strings.TrimRight(cfg.Endpoint, "/") + "/"}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	gen := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(SystemPrompt, genai.RoleUser),
		Temperature:       genai.Ptr(cfg.Temperature),
		Tools:             []*genai.Tool{{FunctionDeclarations: []*genai.FunctionDeclaration{functionDeclaration()}}},
		ToolConfig: &genai.ToolConfig{
			FunctionCallingConfig: &genai.FunctionCallingConfig{
				Mode:                 genai.FunctionCallingConfigModeAny,
				AllowedFunctionNames: []string{decision.ToolName},
			},
		},
	}
	if cfg.MaxTokens > 0 {
		gen.MaxOutputTokens = int32(cfg.MaxTokens)
	}

	return &GeminiClient{
		caller: newCaller(cfg.Timeout, cfg.RequestsPerMinute, logger.Named("reasoning.gemini")),
		client: client,
		cfg:    cfg,
		gen:    gen,
	}, nil
}

// functionDeclaration translates the computer tool schema into the SDK's schema types.
func functionDeclaration() *genai.FunctionDeclaration {
	s := decision.ToolSchema()
	props := make(map[string]*genai.Schema, len(s.Properties))
	for name, p := range s.Properties {
		props[name] = toGenaiSchema(p)
	}
	return &genai.FunctionDeclaration{
		Name:        s.Name,
		Description: s.Description,
		Parameters: &genai.Schema{
			Type:             genai.TypeObject,
			Properties:       props,
			Required:         s.Required,
			PropertyOrdering: s.Order,
		},
	}
}

var genaiTypes = map[string]genai.Type{
	"string":  genai.TypeString,
	"number":  genai.TypeNumber,
	"integer": genai.TypeInteger,
	"array":   genai.TypeArray,
	"object":  genai.TypeObject,
}

func toGenaiSchema(p decision.Property) *genai.Schema {
	out := &genai.Schema{
		Type:        genaiTypes[p.Type],
		Description: p.Description,
		Enum:        p.Enum,
		Minimum:     p.Minimum,
		Maximum:     p.Maximum,
	}
	if p.Items != nil {
		out.Items = toGenaiSchema(*p.Items)
	}
	if p.MinItems > 0 {
		out.MinItems = genai.Ptr(int64(p.MinItems))
	}
	if p.MaxItems > 0 {
		out.MaxItems = genai.Ptr(int64(p.MaxItems))
	}
	return out
}

// Decide sends the screenshot as an inline PNG part and parses the returned function call.
func (c *GeminiClient) Decide(ctx context.Context, req Request) (decision.Decision, Context, error) {
	parts := []*genai.Part{genai.NewPartFromText(UserPrompt(req))}
	if req.Screenshot != nil && len(req.Screenshot.PNG) > 0 {
		parts = append(parts, genai.NewPartFromBytes(req.Screenshot.PNG, "image/png"))
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	var resp *genai.GenerateContentResponse
	start := time.Now()
	err := c.do(ctx, func(ctx context.Context) error {
		var err error
		resp, err = c.client.Models.GenerateContent(ctx, c.cfg.Model, contents, c.gen)
		return err
	})
	if err != nil {
		return decision.Decision{}, req.Context, err
	}

	fields := []zap.Field{zap.Duration("latency", time.Since(start))}
	if resp.UsageMetadata != nil {
		fields = append(fields,
			zap.Int32("prompt_tokens", resp.UsageMetadata.PromptTokenCount),
			zap.Int32("completion_tokens", resp.UsageMetadata.CandidatesTokenCount))
	}
	c.logger.Debug("Generation completed", fields...)

	d, err := c.parse(resp)
	if err != nil {
		return decision.Decision{}, req.Context, err
	}
	return d, appendDecision(req, d), nil
}

func (c *GeminiClient) parse(resp *genai.GenerateContentResponse) (decision.Decision, error) {
	calls := resp.FunctionCalls()
	if len(calls) == 0 {
		return decision.ParseContent(resp.Text())
	}
	if len(calls) > 1 {
		c.logger.Warn("Model returned several function calls; using the first", zap.Int("count", len(calls)))
	}
	args, err := json.Marshal(calls[0].Args)
	if err != nil {
		return decision.Decision{}, &decision.ParseError{Code: decision.ErrCodeMalformed, Reason: "function call arguments could not be encoded"}
	}
	return decision.ParseToolCall(calls[0].Name, args)
}

// Check fetches the configured model's metadata.
func (c *GeminiClient) Check(ctx context.Context) (Status, error) {
	status := Status{Provider: config.ProviderGemini, Endpoint: c.cfg.Endpoint, Model: c.cfg.Model}
	var model *genai.Model
	err := c.do(ctx, func(ctx context.Context) error {
		var err error
		model, err = c.client.Models.Get(ctx, c.cfg.Model, nil)
		return err
	})
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) && apiErr.Code == 404 {
			return status, fmt.Errorf("%w: %s", ErrModelNotFound, c.cfg.Model)
		}
		return status, fmt.Errorf("gemini endpoint is not reachable: %w", err)
	}
	status.Models = []string{model.Name}
	return status, nil
}
