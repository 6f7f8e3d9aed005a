package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"github.com/koopa0/stockchat/internal/dispatch"
)

// systemPrompt frames the model as the store assistant and steers it toward
// the registered functions for anything inventory-shaped.
const systemPrompt = "You are a helpful assistant for a retail store. " +
	"Answer questions about items in the inventory by calling the provided functions. " +
	"When the question is not about the inventory, answer directly and briefly."

// defaultRate allows a small burst of model calls per session without
// hammering the API when the caller loops.
var defaultRate = rate.NewLimiter(rate.Limit(2), 4)

// ClientConfig contains the required parameters for the OpenAI-backed model.
type ClientConfig struct {
	APIKey string
	Model  string

	// Specs declares the callable operations; the dispatcher is their single
	// source of truth.
	Specs []dispatch.Spec

	Logger *slog.Logger

	// Limiter throttles calls. Nil uses a conservative default.
	Limiter *rate.Limiter
}

func (cfg ClientConfig) validate() error {
	if cfg.APIKey == "" {
		return errors.New("API key is required")
	}
	if cfg.Model == "" {
		return errors.New("model name is required")
	}
	if len(cfg.Specs) == 0 {
		return errors.New("at least one operation spec is required")
	}
	return nil
}

// Client calls OpenAI chat completions with the registered operations
// declared as function tools.
//
// Client is stateless apart from its rate limiter and safe for concurrent
// use.
type Client struct {
	api     openai.Client
	model   string
	tools   []openai.ChatCompletionToolParam
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewClient creates a Client from cfg.
func NewClient(cfg ClientConfig) (*Client, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid client config: %w", err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	limiter := cfg.Limiter
	if limiter == nil {
		limiter = defaultRate
	}

	return &Client{
		api:     openai.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:   cfg.Model,
		tools:   toolParams(cfg.Specs),
		limiter: limiter,
		logger:  logger,
	}, nil
}

// Generate submits the conversation and returns the model's raw output. A
// tool call comes back serialized in the canonical intent format so that
// Classify sees one wire shape regardless of provider.
func (c *Client) Generate(ctx context.Context, msgs []Message) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("%w: %w", ErrModelUnavailable, err)
	}

	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(c.model),
		Messages:    c.requestMessages(msgs),
		Tools:       c.tools,
		Temperature: openai.Float(0),
	}

	resp, err := c.api.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrModelUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: empty response", ErrModelUnavailable)
	}

	msg := resp.Choices[0].Message
	if len(msg.ToolCalls) > 0 {
		tc := msg.ToolCalls[0]
		return serializeToolCall(tc.Function.Name, tc.Function.Arguments), nil
	}
	return msg.Content, nil
}

func (c *Client) requestMessages(msgs []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs)+1)
	out = append(out, openai.SystemMessage(systemPrompt))
	for _, m := range msgs {
		switch m.Role {
		case RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}

// serializeToolCall renders a provider tool call in the canonical intent
// format. When the provider hands back unparseable argument JSON, the text
// is wrapped with UnparseablePrefix so classification routes it to recovery
// instead of dispatch.
func serializeToolCall(name, args string) string {
	if !gjson.Valid(args) || !gjson.Parse(args).IsObject() {
		return UnparseablePrefix + name + "(" + args + ")"
	}

	payload, err := json.Marshal(struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	}{Name: name, Arguments: json.RawMessage(args)})
	if err != nil {
		return UnparseablePrefix + name
	}
	return string(payload)
}

// toolParams converts dispatcher specs into OpenAI function declarations.
func toolParams(specs []dispatch.Spec) []openai.ChatCompletionToolParam {
	tools := make([]openai.ChatCompletionToolParam, 0, len(specs))
	for _, s := range specs {
		properties := make(map[string]any, len(s.Params))
		required := make([]string, 0, len(s.Params))
		for _, p := range s.Params {
			properties[p.Name] = map[string]any{
				"type":        string(p.Kind),
				"description": p.Description,
			}
			required = append(required, p.Name)
		}

		tools = append(tools, openai.ChatCompletionToolParam{
			Function: openai.FunctionDefinitionParam{
				Name:        s.Name,
				Description: openai.String(s.Description),
				Parameters: openai.FunctionParameters{
					"type":       "object",
					"properties": properties,
					"required":   required,
				},
			},
		})
	}
	return tools
}
