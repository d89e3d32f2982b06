// Package anthropic wraps the Anthropic SDK behind the single-turn message
// call the remote site classifier makes.
package anthropic

import (
	"context"
	"errors"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Client sends one prompt and returns the model's reply.
type Client interface {
	CreateMessage(ctx context.Context, req MessageRequest) (*MessageResponse, error)
}

// MessageRequest is a single user turn under a system prompt. When
// SystemCacheTTL is set ("5m" or "1h") the system prompt is marked as a
// prompt-cache breakpoint so repeated classifications reuse it.
type MessageRequest struct {
	Model          string
	MaxTokens      int64
	System         string
	SystemCacheTTL string
	Prompt         string
	Temperature    *float64
}

// MessageResponse is the reply with its text blocks joined.
type MessageResponse struct {
	ID         string
	Model      string
	Text       string
	StopReason string
	Usage      TokenUsage
}

// TokenUsage tracks token consumption for one call.
type TokenUsage struct {
	InputTokens      int64
	OutputTokens     int64
	CacheWriteTokens int64
	CacheReadTokens  int64
}

// Add sums two usages.
func (u TokenUsage) Add(o TokenUsage) TokenUsage {
	return TokenUsage{
		InputTokens:      u.InputTokens + o.InputTokens,
		OutputTokens:     u.OutputTokens + o.OutputTokens,
		CacheWriteTokens: u.CacheWriteTokens + o.CacheWriteTokens,
		CacheReadTokens:  u.CacheReadTokens + o.CacheReadTokens,
	}
}

// Pricing is USD per million tokens. Cache writes bill at 1.25x input and
// cache reads at 0.1x input.
type Pricing struct {
	Input  float64
	Output float64
}

var pricing = map[string]Pricing{
	"claude-haiku-4-5-20251001":  {Input: 0.80, Output: 4.00},
	"claude-sonnet-4-5-20250929": {Input: 3.00, Output: 15.00},
}

// EstimateCost returns the USD cost of u on model, or 0 for unknown models.
func (u TokenUsage) EstimateCost(model string) float64 {
	p, ok := pricing[model]
	if !ok {
		return 0
	}
	in := float64(u.InputTokens) + 1.25*float64(u.CacheWriteTokens) + 0.1*float64(u.CacheReadTokens)
	return (in*p.Input + float64(u.OutputTokens)*p.Output) / 1e6
}

// LogCost logs usage and estimated cost for one phase of work.
func (u TokenUsage) LogCost(model, phase string) {
	zap.L().Info("anthropic: usage",
		zap.String("model", model),
		zap.String("phase", phase),
		zap.Int64("input_tokens", u.InputTokens),
		zap.Int64("output_tokens", u.OutputTokens),
		zap.Int64("cache_write_tokens", u.CacheWriteTokens),
		zap.Int64("cache_read_tokens", u.CacheReadTokens),
		zap.Float64("estimated_cost_usd", u.EstimateCost(model)),
	)
}

// StatusCode returns the HTTP status of an API error in err's chain, or 0.
func StatusCode(err error) int {
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

type sdkClient struct {
	client sdk.Client
}

// NewClient creates an SDK-backed Client. SDK retries are disabled; callers
// own the retry budget.
func NewClient(apiKey string, opts ...option.RequestOption) Client {
	all := append([]option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}, opts...)
	return &sdkClient{client: sdk.NewClient(all...)}
}

func (c *sdkClient) CreateMessage(ctx context.Context, req MessageRequest) (*MessageResponse, error) {
	msg, err := c.client.Messages.New(ctx, newParams(req))
	if err != nil {
		return nil, eris.Wrap(err, "anthropic: create message")
	}
	return fromSDK(msg), nil
}

func newParams(req MessageRequest) sdk.MessageNewParams {
	params := sdk.MessageNewParams{
		Model:     sdk.Model(req.Model),
		MaxTokens: req.MaxTokens,
		Messages:  []sdk.MessageParam{sdk.NewUserMessage(sdk.NewTextBlock(req.Prompt))},
	}
	if req.System != "" {
		block := sdk.TextBlockParam{Text: req.System}
		if req.SystemCacheTTL != "" {
			cc := sdk.NewCacheControlEphemeralParam()
			cc.TTL = sdk.CacheControlEphemeralTTL(req.SystemCacheTTL)
			block.CacheControl = cc
		}
		params.System = []sdk.TextBlockParam{block}
	}
	if req.Temperature != nil {
		params.Temperature = sdk.Float(*req.Temperature)
	}
	return params
}

func fromSDK(msg *sdk.Message) *MessageResponse {
	var text []string
	for _, b := range msg.Content {
		if b.Type == "text" && b.Text != "" {
			text = append(text, b.Text)
		}
	}
	return &MessageResponse{
		ID:         msg.ID,
		Model:      string(msg.Model),
		Text:       strings.Join(text, "\n"),
		StopReason: string(msg.StopReason),
		Usage: TokenUsage{
			InputTokens:      msg.Usage.InputTokens,
			OutputTokens:     msg.Usage.OutputTokens,
			CacheWriteTokens: msg.Usage.CacheCreationInputTokens,
			CacheReadTokens:  msg.Usage.CacheReadInputTokens,
		},
	}
}
