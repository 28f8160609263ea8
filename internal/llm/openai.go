package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/yuhao-w/deepquery/internal/domain"
)

// Generation temperatures. Tool selection runs cold so query planning stays
// stable across rounds; summarization runs warmer.
const (
	completeTemperature = 0.3
	streamTemperature   = 0.7
)

// Config holds the OpenAI-compatible endpoint settings.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
}

// OpenAIClient implements Client against any OpenAI-compatible
// chat-completions endpoint (DeepSeek, Ollama, vLLM, ...).
type OpenAIClient struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

// NewOpenAIClient creates a client for the configured endpoint.
func NewOpenAIClient(cfg Config, logger *zap.Logger) *OpenAIClient {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	return &OpenAIClient{
		client: openai.NewClientWithConfig(oc),
		model:  cfg.Model,
		logger: logger,
	}
}

// Complete sends a non-streamed chat completion request.
func (c *OpenAIClient) Complete(ctx context.Context, messages []Message, tools []ToolSpec) (*Completion, error) {
	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    toOpenAIMessages(messages),
		Temperature: completeTemperature,
	}
	for _, t := range tools {
		req.Tools = append(req.Tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, classify(err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: completion returned no choices", domain.ErrMalformedResponse)
	}

	msg := resp.Choices[0].Message
	completion := &Completion{Content: msg.Content}
	for _, tc := range msg.ToolCalls {
		completion.ToolCalls = append(completion.ToolCalls, ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	c.logger.Debug("completion received",
		zap.Int("tool_calls", len(completion.ToolCalls)),
		zap.Int("content_len", len(completion.Content)),
	)
	return completion, nil
}

// Stream opens a streamed chat completion and forwards content deltas.
func (c *OpenAIClient) Stream(ctx context.Context, messages []Message) (<-chan Fragment, error) {
	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    toOpenAIMessages(messages),
		Temperature: streamTemperature,
		Stream:      true,
	}

	stream, err := c.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, classify(err)
	}

	ch := make(chan Fragment, 64)
	go func() {
		defer close(ch)
		defer stream.Close()
		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				select {
				case ch <- Fragment{Err: classify(err)}:
				case <-ctx.Done():
				}
				return
			}
			if len(resp.Choices) == 0 || resp.Choices[0].Delta.Content == "" {
				continue
			}
			select {
			case ch <- Fragment{Content: resp.Choices[0].Delta.Content}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

func toOpenAIMessages(messages []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		om := openai.ChatCompletionMessage{
			Role:       m.Role,
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
		}
		for _, tc := range m.ToolCalls {
			om.ToolCalls = append(om.ToolCalls, openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      tc.Name,
					Arguments: tc.Arguments,
				},
			})
		}
		out = append(out, om)
	}
	return out
}

// classify maps transport errors onto the collaborator error taxonomy.
func classify(err error) error {
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		return fmt.Errorf("%w: %v", domain.ErrCollaboratorTimeout, err)
	}
	return fmt.Errorf("%w: %v", domain.ErrCollaboratorFailure, err)
}
