package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/erg0nix/konsilium/internal/config"
	"github.com/erg0nix/konsilium/internal/core"
)

// SDKProvider implements Provider on top of the official openai-go client.
type SDKProvider struct {
	client        openai.Client
	requestLogger *RequestLogger
	validateRoles bool
}

// NewSDKProvider creates an SDKProvider pointed at cfg.Endpoint. The SDK's own retries are disabled.
func NewSDKProvider(cfg HTTPConfig, debugCfg config.DebugConfig) *SDKProvider {
	timeout := cfg.HTTPTimeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}

	opts := []option.RequestOption{
		option.WithBaseURL(strings.TrimRight(cfg.Endpoint, "/") + "/"),
		option.WithHTTPClient(&http.Client{Timeout: timeout}),
		option.WithMaxRetries(0),
	}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}

	provider := &SDKProvider{
		client:        openai.NewClient(opts...),
		validateRoles: debugCfg.ValidateRoles,
	}

	if debugCfg.LogRequests || debugCfg.LogResponses {
		provider.requestLogger = NewRequestLogger(
			debugCfg.LogDirectory,
			debugCfg.LogRequests,
			debugCfg.LogResponses,
			slog.Default(),
		)
	}

	return provider
}

func (p *SDKProvider) GenerateChat(ctx context.Context, req Request) (Response, error) {
	requestID := core.NewRequestID()

	if p.validateRoles {
		if err := ValidateToolReferences(req.Messages); err != nil {
			return Response{}, fmt.Errorf("role validation failed (request_id=%s): %w", requestID, err)
		}
	}

	params, opts := buildParams(req)

	if p.requestLogger != nil {
		p.requestLogger.LogRequest(requestID, req)
	}

	startTime := time.Now()
	completion, err := p.client.Chat.Completions.New(ctx, params, opts...)
	duration := time.Since(startTime)

	if err != nil {
		var sdkErr *openai.Error
		if errors.As(err, &sdkErr) {
			apiErr := &APIError{
				StatusCode: sdkErr.StatusCode,
				Message:    sdkErr.Message,
				Type:       sdkErr.Type,
				Code:       sdkErr.Code,
			}
			if apiErr.Message == "" {
				apiErr.Message = fmt.Sprintf("status %d", sdkErr.StatusCode)
			}
			if p.requestLogger != nil {
				p.requestLogger.LogError(requestID, apiErr.StatusCode, apiErr.Message, req)
			}
			return Response{}, fmt.Errorf("provider error (request_id=%s): %w", requestID, apiErr)
		}

		if p.requestLogger != nil {
			p.requestLogger.LogError(requestID, 0, err.Error(), req)
		}
		return Response{}, fmt.Errorf("provider request failed (request_id=%s): %w", requestID, err)
	}

	response, err := convertCompletion(completion)
	if err != nil {
		return Response{}, fmt.Errorf("provider response parse failed (request_id=%s): %w", requestID, err)
	}

	if p.requestLogger != nil {
		p.requestLogger.LogResponse(requestID, response, duration)
	}

	return response, nil
}

func buildParams(req Request) (openai.ChatCompletionNewParams, []option.RequestOption) {
	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(req.Model),
		Messages: convertMessages(req.Messages),
	}

	if len(req.Tools) > 0 {
		params.Tools = convertTools(req.Tools)
	}

	var opts []option.RequestOption

	if sampling := req.Sampling; sampling != nil {
		if sampling.Temperature != nil {
			params.Temperature = openai.Float(*sampling.Temperature)
		}
		if sampling.MaxTokens != nil {
			params.MaxTokens = openai.Int(int64(*sampling.MaxTokens))
		}
		if sampling.TopP != nil {
			params.TopP = openai.Float(*sampling.TopP)
		}
		if sampling.FrequencyPenalty != nil {
			params.FrequencyPenalty = openai.Float(*sampling.FrequencyPenalty)
		}
		if sampling.PresencePenalty != nil {
			params.PresencePenalty = openai.Float(*sampling.PresencePenalty)
		}
		if len(sampling.Stop) > 0 {
			opts = append(opts, option.WithJSONSet("stop", sampling.Stop))
		}
	}

	return params, opts
}

func convertMessages(messages []core.Message) []openai.ChatCompletionMessageParamUnion {
	result := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))

	for _, msg := range messages {
		switch msg.Role {
		case core.RoleSystem:
			result = append(result, openai.SystemMessage(msg.Content))
		case core.RoleAssistant:
			result = append(result, convertAssistantMessage(msg))
		case core.RoleTool:
			result = append(result, openai.ToolMessage(msg.Content, msg.ToolCallID))
		default:
			result = append(result, openai.UserMessage(msg.Content))
		}
	}

	return result
}

func convertAssistantMessage(msg core.Message) openai.ChatCompletionMessageParamUnion {
	assistantParam := openai.ChatCompletionAssistantMessageParam{}

	if msg.Content != "" || len(msg.ToolCalls) == 0 {
		assistantParam.Content = openai.ChatCompletionAssistantMessageParamContentUnion{
			OfString: openai.String(msg.Content),
		}
	}

	for _, call := range msg.ToolCalls {
		assistantParam.ToolCalls = append(assistantParam.ToolCalls, openai.ChatCompletionMessageToolCallParam{
			ID: call.ID,
			Function: openai.ChatCompletionMessageToolCallFunctionParam{
				Name:      call.Function.Name,
				Arguments: call.Function.Arguments,
			},
		})
	}

	return openai.ChatCompletionMessageParamUnion{OfAssistant: &assistantParam}
}

func convertTools(tools []core.ToolDef) []openai.ChatCompletionToolParam {
	result := make([]openai.ChatCompletionToolParam, 0, len(tools))

	for _, def := range tools {
		parameters := shared.FunctionParameters{"type": "object"}
		for k, v := range def.Parameters {
			parameters[k] = v
		}

		tool := openai.ChatCompletionToolParam{
			Function: shared.FunctionDefinitionParam{
				Name:       def.Name,
				Parameters: parameters,
			},
		}
		if def.Description != "" {
			tool.Function.Description = openai.Opt(def.Description)
		}

		result = append(result, tool)
	}

	return result
}

func convertCompletion(completion *openai.ChatCompletion) (Response, error) {
	if completion == nil || len(completion.Choices) == 0 {
		return Response{}, ErrNoChoices
	}

	choice := completion.Choices[0]

	var toolCalls []core.ToolCall
	for _, tc := range choice.Message.ToolCalls {
		id := tc.ID
		if id == "" {
			id = core.NewToolCallID()
		}
		toolCalls = append(toolCalls, core.ToolCall{
			ID:       id,
			Type:     "function",
			Function: core.FunctionCall{Name: tc.Function.Name, Arguments: tc.Function.Arguments},
		})
	}

	response := Response{
		Message: core.Message{
			Role:      core.RoleAssistant,
			Content:   choice.Message.Content,
			ToolCalls: toolCalls,
		},
		FinishReason: string(choice.FinishReason),
	}

	if completion.Usage.TotalTokens > 0 || completion.Usage.PromptTokens > 0 {
		response.Usage = &core.Usage{
			PromptTokens:     int(completion.Usage.PromptTokens),
			CompletionTokens: int(completion.Usage.CompletionTokens),
			TotalTokens:      int(completion.Usage.TotalTokens),
		}
	}

	return response, nil
}
