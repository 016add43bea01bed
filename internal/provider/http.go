package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/erg0nix/konsilium/internal/config"
	"github.com/erg0nix/konsilium/internal/core"
)

// HTTPConfig holds connection settings for an OpenAI-compatible API endpoint.
type HTTPConfig struct {
	Endpoint    string
	APIKey      string
	HTTPTimeout time.Duration
}

// HTTPProvider implements Provider with hand-built JSON over net/http.
type HTTPProvider struct {
	endpoint      string
	apiKey        string
	client        *http.Client
	requestLogger *RequestLogger
	validateRoles bool
}

// NewHTTPProvider creates an HTTPProvider with the given endpoint config and optional debug logging.
func NewHTTPProvider(cfg HTTPConfig, debugCfg config.DebugConfig) *HTTPProvider {
	timeout := cfg.HTTPTimeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}

	provider := &HTTPProvider{
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		apiKey:   cfg.APIKey,
		client:   &http.Client{Timeout: timeout},
	}

	if debugCfg.LogRequests || debugCfg.LogResponses {
		provider.requestLogger = NewRequestLogger(
			debugCfg.LogDirectory,
			debugCfg.LogRequests,
			debugCfg.LogResponses,
			slog.Default(),
		)
	}

	provider.validateRoles = debugCfg.ValidateRoles

	return provider
}

// GenerateChat posts a chat completion request and returns the parsed first choice.
func (p *HTTPProvider) GenerateChat(ctx context.Context, req Request) (Response, error) {
	requestID := core.NewRequestID()

	if p.validateRoles {
		if err := ValidateToolReferences(req.Messages); err != nil {
			if p.requestLogger != nil {
				p.requestLogger.LogError(requestID, 0, err.Error(), req)
			}
			return Response{}, fmt.Errorf("role validation failed (request_id=%s): %w", requestID, err)
		}
	}

	body, err := json.Marshal(buildPayload(req))
	if err != nil {
		return Response{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	if p.requestLogger != nil {
		p.requestLogger.LogRequest(requestID, req)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	startTime := time.Now()
	httpResp, err := p.client.Do(httpReq)
	duration := time.Since(startTime)

	if err != nil {
		if p.requestLogger != nil {
			p.requestLogger.LogError(requestID, 0, err.Error(), req)
		}
		return Response{}, fmt.Errorf("provider request failed (request_id=%s): %w", requestID, err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(httpResp.Body)

		if p.requestLogger != nil {
			p.requestLogger.LogError(requestID, httpResp.StatusCode, string(bodyBytes), req)
		}

		return Response{}, fmt.Errorf("provider error (request_id=%s): %w", requestID, parseAPIError(httpResp.StatusCode, bodyBytes))
	}

	var responsePayload map[string]any
	if err := json.NewDecoder(httpResp.Body).Decode(&responsePayload); err != nil {
		return Response{}, fmt.Errorf("decode response: %w", err)
	}

	response, err := parseResponsePayload(responsePayload)
	if err != nil {
		return Response{}, fmt.Errorf("provider response parse failed (request_id=%s): %w", requestID, err)
	}

	if p.requestLogger != nil {
		p.requestLogger.LogResponse(requestID, response, duration)
	}

	return response, nil
}

func buildPayload(req Request) map[string]any {
	msgJSON := make([]map[string]any, 0, len(req.Messages))
	for _, message := range req.Messages {
		entry := map[string]any{"role": string(message.Role), "content": message.Content}

		if len(message.ToolCalls) > 0 {
			entry["tool_calls"] = toToolCalls(message.ToolCalls)
			if message.Content == "" {
				entry["content"] = nil
			}
		}

		if message.ToolCallID != "" {
			entry["tool_call_id"] = message.ToolCallID
		}

		msgJSON = append(msgJSON, entry)
	}

	payload := map[string]any{
		"model":    req.Model,
		"messages": msgJSON,
		"stream":   false,
	}

	if len(req.Tools) > 0 {
		toolJSON := make([]map[string]any, 0, len(req.Tools))
		for _, t := range req.Tools {
			toolJSON = append(toolJSON, map[string]any{
				"type": "function",
				"function": map[string]any{
					"name":        t.Name,
					"description": t.Description,
					"parameters":  t.Parameters,
				},
			})
		}
		payload["tools"] = toolJSON
	}

	if sampling := req.Sampling; sampling != nil {
		if sampling.Temperature != nil {
			payload["temperature"] = *sampling.Temperature
		}
		if sampling.MaxTokens != nil {
			payload["max_tokens"] = *sampling.MaxTokens
		}
		if sampling.TopP != nil {
			payload["top_p"] = *sampling.TopP
		}
		if sampling.FrequencyPenalty != nil {
			payload["frequency_penalty"] = *sampling.FrequencyPenalty
		}
		if sampling.PresencePenalty != nil {
			payload["presence_penalty"] = *sampling.PresencePenalty
		}
		if len(sampling.Stop) > 0 {
			payload["stop"] = sampling.Stop
		}
	}

	return payload
}

func toToolCalls(calls []core.ToolCall) []map[string]any {
	toolCalls := make([]map[string]any, 0, len(calls))
	for _, call := range calls {
		callType := call.Type
		if callType == "" {
			callType = "function"
		}
		toolCalls = append(toolCalls, map[string]any{
			"id":   call.ID,
			"type": callType,
			"function": map[string]any{
				"name":      call.Function.Name,
				"arguments": call.Function.Arguments,
			},
		})
	}

	return toolCalls
}

func parseResponsePayload(payload map[string]any) (Response, error) {
	choices, ok := payload["choices"].([]any)
	if !ok || len(choices) == 0 {
		return Response{}, ErrNoChoices
	}

	choice, ok := choices[0].(map[string]any)
	if !ok {
		return Response{}, errors.New("malformed choice in response")
	}

	message, ok := choice["message"].(map[string]any)
	if !ok {
		return Response{}, errors.New("malformed message in response")
	}

	content, _ := message["content"].(string)
	finishReason, _ := choice["finish_reason"].(string)

	return Response{
		Message: core.Message{
			Role:      core.RoleAssistant,
			Content:   content,
			ToolCalls: parseToolCalls(message),
		},
		FinishReason: finishReason,
		Usage:        parseUsage(payload),
	}, nil
}

func parseToolCalls(message map[string]any) []core.ToolCall {
	rawCalls, ok := message["tool_calls"].([]any)
	if !ok {
		return nil
	}

	var toolCalls []core.ToolCall
	for _, rawCall := range rawCalls {
		rawEntry, ok := rawCall.(map[string]any)
		if !ok {
			continue
		}

		callID, _ := rawEntry["id"].(string)
		if callID == "" {
			callID = core.NewToolCallID()
		}

		functionEntry, ok := rawEntry["function"].(map[string]any)
		if !ok {
			continue
		}

		functionName, _ := functionEntry["name"].(string)
		if functionName == "" {
			continue
		}

		var arguments string
		switch v := functionEntry["arguments"].(type) {
		case string:
			arguments = v
		case map[string]any:
			encoded, _ := json.Marshal(v)
			arguments = string(encoded)
		}

		toolCalls = append(toolCalls, core.ToolCall{
			ID:       callID,
			Type:     "function",
			Function: core.FunctionCall{Name: functionName, Arguments: arguments},
		})
	}

	return toolCalls
}

func parseUsage(response map[string]any) *core.Usage {
	usageMap, ok := response["usage"].(map[string]any)
	if !ok {
		return nil
	}

	return &core.Usage{
		PromptTokens:     core.IntFromAny(usageMap["prompt_tokens"]),
		CompletionTokens: core.IntFromAny(usageMap["completion_tokens"]),
		TotalTokens:      core.IntFromAny(usageMap["total_tokens"]),
	}
}
