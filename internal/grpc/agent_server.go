package grpc

import (
	"context"
	"log/slog"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/erg0nix/konsilium/internal/agent"
	"github.com/erg0nix/konsilium/internal/core"
)

// Agent is the part of *agent.Agent the service needs.
type Agent interface {
	Chat(ctx context.Context, userMessage string) agent.Result
	Reset(ctx context.Context) error
	Status(ctx context.Context) (agent.Status, error)
	History(ctx context.Context) ([]core.Message, error)
}

type ChatRequest struct {
	Message string `json:"message"`
}

type HistoryResponse struct {
	Messages []core.Message `json:"messages"`
}

type AgentHandler struct {
	Agent Agent
}

func (h *AgentHandler) Chat(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var chatRequest ChatRequest
	if err := fromStruct(req, &chatRequest); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	if strings.TrimSpace(chatRequest.Message) == "" {
		return nil, status.Error(codes.InvalidArgument, "message is required")
	}

	result := h.Agent.Chat(ctx, chatRequest.Message)
	if result.IsError {
		slog.Warn("agent chat returned an error result", "answer", result.Answer)
	}

	return encode(result)
}

func (h *AgentHandler) Reset(ctx context.Context, _ *emptypb.Empty) (*emptypb.Empty, error) {
	if err := h.Agent.Reset(ctx); err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return &emptypb.Empty{}, nil
}

func (h *AgentHandler) Stats(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	agentStatus, err := h.Agent.Status(ctx)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return encode(agentStatus)
}

func (h *AgentHandler) History(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	messages, err := h.Agent.History(ctx)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return encode(HistoryResponse{Messages: messages})
}

func encode(v any) (*structpb.Struct, error) {
	out, err := toStruct(v)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}
