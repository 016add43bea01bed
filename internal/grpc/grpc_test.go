package grpc

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/erg0nix/konsilium/internal/agent"
	"github.com/erg0nix/konsilium/internal/core"
	"github.com/erg0nix/konsilium/internal/usage"
)

type fakeAgent struct {
	messages []core.Message
	resets   int
	resetErr error
}

func (f *fakeAgent) Chat(_ context.Context, userMessage string) agent.Result {
	f.messages = append(f.messages,
		core.Message{Role: core.RoleUser, Content: userMessage},
		core.Message{Role: core.RoleAssistant, Content: "echo: " + userMessage},
	)
	return agent.Result{
		Answer: "echo: " + userMessage,
		Steps:  []agent.Step{{Tool: "calculate", Arguments: `{"expression":"1+1"}`, Result: "2"}},
		Tokens: &usage.TokenInfo{PromptTokens: 1000, CompletionTokens: 500, CostUSD: 0.00028},
	}
}

func (f *fakeAgent) Reset(context.Context) error {
	if f.resetErr != nil {
		return f.resetErr
	}
	f.resets++
	f.messages = nil
	return nil
}

func (f *fakeAgent) Status(context.Context) (agent.Status, error) {
	return agent.Status{
		Stats:        usage.Stats{LastPromptTokens: 1000, TotalCostUSD: 0.00028, Turns: 1},
		ContextLimit: 131072,
		HistoryLen:   len(f.messages),
	}, nil
}

func (f *fakeAgent) History(context.Context) ([]core.Message, error) {
	return f.messages, nil
}

func startServer(t *testing.T, a Agent, daemon *DaemonHandler) *Client {
	t.Helper()

	listener := bufconn.Listen(1 << 20)
	server := grpc.NewServer()
	RegisterAgentServer(server, &AgentHandler{Agent: a})
	if daemon != nil {
		RegisterDaemonServer(server, daemon)
	}

	go func() { _ = server.Serve(listener) }()
	t.Cleanup(server.Stop)

	client, err := Dial("passthrough:///bufnet", grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return listener.DialContext(ctx)
	}))
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	return client
}

func TestAgentService_RoundTrip(t *testing.T) {
	ctx := context.Background()
	fake := &fakeAgent{}
	client := startServer(t, fake, nil)

	result, err := client.Chat(ctx, "hi")
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if result.Answer != "echo: hi" || result.IsError {
		t.Errorf("unexpected result %+v", result)
	}
	if result.Tokens == nil || result.Tokens.PromptTokens != 1000 || result.Tokens.CostUSD != 0.00028 {
		t.Errorf("unexpected tokens %+v", result.Tokens)
	}
	if len(result.Steps) != 1 || result.Steps[0].Result != "2" {
		t.Errorf("unexpected steps %+v", result.Steps)
	}

	stats, err := client.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Turns != 1 || stats.LastPromptTokens != 1000 || stats.ContextLimit != 131072 || stats.HistoryLen != 2 {
		t.Errorf("unexpected stats %+v", stats)
	}

	history, err := client.History(ctx)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(history) != 2 || history[0].Role != core.RoleUser || history[1].Content != "echo: hi" {
		t.Errorf("unexpected history %+v", history)
	}

	if err := client.Reset(ctx); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if fake.resets != 1 {
		t.Errorf("expected one reset, got %d", fake.resets)
	}

	history, err = client.History(ctx)
	if err != nil || len(history) != 0 {
		t.Errorf("expected empty history after reset, got %d messages, err %v", len(history), err)
	}
}

func TestAgentService_Errors(t *testing.T) {
	ctx := context.Background()
	client := startServer(t, &fakeAgent{resetErr: errors.New("disk full")}, nil)

	_, err := client.Chat(ctx, "   ")
	if status.Code(err) != codes.InvalidArgument {
		t.Errorf("expected InvalidArgument for blank message, got %v", err)
	}

	err = client.Reset(ctx)
	if status.Code(err) != codes.Internal {
		t.Errorf("expected Internal for failed reset, got %v", err)
	}

	_, err = client.DaemonStatus(ctx)
	if status.Code(err) != codes.Unimplemented {
		t.Errorf("expected Unimplemented without daemon service, got %v", err)
	}
}

func TestDaemonService(t *testing.T) {
	ctx := context.Background()
	stopped := make(chan struct{})

	client := startServer(t, &fakeAgent{}, &DaemonHandler{
		Bind:      ":50061",
		DataDir:   "/tmp/konsilium",
		Model:     "deepseek-chat",
		Providers: []string{"deepseek", "groq"},
		StartTime: time.Now().Add(-2 * time.Minute),
		StopFunc:  func() { close(stopped) },
	})

	daemonStatus, err := client.DaemonStatus(ctx)
	if err != nil {
		t.Fatalf("DaemonStatus failed: %v", err)
	}
	if daemonStatus.Bind != ":50061" || daemonStatus.Model != "deepseek-chat" || len(daemonStatus.Providers) != 2 {
		t.Errorf("unexpected status %+v", daemonStatus)
	}
	if daemonStatus.UptimeSeconds < 120 || daemonStatus.StartedAt == "" {
		t.Errorf("expected uptime to be reported, got %+v", daemonStatus)
	}

	if err := client.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("expected stop function to be called")
	}
}
