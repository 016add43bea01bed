package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/erg0nix/konsilium/internal/agent"
	"github.com/erg0nix/konsilium/internal/app"
	"github.com/erg0nix/konsilium/internal/core"
	grpcsvc "github.com/erg0nix/konsilium/internal/grpc"
)

// agentBackend is either the in-process agent or a daemon reached over gRPC.
type agentBackend interface {
	Chat(ctx context.Context, message string) (agent.Result, error)
	Reset(ctx context.Context) error
	Stats(ctx context.Context) (agent.Status, error)
	History(ctx context.Context) ([]core.Message, error)
	Close() error
}

type localAgent struct {
	services *app.Services
}

func (l *localAgent) Chat(ctx context.Context, message string) (agent.Result, error) {
	return l.services.Agent.Chat(ctx, message), nil
}

func (l *localAgent) Reset(ctx context.Context) error {
	return l.services.Agent.Reset(ctx)
}

func (l *localAgent) Stats(ctx context.Context) (agent.Status, error) {
	return l.services.Agent.Status(ctx)
}

func (l *localAgent) History(ctx context.Context) ([]core.Message, error) {
	return l.services.Agent.History(ctx)
}

func (l *localAgent) Close() error {
	return l.services.Close()
}

func newAgentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agent [prompt]",
		Short: "Talk to the tool-calling agent (interactive when no prompt is given)",
		Args:  cobra.ArbitraryArgs,
		RunE:  runAgentCmd,
	}

	cmd.PersistentFlags().Bool("remote", false, "send turns to the running daemon instead of running in-process")

	cmd.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "Clear the agent history, summary and session stats",
		RunE: withAgentBackend(func(ctx context.Context, backend agentBackend, _ []string) error {
			if err := backend.Reset(ctx); err != nil {
				return err
			}
			fmt.Println(styleSuccess.Render("history cleared"))
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "history",
		Short: "Print the stored conversation",
		RunE: withAgentBackend(func(ctx context.Context, backend agentBackend, _ []string) error {
			messages, err := backend.History(ctx)
			if err != nil {
				return err
			}
			printHistory(messages)
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Show token usage, cost and context fill",
		RunE: withAgentBackend(func(ctx context.Context, backend agentBackend, _ []string) error {
			agentStatus, err := backend.Stats(ctx)
			if err != nil {
				return err
			}
			printStatus(agentStatus)
			return nil
		}),
	})

	return cmd
}

func withAgentBackend(fn func(ctx context.Context, backend agentBackend, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		backend, err := openAgentBackend(cmd)
		if err != nil {
			return err
		}
		defer backend.Close()

		return fn(cmd.Context(), backend, args)
	}
}

func openAgentBackend(cmd *cobra.Command) (agentBackend, error) {
	a, err := newApp(cmd)
	if err != nil {
		return nil, err
	}

	remote, _ := cmd.Flags().GetBool("remote")
	serverOverride, _ := cmd.Flags().GetString("server")

	if remote || serverOverride != "" {
		client, err := grpcsvc.Dial(a.ServerAddr)
		if err != nil {
			printServerNotRunning(a.ServerAddr, err)
			return nil, err
		}
		return client, nil
	}

	services, err := app.NewServices(a.Config, agent.WithObserver(printAgentEvent))
	if err != nil {
		return nil, err
	}
	return &localAgent{services: services}, nil
}

func runAgentCmd(cmd *cobra.Command, args []string) error {
	backend, err := openAgentBackend(cmd)
	if err != nil {
		return err
	}
	defer backend.Close()

	ctx := cmd.Context()
	renderer := newMarkdownRenderer()

	prompt := strings.TrimSpace(strings.Join(args, " "))
	if prompt != "" {
		return agentTurn(ctx, backend, renderer, prompt)
	}

	fmt.Println(styleDim.Render("type a message, /stats, /history, /reset or /exit"))
	return agentREPL(ctx, backend, renderer, os.Stdin)
}

func agentREPL(ctx context.Context, backend agentBackend, renderer *glamour.TermRenderer, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Print(stylePromptAction.Render("you") + stylePromptHint.Render(" > "))
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/exit", "/quit":
			return nil
		case "/reset":
			if err := backend.Reset(ctx); err != nil {
				fmt.Println(styledError("reset failed", err.Error()))
				continue
			}
			fmt.Println(styleSuccess.Render("history cleared"))
			continue
		case "/stats":
			agentStatus, err := backend.Stats(ctx)
			if err != nil {
				fmt.Println(styledError("stats failed", err.Error()))
				continue
			}
			printStatus(agentStatus)
			continue
		case "/history":
			messages, err := backend.History(ctx)
			if err != nil {
				fmt.Println(styledError("history failed", err.Error()))
				continue
			}
			printHistory(messages)
			continue
		}

		if err := agentTurn(ctx, backend, renderer, line); err != nil {
			fmt.Println(styledError("turn failed", err.Error()))
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func agentTurn(ctx context.Context, backend agentBackend, renderer *glamour.TermRenderer, prompt string) error {
	result, err := backend.Chat(ctx, prompt)
	if err != nil {
		return err
	}

	if result.IsError {
		fmt.Println(styledError(result.Answer))
		return nil
	}

	printMarkdown(renderer, result.Answer)

	if result.Tokens != nil {
		fmt.Println(styleDim.Render(formatTokens(*result.Tokens) + "  " + formatCost(result.Tokens.CostUSD)))
	}

	agentStatus, err := backend.Stats(ctx)
	if err == nil && agentStatus.NearLimit {
		fmt.Println(styleWarning.Render(fmt.Sprintf("context %.0f%% full, consider /reset", agentStatus.ContextPercent)))
	}
	return nil
}

func printAgentEvent(evt agent.Event) {
	if evt.Type != agent.EvtToolCompleted || evt.Step == nil {
		return
	}

	fmt.Println(styleToolName.Render(evt.Step.Tool) + styleToolArgs.Render("("+evt.Step.Arguments+")"))
	fmt.Println("  " + styleSuccess.Render("done") + " " + styleDim.Render(truncate(evt.Step.Result, 120)))
}

func printStatus(s agent.Status) {
	pctStyle := styleDim
	switch {
	case s.ContextPercent > 95:
		pctStyle = styleError
	case s.NearLimit:
		pctStyle = styleWarning
	}

	t := newTable("METRIC", "VALUE")
	t.Row("turns", fmt.Sprintf("%d", s.Turns))
	t.Row("last prompt", fmt.Sprintf("%d / %d tokens", s.LastPromptTokens, s.ContextLimit))
	t.Row("context", pctStyle.Render(fmt.Sprintf("%.1f%%", s.ContextPercent)))
	t.Row("total cost", formatCost(s.TotalCostUSD))
	t.Row("messages", fmt.Sprintf("%d (%d summarized)", s.HistoryLen, s.CoveredCount))
	fmt.Println(t.Render())
}

func printHistory(messages []core.Message) {
	if len(messages) == 0 {
		fmt.Println(styleDim.Render("history is empty"))
		return
	}

	for _, msg := range messages {
		switch {
		case msg.HasToolCalls():
			for _, call := range msg.ToolCalls {
				fmt.Println(styleDim.Render("assistant → ") + styleToolName.Render(call.Function.Name) + styleToolArgs.Render("("+call.Function.Arguments+")"))
			}
		case msg.Role == core.RoleTool:
			fmt.Println(styleDim.Render("tool      ← " + truncate(msg.Content, 100)))
		default:
			fmt.Println(styleHeading.Render(fmt.Sprintf("%-9s", msg.Role)) + " " + msg.Content)
		}
	}
}
