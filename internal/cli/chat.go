package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/erg0nix/konsilium/internal/app"
	"github.com/erg0nix/konsilium/internal/chat"
)

func newChatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat [prompt]",
		Short: "Plain chat without tools, with full control over sampling",
		Args:  cobra.ArbitraryArgs,
		RunE:  runChatCmd,
	}

	cmd.Flags().String("system", "", "system prompt")
	cmd.Flags().Float64("temperature", 0, "sampling temperature")
	cmd.Flags().Int("max-tokens", 0, "maximum completion tokens")
	cmd.Flags().Float64("top-p", 0, "nucleus sampling probability")
	cmd.Flags().Float64("frequency-penalty", 0, "frequency penalty")
	cmd.Flags().Float64("presence-penalty", 0, "presence penalty")
	cmd.Flags().StringSlice("stop", nil, "stop sequences")

	return cmd
}

// chatSettings applies only the flags the user actually set on top of the configured defaults.
func chatSettings(cmd *cobra.Command, defaults chat.Settings) chat.Settings {
	settings := defaults
	flags := cmd.Flags()

	if flags.Changed("system") {
		settings.SystemPrompt, _ = flags.GetString("system")
	}
	if flags.Changed("temperature") {
		settings.Temperature, _ = flags.GetFloat64("temperature")
	}
	if flags.Changed("max-tokens") {
		settings.MaxTokens, _ = flags.GetInt("max-tokens")
	}
	if flags.Changed("top-p") {
		settings.TopP, _ = flags.GetFloat64("top-p")
	}
	if flags.Changed("frequency-penalty") {
		settings.FrequencyPenalty, _ = flags.GetFloat64("frequency-penalty")
	}
	if flags.Changed("presence-penalty") {
		settings.PresencePenalty, _ = flags.GetFloat64("presence-penalty")
	}
	if flags.Changed("stop") {
		settings.Stop, _ = flags.GetStringSlice("stop")
	}

	return settings
}

func runChatCmd(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}

	services, err := app.NewServices(a.Config)
	if err != nil {
		return err
	}
	defer services.Close()

	client, err := services.ChatClient()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	renderer := newMarkdownRenderer()
	conversation := chat.NewConversation(client, chatSettings(cmd, chat.SettingsFromConfig(a.Config.Chat)))

	prompt := strings.TrimSpace(strings.Join(args, " "))
	if prompt != "" {
		reply, err := conversation.Ask(ctx, prompt)
		if err != nil {
			return err
		}
		printMarkdown(renderer, reply)
		return nil
	}

	fmt.Println(styleDim.Render("type a message, /clear or /exit"))
	scanner := bufio.NewScanner(os.Stdin)

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
		case "/clear":
			conversation.Clear()
			fmt.Println(styleSuccess.Render("conversation cleared"))
			continue
		}

		reply, err := conversation.Ask(ctx, line)
		if err != nil {
			fmt.Println(styledError("chat failed", err.Error()))
			continue
		}
		printMarkdown(renderer, reply)
	}
}
