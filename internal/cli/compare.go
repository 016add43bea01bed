package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/erg0nix/konsilium/internal/app"
	"github.com/erg0nix/konsilium/internal/compare"
)

func newCompareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare <question>",
		Short: "Ask every configured model the same question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			services, err := app.NewServices(a.Config)
			if err != nil {
				return err
			}
			defer services.Close()

			withJudge, _ := cmd.Flags().GetBool("judge")
			question := strings.Join(args, " ")
			renderer := newMarkdownRenderer()

			outcomes := services.Comparer.CompareModels(cmd.Context(), question, compare.TargetsFromConfig(a.Config.Compare.Models))
			printOutcomes(renderer, outcomes)

			if !withJudge {
				return nil
			}

			judge := compare.TargetFromConfig(a.Config.Compare.Judge)
			fmt.Println(styleDim.Render("asking " + judge.Name + " to judge..."))

			verdict, err := services.Comparer.Judge(cmd.Context(), question, outcomes, judge)
			if err != nil {
				fmt.Println(styledError("judge failed", err.Error()))
				return nil
			}

			fmt.Println(styleHeading.Render("Verdict") + " " + styleDim.Render(judge.Name))
			printMarkdown(renderer, verdict.Content)
			fmt.Println(styleDim.Render(formatElapsed(verdict.Elapsed) + "  " + formatTokens(verdict.Tokens) + "  " + formatCost(verdict.Tokens.CostUSD)))
			return nil
		},
	}

	cmd.Flags().Bool("judge", false, "let the judge model rank the answers blindly")
	return cmd
}

func newTemperatureCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "temperature <question>",
		Short: "Ask one model the same question at several temperatures",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			services, err := app.NewServices(a.Config)
			if err != nil {
				return err
			}
			defer services.Close()

			outcomes := services.Comparer.CompareTemperatures(
				cmd.Context(),
				strings.Join(args, " "),
				compare.TargetFromConfig(a.Config.Compare.Temperature),
				a.Config.Compare.Temperatures,
			)
			printOutcomes(newMarkdownRenderer(), outcomes)
			return nil
		},
	}
}

func newExpertsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "experts <question>",
		Short: "Ask a panel of expert personas",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}

			expertsFile, _ := cmd.Flags().GetString("experts-file")
			if expertsFile == "" {
				expertsFile = a.Config.Compare.ExpertsFile
			}

			experts, err := compare.LoadExperts(expertsFile)
			if err != nil {
				return err
			}

			services, err := app.NewServices(a.Config)
			if err != nil {
				return err
			}
			defer services.Close()

			outcomes := services.Comparer.AskExperts(
				cmd.Context(),
				strings.Join(args, " "),
				compare.TargetFromConfig(a.Config.Compare.Experts),
				experts,
			)
			printOutcomes(newMarkdownRenderer(), outcomes)
			return nil
		},
	}

	cmd.Flags().String("experts-file", "", "YAML file with the expert panel")
	return cmd
}

func printOutcomes(renderer *glamour.TermRenderer, outcomes []compare.Outcome) {
	for _, o := range outcomes {
		fmt.Println(styleHeading.Render(o.Label) + " " + styleDim.Render(o.Model))
		if !o.OK() {
			fmt.Println(styledError(o.Err.Error()))
			fmt.Println()
			continue
		}
		printMarkdown(renderer, o.Content)
		fmt.Println()
	}

	t := newTable("ANSWER", "TIME", "TOKENS", "COST")
	for _, o := range outcomes {
		if !o.OK() {
			t.Row(o.Label, styleError.Render("failed"), "-", "-")
			continue
		}
		t.Row(o.Label, formatElapsed(o.Elapsed), formatTokens(o.Tokens), formatCost(o.Tokens.CostUSD))
	}
	t.Row("total", "", "", formatCost(compare.TotalCost(outcomes)))
	fmt.Println(t.Render())
}

func formatElapsed(d time.Duration) string {
	return d.Round(10 * time.Millisecond).String()
}
