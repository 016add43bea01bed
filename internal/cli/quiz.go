package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/erg0nix/konsilium/internal/app"
	"github.com/erg0nix/konsilium/internal/quiz"
)

func newQuizCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quiz",
		Short: "Play a multiple-choice quiz written by the model",
		RunE:  runQuizCmd,
	}

	cmd.Flags().String("topic", quiz.DefaultTopic, "quiz topic")
	cmd.Flags().String("difficulty", quiz.DefaultDifficulty, "easy, medium or hard")
	cmd.Flags().Int("questions", 0, "number of questions (default from config)")

	return cmd
}

func runQuizCmd(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}

	services, err := app.NewServices(a.Config)
	if err != nil {
		return err
	}
	defer services.Close()

	cfg := quiz.ConfigFromSettings(a.Config.Quiz)
	cfg.Topic, _ = cmd.Flags().GetString("topic")
	cfg.Difficulty, _ = cmd.Flags().GetString("difficulty")
	if n, _ := cmd.Flags().GetInt("questions"); n > 0 {
		cfg.Questions = n
	}

	session, err := services.QuizSession(cfg)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	question, err := session.Start(ctx)
	if err != nil {
		return fmt.Errorf("start quiz: %w", err)
	}

	return playQuiz(ctx, session, question, bufio.NewScanner(os.Stdin))
}

func playQuiz(ctx context.Context, session *quiz.Session, question *quiz.Question, scanner *bufio.Scanner) error {
	for question != nil {
		printQuestion(question, session.Total())

		fmt.Print(stylePromptAction.Render("answer") + stylePromptHint.Render(" ["+strings.Join(question.OptionKeys(), "/")+"]: "))
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}

		feedback, err := session.Answer(ctx, scanner.Text())
		if err != nil {
			fmt.Println(styledError(err.Error()))
			continue
		}

		if feedback.Correct {
			fmt.Println(styleSuccess.Render("correct"))
		} else {
			fmt.Println(styleError.Render("wrong, the answer was " + feedback.CorrectKey))
		}
		if feedback.Explanation != "" {
			fmt.Println(styleDim.Render(feedback.Explanation))
		}
		fmt.Println()

		if feedback.Final != nil {
			fmt.Println(styleHeading.Render(fmt.Sprintf("Score: %d/%d", feedback.Final.Score, feedback.Final.Total)))
			if feedback.Final.Comment != "" {
				fmt.Println(feedback.Final.Comment)
			}
			return nil
		}
		question = feedback.Next
	}
	return nil
}

func printQuestion(q *quiz.Question, total int) {
	if q.Total > 0 {
		total = q.Total
	}

	fmt.Println(styleHeading.Render(fmt.Sprintf("Question %d/%d", q.Number, total)))
	fmt.Println(q.Text)
	for _, key := range q.OptionKeys() {
		fmt.Println("  " + styleToolName.Render(key) + "  " + q.Options[key])
	}
}
