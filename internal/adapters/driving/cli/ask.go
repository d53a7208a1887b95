package cli

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

var (
	askQuestions []string
	askNamespace string
	askTopK      int
	askJSON      bool
)

var askCmd = &cobra.Command{
	Use:   "ask <document-url>",
	Short: "Answer questions about a document",
	Long: `Download a document, index it and answer questions about it without
starting a server.

Questions are given with -q (repeatable). When none are given and stdin
is a terminal, questions are read one per line until an empty line;
otherwise they are read from stdin, one per line.

Examples:
  docqa ask https://example.com/policy.pdf -q "What is the grace period?"
  cat questions.txt | docqa ask https://example.com/policy.pdf --json`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringArrayVarP(&askQuestions, "question", "q", nil, "question to answer (repeatable)")
	askCmd.Flags().StringVarP(&askNamespace, "namespace", "n", domain.DefaultNamespace, "vector index namespace")
	askCmd.Flags().IntVarP(&askTopK, "top-k", "k", 0, "chunks retrieved per question (default from config)")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "output answers as JSON")
	rootCmd.AddCommand(askCmd)
}

// askOutput is the --json output, shaped like the HTTP response.
type askOutput struct {
	Answers    []string `json:"answers"`
	ChunkCount int      `json:"chunk_count"`
	LatencyMS  int64    `json:"latency_ms"`
}

func runAsk(cmd *cobra.Command, args []string) error {
	if err := requireSettings(); err != nil {
		return err
	}
	if cmd.Flags().Changed("top-k") && (askTopK < 1 || askTopK > domain.MaxTopK) {
		return fmt.Errorf("--top-k must be between 1 and %d", domain.MaxTopK)
	}

	questions := askQuestions
	if len(questions) == 0 {
		var err error
		questions, err = readQuestions(cmd, os.Stdin, isTerminal(os.Stdin))
		if err != nil {
			return err
		}
	}
	if len(questions) == 0 {
		return errors.New("no questions given; use -q or pipe them on stdin")
	}

	a, err := buildApp(cmd.Context(), settings)
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.qa.Run(cmd.Context(), domain.RunRequest{
		DocumentURL: args[0],
		Questions:   questions,
		Namespace:   askNamespace,
		TopK:        askTopK,
	})
	if err != nil {
		return fmt.Errorf("%s failed: %w", domain.FailedStage(err), err)
	}

	if askJSON {
		return outputAskJSON(cmd, result)
	}
	outputAskText(cmd, questions, result)
	return nil
}

// readQuestions reads one question per line. Interactive input stops at
// the first empty line; piped input skips blank lines.
func readQuestions(cmd *cobra.Command, in io.Reader, interactive bool) ([]string, error) {
	if interactive {
		cmd.Println(mutedStyle.Render("Enter questions, one per line. Finish with an empty line."))
	}

	var questions []string
	scanner := bufio.NewScanner(in)
	for {
		if interactive {
			cmd.Print(questionStyle.Render("? "))
		}
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			if interactive {
				break
			}
			continue
		}
		questions = append(questions, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading questions: %w", err)
	}
	return questions, nil
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

func outputAskJSON(cmd *cobra.Command, result *domain.RunResult) error {
	data, err := json.MarshalIndent(askOutput{
		Answers:    result.Answers,
		ChunkCount: result.ChunkCount,
		LatencyMS:  result.Latency.Milliseconds(),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal answers: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputAskText(cmd *cobra.Command, questions []string, result *domain.RunResult) {
	for i, q := range questions {
		cmd.Println(questionStyle.Render(fmt.Sprintf("[%d] %s", i+1, q)))
		answer := result.Answers[i]
		style := answerStyle
		if answer == domain.GenerationFailedAnswer || answer == domain.NoContextAnswer {
			style = style.Foreground(mutedStyle.GetForeground())
		}
		cmd.Println(style.Render(answer))
		cmd.Println()
	}
	cmd.Println(mutedStyle.Render(fmt.Sprintf("%d chunks indexed, %s",
		result.ChunkCount, result.Latency.Round(time.Millisecond))))
}
