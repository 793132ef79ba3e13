package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Yates-Labs/reseek/internal/engine"
	"github.com/Yates-Labs/reseek/internal/orchestrator"
)

var (
	askEvent   string
	askTickers []string
	askSuggest bool
	askExport  string
	verbose    bool
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a question about ingested earnings calls",
	Long: `Ask a natural language question about ingested earnings calls using RAG
(Retrieval-Augmented Generation).

This command:
1. Retrieves the transcript chunks most similar to your question, from one
   event (--event) or every event of a set of tickers (--tickers)
2. Adds the event summary to the context when asking about one event
3. Generates an answer that quotes the transcript with timestamps
4. Resolves each quote back to the chunk it came from

Required environment variables:
  OPENAI_API_KEY     - OpenAI API key for embeddings and LLM
  MILVUS_ADDRESS     - Milvus server address (default: localhost:19530)

Examples:
  reseek ask "What drove revenue growth?" --event 3f1c9a0e-8d0b-5b7e-9a53-1d2f3e4a5b6c
  reseek ask "How are margins trending?" --tickers AAPL,MSFT --verbose
  reseek ask --suggest --event 3f1c9a0e-8d0b-5b7e-9a53-1d2f3e4a5b6c`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)
	askCmd.Flags().StringVar(&askEvent, "event", "", "Event ID to ask about")
	askCmd.Flags().StringSliceVar(&askTickers, "tickers", nil, "Comma-separated tickers to ask about")
	askCmd.Flags().BoolVar(&askSuggest, "suggest", false, "Print suggested questions for --event")
	askCmd.Flags().StringVar(&askExport, "export", "", "Export the answer to JSON file: --export <filename>")
	askCmd.Flags().BoolVar(&verbose, "verbose", false, "Show source excerpts")
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if !askSuggest && len(args) == 0 {
		return fmt.Errorf("a question is required")
	}

	pipeline, err := orchestrator.NewPipeline(ctx, appConfig, appLog)
	if err != nil {
		return fmt.Errorf("failed to create pipeline: %w", err)
	}
	defer pipeline.Close()

	if askSuggest {
		fmt.Println()
		fmt.Println(headerStyle.Render("Suggested questions:"))
		for _, q := range pipeline.SuggestQuestions(ctx, askEvent) {
			fmt.Println(summaryStyle.Render("  • " + q))
		}
		if len(args) == 0 {
			return nil
		}
	}

	question := args[0]
	fmt.Println()
	fmt.Println(headerStyle.Render("Question:"))
	fmt.Println(summaryStyle.Render(question))
	fmt.Println()

	answer := pipeline.Ask(ctx, question, orchestrator.Scope{EventID: askEvent, Tickers: askTickers})

	if askExport != "" {
		return writeExport(askExport, answer)
	}
	printAnswer(answer)
	return nil
}

func printAnswer(answer engine.Answer) {
	fmt.Println(headerStyle.Render("Answer:"))
	fmt.Println()
	fmt.Println(textStyle.Render(strings.TrimSpace(answer.Text)))
	fmt.Println()

	if len(answer.Citations) > 0 {
		fmt.Println(headerStyle.Render("Citations:"))
		for i, c := range answer.Citations {
			marker := successStyle.Render("✓")
			ref := "chunk " + orDash(c.ChunkID)
			if c.ChunkID == nil {
				marker = errorStyle.Render("✗")
				ref = "not found in retrieved excerpts"
			}
			fmt.Printf("%s %s %s\n", marker,
				accentStyle.Render(fmt.Sprintf("[%d] %s", i+1, c.Timestamp)),
				textStyle.Render(fmt.Sprintf("%q", c.Quote)))
			fmt.Println(mutedStyle.Render("    " + ref))
		}
		fmt.Println()
	}

	if verbose && len(answer.Sources) > 0 {
		fmt.Println(headerStyle.Render("Sources:"))
		for _, s := range answer.Sources {
			fmt.Println(accentStyle.Render("["+orDash(s.Timestamp)+"]") + " " + mutedStyle.Render(s.Text))
		}
		fmt.Println()
	}
}
