package cmd

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Yates-Labs/reseek/internal/orchestrator"
	"github.com/Yates-Labs/reseek/internal/provider"
)

var (
	ingestFile          string
	ingestTicker        string
	ingestDate          string
	ingestProviderEvent string
	ingestCheckNew      bool
	ingestTickers       []string
	ingestConcurrency   int
	ingestExport        string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Ingest an earnings call transcript",
	Long: `Ingest an earnings call transcript: store it, chunk and index it for
retrieval, extract the analyst Q&A and write its summary.

Exactly one source is required:
  --file FILE --ticker T     a local transcript file
  --provider-event ID        a transcript fetched from the configured provider
  --check-new --tickers A,B  every transcript the provider reports as new

Required environment variables:
  OPENAI_API_KEY     - OpenAI API key for embeddings (and completions by default)
  MILVUS_ADDRESS     - Milvus server address (default: localhost:19530)

Examples:
  reseek ingest --file aapl-q3.txt --ticker AAPL --date 2024-10-31
  reseek ingest --provider-event mock_AAPL_20241017
  reseek ingest --check-new --tickers AAPL,MSFT`,
	Args: cobra.NoArgs,
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	ingestCmd.Flags().StringVar(&ingestFile, "file", "", "Transcript file to ingest")
	ingestCmd.Flags().StringVar(&ingestTicker, "ticker", "", "Ticker of the transcript file")
	ingestCmd.Flags().StringVar(&ingestDate, "date", "", "Call date of the transcript file, YYYY-MM-DD (default today)")
	ingestCmd.Flags().StringVar(&ingestProviderEvent, "provider-event", "", "Provider event ID to fetch and ingest")
	ingestCmd.Flags().BoolVar(&ingestCheckNew, "check-new", false, "Ingest every new transcript for --tickers")
	ingestCmd.Flags().StringSliceVar(&ingestTickers, "tickers", nil, "Comma-separated tickers for --check-new")
	ingestCmd.Flags().IntVar(&ingestConcurrency, "concurrency", 2, "Transcripts ingested at once with --check-new")
	ingestCmd.Flags().StringVar(&ingestExport, "export", "", "Export ingestion results to JSON file: --export <filename>")
	ingestCmd.MarkFlagsMutuallyExclusive("file", "provider-event", "check-new")
	ingestCmd.MarkFlagsOneRequired("file", "provider-event", "check-new")
	ingestCmd.MarkFlagsRequiredTogether("file", "ticker")
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if ingestCheckNew && len(ingestTickers) == 0 {
		return fmt.Errorf("--check-new requires --tickers")
	}

	pipeline, err := orchestrator.NewPipeline(ctx, appConfig, appLog)
	if err != nil {
		return fmt.Errorf("failed to create pipeline: %w", err)
	}
	defer pipeline.Close()

	var (
		results   []*orchestrator.IngestResult
		ingestErr error
	)
	switch {
	case ingestCheckNew:
		fmt.Println(mutedStyle.Render("→ Checking for new transcripts..."))
		results, ingestErr = pipeline.CheckNew(ctx, ingestTickers, ingestConcurrency)

	case ingestProviderEvent != "":
		fmt.Println(mutedStyle.Render("→ Fetching " + ingestProviderEvent + "..."))
		var res *orchestrator.IngestResult
		res, ingestErr = pipeline.IngestProviderEvent(ctx, ingestProviderEvent)
		results = append(results, res)

	default:
		data, err := readManualTranscript()
		if err != nil {
			return err
		}
		fmt.Println(mutedStyle.Render("→ Ingesting " + ingestFile + "..."))
		var res *orchestrator.IngestResult
		res, ingestErr = pipeline.IngestTranscript(ctx, orchestrator.SourceManual, data)
		results = append(results, res)
	}

	printed := 0
	for _, res := range results {
		if res == nil {
			continue
		}
		printIngestResult(res)
		printed++
	}
	if printed == 0 && ingestErr == nil {
		fmt.Println("No new transcripts found")
	}

	if ingestExport != "" && printed > 0 {
		if err := writeExport(ingestExport, results); err != nil {
			return errors.Join(ingestErr, err)
		}
	}
	return ingestErr
}

func readManualTranscript() (provider.TranscriptData, error) {
	text, err := os.ReadFile(ingestFile)
	if err != nil {
		return provider.TranscriptData{}, fmt.Errorf("failed to read transcript: %w", err)
	}

	date := time.Now()
	if ingestDate != "" {
		date, err = time.Parse(time.DateOnly, ingestDate)
		if err != nil {
			return provider.TranscriptData{}, fmt.Errorf("invalid --date %q, expected YYYY-MM-DD", ingestDate)
		}
	}
	return orchestrator.ManualTranscript(ingestTicker, string(text), date), nil
}

func printIngestResult(res *orchestrator.IngestResult) {
	fmt.Println()
	fmt.Println(headerStyle.Render(res.Ticker) + " " + mutedStyle.Render("event "+res.EventID))

	status := successStyle.Render(fmt.Sprintf("✓ Indexed %d chunks", res.Chunks))
	if len(res.FailedChunks) > 0 {
		status += " " + errorStyle.Render(fmt.Sprintf("(%d failed: %v)", len(res.FailedChunks), res.FailedChunks))
	}
	fmt.Println(status)
	fmt.Println(successStyle.Render(fmt.Sprintf("✓ Extracted %d Q&A exchanges", len(res.Exchanges))))

	if res.Summary != nil {
		fmt.Println(successStyle.Render(fmt.Sprintf("✓ Summarized with %d quotes", len(res.Summary.ExtractiveQuotes))))
		for _, b := range res.Summary.Bullets() {
			fmt.Println(textStyle.Render("  • " + b))
		}
	}
}
