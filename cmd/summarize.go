package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Yates-Labs/reseek/internal/orchestrator"
	"github.com/Yates-Labs/reseek/internal/summary"
)

var (
	summarizeEvent  string
	summarizeFile   string
	summarizeExport string
)

var summarizeCmd = &cobra.Command{
	Use:   "summarize",
	Short: "Summarize an earnings call",
	Long: `Write the two-pass summary of an earnings call: verbatim quotes first, then
highlights, a guidance table and a delta analysis built only from those quotes.

--event regenerates and stores the summary of an ingested event (needs
DATABASE_URL). --file summarizes a local transcript without storing anything.

Examples:
  reseek summarize --event 3f1c9a0e-8d0b-5b7e-9a53-1d2f3e4a5b6c
  reseek summarize --file transcript.txt --export summary.json`,
	Args: cobra.NoArgs,
	RunE: runSummarize,
}

func init() {
	rootCmd.AddCommand(summarizeCmd)
	summarizeCmd.Flags().StringVar(&summarizeEvent, "event", "", "Event ID of an ingested transcript")
	summarizeCmd.Flags().StringVar(&summarizeFile, "file", "", "Transcript file to summarize")
	summarizeCmd.Flags().StringVar(&summarizeExport, "export", "", "Export the summary to JSON file: --export <filename>")
	summarizeCmd.MarkFlagsMutuallyExclusive("event", "file")
	summarizeCmd.MarkFlagsOneRequired("event", "file")
}

func runSummarize(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	var sum *summary.Summary
	if summarizeEvent != "" {
		pipeline, err := orchestrator.NewPipeline(ctx, appConfig, appLog)
		if err != nil {
			return fmt.Errorf("failed to create pipeline: %w", err)
		}
		defer pipeline.Close()

		if sum, err = pipeline.Resummarize(ctx, summarizeEvent); err != nil {
			return err
		}
	} else {
		text, err := os.ReadFile(summarizeFile)
		if err != nil {
			return fmt.Errorf("failed to read transcript: %w", err)
		}
		completer, err := orchestrator.NewCompleter(appConfig)
		if err != nil {
			return err
		}
		s := summary.New(completer, appLog, summary.Options{Timeout: appConfig.CallTimeout})
		result := s.Summarize(ctx, string(text))
		sum = &result
	}

	if summarizeExport != "" {
		return writeExport(summarizeExport, sum)
	}
	printSummary(sum)
	return nil
}

func printSummary(sum *summary.Summary) {
	fmt.Println()
	fmt.Println(headerStyle.Render("QuickTake"))
	if len(sum.Quicktake) == 0 {
		fmt.Println(mutedStyle.Render("  no highlights"))
	}
	for _, h := range sum.Quicktake {
		line := textStyle.Render("  • " + h.Bullet)
		if h.Timestamp != nil {
			line += " " + mutedStyle.Render("["+*h.Timestamp+"]")
		}
		fmt.Println(line)
	}

	if len(sum.GuidanceTable) > 0 {
		fmt.Println()
		fmt.Println(headerStyle.Render("Guidance"))
		cols := []column{
			{title: "METRIC", width: 20},
			{title: "PERIOD", width: 12},
			{title: "VALUE", width: 20},
			{title: "CHANGE", width: 14},
			{title: "TIME", width: 10},
		}
		rows := make([][]string, len(sum.GuidanceTable))
		for i, g := range sum.GuidanceTable {
			rows[i] = []string{g.Metric, g.Period, g.Value, g.Change, orDash(g.Timestamp)}
		}
		printTable(cols, rows)
	}

	if sum.DeltaAnalysis.Summary != "" || len(sum.DeltaAnalysis.Changes) > 0 {
		fmt.Println()
		fmt.Println(headerStyle.Render("Delta Analysis"))
		if sum.DeltaAnalysis.Summary != "" {
			fmt.Println(textStyle.Render("  " + sum.DeltaAnalysis.Summary))
		}
		for _, d := range sum.DeltaAnalysis.Changes {
			direction := ""
			if d.Direction != "" {
				direction = " (" + d.Direction + ")"
			}
			fmt.Println(accentStyle.Render("  "+d.Topic+direction) + textStyle.Render(": "+d.Detail))
		}
	}

	verified := 0
	for _, q := range sum.ExtractiveQuotes {
		if q.Verified {
			verified++
		}
	}
	fmt.Println()
	fmt.Println(summaryStyle.Render(fmt.Sprintf("Grounded on %d quotes (%d verified)", len(sum.ExtractiveQuotes), verified)))
}
