package cmd

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Yates-Labs/reseek/internal/qa"
)

var (
	qaExport  string
	qaVerbose bool
)

var qaCmd = &cobra.Command{
	Use:   "qa [file]",
	Short: "Extract analyst Q&A exchanges from a transcript file",
	Long: `Extract the analyst question and answer exchanges from the Q&A portion of a
timestamped transcript, with a topic and a deflection score for each answer.

Examples:
  reseek qa transcript.txt
  reseek qa transcript.txt --verbose
  reseek qa transcript.txt --export qa.json`,
	Args: cobra.ExactArgs(1),
	RunE: runQA,
}

func init() {
	rootCmd.AddCommand(qaCmd)
	qaCmd.Flags().StringVar(&qaExport, "export", "", "Export exchanges to JSON file: --export <filename>")
	qaCmd.Flags().BoolVar(&qaVerbose, "verbose", false, "Print full question and answer text")
}

func runQA(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read transcript: %w", err)
	}

	exchanges := qa.Extract(string(data))
	if qaExport != "" {
		return writeExport(qaExport, exchanges)
	}
	if len(exchanges) == 0 {
		fmt.Println("No Q&A exchanges found")
		return nil
	}

	if qaVerbose {
		printExchanges(exchanges)
		return nil
	}

	cols := []column{
		{title: "#", width: 4, numeric: true},
		{title: "TIME", width: 10},
		{title: "ANALYST", width: 18},
		{title: "FIRM", width: 18},
		{title: "TOPIC", width: 14},
		{title: "DEFLECT", width: 9, numeric: true},
		{title: "QUESTION", width: 40},
	}
	rows := make([][]string, len(exchanges))
	for i, ex := range exchanges {
		rows[i] = []string{
			strconv.Itoa(ex.QuestionIndex + 1),
			orDash(ex.QuestionTimestamp),
			orDash(ex.AnalystName),
			orDash(ex.AnalystFirm),
			string(ex.Topic),
			strconv.Itoa(ex.DeflectionScore),
			ex.QuestionText,
		}
	}
	printTable(cols, rows)

	fmt.Println()
	fmt.Println(summaryStyle.Render(fmt.Sprintf("Total: %d exchanges", len(exchanges))))
	return nil
}

func printExchanges(exchanges []qa.Exchange) {
	for _, ex := range exchanges {
		analyst := orDash(ex.AnalystName)
		if ex.AnalystFirm != nil {
			analyst += ", " + *ex.AnalystFirm
		}

		fmt.Println(headerStyle.Render(fmt.Sprintf("Q%d", ex.QuestionIndex+1)) + " " +
			accentStyle.Render(analyst) + " " +
			mutedStyle.Render(fmt.Sprintf("[%s] topic=%s deflection=%d", orDash(ex.QuestionTimestamp), ex.Topic, ex.DeflectionScore)))
		fmt.Println(textStyle.Render(ex.QuestionText))
		fmt.Println(mutedStyle.Render(fmt.Sprintf("A [%s]", orDash(ex.AnswerTimestamp))))
		fmt.Println(textStyle.Render(ex.AnswerText))
		fmt.Println()
	}
}
