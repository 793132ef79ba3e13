package cmd

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Yates-Labs/reseek/internal/tokenizer"
	"github.com/Yates-Labs/reseek/internal/transcript"
)

var (
	chunkMaxTokens int
	chunkOverlap   int
	chunkTokenizer string
	chunkExport    string
)

var chunkCmd = &cobra.Command{
	Use:   "chunk [file]",
	Short: "Split a transcript file into chunks",
	Long: `Split a transcript file into overlapping token windows and show the offsets,
token counts, speaker and timestamp found in each chunk.

Chunking parameters default to the configured values.

Examples:
  reseek chunk transcript.txt
  reseek chunk transcript.txt --max-tokens 200 --overlap 20 --tokenizer rune
  reseek chunk transcript.txt --export chunks.json`,
	Args: cobra.ExactArgs(1),
	RunE: runChunk,
}

func init() {
	rootCmd.AddCommand(chunkCmd)
	chunkCmd.Flags().IntVar(&chunkMaxTokens, "max-tokens", 0, "Tokens per chunk (default from config)")
	chunkCmd.Flags().IntVar(&chunkOverlap, "overlap", -1, "Tokens shared by consecutive chunks (default from config)")
	chunkCmd.Flags().StringVar(&chunkTokenizer, "tokenizer", "", "Tokenizer: cl100k_base or rune (default from config)")
	chunkCmd.Flags().StringVar(&chunkExport, "export", "", "Export chunks to JSON file: --export <filename>")
}

func runChunk(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read transcript: %w", err)
	}

	settings := appConfig.Chunking
	if chunkMaxTokens > 0 {
		settings.MaxTokens = chunkMaxTokens
	}
	if chunkOverlap >= 0 {
		settings.Overlap = chunkOverlap
	}
	if chunkTokenizer != "" {
		settings.Tokenizer = chunkTokenizer
	}

	tok, err := tokenizer.New(settings.Tokenizer)
	if err != nil {
		return err
	}
	chunks, err := transcript.Segment(tok, string(data), settings.MaxTokens, settings.Overlap)
	if err != nil {
		return err
	}

	if chunkExport != "" {
		return writeExport(chunkExport, chunks)
	}
	if len(chunks) == 0 {
		fmt.Println("Transcript is empty")
		return nil
	}

	cols := []column{
		{title: "CHUNK", width: 7, numeric: true},
		{title: "TOKENS", width: 8, numeric: true},
		{title: "START", width: 8, numeric: true},
		{title: "END", width: 8, numeric: true},
		{title: "TIME", width: 10},
		{title: "SPEAKER", width: 18},
		{title: "TEXT", width: 44},
	}
	rows := make([][]string, len(chunks))
	for i, c := range chunks {
		rows[i] = []string{
			strconv.Itoa(c.Index),
			strconv.Itoa(c.TokenCount),
			strconv.Itoa(c.StartToken),
			strconv.Itoa(c.EndToken),
			orDash(c.StartTime),
			orDash(c.Speaker),
			c.Text,
		}
	}
	printTable(cols, rows)

	fmt.Println()
	fmt.Println(summaryStyle.Render(fmt.Sprintf("Total: %d chunks, %d tokens (%s, max %d, overlap %d)",
		len(chunks), chunks[len(chunks)-1].EndToken, tok.Name(), settings.MaxTokens, settings.Overlap)))
	return nil
}
