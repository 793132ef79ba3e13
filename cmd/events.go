package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Yates-Labs/reseek/internal/orchestrator"
	"github.com/Yates-Labs/reseek/internal/provider"
	"github.com/Yates-Labs/reseek/internal/store"
)

var eventTickers []string

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "List upcoming earnings calls",
	Long: `List upcoming earnings calls for a set of tickers from the configured provider.

When DATABASE_URL is set the events are also recorded, so they can be ingested
later by provider event ID.

Examples:
  reseek events --tickers AAPL,MSFT
  RESEEK_PROVIDER=finnhub reseek events --tickers NVDA`,
	Args: cobra.NoArgs,
	RunE: runEvents,
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.Flags().StringSliceVar(&eventTickers, "tickers", nil, "Comma-separated tickers")
	_ = eventsCmd.MarkFlagRequired("tickers")
}

func runEvents(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	prov, err := orchestrator.NewProvider(appConfig, appLog)
	if err != nil {
		return err
	}
	events, err := prov.FetchUpcoming(ctx, eventTickers)
	if err != nil {
		return err
	}

	if appConfig.DatabaseURL != "" {
		st, err := store.Open(appConfig.DatabaseURL, appLog)
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.AutoMigrate(ctx); err != nil {
			return err
		}
		if err := orchestrator.RecordUpcoming(ctx, st, prov.Name(), events); err != nil {
			return err
		}
	}

	if len(events) == 0 {
		fmt.Println("No upcoming events found")
		return nil
	}
	printEvents(events)
	return nil
}

func printEvents(events []provider.EventInfo) {
	cols := []column{
		{title: "TICKER", width: 8},
		{title: "COMPANY", width: 26},
		{title: "DATE", width: 14},
		{title: "QUARTER", width: 10},
		{title: "EVENT ID", width: 30},
	}
	rows := make([][]string, len(events))
	for i, ev := range events {
		quarter := ev.Quarter
		if ev.FiscalYear > 0 {
			quarter = fmt.Sprintf("%s %d", ev.Quarter, ev.FiscalYear)
		}
		rows[i] = []string{ev.Ticker, ev.CompanyName, ev.EventDate.Format("Jan 02, 2006"), quarter, ev.ProviderEventID}
	}
	printTable(cols, rows)

	fmt.Println()
	fmt.Println(summaryStyle.Render(fmt.Sprintf("Total: %d upcoming events", len(events))))
}
