package reporting

import (
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/alphabot/alpha-bot/internal/risk"
	"github.com/alphabot/alpha-bot/pkg/types"
)

// PrintStartupInfo renders the startup banner table.
func PrintStartupInfo(pairs []string, spotExchange, futuresExchange, environment string, startingCapital float64) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle("ALPHA BOT INITIALIZATION")
	t.SetStyle(table.StyleRounded)

	t.AppendRows([]table.Row{
		{"📊 Pairs", strings.Join(pairs, ", ")},
		{"🏪 Spot Exchange", spotExchange},
		{"🏪 Futures Exchange", futuresExchange},
		{"🔧 Environment", environment},
		{"💰 Starting Capital", fmt.Sprintf("$%.2f", startingCapital)},
	})

	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, WidthMin: 20, WidthMax: 20, Align: text.AlignLeft},
		{Number: 2, WidthMin: 30, WidthMax: 45, Align: text.AlignLeft},
	})

	t.Render()
	fmt.Println()
}

// PrintRiskStatus renders the periodic risk snapshot table.
func PrintRiskStatus(status risk.Status) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle("RISK STATUS")
	t.SetStyle(table.StyleRounded)

	pauseState := "active"
	if status.IsPaused {
		pauseState = fmt.Sprintf("PAUSED (%s)", status.PauseReason)
	}

	t.AppendRows([]table.Row{
		{"💰 Capital", fmt.Sprintf("$%.2f", status.Capital)},
		{"📈 Daily PnL", fmt.Sprintf("$%+.2f", status.DailyPnL)},
		{"📉 Daily Loss", fmt.Sprintf("%.2f%%", status.DailyLossPct)},
		{"🎯 Exposure", fmt.Sprintf("$%.2f (%.1f%%)", status.TotalExposure, status.TotalExposurePct)},
		{"🎯 Futures Notional", fmt.Sprintf("$%.2f", status.FuturesNotional)},
		{"✅ Win Rate", fmt.Sprintf("%.1f%% over %d trades", status.WinRate, status.TotalTrades)},
		{"📊 Open Positions", fmt.Sprintf("%d (%s)", status.OpenPositions, strings.Join(status.PairsWithPositions, ", "))},
		{"🚦 Trading", pauseState},
	})

	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, WidthMin: 20, WidthMax: 20, Align: text.AlignLeft},
		{Number: 2, WidthMin: 30, WidthMax: 45, Align: text.AlignLeft},
	})

	t.Render()
	fmt.Println()
}

// PrintOpenPositions renders the open positions table.
func PrintOpenPositions(positions []types.Position) {
	if len(positions) == 0 {
		fmt.Println("No open positions")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle("OPEN POSITIONS")
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Pair", "Type", "Side", "Entry", "Amount", "Leverage", "Collateral", "Strategy"})

	for _, p := range positions {
		t.AppendRow(table.Row{
			p.Pair,
			string(p.PositionType),
			string(p.Side),
			fmt.Sprintf("$%.2f", p.EntryPrice),
			fmt.Sprintf("%.6f", p.Amount),
			fmt.Sprintf("%dx", p.Leverage),
			fmt.Sprintf("$%.2f", p.Value()),
			string(p.Strategy),
		})
	}

	t.Render()
	fmt.Println()
}
