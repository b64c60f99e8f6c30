package reporting

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/alphabot/alpha-bot/pkg/types"
)

// CSVReporter writes the closed-trade ledger as CSV.
type CSVReporter struct{}

func NewCSVReporter() *CSVReporter {
	return &CSVReporter{}
}

// WriteTrades writes the ledger to path. An .xlsx path delegates to
// the Excel reporter's trades sheet via a plain CSV rename guard.
func (r *CSVReporter) WriteTrades(trades []types.TradeResult, path string) error {
	if strings.HasSuffix(strings.ToLower(path), ".xlsx") {
		return fmt.Errorf("use ExcelReporter for .xlsx output")
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write([]string{"Closed_At", "Pair", "Strategy", "PnL_$", "Win_Loss"}); err != nil {
		return err
	}

	for _, trade := range trades {
		outcome := "WIN"
		if !trade.Win {
			outcome = "LOSS"
		}
		record := []string{
			trade.ClosedAt.Format("2006-01-02 15:04:05"),
			trade.Pair,
			string(trade.Strategy),
			strconv.FormatFloat(trade.PnL, 'f', 4, 64),
			outcome,
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	return nil
}
