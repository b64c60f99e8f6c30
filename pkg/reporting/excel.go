package reporting

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"github.com/alphabot/alpha-bot/internal/risk"
	"github.com/alphabot/alpha-bot/pkg/types"
)

// ExcelReporter writes the session ledger as a styled workbook with a
// trades sheet and a risk summary sheet.
type ExcelReporter struct{}

func NewExcelReporter() *ExcelReporter {
	return &ExcelReporter{}
}

type excelStyles struct {
	header   int
	currency int
	percent  int
	win      int
	loss     int
}

// WriteSession writes closed trades and the risk snapshot to path.
func (r *ExcelReporter) WriteSession(trades []types.TradeResult, status risk.Status, path string) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create report directory %s: %w", dir, err)
		}
	}

	fx := excelize.NewFile()
	defer fx.Close()

	const tradesSheet = "Trades"
	const summarySheet = "Risk Summary"
	fx.SetSheetName(fx.GetSheetName(0), tradesSheet)
	if _, err := fx.NewSheet(summarySheet); err != nil {
		return err
	}

	styles, err := r.createStyles(fx)
	if err != nil {
		return err
	}
	if err := r.writeTrades(fx, tradesSheet, trades, styles); err != nil {
		return err
	}
	if err := r.writeSummary(fx, summarySheet, status, styles); err != nil {
		return err
	}

	return fx.SaveAs(path)
}

func (r *ExcelReporter) createStyles(fx *excelize.File) (excelStyles, error) {
	var styles excelStyles
	var err error

	styles.header, err = fx.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11, Color: "FFFFFF", Family: "Calibri"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"2F4F4F"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return styles, err
	}

	styles.currency, err = fx.NewStyle(&excelize.Style{
		NumFmt:    7,
		Alignment: &excelize.Alignment{Horizontal: "right"},
	})
	if err != nil {
		return styles, err
	}

	styles.percent, err = fx.NewStyle(&excelize.Style{
		NumFmt:    9,
		Alignment: &excelize.Alignment{Horizontal: "right"},
	})
	if err != nil {
		return styles, err
	}

	styles.win, err = fx.NewStyle(&excelize.Style{
		Font: &excelize.Font{Color: "006400", Bold: true},
	})
	if err != nil {
		return styles, err
	}

	styles.loss, err = fx.NewStyle(&excelize.Style{
		Font: &excelize.Font{Color: "8B0000", Bold: true},
	})
	return styles, err
}

func (r *ExcelReporter) writeTrades(fx *excelize.File, sheet string, trades []types.TradeResult, styles excelStyles) error {
	headers := []string{"#", "Closed At", "Pair", "Strategy", "PnL ($)", "Outcome"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := fx.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
	}
	headerEnd, _ := excelize.CoordinatesToCellName(len(headers), 1)
	if err := fx.SetCellStyle(sheet, "A1", headerEnd, styles.header); err != nil {
		return err
	}

	for i, trade := range trades {
		row := i + 2
		outcome := "WIN"
		outcomeStyle := styles.win
		if !trade.Win {
			outcome = "LOSS"
			outcomeStyle = styles.loss
		}

		fx.SetCellValue(sheet, fmt.Sprintf("A%d", row), i+1)
		fx.SetCellValue(sheet, fmt.Sprintf("B%d", row), trade.ClosedAt.Format("2006-01-02 15:04:05"))
		fx.SetCellValue(sheet, fmt.Sprintf("C%d", row), trade.Pair)
		fx.SetCellValue(sheet, fmt.Sprintf("D%d", row), string(trade.Strategy))
		fx.SetCellValue(sheet, fmt.Sprintf("E%d", row), trade.PnL)
		fx.SetCellValue(sheet, fmt.Sprintf("F%d", row), outcome)

		fx.SetCellStyle(sheet, fmt.Sprintf("E%d", row), fmt.Sprintf("E%d", row), styles.currency)
		fx.SetCellStyle(sheet, fmt.Sprintf("F%d", row), fmt.Sprintf("F%d", row), outcomeStyle)
	}

	fx.SetColWidth(sheet, "B", "B", 20)
	fx.SetColWidth(sheet, "C", "D", 16)
	return nil
}

func (r *ExcelReporter) writeSummary(fx *excelize.File, sheet string, status risk.Status, styles excelStyles) error {
	rows := []struct {
		label string
		value interface{}
		style int
	}{
		{"Capital", status.Capital, styles.currency},
		{"Daily PnL", status.DailyPnL, styles.currency},
		{"Daily Loss %", status.DailyLossPct / 100, styles.percent},
		{"Total Exposure", status.TotalExposure, styles.currency},
		{"Exposure %", status.TotalExposurePct / 100, styles.percent},
		{"Spot Exposure", status.SpotExposure, styles.currency},
		{"Futures Collateral", status.FuturesExposure, styles.currency},
		{"Futures Notional", status.FuturesNotional, styles.currency},
		{"Win Rate %", status.WinRate / 100, styles.percent},
		{"Total Trades", status.TotalTrades, 0},
		{"Open Positions", status.OpenPositions, 0},
	}

	fx.SetCellValue(sheet, "A1", "Metric")
	fx.SetCellValue(sheet, "B1", "Value")
	fx.SetCellStyle(sheet, "A1", "B1", styles.header)

	for i, row := range rows {
		cellA := fmt.Sprintf("A%d", i+2)
		cellB := fmt.Sprintf("B%d", i+2)
		fx.SetCellValue(sheet, cellA, row.label)
		fx.SetCellValue(sheet, cellB, row.value)
		if row.style != 0 {
			fx.SetCellStyle(sheet, cellB, cellB, row.style)
		}
	}

	fx.SetColWidth(sheet, "A", "A", 22)
	fx.SetColWidth(sheet, "B", "B", 16)
	return nil
}
