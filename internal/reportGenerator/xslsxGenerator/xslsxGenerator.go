package xslsxGenerator

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/KotFed0t/equal_weight_fund/config"
	"github.com/KotFed0t/equal_weight_fund/internal/model"
	"github.com/KotFed0t/equal_weight_fund/utils"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const (
	backgroundColor = "#0A0A23"
	fontColor       = "#FFFFFF"

	dollarNumFmt = "$0.00"
	// built-in "0"
	integerNumFmtID = 1

	defaultSheet = "Sheet1"
)

var headers = []string{"Ticker", "Stock Price", "Market Capitalization", "Number of Shares to Buy"}

type XSLSXGenerator struct {
	sheetName   string
	columnWidth float64
}

func New(cfg *config.Config) *XSLSXGenerator {
	return &XSLSXGenerator{
		sheetName:   cfg.Report.SheetName,
		columnWidth: cfg.Report.ColumnWidth,
	}
}

// Generate writes rows to path. The workbook is written to a temporary file next to
// path and renamed into place, so a failed run never leaves a partial report behind.
func (g *XSLSXGenerator) Generate(ctx context.Context, path string, rows []model.PortfolioRow) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "XSLSXGenerator.Generate"

	slog.Debug("Generate start", slog.String("rqID", rqID), slog.String("op", op), slog.String("path", path), slog.Int("rows", len(rows)))

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			slog.Error("got error while closing file", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		}
	}()

	if err := g.fillSheet(f, rows); err != nil {
		slog.Error("got error while filling sheet", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return fmt.Errorf("%w: %w", model.ErrWrite, err)
	}

	if err := saveAtomically(f, path); err != nil {
		slog.Error("got error while saving report", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return fmt.Errorf("%w: %w", model.ErrWrite, err)
	}

	slog.Debug("Generate completed", slog.String("rqID", rqID), slog.String("op", op))

	return nil
}

func (g *XSLSXGenerator) fillSheet(f *excelize.File, rows []model.PortfolioRow) error {
	if err := f.SetSheetName(defaultSheet, g.sheetName); err != nil {
		return err
	}

	stringStyle, err := f.NewStyle(columnStyle())
	if err != nil {
		return err
	}

	dollarFmt := dollarNumFmt
	style := columnStyle()
	style.CustomNumFmt = &dollarFmt
	dollarStyle, err := f.NewStyle(style)
	if err != nil {
		return err
	}

	style = columnStyle()
	style.NumFmt = integerNumFmtID
	integerStyle, err := f.NewStyle(style)
	if err != nil {
		return err
	}

	columnStyles := []int{stringStyle, dollarStyle, dollarStyle, integerStyle}

	for i, header := range headers {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}

		if err := f.SetColWidth(g.sheetName, col, col, g.columnWidth); err != nil {
			return err
		}

		if err := f.SetColStyle(g.sheetName, col, columnStyles[i]); err != nil {
			return fmt.Errorf("apply column style %s: %w", col, err)
		}

		if err := f.SetCellStr(g.sheetName, col+"1", header); err != nil {
			return err
		}

		if err := f.SetCellStyle(g.sheetName, col+"1", col+"1", columnStyles[i]); err != nil {
			return fmt.Errorf("apply header style %s: %w", col, err)
		}
	}

	for i, row := range rows {
		rowNum := i + 2

		if err := f.SetCellStr(g.sheetName, fmt.Sprintf("A%d", rowNum), row.Ticker); err != nil {
			return err
		}
		if err := f.SetCellFloat(g.sheetName, fmt.Sprintf("B%d", rowNum), row.Price.InexactFloat64(), -1, 64); err != nil {
			return err
		}
		if err := f.SetCellFloat(g.sheetName, fmt.Sprintf("C%d", rowNum), row.MarketCap.InexactFloat64(), -1, 64); err != nil {
			return err
		}
		if err := f.SetCellInt(g.sheetName, fmt.Sprintf("D%d", rowNum), int(row.SharesToBuy)); err != nil {
			return err
		}
	}

	if len(rows) > 0 {
		// explicit cell styles for viewers that ignore column styles
		last := len(rows) + 1
		for i, col := range []string{"A", "B", "C", "D"} {
			if err := f.SetCellStyle(g.sheetName, col+"2", fmt.Sprintf("%s%d", col, last), columnStyles[i]); err != nil {
				return fmt.Errorf("apply data style %s: %w", col, err)
			}
		}
	}

	return nil
}

// columnStyle is the look shared by every column; callers add the number format.
func columnStyle() *excelize.Style {
	border := []excelize.Border{
		{Type: "left", Color: fontColor, Style: 1},
		{Type: "top", Color: fontColor, Style: 1},
		{Type: "right", Color: fontColor, Style: 1},
		{Type: "bottom", Color: fontColor, Style: 1},
	}

	return &excelize.Style{
		Border: border,
		Font: &excelize.Font{
			Color: fontColor,
		},
		Fill: excelize.Fill{
			Type:    "pattern",
			Pattern: 1,
			Color:   []string{backgroundColor},
		},
	}
}

func saveAtomically(f *excelize.File, path string) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err = f.WriteTo(tmp); err != nil {
		return err
	}

	if err = tmp.Sync(); err != nil {
		return err
	}

	if err = tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}

// Read loads a report written by Generate back into rows.
func (g *XSLSXGenerator) Read(ctx context.Context, path string) ([]model.PortfolioRow, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "XSLSXGenerator.Read"

	f, err := excelize.OpenFile(path)
	if err != nil {
		slog.Error("can't open report", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, fmt.Errorf("%w: %w", model.ErrParse, err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			slog.Error("got error while closing file", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		}
	}()

	rawRows, err := f.GetRows(g.sheetName, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrParse, err)
	}

	if len(rawRows) == 0 {
		return nil, fmt.Errorf("%w: sheet %q is empty", model.ErrParse, g.sheetName)
	}

	res := make([]model.PortfolioRow, 0, len(rawRows)-1)
	for i, raw := range rawRows[1:] {
		row, err := parseRow(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %w", model.ErrParse, i+2, err)
		}
		res = append(res, row)
	}

	return res, nil
}

func parseRow(raw []string) (model.PortfolioRow, error) {
	if len(raw) < len(headers) {
		return model.PortfolioRow{}, fmt.Errorf("expected %d cells, got %d", len(headers), len(raw))
	}

	price, err := decimal.NewFromString(raw[1])
	if err != nil {
		return model.PortfolioRow{}, fmt.Errorf("price: %w", err)
	}

	marketCap, err := decimal.NewFromString(raw[2])
	if err != nil {
		return model.PortfolioRow{}, fmt.Errorf("market cap: %w", err)
	}

	shares, err := strconv.ParseInt(raw[3], 10, 64)
	if err != nil {
		return model.PortfolioRow{}, fmt.Errorf("shares: %w", err)
	}

	return model.PortfolioRow{
		Ticker:      raw[0],
		Price:       price,
		MarketCap:   marketCap,
		SharesToBuy: shares,
	}, nil
}
