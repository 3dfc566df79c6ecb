package xslsxGenerator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/KotFed0t/equal_weight_fund/config"
	"github.com/KotFed0t/equal_weight_fund/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func newGenerator() *XSLSXGenerator {
	cfg := &config.Config{}
	cfg.Report.SheetName = "Recommended Trades"
	cfg.Report.ColumnWidth = 18
	return New(cfg)
}

func sampleRows() []model.PortfolioRow {
	return []model.PortfolioRow{
		{Ticker: "AAPL", Price: decimal.RequireFromString("150.00"), MarketCap: decimal.RequireFromString("2.5e12"), SharesToBuy: 100},
		{Ticker: "MSFT", Price: decimal.RequireFromString("300.00"), MarketCap: decimal.RequireFromString("2.3e12"), SharesToBuy: 50},
		{Ticker: "BRK.B", Price: decimal.RequireFromString("412.37"), MarketCap: decimal.RequireFromString("901234567890"), SharesToBuy: 0},
	}
}

func sameColor(t *testing.T, want, got string) {
	t.Helper()
	// excelize may report ARGB
	assert.True(t, strings.HasSuffix(strings.ToUpper(got), strings.TrimPrefix(want, "#")), "color %s != %s", got, want)
}

func TestGenerateRoundTrip(t *testing.T) {
	g := newGenerator()
	path := filepath.Join(t.TempDir(), "recommended_trades.xlsx")
	rows := sampleRows()

	require.NoError(t, g.Generate(context.Background(), path, rows))

	got, err := g.Read(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, got, len(rows))

	for i := range rows {
		assert.Equal(t, rows[i].Ticker, got[i].Ticker)
		assert.True(t, rows[i].Price.Equal(got[i].Price), "price %s != %s", got[i].Price, rows[i].Price)
		assert.True(t, rows[i].MarketCap.Equal(got[i].MarketCap), "cap %s != %s", got[i].MarketCap, rows[i].MarketCap)
		assert.Equal(t, rows[i].SharesToBuy, got[i].SharesToBuy)
	}
}

func TestGenerateLayoutAndFormats(t *testing.T) {
	g := newGenerator()
	path := filepath.Join(t.TempDir(), "recommended_trades.xlsx")
	require.NoError(t, g.Generate(context.Background(), path, sampleRows()))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Recommended Trades"}, f.GetSheetList())

	wantFmt := map[string]string{"A": "", "B": dollarNumFmt, "C": dollarNumFmt, "D": ""}
	wantNumFmt := map[string]int{"A": 0, "B": 0, "C": 0, "D": integerNumFmtID}

	for i, col := range []string{"A", "B", "C", "D"} {
		header, err := f.GetCellValue("Recommended Trades", col+"1")
		require.NoError(t, err)
		assert.Equal(t, headers[i], header)

		width, err := f.GetColWidth("Recommended Trades", col)
		require.NoError(t, err)
		assert.Equal(t, 18.0, width)

		for _, cell := range []string{col + "1", col + "2", col + "4"} {
			styleID, err := f.GetCellStyle("Recommended Trades", cell)
			require.NoError(t, err)

			style, err := f.GetStyle(styleID)
			require.NoError(t, err)

			require.NotNil(t, style.Font, cell)
			sameColor(t, fontColor, style.Font.Color)
			require.NotEmpty(t, style.Fill.Color, cell)
			sameColor(t, backgroundColor, style.Fill.Color[0])
			assert.Len(t, style.Border, 4, cell)

			if wantFmt[col] == "" {
				assert.Nil(t, style.CustomNumFmt, cell)
				assert.Equal(t, wantNumFmt[col], style.NumFmt, cell)
			} else {
				require.NotNil(t, style.CustomNumFmt, cell)
				assert.Equal(t, wantFmt[col], *style.CustomNumFmt, cell)
			}
		}
	}

	shares, err := f.GetCellValue("Recommended Trades", "D3")
	require.NoError(t, err)
	assert.Equal(t, "50", shares)
}

func TestGenerateLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "recommended_trades.xlsx")

	require.NoError(t, newGenerator().Generate(context.Background(), path, sampleRows()))
	// overwrite an existing report
	require.NoError(t, newGenerator().Generate(context.Background(), path, sampleRows()[:1]))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "recommended_trades.xlsx", entries[0].Name())

	got, err := newGenerator().Read(context.Background(), path)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestGenerateWriteError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "dir", "recommended_trades.xlsx")

	err := newGenerator().Generate(context.Background(), path, sampleRows())
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrWrite))

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestReadMissingFile(t *testing.T) {
	_, err := newGenerator().Read(context.Background(), filepath.Join(t.TempDir(), "absent.xlsx"))
	assert.True(t, errors.Is(err, model.ErrParse))
}
