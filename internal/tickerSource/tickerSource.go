package tickerSource

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/KotFed0t/equal_weight_fund/internal/model"
	"github.com/KotFed0t/equal_weight_fund/utils"
	"github.com/xuri/excelize/v2"
)

const tickerColumn = "ticker"

// Load reads the ordered ticker list from a .csv or .xlsx file with a "Ticker" column.
func Load(ctx context.Context, path string) ([]string, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "tickerSource.Load"

	slog.Debug("Load start", slog.String("rqID", rqID), slog.String("op", op), slog.String("path", path))

	var (
		rows [][]string
		err  error
	)

	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		rows, err = readXLSX(path)
	default:
		rows, err = readCSV(path)
	}
	if err != nil {
		slog.Error("can't read tickers file", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, err
	}

	tickers, err := FromRows(ctx, rows)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	slog.Info("tickers loaded", slog.String("rqID", rqID), slog.String("op", op), slog.Int("count", len(tickers)))

	return tickers, nil
}

// FromRows extracts tickers from a table whose first row is the header.
func FromRows(ctx context.Context, rows [][]string) ([]string, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "tickerSource.FromRows"

	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: tickers table is empty", model.ErrInvalidInput)
	}

	col := -1
	for i, name := range rows[0] {
		if strings.EqualFold(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")), tickerColumn) {
			col = i
			break
		}
	}
	if col < 0 {
		return nil, fmt.Errorf("%w: no Ticker column in header %v", model.ErrInvalidInput, rows[0])
	}

	seen := make(map[string]struct{}, len(rows)-1)
	tickers := make([]string, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if col >= len(row) {
			continue
		}

		ticker := strings.ToUpper(strings.TrimSpace(row[col]))
		if ticker == "" {
			continue
		}

		if _, ok := seen[ticker]; ok {
			slog.Warn("duplicate ticker dropped", slog.String("rqID", rqID), slog.String("op", op), slog.String("ticker", ticker))
			continue
		}
		seen[ticker] = struct{}{}
		tickers = append(tickers, ticker)
	}

	if len(tickers) == 0 {
		return nil, fmt.Errorf("%w: no tickers found", model.ErrInvalidInput)
	}

	return tickers, nil
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrInvalidInput, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	var rows [][]string
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", model.ErrInvalidInput, err)
		}
		rows = append(rows, record)
	}

	return rows, nil
}

func readXLSX(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrInvalidInput, err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			slog.Error("got error while closing tickers workbook", slog.String("err", err.Error()))
		}
	}()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: workbook has no sheets", model.ErrInvalidInput)
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrInvalidInput, err)
	}

	return rows, nil
}
