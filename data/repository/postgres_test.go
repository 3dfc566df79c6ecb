package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/KotFed0t/equal_weight_fund/internal/model"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockRepo(t *testing.T) (*Postgres, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return NewPostgres(sqlx.NewDb(db, "sqlmock")), mock
}

func sampleRun() model.Run {
	return model.Run{
		RunID: "5f0c7a8e-8f5e-4c1b-9d55-2a7f0f9d3c11",
		Trades: model.Trades{
			PortfolioSize: decimal.NewFromInt(30000),
			PositionSize:  decimal.NewFromInt(15000),
			Rows: []model.PortfolioRow{
				{Ticker: "AAPL", Price: decimal.NewFromInt(150), MarketCap: decimal.RequireFromString("2.5e12"), SharesToBuy: 100},
				{Ticker: "MSFT", Price: decimal.NewFromInt(300), MarketCap: decimal.RequireFromString("2.3e12"), SharesToBuy: 50},
			},
		},
		ReportPath: "recommended_trades.xlsx",
	}
}

func TestSaveRun(t *testing.T) {
	repo, mock := newMockRepo(t)
	run := sampleRun()
	rows := run.Trades.Rows

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO runs`).
		WithArgs(run.RunID, run.Trades.PortfolioSize, run.Trades.PositionSize, run.ReportPath, "").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO run_trades`).
		WithArgs(
			run.RunID, 0, "AAPL", rows[0].Price, rows[0].MarketCap, rows[0].SharesToBuy,
			run.RunID, 1, "MSFT", rows[1].Price, rows[1].MarketCap, rows[1].SharesToBuy,
		).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	require.NoError(t, repo.SaveRun(context.Background(), run))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveRunRollsBack(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO runs`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO run_trades`).WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := repo.SaveRun(context.Background(), sampleRun())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert trades")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetRun(t *testing.T) {
	repo, mock := newMockRepo(t)
	run := sampleRun()

	mock.ExpectQuery(`FROM runs`).
		WithArgs(run.RunID).
		WillReturnRows(sqlmock.NewRows([]string{"run_id", "portfolio_size", "position_size", "report_path", "download_link"}).
			AddRow(run.RunID, "30000", "15000", run.ReportPath, "https://drive.google.com/file/d/abc/view"))
	mock.ExpectQuery(`FROM run_trades`).
		WithArgs(run.RunID).
		WillReturnRows(sqlmock.NewRows([]string{"ticker", "price", "market_cap", "shares_to_buy"}).
			AddRow("AAPL", "150", "2500000000000", int64(100)).
			AddRow("MSFT", "300", "2300000000000", int64(50)))

	got, err := repo.GetRun(context.Background(), run.RunID)
	require.NoError(t, err)

	assert.Equal(t, run.RunID, got.RunID)
	assert.True(t, got.Trades.PortfolioSize.Equal(run.Trades.PortfolioSize))
	assert.Equal(t, "https://drive.google.com/file/d/abc/view", got.DownloadLink)
	require.Len(t, got.Trades.Rows, 2)
	assert.Equal(t, "MSFT", got.Trades.Rows[1].Ticker)
	assert.Equal(t, int64(50), got.Trades.Rows[1].SharesToBuy)
	assert.True(t, got.Trades.Rows[0].MarketCap.Equal(run.Trades.Rows[0].MarketCap))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetRunNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`FROM runs`).WillReturnError(sql.ErrNoRows)

	_, err := repo.GetRun(context.Background(), "missing")
	assert.True(t, errors.Is(err, ErrNotFound))
}
