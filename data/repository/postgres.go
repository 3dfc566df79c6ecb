package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/KotFed0t/equal_weight_fund/internal/model"
	"github.com/KotFed0t/equal_weight_fund/utils"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// common methods of sqlx.DB and sqlx.Tx used by the repository
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

type txKey struct{}

type Postgres struct {
	db *sqlx.DB
}

func NewPostgres(db *sqlx.DB) *Postgres {
	return &Postgres{db: db}
}

type runRow struct {
	RunID         string          `db:"run_id"`
	PortfolioSize decimal.Decimal `db:"portfolio_size"`
	PositionSize  decimal.Decimal `db:"position_size"`
	ReportPath    string          `db:"report_path"`
	DownloadLink  string          `db:"download_link"`
}

type tradeRow struct {
	Ticker      string          `db:"ticker"`
	Price       decimal.Decimal `db:"price"`
	MarketCap   decimal.Decimal `db:"market_cap"`
	SharesToBuy int64           `db:"shares_to_buy"`
}

// WithinTransaction runs function within transaction
//
// The transaction commits when function were finished without error
func (p *Postgres) WithinTransaction(ctx context.Context, tFunc func(ctx context.Context) error) (err error) {
	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				slog.Error("failed to rollback transaction", slog.String("err", rbErr.Error()))
			}
		}
	}()

	err = tFunc(context.WithValue(ctx, txKey{}, tx))
	if err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

func (p *Postgres) txOrDb(ctx context.Context) Querier {
	if tx, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return tx
	}
	return p.db
}

// SaveRun stores the run and its trades atomically.
func (p *Postgres) SaveRun(ctx context.Context, run model.Run) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.SaveRun"

	slog.Debug("SaveRun start", slog.String("rqID", rqID), slog.String("op", op), slog.String("runID", run.RunID))
	defer func() {
		if err != nil {
			slog.Error("SaveRun failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("SaveRun completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	return p.WithinTransaction(ctx, func(ctx context.Context) error {
		query := `
			INSERT INTO runs (run_id, portfolio_size, position_size, report_path, download_link)
			VALUES ($1, $2, $3, $4, $5)`

		_, err := p.txOrDb(ctx).ExecContext(ctx, query,
			run.RunID,
			run.Trades.PortfolioSize,
			run.Trades.PositionSize,
			run.ReportPath,
			run.DownloadLink,
		)
		if err != nil {
			return fmt.Errorf("insert run: %w", err)
		}

		if len(run.Trades.Rows) == 0 {
			return nil
		}

		return p.insertTrades(ctx, run.RunID, run.Trades.Rows)
	})
}

func (p *Postgres) insertTrades(ctx context.Context, runID string, rows []model.PortfolioRow) error {
	const cols = 6

	sb := strings.Builder{}
	args := make([]any, 0, len(rows)*cols)

	sb.WriteString(`INSERT INTO run_trades (run_id, ordinal, ticker, price, market_cap, shares_to_buy) VALUES `)

	for i, row := range rows {
		args = append(args, runID, i, row.Ticker, row.Price, row.MarketCap, row.SharesToBuy)

		start := i*cols + 1
		sb.WriteString(fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d)",
			start, start+1, start+2, start+3, start+4, start+5,
		))

		if i < len(rows)-1 {
			sb.WriteString(",")
		}
	}

	_, err := p.txOrDb(ctx).ExecContext(ctx, sb.String(), args...)
	if err != nil {
		return fmt.Errorf("insert trades: %w", err)
	}

	return nil
}

func (p *Postgres) GetRun(ctx context.Context, runID string) (run model.Run, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.GetRun"

	slog.Debug("GetRun start", slog.String("rqID", rqID), slog.String("op", op), slog.String("runID", runID))
	defer func() {
		if err != nil && !errors.Is(err, ErrNotFound) {
			slog.Error("GetRun failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		}
	}()

	header := runRow{}
	err = p.txOrDb(ctx).GetContext(ctx, &header, `
		SELECT run_id, portfolio_size, position_size, report_path, download_link
		FROM runs
		WHERE run_id = $1`, runID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Run{}, ErrNotFound
		}
		return model.Run{}, err
	}

	trades := []tradeRow{}
	err = p.txOrDb(ctx).SelectContext(ctx, &trades, `
		SELECT ticker, price, market_cap, shares_to_buy
		FROM run_trades
		WHERE run_id = $1
		ORDER BY ordinal`, runID)
	if err != nil {
		return model.Run{}, err
	}

	rows := make([]model.PortfolioRow, 0, len(trades))
	for _, t := range trades {
		rows = append(rows, model.PortfolioRow{
			Ticker:      t.Ticker,
			Price:       t.Price,
			MarketCap:   t.MarketCap,
			SharesToBuy: t.SharesToBuy,
		})
	}

	return model.Run{
		RunID: header.RunID,
		Trades: model.Trades{
			PortfolioSize: header.PortfolioSize,
			PositionSize:  header.PositionSize,
			Rows:          rows,
		},
		ReportPath:   header.ReportPath,
		DownloadLink: header.DownloadLink,
	}, nil
}
