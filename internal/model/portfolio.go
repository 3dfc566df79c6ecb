package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// PortfolioRow is one line of the recommended trades sheet.
type PortfolioRow struct {
	Ticker      string
	Price       decimal.Decimal
	MarketCap   decimal.Decimal
	SharesToBuy int64
}

func NewPortfolioRow(q Quote) PortfolioRow {
	return PortfolioRow{
		Ticker:    q.Ticker,
		Price:     q.Price,
		MarketCap: q.MarketCap,
	}
}

type Trades struct {
	PortfolioSize decimal.Decimal
	PositionSize  decimal.Decimal
	Rows          []PortfolioRow
}

type Run struct {
	RunID        string
	Trades       Trades
	ReportPath   string
	DownloadLink string
	CreatedAt    time.Time
}
