package model

import "github.com/shopspring/decimal"

type Quote struct {
	Ticker    string          `json:"ticker"`
	Price     decimal.Decimal `json:"price"`
	MarketCap decimal.Decimal `json:"marketCap"`
}
