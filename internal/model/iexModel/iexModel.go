package iexModel

import "github.com/shopspring/decimal"

// Quote mirrors the fields of a provider quote object that the report needs.
type Quote struct {
	Symbol      string           `json:"symbol"`
	LatestPrice *decimal.Decimal `json:"latestPrice"`
	MarketCap   *decimal.Decimal `json:"marketCap"`
}

// BatchEntry is the value of a symbol-keyed batch response.
type BatchEntry struct {
	Quote *Quote `json:"quote"`
}
