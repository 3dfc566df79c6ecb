package allocation

import (
	"fmt"
	"math"
	"strings"

	"github.com/KotFed0t/equal_weight_fund/internal/model"
	"github.com/shopspring/decimal"
)

// ParsePortfolioSize accepts plain numbers as well as "$30,000" style input.
func ParsePortfolioSize(text string) (decimal.Decimal, error) {
	s := strings.TrimSpace(text)
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")

	if s == "" {
		return decimal.Zero, fmt.Errorf("%w: portfolio size is empty", model.ErrInvalidInput)
	}

	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: portfolio size %q is not a number", model.ErrInvalidInput, text)
	}

	if !v.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: portfolio size must be positive, got %s", model.ErrInvalidInput, v)
	}

	return v, nil
}

// EqualWeight splits portfolioSize evenly across rows and fills SharesToBuy in place.
// It returns the position size allocated to each row.
func EqualWeight(portfolioSize decimal.Decimal, rows []model.PortfolioRow) (decimal.Decimal, error) {
	if !portfolioSize.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: portfolio size must be positive, got %s", model.ErrInvalidInput, portfolioSize)
	}

	if len(rows) == 0 {
		return decimal.Zero, fmt.Errorf("%w: no rows to allocate", model.ErrInvalidInput)
	}

	for _, row := range rows {
		if !row.Price.IsPositive() {
			return decimal.Zero, fmt.Errorf("%w: price of %s must be positive, got %s", model.ErrInvalidInput, row.Ticker, row.Price)
		}
	}

	k := decimal.NewFromInt(int64(len(rows)))
	positionSize := portfolioSize.Div(k)
	maxShares := decimal.NewFromInt(math.MaxInt64)

	shares := make([]int64, len(rows))
	for i, row := range rows {
		// floor(V / (k*price)) equals floor(positionSize/price) and avoids rounding positionSize first
		n := portfolioSize.Div(k.Mul(row.Price)).Floor()
		if n.GreaterThan(maxShares) {
			return decimal.Zero, fmt.Errorf("%w: share count for %s does not fit into int64: %s", model.ErrInvalidInput, row.Ticker, n)
		}
		shares[i] = n.IntPart()
	}

	for i := range rows {
		rows[i].SharesToBuy = shares[i]
	}

	return positionSize, nil
}
