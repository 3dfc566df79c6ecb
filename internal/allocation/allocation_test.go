package allocation

import (
	"errors"
	"math"
	"testing"

	"github.com/KotFed0t/equal_weight_fund/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func row(ticker, price string) model.PortfolioRow {
	return model.PortfolioRow{Ticker: ticker, Price: decimal.RequireFromString(price)}
}

func TestParsePortfolioSize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"30000", "30000"},
		{" 1000000.50\n", "1000000.5"},
		{"$30,000", "30000"},
		{"1e4", "10000"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			v, err := ParsePortfolioSize(tt.in)
			require.NoError(t, err)
			assert.True(t, v.Equal(decimal.RequireFromString(tt.want)), "got %s", v)
		})
	}
}

func TestParsePortfolioSizeInvalid(t *testing.T) {
	for _, in := range []string{"", "   ", "abc", "12abc", "0", "-100", "NaN", "Inf"} {
		t.Run(in, func(t *testing.T) {
			_, err := ParsePortfolioSize(in)
			assert.True(t, errors.Is(err, model.ErrInvalidInput), "err = %v", err)
		})
	}
}

func TestEqualWeightEndToEndValues(t *testing.T) {
	rows := []model.PortfolioRow{row("AAPL", "150.00"), row("MSFT", "300.00")}

	positionSize, err := EqualWeight(decimal.NewFromInt(30000), rows)
	require.NoError(t, err)

	assert.True(t, positionSize.Equal(decimal.NewFromInt(15000)))
	assert.Equal(t, int64(100), rows[0].SharesToBuy)
	assert.Equal(t, int64(50), rows[1].SharesToBuy)
}

func TestEqualWeightFloors(t *testing.T) {
	rows := []model.PortfolioRow{row("A", "33.33"), row("B", "7"), row("C", "100000")}

	positionSize, err := EqualWeight(decimal.NewFromInt(1000), rows)
	require.NoError(t, err)

	// 1000/3 = 333.33...
	assert.Equal(t, "333.33", positionSize.StringFixed(2))
	assert.Equal(t, int64(10), rows[0].SharesToBuy)
	assert.Equal(t, int64(47), rows[1].SharesToBuy)
	assert.Equal(t, int64(0), rows[2].SharesToBuy)

	for _, r := range rows {
		assert.GreaterOrEqual(t, r.SharesToBuy, int64(0))
		spent := r.Price.Mul(decimal.NewFromInt(r.SharesToBuy))
		assert.True(t, spent.LessThanOrEqual(positionSize), "%s overspent: %s", r.Ticker, spent)
	}
}

func TestEqualWeightNoRows(t *testing.T) {
	_, err := EqualWeight(decimal.NewFromInt(30000), nil)
	assert.True(t, errors.Is(err, model.ErrInvalidInput))
}

func TestEqualWeightNonPositivePrice(t *testing.T) {
	for _, price := range []string{"0", "-1"} {
		rows := []model.PortfolioRow{row("AAPL", "150"), row("BAD", price)}
		_, err := EqualWeight(decimal.NewFromInt(30000), rows)
		assert.True(t, errors.Is(err, model.ErrInvalidInput), "price %s", price)
		assert.Zero(t, rows[0].SharesToBuy, "rows must not be touched on error")
	}
}

func TestEqualWeightNonPositiveSize(t *testing.T) {
	_, err := EqualWeight(decimal.Zero, []model.PortfolioRow{row("AAPL", "150")})
	assert.True(t, errors.Is(err, model.ErrInvalidInput))
}

func TestEqualWeightShareCountOverflow(t *testing.T) {
	tests := []struct {
		name  string
		size  string
		price string
	}{
		{"huge portfolio", "30000000000000000000", "1"},
		{"sub-cent price", "2000000000000000", "0.0001"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			size, err := ParsePortfolioSize(tt.size)
			require.NoError(t, err)

			rows := []model.PortfolioRow{row("AAPL", "150"), row("TINY", tt.price)}
			_, err = EqualWeight(size, rows)
			require.Error(t, err)
			assert.True(t, errors.Is(err, model.ErrInvalidInput))
			assert.Contains(t, err.Error(), "TINY")
			assert.Zero(t, rows[0].SharesToBuy, "rows must not be touched on error")
			assert.Zero(t, rows[1].SharesToBuy)
		})
	}
}

func TestEqualWeightMaxShareCount(t *testing.T) {
	rows := []model.PortfolioRow{row("A", "1")}

	_, err := EqualWeight(decimal.NewFromInt(math.MaxInt64), rows)
	require.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt64), rows[0].SharesToBuy)
}
