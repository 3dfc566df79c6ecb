package chunker

import (
	"fmt"
	"strings"

	"github.com/KotFed0t/equal_weight_fund/internal/model"
)

const Separator = ","

// Batch is one provider request worth of tickers.
type Batch struct {
	Tickers []string
	Symbols string
}

// Chunk splits tickers into consecutive groups of at most size symbols.
// Order is preserved within and across groups; no tickers yields no batches.
func Chunk(tickers []string, size int) ([]Batch, error) {
	if size < 1 {
		return nil, fmt.Errorf("%w: batch size must be positive, got %d", model.ErrInvalidInput, size)
	}

	batches := make([]Batch, 0, (len(tickers)+size-1)/size)
	for start := 0; start < len(tickers); start += size {
		end := min(start+size, len(tickers))
		group := tickers[start:end:end]
		batches = append(batches, Batch{
			Tickers: group,
			Symbols: strings.Join(group, Separator),
		})
	}

	return batches, nil
}

// Split is the inverse of the Symbols join.
func Split(symbols string) []string {
	if symbols == "" {
		return nil
	}
	return strings.Split(symbols, Separator)
}
