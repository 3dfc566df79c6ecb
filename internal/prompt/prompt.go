package prompt

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/KotFed0t/equal_weight_fund/internal/allocation"
	"github.com/KotFed0t/equal_weight_fund/internal/model"
	"github.com/KotFed0t/equal_weight_fund/utils"
	"github.com/shopspring/decimal"
)

const (
	portfolioSizeMsg = "Enter the value of your portfolio: "
	notANumberMsg    = "That's not a number! Please try again."
)

// PortfolioSize asks for the portfolio value until it parses. Running out of input
// is reported as ErrInvalidInput.
func PortfolioSize(ctx context.Context, in io.Reader, out io.Writer) (decimal.Decimal, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "prompt.PortfolioSize"

	scanner := bufio.NewScanner(in)

	for {
		if err := ctx.Err(); err != nil {
			return decimal.Zero, err
		}

		if _, err := fmt.Fprint(out, portfolioSizeMsg); err != nil {
			return decimal.Zero, err
		}

		if !scanner.Scan() {
			err := scanner.Err()
			if err == nil {
				err = io.EOF
			}
			return decimal.Zero, fmt.Errorf("%w: no portfolio size entered: %w", model.ErrInvalidInput, err)
		}

		size, err := allocation.ParsePortfolioSize(scanner.Text())
		if err == nil {
			return size, nil
		}

		if !errors.Is(err, model.ErrInvalidInput) {
			return decimal.Zero, err
		}

		slog.Debug("invalid portfolio size entered", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))

		if _, err := fmt.Fprintln(out, notANumberMsg); err != nil {
			return decimal.Zero, err
		}
	}
}
