package iexApi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/KotFed0t/equal_weight_fund/config"
	"github.com/KotFed0t/equal_weight_fund/internal/chunker"
	"github.com/KotFed0t/equal_weight_fund/internal/model"
	"github.com/KotFed0t/equal_weight_fund/internal/model/iexModel"
	"github.com/KotFed0t/equal_weight_fund/utils"
	"github.com/go-resty/resty/v2"
)

const quotePath = "/data/core/quote/{symbols}"

type IexApi struct {
	client             *resty.Client
	token              string
	logger             tokenRedactingLogger
	skipMissingSymbols bool
}

func New(cfg *config.Config) *IexApi {
	logger := tokenRedactingLogger{token: cfg.API.IexApi.Token}

	client := resty.New().
		SetLogger(logger).
		SetDebug(cfg.API.Debug).
		SetTimeout(cfg.API.Timeout).
		SetBaseURL(cfg.API.IexApi.Url).
		SetRetryCount(cfg.API.RetryCount).
		SetRetryWaitTime(cfg.API.RetryWait).
		SetRetryMaxWaitTime(cfg.API.RetryMaxWait).
		AddRetryCondition(retryOnTransientStatus)

	return &IexApi{
		client:             client,
		token:              cfg.API.IexApi.Token,
		logger:             logger,
		skipMissingSymbols: cfg.SkipMissingSymbols(),
	}
}

func retryOnTransientStatus(resp *resty.Response, err error) bool {
	if err != nil {
		return !errors.Is(err, context.Canceled)
	}
	if resp == nil {
		return false
	}
	code := resp.StatusCode()
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

// GetQuotes fetches one comma separated batch of symbols and returns quotes in batch order.
func (a *IexApi) GetQuotes(ctx context.Context, symbols string) ([]model.Quote, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "IexApi.GetQuotes"

	tickers := chunker.Split(symbols)
	if len(tickers) == 0 {
		return nil, nil
	}

	slog.Debug("start IexApi.GetQuotes request", slog.String("rqID", rqID), slog.String("op", op), slog.Int("symbols", len(tickers)))

	resp, err := a.client.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		SetRawPathParam("symbols", symbols).
		SetQueryParam("token", a.token).
		Get(quotePath)

	if err != nil {
		err = a.redactURL(err)
		slog.Error("error while dialing IexApi", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, fmt.Errorf("%w: %w", model.ErrFetch, err)
	}

	if resp.IsError() {
		slog.Error("IexApi responded with error status", slog.String("rqID", rqID), slog.String("op", op), slog.Int("status", resp.StatusCode()))
		return nil, fmt.Errorf("%w: quote request for %d symbols: %s", model.ErrFetch, len(tickers), resp.Status())
	}

	rawQuotes, err := decodeQuotes(resp.Body(), tickers)
	if err != nil {
		slog.Error("can't decode IexApi response", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, err
	}

	res := make([]model.Quote, 0, len(tickers))
	for _, ticker := range tickers {
		quote, err := toQuote(ticker, rawQuotes[strings.ToUpper(ticker)])
		if err != nil {
			if a.skipMissingSymbols {
				slog.Warn("skipping symbol", slog.String("rqID", rqID), slog.String("op", op), slog.String("ticker", ticker), slog.String("err", err.Error()))
				continue
			}
			slog.Error("can't parse quote", slog.String("rqID", rqID), slog.String("op", op), slog.String("ticker", ticker), slog.String("err", err.Error()))
			return nil, err
		}
		res = append(res, quote)
	}

	slog.Debug("IexApi.GetQuotes request complete", slog.String("rqID", rqID), slog.String("op", op), slog.Int("quotes", len(res)))

	return res, nil
}

// redactURL masks the token inside transport errors, which quote the full request URL.
func (a *IexApi) redactURL(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		urlErr.URL = a.logger.redact(urlErr.URL)
	}
	return err
}

// decodeQuotes indexes the response by upper-cased symbol. The provider answers
// either with an array in request order or with an object keyed by symbol.
func decodeQuotes(body []byte, tickers []string) (map[string]*iexModel.Quote, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, fmt.Errorf("%w: empty response body", model.ErrParse)
	}

	res := make(map[string]*iexModel.Quote, len(tickers))

	switch body[0] {
	case '[':
		var list []*iexModel.Quote
		if err := json.Unmarshal(body, &list); err != nil {
			return nil, fmt.Errorf("%w: %w", model.ErrParse, err)
		}
		for i, q := range list {
			if q == nil {
				continue
			}
			symbol := strings.ToUpper(q.Symbol)
			if symbol == "" && i < len(tickers) {
				symbol = strings.ToUpper(tickers[i])
			}
			res[symbol] = q
		}
	case '{':
		var byKey map[string]json.RawMessage
		if err := json.Unmarshal(body, &byKey); err != nil {
			return nil, fmt.Errorf("%w: %w", model.ErrParse, err)
		}
		for key, raw := range byKey {
			q, err := decodeKeyedEntry(raw)
			if err != nil {
				return nil, fmt.Errorf("%w: entry %s: %w", model.ErrParse, key, err)
			}
			if q != nil {
				res[strings.ToUpper(key)] = q
			}
		}
	default:
		return nil, fmt.Errorf("%w: unexpected response body", model.ErrParse)
	}

	return res, nil
}

func decodeKeyedEntry(raw json.RawMessage) (*iexModel.Quote, error) {
	entry := iexModel.BatchEntry{}
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, err
	}
	if entry.Quote != nil {
		return entry.Quote, nil
	}

	var q *iexModel.Quote
	if err := json.Unmarshal(raw, &q); err != nil {
		return nil, err
	}
	return q, nil
}

func toQuote(ticker string, raw *iexModel.Quote) (model.Quote, error) {
	if raw == nil {
		return model.Quote{}, fmt.Errorf("%w: %s", model.ErrSymbolNotFound, ticker)
	}

	var missing []string
	if raw.LatestPrice == nil {
		missing = append(missing, "latestPrice")
	}
	if raw.MarketCap == nil {
		missing = append(missing, "marketCap")
	}
	if len(missing) > 0 {
		return model.Quote{}, fmt.Errorf("%w: %s has no %s", model.ErrParse, ticker, strings.Join(missing, ", "))
	}

	return model.Quote{
		Ticker:    ticker,
		Price:     *raw.LatestPrice,
		MarketCap: *raw.MarketCap,
	}, nil
}
