package equalWeightService

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/KotFed0t/equal_weight_fund/config"
	"github.com/KotFed0t/equal_weight_fund/internal/allocation"
	"github.com/KotFed0t/equal_weight_fund/internal/chunker"
	"github.com/KotFed0t/equal_weight_fund/internal/model"
	"github.com/KotFed0t/equal_weight_fund/utils"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

type QuoteApi interface {
	GetQuotes(ctx context.Context, symbols string) ([]model.Quote, error)
}

type ReportGenerator interface {
	Generate(ctx context.Context, path string, rows []model.PortfolioRow) error
}

type Cache interface {
	GetQuotes(ctx context.Context, tickers []string) (map[string]model.Quote, error)
	SetQuotes(ctx context.Context, quotes []model.Quote) error
}

type Repository interface {
	SaveRun(ctx context.Context, run model.Run) error
}

type CloudStorage interface {
	UploadFile(ctx context.Context, path string) (downloadLink string, err error)
}

type EqualWeightService struct {
	cfg             *config.Config
	quoteApi        QuoteApi
	reportGenerator ReportGenerator
	cache           Cache
	repo            Repository
	cloudStorage    CloudStorage
}

// New wires the service. cache, repo and cloudStorage are optional and may be nil.
func New(cfg *config.Config, quoteApi QuoteApi, reportGenerator ReportGenerator, cache Cache, repo Repository, cloudStorage CloudStorage) *EqualWeightService {
	return &EqualWeightService{
		cfg:             cfg,
		quoteApi:        quoteApi,
		reportGenerator: reportGenerator,
		cache:           cache,
		repo:            repo,
		cloudStorage:    cloudStorage,
	}
}

// GetQuotes returns one quote per ticker in ticker order. Tickers the provider skipped
// (skip policy) are absent.
func (s *EqualWeightService) GetQuotes(ctx context.Context, tickers []string) ([]model.Quote, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "EqualWeightService.GetQuotes"

	slog.Debug("GetQuotes start", slog.String("rqID", rqID), slog.String("op", op), slog.Int("tickers", len(tickers)))
	defer func() {
		slog.Debug("GetQuotes finished", slog.String("rqID", rqID), slog.String("op", op))
	}()

	known := s.cachedQuotes(ctx, tickers)

	missing := make([]string, 0, len(tickers)-len(known))
	for _, ticker := range tickers {
		if _, ok := known[ticker]; !ok {
			missing = append(missing, ticker)
		}
	}

	batches, err := chunker.Chunk(missing, s.cfg.Fetch.BatchSize)
	if err != nil {
		return nil, err
	}

	fetched, err := s.fetchBatches(ctx, batches)
	if err != nil {
		return nil, err
	}

	for _, quote := range fetched {
		known[quote.Ticker] = quote
	}

	if s.cache != nil && len(fetched) > 0 {
		if err := s.cache.SetQuotes(ctx, fetched); err != nil {
			slog.Warn("can't store quotes in cache", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		}
	}

	res := make([]model.Quote, 0, len(tickers))
	for _, ticker := range tickers {
		if quote, ok := known[ticker]; ok {
			res = append(res, quote)
		}
	}

	return res, nil
}

func (s *EqualWeightService) cachedQuotes(ctx context.Context, tickers []string) map[string]model.Quote {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "EqualWeightService.cachedQuotes"

	if s.cache == nil {
		return make(map[string]model.Quote, len(tickers))
	}

	quotes, err := s.cache.GetQuotes(ctx, tickers)
	if err != nil {
		slog.Warn("can't get quotes from cache", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return make(map[string]model.Quote, len(tickers))
	}

	slog.Debug("got quotes from cache", slog.String("rqID", rqID), slog.String("op", op), slog.Int("hits", len(quotes)))

	return quotes
}

// fetchBatches runs at most Fetch.Concurrency requests at a time. Results are
// reassembled in batch order; the first failure cancels the remaining requests.
func (s *EqualWeightService) fetchBatches(ctx context.Context, batches []chunker.Batch) ([]model.Quote, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "EqualWeightService.fetchBatches"

	if len(batches) == 0 {
		return nil, nil
	}

	results := make([][]model.Quote, len(batches))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Fetch.Concurrency)

	for i, batch := range batches {
		i, batch := i, batch
		g.Go(func() error {
			quotes, err := s.quoteApi.GetQuotes(gCtx, batch.Symbols)
			if err != nil {
				return fmt.Errorf("batch %d/%d: %w", i+1, len(batches), err)
			}
			results[i] = quotes
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		slog.Error("can't fetch quotes", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, err
	}

	total := 0
	for _, quotes := range results {
		total += len(quotes)
	}

	res := make([]model.Quote, 0, total)
	for _, quotes := range results {
		res = append(res, quotes...)
	}

	slog.Info("quotes fetched", slog.String("rqID", rqID), slog.String("op", op), slog.Int("batches", len(batches)), slog.Int("quotes", total))

	return res, nil
}

// BuildTrades fetches quotes for tickers and allocates portfolioSize equally across them.
func (s *EqualWeightService) BuildTrades(ctx context.Context, tickers []string, portfolioSize decimal.Decimal) (model.Trades, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "EqualWeightService.BuildTrades"

	slog.Debug("BuildTrades start", slog.String("rqID", rqID), slog.String("op", op), slog.String("portfolioSize", portfolioSize.String()))
	defer func() {
		slog.Debug("BuildTrades finished", slog.String("rqID", rqID), slog.String("op", op))
	}()

	if len(tickers) == 0 {
		return model.Trades{}, fmt.Errorf("%w: ticker list is empty", model.ErrInvalidInput)
	}

	quotes, err := s.GetQuotes(ctx, tickers)
	if err != nil {
		return model.Trades{}, err
	}

	rows := make([]model.PortfolioRow, 0, len(quotes))
	for _, quote := range quotes {
		rows = append(rows, model.NewPortfolioRow(quote))
	}

	positionSize, err := allocation.EqualWeight(portfolioSize, rows)
	if err != nil {
		slog.Error("can't allocate portfolio", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.Trades{}, err
	}

	return model.Trades{
		PortfolioSize: portfolioSize,
		PositionSize:  positionSize,
		Rows:          rows,
	}, nil
}

// GenerateReport builds the trades and writes the spreadsheet. Upload and history
// failures are logged only: the report is already on disk by then.
func (s *EqualWeightService) GenerateReport(ctx context.Context, tickers []string, portfolioSize decimal.Decimal) (model.Run, error) {
	ctx = utils.CreateCtxWithRqID(ctx)
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "EqualWeightService.GenerateReport"

	slog.Info("GenerateReport start", slog.String("rqID", rqID), slog.String("op", op), slog.Int("tickers", len(tickers)))

	trades, err := s.BuildTrades(ctx, tickers, portfolioSize)
	if err != nil {
		return model.Run{}, err
	}

	if err := s.reportGenerator.Generate(ctx, s.cfg.Report.Path, trades.Rows); err != nil {
		return model.Run{}, err
	}

	run := model.Run{
		RunID:      rqID,
		Trades:     trades,
		ReportPath: s.cfg.Report.Path,
		CreatedAt:  time.Now(),
	}

	if s.cloudStorage != nil {
		link, err := s.cloudStorage.UploadFile(ctx, run.ReportPath)
		if err != nil {
			slog.Error("can't upload report", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			run.DownloadLink = link
		}
	}

	if s.repo != nil {
		if err := s.repo.SaveRun(ctx, run); err != nil {
			slog.Error("can't save run history", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		}
	}

	slog.Info("GenerateReport finished",
		slog.String("rqID", rqID),
		slog.String("op", op),
		slog.String("path", run.ReportPath),
		slog.Int("rows", len(trades.Rows)),
		slog.String("positionSize", trades.PositionSize.StringFixed(2)),
	)

	return run, nil
}
