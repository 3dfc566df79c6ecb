package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/KotFed0t/equal_weight_fund/config"
	"github.com/KotFed0t/equal_weight_fund/data"
	"github.com/KotFed0t/equal_weight_fund/data/cache"
	"github.com/KotFed0t/equal_weight_fund/data/repository"
	"github.com/KotFed0t/equal_weight_fund/internal/allocation"
	"github.com/KotFed0t/equal_weight_fund/internal/externalApi/cloudStorageApi/googleDriveApi"
	"github.com/KotFed0t/equal_weight_fund/internal/externalApi/iexApi"
	"github.com/KotFed0t/equal_weight_fund/internal/model"
	"github.com/KotFed0t/equal_weight_fund/internal/prompt"
	"github.com/KotFed0t/equal_weight_fund/internal/reportGenerator/xslsxGenerator"
	"github.com/KotFed0t/equal_weight_fund/internal/scheduler"
	"github.com/KotFed0t/equal_weight_fund/internal/service/equalWeightService"
	"github.com/KotFed0t/equal_weight_fund/internal/tickerSource"
	"github.com/KotFed0t/equal_weight_fund/utils"
	"github.com/shopspring/decimal"
)

func main() {
	cfg := config.MustLoad()

	setupLogger(cfg)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(utils.CreateCtxWithRqID(ctx), cfg, os.Stdin, os.Stdout); err != nil {
		slog.Error("run failed", slog.String("err", err.Error()))
		cancel()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, in io.Reader, out io.Writer) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "main.run"

	tickers, err := tickerSource.Load(ctx, cfg.TickersFile)
	if err != nil {
		return err
	}

	portfolioSize, err := resolvePortfolioSize(ctx, cfg, in, out)
	if err != nil {
		return err
	}

	var (
		quoteCache   equalWeightService.Cache
		repo         equalWeightService.Repository
		cloudStorage *googleDriveApi.GoogleDriveApi
	)

	if cfg.RedisEnabled() {
		redisClient, err := data.NewRedisClient(ctx, cfg)
		if err != nil {
			slog.Warn("redis unavailable, quote cache disabled", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			defer redisClient.Close()
			quoteCache = cache.NewRedisCache(redisClient, cfg)
		}
	}

	if cfg.PostgresEnabled() {
		pgClient, err := data.NewPostgresClient(ctx, cfg)
		if err != nil {
			slog.Warn("postgres unavailable, run history disabled", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			defer pgClient.Close()
			repo = repository.NewPostgres(pgClient)
		}
	}

	if cfg.GoogleDriveEnabled() {
		cloudStorage, err = googleDriveApi.New(ctx, cfg)
		if err != nil {
			slog.Warn("google drive unavailable, upload disabled", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
			cloudStorage = nil
		}
	}

	srv := newService(cfg, quoteCache, repo, cloudStorage)

	if !cfg.WatchMode() {
		result, err := srv.GenerateReport(ctx, tickers, portfolioSize)
		if err != nil {
			return err
		}
		printRun(out, result)
		return nil
	}

	return watch(ctx, cfg, srv, cloudStorage, tickers, portfolioSize, out)
}

func newService(cfg *config.Config, quoteCache equalWeightService.Cache, repo equalWeightService.Repository, cloudStorage *googleDriveApi.GoogleDriveApi) *equalWeightService.EqualWeightService {
	// a typed nil pointer would make the interface non-nil
	var storage equalWeightService.CloudStorage
	if cloudStorage != nil {
		storage = cloudStorage
	}

	return equalWeightService.New(cfg, iexApi.New(cfg), xslsxGenerator.New(cfg), quoteCache, repo, storage)
}

func resolvePortfolioSize(ctx context.Context, cfg *config.Config, in io.Reader, out io.Writer) (decimal.Decimal, error) {
	if cfg.PortfolioSize != "" {
		return allocation.ParsePortfolioSize(cfg.PortfolioSize)
	}
	return prompt.PortfolioSize(ctx, in, out)
}

// watch regenerates the report on schedule until ctx is done.
func watch(
	ctx context.Context,
	cfg *config.Config,
	srv *equalWeightService.EqualWeightService,
	cloudStorage *googleDriveApi.GoogleDriveApi,
	tickers []string,
	portfolioSize decimal.Decimal,
	out io.Writer,
) error {
	sched, err := scheduler.New()
	if err != nil {
		return err
	}

	generate := func(ctx context.Context) error {
		result, err := srv.GenerateReport(ctx, tickers, portfolioSize)
		if err != nil {
			return err
		}
		printRun(out, result)
		return nil
	}

	if cfg.Jobs.ReportCrontab != "" {
		err = sched.NewCrontabJob("generate report", generate, cfg.Jobs.ReportCrontab, true)
	} else {
		err = sched.NewIntervalJob("generate report", generate, cfg.Jobs.ReportInterval, true)
	}
	if err != nil {
		return err
	}

	if cloudStorage != nil {
		if err := sched.NewIntervalJob("delete old drive files", cloudStorage.DeleteOldFiles, cfg.Jobs.CleanupDriveInterval, false); err != nil {
			return err
		}
	}

	sched.Start()
	defer sched.Stop()

	slog.Info("watch mode started",
		slog.String("interval", cfg.Jobs.ReportInterval.String()),
		slog.String("crontab", cfg.Jobs.ReportCrontab),
	)

	<-ctx.Done()

	slog.Info("watch mode stopped")

	return nil
}

func printRun(out io.Writer, result model.Run) {
	fmt.Fprintf(out, "Report written to %s (%d positions, %s per position)\n",
		result.ReportPath,
		len(result.Trades.Rows),
		result.Trades.PositionSize.StringFixed(2),
	)
	if result.DownloadLink != "" {
		fmt.Fprintf(out, "Download link: %s\n", result.DownloadLink)
	}
}

func setupLogger(cfg *config.Config) {
	var logLevel slog.Level

	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warning":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	// stdout carries the prompt and the result
	log := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(log)
}
