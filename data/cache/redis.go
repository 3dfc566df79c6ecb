package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/KotFed0t/equal_weight_fund/config"
	"github.com/KotFed0t/equal_weight_fund/internal/model"
	"github.com/KotFed0t/equal_weight_fund/utils"
	"github.com/redis/go-redis/v9"
)

const quoteKeyPrefix = "quote:"

type RedisCache struct {
	redis *redis.Client
	cfg   *config.Config
}

func NewRedisCache(redisClient *redis.Client, cfg *config.Config) *RedisCache {
	return &RedisCache{redis: redisClient, cfg: cfg}
}

func quoteKey(ticker string) string {
	return quoteKeyPrefix + ticker
}

func (r *RedisCache) SetQuotes(ctx context.Context, quotes []model.Quote) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "RedisCache.SetQuotes"

	if len(quotes) == 0 {
		return nil
	}

	slog.Debug("SetQuotes start", slog.String("rqID", rqID), slog.String("op", op), slog.Int("quotes", len(quotes)))

	pipe := r.redis.Pipeline()
	for _, quote := range quotes {
		quoteJson, err := json.Marshal(quote)
		if err != nil {
			slog.Error("can't marshall quote", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()), slog.Any("quote", quote))
			return fmt.Errorf("marshall quote %s: %w", quote.Ticker, err)
		}

		pipe.Set(ctx, quoteKey(quote.Ticker), quoteJson, r.cfg.Cache.QuotesExpiration)
	}

	_, err := pipe.Exec(ctx)
	if err != nil {
		slog.Error("failed on pipe.Exec", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}

	slog.Debug("SetQuotes completed", slog.String("rqID", rqID), slog.String("op", op))

	return nil
}

// GetQuotes returns the cached quotes among tickers; misses are simply absent from the map.
func (r *RedisCache) GetQuotes(ctx context.Context, tickers []string) (map[string]model.Quote, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "RedisCache.GetQuotes"

	res := make(map[string]model.Quote, len(tickers))
	if len(tickers) == 0 {
		return res, nil
	}

	slog.Debug("GetQuotes start", slog.String("rqID", rqID), slog.String("op", op), slog.Int("tickers", len(tickers)))

	keys := make([]string, 0, len(tickers))
	for _, ticker := range tickers {
		keys = append(keys, quoteKey(ticker))
	}

	values, err := r.redis.MGet(ctx, keys...).Result()
	if err != nil {
		slog.Error("failed on redis.MGet", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, err
	}

	for i, value := range values {
		raw, ok := value.(string)
		if !ok {
			continue
		}

		quote := model.Quote{}
		if err := json.Unmarshal([]byte(raw), &quote); err != nil {
			slog.Warn("can't unmarshall cached quote", slog.String("rqID", rqID), slog.String("op", op), slog.String("key", keys[i]), slog.String("err", err.Error()))
			continue
		}
		res[tickers[i]] = quote
	}

	slog.Debug("GetQuotes finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int("hits", len(res)))

	return res, nil
}
