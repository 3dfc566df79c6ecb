package config

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// provider limit for one batch quote request
const maxBatchSize = 100

const (
	MissingSymbolFail = "fail"
	MissingSymbolSkip = "skip"
)

type Config struct {
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	API         API
	Fetch       Fetch
	Report      Report
	Redis       Redis
	Cache       Cache
	Postgres    Postgres
	GoogleDrive GoogleDrive
	Jobs        Jobs
	TickersFile string `env:"TICKERS_FILE" envDefault:"sp_500_stocks.csv"`
	// empty means ask on stdin
	PortfolioSize string `env:"PORTFOLIO_SIZE" envDefault:""`
}

type API struct {
	Debug        bool          `env:"API_DEBUG" envDefault:"false"`
	Timeout      time.Duration `env:"API_TIMEOUT" envDefault:"10s"`
	RetryCount   int           `env:"API_RETRY_COUNT" envDefault:"3"`
	RetryWait    time.Duration `env:"API_RETRY_WAIT" envDefault:"500ms"`
	RetryMaxWait time.Duration `env:"API_RETRY_MAX_WAIT" envDefault:"5s"`
	IexApi       IexApi
}

type IexApi struct {
	Url   string `env:"IEX_API_URL" envDefault:"https://api.iex.cloud/v1"`
	Token string `env:"IEX_API_TOKEN"`
}

type Fetch struct {
	BatchSize           int    `env:"BATCH_SIZE" envDefault:"100"`
	Concurrency         int    `env:"FETCH_CONCURRENCY" envDefault:"1"`
	MissingSymbolPolicy string `env:"MISSING_SYMBOL_POLICY" envDefault:"fail"`
}

type Report struct {
	Path        string  `env:"REPORT_PATH" envDefault:"recommended_trades.xlsx"`
	SheetName   string  `env:"REPORT_SHEET" envDefault:"Recommended Trades"`
	ColumnWidth float64 `env:"REPORT_COLUMN_WIDTH" envDefault:"18"`
}

type Redis struct {
	Host     string `env:"REDIS_HOST" envDefault:""`
	Port     int    `env:"REDIS_PORT" envDefault:"6379"`
	Password string `env:"REDIS_PASSWORD" envDefault:""`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
}

type Cache struct {
	QuotesExpiration time.Duration `env:"CACHE_QUOTES_EXPIRATION" envDefault:"15m"`
}

type Postgres struct {
	Host            string `env:"PG_HOST" envDefault:""`
	Port            int    `env:"PG_PORT" envDefault:"5432"`
	DbName          string `env:"PG_DB_NAME" envDefault:"equal_weight"`
	Password        string `env:"PG_PASSWORD" envDefault:""`
	User            string `env:"PG_USER" envDefault:"postgres"`
	MaxOpenConns    int    `env:"PG_MAX_OPEN_CONNS" envDefault:"4"`
	ConnMaxLifetime int    `env:"PG_CONN_MAX_LIFETIME" envDefault:"300"`
	MaxIdleConns    int    `env:"PG_MAX_IDLE_CONNS" envDefault:"2"`
	ConnMaxIdleTime int    `env:"PG_CONN_MAX_IDLE_TIME" envDefault:"60"`
	MigrationDir    string `env:"PG_MIGRATION_DIR" envDefault:"migrations"`
}

type GoogleDrive struct {
	CredentialsFile string        `env:"GOOGLE_DRIVE_CREDENTIALS_FILE" envDefault:""`
	FileTTL         time.Duration `env:"GOOGLE_DRIVE_FILE_TTL" envDefault:"168h"`
}

type Jobs struct {
	// zero interval and empty crontab disable watch mode
	ReportInterval       time.Duration `env:"REPORT_INTERVAL" envDefault:"0s"`
	ReportCrontab        string        `env:"REPORT_CRONTAB" envDefault:""`
	CleanupDriveInterval time.Duration `env:"CLEANUP_DRIVE_INTERVAL" envDefault:"24h"`
}

func (c *Config) RedisEnabled() bool {
	return c.Redis.Host != ""
}

func (c *Config) PostgresEnabled() bool {
	return c.Postgres.Host != ""
}

func (c *Config) GoogleDriveEnabled() bool {
	return c.GoogleDrive.CredentialsFile != ""
}

func (c *Config) WatchMode() bool {
	return c.Jobs.ReportInterval > 0 || c.Jobs.ReportCrontab != ""
}

func (c *Config) SkipMissingSymbols() bool {
	return c.Fetch.MissingSymbolPolicy == MissingSymbolSkip
}

func Load() (*Config, error) {
	cfg := &Config{}

	opts := env.Options{RequiredIfNoDef: true}

	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func MustLoad() *Config {
	_ = godotenv.Load(".env")

	cfg, err := Load()
	if err != nil {
		log.Fatalf("load config error: %s", err)
	}

	return cfg
}

func (c *Config) validate() error {
	if c.API.IexApi.Token == "" {
		return errors.New("IEX_API_TOKEN is empty")
	}

	if c.Fetch.BatchSize < 1 || c.Fetch.BatchSize > maxBatchSize {
		return fmt.Errorf("BATCH_SIZE must be in [1, %d], got %d", maxBatchSize, c.Fetch.BatchSize)
	}

	if c.Fetch.Concurrency < 1 {
		return fmt.Errorf("FETCH_CONCURRENCY must be positive, got %d", c.Fetch.Concurrency)
	}

	switch c.Fetch.MissingSymbolPolicy {
	case MissingSymbolFail, MissingSymbolSkip:
	default:
		return fmt.Errorf("MISSING_SYMBOL_POLICY must be %q or %q, got %q", MissingSymbolFail, MissingSymbolSkip, c.Fetch.MissingSymbolPolicy)
	}

	if c.Report.ColumnWidth <= 0 {
		return fmt.Errorf("REPORT_COLUMN_WIDTH must be positive, got %v", c.Report.ColumnWidth)
	}

	if c.Jobs.ReportInterval < 0 {
		return fmt.Errorf("REPORT_INTERVAL must not be negative, got %s", c.Jobs.ReportInterval)
	}

	if c.Jobs.ReportInterval > 0 && c.Jobs.ReportCrontab != "" {
		return errors.New("REPORT_INTERVAL and REPORT_CRONTAB are mutually exclusive")
	}

	if c.WatchMode() && c.PortfolioSize == "" {
		return errors.New("PORTFOLIO_SIZE is required in watch mode")
	}

	return nil
}
