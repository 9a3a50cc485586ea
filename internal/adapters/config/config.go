package config

import (
	"fmt"
	"math"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"marketpulse/pkg/errors"
)

type Config struct {
	App           AppConfig
	Market        MarketConfig
	Series        SeriesConfig
	Labeling      LabelingConfig
	ML            MLConfig
	Strategy      StrategyConfig
	Validation    ValidationConfig
	Cycle         CycleConfig
	Providers     ProvidersConfig
	ClickHouse    ClickHouseConfig
	Redis         RedisConfig
	Kafka         KafkaConfig
	Telegram      TelegramConfig
	HTTP          HTTPConfig
	ErrorTracking ErrorTrackingConfig
}

type AppConfig struct {
	Name     string `envconfig:"APP_NAME" default:"marketpulse"`
	Env      string `envconfig:"APP_ENV" default:"development" validate:"oneof=development production test"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	Version  string `envconfig:"APP_VERSION" default:"dev"`
}

type MarketConfig struct {
	Symbol    string        `envconfig:"MARKET_SYMBOL" default:"USDTTMN" validate:"required"`
	Timeframe string        `envconfig:"MARKET_TIMEFRAME" default:"60" validate:"required"`
	Interval  time.Duration `envconfig:"MARKET_CANDLE_INTERVAL" default:"1h" validate:"gt=0"`
	Limit     int           `envconfig:"MARKET_FETCH_LIMIT" default:"100" validate:"gt=0"`

	// Candle source: "wallex" or "static" (replays the persisted series only)
	Source        string  `envconfig:"MARKET_SOURCE" default:"wallex" validate:"oneof=wallex static"`
	WallexBaseURL string  `envconfig:"WALLEX_BASE_URL" default:"https://api.wallex.ir"`
	WallexAPIKey  string  `envconfig:"WALLEX_API_KEY"`
	RateLimit     float64 `envconfig:"WALLEX_RATE_LIMIT" default:"2" validate:"gt=0"`
}

type SeriesConfig struct {
	Backend            string  `envconfig:"SERIES_BACKEND" default:"csv" validate:"oneof=csv clickhouse"`
	Path               string  `envconfig:"SERIES_PATH" default:"data/market_history.csv"`
	MaxLength          int     `envconfig:"SERIES_MAX_LENGTH" default:"5000" validate:"gt=0"`
	ProcessingWindow   int     `envconfig:"SERIES_PROCESSING_WINDOW" default:"2000" validate:"gt=0"`
	SyntheticSize      int     `envconfig:"SERIES_SYNTHETIC_SIZE" default:"2000" validate:"gte=0"`
	SyntheticBasePrice float64 `envconfig:"SERIES_SYNTHETIC_BASE_PRICE" default:"60000" validate:"gt=0"`
	SyntheticSeed      int64   `envconfig:"SERIES_SYNTHETIC_SEED" default:"42"`
}

type LabelingConfig struct {
	VolatilitySpan      int     `envconfig:"LABEL_VOLATILITY_SPAN" default:"100" validate:"gt=1"`
	Horizon             int     `envconfig:"LABEL_HORIZON" default:"24" validate:"gt=0"`
	ProfitMultiple      float64 `envconfig:"LABEL_PROFIT_MULTIPLE" default:"2" validate:"gt=0"`
	LossMultiple        float64 `envconfig:"LABEL_LOSS_MULTIPLE" default:"1" validate:"gt=0"`
	MinMinorityFraction float64 `envconfig:"LABEL_MIN_MINORITY_FRACTION" default:"0.10" validate:"gte=0,lt=0.5"`
}

type MLConfig struct {
	ModelDir       string   `envconfig:"ML_MODEL_DIR" default:"data/models" validate:"required"`
	Features       []string `envconfig:"ML_FEATURES" default:"sma_50,pct_change_3h,pct_change_24h,vol_ratio,macd_hist" validate:"min=1"`
	Window         int      `envconfig:"ML_WINDOW" default:"24" validate:"gt=1"`
	SequenceWeight float64  `envconfig:"ML_SEQUENCE_WEIGHT" default:"0.7" validate:"gte=0,lte=1"`
	LinearWeight   float64  `envconfig:"ML_LINEAR_WEIGHT" default:"0.3" validate:"gte=0,lte=1"`
	Hidden         int      `envconfig:"ML_HIDDEN" default:"16" validate:"gt=0"`
	Epochs         int      `envconfig:"ML_EPOCHS" default:"15" validate:"gt=0"`
	LearningRate   float64  `envconfig:"ML_LEARNING_RATE" default:"0.01" validate:"gt=0"`
	BoostRounds    int      `envconfig:"ML_BOOST_ROUNDS" default:"100" validate:"gt=0"`
	Seed           int64    `envconfig:"ML_SEED" default:"42"`

	// Optional externally trained sequence model served through onnxruntime
	SequenceONNXPath string `envconfig:"ML_SEQUENCE_ONNX_PATH"`
	ONNXLibraryPath  string `envconfig:"ML_ONNX_LIBRARY_PATH"`
}

type StrategyConfig struct {
	TechnicalWeight float64    `envconfig:"STRATEGY_TECHNICAL_WEIGHT" default:"0.5" validate:"gte=0,lte=1"`
	MacroWeight     float64    `envconfig:"STRATEGY_MACRO_WEIGHT" default:"0.3" validate:"gte=0,lte=1"`
	SentimentWeight float64    `envconfig:"STRATEGY_SENTIMENT_WEIGHT" default:"0.2" validate:"gte=0,lte=1"`
	BuyThreshold    float64    `envconfig:"STRATEGY_BUY_THRESHOLD" default:"60"`
	SellThreshold   float64    `envconfig:"STRATEGY_SELL_THRESHOLD" default:"40" validate:"ltfield=BuyThreshold"`
	RSIOversold     float64    `envconfig:"STRATEGY_RSI_OVERSOLD" default:"30"`
	RSIOverbought   float64    `envconfig:"STRATEGY_RSI_OVERBOUGHT" default:"70" validate:"gtfield=RSIOversold"`
	AIBuyAbove      float64    `envconfig:"STRATEGY_AI_BUY_ABOVE" default:"0.55" validate:"gte=0.5,lte=1"`
	AISellBelow     float64    `envconfig:"STRATEGY_AI_SELL_BELOW" default:"0.45" validate:"gte=0,lte=0.5"`
	MacroRules      MacroRules `envconfig:"STRATEGY_MACRO_RULES" default:"USDT_IRT>65000:15:High USD Rate;GOLD_IRT>180000000:10:Gold Support"`
}

type ValidationConfig struct {
	Driver       string        `envconfig:"STORE_DRIVER" default:"sqlite3" validate:"oneof=sqlite3 postgres"`
	DSN          string        `envconfig:"STORE_DSN" default:"data/trading_data.db" validate:"required"`
	Horizon      time.Duration `envconfig:"VALIDATION_HORIZON" default:"120m" validate:"gt=0"`
	HistoryLimit int           `envconfig:"VALIDATION_HISTORY_LIMIT" default:"10" validate:"gt=0"`
}

// CycleConfig controls the analysis worker loop
type CycleConfig struct {
	Enabled        bool          `envconfig:"CYCLE_ENABLED" default:"true"`
	Interval       time.Duration `envconfig:"CYCLE_INTERVAL" default:"60s" validate:"gt=0"`
	FailureBackoff time.Duration `envconfig:"CYCLE_FAILURE_BACKOFF" default:"5s" validate:"gt=0"`
	FetchTimeout   time.Duration `envconfig:"CYCLE_FETCH_TIMEOUT" default:"5s" validate:"gt=0"`
	FeatureWindow  int           `envconfig:"CYCLE_FEATURE_WINDOW" default:"150" validate:"gt=0"`
	NotifyBuffer   int           `envconfig:"CYCLE_NOTIFY_BUFFER" default:"8" validate:"gt=0"`
}

type ProvidersConfig struct {
	MacroEnabled     bool          `envconfig:"MACRO_ENABLED" default:"true"`
	SentimentEnabled bool          `envconfig:"SENTIMENT_ENABLED" default:"true"`
	NewsFeeds        []string      `envconfig:"SENTIMENT_FEEDS" default:"https://www.coindesk.com/arc/outboundfeeds/rss/"`
	NewsMaxItems     int           `envconfig:"SENTIMENT_MAX_ITEMS" default:"15" validate:"gt=0"`
	CacheTTL         time.Duration `envconfig:"PROVIDER_CACHE_TTL" default:"5m"`
}

type ClickHouseConfig struct {
	Host     string `envconfig:"CLICKHOUSE_HOST" default:"localhost"`
	Port     int    `envconfig:"CLICKHOUSE_PORT" default:"9000"`
	User     string `envconfig:"CLICKHOUSE_USER" default:"default"`
	Password string `envconfig:"CLICKHOUSE_PASSWORD"`
	Database string `envconfig:"CLICKHOUSE_DB" default:"marketpulse"`
}

type RedisConfig struct {
	Enabled  bool   `envconfig:"REDIS_ENABLED" default:"false"`
	Host     string `envconfig:"REDIS_HOST" default:"localhost"`
	Port     int    `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type KafkaConfig struct {
	Enabled      bool     `envconfig:"KAFKA_ENABLED" default:"false"`
	Brokers      []string `envconfig:"KAFKA_BROKERS" default:"localhost:9092"`
	SignalTopic  string   `envconfig:"KAFKA_SIGNAL_TOPIC" default:"marketpulse.signals"`
	FailureTopic string   `envconfig:"KAFKA_FAILURE_TOPIC" default:"marketpulse.cycle_failures"`
	GroupID      string   `envconfig:"KAFKA_GROUP_ID" default:"marketpulse-watch"`
}

type TelegramConfig struct {
	Enabled  bool   `envconfig:"TELEGRAM_ENABLED" default:"false"`
	BotToken string `envconfig:"TELEGRAM_BOT_TOKEN"`
	ChatID   int64  `envconfig:"TELEGRAM_CHAT_ID"`
}

type HTTPConfig struct {
	Addr string `envconfig:"HTTP_ADDR" default:":8080"`
}

type ErrorTrackingConfig struct {
	Enabled   bool   `envconfig:"ERROR_TRACKING_ENABLED" default:"false"`
	SentryDSN string `envconfig:"SENTRY_DSN"`
}

// Load reads configuration from environment variables
// It first tries to load .env file (useful for local development)
func Load() (*Config, error) {
	// Load .env file if exists (ignore error if not exists)
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to process env config")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks field constraints and cross-field invariants
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return errors.Wrapf(errors.ErrInvalidInput, "config: %v", err)
	}

	if !sumsToOne(c.ML.SequenceWeight, c.ML.LinearWeight) {
		return errors.Wrapf(errors.ErrInvalidInput, "ensemble weights must sum to 1, got %.3f + %.3f",
			c.ML.SequenceWeight, c.ML.LinearWeight)
	}
	if !sumsToOne(c.Strategy.TechnicalWeight, c.Strategy.MacroWeight, c.Strategy.SentimentWeight) {
		return errors.Wrapf(errors.ErrInvalidInput, "strategy weights must sum to 1")
	}
	if c.Telegram.Enabled && (c.Telegram.BotToken == "" || c.Telegram.ChatID == 0) {
		return errors.Wrapf(errors.ErrInvalidInput, "telegram enabled without token or chat id")
	}
	if c.ErrorTracking.Enabled && c.ErrorTracking.SentryDSN == "" {
		return errors.Wrapf(errors.ErrInvalidInput, "error tracking enabled without SENTRY_DSN")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return errors.Wrapf(errors.ErrInvalidInput, "kafka enabled without brokers")
	}

	return nil
}

func sumsToOne(weights ...float64) bool {
	var sum float64
	for _, w := range weights {
		sum += w
	}
	return math.Abs(sum-1) < 1e-6
}
