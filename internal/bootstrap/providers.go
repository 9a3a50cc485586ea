package bootstrap

import (
	"context"
	"time"

	chclient "marketpulse/internal/adapters/clickhouse"
	"marketpulse/internal/adapters/config"
	errnoop "marketpulse/internal/adapters/errors/noop"
	"marketpulse/internal/adapters/errors/sentry"
	"marketpulse/internal/adapters/exchanges/wallex"
	"marketpulse/internal/adapters/kafka"
	"marketpulse/internal/adapters/news"
	redisclient "marketpulse/internal/adapters/redis"
	"marketpulse/internal/adapters/telegram"
	"marketpulse/internal/api"
	"marketpulse/internal/api/health"
	"marketpulse/internal/api/stream"
	"marketpulse/internal/domain/macro"
	"marketpulse/internal/domain/market_data"
	"marketpulse/internal/domain/sentiment"
	"marketpulse/internal/metrics"
	"marketpulse/internal/ml/ensemble"
	chrepo "marketpulse/internal/repository/clickhouse"
	"marketpulse/internal/repository/csvstore"
	rediscache "marketpulse/internal/repository/redis"
	"marketpulse/internal/repository/sqldb"
	"marketpulse/internal/services/features"
	"marketpulse/internal/services/labeling"
	"marketpulse/internal/services/notify"
	"marketpulse/internal/services/series"
	"marketpulse/internal/services/strategy"
	"marketpulse/internal/workers"
	"marketpulse/internal/workers/analysis"
	"marketpulse/pkg/errors"
	"marketpulse/pkg/logger"
)

// ========================================
// Phase 1: Configuration & Logging
// ========================================

// MustInitConfig loads configuration and initializes logger and error tracking
func (c *Container) MustInitConfig() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}
	c.Config = cfg

	log, err := logger.New(cfg.App.LogLevel, cfg.App.Env)
	if err != nil {
		panic("failed to init logger: " + err.Error())
	}

	c.ErrorTracker = provideErrorTracker(cfg, log)
	c.Log = log.WithTracker(c.ErrorTracker)
	c.Log.Infof("Starting %s %s in %s mode", cfg.App.Name, cfg.App.Version, cfg.App.Env)
}

// ========================================
// Phase 2: Infrastructure Layer
// ========================================

// MustInitInfrastructure opens the validation store and the optional ClickHouse and Redis
func (c *Container) MustInitInfrastructure() {
	ctx, cancel := context.WithTimeout(c.Context, 30*time.Second)
	defer cancel()

	var err error

	c.Log.Infow("Opening validation store...", "driver", c.Config.Validation.Driver)
	c.Store, err = sqldb.NewClient(ctx, c.Config.Validation.Driver, c.Config.Validation.DSN)
	if err != nil {
		c.Log.Fatalf("failed to open store: %v", err)
	}
	if err := sqldb.Migrate(ctx, c.Store.DB()); err != nil {
		c.Log.Fatalf("failed to migrate store: %v", err)
	}
	c.Log.Infow("✓ Validation store ready")

	if c.Config.Series.Backend == "clickhouse" {
		c.Log.Infow("Connecting to ClickHouse...")
		c.CH, err = chclient.NewClient(ctx, c.Config.ClickHouse)
		if err != nil {
			c.Log.Fatalf("failed to connect clickhouse: %v", err)
		}
		c.Log.Infow("✓ ClickHouse connected")
	}

	if c.Config.Redis.Enabled {
		c.Log.Infow("Connecting to Redis...")
		c.Redis, err = redisclient.NewClient(ctx, c.Config.Redis)
		if err != nil {
			// provider caching is an optimisation; run uncached
			c.Log.Warnw("Redis unavailable, provider caching disabled", "error", err)
			c.Redis = nil
		} else {
			c.Log.Infow("✓ Redis connected")
		}
	}
}

// ========================================
// Phase 3: Analysis Pipeline
// ========================================

// MustInitPipeline builds the source, series store, models and providers
func (c *Container) MustInitPipeline() {
	cfg := c.Config
	p := c.Pipeline
	var err error

	p.Wallex = wallex.NewClient(wallex.Config{
		BaseURL:   cfg.Market.WallexBaseURL,
		APIKey:    cfg.Market.WallexAPIKey,
		RateLimit: cfg.Market.RateLimit,
	})

	p.SeriesStore, err = c.provideSeriesStore()
	if err != nil {
		c.Log.Fatalf("failed to init series store: %v", err)
	}

	p.Source, err = c.provideCandleSource()
	if err != nil {
		c.Log.Fatalf("failed to init candle source: %v", err)
	}

	p.Merger = series.NewMerger(p.SeriesStore, series.Config{
		MaxLength:          cfg.Series.MaxLength,
		Interval:           cfg.Market.Interval,
		SyntheticSize:      cfg.Series.SyntheticSize,
		SyntheticBasePrice: cfg.Series.SyntheticBasePrice,
		SyntheticSeed:      cfg.Series.SyntheticSeed,
	}, c.Log)

	p.Engine, err = features.NewEngine(cfg.ML.Features)
	if err != nil {
		c.Log.Fatalf("invalid model features: %v", err)
	}

	p.Labeler = labeling.NewLabeler(labeling.Config{
		VolatilitySpan: cfg.Labeling.VolatilitySpan,
		Barrier: labeling.BarrierConfig{
			Horizon:        cfg.Labeling.Horizon,
			ProfitMultiple: cfg.Labeling.ProfitMultiple,
			LossMultiple:   cfg.Labeling.LossMultiple,
		},
		MinMinorityFraction: cfg.Labeling.MinMinorityFraction,
	})

	p.Ensemble = provideEnsemble(cfg, p.Engine.ModelFeatures(), c.Log)
	p.Scorer = strategy.NewScorer(provideStrategyConfig(cfg))
	p.Predictions = sqldb.NewPredictionRepository(c.Store.DB())
	p.Macro = c.provideMacro()
	p.Sentiment = c.provideSentiment()

	c.Log.Infow("✓ Pipeline initialized",
		"symbol", cfg.Market.Symbol,
		"source", cfg.Market.Source,
		"series_backend", cfg.Series.Backend,
		"model_state", p.Ensemble.State(),
	)
}

// ========================================
// Phase 4: Result Delivery
// ========================================

// MustInitDelivery wires the dashboard stream and the optional Kafka and Telegram sinks
func (c *Container) MustInitDelivery() {
	cfg := c.Config
	d := c.Delivery

	d.Hub = stream.NewHub(c.Log)
	d.Dispatcher = notify.NewDispatcher(cfg.Cycle.NotifyBuffer, c.Log)
	d.Dispatcher.Register(notify.NewStreamSink(d.Hub))

	if cfg.Kafka.Enabled {
		d.KafkaProducer = kafka.NewProducer(kafka.ProducerConfig{Brokers: cfg.Kafka.Brokers}, c.Log)
		d.Dispatcher.Register(notify.NewKafkaSink(d.KafkaProducer, cfg.Kafka.SignalTopic, cfg.Kafka.FailureTopic))
		c.Log.Infow("✓ Kafka sink registered", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.SignalTopic)
	}

	if cfg.Telegram.Enabled {
		bot, err := telegram.NewBot(telegram.Config{
			Token:  cfg.Telegram.BotToken,
			ChatID: cfg.Telegram.ChatID,
			Debug:  cfg.App.Env == "development",
		}, c.Log)
		if err != nil {
			c.Log.Warnw("Telegram unavailable, alerts disabled", "error", err)
		} else {
			d.TelegramBot = bot
			d.Dispatcher.Register(notify.NewTelegramSink(bot))
			c.Log.Infow("✓ Telegram sink registered")
		}
	}
}

// ========================================
// Phase 5: Background Processing
// ========================================

// MustInitBackground builds the analysis worker and its scheduler
func (c *Container) MustInitBackground() {
	c.Background.WorkerScheduler = workers.NewScheduler(c.Log)
	c.Background.AnalysisWorker = provideAnalysisWorker(c.Config, c.Pipeline, c.Delivery.Dispatcher, c.Log)
	c.Background.WorkerScheduler.RegisterWorker(c.Background.AnalysisWorker)

	c.Log.Infow("✓ Background processing initialized",
		"interval", c.Config.Cycle.Interval,
		"backoff", c.Config.Cycle.FailureBackoff,
	)
}

// ========================================
// Phase 6: Application Layer
// ========================================

// MustInitApplication registers metrics and builds the HTTP server
func (c *Container) MustInitApplication() {
	metrics.Init()

	collector, err := metrics.NewProcessCollector(c.Log)
	if err != nil {
		c.Log.Warnw("Process vitals unavailable", "error", err)
	} else {
		metrics.RegisterProcessCollector(collector)
		c.Application.ProcessCollector = collector
	}

	c.Application.HealthHandler = c.provideHealthHandler()
	c.Application.HTTPServer = api.NewServer(api.ServerConfig{
		Addr:        c.Config.HTTP.Addr,
		ServiceName: c.Config.App.Name,
		Version:     c.Config.App.Version,
		Symbol:      c.Config.Market.Symbol,
		Stream:      c.Delivery.Hub,
	}, c.Application.HealthHandler, c.Log)
}

// ========================================
// Helper Provider Functions
// ========================================

func provideErrorTracker(cfg *config.Config, log *logger.Logger) errors.Tracker {
	if !cfg.ErrorTracking.Enabled || cfg.ErrorTracking.SentryDSN == "" {
		log.Infow("Error tracking disabled")
		return errnoop.New()
	}

	tracker, err := sentry.New(cfg.ErrorTracking.SentryDSN, cfg.App.Env, cfg.App.Version, cfg.Market.Symbol)
	if err != nil {
		log.Warnf("Failed to initialize Sentry: %v", err)
		return errnoop.New()
	}

	log.Infow("✓ Error tracking initialized (Sentry)")
	return tracker
}

func (c *Container) provideSeriesStore() (market_data.SeriesStore, error) {
	cfg := c.Config
	if cfg.Series.Backend != "clickhouse" {
		return csvstore.New(cfg.Series.Path), nil
	}

	repo := chrepo.NewSeriesRepository(c.CH.Conn(), cfg.Market.Symbol, cfg.Market.Timeframe, cfg.Series.MaxLength)
	ctx, cancel := context.WithTimeout(c.Context, 10*time.Second)
	defer cancel()
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	return repo, nil
}

// provideCandleSource returns the live connector, or a replay of the stored series
func (c *Container) provideCandleSource() (market_data.CandleSource, error) {
	if c.Config.Market.Source == "wallex" {
		return c.Pipeline.Wallex, nil
	}

	ctx, cancel := context.WithTimeout(c.Context, 10*time.Second)
	defer cancel()
	stored, err := c.Pipeline.SeriesStore.Load(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "load series for static source")
	}
	return &market_data.StaticSource{Series: stored}, nil
}

func provideEnsemble(cfg *config.Config, modelFeatures []string, log *logger.Logger) *ensemble.Ensemble {
	e := ensemble.New(ensemble.Config{
		ModelDir:         cfg.ML.ModelDir,
		Features:         modelFeatures,
		Window:           cfg.ML.Window,
		SequenceWeight:   cfg.ML.SequenceWeight,
		LinearWeight:     cfg.ML.LinearWeight,
		Hidden:           cfg.ML.Hidden,
		Epochs:           cfg.ML.Epochs,
		LearningRate:     cfg.ML.LearningRate,
		BoostRounds:      cfg.ML.BoostRounds,
		Seed:             cfg.ML.Seed,
		SequenceONNXPath: cfg.ML.SequenceONNXPath,
		ONNXLibraryPath:  cfg.ML.ONNXLibraryPath,
	}, log)

	if err := e.Load(); err != nil {
		log.Infow("No usable model artifacts, first cycle will train", "dir", cfg.ML.ModelDir, "reason", err)
	}
	return e
}

func provideStrategyConfig(cfg *config.Config) strategy.Config {
	rules := make([]strategy.MacroRule, 0, len(cfg.Strategy.MacroRules))
	for _, r := range cfg.Strategy.MacroRules {
		rules = append(rules, strategy.MacroRule{Key: r.Key, Above: r.Above, Bonus: r.Bonus, Reason: r.Reason})
	}
	return strategy.Config{
		TechnicalWeight: cfg.Strategy.TechnicalWeight,
		MacroWeight:     cfg.Strategy.MacroWeight,
		SentimentWeight: cfg.Strategy.SentimentWeight,
		BuyThreshold:    cfg.Strategy.BuyThreshold,
		SellThreshold:   cfg.Strategy.SellThreshold,
		RSIOversold:     cfg.Strategy.RSIOversold,
		RSIOverbought:   cfg.Strategy.RSIOverbought,
		MacroRules:      rules,
	}
}

func (c *Container) provideMacro() macro.Provider {
	if !c.Config.Providers.MacroEnabled {
		return nil
	}
	var p macro.Provider = c.Pipeline.Wallex
	if c.Redis != nil {
		p = rediscache.NewCachedMacro(p, c.Redis.Client(), c.Config.Providers.CacheTTL, c.Log)
	}
	return p
}

func (c *Container) provideSentiment() sentiment.Provider {
	if !c.Config.Providers.SentimentEnabled {
		return nil
	}
	var p sentiment.Provider = news.NewRSSProvider(news.Config{
		Feeds:    c.Config.Providers.NewsFeeds,
		MaxItems: c.Config.Providers.NewsMaxItems,
	}, c.Log)
	if c.Redis != nil {
		p = rediscache.NewCachedSentiment(p, c.Redis.Client(), c.Config.Providers.CacheTTL, c.Log)
	}
	return p
}

func provideAnalysisWorker(cfg *config.Config, p *Pipeline, publisher analysis.Publisher, log *logger.Logger) *analysis.Worker {
	return analysis.NewWorker(analysis.Config{
		Symbol:            cfg.Market.Symbol,
		Timeframe:         cfg.Market.Timeframe,
		FetchLimit:        cfg.Market.Limit,
		ProcessingWindow:  cfg.Series.ProcessingWindow,
		FeatureWindow:     cfg.Cycle.FeatureWindow,
		FetchTimeout:      cfg.Cycle.FetchTimeout,
		ValidationHorizon: cfg.Validation.Horizon,
		HistoryLimit:      cfg.Validation.HistoryLimit,
		AIBuyAbove:        cfg.Strategy.AIBuyAbove,
		AISellBelow:       cfg.Strategy.AISellBelow,
		Interval:          cfg.Cycle.Interval,
		FailureBackoff:    cfg.Cycle.FailureBackoff,
		Enabled:           cfg.Cycle.Enabled,
	}, analysis.Deps{
		Source:    p.Source,
		Merger:    p.Merger,
		Engine:    p.Engine,
		Labeler:   p.Labeler,
		Predictor: p.Ensemble,
		Scorer:    p.Scorer,
		Store:     p.Predictions,
		Macro:     p.Macro,
		Sentiment: p.Sentiment,
		Publisher: publisher,
	}, log)
}

func (c *Container) provideHealthHandler() *health.Handler {
	cycle := c.Config.Cycle
	opts := []health.Option{
		health.WithDependency("store", c.Store, true),
		// a worker is stale after missing a few scheduled runs
		health.WithWorkers(c.Background.WorkerScheduler, 3*cycle.Interval+cycle.FetchTimeout),
	}
	if c.CH != nil {
		opts = append(opts, health.WithDependency("clickhouse", c.CH, true))
	}
	if c.Redis != nil {
		opts = append(opts, health.WithDependency("redis", c.Redis, false))
	}
	if c.Application.ProcessCollector != nil {
		opts = append(opts, health.WithVitals(c.Application.ProcessCollector))
	}
	return health.New(c.Log, c.Config.App.Name, c.Config.App.Version, opts...)
}
