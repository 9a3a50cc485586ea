package bootstrap

import (
	"context"
	"sync"

	chclient "marketpulse/internal/adapters/clickhouse"
	"marketpulse/internal/adapters/config"
	"marketpulse/internal/adapters/exchanges/wallex"
	"marketpulse/internal/adapters/kafka"
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

// Container holds all application dependencies and their lifecycle.
// Components are organized in initialization order.
type Container struct {
	// Core configuration & logging
	Config       *config.Config
	Log          *logger.Logger
	ErrorTracker errors.Tracker

	// Infrastructure (data stores)
	Store *sqldb.Client
	CH    *chclient.Client
	Redis *redisclient.Client

	Pipeline    *Pipeline
	Delivery    *Delivery
	Application *Application
	Background  *Background

	Lifecycle *Lifecycle
	WG        *sync.WaitGroup
	Context   context.Context
	Cancel    context.CancelFunc
}

// Pipeline groups the analysis components
type Pipeline struct {
	Wallex      *wallex.Client
	Source      market_data.CandleSource
	SeriesStore market_data.SeriesStore
	Merger      *series.Merger
	Engine      *features.Engine
	Labeler     *labeling.Labeler
	Ensemble    *ensemble.Ensemble
	Scorer      *strategy.Scorer
	Predictions *sqldb.PredictionRepository
	Macro       macro.Provider
	Sentiment   sentiment.Provider
}

// Delivery groups the result sinks
type Delivery struct {
	Dispatcher    *notify.Dispatcher
	Hub           *stream.Hub
	KafkaProducer *kafka.Producer
	TelegramBot   *telegram.Bot
}

// Application groups the HTTP surface
type Application struct {
	HTTPServer       *api.Server
	HealthHandler    *health.Handler
	ProcessCollector *metrics.ProcessCollector
}

// Background groups scheduled work
type Background struct {
	WorkerScheduler *workers.Scheduler
	AnalysisWorker  *analysis.Worker
}

// NewContainer creates a new dependency container
func NewContainer() *Container {
	ctx, cancel := context.WithCancel(context.Background())

	return &Container{
		Pipeline:    &Pipeline{},
		Delivery:    &Delivery{},
		Application: &Application{},
		Background:  &Background{},
		Lifecycle:   NewLifecycle(),
		WG:          &sync.WaitGroup{},
		Context:     ctx,
		Cancel:      cancel,
	}
}

// MustInitCore initializes what offline commands (train, backtest) need.
// Panics on any initialization error (fail-fast at startup).
func (c *Container) MustInitCore() {
	c.MustInitConfig()
	c.MustInitInfrastructure()
	c.MustInitPipeline()
}

// MustInit initializes all components in the correct order
func (c *Container) MustInit() {
	c.MustInitCore()
	c.MustInitDelivery()
	c.MustInitBackground()
	c.MustInitApplication()
}

// Start starts the dispatcher, the HTTP server and the scheduler
func (c *Container) Start() error {
	c.Log.Infow("Starting all systems...", "symbol", c.Config.Market.Symbol)

	c.Delivery.Dispatcher.Start(c.Context)

	c.WG.Add(1)
	go func() {
		defer c.WG.Done()
		if err := c.Application.HTTPServer.Start(); err != nil {
			c.Log.Errorf("HTTP server failed: %v", err)
			c.Cancel() // fatal HTTP error triggers shutdown
		}
	}()

	if err := c.Background.WorkerScheduler.Start(c.Context); err != nil {
		return errors.Wrap(err, "failed to start workers")
	}

	c.Log.Infow("✓ All systems operational", "http", c.Config.HTTP.Addr)
	return nil
}

// Shutdown performs graceful shutdown in the correct order
func (c *Container) Shutdown() {
	c.Log.Infow("Initiating graceful shutdown...")
	c.Cancel()

	c.Lifecycle.Shutdown(Components{
		WG:           c.WG,
		HTTPServer:   c.Application.HTTPServer,
		Scheduler:    c.Background.WorkerScheduler,
		Dispatcher:   c.Delivery.Dispatcher,
		Hub:          c.Delivery.Hub,
		Producer:     c.Delivery.KafkaProducer,
		Ensemble:     c.Pipeline.Ensemble,
		Store:        c.Store,
		CH:           c.CH,
		Redis:        c.Redis,
		ErrorTracker: c.ErrorTracker,
	}, c.Log)
}

// Close releases what MustInitCore opened (offline commands)
func (c *Container) Close() {
	c.Cancel()
	c.Lifecycle.Shutdown(Components{
		Ensemble:     c.Pipeline.Ensemble,
		Store:        c.Store,
		CH:           c.CH,
		Redis:        c.Redis,
		ErrorTracker: c.ErrorTracker,
	}, c.Log)
}
