package telegram

import (
	"context"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"

	"marketpulse/pkg/errors"
	"marketpulse/pkg/logger"
)

// Bot sends alert messages to a single chat
type Bot struct {
	api         *tgbotapi.BotAPI
	chatID      int64
	log         *logger.Logger
	rateLimiter *rate.Limiter
}

// Config contains Telegram bot configuration
type Config struct {
	Token          string
	ChatID         int64
	Debug          bool
	HTTPTimeout    time.Duration
	RateLimitBurst int     // default: 5
	RateLimitRate  float64 // messages per second, default: 1
	HTTPClient     *http.Client
	// Endpoint overrides tgbotapi.APIEndpoint (format "<base>/bot%s/%s")
	Endpoint string
}

// NewBot authorizes the token and creates the bot
func NewBot(cfg Config, log *logger.Logger) (*Bot, error) {
	if cfg.Token == "" {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "telegram bot token is required")
	}
	if cfg.ChatID == 0 {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "telegram chat id is required")
	}

	if cfg.HTTPTimeout == 0 {
		cfg.HTTPTimeout = 30 * time.Second
	}
	if cfg.RateLimitBurst == 0 {
		cfg.RateLimitBurst = 5
	}
	if cfg.RateLimitRate == 0 {
		cfg.RateLimitRate = 1 // Telegram allows ~1 msg/sec per chat
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = tgbotapi.APIEndpoint
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.HTTPTimeout}
	}

	api, err := tgbotapi.NewBotAPIWithClient(cfg.Token, cfg.Endpoint, httpClient)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrUnavailable, "failed to create telegram bot: %v", err)
	}
	api.Debug = cfg.Debug

	log = log.With("component", "telegram_bot")
	log.Infow("Authorized telegram bot", "username", api.Self.UserName)

	return &Bot{
		api:         api,
		chatID:      cfg.ChatID,
		log:         log,
		rateLimiter: rate.NewLimiter(rate.Limit(cfg.RateLimitRate), cfg.RateLimitBurst),
	}, nil
}

// Send delivers a plain-text message to the configured chat
func (b *Bot) Send(ctx context.Context, text string) error {
	if err := b.rateLimiter.Wait(ctx); err != nil {
		return errors.Wrap(err, "telegram rate limiter")
	}

	msg := tgbotapi.NewMessage(b.chatID, text)
	msg.DisableWebPagePreview = true

	if _, err := b.api.Send(msg); err != nil {
		b.log.Warnw("Failed to send telegram message", "error", err)
		return errors.Wrapf(errors.ErrUnavailable, "telegram send: %v", err)
	}
	return nil
}
