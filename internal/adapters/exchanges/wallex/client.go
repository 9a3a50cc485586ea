package wallex

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"marketpulse/internal/adapters/exchanges/ratelimit"
	"marketpulse/internal/adapters/exchanges/retry"
	"marketpulse/internal/domain/macro"
	"marketpulse/internal/domain/market_data"
	"marketpulse/internal/metrics"
	"marketpulse/pkg/errors"
)

const (
	defaultBaseURL     = "https://api.wallex.ir"
	defaultHTTPTimeout = 15 * time.Second
	historyPath        = "/v1/udf/history"
	marketsPath        = "/v1/markets"

	// extra candles requested so the tail survives gaps at the exchange
	historySlack = 50
)

// Config configures the Wallex client
type Config struct {
	BaseURL    string
	APIKey     string
	RateLimit  float64 // requests per second
	HTTPClient *http.Client
	Retry      retry.Config
	Now        func() time.Time
}

// Client reads candles and market stats from the Wallex public API.
// It implements market_data.CandleSource and macro.Provider.
type Client struct {
	cfg        Config
	httpClient *http.Client
	limiter    *ratelimit.Limiter
	retry      *retry.Middleware
}

var (
	_ market_data.CandleSource = (*Client)(nil)
	_ macro.Provider           = (*Client)(nil)
)

// NewClient creates a Wallex client
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 2
	}
	if cfg.Retry == (retry.Config{}) {
		cfg.Retry = retry.DefaultConfig()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}

	return &Client{
		cfg:        cfg,
		httpClient: httpClient,
		limiter:    ratelimit.NewLimiter("wallex", cfg.RateLimit),
		retry:      retry.New(cfg.Retry),
	}
}

// Name identifies the source in logs
func (c *Client) Name() string {
	return "wallex"
}

type historyResponse struct {
	Status string   `json:"s"`
	Error  string   `json:"errmsg"`
	Time   []int64  `json:"t"`
	Open   []number `json:"o"`
	High   []number `json:"h"`
	Low    []number `json:"l"`
	Close  []number `json:"c"`
	Volume []number `json:"v"`
}

// FetchCandles returns the latest limit candles of symbol, oldest first.
// A zero or non-finite price is reported as ErrDataQuality.
func (c *Client) FetchCandles(ctx context.Context, symbol, timeframe string, limit int) (market_data.Series, error) {
	if limit <= 0 {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "invalid candle limit %d", limit)
	}
	minutes, err := resolutionMinutes(timeframe)
	if err != nil {
		return nil, err
	}

	to := c.cfg.Now().Unix()
	from := to - int64(minutes*60*(limit+historySlack))
	params := url.Values{
		"symbol":     {NormalizeSymbol(symbol)},
		"resolution": {strconv.Itoa(minutes)},
		"from":       {strconv.FormatInt(from, 10)},
		"to":         {strconv.FormatInt(to, 10)},
	}

	data, err := c.get(ctx, historyPath, params)
	if err != nil {
		return nil, err
	}

	var res historyResponse
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, errors.Wrapf(errors.ErrUnavailable, "wallex history: %v", err)
	}
	if res.Status != "ok" {
		return nil, errors.Wrapf(errors.ErrUnavailable, "wallex history status %q: %s", res.Status, res.Error)
	}

	n := len(res.Time)
	if len(res.Open) != n || len(res.High) != n || len(res.Low) != n || len(res.Close) != n || len(res.Volume) != n {
		return nil, errors.Wrap(errors.ErrDataQuality, "wallex history columns differ in length")
	}

	out := make(market_data.Series, 0, n)
	for i := 0; i < n; i++ {
		candle := market_data.Candle{
			Timestamp: time.Unix(res.Time[i], 0).UTC(),
			Open:      float64(res.Open[i]),
			High:      float64(res.High[i]),
			Low:       float64(res.Low[i]),
			Close:     float64(res.Close[i]),
			Volume:    float64(res.Volume[i]),
		}
		if !candle.Valid() {
			return nil, errors.Wrapf(errors.ErrDataQuality, "wallex returned invalid candle at %s (close %v)", candle.Timestamp, candle.Close)
		}
		out = append(out, candle)
	}

	return out.Tail(limit), nil
}

type marketsResponse struct {
	Success bool `json:"success"`
	Result  struct {
		Symbols map[string]struct {
			Stats struct {
				LastPrice number `json:"lastPrice"`
			} `json:"stats"`
		} `json:"symbols"`
	} `json:"result"`
}

// Snapshot returns USDT and gold prices in toman plus BTC in USDT.
// Gold falls back to PAXGUSDT x USDTTMN when PAXGTMN is not listed.
func (c *Client) Snapshot(ctx context.Context) (macro.Snapshot, error) {
	data, err := c.get(ctx, marketsPath, nil)
	if err != nil {
		return nil, err
	}

	var res marketsResponse
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, errors.Wrapf(errors.ErrUnavailable, "wallex markets: %v", err)
	}
	if !res.Success {
		return nil, errors.Wrap(errors.ErrUnavailable, "wallex markets request was not successful")
	}

	last := func(sym string) (float64, bool) {
		s, ok := res.Result.Symbols[sym]
		if !ok || s.Stats.LastPrice <= 0 {
			return 0, false
		}
		return float64(s.Stats.LastPrice), true
	}

	snapshot := macro.Snapshot{}
	usdt, hasUSDT := last("USDTTMN")
	if hasUSDT {
		snapshot[macro.KeyUSDT] = usdt
	}
	if gold, ok := last("PAXGTMN"); ok {
		snapshot[macro.KeyGold] = gold
	} else if paxg, ok := last("PAXGUSDT"); ok && hasUSDT {
		snapshot[macro.KeyGold] = paxg * usdt
	}
	if btc, ok := last("BTCUSDT"); ok {
		snapshot[macro.KeyBTC] = btc
	}

	return snapshot, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	reqURL := c.cfg.BaseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	started := time.Now()
	body, err := retry.Value(ctx, c.retry, func() ([]byte, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, errors.Wrap(err, "failed to create request")
		}
		req.Header.Set("Accept", "application/json")
		if c.cfg.APIKey != "" {
			req.Header.Set("x-api-key", c.cfg.APIKey)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, errors.Wrapf(errors.ErrTimeout, "wallex %s: %v", path, err)
			}
			return nil, errors.Wrapf(err, "wallex %s", path)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
		if err != nil {
			return nil, errors.Wrap(err, "failed to read response")
		}
		if resp.StatusCode != http.StatusOK {
			return nil, &retry.StatusError{Code: resp.StatusCode, Body: truncate(string(body), 200)}
		}
		return body, nil
	})
	metrics.RecordExchangeAPICall("wallex", path, time.Since(started), err)
	return body, err
}

// NormalizeSymbol upper-cases the symbol, drops separators and defaults the quote to TMN
func NormalizeSymbol(symbol string) string {
	s := strings.ToUpper(symbol)
	s = strings.NewReplacer("-", "", "/", "", "_", "").Replace(s)
	if !strings.HasSuffix(s, "USDT") && !strings.HasSuffix(s, "TMN") {
		s += "TMN"
	}
	return s
}

func resolutionMinutes(timeframe string) (int, error) {
	switch strings.ToLower(timeframe) {
	case "15m", "15":
		return 15, nil
	case "1h", "60", "":
		return 60, nil
	case "4h", "240":
		return 240, nil
	case "1d", "1440", "d":
		return 1440, nil
	}
	if m, err := strconv.Atoi(timeframe); err == nil && m > 0 {
		return m, nil
	}
	return 0, errors.Wrapf(errors.ErrInvalidInput, "unsupported timeframe %q", timeframe)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
