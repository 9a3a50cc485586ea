package news

import (
	"context"
	"encoding/xml"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"marketpulse/internal/adapters/exchanges/retry"
	"marketpulse/internal/domain/sentiment"
	"marketpulse/pkg/errors"
	"marketpulse/pkg/logger"
)

// Keyword lists for headline scoring. A bullish match wins over a bearish one.
var (
	BullishKeywords = []string{"surge", "jump", "record", "etf", "approve", "bull", "gain", "rally", "high"}
	BearishKeywords = []string{"crash", "ban", "hack", "lawsuit", "inflation", "bear", "drop", "sell", "low"}
)

// PointsPerHeadline is how far one scored headline moves the 0..100 score
const PointsPerHeadline = 3.0

// Config configures the RSS sentiment provider
type Config struct {
	Feeds      []string
	MaxItems   int
	HTTPClient *http.Client
}

// RSSProvider scores recent RSS headlines by keyword
type RSSProvider struct {
	cfg        Config
	httpClient *http.Client
	log        *logger.Logger
}

var _ sentiment.Provider = (*RSSProvider)(nil)

// NewRSSProvider creates a provider over the configured feeds
func NewRSSProvider(cfg Config, log *logger.Logger) *RSSProvider {
	if cfg.MaxItems <= 0 {
		cfg.MaxItems = 15
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}

	return &RSSProvider{
		cfg:        cfg,
		httpClient: httpClient,
		log:        log.With("component", "rss_sentiment"),
	}
}

type rssDocument struct {
	Channel struct {
		Title string    `xml:"title"`
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title   string `xml:"title"`
	Link    string `xml:"link"`
	PubDate string `xml:"pubDate"`
}

// Summary fetches every feed, keeps the newest MaxItems headlines and scores them.
// It fails only when no feed could be read.
func (p *RSSProvider) Summary(ctx context.Context) (sentiment.Summary, error) {
	if len(p.cfg.Feeds) == 0 {
		return sentiment.Neutral(), errors.Wrap(errors.ErrInvalidInput, "no news feeds configured")
	}

	var items []sentiment.News
	var failures errors.MultiError
	for _, feed := range p.cfg.Feeds {
		got, err := p.fetch(ctx, feed)
		if err != nil {
			p.log.Warnw("Failed to read news feed", "feed", feed, "error", err)
			failures.Add(err)
			continue
		}
		items = append(items, got...)
	}

	if len(failures.Errors) == len(p.cfg.Feeds) {
		return sentiment.Neutral(), errors.Wrapf(errors.ErrUnavailable, "all news feeds failed: %v", failures.ToError())
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].PublishedAt.After(items[j].PublishedAt)
	})
	if len(items) > p.cfg.MaxItems {
		items = items[:p.cfg.MaxItems]
	}

	return Score(items), nil
}

// Score aggregates scored headlines into a clamped 0..100 summary
func Score(items []sentiment.News) sentiment.Summary {
	score := sentiment.NeutralScore
	for _, it := range items {
		score += it.Impact * PointsPerHeadline
	}
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	if items == nil {
		items = []sentiment.News{}
	}
	return sentiment.Summary{Score: score, ItemCount: len(items), Items: items}
}

// Impact is +1 for a bullish headline, -1 for a bearish one and 0 otherwise
func Impact(title string) float64 {
	t := strings.ToLower(title)
	for _, k := range BullishKeywords {
		if strings.Contains(t, k) {
			return 1
		}
	}
	for _, k := range BearishKeywords {
		if strings.Contains(t, k) {
			return -1
		}
	}
	return 0
}

func (p *RSSProvider) fetch(ctx context.Context, feed string) ([]sentiment.News, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feed, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("User-Agent", "marketpulse/1.0")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch feed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, &retry.StatusError{Code: resp.StatusCode, Body: string(body)}
	}

	var doc rssDocument
	if err := xml.NewDecoder(io.LimitReader(resp.Body, 4<<20)).Decode(&doc); err != nil {
		return nil, errors.Wrapf(errors.ErrDataQuality, "failed to parse feed: %v", err)
	}

	source := doc.Channel.Title
	if source == "" {
		if u, err := url.Parse(feed); err == nil {
			source = u.Host
		}
	}

	out := make([]sentiment.News, 0, len(doc.Channel.Items))
	for _, it := range doc.Channel.Items {
		title := strings.TrimSpace(it.Title)
		if title == "" {
			continue
		}
		out = append(out, sentiment.News{
			Source:      source,
			Title:       title,
			URL:         strings.TrimSpace(it.Link),
			Impact:      Impact(title),
			PublishedAt: parsePubDate(it.PubDate),
		})
	}
	return out, nil
}

func parsePubDate(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range []string{time.RFC1123Z, time.RFC1123, time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
