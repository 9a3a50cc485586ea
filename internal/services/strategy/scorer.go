package strategy

import (
	"fmt"
	"math"

	"github.com/dustin/go-humanize"

	featuresdomain "marketpulse/internal/domain/features"
	"marketpulse/internal/domain/macro"
	"marketpulse/internal/domain/prediction"
	featuresvc "marketpulse/internal/services/features"
)

// MacroRule adds Bonus to the macro sub-score when macro[Key] > Above
type MacroRule struct {
	Key    string
	Above  float64
	Bonus  float64
	Reason string
}

// Config holds sub-score weights, action thresholds and RSI bands
type Config struct {
	TechnicalWeight float64
	MacroWeight     float64
	SentimentWeight float64
	BuyThreshold    float64
	SellThreshold   float64
	RSIOversold     float64
	RSIOverbought   float64
	MacroRules      []MacroRule
}

// DefaultConfig is 0.5/0.3/0.2 weighting with BUY at 60 and SELL at 40
func DefaultConfig() Config {
	return Config{
		TechnicalWeight: 0.5,
		MacroWeight:     0.3,
		SentimentWeight: 0.2,
		BuyThreshold:    60,
		SellThreshold:   40,
		RSIOversold:     30,
		RSIOverbought:   70,
		MacroRules: []MacroRule{
			{Key: macro.KeyUSDT, Above: 65000, Bonus: 15, Reason: "High USD Rate"},
			{Key: macro.KeyGold, Above: 180000000, Bonus: 10, Reason: "Gold Support"},
		},
	}
}

// Result is the scored strategy decision for the latest row
type Result struct {
	Action    prediction.Action `json:"action"`
	Score     float64           `json:"score"`
	Technical float64           `json:"technical"`
	Macro     float64           `json:"macro"`
	Sentiment float64           `json:"sentiment"`
	Reasons   []string          `json:"reasons"`
	Price     float64           `json:"price"`
}

// Scorer combines technical, macro and sentiment sub-scores
type Scorer struct {
	cfg Config
}

// NewScorer creates a scorer
func NewScorer(cfg Config) *Scorer {
	return &Scorer{cfg: cfg}
}

// Score rates the latest feature row. A missing row yields WAIT with score 0.
func (s *Scorer) Score(row *featuresdomain.Row, snapshot map[string]float64, sentiment float64) Result {
	if row == nil || len(row.Values) == 0 {
		return Result{Action: prediction.ActionWait, Score: 0, Reasons: []string{}}
	}

	reasons := []string{}

	tech := 50.0
	if rsi, ok := row.Get(featuresvc.RSI); ok {
		switch {
		case rsi < s.cfg.RSIOversold:
			tech += 20
			reasons = append(reasons, fmt.Sprintf("Oversold RSI (%.0f)", rsi))
		case rsi > s.cfg.RSIOverbought:
			tech -= 20
			reasons = append(reasons, fmt.Sprintf("Overbought RSI (%.0f)", rsi))
		}
	}
	if hist, ok := row.Get(featuresvc.MACDHist); ok {
		if hist > 0 {
			tech += 10
			reasons = append(reasons, "Positive MACD momentum")
		} else {
			tech -= 5
		}
	}

	macroScore := 50.0
	for _, rule := range s.cfg.MacroRules {
		v, ok := snapshot[rule.Key]
		if !ok || v <= rule.Above {
			continue
		}
		macroScore += rule.Bonus
		reasons = append(reasons, fmt.Sprintf("%s (%s)", rule.Reason, humanize.Commaf(math.Round(v))))
	}

	final := s.cfg.TechnicalWeight*tech + s.cfg.MacroWeight*macroScore + s.cfg.SentimentWeight*sentiment
	// thresholds apply to the raw score, only the reported value is rounded
	return Result{
		Action:    s.action(final),
		Score:     math.Round(final*10) / 10,
		Technical: tech,
		Macro:     macroScore,
		Sentiment: sentiment,
		Reasons:   reasons,
		Price:     row.Close,
	}
}

func (s *Scorer) action(score float64) prediction.Action {
	switch {
	case score >= s.cfg.BuyThreshold:
		return prediction.ActionBuy
	case score <= s.cfg.SellThreshold:
		return prediction.ActionSell
	default:
		return prediction.ActionHold
	}
}

// AIDirection maps a blended probability to BUY (>= buyAbove), SELL (<= sellBelow) or WAIT
func AIDirection(p, buyAbove, sellBelow float64) prediction.Action {
	switch {
	case p >= buyAbove:
		return prediction.ActionBuy
	case p <= sellBelow:
		return prediction.ActionSell
	default:
		return prediction.ActionWait
	}
}

// Consensus is BUY or SELL only when strategy and AI agree, WAIT otherwise
func Consensus(strategyAction, aiDirection prediction.Action) prediction.Action {
	if strategyAction == aiDirection && (aiDirection == prediction.ActionBuy || aiDirection == prediction.ActionSell) {
		return aiDirection
	}
	return prediction.ActionWait
}
