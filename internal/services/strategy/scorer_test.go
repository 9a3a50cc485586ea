package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	featuresdomain "marketpulse/internal/domain/features"
	"marketpulse/internal/domain/prediction"
)

func row(rsi, hist float64) *featuresdomain.Row {
	return &featuresdomain.Row{Close: 100, Values: map[string]float64{"rsi": rsi, "macd_hist": hist}}
}

func TestScoreOversoldWithPositiveMomentumBuys(t *testing.T) {
	res := NewScorer(DefaultConfig()).Score(row(25, 0.4), nil, 50)

	assert.Equal(t, 80.0, res.Technical)
	assert.Equal(t, 50.0, res.Macro)
	assert.Equal(t, 65.0, res.Score)
	assert.Equal(t, prediction.ActionBuy, res.Action)
	assert.Equal(t, []string{"Oversold RSI (25)", "Positive MACD momentum"}, res.Reasons)
	assert.Equal(t, 100.0, res.Price)
}

func TestScoreSubScores(t *testing.T) {
	tests := []struct {
		name      string
		row       *featuresdomain.Row
		macro     map[string]float64
		sentiment float64
		score     float64
		action    prediction.Action
	}{
		{"neutral", row(50, 0.1), nil, 50, 0.5*60 + 0.3*50 + 0.2*50, prediction.ActionHold},
		{"flat momentum counts as weak", row(50, 0), nil, 50, 0.5*45 + 0.3*50 + 0.2*50, prediction.ActionHold},
		{"overbought negative momentum", row(75, -1), nil, 50, 0.5*25 + 0.3*50 + 0.2*50, prediction.ActionSell},
		{"macro bonuses", row(50, -1), map[string]float64{"USDT_IRT": 70000, "GOLD_IRT": 200000000}, 50, 0.5*45 + 0.3*75 + 0.2*50, prediction.ActionHold},
		{"macro at bound is not breached", row(50, -1), map[string]float64{"USDT_IRT": 65000}, 50, 0.5*45 + 0.3*50 + 0.2*50, prediction.ActionHold},
		{"bearish news", row(50, -1), nil, 0, 0.5*45 + 0.3*50, prediction.ActionSell},
		{"rounded to one decimal", row(50, -1), nil, 50.3, 47.6, prediction.ActionHold},
		{"just below buy threshold holds", row(50, 0.1), nil, 74.8, 60, prediction.ActionHold},
		{"just above sell threshold holds", row(50, -1), nil, 12.7, 40, prediction.ActionHold},
	}

	scorer := NewScorer(DefaultConfig())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := scorer.Score(tt.row, tt.macro, tt.sentiment)
			assert.InDelta(t, tt.score, res.Score, 1e-9)
			assert.Equal(t, tt.action, res.Action)
		})
	}
}

func TestScoreMacroReasonsAreHumanized(t *testing.T) {
	res := NewScorer(DefaultConfig()).Score(row(50, 0.1), map[string]float64{"USDT_IRT": 70123.4}, 50)
	assert.Contains(t, res.Reasons, "High USD Rate (70,123)")
}

func TestScoreWithoutRowWaits(t *testing.T) {
	scorer := NewScorer(DefaultConfig())

	for _, r := range []*featuresdomain.Row{nil, {}} {
		res := scorer.Score(r, map[string]float64{"USDT_IRT": 70000}, 90)
		assert.Equal(t, prediction.ActionWait, res.Action)
		assert.Equal(t, 0.0, res.Score)
		assert.Empty(t, res.Reasons)
	}
}

func TestAIDirection(t *testing.T) {
	assert.Equal(t, prediction.ActionBuy, AIDirection(0.55, 0.55, 0.45))
	assert.Equal(t, prediction.ActionBuy, AIDirection(0.9, 0.55, 0.45))
	assert.Equal(t, prediction.ActionSell, AIDirection(0.45, 0.55, 0.45))
	assert.Equal(t, prediction.ActionWait, AIDirection(0.5, 0.55, 0.45))
	assert.Equal(t, prediction.ActionWait, AIDirection(0.54, 0.55, 0.45))
}

func TestConsensus(t *testing.T) {
	tests := []struct {
		strategy, ai, want prediction.Action
	}{
		{prediction.ActionBuy, prediction.ActionBuy, prediction.ActionBuy},
		{prediction.ActionSell, prediction.ActionSell, prediction.ActionSell},
		{prediction.ActionBuy, prediction.ActionSell, prediction.ActionWait},
		{prediction.ActionHold, prediction.ActionBuy, prediction.ActionWait},
		{prediction.ActionBuy, prediction.ActionWait, prediction.ActionWait},
		{prediction.ActionWait, prediction.ActionWait, prediction.ActionWait},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Consensus(tt.strategy, tt.ai), "%s/%s", tt.strategy, tt.ai)
	}
}
