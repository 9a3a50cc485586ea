package analysis

import (
	"fmt"
	"math"
	"strings"

	"github.com/dustin/go-humanize"

	"marketpulse/internal/domain/prediction"
)

// BuildReport renders the plain-text summary of a cycle
func BuildReport(b Bundle) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "%s @ %s (%s)\n", b.Symbol, humanize.Commaf(roundTo(b.Price, 2)), b.Timestamp.UTC().Format("2006-01-02 15:04 MST"))

	sb.WriteString("\n1. AI prediction\n")
	fmt.Fprintf(&sb, "   direction: %s\n", aiLabel(b.AI.Direction))
	fmt.Fprintf(&sb, "   probability: %.2f%% (%s confidence)\n", b.AI.Probability*100, strength(b.AI.Probability))
	fmt.Fprintf(&sb, "   sequence %.3f, linear %.3f\n", b.AI.SequenceProb, b.AI.LinearProb)

	sb.WriteString("\n2. Strategy\n")
	fmt.Fprintf(&sb, "   score: %.1f/100 (%s)\n", b.Strategy.Score, mood(b.Strategy.Score))
	fmt.Fprintf(&sb, "   technical %.1f, macro %.1f, sentiment %.1f\n", b.Strategy.Technical, b.Strategy.Macro, b.Strategy.Sentiment)
	reasons := "none"
	if len(b.Strategy.Reasons) > 0 {
		reasons = strings.Join(b.Strategy.Reasons, ", ")
	}
	fmt.Fprintf(&sb, "   reasons: %s\n", reasons)

	sb.WriteString("\n3. Explainability\n")
	if len(b.Importance) == 0 {
		sb.WriteString("   no feature ranking available\n")
	} else {
		top := b.Importance[0]
		fmt.Fprintf(&sb, "   top driver: %s (impact %.3f)\n", strings.ToUpper(top.Feature), top.Impact)
		parts := make([]string, len(b.Importance))
		for i, imp := range b.Importance {
			parts[i] = fmt.Sprintf("%s: %.3f", imp.Feature, imp.Impact)
		}
		fmt.Fprintf(&sb, "   weights: %s\n", strings.Join(parts, ", "))
	}

	sb.WriteString("\n4. News sentiment\n")
	fmt.Fprintf(&sb, "   score: %.1f/100 from %d items (%s)\n", b.Sentiment.Score, b.Sentiment.ItemCount, mood(b.Sentiment.Score))

	sb.WriteString("\n5. Track record\n")
	fmt.Fprintf(&sb, "   accuracy: %.1f%% over graded predictions\n", b.Accuracy)

	fmt.Fprintf(&sb, "\nConsensus: %s\n", b.Consensus)

	if len(b.Warnings) > 0 {
		fmt.Fprintf(&sb, "Warnings: %s\n", strings.Join(b.Warnings, "; "))
	}

	return sb.String()
}

func aiLabel(a prediction.Action) string {
	if a == prediction.ActionWait {
		return "NEUTRAL (WAIT)"
	}
	return string(a)
}

func strength(p float64) string {
	if p >= 0.70 || p <= 0.30 {
		return "high"
	}
	return "moderate"
}

func mood(score float64) string {
	switch {
	case score > 55:
		return "bullish"
	case score < 45:
		return "bearish"
	default:
		return "neutral"
	}
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
