package backtest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"

	"marketpulse/internal/domain/features"
	"marketpulse/internal/domain/prediction"
	"marketpulse/internal/services/strategy"
	"marketpulse/pkg/errors"
	"marketpulse/pkg/logger"
)

// Config holds the simulated account parameters
type Config struct {
	InitialCapital decimal.Decimal
	FeeRate        decimal.Decimal
	// Allocation is the share of the cash balance spent on each BUY
	Allocation  decimal.Decimal
	MinBalance  decimal.Decimal
	MinPosition decimal.Decimal
	// Sentiment is the constant news score used for every row
	Sentiment float64
}

// DefaultConfig is 1000 capital, 0.3% fee and 98% allocation
func DefaultConfig() Config {
	return Config{
		InitialCapital: decimal.NewFromInt(1000),
		FeeRate:        decimal.RequireFromString("0.003"),
		Allocation:     decimal.RequireFromString("0.98"),
		MinBalance:     decimal.NewFromInt(10),
		MinPosition:    decimal.RequireFromString("0.001"),
		Sentiment:      50,
	}
}

// Trade is one simulated fill
type Trade struct {
	Side    prediction.Action `json:"side"`
	Time    time.Time         `json:"time"`
	Price   decimal.Decimal   `json:"price"`
	Amount  decimal.Decimal   `json:"amount"`
	Fee     decimal.Decimal   `json:"fee"`
	Balance decimal.Decimal   `json:"balance"`
}

// Report summarizes a replay
type Report struct {
	InitialCapital decimal.Decimal `json:"initial_capital"`
	FinalEquity    decimal.Decimal `json:"final_equity"`
	// TotalReturn and MaxDrawdown are percentages; MaxDrawdown is <= 0
	TotalReturn float64 `json:"total_return"`
	MaxDrawdown float64 `json:"max_drawdown"`
	WinRate     float64 `json:"win_rate"`
	Wins        int     `json:"wins"`
	Losses      int     `json:"losses"`
	Candles     int     `json:"candles"`
	Trades      []Trade `json:"trades"`
}

// Backtester replays the strategy scorer over precomputed feature rows
type Backtester struct {
	cfg    Config
	scorer *strategy.Scorer
	log    *logger.Logger
}

// New creates a backtester
func New(cfg Config, scorer *strategy.Scorer, log *logger.Logger) *Backtester {
	return &Backtester{cfg: cfg, scorer: scorer, log: log.With("component", "backtest")}
}

type account struct {
	balance  decimal.Decimal
	position decimal.Decimal
}

func (a account) equity(price decimal.Decimal) decimal.Decimal {
	return a.balance.Add(a.position.Mul(price))
}

// Run trades every row in order: BUY spends Allocation of the cash balance, SELL
// liquidates the whole position. Rows only carry indicators computed from earlier
// candles, so no row sees the future.
func (b *Backtester) Run(ctx context.Context, rows []features.Row, macroSnapshot map[string]float64) (*Report, error) {
	if len(rows) == 0 {
		return nil, errors.Wrap(errors.ErrInsufficientData, "no feature rows to replay")
	}

	acct := account{balance: b.cfg.InitialCapital, position: decimal.Zero}
	report := &Report{InitialCapital: b.cfg.InitialCapital, Candles: len(rows), Trades: []Trade{}}

	peak := b.cfg.InitialCapital
	maxDrawdown := decimal.Zero

	for i := range rows {
		if i%500 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		row := rows[i]
		price := decimal.NewFromFloat(row.Close)
		if !price.IsPositive() {
			continue
		}

		res := b.scorer.Score(&row, macroSnapshot, b.cfg.Sentiment)
		switch {
		case res.Action == prediction.ActionBuy && acct.balance.GreaterThan(b.cfg.MinBalance):
			report.Trades = append(report.Trades, b.buy(&acct, row.Timestamp, price))
		case res.Action == prediction.ActionSell && acct.position.GreaterThan(b.cfg.MinPosition):
			report.Trades = append(report.Trades, b.sell(&acct, row.Timestamp, price))
		}

		eq := acct.equity(price)
		if eq.GreaterThan(peak) {
			peak = eq
		}
		if dd := eq.Sub(peak).Div(peak); dd.LessThan(maxDrawdown) {
			maxDrawdown = dd
		}
		report.FinalEquity = eq
	}

	hundred := decimal.NewFromInt(100)
	report.TotalReturn = report.FinalEquity.Sub(b.cfg.InitialCapital).Div(b.cfg.InitialCapital).Mul(hundred).InexactFloat64()
	report.MaxDrawdown = maxDrawdown.Mul(hundred).InexactFloat64()
	report.Wins, report.Losses = score(report.Trades)
	if closed := report.Wins + report.Losses; closed > 0 {
		report.WinRate = float64(report.Wins) / float64(closed) * 100
	}

	b.log.Infow("Backtest finished",
		"candles", report.Candles,
		"trades", len(report.Trades),
		"final_equity", report.FinalEquity.StringFixed(2),
		"return_pct", report.TotalReturn,
	)
	return report, nil
}

func (b *Backtester) buy(acct *account, ts time.Time, price decimal.Decimal) Trade {
	amount := acct.balance.Mul(b.cfg.Allocation).Div(price)
	cost := amount.Mul(price)
	fee := cost.Mul(b.cfg.FeeRate)

	acct.balance = acct.balance.Sub(cost).Sub(fee)
	acct.position = acct.position.Add(amount)

	return Trade{Side: prediction.ActionBuy, Time: ts, Price: price, Amount: amount, Fee: fee, Balance: acct.balance}
}

func (b *Backtester) sell(acct *account, ts time.Time, price decimal.Decimal) Trade {
	amount := acct.position
	revenue := amount.Mul(price)
	fee := revenue.Mul(b.cfg.FeeRate)

	acct.balance = acct.balance.Add(revenue).Sub(fee)
	acct.position = decimal.Zero

	return Trade{Side: prediction.ActionSell, Time: ts, Price: price, Amount: amount, Fee: fee, Balance: acct.balance}
}

// score counts a SELL as a win when it fills above the trade before it
func score(trades []Trade) (wins, losses int) {
	for i := 1; i < len(trades); i++ {
		if trades[i].Side != prediction.ActionSell {
			continue
		}
		if trades[i].Price.GreaterThan(trades[i-1].Price) {
			wins++
		} else {
			losses++
		}
	}
	return wins, losses
}

// Summary renders the report for the terminal
func (r *Report) Summary() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Candles replayed: %s\n", humanize.Comma(int64(r.Candles)))
	fmt.Fprintf(&sb, "Initial capital:  %s\n", humanize.Commaf(r.InitialCapital.Round(2).InexactFloat64()))
	fmt.Fprintf(&sb, "Final equity:     %s\n", humanize.Commaf(r.FinalEquity.Round(2).InexactFloat64()))
	fmt.Fprintf(&sb, "Total return:     %.2f%%\n", r.TotalReturn)
	fmt.Fprintf(&sb, "Max drawdown:     %.2f%%\n", r.MaxDrawdown)
	fmt.Fprintf(&sb, "Trades:           %d\n", len(r.Trades))
	fmt.Fprintf(&sb, "Win rate:         %.1f%% (%d/%d)", r.WinRate, r.Wins, r.Wins+r.Losses)
	return sb.String()
}
