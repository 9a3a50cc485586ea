package macro

import "time"

// Well-known snapshot keys
const (
	KeyUSDT = "USDT_IRT"
	KeyGold = "GOLD_IRT"
	KeyBTC  = "BTC_USDT"
)

// Snapshot is a plain mapping of reference prices
type Snapshot map[string]float64

// Timed wraps a snapshot with its collection time (cache payload)
type Timed struct {
	Values      Snapshot  `json:"values"`
	CollectedAt time.Time `json:"collected_at"`
}
