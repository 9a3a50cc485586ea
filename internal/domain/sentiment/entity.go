package sentiment

import "time"

// NeutralScore is used whenever no sentiment could be measured
const NeutralScore = 50.0

// News is one scored headline
type News struct {
	Source      string    `json:"source"`
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Impact      float64   `json:"impact"` // signed keyword impact
	PublishedAt time.Time `json:"published_at"`
}

// Summary is the aggregated sentiment of recent news, score in [0,100]
type Summary struct {
	Score     float64 `json:"score"`
	ItemCount int     `json:"item_count"`
	Items     []News  `json:"items"`
}

// Neutral returns the degraded default summary
func Neutral() Summary {
	return Summary{Score: NeutralScore, Items: []News{}}
}
