package prediction

import "time"

// Direction is the predicted move of a graded prediction
type Direction string

const (
	DirectionBuy  Direction = "BUY"
	DirectionSell Direction = "SELL"
)

// Status of a prediction. PENDING records are graded once, then frozen.
type Status string

const (
	StatusPending Status = "PENDING"
	StatusCorrect Status = "CORRECT"
	StatusWrong   Status = "WRONG"
)

// Action is the final consensus decision of a cycle
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
	ActionWait Action = "WAIT"
)

// Prediction is an emitted AI direction awaiting grading (ai_history row)
type Prediction struct {
	ID           int64     `db:"id" json:"id"`
	Timestamp    string    `db:"timestamp" json:"-"`
	Symbol       string    `db:"symbol" json:"symbol"`
	Direction    Direction `db:"predicted_direction" json:"predicted_direction"`
	Confidence   float64   `db:"confidence" json:"confidence"`
	EntryPrice   float64   `db:"entry_price" json:"entry_price"`
	Status       Status    `db:"status" json:"status"`
	ActualResult *float64  `db:"actual_result" json:"actual_result,omitempty"` // price at grading

	CreatedAt time.Time `db:"-" json:"timestamp"`
}

// Grade decides CORRECT/WRONG for a realized price. Unchanged prices grade WRONG.
func (p Prediction) Grade(currentPrice float64) Status {
	switch {
	case p.Direction == DirectionBuy && currentPrice > p.EntryPrice:
		return StatusCorrect
	case p.Direction == DirectionSell && currentPrice < p.EntryPrice:
		return StatusCorrect
	default:
		return StatusWrong
	}
}

// Signal is the append-only audit record of a cycle's consensus (signals row)
type Signal struct {
	ID          int64   `db:"id" json:"id"`
	Timestamp   string  `db:"timestamp" json:"-"`
	Symbol      string  `db:"symbol" json:"symbol"`
	FinalAction Action  `db:"final_action" json:"final_action"`
	FinalScore  float64 `db:"final_score" json:"final_score"`
	Price       float64 `db:"price" json:"price"`

	CreatedAt time.Time `db:"-" json:"timestamp"`
}

// TimestampLayout is the stored text form of record timestamps (UTC, sortable)
const TimestampLayout = "2006-01-02 15:04:05"
