package sqldb

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"marketpulse/internal/domain/prediction"
	"marketpulse/pkg/errors"
)

// Compile-time check
var _ prediction.Repository = (*PredictionRepository)(nil)

// PredictionRepository implements prediction.Repository using sqlx.
// Queries use ? placeholders rebound for the active driver.
type PredictionRepository struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewPredictionRepository creates a repository stamping records with the wall clock
func NewPredictionRepository(db *sqlx.DB) *PredictionRepository {
	return &PredictionRepository{db: db, now: time.Now}
}

// WithClock returns a copy of the repository that stamps records with now
func (r *PredictionRepository) WithClock(now func() time.Time) *PredictionRepository {
	return &PredictionRepository{db: r.db, now: now}
}

func (r *PredictionRepository) stamp(t time.Time) string {
	return t.UTC().Format(prediction.TimestampLayout)
}

// AddPrediction inserts a PENDING prediction
func (r *PredictionRepository) AddPrediction(ctx context.Context, symbol string, direction prediction.Direction, confidence, entryPrice float64) (int64, error) {
	if direction != prediction.DirectionBuy && direction != prediction.DirectionSell {
		return 0, errors.Wrapf(errors.ErrInvalidInput, "invalid prediction direction %q", direction)
	}
	if entryPrice <= 0 {
		return 0, errors.Wrapf(errors.ErrInvalidInput, "invalid entry price %v", entryPrice)
	}

	query := r.db.Rebind(`
		INSERT INTO ai_history (timestamp, symbol, predicted_direction, confidence, entry_price, status)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id`)

	var id int64
	err := r.db.QueryRowxContext(ctx, query,
		r.stamp(r.now()), symbol, direction, confidence, entryPrice, prediction.StatusPending,
	).Scan(&id)
	if err != nil {
		return 0, errors.Wrap(err, "failed to insert prediction")
	}

	return id, nil
}

// ValidatePastPredictions grades every PENDING prediction at least horizon old against
// currentPrice in one transaction. The status guard on the update keeps grading exactly-once
// when validations overlap.
func (r *PredictionRepository) ValidatePastPredictions(ctx context.Context, currentPrice float64, horizon time.Duration) (int, error) {
	if currentPrice <= 0 {
		return 0, errors.Wrapf(errors.ErrInvalidInput, "invalid current price %v", currentPrice)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, errors.Wrap(err, "failed to begin validation")
	}
	defer func() { _ = tx.Rollback() }()

	var pending []prediction.Prediction
	err = tx.SelectContext(ctx, &pending, tx.Rebind(`
		SELECT id, timestamp, symbol, predicted_direction, confidence, entry_price, status, actual_result
		FROM ai_history
		WHERE status = ? AND timestamp <= ?
		ORDER BY id`),
		prediction.StatusPending, r.stamp(r.now().Add(-horizon)),
	)
	if err != nil {
		return 0, errors.Wrap(err, "failed to select pending predictions")
	}

	update := tx.Rebind(`UPDATE ai_history SET status = ?, actual_result = ? WHERE id = ? AND status = ?`)

	resolved := 0
	for _, p := range pending {
		res, err := tx.ExecContext(ctx, update, p.Grade(currentPrice), currentPrice, p.ID, prediction.StatusPending)
		if err != nil {
			return 0, errors.Wrapf(err, "failed to grade prediction %d", p.ID)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, errors.Wrap(err, "failed to read affected rows")
		}
		resolved += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, errors.Wrap(err, "failed to commit validation")
	}
	return resolved, nil
}

// Accuracy is correct / resolved * 100
func (r *PredictionRepository) Accuracy(ctx context.Context) (float64, error) {
	var counts struct {
		Correct int64 `db:"correct"`
		Wrong   int64 `db:"wrong"`
	}

	err := r.db.GetContext(ctx, &counts, r.db.Rebind(`
		SELECT
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS correct,
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS wrong
		FROM ai_history`),
		prediction.StatusCorrect, prediction.StatusWrong,
	)
	if err != nil {
		return 0, errors.Wrap(err, "failed to compute accuracy")
	}

	total := counts.Correct + counts.Wrong
	if total == 0 {
		return 0, nil
	}
	return float64(counts.Correct) / float64(total) * 100, nil
}

// History returns the latest predictions, newest first
func (r *PredictionRepository) History(ctx context.Context, limit int) ([]prediction.Prediction, error) {
	var out []prediction.Prediction

	err := r.db.SelectContext(ctx, &out, r.db.Rebind(`
		SELECT id, timestamp, symbol, predicted_direction, confidence, entry_price, status, actual_result
		FROM ai_history
		ORDER BY id DESC
		LIMIT ?`), limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load prediction history")
	}

	for i := range out {
		out[i].CreatedAt = parseStamp(out[i].Timestamp)
	}
	return out, nil
}

// SaveSignal appends a consensus decision
func (r *PredictionRepository) SaveSignal(ctx context.Context, symbol string, action prediction.Action, score, price float64) (int64, error) {
	query := r.db.Rebind(`
		INSERT INTO signals (timestamp, symbol, final_action, final_score, price)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id`)

	var id int64
	if err := r.db.QueryRowxContext(ctx, query, r.stamp(r.now()), symbol, action, score, price).Scan(&id); err != nil {
		return 0, errors.Wrap(err, "failed to insert signal")
	}
	return id, nil
}

// Signals returns the latest signals, newest first
func (r *PredictionRepository) Signals(ctx context.Context, limit int) ([]prediction.Signal, error) {
	var out []prediction.Signal

	err := r.db.SelectContext(ctx, &out, r.db.Rebind(`
		SELECT id, timestamp, symbol, final_action, final_score, price
		FROM signals
		ORDER BY id DESC
		LIMIT ?`), limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load signals")
	}

	for i := range out {
		out[i].CreatedAt = parseStamp(out[i].Timestamp)
	}
	return out, nil
}

func parseStamp(s string) time.Time {
	t, err := time.ParseInLocation(prediction.TimestampLayout, s, time.UTC)
	if err != nil {
		return time.Time{}
	}
	return t
}
