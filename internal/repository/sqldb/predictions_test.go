package sqldb

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketpulse/internal/domain/prediction"
	"marketpulse/internal/testsupport"
	"marketpulse/pkg/errors"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time           { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newRepo(t *testing.T) (*PredictionRepository, *clock) {
	t.Helper()
	db := testsupport.NewSQLiteDB(t)
	require.NoError(t, Migrate(context.Background(), db))

	c := &clock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	return NewPredictionRepository(db).WithClock(c.now), c
}

func TestValidateGradesExactlyOnce(t *testing.T) {
	repo, c := newRepo(t)
	ctx := context.Background()

	_, err := repo.AddPrediction(ctx, "USDTTMN", prediction.DirectionBuy, 0.8, 100)
	require.NoError(t, err)

	// not yet old enough
	c.advance(119 * time.Minute)
	n, err := repo.ValidatePastPredictions(ctx, 101, 120*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	c.advance(2 * time.Minute)
	n, err = repo.ValidatePastPredictions(ctx, 101, 120*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	history, err := repo.History(ctx, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, prediction.StatusCorrect, history[0].Status)
	require.NotNil(t, history[0].ActualResult)
	assert.InDelta(t, 101.0, *history[0].ActualResult, 1e-9)
	assert.Equal(t, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), history[0].CreatedAt)

	// a second pass with a price that would flip the grade changes nothing
	n, err = repo.ValidatePastPredictions(ctx, 50, 120*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	again, err := repo.History(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, history, again)
}

func TestValidateGradesDirections(t *testing.T) {
	repo, c := newRepo(t)
	ctx := context.Background()

	_, err := repo.AddPrediction(ctx, "USDTTMN", prediction.DirectionBuy, 0.6, 100)
	require.NoError(t, err)
	_, err = repo.AddPrediction(ctx, "USDTTMN", prediction.DirectionSell, 0.3, 100)
	require.NoError(t, err)
	_, err = repo.AddPrediction(ctx, "USDTTMN", prediction.DirectionSell, 0.3, 80)
	require.NoError(t, err)

	c.advance(3 * time.Hour)
	n, err := repo.ValidatePastPredictions(ctx, 90, 120*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	history, err := repo.History(ctx, 10)
	require.NoError(t, err)
	require.Len(t, history, 3)

	// newest first
	assert.Equal(t, prediction.StatusWrong, history[0].Status)
	assert.InDelta(t, 90.0, *history[0].ActualResult, 1e-9)
	assert.Equal(t, prediction.StatusCorrect, history[1].Status)
	assert.Equal(t, prediction.StatusWrong, history[2].Status)

	acc, err := repo.Accuracy(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 100.0/3, acc, 1e-9)
}

func TestAccuracyWithoutResolvedPredictions(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()

	acc, err := repo.Accuracy(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0.0, acc)

	_, err = repo.AddPrediction(ctx, "USDTTMN", prediction.DirectionBuy, 0.6, 100)
	require.NoError(t, err)

	acc, err = repo.Accuracy(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0.0, acc)
}

func TestAddPredictionRejectsInvalidInput(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()

	_, err := repo.AddPrediction(ctx, "USDTTMN", prediction.Direction("HOLD"), 0.6, 100)
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))

	_, err = repo.AddPrediction(ctx, "USDTTMN", prediction.DirectionBuy, 0.6, 0)
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))

	_, err = repo.ValidatePastPredictions(ctx, 0, time.Hour)
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))
}

func TestSignalsAreAppendOnly(t *testing.T) {
	repo, c := newRepo(t)
	ctx := context.Background()

	first, err := repo.SaveSignal(ctx, "USDTTMN", prediction.ActionWait, 52.5, 100)
	require.NoError(t, err)
	c.advance(time.Minute)
	second, err := repo.SaveSignal(ctx, "USDTTMN", prediction.ActionBuy, 65, 101)
	require.NoError(t, err)
	assert.Greater(t, second, first)

	signals, err := repo.Signals(ctx, 10)
	require.NoError(t, err)
	require.Len(t, signals, 2)
	assert.Equal(t, prediction.ActionBuy, signals[0].FinalAction)
	assert.Equal(t, 65.0, signals[0].FinalScore)
	assert.Equal(t, "2024-03-01 12:01:00", signals[0].Timestamp)
	assert.Equal(t, prediction.ActionWait, signals[1].FinalAction)

	limited, err := repo.Signals(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := testsupport.NewSQLiteDB(t)
	require.NoError(t, Migrate(context.Background(), db))
	require.NoError(t, Migrate(context.Background(), db))
}

func TestNewClientRejectsUnknownDriver(t *testing.T) {
	_, err := NewClient(context.Background(), "mysql", "x")
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))
}

func TestNewClientOpensSQLiteFile(t *testing.T) {
	client, err := NewClient(context.Background(), DriverSQLite, t.TempDir()+"/nested/store.db")
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.Health(context.Background()))
	require.NoError(t, Migrate(context.Background(), client.DB()))
}
