package clickhouse

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	chclient "marketpulse/internal/adapters/clickhouse"
	"marketpulse/internal/testsupport"
)

func TestSeriesRepository_SaveLoadReset(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	cfg := testsupport.LoadClickHouseConfigFromEnv(t)
	ctx := context.Background()

	client, err := chclient.NewClient(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	symbol := testsupport.UniqueName("TEST")
	repo := NewSeriesRepository(client.Conn(), symbol, "60", 30)
	require.NoError(t, repo.EnsureSchema(ctx))
	t.Cleanup(func() { _ = repo.Reset(ctx) })

	s := testsupport.RandomWalk(40, 5, 100, 0.01)
	require.NoError(t, repo.Save(ctx, s))
	// re-saving is an upsert
	require.NoError(t, repo.Save(ctx, s))

	got, err := repo.Load(ctx)
	require.NoError(t, err)
	require.Len(t, got, 30)
	assert.Equal(t, s.Tail(30).Closes(), got.Closes())
	assert.True(t, s[10].Timestamp.Equal(got[0].Timestamp))
}
