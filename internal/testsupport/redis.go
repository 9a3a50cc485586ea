package testsupport

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// NewMiniRedis starts an in-process redis server and returns a client bound to it.
// The server is also returned so tests can fast-forward TTLs.
func NewMiniRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()

	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})

	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Fatalf("failed to connect to miniredis: %v", err)
	}

	t.Cleanup(func() {
		_ = client.Close()
	})

	return client, srv
}
