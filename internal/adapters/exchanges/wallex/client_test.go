package wallex

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketpulse/internal/adapters/exchanges/retry"
	"marketpulse/internal/domain/macro"
	"marketpulse/pkg/errors"
)

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewClient(Config{
		BaseURL:   srv.URL,
		RateLimit: 1000,
		Retry:     retry.Config{MaxRetries: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond},
		Now:       func() time.Time { return fixedNow },
	})
}

func TestFetchCandles(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, historyPath, r.URL.Path)
		assert.Equal(t, "USDTTMN", r.URL.Query().Get("symbol"))
		assert.Equal(t, "60", r.URL.Query().Get("resolution"))
		assert.Equal(t, fmt.Sprint(fixedNow.Unix()), r.URL.Query().Get("to"))
		assert.Equal(t, fmt.Sprint(fixedNow.Unix()-60*60*(2+historySlack)), r.URL.Query().Get("from"))

		fmt.Fprint(w, `{"s":"ok","t":[1714550400,1714554000,1714557600],
			"o":["60000","60100",60200],"h":["60500","60600","60700"],
			"l":["59900","60000","60100"],"c":["60100","60200","60300"],"v":["10","11","12"]}`)
	})

	series, err := client.FetchCandles(context.Background(), "usdt-tmn", "1h", 2)
	require.NoError(t, err)
	require.Len(t, series, 2)

	assert.Equal(t, time.Unix(1714554000, 0).UTC(), series[0].Timestamp)
	assert.Equal(t, 60100.0, series[0].Open)
	assert.Equal(t, 60300.0, series[1].Close)
	assert.Equal(t, 12.0, series[1].Volume)
}

func TestFetchCandlesRejectsZeroPrice(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"s":"ok","t":[1714550400],"o":["0"],"h":["0"],"l":["0"],"c":["0"],"v":["0"]}`)
	})

	_, err := client.FetchCandles(context.Background(), "USDTTMN", "60", 10)
	assert.True(t, errors.Is(err, errors.ErrDataQuality))
}

func TestFetchCandlesReportsApiError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"s":"error","errmsg":"unknown symbol"}`)
	})

	_, err := client.FetchCandles(context.Background(), "NOPE", "60", 10)
	assert.True(t, errors.Is(err, errors.ErrUnavailable))
}

func TestFetchCandlesRetriesServerErrors(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, `{"s":"ok","t":[1714550400],"o":[1],"h":[1],"l":[1],"c":[1],"v":[1]}`)
	})

	series, err := client.FetchCandles(context.Background(), "USDTTMN", "60", 10)
	require.NoError(t, err)
	assert.Len(t, series, 1)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestFetchCandlesValidatesArguments(t *testing.T) {
	client := NewClient(Config{})

	_, err := client.FetchCandles(context.Background(), "USDTTMN", "60", 0)
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))

	_, err = client.FetchCandles(context.Background(), "USDTTMN", "weekly", 10)
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))
}

func TestSnapshot(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, marketsPath, r.URL.Path)
		fmt.Fprint(w, `{"success":true,"result":{"symbols":{
			"USDTTMN":{"stats":{"lastPrice":"70000"}},
			"PAXGUSDT":{"stats":{"lastPrice":"2300.5"}},
			"BTCUSDT":{"stats":{"lastPrice":"64000"}}}}}`)
	})

	snapshot, err := client.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 70000.0, snapshot[macro.KeyUSDT])
	assert.Equal(t, 2300.5*70000, snapshot[macro.KeyGold])
	assert.Equal(t, 64000.0, snapshot[macro.KeyBTC])
}

func TestSnapshotPrefersDirectGoldPair(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"success":true,"result":{"symbols":{
			"USDTTMN":{"stats":{"lastPrice":"70000"}},
			"PAXGTMN":{"stats":{"lastPrice":"190000000"}},
			"PAXGUSDT":{"stats":{"lastPrice":"2300"}}}}}`)
	})

	snapshot, err := client.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 190000000.0, snapshot[macro.KeyGold])
	_, hasBTC := snapshot[macro.KeyBTC]
	assert.False(t, hasBTC)
}

func TestSnapshotFailure(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	_, err := client.Snapshot(context.Background())
	assert.True(t, errors.Is(err, errors.ErrUnavailable))
}

func TestNormalizeSymbol(t *testing.T) {
	assert.Equal(t, "USDTTMN", NormalizeSymbol("usdt/tmn"))
	assert.Equal(t, "BTCUSDT", NormalizeSymbol("btc-usdt"))
	assert.Equal(t, "BTCTMN", NormalizeSymbol("btc"))
}
