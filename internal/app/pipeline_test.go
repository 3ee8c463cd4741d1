package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"binanceMarginBot/internal/fetcher"
	"binanceMarginBot/internal/ports"
)

func TestPipeline_FetchAgainstExchange(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/klines", r.URL.Path)
		assert.Equal(t, "5m", r.URL.Query().Get("interval"))
		switch r.URL.Query().Get("symbol") {
		case "BTCUSDT":
			w.Write([]byte(`[[1704067200000,"42000.0","42100.0","41900.0","42050.0","3.5",1704067499999,"0",1,"0","0","0"]]`))
		case "ETHUSDT":
			w.Write([]byte(`[[1704067200000,"2300.0","2310.0","2290.0","2305.0","10",1704067499999,"0",1,"0","0","0"]]`))
		default:
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"code":-1121,"msg":"Invalid symbol."}`))
		}
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.BaseURL = srv.URL
	cfg.MaxRetries = 2
	cfg.BackoffBase = time.Millisecond
	cfg.RequestTimeout = time.Second
	cfg.LatencyBudget = 9 * time.Second
	cfg.AlertCooldown = time.Minute

	p, err := NewPipeline(cfg, &mockLogger{}, nil)
	require.NoError(t, err)
	defer p.Close(context.Background())

	result, err := p.Coordinator.Fetch(context.Background(), fetcher.FetchRequest{
		Symbols:  []string{"eth", "btc"},
		Interval: "5m",
		Limit:    1,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"BTC", "ETH"}, result.Completed())
	require.Len(t, result.Records, 2)
	assert.Equal(t, "BTCUSDT", result.Records[0].SymbolTag)
	assert.Equal(t, "42050.0", result.Records[0].Close)
	assert.Equal(t, "ETHUSDT", result.Records[1].SymbolTag)

	_, err = p.Coordinator.Fetch(context.Background(), fetcher.FetchRequest{
		Symbols:  []string{"BTC", "NOPE"},
		Interval: "5m",
		Limit:    1,
	})
	assert.ErrorIs(t, err, ports.ErrIncompleteBatch)
}

func TestNewPipeline_RequiresDependencies(t *testing.T) {
	_, err := NewPipeline(nil, &mockLogger{}, nil)
	assert.Error(t, err)
}
