package solana

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"solbot/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rpcServer(t *testing.T, reply string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Method string `json:"method"`
			Params []any  `json:"params"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "getBalance", req.Method)
		assert.Equal(t, "Wallet111", req.Params[0])
		_, _ = w.Write([]byte(reply))
	}))
}

func TestBalanceConvertsLamports(t *testing.T) {
	srv := rpcServer(t, `{"jsonrpc":"2.0","id":1,"result":{"context":{"slot":1},"value":150000000}}`)
	defer srv.Close()

	bal, err := NewRPCClient(srv.URL, 0).Balance(context.Background(), "Wallet111")
	require.NoError(t, err)
	assert.Equal(t, 0.15, bal)
}

func TestBalanceRPCError(t *testing.T) {
	srv := rpcServer(t, `{"jsonrpc":"2.0","id":1,"error":{"code":-32602,"message":"Invalid param: WrongSize"}}`)
	defer srv.Close()

	_, err := NewRPCClient(srv.URL, 0).Balance(context.Background(), "Wallet111")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "WrongSize")
}

type fixedBalance float64

func (f fixedBalance) Balance(context.Context, string) (float64, error) { return float64(f), nil }

func TestFundingGuard(t *testing.T) {
	capital := types.CapitalConfig{TradingCapital: 0.1, MaxPositionPct: 80, ReserveBalance: 0.05, MaxDrawdownPct: 20}

	g := NewFundingGuard(fixedBalance(0.15), "Wallet111", capital)
	assert.InDelta(t, 0.15, g.Required(), 1e-12)
	bal, err := g.Check(context.Background())
	require.NoError(t, err, "exactly capital + reserve is enough")
	assert.Equal(t, 0.15, bal)

	_, err = NewFundingGuard(fixedBalance(0.149999999), "Wallet111", capital).Check(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnderfunded)
	assert.ErrorIs(t, err, types.ErrConfigInvalid)
}
