package blockchain

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/matrixise/wallet-snapshot/internal/ratelimit"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rpcRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	ID      json.RawMessage   `json:"id"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
}

func newRPCServer(t *testing.T, result string, capture *rpcRequest) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if capture != nil {
			*capture = req
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%s,"result":%s}`, req.ID, result)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestNativeBalance(t *testing.T) {
	var captured rpcRequest
	// 0x14d1120d7b160000 = 1.5 ETH in wei
	server := newRPCServer(t, `"0x14d1120d7b160000"`, &captured)

	client, err := Dial(server.URL, ratelimit.New(0))
	require.NoError(t, err)
	defer client.Close()

	wallet := common.HexToAddress("0x1234567890123456789012345678901234567890")
	balance, err := client.NativeBalance(context.Background(), wallet, 17000000)
	require.NoError(t, err)

	assert.Equal(t, "1500000000000000000", balance.String())
	assert.Equal(t, "eth_getBalance", captured.Method)
	require.Len(t, captured.Params, 2)

	var blockTag string
	require.NoError(t, json.Unmarshal(captured.Params[1], &blockTag))
	assert.Equal(t, "0x1036640", blockTag)
}

func TestNativeBalanceScalingRoundTrip(t *testing.T) {
	server := newRPCServer(t, `"0x14d1120d7b160000"`, nil)

	client, err := Dial(server.URL, ratelimit.New(0))
	require.NoError(t, err)
	defer client.Close()

	wallet := common.HexToAddress("0x1234567890123456789012345678901234567890")
	raw, err := client.NativeBalance(context.Background(), wallet, 17000000)
	require.NoError(t, err)

	// Display decimal times 10^18 must reproduce the raw wei amount
	display := decimal.NewFromBigInt(raw, -18)
	assert.Equal(t, raw.String(), display.Mul(decimal.New(1, 18)).String())
	assert.Equal(t, "1.5", display.String())
}

func TestNativeBalanceRPCError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%s,"error":{"code":-32000,"message":"missing trie node"}}`, req.ID)
	}))
	defer server.Close()

	client, err := Dial(server.URL, ratelimit.New(0))
	require.NoError(t, err)
	defer client.Close()

	wallet := common.HexToAddress("0x1234567890123456789012345678901234567890")
	_, err = client.NativeBalance(context.Background(), wallet, 17000000)
	assert.ErrorContains(t, err, "missing trie node")
}
