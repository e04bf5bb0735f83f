package integration_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	ginfw "github.com/gin-gonic/gin"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/proxyfox/proxyfox"
	"github.com/proxyfox/proxyfox/catalog"
	"github.com/proxyfox/proxyfox/extensions/replay"
	pfhttp "github.com/proxyfox/proxyfox/http"
	"github.com/proxyfox/proxyfox/http/gin"
	pfmcp "github.com/proxyfox/proxyfox/mcp"
	"github.com/proxyfox/proxyfox/mechanisms/evm"
	evmsigner "github.com/proxyfox/proxyfox/signers/evm"
	"github.com/proxyfox/proxyfox/test/mocks/evmnode"
)

const (
	payerKey  = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	payeeAddr = "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"
)

// upstream records what the gateway forwarded.
type upstream struct {
	mu       sync.Mutex
	bodies   []string
	payments []string
}

func (u *upstream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	u.mu.Lock()
	u.bodies = append(u.bodies, string(body))
	u.payments = append(u.payments, r.Header.Get(proxyfox.PaymentHeader))
	u.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"tool":%q,"result":"ok"}`, r.URL.Path)
}

type stack struct {
	node     *evmnode.Node
	upstream *upstream
	gateway  *httptest.Server
	client   *http.Client
	states   []proxyfox.PaymentState
}

func newStack(t *testing.T) *stack {
	t.Helper()
	ginfw.SetMode(ginfw.TestMode)

	up := &upstream{}
	upSrv := httptest.NewServer(up)
	t.Cleanup(upSrv.Close)

	doc := fmt.Sprintf(`[{
		"serverId": "weather",
		"serverName": "Weather MCP",
		"serverUri": %q,
		"recipient": %q,
		"tools": [
			{"toolName": "forecast", "description": "Daily forecast", "price": "$0.5"},
			{"toolName": "status", "price": 0}
		]
	}]`, upSrv.URL+"/tools", payeeAddr)
	path := filepath.Join(t.TempDir(), "db.json")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))
	cat, err := catalog.NewFileCatalog(path)
	require.NoError(t, err)

	node := evmnode.New(545)
	node.ConfirmAfter = 2
	network := evm.NetworkConfigs[evm.NetworkFlowTestnet]
	ledger := evm.NewLedger(node, network)

	gateway := pfhttp.NewGateway(cat, proxyfox.NewVerifier(ledger),
		pfhttp.WithReplayGuard(replay.NewInMemoryStore(time.Hour)))
	router := ginfw.New()
	gin.Register(router, gateway)
	gwSrv := httptest.NewServer(router)
	t.Cleanup(gwSrv.Close)

	wallet, err := evmsigner.NewWalletFromPrivateKey(payerKey, node, network,
		evmsigner.WithPollInterval(time.Millisecond))
	require.NoError(t, err)

	s := &stack{node: node, upstream: up, gateway: gwSrv}
	s.client = pfhttp.WrapClient(nil, proxyfox.NewPayer(wallet, ledger),
		pfhttp.WithStateObserver(func(_ *http.Request, _, to proxyfox.PaymentState) {
			s.states = append(s.states, to)
		}))
	return s
}

func (s *stack) post(t *testing.T, client *http.Client, path, body string, header string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, s.gateway.URL+path, bytes.NewBufferString(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if header != "" {
		req.Header.Set(proxyfox.PaymentHeader, header)
	}
	resp, err := client.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestPaidCallEndToEnd(t *testing.T) {
	s := newStack(t)

	resp := s.post(t, s.client, "/proxy/weather/forecast", `{"city":"Lisbon"}`, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "/tools/forecast", body["tool"])

	require.Len(t, s.node.Sent, 1)
	tx := s.node.Sent[0]
	assert.Equal(t, payeeAddr, tx.To().Hex())
	assert.Equal(t, "500000000000000000", tx.Value().String())

	assert.Equal(t, []string{`{"city":"Lisbon"}`}, s.upstream.bodies)
	assert.Equal(t, []proxyfox.PaymentState{
		proxyfox.StateAwaitingChallenge,
		proxyfox.StatePaying,
		proxyfox.StateAwaitingConfirmation,
		proxyfox.StateRetrying,
		proxyfox.StateDone,
	}, s.states)

	proof, err := proxyfox.DecodeProof(s.upstream.payments[0])
	require.NoError(t, err)
	assert.Equal(t, tx.Hash().Hex(), proof.TransactionHash)
	assert.Equal(t, proxyfox.ProofStatusSuccess, proof.Status)
	assert.Equal(t, "0.5 FLOW", proof.Amount.String())
}

func TestFreeCallDoesNotPay(t *testing.T) {
	s := newStack(t)

	resp := s.post(t, s.client, "/proxy/weather/status", `{}`, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, s.node.Sent)
}

func TestReplayedProofIsRejected(t *testing.T) {
	s := newStack(t)

	resp := s.post(t, s.client, "/proxy/weather/forecast", `{}`, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	token := s.upstream.payments[0]

	resp = s.post(t, http.DefaultClient, "/proxy/weather/forecast", `{}`, token)
	require.Equal(t, http.StatusPaymentRequired, resp.StatusCode)

	var challenge proxyfox.Challenge
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&challenge))
	assert.Equal(t, proxyfox.ErrCodeProofReplayed, challenge.Error)
	assert.Len(t, s.upstream.bodies, 1)
}

func TestUnconfirmedTransferTimesOut(t *testing.T) {
	s := newStack(t)
	s.node.ConfirmAfter = -1

	network := evm.NetworkConfigs[evm.NetworkFlowTestnet]
	wallet, err := evmsigner.NewWalletFromPrivateKey(payerKey, s.node, network,
		evmsigner.WithPollInterval(time.Millisecond),
		evmsigner.WithReceiptTimeout(20*time.Millisecond))
	require.NoError(t, err)
	client := pfhttp.WrapClient(nil, proxyfox.NewPayer(wallet, evm.NewLedger(s.node, network)))

	req, err := http.NewRequest(http.MethodPost, s.gateway.URL+"/proxy/weather/forecast", bytes.NewBufferString(`{}`))
	require.NoError(t, err)
	_, err = client.Do(req)
	assert.ErrorIs(t, err, proxyfox.ErrConfirmationTimeout)
	assert.Empty(t, s.upstream.bodies)
}

func TestMCPToolPaysThroughGateway(t *testing.T) {
	s := newStack(t)

	tools := pfmcp.NewToolServer(catalog.NewMemoryCatalog(), s.gateway.URL, s.client)
	target, err := pfmcp.ProxyURL(s.gateway.URL, "weather", "forecast")
	require.NoError(t, err)

	result, err := tools.Handler(target)(context.Background(), &mcp.CallToolRequest{
		Params: &mcp.CallToolParamsRaw{
			Name:      pfmcp.ToolName("weather", "forecast"),
			Arguments: json.RawMessage(`{"city":"Oslo"}`),
		},
	})
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Len(t, s.node.Sent, 1)
	assert.Equal(t, []string{`{"city":"Oslo"}`}, s.upstream.bodies)
}
