package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/mcoot/tabletop-bank/internal/api"
	"github.com/mcoot/tabletop-bank/internal/api/apierr"
	"github.com/mcoot/tabletop-bank/internal/api/middleware"
	"github.com/mcoot/tabletop-bank/internal/api/response"
	"github.com/mcoot/tabletop-bank/internal/factory"
	"github.com/mcoot/tabletop-bank/internal/services/auth"
	tu "github.com/mcoot/tabletop-bank/internal/testutil"
)

const aliceReg = `{"act":"reg","uuid":"p1","name":"Alice","col":"red","bal":1500}`

// testServer wires the router over a test app
type testServer struct {
	handler http.Handler
	app     *factory.TestApp
}

func newTestServer(t *testing.T, pin string) *testServer {
	t.Helper()

	app := factory.NewTestApp()
	t.Cleanup(func() { _ = app.Close() })

	if pin != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.MinCost)
		require.NoError(t, err)
		app.Auth = auth.NewFromHash(hash, app.MockClock, auth.DefaultConfig())
	}

	router := api.NewRouter(api.RouterConfig{
		Logger:      tu.NopLogger(),
		BankService: app.Bank,
		AuthService: app.Auth,
		Hub:         app.Hub,
	})

	return &testServer{handler: router, app: app}
}

func (ts *testServer) request(method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	reqBody := bytes.NewBuffer(nil)
	if body != nil {
		b, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(b)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	return rr
}

func (ts *testServer) scan(t *testing.T, code string) response.Outcome {
	t.Helper()
	rr := ts.request(http.MethodPost, "/api/v1/bank/scan", map[string]string{"code": code}, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var out response.Outcome
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	return out
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) apierr.APIError {
	t.Helper()
	var resp apierr.ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp.Error
}

func TestHealthCheck(t *testing.T) {
	ts := newTestServer(t, "")

	rr := ts.request(http.MethodGet, "/api/v1/health", nil, nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "ok")
}

func TestScanAppliesAndRejects(t *testing.T) {
	ts := newTestServer(t, "")

	out := ts.scan(t, aliceReg)
	assert.True(t, out.Applied)
	assert.Equal(t, "Alice registered with initial balance 1500", out.Message)
	require.NotNil(t, out.Event)

	out = ts.scan(t, `{"act":"tx","uuid":"p1","amt":-300,"seq":1}`)
	assert.True(t, out.Applied)
	assert.Equal(t, "Alice paid 300", out.Message)

	out = ts.scan(t, `{"act":"tx","uuid":"p1","amt":-300,"seq":1}`)
	assert.False(t, out.Applied)
	assert.Equal(t, "already processed", out.Message)
	assert.Equal(t, "duplicate", out.Reason)
	assert.Nil(t, out.Event)
}

func TestScanInvalidCode(t *testing.T) {
	ts := newTestServer(t, "")

	rr := ts.request(http.MethodPost, "/api/v1/bank/scan", map[string]string{"code": "not a code"}, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, apierr.CodeInvalidCode, decodeError(t, rr).Code)

	rr = ts.request(http.MethodPost, "/api/v1/bank/scan", map[string]string{"code": `{"act":"pay"}`}, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, apierr.CodeUnknownAction, decodeError(t, rr).Code)

	rr = ts.request(http.MethodPost, "/api/v1/bank/scan", "{", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, apierr.CodeInvalidRequest, decodeError(t, rr).Code)
}

func TestScanAmountOutOfRange(t *testing.T) {
	ts := newTestServer(t, "")
	ts.scan(t, aliceReg)

	rr := ts.request(http.MethodPost, "/api/v1/bank/scan",
		map[string]string{"code": `{"act":"tx","uuid":"p1","amt":9007199254740992,"seq":1}`}, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, apierr.CodeInvalidCode, decodeError(t, rr).Code)

	// The rejected code did not consume the seq
	out := ts.scan(t, `{"act":"tx","uuid":"p1","amt":9007199254740991,"seq":1}`)
	assert.True(t, out.Applied)
}

func TestPlayers(t *testing.T) {
	ts := newTestServer(t, "")
	ts.scan(t, aliceReg)
	ts.scan(t, `{"act":"reg","uuid":"p2","name":"Bob","col":"blue","bal":100}`)

	rr := ts.request(http.MethodGet, "/api/v1/bank/players", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var list response.PlayersResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
	require.Len(t, list.Players, 2)
	assert.Equal(t, "Alice", list.Players[0].Name)

	rr = ts.request(http.MethodGet, "/api/v1/bank/players/p2", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"balance":100`)

	rr = ts.request(http.MethodGet, "/api/v1/bank/players/ghost", nil, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, apierr.CodePlayerNotFound, decodeError(t, rr).Code)
}

func TestHistory(t *testing.T) {
	ts := newTestServer(t, "")
	ts.scan(t, aliceReg)
	ts.scan(t, `{"act":"tx","uuid":"p1","amt":-300,"seq":1}`)
	ts.scan(t, `{"act":"undo","uuid":"p1","tgt":1,"seq":2}`)

	rr := ts.request(http.MethodGet, "/api/v1/bank/history?player=p1", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Events []struct {
			ID     string `json:"id"`
			Kind   string `json:"kind"`
			Undone bool   `json:"undone"`
		} `json:"events"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.Events, 3)
	assert.Equal(t, "undo", resp.Events[0].Kind)
	assert.Equal(t, "p1-1", resp.Events[1].ID)
	assert.True(t, resp.Events[1].Undone)

	rr = ts.request(http.MethodGet, "/api/v1/bank/history?player=ghost", nil, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestSync(t *testing.T) {
	ts := newTestServer(t, "")
	ts.scan(t, aliceReg)
	ts.scan(t, `{"act":"tx","uuid":"p1","amt":-300,"seq":1}`)
	ts.scan(t, `{"act":"tx","uuid":"p1","amt":50,"seq":2}`)

	rr := ts.request(http.MethodGet, "/api/v1/bank/players/p1/sync?limit=1", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp response.SyncResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, int64(3), resp.NextSeq)
	assert.Equal(t, int64(1250), resp.Balance)
	assert.Equal(t, 1, resp.History)
	assert.Contains(t, resp.Code, `"act":"sync"`)

	rr = ts.request(http.MethodGet, "/api/v1/bank/players/p1/sync?limit=zero", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = ts.request(http.MethodGet, "/api/v1/bank/players/ghost/sync", nil, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestVerify(t *testing.T) {
	ts := newTestServer(t, "")
	ts.scan(t, aliceReg)

	rr := ts.request(http.MethodGet, "/api/v1/bank/verify", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"ok":true`)
	assert.Contains(t, rr.Body.String(), `"players":1`)
}

func TestResetWithoutPIN(t *testing.T) {
	ts := newTestServer(t, "")
	ts.scan(t, aliceReg)

	rr := ts.request(http.MethodPost, "/api/v1/bank/reset", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, ts.app.Bank.Players())
}

func TestResetRequiresPIN(t *testing.T) {
	ts := newTestServer(t, "2468")
	ts.scan(t, aliceReg)

	rr := ts.request(http.MethodPost, "/api/v1/bank/reset", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = ts.request(http.MethodPost, "/api/v1/bank/reset", nil, map[string]string{middleware.AdminPINHeader: "1111"})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Len(t, ts.app.Bank.Players(), 1)

	rr = ts.request(http.MethodPost, "/api/v1/bank/reset", nil, map[string]string{middleware.AdminPINHeader: "2468"})
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, ts.app.Bank.Players())
}

func TestMetricsMountedWhenConfigured(t *testing.T) {
	app := factory.NewTestApp()
	t.Cleanup(func() { _ = app.Close() })

	router := api.NewRouter(api.RouterConfig{
		Logger:      tu.NopLogger(),
		BankService: app.Bank,
		AuthService: app.Auth,
		Hub:         app.Hub,
		MetricsHandler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("tbank_ledger_players 0\n"))
		}),
	})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "tbank_ledger_players")
}
