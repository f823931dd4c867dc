package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"matchbook/internal/engine"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	s := NewServer(engine.New("TEST", nil), nil, nil)
	ts := httptest.NewServer(s.Router())
	t.Cleanup(func() {
		ts.Close()
		s.Shutdown()
	})
	return s, ts
}

func postJSON(t *testing.T, url string, body interface{}) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestCreateLimitOrder(t *testing.T) {
	_, ts := newTestServer(t)

	resp := postJSON(t, ts.URL+"/api/orders", OrderRequest{
		Side: "buy", Type: "limit", Price: 10000, Quantity: 10, ClientOrderID: "bid1",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	res := decode[engine.Result](t, resp)
	assert.Equal(t, "bid1", res.OrderID)
	assert.Equal(t, int64(10), res.Remaining)
	assert.Empty(t, res.Trades)

	bookResp, err := http.Get(ts.URL + "/api/book")
	require.NoError(t, err)
	snap := decode[engine.BookSnapshot](t, bookResp)
	require.Len(t, snap.Bids, 1)
	assert.Equal(t, int64(10000), snap.Bids[0].Price)
}

func TestCreateOrderRejectsBadInput(t *testing.T) {
	_, ts := newTestServer(t)

	resp := postJSON(t, ts.URL+"/api/orders", OrderRequest{
		Side: "buy", Type: "limit", Price: 0, Quantity: 10,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = postJSON(t, ts.URL+"/api/orders", OrderRequest{
		Side: "sideways", Type: "limit", Price: 10000, Quantity: 10,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = postJSON(t, ts.URL+"/api/orders", OrderRequest{
		Side: "buy", Type: "iceberg", Price: 10000, Quantity: 10,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestMatchOverHTTP(t *testing.T) {
	_, ts := newTestServer(t)

	resp := postJSON(t, ts.URL+"/api/orders", OrderRequest{
		Side: "sell", Type: "limit", Price: 10000, Quantity: 10, ClientOrderID: "maker",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = postJSON(t, ts.URL+"/api/orders", OrderRequest{
		Side: "buy", Type: "market", Quantity: 4,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	res := decode[engine.Result](t, resp)
	require.Len(t, res.Trades, 1)
	assert.Equal(t, int64(10000), res.Trades[0].Price)
	assert.Equal(t, int64(4), res.Trades[0].Quantity)
	assert.Equal(t, "maker", res.Trades[0].MakerOrderID)

	tradesResp, err := http.Get(ts.URL + "/api/trades")
	require.NoError(t, err)
	var trades []json.RawMessage
	require.NoError(t, json.NewDecoder(tradesResp.Body).Decode(&trades))
	tradesResp.Body.Close()
	assert.Len(t, trades, 1)
}

func TestModifyAndCancelOverHTTP(t *testing.T) {
	_, ts := newTestServer(t)

	resp := postJSON(t, ts.URL+"/api/orders", OrderRequest{
		Side: "buy", Type: "limit", Price: 10000, Quantity: 10, ClientOrderID: "bid",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// Reprice
	newPrice := int64(9950)
	data, _ := json.Marshal(ModifyRequest{Price: &newPrice})
	req, _ := http.NewRequest(http.MethodPut, ts.URL+"/api/orders/bid", bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	mresp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, mresp.StatusCode)
	mresp.Body.Close()

	// Cancel
	req, _ = http.NewRequest(http.MethodDelete, ts.URL+"/api/orders/bid", nil)
	cresp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, cresp.StatusCode)
	cresp.Body.Close()

	// Cancel again: terminal, not missing
	req, _ = http.NewRequest(http.MethodDelete, ts.URL+"/api/orders/bid", nil)
	cresp2, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, cresp2.StatusCode)
	cresp2.Body.Close()

	// Unknown order
	req, _ = http.NewRequest(http.MethodDelete, ts.URL+"/api/orders/ghost", nil)
	cresp3, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, cresp3.StatusCode)
	cresp3.Body.Close()
}

func TestCreateOCOOverHTTP(t *testing.T) {
	_, ts := newTestServer(t)

	resp := postJSON(t, ts.URL+"/api/orders/oco", OCORequest{
		Limit: OrderRequest{Side: "sell", Type: "limit", Price: 10500, Quantity: 5, ClientOrderID: "tp"},
		Stop:  OrderRequest{Side: "sell", Type: "stop_market", TriggerPrice: 9500, Quantity: 5, ClientOrderID: "sl"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	res := decode[engine.OCOResult](t, resp)
	assert.Equal(t, "tp", res.LimitOrderID)
	assert.Equal(t, "sl", res.StopOrderID)

	bookResp, err := http.Get(ts.URL + "/api/book")
	require.NoError(t, err)
	snap := decode[engine.BookSnapshot](t, bookResp)
	require.Len(t, snap.Asks, 1)
	require.Len(t, snap.Stops, 1)
	assert.Equal(t, "sl", snap.Stops[0].ID)
}

func TestGetOrder(t *testing.T) {
	_, ts := newTestServer(t)

	resp := postJSON(t, ts.URL+"/api/orders", OrderRequest{
		Side: "sell", Type: "stop_market", TriggerPrice: 9500, Quantity: 5, ClientOrderID: "stop",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	oresp, err := http.Get(ts.URL + "/api/orders/stop")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, oresp.StatusCode)
	oresp.Body.Close()

	missing, err := http.Get(ts.URL + "/api/orders/ghost")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
	missing.Body.Close()
}

func TestHealthz(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[map[string]string](t, resp)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "TEST", body["symbol"])
}

func TestRateLimit(t *testing.T) {
	s := NewServer(engine.New("TEST", nil), nil, nil)
	s.SetRateLimit(2)
	ts := httptest.NewServer(s.Router())
	t.Cleanup(func() {
		ts.Close()
		s.Shutdown()
	})

	get := func() *http.Response {
		req, err := http.NewRequest(http.MethodGet, ts.URL+"/healthz", nil)
		require.NoError(t, err)
		req.Header.Set("X-Real-IP", "203.0.113.7")
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		return resp
	}

	for i := 0; i < 2; i++ {
		resp := get()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		resp.Body.Close()
	}
	resp := get()
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	resp.Body.Close()
}
