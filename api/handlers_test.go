package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/distribution-ledger/api"
	"github.com/warp/distribution-ledger/billing"
	"github.com/warp/distribution-ledger/clock"
	"github.com/warp/distribution-ledger/order"
	"github.com/warp/distribution-ledger/store/memory"
	"github.com/warp/distribution-ledger/warehouse"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type testServer struct {
	srv   *httptest.Server
	clock *clock.Fixed
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	store := memory.New()
	clk := clock.NewFixed(time.Date(2025, time.June, 1, 9, 0, 0, 0, time.UTC))
	billingEngine := billing.NewEngine(store.Billing(), clk)
	orderEngine := order.NewEngine(store.Orders(), billingEngine, clk)
	warehouseEngine := warehouse.NewEngine(store.Warehouse(), clk)
	outstanding := billing.NewOutstandingAggregator(store.Billing(), clk)

	log := logrus.New()
	log.SetOutput(io.Discard)

	handler := api.NewHandler(orderEngine, billingEngine, outstanding, warehouseEngine, clk, log)
	srv := httptest.NewServer(api.NewRouter(handler))
	t.Cleanup(srv.Close)

	return &testServer{srv: srv, clock: clk}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) (*http.Response, map[string]any) {
	t.Helper()

	var buf io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		buf = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, ts.srv.URL+path, buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var decoded map[string]any
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &decoded))
	}
	return resp, decoded
}

func (ts *testServer) doList(t *testing.T, path string) (*http.Response, []map[string]any) {
	t.Helper()

	resp, err := http.Get(ts.srv.URL + path)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var decoded []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func createOrderReq() map[string]any {
	return map[string]any{
		"kind":     "distributor",
		"buyer_id": "reseller-1",
		"items": []map[string]any{
			{"product_id": "rice-25kg", "quantity": 10, "unit_price": "100"},
			{"product_id": "oil-5l", "quantity": 5, "unit_price": "200"},
		},
	}
}

// =============================================================================
// ORDER ENDPOINTS
// =============================================================================

func TestAPI_CreateOrder(t *testing.T) {
	ts := newTestServer(t)

	resp, body := ts.do(t, http.MethodPost, "/api/orders", createOrderReq())

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "DO-000001", body["number"])
	assert.Equal(t, "PENDING_CENTRAL", body["status"])
	assert.Equal(t, "2000", body["total"], "amounts travel as decimal strings")
	assert.Equal(t, "central", body["seller_id"])
}

func TestAPI_CreateOrder_BadPayload(t *testing.T) {
	ts := newTestServer(t)

	req := createOrderReq()
	req["items"] = []map[string]any{}
	resp, body := ts.do(t, http.MethodPost, "/api/orders", req)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.NotEmpty(t, body["error"])
}

func TestAPI_OrderLifecycleWithInvoice(t *testing.T) {
	// Full flow over HTTP: create, adjust down, issue, verify the
	// invoice froze the adjusted amount.

	ts := newTestServer(t)

	_, created := ts.do(t, http.MethodPost, "/api/orders", createOrderReq())
	id := created["id"].(string)

	resp, adjusted := ts.do(t, http.MethodPost, "/api/orders/"+id+"/adjust", map[string]any{
		"revisions": []map[string]any{{"product_id": "rice-25kg", "quantity": 4}},
		"note":      "central stock shortage",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "1400", adjusted["total"])

	resp, advanced := ts.do(t, http.MethodPost, "/api/orders/"+id+"/advance", map[string]any{"target": "PO_ISSUED"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "PO_ISSUED", advanced["status"])

	resp, invoices := ts.doList(t, "/api/invoices?buyer_id=reseller-1")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, invoices, 1)
	assert.Equal(t, "1400", invoices[0]["amount"])
	assert.Equal(t, "UNPAID", invoices[0]["status"])
}

func TestAPI_ErrorMapping(t *testing.T) {
	ts := newTestServer(t)

	_, created := ts.do(t, http.MethodPost, "/api/orders", createOrderReq())
	id := created["id"].(string)

	// Skipping a stage: client error.
	resp, _ := ts.do(t, http.MethodPost, "/api/orders/"+id+"/advance", map[string]any{"target": "PROCESSING"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Unknown order: not found.
	resp, _ = ts.do(t, http.MethodPost, "/api/orders/nope/advance", map[string]any{"target": "PO_ISSUED"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// Duplicate issuance: conflict.
	resp, _ = ts.do(t, http.MethodPost, "/api/orders/"+id+"/advance", map[string]any{"target": "PO_ISSUED"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = ts.do(t, http.MethodPost, "/api/orders/"+id+"/advance", map[string]any{"target": "PO_ISSUED"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// Adjusting after issuance: client error.
	resp, _ = ts.do(t, http.MethodPost, "/api/orders/"+id+"/adjust", map[string]any{
		"revisions": []map[string]any{{"product_id": "rice-25kg", "quantity": 4}},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_OrderDocument(t *testing.T) {
	ts := newTestServer(t)

	_, created := ts.do(t, http.MethodPost, "/api/orders", createOrderReq())
	id := created["id"].(string)

	resp, doc := ts.do(t, http.MethodGet, "/api/orders/"+id+"/document", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "central", doc["from"])
	assert.Equal(t, "reseller-1", doc["to"])
	assert.Equal(t, "2000", doc["total"])
	assert.Len(t, doc["lines"], 2)
}

// =============================================================================
// BILLING ENDPOINTS
// =============================================================================

func issueOrder(t *testing.T, ts *testServer) string {
	t.Helper()
	_, created := ts.do(t, http.MethodPost, "/api/orders", createOrderReq())
	id := created["id"].(string)
	resp, _ := ts.do(t, http.MethodPost, "/api/orders/"+id+"/advance", map[string]any{"target": "PO_ISSUED"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	_, invoices := ts.doList(t, "/api/invoices?buyer_id=reseller-1")
	require.NotEmpty(t, invoices)
	return invoices[len(invoices)-1]["id"].(string)
}

func TestAPI_PaymentFlow(t *testing.T) {
	ts := newTestServer(t)
	invID := issueOrder(t, ts)

	resp, inv := ts.do(t, http.MethodPost, fmt.Sprintf("/api/invoices/%s/payments", invID), map[string]any{
		"amount": "600",
		"method": "cash",
	})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "600", inv["paid_amount"])
	assert.Equal(t, "1400", inv["outstanding"])
	assert.Equal(t, "UNPAID", inv["status"])

	resp, inv = ts.do(t, http.MethodPost, fmt.Sprintf("/api/invoices/%s/payments", invID), map[string]any{
		"amount": "1400",
		"method": "bank_transfer",
	})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "PAID", inv["status"])

	resp, payments := ts.doList(t, fmt.Sprintf("/api/invoices/%s/payments", invID))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, payments, 2)
}

func TestAPI_OverPayment_BadRequest(t *testing.T) {
	ts := newTestServer(t)
	invID := issueOrder(t, ts)

	resp, body := ts.do(t, http.MethodPost, fmt.Sprintf("/api/invoices/%s/payments", invID), map[string]any{
		"amount": "5000",
		"method": "cash",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.NotEmpty(t, body["error"])
}

func TestAPI_Outstanding(t *testing.T) {
	ts := newTestServer(t)
	issueOrder(t, ts)
	ts.clock.AdvanceDays(10) // past the 7-day term

	resp, s := ts.do(t, http.MethodGet, "/api/buyers/reseller-1/outstanding", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, s["has_outstanding"])
	assert.Equal(t, "2000", s["total_outstanding"])
	assert.Equal(t, float64(1), s["overdue_count"])
}

// =============================================================================
// WAREHOUSE ENDPOINTS
// =============================================================================

func TestAPI_WarehouseRecordAndStock(t *testing.T) {
	ts := newTestServer(t)

	resp, entry := ts.do(t, http.MethodPost, "/api/warehouse/entries", map[string]any{
		"location": "central",
		"type":     "INBOUND",
		"product":  "rice-25kg",
		"quantity": "100",
		"unit":     "bag",
	})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.NotEmpty(t, entry["id"])

	resp, _ = ts.do(t, http.MethodPost, "/api/warehouse/entries", map[string]any{
		"location": "central",
		"type":     "OUTBOUND",
		"product":  "rice-25kg",
		"quantity": "30",
	})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, levels := ts.doList(t, "/api/warehouse/stock?location=central")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, levels, 1)
	assert.Equal(t, "70", levels[0]["on_hand"])
}

func TestAPI_WarehouseReverse(t *testing.T) {
	ts := newTestServer(t)

	_, entry := ts.do(t, http.MethodPost, "/api/warehouse/entries", map[string]any{
		"location": "central",
		"type":     "INBOUND",
		"product":  "rice-25kg",
		"quantity": "100",
	})
	id := entry["id"].(string)

	resp, comp := ts.do(t, http.MethodPost, "/api/warehouse/entries/"+id+"/reverse", map[string]any{
		"reason": "fat-finger quantity",
	})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "-100", comp["quantity"])
	assert.Equal(t, id, comp["reversal_of"])

	// Second reversal conflicts.
	resp, _ = ts.do(t, http.MethodPost, "/api/warehouse/entries/"+id+"/reverse", map[string]any{
		"reason": "again",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestAPI_WarehouseBatchFlow(t *testing.T) {
	ts := newTestServer(t)

	resp, gen := ts.do(t, http.MethodPost, "/api/warehouse/batch-id", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	batchID := gen["batch_id"].(string)
	assert.Equal(t, "B20250601-0900", batchID)

	resp, _ = ts.do(t, http.MethodPost, "/api/warehouse/entries", map[string]any{
		"location": "plant",
		"type":     "CONSUMPTION",
		"category": "seasoning",
		"sub_type": "mild",
		"quantity": "10",
		"batch_id": batchID,
	})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, pending := ts.doList(t, "/api/warehouse/pending-batches")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, pending, 1)
	assert.Equal(t, batchID, pending[0]["batch_id"])

	resp, _ = ts.do(t, http.MethodPost, "/api/warehouse/entries", map[string]any{
		"location": "plant",
		"type":     "PRODUCTION",
		"product":  "seasoning-mix-mild",
		"quantity": "3",
		"batch_id": batchID,
	})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, pending = ts.doList(t, "/api/warehouse/pending-batches")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, pending)

	// Batch ids never ride on plain inbound entries.
	resp, _ = ts.do(t, http.MethodPost, "/api/warehouse/entries", map[string]any{
		"location": "plant",
		"type":     "INBOUND",
		"product":  "salt",
		"quantity": "1",
		"batch_id": batchID,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
