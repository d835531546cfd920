package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/rl1809/salespoint-inventory/internal/core/domain"
	"github.com/rl1809/salespoint-inventory/internal/platform/metrics"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(f *fixture) *gin.Engine {
	h := NewHTTPHandler(f.catalog, f.inventory, f.orders, metrics.NewHTTPMetrics(f.registry), f.registry, nil)
	return h.Router(nil)
}

func do(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestHealthCheck(t *testing.T) {
	r := newTestRouter(newFixture(t))

	rec := do(t, r, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if rec.Header().Get(requestIDHeader) == "" {
		t.Error("expected request id header")
	}
}

func TestHTTP_ProductAndInventoryFlow(t *testing.T) {
	r := newTestRouter(newFixture(t))

	rec := do(t, r, http.MethodPost, "/api/products", map[string]any{"name": "Rope", "price": "EUR 3.50", "metric": "m"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body)
	}
	var product productResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &product)
	if product.Price != "EUR 3.50" || product.Metric != domain.MetricMeter {
		t.Errorf("unexpected product: %+v", product)
	}

	rec = do(t, r, http.MethodPost, "/api/inventory", map[string]any{"product_id": product.ID, "amount": "120", "unique": true})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body)
	}
	var item inventoryItemResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &item)

	rec = do(t, r, http.MethodPost, "/api/inventory", map[string]any{"product_id": product.ID, "amount": "1"})
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409 for batch next to unique item, got %d", rec.Code)
	}

	rec = do(t, r, http.MethodPost, "/api/inventory/"+string(item.ID)+"/restock", map[string]any{"amount": "30"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}

	rec = do(t, r, http.MethodGet, "/api/inventory/products/"+string(product.ID), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var stock stockResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &stock)
	if stock.Kind != "unique" || stock.Total.String() != "150 m" {
		t.Errorf("unexpected stock: %+v", stock)
	}

	rec = do(t, r, http.MethodDelete, "/api/inventory/"+string(item.ID), nil)
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
	rec = do(t, r, http.MethodGet, "/api/inventory/"+string(item.ID), nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestHTTP_InvalidInput(t *testing.T) {
	r := newTestRouter(newFixture(t))

	tests := []struct {
		name string
		path string
		body any
	}{
		{"product without price", "/api/products", map[string]any{"name": "x"}},
		{"inventory without product", "/api/inventory", map[string]any{"amount": 1}},
		{"order without lines", "/api/orders", map[string]any{"lines": []any{}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, r, http.MethodPost, tt.path, tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d: %s", rec.Code, rec.Body)
			}
		})
	}

	req := httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader("{"))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for malformed body, got %d", rec.Code)
	}
}

func TestHTTP_CompleteOrder(t *testing.T) {
	f := newFixture(t)
	r := newTestRouter(f)
	_, item, order := f.paidOrder(t, 10, 3)

	rec := do(t, r, http.MethodPost, "/api/orders/"+string(order.ID)+"/complete", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	var resp completeOrderResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Order.Status != domain.OrderStatusCompleted || len(resp.Report.Completions) != 1 {
		t.Errorf("unexpected response: %+v", resp)
	}

	rec = do(t, r, http.MethodGet, "/api/inventory/"+string(item.ID), nil)
	var got inventoryItemResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &got)
	if !got.Quantity.Equal(domain.Of(7)) {
		t.Errorf("expected 7 left, got %s", got.Quantity)
	}

	rec = do(t, r, http.MethodPost, "/api/orders/"+string(order.ID)+"/complete", nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409 for second completion, got %d", rec.Code)
	}
}

func TestHTTP_CompleteOrderInsufficientStock(t *testing.T) {
	f := newFixture(t)
	r := newTestRouter(f)
	_, _, order := f.paidOrder(t, 2, 5)

	rec := do(t, r, http.MethodPost, "/api/orders/"+string(order.ID)+"/complete", nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", rec.Code, rec.Body)
	}

	var resp errorResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Report == nil || len(resp.Report.Failures()) != 1 {
		t.Fatalf("expected report with one failure, got %+v", resp)
	}
	if got := resp.Report.Completions[0].Reason; got != domain.ReasonInsufficientStock {
		t.Errorf("unexpected reason: %q", got)
	}

	rec = do(t, r, http.MethodGet, "/api/orders/"+string(order.ID), nil)
	var stored domain.Order
	_ = json.Unmarshal(rec.Body.Bytes(), &stored)
	if stored.Status != domain.OrderStatusPaid {
		t.Errorf("expected order to stay PAID, got %s", stored.Status)
	}
}

func TestHTTP_CancelRestocks(t *testing.T) {
	f := newFixture(t)
	r := newTestRouter(f)
	_, item, order := f.paidOrder(t, 10, 4)

	do(t, r, http.MethodPost, "/api/orders/"+string(order.ID)+"/complete", nil)
	rec := do(t, r, http.MethodPost, "/api/orders/"+string(order.ID)+"/cancel", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}

	rec = do(t, r, http.MethodGet, "/api/inventory/"+string(item.ID), nil)
	var got inventoryItemResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &got)
	if !got.Quantity.Equal(domain.Of(10)) {
		t.Errorf("expected 10 after cancellation, got %s", got.Quantity)
	}
}

func TestHTTP_OutOfStockAndMetrics(t *testing.T) {
	f := newFixture(t)
	r := newTestRouter(f)
	_, item, order := f.paidOrder(t, 2, 2)

	do(t, r, http.MethodPost, "/api/orders/"+string(order.ID)+"/complete", nil)

	rec := do(t, r, http.MethodGet, "/api/inventory/out-of-stock", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), string(item.ID)) {
		t.Errorf("expected %s out of stock, got %s", item.ID, rec.Body)
	}

	rec = do(t, r, http.MethodGet, "/metrics", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	for _, name := range []string{"salespoint_http_requests_total", "salespoint_inventory_order_line_outcomes_total"} {
		if !strings.Contains(rec.Body.String(), name) {
			t.Errorf("expected %s in metrics output", name)
		}
	}
}

func TestHTTP_NoMetricsRouteWithoutGatherer(t *testing.T) {
	f := newFixture(t)
	var gatherer prometheus.Gatherer
	r := NewHTTPHandler(f.catalog, f.inventory, f.orders, nil, gatherer, nil).Router(nil)

	rec := do(t, r, http.MethodGet, "/metrics", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}
