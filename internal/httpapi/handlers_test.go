package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"flowershop/backend/internal/domain"
	"flowershop/backend/internal/metrics"
	"flowershop/backend/internal/service"
	"flowershop/backend/internal/store/memory"
)

// newTestAPI builds a full API with an in-memory store, real AuthManager and
// real Service so handler tests exercise the complete request path.
func newTestAPI(t *testing.T) *API {
	t.Helper()

	repo := memory.NewSeeded()
	svc := service.New(repo, service.Options{})
	auth := NewAuthManager("test-secret-key", time.Hour, "123456", repo, repo)

	return New(svc, auth, "*", nil, nil)
}

func jsonRequest(t *testing.T, method string, path string, token string, csrf string, body any) *http.Request {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if csrf != "" {
		req.Header.Set("X-CSRF-Token", csrf)
	}
	return req
}

func doJSON(t *testing.T, api *API, method string, path string, token string, csrf string, body any) *httptest.ResponseRecorder {
	t.Helper()
	res := httptest.NewRecorder()
	api.Handler().ServeHTTP(res, jsonRequest(t, method, path, token, csrf, body))
	return res
}

func decodeBody(t *testing.T, res *httptest.ResponseRecorder, dest any) {
	t.Helper()
	if err := json.NewDecoder(res.Body).Decode(dest); err != nil {
		t.Fatalf("decode body: %v (%s)", err, res.Body.String())
	}
}

func TestHandleHealth(t *testing.T) {
	api := newTestAPI(t)

	res := doJSON(t, api, http.MethodGet, "/healthz", "", "", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}

	var body map[string]any
	decodeBody(t, res, &body)
	if body["ok"] != true {
		t.Fatalf("expected ok:true, got %v", body["ok"])
	}
}

func TestHandleLoginInvalidCredentials(t *testing.T) {
	api := newTestAPI(t)

	res := doJSON(t, api, http.MethodPost, "/api/v1/auth/login", "", "", domain.LoginRequest{Username: "admin", Password: "wrongpassword"})
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d (body: %s)", res.Code, res.Body.String())
	}
}

func TestUnknownRouteReturnsJSON404(t *testing.T) {
	api := newTestAPI(t)

	res := doJSON(t, api, http.MethodGet, "/api/v1/nowhere", "", "", nil)
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
	if !strings.Contains(res.Header().Get("Content-Type"), "application/json") {
		t.Fatalf("expected json error body, got %q", res.Header().Get("Content-Type"))
	}
}

func TestQuoteReturnsSummary(t *testing.T) {
	api := newTestAPI(t)
	token := login(t, api, "staff", "staff123")
	csrf := fetchCSRFToken(t, api)

	res := doJSON(t, api, http.MethodPost, "/api/v1/orders/quote", token, csrf, map[string]any{
		"customer_id": "cust-kim",
		"items":       []domain.OrderItem{{ID: "rose", Name: "rose", Price: 50000, Quantity: 1}},
		"discount":    map[string]any{"selected_tier_rate": 10},
		"fulfillment": map[string]any{"type": "reserved_delivery", "district": "서초구"},
	})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", res.Code, res.Body.String())
	}

	var quote domain.QuoteResponse
	decodeBody(t, res, &quote)
	if quote.Summary.Total != 51000 || quote.Summary.DeliveryFee != 6000 {
		t.Fatalf("unexpected quote %+v", quote.Summary)
	}
}

func TestQuoteRejectsMissingItemsAndUnknownFields(t *testing.T) {
	api := newTestAPI(t)
	token := login(t, api, "staff", "staff123")
	csrf := fetchCSRFToken(t, api)

	res := doJSON(t, api, http.MethodPost, "/api/v1/orders/quote", token, csrf, map[string]any{"items": []any{}})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty items, got %d", res.Code)
	}
	if !strings.Contains(res.Body.String(), "items") {
		t.Fatalf("expected json field name in error, got %s", res.Body.String())
	}

	res = doJSON(t, api, http.MethodPost, "/api/v1/orders/quote", token, csrf, map[string]any{
		"items": []domain.OrderItem{{ID: "rose", Price: 1000, Quantity: 1}},
		"bogus": true,
	})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field, got %d", res.Code)
	}
}

func TestCreateOrderReplayAndCancel(t *testing.T) {
	api := newTestAPI(t)
	staff := login(t, api, "staff", "staff123")
	admin := login(t, api, "admin", "admin123")
	csrf := fetchCSRFToken(t, api)

	order := map[string]any{
		"idempotency_key": "pos-1-0001",
		"items":           []domain.OrderItem{{ID: "tulip", Name: "tulip", Price: 20000, Quantity: 1}},
		"fulfillment":     map[string]any{"type": "immediate_pickup"},
		"payment":         map[string]any{"method": "cash"},
	}

	res := doJSON(t, api, http.MethodPost, "/api/v1/orders", staff, csrf, order)
	if res.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%s)", res.Code, res.Body.String())
	}
	var created domain.CreateOrderResponse
	decodeBody(t, res, &created)
	if created.Order.BranchID != "gangnam" || created.Order.Summary.Total != 20000 {
		t.Fatalf("unexpected order %+v", created.Order)
	}

	res = doJSON(t, api, http.MethodPost, "/api/v1/orders", staff, csrf, order)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200 on replay, got %d", res.Code)
	}
	var replay domain.CreateOrderResponse
	decodeBody(t, res, &replay)
	if !replay.Duplicate || replay.Order.ID != created.Order.ID {
		t.Fatalf("expected duplicate of %s, got %+v", created.Order.ID, replay)
	}

	path := "/api/v1/orders/" + created.Order.ID
	if res := doJSON(t, api, http.MethodGet, path, staff, "", nil); res.Code != http.StatusOK {
		t.Fatalf("expected 200 for get order, got %d", res.Code)
	}

	res = doJSON(t, api, http.MethodPost, path+"/cancel", admin, csrf, map[string]string{"reason": "wrong card", "manager_pin": "999999"})
	if res.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for wrong pin, got %d", res.Code)
	}

	res = doJSON(t, api, http.MethodPost, path+"/cancel", admin, csrf, map[string]string{"reason": "wrong card", "manager_pin": "123456"})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200 for cancel, got %d (%s)", res.Code, res.Body.String())
	}
	var canceled struct {
		Order domain.Order `json:"order"`
	}
	decodeBody(t, res, &canceled)
	if canceled.Order.Status != domain.OrderStatusCanceled {
		t.Fatalf("expected canceled order, got %s", canceled.Order.Status)
	}

	res = doJSON(t, api, http.MethodPost, path+"/cancel", admin, csrf, map[string]string{"reason": "again", "manager_pin": "123456"})
	if res.Code != http.StatusConflict {
		t.Fatalf("expected 409 on second cancel, got %d", res.Code)
	}
}

func TestCreateOrderRejectsDeliveryWithoutAddress(t *testing.T) {
	api := newTestAPI(t)
	token := login(t, api, "staff", "staff123")
	csrf := fetchCSRFToken(t, api)

	res := doJSON(t, api, http.MethodPost, "/api/v1/orders", token, csrf, map[string]any{
		"items":       []domain.OrderItem{{ID: "rose", Price: 10000, Quantity: 1}},
		"fulfillment": map[string]any{"type": "reserved_delivery", "date": "2026-05-20"},
	})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d (%s)", res.Code, res.Body.String())
	}
}

func TestCalendarHandlers(t *testing.T) {
	api := newTestAPI(t)
	token := login(t, api, "staff", "staff123")
	csrf := fetchCSRFToken(t, api)

	if res := doJSON(t, api, http.MethodGet, "/api/v1/calendar?year=2026&month=13", token, "", nil); res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for month 13, got %d", res.Code)
	}
	if res := doJSON(t, api, http.MethodGet, "/api/v1/calendar?month=may", token, "", nil); res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for non-numeric month, got %d", res.Code)
	}

	res := doJSON(t, api, http.MethodPost, "/api/v1/calendar/entries", token, csrf, map[string]any{
		"type":  "material",
		"title": "꽃 시장",
		"start": "2026-05-12T06:00:00Z",
	})
	if res.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%s)", res.Code, res.Body.String())
	}
	var created struct {
		Entry domain.CalendarEntry `json:"entry"`
	}
	decodeBody(t, res, &created)

	res = doJSON(t, api, http.MethodGet, "/api/v1/calendar?year=2026&month=5", token, "", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var month domain.CalendarResponse
	decodeBody(t, res, &month)
	found := false
	for _, entry := range month.Entries {
		if entry.ID == created.Entry.ID {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected the manual entry, got %+v", month.Entries)
	}

	if res := doJSON(t, api, http.MethodDelete, "/api/v1/calendar/entries/order-ord-123", token, csrf, nil); res.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for derived entry, got %d", res.Code)
	}
	if res := doJSON(t, api, http.MethodDelete, "/api/v1/calendar/entries/"+created.Entry.ID, token, csrf, nil); res.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", res.Code)
	}
}

func TestRevenueReportCSV(t *testing.T) {
	api := newTestAPI(t)
	token := login(t, api, "admin", "admin123")

	res := doJSON(t, api, http.MethodGet, "/api/v1/reports/revenue?branch_id=gangnam&format=csv", token, "", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", res.Code, res.Body.String())
	}
	if !strings.HasPrefix(res.Header().Get("Content-Type"), "text/csv") {
		t.Fatalf("expected csv content type, got %q", res.Header().Get("Content-Type"))
	}
	body := res.Body.String()
	if !strings.HasPrefix(body, "section,key,value\n") || !strings.Contains(body, "summary,branch_id,gangnam") {
		t.Fatalf("unexpected csv body %q", body)
	}
}

func TestSurchargesByKind(t *testing.T) {
	api := newTestAPI(t)
	token := login(t, api, "staff", "staff123")

	res := doJSON(t, api, http.MethodGet, "/api/v1/branches/gangnam/surcharges?kind=express", token, "", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", res.Code, res.Body.String())
	}
	var body struct {
		Amount int64 `json:"amount"`
	}
	decodeBody(t, res, &body)
	if body.Amount != 10000 {
		t.Fatalf("expected express surcharge 10000, got %d", body.Amount)
	}

	if res := doJSON(t, api, http.MethodGet, "/api/v1/branches/mapo/surcharges", token, "", nil); res.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for another branch, got %d", res.Code)
	}
}

func TestAdminCreatesStaff(t *testing.T) {
	api := newTestAPI(t)
	token := login(t, api, "admin", "admin123")
	csrf := fetchCSRFToken(t, api)

	res := doJSON(t, api, http.MethodPost, "/api/v1/users/staff", token, csrf, domain.StaffCreateRequest{
		Username: "florist",
		Password: "bloom123",
		BranchID: "mapo",
	})
	if res.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%s)", res.Code, res.Body.String())
	}

	res = doJSON(t, api, http.MethodPost, "/api/v1/users/staff", token, csrf, domain.StaffCreateRequest{
		Username: "florist",
		Password: "bloom123",
		BranchID: "mapo",
	})
	if res.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate, got %d", res.Code)
	}

	staff := login(t, api, "florist", "bloom123")
	if res := doJSON(t, api, http.MethodGet, "/api/v1/customers", staff, "", nil); res.Code != http.StatusOK {
		t.Fatalf("expected new staff to reach customers, got %d", res.Code)
	}
}

func TestMetricsEndpointExposesRequests(t *testing.T) {
	repo := memory.NewSeeded()
	registry := prometheus.NewRegistry()
	m := metrics.New(registry)
	svc := service.New(repo, service.Options{Metrics: m})
	auth := NewAuthManager("test-secret-key", time.Hour, "123456", repo, repo)
	api := New(svc, auth, "*", m, registry)

	doJSON(t, api, http.MethodGet, "/healthz", "", "", nil)

	res := doJSON(t, api, http.MethodGet, "/metrics", "", "", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if !strings.Contains(res.Body.String(), `flowershop_http_request_duration_seconds_count{method="GET",route="/healthz",status="200"} 1`) {
		t.Fatalf("expected healthz request in metrics, got %s", res.Body.String())
	}
}

func TestMetricsEndpointDisabledWithoutGatherer(t *testing.T) {
	api := newTestAPI(t)

	if res := doJSON(t, api, http.MethodGet, "/metrics", "", "", nil); res.Code != http.StatusNotFound {
		t.Fatalf("expected 404 without gatherer, got %d", res.Code)
	}
}
