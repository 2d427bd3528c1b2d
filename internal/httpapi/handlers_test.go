package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"apotekku/backend/internal/cache"
	"apotekku/backend/internal/domain"
	"apotekku/backend/internal/reorder"
	"apotekku/backend/internal/salesagg"
	"apotekku/backend/internal/service"
	"apotekku/backend/internal/store/memory"
)

// newTestAPI builds a full API with an in-memory store, real AuthManager and
// real Service so handler tests exercise the complete request path.
func newTestAPI(t *testing.T) *API {
	t.Helper()

	repo := memory.NewSeeded()
	advisor := reorder.New(reorder.Config{})
	aggregator := salesagg.New(time.UTC)
	svc := service.New(repo, advisor, aggregator, cache.NoopReportCache{}, 30*time.Second)
	auth := NewAuthManager("test-secret-key", time.Hour, "123456", repo)

	return New(svc, auth, "*", 30)
}

// loginToken logs in as the given seeded user and returns a bearer token.
func loginToken(t *testing.T, handler http.Handler, username, password string) string {
	t.Helper()

	payload, _ := json.Marshal(map[string]string{
		"username": username,
		"password": password,
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("login as %s failed: %d %s", username, rec.Code, rec.Body.String())
	}

	var resp domain.LoginResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	if resp.AccessToken == "" {
		t.Fatalf("expected non-empty access token for %s", username)
	}
	return resp.AccessToken
}

func authedRequest(method, target, token string, body []byte) *http.Request {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func TestHandleHealth(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["ok"] != true {
		t.Fatalf("expected ok:true, got %v", body["ok"])
	}
}

func TestHandleLogin_InvalidCredentials(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	payload, _ := json.Marshal(map[string]string{
		"username": "admin",
		"password": "wrongpassword",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestHandleLogin_RateLimit(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	// The loginLimiter allows 5 attempts per minute.
	// Fire 6 requests from the same "IP" (httptest uses RemoteAddr "192.0.2.1:1234").
	payload, _ := json.Marshal(map[string]string{
		"username": "admin",
		"password": "badpass",
	})

	var lastCode int
	for i := 0; i < 6; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")
		req.RemoteAddr = "192.0.2.1:1234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		lastCode = rec.Code
	}

	if lastCode != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after 6 attempts, got %d", lastCode)
	}
}

func TestHandleProducts_RequiresAuth(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestHandleProducts_WithValidToken(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginToken(t, handler, "admin", "admin123")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(http.MethodGet, "/api/v1/products", token, nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["products"] == nil {
		t.Fatalf("expected products key in response, got %v", body)
	}
}

func TestHandleProductByUnknownSKU(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginToken(t, handler, "admin", "admin123")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(http.MethodGet, "/api/v1/products/NOPE-1", token, nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown sku, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestHandleCheckoutAndLookup(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginToken(t, handler, "admin", "admin123")

	payload, _ := json.Marshal(domain.CheckoutRequest{
		PaymentMethod:  "cash",
		VATRatePercent: 11,
		CartItems:      []domain.CartItem{{SKU: "PARA-500", Qty: 2}},
	})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(http.MethodPost, "/api/v1/checkout", token, payload))

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var checkout domain.CheckoutResponse
	if err := json.NewDecoder(rec.Body).Decode(&checkout); err != nil {
		t.Fatalf("decode checkout response: %v", err)
	}
	if checkout.TransactionID == "" || checkout.Status != domain.TxStatusPaid {
		t.Fatalf("unexpected checkout response: %+v", checkout)
	}
	// 2 x 1500 cents + 11% VAT.
	if checkout.SubtotalCents != 3000 || checkout.TotalCents != 3330 {
		t.Fatalf("unexpected totals: %+v", checkout)
	}

	lookup := httptest.NewRecorder()
	handler.ServeHTTP(lookup, authedRequest(http.MethodGet, "/api/v1/transactions/"+checkout.TransactionID, token, nil))
	if lookup.Code != http.StatusOK {
		t.Fatalf("expected 200 on lookup, got %d (body: %s)", lookup.Code, lookup.Body.String())
	}
}

func TestHandleCheckout_InsufficientStock(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginToken(t, handler, "admin", "admin123")

	payload, _ := json.Marshal(domain.CheckoutRequest{
		PaymentMethod: "cash",
		CartItems:     []domain.CartItem{{SKU: "PARA-500", Qty: 100000}},
	})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(http.MethodPost, "/api/v1/checkout", token, payload))

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestHandleVoid_RequiresManagerPIN(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginToken(t, handler, "admin", "admin123")

	payload, _ := json.Marshal(domain.CheckoutRequest{
		PaymentMethod: "cash",
		CartItems:     []domain.CartItem{{SKU: "IBU-400", Qty: 1}},
	})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(http.MethodPost, "/api/v1/checkout", token, payload))
	if rec.Code != http.StatusCreated {
		t.Fatalf("checkout failed: %d %s", rec.Code, rec.Body.String())
	}
	var checkout domain.CheckoutResponse
	if err := json.NewDecoder(rec.Body).Decode(&checkout); err != nil {
		t.Fatalf("decode checkout response: %v", err)
	}

	badPin, _ := json.Marshal(domain.VoidTransactionRequest{Reason: "test", ManagerPIN: "000000"})
	denied := httptest.NewRecorder()
	handler.ServeHTTP(denied, authedRequest(http.MethodPost, "/api/v1/transactions/"+checkout.TransactionID+"/void", token, badPin))
	if denied.Code != http.StatusForbidden {
		t.Fatalf("expected 403 with wrong pin, got %d (body: %s)", denied.Code, denied.Body.String())
	}

	goodPin, _ := json.Marshal(domain.VoidTransactionRequest{Reason: "customer return", ManagerPIN: "123456"})
	voided := httptest.NewRecorder()
	handler.ServeHTTP(voided, authedRequest(http.MethodPost, "/api/v1/transactions/"+checkout.TransactionID+"/void", token, goodPin))
	if voided.Code != http.StatusOK {
		t.Fatalf("expected 200 with correct pin, got %d (body: %s)", voided.Code, voided.Body.String())
	}

	var resp domain.VoidTransactionResponse
	if err := json.NewDecoder(voided.Body).Decode(&resp); err != nil {
		t.Fatalf("decode void response: %v", err)
	}
	if resp.Status != domain.TxStatusVoided {
		t.Fatalf("expected voided status, got %+v", resp)
	}
}

func TestHandleReorderSuggestions(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginToken(t, handler, "apoteker", "apoteker123")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(http.MethodGet, "/api/v1/reorder-suggestions", token, nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var resp domain.ReorderAdviceResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode reorder response: %v", err)
	}
	if resp.WindowDays != reorder.DefaultWindowDays {
		t.Fatalf("expected window %d, got %d", reorder.DefaultWindowDays, resp.WindowDays)
	}
}

func TestHandleSalesReport_CSVExport(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginToken(t, handler, "admin", "admin123")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(http.MethodGet, "/api/v1/reports/sales?period=month&format=csv", token, nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Fatalf("expected text/csv content type, got %q", ct)
	}
	if !strings.HasPrefix(rec.Body.String(), "period,start,end,") {
		t.Fatalf("expected csv header row, got %q", rec.Body.String())
	}
}

func TestHandleTopItems_DefaultLimit(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginToken(t, handler, "admin", "admin123")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(http.MethodGet, "/api/v1/reports/top-items?type=product", token, nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var resp domain.TopItemsResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode top items response: %v", err)
	}
	if resp.Limit != 5 {
		t.Fatalf("expected default limit 5, got %d", resp.Limit)
	}
}

func TestHandleUsers_AdminOnly(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	pharmacistToken := loginToken(t, handler, "apoteker", "apoteker123")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(http.MethodGet, "/api/v1/users", pharmacistToken, nil))

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for pharmacist on /users, got %d", rec.Code)
	}
}

func TestHandleChangePassword(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	adminToken := loginToken(t, handler, "admin", "admin123")

	payload, _ := json.Marshal(domain.PasswordChangeRequest{Password: "apoteker456"})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(http.MethodPatch, "/api/v1/users/apoteker/password", adminToken, payload))
	if rec.Code != http.StatusOK {
		t.Fatalf("change password failed: %d %s", rec.Code, rec.Body.String())
	}

	loginToken(t, handler, "apoteker", "apoteker456")

	missing := httptest.NewRecorder()
	handler.ServeHTTP(missing, authedRequest(http.MethodPatch, "/api/v1/users/ghost/password", adminToken, payload))
	if missing.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown user, got %d", missing.Code)
	}
}

func TestHandleCheckout_CashierAllowed(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	adminToken := loginToken(t, handler, "admin", "admin123")

	createPayload, _ := json.Marshal(domain.UserCreateRequest{
		Username: "kasir1",
		Password: "kasir123",
		Role:     domain.RoleCashier,
	})
	created := httptest.NewRecorder()
	handler.ServeHTTP(created, authedRequest(http.MethodPost, "/api/v1/users", adminToken, createPayload))
	if created.Code != http.StatusCreated {
		t.Fatalf("create cashier failed: %d %s", created.Code, created.Body.String())
	}

	cashierToken := loginToken(t, handler, "kasir1", "kasir123")

	payload, _ := json.Marshal(domain.CheckoutRequest{
		PaymentMethod: "qris",
		CartItems:     []domain.CartItem{{SKU: "VIT-C-500", Qty: 3}},
	})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(http.MethodPost, "/api/v1/checkout", cashierToken, payload))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 for cashier checkout, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	// Cashiers cannot read back office reports.
	report := httptest.NewRecorder()
	handler.ServeHTTP(report, authedRequest(http.MethodGet, "/api/v1/reports/sales", cashierToken, nil))
	if report.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for cashier on sales report, got %d", report.Code)
	}
}

func TestHandleExpiryWarnings(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginToken(t, handler, "apoteker", "apoteker123")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(http.MethodGet, "/api/v1/inventory/expiring?days=30", token, nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var resp domain.ExpiryWarningResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode expiry response: %v", err)
	}
	// Seed data carries near-expiry batches for PARA-500 and CET-10.
	if len(resp.Warnings) == 0 {
		t.Fatalf("expected at least one expiry warning from seed data")
	}
}
