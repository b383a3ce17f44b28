package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"financas/internal/adapters"
	"financas/internal/core"
	"financas/internal/log"
	"financas/internal/middleware/ratelimit"
	"financas/internal/services"
	"financas/internal/sheets/memory"
	"financas/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, time.June, 15, 9, 0, 0, 0, time.UTC)

func seedTransactions() []core.Transaction {
	return []core.Transaction{
		{Description: "Salário", Amount: core.Money{Cents: 500000}, Category: "Salário", Month: 5, Year: 2024},
		{Description: "Mercado", Amount: core.Money{Cents: -25000}, Category: "Alimentação", Month: 5, Year: 2024},
		{Description: "TV", Amount: core.Money{Cents: -10000}, Category: "Casa", Month: 5, Year: 2024, Installment: "parcela 12/12"},
		{Description: "Celular", Amount: core.Money{Cents: -5000}, Category: "Casa", Month: 5, Year: 2024, Installment: "11/12"},
		{Description: "Tesouro", Amount: core.Money{Cents: -100000}, Category: "Reserva", Subcategory: "Investimento", Month: 4, Year: 2024},
	}
}

func newTestServer(t *testing.T, opts ...Option) (*Server, *memory.Store) {
	t.Helper()
	mem := memory.New(seedTransactions()...)
	svc := services.NewTransactionService(mem, nil)
	overview := services.NewOverviewService(mem, core.NewAggregator(core.DefaultTaxonomy()),
		services.WithClock(func() time.Time { return testNow }),
		services.WithLogger(log.Discard()))
	svc.AddInvalidator(overview)

	opts = append([]Option{WithLogger(log.Discard())}, opts...)
	srv := NewServer(":0", adapters.NewStore(mem, svc), overview, opts...)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv, mem
}

func do(t *testing.T, srv *Server, method, target, contentType, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	return out
}

func TestHealthAndReady(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := do(t, srv, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", decodeBody(t, rr)["status"])
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))

	rr = do(t, srv, http.MethodGet, "/readyz", "", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ready", decodeBody(t, rr)["status"])
}

func TestOverviewEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := do(t, srv, http.MethodGet, "/api/overview?as_of=2024-06-01", "", "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var body overviewJSON
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, 2024, body.AsOfYear)
	assert.Equal(t, int64(500000), body.Totals.Income.Cents)
	assert.Equal(t, int64(40000), body.Totals.Expense.Cents)
	assert.Equal(t, int64(100000), body.Totals.Invested.Cents)
	assert.Equal(t, int64(460000), body.Totals.Balance.Cents)
	assert.Equal(t, "R$ 4.600,00", body.Totals.Balance.Formatted)
	assert.Equal(t, periodJSON{Year: 2024, Month: 5}, body.LastPeriod)
	require.Len(t, body.Installments.Ordered, 2)
	assert.Equal(t, "TV", body.Installments.Ordered[0].Transaction.Description)
	assert.Equal(t, "final", body.Installments.Ordered[0].Tier)
	assert.Equal(t, int64(15000), body.Installments.GrandSum.Cents)
	assert.Len(t, body.Months, 2)
}

func TestInstallmentsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := do(t, srv, http.MethodGet, "/api/installments", "", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var body installmentsJSON
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Len(t, body.Final, 1)
	require.Len(t, body.Penultimate, 1)
	assert.Equal(t, "Celular", body.Penultimate[0].Transaction.Description)
	assert.Equal(t, 1, body.Penultimate[0].Remaining)
	assert.Equal(t, int64(10000), body.FinalSum.Cents)
}

func TestOverviewBadAsOf(t *testing.T) {
	srv, _ := newTestServer(t)
	rr := do(t, srv, http.MethodGet, "/api/overview?as_of=junho", "", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, decodeBody(t, rr)["error"], "as_of")
}

func TestListTransactions(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := do(t, srv, http.MethodGet, "/api/transactions?year=2024&month=5", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, float64(4), decodeBody(t, rr)["count"])

	rr = do(t, srv, http.MethodGet, "/api/transactions?month=13", "", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr = do(t, srv, http.MethodGet, "/api/transactions?month=x", "", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCreateTransaction(t *testing.T) {
	srv, mem := newTestServer(t)

	rr := do(t, srv, http.MethodPost, "/api/transactions", "application/json",
		`{"description":"Sofá","amount":"-800,00","category":"Casa","month":6,"year":2024,"installment":"parcela 1/10"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.Equal(t, "/api/transactions/mem:6", rr.Header().Get("Location"))
	assert.Equal(t, 6, mem.Len())

	// Form bodies default the period to the server clock.
	rr = do(t, srv, http.MethodPost, "/api/transactions", "application/x-www-form-urlencoded",
		"description=Cinema&amount=-40.5&category=Lazer")
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	tx := decodeBody(t, rr)["transaction"].(map[string]any)
	assert.Equal(t, float64(6), tx["month"])
	assert.Equal(t, float64(-4050), tx["amount"].(map[string]any)["cents"])

	// The write invalidates the cached overview.
	rr = do(t, srv, http.MethodGet, "/api/overview", "", "")
	var body overviewJSON
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, periodJSON{Year: 2024, Month: 6}, body.LastPeriod)
	assert.Equal(t, int64(40000+80000+4050), body.Totals.Expense.Cents)
}

func TestCreateTransactionErrors(t *testing.T) {
	srv, mem := newTestServer(t)

	tests := []struct {
		name        string
		contentType string
		body        string
		want        int
	}{
		{"malformed json", "application/json", `{"description":`, http.StatusBadRequest},
		{"bad amount", "application/x-www-form-urlencoded", "description=x&amount=abc&category=A", http.StatusUnprocessableEntity},
		{"zero amount", "application/x-www-form-urlencoded", "description=x&amount=0&category=A", http.StatusUnprocessableEntity},
		{"missing description", "application/json", `{"amount":"1.23","category":"A"}`, http.StatusUnprocessableEntity},
		{"missing category", "application/json", `{"description":"x","amount":-1}`, http.StatusUnprocessableEntity},
		{"bad month", "application/json", `{"description":"x","amount":-1,"category":"A","month":13}`, http.StatusUnprocessableEntity},
		{"long description", "application/json", `{"description":"` + strings.Repeat("x", 201) + `","amount":-1,"category":"A"}`, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, srv, http.MethodPost, "/api/transactions", tt.contentType, tt.body)
			assert.Equal(t, tt.want, rr.Code, rr.Body.String())
			assert.NotEmpty(t, decodeBody(t, rr)["error"])
		})
	}
	assert.Equal(t, 5, mem.Len())

	rr := do(t, srv, http.MethodDelete, "/api/transactions", "", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestImportTransactions(t *testing.T) {
	srv, mem := newTestServer(t)

	csv := "description,amount,category,subcategory,month,year,installment\n" +
		"Luz,-180.00,Casa,,6,2024,\n" +
		"Curso,-300.00,Estudo,,6,2024,parcela 2/3\n"
	rr := do(t, srv, http.MethodPost, "/api/transactions/import", "text/csv", csv)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.Equal(t, float64(2), decodeBody(t, rr)["count"])
	assert.Equal(t, 7, mem.Len())

	rr = do(t, srv, http.MethodPost, "/api/transactions/import", "text/csv", "Luz,abc,Casa,,6,2024,\n")
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Equal(t, 7, mem.Len())
}

func TestImportTransactionsBodyTooLarge(t *testing.T) {
	srv, mem := newTestServer(t)

	body := strings.Repeat("Luz,-1.00,Casa,,6,2024,\n", (maxBodyBytes/24)+1000)

	done := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		done <- do(t, srv, http.MethodPost, "/api/transactions/import", "text/csv", body)
	}()

	select {
	case rr := <-done:
		assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
		assert.Contains(t, decodeBody(t, rr)["error"], "exceeds")
		assert.Equal(t, 5, mem.Len())
	case <-time.After(5 * time.Second):
		t.Fatal("import handler did not return for an oversized body")
	}
}

func TestGetTransactionUnsupported(t *testing.T) {
	srv, _ := newTestServer(t)
	rr := do(t, srv, http.MethodGet, "/api/transactions/mem:1", "", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestGetTransactionSQLite(t *testing.T) {
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "http.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	svc := services.NewTransactionService(repo, nil)
	overview := services.NewOverviewService(repo, core.NewAggregator(core.DefaultTaxonomy()),
		services.WithClock(func() time.Time { return testNow }), services.WithLogger(log.Discard()))
	srv := NewServer(":0", adapters.NewSQLiteAdapter(repo, svc), overview, WithLogger(log.Discard()))
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	rr := do(t, srv, http.MethodPost, "/api/transactions", "application/json",
		`{"description":"Água","amount":-95.1,"category":"Casa"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	id := decodeBody(t, rr)["id"].(string)

	rr = do(t, srv, http.MethodGet, "/api/transactions/"+id, "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	body := decodeBody(t, rr)
	assert.Equal(t, "pending", body["sync_status"])

	rr = do(t, srv, http.MethodGet, "/api/transactions/does-not-exist", "", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(t, srv, http.MethodGet, "/readyz", "", "")
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRateLimitOnPost(t *testing.T) {
	srv, _ := newTestServer(t, WithRateLimit(ratelimit.Config{RequestsPerWindow: 1, Window: time.Minute}))

	body := `{"description":"x","amount":-1,"category":"A"}`
	assert.Equal(t, http.StatusCreated, do(t, srv, http.MethodPost, "/api/transactions", "application/json", body).Code)
	rr := do(t, srv, http.MethodPost, "/api/transactions", "application/json", body)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "60", rr.Header().Get("Retry-After"))

	// Reads are not limited.
	assert.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/api/installments", "", "").Code)
}

type failingOverview struct{}

func (failingOverview) Overview(context.Context, time.Time) (core.Overview, error) {
	return core.Overview{}, errors.New("sheets unavailable")
}
func (failingOverview) Now() time.Time { return testNow }

func TestOverviewFailureIs500(t *testing.T) {
	srv := NewServer(":0", memory.New(), failingOverview{}, WithLogger(log.Discard()))
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	rr := do(t, srv, http.MethodGet, "/api/overview", "", "")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "could not compute overview", decodeBody(t, rr)["error"])
}
