package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"

	"mone/internal/core"
	applog "mone/internal/log"
	"mone/internal/metrics"
	"mone/internal/services"
	"mone/internal/storage/memory"
)

func newTestServer(t *testing.T, opts ...ServerOption) *Server {
	t.Helper()
	logger := applog.New(applog.Config{Handler: slog.NewTextHandler(io.Discard, nil)})
	svc := services.NewBookService(core.New(memory.New()), services.WithLogger(logger))
	srv := NewServer(":0", svc, append([]ServerOption{WithLogger(logger)}, opts...)...)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv
}

func do(t *testing.T, srv *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, httptest.NewRequest(method, target, r))
	return rr
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return v
}

func expectRedirect(t *testing.T, rr *httptest.ResponseRecorder, location string) {
	t.Helper()
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303; body %s", rr.Code, rr.Body.String())
	}
	if got := rr.Header().Get("Location"); got != location {
		t.Fatalf("Location = %q, want %q", got, location)
	}
}

func TestHealthAndReady(t *testing.T) {
	srv := newTestServer(t)
	for _, path := range []string{"/healthz", "/readyz"} {
		if rr := do(t, srv, http.MethodGet, path, ""); rr.Code != http.StatusOK {
			t.Fatalf("%s status = %d", path, rr.Code)
		}
	}

	down := newTestServer(t, WithReadiness(func(context.Context) error { return errors.New("database is closed") }))
	rr := do(t, down, http.MethodGet, "/readyz", "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz status = %d, want 503", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "not_ready") {
		t.Fatalf("readyz body = %s", rr.Body.String())
	}
}

func TestBookScenario(t *testing.T) {
	srv := newTestServer(t)

	expectRedirect(t, do(t, srv, http.MethodPost, "/account", `{"id":"bank","name":"Bank","balance":"10000"}`), "/book")
	expectRedirect(t, do(t, srv, http.MethodPost, "/account", `{"id":"extern","name":"Extern","isExternal":true}`), "/book")
	expectRedirect(t, do(t, srv, http.MethodPost, "/budget", `{"id":"groceries","name":"Groceries","budget":"200"}`), "/book")
	expectRedirect(t, do(t, srv, http.MethodPost, "/transaction",
		`{"id":"t1","value":"5","description":"coffee","date":"2024-03-01","sources":["bank"],"receiver":["extern"]}`), "/book?full=true")
	expectRedirect(t, do(t, srv, http.MethodPost, "/transaction",
		`{"id":"t2","value":"40","description":"top up","date":"2024-03-02","sources":["bank"],"receiver":["groceries"]}`), "/book?full=true")

	book := decodeBody[core.BookRecord](t, do(t, srv, http.MethodGet, "/book?full=true", ""))
	if !book.Balance.Equal(decimal.NewFromInt(9995)) {
		t.Errorf("balance = %s, want 9995", book.Balance)
	}
	if len(book.Accounts) != 2 || len(book.Budgets) != 1 || len(book.Transactions) != 2 {
		t.Fatalf("book = %+v", book)
	}
	if !book.Budgets[0].Balance.Equal(decimal.NewFromInt(240)) {
		t.Errorf("groceries = %s, want 240", book.Budgets[0].Balance)
	}

	short := decodeBody[core.BookRecord](t, do(t, srv, http.MethodGet, "/book", ""))
	if short.Transactions != nil {
		t.Errorf("transactions listed without full=true")
	}

	tx := decodeBody[transactionView](t, do(t, srv, http.MethodGet, "/transaction/t2", ""))
	if !tx.BudgetRebalance {
		t.Errorf("t2 should be a budget rebalance")
	}

	history := decodeBody[[]core.HistoryPoint](t, do(t, srv, http.MethodGet, "/account/bank/history?from=2024-03-02", ""))
	if len(history) != 1 || !history[0].Balance.Equal(decimal.NewFromInt(9995)) {
		t.Errorf("history = %+v", history)
	}

	expectRedirect(t, do(t, srv, http.MethodDelete, "/transaction/t1", ""), "/book?full=true")
	expectRedirect(t, do(t, srv, http.MethodDelete, "/transaction/unknown", ""), "/book?full=true")
	book = decodeBody[core.BookRecord](t, do(t, srv, http.MethodGet, "/book", ""))
	if !book.Balance.Equal(decimal.NewFromInt(10000)) {
		t.Errorf("balance after remove = %s, want 10000", book.Balance)
	}
}

func TestReplaceEndpoint(t *testing.T) {
	srv := newTestServer(t)
	do(t, srv, http.MethodPost, "/account", `{"id":"bank","name":"Bank","balance":"100"}`)
	do(t, srv, http.MethodPost, "/account", `{"id":"cash","name":"Cash","balance":"10"}`)
	do(t, srv, http.MethodPost, "/transaction", `{"id":"t1","value":"4","sources":["cash"],"receiver":["bank"]}`)

	if rr := do(t, srv, http.MethodDelete, "/account/cash", ""); rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("replace without replacement status = %d, want 422", rr.Code)
	}
	if rr := do(t, srv, http.MethodDelete, "/account/cash?replacement=cash", ""); rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("self replacement status = %d, want 422", rr.Code)
	}
	expectRedirect(t, do(t, srv, http.MethodDelete, "/account/cash?replacement=bank", ""), "/book")

	if rr := do(t, srv, http.MethodGet, "/account/cash", ""); rr.Code != http.StatusNotFound {
		t.Fatalf("replaced account status = %d, want 404", rr.Code)
	}
	accounts := decodeBody[[]core.AccountRecord](t, do(t, srv, http.MethodGet, "/account", ""))
	if len(accounts) != 1 || !accounts[0].Balance.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("accounts = %+v", accounts)
	}
}

func TestImportEndpoint(t *testing.T) {
	srv := newTestServer(t, WithImportDefaults(core.ImportOptions{ValueColumn: 0, DateColumn: 1, DescriptionColumn: 2}))
	do(t, srv, http.MethodPost, "/account", `{"id":"bank","name":"Bank","balance":"100"}`)
	do(t, srv, http.MethodPost, "/account", `{"id":"extern","name":"Extern","isExternal":true}`)

	csv := "amount,date,description\n-12.5,2024-04-01,lunch\n50,2024-04-02,refund\n"

	rows := decodeBody[[]core.ImportedRow](t, do(t, srv, http.MethodPost,
		"/transaction/import?skip_rows=1&dry_run=true", csv))
	if len(rows) != 2 || rows[0].Line != 2 {
		t.Fatalf("dry run rows = %+v", rows)
	}
	if txs := decodeBody[[]core.TransactionRecord](t, do(t, srv, http.MethodGet, "/transaction", "")); len(txs) != 0 {
		t.Fatalf("dry run booked %d transactions", len(txs))
	}

	expectRedirect(t, do(t, srv, http.MethodPost,
		"/transaction/import?skip_rows=1&account=bank&counterpart=extern&tag=import", csv), "/book?full=true")
	book := decodeBody[core.BookRecord](t, do(t, srv, http.MethodGet, "/book?full=true", ""))
	if len(book.Transactions) != 2 || !book.Balance.Equal(decimal.RequireFromString("137.5")) {
		t.Fatalf("book after import = %+v", book)
	}

	rr := do(t, srv, http.MethodPost, "/transaction/import?account=bank&counterpart=extern", "abc,2024-04-01,x\n")
	if rr.Code != http.StatusUnprocessableEntity || !strings.Contains(rr.Body.String(), "line 1") {
		t.Fatalf("bad import = %d %s", rr.Code, rr.Body.String())
	}
}

func TestRequestErrors(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name, method, target, body string
		want                       int
	}{
		{"malformed json", http.MethodPost, "/account", `{"name":`, http.StatusBadRequest},
		{"unknown field", http.MethodPost, "/account", `{"name":"x","colour":"red"}`, http.StatusBadRequest},
		{"empty name", http.MethodPost, "/account", `{"name":" "}`, http.StatusUnprocessableEntity},
		{"empty sources", http.MethodPost, "/transaction", `{"value":"1","receiver":["a"]}`, http.StatusUnprocessableEntity},
		{"bad full flag", http.MethodGet, "/book?full=maybe", "", http.StatusBadRequest},
		{"unknown holder history", http.MethodGet, "/budget/nope/history", "", http.StatusNotFound},
		{"bad history range", http.MethodGet, "/account/x/history?from=yesterday", "", http.StatusBadRequest},
		{"unknown transaction", http.MethodGet, "/transaction/nope", "", http.StatusNotFound},
		{"method not allowed", http.MethodPut, "/book", "", http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rr := do(t, srv, tt.method, tt.target, tt.body); rr.Code != tt.want {
				t.Errorf("status = %d, want %d; body %s", rr.Code, tt.want, rr.Body.String())
			}
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	registry := prometheus.NewRegistry()
	pc := metrics.NewPrometheusCollector("mone")
	if err := pc.Register(registry); err != nil {
		t.Fatal(err)
	}
	srv := newTestServer(t,
		WithMetricsHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})),
		WithRequestObserver(pc.ObserveRequest))

	do(t, srv, http.MethodGet, "/book", "")
	rr := do(t, srv, http.MethodGet, "/metrics", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `mone_http_requests_total{code="200",method="GET"} 1`) {
		t.Fatalf("metrics body missing request counter:\n%s", rr.Body.String())
	}
}

func TestSecurityHeaders(t *testing.T) {
	srv := newTestServer(t)
	rr := do(t, srv, http.MethodGet, "/book", "")
	if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("missing X-Content-Type-Options")
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID")
	}
}
