package http

import (
	"context"
	"net/http"
	"time"

	"mone/internal/services"
)

const readyTimeout = 5 * time.Second

// Writes answer with a redirect to the book, like a form post would.
const (
	bookPath     = "/book"
	fullBookPath = "/book?full=true"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.startedAt).Round(time.Second).String(),
	}).Write(w)
}

// handleReady reports whether the store answers.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{"store": "ok"}
	status := http.StatusOK

	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			s.logger.WarnContext(ctx, "Readiness check failed", "error", err)
			checks["store"] = "failed: " + err.Error()
			status = http.StatusServiceUnavailable
		}
	}

	state := "ready"
	if status != http.StatusOK {
		state = "not_ready"
	}
	NewJSONResponse().Status(status).Body(map[string]any{
		"status": state,
		"checks": checks,
	}).Write(w)
}

func (s *Server) handleBook(w http.ResponseWriter, r *http.Request) {
	full, err := parseBool(r.URL.Query(), "full")
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	NewJSONResponse().Body(s.svc.Snapshot(full)).Write(w)
}

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(s.svc.Accounts()).Write(w)
}

func (s *Server) handleListBudgets(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(s.svc.Budgets()).Write(w)
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(s.svc.Transactions()).Write(w)
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var req services.AccountRequest
	if err := decodeJSON(w, r, &req); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	if _, err := s.svc.CreateAccount(r.Context(), req); err != nil {
		ErrorFor(err).Write(w)
		return
	}
	SeeOther(bookPath).Write(w)
}

func (s *Server) handleCreateBudget(w http.ResponseWriter, r *http.Request) {
	var req services.BudgetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	if _, err := s.svc.CreateBudget(r.Context(), req); err != nil {
		ErrorFor(err).Write(w)
		return
	}
	SeeOther(bookPath).Write(w)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req services.TransactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	if _, err := s.svc.CreateTransaction(r.Context(), req); err != nil {
		ErrorFor(err).Write(w)
		return
	}
	SeeOther(fullBookPath).Write(w)
}

func (s *Server) handleHolder(w http.ResponseWriter, r *http.Request) {
	rec, err := s.svc.Holder(r.PathValue("id"))
	if err != nil {
		ErrorFor(err).Write(w)
		return
	}
	NewJSONResponse().Body(rec).Write(w)
}

func (s *Server) handleTransaction(w http.ResponseWriter, r *http.Request) {
	rec, rebalance, err := s.svc.Transaction(r.PathValue("id"))
	if err != nil {
		ErrorFor(err).Write(w)
		return
	}
	NewJSONResponse().Body(transactionView{TransactionRecord: rec, BudgetRebalance: rebalance}).Write(w)
}

// handleReplace retires an account or budget in favour of the one named by
// the replacement query parameter.
func (s *Server) handleReplace(w http.ResponseWriter, r *http.Request) {
	replacement := sanitizeInput(r.URL.Query().Get("replacement"))
	if err := s.svc.Replace(r.Context(), r.PathValue("id"), replacement); err != nil {
		ErrorFor(err).Write(w)
		return
	}
	SeeOther(bookPath).Write(w)
}

func (s *Server) handleRemoveTransaction(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.RemoveTransaction(r.Context(), r.PathValue("id")); err != nil {
		ErrorFor(err).Write(w)
		return
	}
	SeeOther(fullBookPath).Write(w)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	from, to, err := parseDateRange(r.URL.Query())
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	points, err := s.svc.History(r.PathValue("id"), from, to)
	if err != nil {
		ErrorFor(err).Write(w)
		return
	}
	NewJSONResponse().Body(points).Write(w)
}

// handleImport books a CSV export sent as the request body. With
// dry_run=true the parsed rows are returned and nothing is booked.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	req, err := parseImportRequest(query, s.defaults)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	dryRun, err := parseBool(query, "dry_run")
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if dryRun {
		rows, err := s.svc.PreviewImport(body, req.Options)
		if err != nil {
			ErrorFor(err).Write(w)
			return
		}
		NewJSONResponse().Body(rows).Write(w)
		return
	}

	if _, err := s.svc.Import(r.Context(), body, req); err != nil {
		ErrorFor(err).Write(w)
		return
	}
	SeeOther(fullBookPath).Write(w)
}
