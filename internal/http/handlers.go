package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"financas/internal/core"
	"financas/internal/log"
	"financas/internal/sheets/memory"
	"financas/internal/storage"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.startedAt).Round(time.Second).String(),
	}).Write(w)
}

// handleReady performs readiness check with dependency verification
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]any)

	switch {
	case s.store == nil:
		checks["store"] = "not_configured"
		status, httpStatus = "not_ready", http.StatusServiceUnavailable
	default:
		if p, ok := s.store.(pinger); ok {
			if err := p.Ping(ctx); err != nil {
				checks["store"] = fmt.Sprintf("failed: %v", err)
				status, httpStatus = "not_ready", http.StatusServiceUnavailable
			} else {
				checks["store"] = "ok"
			}
		} else {
			checks["store"] = "ok"
		}
	}

	if s.overview == nil {
		checks["overview"] = "not_configured"
		status, httpStatus = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["overview"] = "ok"
	}

	trace := s.tracer.GetMetrics()
	limits := s.rateLimiter.GetMetrics()
	checks["requests"] = map[string]any{
		"total":          trace.TotalRequests,
		"server_errors":  trace.ServerErrors,
		"avg_latency_us": trace.AverageResponseTime,
		"rate_limited":   limits.TotalHits,
		"active_clients": limits.ClientCount,
		"suspicious":     s.detector.GetMetrics().SuspiciousRequests,
	}

	NewJSONResponse().Status(httpStatus).Body(map[string]any{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks":    checks,
	}).Write(w)
}

func (s *Server) loadOverview(w http.ResponseWriter, r *http.Request) (core.Overview, bool) {
	asOf, err := ParseAsOf(r.URL.Query(), s.overview.Now())
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return core.Overview{}, false
	}

	ov, err := s.overview.Overview(r.Context(), asOf)
	if err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Overview failed",
			log.FieldError, err,
			log.FieldOperation, log.OpAggregate,
			log.FieldAsOf, asOf.Format("2006-01-02"))
		InternalServerError("could not compute overview").Write(w)
		return core.Overview{}, false
	}
	return ov, true
}

// handleOverview returns totals, last period, installments and the monthly breakdown.
func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	if ov, ok := s.loadOverview(w, r); ok {
		NewJSONResponse().Body(toOverviewJSON(ov)).Write(w)
	}
}

// handleInstallments returns only the installment ranking.
func (s *Server) handleInstallments(w http.ResponseWriter, r *http.Request) {
	if ov, ok := s.loadOverview(w, r); ok {
		NewJSONResponse().Body(toInstallmentsJSON(ov.Installments)).Write(w)
	}
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	params, err := ParseMonthParams(r.URL.Query(), s.overview.Now())
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	if err := (core.Period{Year: params.Year, Month: params.Month}).Validate(); err != nil {
		UnprocessableEntityError(err.Error()).Write(w)
		return
	}

	txs, err := s.store.ListPeriod(r.Context(), params.Year, params.Month)
	if err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "List transactions failed",
			log.FieldError, err,
			log.FieldOperation, log.OpList,
			log.FieldYear, params.Year,
			log.FieldMonth, params.Month)
		InternalServerError("could not list transactions").Write(w)
		return
	}

	items := make([]transactionJSON, len(txs))
	for i, tx := range txs {
		items[i] = toTransactionJSON(tx)
	}
	NewJSONResponse().Body(map[string]any{
		"period":       periodJSON{Year: params.Year, Month: params.Month},
		"count":        len(items),
		"transactions": items,
	}).Write(w)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	getter, ok := s.store.(transactionGetter)
	if !ok {
		NotFoundError("transaction lookup is not supported by this backend").Write(w)
		return
	}

	id := r.PathValue("id")
	stored, err := getter.GetTransaction(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		NotFoundError("transaction not found").Write(w)
		return
	}
	if err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Get transaction failed",
			log.FieldError, err, log.FieldTransactionID, id, log.FieldOperation, log.OpRead)
		InternalServerError("could not load transaction").Write(w)
		return
	}

	body := map[string]any{
		"transaction": toTransactionJSON(stored.Transaction),
		"sync_status": stored.SyncStatus,
		"version":     stored.Version,
		"created_at":  stored.CreatedAt.Format(time.RFC3339),
	}
	if stored.SyncedAt != nil {
		body["synced_at"] = stored.SyncedAt.Format(time.RFC3339)
	}
	NewJSONResponse().Body(body).Write(w)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	parser := NewRequestBodyParser(r)
	tx, err := parser.Transaction(s.overview.Now())
	if err != nil {
		writeInputError(w, err)
		return
	}

	ref, err := s.store.Append(ctx, tx)
	if err != nil {
		if isValidationError(err) {
			writeInputError(w, err)
			return
		}
		log.FromContext(ctx).ErrorContext(ctx, "Transaction append failed",
			log.FieldError, err,
			log.FieldOperation, log.OpCreate,
			log.FieldDescription, tx.Description,
			log.FieldAmountCents, tx.Amount.Cents)
		InternalServerError("could not save transaction").Write(w)
		return
	}

	tx.ID = ref
	log.NewStructuredLogger(log.FromContext(ctx)).LogTransactionCreated(ctx,
		tx.ID, tx.Description, tx.Amount.Cents, tx.Category, tx.Subcategory, tx.Installment)

	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/transactions/"+ref).
		Body(map[string]any{"id": ref, "transaction": toTransactionJSON(tx)}).
		Write(w)
}

// handleImportTransactions accepts a CSV body in the transactions.csv layout.
// The batch is all-or-nothing: any bad row rejects the whole request.
func (s *Server) handleImportTransactions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	imp, ok := s.store.(importer)
	if !ok {
		NotFoundError("import is not supported by this backend").Write(w)
		return
	}

	txs, rowErrs, err := memory.ReadCSV(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			ErrorResponse(http.StatusRequestEntityTooLarge,
				fmt.Sprintf("import body exceeds %d bytes", tooLarge.Limit)).Write(w)
			return
		}
		log.FromContext(ctx).WarnContext(ctx, "Import body unreadable",
			log.FieldError, err, log.FieldOperation, log.OpImport)
		BadRequestError("could not read request body").Write(w)
		return
	}
	if len(rowErrs) > 0 {
		msgs := make([]string, len(rowErrs))
		for i, e := range rowErrs {
			msgs[i] = e.Error()
		}
		NewJSONResponse().Status(http.StatusUnprocessableEntity).Body(map[string]any{
			"error": "invalid rows",
			"rows":  msgs,
		}).Write(w)
		return
	}
	if len(txs) == 0 {
		UnprocessableEntityError("no transactions in body").Write(w)
		return
	}

	ids, err := imp.Import(ctx, txs)
	if err != nil {
		if isValidationError(err) {
			writeInputError(w, err)
			return
		}
		log.FromContext(ctx).ErrorContext(ctx, "Import failed",
			log.FieldError, err, log.FieldOperation, log.OpImport, log.FieldCount, len(txs))
		InternalServerError("could not import transactions").Write(w)
		return
	}

	log.FromContext(ctx).InfoContext(ctx, "Transactions imported",
		log.FieldOperation, log.OpImport, log.FieldCount, len(ids))
	NewJSONResponse().Status(http.StatusCreated).Body(map[string]any{
		"count": len(ids),
		"ids":   ids,
	}).Write(w)
}

func isValidationError(err error) bool {
	for _, target := range []error{
		core.ErrInvalidMonth, core.ErrInvalidYear, core.ErrInvalidAmount,
		core.ErrEmptyDescription, core.ErrDescriptionTooLong, core.ErrEmptyCategory,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// writeInputError maps malformed bodies to 400 and invalid values to 422.
func writeInputError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrBadRequest):
		BadRequestError(err.Error()).Write(w)
	case isValidationError(err):
		UnprocessableEntityError(strings.TrimSpace(err.Error())).Write(w)
	default:
		BadRequestError("invalid request body").Write(w)
	}
}
