package http

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"tally/internal/core"
	applog "tally/internal/log"
)

type transactionRequest struct {
	Title    string     `json:"title"`
	Amount   core.Money `json:"amount"`
	Type     string     `json:"type"`
	Category string     `json:"category"`
	Date     string     `json:"date"`
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	userID := userIDFrom(r.Context())

	txs, err := s.txs.List(r.Context(), userID)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Transaction list failed",
			applog.FieldUserID, userID, applog.FieldError, err)
		s.writeServerError(w, err)
		return
	}
	if txs == nil {
		txs = []core.Transaction{}
	}
	writeJSON(w, http.StatusOK, txs)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	userID := userIDFrom(r.Context())

	var req transactionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	tx := core.Transaction{
		UserID:   userID,
		Title:    sanitizeInput(req.Title),
		Amount:   req.Amount,
		Type:     strings.TrimSpace(req.Type),
		Category: strings.TrimSpace(req.Category),
	}

	if req.Date != "" {
		date, err := parseDate(req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid date format")
			return
		}
		tx.Date = date
	}

	if err := tx.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := s.txs.Create(r.Context(), tx)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Transaction creation failed",
			applog.FieldUserID, userID, applog.FieldError, err)
		writeError(w, http.StatusBadRequest, "Could not save transaction")
		return
	}

	s.logger.InfoContext(r.Context(), "Transaction created",
		applog.NewFields().WithTransaction(created.ID, created.Title, created.Amount.Cents, created.Category).ToSlice()...)
	writeJSON(w, http.StatusCreated, created)
}

// handleDeleteTransaction removes a transaction owned by the caller.
// Deleting an unknown or foreign ID is a silent no-op.
func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	userID := userIDFrom(r.Context())

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid transaction id")
		return
	}

	if err := s.txs.Delete(r.Context(), id, userID); err != nil {
		s.logger.ErrorContext(r.Context(), "Transaction deletion failed",
			applog.FieldTxID, id, applog.FieldUserID, userID, applog.FieldError, err)
		writeError(w, http.StatusBadRequest, "Could not delete transaction")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleExportCSV streams the caller's transactions as a CSV download.
// The type column is derived from the amount sign and the amount column
// carries the absolute value, so the sheet reads naturally.
func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	userID := userIDFrom(r.Context())

	txs, err := s.txs.List(r.Context(), userID)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "CSV export failed",
			applog.FieldUserID, userID, applog.FieldError, err)
		s.writeServerError(w, err)
		return
	}

	var b strings.Builder
	b.WriteString("Date,Title,Amount,Type,Category")
	for _, tx := range txs {
		b.WriteString("\n")
		b.WriteString(tx.Date.Format("1/2/2006"))
		b.WriteString(`,"`)
		b.WriteString(tx.Title)
		b.WriteString(`",`)
		b.WriteString(tx.Amount.Abs().String())
		b.WriteString(",")
		b.WriteString(tx.CSVType())
		b.WriteString(",")
		b.WriteString(tx.Category)
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename=transactions.csv`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(b.String()))
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	userID := userIDFrom(r.Context())

	totals, err := s.txs.Summary(r.Context(), userID)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Summary failed",
			applog.FieldUserID, userID, applog.FieldError, err)
		s.writeServerError(w, err)
		return
	}
	if totals == nil {
		totals = []core.CategoryTotal{}
	}
	writeJSON(w, http.StatusOK, totals)
}

// parseDate accepts a plain YYYY-MM-DD date or a full RFC 3339 timestamp.
func parseDate(dateStr string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", dateStr); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, dateStr)
}
