// Package handlers implements the statement REST endpoints.
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/ledgerline/statements/internal/api/middleware"
	"github.com/ledgerline/statements/internal/domain"
	"github.com/ledgerline/statements/internal/statement"
	"github.com/ledgerline/statements/internal/store"
)

// maxUploadBytes caps statement file uploads.
const maxUploadBytes = 20 << 20

// StatementsHandler handles statement lifecycle endpoints.
type StatementsHandler struct {
	svc *statement.Service
	log zerolog.Logger
}

func NewStatementsHandler(svc *statement.Service, log zerolog.Logger) *StatementsHandler {
	return &StatementsHandler{svc: svc, log: log}
}

// Upload handles POST /api/statements (multipart, field "file").
func (h *StatementsHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Missing file field")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Failed to read file")
		return
	}

	st, err := h.svc.Upload(r.Context(), middleware.UserID(r), header.Filename, data)
	if err != nil {
		h.writeServiceError(w, r, err, "Failed to upload statement")
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, st)
}

// List handles GET /api/statements.
func (h *StatementsHandler) List(w http.ResponseWriter, r *http.Request) {
	statements, err := h.svc.List(r.Context(), middleware.UserID(r))
	if err != nil {
		h.writeServiceError(w, r, err, "Failed to list statements")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"statements": statements,
		"count":      len(statements),
	})
}

// Get handles GET /api/statements/{id}.
func (h *StatementsHandler) Get(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.Get(r.Context(), middleware.UserID(r), mux.Vars(r)["id"])
	if err != nil {
		h.writeServiceError(w, r, err, "Failed to get statement")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, st)
}

// Status handles GET /api/statements/{id}/status, a lightweight poll target
// while extraction runs.
func (h *StatementsHandler) Status(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.Get(r.Context(), middleware.UserID(r), mux.Vars(r)["id"])
	if err != nil {
		h.writeServiceError(w, r, err, "Failed to get statement")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"id":               st.ID,
		"status":           st.Status,
		"transactionCount": st.TransactionCount,
		"errorMessage":     st.ErrorMessage,
	})
}

// UpdateTransactions handles PATCH /api/statements/{id}/transactions.
func (h *StatementsHandler) UpdateTransactions(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Transactions []statement.TransactionEdit `json:"transactions"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(req.Transactions) == 0 {
		middleware.WriteError(w, http.StatusBadRequest, "No transaction edits provided")
		return
	}

	st, err := h.svc.UpdateExtracted(r.Context(), middleware.UserID(r), mux.Vars(r)["id"], req.Transactions)
	if err != nil {
		h.writeServiceError(w, r, err, "Failed to update transactions")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, st)
}

// Remap handles POST /api/statements/{id}/remap.
func (h *StatementsHandler) Remap(w http.ResponseWriter, r *http.Request) {
	var mapping domain.CSVColumnMapping
	if err := json.NewDecoder(r.Body).Decode(&mapping); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	st, err := h.svc.RemapColumns(r.Context(), middleware.UserID(r), mux.Vars(r)["id"], mapping)
	if err != nil {
		h.writeServiceError(w, r, err, "Failed to remap columns")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, st)
}

// Matches handles GET /api/statements/{id}/transactions/{txId}/matches.
func (h *StatementsHandler) Matches(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	suggestions, err := h.svc.SuggestMatches(r.Context(), middleware.UserID(r), vars["id"], vars["txId"])
	if err != nil {
		h.writeServiceError(w, r, err, "Failed to suggest matches")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"suggestions": suggestions,
		"count":       len(suggestions),
	})
}

// Import handles POST /api/statements/{id}/import.
func (h *StatementsHandler) Import(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TransactionIDs    []string `json:"transactionIds"`
		IncludeDuplicates bool     `json:"includeDuplicates"`
		Category          string   `json:"category"`
		Project           string   `json:"project"`
	}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	result, err := h.svc.Import(r.Context(), middleware.UserID(r), mux.Vars(r)["id"],
		req.TransactionIDs, statement.ImportOptions{
			IncludeDuplicates: req.IncludeDuplicates,
			DefaultCategory:   req.Category,
			DefaultProject:    req.Project,
		})
	if err != nil {
		h.writeServiceError(w, r, err, "Failed to import statement")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, result)
}

// Delete handles DELETE /api/statements/{id}.
func (h *StatementsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), middleware.UserID(r), mux.Vars(r)["id"]); err != nil {
		h.writeServiceError(w, r, err, "Failed to delete statement")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// writeServiceError maps service errors onto HTTP status codes.
func (h *StatementsHandler) writeServiceError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	var parseErr *domain.ParseError
	var importErr *domain.ImportError

	switch {
	case errors.Is(err, store.ErrNotFound):
		middleware.WriteError(w, http.StatusNotFound, "Statement not found")
	case errors.Is(err, statement.ErrInvalidState):
		middleware.WriteError(w, http.StatusConflict, err.Error())
	case errors.As(err, &parseErr):
		middleware.WriteError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &importErr):
		h.log.Error().Err(err).Str("path", r.URL.Path).Msg("Import failed")
		middleware.WriteError(w, http.StatusInternalServerError, err.Error())
	default:
		h.log.Error().Err(err).Str("path", r.URL.Path).Msg(fallback)
		middleware.WriteError(w, http.StatusInternalServerError, fallback)
	}
}

// Health handles GET /health.
func Health(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
