/*
handlers.go - HTTP API handlers for the intent engine

PURPOSE:
  Exposes the resolution pipeline and the persistence engine over REST.
  Handles HTTP request/response, JSON serialization, and delegates all
  domain decisions to the pipeline and the engine.

ENDPOINTS:
  Messages:
    POST   /api/messages                     Resolve (and maybe persist) a message

  Users:
    GET    /api/users/{id}/transactions      Stored transactions, display-id order

REQUEST FLOW:
  1. Parse and validate HTTP input
  2. Resolve the message (rules first, model fallback when unsure)
  3. If the intent is a transaction, persist it
  4. Serialize the intent, enhancements, and diagnostics

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Invalid input (bad JSON, missing user id, bad timestamp)
  - 409: Display-id conflict budget exhausted (safe to retry)
  - 500: Fatal persistence or store errors

  A 409 body carries only the user-safe conflict message, never raw
  store error text.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/warp/intent-engine/classify"
	"github.com/warp/intent-engine/intent"
	"github.com/warp/intent-engine/persist"
	"github.com/warp/intent-engine/pipeline"
	"github.com/warp/intent-engine/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Resolver *pipeline.Resolver
	Engine   *persist.Engine
	Store    *sqlite.Store
	Log      zerolog.Logger
}

// NewHandler creates a new handler.
func NewHandler(resolver *pipeline.Resolver, engine *persist.Engine, store *sqlite.Store, log zerolog.Logger) *Handler {
	return &Handler{Resolver: resolver, Engine: engine, Store: store, Log: log}
}

// =============================================================================
// MESSAGE HANDLERS
// =============================================================================

// HandleMessage resolves one natural-language message and, when it is a
// transaction, persists it.
// POST /api/messages
func (h *Handler) HandleMessage(w http.ResponseWriter, r *http.Request) {
	var req MessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.UserID <= 0 {
		writeError(w, http.StatusBadRequest, "userId is required", nil)
		return
	}

	ref := time.Now().UTC()
	if strings.TrimSpace(req.ReferenceTimestamp) != "" {
		parsed, err := time.Parse(time.RFC3339, req.ReferenceTimestamp)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid referenceTimestamp, expected RFC3339", err)
			return
		}
		ref = parsed
	}

	result := h.Resolver.Resolve(r.Context(), req.UserID, req.Text, ref)

	encoded, err := classify.EncodeIntent(result.Intent)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to encode intent", err)
		return
	}

	resp := MessageResponse{
		Intent:       encoded,
		Enhancements: result.Enhancements,
		Diagnostics: DiagnosticsDTO{
			RulesFired: result.Diagnostics.RulesFired,
			UsedModel:  result.Diagnostics.UsedModel,
			CacheHit:   result.Diagnostics.CacheHit,
		},
	}

	if result.Intent.Kind == intent.KindTransaction {
		saved, err := h.saveTransaction(r, req, result)
		if err != nil {
			var conflict *persist.ConflictError
			if errors.As(err, &conflict) {
				writeError(w, http.StatusConflict, persist.UserSafeConflictMessage, nil)
				return
			}
			writeError(w, http.StatusInternalServerError, "Failed to save transaction", err)
			return
		}
		resp.Saved = saved
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) saveTransaction(r *http.Request, req MessageRequest, result pipeline.Result) (*SavedTransactionDTO, error) {
	ent := result.Intent.Transaction.Entities

	amount := decimal.Zero
	if ent.Amount.Valid {
		amount = ent.Amount.Decimal
	}

	saveReq := persist.SaveRequest{
		User: persist.UserProfile{
			ID:        req.UserID,
			FirstName: req.FirstName,
			Username:  req.Username,
		},
		Amount:          amount,
		Currency:        ent.Currency,
		Merchant:        ent.Merchant,
		Category:        ent.Category,
		Description:     ent.Description,
		TransactionDate: ent.Date,
	}

	saved, err := h.Engine.Save(r.Context(), saveReq)
	if err != nil {
		return nil, err
	}
	return &SavedTransactionDTO{
		RecordID:  saved.RecordID,
		DisplayID: saved.DisplayID,
		Attempts:  saved.Attempts,
	}, nil
}

// =============================================================================
// USER HANDLERS
// =============================================================================

// ListTransactions returns a user's stored transactions.
// GET /api/users/{id}/transactions
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || userID <= 0 {
		writeError(w, http.StatusBadRequest, "Invalid user id", nil)
		return
	}

	txs, err := h.Store.ListTransactions(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list transactions", err)
		return
	}

	dtos := make([]TransactionDTO, len(txs))
	for i, tx := range txs {
		dtos[i] = TransactionDTO{
			ID:          tx.ID,
			DisplayID:   tx.DisplayID,
			Amount:      tx.Amount.String(),
			Currency:    tx.Currency,
			Merchant:    tx.Merchant,
			Category:    tx.Category,
			Description: tx.Description,
			Date:        tx.TransactionDate.Format(time.RFC3339),
			CreatedAt:   tx.CreatedAt.Format(time.RFC3339),
		}
	}

	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
