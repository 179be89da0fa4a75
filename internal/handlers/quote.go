package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/mmamrila/aiquoting-sub001/internal/httpx"
	"github.com/mmamrila/aiquoting-sub001/internal/logging"
	"github.com/mmamrila/aiquoting-sub001/internal/models"
	"github.com/mmamrila/aiquoting-sub001/internal/safety"
	"github.com/mmamrila/aiquoting-sub001/internal/services"
	"github.com/mmamrila/aiquoting-sub001/internal/validation"
	"go.uber.org/zap"
)

// QuoteHandler serves quote assembly, totals, validation and outcomes.
type QuoteHandler struct {
	Quotes    *services.QuoteService
	TotalsSvc *services.TotalsService
	Outcomes  *services.OutcomeService
	Validator services.QuoteValidator
	Log       *zap.Logger
}

func NewQuoteHandler(quotes *services.QuoteService, totals *services.TotalsService, outcomes *services.OutcomeService,
	validator services.QuoteValidator, log *zap.Logger) *QuoteHandler {
	return &QuoteHandler{Quotes: quotes, TotalsSvc: totals, Outcomes: outcomes, Validator: validator, Log: logging.OrNop(log)}
}

type createQuoteRequest struct {
	Recommendation services.Recommendation `json:"recommendation"`
	Client         services.ClientInfo     `json:"client"`
	SessionID      string                  `json:"session_id,omitempty"`
}

type systemQuoteRequest struct {
	SystemType string `json:"system_type" validate:"required"`
	UserCount  int    `json:"user_count" validate:"gte=1"`
	Industry   string `json:"industry,omitempty"`
	SessionID  string `json:"session_id,omitempty"`
}

type quoteResponse struct {
	Quote      *models.Quote `json:"quote"`
	Validation safety.Result `json:"validation"`
}

// decode reads a JSON body and checks its validate tags. It writes the error
// response and returns false on failure.
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := httpx.DecodeJSON(r, dst); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return false
	}
	if v := validation.Struct(dst); !v.Empty() {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", v)
		return false
	}
	return true
}

// Create: POST /quotes
func (h *QuoteHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createQuoteRequest
	if !decode(w, r, &req) {
		return
	}
	h.respond(r.Context(), w, func(ctx context.Context) (*models.Quote, safety.Result, error) {
		return h.Quotes.CreateFromRecommendation(ctx, req.Recommendation, req.Client, req.SessionID)
	})
}

// CreateSystem: POST /quotes/system
func (h *QuoteHandler) CreateSystem(w http.ResponseWriter, r *http.Request) {
	var req systemQuoteRequest
	if !decode(w, r, &req) {
		return
	}
	h.respond(r.Context(), w, func(ctx context.Context) (*models.Quote, safety.Result, error) {
		return h.Quotes.CreateSystem(ctx, req.SystemType, req.UserCount, req.Industry, req.SessionID)
	})
}

// CreateMultiSite: POST /quotes/multisite
func (h *QuoteHandler) CreateMultiSite(w http.ResponseWriter, r *http.Request) {
	var req services.MultiSiteRequirements
	if !decode(w, r, &req) {
		return
	}
	h.respond(r.Context(), w, func(ctx context.Context) (*models.Quote, safety.Result, error) {
		return h.Quotes.CreateMultiSite(ctx, req)
	})
}

func (h *QuoteHandler) respond(ctx context.Context, w http.ResponseWriter, create func(context.Context) (*models.Quote, safety.Result, error)) {
	q, result, err := create(ctx)
	var blocked *services.BlockedError
	switch {
	case err == nil:
		httpx.JSON(w, http.StatusCreated, quoteResponse{Quote: q, Validation: result})
	case errors.As(err, &blocked):
		httpx.JSONError(w, http.StatusUnprocessableEntity, "quote_blocked", blocked.Result)
	case errors.Is(err, services.ErrInvalidRecommendation):
		httpx.JSONError(w, http.StatusBadRequest, "invalid_recommendation", err.Error())
	default:
		h.Log.Error("create quote", zap.Error(err))
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_create_quote", nil)
	}
}

// Get: GET /quotes/{id}
func (h *QuoteHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	q, err := h.Quotes.Get(r.Context(), id)
	if errors.Is(err, services.ErrQuoteNotFound) {
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
		return
	}
	if err != nil {
		h.Log.Error("get quote", zap.Uint("quote_id", id), zap.Error(err))
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_load_quote", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, q)
}

// Totals: POST /quotes/{id}/totals
func (h *QuoteHandler) Totals(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	b, err := h.TotalsSvc.Calculate(r.Context(), id)
	if errors.Is(err, services.ErrQuoteNotFound) {
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
		return
	}
	if err != nil {
		h.Log.Error("calculate totals", zap.Uint("quote_id", id), zap.Error(err))
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_calculate_totals", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, b)
}

// Validate: POST /quotes/validate
func (h *QuoteHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var req safety.QuoteData
	if !decode(w, r, &req) {
		return
	}
	httpx.JSON(w, http.StatusOK, h.Validator.Validate(r.Context(), req))
}

// Outcome: POST /quotes/{id}/outcome
func (h *QuoteHandler) Outcome(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req services.OutcomeReport
	if !decode(w, r, &req) {
		return
	}
	out, err := h.Outcomes.Record(r.Context(), id, req)
	switch {
	case err == nil:
		httpx.JSON(w, http.StatusCreated, out)
	case errors.Is(err, services.ErrQuoteNotFound):
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
	case errors.Is(err, services.ErrInvalidOutcome):
		httpx.JSONError(w, http.StatusBadRequest, "invalid_outcome", err.Error())
	case errors.Is(err, services.ErrQuoteClosed):
		httpx.JSONError(w, http.StatusConflict, "quote_closed", nil)
	default:
		h.Log.Error("record outcome", zap.Uint("quote_id", id), zap.Error(err))
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_record_outcome", nil)
	}
}
