package handlers

import (
	"net/http"
	"strconv"

	"github.com/mmamrila/aiquoting-sub001/internal/httpx"
	"github.com/mmamrila/aiquoting-sub001/internal/learning"
	"github.com/mmamrila/aiquoting-sub001/internal/logging"
	"github.com/mmamrila/aiquoting-sub001/internal/models"
	"go.uber.org/zap"
)

// PatternHandler serves learned patterns and recommendation enrichment.
type PatternHandler struct {
	Engine *learning.Engine
	Log    *zap.Logger
}

func NewPatternHandler(engine *learning.Engine, log *zap.Logger) *PatternHandler {
	return &PatternHandler{Engine: engine, Log: logging.OrNop(log)}
}

// List: GET /patterns?industry=&user_count=&type=
func (h *PatternHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	industry := q.Get("industry")
	users := 0
	if v := q.Get("user_count"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			httpx.JSONError(w, http.StatusBadRequest, "validation_failed", map[string]string{"user_count": "invalid"})
			return
		}
		users = n
	}
	kind := q.Get("type")
	if kind != "" && kind != "all" && !models.PatternType(kind).Valid() {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", map[string]string{"type": "not_allowed"})
		return
	}

	patterns, err := h.Engine.RelevantPatterns(r.Context(), industry, users, kind)
	if err != nil {
		h.Log.Error("list patterns", zap.Error(err))
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_list_patterns", nil)
		return
	}
	if patterns == nil {
		patterns = []models.LearningPattern{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": patterns, "total": len(patterns)})
}

type enrichRequest struct {
	Recommendation learning.Recommendation `json:"recommendation"`
	Context        learning.Context        `json:"context"`
}

// Enrich: POST /recommendations/enrich
func (h *PatternHandler) Enrich(w http.ResponseWriter, r *http.Request) {
	var req enrichRequest
	if !decode(w, r, &req) {
		return
	}
	out, err := h.Engine.ApplyToRecommendation(r.Context(), req.Recommendation, req.Context)
	if err != nil {
		h.Log.Error("enrich recommendation", zap.Error(err))
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_enrich", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}
