package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/mmamrila/aiquoting-sub001/internal/catalog"
	"github.com/mmamrila/aiquoting-sub001/internal/httpx"
	"github.com/mmamrila/aiquoting-sub001/internal/logging"
	"go.uber.org/zap"
)

// PartHandler exposes the parts catalog read-only.
type PartHandler struct {
	Catalog *catalog.Catalog
	Log     *zap.Logger
}

func NewPartHandler(cat *catalog.Catalog, log *zap.Logger) *PartHandler {
	return &PartHandler{Catalog: cat, Log: logging.OrNop(log)}
}

// List: GET /parts
func (h *PartHandler) List(w http.ResponseWriter, r *http.Request) {
	parts, err := h.Catalog.List(r.Context())
	if err != nil {
		h.Log.Error("list parts", zap.Error(err))
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_list_parts", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": parts, "total": len(parts)})
}

// Get: GET /parts/{id}
func (h *PartHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	part, err := h.Catalog.Get(r.Context(), id)
	if errors.Is(err, catalog.ErrPartNotFound) {
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
		return
	}
	if err != nil {
		h.Log.Error("get part", zap.Uint("part_id", id), zap.Error(err))
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_load_part", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, part)
}

// pathID parses the {id} path value, writing a 400 when it is not a
// positive integer.
func pathID(w http.ResponseWriter, r *http.Request) (uint, bool) {
	n, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil || n == 0 {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return 0, false
	}
	return uint(n), true
}
