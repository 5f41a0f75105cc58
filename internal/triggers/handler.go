package triggers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/chatcommerce/pkg/logging"
)

type repository interface {
	List(ctx context.Context, ownerID string) ([]Trigger, error)
	Replace(ctx context.Context, ownerID string, set []Trigger) ([]Trigger, error)
}

// Handler serves the admin trigger configuration endpoints.
type Handler struct {
	repo   repository
	logger *logging.Logger
}

func NewHandler(repo repository, logger *logging.Logger) *Handler {
	if repo == nil {
		panic("triggers: repository required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{repo: repo, logger: logger}
}

type putRequest struct {
	Triggers []Trigger `json:"triggers"`
}

// GET /admin/businesses/{ownerID}/triggers
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ownerID := strings.TrimSpace(chi.URLParam(r, "ownerID"))
	if ownerID == "" {
		http.Error(w, "missing owner id", http.StatusBadRequest)
		return
	}
	set, err := h.repo.List(r.Context(), ownerID)
	if err != nil {
		h.logger.Error("failed to list triggers", "error", err, "owner_id", ownerID)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if set == nil {
		set = []Trigger{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"triggers": set})
}

// PUT /admin/businesses/{ownerID}/triggers
func (h *Handler) Put(w http.ResponseWriter, r *http.Request) {
	ownerID := strings.TrimSpace(chi.URLParam(r, "ownerID"))
	if ownerID == "" {
		http.Error(w, "missing owner id", http.StatusBadRequest)
		return
	}
	var req putRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	result := Validate(req.Triggers)
	if !result.OK {
		h.logger.Info("trigger configuration rejected", "owner_id", ownerID, "conflicts", len(result.Conflicts))
		writeJSON(w, http.StatusConflict, result)
		return
	}

	saved, err := h.repo.Replace(r.Context(), ownerID, req.Triggers)
	if err != nil {
		h.logger.Error("failed to save triggers", "error", err, "owner_id", ownerID)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "triggers": saved})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
