package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"strategy-backend/internal/domain"
	"strategy-backend/internal/usecase"
)

// StrategyHandler handles strategy screen endpoints
type StrategyHandler struct {
	strategies *usecase.StrategyService
}

func NewStrategyHandler(strategies *usecase.StrategyService) *StrategyHandler {
	return &StrategyHandler{strategies: strategies}
}

// HandleList handles GET /api/strategies?force=true
func (h *StrategyHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	force := r.URL.Query().Get("force") == "true"
	view, err := h.strategies.LoadView(r.Context(), UserID(r), force)
	if err != nil {
		writeStrategyError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(view)
}

// HandleGet handles GET /api/strategies/get?id={id}
func (h *StrategyHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "Missing id parameter", http.StatusBadRequest)
		return
	}

	item, err := h.strategies.GetStrategy(r.Context(), UserID(r), id)
	if err != nil {
		writeStrategyError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(item)
}

type createStrategyRequest struct {
	Name          string                        `json:"name"`
	Configuration *domain.StrategyConfiguration `json:"configuration"`
}

// HandleCreate handles POST /api/strategies
func (h *StrategyHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req createStrategyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		http.Error(w, "Name is required", http.StatusBadRequest)
		return
	}
	if req.Configuration == nil {
		req.Configuration = &domain.StrategyConfiguration{}
	}

	result, err := h.strategies.Create(r.Context(), UserID(r), req.Name, req.Configuration)
	if err != nil {
		writeStrategyError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// HandleActivate handles POST /api/strategies/activate?id={id}
func (h *StrategyHandler) HandleActivate(w http.ResponseWriter, r *http.Request) {
	h.mutateByID(w, r, h.strategies.Activate)
}

// HandleDelete handles POST /api/strategies/delete?id={id}
func (h *StrategyHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	h.mutateByID(w, r, h.strategies.Delete)
}

// HandleCopy handles POST /api/strategies/copy?id={id}
func (h *StrategyHandler) HandleCopy(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "Missing id parameter", http.StatusBadRequest)
		return
	}

	result, err := h.strategies.Copy(r.Context(), UserID(r), id)
	if err != nil {
		writeStrategyError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

type renameStrategyRequest struct {
	Name string `json:"name"`
}

// HandleRename handles POST /api/strategies/rename?id={id}
func (h *StrategyHandler) HandleRename(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "Missing id parameter", http.StatusBadRequest)
		return
	}

	var req renameStrategyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		http.Error(w, "Name is required", http.StatusBadRequest)
		return
	}

	view, err := h.strategies.Rename(r.Context(), UserID(r), id, req.Name)
	if err != nil {
		writeStrategyError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(view)
}

// HandleUpdateConfiguration handles PUT /api/strategies/configuration
func (h *StrategyHandler) HandleUpdateConfiguration(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var config domain.StrategyConfiguration
	if err := json.NewDecoder(r.Body).Decode(&config); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if config.ID == "" {
		http.Error(w, "Configuration id is required", http.StatusBadRequest)
		return
	}

	view, err := h.strategies.UpdateConfiguration(r.Context(), UserID(r), &config)
	if err != nil {
		writeStrategyError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(view)
}

// mutateByID is shared by the activate and delete endpoints, which differ
// only in the service call.
func (h *StrategyHandler) mutateByID(
	w http.ResponseWriter,
	r *http.Request,
	mutate func(ctx context.Context, userID, id string) (*usecase.StrategyView, error),
) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "Missing id parameter", http.StatusBadRequest)
		return
	}

	view, err := mutate(r.Context(), UserID(r), id)
	if err != nil {
		writeStrategyError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(view)
}

func writeStrategyError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrStrategyNotFound):
		http.Error(w, "Strategy not found", http.StatusNotFound)
	case errors.Is(err, domain.ErrRateLimited):
		http.Error(w, "The strategy store is throttling requests, try again shortly", http.StatusTooManyRequests)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
