package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"strategy-backend/internal/domain"
	"strategy-backend/internal/usecase"
)

// PlanHandler handles plan limitation and downgrade endpoints
type PlanHandler struct {
	guard    *usecase.PlanGuard
	accounts domain.AccountRepository
	store    domain.StrategyStore
}

func NewPlanHandler(guard *usecase.PlanGuard, accounts domain.AccountRepository, store domain.StrategyStore) *PlanHandler {
	return &PlanHandler{guard: guard, accounts: accounts, store: store}
}

// HandleLimitations handles GET /api/limitations
func (h *PlanHandler) HandleLimitations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID := UserID(r)
	strategyCount, _, err := h.resourceCounts(r, userID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	lim, err := h.guard.CheckUserLimitations(r.Context(), userID, strategyCount)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(lim)
}

type downgradeCheckRequest struct {
	TargetPlan string `json:"targetPlan"`
}

// HandleDowngradeCheck handles POST /api/plan/downgrade-check
func (h *PlanHandler) HandleDowngradeCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req downgradeCheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.TargetPlan == "" {
		http.Error(w, "Target plan is required", http.StatusBadRequest)
		return
	}

	userID := UserID(r)
	strategyCount, accountCount, err := h.resourceCounts(r, userID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	check, err := h.guard.ValidateDowngrade(r.Context(), req.TargetPlan, accountCount, strategyCount)
	if err != nil {
		if errors.Is(err, domain.ErrPlanNotFound) {
			http.Error(w, "Unknown plan", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(check)
}

// resourceCounts counts live strategies and linked accounts from the
// authoritative stores, not the session cache.
func (h *PlanHandler) resourceCounts(r *http.Request, userID string) (strategies, accounts int, err error) {
	overviews, err := h.store.ListOverviews(r.Context(), userID)
	if err != nil {
		return 0, 0, err
	}
	for _, o := range overviews {
		if !o.Deleted {
			strategies++
		}
	}

	linked, err := h.accounts.ListByUser(r.Context(), userID)
	if err != nil {
		return 0, 0, err
	}
	return strategies, len(linked), nil
}
