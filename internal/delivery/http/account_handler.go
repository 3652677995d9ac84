package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"strategy-backend/internal/domain"
	"strategy-backend/internal/usecase"
)

// AccountHandler handles trading account and balance endpoints
type AccountHandler struct {
	accounts domain.AccountRepository
	guard    *usecase.PlanGuard
	balances *usecase.BalanceService
}

func NewAccountHandler(accounts domain.AccountRepository, guard *usecase.PlanGuard, balances *usecase.BalanceService) *AccountHandler {
	return &AccountHandler{accounts: accounts, guard: guard, balances: balances}
}

// HandleList handles GET /api/accounts
func (h *AccountHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	accounts, err := h.accounts.ListByUser(r.Context(), UserID(r))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if accounts == nil {
		accounts = make([]*domain.TradingAccount, 0)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(accounts)
}

type createAccountRequest struct {
	Broker         string          `json:"broker"`
	Label          string          `json:"label"`
	InitialBalance decimal.Decimal `json:"initialBalance"`
}

type createAccountResponse struct {
	Account  *domain.TradingAccount   `json:"account,omitempty"`
	Decision *domain.CreationDecision `json:"decision,omitempty"`
}

// HandleCreate handles POST /api/accounts
func (h *AccountHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req createAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Broker == "" {
		http.Error(w, "Broker is required", http.StatusBadRequest)
		return
	}

	userID := UserID(r)
	existing, err := h.accounts.ListByUser(r.Context(), userID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	decision, err := h.guard.CanCreateAccount(r.Context(), userID, len(existing))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if !decision.CanCreate {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(createAccountResponse{Decision: decision})
		return
	}

	account := &domain.TradingAccount{
		ID:             uuid.NewString(),
		UserID:         userID,
		Broker:         req.Broker,
		Label:          req.Label,
		InitialBalance: req.InitialBalance,
		CreatedAt:      time.Now(),
	}
	if err := h.accounts.Create(r.Context(), account); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(createAccountResponse{Account: account, Decision: decision})
}

// HandleDelete handles DELETE /api/accounts/delete?id={id}
func (h *AccountHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "Missing id parameter", http.StatusBadRequest)
		return
	}

	account, err := h.accounts.GetByID(r.Context(), id)
	if err != nil || account.UserID != UserID(r) {
		http.Error(w, "Account not found", http.StatusNotFound)
		return
	}

	if err := h.accounts.Delete(r.Context(), id); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"deleted"}`))
}

// HandleBalance handles GET /api/balance?accountId={id}
func (h *AccountHandler) HandleBalance(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	accountID := r.URL.Query().Get("accountId")
	if accountID == "" {
		http.Error(w, "Missing accountId parameter", http.StatusBadRequest)
		return
	}

	result, err := h.balances.Balance(r.Context(), UserID(r), accountID)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			http.Error(w, "Account not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}
