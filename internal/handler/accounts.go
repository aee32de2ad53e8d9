package handler

import (
	"context"
	"net/http"

	"github.com/mmeshcher/restaurant-marketplace/internal/model"
	"github.com/mmeshcher/restaurant-marketplace/internal/service"
)

type credentialsRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Name     string `json:"name,omitempty"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type hireRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Name     string `json:"name,omitempty"`
	Role     string `json:"role" validate:"oneof=chef delivery manager"`
}

type amountRequest struct {
	Amount int64 `json:"amount" validate:"gt=0"`
}

type tokenResponse struct {
	Token   string          `json:"token"`
	Account accountResponse `json:"account"`
}

func (h *Handler) respondWithToken(w http.ResponseWriter, r *http.Request, status int, a *model.Account) {
	token, err := h.authMiddleware.IssueToken(a.ID, a.Role)
	if err != nil {
		h.writeError(w, r, "issue token", err)
		return
	}
	h.authMiddleware.SetAuthCookie(w, token)
	writeJSON(w, status, tokenResponse{Token: token, Account: toAccount(a)})
}

// Register обрабатывает регистрацию нового покупателя.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, "register", err)
		return
	}

	a, err := h.service.Register(r.Context(), service.AccountInput{Email: req.Email, Password: req.Password, Name: req.Name})
	if err != nil {
		h.writeError(w, r, "register", err)
		return
	}
	h.respondWithToken(w, r, http.StatusCreated, a)
}

// Login выполняет аутентификацию и выдаёт токен.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, "login", err)
		return
	}

	a, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeError(w, r, "login", err)
		return
	}
	h.respondWithToken(w, r, http.StatusOK, a)
}

// Me возвращает учётную запись текущего пользователя.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	id, ok := h.currentID(w, r)
	if !ok {
		return
	}
	a, err := h.service.GetAccount(r.Context(), id)
	if err != nil {
		h.writeError(w, r, "get account", err)
		return
	}
	writeJSON(w, http.StatusOK, toAccount(a))
}

// Deposit пополняет баланс текущего пользователя.
func (h *Handler) Deposit(w http.ResponseWriter, r *http.Request) {
	h.post(w, r, "deposit", h.service.Deposit)
}

// Withdraw списывает средства с баланса текущего пользователя.
func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request) {
	h.post(w, r, "withdraw", h.service.Withdraw)
}

func (h *Handler) post(w http.ResponseWriter, r *http.Request, op string, fn func(ctx context.Context, id, amount int64) (*model.Transaction, error)) {
	id, ok := h.currentID(w, r)
	if !ok {
		return
	}
	var req amountRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, op, err)
		return
	}

	t, err := fn(r.Context(), id, req.Amount)
	if err != nil {
		h.writeError(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransaction(*t))
}

// GetTransactions возвращает журнал операций текущего пользователя.
func (h *Handler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	id, ok := h.currentID(w, r)
	if !ok {
		return
	}
	txs, err := h.service.ListTransactions(r.Context(), id)
	if err != nil {
		h.writeError(w, r, "list transactions", err)
		return
	}
	if len(txs) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := make([]transactionResponse, 0, len(txs))
	for _, t := range txs {
		resp = append(resp, toTransaction(t))
	}
	writeJSON(w, http.StatusOK, resp)
}

// Hire создаёт учётную запись сотрудника или менеджера.
func (h *Handler) Hire(w http.ResponseWriter, r *http.Request) {
	managerID, ok := h.currentID(w, r)
	if !ok {
		return
	}
	var req hireRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, "hire", err)
		return
	}

	a, err := h.service.Hire(r.Context(), managerID, service.AccountInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
		Role:     model.Role(req.Role),
	})
	if err != nil {
		h.writeError(w, r, "hire", err)
		return
	}
	writeJSON(w, http.StatusCreated, toAccount(a))
}
