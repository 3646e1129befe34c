package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"alice/internal/core"
	"alice/internal/log"
)

type transactionRequest struct {
	Date           string               `json:"date"`
	Description    string               `json:"description"`
	Amount         core.Money           `json:"amount"`
	Type           core.TransactionType `json:"type"`
	Category       string               `json:"category"`
	IsRecurring    bool                 `json:"isRecurring"`
	IsPlanned      bool                 `json:"isPlanned"`
	IsBillReminder bool                 `json:"isBillReminder"`
	DueDate        core.Date            `json:"dueDate"`
}

func (req transactionRequest) transaction(loc *time.Location) (core.Transaction, error) {
	date, err := ParseTransactionDate(req.Date, loc)
	if err != nil {
		return core.Transaction{}, err
	}
	return core.Transaction{
		Date:           date,
		Description:    sanitizeInput(req.Description),
		Amount:         req.Amount,
		Type:           req.Type,
		Category:       sanitizeInput(req.Category),
		IsRecurring:    req.IsRecurring,
		IsPlanned:      req.IsPlanned,
		IsBillReminder: req.IsBillReminder,
		DueDate:        req.DueDate,
	}, nil
}

type bulkDeleteRequest struct {
	IDs []string `json:"ids"`
}

type goalRequest struct {
	Name         string     `json:"name"`
	TargetAmount core.Money `json:"targetAmount"`
	TargetDate   core.Date  `json:"targetDate"`
}

type transactionsResponse struct {
	Month        string             `json:"month,omitempty"`
	Transactions []core.Transaction `json:"transactions"`
}

// handleListTransactions returns every transaction, newest first, or only
// those of the month given by the query.
func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	view, err := s.session.View(r.Context())
	if err != nil {
		ErrorFromDomain(r, err).Write(w)
		return
	}
	q := r.URL.Query()
	if q.Get("month") == "" && q.Get("year") == "" {
		txns := view.Ledger.Transactions
		if txns == nil {
			txns = []core.Transaction{}
		}
		NewJSONResponse().Body(transactionsResponse{Transactions: txns}).Write(w)
		return
	}

	m, err := ParseMonthParams(q, view.Selected)
	if err != nil {
		ErrorFromDomain(r, err).Write(w)
		return
	}
	txns := view.Ledger.InMonth(m, view.Location)
	if txns == nil {
		txns = []core.Transaction{}
	}
	NewJSONResponse().Body(transactionsResponse{Month: m.String(), Transactions: txns}).Write(w)
}

func (s *Server) handleAddTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		BadRequestError("invalid request body").Write(w)
		return
	}
	view, err := s.session.View(r.Context())
	if err != nil {
		ErrorFromDomain(r, err).Write(w)
		return
	}
	tx, err := req.transaction(view.Location)
	if err != nil {
		ErrorFromDomain(r, err).Write(w)
		return
	}

	created, err := s.session.AddTransaction(r.Context(), tx)
	if err != nil {
		ErrorFromDomain(r, err).Write(w)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Transaction created",
		log.NewFields().
			WithTransaction(created.ID, created.Amount.Cents, created.Category).
			WithOperation(log.OpCreate).
			ToSlice()...)
	NewJSONResponse().Status(http.StatusCreated).Body(created).Write(w)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		BadRequestError("invalid request body").Write(w)
		return
	}
	view, err := s.session.View(r.Context())
	if err != nil {
		ErrorFromDomain(r, err).Write(w)
		return
	}
	patch, err := req.transaction(view.Location)
	if err != nil {
		ErrorFromDomain(r, err).Write(w)
		return
	}
	updated, err := s.session.UpdateTransaction(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		ErrorFromDomain(r, err).Write(w)
		return
	}
	NewJSONResponse().Body(updated).Write(w)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	if err := s.session.DeleteTransaction(r.Context(), chi.URLParam(r, "id")); err != nil {
		ErrorFromDomain(r, err).Write(w)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) handleBulkDelete(w http.ResponseWriter, r *http.Request) {
	var req bulkDeleteRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		BadRequestError("invalid request body").Write(w)
		return
	}
	if len(req.IDs) == 0 {
		UnprocessableEntityError("ids cannot be empty").Write(w)
		return
	}
	n, err := s.session.BulkDeleteTransactions(r.Context(), req.IDs)
	if err != nil {
		ErrorFromDomain(r, err).Write(w)
		return
	}
	NewJSONResponse().Body(map[string]int{"deleted": n}).Write(w)
}

func (s *Server) handleConfirmTransaction(w http.ResponseWriter, r *http.Request) {
	tx, err := s.session.ConfirmTransaction(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		ErrorFromDomain(r, err).Write(w)
		return
	}
	NewJSONResponse().Body(tx).Write(w)
}

func (s *Server) handleListGoals(w http.ResponseWriter, r *http.Request) {
	view, err := s.session.View(r.Context())
	if err != nil {
		ErrorFromDomain(r, err).Write(w)
		return
	}
	goals := view.Ledger.Goals
	if goals == nil {
		goals = []core.SavingsGoal{}
	}
	NewJSONResponse().Body(goals).Write(w)
}

func (s *Server) handleAddGoal(w http.ResponseWriter, r *http.Request) {
	var req goalRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		BadRequestError("invalid request body").Write(w)
		return
	}
	g, err := s.session.AddGoal(r.Context(), core.SavingsGoal{
		Name:         sanitizeInput(req.Name),
		TargetAmount: req.TargetAmount,
		TargetDate:   req.TargetDate,
	})
	if err != nil {
		ErrorFromDomain(r, err).Write(w)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Body(g).Write(w)
}

func (s *Server) handleDeleteGoal(w http.ResponseWriter, r *http.Request) {
	if err := s.session.DeleteGoal(r.Context(), chi.URLParam(r, "id")); err != nil {
		ErrorFromDomain(r, err).Write(w)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}
