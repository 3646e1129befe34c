package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"alice/internal/core"
	"alice/internal/ledger"
)

type budgetRequest struct {
	Category string     `json:"category"`
	Amount   core.Money `json:"amount"`
}

// budgetStatus is a budget with what was spent against it in the month.
type budgetStatus struct {
	core.Budget
	Spent   core.Money `json:"spent"`
	Percent int64      `json:"percent"`
}

type categoryRequest struct {
	Name string               `json:"name"`
	Type core.TransactionType `json:"type"`
	Icon string               `json:"icon"`
}

type categoriesResponse struct {
	Expense []string              `json:"expense"`
	Income  []string              `json:"income"`
	Custom  []core.CustomCategory `json:"custom"`
}

type reminderRequest struct {
	Name      string            `json:"name"`
	Type      core.ReminderKind `json:"type"`
	Threshold core.Money        `json:"threshold"`
	Category  string            `json:"category"`
}

func (s *Server) handleListBudgets(w http.ResponseWriter, r *http.Request) {
	view, err := s.session.View(r.Context())
	if err != nil {
		ErrorFromDomain(r, err).Write(w)
		return
	}
	m, err := ParseMonthParams(r.URL.Query(), view.Selected)
	if err != nil {
		ErrorFromDomain(r, err).Write(w)
		return
	}
	spent := view.Ledger.SpentByCategory(m, view.Location)
	out := make([]budgetStatus, 0, len(view.Ledger.Budgets))
	for _, b := range view.Ledger.Budgets {
		st := budgetStatus{Budget: b, Spent: ledger.SpentFor(spent, b.Category)}
		if b.Amount.Cents > 0 {
			st.Percent = st.Spent.Cents * 100 / b.Amount.Cents
		}
		out = append(out, st)
	}
	NewJSONResponse().Body(out).Write(w)
}

func (s *Server) handleAddBudget(w http.ResponseWriter, r *http.Request) {
	var req budgetRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		BadRequestError("invalid request body").Write(w)
		return
	}
	b, err := s.session.AddBudget(r.Context(), core.Budget{Category: sanitizeInput(req.Category), Amount: req.Amount})
	if err != nil {
		ErrorFromDomain(r, err).Write(w)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Body(b).Write(w)
}

func (s *Server) handleUpdateBudget(w http.ResponseWriter, r *http.Request) {
	var req budgetRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		BadRequestError("invalid request body").Write(w)
		return
	}
	b, err := s.session.UpdateBudget(r.Context(), chi.URLParam(r, "id"), core.Budget{Category: sanitizeInput(req.Category), Amount: req.Amount})
	if err != nil {
		ErrorFromDomain(r, err).Write(w)
		return
	}
	NewJSONResponse().Body(b).Write(w)
}

func (s *Server) handleDeleteBudget(w http.ResponseWriter, r *http.Request) {
	if err := s.session.DeleteBudget(r.Context(), chi.URLParam(r, "id")); err != nil {
		ErrorFromDomain(r, err).Write(w)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	view, err := s.session.View(r.Context())
	if err != nil {
		ErrorFromDomain(r, err).Write(w)
		return
	}
	custom := view.Ledger.Categories
	if custom == nil {
		custom = []core.CustomCategory{}
	}
	NewJSONResponse().Body(categoriesResponse{
		Expense: ledger.CombinedExpenseCategories(custom),
		Income:  ledger.CombinedIncomeCategories(custom),
		Custom:  custom,
	}).Write(w)
}

func (s *Server) handleAddCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		BadRequestError("invalid request body").Write(w)
		return
	}
	c, err := s.session.AddCategory(r.Context(), sanitizeInput(req.Name), req.Type, sanitizeInput(req.Icon))
	if err != nil {
		ErrorFromDomain(r, err).Write(w)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Body(c).Write(w)
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		BadRequestError("invalid request body").Write(w)
		return
	}
	if err := s.session.UpdateCategory(r.Context(), chi.URLParam(r, "id"), sanitizeInput(req.Name), sanitizeInput(req.Icon)); err != nil {
		ErrorFromDomain(r, err).Write(w)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	if err := s.session.DeleteCategory(r.Context(), chi.URLParam(r, "id")); err != nil {
		ErrorFromDomain(r, err).Write(w)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) handleListReminders(w http.ResponseWriter, r *http.Request) {
	view, err := s.session.View(r.Context())
	if err != nil {
		ErrorFromDomain(r, err).Write(w)
		return
	}
	reminders := view.Ledger.Reminders
	if reminders == nil {
		reminders = []core.CustomReminder{}
	}
	NewJSONResponse().Body(reminders).Write(w)
}

func (s *Server) handleAddReminder(w http.ResponseWriter, r *http.Request) {
	var req reminderRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		BadRequestError("invalid request body").Write(w)
		return
	}
	rem, err := s.session.AddReminder(r.Context(), core.CustomReminder{
		Name:      sanitizeInput(req.Name),
		Type:      req.Type,
		Threshold: req.Threshold,
		Category:  sanitizeInput(req.Category),
	})
	if err != nil {
		ErrorFromDomain(r, err).Write(w)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Body(rem).Write(w)
}

func (s *Server) handleDeleteReminder(w http.ResponseWriter, r *http.Request) {
	if err := s.session.DeleteReminder(r.Context(), chi.URLParam(r, "id")); err != nil {
		ErrorFromDomain(r, err).Write(w)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	view, err := s.session.View(r.Context())
	if err != nil {
		ErrorFromDomain(r, err).Write(w)
		return
	}
	m, err := ParseMonthParams(r.URL.Query(), view.Selected)
	if err != nil {
		ErrorFromDomain(r, err).Write(w)
		return
	}
	NewJSONResponse().Body(view.Ledger.Summary(m, view.Location)).Write(w)
}

func (s *Server) handleUpcomingBills(w http.ResponseWriter, r *http.Request) {
	view, err := s.session.View(r.Context())
	if err != nil {
		ErrorFromDomain(r, err).Write(w)
		return
	}
	bills := view.Ledger.UpcomingBills(view.Today, ParseLimit(r.URL.Query(), 5, 50))
	if bills == nil {
		bills = []core.Transaction{}
	}
	NewJSONResponse().Body(bills).Write(w)
}
