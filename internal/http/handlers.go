package http

import (
	"net/http"

	"alice/internal/core"
	"alice/internal/log"
	"alice/internal/services"
)

type loginRequest struct {
	Email string `json:"email"`
}

type monthRequest struct {
	Month string `json:"month"`
}

type permissionRequest struct {
	Granted bool `json:"granted"`
}

type carryOverResponse struct {
	Month string `json:"month"`
	From  string `json:"from"`
	Count int    `json:"count"`
}

type monthResponse struct {
	Selected  string             `json:"selected"`
	Today     core.Date          `json:"today"`
	CarryOver *carryOverResponse `json:"carryOver"`
}

type notificationsResponse struct {
	Permission    bool                `json:"permission"`
	Notifications []core.Notification `json:"notifications"`
}

func carryOverBody(p *services.CarryOverPrompt) *carryOverResponse {
	if p == nil {
		return nil
	}
	return &carryOverResponse{Month: p.Month.String(), From: p.From.String(), Count: p.Count}
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		BadRequestError("invalid request body").Write(w)
		return
	}
	email := sanitizeInput(req.Email)
	if email == "" {
		UnprocessableEntityError(core.ErrInvalidEmail.Error()).Write(w)
		return
	}

	u, err := s.session.Login(r.Context(), email)
	if err != nil {
		ErrorFromDomain(r, err).Write(w)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Login via API", log.FieldEmail, u.Email)
	NewJSONResponse().Body(u).Write(w)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.session.Logout(r.Context()); err != nil {
		ErrorFromDomain(r, err).Write(w)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var u core.User
	if err := DecodeJSON(w, r, &u); err != nil {
		BadRequestError("invalid request body").Write(w)
		return
	}
	u.FirstName = sanitizeInput(u.FirstName)
	u.FamilyName = sanitizeInput(u.FamilyName)

	created, err := s.session.Register(r.Context(), u)
	if err != nil {
		ErrorFromDomain(r, err).Write(w)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Body(created).Write(w)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	u, ok := s.session.User()
	if !ok {
		ErrorFromDomain(r, services.ErrNotLoggedIn).Write(w)
		return
	}
	NewJSONResponse().Body(u).Write(w)
}

func (s *Server) handleUpdateMe(w http.ResponseWriter, r *http.Request) {
	var u core.User
	if err := DecodeJSON(w, r, &u); err != nil {
		BadRequestError("invalid request body").Write(w)
		return
	}
	u.FirstName = sanitizeInput(u.FirstName)
	u.FamilyName = sanitizeInput(u.FamilyName)

	updated, err := s.session.UpdateUser(r.Context(), u)
	if err != nil {
		ErrorFromDomain(r, err).Write(w)
		return
	}
	NewJSONResponse().Body(updated).Write(w)
}

func (s *Server) handleCompleteOnboarding(w http.ResponseWriter, r *http.Request) {
	u, err := s.session.CompleteOnboarding(r.Context())
	if err != nil {
		ErrorFromDomain(r, err).Write(w)
		return
	}
	NewJSONResponse().Body(u).Write(w)
}

func (s *Server) handleUpdateLayout(w http.ResponseWriter, r *http.Request) {
	var layout core.DashboardLayout
	if err := DecodeJSON(w, r, &layout); err != nil {
		BadRequestError("invalid request body").Write(w)
		return
	}
	u, err := s.session.UpdateLayout(r.Context(), layout)
	if err != nil {
		ErrorFromDomain(r, err).Write(w)
		return
	}
	NewJSONResponse().Body(u).Write(w)
}

func (s *Server) handleGetMonth(w http.ResponseWriter, r *http.Request) {
	view, err := s.session.View(r.Context())
	if err != nil {
		ErrorFromDomain(r, err).Write(w)
		return
	}
	NewJSONResponse().Body(monthResponse{
		Selected:  view.Selected.String(),
		Today:     view.Today,
		CarryOver: carryOverBody(view.Prompt),
	}).Write(w)
}

func (s *Server) handleSelectMonth(w http.ResponseWriter, r *http.Request) {
	var req monthRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		BadRequestError("invalid request body").Write(w)
		return
	}
	m, err := core.ParseMonth(req.Month)
	if err != nil {
		UnprocessableEntityError(err.Error()).Write(w)
		return
	}
	if _, err := s.session.SelectMonth(r.Context(), m); err != nil {
		ErrorFromDomain(r, err).Write(w)
		return
	}
	s.handleGetMonth(w, r)
}

func (s *Server) handleGetCarryOver(w http.ResponseWriter, r *http.Request) {
	view, err := s.session.View(r.Context())
	if err != nil {
		ErrorFromDomain(r, err).Write(w)
		return
	}
	if view.Prompt == nil {
		NewJSONResponse().Status(http.StatusNoContent).Write(w)
		return
	}
	NewJSONResponse().Body(carryOverBody(view.Prompt)).Write(w)
}

func (s *Server) handleAcceptCarryOver(w http.ResponseWriter, r *http.Request) {
	added, err := s.session.AcceptCarryOver(r.Context())
	if err != nil {
		ErrorFromDomain(r, err).Write(w)
		return
	}
	NewJSONResponse().Body(map[string]int{"added": added}).Write(w)
}

func (s *Server) handleDismissCarryOver(w http.ResponseWriter, r *http.Request) {
	if err := s.session.DismissCarryOver(r.Context()); err != nil {
		ErrorFromDomain(r, err).Write(w)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	u, ok := s.session.User()
	if !ok {
		ErrorFromDomain(r, services.ErrNotLoggedIn).Write(w)
		return
	}
	resp := notificationsResponse{Notifications: []core.Notification{}}
	if s.permission != nil {
		resp.Permission = s.permission.Granted()
	}
	if s.recent != nil {
		resp.Notifications = s.recent.Recent(u.Email, ParseLimit(r.URL.Query(), 20, 100))
	}
	NewJSONResponse().Body(resp).Write(w)
}

func (s *Server) handleSetPermission(w http.ResponseWriter, r *http.Request) {
	if s.permission == nil {
		NotFoundError("notifications are disabled").Write(w)
		return
	}
	var req permissionRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		BadRequestError("invalid request body").Write(w)
		return
	}
	s.permission.SetGranted(req.Granted)
	log.FromContext(r.Context()).InfoContext(r.Context(), "Notification permission changed", "granted", req.Granted)
	NewJSONResponse().Body(map[string]bool{"permission": req.Granted}).Write(w)
}
