package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"clinic-booking/internal/auth"
	"clinic-booking/internal/middleware"
	"clinic-booking/internal/model"
	"clinic-booking/internal/store"
)

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req model.LoginRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password required")
		return
	}

	u, err := h.store.UserByEmail(r.Context(), req.Email)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if err != nil {
		h.internalError(w, "login", err)
		return
	}
	if !auth.CheckPassword(u.PasswordHash, req.Password) {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	tok, err := h.issuer.MakeToken(u.ID, u.Role)
	if err != nil {
		h.internalError(w, "login", err)
		return
	}
	h.log.WithField("user_id", u.ID).WithField("role", u.Role).Info("login")
	writeJSON(w, http.StatusOK, model.LoginResponse{
		Token: tok,
		User:  model.UserInfo{ID: u.ID, Name: u.Name, Role: u.Role},
	})
}

// Logout revokes the presented token until it would have expired anyway.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	until := h.now()
	if claims.ExpiresAt != nil {
		until = claims.ExpiresAt.Time
	}
	if err := h.revoker.Revoke(r.Context(), claims.ID, until); err != nil {
		h.internalError(w, "logout", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Register lets an admin create doctor or admin accounts.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req model.RegisterRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	req.Name = strings.TrimSpace(req.Name)
	if req.Role == "" {
		req.Role = model.RoleDoctor
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, registerProblem(err))
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		h.internalError(w, "register", err)
		return
	}
	u := &model.User{
		ID:           uuid.NewString(),
		Email:        req.Email,
		PasswordHash: hash,
		Name:         req.Name,
		Role:         req.Role,
	}
	if err := h.store.CreateUser(r.Context(), u); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			writeError(w, http.StatusConflict, "registration failed")
			return
		}
		h.internalError(w, "register", err)
		return
	}
	writeJSON(w, http.StatusCreated, model.UserInfo{ID: u.ID, Name: u.Name, Role: u.Role})
}

// registerProblem turns validator output into the message the admin sees.
// Missing fields are reported before malformed ones.
func registerProblem(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid request body"
	}
	for _, fe := range verrs {
		if fe.Tag() == "required" {
			return "all fields required"
		}
	}
	switch verrs[0].Field() {
	case "Email":
		return "invalid email"
	case "Password":
		return "password too short"
	case "Role":
		return "unknown role"
	}
	return "invalid request body"
}
