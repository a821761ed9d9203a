package api

import (
	"errors"
	"net/http"
	"strings"

	"lyrahub/internal/auth"
	"lyrahub/internal/domain"
	"lyrahub/internal/validation"

	"github.com/google/uuid"
)

type registerRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Name     string `json:"name" validate:"required,max=100"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type updateProfileRequest struct {
	Name string `json:"name" validate:"required,max=100"`
}

type authResponse struct {
	Success bool         `json:"success"`
	Token   string       `json:"token"`
	User    *domain.User `json:"user"`
}

type userResponse struct {
	Success bool         `json:"success"`
	User    *domain.User `json:"user"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondErr(ctx, w, s.log, err)
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Name = strings.TrimSpace(req.Name)

	if err := validation.Struct(req); err != nil {
		respondErr(ctx, w, s.log, err)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		respondErr(ctx, w, s.log, err)
		return
	}

	user := &domain.User{
		ID:           uuid.NewString(),
		Email:        req.Email,
		Name:         req.Name,
		PasswordHash: hash,
	}

	if err = s.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			respondError(ctx, w, s.log, http.StatusConflict, "email already registered")
			return
		}

		respondErr(ctx, w, s.log, err)

		return
	}

	token, err := s.authorizer.IssueToken(user.ID)
	if err != nil {
		respondErr(ctx, w, s.log, err)
		return
	}

	s.log.InfoContext(ctx, "Registered user",
		"userID", user.ID)

	respondJSON(ctx, w, s.log, http.StatusCreated, authResponse{Success: true, Token: token, User: user})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondErr(ctx, w, s.log, err)
		return
	}

	if err := validation.Struct(req); err != nil {
		respondErr(ctx, w, s.log, err)
		return
	}

	user, err := s.store.GetUserByEmail(ctx, req.Email)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		respondErr(ctx, w, s.log, err)
		return
	}

	if user == nil || !auth.CheckPassword(user.PasswordHash, req.Password) {
		respondError(ctx, w, s.log, http.StatusUnauthorized, "invalid email or password")
		return
	}

	token, err := s.authorizer.IssueToken(user.ID)
	if err != nil {
		respondErr(ctx, w, s.log, err)
		return
	}

	respondJSON(ctx, w, s.log, http.StatusOK, authResponse{Success: true, Token: token, User: user})
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, err := s.store.GetUserByID(ctx, userIDFrom(ctx))
	if err != nil {
		respondErr(ctx, w, s.log, err)
		return
	}

	respondJSON(ctx, w, s.log, http.StatusOK, userResponse{Success: true, User: user})
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req updateProfileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondErr(ctx, w, s.log, err)
		return
	}

	req.Name = strings.TrimSpace(req.Name)

	if err := validation.Struct(req); err != nil {
		respondErr(ctx, w, s.log, err)
		return
	}

	user, err := s.store.UpdateUserName(ctx, userIDFrom(ctx), req.Name)
	if err != nil {
		respondErr(ctx, w, s.log, err)
		return
	}

	respondJSON(ctx, w, s.log, http.StatusOK, userResponse{Success: true, User: user})
}
