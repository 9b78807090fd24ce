package handlers

import (
	"docchat/internal/auth"
	"docchat/internal/logger"
	"docchat/internal/repository/db"
	"docchat/pkg/validation"
	"errors"
	"net/http"
	"strings"
)

const defaultRole = "user"

type UserInfo struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	Active bool   `json:"active"`
}

type LoginResponse struct {
	Token string   `json:"token"`
	User  UserInfo `json:"user"`
}

func userInfo(u *db.User) UserInfo {
	return UserInfo{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role, Active: u.Active}
}

// CreateUserHandler registers a new account
func (h *Handlers) CreateUserHandler(w http.ResponseWriter, r *http.Request) {
	var req validation.CreateUserRequest
	if !h.decode(w, r, &req) {
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		logger.FromContext(r.Context()).WithError(err).Error("Error hashing password")
		h.sendError(w, http.StatusInternalServerError, "Error creating user", nil)
		return
	}

	user, err := h.config.DB.CreateUser(r.Context(), strings.TrimSpace(req.Name), email, hash, defaultRole)
	if err != nil {
		if errors.Is(err, db.ErrDuplicate) {
			h.sendError(w, http.StatusConflict, "User already exists", nil)
			return
		}
		h.sendServiceError(w, r, "Error creating user", err)
		return
	}

	logger.FromContext(r.Context()).WithField("user_id", user.ID).Info("User created")
	h.sendJSON(w, http.StatusOK, userInfo(user))
}

// LoginHandler exchanges credentials for a token
func (h *Handlers) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req validation.LoginRequest
	if !h.decode(w, r, &req) {
		return
	}

	user, err := h.config.DB.GetUserByEmail(r.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if !errors.Is(err, db.ErrNotFound) {
			h.sendServiceError(w, r, "Error logging in", err)
			return
		}
		h.sendError(w, http.StatusUnauthorized, "Invalid credentials", nil)
		return
	}
	if !auth.VerifyPassword(user.PasswordHash, req.Password) {
		h.sendError(w, http.StatusUnauthorized, "Invalid credentials", nil)
		return
	}
	if !user.Active {
		h.sendError(w, http.StatusForbidden, "User is inactive", nil)
		return
	}

	token, err := h.config.Auth.GenerateToken(user.ID, user.Email)
	if err != nil {
		logger.FromContext(r.Context()).WithError(err).Error("Error generating token")
		h.sendError(w, http.StatusInternalServerError, "Error generating token", nil)
		return
	}

	h.sendJSON(w, http.StatusOK, LoginResponse{Token: token, User: userInfo(user)})
}

func (h *Handlers) GetUserHandler(w http.ResponseWriter, r *http.Request) {
	var req validation.UserRequest
	if !h.decode(w, r, &req) || !h.authorize(w, r, req.UserID) {
		return
	}

	user, err := h.config.DB.GetUser(r.Context(), req.UserID)
	if err != nil {
		h.sendServiceError(w, r, "Error retrieving user", err)
		return
	}

	h.sendJSON(w, http.StatusOK, userInfo(user))
}

func (h *Handlers) UpdatePasswordHandler(w http.ResponseWriter, r *http.Request) {
	var req validation.UpdatePasswordRequest
	if !h.decode(w, r, &req) || !h.authorize(w, r, req.UserID) {
		return
	}

	user, err := h.config.DB.GetUser(r.Context(), req.UserID)
	if err != nil {
		h.sendServiceError(w, r, "Error retrieving user", err)
		return
	}
	if !auth.VerifyPassword(user.PasswordHash, req.OldPassword) {
		h.sendError(w, http.StatusUnauthorized, "Invalid credentials", nil)
		return
	}

	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		logger.FromContext(r.Context()).WithError(err).Error("Error hashing password")
		h.sendError(w, http.StatusInternalServerError, "Error updating password", nil)
		return
	}
	if err := h.config.DB.UpdateUserPassword(r.Context(), req.UserID, hash); err != nil {
		h.sendServiceError(w, r, "Error updating password", err)
		return
	}

	h.sendJSON(w, http.StatusOK, DeleteResponse{Success: true, Message: "Password updated"})
}
