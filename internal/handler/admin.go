package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/pavelanni/studydeck/internal/model"
)

type userResponse struct {
	ID          int64          `json:"id"`
	Username    string         `json:"username"`
	DisplayName string         `json:"display_name"`
	Role        model.UserRole `json:"role"`
	Active      bool           `json:"active"`
	CreatedAt   time.Time      `json:"created_at"`
}

func userView(u model.User) userResponse {
	return userResponse{
		ID:          u.ID,
		Username:    u.Username,
		DisplayName: u.DisplayName,
		Role:        u.Role,
		Active:      u.Active,
		CreatedAt:   u.CreatedAt,
	}
}

func (h *Handler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.ListUsers()
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out := make([]userResponse, 0, len(users))
	for _, u := range users {
		out = append(out, userView(u))
	}
	writeJSON(w, http.StatusOK, out)
}

type createUserRequest struct {
	Username    string         `json:"username"`
	DisplayName string         `json:"display_name"`
	Password    string         `json:"password"`
	Role        model.UserRole `json:"role"`
}

func (h *Handler) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, errBadRequest)
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		h.writeError(w, r, errBadRequest)
		return
	}
	switch req.Role {
	case "":
		req.Role = model.UserRoleStudent
	case model.UserRoleStudent, model.UserRoleAdmin:
	default:
		h.writeError(w, r, errBadRequest)
		return
	}
	if req.DisplayName == "" {
		req.DisplayName = req.Username
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	u := model.User{
		Username:     req.Username,
		DisplayName:  req.DisplayName,
		PasswordHash: string(hash),
		Role:         req.Role,
		Active:       true,
	}
	u.ID, err = h.store.CreateUser(u)
	if err != nil {
		slog.Error("failed to create user", "username", req.Username, "error", err)
		h.writeError(w, r, err)
		return
	}
	slog.Info("created user", "username", u.Username, "role", u.Role)
	writeJSON(w, http.StatusCreated, userView(u))
}

type activeRequest struct {
	Active bool `json:"active"`
}

// handleSetUserActive enables or disables an account. A disabled user is
// logged out and their workspace is closed.
func (h *Handler) handleSetUserActive(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		h.writeError(w, r, errBadRequest)
		return
	}
	var req activeRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, errBadRequest)
		return
	}
	if err := h.store.SetUserActive(id, req.Active); err != nil {
		h.writeError(w, r, err)
		return
	}
	if !req.Active {
		h.study.Drop(id)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleExportResults(w http.ResponseWriter, r *http.Request) {
	export, err := h.store.ExportResults()
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, export)
}
