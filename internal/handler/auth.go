package handler

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	appI18n "github.com/pavelanni/studydeck/internal/i18n"
	"github.com/pavelanni/studydeck/internal/model"
)

const (
	sessionCookieName = "session"
	csrfCookieName    = "csrf_token"
	csrfHeaderName    = "X-CSRF-Token"
)

func generateCSRFToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

func (h *Handler) setCSRFCookie(w http.ResponseWriter) error {
	token, err := generateCSRFToken()
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     csrfCookieName,
		Value:    token,
		Path:     h.cookiePath(),
		HttpOnly: false,
		Secure:   h.config.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// csrfMiddleware implements the double-submit check: unsafe requests must
// echo the csrf cookie in the X-CSRF-Token header. Safe requests get a
// cookie when they do not carry one yet.
func (h *Handler) csrfMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(csrfCookieName)
		if r.Method == http.MethodGet || r.Method == http.MethodHead {
			if err != nil || cookie.Value == "" {
				if err := h.setCSRFCookie(w); err != nil {
					slog.Error("failed to generate CSRF token", "error", err)
					h.writeStatus(w, r, http.StatusInternalServerError, "ErrInternal")
					return
				}
			}
			next.ServeHTTP(w, r)
			return
		}

		if err != nil || cookie.Value == "" {
			slog.Warn("CSRF cookie missing", "path", r.URL.Path)
			h.writeStatus(w, r, http.StatusForbidden, "ErrForbidden")
			return
		}
		token := r.Header.Get(csrfHeaderName)
		if len(token) != len(cookie.Value) || subtle.ConstantTimeCompare([]byte(token), []byte(cookie.Value)) != 1 {
			slog.Warn("CSRF token mismatch", "path", r.URL.Path)
			h.writeStatus(w, r, http.StatusForbidden, "ErrForbidden")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireAuth is middleware that checks for a valid session cookie.
func (h *Handler) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(sessionCookieName)
		if err != nil || cookie.Value == "" {
			h.unauthorized(w, r)
			return
		}

		authSess, err := h.store.GetAuthSession(cookie.Value)
		if err != nil {
			slog.Error("failed to get auth session", "error", err)
			h.unauthorized(w, r)
			return
		}
		if authSess == nil {
			h.unauthorized(w, r)
			return
		}

		user, err := h.store.GetUserByID(authSess.UserID)
		if err != nil || user == nil || !user.Active {
			h.unauthorized(w, r)
			return
		}

		ctx := model.ContextWithUser(r.Context(), user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireRole returns middleware that checks the user has one of the allowed roles.
func requireRole(allowed ...model.UserRole) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := model.UserFromContext(r.Context())
			if user == nil {
				writeJSON(w, http.StatusUnauthorized, errorResponse{Error: appI18n.T(r.Context(), "ErrUnauthorized"), Code: "ErrUnauthorized"})
				return
			}
			for _, role := range allowed {
				if user.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeJSON(w, http.StatusForbidden, errorResponse{Error: appI18n.T(r.Context(), "ErrForbidden"), Code: "ErrForbidden"})
		})
	}
}

// API calls get a JSON 401; page loads are sent to the login form.
func (h *Handler) unauthorized(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.URL.Path, h.path("/api/")) || r.Method != http.MethodGet {
		h.writeStatus(w, r, http.StatusUnauthorized, "ErrUnauthorized")
		return
	}
	http.Redirect(w, r, h.path("/login"), http.StatusSeeOther)
}

func (h *Handler) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := loginPage(h.path("/login"), "").Render(r.Context(), w); err != nil {
		slog.Error("render error", "error", err)
	}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// handleLogin accepts either a JSON body or a form post.
func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	jsonBody := strings.HasPrefix(r.Header.Get("Content-Type"), "application/json")
	var req loginRequest
	if jsonBody {
		if err := decodeJSON(r, &req); err != nil {
			h.writeError(w, r, errBadRequest)
			return
		}
	} else {
		req.Username = r.FormValue("username")
		req.Password = r.FormValue("password")
	}

	user, err := h.store.GetUserByUsername(req.Username)
	if err != nil {
		slog.Error("failed to get user", "error", err)
		h.renderLoginError(w, r, jsonBody)
		return
	}
	if user == nil || !user.Active {
		h.renderLoginError(w, r, jsonBody)
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		h.renderLoginError(w, r, jsonBody)
		return
	}

	token, err := h.store.CreateAuthSession(user.ID)
	if err != nil {
		slog.Error("failed to create auth session", "error", err)
		h.writeStatus(w, r, http.StatusInternalServerError, "ErrInternal")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     h.cookiePath(),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   h.config.SecureCookies,
	})
	if err := h.setCSRFCookie(w); err != nil {
		slog.Error("failed to generate CSRF token", "error", err)
	}
	slog.Info("user logged in", "username", user.Username)

	if jsonBody {
		writeJSON(w, http.StatusOK, userView(*user))
		return
	}
	http.Redirect(w, r, h.path("/"), http.StatusSeeOther)
}

// handleLogout ends the auth session and closes the user's workspace.
func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(sessionCookieName); err == nil && cookie.Value != "" {
		_ = h.store.DeleteAuthSession(cookie.Value)
	}
	if user := model.UserFromContext(r.Context()); user != nil {
		h.study.Drop(user.ID)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     h.cookiePath(),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.SecureCookies,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) renderLoginError(w http.ResponseWriter, r *http.Request, jsonBody bool) {
	if jsonBody {
		h.writeStatus(w, r, http.StatusUnauthorized, "LoginError")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusUnauthorized)
	if err := loginPage(h.path("/login"), appI18n.T(r.Context(), "LoginError")).Render(r.Context(), w); err != nil {
		slog.Error("render error", "error", err)
	}
}
