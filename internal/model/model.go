package model

import (
	"context"
	"strings"
	"time"
)

// UserRole represents a user's access level.
type UserRole string

const (
	// UserRoleStudent can upload documents and take exams.
	UserRoleStudent UserRole = "student"
	// UserRoleAdmin can additionally manage users.
	UserRoleAdmin UserRole = "admin"
)

// User represents a system user.
type User struct {
	ID           int64
	Username     string
	DisplayName  string
	PasswordHash string
	Role         UserRole
	Active       bool
	CreatedAt    time.Time
}

// AuthSession represents an authentication session.
type AuthSession struct {
	ID        string
	UserID    int64
	CreatedAt time.Time
	ExpiresAt time.Time
}

type userCtxKey struct{}

// ContextWithUser stores a user in the request context.
func ContextWithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userCtxKey{}, u)
}

// UserFromContext retrieves the authenticated user from context, or nil.
func UserFromContext(ctx context.Context) *User {
	u, _ := ctx.Value(userCtxKey{}).(*User)
	return u
}

// Document is an uploaded PDF with its extracted page text.
type Document struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"-"`
	Name       string    `json:"name"`
	Pages      []string  `json:"-"`
	PageCount  int       `json:"page_count"`
	Size       int64     `json:"size"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// HasText reports whether any page carries non-blank text.
func (d Document) HasText() bool {
	for _, p := range d.Pages {
		if strings.TrimSpace(p) != "" {
			return true
		}
	}
	return false
}

// Result is the persisted summary of a finished exam session.
type Result struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Settings  Settings  `json:"settings"`
	Summary   Summary   `json:"summary"`
	Documents []string  `json:"documents"`
	CreatedAt time.Time `json:"created_at"`
}
