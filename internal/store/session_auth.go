package store

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"time"

	"github.com/pavelanni/studydeck/internal/model"
)

// AuthSessionTTL is how long a login lasts without activity. Sessions used in
// the second half of their lifetime are extended.
const AuthSessionTTL = 7 * 24 * time.Hour

// CreateAuthSession logs a user in and returns the cookie token.
func (s *Store) CreateAuthSession(userID int64) (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	sess := model.AuthSession{
		ID:        hex.EncodeToString(raw),
		UserID:    userID,
		CreatedAt: time.Now(),
	}
	sess.ExpiresAt = sess.CreatedAt.Add(AuthSessionTTL)
	if _, err := s.db.Exec(
		`INSERT INTO auth_sessions (id, user_id, created_at, expires_at) VALUES (?, ?, ?, ?)`,
		sess.ID, sess.UserID, sess.CreatedAt, sess.ExpiresAt,
	); err != nil {
		return "", err
	}
	return sess.ID, nil
}

// GetAuthSession looks up a token. Unknown and expired tokens yield nil; an
// expired row is deleted on the way.
func (s *Store) GetAuthSession(token string) (*model.AuthSession, error) {
	sess := &model.AuthSession{}
	row := s.db.QueryRow(`SELECT id, user_id, created_at, expires_at FROM auth_sessions WHERE id = ?`, token)
	switch err := row.Scan(&sess.ID, &sess.UserID, &sess.CreatedAt, &sess.ExpiresAt); {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil
	case err != nil:
		return nil, err
	}

	now := time.Now()
	if !now.Before(sess.ExpiresAt) {
		return nil, s.DeleteAuthSession(token)
	}
	if sess.ExpiresAt.Sub(now) < AuthSessionTTL/2 {
		sess.ExpiresAt = now.Add(AuthSessionTTL)
		if _, err := s.db.Exec(`UPDATE auth_sessions SET expires_at = ? WHERE id = ?`, sess.ExpiresAt, token); err != nil {
			return nil, err
		}
	}
	return sess, nil
}

// DeleteAuthSession logs out one token.
func (s *Store) DeleteAuthSession(token string) error {
	_, err := s.db.Exec(`DELETE FROM auth_sessions WHERE id = ?`, token)
	return err
}

// DeleteUserAuthSessions logs a user out everywhere.
func (s *Store) DeleteUserAuthSessions(userID int64) error {
	_, err := s.db.Exec(`DELETE FROM auth_sessions WHERE user_id = ?`, userID)
	return err
}

// CleanupExpiredSessions purges expired logins and reports how many went.
func (s *Store) CleanupExpiredSessions() (int64, error) {
	res, err := s.db.Exec(`DELETE FROM auth_sessions WHERE expires_at < ?`, time.Now())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
