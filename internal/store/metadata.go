package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/pavelanni/studydeck/internal/model"
)

// SetMetadata upserts a key-value pair.
func (s *Store) SetMetadata(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO metadata (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = ?`,
		key, value, value,
	)
	return err
}

// GetMetadata returns the value for a metadata key.
// Returns empty string and nil error if the key is missing.
func (s *Store) GetMetadata(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}

func settingsKey(userID int64) string {
	return "settings:" + strconv.FormatInt(userID, 10)
}

// SaveUserSettings remembers the settings a user last generated with.
func (s *Store) SaveUserSettings(userID int64, st model.Settings) error {
	b, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	return s.SetMetadata(settingsKey(userID), string(b))
}

// LoadUserSettings returns the remembered settings of a user, or the
// defaults when none are stored.
func (s *Store) LoadUserSettings(userID int64) (model.Settings, error) {
	st := model.DefaultSettings()
	v, err := s.GetMetadata(settingsKey(userID))
	if err != nil || v == "" {
		return st, err
	}
	if err := json.Unmarshal([]byte(v), &st); err != nil {
		return model.DefaultSettings(), fmt.Errorf("decode settings: %w", err)
	}
	return st, nil
}
