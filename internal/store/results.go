package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/pavelanni/studydeck/internal/model"
)

// InsertResult stores the summary of a finished session.
func (s *Store) InsertResult(r model.Result) (int64, error) {
	settings, err := json.Marshal(r.Settings)
	if err != nil {
		return 0, fmt.Errorf("encode settings: %w", err)
	}
	summary, err := json.Marshal(r.Summary)
	if err != nil {
		return 0, fmt.Errorf("encode summary: %w", err)
	}
	docs, err := json.Marshal(r.Documents)
	if err != nil {
		return 0, fmt.Errorf("encode documents: %w", err)
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	res, err := s.db.Exec(
		`INSERT INTO results (user_id, exam_type, grade, passed, settings, summary, documents, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.UserID, r.Summary.Type, r.Summary.Grade, r.Summary.Passed,
		string(settings), string(summary), string(docs), r.CreatedAt,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ListResults returns a user's results, newest first.
func (s *Store) ListResults(userID int64) ([]model.Result, error) {
	return s.queryResults(
		`SELECT id, user_id, settings, summary, documents, created_at
		 FROM results WHERE user_id = ? ORDER BY id DESC`, userID,
	)
}

// ListAllResults returns every stored result in insertion order.
func (s *Store) ListAllResults() ([]model.Result, error) {
	return s.queryResults(
		`SELECT id, user_id, settings, summary, documents, created_at FROM results ORDER BY id`,
	)
}

func (s *Store) queryResults(query string, args ...any) ([]model.Result, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var results []model.Result
	for rows.Next() {
		var r model.Result
		var settings, summary, docs string
		if err := rows.Scan(&r.ID, &r.UserID, &settings, &summary, &docs, &r.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(settings), &r.Settings); err != nil {
			return nil, fmt.Errorf("decode settings of result %d: %w", r.ID, err)
		}
		if err := json.Unmarshal([]byte(summary), &r.Summary); err != nil {
			return nil, fmt.Errorf("decode summary of result %d: %w", r.ID, err)
		}
		if err := json.Unmarshal([]byte(docs), &r.Documents); err != nil {
			return nil, fmt.Errorf("decode documents of result %d: %w", r.ID, err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}
