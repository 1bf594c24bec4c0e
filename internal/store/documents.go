package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/pavelanni/studydeck/internal/model"
)

// ErrNotFound is returned when a row owned by the caller does not exist.
var ErrNotFound = errors.New("not found")

// InsertDocument stores an uploaded PDF with its extracted page text and
// returns the document ID.
func (s *Store) InsertDocument(d model.Document, data []byte) (int64, error) {
	pages, err := json.Marshal(d.Pages)
	if err != nil {
		return 0, fmt.Errorf("encode pages: %w", err)
	}
	if d.UploadedAt.IsZero() {
		d.UploadedAt = time.Now()
	}
	res, err := s.db.Exec(
		`INSERT INTO documents (user_id, name, pages, page_count, size, data, uploaded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		d.UserID, d.Name, string(pages), len(d.Pages), len(data), data, d.UploadedAt,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ListDocuments returns a user's documents in upload order, page text
// included.
func (s *Store) ListDocuments(userID int64) ([]model.Document, error) {
	rows, err := s.db.Query(
		`SELECT id, user_id, name, pages, page_count, size, uploaded_at
		 FROM documents WHERE user_id = ? ORDER BY id`, userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var docs []model.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// GetDocument returns one of a user's documents.
func (s *Store) GetDocument(userID, id int64) (model.Document, error) {
	d, err := scanDocument(s.db.QueryRow(
		`SELECT id, user_id, name, pages, page_count, size, uploaded_at
		 FROM documents WHERE user_id = ? AND id = ?`, userID, id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return d, ErrNotFound
	}
	return d, err
}

// GetDocumentData returns the original file bytes of a document.
func (s *Store) GetDocumentData(userID, id int64) ([]byte, error) {
	var data []byte
	err := s.db.QueryRow(`SELECT data FROM documents WHERE user_id = ? AND id = ?`, userID, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return data, err
}

// DeleteDocument removes one of a user's documents.
func (s *Store) DeleteDocument(userID, id int64) error {
	res, err := s.db.Exec(`DELETE FROM documents WHERE user_id = ? AND id = ?`, userID, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanDocument(r rowScanner) (model.Document, error) {
	var d model.Document
	var pages string
	if err := r.Scan(&d.ID, &d.UserID, &d.Name, &pages, &d.PageCount, &d.Size, &d.UploadedAt); err != nil {
		return d, err
	}
	if err := json.Unmarshal([]byte(pages), &d.Pages); err != nil {
		return d, fmt.Errorf("decode pages of document %d: %w", d.ID, err)
	}
	return d, nil
}
