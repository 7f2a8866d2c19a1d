package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// HistoryType tags how a history entry was produced.
type HistoryType string

const (
	// HistorySignToText is a transcript of recognized signs.
	HistorySignToText HistoryType = "sign_to_text"
)

// HistoryEntry is a saved translation.
type HistoryEntry struct {
	ID         string      `json:"id"`
	Text       string      `json:"text"`
	Type       HistoryType `json:"type"`
	Confidence float64     `json:"confidence"`
	CreatedAt  time.Time   `json:"created_at"`
}

// HistoryRepository provides CRUD operations for history entries.
type HistoryRepository struct {
	db *sql.DB
}

// History returns the history repository for this store.
func (s *Store) History() *HistoryRepository {
	return &HistoryRepository{db: s.db}
}

// Create inserts a new entry. An empty ID is filled with a new UUID.
func (r *HistoryRepository) Create(h *HistoryEntry) error {
	if h.ID == "" {
		h.ID = uuid.New().String()
	}
	if h.Type == "" {
		h.Type = HistorySignToText
	}
	h.CreatedAt = time.Now()

	_, err := r.db.Exec(
		`INSERT INTO history (id, text, type, confidence, created_at) VALUES (?, ?, ?, ?, ?)`,
		h.ID, h.Text, string(h.Type), h.Confidence, h.CreatedAt,
	)
	return err
}

// GetByID retrieves an entry by its ID.
func (r *HistoryRepository) GetByID(id string) (*HistoryEntry, error) {
	h := &HistoryEntry{}
	var typ string

	err := r.db.QueryRow(
		`SELECT id, text, type, confidence, created_at FROM history WHERE id = ?`, id,
	).Scan(&h.ID, &h.Text, &typ, &h.Confidence, &h.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	h.Type = HistoryType(typ)
	return h, nil
}

// List returns entries newest first. A limit of zero or less returns all.
func (r *HistoryRepository) List(limit int) ([]*HistoryEntry, error) {
	query := `SELECT id, text, type, confidence, created_at FROM history ORDER BY created_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*HistoryEntry
	for rows.Next() {
		h := &HistoryEntry{}
		var typ string
		if err := rows.Scan(&h.ID, &h.Text, &typ, &h.Confidence, &h.CreatedAt); err != nil {
			return nil, err
		}
		h.Type = HistoryType(typ)
		entries = append(entries, h)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return entries, nil
}

// Delete removes an entry by its ID.
func (r *HistoryRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM history WHERE id = ?`, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// Clear removes every entry and returns how many were deleted.
func (r *HistoryRepository) Clear() (int64, error) {
	result, err := r.db.Exec(`DELETE FROM history`)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
