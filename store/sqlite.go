package store

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/stevemurr/simple-item-server/item"
)

// SqliteStore keeps items in a private in-memory SQLite database.
// The database is discarded when the store is closed or the process exits.
//
// Tables:
//
//	items(id, name, description)  PRIMARY KEY (id)
type SqliteStore struct {
	mu sync.RWMutex
	db *sql.DB
}

func NewSqliteStore() (*SqliteStore, error) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, err
	}
	// Every connection to ":memory:" gets its own database, so pin one.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS items (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create items table: %w", err)
	}
	return &SqliteStore{db: db}, nil
}

func (s *SqliteStore) Close() error {
	return s.db.Close()
}

func (s *SqliteStore) Get(id string) (item.Item, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var (
		it   item.Item
		desc sql.NullString
	)
	err := s.db.QueryRow(
		"SELECT id, name, description FROM items WHERE id = ?", id,
	).Scan(&it.ID, &it.Name, &desc)
	if errors.Is(err, sql.ErrNoRows) {
		return item.Item{}, false, nil
	}
	if err != nil {
		return item.Item{}, false, err
	}
	it.Description = fromNull(desc)
	return it, true, nil
}

func (s *SqliteStore) Set(id string, it item.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(
		`INSERT INTO items (id, name, description) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name, description = excluded.description`,
		id, it.Name, toNull(it.Description),
	)
	return err
}

func (s *SqliteStore) Has(id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int
	if err := s.db.QueryRow("SELECT COUNT(1) FROM items WHERE id = ?", id).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *SqliteStore) Delete(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.Exec("DELETE FROM items WHERE id = ?", id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *SqliteStore) List() ([]item.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.Query("SELECT id, name, description FROM items ORDER BY rowid")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	result := []item.Item{}
	for rows.Next() {
		var (
			it   item.Item
			desc sql.NullString
		)
		if err := rows.Scan(&it.ID, &it.Name, &desc); err != nil {
			return nil, err
		}
		it.Description = fromNull(desc)
		result = append(result, it)
	}
	return result, rows.Err()
}

func (s *SqliteStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec("DELETE FROM items")
	return err
}

func (s *SqliteStore) Len() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int
	err := s.db.QueryRow("SELECT COUNT(1) FROM items").Scan(&n)
	return n, err
}

func toNull(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

func fromNull(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

var _ Store = (*SqliteStore)(nil)
