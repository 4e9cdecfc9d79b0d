package store

import (
	"database/sql"
	"fmt"

	"github.com/mtarnawa/hanashi/internal/model"
)

type ContentStore struct {
	db *sql.DB
}

func NewContentStore(db *sql.DB) *ContentStore {
	return &ContentStore{db: db}
}

func scanContent(scanner interface{ Scan(...any) error }) (*model.ContentItem, error) {
	var c model.ContentItem
	if err := scanner.Scan(&c.ID, &c.Title, &c.Category, &c.Tier); err != nil {
		return nil, err
	}
	return &c, nil
}

const contentCols = `id, title, category, tier`

func (s *ContentStore) GetByID(id int64) (*model.ContentItem, error) {
	row := s.db.QueryRow(`SELECT `+contentCols+` FROM contents WHERE id = ?`, id)
	c, err := scanContent(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get content: %w", err)
	}
	return c, nil
}

func (s *ContentStore) List() ([]model.ContentItem, error) {
	return s.list(`SELECT ` + contentCols + ` FROM contents ORDER BY category ASC, title ASC`)
}

// ListTrial returns only items tagged for the trial tier.
func (s *ContentStore) ListTrial() ([]model.ContentItem, error) {
	return s.list(`SELECT ` + contentCols + ` FROM contents WHERE tier = 'trial' ORDER BY category ASC, title ASC`)
}

func (s *ContentStore) list(query string) ([]model.ContentItem, error) {
	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("list contents: %w", err)
	}
	defer rows.Close()

	var items []model.ContentItem
	for rows.Next() {
		c, err := scanContent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan content: %w", err)
		}
		items = append(items, *c)
	}
	return items, rows.Err()
}
