package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"registration-service/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection
func (s *Store) GetDB() *sqlx.DB {
	return s.db
}

// mapInsertErr converts a unique-constraint violation on the idempotency key
// into ErrDuplicateKey so callers can tell a client retry apart from other
// persistence failures.
func mapInsertErr(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return models.ErrDuplicateKey
	}
	return err
}

// ListEnabledDinnerForms retrieves all dinner forms currently open for config
func (s *Store) ListEnabledDinnerForms(ctx context.Context) ([]models.DinnerForm, error) {
	var forms []models.DinnerForm
	err := s.db.SelectContext(ctx, &forms,
		"SELECT * FROM dinner_forms WHERE enabled ORDER BY id")
	return forms, err
}

// GetDinnerForm retrieves a dinner form by id
func (s *Store) GetDinnerForm(ctx context.Context, formID int64) (*models.DinnerForm, error) {
	var form models.DinnerForm
	err := s.db.GetContext(ctx, &form, "SELECT * FROM dinner_forms WHERE id = $1", formID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("dinner form not found: %d", formID)
	}
	if err != nil {
		return nil, err
	}
	return &form, nil
}

// ListMenuItems retrieves the configured menu for a dinner form
func (s *Store) ListMenuItems(ctx context.Context, formID int64) ([]models.DinnerMenuItem, error) {
	var items []models.DinnerMenuItem
	err := s.db.SelectContext(ctx, &items,
		"SELECT * FROM dinner_menu WHERE form_id = $1 ORDER BY id", formID)
	return items, err
}

// GetMerchItemsByIDs retrieves catalog entries for the given item ids
func (s *Store) GetMerchItemsByIDs(ctx context.Context, ids []int64) ([]models.MerchItem, error) {
	if len(ids) == 0 {
		return []models.MerchItem{}, nil
	}

	query, args, err := sqlx.In("SELECT * FROM merch_items WHERE id IN (?)", ids)
	if err != nil {
		return nil, err
	}
	query = s.db.Rebind(query)

	var items []models.MerchItem
	err = s.db.SelectContext(ctx, &items, query, args...)
	return items, err
}
