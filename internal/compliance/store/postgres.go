package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/lib/pq"

	"spout/internal/compliance/models"
	"spout/pkg/platform/sentinel"
)

// Postgres persists wallet registry entries in PostgreSQL.
type Postgres struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed wallet entry store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// EnsureSchema creates the registry table when it does not exist yet.
func (s *Postgres) EnsureSchema(ctx context.Context) error {
	const schema = `
		CREATE TABLE IF NOT EXISTS registry_entries (
			wallet TEXT PRIMARY KEY,
			identity TEXT NOT NULL,
			country INT NOT NULL
		);
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure registry schema: %w", err)
	}
	return nil
}

// Create registers a wallet entry.
func (s *Postgres) Create(ctx context.Context, entry models.Entry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO registry_entries (wallet, identity, country) VALUES ($1, $2, $3)`,
		entry.Wallet.Hex(), entry.Identity.Hex(), int32(entry.Country),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create registry entry: %w", err)
	}
	return nil
}

// Get returns the entry for a wallet.
func (s *Postgres) Get(ctx context.Context, wallet common.Address) (models.Entry, error) {
	var (
		identity string
		country  int32
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT identity, country FROM registry_entries WHERE wallet = $1`,
		wallet.Hex(),
	).Scan(&identity, &country)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Entry{}, sentinel.ErrNotFound
		}
		return models.Entry{}, fmt.Errorf("find registry entry: %w", err)
	}
	return models.Entry{
		Wallet:   wallet,
		Identity: common.HexToAddress(identity),
		Country:  uint16(country),
	}, nil
}

// Update replaces an existing entry.
func (s *Postgres) Update(ctx context.Context, entry models.Entry) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE registry_entries SET identity = $2, country = $3 WHERE wallet = $1`,
		entry.Wallet.Hex(), entry.Identity.Hex(), int32(entry.Country),
	)
	if err != nil {
		return fmt.Errorf("update registry entry: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update registry entry: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// Delete removes a wallet's entry.
func (s *Postgres) Delete(ctx context.Context, wallet common.Address) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM registry_entries WHERE wallet = $1`,
		wallet.Hex(),
	)
	if err != nil {
		return fmt.Errorf("delete registry entry: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete registry entry: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// Contains reports whether the wallet is registered.
func (s *Postgres) Contains(ctx context.Context, wallet common.Address) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM registry_entries WHERE wallet = $1)`,
		wallet.Hex(),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check registry entry: %w", err)
	}
	return exists, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
