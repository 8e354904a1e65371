package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/lib/pq"

	"spout/internal/identity/models"
	"spout/internal/platform/ethcrypto"
	"spout/pkg/platform/sentinel"
)

// Postgres persists identity aggregates in PostgreSQL. Keys and claims live
// in child tables and are rewritten as a unit on every mutation, which keeps
// the store faithful to the aggregate's all-or-nothing semantics.
type Postgres struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed identity store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// EnsureSchema creates the identity tables when they do not exist yet.
func (s *Postgres) EnsureSchema(ctx context.Context) error {
	const schema = `
		CREATE TABLE IF NOT EXISTS identities (
			address TEXT PRIMARY KEY
		);
		CREATE TABLE IF NOT EXISTS identity_keys (
			identity_address TEXT NOT NULL REFERENCES identities(address) ON DELETE CASCADE,
			key_id BYTEA NOT NULL,
			key_type BIGINT NOT NULL,
			purposes BIGINT[] NOT NULL,
			PRIMARY KEY (identity_address, key_id)
		);
		CREATE TABLE IF NOT EXISTS identity_claims (
			identity_address TEXT NOT NULL REFERENCES identities(address) ON DELETE CASCADE,
			claim_id BYTEA NOT NULL,
			topic BIGINT NOT NULL,
			scheme BIGINT NOT NULL,
			issuer TEXT NOT NULL,
			signature BYTEA NOT NULL,
			data_hash BYTEA NOT NULL,
			uri TEXT NOT NULL,
			position BIGINT NOT NULL,
			PRIMARY KEY (identity_address, claim_id)
		);
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure identity schema: %w", err)
	}
	return nil
}

// Create registers a new identity aggregate.
func (s *Postgres) Create(ctx context.Context, identity *models.Identity) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create identity: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO identities (address) VALUES ($1)`,
		identity.Address().Hex(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create identity: %w", err)
	}
	if err := writeAggregate(ctx, tx, identity); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create identity: %w", err)
	}
	return nil
}

// Get loads the aggregate for an address.
func (s *Postgres) Get(ctx context.Context, address common.Address) (*models.Identity, error) {
	return loadAggregate(ctx, s.db, address)
}

// Mutate applies fn to the aggregate inside one transaction. The identity row
// is locked for the duration so concurrent mutations serialize.
func (s *Postgres) Mutate(ctx context.Context, address common.Address, fn func(*models.Identity) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin mutate identity: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var locked string
	err = tx.QueryRowContext(ctx,
		`SELECT address FROM identities WHERE address = $1 FOR UPDATE`,
		address.Hex(),
	).Scan(&locked)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return sentinel.ErrNotFound
		}
		return fmt.Errorf("lock identity: %w", err)
	}

	identity, err := loadAggregate(ctx, tx, address)
	if err != nil {
		return err
	}
	if err := fn(identity); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `DELETE FROM identity_keys WHERE identity_address = $1`, address.Hex())
	if err != nil {
		return fmt.Errorf("clear identity keys: %w", err)
	}
	_, err = tx.ExecContext(ctx, `DELETE FROM identity_claims WHERE identity_address = $1`, address.Hex())
	if err != nil {
		return fmt.Errorf("clear identity claims: %w", err)
	}
	if err := writeAggregate(ctx, tx, identity); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit mutate identity: %w", err)
	}
	return nil
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func loadAggregate(ctx context.Context, q querier, address common.Address) (*models.Identity, error) {
	var found string
	err := q.QueryRowContext(ctx,
		`SELECT address FROM identities WHERE address = $1`,
		address.Hex(),
	).Scan(&found)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find identity: %w", err)
	}

	keys, err := loadKeys(ctx, q, address)
	if err != nil {
		return nil, err
	}
	claims, err := loadClaims(ctx, q, address)
	if err != nil {
		return nil, err
	}
	return models.Rehydrate(address, keys, claims), nil
}

func loadKeys(ctx context.Context, q querier, address common.Address) ([]models.Key, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT key_id, key_type, purposes FROM identity_keys WHERE identity_address = $1`,
		address.Hex(),
	)
	if err != nil {
		return nil, fmt.Errorf("load identity keys: %w", err)
	}
	defer rows.Close()

	var keys []models.Key
	for rows.Next() {
		var (
			keyID    []byte
			keyType  int64
			purposes pq.Int64Array
		)
		if err := rows.Scan(&keyID, &keyType, &purposes); err != nil {
			return nil, fmt.Errorf("scan identity key: %w", err)
		}
		key := models.Key{Type: models.KeyType(keyType)}
		copy(key.ID[:], keyID)
		ps := make([]models.Purpose, 0, len(purposes))
		for _, p := range purposes {
			ps = append(ps, models.Purpose(p))
		}
		key.Purposes = models.NewPurposeSet(ps...)
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

func loadClaims(ctx context.Context, q querier, address common.Address) ([]models.Claim, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT topic, scheme, issuer, signature, data_hash, uri
		 FROM identity_claims WHERE identity_address = $1 ORDER BY position`,
		address.Hex(),
	)
	if err != nil {
		return nil, fmt.Errorf("load identity claims: %w", err)
	}
	defer rows.Close()

	var claims []models.Claim
	for rows.Next() {
		var (
			topic     int64
			scheme    int64
			issuer    string
			signature []byte
			dataHash  []byte
			uri       string
		)
		if err := rows.Scan(&topic, &scheme, &issuer, &signature, &dataHash, &uri); err != nil {
			return nil, fmt.Errorf("scan identity claim: %w", err)
		}
		claim := models.Claim{
			Topic:     models.ClaimTopic(topic),
			Scheme:    ethcrypto.SignatureScheme(scheme),
			Issuer:    common.HexToAddress(issuer),
			Signature: signature,
			URI:       uri,
		}
		copy(claim.DataHash[:], dataHash)
		claims = append(claims, claim)
	}
	return claims, rows.Err()
}

func writeAggregate(ctx context.Context, tx *sql.Tx, identity *models.Identity) error {
	for _, key := range identity.Keys() {
		purposes := make(pq.Int64Array, 0, 4)
		for _, p := range key.Purposes.List() {
			purposes = append(purposes, int64(p))
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO identity_keys (identity_address, key_id, key_type, purposes)
			 VALUES ($1, $2, $3, $4)`,
			identity.Address().Hex(), key.ID[:], int64(key.Type), purposes,
		)
		if err != nil {
			return fmt.Errorf("write identity key: %w", err)
		}
	}
	for i, claim := range identity.Claims() {
		claimID := claim.ID()
		_, err := tx.ExecContext(ctx,
			`INSERT INTO identity_claims
			 (identity_address, claim_id, topic, scheme, issuer, signature, data_hash, uri, position)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			identity.Address().Hex(), claimID[:], int64(claim.Topic), int64(claim.Scheme),
			claim.Issuer.Hex(), claim.Signature, claim.DataHash[:], claim.URI, int64(i),
		)
		if err != nil {
			return fmt.Errorf("write identity claim: %w", err)
		}
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
