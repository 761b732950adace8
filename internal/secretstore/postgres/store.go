// Package postgres is a secretstore.Repository backed by the secrets/
// secret_audit_events tables (spec.md §6), grounded on
// internal/app/storage/postgres/store.go's raw-SQL-with-sqlx style.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/r3e-collective/dws-controlplane/internal/secretstore"
)

// Store is a Postgres-backed secretstore.Repository.
type Store struct {
	db *sqlx.DB
}

// New wraps db as a secretstore.Repository.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

type secretRow struct {
	ID         string    `db:"id"`
	DAOID      string    `db:"dao_id"`
	Name       string    `db:"name"`
	K          int       `db:"k"`
	N          int       `db:"n"`
	Version    int       `db:"version"`
	SharesJSON []byte    `db:"shares_json"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

func (r secretRow) toDomain() (*secretstore.Secret, error) {
	s := &secretstore.Secret{
		ID: r.ID, DAOID: r.DAOID, Name: r.Name, K: r.K, N: r.N,
		Version: r.Version, CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt,
	}
	if len(r.SharesJSON) > 0 {
		if err := json.Unmarshal(r.SharesJSON, &s.Shares); err != nil {
			return nil, fmt.Errorf("secretstore/postgres: decode shares: %w", err)
		}
	}
	return s, nil
}

func (s *Store) Create(ctx context.Context, secret *secretstore.Secret) error {
	return s.upsert(ctx, secret, true)
}

func (s *Store) Update(ctx context.Context, secret *secretstore.Secret) error {
	return s.upsert(ctx, secret, false)
}

func (s *Store) upsert(ctx context.Context, secret *secretstore.Secret, insertOnly bool) error {
	sharesJSON, err := json.Marshal(secret.Shares)
	if err != nil {
		return fmt.Errorf("secretstore/postgres: encode shares: %w", err)
	}

	if insertOnly {
		_, err = s.db.ExecContext(ctx, `
			INSERT INTO secrets (id, dao_id, name, k, n, version, shares_json, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		`, secret.ID, secret.DAOID, secret.Name, secret.K, secret.N, secret.Version,
			sharesJSON, secret.CreatedAt, secret.UpdatedAt)
	} else {
		_, err = s.db.ExecContext(ctx, `
			UPDATE secrets SET
				k = $3, n = $4, version = $5, shares_json = $6, updated_at = $7
			WHERE dao_id = $1 AND name = $2
		`, secret.DAOID, secret.Name, secret.K, secret.N, secret.Version, sharesJSON, secret.UpdatedAt)
	}
	if err != nil {
		return fmt.Errorf("secretstore/postgres: save: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, daoID, name string) (*secretstore.Secret, error) {
	var r secretRow
	err := s.db.GetContext(ctx, &r, `SELECT * FROM secrets WHERE dao_id = $1 AND name = $2`, daoID, name)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("secretstore/postgres: secret %s/%s not found", daoID, name)
	}
	if err != nil {
		return nil, fmt.Errorf("secretstore/postgres: get: %w", err)
	}
	return r.toDomain()
}

func (s *Store) Delete(ctx context.Context, daoID, name string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM secrets WHERE dao_id = $1 AND name = $2`, daoID, name)
	if err != nil {
		return fmt.Errorf("secretstore/postgres: delete: %w", err)
	}
	return nil
}

func (s *Store) AppendAudit(ctx context.Context, event secretstore.AuditEvent) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO secret_audit_events (sequence, secret_id, operation, actor, occurred_at, prev_hash, hash)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, event.Sequence, event.SecretID, event.Operation, event.Actor, event.Timestamp, event.PrevHash, event.Hash)
	if err != nil {
		return fmt.Errorf("secretstore/postgres: append audit: %w", err)
	}
	return nil
}

func (s *Store) LastAudit(ctx context.Context, secretID string) (secretstore.AuditEvent, error) {
	var e auditRow
	err := s.db.GetContext(ctx, &e, `
		SELECT * FROM secret_audit_events WHERE secret_id = $1 ORDER BY sequence DESC LIMIT 1
	`, secretID)
	if err != nil {
		return secretstore.AuditEvent{}, fmt.Errorf("secretstore/postgres: last audit: %w", err)
	}
	return e.toDomain(), nil
}

func (s *Store) AuditTrail(ctx context.Context, secretID string) ([]secretstore.AuditEvent, error) {
	var rows []auditRow
	if err := s.db.SelectContext(ctx, &rows, `
		SELECT * FROM secret_audit_events WHERE secret_id = $1 ORDER BY sequence ASC
	`, secretID); err != nil {
		return nil, fmt.Errorf("secretstore/postgres: audit trail: %w", err)
	}
	events := make([]secretstore.AuditEvent, len(rows))
	for i, r := range rows {
		events[i] = r.toDomain()
	}
	return events, nil
}

type auditRow struct {
	Sequence  int64     `db:"sequence"`
	SecretID  string    `db:"secret_id"`
	Operation string    `db:"operation"`
	Actor     string    `db:"actor"`
	OccuredAt time.Time `db:"occurred_at"`
	PrevHash  string    `db:"prev_hash"`
	Hash      string    `db:"hash"`
}

func (r auditRow) toDomain() secretstore.AuditEvent {
	return secretstore.AuditEvent{
		Sequence: r.Sequence, SecretID: r.SecretID, Operation: r.Operation,
		Actor: r.Actor, Timestamp: r.OccuredAt, PrevHash: r.PrevHash, Hash: r.Hash,
	}
}

var _ secretstore.Repository = (*Store)(nil)
