// Package postgres is a reputation.Store backed by the reputation_scores
// table (spec.md §6), with each record's violations and vouches kept as
// JSON columns on its row, grounded on
// internal/app/storage/postgres/store.go's raw-SQL-with-sqlx style.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/r3e-collective/dws-controlplane/internal/reputation"
)

// Store is a Postgres-backed reputation.Store.
type Store struct {
	db *sqlx.DB
}

// New wraps db as a reputation.Store.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

type row struct {
	Address            string    `db:"address"`
	AgeDays            int       `db:"age_days"`
	SuccessfulDeploys  int       `db:"successful_deploys"`
	StakedWei          int64     `db:"staked_wei"`
	IdentityVerified   bool      `db:"identity_verified"`
	VouchCount         int       `db:"vouch_count"`
	ViolationCount     int       `db:"violation_count"`
	CumulativeSeverity int       `db:"cumulative_severity"`
	Total              int       `db:"total"`
	Tier               string    `db:"tier"`
	ViolationsJSON     []byte    `db:"violations_json"`
	VouchesJSON        []byte    `db:"vouches_json"`
	FirstSeenAt        time.Time `db:"first_seen_at"`
	UpdatedAt          time.Time `db:"updated_at"`
}

func (r row) toDomain() (*reputation.Reputation, error) {
	rep := &reputation.Reputation{
		Address:            r.Address,
		AgeDays:            r.AgeDays,
		SuccessfulDeploys:  r.SuccessfulDeploys,
		StakedWei:          r.StakedWei,
		IdentityVerified:   r.IdentityVerified,
		VouchCount:         r.VouchCount,
		ViolationCount:     r.ViolationCount,
		CumulativeSeverity: r.CumulativeSeverity,
		Total:              r.Total,
		Tier:               reputation.Tier(r.Tier),
		FirstSeenAt:        r.FirstSeenAt,
		UpdatedAt:          r.UpdatedAt,
	}
	if len(r.ViolationsJSON) > 0 {
		if err := json.Unmarshal(r.ViolationsJSON, &rep.Violations); err != nil {
			return nil, fmt.Errorf("reputation/postgres: decode violations: %w", err)
		}
	}
	if len(r.VouchesJSON) > 0 {
		if err := json.Unmarshal(r.VouchesJSON, &rep.Vouches); err != nil {
			return nil, fmt.Errorf("reputation/postgres: decode vouches: %w", err)
		}
	}
	return rep, nil
}

// GetOrCreate returns address-lower's record, inserting a zeroed row on
// first sight (spec.md §6 "pk: address-lower").
func (s *Store) GetOrCreate(ctx context.Context, address string) (*reputation.Reputation, error) {
	address = strings.ToLower(address)
	var r row
	err := s.db.GetContext(ctx, &r, `SELECT * FROM reputation_scores WHERE address = $1`, address)
	if err == nil {
		return r.toDomain()
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("reputation/postgres: get: %w", err)
	}

	now := time.Now()
	fresh := &reputation.Reputation{Address: address, Tier: reputation.TierNew, FirstSeenAt: now, UpdatedAt: now}
	if err := s.Save(ctx, fresh); err != nil {
		return nil, err
	}
	return fresh, nil
}

// Save upserts r by address.
func (s *Store) Save(ctx context.Context, r *reputation.Reputation) error {
	violationsJSON, err := json.Marshal(r.Violations)
	if err != nil {
		return fmt.Errorf("reputation/postgres: encode violations: %w", err)
	}
	vouchesJSON, err := json.Marshal(r.Vouches)
	if err != nil {
		return fmt.Errorf("reputation/postgres: encode vouches: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO reputation_scores (
			address, age_days, successful_deploys, staked_wei, identity_verified,
			vouch_count, violation_count, cumulative_severity, total, tier,
			violations_json, vouches_json, first_seen_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		ON CONFLICT (address) DO UPDATE SET
			age_days = EXCLUDED.age_days,
			successful_deploys = EXCLUDED.successful_deploys,
			staked_wei = EXCLUDED.staked_wei,
			identity_verified = EXCLUDED.identity_verified,
			vouch_count = EXCLUDED.vouch_count,
			violation_count = EXCLUDED.violation_count,
			cumulative_severity = EXCLUDED.cumulative_severity,
			total = EXCLUDED.total,
			tier = EXCLUDED.tier,
			violations_json = EXCLUDED.violations_json,
			vouches_json = EXCLUDED.vouches_json,
			updated_at = EXCLUDED.updated_at
	`, r.Address, r.AgeDays, r.SuccessfulDeploys, r.StakedWei, r.IdentityVerified,
		r.VouchCount, r.ViolationCount, r.CumulativeSeverity, r.Total, string(r.Tier),
		violationsJSON, vouchesJSON, r.FirstSeenAt, r.UpdatedAt)
	if err != nil {
		return fmt.Errorf("reputation/postgres: save: %w", err)
	}
	return nil
}

var _ reputation.Store = (*Store)(nil)
