package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kritz999/Kritika-Real-time-polygon/internal/domain/model"
)

type NetflowRepo struct {
	db *DB
}

func NewNetflowRepo(db *DB) *NetflowRepo {
	return &NetflowRepo{db: db}
}

func (r *NetflowRepo) Get(ctx context.Context, token string) (*model.NetflowSnapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	var s model.NetflowSnapshot
	err := r.db.QueryRowContext(ctx, `
		SELECT token, block_number, value::text, EXTRACT(EPOCH FROM updated_at)::bigint
		FROM cumulative_netflow
		WHERE token = $1
	`, token).Scan(&s.Token, &s.BlockNumber, &s.Value, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get cumulative netflow: %w", err)
	}
	return &s, nil
}

// UpdateTx replaces the cumulative value as part of a per-block commit.
func (r *NetflowRepo) UpdateTx(ctx context.Context, tx *sql.Tx, snapshot *model.NetflowSnapshot) error {
	result, err := tx.ExecContext(ctx, `
		UPDATE cumulative_netflow
		SET block_number = $2, value = $3::numeric, updated_at = now()
		WHERE token = $1
	`, snapshot.Token, snapshot.BlockNumber, snapshot.Value)
	if err != nil {
		return fmt.Errorf("update cumulative netflow: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update cumulative netflow rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("cumulative netflow row for %s does not exist", snapshot.Token)
	}
	return nil
}

// EnsureExists seeds the row at (block 0, value 0) if it is not there yet.
func (r *NetflowRepo) EnsureExists(ctx context.Context, token string) error {
	ctx, cancel := context.WithTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO cumulative_netflow (token, block_number, value)
		VALUES ($1, 0, 0)
		ON CONFLICT (token) DO NOTHING
	`, token)
	if err != nil {
		return fmt.Errorf("ensure cumulative netflow exists: %w", err)
	}
	return nil
}
