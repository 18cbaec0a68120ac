package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
)

const lastProcessedBlockKey = "last_processed_block"

// StateRepo persists pipeline recovery state as generic key/value rows.
type StateRepo struct {
	db *DB
}

func NewStateRepo(db *DB) *StateRepo {
	return &StateRepo{db: db}
}

// GetLastProcessedBlock returns the watermark. exists is false before the
// first block is committed.
func (r *StateRepo) GetLastProcessedBlock(ctx context.Context) (int64, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	var value string
	err := r.db.QueryRowContext(ctx, `
		SELECT value FROM processing_state WHERE key = $1
	`, lastProcessedBlockKey).Scan(&value)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("get last processed block: %w", err)
	}

	blockNumber, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("parse last processed block %q: %w", value, err)
	}
	return blockNumber, true, nil
}

func (r *StateRepo) SetLastProcessedBlockTx(ctx context.Context, tx *sql.Tx, blockNumber int64) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO processing_state (key, value)
		VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET
			value = EXCLUDED.value,
			updated_at = now()
	`, lastProcessedBlockKey, strconv.FormatInt(blockNumber, 10))
	if err != nil {
		return fmt.Errorf("set last processed block: %w", err)
	}
	return nil
}
