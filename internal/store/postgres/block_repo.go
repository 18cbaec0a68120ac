package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kritz999/Kritika-Real-time-polygon/internal/domain/model"
	"github.com/kritz999/Kritika-Real-time-polygon/internal/store"
)

type BlockRepo struct {
	db *DB
}

func NewBlockRepo(db *DB) *BlockRepo {
	return &BlockRepo{db: db}
}

// InsertTx records a processed block. A replay of an already recorded block
// is a silent no-op.
func (r *BlockRepo) InsertTx(ctx context.Context, tx *sql.Tx, block *model.Block) (store.InsertResult, error) {
	result, err := tx.ExecContext(ctx, `
		INSERT INTO blocks (block_number, block_hash, ts_unix)
		VALUES ($1, $2, $3)
		ON CONFLICT (block_number) DO NOTHING
	`, block.BlockNumber, block.BlockHash, block.TsUnix)
	if err != nil {
		return store.InsertResult{}, fmt.Errorf("insert block %d: %w", block.BlockNumber, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return store.InsertResult{}, fmt.Errorf("insert block %d rows affected: %w", block.BlockNumber, err)
	}
	return store.InsertResult{Inserted: rows > 0}, nil
}

func (r *BlockRepo) GetLatest(ctx context.Context) (*model.Block, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	var b model.Block
	err := r.db.QueryRowContext(ctx, `
		SELECT block_number, block_hash, ts_unix
		FROM blocks
		ORDER BY block_number DESC
		LIMIT 1
	`).Scan(&b.BlockNumber, &b.BlockHash, &b.TsUnix)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get latest block: %w", err)
	}
	return &b, nil
}
