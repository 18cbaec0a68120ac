package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kritz999/Kritika-Real-time-polygon/internal/domain/model"
	"github.com/kritz999/Kritika-Real-time-polygon/internal/store"
)

type TransferRepo struct {
	db *DB
}

func NewTransferRepo(db *DB) *TransferRepo {
	return &TransferRepo{db: db}
}

// InsertTx writes one decoded transfer. Identity is (tx_hash, log_index);
// a duplicate insert leaves the existing row untouched.
func (r *TransferRepo) InsertTx(ctx context.Context, tx *sql.Tx, transfer *model.Transfer) (store.InsertResult, error) {
	result, err := tx.ExecContext(ctx, `
		INSERT INTO erc20_transfers
			(id, block_number, tx_hash, log_index, token, sender, recipient, value, is_inflow, is_outflow)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (tx_hash, log_index) DO NOTHING
	`,
		transfer.ID, transfer.BlockNumber, transfer.TxHash, transfer.LogIndex,
		transfer.Token, transfer.Sender, transfer.Recipient, transfer.Value,
		transfer.IsInflow, transfer.IsOutflow,
	)
	if err != nil {
		return store.InsertResult{}, fmt.Errorf("insert transfer %s[%d]: %w", transfer.TxHash, transfer.LogIndex, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return store.InsertResult{}, fmt.Errorf("insert transfer %s[%d] rows affected: %w", transfer.TxHash, transfer.LogIndex, err)
	}
	return store.InsertResult{Inserted: rows > 0}, nil
}

func (r *TransferRepo) GetByBlock(ctx context.Context, blockNumber int64) ([]model.Transfer, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, block_number, tx_hash, log_index, token, sender, recipient, value, is_inflow, is_outflow, created_at
		FROM erc20_transfers
		WHERE block_number = $1
		ORDER BY log_index ASC
	`, blockNumber)
	if err != nil {
		return nil, fmt.Errorf("get transfers for block %d: %w", blockNumber, err)
	}
	defer rows.Close()

	var transfers []model.Transfer
	for rows.Next() {
		var t model.Transfer
		if err := rows.Scan(
			&t.ID, &t.BlockNumber, &t.TxHash, &t.LogIndex,
			&t.Token, &t.Sender, &t.Recipient, &t.Value,
			&t.IsInflow, &t.IsOutflow, &t.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan transfer: %w", err)
		}
		transfers = append(transfers, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transfers: %w", err)
	}
	return transfers, nil
}
