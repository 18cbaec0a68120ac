package store

import (
	"context"
	"database/sql"

	"github.com/kritz999/Kritika-Real-time-polygon/internal/domain/model"
)

// TxBeginner abstracts the ability to begin a database transaction.
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// InsertResult describes the outcome of an idempotent insert.
type InsertResult struct {
	Inserted bool // First insertion; false means the row was already present.
}

// BlockRepository provides access to processed block metadata.
type BlockRepository interface {
	InsertTx(ctx context.Context, tx *sql.Tx, block *model.Block) (InsertResult, error)
	GetLatest(ctx context.Context) (*model.Block, error)
}

// TransferRepository provides access to decoded transfer rows.
type TransferRepository interface {
	InsertTx(ctx context.Context, tx *sql.Tx, transfer *model.Transfer) (InsertResult, error)
	GetByBlock(ctx context.Context, blockNumber int64) ([]model.Transfer, error)
}

// NetflowRepository provides access to the cumulative netflow row, keyed by
// token contract address.
type NetflowRepository interface {
	Get(ctx context.Context, token string) (*model.NetflowSnapshot, error)
	UpdateTx(ctx context.Context, tx *sql.Tx, snapshot *model.NetflowSnapshot) error
	EnsureExists(ctx context.Context, token string) error
}

// StateRepository tracks the last fully processed block.
type StateRepository interface {
	GetLastProcessedBlock(ctx context.Context) (int64, bool, error)
	SetLastProcessedBlockTx(ctx context.Context, tx *sql.Tx, blockNumber int64) error
}

// CommitResult reports what a per-block commit actually wrote.
type CommitResult struct {
	BlockInserted      bool
	TransfersInserted  int
	TransfersDuplicate int
}

// BlockWriter persists the full effects of one block atomically: the block
// row, its transfers, the updated cumulative netflow, and the processing
// watermark all land in one transaction or not at all.
type BlockWriter interface {
	CommitBlock(ctx context.Context, block *model.Block, transfers []*model.Transfer, snapshot *model.NetflowSnapshot) (CommitResult, error)
}

// SnapshotReader serves the query surface when no in-memory snapshot exists.
type SnapshotReader interface {
	Get(ctx context.Context, token string) (*model.NetflowSnapshot, error)
}
