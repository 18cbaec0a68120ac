package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kritz999/Kritika-Real-time-polygon/internal/domain/model"
	"github.com/kritz999/Kritika-Real-time-polygon/internal/store"
)

// Store bundles the repos behind the per-block commit. One commit covers the
// block row, its transfers, the cumulative netflow, and the watermark in a
// single transaction.
type Store struct {
	db        *DB
	blocks    store.BlockRepository
	transfers store.TransferRepository
	netflow   store.NetflowRepository
	state     store.StateRepository
}

var _ store.BlockWriter = (*Store)(nil)

func NewStore(db *DB) *Store {
	return &Store{
		db:        db,
		blocks:    NewBlockRepo(db),
		transfers: NewTransferRepo(db),
		netflow:   NewNetflowRepo(db),
		state:     NewStateRepo(db),
	}
}

func (s *Store) Blocks() store.BlockRepository       { return s.blocks }
func (s *Store) Transfers() store.TransferRepository { return s.transfers }
func (s *Store) Netflow() store.NetflowRepository    { return s.netflow }
func (s *Store) State() store.StateRepository        { return s.state }

// CommitBlock persists the full effects of one block atomically. Replays are
// safe: already present rows are skipped and the netflow row is simply set to
// the same value again.
func (s *Store) CommitBlock(ctx context.Context, block *model.Block, transfers []*model.Transfer, snapshot *model.NetflowSnapshot) (store.CommitResult, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return store.CommitResult{}, fmt.Errorf("begin commit for block %d: %w", block.BlockNumber, err)
	}
	defer func() { _ = tx.Rollback() }()

	var result store.CommitResult

	blockRes, err := s.blocks.InsertTx(ctx, tx, block)
	if err != nil {
		return store.CommitResult{}, err
	}
	result.BlockInserted = blockRes.Inserted

	for _, transfer := range transfers {
		res, err := s.transfers.InsertTx(ctx, tx, transfer)
		if err != nil {
			return store.CommitResult{}, err
		}
		if res.Inserted {
			result.TransfersInserted++
		} else {
			result.TransfersDuplicate++
		}
	}

	if err := s.netflow.UpdateTx(ctx, tx, snapshot); err != nil {
		return store.CommitResult{}, err
	}

	if err := s.state.SetLastProcessedBlockTx(ctx, tx, block.BlockNumber); err != nil {
		return store.CommitResult{}, err
	}

	if err := tx.Commit(); err != nil {
		return store.CommitResult{}, fmt.Errorf("commit block %d: %w", block.BlockNumber, err)
	}
	return result, nil
}
