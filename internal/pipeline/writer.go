package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kritz999/Kritika-Real-time-polygon/internal/alert"
	"github.com/kritz999/Kritika-Real-time-polygon/internal/domain/model"
	"github.com/kritz999/Kritika-Real-time-polygon/internal/metrics"
	"github.com/kritz999/Kritika-Real-time-polygon/internal/netflow"
	"github.com/kritz999/Kritika-Real-time-polygon/internal/store"
)

// SnapshotPublisher pushes committed snapshots to an external feed.
// Publishing is best-effort and never blocks the commit path.
type SnapshotPublisher interface {
	Publish(ctx context.Context, snapshot *model.NetflowSnapshot) error
}

// Writer is the single consumer of the work channel. All DB writes and all
// accumulator mutations happen here, so per-block effects are serialized
// without locking anywhere else in the pipeline.
type Writer struct {
	store       store.BlockWriter
	accumulator *netflow.Accumulator
	publisher   SnapshotPublisher
	alerter     alert.Alerter
	health      *Health
	logger      *slog.Logger
}

func NewWriter(st store.BlockWriter, accumulator *netflow.Accumulator, publisher SnapshotPublisher, alerter alert.Alerter, health *Health, logger *slog.Logger) *Writer {
	if alerter == nil {
		alerter = &alert.NoopAlerter{}
	}
	return &Writer{
		store:       st,
		accumulator: accumulator,
		publisher:   publisher,
		alerter:     alerter,
		health:      health,
		logger:      logger.With("component", "writer"),
	}
}

// Run consumes work until the channel closes or a commit fails. A returned
// error is terminal for the pipeline. Cancellation does not abandon work the
// producer already handed over: items buffered in the channel are drained and
// committed before Run returns.
func (w *Writer) Run(ctx context.Context, in <-chan *Work) error {
	for {
		// Checked before the select: when cancellation and new work race,
		// the drain path must win so shutdown stops accepting fresh items.
		if ctx.Err() != nil {
			return w.drain(ctx, in)
		}
		select {
		case <-ctx.Done():
			return w.drain(ctx, in)
		case work, ok := <-in:
			if !ok {
				return nil
			}
			metrics.PipelineChannelDepth.Set(float64(len(in)))
			if err := w.handle(ctx, work); err != nil {
				return err
			}
		}
	}
}

// drain commits items already queued at cancellation. It never waits for new
// work to arrive: only what is buffered in the channel is processed.
func (w *Writer) drain(ctx context.Context, in <-chan *Work) error {
	for {
		select {
		case work, ok := <-in:
			if !ok {
				return ctx.Err()
			}
			if err := w.handle(ctx, work); err != nil {
				return err
			}
		default:
			return ctx.Err()
		}
	}
}

func (w *Writer) handle(ctx context.Context, work *Work) error {
	if err := w.process(ctx, work); err != nil {
		w.health.RecordFailure()
		return err
	}
	if w.health.RecordSuccess(work.Block.BlockNumber) {
		w.sendAlert(ctx, alert.Alert{
			Type:    alert.AlertTypeRecovery,
			Chain:   "polygon",
			Title:   "Pipeline recovered",
			Message: fmt.Sprintf("Processing resumed at block %d", work.Block.BlockNumber),
		})
	}
	return nil
}

// process commits one block: the value is computed against the current
// accumulator state, persisted atomically, and only then applied in memory.
// A crash between commit and advance is safe; startup re-seeds from the DB.
func (w *Writer) process(ctx context.Context, work *Work) error {
	blockNumber := work.Block.BlockNumber

	next, clamped, err := w.accumulator.Preview(work.Delta)
	if err != nil {
		w.sendAlert(ctx, alert.Alert{
			Type:    alert.AlertTypeOverflow,
			Chain:   "polygon",
			Title:   "Cumulative netflow overflow",
			Message: err.Error(),
			Fields:  map[string]string{"block_number": fmt.Sprintf("%d", blockNumber)},
		})
		return fmt.Errorf("apply delta for block %d: %w", blockNumber, err)
	}

	snapshot := &model.NetflowSnapshot{
		Token:       w.accumulator.Token(),
		BlockNumber: blockNumber,
		Value:       next.String(),
		UpdatedAt:   time.Now().Unix(),
	}

	// A commit in flight finishes even if shutdown arrives mid-transaction;
	// the transaction prevents a half-applied block, but an aborted commit
	// would discard work the channel already handed over.
	commitCtx := context.WithoutCancel(ctx)

	start := time.Now()
	result, err := w.store.CommitBlock(commitCtx, work.Block, work.Transfers, snapshot)
	if err != nil {
		return fmt.Errorf("commit block %d: %w", blockNumber, err)
	}
	metrics.WriterCommitLatency.Observe(time.Since(start).Seconds())
	metrics.WriterBlocksCommitted.Inc()
	metrics.WriterTransfersWritten.Add(float64(result.TransfersInserted))
	metrics.WriterDuplicateTransfers.Add(float64(result.TransfersDuplicate))

	if err := w.accumulator.Advance(blockNumber, next); err != nil {
		return fmt.Errorf("advance accumulator: %w", err)
	}

	if clamped {
		metrics.AccumulatorClamps.Inc()
		w.logger.Warn("cumulative netflow clamped at zero",
			"block_number", blockNumber,
			"delta", work.Delta.String(),
		)
		w.sendAlert(ctx, alert.Alert{
			Type:    alert.AlertTypeClamp,
			Chain:   "polygon",
			Title:   "Cumulative netflow clamped",
			Message: "Block outflow exceeded the tracked cumulative value",
			Fields: map[string]string{
				"block_number": fmt.Sprintf("%d", blockNumber),
				"delta":        work.Delta.String(),
			},
		})
	}

	if w.publisher != nil {
		if err := w.publisher.Publish(commitCtx, w.accumulator.Snapshot()); err != nil {
			w.logger.Warn("snapshot publish failed", "block_number", blockNumber, "error", err)
		}
	}

	w.logger.Info("block committed",
		"block_number", blockNumber,
		"transfers", result.TransfersInserted,
		"duplicates", result.TransfersDuplicate,
		"cumulative_netflow", snapshot.Value,
	)
	return nil
}

func (w *Writer) sendAlert(ctx context.Context, a alert.Alert) {
	if err := w.alerter.Send(ctx, a); err != nil {
		w.logger.Warn("alert dispatch failed", "type", a.Type, "error", err)
	}
}
