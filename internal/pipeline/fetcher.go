package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/kritz999/Kritika-Real-time-polygon/internal/chain"
	"github.com/kritz999/Kritika-Real-time-polygon/internal/circuitbreaker"
	"github.com/kritz999/Kritika-Real-time-polygon/internal/domain/model"
	"github.com/kritz999/Kritika-Real-time-polygon/internal/metrics"
	"github.com/kritz999/Kritika-Real-time-polygon/internal/pipeline/decoder"
	"github.com/kritz999/Kritika-Real-time-polygon/internal/pipeline/retry"
)

// Work carries the complete decoded effects of one block to the writer: the
// block itself, its classified transfers, and the signed net delta they apply
// to the cumulative netflow.
type Work struct {
	Block     *model.Block
	Transfers []*model.Transfer
	Delta     *big.Int
}

// Fetcher pulls one block's header and transfer logs, decodes and classifies
// them. Transient RPC failures are retried with backoff behind a circuit
// breaker; malformed logs are skipped, never retried.
type Fetcher struct {
	adapter chain.Adapter
	breaker *circuitbreaker.Breaker
	policy  retry.Policy
	token   string
	watched model.AddressSet
	logger  *slog.Logger
}

func NewFetcher(adapter chain.Adapter, breaker *circuitbreaker.Breaker, policy retry.Policy, token string, watched model.AddressSet, logger *slog.Logger) *Fetcher {
	return &Fetcher{
		adapter: adapter,
		breaker: breaker,
		policy:  policy,
		token:   token,
		watched: watched,
		logger:  logger.With("component", "fetcher"),
	}
}

// FetchBlock resolves blockNumber into Work. The error is terminal: transient
// failures have already been retried to exhaustion.
func (f *Fetcher) FetchBlock(ctx context.Context, blockNumber int64) (*Work, error) {
	start := time.Now()

	var header *chain.BlockHeader
	var rawLogs []chain.RawLog

	err := retry.Do(ctx, f.policy, func(ctx context.Context) error {
		if f.breaker != nil {
			if err := f.breaker.Allow(); err != nil {
				return retry.Transient(err)
			}
		}

		h, err := f.adapter.BlockHeader(ctx, blockNumber)
		if err != nil {
			f.recordOutcome(err)
			return err
		}
		if h == nil {
			// The HTTP node can lag the subscription by a moment.
			f.recordOutcome(nil)
			return retry.Transient(fmt.Errorf("block %d not yet available", blockNumber))
		}

		logs, err := f.adapter.TransferLogs(ctx, blockNumber, f.token, f.watched)
		if err != nil {
			f.recordOutcome(err)
			return err
		}

		f.recordOutcome(nil)
		header = h
		rawLogs = logs
		return nil
	}, func(attempt int, err error) {
		metrics.FetcherRetries.Inc()
		f.logger.Warn("retrying block fetch",
			"block_number", blockNumber,
			"attempt", attempt,
			"error", err,
		)
	})
	if err != nil {
		metrics.FetcherErrors.Inc()
		return nil, fmt.Errorf("fetch block %d: %w", blockNumber, err)
	}

	metrics.FetcherLogsFetched.Add(float64(len(rawLogs)))
	metrics.FetchLatency.Observe(time.Since(start).Seconds())

	work := &Work{
		Block: &model.Block{
			BlockNumber: header.Number,
			BlockHash:   header.Hash,
			TsUnix:      header.Timestamp,
		},
		Delta: new(big.Int),
	}

	for _, raw := range rawLogs {
		transfer, err := decoder.DecodeTransfer(raw, f.token)
		if err != nil {
			metrics.DecoderErrors.Inc()
			f.logger.Warn("skipping malformed log", "block_number", blockNumber, "error", err)
			continue
		}

		c := model.Classify(transfer, f.watched)
		if c.Drop {
			// The topic filter should have excluded this log.
			metrics.ClassifierWarnings.Inc()
			f.logger.Warn("transfer touches no watched address",
				"tx_hash", transfer.TxHash,
				"log_index", transfer.LogIndex,
			)
			continue
		}

		transfer.IsInflow = c.IsInflow
		transfer.IsOutflow = c.IsOutflow
		work.Transfers = append(work.Transfers, transfer)
		work.Delta.Add(work.Delta, c.Delta)
	}

	return work, nil
}

func (f *Fetcher) recordOutcome(err error) {
	if f.breaker == nil {
		return
	}
	if err == nil {
		f.breaker.RecordSuccess()
		return
	}
	if errors.Is(err, context.Canceled) {
		return
	}
	f.breaker.RecordFailure()
}
