package polygon

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/kritz999/Kritika-Real-time-polygon/internal/chain"
	"github.com/kritz999/Kritika-Real-time-polygon/internal/chain/polygon/rpc"
	"github.com/kritz999/Kritika-Real-time-polygon/internal/chain/ratelimit"
	"github.com/kritz999/Kritika-Real-time-polygon/internal/domain/model"
)

// TransferTopic is keccak256("Transfer(address,address,uint256)").
const TransferTopic = "0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef"

type Adapter struct {
	client     rpc.RPCClient
	subscriber *rpc.HeadSubscriber
	limiter    *ratelimit.Limiter
	logger     *slog.Logger
}

var _ chain.Adapter = (*Adapter)(nil)

// NewAdapter builds a Polygon adapter over HTTP JSON-RPC plus a WebSocket
// newHeads subscription. limiter may be nil to disable RPC throttling.
func NewAdapter(httpURL, wsURL string, limiter *ratelimit.Limiter, logger *slog.Logger) *Adapter {
	log := logger.With("chain", "polygon")
	return &Adapter{
		client:     rpc.NewClient(httpURL, log),
		subscriber: rpc.NewHeadSubscriber(wsURL, log),
		limiter:    limiter,
		logger:     log,
	}
}

func (a *Adapter) Chain() string {
	return "polygon"
}

func (a *Adapter) HeadBlockNumber(ctx context.Context) (int64, error) {
	if err := a.wait(ctx); err != nil {
		return 0, err
	}
	return a.client.GetBlockNumber(ctx)
}

func (a *Adapter) BlockHeader(ctx context.Context, blockNumber int64) (*chain.BlockHeader, error) {
	if err := a.wait(ctx); err != nil {
		return nil, err
	}
	header, err := a.client.GetBlockHeaderByNumber(ctx, blockNumber)
	if err != nil {
		return nil, err
	}
	if header == nil {
		return nil, nil
	}
	return convertHeader(*header)
}

// TransferLogs queries logs for a single block with address = token and
// topic0 = Transfer. The watched-set restriction needs two queries (topic1 in
// set, topic2 in set) because a single filter ANDs topic positions; results
// are merged and deduplicated by (tx_hash, log_index).
func (a *Adapter) TransferLogs(ctx context.Context, blockNumber int64, token string, set model.AddressSet) ([]chain.RawLog, error) {
	if set.Len() == 0 {
		return nil, nil
	}

	topics := set.Topics()
	topicValues := make([]interface{}, 0, len(topics))
	for _, t := range topics {
		topicValues = append(topicValues, t)
	}

	blockHex := rpc.FormatHexInt64(blockNumber)
	filters := []rpc.LogFilter{
		{
			FromBlock: blockHex,
			ToBlock:   blockHex,
			Address:   strings.ToLower(token),
			Topics:    []interface{}{TransferTopic, topicValues},
		},
		{
			FromBlock: blockHex,
			ToBlock:   blockHex,
			Address:   strings.ToLower(token),
			Topics:    []interface{}{TransferTopic, nil, topicValues},
		},
	}

	type logKey struct {
		txHash   string
		logIndex int64
	}
	seen := make(map[logKey]struct{})
	var merged []chain.RawLog

	for _, filter := range filters {
		if err := a.wait(ctx); err != nil {
			return nil, err
		}
		logs, err := a.client.GetLogs(ctx, filter)
		if err != nil {
			return nil, fmt.Errorf("get transfer logs for block %d: %w", blockNumber, err)
		}
		for _, lg := range logs {
			if lg == nil || lg.Removed {
				continue
			}
			raw, err := convertLog(lg)
			if err != nil {
				return nil, fmt.Errorf("convert log in block %d: %w", blockNumber, err)
			}
			key := logKey{txHash: raw.TxHash, logIndex: raw.LogIndex}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			merged = append(merged, raw)
		}
	}

	// Log index is unique within a block, so it is a total order here.
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].LogIndex < merged[j].LogIndex
	})

	return merged, nil
}

func (a *Adapter) SubscribeNewHeads(ctx context.Context, out chan<- chain.BlockHeader) error {
	return a.subscriber.Run(ctx, func(raw rpc.BlockHeader) error {
		header, err := convertHeader(raw)
		if err != nil {
			a.logger.Warn("skipping malformed head notification", "error", err)
			return nil
		}
		select {
		case out <- *header:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
}

func (a *Adapter) wait(ctx context.Context) error {
	if a.limiter == nil {
		return nil
	}
	return a.limiter.Wait(ctx)
}

func convertHeader(raw rpc.BlockHeader) (*chain.BlockHeader, error) {
	number, err := rpc.ParseHexInt64(raw.Number)
	if err != nil {
		return nil, fmt.Errorf("parse header number: %w", err)
	}
	timestamp, err := rpc.ParseHexInt64(raw.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("parse header timestamp: %w", err)
	}
	return &chain.BlockHeader{
		Number:    number,
		Hash:      strings.ToLower(raw.Hash),
		Timestamp: timestamp,
	}, nil
}

func convertLog(lg *rpc.Log) (chain.RawLog, error) {
	logIndex, err := rpc.ParseHexInt64(lg.LogIndex)
	if err != nil {
		return chain.RawLog{}, fmt.Errorf("parse log index: %w", err)
	}
	blockNumber, err := rpc.ParseHexInt64(lg.BlockNumber)
	if err != nil {
		return chain.RawLog{}, fmt.Errorf("parse log block number: %w", err)
	}
	return chain.RawLog{
		Address:     strings.ToLower(lg.Address),
		Topics:      lg.Topics,
		Data:        lg.Data,
		TxHash:      strings.ToLower(lg.TransactionHash),
		LogIndex:    logIndex,
		BlockNumber: blockNumber,
	}, nil
}
