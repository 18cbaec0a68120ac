package chain

import (
	"context"

	"github.com/kritz999/Kritika-Real-time-polygon/internal/domain/model"
)

// BlockHeader is the minimal header view the pipeline needs: identity plus
// timestamp. Both the live subscription and catch-up header fetches produce it.
type BlockHeader struct {
	Number    int64
	Hash      string
	Timestamp int64
}

// RawLog is a chain log entry prior to decoding. Hex payloads are kept as
// received; numeric positions are already parsed.
type RawLog struct {
	Address     string
	Topics      []string
	Data        string
	TxHash      string
	LogIndex    int64
	BlockNumber int64
}

// Adapter abstracts chain access so the pipeline core stays chain-agnostic.
// Only one implementation exists today (Polygon); the interface is the seam
// for future chains.
type Adapter interface {
	// Chain returns the chain identifier (e.g. "polygon").
	Chain() string

	// HeadBlockNumber returns the latest block number on chain.
	HeadBlockNumber(ctx context.Context) (int64, error)

	// BlockHeader fetches the header for a block. Returns nil if the block
	// is not (yet) known to the node.
	BlockHeader(ctx context.Context, blockNumber int64) (*BlockHeader, error)

	// TransferLogs fetches ERC-20 Transfer logs for one block, restricted to
	// the token contract and to logs whose sender or recipient topic is in
	// the watched set. Results are deduplicated by (tx_hash, log_index) and
	// ordered by log index.
	TransferLogs(ctx context.Context, blockNumber int64, token string, set model.AddressSet) ([]RawLog, error)

	// SubscribeNewHeads delivers new block headers on out until ctx is done.
	// Delivery is at-least-once; duplicates and reconnect-induced gaps are
	// the caller's concern.
	SubscribeNewHeads(ctx context.Context, out chan<- BlockHeader) error
}
