package decoder

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/google/uuid"

	"github.com/kritz999/Kritika-Real-time-polygon/internal/chain"
	"github.com/kritz999/Kritika-Real-time-polygon/internal/chain/polygon"
	"github.com/kritz999/Kritika-Real-time-polygon/internal/domain/model"
)

// DecodeError marks a log that cannot be decoded as an ERC-20 Transfer.
// Malformed logs are skipped with a warning, never retried.
type DecodeError struct {
	TxHash   string
	LogIndex int64
	Reason   string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode log %s[%d]: %s", e.TxHash, e.LogIndex, e.Reason)
}

// DecodeTransfer converts a raw log into a Transfer. The log must be a
// Transfer event emitted by token: topic0 is the Transfer signature, topics 1
// and 2 carry the padded sender and recipient, and the last 32 bytes of data
// carry the big-endian uint256 value. Classification flags are left unset.
func DecodeTransfer(raw chain.RawLog, token string) (*model.Transfer, error) {
	if !strings.EqualFold(raw.Address, token) {
		return nil, &DecodeError{TxHash: raw.TxHash, LogIndex: raw.LogIndex,
			Reason: fmt.Sprintf("emitter %s is not the tracked token", raw.Address)}
	}
	if len(raw.Topics) != 3 {
		return nil, &DecodeError{TxHash: raw.TxHash, LogIndex: raw.LogIndex,
			Reason: fmt.Sprintf("expected 3 topics, got %d", len(raw.Topics))}
	}
	if !strings.EqualFold(raw.Topics[0], polygon.TransferTopic) {
		return nil, &DecodeError{TxHash: raw.TxHash, LogIndex: raw.LogIndex,
			Reason: "topic0 is not the Transfer signature"}
	}

	value, err := decodeValue(raw.Data)
	if err != nil {
		return nil, &DecodeError{TxHash: raw.TxHash, LogIndex: raw.LogIndex, Reason: err.Error()}
	}

	return &model.Transfer{
		ID:          uuid.New(),
		BlockNumber: raw.BlockNumber,
		TxHash:      strings.ToLower(raw.TxHash),
		LogIndex:    raw.LogIndex,
		Token:       strings.ToLower(token),
		Sender:      model.TopicToAddress(raw.Topics[1]),
		Recipient:   model.TopicToAddress(raw.Topics[2]),
		Value:       value.String(),
	}, nil
}

// decodeValue reads the uint256 amount from the data payload. ERC-20 Transfer
// data is a single ABI word, but some tokens append extra words; the amount is
// always the last 32 bytes.
func decodeValue(data string) (*big.Int, error) {
	hexPart := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(data)), "0x")
	raw, err := hex.DecodeString(hexPart)
	if err != nil {
		return nil, fmt.Errorf("data is not valid hex: %w", err)
	}
	if len(raw) < 32 {
		return nil, fmt.Errorf("data payload is %d bytes, need at least 32", len(raw))
	}
	return new(big.Int).SetBytes(raw[len(raw)-32:]), nil
}
