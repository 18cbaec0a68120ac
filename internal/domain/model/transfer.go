package model

import (
	"math/big"
	"time"

	"github.com/google/uuid"
)

// Transfer is a decoded ERC-20 Transfer event attributed to a watched address
// set. Identity key is (tx_hash, log_index); a second insert with the same key
// is a silent no-op. Rows are immutable once written.
type Transfer struct {
	ID          uuid.UUID `db:"id"`
	BlockNumber int64     `db:"block_number"`
	TxHash      string    `db:"tx_hash"`
	LogIndex    int64     `db:"log_index"`
	Token       string    `db:"token"`
	Sender      string    `db:"sender"`
	Recipient   string    `db:"recipient"`
	Value       string    `db:"value"` // uint256 as decimal string
	IsInflow    bool      `db:"is_inflow"`
	IsOutflow   bool      `db:"is_outflow"`
	CreatedAt   time.Time `db:"created_at"`
}

// ValueInt parses the stored decimal value. Returns false if the stored
// string is not a valid non-negative integer.
func (t *Transfer) ValueInt() (*big.Int, bool) {
	v, ok := new(big.Int).SetString(t.Value, 10)
	if !ok || v.Sign() < 0 {
		return nil, false
	}
	return v, true
}
