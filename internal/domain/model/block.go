package model

// Block is an observed chain block. Rows are append-only: written once by the
// writer, never mutated or deleted.
type Block struct {
	BlockNumber int64  `db:"block_number"`
	BlockHash   string `db:"block_hash"`
	TsUnix      int64  `db:"ts_unix"`
}
