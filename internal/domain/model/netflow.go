package model

// NetflowSnapshot is a consistent point-in-time view of the cumulative
// netflow ledger: the last block whose effects are reflected and the running
// clamped value. The writer publishes a fresh snapshot after every commit;
// readers never observe a torn (block, value) pair.
type NetflowSnapshot struct {
	Token       string `json:"-" db:"token"`
	BlockNumber int64  `json:"block_number" db:"block_number"`
	Value       string `json:"cumulative_netflow_raw" db:"value"` // uint256 decimal string, clamped at zero
	UpdatedAt   int64  `json:"updated_at_unix" db:"updated_at_unix"`
}
