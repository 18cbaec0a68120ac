package netflow

import (
	"errors"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kritz999/Kritika-Real-time-polygon/internal/domain/model"
	"github.com/kritz999/Kritika-Real-time-polygon/internal/metrics"
)

// ErrOverflow means the cumulative value no longer fits in 256 bits. The
// stored representation cannot hold it, so processing must halt rather than
// persist a truncated number.
var ErrOverflow = errors.New("cumulative netflow exceeds 256 bits")

var maxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// ApplyDelta returns current + delta, clamped at zero on underflow. The clamp
// covers watched addresses that spent tokens acquired before indexing began.
// Returns ErrOverflow if the result exceeds the uint256 range; clamped reports
// whether the floor was hit. Inputs are not mutated.
func ApplyDelta(current, delta *big.Int) (next *big.Int, clamped bool, err error) {
	next = new(big.Int).Add(current, delta)
	if next.Sign() < 0 {
		return big.NewInt(0), true, nil
	}
	if next.Cmp(maxUint256) > 0 {
		return nil, false, fmt.Errorf("%w: %s", ErrOverflow, next.String())
	}
	return next, false, nil
}

// Accumulator holds the in-memory cumulative netflow for one token. Only the
// writer goroutine mutates it; readers take the lock-free snapshot. Advance is
// called only after the corresponding DB transaction commits, so the in-memory
// value never runs ahead of what is durable.
type Accumulator struct {
	mu          sync.Mutex
	token       string
	blockNumber int64
	value       *big.Int
	snapshot    atomic.Pointer[model.NetflowSnapshot]
}

// NewAccumulator seeds the accumulator from the persisted state. value must be
// a non-negative decimal string; blockNumber is the last block already folded
// into it (0 for a fresh deployment).
func NewAccumulator(token string, blockNumber int64, value string) (*Accumulator, error) {
	v, ok := new(big.Int).SetString(value, 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("invalid cumulative netflow seed %q", value)
	}
	a := &Accumulator{
		token:       token,
		blockNumber: blockNumber,
		value:       v,
	}
	a.publish(time.Now().Unix())
	return a, nil
}

func (a *Accumulator) Token() string {
	return a.token
}

// BlockNumber returns the last block reflected in the cumulative value.
func (a *Accumulator) BlockNumber() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.blockNumber
}

// Value returns a copy of the current cumulative value.
func (a *Accumulator) Value() *big.Int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return new(big.Int).Set(a.value)
}

// Preview computes the cumulative value after applying delta without mutating
// state. The writer persists the previewed value first, then calls Advance.
func (a *Accumulator) Preview(delta *big.Int) (next *big.Int, clamped bool, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return ApplyDelta(a.value, delta)
}

// Advance moves the accumulator to the committed value for blockNumber and
// refreshes the published snapshot. Block numbers must be strictly increasing.
func (a *Accumulator) Advance(blockNumber int64, value *big.Int) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if blockNumber <= a.blockNumber {
		return fmt.Errorf("block %d does not advance past %d", blockNumber, a.blockNumber)
	}
	if value.Sign() < 0 {
		return fmt.Errorf("negative cumulative value for block %d", blockNumber)
	}
	a.blockNumber = blockNumber
	a.value = new(big.Int).Set(value)
	a.publish(time.Now().Unix())
	metrics.AccumulatorBlockNumber.Set(float64(blockNumber))
	return nil
}

// Snapshot returns the last published state. Safe for concurrent readers.
func (a *Accumulator) Snapshot() *model.NetflowSnapshot {
	return a.snapshot.Load()
}

func (a *Accumulator) publish(updatedAt int64) {
	a.snapshot.Store(&model.NetflowSnapshot{
		Token:       a.token,
		BlockNumber: a.blockNumber,
		Value:       a.value.String(),
		UpdatedAt:   updatedAt,
	})
}
