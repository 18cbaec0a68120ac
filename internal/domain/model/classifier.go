package model

import "math/big"

// Classification is the directional verdict for a single transfer relative to
// the watched address set.
//
//	sender∈set  recipient∈set  inflow  outflow  delta
//	no          yes            true    false    +value
//	yes         no             false   true     -value
//	yes         yes            true    true     0
//	no          no             —       —        dropped
type Classification struct {
	IsInflow  bool
	IsOutflow bool
	Delta     *big.Int
	// Drop marks a transfer touching no watched address. Such logs should
	// have been excluded by the upstream topic filter; observing one is a
	// non-fatal filter-mismatch warning and the row is not persisted.
	Drop bool
}

// Classify applies the direction decision table to a decoded transfer. It is
// pure: no I/O, no mutation of the input. The transfer's direction flags are
// not consulted, only sender/recipient membership.
func Classify(t *Transfer, set AddressSet) Classification {
	senderWatched := set.Contains(t.Sender)
	recipientWatched := set.Contains(t.Recipient)

	if !senderWatched && !recipientWatched {
		return Classification{Drop: true, Delta: new(big.Int)}
	}

	value, ok := t.ValueInt()
	if !ok {
		value = new(big.Int)
	}

	switch {
	case recipientWatched && !senderWatched:
		return Classification{IsInflow: true, Delta: value}
	case senderWatched && !recipientWatched:
		return Classification{IsOutflow: true, Delta: new(big.Int).Neg(value)}
	default:
		// Internal transfer: recorded with both flags, zero delta.
		return Classification{IsInflow: true, IsOutflow: true, Delta: new(big.Int)}
	}
}
