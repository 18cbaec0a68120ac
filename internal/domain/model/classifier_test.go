package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	watchedA = "0xf977814e90da44bfa03b6295a0616a897441acec"
	watchedB = "0x505e71695e9bc45943c58adec1650577bca68fd9"
	outsider = "0x1111111111111111111111111111111111111111"
	stranger = "0x2222222222222222222222222222222222222222"
)

func watchedSet() AddressSet {
	return NewAddressSet([]string{watchedA, watchedB})
}

func transfer(sender, recipient, value string) *Transfer {
	return &Transfer{
		TxHash:    "0xabc",
		LogIndex:  0,
		Sender:    sender,
		Recipient: recipient,
		Value:     value,
	}
}

func TestClassify_DecisionTable(t *testing.T) {
	testCases := []struct {
		name          string
		sender        string
		recipient     string
		wantInflow    bool
		wantOutflow   bool
		wantDelta     string
		wantDrop      bool
	}{
		{
			name:       "inflow when only recipient watched",
			sender:     outsider,
			recipient:  watchedA,
			wantInflow: true,
			wantDelta:  "100",
		},
		{
			name:        "outflow when only sender watched",
			sender:      watchedA,
			recipient:   outsider,
			wantOutflow: true,
			wantDelta:   "-100",
		},
		{
			name:        "internal transfer has both flags and zero delta",
			sender:      watchedA,
			recipient:   watchedB,
			wantInflow:  true,
			wantOutflow: true,
			wantDelta:   "0",
		},
		{
			name:      "neither side watched is dropped",
			sender:    outsider,
			recipient: stranger,
			wantDrop:  true,
			wantDelta: "0",
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			c := Classify(transfer(tc.sender, tc.recipient, "100"), watchedSet())
			assert.Equal(t, tc.wantInflow, c.IsInflow)
			assert.Equal(t, tc.wantOutflow, c.IsOutflow)
			assert.Equal(t, tc.wantDrop, c.Drop)
			require.NotNil(t, c.Delta)
			assert.Equal(t, tc.wantDelta, c.Delta.String())
		})
	}
}

func TestClassify_CaseInsensitive(t *testing.T) {
	c := Classify(transfer(outsider, "0xF977814E90DA44BFA03B6295A0616A897441ACEC", "42"), watchedSet())
	assert.True(t, c.IsInflow)
	assert.Equal(t, "42", c.Delta.String())
}

func TestClassify_EmptySetDropsEverything(t *testing.T) {
	empty := NewAddressSet(nil)
	c := Classify(transfer(outsider, stranger, "100"), empty)
	assert.True(t, c.Drop)
	assert.Equal(t, "0", c.Delta.String())
}

func TestClassify_WideValue(t *testing.T) {
	// A value well past uint64 must survive classification losslessly.
	wide := "115792089237316195423570985008687907853269984665640564039457584007913129639935"
	c := Classify(transfer(outsider, watchedA, wide), watchedSet())
	assert.True(t, c.IsInflow)
	assert.Equal(t, wide, c.Delta.String())

	c = Classify(transfer(watchedA, outsider, wide), watchedSet())
	assert.True(t, c.IsOutflow)
	assert.Equal(t, "-"+wide, c.Delta.String())
}

func TestClassify_DoesNotMutateInput(t *testing.T) {
	tr := transfer(outsider, watchedA, "7")
	_ = Classify(tr, watchedSet())
	assert.False(t, tr.IsInflow)
	assert.False(t, tr.IsOutflow)
}
