package decoder

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kritz999/Kritika-Real-time-polygon/internal/chain"
	"github.com/kritz999/Kritika-Real-time-polygon/internal/chain/polygon"
	"github.com/kritz999/Kritika-Real-time-polygon/internal/domain/model"
)

const (
	testToken     = "0x455e53cbb86018ac2b8092fdcd39d8444affc3f6"
	testSender    = "0x1111111111111111111111111111111111111111"
	testRecipient = "0x2222222222222222222222222222222222222222"
)

func word(value string) string {
	return strings.Repeat("0", 64-len(value)) + value
}

func validLog() chain.RawLog {
	return chain.RawLog{
		Address: testToken,
		Topics: []string{
			polygon.TransferTopic,
			model.AddressToTopic(testSender),
			model.AddressToTopic(testRecipient),
		},
		Data:        "0x" + word("de0b6b3a7640000"), // 1e18
		TxHash:      "0xabc123",
		LogIndex:    7,
		BlockNumber: 1000,
	}
}

func TestDecodeTransfer_Valid(t *testing.T) {
	transfer, err := DecodeTransfer(validLog(), testToken)
	require.NoError(t, err)

	assert.Equal(t, int64(1000), transfer.BlockNumber)
	assert.Equal(t, "0xabc123", transfer.TxHash)
	assert.Equal(t, int64(7), transfer.LogIndex)
	assert.Equal(t, testToken, transfer.Token)
	assert.Equal(t, testSender, transfer.Sender)
	assert.Equal(t, testRecipient, transfer.Recipient)
	assert.Equal(t, "1000000000000000000", transfer.Value)
	assert.False(t, transfer.IsInflow)
	assert.False(t, transfer.IsOutflow)
	assert.NotEqual(t, transfer.ID.String(), "00000000-0000-0000-0000-000000000000")
}

func TestDecodeTransfer_CaseInsensitiveToken(t *testing.T) {
	raw := validLog()
	raw.Address = strings.ToUpper(strings.TrimPrefix(testToken, "0x"))
	raw.Address = "0x" + raw.Address

	transfer, err := DecodeTransfer(raw, testToken)
	require.NoError(t, err)
	assert.Equal(t, testToken, transfer.Token)
}

func TestDecodeTransfer_MaxUint256(t *testing.T) {
	raw := validLog()
	raw.Data = "0x" + strings.Repeat("f", 64)

	transfer, err := DecodeTransfer(raw, testToken)
	require.NoError(t, err)

	expected := "115792089237316195423570985008687907853269984665640564039457584007913129639935"
	assert.Equal(t, expected, transfer.Value)
}

func TestDecodeTransfer_ExtraDataWords(t *testing.T) {
	// Amount is the last 32 bytes even when the payload carries extra words.
	raw := validLog()
	raw.Data = "0x" + word("ff") + word("2a")

	transfer, err := DecodeTransfer(raw, testToken)
	require.NoError(t, err)
	assert.Equal(t, "42", transfer.Value)
}

func TestDecodeTransfer_ZeroValue(t *testing.T) {
	raw := validLog()
	raw.Data = "0x" + word("0")

	transfer, err := DecodeTransfer(raw, testToken)
	require.NoError(t, err)
	assert.Equal(t, "0", transfer.Value)
}

func TestDecodeTransfer_Malformed(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(*chain.RawLog)
	}{
		{
			name:   "wrong emitter",
			mutate: func(l *chain.RawLog) { l.Address = testSender },
		},
		{
			name:   "missing indexed topics",
			mutate: func(l *chain.RawLog) { l.Topics = l.Topics[:1] },
		},
		{
			name: "wrong event signature",
			mutate: func(l *chain.RawLog) {
				l.Topics[0] = "0x" + strings.Repeat("0", 64)
			},
		},
		{
			name:   "short data payload",
			mutate: func(l *chain.RawLog) { l.Data = "0x00ff" },
		},
		{
			name:   "non-hex data payload",
			mutate: func(l *chain.RawLog) { l.Data = "0x" + strings.Repeat("zz", 32) },
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			raw := validLog()
			tc.mutate(&raw)

			_, err := DecodeTransfer(raw, testToken)
			require.Error(t, err)

			var decodeErr *DecodeError
			assert.ErrorAs(t, err, &decodeErr)
		})
	}
}
