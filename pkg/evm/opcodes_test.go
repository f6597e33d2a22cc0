package evm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPush0GatedByShanghai(t *testing.T) {
	assert.False(t, Available("PUSH0", Paris))
	assert.True(t, Available("PUSH0", Shanghai))
	assert.True(t, Available("PUSH0", Cancun))
}

func TestTransientStorageGatedByCancun(t *testing.T) {
	for _, op := range []string{"TLOAD", "TSTORE", "MCOPY"} {
		assert.False(t, Available(op, Shanghai), op)
		assert.True(t, Available(op, Cancun), op)
	}
}

func TestBaseFeeGatedByLondon(t *testing.T) {
	assert.True(t, Available("BASEFEE", London))
}

func TestPushMnemonic(t *testing.T) {
	assert.Equal(t, "PUSH0", Push(0))
	assert.Equal(t, "PUSH2", Push(2))
	assert.Equal(t, "PUSH32", Push(32))
}

func TestLookupByte(t *testing.T) {
	op, ok := LookupByte(0x01)
	assert.True(t, ok)
	assert.Equal(t, "ADD", op.Mnemonic)
}
