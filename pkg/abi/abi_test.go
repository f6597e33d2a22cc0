package abi

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSelectorMatchesKnownTransferSignature(t *testing.T) {
	// keccak256("transfer(address,uint256)")[:4] == 0xa9059cbb, the
	// well-known ERC-20 transfer selector.
	assert.Equal(t, uint32(0xa9059cbb), Selector("transfer(address,uint256)"))
}

func TestMethodIDMatchesSelector(t *testing.T) {
	sel := Selector("foo()")
	id := MethodID("foo()")

	assert.Equal(t, sel, uint32(id[0])<<24|uint32(id[1])<<16|uint32(id[2])<<8|uint32(id[3]))
}

func TestJSONEntrySplitsTopLevelInputTypes(t *testing.T) {
	m := NewMethod("transfer", "transfer(address,uint256)", "fn_transfer", Nonpayable, 2, 0, false)

	entry := m.JSONEntry()

	assert.Equal(t, "function", entry.Type)
	assert.Equal(t, "nonpayable", entry.StateMutability)
	assert.Len(t, entry.Inputs, 2)
	assert.Equal(t, "address", entry.Inputs[0].Type)
	assert.Equal(t, "uint256", entry.Inputs[1].Type)
}

func TestJSONEntryHandlesNoArgMethod(t *testing.T) {
	m := NewMethod("totalSupply", "totalSupply()", "fn_totalSupply", View, 0, 0, false)

	entry := m.JSONEntry()

	assert.Empty(t, entry.Inputs)
}

func TestJSONEntryDoesNotSplitNestedTupleCommas(t *testing.T) {
	m := NewMethod("foo", "foo((uint256,uint256),bool)", "fn_foo", Nonpayable, 3, 0, false)

	entry := m.JSONEntry()

	assert.Len(t, entry.Inputs, 2)
	assert.Equal(t, "(uint256,uint256)", entry.Inputs[0].Type)
	assert.Equal(t, "bool", entry.Inputs[1].Type)
}

func TestWithOutputsAttachesReturnTypes(t *testing.T) {
	m := NewMethod("balanceOf", "balanceOf(address)", "fn_balanceOf", View, 1, 0, false).
		WithOutputs([]string{"uint256"})

	entry := m.JSONEntry()

	require := assert.New(t)
	require.Len(entry.Outputs, 1)
	require.Equal("uint256", entry.Outputs[0].Type)
}

func TestMethodIdentifiersFormatsAsHex(t *testing.T) {
	methods := []Method{
		NewMethod("foo", "foo()", "fn_foo", Nonpayable, 0, 0, false),
	}

	ids := MethodIdentifiers(methods)

	assert.Equal(t, "0x"+hex32(Selector("foo()")), ids["foo()"])
}

func hex32(v uint32) string {
	const hexDigits = "0123456789abcdef"

	b := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		b[i] = hexDigits[v&0xf]
		v >>= 4
	}

	return string(b)
}
