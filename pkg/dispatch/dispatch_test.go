package dispatch

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vylang/corec/pkg/abi"
	"github.com/vylang/corec/pkg/codegen"
	"github.com/vylang/corec/pkg/evm"
)

func sigMethods(n int) []abi.Method {
	methods := make([]abi.Method, n)
	for i := range methods {
		sig := fmt.Sprintf("foo%d()", i)
		methods[i] = abi.NewMethod(fmt.Sprintf("foo%d", i), sig, fmt.Sprintf("fn_foo%d", i), abi.Nonpayable, 0, 0, false)
	}

	return methods
}

func TestBuildSparseCoversEveryMethodExactlyOnce(t *testing.T) {
	methods := sigMethods(23)

	table := BuildSparse(methods)

	seen := make(map[uint32]bool)
	for _, b := range table.Buckets {
		for _, m := range b.Methods {
			require.False(t, seen[m.Selector], "selector dispatched twice")
			seen[m.Selector] = true
		}
	}

	assert.Len(t, seen, len(methods))

	lo := int(0.85 * float64(len(methods)))
	hi := int(1.15*float64(len(methods))) + 1
	assert.GreaterOrEqual(t, table.N, lo)
	assert.LessOrEqual(t, table.N, hi)
}

func TestBuildSparseBucketsOrderedBySelectorModN(t *testing.T) {
	methods := sigMethods(10)
	table := BuildSparse(methods)

	for id, b := range table.Buckets {
		for _, m := range b.Methods {
			assert.Equal(t, id, int(m.Selector)%table.N)
		}
	}
}

func TestBuildDenseFindsPerfectHashForEveryBucket(t *testing.T) {
	methods := sigMethods(17)

	table, err := BuildDense(methods)
	require.NoError(t, err)

	seen := make(map[uint32]bool)

	for _, b := range table.Buckets {
		occupied := make([]bool, len(b.Entries))

		for idx, m := range b.Entries {
			assert.False(t, occupied[idx])
			occupied[idx] = true
			require.False(t, seen[m.Selector])
			seen[m.Selector] = true
		}

		for _, o := range occupied {
			assert.True(t, o, "dense bucket must have no empty slots")
		}
	}

	assert.Len(t, seen, len(methods))
}

func TestSortedBucketIDsAscending(t *testing.T) {
	methods := sigMethods(15)
	table := BuildSparse(methods)

	ids := table.SortedBucketIDs()
	for i := 1; i < len(ids); i++ {
		assert.Less(t, ids[i-1], ids[i])
	}
}

func TestEmitSparseProducesJumpsToEveryPrologue(t *testing.T) {
	methods := sigMethods(6)
	e := codegen.NewEmitter(evm.Shanghai)
	table := BuildSparse(methods)

	prologueItems, labels := Prologues(e, methods, "fallback")
	items := EmitSparse(e, table, labels, "fallback")

	allLabels := make(map[string]bool)
	for _, it := range append(append([]codegen.Item{}, prologueItems...), items...) {
		if it.Kind == codegen.ItemLabel {
			allLabels[it.Label] = true
		}
	}

	for _, m := range methods {
		assert.True(t, allLabels[labels[m.Selector]], "missing prologue label for %s", m.Name)
	}
}

func TestEmitDenseProducesJumpsToEveryPrologue(t *testing.T) {
	methods := sigMethods(9)
	e := codegen.NewEmitter(evm.Shanghai)
	table, err := BuildDense(methods)
	require.NoError(t, err)

	prologueItems, labels := Prologues(e, methods, "fallback")
	items := EmitDense(e, table, labels, "fallback")

	allLabels := make(map[string]bool)
	for _, it := range append(append([]codegen.Item{}, prologueItems...), items...) {
		if it.Kind == codegen.ItemLabel {
			allLabels[it.Label] = true
		}
	}

	for _, m := range methods {
		assert.True(t, allLabels[labels[m.Selector]])
	}
}

func TestMethodPrologueEmitsPayableCheckForNonpayable(t *testing.T) {
	e := codegen.NewEmitter(evm.Shanghai)
	m := abi.NewMethod("foo", "foo()", "fn_foo", abi.Nonpayable, 0, 0, false)

	items := MethodPrologue(e, m, "fallback")

	var mn []string
	for _, it := range items {
		if it.Kind == codegen.ItemOpcode {
			mn = append(mn, it.Mnemonic)
		}
	}

	assert.Contains(t, mn, "CALLVALUE")
}

func TestMethodPrologueSkipsPayableCheckForPayable(t *testing.T) {
	e := codegen.NewEmitter(evm.Shanghai)
	m := abi.NewMethod("foo", "foo()", "fn_foo", abi.Payable, 0, 0, false)

	items := MethodPrologue(e, m, "fallback")

	var mn []string
	for _, it := range items {
		if it.Kind == codegen.ItemOpcode {
			mn = append(mn, it.Mnemonic)
		}
	}

	assert.NotContains(t, mn, "CALLVALUE")
}

func TestSelectorIsDeterministic(t *testing.T) {
	a := abi.Selector("transfer(address,uint256)")
	b := abi.Selector("transfer(address,uint256)")
	assert.Equal(t, a, b)
}

func TestBuildDenseEmptyInput(t *testing.T) {
	table, err := BuildDense(nil)
	require.NoError(t, err)
	assert.Equal(t, 1, table.N)
}
