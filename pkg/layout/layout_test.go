package layout

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vylang/corec/pkg/ast"
	"github.com/vylang/corec/pkg/evm"
	"github.com/vylang/corec/pkg/source"
)

func variable(name string, region ast.Region, words, bytes int, hashmap bool) *ast.VariableDecl {
	return &ast.VariableDecl{
		Name: name,
		Info: ast.VarInfo{
			Name:      name,
			Region:    region,
			Type:      ast.TypeInfo{Name: typeName(words, bytes, hashmap), StorageSizeInWords: words, SizeInBytes: bytes},
			IsHashMap: hashmap,
		},
	}
}

func typeName(words, bytes int, hashmap bool) string {
	if hashmap {
		return "HashMap[address, uint256]"
	}

	if bytes > 0 {
		return "immutable"
	}

	return "uint256"
}

func nonreentrantFunc(name string) *ast.FunctionDecl {
	return &ast.FunctionDecl{Name: name, External: true, Nonreentrant: true}
}

func TestAllocateBasicStorage(t *testing.T) {
	m := &ast.Module{
		Decls: []ast.Decl{
			nonreentrantFunc("public_foo1"),
			variable("foo", ast.RegionStorage, 1, 0, true),
			variable("arr", ast.RegionStorage, 4, 0, false),
			variable("bar", ast.RegionStorage, 1, 0, false),
		},
	}

	res, err := Allocate(m, evm.Shanghai, nil)
	require.Nil(t, err)

	key := res.Storage["$.nonreentrant_key"]
	require.NotNil(t, key)
	assert.Equal(t, big.NewInt(0), key.StorageLeaf.Slot)

	assert.Equal(t, big.NewInt(1), res.Storage["foo"].StorageLeaf.Slot)
	assert.Equal(t, 1, res.Storage["foo"].StorageLeaf.NSlots)
	assert.Equal(t, big.NewInt(2), res.Storage["arr"].StorageLeaf.Slot)
	assert.Equal(t, big.NewInt(6), res.Storage["bar"].StorageLeaf.Slot)
}

func TestAllocateNoReentrantFunctionsOmitsKey(t *testing.T) {
	m := &ast.Module{
		Decls: []ast.Decl{
			variable("name", ast.RegionStorage, 2, 0, false),
		},
	}

	res, err := Allocate(m, evm.Shanghai, nil)
	require.Nil(t, err)

	assert.Nil(t, res.Storage["$.nonreentrant_key"])
	assert.Equal(t, big.NewInt(1), res.Storage["name"].StorageLeaf.Slot)
}

func TestAllocateTransientLockOnCancun(t *testing.T) {
	m := &ast.Module{
		Decls: []ast.Decl{
			variable("some_local", ast.RegionTransient, 1, 0, false),
		},
	}

	res, err := Allocate(m, evm.Cancun, nil)
	require.Nil(t, err)

	assert.Nil(t, res.Storage["$.nonreentrant_key"])
	assert.Nil(t, res.Transient["$.nonreentrant_key"])
	assert.Equal(t, big.NewInt(1), res.Transient["some_local"].StorageLeaf.Slot)
}

func TestAllocateModuleNesting(t *testing.T) {
	lib := &ast.Module{
		Decls: []ast.Decl{
			variable("supply", ast.RegionStorage, 1, 0, false),
		},
	}

	root := &ast.Module{
		Decls: []ast.Decl{
			variable("counter", ast.RegionStorage, 1, 0, false),
			&ast.ImportDecl{Edge: &ast.ImportEdge{Alias: "a_library", Target: lib}},
			&ast.InitializesDecl{Target: lib},
			variable("counter2", ast.RegionStorage, 1, 0, false),
		},
	}

	res, err := Allocate(root, evm.Shanghai, nil)
	require.Nil(t, err)

	assert.Equal(t, big.NewInt(1), res.Storage["counter"].StorageLeaf.Slot)
	nested := res.Storage["a_library"]
	require.NotNil(t, nested)
	assert.Equal(t, big.NewInt(2), nested.Children["supply"].StorageLeaf.Slot)
	assert.Equal(t, big.NewInt(3), res.Storage["counter2"].StorageLeaf.Slot)
}

func TestAllocateCodeImmutables(t *testing.T) {
	m := &ast.Module{
		Decls: []ast.Decl{
			variable("SYMBOL", ast.RegionCode, 0, 64, true),
			variable("DECIMALS", ast.RegionCode, 0, 32, true),
		},
	}

	res, err := Allocate(m, evm.Shanghai, nil)
	require.Nil(t, err)

	assert.EqualValues(t, 0, res.Code["SYMBOL"].CodeLeaf.Offset)
	assert.EqualValues(t, 64, res.Code["DECIMALS"].CodeLeaf.Offset)
}

func TestAllocateOverrideHonorsExplicitSlots(t *testing.T) {
	m := &ast.Module{
		Decls: []ast.Decl{
			variable("a", ast.RegionStorage, 1, 0, false),
			variable("b", ast.RegionStorage, 1, 0, false),
		},
	}

	override := map[string]OverrideEntry{
		"a": {Slot: big.NewInt(1)},
		"b": {Slot: big.NewInt(0)},
	}

	res, err := Allocate(m, evm.Shanghai, override)
	require.Nil(t, err)

	assert.Equal(t, big.NewInt(1), res.Storage["a"].StorageLeaf.Slot)
	assert.Equal(t, big.NewInt(0), res.Storage["b"].StorageLeaf.Slot)
}

func TestAllocateOverrideCollision(t *testing.T) {
	m := &ast.Module{
		Decls: []ast.Decl{
			variable("name", ast.RegionStorage, 3, 0, false),
			variable("symbol", ast.RegionStorage, 2, 0, false),
		},
	}

	override := map[string]OverrideEntry{
		"name":   {Slot: big.NewInt(0)},
		"symbol": {Slot: big.NewInt(1)},
	}

	_, err := Allocate(m, evm.Shanghai, override)
	require.NotNil(t, err)
	assert.Equal(t, source.StorageLayoutException, err.Kind())
}

func TestAllocateOverrideOutOfBounds(t *testing.T) {
	m := &ast.Module{
		Decls: []ast.Decl{
			variable("x", ast.RegionStorage, 2, 0, false),
		},
	}

	maxMinusOne := new(big.Int).Sub(maxSlot, big.NewInt(1))
	override := map[string]OverrideEntry{"x": {Slot: maxMinusOne}}

	_, err := Allocate(m, evm.Shanghai, override)
	require.NotNil(t, err)
	assert.Equal(t, source.StorageLayoutException, err.Kind())
}

func TestAllocateOverrideMissingEntry(t *testing.T) {
	m := &ast.Module{
		Decls: []ast.Decl{
			variable("name", ast.RegionStorage, 1, 0, false),
			variable("symbol", ast.RegionStorage, 1, 0, false),
		},
	}

	override := map[string]OverrideEntry{"name": {Slot: big.NewInt(0)}}

	_, err := Allocate(m, evm.Shanghai, override)
	require.NotNil(t, err)
	assert.Equal(t, source.StorageLayoutException, err.Kind())
}

func TestAllocateOverrideMissingNonreentrantKey(t *testing.T) {
	m := &ast.Module{
		Decls: []ast.Decl{
			nonreentrantFunc("foo"),
		},
	}

	_, err := Allocate(m, evm.Shanghai, map[string]OverrideEntry{})
	require.NotNil(t, err)
	assert.Equal(t, source.StorageLayoutException, err.Kind())
}
