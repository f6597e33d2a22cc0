package preparse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vylang/corec/pkg/source"
)

func parse(t *testing.T, src string) Result {
	t.Helper()

	f := source.NewFile(0, "test.vy", src)

	res, err := PreParse(f, "0.1.0")
	require.Nil(t, err, "unexpected error: %v", err)

	return res
}

func TestBareVersionPragma(t *testing.T) {
	res := parse(t, "# pragma version 0.1.0\n")
	assert.True(t, res.Settings.HasCompilerVersion)
	assert.Equal(t, "0.1.0", res.Settings.CompilerVersionSpec)
}

func TestLegacyVersionPragma(t *testing.T) {
	res := parse(t, "# @version ^0.1.0\n")
	assert.True(t, res.Settings.HasCompilerVersion)
}

func TestDuplicateVersionPragmaFails(t *testing.T) {
	f := source.NewFile(0, "test.vy", "# pragma version 0.1.0\n# pragma version 0.2.0\n")
	_, err := PreParse(f, "0.1.0")
	require.NotNil(t, err)
	assert.Equal(t, source.StructureException, err.Kind())
}

func TestOptimizePragma(t *testing.T) {
	res := parse(t, "# pragma optimize codesize\n")
	assert.True(t, res.Settings.HasOptimize)
}

func TestSemicolonRejected(t *testing.T) {
	f := source.NewFile(0, "test.vy", "a: uint256 = 1;\n")
	_, err := PreParse(f, "0.1.0")
	require.NotNil(t, err)
	assert.Equal(t, source.SyntaxException, err.Kind())
}

func TestClassKeywordRejected(t *testing.T) {
	f := source.NewFile(0, "test.vy", "class Foo:\n    pass\n")
	_, err := PreParse(f, "0.1.0")
	require.NotNil(t, err)
}

func TestInterfaceRewrittenToClass(t *testing.T) {
	res := parse(t, "interface Foo:\n    def bar() -> uint256: view\n")
	assert.Contains(t, res.Rewritten, "class Foo:")
	assert.NotContains(t, res.Rewritten, "interface Foo:")
}

func TestLogRewrittenToYield(t *testing.T) {
	res := parse(t, "log MyEvent(a)\n")
	assert.Contains(t, res.Rewritten, "yield MyEvent(a)")
}

func TestForLoopAnnotationCaptured(t *testing.T) {
	res := parse(t, "for i: uint256 in range(10):\n    pass\n")
	anno, ok := res.LoopAnnos[1]
	require.True(t, ok)
	assert.Equal(t, "uint256", anno.SourceCode)
}

func TestVersionIncompatibleFails(t *testing.T) {
	f := source.NewFile(0, "test.vy", "# pragma version ==9.9.9\n")
	_, err := PreParse(f, "0.1.0")
	require.NotNil(t, err)
	assert.Equal(t, source.VersionException, err.Kind())
}
