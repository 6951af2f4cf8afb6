package javaparser

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleJava = `
class A {
    @GetMapping
    public String h(String p) {
        svc.q(p);
        return p;
    }
}
`

func writeJava(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "A.java")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParseValidFile(t *testing.T) {
	path := writeJava(t, sampleJava)
	p := New()
	result, err := p.Parse(path)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.False(t, result.HasSyntaxError())
	assert.Equal(t, "program", result.Tree.RootNode().Type())
}

func TestParseIsCached(t *testing.T) {
	path := writeJava(t, sampleJava)
	p := New()
	first, err := p.Parse(path)
	require.NoError(t, err)
	second, err := p.Parse(path)
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestParseToleratesSyntaxError(t *testing.T) {
	path := writeJava(t, "class A { public void m( {{{")
	p := New()
	result, err := p.Parse(path)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.True(t, result.HasSyntaxError())
}

func TestParseMissingFileIsSkipError(t *testing.T) {
	p := New()
	_, err := p.Parse(filepath.Join(t.TempDir(), "missing.java"))
	require.Error(t, err)
}
