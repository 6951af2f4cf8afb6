// Package javaparser parses .java source files into tree-sitter ASTs,
// tolerating syntax errors on a per-file basis and caching parsed trees
// behind an LRU with TTL expiry.
package javaparser

import (
	"context"
	"time"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/java"

	"github.com/wardenscan/javasentry/walker"
)

// CacheSize is the maximum number of parsed ASTs retained.
const CacheSize = 1000

// CacheTTL is how long a cached AST stays valid after insertion.
const CacheTTL = 300 * time.Second

// Result is a parsed file: its tree, the (lossily decoded) UTF-8 source
// bytes the tree's byte offsets refer to, and the line count observed
// while enforcing the cap.
type Result struct {
	Tree   *sitter.Tree
	Source []byte
	Lines  int
}

// Parser parses .java files, creating a fresh tree-sitter parser for each
// Parse call and sharing one cache across all callers.
type Parser struct {
	cache *cache
}

// New builds a Parser with the standard LRU+TTL cache.
func New() *Parser {
	return &Parser{cache: newCache()}
}

// Parse reads and parses path. When path is still in the cache it returns
// the cached *Result without re-reading the file; a *ParseError wraps
// tree-sitter syntax failures and *walker.SkipError wraps resource-limit
// violations — both are always non-fatal to the caller's run.
func (p *Parser) Parse(path string) (*Result, error) {
	if cached, ok := p.cache.get(path); ok {
		return cached, nil
	}

	data, err := readFileLossyUTF8(path)
	if err != nil {
		return nil, &walker.SkipError{Path: path, Reason: err.Error()}
	}
	if skipErr := walker.CheckLineCap(path, data); skipErr != nil {
		return nil, skipErr
	}

	sp := sitter.NewParser()
	defer sp.Close()
	sp.SetLanguage(java.GetLanguage())

	tree, err := sp.ParseCtx(context.Background(), nil, data)
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	if tree.RootNode().HasError() {
		// Tree-sitter error-recovers past most syntax errors and still
		// returns a usable (partial) tree; we keep it rather than
		// discarding the whole file, but callers that want strict
		// failure semantics can check Result via HasSyntaxError.
		_ = tree
	}

	result := &Result{
		Tree:   tree,
		Source: data,
		Lines:  walker.CountLines(data),
	}
	p.cache.set(path, result)
	return result, nil
}

// HasSyntaxError reports whether the parsed tree contains an ERROR node.
func (r *Result) HasSyntaxError() bool {
	return r.Tree.RootNode().HasError()
}

func readFileLossyUTF8(path string) ([]byte, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}
	if utf8.Valid(data) {
		return data, nil
	}
	return []byte(toValidUTF8(data)), nil
}

// toValidUTF8 mirrors Python's errors="ignore" lossy decode: invalid byte
// sequences are dropped rather than replaced, so byte offsets downstream
// stay close to (if not identical to) the original file for well-formed
// UTF-8 input, which is the overwhelming common case.
func toValidUTF8(data []byte) string {
	out := make([]rune, 0, len(data))
	for i := 0; i < len(data); {
		r, size := utf8.DecodeRune(data[i:])
		if r == utf8.RuneError && size <= 1 {
			i++
			continue
		}
		out = append(out, r)
		i += size
	}
	return string(out)
}
