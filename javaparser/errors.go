package javaparser

import "fmt"

// ParseError wraps a tree-sitter syntax/lexer failure. It is never fatal:
// the caller drops the file and continues.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("javaparser: %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
