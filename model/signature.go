// Package model holds the core data types shared across the analysis
// pipeline: method signatures, per-method metadata, call chains and the
// finding shape emitted by both the AST backtracker and the template
// scanner.
package model

import "strings"

// Signature is the canonical identifier of a method node: "Class:method".
// Class comparisons elsewhere in the pipeline use short-name equivalence
// (last dotted segment); this type only carries the raw string, callers
// use ShortClass/Method to compare.
type Signature string

// NewSignature builds a Signature from a class and method name.
func NewSignature(class, method string) Signature {
	return Signature(class + ":" + method)
}

// Split parses the signature into its class and method halves. If the
// signature carries no colon, the whole string is returned as the class
// and method is empty.
func (s Signature) Split() (class, method string) {
	idx := strings.LastIndex(string(s), ":")
	if idx < 0 {
		return string(s), ""
	}
	return string(s)[:idx], string(s)[idx+1:]
}

// Class returns the class half of the signature.
func (s Signature) Class() string {
	class, _ := s.Split()
	return class
}

// Method returns the method half of the signature.
func (s Signature) Method() string {
	_, method := s.Split()
	return method
}

// ShortClass returns the last dotted segment of the class name, e.g.
// "com.acme.Svc" -> "Svc". A class name with no dots is returned as-is.
func ShortClass(class string) string {
	idx := strings.LastIndex(class, ".")
	if idx < 0 {
		return class
	}
	return class[idx+1:]
}

// ClassEquivalent reports whether two class names denote the same class
// under short-name equivalence: exact match, or matching last dotted
// segment.
func ClassEquivalent(a, b string) bool {
	if a == b {
		return true
	}
	return ShortClass(a) == ShortClass(b)
}

// UnknownSignature is the sentinel caller used when no enclosing method
// declaration can be found for a call site.
const UnknownSignature Signature = "unknown:unknown"

// UnresolvedCallee is the sentinel callee base type used when qualifier
// resolution fails entirely.
const UnresolvedCallee = "[!]unresolved"
