// Package rulematch matches a method Signature against sink/source/
// sanitizer rule entries, using short/long class-name equivalence and
// "method1|method2" alternation.
package rulematch

import (
	"strings"

	"github.com/wardenscan/javasentry/model"
	"github.com/wardenscan/javasentry/rules"
)

// Entry is one rule's name plus the "Class:method1|method2" patterns it
// fires on.
type Entry struct {
	Name     string
	Patterns []string
}

// Matches parses sig as Class:method and, for every entry whose pattern
// list contains a matching "sc:sm" pattern, emits the entry's name. A
// rule with no name falls back to the raw matching pattern string. The
// result is deduplicated per call to Matches (a rule that matches via
// more than one of its own patterns contributes its name once).
func Matches(sig model.Signature, entries []Entry) []string {
	class, method := sig.Split()
	seen := make(map[string]bool)
	var hits []string

	for _, entry := range entries {
		for _, pattern := range entry.Patterns {
			sc, sm := splitPattern(pattern)
			if !model.ClassEquivalent(class, sc) {
				continue
			}
			if !methodMatches(method, sm) {
				continue
			}
			name := entry.Name
			if name == "" {
				name = pattern
			}
			if !seen[name] {
				seen[name] = true
				hits = append(hits, name)
			}
			break // first present name per rule per call, no point scanning its other patterns too
		}
	}
	return hits
}

func splitPattern(pattern string) (class, method string) {
	idx := strings.LastIndex(pattern, ":")
	if idx < 0 {
		return pattern, ""
	}
	return pattern[:idx], pattern[idx+1:]
}

func methodMatches(method, alternation string) bool {
	for _, alt := range strings.Split(alternation, "|") {
		if strings.TrimSpace(alt) == method {
			return true
		}
	}
	return false
}

// SinkEntries, SourceEntries and SanitizerEntries adapt the RuleStore's
// typed rule lists into the generic Entry shape Matches consumes.
func SinkEntries(sinks []rules.SinkRule) []Entry {
	out := make([]Entry, 0, len(sinks))
	for _, s := range sinks {
		name := s.SinkName
		if name == "" {
			name = s.SinkDesc
		}
		out = append(out, Entry{Name: name, Patterns: s.Sinks})
	}
	return out
}

func SourceEntries(sources []rules.SourceRule) []Entry {
	out := make([]Entry, 0, len(sources))
	for _, s := range sources {
		out = append(out, Entry{Name: s.SourceName, Patterns: s.Sources})
	}
	return out
}

func SanitizerEntries(sanitizers []rules.SanitizerRule) []Entry {
	out := make([]Entry, 0, len(sanitizers))
	for _, s := range sanitizers {
		out = append(out, Entry{Name: s.SanitizerName, Patterns: s.Sanitizers})
	}
	return out
}

// SinkSignatures expands every sink rule's "Class:method1|method2"
// patterns (alternation included) into individual sink Signatures that
// chainfinder can search from independently, paired with the owning
// rule's metadata.
func SinkSignatures(sinks []rules.SinkRule) []SinkTarget {
	var out []SinkTarget
	for _, rule := range sinks {
		for _, pattern := range rule.Sinks {
			class, methodAlt := splitPattern(pattern)
			for _, m := range strings.Split(methodAlt, "|") {
				m = strings.TrimSpace(m)
				if m == "" {
					continue
				}
				out = append(out, SinkTarget{
					Signature: model.NewSignature(model.ShortClass(class), m),
					Rule:      rule,
				})
			}
		}
	}
	return out
}

// SinkTarget pairs an expanded sink Signature with the rule it came from.
type SinkTarget struct {
	Signature model.Signature
	Rule      rules.SinkRule
}
