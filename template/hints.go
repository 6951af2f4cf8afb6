package template

import (
	"regexp"
	"strings"
)

// BaseHints is the always-present hint vocabulary: a line must contain at
// least one of these tokens (or one extracted from the rule's own
// patterns) before any regex in that rule is evaluated against it.
var BaseHints = []string{
	"request.getparameter",
	"out.print",
	"${",
	"<%=",
	"th:",
	"#include",
	"$!",
	"getwriter",
	"innerhtml",
	"document.write",
	"executequery",
	"preparedstatement",
	"readobject",
	"objectinputstream",
	"runtime.exec",
	"processbuilder",
	"file.separator",
	"getrealpath",
	"xmldecoder",
	"velocity",
	"freemarker",
}

var tokenPattern = regexp.MustCompile(`[A-Za-z0-9]{3,}`)

// extractTokens pulls every alphanumeric token of length >= 3 out of a
// regex pattern's literal text, lowercased, to extend the hint vocabulary
// so the gate isn't blind to rule-specific vocabulary (e.g. "fastjson").
func extractTokens(pattern string) []string {
	matches := tokenPattern.FindAllString(pattern, -1)
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = strings.ToLower(m)
	}
	return out
}

// hintSet is the per-rule hint vocabulary: the base set plus tokens
// extracted from the rule's own patterns.
type hintSet map[string]bool

func buildHintSet(patterns []string) hintSet {
	set := make(hintSet, len(BaseHints))
	for _, h := range BaseHints {
		set[h] = true
	}
	for _, p := range patterns {
		for _, tok := range extractTokens(p) {
			set[tok] = true
		}
	}
	return set
}

// matchesHint reports whether the lowercase line contains any hint token.
func (h hintSet) matchesHint(lowerLine string) bool {
	for hint := range h {
		if strings.Contains(lowerLine, hint) {
			return true
		}
	}
	return false
}
