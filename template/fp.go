package template

import (
	"regexp"
	"strings"
)

var testIndicatorPattern = regexp.MustCompile(`(?i)\b(test|mock|stub|fake|dummy|example)\b`)

var maskedCredentialPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)password\s*=\s*"?\*+"?`),
	regexp.MustCompile(`(?i)secret\s*=\s*"?\*+"?`),
	regexp.MustCompile(`(?i)key\s*=\s*"?\*+"?`),
}

// isFalsePositive applies the §4.9.1 suppression rules to a candidate hit
// line. relPath is used for the test-indicator rule, which only fires
// when the *file* path looks like a test file.
func isFalsePositive(line string, lineIdx int, allLines []string, relPath string) bool {
	trimmed := strings.TrimSpace(line)

	if strings.HasPrefix(trimmed, "//") || strings.HasPrefix(trimmed, "#") {
		return true
	}

	if insideBlockComment(lineIdx, allLines) {
		return true
	}

	if isPureStringLiteral(trimmed) {
		return true
	}

	if testIndicatorPattern.MatchString(line) && strings.Contains(strings.ToLower(relPath), "test") {
		return true
	}

	for _, re := range maskedCredentialPatterns {
		if re.MatchString(line) {
			return true
		}
	}

	return false
}

// insideBlockComment reports whether lineIdx sits inside an HTML comment
// or a /* ... */ block that started on an earlier line and has not yet
// closed by lineIdx.
func insideBlockComment(lineIdx int, lines []string) bool {
	openHTML, openBlock := false, false
	for i := 0; i < lineIdx && i < len(lines); i++ {
		l := lines[i]
		if openHTML {
			if strings.Contains(l, "-->") {
				openHTML = false
			}
			continue
		}
		if openBlock {
			if strings.Contains(l, "*/") {
				openBlock = false
			}
			continue
		}
		if idx := strings.Index(l, "<!--"); idx >= 0 && !strings.Contains(l[idx:], "-->") {
			openHTML = true
		}
		if idx := strings.Index(l, "/*"); idx >= 0 && !strings.Contains(l[idx:], "*/") {
			openBlock = true
		}
	}
	return openHTML || openBlock
}

var taintMarkers = []string{"${", "<%=", "$!"}

func isPureStringLiteral(trimmed string) bool {
	if len(trimmed) < 2 || trimmed[0] != '"' || trimmed[len(trimmed)-1] != '"' {
		return false
	}
	if strings.Count(trimmed, `"`)%2 != 0 {
		return false
	}
	for _, marker := range taintMarkers {
		if strings.Contains(trimmed, marker) {
			return false
		}
	}
	return true
}
