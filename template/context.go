package template

import (
	"regexp"
	"strings"
)

// FullWindow/LiteWindow are the number of lines scanned on each side of a
// candidate hit line by the context analyzer (§4.9.2).
const (
	FullWindow = 15
	LiteWindow = 7
)

// JSPThreshold/DefaultThreshold are the minimum context scores a
// candidate must clear before it is emitted as a finding.
const (
	JSPThreshold     = 0.25
	DefaultThreshold = 0.30
)

var (
	sqlKeywords        = regexp.MustCompile(`(?i)select|from|where|insert|update|delete|executequery|preparedstatement`)
	requestInputTokens = regexp.MustCompile(`(?i)request\.getparameter|request\.getheader|request\.getquerystring|getinputstream|getreader`)
	sbTokens           = regexp.MustCompile(`(?i)stringbuilder|stringbuffer`)

	xssOutputTokens  = regexp.MustCompile(`(?i)out\.print|response\.getwriter|document\.write|innerhtml`)
	xssEncoderTokens = regexp.MustCompile(`(?i)escapehtml|encode|sanitize|escape`)

	pathTokens          = regexp.MustCompile(`(?i)\.\./|\.\.\\|getrealpath|file`)
	canonicalizerTokens = regexp.MustCompile(`(?i)canonical|normalize`)

	execTokens = regexp.MustCompile(`(?i)runtime\.exec|processbuilder|getruntime`)

	deserializeTokens   = regexp.MustCompile(`(?i)readobject|objectinputstream|json\.parse|fastjson`)
	streamInputTokens   = regexp.MustCompile(`(?i)inputstream|getinputstream`)
	elTokens            = regexp.MustCompile(`(?i)\$\{|#\{|\$!`)
	writerTokens        = regexp.MustCompile(`(?i)out\.print|getwriter`)
	sanitizerTokenRegex = regexp.MustCompile(`(?i)escape|sanitize|encode|canonical|normalize`)
	logCatchTokens      = regexp.MustCompile(`(?i)catch|exception|logger|log\.|printstacktrace`)
	jspScriptlet        = regexp.MustCompile(`(?s)<%.*?%>`)
)

// contextWindow returns the sub-slice lines[line-w : line+w+1] (0-indexed),
// clamped to the slice bounds; joining and lowercasing are left to the caller.
func contextWindow(lines []string, line, w int) []string {
	lo := line - w
	if lo < 0 {
		lo = 0
	}
	hi := line + w
	if hi >= len(lines) {
		hi = len(lines) - 1
	}
	return lines[lo : hi+1]
}

// contextScore computes the §4.9.2 context score for a candidate hit at line
// (0-indexed) for the given vul_type family, scanning window +/-w.
func contextScore(lines []string, line int, w int, vulType string) float64 {
	window := contextWindow(lines, line, w)
	joined := strings.ToLower(strings.Join(window, "\n"))

	score := 0.5

	switch vulType {
	case "SQLI":
		if sqlKeywords.MatchString(joined) {
			score += 0.2
		}
		if requestInputTokens.MatchString(joined) {
			score += 0.2
		}
		if sbTokens.MatchString(joined) {
			score += 0.1
		}
	case "XSS":
		if xssOutputTokens.MatchString(joined) {
			score += 0.2
		}
		if requestInputTokens.MatchString(joined) {
			score += 0.2
		}
		if xssEncoderTokens.MatchString(joined) {
			score -= 0.3
		}
	case "PATH_TRAVERSAL", "FILE":
		if pathTokens.MatchString(joined) {
			score += 0.2
		}
		if requestInputTokens.MatchString(joined) {
			score += 0.2
		}
		if canonicalizerTokens.MatchString(joined) {
			score -= 0.3
		}
	case "RCE":
		if execTokens.MatchString(joined) {
			score += 0.3
		}
		if requestInputTokens.MatchString(joined) {
			score += 0.2
		}
	case "DESERIALIZE":
		if deserializeTokens.MatchString(joined) {
			score += 0.2
		}
		if streamInputTokens.MatchString(joined) {
			score += 0.2
		}
	case "EL_INJECTION", "JSP":
		if elTokens.MatchString(joined) {
			score += 0.15
		}
		if writerTokens.MatchString(joined) {
			score += 0.1
		}
	}

	inputCount := strings.Count(joined, "request.getparameter") + strings.Count(joined, "request.getheader") +
		strings.Count(joined, "request.getquerystring") + strings.Count(joined, "getinputstream") + strings.Count(joined, "getreader")
	switch {
	case inputCount >= 2:
		score += 0.15
	case inputCount >= 1:
		score += 0.10
	}

	sanitizerCount := len(sanitizerTokenRegex.FindAllString(joined, -1))
	switch {
	case sanitizerCount >= 2:
		score -= 0.4
	case sanitizerCount == 1:
		if sanitizerPrecedesSinkLine(lines, line, w) {
			score -= 0.3
		} else {
			score -= 0.2
		}
	}

	if logCatchTokens.MatchString(joined) {
		score -= 0.1
	}

	if jspScriptlet.MatchString(joined) && requestInputTokens.MatchString(joined) {
		score += 0.1
	}

	return clamp01(score)
}

// sanitizerPrecedesSinkLine reports whether a sanitizer token appears on
// any line strictly before the sink's own line within the window
// [line-w, line+w].
func sanitizerPrecedesSinkLine(lines []string, line, w int) bool {
	lo := line - w
	if lo < 0 {
		lo = 0
	}
	for i := lo; i < line && i < len(lines); i++ {
		if sanitizerTokenRegex.MatchString(strings.ToLower(lines[i])) {
			return true
		}
	}
	return false
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
