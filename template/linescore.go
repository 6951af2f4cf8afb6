package template

import "strings"

var dangerousTokensByFamily = map[string]*regexpOrList{}

type regexpOrList struct {
	tokens []string
}

func init() {
	dangerousTokensByFamily["SQLI"] = &regexpOrList{tokens: []string{"executequery", "preparedstatement", "createstatement", "executeupdate"}}
	dangerousTokensByFamily["XSS"] = &regexpOrList{tokens: []string{"innerhtml", "document.write", "out.print", "getwriter"}}
	dangerousTokensByFamily["RCE"] = &regexpOrList{tokens: []string{"runtime.exec", "processbuilder", "getruntime"}}
	dangerousTokensByFamily["PATH_TRAVERSAL"] = &regexpOrList{tokens: []string{"getrealpath", "file.separator", "fileinputstream", "..\\", "../"}}
	dangerousTokensByFamily["XXE"] = &regexpOrList{tokens: []string{"documentbuilderfactory", "saxparserfactory", "xmldecoder", "xmlinputfactory"}}
	dangerousTokensByFamily["DESERIALIZE"] = &regexpOrList{tokens: []string{"readobject", "objectinputstream", "fastjson", "xmldecoder"}}
}

func countTokens(lowerLine string, tokens []string) int {
	n := 0
	for _, t := range tokens {
		if strings.Contains(lowerLine, t) {
			n++
		}
	}
	return n
}

var springStereotypes = []string{"@requestmapping", "@getmapping", "@postmapping", "@putmapping", "@deletemapping", "@restcontroller", "@controller"}

// lineScore applies the §4.9.3 deltas on top of the context score to
// produce the final confidence for a single candidate line.
func lineScore(base float64, lines []string, line int, vulType string) float64 {
	lower := strings.ToLower(lines[line])
	score := base

	inputOutputCount := 0
	for _, tok := range []string{"request.getparameter", "request.getheader", "getinputstream", "getreader", "out.print", "getwriter"} {
		if strings.Contains(lower, tok) {
			inputOutputCount++
		}
	}
	if inputOutputCount >= 2 {
		score += 0.1
	}

	if strings.Count(lower, "(") > 3 || strings.Count(lower, ".") > 5 {
		score += 0.05
	}

	if vulType == "SQLI" && (strings.Contains(lower, "+") && (strings.Contains(lower, "\"") || strings.Contains(lower, "select"))) {
		score += 0.1
	}

	if family, ok := dangerousTokensByFamily[vulType]; ok {
		switch n := countTokens(lower, family.tokens); {
		case n >= 2:
			score += 0.25
		case n == 1:
			score += 0.15
		}
	}

	wideWindow := contextWindow(lines, line, 7)
	joinedWide := strings.ToLower(strings.Join(wideWindow, "\n"))
	inputCount := strings.Count(joinedWide, "request.getparameter") + strings.Count(joinedWide, "request.getheader") + strings.Count(joinedWide, "getinputstream") + strings.Count(joinedWide, "getreader")
	outputCount := strings.Count(joinedWide, "out.print") + strings.Count(joinedWide, "getwriter") + strings.Count(joinedWide, "document.write") + strings.Count(joinedWide, "innerhtml")
	switch {
	case inputCount >= 2 && outputCount >= 2:
		score += 0.30
	case inputCount >= 1 && outputCount >= 1:
		score += 0.15
	}

	window := contextWindow(lines, line, FullWindow)
	joined := strings.ToLower(strings.Join(window, "\n"))
	stereotypeCount := 0
	for _, s := range springStereotypes {
		if strings.Contains(joined, s) {
			stereotypeCount++
		}
	}
	switch {
	case stereotypeCount >= 2:
		score += 0.10
	case stereotypeCount == 1:
		score += 0.05
	}

	if strings.Contains(lower, "return") && (strings.Contains(lower, "request.getparameter") || strings.Contains(lower, "request.getheader")) {
		score += 0.1
	}

	if (strings.Contains(lower, "list<") || strings.Contains(lower, "(string)") || strings.Contains(lower, "map<")) &&
		(strings.Contains(lower, "request.getparameter") || strings.Contains(lower, "request.getheader")) {
		score += 0.05
	}

	return clamp01(score)
}
