// Package template implements the regex/hint-based TemplateScanner: a
// second, independent detection path alongside the AST call-chain
// analysis, aimed at JSP/template/config files and at Java source the
// call-graph side didn't reach.
package template

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/wardenscan/javasentry/model"
	"github.com/wardenscan/javasentry/rules"
)

// nestedQuantifier is the cheap heuristic used to reject catastrophic
// regexes at compile time rather than at evaluation time.
var nestedQuantifier = regexp.MustCompile(`\([^)]*\+[^)]*\+[^)]*\)`)

const maxPatternLen = 5000
const maxLineLen = 10000

const (
	fullRegexEvalCap = 2000
	liteRegexEvalCap = 500
	fullPerFileRule  = 5
	litePerFileRule  = 1
)

// compiledRule is a TemplateRule with its patterns pre-compiled and its
// hint vocabulary pre-built; rejected patterns are dropped silently (the
// rule still fires on whatever patterns did compile).
type compiledRule struct {
	rule     rules.TemplateRule
	regexes  []*regexp.Regexp
	hints    hintSet
	extSet   map[string]bool
}

func compileRule(r rules.TemplateRule) compiledRule {
	cr := compiledRule{rule: r, hints: buildHintSet(r.Patterns)}
	if len(r.FileExts) > 0 {
		cr.extSet = make(map[string]bool, len(r.FileExts))
		for _, e := range r.FileExts {
			cr.extSet[strings.ToLower(strings.TrimPrefix(e, "."))] = true
		}
	}
	for _, p := range r.Patterns {
		if len(p) > maxPatternLen || nestedQuantifier.MatchString(p) {
			continue
		}
		re, err := regexp.Compile(`(?is)` + p)
		if err != nil {
			continue
		}
		cr.regexes = append(cr.regexes, re)
	}
	return cr
}

func (cr compiledRule) appliesToExt(ext string) bool {
	if cr.extSet == nil {
		return true
	}
	return cr.extSet[ext]
}

// Scanner runs the template detection pass over one or more files, using
// a fixed set of compiled rules built once from the Store.
type Scanner struct {
	rules []compiledRule
	lite  bool
	apply bool // ApplyMustSubstrings
}

// New builds a Scanner from store's template_rules plus its run-time
// flags (lite mode, must_substrings enforcement).
func New(store *rules.Store) *Scanner {
	s := &Scanner{lite: store.Flags.LiteFast, apply: store.Flags.ApplyMustSubstrings}
	for _, r := range store.TemplateRules {
		s.rules = append(s.rules, compileRule(r))
	}
	return s
}

// window/threshold per §4.9.2, selected by lite mode and file extension.
func (s *Scanner) contextWindowSize() int {
	if s.lite {
		return LiteWindow
	}
	return FullWindow
}

func (s *Scanner) threshold(ext string) float64 {
	if ext == "jsp" || ext == "jspx" {
		return JSPThreshold
	}
	return DefaultThreshold
}

func (s *Scanner) regexEvalCap() int {
	if s.lite {
		return liteRegexEvalCap
	}
	return fullRegexEvalCap
}

func (s *Scanner) perFileRuleCap() int {
	if s.lite {
		return litePerFileRule
	}
	return fullPerFileRule
}

type rawHit struct {
	rule       compiledRule
	line       int // 0-indexed
	confidence float64
}

// ScanFile runs every applicable rule against one file's content and
// returns its findings (after grouping, dedup, and severity demotion).
// emitted is invoked once per finding emitted by this file, used by
// callers to drive the heartbeat progress callback.
func (s *Scanner) ScanFile(relPath string, content []byte, emitted func()) []model.Finding {
	ext := extOf(relPath)
	text := decodeLossy(content, ext)
	lines := strings.Split(text, "\n")

	var hits []rawHit
	evalBudget := s.regexEvalCap()

	for _, cr := range s.rules {
		if !cr.appliesToExt(ext) {
			continue
		}
		if cr.rule.Name == "FORM_NO_CSRF" {
			hits = append(hits, s.scanFormNoCSRF(cr, lines)...)
			continue
		}
		for i, line := range lines {
			if len(line) > maxLineLen {
				continue
			}
			lower := strings.ToLower(line)
			if !cr.rule.ForceRegex && !cr.hints.matchesHint(lower) {
				continue
			}
			matched := false
			for _, re := range cr.regexes {
				if evalBudget <= 0 {
					break
				}
				evalBudget--
				if re.MatchString(line) {
					matched = true
					break
				}
			}
			if !matched {
				continue
			}
			if s.apply && !passesMustExclude(cr.rule, line) {
				continue
			}
			if isFalsePositive(line, i, lines, relPath) {
				continue
			}
			ctxScore := contextScore(lines, i, s.contextWindowSize(), cr.rule.VulType)
			if ctxScore < s.threshold(ext) {
				continue
			}
			hits = append(hits, rawHit{rule: cr, line: i, confidence: lineScore(ctxScore, lines, i, cr.rule.VulType)})
		}
	}

	findings := s.groupAndDedup(hits, relPath, lines)
	for range findings {
		if emitted != nil {
			emitted()
		}
	}
	return findings
}

func passesMustExclude(r rules.TemplateRule, line string) bool {
	lower := strings.ToLower(line)
	for _, must := range r.MustSubstrings {
		if !strings.Contains(lower, strings.ToLower(must)) {
			return false
		}
	}
	for _, ex := range r.ExcludeSubstrings {
		if strings.Contains(lower, strings.ToLower(ex)) {
			return false
		}
	}
	return true
}

// scanFormNoCSRF implements the §4.9 step 7 block-wise special case.
func (s *Scanner) scanFormNoCSRF(cr compiledRule, lines []string) []rawHit {
	var hits []rawHit
	formRe := regexp.MustCompile(`(?i)<form[^>]*method\s*=\s*"post"`)
	for i, line := range lines {
		if !formRe.MatchString(line) {
			continue
		}
		end := i + 50
		if end >= len(lines) {
			end = len(lines) - 1
		}
		block := strings.ToLower(strings.Join(lines[i:end+1], "\n"))
		if !strings.Contains(block, `name="csrf"`) && !strings.Contains(block, "_csrf") {
			hits = append(hits, rawHit{rule: cr, line: i, confidence: 0.8})
		}
	}
	return hits
}

// groupAndDedup folds adjacent hit lines per rule into (start,end,max
// confidence) groups, then applies the three-tier dedup and severity
// demotion described in §4.9 step 6.
func (s *Scanner) groupAndDedup(hits []rawHit, relPath string, lines []string) []model.Finding {
	byRule := map[string][]rawHit{}
	for _, h := range hits {
		byRule[h.rule.rule.Name] = append(byRule[h.rule.rule.Name], h)
	}

	type group struct {
		rule       compiledRule
		start, end int
		confidence float64
	}
	var groups []group

	for name, rh := range byRule {
		sort.Slice(rh, func(i, j int) bool { return rh[i].line < rh[j].line })
		seenLines := map[int]bool{}
		var filtered []rawHit
		for _, h := range rh {
			if seenLines[h.line] {
				continue
			}
			seenLines[h.line] = true
			filtered = append(filtered, h)
		}
		var i int
		for i < len(filtered) {
			start := filtered[i].line
			end := start
			maxConf := filtered[i].confidence
			j := i + 1
			for j < len(filtered) && filtered[j].line == end+1 {
				end = filtered[j].line
				if filtered[j].confidence > maxConf {
					maxConf = filtered[j].confidence
				}
				j++
			}
			groups = append(groups, group{rule: filtered[i].rule, start: start, end: end, confidence: maxConf})
			i = j
		}
		_ = name
	}

	sort.Slice(groups, func(i, j int) bool { return groups[i].start < groups[j].start })

	// One finding per vul_type per file: groups are taken in start-line
	// order, so the first rule to hit a given vul_type wins even if a
	// higher-severity rule for the same vul_type matches later in the
	// file. Preserved verbatim rather than re-sorted by severity.
	perRuleCount := map[string]int{}
	vulTypeSeen := map[string]bool{}
	ruleCap := s.perFileRuleCap()

	var findings []model.Finding
	for _, g := range groups {
		if perRuleCount[g.rule.rule.Name] >= ruleCap {
			continue
		}
		if vulTypeSeen[g.rule.rule.VulType] {
			continue
		}
		perRuleCount[g.rule.rule.Name]++
		vulTypeSeen[g.rule.rule.VulType] = true

		severity := demoteSeverity(g.rule.rule.Severity, g.confidence)
		findings = append(findings, model.Finding{
			VulType:    g.rule.rule.VulType,
			SinkDesc:   g.rule.rule.Desc,
			Severity:   severity,
			Confidence: g.confidence,
			FilePath:   relPath,
			GroupLines: []int{g.start + 1, g.end + 1},
			ScanMode:   model.ScanModeTemplate,
		})
	}
	return findings
}

func demoteSeverity(severity string, confidence float64) string {
	if severity == model.SeverityHigh {
		if confidence < 0.5 {
			return model.SeverityMedium
		}
		return severity
	}
	if confidence < 0.3 {
		return model.SeverityLow
	}
	return severity
}

func extOf(relPath string) string {
	idx := strings.LastIndexByte(relPath, '.')
	if idx < 0 {
		return ""
	}
	return strings.ToLower(relPath[idx+1:])
}

// decodeLossy implements §4.9 step 2: UTF-8 lossy decode, with .class
// files retried as raw bytes with non-printable bytes masked to spaces.
func decodeLossy(content []byte, ext string) string {
	if ext == "class" {
		return maskNonPrintable(content)
	}
	if utf8.Valid(content) {
		return string(content)
	}
	return strings.ToValidUTF8(string(content), fmt.Sprintf("%c", utf8.RuneError))
}

func maskNonPrintable(content []byte) string {
	out := make([]byte, len(content))
	for i, b := range content {
		if b == '\n' || b == '\t' || (b >= 0x20 && b < 0x7f) {
			out[i] = b
		} else {
			out[i] = ' '
		}
	}
	return string(out)
}
