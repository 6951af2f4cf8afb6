// Package scorer assigns a confidence score to each AST call chain using
// sanitizer/source/pattern evidence plus chain-length heuristics, and
// aggregates per-chain scores into a Finding's top-level confidence and
// evidence sets.
package scorer

import (
	"regexp"

	"github.com/wardenscan/javasentry/classindex"
	"github.com/wardenscan/javasentry/model"
	"github.com/wardenscan/javasentry/rulematch"
	"github.com/wardenscan/javasentry/rules"
)

// sqlConcatTextPatterns are the text-heuristic regexes that stand in for
// an actual SQL_CONCAT pattern-rule hit when none was recorded directly
// against the chain's nodes — see SQL_CONCAT_TEXT in the component design.
var sqlConcatTextPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?is)stringbuilder.*?append\(`),
	regexp.MustCompile(`(?is)stringbuffer.*?append\(`),
	regexp.MustCompile(`(?i)sql\s*\+=`),
	regexp.MustCompile(`(?i)\+\s*\w+\s*\)*\s*;`),
	regexp.MustCompile(`(?i)string\.format\(`),
}

// ChainScore is the per-chain output of Score.
type ChainScore struct {
	Confidence  float64
	SanitizedBy []string
	Sources     []string
	Patterns    []string
}

// Score computes one chain's confidence per the additive-delta table:
// start at 1.0, apply evidence deltas in order, then clamp to [0,1].
func Score(chain model.Chain, sinkVulType string, store *rules.Store, index *classindex.Index) ChainScore {
	sanitizerEntries := rulematch.SanitizerEntries(store.SanitizerRules)
	sourceEntries := rulematch.SourceEntries(store.SourceRules)
	patternEntries := patternEntriesOf(store.PatternRules)

	sanitized := unionMatches(chain, sanitizerEntries)
	sources := unionMatches(chain, sourceEntries)
	patterns := unionMatches(chain, patternEntries)

	confidence := 1.0

	switch {
	case len(sanitized) >= 2:
		confidence -= 0.5
	case len(sanitized) == 1:
		confidence -= 0.4
	}

	switch {
	case len(sources) >= 2:
		confidence += 0.4
	case len(sources) == 1:
		confidence += 0.3
	}

	// Open question #3 (preserved verbatim): _get_pattern_hits takes the
	// union of ALL pattern_rules regardless of the sink's vul_type, but
	// only SQLI ever consumes SQL_CONCAT/SQL_CONCAT_TEXT evidence here —
	// every other pattern category is computed into `patterns` above (and
	// reported on the Finding) but never moves the score.
	if sinkVulType == "SQLI" {
		hasSQLConcat := containsName(patterns, "SQL_CONCAT")
		if !hasSQLConcat {
			hasSQLConcat = sqlConcatText(chain, index)
			if hasSQLConcat {
				patterns = append(patterns, "SQL_CONCAT_TEXT")
			}
		}
		if hasSQLConcat {
			confidence += 0.3
		}
	}

	switch {
	case len(chain) > 20:
		confidence -= 0.1
	case len(chain) < 3:
		confidence += 0.1
	}

	return ChainScore{
		Confidence:  clamp01(confidence),
		SanitizedBy: sanitized,
		Sources:     sources,
		Patterns:    patterns,
	}
}

// AggregateFindingEvidence computes a Finding's top-level confidence (max
// over chains) and its set-union evidence fields from the per-chain
// scores.
func AggregateFindingEvidence(scores []ChainScore) (confidence float64, sanitizedBy, sources, patterns []string) {
	sanSet, srcSet, patSet := map[string]bool{}, map[string]bool{}, map[string]bool{}
	for _, s := range scores {
		if s.Confidence > confidence {
			confidence = s.Confidence
		}
		addAll(sanSet, s.SanitizedBy)
		addAll(srcSet, s.Sources)
		addAll(patSet, s.Patterns)
	}
	return confidence, keys(sanSet), keys(srcSet), keys(patSet)
}

func addAll(set map[string]bool, items []string) {
	for _, i := range items {
		set[i] = true
	}
}

func keys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	return out
}

func unionMatches(chain model.Chain, entries []rulematch.Entry) []string {
	seen := map[string]bool{}
	var out []string
	for _, sig := range chain {
		for _, hit := range rulematch.Matches(sig, entries) {
			if !seen[hit] {
				seen[hit] = true
				out = append(out, hit)
			}
		}
	}
	return out
}

func patternEntriesOf(patternRules map[string][]string) []rulematch.Entry {
	out := make([]rulematch.Entry, 0, len(patternRules))
	for name, patterns := range patternRules {
		out = append(out, rulematch.Entry{Name: name, Patterns: patterns})
	}
	return out
}

func containsName(names []string, want string) bool {
	for _, n := range names {
		if n == want {
			return true
		}
	}
	return false
}

// sqlConcatText fires when the source of the first <=3 nodes of the
// chain contains any of the string-concatenation idioms that usually
// precede a raw SQL sink call.
func sqlConcatText(chain model.Chain, index *classindex.Index) bool {
	limit := len(chain)
	if limit > 3 {
		limit = 3
	}
	for i := 0; i < limit; i++ {
		src, ok := index.MethodSource(chain[i])
		if !ok {
			continue
		}
		for _, re := range sqlConcatTextPatterns {
			if re.MatchString(src) {
				return true
			}
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
