package ruleset

import (
	"fmt"
	"regexp"
	"strings"
)

// Rule ID pattern: uppercase letters, an optional dash and uppercase letters, then a dash and digits.
// Examples: JAVA-SQLI-001, SPRING-SSRF-004, OWASP-DESER-008.
var ruleIDPattern = regexp.MustCompile(`^[A-Z]+(-[A-Z]+)?-\d+$`)

// ParseSpec parses "java-web/owasp-top10" into RulesetSpec.
func ParseSpec(spec string) (*RulesetSpec, error) {
	parts := strings.Split(spec, "/")
	if len(parts) != 2 {
		return nil, fmt.Errorf("invalid ruleset spec: %s (expected format: category/bundle)", spec)
	}

	bundle := parts[1]
	if bundle == "all" {
		bundle = "*"
	}
	return &RulesetSpec{
		Category: parts[0],
		Bundle:   bundle,
	}, nil
}

// ParseRuleSpec parses "java-web/JAVA-SQLI-001" into RuleSpec.
func ParseRuleSpec(spec string) (*RuleSpec, error) {
	parts := strings.Split(spec, "/")
	if len(parts) != 2 {
		return nil, fmt.Errorf("invalid rule spec: %s (expected format: language/RULE-ID)", spec)
	}

	ruleID := parts[1]
	if !ruleIDPattern.MatchString(ruleID) {
		return nil, fmt.Errorf("invalid rule ID format: %s (expected format like JAVA-SQLI-001)", ruleID)
	}

	return &RuleSpec{
		Language: parts[0],
		RuleID:   ruleID,
	}, nil
}

// IsRuleID checks if a string looks like a rule ID (e.g., JAVA-SQLI-001).
func IsRuleID(s string) bool {
	return ruleIDPattern.MatchString(s)
}

// Validate checks if spec is valid. Category and Bundle are used verbatim
// as manifest/bundle URL path segments (see ManifestLoader.LoadCategoryManifest),
// so a stray "/" would silently change the fetched path instead of failing fast.
func (s *RulesetSpec) Validate() error {
	if s.Category == "" {
		return fmt.Errorf("category cannot be empty")
	}
	if strings.Contains(s.Category, "/") {
		return fmt.Errorf("category must not contain '/': %s", s.Category)
	}
	if s.Bundle == "" {
		return fmt.Errorf("bundle cannot be empty")
	}
	if strings.Contains(s.Bundle, "/") {
		return fmt.Errorf("bundle must not contain '/': %s", s.Bundle)
	}
	return nil
}

// Validate checks if rule spec is valid.
func (s *RuleSpec) Validate() error {
	if s.Language == "" {
		return fmt.Errorf("language cannot be empty")
	}
	if s.RuleID == "" {
		return fmt.Errorf("rule ID cannot be empty")
	}
	if !ruleIDPattern.MatchString(s.RuleID) {
		return fmt.Errorf("invalid rule ID format: %s", s.RuleID)
	}
	return nil
}

// String returns the spec as "category/bundle".
func (s *RulesetSpec) String() string {
	return fmt.Sprintf("%s/%s", s.Category, s.Bundle)
}

// String returns the spec as "language/RULE-ID".
func (s *RuleSpec) String() string {
	return fmt.Sprintf("%s/%s", s.Language, s.RuleID)
}
