package ruleset

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// RuleFinder finds individual rule bundle files (JSON or YAML) by rule
// name within a rules directory, for "category/RULE-NAME" ruleset specs
// that name one rule rather than a whole bundle.
type RuleFinder struct {
	rulesDir string
}

// NewRuleFinder creates a new RuleFinder.
func NewRuleFinder(rulesDir string) *RuleFinder {
	return &RuleFinder{
		rulesDir: rulesDir,
	}
}

func hasRuleBundleExt(path string) bool {
	return strings.HasSuffix(path, ".json") || strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml")
}

// FindRuleFile searches for a rule bundle file containing a sink, source,
// sanitizer, or template rule named after spec.RuleID. Returns the
// absolute path to the file, or an error if not found.
func (rf *RuleFinder) FindRuleFile(spec *RuleSpec) (string, error) {
	languageDir := filepath.Join(rf.rulesDir, spec.Language)

	if _, err := os.Stat(languageDir); os.IsNotExist(err) {
		return "", fmt.Errorf("language directory not found: %s", languageDir)
	}

	var foundFile string

	err := filepath.Walk(languageDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if info.IsDir() || !hasRuleBundleExt(path) {
			return nil
		}

		contains, _ := fileContainsRuleID(path, spec.RuleID)

		if contains {
			foundFile = path
			return filepath.SkipDir
		}

		return nil
	})

	if err != nil {
		return "", fmt.Errorf("error searching for rule: %w", err)
	}

	if foundFile == "" {
		return "", fmt.Errorf("rule %s not found in %s", spec.RuleID, languageDir)
	}

	return foundFile, nil
}

// fileContainsRuleID checks whether a rule bundle file names ruleID as a
// sink_name, source_name, sanitizer_name, or template rule name. Looks for
// patterns like: "sink_name": "SQL_INJECTION" (JSON) or sink_name:
// SQL_INJECTION (YAML), under any of the four field names.
func fileContainsRuleID(filePath string, ruleID string) (bool, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return false, err
	}
	defer file.Close()

	fields := []string{"sink_name", "source_name", "sanitizer_name", "name"}
	patterns := make([]string, 0, len(fields)*2)
	for _, field := range fields {
		patterns = append(patterns,
			fmt.Sprintf(`"%s": "%s"`, field, ruleID),
			fmt.Sprintf(`%s: %s`, field, ruleID),
		)
	}

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		for _, p := range patterns {
			if strings.Contains(line, p) {
				return true, nil
			}
		}
	}

	return false, scanner.Err()
}
