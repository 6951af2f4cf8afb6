package ruleset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRuleFinder_FindRuleFile(t *testing.T) {
	tmpDir := t.TempDir()

	javaDir := filepath.Join(tmpDir, "java")
	securityDir := filepath.Join(javaDir, "security")
	wfDir := filepath.Join(javaDir, "webflow")

	require.NoError(t, os.MkdirAll(securityDir, 0755))
	require.NoError(t, os.MkdirAll(wfDir, 0755))

	testFiles := map[string]string{
		filepath.Join(securityDir, "sqli.json"): `{
  "sink_rules": [
    {"sink_name": "SQL_INJECTION", "vul_type": "SQL Injection", "severity_level": "Critical", "sinks": ["Statement.executeQuery"]}
  ]
}`,
		filepath.Join(wfDir, "redirect.json"): `{
  "sink_rules": [
    {"sink_name": "OPEN_REDIRECT", "vul_type": "Open Redirect", "severity_level": "Medium", "sinks": ["HttpServletResponse.sendRedirect"]}
  ]
}`,
		filepath.Join(wfDir, "xss.yaml"): `sink_rules:
  - sink_name: XSS_REFLECTED
    vul_type: Cross-Site Scripting
    severity_level: High
    sinks: ["out.print"]
`,
	}

	for path, content := range testFiles {
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}

	finder := NewRuleFinder(tmpDir)

	tests := []struct {
		name     string
		spec     *RuleSpec
		wantFile string
		wantErr  bool
		errMsg   string
	}{
		{
			name:     "find SQL_INJECTION",
			spec:     &RuleSpec{Language: "java", RuleID: "SQL_INJECTION"},
			wantFile: "sqli.json",
			wantErr:  false,
		},
		{
			name:     "find OPEN_REDIRECT",
			spec:     &RuleSpec{Language: "java", RuleID: "OPEN_REDIRECT"},
			wantFile: "redirect.json",
			wantErr:  false,
		},
		{
			name:     "find XSS_REFLECTED in yaml",
			spec:     &RuleSpec{Language: "java", RuleID: "XSS_REFLECTED"},
			wantFile: "xss.yaml",
			wantErr:  false,
		},
		{
			name:    "rule not found",
			spec:    &RuleSpec{Language: "java", RuleID: "NO_SUCH_RULE"},
			wantErr: true,
			errMsg:  "rule NO_SUCH_RULE not found",
		},
		{
			name:    "language directory not found",
			spec:    &RuleSpec{Language: "python", RuleID: "ANY"},
			wantErr: true,
			errMsg:  "language directory not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := finder.FindRuleFile(tt.spec)
			if tt.wantErr {
				assert.Error(t, err)
				if tt.errMsg != "" {
					assert.Contains(t, err.Error(), tt.errMsg)
				}
			} else {
				require.NoError(t, err)
				assert.Contains(t, got, tt.wantFile)
				_, err := os.Stat(got)
				assert.NoError(t, err)
			}
		})
	}
}

func TestFileContainsRuleID(t *testing.T) {
	tmpDir := t.TempDir()

	tests := []struct {
		name    string
		content string
		ext     string
		ruleID  string
		want    bool
	}{
		{
			name:    "JSON sink_name match",
			content: `{"sink_rules": [{"sink_name": "SQL_INJECTION"}]}`,
			ext:     ".json",
			ruleID:  "SQL_INJECTION",
			want:    true,
		},
		{
			name:    "YAML sink_name match",
			content: "sink_rules:\n  - sink_name: SQL_INJECTION\n",
			ext:     ".yaml",
			ruleID:  "SQL_INJECTION",
			want:    true,
		},
		{
			name:    "rule ID not present",
			content: `{"sink_rules": [{"sink_name": "OTHER"}]}`,
			ext:     ".json",
			ruleID:  "SQL_INJECTION",
			want:    false,
		},
		{
			name:    "partial match should not match",
			content: `{"sink_rules": [{"sink_name": "SQL_INJECTION_V2"}]}`,
			ext:     ".json",
			ruleID:  "SQL_INJECTION",
			want:    false,
		},
		{
			name:    "template rule name match",
			content: `{"template_rules": [{"name": "JSP_SCRIPTLET_XSS"}]}`,
			ext:     ".json",
			ruleID:  "JSP_SCRIPTLET_XSS",
			want:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpFile := filepath.Join(tmpDir, "test"+tt.ext)
			require.NoError(t, os.WriteFile(tmpFile, []byte(tt.content), 0644))
			defer os.Remove(tmpFile)

			got, err := fileContainsRuleID(tmpFile, tt.ruleID)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRuleFinder_SkipsNonBundleFiles(t *testing.T) {
	tmpDir := t.TempDir()
	javaDir := filepath.Join(tmpDir, "java")
	require.NoError(t, os.MkdirAll(javaDir, 0755))

	require.NoError(t, os.WriteFile(filepath.Join(javaDir, "README.md"), []byte(`sink_name: "JAVA-TEST-001"`), 0644))

	validFile := filepath.Join(javaDir, "test_rule.json")
	validContent := `{"sink_rules": [{"sink_name": "JAVA-TEST-002"}]}`
	require.NoError(t, os.WriteFile(validFile, []byte(validContent), 0644))

	finder := NewRuleFinder(tmpDir)

	spec := &RuleSpec{Language: "java", RuleID: "JAVA-TEST-002"}
	got, err := finder.FindRuleFile(spec)
	require.NoError(t, err)
	assert.Contains(t, got, "test_rule.json")
}
