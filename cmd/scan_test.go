package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetScanFlags() {
	scanCmd.Flags().Set("rules", "")
	scanCmd.Flags().Lookup("ruleset").Value.(interface{ Replace([]string) error }).Replace([]string{})
	scanCmd.Flags().Set("refresh-rules", "false")
	scanCmd.Flags().Set("project", "")
	scanCmd.Flags().Set("output", "text")
	scanCmd.Flags().Set("output-file", "")
	scanCmd.Flags().Set("verbose", "false")
	scanCmd.Flags().Set("debug", "false")
	scanCmd.Flags().Set("fail-on", "")
	scanCmd.Flags().Set("depth", "0")
	scanCmd.Flags().Set("lite", "false")
	scanCmd.Flags().Set("max-seconds", "0")
	scanCmd.Flags().Set("ignore-skip-dirs", "false")
}

func setupScanIntegrationTest(t *testing.T) (projectDir, rulesFile string) {
	t.Helper()
	projectDir = t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(projectDir, "src", "main", "java"), 0755))
	javaSrc := `package app;
import javax.servlet.http.HttpServletRequest;
import java.sql.Statement;

public class UserController {
    @GetMapping
    public void lookup(HttpServletRequest req, Statement stmt) throws Exception {
        String id = req.getParameter("id");
        stmt.executeQuery("SELECT * FROM users WHERE id = " + id);
    }
}
`
	require.NoError(t, os.WriteFile(
		filepath.Join(projectDir, "src", "main", "java", "UserController.java"),
		[]byte(javaSrc), 0644))

	rulesFile = filepath.Join(t.TempDir(), "rules.json")
	bundle := `{
  "sink_rules": [
    {
      "sink_name": "SQL_INJECTION",
      "sink_desc": "tainted input reaches Statement.executeQuery",
      "vul_type": "SQL Injection",
      "severity_level": "Critical",
      "sinks": ["java.sql.Statement:executeQuery"]
    }
  ],
  "source_rules": [
    {"source_name": "SERVLET_PARAM", "sources": ["javax.servlet.http.HttpServletRequest:getParameter"]}
  ]
}`
	require.NoError(t, os.WriteFile(rulesFile, []byte(bundle), 0644))
	return projectDir, rulesFile
}

func TestScanCommandFlagsRegistered(t *testing.T) {
	tests := []struct {
		flag     string
		defValue string
	}{
		{"rules", ""},
		{"refresh-rules", "false"},
		{"project", ""},
		{"output", "text"},
		{"output-file", ""},
		{"verbose", "false"},
		{"debug", "false"},
		{"fail-on", ""},
		{"depth", "0"},
		{"lite", "false"},
		{"max-seconds", "0"},
		{"ignore-skip-dirs", "false"},
	}

	for _, tt := range tests {
		t.Run(tt.flag, func(t *testing.T) {
			flag := scanCmd.Flags().Lookup(tt.flag)
			require.NotNil(t, flag, "flag %q should be registered on scan command", tt.flag)
			assert.Equal(t, tt.defValue, flag.DefValue)
		})
	}
}

func TestScanCmdValidation(t *testing.T) {
	t.Cleanup(resetScanFlags)

	t.Run("missing rules and ruleset", func(t *testing.T) {
		resetScanFlags()
		scanCmd.Flags().Set("project", t.TempDir())
		err := scanCmd.RunE(scanCmd, []string{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "either --rules or --ruleset")
	})

	t.Run("missing project", func(t *testing.T) {
		resetScanFlags()
		scanCmd.Flags().Set("rules", "somefile.json")
		err := scanCmd.RunE(scanCmd, []string{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "--project flag is required")
	})

	t.Run("invalid output format", func(t *testing.T) {
		resetScanFlags()
		projectDir, rulesFile := setupScanIntegrationTest(t)
		scanCmd.Flags().Set("rules", rulesFile)
		scanCmd.Flags().Set("project", projectDir)
		scanCmd.Flags().Set("output", "xml")
		err := scanCmd.RunE(scanCmd, []string{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "--output must be")
	})
}

func TestScanCmdEndToEndJSONOutput(t *testing.T) {
	t.Cleanup(resetScanFlags)
	projectDir, rulesFile := setupScanIntegrationTest(t)
	outputFile := filepath.Join(t.TempDir(), "results.json")

	resetScanFlags()
	scanCmd.Flags().Set("rules", rulesFile)
	scanCmd.Flags().Set("project", projectDir)
	scanCmd.Flags().Set("output", "json")
	scanCmd.Flags().Set("output-file", outputFile)

	err := scanCmd.RunE(scanCmd, []string{})
	require.NoError(t, err)

	data, err := os.ReadFile(outputFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "SQL Injection")
}

func TestScanCmdOutputFileCreationError(t *testing.T) {
	t.Cleanup(resetScanFlags)
	projectDir, rulesFile := setupScanIntegrationTest(t)

	resetScanFlags()
	scanCmd.Flags().Set("rules", rulesFile)
	scanCmd.Flags().Set("project", projectDir)
	scanCmd.Flags().Set("output", "json")
	scanCmd.Flags().Set("output-file", "/nonexistent/dir/results.json")

	err := scanCmd.RunE(scanCmd, []string{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create output file")
}

func TestLoadRuleStoreSingleFile(t *testing.T) {
	_, rulesFile := setupScanIntegrationTest(t)
	store, err := loadRuleStore(rulesFile)
	require.NoError(t, err)
	assert.Len(t, store.SinkRules, 1)
	assert.Equal(t, "SQL_INJECTION", store.SinkRules[0].SinkName)
}

func TestLoadRuleStoreMergesDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.json"), []byte(`{
  "sink_rules": [{"sink_name": "SQL_INJECTION", "vul_type": "SQL Injection", "severity_level": "Critical", "sinks": ["Statement.executeQuery"]}]
}`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.json"), []byte(`{
  "sink_rules": [{"sink_name": "OPEN_REDIRECT", "vul_type": "Open Redirect", "severity_level": "Medium", "sinks": ["HttpServletResponse.sendRedirect"]}]
}`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("not a rule bundle"), 0644))

	store, err := loadRuleStore(dir)
	require.NoError(t, err)
	assert.Len(t, store.SinkRules, 2)
}

func TestLoadRuleStoreEmptyDirectory(t *testing.T) {
	dir := t.TempDir()
	_, err := loadRuleStore(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no rule bundle files found")
}

func TestCopyFile(t *testing.T) {
	src := filepath.Join(t.TempDir(), "src.json")
	require.NoError(t, os.WriteFile(src, []byte(`{"sink_rules":[]}`), 0644))
	dest := filepath.Join(t.TempDir(), "dest.json")

	require.NoError(t, copyFile(src, dest))

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, `{"sink_rules":[]}`, string(got))
}

func TestBoolToInt(t *testing.T) {
	assert.Equal(t, 1, boolToInt(true))
	assert.Equal(t, 0, boolToInt(false))
}

func TestGetCacheDir(t *testing.T) {
	dir := getCacheDir()
	assert.Contains(t, dir, "javasentry")
	assert.Contains(t, dir, "rules")
}

func TestFindRulesDirectoryFallsBackToWorkingDirectory(t *testing.T) {
	dir := findRulesDirectory()
	assert.NotEmpty(t, dir)
}
