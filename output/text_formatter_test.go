package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wardenscan/javasentry/model"
)

func TestTextFormatterNoFindings(t *testing.T) {
	var buf bytes.Buffer
	f := NewTextFormatterWithWriter(&buf, nil, nil)
	require.NoError(t, f.Format(nil, BuildSummary(nil, 0)))

	out := buf.String()
	assert.Contains(t, out, "javasentry security scan")
	assert.Contains(t, out, "No security issues found.")
}

func TestTextFormatterDetailedCriticalFindingShowsChain(t *testing.T) {
	findings := []model.Finding{sampleFinding()}
	var buf bytes.Buffer
	f := NewTextFormatterWithWriter(&buf, nil, nil)
	require.NoError(t, f.Format(findings, BuildSummary(findings, 1)))

	out := buf.String()
	assert.Contains(t, out, "Critical Issues (1):")
	assert.Contains(t, out, "SQL Injection")
	assert.Contains(t, out, "src/main/java/UserController.java:10-14")
	assert.Contains(t, out, "Flow: UserController:lookup -> Svc:find -> Statement:executeQuery")
	assert.Contains(t, out, "AST call-chain backtracking")
}

func TestTextFormatterAbbreviatesLowSeverity(t *testing.T) {
	fnd := model.Finding{
		VulType:    "Open Redirect",
		SinkDesc:   "unvalidated redirect target",
		Severity:   model.SeverityLow,
		Confidence: 0.3,
		FilePath:   "src/main/java/RedirectController.java",
		GroupLines: []int{8, 8},
		ScanMode:   model.ScanModeTemplate,
	}

	var buf bytes.Buffer
	f := NewTextFormatterWithWriter(&buf, nil, nil)
	require.NoError(t, f.Format([]model.Finding{fnd}, BuildSummary([]model.Finding{fnd}, 1)))

	out := buf.String()
	assert.Contains(t, out, "Low Issues (1):")
	assert.Contains(t, out, "[Low] Open Redirect: src/main/java/RedirectController.java:8")
	assert.NotContains(t, out, "Flow:")
}

func TestTextFormatterSanitizedByShownOnlyForASTFindings(t *testing.T) {
	fnd := sampleFinding()
	fnd.SanitizedBy = []string{"PreparedStatement"}

	var buf bytes.Buffer
	f := NewTextFormatterWithWriter(&buf, nil, nil)
	require.NoError(t, f.Format([]model.Finding{fnd}, BuildSummary([]model.Finding{fnd}, 1)))

	assert.Contains(t, buf.String(), "Sanitized by: PreparedStatement")
}

func TestBuildSummaryCountsBySeverityAndMode(t *testing.T) {
	findings := []model.Finding{
		{Severity: model.SeverityCritical, ScanMode: model.ScanModeAST},
		{Severity: model.SeverityCritical, ScanMode: model.ScanModeTemplate},
		{Severity: model.SeverityLow, ScanMode: model.ScanModeTemplate},
	}
	summary := BuildSummary(findings, 4)

	assert.Equal(t, 3, summary.TotalFindings)
	assert.Equal(t, 4, summary.RulesExecuted)
	assert.Equal(t, 2, summary.BySeverity[model.SeverityCritical])
	assert.Equal(t, 1, summary.BySeverity[model.SeverityLow])
	assert.Equal(t, 1, summary.ByDetectionType[model.ScanModeAST])
	assert.Equal(t, 2, summary.ByDetectionType[model.ScanModeTemplate])
}

func TestTextFormatterStatisticsOnlyWhenEnabled(t *testing.T) {
	findings := []model.Finding{sampleFinding()}

	opts := NewDefaultOptions()
	opts.Verbosity = VerbosityDebug
	var buf bytes.Buffer
	f := NewTextFormatterWithWriter(&buf, opts, nil)
	require.NoError(t, f.Format(findings, BuildSummary(findings, 1)))
	assert.Contains(t, buf.String(), "Detection Methods:")

	var buf2 bytes.Buffer
	f2 := NewTextFormatterWithWriter(&buf2, NewDefaultOptions(), nil)
	require.NoError(t, f2.Format(findings, BuildSummary(findings, 1)))
	assert.False(t, strings.Contains(buf2.String(), "Detection Methods:"))
}
