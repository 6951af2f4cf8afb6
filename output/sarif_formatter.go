package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	sarif "github.com/owenrumney/go-sarif/v2/sarif"

	"github.com/wardenscan/javasentry/model"
)

// SARIFFormatter formats findings as SARIF 2.1.0.
type SARIFFormatter struct {
	writer  io.Writer
	options *OutputOptions
}

// NewSARIFFormatter creates a SARIF formatter.
func NewSARIFFormatter(opts *OutputOptions) *SARIFFormatter {
	if opts == nil {
		opts = NewDefaultOptions()
	}
	return &SARIFFormatter{
		writer:  os.Stdout,
		options: opts,
	}
}

// NewSARIFFormatterWithWriter creates a formatter with custom writer (for testing).
func NewSARIFFormatterWithWriter(w io.Writer, opts *OutputOptions) *SARIFFormatter {
	sf := NewSARIFFormatter(opts)
	sf.writer = w
	return sf
}

// Format outputs all findings as SARIF.
func (f *SARIFFormatter) Format(findings []model.Finding, scanInfo ScanInfo) error {
	report, err := sarif.New(sarif.Version210)
	if err != nil {
		return err
	}

	run := sarif.NewRunWithInformationURI("javasentry", "https://github.com/wardenscan/javasentry")

	f.buildRules(findings, run)
	for _, fnd := range findings {
		f.buildResult(fnd, run)
	}

	report.AddRun(run)

	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(report)
}

// ruleID derives a stable SARIF rule identifier from a finding's vul_type,
// since findings carry no separate rule ID of their own.
func ruleID(fnd model.Finding) string {
	return strings.ToUpper(strings.ReplaceAll(fnd.VulType, " ", "_"))
}

func (f *SARIFFormatter) buildRules(findings []model.Finding, run *sarif.Run) {
	seen := make(map[string]bool)

	for _, fnd := range findings {
		id := ruleID(fnd)
		if seen[id] {
			continue
		}
		seen[id] = true

		sarifRule := run.AddRule(id).
			WithDescription(fnd.SinkDesc).
			WithName(fnd.VulType).
			WithHelpURI("https://github.com/wardenscan/javasentry")

		level := f.severityToLevelString(fnd.Severity)
		sarifRule.WithDefaultConfiguration(sarif.NewReportingConfiguration().WithLevel(level))
		sarifRule.WithProperties(f.buildRuleProperties(fnd.Severity))
	}
}

func (f *SARIFFormatter) severityToLevelString(severity string) string {
	switch strings.ToLower(severity) {
	case "critical", "high":
		return "error"
	case "medium":
		return "warning"
	case "low", "info":
		return "note"
	default:
		return "warning"
	}
}

func (f *SARIFFormatter) buildRuleProperties(severity string) map[string]interface{} {
	props := make(map[string]interface{})
	props["tags"] = []string{"security"}
	props["security-severity"] = f.severityToScore(severity)
	props["precision"] = "high"
	return props
}

func (f *SARIFFormatter) severityToScore(severity string) string {
	switch strings.ToLower(severity) {
	case "critical":
		return "9.0"
	case "high":
		return "7.0"
	case "medium":
		return "5.0"
	case "low":
		return "3.0"
	default:
		return "5.0"
	}
}

func (f *SARIFFormatter) buildResult(fnd model.Finding, run *sarif.Run) {
	message := fnd.SinkDesc
	if fnd.Sink != "" {
		message += fmt.Sprintf(" (sink: %s, confidence: %.0f%%)", fnd.Sink, fnd.Confidence*100)
	}

	result := run.CreateResultForRule(ruleID(fnd)).
		WithMessage(sarif.NewTextMessage(message))

	f.addLocation(fnd, result)
	if fnd.ScanMode == model.ScanModeAST && len(fnd.CallChains) > 0 {
		f.addCodeFlow(fnd, result)
	}
}

func (f *SARIFFormatter) addLocation(fnd model.Finding, result *sarif.Result) {
	region := sarif.NewRegion()
	if len(fnd.GroupLines) == 2 {
		region.WithStartLine(fnd.GroupLines[0]).WithEndLine(fnd.GroupLines[1])
	}

	location := sarif.NewLocation().
		WithPhysicalLocation(
			sarif.NewPhysicalLocation().
				WithArtifactLocation(
					sarif.NewArtifactLocation().WithUri(fnd.FilePath),
				).
				WithRegion(region),
		)

	result.AddLocation(location)
}

// addCodeFlow records the call chain as a thread flow of signature-named
// locations (all anchored to the finding's file, since chain nodes carry
// no per-node line numbers).
func (f *SARIFFormatter) addCodeFlow(fnd model.Finding, result *sarif.Result) {
	chain := fnd.CallChains[0]
	if len(chain) == 0 {
		return
	}

	var tfLocations []*sarif.ThreadFlowLocation
	for _, sig := range chain {
		loc := sarif.NewLocation().
			WithPhysicalLocation(
				sarif.NewPhysicalLocation().
					WithArtifactLocation(sarif.NewArtifactLocation().WithUri(fnd.FilePath)),
			).
			WithMessage(sarif.NewTextMessage(string(sig)))
		tfLocations = append(tfLocations, sarif.NewThreadFlowLocation().WithLocation(loc))
	}

	threadFlow := sarif.NewThreadFlow().WithLocations(tfLocations)
	flowMsg := fmt.Sprintf("Call chain of %d node(s) from entry point to sink", len(chain))
	codeFlow := sarif.NewCodeFlow().
		WithThreadFlows([]*sarif.ThreadFlow{threadFlow}).
		WithMessage(sarif.NewTextMessage(flowMsg))

	result.WithCodeFlows([]*sarif.CodeFlow{codeFlow})
}
