package output

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/wardenscan/javasentry/model"
)

// TextFormatter formats findings as human-readable text.
type TextFormatter struct {
	writer  io.Writer
	options *OutputOptions
	logger  *Logger
}

// NewTextFormatter creates a text formatter.
func NewTextFormatter(opts *OutputOptions, logger *Logger) *TextFormatter {
	if opts == nil {
		opts = NewDefaultOptions()
	}
	return &TextFormatter{
		writer:  os.Stdout,
		options: opts,
		logger:  logger,
	}
}

// NewTextFormatterWithWriter creates a formatter with custom writer (for testing).
func NewTextFormatterWithWriter(w io.Writer, opts *OutputOptions, logger *Logger) *TextFormatter {
	tf := NewTextFormatter(opts, logger)
	tf.writer = w
	return tf
}

// Format outputs all findings as formatted text.
func (f *TextFormatter) Format(findings []model.Finding, summary *Summary) error {
	if len(findings) == 0 {
		f.writeNoFindings()
		return nil
	}

	f.writeHeader()
	f.writeResults(findings)
	f.writeSummary(summary)

	if f.options.ShouldShowStatistics() {
		f.writeStatistics(summary)
	}

	return nil
}

func (f *TextFormatter) writeHeader() {
	fmt.Fprintln(f.writer, "javasentry security scan")
	fmt.Fprintln(f.writer)
}

func (f *TextFormatter) writeNoFindings() {
	fmt.Fprintln(f.writer, "javasentry security scan")
	fmt.Fprintln(f.writer)
	fmt.Fprintln(f.writer, "No security issues found.")
}

func (f *TextFormatter) writeResults(findings []model.Finding) {
	fmt.Fprintln(f.writer, "Results:")
	fmt.Fprintln(f.writer)

	grouped := f.groupBySeverity(findings)

	severityOrder := []string{"Critical", "High", "Medium", "Low", "Info"}
	for _, sev := range severityOrder {
		if fs, ok := grouped[sev]; ok && len(fs) > 0 {
			f.writeSeverityGroup(sev, fs)
		}
	}
}

func (f *TextFormatter) groupBySeverity(findings []model.Finding) map[string][]model.Finding {
	grouped := make(map[string][]model.Finding)
	for _, fnd := range findings {
		grouped[fnd.Severity] = append(grouped[fnd.Severity], fnd)
	}
	return grouped
}

func (f *TextFormatter) writeSeverityGroup(severity string, findings []model.Finding) {
	fmt.Fprintf(f.writer, "%s Issues (%d):\n", severity, len(findings))
	fmt.Fprintln(f.writer)

	showDetailed := severity == "Critical" || severity == "High"

	for _, fnd := range findings {
		if showDetailed {
			f.writeDetailedFinding(fnd)
		} else {
			f.writeAbbreviatedFinding(fnd)
		}
	}
	fmt.Fprintln(f.writer)
}

func (f *TextFormatter) writeDetailedFinding(fnd model.Finding) {
	fmt.Fprintf(f.writer, "  [%s] %s: %s\n", fnd.Severity, fnd.VulType, fnd.SinkDesc)
	fmt.Fprintln(f.writer)

	fmt.Fprintf(f.writer, "    %s\n", f.formatLocation(fnd))

	if fnd.ScanMode == model.ScanModeAST {
		f.writeCallChains(fnd)
	}

	fmt.Fprintf(f.writer, "    Confidence: %.2f | Detection: %s\n",
		fnd.Confidence, f.formatDetectionMethod(fnd.ScanMode))
	fmt.Fprintln(f.writer)
}

func (f *TextFormatter) writeAbbreviatedFinding(fnd model.Finding) {
	fmt.Fprintf(f.writer, "  [%s] %s: %s\n", fnd.Severity, fnd.VulType, f.formatLocation(fnd))
}

func (f *TextFormatter) formatLocation(fnd model.Finding) string {
	path := fnd.FilePath
	if len(fnd.GroupLines) == 2 {
		if fnd.GroupLines[0] == fnd.GroupLines[1] {
			return fmt.Sprintf("%s:%d", path, fnd.GroupLines[0])
		}
		return fmt.Sprintf("%s:%d-%d", path, fnd.GroupLines[0], fnd.GroupLines[1])
	}
	return path
}

func (f *TextFormatter) writeCallChains(fnd model.Finding) {
	for _, chain := range fnd.CallChains {
		parts := make([]string, len(chain))
		for i, sig := range chain {
			parts[i] = string(sig)
		}
		fmt.Fprintf(f.writer, "    Flow: %s\n", strings.Join(parts, " -> "))
	}
	if len(fnd.SanitizedBy) > 0 {
		fmt.Fprintf(f.writer, "    Sanitized by: %s\n", strings.Join(fnd.SanitizedBy, ", "))
	}
}

func (f *TextFormatter) formatDetectionMethod(mode string) string {
	switch mode {
	case model.ScanModeAST:
		return "AST call-chain backtracking"
	case model.ScanModeTemplate:
		return "Pattern matching"
	default:
		return "Unknown"
	}
}

func (f *TextFormatter) writeSummary(summary *Summary) {
	fmt.Fprintln(f.writer, "Summary:")
	fmt.Fprintf(f.writer, "  %d findings across %d rules\n",
		summary.TotalFindings, summary.RulesExecuted)

	var parts []string
	for _, sev := range []string{"Critical", "High", "Medium", "Low"} {
		if count, ok := summary.BySeverity[sev]; ok && count > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", count, sev))
		}
	}
	if len(parts) > 0 {
		fmt.Fprintf(f.writer, "  %s\n", strings.Join(parts, " | "))
	}
	fmt.Fprintln(f.writer)
}

func (f *TextFormatter) writeStatistics(summary *Summary) {
	fmt.Fprintln(f.writer, "Detection Methods:")
	for method, count := range summary.ByDetectionType {
		fmt.Fprintf(f.writer, "  %s: %d findings\n", method, count)
	}
	fmt.Fprintln(f.writer)
}

// Summary holds aggregated statistics.
type Summary struct {
	TotalFindings   int
	RulesExecuted   int
	BySeverity      map[string]int
	ByDetectionType map[string]int
	FilesScanned    int
	Duration        string
}

// BuildSummary creates a summary from a finding list.
func BuildSummary(findings []model.Finding, rulesExecuted int) *Summary {
	summary := &Summary{
		TotalFindings:   len(findings),
		RulesExecuted:   rulesExecuted,
		BySeverity:      make(map[string]int),
		ByDetectionType: make(map[string]int),
	}

	for _, fnd := range findings {
		summary.BySeverity[fnd.Severity]++
		summary.ByDetectionType[fnd.ScanMode]++
	}

	return summary
}
