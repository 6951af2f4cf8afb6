package output

import (
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/wardenscan/javasentry/model"
)

// JSONFormatter formats findings as JSON.
type JSONFormatter struct {
	writer  io.Writer
	options *OutputOptions
}

// NewJSONFormatter creates a JSON formatter.
func NewJSONFormatter(opts *OutputOptions) *JSONFormatter {
	if opts == nil {
		opts = NewDefaultOptions()
	}
	return &JSONFormatter{
		writer:  os.Stdout,
		options: opts,
	}
}

// NewJSONFormatterWithWriter creates a formatter with custom writer (for testing).
func NewJSONFormatterWithWriter(w io.Writer, opts *OutputOptions) *JSONFormatter {
	jf := NewJSONFormatter(opts)
	jf.writer = w
	return jf
}

// JSONOutput represents the complete JSON output structure.
type JSONOutput struct {
	Tool    JSONTool     `json:"tool"`
	Scan    JSONScan     `json:"scan"`
	Results []JSONResult `json:"results"`
	Summary JSONSummary  `json:"summary"`
	Errors  []string     `json:"errors,omitempty"`
}

// JSONTool contains tool metadata.
type JSONTool struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	URL     string `json:"url"`
}

// JSONScan contains scan metadata.
type JSONScan struct {
	Target        string  `json:"target"`
	Timestamp     string  `json:"timestamp"`
	Duration      float64 `json:"duration"`
	RulesExecuted int     `json:"rules_executed"` //nolint:tagliatelle
}

// JSONResult represents a single finding.
type JSONResult struct {
	VulType    string       `json:"vul_type"` //nolint:tagliatelle
	Message    string       `json:"message"`
	Severity   string       `json:"severity"`
	Confidence float64      `json:"confidence"`
	Location   JSONLocation `json:"location"`
	Detection  JSONDetection `json:"detection"`
}

// JSONLocation contains finding location.
type JSONLocation struct {
	File       string `json:"file"`
	GroupStart int    `json:"group_start,omitempty"` //nolint:tagliatelle
	GroupEnd   int    `json:"group_end,omitempty"`   //nolint:tagliatelle
}

// JSONDetection contains detection method info.
type JSONDetection struct {
	ScanMode    string   `json:"scan_mode"`   //nolint:tagliatelle
	Sink        string   `json:"sink,omitempty"`
	ChainCount  int      `json:"chain_count,omitempty"`  //nolint:tagliatelle
	CallChains  []string `json:"call_chains,omitempty"`  //nolint:tagliatelle
	SanitizedBy []string `json:"sanitized_by,omitempty"` //nolint:tagliatelle
	Sources     []string `json:"sources,omitempty"`
	Patterns    []string `json:"patterns,omitempty"`
}

// JSONSummary contains aggregated statistics.
type JSONSummary struct {
	Total           int            `json:"total"`
	BySeverity      map[string]int `json:"by_severity"`       //nolint:tagliatelle
	ByDetectionType map[string]int `json:"by_detection_type"` //nolint:tagliatelle
}

// ScanInfo contains metadata about the scan.
type ScanInfo struct {
	Target        string
	Version       string
	Duration      time.Duration
	RulesExecuted int
	Errors        []string
}

// Format outputs all findings as JSON.
func (f *JSONFormatter) Format(findings []model.Finding, summary *Summary, scanInfo ScanInfo) error {
	output := f.buildOutput(findings, summary, scanInfo)

	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(output)
}

func (f *JSONFormatter) buildOutput(findings []model.Finding, summary *Summary, scanInfo ScanInfo) JSONOutput {
	version := scanInfo.Version
	if version == "" {
		version = "unknown"
	}

	output := JSONOutput{
		Tool: JSONTool{
			Name:    "javasentry",
			Version: version,
			URL:     "https://github.com/wardenscan/javasentry",
		},
		Scan: JSONScan{
			Target:        scanInfo.Target,
			Timestamp:     time.Now().UTC().Format(time.RFC3339),
			Duration:      scanInfo.Duration.Seconds(),
			RulesExecuted: scanInfo.RulesExecuted,
		},
		Results: f.buildResults(findings),
		Summary: JSONSummary{
			Total:           summary.TotalFindings,
			BySeverity:      summary.BySeverity,
			ByDetectionType: summary.ByDetectionType,
		},
		Errors: scanInfo.Errors,
	}

	return output
}

func (f *JSONFormatter) buildResults(findings []model.Finding) []JSONResult {
	results := make([]JSONResult, 0, len(findings))

	for _, fnd := range findings {
		results = append(results, JSONResult{
			VulType:    fnd.VulType,
			Message:    fnd.SinkDesc,
			Severity:   fnd.Severity,
			Confidence: fnd.Confidence,
			Location:   f.buildLocation(fnd),
			Detection:  f.buildDetection(fnd),
		})
	}

	return results
}

func (f *JSONFormatter) buildLocation(fnd model.Finding) JSONLocation {
	loc := JSONLocation{File: fnd.FilePath}
	if len(fnd.GroupLines) == 2 {
		loc.GroupStart = fnd.GroupLines[0]
		loc.GroupEnd = fnd.GroupLines[1]
	}
	return loc
}

func (f *JSONFormatter) buildDetection(fnd model.Finding) JSONDetection {
	det := JSONDetection{
		ScanMode:    fnd.ScanMode,
		Sink:        string(fnd.Sink),
		ChainCount:  fnd.ChainCount,
		SanitizedBy: fnd.SanitizedBy,
		Sources:     fnd.Sources,
		Patterns:    fnd.Patterns,
	}
	for _, chain := range fnd.CallChains {
		flat := ""
		for i, sig := range chain {
			if i > 0 {
				flat += " -> "
			}
			flat += string(sig)
		}
		det.CallChains = append(det.CallChains, flat)
	}
	return det
}
