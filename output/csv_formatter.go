package output

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/wardenscan/javasentry/model"
)

// CSVFormatter formats findings as CSV.
type CSVFormatter struct {
	writer  io.Writer
	options *OutputOptions
}

// NewCSVFormatter creates a CSV formatter.
func NewCSVFormatter(opts *OutputOptions) *CSVFormatter {
	if opts == nil {
		opts = NewDefaultOptions()
	}
	return &CSVFormatter{
		writer:  os.Stdout,
		options: opts,
	}
}

// NewCSVFormatterWithWriter creates a formatter with custom writer (for testing).
func NewCSVFormatterWithWriter(w io.Writer, opts *OutputOptions) *CSVFormatter {
	cf := NewCSVFormatter(opts)
	cf.writer = w
	return cf
}

// CSVHeaders returns the CSV column headers.
func CSVHeaders() []string {
	return []string{
		"severity",
		"confidence",
		"vul_type",
		"message",
		"file",
		"group_lines",
		"scan_mode",
		"sink",
		"chain_count",
		"sanitized_by",
		"sources",
		"patterns",
	}
}

// Format outputs all findings as CSV.
func (f *CSVFormatter) Format(findings []model.Finding) error {
	w := csv.NewWriter(f.writer)
	defer w.Flush()

	if err := w.Write(CSVHeaders()); err != nil {
		return err
	}

	for _, fnd := range findings {
		if err := w.Write(f.buildRow(fnd)); err != nil {
			return err
		}
	}

	return w.Error()
}

func (f *CSVFormatter) buildRow(fnd model.Finding) []string {
	groupLines := ""
	if len(fnd.GroupLines) == 2 {
		groupLines = strconv.Itoa(fnd.GroupLines[0]) + "-" + strconv.Itoa(fnd.GroupLines[1])
	}

	return []string{
		fnd.Severity,
		strconv.FormatFloat(fnd.Confidence, 'f', 2, 64),
		fnd.VulType,
		fnd.SinkDesc,
		fnd.FilePath,
		groupLines,
		fnd.ScanMode,
		string(fnd.Sink),
		intToString(fnd.ChainCount),
		strings.Join(fnd.SanitizedBy, "|"),
		strings.Join(fnd.Sources, "|"),
		strings.Join(fnd.Patterns, "|"),
	}
}

func intToString(n int) string {
	if n == 0 {
		return ""
	}
	return strconv.Itoa(n)
}
