// Package rules loads, validates and merges the JSON rule bundles that
// drive the sink/source/sanitizer/pattern/template analysis. It models
// the bundle's heterogeneous, dynamically-shaped JSON as a typed,
// validated-once record that the rest of the pipeline can consume without
// re-checking optional keys.
package rules

// SinkRule names a vulnerability-producing method family.
type SinkRule struct {
	SinkName      string   `json:"sink_name" yaml:"sink_name"`
	SinkDesc      string   `json:"sink_desc" yaml:"sink_desc"`
	VulType       string   `json:"vul_type" yaml:"vul_type"`
	SeverityLevel string   `json:"severity_level" yaml:"severity_level"`
	Sinks         []string `json:"sinks" yaml:"sinks"`
}

// SourceRule names a taint-source method family.
type SourceRule struct {
	SourceName string   `json:"source_name" yaml:"source_name"`
	Sources    []string `json:"sources" yaml:"sources"`
}

// SanitizerRule names a taint-neutralizing method family.
type SanitizerRule struct {
	SanitizerName string   `json:"sanitizer_name" yaml:"sanitizer_name"`
	Sanitizers    []string `json:"sanitizers" yaml:"sanitizers"`
}

// TemplateRule is a regex pattern rule applied by the template scanner.
type TemplateRule struct {
	Name              string   `json:"name" yaml:"name"`
	VulType           string   `json:"vul_type" yaml:"vul_type"`
	Desc              string   `json:"desc" yaml:"desc"`
	Severity          string   `json:"severity" yaml:"severity"`
	FileExts          []string `json:"file_exts" yaml:"file_exts"`
	Patterns          []string `json:"patterns" yaml:"patterns"`
	MustSubstrings    []string `json:"must_substrings,omitempty" yaml:"must_substrings,omitempty"`
	ExcludeSubstrings []string `json:"exclude_substrings,omitempty" yaml:"exclude_substrings,omitempty"`
	ForceRegex        bool     `json:"force_regex,omitempty" yaml:"force_regex,omitempty"`
}

// Bundle is the raw, parsed shape of one rule bundle JSON document.
type Bundle struct {
	SinkRules      []SinkRule              `json:"sink_rules"`
	SourceRules    []SourceRule            `json:"source_rules"`
	SanitizerRules []SanitizerRule         `json:"sanitizer_rules"`
	PatternRules   map[string][]string     `json:"pattern_rules"`
	TemplateRules  []TemplateRule          `json:"template_rules"`
	Depth          *int                    `json:"depth,omitempty"`
	MaxSeconds     *int                    `json:"max_seconds,omitempty"`
}

// Flags are the downstream-visible run parameters that ride alongside a
// bundle. They are resolved once at load time from the bundle plus CLI
// overrides and read by every downstream component that needs them.
type Flags struct {
	LiteFast            bool
	DisableTemplateScan bool
	ApplyMustSubstrings bool
	IgnoreSkipDirs      bool
	IncludeExts         []string
	Depth               int
	MaxSeconds          int
}

// DefaultDepth is used when neither the bundle nor the CLI set a depth.
const DefaultDepth = 15

// DefaultMaxSeconds is used when neither the bundle nor the CLI set a
// max_seconds hint. It is carried through for external collaborators;
// the search loop itself never enforces it (see chainfinder).
const DefaultMaxSeconds = 600

// Store is the validated, queryable view of one or more merged bundles.
type Store struct {
	SinkRules      []SinkRule
	SourceRules    []SourceRule
	SanitizerRules []SanitizerRule
	PatternRules   map[string][]string
	TemplateRules  []TemplateRule
	Flags          Flags
	Warnings       []string
}
