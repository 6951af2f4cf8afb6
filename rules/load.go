package rules

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Load reads the primary rule bundle at path and returns a validated
// Store. It is the only fatal-at-boot entry point: any I/O or decode
// failure surfaces as *LoadError, any structural problem as
// *ValidationError.
func Load(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	return loadFromBytes(path, data)
}

func loadFromBytes(path string, data []byte) (*Store, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, &ValidationError{Path: path, Reason: "top-level document must be a JSON object"}
	}

	var bundle Bundle
	if err := json.Unmarshal(data, &bundle); err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}

	store := &Store{
		SinkRules:      bundle.SinkRules,
		SourceRules:    bundle.SourceRules,
		SanitizerRules: bundle.SanitizerRules,
		PatternRules:   bundle.PatternRules,
		TemplateRules:  bundle.TemplateRules,
		Flags: Flags{
			Depth:      DefaultDepth,
			MaxSeconds: DefaultMaxSeconds,
		},
	}
	if store.PatternRules == nil {
		store.PatternRules = map[string][]string{}
	}
	if bundle.Depth != nil {
		store.Flags.Depth = *bundle.Depth
	}
	if bundle.MaxSeconds != nil {
		store.Flags.MaxSeconds = *bundle.MaxSeconds
	}

	if len(store.SinkRules) == 0 {
		store.Warnings = append(store.Warnings, fmt.Sprintf("%s: no sink_rules present", path))
	}

	return store, nil
}

// LoadOverlay parses an additional bundle (built-in augments, enhanced
// sinks, comprehensive rules, …) and concatenates its rule lists onto an
// already-loaded Store. Merge semantics: concatenate, never deduplicate.
// An overlay that fails to parse is a LoadError, same as the primary
// bundle — overlays are opt-in but once named they must be well formed.
func (s *Store) LoadOverlay(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return &LoadError{Path: path, Err: err}
	}
	return s.MergeOverlayBytes(path, data)
}

// MergeOverlayBytes merges JSON or YAML overlay bytes into the store.
// YAML overlays are distinguished by file extension and decoded into the
// same Bundle shape before merging — see rules/yaml.go.
func (s *Store) MergeOverlayBytes(path string, data []byte) error {
	var bundle Bundle
	if isYAMLPath(path) {
		if err := decodeYAMLBundle(data, &bundle); err != nil {
			return &LoadError{Path: path, Err: err}
		}
	} else {
		trimmed := bytes.TrimSpace(data)
		if len(trimmed) == 0 || trimmed[0] != '{' {
			return &ValidationError{Path: path, Reason: "top-level document must be a JSON object"}
		}
		if err := json.Unmarshal(data, &bundle); err != nil {
			return &LoadError{Path: path, Err: err}
		}
	}

	s.SinkRules = append(s.SinkRules, bundle.SinkRules...)
	s.SourceRules = append(s.SourceRules, bundle.SourceRules...)
	s.SanitizerRules = append(s.SanitizerRules, bundle.SanitizerRules...)
	s.TemplateRules = append(s.TemplateRules, bundle.TemplateRules...)
	for name, entries := range bundle.PatternRules {
		s.PatternRules[name] = append(s.PatternRules[name], entries...)
	}
	return nil
}

func isYAMLPath(path string) bool {
	lower := strings.ToLower(path)
	return strings.HasSuffix(lower, ".yaml") || strings.HasSuffix(lower, ".yml")
}

// ApplyFlags overlays CLI-supplied overrides onto the bundle-resolved
// flags. Zero values (false, nil, 0) leave the bundle's own setting in
// place; callers pass only the flags the user actually set.
func (s *Store) ApplyFlags(override Flags, setDepth, setMaxSeconds bool) {
	s.Flags.LiteFast = s.Flags.LiteFast || override.LiteFast
	s.Flags.DisableTemplateScan = s.Flags.DisableTemplateScan || override.DisableTemplateScan
	s.Flags.ApplyMustSubstrings = s.Flags.ApplyMustSubstrings || override.ApplyMustSubstrings
	s.Flags.IgnoreSkipDirs = s.Flags.IgnoreSkipDirs || override.IgnoreSkipDirs
	if len(override.IncludeExts) > 0 {
		s.Flags.IncludeExts = override.IncludeExts
	}
	if setDepth {
		s.Flags.Depth = override.Depth
	}
	if setMaxSeconds {
		s.Flags.MaxSeconds = override.MaxSeconds
	}
}
