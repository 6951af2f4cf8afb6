package rules

import "gopkg.in/yaml.v3"

// decodeYAMLBundle decodes a YAML-formatted overlay into the same Bundle
// shape JSON bundles use. yaml.v3 does not read `json` tags, so Bundle's
// top-level fields are mirrored below in yamlBundle with `yaml` tags
// matching the JSON keys, then copied across; the rule element types
// carry their own `yaml` tags and are decoded directly.
func decodeYAMLBundle(data []byte, out *Bundle) error {
	var raw yamlBundle
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return err
	}
	out.SinkRules = raw.SinkRules
	out.SourceRules = raw.SourceRules
	out.SanitizerRules = raw.SanitizerRules
	out.PatternRules = raw.PatternRules
	out.TemplateRules = raw.TemplateRules
	out.Depth = raw.Depth
	out.MaxSeconds = raw.MaxSeconds
	return nil
}

type yamlBundle struct {
	SinkRules      []SinkRule          `yaml:"sink_rules"`
	SourceRules    []SourceRule        `yaml:"source_rules"`
	SanitizerRules []SanitizerRule     `yaml:"sanitizer_rules"`
	PatternRules   map[string][]string `yaml:"pattern_rules"`
	TemplateRules  []TemplateRule      `yaml:"template_rules"`
	Depth          *int                `yaml:"depth,omitempty"`
	MaxSeconds     *int                `yaml:"max_seconds,omitempty"`
}
