// Package config holds the static classification tables the pipeline is
// configured with. The tables are loaded once and injected into the query
// builder and normalizer; nothing in this package is mutated after Load.
package config

import (
	"embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed categories.yaml
var categoriesYAML embed.FS

// MonitoredCategory is a CPV code the business watches, with its display label.
// A code ending in zeros covers every CPV sharing its zero-trimmed prefix.
type MonitoredCategory struct {
	Code  string `yaml:"code" json:"code"`
	Label string `yaml:"label" json:"label"`
}

// Tables is the full set of injected classification data.
type Tables struct {
	Monitored       []MonitoredCategory `yaml:"monitored"`
	CPVLabels       map[string]string   `yaml:"cpv_labels"`
	DefaultCPVLabel string              `yaml:"default_cpv_label"`
	Countries       map[string]string   `yaml:"countries"`
}

// Load reads the embedded categories.yaml. The path parameter, when non-empty,
// points to an override file on disk for local experiments. Environment
// variables in the YAML content are expanded before unmarshalling.
func Load(path string) (*Tables, error) {
	data, err := categoriesYAML.ReadFile("categories.yaml")
	if err != nil {
		return nil, err
	}
	if path != "" {
		if fileData, fileErr := os.ReadFile(path); fileErr == nil {
			data = fileData
		}
	}

	expanded := os.ExpandEnv(string(data))

	var t Tables
	if err := yaml.Unmarshal([]byte(expanded), &t); err != nil {
		return nil, fmt.Errorf("failed to parse categories config: %w", err)
	}

	if len(t.Monitored) == 0 {
		return nil, fmt.Errorf("categories config defines no monitored categories")
	}
	seen := make(map[string]bool, len(t.Monitored))
	for _, m := range t.Monitored {
		if m.Code == "" {
			return nil, fmt.Errorf("monitored category with empty code")
		}
		if seen[m.Code] {
			return nil, fmt.Errorf("duplicate monitored category code %s", m.Code)
		}
		seen[m.Code] = true
	}

	if t.CPVLabels == nil {
		t.CPVLabels = map[string]string{}
	}
	// Monitored labels double as CPV display labels.
	for _, m := range t.Monitored {
		if _, ok := t.CPVLabels[m.Code]; !ok {
			t.CPVLabels[m.Code] = m.Label
		}
	}
	if t.DefaultCPVLabel == "" {
		t.DefaultCPVLabel = "Unmonitored CPV Code"
	}
	if t.Countries == nil {
		t.Countries = map[string]string{}
	}

	return &t, nil
}

// CPVLabel returns the display label for a CPV code, falling back to the
// generic unmonitored label.
func (t *Tables) CPVLabel(code string) string {
	if label, ok := t.CPVLabels[code]; ok {
		return label
	}
	return t.DefaultCPVLabel
}

// CountryName maps an identification code to its display name, passing the
// raw code through when unmapped.
func (t *Tables) CountryName(code string) string {
	if name, ok := t.Countries[code]; ok {
		return name
	}
	return code
}
