package gateway

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
)

// SubgraphFixture is one locally-mocked subgraph used by `supergateway dev`
// to exercise a supergraph without live upstream services. Kept on YAML,
// the teacher's own config format (`gateway.yaml`), rather than the TOML
// surface production config uses.
type SubgraphFixture struct {
	Name string `yaml:"name"`
	SDL  string `yaml:"sdl"`
	Mock map[string]any `yaml:"mock"`
}

// FixtureSet is the document `dev` loads once at startup when --fixtures is
// given.
type FixtureSet struct {
	Subgraphs []SubgraphFixture `yaml:"subgraphs"`
}

// LoadFixtures reads a YAML fixture document describing mocked subgraphs
// for local development.
func LoadFixtures(path string) (*FixtureSet, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture file: %w", err)
	}
	var fs FixtureSet
	if err := yaml.Unmarshal(b, &fs); err != nil {
		return nil, fmt.Errorf("failed to decode fixture file: %w", err)
	}
	return &fs, nil
}
