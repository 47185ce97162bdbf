package stategraph

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// ErrEmptyConfig is returned when a config document declares no graphs.
var ErrEmptyConfig = errors.New("state graph config contains no graph definitions")

// configFile mirrors the on-disk YAML layout:
//
//	graphs:
//	  - entity_type: order
//	    initial: AddingItems
//	    states: [AddingItems, ArrangingPayment, Cancelled]
//	    terminals: [Cancelled]
//	    transitions:
//	      - {from: AddingItems, event: arrangePayment, to: ArrangingPayment}
//	      - {from: AddingItems, event: cancel, to: Cancelled}
type configFile struct {
	Graphs []Definition `yaml:"graphs"`
}

// Parse decodes YAML graph definitions and compiles each one. The result
// is keyed by entity type. Decoding is strict: unknown fields fail.
func Parse(r io.Reader) (map[string]*Graph, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var cfg configFile
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode state graph config: %w", err)
	}
	if len(cfg.Graphs) == 0 {
		return nil, ErrEmptyConfig
	}

	graphs := make(map[string]*Graph, len(cfg.Graphs))
	for _, def := range cfg.Graphs {
		if _, dup := graphs[def.EntityType]; dup {
			return nil, newConfigError(def.EntityType, "entity type declared twice in config")
		}
		g, err := New(def)
		if err != nil {
			return nil, err
		}
		graphs[def.EntityType] = g
	}
	return graphs, nil
}

// LoadFile reads and parses graph definitions from a YAML file.
func LoadFile(path string) (map[string]*Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open state graph config %q: %w", path, err)
	}
	defer f.Close()
	return Parse(f)
}
