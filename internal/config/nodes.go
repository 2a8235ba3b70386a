package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// NodeEntry descreve um backend declarado no inventário YAML.
type NodeEntry struct {
	ID     string `yaml:"id"`
	URL    string `yaml:"url"`
	Weight int    `yaml:"weight"`
}

// LoadNodes lê o inventário de nós do caminho informado. Caminho vazio
// significa "sem inventário" e devolve nil sem erro.
func LoadNodes(path string) ([]NodeEntry, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading nodes file: %w", err)
	}

	var doc struct {
		Nodes []NodeEntry `yaml:"nodes"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing nodes file %s: %w", path, err)
	}

	return doc.Nodes, nil
}
