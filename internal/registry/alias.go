package registry

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// AliasMap maps a serial device path to an operator-assigned label, so
// a device that shows up as /dev/ttyACM0 today and /dev/ttyACM1
// tomorrow can still be found by a stable name in the API and in logs.
type AliasMap struct {
	Map map[string]string `yaml:"map"`
}

// DefaultAliasMap returns an empty map; every path falls back to its
// own device path as its label until an operator assigns one.
func DefaultAliasMap() *AliasMap {
	return &AliasMap{Map: make(map[string]string)}
}

// LoadAliasMap reads a path→label table from a YAML file.
func LoadAliasMap(path string) (*AliasMap, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read alias map: %w", err)
	}
	var m AliasMap
	if err := yaml.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("unmarshal alias map: %w", err)
	}
	if m.Map == nil {
		m.Map = make(map[string]string)
	}
	return &m, nil
}

// Label returns the assigned label for path, or ok=false if none is
// configured.
func (m *AliasMap) Label(path string) (string, bool) {
	if m == nil || m.Map == nil {
		return "", false
	}
	v, ok := m.Map[path]
	return v, ok
}

// Merge overlays other's entries onto m, other winning on conflicts.
func (m *AliasMap) Merge(other *AliasMap) {
	if other == nil {
		return
	}
	if m.Map == nil {
		m.Map = make(map[string]string)
	}
	for k, v := range other.Map {
		m.Map[k] = v
	}
}
