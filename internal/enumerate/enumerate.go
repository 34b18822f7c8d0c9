// Package enumerate lists candidate serial device paths.
package enumerate

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Enumerator discovers candidate serial device paths. It is pluggable
// so tests and non-Linux platforms can substitute a fixed list.
type Enumerator interface {
	Enumerate() ([]string, error)
}

// EnumeratorFunc adapts a plain function to Enumerator.
type EnumeratorFunc func() ([]string, error)

func (f EnumeratorFunc) Enumerate() ([]string, error) { return f() }

// DefaultDir lists /dev entries whose name begins with ttyACM or
// ttyUSB, sorted, matching the default enumeration rule.
func DefaultDir() Enumerator {
	return EnumeratorFunc(func() ([]string, error) {
		entries, err := os.ReadDir("/dev")
		if err != nil {
			return nil, err
		}
		var paths []string
		for _, e := range entries {
			name := e.Name()
			if strings.HasPrefix(name, "ttyACM") || strings.HasPrefix(name, "ttyUSB") {
				paths = append(paths, filepath.Join("/dev", name))
			}
		}
		sort.Strings(paths)
		return paths, nil
	})
}

// Static returns an Enumerator that always yields paths, for tests
// and environments without real serial hardware.
func Static(paths ...string) Enumerator {
	sorted := append([]string(nil), paths...)
	sort.Strings(sorted)
	return EnumeratorFunc(func() ([]string, error) { return sorted, nil })
}
