package registry

import (
	"os"
	"testing"
)

func TestAliasMapLoadAndLabel(t *testing.T) {
	tmp := t.TempDir() + "/aliases.yaml"
	if err := os.WriteFile(tmp, []byte("map:\n  /dev/ttyACM0: switch-rack-3\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	m, err := LoadAliasMap(tmp)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if v, ok := m.Label("/dev/ttyACM0"); !ok || v != "switch-rack-3" {
		t.Fatalf("label: %v %v", v, ok)
	}
	if _, ok := m.Label("/dev/ttyACM1"); ok {
		t.Fatalf("unexpected label for unconfigured path")
	}
}

func TestAliasMapMergeOverlaysOtherWins(t *testing.T) {
	base := &AliasMap{Map: map[string]string{"/dev/ttyACM0": "old"}}
	overlay := &AliasMap{Map: map[string]string{"/dev/ttyACM0": "new", "/dev/ttyACM1": "added"}}
	base.Merge(overlay)

	if v, _ := base.Label("/dev/ttyACM0"); v != "new" {
		t.Fatalf("Label(ACM0) = %q, want new", v)
	}
	if v, _ := base.Label("/dev/ttyACM1"); v != "added" {
		t.Fatalf("Label(ACM1) = %q, want added", v)
	}
}

func TestDefaultAliasMapHasNoEntries(t *testing.T) {
	m := DefaultAliasMap()
	if _, ok := m.Label("/dev/ttyACM0"); ok {
		t.Fatalf("default map should be empty")
	}
}
