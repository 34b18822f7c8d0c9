package enumerate

import "testing"

func TestStaticReturnsGivenPaths(t *testing.T) {
	e := Static("/dev/ttyACM0", "/dev/ttyACM1")
	paths, err := e.Enumerate()
	if err != nil {
		t.Fatalf("Enumerate: %v", err)
	}
	if len(paths) != 2 || paths[0] != "/dev/ttyACM0" || paths[1] != "/dev/ttyACM1" {
		t.Fatalf("paths=%v", paths)
	}
}

func TestStaticWithNoArgsReturnsEmpty(t *testing.T) {
	e := Static()
	paths, err := e.Enumerate()
	if err != nil {
		t.Fatalf("Enumerate: %v", err)
	}
	if len(paths) != 0 {
		t.Fatalf("paths=%v, want empty", paths)
	}
}

func TestEnumeratorFuncAdaptsPlainFunction(t *testing.T) {
	called := false
	e := EnumeratorFunc(func() ([]string, error) {
		called = true
		return []string{"/dev/ttyUSB0"}, nil
	})
	paths, err := e.Enumerate()
	if err != nil {
		t.Fatalf("Enumerate: %v", err)
	}
	if !called {
		t.Fatal("expected underlying function to run")
	}
	if len(paths) != 1 || paths[0] != "/dev/ttyUSB0" {
		t.Fatalf("paths=%v", paths)
	}
}
