package opts

import (
	"os"
	"path/filepath"
	"testing"
)

func TestBoolOptionDefaultsAndSet(t *testing.T) {
	o := Bool("test-bool-option", true)
	if !o.Value() {
		t.Errorf("default must hold before any Set")
	}
	if err := Set("test-bool-option", "false"); err != nil {
		t.Fatal(err)
	}
	if o.Value() {
		t.Errorf("Set must override the default")
	}
	o.Set(true)
	if !o.Value() {
		t.Errorf("typed Set must override too")
	}
}

func TestRegisteringTwiceKeepsFirstDefault(t *testing.T) {
	a := Bool("test-dup-option", true)
	b := Bool("test-dup-option", false)
	if !a.Value() || !b.Value() {
		t.Errorf("second registration must not clobber the value")
	}
}

func TestSetUnknownOption(t *testing.T) {
	if err := Set("no-such-option", "1"); err == nil {
		t.Errorf("unknown options are an error")
	}
}

func TestSetBadBool(t *testing.T) {
	Bool("test-bad-bool", false)
	if err := Set("test-bad-bool", "maybe"); err == nil {
		t.Errorf("non-boolean values are an error")
	}
}

func TestLoadFile(t *testing.T) {
	Bool("test-yaml-bool", false)
	s := String("test-yaml-string", "def")

	path := filepath.Join(t.TempDir(), "opts.yaml")
	content := "test-yaml-bool: true\ntest-yaml-string: hello\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := LoadFile(path); err != nil {
		t.Fatal(err)
	}
	if s.Value() != "hello" {
		t.Errorf("string option not loaded, got %q", s.Value())
	}

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(bad, []byte("unknown-key: 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := LoadFile(bad); err == nil {
		t.Errorf("unknown keys must not pass silently")
	}
}
