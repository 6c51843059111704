package cli

import (
	"bytes"
	"strings"
	"testing"
)

func TestVersionFlag(t *testing.T) {
	var out, errOut bytes.Buffer
	code := Entry([]string{"-version"}, &out, &errOut)
	if code != 0 {
		t.Fatalf("exit code %d, stderr: %s", code, errOut.String())
	}
	if !strings.HasPrefix(out.String(), "cozy ") {
		t.Errorf("unexpected version output: %q", out.String())
	}
}

func TestBadFlag(t *testing.T) {
	var out, errOut bytes.Buffer
	if code := Entry([]string{"-definitely-not-a-flag"}, &out, &errOut); code != 2 {
		t.Errorf("bad flags exit with 2, got %d", code)
	}
}

func TestEndToEndSynthesis(t *testing.T) {
	var out, errOut bytes.Buffer
	code := Entry([]string{"-timeout", "10s", "-log-dir", t.TempDir()}, &out, &errOut)
	if code != 0 {
		t.Fatalf("exit code %d, stderr: %s", code, errOut.String())
	}
	for _, want := range []string{"IntSet:", "query size", "op insert"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("missing %q in emitted code:\n%s", want, out.String())
		}
	}
}
