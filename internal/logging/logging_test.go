package logging

import (
	"bytes"
	"errors"
	"os"
	"strings"
	"testing"
)

func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() {
		SetOutput(os.Stderr)
		_ = SetLevel("info")
	})
	return &buf
}

func TestLevelFiltering(t *testing.T) {
	buf := captureOutput(t)

	if err := SetLevel("warn"); err != nil {
		t.Fatalf("set level: %v", err)
	}
	Infof("hidden %d", 1)
	Debugf("hidden debug")
	Warnf("shown %d", 2)
	Errorf("also shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info line should be filtered: %q", out)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), out)
	}
	if !strings.HasPrefix(lines[0], "W") || !strings.HasSuffix(lines[0], "shown 2") {
		t.Fatalf("unexpected warning line: %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "E") || !strings.HasSuffix(lines[1], "also shown") {
		t.Fatalf("unexpected error line: %q", lines[1])
	}
}

func TestDebugLevelEnablesVerbose(t *testing.T) {
	buf := captureOutput(t)

	if err := SetLevel("debug"); err != nil {
		t.Fatalf("set level: %v", err)
	}
	Debugf("request id=%s", "abc")
	if !strings.Contains(buf.String(), "request id=abc") {
		t.Fatalf("debug line missing: %q", buf.String())
	}
	if !strings.Contains(buf.String(), "logging_test.go") {
		t.Fatalf("caller should be the test file: %q", buf.String())
	}

	buf.Reset()
	if err := SetLevel("info"); err != nil {
		t.Fatalf("set level: %v", err)
	}
	Debugf("quiet")
	if buf.Len() != 0 {
		t.Fatalf("debug should be off at info: %q", buf.String())
	}
}

func TestStructuredHelpers(t *testing.T) {
	buf := captureOutput(t)

	Info("request served", "path", "/world-data/")
	Error(errors.New("boom"), "request failed", "status", 500)

	out := buf.String()
	if !strings.Contains(out, `"request served" path="/world-data/"`) {
		t.Fatalf("missing structured info: %q", out)
	}
	if !strings.Contains(out, `"request failed" err="boom" status=500`) {
		t.Fatalf("missing structured error: %q", out)
	}
}

func TestSetLevelRejectsUnknown(t *testing.T) {
	if err := SetLevel("loud"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}
