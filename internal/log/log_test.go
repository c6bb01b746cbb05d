package log

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
		SetLevel(LevelInfo)
	})
	return &buf
}

func TestLevelFiltering(t *testing.T) {
	buf := captureOutput(t)
	SetLevel(LevelWarn)

	Debug("debug line")
	Info("info line")
	Warn("warn line", "key", "foo.bar")
	Error("error line", errors.New("boom"))

	out := buf.String()
	if strings.Contains(out, "debug line") || strings.Contains(out, "info line") {
		t.Fatalf("expected debug/info to be filtered, got %q", out)
	}
	if !strings.Contains(out, "[WARN] warn line key=foo.bar") {
		t.Fatalf("missing warn line in %q", out)
	}
	if !strings.Contains(out, "[ERROR] error line err=boom") {
		t.Fatalf("missing error line in %q", out)
	}
}

func TestKeyValueQuoting(t *testing.T) {
	buf := captureOutput(t)

	Info("greeting", "body", "two words", "empty", "", "odd")

	out := buf.String()
	if !strings.Contains(out, `body="two words"`) {
		t.Fatalf("expected quoted value, got %q", out)
	}
	if !strings.Contains(out, `empty=""`) {
		t.Fatalf("expected quoted empty value, got %q", out)
	}
	if strings.Contains(out, "odd") {
		t.Fatalf("dangling key should be dropped, got %q", out)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug":   LevelDebug,
		" Warn ":  LevelWarn,
		"warning": LevelWarn,
		"ERROR":   LevelError,
		"":        LevelInfo,
		"verbose": LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %s, want %s", in, got, want)
		}
	}
}
