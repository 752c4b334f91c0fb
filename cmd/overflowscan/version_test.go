package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestVersionGetters(t *testing.T) {
	t.Parallel()

	// Each getter falls back to a placeholder, never to "".
	for name, got := range map[string]string{
		"version": getVersion(),
		"commit":  getCommit(),
		"date":    getDate(),
	} {
		if got == "" {
			t.Errorf("%s getter returned empty string", name)
		}
	}
}

func TestNewVersionCmd(t *testing.T) {
	t.Parallel()

	t.Run("command has correct use", func(t *testing.T) {
		t.Parallel()
		cmd := NewVersionCmd()
		if cmd.Use != "version" {
			t.Errorf("expected Use to be 'version', got %q", cmd.Use)
		}
		if cmd.Flags().Lookup("json") == nil {
			t.Error("expected json flag")
		}
	})

	t.Run("text output", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		cmd := NewVersionCmd()
		cmd.SetOut(&buf)
		cmd.SetArgs([]string{})

		if err := cmd.Execute(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		for _, want := range []string{"overflowscan version", "commit:", "built:", "go:"} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q, got %q", want, output)
			}
		}
	})

	t.Run("json output", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		cmd := NewVersionCmd()
		cmd.SetOut(&buf)
		cmd.SetArgs([]string{"--json"})

		if err := cmd.Execute(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var got versionInfo
		if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
			t.Fatalf("output is not JSON: %v\n%s", err, buf.String())
		}
		if diff := cmp.Diff(currentVersionInfo(), got); diff != "" {
			t.Errorf("version info mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestPrintVersion(t *testing.T) {
	t.Parallel()

	info := versionInfo{Version: "v1.2.3", Commit: "abc1234", Built: "2026-03-01", GoVersion: "go1.25.0", Platform: "linux/amd64"}

	var buf bytes.Buffer
	if err := printVersion(&buf, info, false); err != nil {
		t.Fatalf("printVersion() error = %v", err)
	}

	want := "overflowscan version v1.2.3\n  commit: abc1234\n  built:  2026-03-01\n  go:     go1.25.0 (linux/amd64)\n"
	if diff := cmp.Diff(want, buf.String()); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}
}
