package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestReadBuildInfo(t *testing.T) {
	t.Parallel()

	info := readBuildInfo()
	if info.Version == "" || info.Commit == "" || info.Date == "" || info.Go == "" {
		t.Errorf("readBuildInfo() = %+v, want every field set", info)
	}
	if getVersion() != info.Version {
		t.Errorf("getVersion() = %q, want %q", getVersion(), info.Version)
	}
}

func TestNewVersionCmd(t *testing.T) {
	t.Parallel()

	t.Run("text", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		cmd := NewVersionCmd()
		cmd.SetOut(&buf)
		cmd.SetArgs([]string{})
		if err := cmd.Execute(); err != nil {
			t.Fatalf("Execute() error = %v", err)
		}
		out := buf.String()
		for _, want := range []string{"pagetrail version", "commit:", "built:", "go:"} {
			if !strings.Contains(out, want) {
				t.Errorf("output missing %q: %s", want, out)
			}
		}
	})

	t.Run("json", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		cmd := NewVersionCmd()
		cmd.SetOut(&buf)
		cmd.SetArgs([]string{"--json"})
		if err := cmd.Execute(); err != nil {
			t.Fatalf("Execute() error = %v", err)
		}
		var info buildInfo
		if err := json.Unmarshal(buf.Bytes(), &info); err != nil {
			t.Fatalf("output is not JSON: %v", err)
		}
		if info.Version == "" {
			t.Error("version is empty")
		}
	})
}
