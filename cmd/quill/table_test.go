package main

import (
	"strings"
	"testing"
)

func TestRenderTableBasic(t *testing.T) {
	out := renderTable(
		[]string{"ID", "Stage"},
		[][]string{
			{"1", "input"},
			{"2", "queued"},
		},
		0,
	)
	for _, want := range []string{"ID", "Stage", "input", "queued"} {
		if !strings.Contains(out, want) {
			t.Fatalf("table output missing %q:\n%s", want, out)
		}
	}
	if lines := strings.Split(out, "\n"); len(lines) < 4 {
		t.Fatalf("table output too short:\n%s", out)
	}
}

func TestRenderTablePadsShortRows(t *testing.T) {
	out := renderTable(
		[]string{"A", "B", "C"},
		[][]string{{"only"}},
	)
	if !strings.Contains(out, "only") {
		t.Fatalf("table output missing cell:\n%s", out)
	}
}

func TestRenderTableEmptyHeaders(t *testing.T) {
	if out := renderTable(nil, nil); out != "" {
		t.Fatalf("expected empty output, got %q", out)
	}
}
