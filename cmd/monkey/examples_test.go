package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const examplesDir = "../../examples"

// TestExamples runs every examples/*.mk program under both engines and
// compares what it prints with the matching .out file.
func TestExamples(t *testing.T) {
	programs, err := filepath.Glob(filepath.Join(examplesDir, "*.mk"))
	if err != nil {
		t.Fatal(err)
	}
	if len(programs) == 0 {
		t.Fatal("no example programs found")
	}
	config := filepath.Join(examplesDir, "monkey.toml")

	for _, program := range programs {
		want, err := os.ReadFile(strings.TrimSuffix(program, ".mk") + ".out")
		if err != nil {
			t.Fatalf("missing expected output: %v", err)
		}
		for _, engine := range []string{"vm", "eval"} {
			t.Run(filepath.Base(program)+"/"+engine, func(t *testing.T) {
				var stdout, stderr bytes.Buffer
				code := run([]string{"-config", config, "-engine", engine, program}, &stdout, &stderr)
				if code != 0 {
					t.Fatalf("exit code %d, stderr %q", code, stderr.String())
				}
				if diff := cmp.Diff(string(want), stdout.String()); diff != "" {
					t.Errorf("output mismatch (-want +got):\n%s", diff)
				}
			})
		}
	}
}
