package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestReadScript(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "turns.txt")
	content := "first input\n\n  second input  \n\t\nthird input\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing script: %v", err)
	}

	inputs, err := readScript(path)
	if err != nil {
		t.Fatalf("readScript() error = %v", err)
	}

	want := []string{"first input", "second input", "third input"}
	if len(inputs) != len(want) {
		t.Fatalf("readScript() returned %d inputs, want %d", len(inputs), len(want))
	}
	for i := range want {
		if inputs[i] != want[i] {
			t.Errorf("inputs[%d] = %q, want %q", i, inputs[i], want[i])
		}
	}
}

func TestReadScriptEmpty(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.txt")
	if err := os.WriteFile(path, []byte("\n\n  \n"), 0o644); err != nil {
		t.Fatalf("writing script: %v", err)
	}

	if _, err := readScript(path); err == nil {
		t.Error("readScript() on a blank file should fail")
	}
}

func TestReadScriptMissingFile(t *testing.T) {
	if _, err := readScript(filepath.Join(t.TempDir(), "missing.txt")); err == nil {
		t.Error("readScript() on a missing file should fail")
	}
}
