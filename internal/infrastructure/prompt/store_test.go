package prompt

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTemplate(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write template: %v", err)
	}
}

func TestNewStoreLoadsTemplate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompt.yaml")
	writeTemplate(t, path, "lines:\n  - text: \"Erste Fassung.\"\n")

	store, err := NewStore(path)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	prompt := store.Current().Assemble(map[string]string{"review": "Super!"})
	if !strings.Contains(prompt, "Erste Fassung.") {
		t.Fatalf("template not loaded:\n%s", prompt)
	}
}

func TestNewStoreFailsOnMissingFile(t *testing.T) {
	if _, err := NewStore(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing template file")
	}
}

func TestReloadPicksUpChanges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompt.yaml")
	writeTemplate(t, path, "lines:\n  - text: \"Erste Fassung.\"\n")

	store, err := NewStore(path)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	writeTemplate(t, path, "lines:\n  - text: \"Zweite Fassung.\"\n")
	if err := store.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}

	prompt := store.Current().Assemble(map[string]string{"review": "Super!"})
	if !strings.Contains(prompt, "Zweite Fassung.") {
		t.Fatalf("reload did not take effect:\n%s", prompt)
	}
}

func TestReloadKeepsLastGoodTemplate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompt.yaml")
	writeTemplate(t, path, "lines:\n  - text: \"Erste Fassung.\"\n")

	store, err := NewStore(path)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	writeTemplate(t, path, ":::kaputt")
	if err := store.Reload(); err == nil {
		t.Fatal("expected error for broken template")
	}

	prompt := store.Current().Assemble(map[string]string{"review": "Super!"})
	if !strings.Contains(prompt, "Erste Fassung.") {
		t.Fatalf("broken edit must keep the previous template:\n%s", prompt)
	}
}
