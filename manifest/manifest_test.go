package manifest

import (
	"os"
	"path/filepath"
	"testing"
)

func writeManifest(t *testing.T, dir, contents string) string {
	t.Helper()
	path := filepath.Join(dir, Filename)
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("failed to write manifest: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir, `[project]
name = "demo"
entry = "src/app.sy"

[build]
typecheck = false
cache_dir = "build/cache"
`)

	m, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if m.Project.Name != "demo" {
		t.Errorf("Project.Name = %q, want %q", m.Project.Name, "demo")
	}
	if want := filepath.Join(dir, "src", "app.sy"); m.EntryPath() != want {
		t.Errorf("EntryPath() = %q, want %q", m.EntryPath(), want)
	}
	if want := filepath.Join(dir, "build", "cache"); m.CachePath() != want {
		t.Errorf("CachePath() = %q, want %q", m.CachePath(), want)
	}
	if m.TypecheckEnabled() {
		t.Errorf("TypecheckEnabled() = true, want false")
	}
}

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir, `[project]
name = "bare"
`)

	m, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if want := filepath.Join(dir, "main.sy"); m.EntryPath() != want {
		t.Errorf("EntryPath() = %q, want %q", m.EntryPath(), want)
	}
	if want := filepath.Join(dir, ".sylt-cache"); m.CachePath() != want {
		t.Errorf("CachePath() = %q, want %q", m.CachePath(), want)
	}
	if !m.TypecheckEnabled() {
		t.Errorf("TypecheckEnabled() = false, want true")
	}
}

func TestLoadRejectsBadToml(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir, "[project\nname =")
	if _, err := Load(path); err == nil {
		t.Fatalf("Load() accepted malformed toml")
	}
}

func TestFindAndLoadWalksUp(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, `[project]
name = "nested"
`)
	nested := filepath.Join(root, "a", "b", "c")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("failed to create directories: %v", err)
	}

	m, err := FindAndLoad(nested)
	if err != nil {
		t.Fatalf("FindAndLoad() error: %v", err)
	}
	if m.Project.Name != "nested" {
		t.Errorf("Project.Name = %q, want %q", m.Project.Name, "nested")
	}
}

func TestFindAndLoadMissing(t *testing.T) {
	if _, err := FindAndLoad(t.TempDir()); err == nil {
		t.Fatalf("FindAndLoad() found a manifest in an empty tree")
	}
}
