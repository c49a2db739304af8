package safefile

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRejectSymlink(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "target.yaml")
	link := filepath.Join(dir, "link.yaml")

	if err := os.WriteFile(target, []byte("rows: []"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := RejectSymlink(target); err != nil {
		t.Errorf("regular file should pass: %v", err)
	}
	if err := os.Symlink(target, link); err != nil {
		t.Fatal(err)
	}
	err := RejectSymlink(link)
	if err == nil {
		t.Fatal("expected error for symlink")
	}
	if !strings.Contains(err.Error(), "symbolic link") {
		t.Errorf("unexpected error message: %v", err)
	}
}

func TestReadFile(t *testing.T) {
	f := filepath.Join(t.TempDir(), "rows.yaml")
	want := []byte("rows: []\n")
	if err := os.WriteFile(f, want, 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := ReadFile(f, MaxFixtureBytes)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(want) {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestReadFile_TooLarge(t *testing.T) {
	f := filepath.Join(t.TempDir(), "big.yaml")
	if err := os.WriteFile(f, make([]byte, 200), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := ReadFile(f, 100)
	if err == nil {
		t.Fatal("expected error for oversized file")
	}
	if !strings.Contains(err.Error(), "too large") {
		t.Errorf("unexpected error message: %v", err)
	}
	if _, err := ReadFile(f, 0); err != nil {
		t.Errorf("zero limit means unlimited: %v", err)
	}
}

func TestReadFile_RejectsSymlink(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "target.yaml")
	link := filepath.Join(dir, "link.yaml")
	if err := os.WriteFile(target, []byte("secret"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(target, link); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadFile(link, MaxFixtureBytes); err == nil {
		t.Fatal("expected error for symlink")
	}
}

func TestWriteFile_CreatesAndReplaces(t *testing.T) {
	dir := t.TempDir()
	f := filepath.Join(dir, "report.json")

	if err := WriteFile(f, []byte("one"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := WriteFile(f, []byte("two"), 0o600); err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(f)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "two" {
		t.Errorf("got %q, want two", got)
	}
	info, err := os.Stat(f)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("perm = %v, want 0600", info.Mode().Perm())
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("temp files left behind: %d entries", len(entries))
	}
}

func TestWriteFile_RefusesSymlink(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "target.json")
	link := filepath.Join(dir, "link.json")
	if err := os.WriteFile(target, []byte("keep"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(target, link); err != nil {
		t.Fatal(err)
	}
	if err := WriteFile(link, []byte("overwrite"), 0o600); err == nil {
		t.Fatal("expected error writing through symlink")
	}
	got, _ := os.ReadFile(target)
	if string(got) != "keep" {
		t.Errorf("target modified: %q", got)
	}
}
