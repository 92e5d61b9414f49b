package gitsource

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/sirupsen/logrus/hooks/test"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestList(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "b.md"), "bee")
	writeFile(t, filepath.Join(root, "a.md"), "a")
	writeFile(t, filepath.Join(root, "docs", "guide.md"), "guide")
	writeFile(t, filepath.Join(root, ".git", "HEAD"), "ref")

	entries, err := List(root, "")
	if err != nil {
		t.Fatalf("List() returned an unexpected error: %v", err)
	}
	want := []string{"docs", "a.md", "b.md"}
	if len(entries) != len(want) {
		t.Fatalf("Expected %d entries, but got %d: %+v", len(want), len(entries), entries)
	}
	for i, name := range want {
		if entries[i].Name != name {
			t.Errorf("Expected entry %d to be %q, but got %q", i, name, entries[i].Name)
		}
	}
	if entries[0].Type != "dir" || entries[2].Size != 3 {
		t.Errorf("Unexpected entry metadata: %+v", entries)
	}

	sub, err := List(root, "docs")
	if err != nil {
		t.Fatalf("List(docs) returned an unexpected error: %v", err)
	}
	if len(sub) != 1 || sub[0].Path != "docs/guide.md" {
		t.Errorf("Expected docs/guide.md, but got %+v", sub)
	}
}

func TestPathEscape(t *testing.T) {
	root := t.TempDir()
	for _, rel := range []string{"..", "../etc/passwd", "docs/../../x"} {
		if _, err := List(root, rel); !errors.Is(err, ErrOutsideRepo) {
			t.Errorf("List(%q): expected ErrOutsideRepo, but got %v", rel, err)
		}
		if _, err := ReadLines(root, rel, 0, 0); !errors.Is(err, ErrOutsideRepo) {
			t.Errorf("ReadLines(%q): expected ErrOutsideRepo, but got %v", rel, err)
		}
	}
}

func TestSymlinkEscape(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	writeFile(t, filepath.Join(outside, "secret.txt"), "token")
	writeFile(t, filepath.Join(root, "notes.md"), "inside")
	if err := os.Symlink(filepath.Join(outside, "secret.txt"), filepath.Join(root, "leak.md")); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}
	if err := os.Symlink(outside, filepath.Join(root, "out")); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink("notes.md", filepath.Join(root, "alias.md")); err != nil {
		t.Fatal(err)
	}

	if _, err := ReadLines(root, "leak.md", 0, 0); !errors.Is(err, ErrOutsideRepo) {
		t.Errorf("Expected ErrOutsideRepo for a file symlink, but got %v", err)
	}
	if _, err := ReadLines(root, "out/secret.txt", 0, 0); !errors.Is(err, ErrOutsideRepo) {
		t.Errorf("Expected ErrOutsideRepo through a directory symlink, but got %v", err)
	}
	if _, err := List(root, "out"); !errors.Is(err, ErrOutsideRepo) {
		t.Errorf("Expected ErrOutsideRepo listing a directory symlink, but got %v", err)
	}

	f, err := ReadLines(root, "alias.md", 0, 0)
	if err != nil {
		t.Fatalf("Expected a symlink inside the checkout to be readable, but got %v", err)
	}
	if f.Content != "inside" || f.Path != "alias.md" {
		t.Errorf("Expected content %q at alias.md, but got %+v", "inside", f)
	}
	if _, err := ReadLines(root, "missing.md", 0, 0); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Expected a not-exist error for a missing file, but got %v", err)
	}
}

func TestReadLines(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "notes.md"), "one\ntwo\nthree\nfour\n")

	testCases := []struct {
		name       string
		start, end int
		expected   string
		expStart   int
		expEnd     int
	}{
		{name: "whole file", start: 0, end: 0, expected: "one\ntwo\nthree\nfour", expStart: 1, expEnd: 4},
		{name: "range", start: 2, end: 3, expected: "two\nthree", expStart: 2, expEnd: 3},
		{name: "end past eof", start: 3, end: 99, expected: "three\nfour", expStart: 3, expEnd: 4},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f, err := ReadLines(root, "notes.md", tc.start, tc.end)
			if err != nil {
				t.Fatalf("ReadLines() returned an unexpected error: %v", err)
			}
			if f.Content != tc.expected {
				t.Errorf("Expected content %q, but got %q", tc.expected, f.Content)
			}
			if f.LineStart != tc.expStart || f.LineEnd != tc.expEnd || f.TotalLines != 4 {
				t.Errorf("Expected lines %d-%d of 4, but got %d-%d of %d", tc.expStart, tc.expEnd, f.LineStart, f.LineEnd, f.TotalLines)
			}
		})
	}

	if _, err := ReadLines(root, "missing.md", 0, 0); err == nil {
		t.Error("Expected an error for a missing file")
	}
}

func TestSyncClonesAndPulls(t *testing.T) {
	origin := t.TempDir()
	repo, err := git.PlainInit(origin, false)
	if err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(origin, "cards.md"), "Q: q\nA: a\n")
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := wt.Add("cards.md"); err != nil {
		t.Fatal(err)
	}
	sig := &object.Signature{Name: "test", Email: "test@example.com"}
	if _, err := wt.Commit("initial", &git.CommitOptions{Author: sig}); err != nil {
		t.Fatal(err)
	}

	logger, _ := test.NewNullLogger()
	local := filepath.Join(t.TempDir(), "checkout")

	if err := Sync(context.Background(), logger, origin, local, ""); err != nil {
		t.Fatalf("Sync() clone returned an unexpected error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(local, "cards.md")); err != nil {
		t.Fatalf("Expected cards.md in the checkout: %v", err)
	}

	writeFile(t, filepath.Join(origin, "more.md"), "Q: q2\nA: a2\n")
	if _, err := wt.Add("more.md"); err != nil {
		t.Fatal(err)
	}
	if _, err := wt.Commit("second", &git.CommitOptions{Author: sig}); err != nil {
		t.Fatal(err)
	}
	if err := Sync(context.Background(), logger, origin, local, ""); err != nil {
		t.Fatalf("Sync() pull returned an unexpected error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(local, "more.md")); err != nil {
		t.Errorf("Expected more.md after pull: %v", err)
	}

	// Already up to date is not an error.
	if err := Sync(context.Background(), logger, origin, local, ""); err != nil {
		t.Errorf("Sync() without changes returned an unexpected error: %v", err)
	}
}
