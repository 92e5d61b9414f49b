package export

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/conorfennell/repomind/internal/domain"
	"github.com/conorfennell/repomind/internal/storage"
)

var fixedNow = time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

func TestWriteMarkdown(t *testing.T) {
	data := &Data{
		ExportedAt: fixedNow,
		Sessions: []domain.StudySession{{
			Title:          "Go internals",
			Description:    "Scheduler deep dive",
			RepositoryName: "golang/go",
			RepositoryURL:  "https://github.com/golang/go",
			Status:         domain.Active,
			CreatedAt:      fixedNow,
		}},
		Notes: []domain.Note{{
			Title:     "proc.go",
			Content:   "The scheduler runs Gs on Ms.",
			FilePath:  "src/runtime/proc.go",
			LineStart: 10,
			LineEnd:   20,
			AISummary: "G/M/P model.",
		}},
		Cards: []domain.Card{
			{Question: "What is a P?", Answer: "A processor.", Difficulty: domain.Hard, TimesReviewed: 8, TimesCorrect: 5},
			{Question: "Unreviewed?", Answer: "Yes.", Difficulty: domain.Medium},
		},
	}

	var buf bytes.Buffer
	if err := WriteMarkdown(&buf, data); err != nil {
		t.Fatalf("WriteMarkdown() returned an unexpected error: %v", err)
	}
	out := buf.String()

	expected := []string{
		"# RepoMind Export\n\n",
		"Exported on: 2026-03-04 05:06:07 UTC",
		"### Go internals\n\nScheduler deep dive\n\n",
		"**Repository:** golang/go ([link](https://github.com/golang/go))\n\n",
		"**Status:** active\n**Created:** 2026-03-04\n\n---\n\n",
		"**File:** `src/runtime/proc.go` (lines 10-20)\n\n",
		"> **AI Summary:** G/M/P model.\n\n",
		"### Q: What is a P?\n\n**A:** A processor.\n\n**Difficulty:** hard\n**Reviewed:** 8 times (63% accuracy)\n",
	}
	for _, want := range expected {
		if !strings.Contains(out, want) {
			t.Errorf("Expected markdown to contain %q, but got:\n%s", want, out)
		}
	}
	if strings.Count(out, "**Reviewed:**") != 1 {
		t.Errorf("Expected only the reviewed card to show stats, but got:\n%s", out)
	}
}

func TestFilenameAndFormat(t *testing.T) {
	if got := Filename("", Markdown, fixedNow); got != "repomind-export-all-1772600767000.md" {
		t.Errorf("Unexpected filename %q", got)
	}
	if got := Filename("abc", JSON, fixedNow); !strings.HasPrefix(got, "repomind-export-abc-") || !strings.HasSuffix(got, ".json") {
		t.Errorf("Unexpected filename %q", got)
	}

	testCases := []struct {
		input    string
		expected Format
		wantErr  bool
	}{
		{input: "", expected: Markdown},
		{input: "md", expected: Markdown},
		{input: "JSON", expected: JSON},
		{input: "xml", wantErr: true},
	}
	for _, tc := range testCases {
		got, err := ParseFormat(tc.input)
		if (err != nil) != tc.wantErr || got != tc.expected {
			t.Errorf("ParseFormat(%q) = %q, %v", tc.input, got, err)
		}
	}
}

func TestCollect(t *testing.T) {
	ctx := context.Background()
	db, err := storage.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	s1, err := db.InsertSession(ctx, domain.SessionInput{Title: "One"})
	if err != nil {
		t.Fatal(err)
	}
	s2, err := db.InsertSession(ctx, domain.SessionInput{Title: "Two"})
	if err != nil {
		t.Fatal(err)
	}
	for _, c := range []*domain.Card{
		{SessionID: s1.ID, Question: "q1", Answer: "a1"},
		{SessionID: s1.ID, Question: "q2", Answer: "a2"},
		{SessionID: s2.ID, Question: "q3", Answer: "a3"},
	} {
		if err := db.InsertCard(ctx, c); err != nil {
			t.Fatal(err)
		}
	}

	one, err := Collect(ctx, db, s1.ID, fixedNow)
	if err != nil {
		t.Fatalf("Collect() returned an unexpected error: %v", err)
	}
	if len(one.Sessions) != 1 || len(one.Cards) != 2 || one.Cards[0].Question != "q1" {
		t.Errorf("Unexpected session export: %+v", one)
	}
	if one.Notes == nil {
		t.Error("Expected an empty notes slice, but got nil")
	}

	all, err := Collect(ctx, db, "", fixedNow)
	if err != nil {
		t.Fatal(err)
	}
	if len(all.Sessions) != 2 || len(all.Cards) != 3 || all.Cards[0].Question != "q3" {
		t.Errorf("Expected everything newest first, but got %+v", all.Cards)
	}

	var buf bytes.Buffer
	if err := Write(&buf, JSON, all); err != nil {
		t.Fatal(err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("Expected valid JSON: %v", err)
	}
	for _, key := range []string{"sessions", "notes", "cards", "exported_at"} {
		if _, ok := decoded[key]; !ok {
			t.Errorf("Expected key %q in JSON export", key)
		}
	}
}
