package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	colorize "github.com/fatih/color"

	"github.com/conorfennell/repomind/internal/domain"
	"github.com/conorfennell/repomind/internal/review"
)

type memorySink struct {
	mu    sync.Mutex
	stats map[string]domain.ReviewStats
	err   error
}

func (s *memorySink) UpdateReviewStats(_ context.Context, cardID string, stats domain.ReviewStats) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if s.stats == nil {
		s.stats = map[string]domain.ReviewStats{}
	}
	s.stats[cardID] = stats
	return nil
}

func init() {
	colorize.NoColor = true
}

func deck() []domain.Card {
	return []domain.Card{
		{ID: "c1", Question: "What does defer do?", Answer: "Runs a call when the function returns.", Difficulty: domain.Easy},
		{ID: "c2", Question: "Is a nil map writable?", Answer: "No, writing panics.", Difficulty: domain.Hard},
	}
}

func runStudy(t *testing.T, sink review.StatsSink, input string) (string, *review.Engine) {
	t.Helper()
	var out bytes.Buffer
	ui := newStudyUI(strings.NewReader(input), &out, 60)
	engine := review.NewEngine(sink, review.WithNotifier(ui.notice))
	if err := engine.Start(deck()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := ui.run(engine); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	engine.Wait()
	return out.String(), engine
}

func TestStudyCompletesDeck(t *testing.T) {
	sink := &memorySink{}
	out, engine := runStudy(t, sink, "f\ny\n\nn\n")

	state := engine.State()
	if !state.Complete || state.Reviewed != 2 || state.Correct != 1 {
		t.Fatalf("Expected a complete session with 1 of 2 correct, but got %+v", state)
	}
	if !strings.Contains(out, "Session complete!") {
		t.Errorf("Expected completion message, but got:\n%s", out)
	}
	if !strings.Contains(out, "Score: 50%") {
		t.Errorf("Expected score of 50%%, but got:\n%s", out)
	}
	if got := sink.stats["c2"]; got.TimesReviewed != 1 || got.TimesCorrect != 0 {
		t.Errorf("Expected c2 stats 1/0, but got %+v", got)
	}
}

func TestStudyRequiresFlipBeforeGrade(t *testing.T) {
	out, engine := runStudy(t, &memorySink{}, "y\nq\n")

	if !strings.Contains(out, "Flip the card before grading it.") {
		t.Errorf("Expected a flip hint, but got:\n%s", out)
	}
	if engine.State().Reviewed != 0 {
		t.Errorf("Expected no graded cards, but got %d", engine.State().Reviewed)
	}
	if strings.Contains(out, "Session complete!") {
		t.Errorf("Expected no completion message after quitting")
	}
}

func TestStudyNavigation(t *testing.T) {
	out, engine := runStudy(t, &memorySink{}, "s\ns\np\nq\n")

	if engine.State().Index != 0 {
		t.Errorf("Expected to be back on the first card, but got index %d", engine.State().Index)
	}
	if !strings.Contains(out, "Card 2/2") {
		t.Errorf("Expected the second card to be shown, but got:\n%s", out)
	}
	if !strings.Contains(out, "Reviewed 0 of 2 cards, 0 correct. Score: 0%") {
		t.Errorf("Expected an empty summary, but got:\n%s", out)
	}
}

func TestStudyReportsFailedWrites(t *testing.T) {
	sink := &memorySink{err: errors.New("disk full")}
	var out bytes.Buffer
	ui := newStudyUI(strings.NewReader(""), &out, 60)
	engine := review.NewEngine(sink, review.WithNotifier(ui.notice))
	if err := engine.Start(deck()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	_ = engine.Flip()
	if err := engine.Answer(true); err != nil {
		t.Fatalf("Answer failed: %v", err)
	}
	engine.Wait()

	if err := ui.run(engine); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	want := "Could not save progress for card c1. Your session continues."
	if strings.Count(out.String(), want) != 1 {
		t.Errorf("Expected the notice exactly once, but got:\n%s", out.String())
	}
	if engine.State().Correct != 1 {
		t.Errorf("Expected the grade to stand after a failed write, but got %d correct", engine.State().Correct)
	}
}

func TestWrap(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		width int
		want  string
	}{
		{name: "short", text: "fits", width: 10, want: "fits"},
		{name: "breaks on spaces", text: "one two three four", width: 9, want: "one two\nthree\nfour"},
		{name: "keeps newlines", text: "a b\nc", width: 10, want: "a b\nc"},
		{name: "long word", text: "abcdefghijk x", width: 5, want: "abcdefghijk\nx"},
		{name: "no width", text: "a  b", width: 0, want: "a  b"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := wrap(tt.text, tt.width); got != tt.want {
				t.Errorf("Expected %q, but got %q", tt.want, got)
			}
		})
	}
}
