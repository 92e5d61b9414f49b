package domain

import (
	"math"
	"strings"
	"time"
)

// Difficulty is the author-assigned difficulty of a card.
type Difficulty string

const (
	Easy   Difficulty = "easy"
	Medium Difficulty = "medium"
	Hard   Difficulty = "hard"
)

// ParseDifficulty maps free text onto a Difficulty. Empty input yields Medium.
func ParseDifficulty(s string) (Difficulty, error) {
	switch Difficulty(strings.ToLower(strings.TrimSpace(s))) {
	case "", Medium:
		return Medium, nil
	case Easy:
		return Easy, nil
	case Hard:
		return Hard, nil
	}
	return "", ErrInvalidDifficulty
}

// Card represents a single question/answer entry and its review statistics.
type Card struct {
	ID            string     `json:"id"`
	SessionID     string     `json:"session_id,omitempty"`
	SourceNoteID  string     `json:"source_note_id,omitempty"`
	Question      string     `json:"question"`
	Answer        string     `json:"answer"`
	Difficulty    Difficulty `json:"difficulty"`
	AIGenerated   bool       `json:"ai_generated"`
	Imported      bool       `json:"imported"`
	Hash          string     `json:"hash"`
	TimesReviewed int        `json:"times_reviewed"`
	TimesCorrect  int        `json:"times_correct"`
	LastReviewed  *time.Time `json:"last_reviewed,omitempty"`
	Tags          []Tag      `json:"tags"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// ReviewStats is the absolute review state written back after a grade.
type ReviewStats struct {
	TimesReviewed int       `json:"times_reviewed"`
	TimesCorrect  int       `json:"times_correct"`
	LastReviewed  time.Time `json:"last_reviewed"`
}

// Accuracy returns the rounded percentage of correct reviews.
// ok is false when the card has never been reviewed.
func (c Card) Accuracy() (pct int, ok bool) {
	if c.TimesReviewed <= 0 {
		return 0, false
	}
	return int(math.Round(100 * float64(c.TimesCorrect) / float64(c.TimesReviewed))), true
}

// Graded returns the statistics that result from grading the card once at now.
func (c Card) Graded(correct bool, now time.Time) ReviewStats {
	stats := ReviewStats{
		TimesReviewed: c.TimesReviewed + 1,
		TimesCorrect:  c.TimesCorrect,
		LastReviewed:  now,
	}
	if correct {
		stats.TimesCorrect++
	}
	return stats
}

// Apply copies stats onto the card.
func (c *Card) Apply(stats ReviewStats) {
	c.TimesReviewed = stats.TimesReviewed
	c.TimesCorrect = stats.TimesCorrect
	t := stats.LastReviewed
	c.LastReviewed = &t
}

// CardInput carries user-editable card fields.
type CardInput struct {
	SessionID    string `json:"session_id" validate:"omitempty,uuid"`
	SourceNoteID string `json:"source_note_id" validate:"omitempty,uuid"`
	Question     string `json:"question" validate:"required,max=4000"`
	Answer       string `json:"answer" validate:"required,max=20000"`
	Difficulty   string `json:"difficulty" validate:"omitempty,oneof=easy medium hard"`
	AIGenerated  bool   `json:"ai_generated"`
}

// Normalize ensures defaults and constraints before persistence.
func (c *Card) Normalize(now time.Time) {
	c.Question = strings.TrimSpace(c.Question)
	c.Answer = strings.TrimSpace(c.Answer)
	if c.Difficulty == "" {
		c.Difficulty = Medium
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	if c.Tags == nil {
		c.Tags = []Tag{}
	}
}
