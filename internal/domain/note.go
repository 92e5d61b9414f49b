package domain

import (
	"strings"
	"time"
)

// Note is a markdown note, optionally anchored to a file range in the session's repository.
type Note struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"session_id,omitempty"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	ContentHTML string    `json:"content_html,omitempty"`
	AISummary   string    `json:"ai_summary,omitempty"`
	FilePath    string    `json:"file_path,omitempty"`
	LineStart   int       `json:"line_start,omitempty"`
	LineEnd     int       `json:"line_end,omitempty"`
	WordCount   int       `json:"word_count"`
	Tags        []Tag     `json:"tags"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NoteInput carries user-editable note fields.
type NoteInput struct {
	SessionID string `json:"session_id" validate:"omitempty,uuid"`
	Title     string `json:"title" validate:"required,max=200"`
	Content   string `json:"content" validate:"required"`
	FilePath  string `json:"file_path" validate:"max=1024"`
	LineStart int    `json:"line_start" validate:"min=0"`
	LineEnd   int    `json:"line_end" validate:"omitempty,gtefield=LineStart"`
}

// Normalize ensures defaults and constraints before persistence.
func (n *Note) Normalize(now time.Time) {
	n.Title = strings.TrimSpace(n.Title)
	n.FilePath = strings.TrimPrefix(strings.TrimSpace(n.FilePath), "/")
	if n.LineStart == 0 {
		n.LineEnd = 0
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = now
	}
	n.UpdatedAt = now
	if n.Tags == nil {
		n.Tags = []Tag{}
	}
}
