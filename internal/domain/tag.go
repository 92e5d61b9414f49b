package domain

import (
	"strings"
	"time"
)

// DefaultTagColor is used when a tag is created without a color.
const DefaultTagColor = "#6366f1"

// Tag labels sessions, notes and cards.
type Tag struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Color     string    `json:"color"`
	CreatedAt time.Time `json:"created_at"`
}

// TagInput carries user-editable tag fields.
type TagInput struct {
	Name  string `json:"name" validate:"required,max=50"`
	Color string `json:"color" validate:"omitempty,hexcolor"`
}

// TagKind names the entity a tag is attached to.
type TagKind string

const (
	SessionTags TagKind = "sessions"
	NoteTags    TagKind = "notes"
	CardTags    TagKind = "cards"
)

// NormalizeTagName lowercases and trims a tag name.
func NormalizeTagName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Normalize ensures defaults and constraints before persistence.
func (t *Tag) Normalize(now time.Time) {
	t.Name = NormalizeTagName(t.Name)
	if t.Color == "" {
		t.Color = DefaultTagColor
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
}
