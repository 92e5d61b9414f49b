// Package export writes sessions, notes and cards as markdown or JSON.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/conorfennell/repomind/internal/domain"
	"github.com/conorfennell/repomind/internal/storage"
)

// Format selects the output encoding.
type Format string

const (
	Markdown Format = "markdown"
	JSON     Format = "json"
)

// ParseFormat defaults to Markdown.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case "", Markdown, "md":
		return Markdown, nil
	case JSON:
		return JSON, nil
	}
	return "", fmt.Errorf("unknown export format %q", s)
}

// Data is everything included in one export.
type Data struct {
	Sessions   []domain.StudySession `json:"sessions"`
	Notes      []domain.Note         `json:"notes"`
	Cards      []domain.Card         `json:"cards"`
	ExportedAt time.Time             `json:"exported_at"`
}

// Collect loads one session with its notes and cards oldest first, or
// everything newest first when sessionID is empty.
func Collect(ctx context.Context, db *storage.DB, sessionID string, now time.Time) (*Data, error) {
	data := &Data{ExportedAt: now}

	if sessionID != "" {
		session, err := db.GetSession(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		data.Sessions = []domain.StudySession{*session}
	} else {
		sessions, err := db.ListSessions(ctx, "")
		if err != nil {
			return nil, err
		}
		data.Sessions = sessions
	}

	notes, err := db.ListNotes(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	cards, err := db.ListCards(ctx, storage.CardFilter{SessionID: sessionID})
	if err != nil {
		return nil, err
	}
	if sessionID == "" {
		notes = lo.Reverse(notes)
		cards = lo.Reverse(cards)
	}
	data.Notes = orEmpty(notes)
	data.Cards = orEmpty(cards)
	return data, nil
}

func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// Filename returns the download name for an export.
func Filename(sessionID string, format Format, now time.Time) string {
	scope := sessionID
	if scope == "" {
		scope = "all"
	}
	ext := "md"
	if format == JSON {
		ext = "json"
	}
	return fmt.Sprintf("repomind-export-%s-%d.%s", scope, now.UnixMilli(), ext)
}

// Write encodes data in the given format.
func Write(w io.Writer, format Format, data *Data) error {
	if format == JSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	}
	return WriteMarkdown(w, data)
}

// WriteMarkdown renders data as a markdown document.
func WriteMarkdown(w io.Writer, data *Data) error {
	var b strings.Builder

	b.WriteString("# RepoMind Export\n\n")
	fmt.Fprintf(&b, "Exported on: %s\n\n", data.ExportedAt.Format("2006-01-02 15:04:05 MST"))

	if len(data.Sessions) > 0 {
		b.WriteString("## Study Sessions\n\n")
		for _, s := range data.Sessions {
			fmt.Fprintf(&b, "### %s\n\n", s.Title)
			if s.Description != "" {
				fmt.Fprintf(&b, "%s\n\n", s.Description)
			}
			if s.RepositoryName != "" {
				fmt.Fprintf(&b, "**Repository:** %s", s.RepositoryName)
				if s.RepositoryURL != "" {
					fmt.Fprintf(&b, " ([link](%s))", s.RepositoryURL)
				}
				b.WriteString("\n\n")
			}
			fmt.Fprintf(&b, "**Status:** %s\n", s.Status)
			fmt.Fprintf(&b, "**Created:** %s\n\n", s.CreatedAt.Format("2006-01-02"))
			b.WriteString("---\n\n")
		}
	}

	if len(data.Notes) > 0 {
		b.WriteString("## Notes\n\n")
		for _, n := range data.Notes {
			fmt.Fprintf(&b, "### %s\n\n", n.Title)
			if n.FilePath != "" {
				fmt.Fprintf(&b, "**File:** `%s`", n.FilePath)
				if n.LineStart > 0 {
					fmt.Fprintf(&b, " (lines %d", n.LineStart)
					if n.LineEnd > 0 {
						fmt.Fprintf(&b, "-%d", n.LineEnd)
					}
					b.WriteString(")")
				}
				b.WriteString("\n\n")
			}
			fmt.Fprintf(&b, "%s\n\n", n.Content)
			if n.AISummary != "" {
				fmt.Fprintf(&b, "> **AI Summary:** %s\n\n", n.AISummary)
			}
			b.WriteString("---\n\n")
		}
	}

	if len(data.Cards) > 0 {
		b.WriteString("## Q&A Cards\n\n")
		for _, c := range data.Cards {
			fmt.Fprintf(&b, "### Q: %s\n\n", c.Question)
			fmt.Fprintf(&b, "**A:** %s\n\n", c.Answer)
			if c.Difficulty != "" {
				fmt.Fprintf(&b, "**Difficulty:** %s\n", c.Difficulty)
			}
			if pct, ok := c.Accuracy(); ok {
				fmt.Fprintf(&b, "**Reviewed:** %d times (%d%% accuracy)\n", c.TimesReviewed, pct)
			}
			b.WriteString("\n---\n\n")
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}
