package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/conorfennell/repomind/internal/domain"
)

const noteColumns = `id, session_id, title, content, content_html, ai_summary, file_path, line_start, line_end,
	word_count, created_at, updated_at`

func scanNote(row rowScanner) (domain.Note, error) {
	var (
		n         domain.Note
		sessionID sql.NullString
	)
	err := row.Scan(
		&n.ID,
		&sessionID,
		&n.Title,
		&n.Content,
		&n.ContentHTML,
		&n.AISummary,
		&n.FilePath,
		&n.LineStart,
		&n.LineEnd,
		&n.WordCount,
		&n.CreatedAt,
		&n.UpdatedAt,
	)
	n.SessionID = sessionID.String
	n.Tags = []domain.Tag{}
	return n, err
}

// InsertNote stores a new note. ContentHTML and WordCount are taken as given.
func (db *DB) InsertNote(ctx context.Context, note *domain.Note) error {
	if note.ID == "" {
		note.ID = newID()
	}
	note.Normalize(db.now())
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO notes (`+noteColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		note.ID,
		nullString(note.SessionID),
		note.Title,
		note.Content,
		note.ContentHTML,
		note.AISummary,
		note.FilePath,
		note.LineStart,
		note.LineEnd,
		note.WordCount,
		note.CreatedAt,
		note.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert note %q: %w", note.Title, err)
	}
	return nil
}

// GetNote retrieves a note with its tags.
func (db *DB) GetNote(ctx context.Context, id string) (*domain.Note, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT `+noteColumns+` FROM notes WHERE id = ?`, id)
	n, err := scanNote(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("note %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get note %s: %w", id, err)
	}
	tags, err := db.tagsFor(ctx, domain.NoteTags, []string{id})
	if err != nil {
		return nil, err
	}
	n.Tags = orEmpty(tags[id])
	return &n, nil
}

// ListNotes returns notes oldest first. An empty sessionID lists every note.
func (db *DB) ListNotes(ctx context.Context, sessionID string) ([]domain.Note, error) {
	query := `SELECT ` + noteColumns + ` FROM notes`
	var args []any
	if sessionID != "" {
		query += ` WHERE session_id = ?`
		args = append(args, sessionID)
	}
	query += ` ORDER BY created_at ASC, rowid ASC`

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}
	defer rows.Close()

	var notes []domain.Note
	var ids []string
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan note row: %w", err)
		}
		notes = append(notes, n)
		ids = append(ids, n.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate notes: %w", err)
	}

	tags, err := db.tagsFor(ctx, domain.NoteTags, ids)
	if err != nil {
		return nil, err
	}
	for i := range notes {
		notes[i].Tags = orEmpty(tags[notes[i].ID])
	}
	return notes, nil
}

// UpdateNote overwrites a note's content fields.
func (db *DB) UpdateNote(ctx context.Context, note *domain.Note) error {
	note.Normalize(db.now())
	res, err := db.conn.ExecContext(ctx, `
		UPDATE notes
		SET session_id = ?, title = ?, content = ?, content_html = ?, file_path = ?, line_start = ?, line_end = ?,
			word_count = ?, updated_at = ?
		WHERE id = ?
	`,
		nullString(note.SessionID),
		note.Title,
		note.Content,
		note.ContentHTML,
		note.FilePath,
		note.LineStart,
		note.LineEnd,
		note.WordCount,
		note.UpdatedAt,
		note.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update note %s: %w", note.ID, err)
	}
	return requireAffected(res, "note "+note.ID)
}

// SetNoteSummary stores an AI-generated summary for a note.
func (db *DB) SetNoteSummary(ctx context.Context, id, summary string) error {
	res, err := db.conn.ExecContext(ctx, `
		UPDATE notes SET ai_summary = ?, updated_at = ? WHERE id = ?
	`, summary, db.now(), id)
	if err != nil {
		return fmt.Errorf("failed to set summary for note %s: %w", id, err)
	}
	return requireAffected(res, "note "+id)
}

// DeleteNote removes a note. Cards generated from it keep their content.
func (db *DB) DeleteNote(ctx context.Context, id string) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM notes WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete note %s: %w", id, err)
	}
	return requireAffected(res, "note "+id)
}
