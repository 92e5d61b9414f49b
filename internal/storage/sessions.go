package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/conorfennell/repomind/internal/domain"
)

const sessionColumns = `id, title, description, repository_url, repository_name, status, ai_summary, created_at, updated_at`

func scanSession(row rowScanner) (domain.StudySession, error) {
	var (
		s      domain.StudySession
		status string
	)
	err := row.Scan(
		&s.ID,
		&s.Title,
		&s.Description,
		&s.RepositoryURL,
		&s.RepositoryName,
		&status,
		&s.AISummary,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	s.Status = domain.Status(status)
	s.Tags = []domain.Tag{}
	return s, err
}

// InsertSession stores a new study session.
func (db *DB) InsertSession(ctx context.Context, in domain.SessionInput) (*domain.StudySession, error) {
	status, err := domain.ParseStatus(in.Status)
	if err != nil {
		return nil, err
	}
	s := &domain.StudySession{
		ID:             newID(),
		Title:          in.Title,
		Description:    in.Description,
		RepositoryURL:  in.RepositoryURL,
		RepositoryName: in.RepositoryName,
		Status:         status,
	}
	s.Normalize(db.now())

	_, err = db.conn.ExecContext(ctx, `
		INSERT INTO study_sessions (`+sessionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, s.ID, s.Title, s.Description, s.RepositoryURL, s.RepositoryName, string(s.Status), s.AISummary, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert session %q: %w", s.Title, err)
	}
	return s, nil
}

// GetSession retrieves a session with its tags.
func (db *DB) GetSession(ctx context.Context, id string) (*domain.StudySession, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM study_sessions WHERE id = ?`, id)
	s, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("session %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get session %s: %w", id, err)
	}
	tags, err := db.tagsFor(ctx, domain.SessionTags, []string{id})
	if err != nil {
		return nil, err
	}
	s.Tags = orEmpty(tags[id])
	return &s, nil
}

// ListSessions returns sessions newest first, optionally limited to a status.
func (db *DB) ListSessions(ctx context.Context, status domain.Status) ([]domain.StudySession, error) {
	query := `SELECT ` + sessionColumns + ` FROM study_sessions`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at DESC, rowid DESC`

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []domain.StudySession
	var ids []string
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session row: %w", err)
		}
		sessions = append(sessions, s)
		ids = append(ids, s.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sessions: %w", err)
	}

	tags, err := db.tagsFor(ctx, domain.SessionTags, ids)
	if err != nil {
		return nil, err
	}
	for i := range sessions {
		sessions[i].Tags = orEmpty(tags[sessions[i].ID])
	}
	return sessions, nil
}

// UpdateSession replaces the editable fields of a session.
func (db *DB) UpdateSession(ctx context.Context, id string, in domain.SessionInput) (*domain.StudySession, error) {
	s, err := db.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	status, err := domain.ParseStatus(in.Status)
	if err != nil {
		return nil, err
	}
	s.Title = in.Title
	s.Description = in.Description
	s.RepositoryURL = in.RepositoryURL
	s.RepositoryName = in.RepositoryName
	s.Status = status
	s.Normalize(db.now())

	res, err := db.conn.ExecContext(ctx, `
		UPDATE study_sessions
		SET title = ?, description = ?, repository_url = ?, repository_name = ?, status = ?, updated_at = ?
		WHERE id = ?
	`, s.Title, s.Description, s.RepositoryURL, s.RepositoryName, string(s.Status), s.UpdatedAt, id)
	if err != nil {
		return nil, fmt.Errorf("failed to update session %s: %w", id, err)
	}
	if err := requireAffected(res, "session "+id); err != nil {
		return nil, err
	}
	return s, nil
}

// SetSessionSummary stores an AI-generated summary for a session.
func (db *DB) SetSessionSummary(ctx context.Context, id, summary string) error {
	res, err := db.conn.ExecContext(ctx, `
		UPDATE study_sessions SET ai_summary = ?, updated_at = ? WHERE id = ?
	`, summary, db.now(), id)
	if err != nil {
		return fmt.Errorf("failed to set summary for session %s: %w", id, err)
	}
	return requireAffected(res, "session "+id)
}

// DeleteSession removes a session together with its notes and cards.
func (db *DB) DeleteSession(ctx context.Context, id string) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM study_sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete session %s: %w", id, err)
	}
	return requireAffected(res, "session "+id)
}
