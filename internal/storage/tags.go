package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/conorfennell/repomind/internal/domain"
)

type tagLink struct {
	table  string
	column string
	parent string
}

var tagLinks = map[domain.TagKind]tagLink{
	domain.SessionTags: {table: "session_tags", column: "session_id", parent: "study_sessions"},
	domain.NoteTags:    {table: "note_tags", column: "note_id", parent: "notes"},
	domain.CardTags:    {table: "card_tags", column: "card_id", parent: "cards"},
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	return errors.As(err, &se) && (se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE || se.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY)
}

func orEmpty(tags []domain.Tag) []domain.Tag {
	if tags == nil {
		return []domain.Tag{}
	}
	return tags
}

// InsertTag stores a new tag. Names are unique after normalization.
func (db *DB) InsertTag(ctx context.Context, in domain.TagInput) (*domain.Tag, error) {
	tag := &domain.Tag{ID: newID(), Name: in.Name, Color: in.Color}
	tag.Normalize(db.now())
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO tags (id, name, color, created_at) VALUES (?, ?, ?, ?)
	`, tag.ID, tag.Name, tag.Color, tag.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("tag %q: %w", tag.Name, domain.ErrDuplicateTag)
		}
		return nil, fmt.Errorf("failed to insert tag %q: %w", tag.Name, err)
	}
	return tag, nil
}

// FindTagByName returns nil when no tag has the given name.
func (db *DB) FindTagByName(ctx context.Context, name string) (*domain.Tag, error) {
	var t domain.Tag
	err := db.conn.QueryRowContext(ctx, `
		SELECT id, name, color, created_at FROM tags WHERE name = ?
	`, domain.NormalizeTagName(name)).Scan(&t.ID, &t.Name, &t.Color, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Tag not found
		}
		return nil, fmt.Errorf("failed to find tag %q: %w", name, err)
	}
	return &t, nil
}

// ListTags returns all tags ordered by name.
func (db *DB) ListTags(ctx context.Context) ([]domain.Tag, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT id, name, color, created_at FROM tags ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}
	defer rows.Close()

	tags := []domain.Tag{}
	for rows.Next() {
		var t domain.Tag
		if err := rows.Scan(&t.ID, &t.Name, &t.Color, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan tag row: %w", err)
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}

// UpdateTag renames or recolors a tag.
func (db *DB) UpdateTag(ctx context.Context, id string, in domain.TagInput) (*domain.Tag, error) {
	tag := &domain.Tag{ID: id, Name: in.Name, Color: in.Color}
	tag.Normalize(db.now())
	res, err := db.conn.ExecContext(ctx, `UPDATE tags SET name = ?, color = ? WHERE id = ?`, tag.Name, tag.Color, id)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("tag %q: %w", tag.Name, domain.ErrDuplicateTag)
		}
		return nil, fmt.Errorf("failed to update tag %s: %w", id, err)
	}
	if err := requireAffected(res, "tag "+id); err != nil {
		return nil, err
	}
	err = db.conn.QueryRowContext(ctx, `SELECT created_at FROM tags WHERE id = ?`, id).Scan(&tag.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to reload tag %s: %w", id, err)
	}
	return tag, nil
}

// DeleteTag removes a tag and detaches it everywhere.
func (db *DB) DeleteTag(ctx context.Context, id string) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM tags WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete tag %s: %w", id, err)
	}
	return requireAffected(res, "tag "+id)
}

// AttachTag links a tag to a session, note or card. Attaching twice is a no-op.
func (db *DB) AttachTag(ctx context.Context, kind domain.TagKind, entityID, tagID string) error {
	link, ok := tagLinks[kind]
	if !ok {
		return domain.ErrInvalidTagKind
	}
	return db.withTx(ctx, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT
			(SELECT COUNT(*) FROM `+link.parent+` WHERE id = ?) +
			(SELECT COUNT(*) FROM tags WHERE id = ?)`, entityID, tagID).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check tag link: %w", err)
		}
		if exists != 2 {
			return fmt.Errorf("%s %s or tag %s: %w", kind, entityID, tagID, domain.ErrNotFound)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO `+link.table+` (`+link.column+`, tag_id) VALUES (?, ?)
		`, entityID, tagID)
		if err != nil {
			return fmt.Errorf("failed to attach tag %s to %s %s: %w", tagID, kind, entityID, err)
		}
		return nil
	})
}

// DetachTag removes a tag link.
func (db *DB) DetachTag(ctx context.Context, kind domain.TagKind, entityID, tagID string) error {
	link, ok := tagLinks[kind]
	if !ok {
		return domain.ErrInvalidTagKind
	}
	res, err := db.conn.ExecContext(ctx, `
		DELETE FROM `+link.table+` WHERE `+link.column+` = ? AND tag_id = ?
	`, entityID, tagID)
	if err != nil {
		return fmt.Errorf("failed to detach tag %s from %s %s: %w", tagID, kind, entityID, err)
	}
	return requireAffected(res, fmt.Sprintf("tag link %s/%s", entityID, tagID))
}

// tagsFor loads the tags of many entities of one kind in a single query.
func (db *DB) tagsFor(ctx context.Context, kind domain.TagKind, ids []string) (map[string][]domain.Tag, error) {
	out := make(map[string][]domain.Tag, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	link := tagLinks[kind]
	rows, err := db.conn.QueryContext(ctx, `
		SELECT l.`+link.column+`, t.id, t.name, t.color, t.created_at
		FROM `+link.table+` l JOIN tags t ON t.id = l.tag_id
		WHERE l.`+link.column+` IN (`+placeholders(len(ids))+`)
		ORDER BY t.name
	`, stringArgs(ids)...)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s tags: %w", kind, err)
	}
	defer rows.Close()

	for rows.Next() {
		var owner string
		var t domain.Tag
		if err := rows.Scan(&owner, &t.ID, &t.Name, &t.Color, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan %s tag row: %w", kind, err)
		}
		out[owner] = append(out[owner], t)
	}
	return out, rows.Err()
}
