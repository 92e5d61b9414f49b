package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/conorfennell/repomind/internal/domain"
	"github.com/conorfennell/repomind/internal/knol"
)

const cardColumns = `id, session_id, source_note_id, question, answer, difficulty, ai_generated, imported,
	hash, times_reviewed, times_correct, last_reviewed, created_at, updated_at`

// CardFilter narrows ListCards. Zero values match everything.
type CardFilter struct {
	SessionID    string
	TagID        string
	ImportedOnly bool
}

func scanCard(row rowScanner) (domain.Card, error) {
	var (
		c            domain.Card
		sessionID    sql.NullString
		sourceNoteID sql.NullString
		difficulty   string
		lastReviewed sql.NullTime
	)
	err := row.Scan(
		&c.ID,
		&sessionID,
		&sourceNoteID,
		&c.Question,
		&c.Answer,
		&difficulty,
		&c.AIGenerated,
		&c.Imported,
		&c.Hash,
		&c.TimesReviewed,
		&c.TimesCorrect,
		&lastReviewed,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return c, err
	}
	c.SessionID = sessionID.String
	c.SourceNoteID = sourceNoteID.String
	c.Difficulty = domain.Difficulty(difficulty)
	if lastReviewed.Valid {
		t := lastReviewed.Time
		c.LastReviewed = &t
	}
	c.Tags = []domain.Tag{}
	return c, nil
}

// InsertCard stores a new card. ID, hash and timestamps are filled in when empty.
func (db *DB) InsertCard(ctx context.Context, card *domain.Card) error {
	if card.ID == "" {
		card.ID = newID()
	}
	card.Normalize(db.now())
	if card.Hash == "" {
		card.Hash = knol.Hash(*card)
	}
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO cards (`+cardColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		card.ID,
		nullString(card.SessionID),
		nullString(card.SourceNoteID),
		card.Question,
		card.Answer,
		string(card.Difficulty),
		boolInt(card.AIGenerated),
		boolInt(card.Imported),
		card.Hash,
		card.TimesReviewed,
		card.TimesCorrect,
		card.LastReviewed,
		card.CreatedAt,
		card.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert card %s: %w", card.ID, err)
	}
	return nil
}

// GetCard retrieves a card with its tags.
func (db *DB) GetCard(ctx context.Context, id string) (*domain.Card, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT `+cardColumns+` FROM cards WHERE id = ?`, id)
	card, err := scanCard(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("card %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get card %s: %w", id, err)
	}
	tags, err := db.tagsFor(ctx, domain.CardTags, []string{id})
	if err != nil {
		return nil, err
	}
	card.Tags = orEmpty(tags[id])
	return &card, nil
}

// FindCardByHash looks up a card in a session by its content hash.
// It returns nil when no card matches.
func (db *DB) FindCardByHash(ctx context.Context, sessionID, hash string) (*domain.Card, error) {
	row := db.conn.QueryRowContext(ctx, `
		SELECT `+cardColumns+` FROM cards
		WHERE hash = ? AND COALESCE(session_id, '') = ?
		LIMIT 1
	`, hash, sessionID)
	card, err := scanCard(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Card not found
		}
		return nil, fmt.Errorf("failed to find card by hash %s: %w", hash, err)
	}
	return &card, nil
}

// ListCards returns cards oldest first, with tags.
func (db *DB) ListCards(ctx context.Context, filter CardFilter) ([]domain.Card, error) {
	var (
		where []string
		args  []any
	)
	if filter.SessionID != "" {
		where = append(where, "session_id = ?")
		args = append(args, filter.SessionID)
	}
	if filter.TagID != "" {
		where = append(where, "id IN (SELECT card_id FROM card_tags WHERE tag_id = ?)")
		args = append(args, filter.TagID)
	}
	if filter.ImportedOnly {
		where = append(where, "imported = 1")
	}
	query := `SELECT ` + cardColumns + ` FROM cards`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at ASC, rowid ASC"

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list cards: %w", err)
	}
	defer rows.Close()

	var cards []domain.Card
	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan card row: %w", err)
		}
		cards = append(cards, card)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate cards: %w", err)
	}

	ids := make([]string, len(cards))
	for i, c := range cards {
		ids[i] = c.ID
	}
	tags, err := db.tagsFor(ctx, domain.CardTags, ids)
	if err != nil {
		return nil, err
	}
	for i := range cards {
		cards[i].Tags = orEmpty(tags[cards[i].ID])
	}
	return cards, nil
}

// UpdateCard replaces the editable fields of a card and recomputes its hash.
// An imported card whose text or session changes is detached from its
// repository, so later imports neither delete it nor reset its statistics.
func (db *DB) UpdateCard(ctx context.Context, id string, in domain.CardInput) (*domain.Card, error) {
	card, err := db.GetCard(ctx, id)
	if err != nil {
		return nil, err
	}
	difficulty, err := domain.ParseDifficulty(in.Difficulty)
	if err != nil {
		return nil, err
	}
	prevHash, prevSession := card.Hash, card.SessionID
	card.Question = in.Question
	card.Answer = in.Answer
	card.Difficulty = difficulty
	card.SessionID = in.SessionID
	card.SourceNoteID = in.SourceNoteID
	card.Normalize(db.now())
	card.Hash = knol.Hash(*card)
	if card.Hash != prevHash || card.SessionID != prevSession {
		card.Imported = false
	}

	res, err := db.conn.ExecContext(ctx, `
		UPDATE cards
		SET session_id = ?, source_note_id = ?, question = ?, answer = ?, difficulty = ?, imported = ?, hash = ?,
			updated_at = ?
		WHERE id = ?
	`,
		nullString(card.SessionID),
		nullString(card.SourceNoteID),
		card.Question,
		card.Answer,
		string(card.Difficulty),
		boolInt(card.Imported),
		card.Hash,
		card.UpdatedAt,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update card %s: %w", id, err)
	}
	if err := requireAffected(res, "card "+id); err != nil {
		return nil, err
	}
	return card, nil
}

// UpdateReviewStats overwrites a card's review statistics with absolute values.
func (db *DB) UpdateReviewStats(ctx context.Context, id string, stats domain.ReviewStats) error {
	res, err := db.conn.ExecContext(ctx, `
		UPDATE cards
		SET times_reviewed = ?, times_correct = ?, last_reviewed = ?, updated_at = ?
		WHERE id = ?
	`,
		stats.TimesReviewed,
		stats.TimesCorrect,
		stats.LastReviewed.UTC(),
		db.now(),
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to update review stats for card %s: %w", id, err)
	}
	return requireAffected(res, "card "+id)
}

// DeleteCard removes a card.
func (db *DB) DeleteCard(ctx context.Context, id string) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM cards WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete card %s: %w", id, err)
	}
	return requireAffected(res, "card "+id)
}
