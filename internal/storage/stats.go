package storage

import (
	"context"
	"fmt"
	"math"
)

// Stats summarizes the knowledge base.
type Stats struct {
	Sessions        int `json:"sessions"`
	Notes           int `json:"notes"`
	Cards           int `json:"cards"`
	ReviewedCards   int `json:"reviewed_cards"`
	TotalReviews    int `json:"total_reviews"`
	TotalCorrect    int `json:"total_correct"`
	OverallAccuracy int `json:"overall_accuracy"`
}

// Stats counts entities and aggregates review statistics.
func (db *DB) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	err := db.conn.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM study_sessions),
			(SELECT COUNT(*) FROM notes),
			COUNT(*),
			COALESCE(SUM(CASE WHEN times_reviewed > 0 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(times_reviewed), 0),
			COALESCE(SUM(times_correct), 0)
		FROM cards
	`).Scan(&s.Sessions, &s.Notes, &s.Cards, &s.ReviewedCards, &s.TotalReviews, &s.TotalCorrect)
	if err != nil {
		return s, fmt.Errorf("failed to compute stats: %w", err)
	}
	if s.TotalReviews > 0 {
		s.OverallAccuracy = int(math.Round(100 * float64(s.TotalCorrect) / float64(s.TotalReviews)))
	}
	return s, nil
}
