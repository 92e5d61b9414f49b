package review

import (
	"errors"
	"fmt"
)

// Sentinel errors for the review package.
// Use errors.Is to check: errors.Is(err, review.ErrEmptyDeck)
var (
	ErrEmptyDeck    = errors.New("review: no cards to review")
	ErrInvalidGrade = errors.New("review: no card is awaiting a grade")
	ErrNotStarted   = errors.New("review: session not started")
)

// PersistenceWriteError reports a statistics write that failed after the
// session had already moved on. The local session is never rolled back.
type PersistenceWriteError struct {
	CardID string
	Err    error
}

func (e *PersistenceWriteError) Error() string {
	return fmt.Sprintf("review: saving stats for card %s: %v", e.CardID, e.Err)
}

func (e *PersistenceWriteError) Unwrap() error {
	return e.Err
}
