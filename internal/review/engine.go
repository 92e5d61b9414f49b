// Package review runs a flashcard study session over an in-memory deck.
//
// The Engine is driven by discrete user actions (flip, grade, navigate,
// shuffle). It is not safe for concurrent use; transports serialize calls.
// Grades are persisted through a StatsSink on a separate goroutine and the
// session advances without waiting for the write.
package review

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/conorfennell/repomind/internal/domain"
)

// StatsSink stores absolute review statistics for a card.
type StatsSink interface {
	UpdateReviewStats(ctx context.Context, cardID string, stats domain.ReviewStats) error
}

// Engine holds the state of one review session.
type Engine struct {
	sink         StatsSink
	notify       func(error)
	onComplete   func(State)
	rng          *rand.Rand
	clock        func() time.Time
	writeTimeout time.Duration

	original []*domain.Card
	deck     []*domain.Card
	graded   []bool

	index     int
	flipped   bool
	revealed  bool
	reviewing bool
	complete  bool
	reviewed  int
	correct   int

	writes    sync.WaitGroup
	lastWrite chan struct{}
}

// Option configures an Engine.
type Option func(*Engine)

// WithNotifier sets the callback that receives *PersistenceWriteError values.
// It is called from the write goroutine.
func WithNotifier(fn func(error)) Option {
	return func(e *Engine) { e.notify = fn }
}

// WithCompletion sets the callback fired when the last card is graded.
func WithCompletion(fn func(State)) Option {
	return func(e *Engine) { e.onComplete = fn }
}

// WithRand sets the source used by Shuffle.
func WithRand(r *rand.Rand) Option {
	return func(e *Engine) { e.rng = r }
}

// WithClock overrides time.Now for LastReviewed timestamps.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) { e.clock = clock }
}

// WithWriteTimeout bounds each statistics write. Zero disables the bound.
func WithWriteTimeout(d time.Duration) Option {
	return func(e *Engine) { e.writeTimeout = d }
}

// NewEngine creates an engine that persists grades to sink.
func NewEngine(sink StatsSink, opts ...Option) *Engine {
	e := &Engine{
		sink:         sink,
		notify:       func(error) {},
		clock:        time.Now,
		writeTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.rng == nil {
		e.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return e
}

// Start loads cards in the given order and resets the session.
// Cards are copied; entries sharing an ID share one statistics record.
func (e *Engine) Start(cards []domain.Card) error {
	if len(cards) == 0 {
		return ErrEmptyDeck
	}
	byID := make(map[string]*domain.Card, len(cards))
	original := make([]*domain.Card, 0, len(cards))
	for _, c := range cards {
		card, ok := byID[c.ID]
		if !ok {
			cp := c
			card = &cp
			byID[c.ID] = card
		}
		original = append(original, card)
	}
	e.original = original
	e.restart(append([]*domain.Card(nil), original...))
	return nil
}

// Shuffle replaces the deck with a uniform permutation of the original cards
// and resets the session counters.
func (e *Engine) Shuffle() error {
	if e.original == nil {
		return ErrNotStarted
	}
	deck := append([]*domain.Card(nil), e.original...)
	e.rng.Shuffle(len(deck), func(i, j int) {
		deck[i], deck[j] = deck[j], deck[i]
	})
	e.restart(deck)
	return nil
}

// Reset returns to the first card of the original order and clears the
// session counters. Card statistics are kept.
func (e *Engine) Reset() error {
	if e.original == nil {
		return ErrNotStarted
	}
	e.restart(append([]*domain.Card(nil), e.original...))
	return nil
}

func (e *Engine) restart(deck []*domain.Card) {
	e.deck = deck
	e.graded = make([]bool, len(deck))
	e.index = 0
	e.reviewed = 0
	e.correct = 0
	e.complete = false
	e.clearVisit()
}

func (e *Engine) clearVisit() {
	e.flipped = false
	e.revealed = false
	e.reviewing = false
}

// Flip toggles between question and answer. The first reveal of a card's
// answer during a visit puts the card up for grading.
func (e *Engine) Flip() error {
	if e.deck == nil {
		return ErrNotStarted
	}
	e.flipped = !e.flipped
	if e.flipped && !e.revealed {
		e.revealed = true
		if !e.graded[e.index] {
			e.reviewing = true
		}
	}
	return nil
}

// Answer grades the current card, queues the statistics write and advances.
func (e *Engine) Answer(correct bool) error {
	if e.deck == nil || !e.reviewing {
		return ErrInvalidGrade
	}
	card := e.deck[e.index]
	stats := card.Graded(correct, e.clock())
	card.Apply(stats)
	e.persist(card.ID, stats)

	e.graded[e.index] = true
	e.reviewed++
	if correct {
		e.correct++
	}
	e.reviewing = false

	if e.index == len(e.deck)-1 {
		e.complete = true
		if e.onComplete != nil {
			e.onComplete(e.State())
		}
		return nil
	}
	e.index++
	e.flipped = false
	e.revealed = false
	return nil
}

// GoPrevious moves back one card, staying on the first card at the start.
func (e *Engine) GoPrevious() error {
	if e.deck == nil {
		return ErrNotStarted
	}
	if e.index > 0 {
		e.index--
	}
	e.clearVisit()
	return nil
}

// GoNext moves forward one card, staying on the last card at the end.
func (e *Engine) GoNext() error {
	if e.deck == nil {
		return ErrNotStarted
	}
	if e.index < len(e.deck)-1 {
		e.index++
	}
	e.clearVisit()
	return nil
}

// Wait blocks until all queued statistics writes have finished.
func (e *Engine) Wait() {
	e.writes.Wait()
}

// persist runs the write in the background. Writes are applied in the order
// they were issued so a later absolute value never lands before an earlier one.
func (e *Engine) persist(cardID string, stats domain.ReviewStats) {
	prev := e.lastWrite
	done := make(chan struct{})
	e.lastWrite = done
	e.writes.Add(1)
	go func() {
		defer e.writes.Done()
		defer close(done)
		if prev != nil {
			<-prev
		}
		ctx := context.Background()
		if e.writeTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, e.writeTimeout)
			defer cancel()
		}
		if err := e.sink.UpdateReviewStats(ctx, cardID, stats); err != nil {
			e.notify(&PersistenceWriteError{CardID: cardID, Err: err})
		}
	}()
}
