package review

import "github.com/conorfennell/repomind/internal/domain"

// State is a snapshot of an Engine.
type State struct {
	Index     int          `json:"index"`
	Total     int          `json:"total"`
	Flipped   bool         `json:"flipped"`
	Reviewing bool         `json:"reviewing"`
	Reviewed  int          `json:"reviewed"`
	Correct   int          `json:"correct"`
	Complete  bool         `json:"complete"`
	Progress  float64      `json:"progress"`
	Card      *domain.Card `json:"card,omitempty"`
}

// State returns a copy of the current session state.
func (e *Engine) State() State {
	s := State{
		Index:     e.index,
		Total:     len(e.deck),
		Flipped:   e.flipped,
		Reviewing: e.reviewing,
		Reviewed:  e.reviewed,
		Correct:   e.correct,
		Complete:  e.complete,
		Progress:  e.Progress(),
	}
	if card, ok := e.Current(); ok {
		s.Card = &card
	}
	return s
}

// Current returns a copy of the card at the current position.
func (e *Engine) Current() (domain.Card, bool) {
	if len(e.deck) == 0 {
		return domain.Card{}, false
	}
	return *e.deck[e.index], true
}

// Deck returns copies of the cards in session order.
func (e *Engine) Deck() []domain.Card {
	out := make([]domain.Card, len(e.deck))
	for i, c := range e.deck {
		out[i] = *c
	}
	return out
}

// Progress is the fraction of the deck graded this session.
func (e *Engine) Progress() float64 {
	if len(e.deck) == 0 {
		return 0
	}
	return float64(e.reviewed) / float64(len(e.deck))
}

// Score is the session percentage of correct grades over the deck size.
func (s State) Score() int {
	if s.Total == 0 {
		return 0
	}
	return int(float64(s.Correct)*100/float64(s.Total) + 0.5)
}
