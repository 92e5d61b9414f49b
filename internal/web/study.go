package web

import (
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/conorfennell/repomind/internal/domain"
	"github.com/conorfennell/repomind/internal/review"
	"github.com/conorfennell/repomind/internal/storage"
)

// study is one review engine hosted for an API client.
type study struct {
	ID        string
	SessionID string
	StartedAt time.Time
	lastSeen  time.Time // guarded by the registry

	mu     sync.Mutex // serializes engine calls
	engine *review.Engine

	noticeMu sync.Mutex
	notices  []string
}

func (st *study) notice(msg string) {
	st.noticeMu.Lock()
	defer st.noticeMu.Unlock()
	st.notices = append(st.notices, msg)
}

func (st *study) drainNotices() []string {
	st.noticeMu.Lock()
	defer st.noticeMu.Unlock()
	out := st.notices
	st.notices = nil
	if out == nil {
		return []string{}
	}
	return out
}

type studyRegistry struct {
	mu      sync.Mutex
	clock   func() time.Time
	studies map[string]*study
}

func newStudyRegistry(clock func() time.Time) *studyRegistry {
	return &studyRegistry{clock: clock, studies: make(map[string]*study)}
}

func (r *studyRegistry) add(st *study) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st.lastSeen = r.clock()
	r.studies[st.ID] = st
}

// get returns a study and marks it as used.
func (r *studyRegistry) get(id string) (*study, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.studies[id]
	if ok {
		st.lastSeen = r.clock()
	}
	return st, ok
}

// evictIdle removes the studies unused for longer than idle.
func (r *studyRegistry) evictIdle(idle time.Duration) []*study {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.clock()
	var evicted []*study
	for id, st := range r.studies {
		if now.Sub(st.lastSeen) > idle {
			evicted = append(evicted, st)
			delete(r.studies, id)
		}
	}
	return evicted
}

func (r *studyRegistry) remove(id string) (*study, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.studies[id]
	delete(r.studies, id)
	return st, ok
}

func (r *studyRegistry) waitAll() {
	r.mu.Lock()
	all := make([]*study, 0, len(r.studies))
	for _, st := range r.studies {
		all = append(all, st)
	}
	r.mu.Unlock()
	for _, st := range all {
		st.engine.Wait()
	}
}

type studyResponse struct {
	ID        string       `json:"id"`
	SessionID string       `json:"session_id,omitempty"`
	State     review.State `json:"state"`
	Score     int          `json:"score"`
	Notices   []string     `json:"notices"`
}

// response snapshots the engine. The answer stays hidden until flipped.
func (st *study) response() studyResponse {
	state := st.engine.State()
	if state.Card != nil && !state.Flipped {
		state.Card.Answer = ""
	}
	return studyResponse{
		ID:        st.ID,
		SessionID: st.SessionID,
		State:     state,
		Score:     state.Score(),
		Notices:   st.drainNotices(),
	}
}

type startStudyRequest struct {
	SessionID string `json:"session_id" validate:"omitempty,uuid"`
	TagID     string `json:"tag_id" validate:"omitempty,uuid"`
	Shuffle   bool   `json:"shuffle"`
}

// handleStartStudy loads the selected cards into a new engine.
func (s *Server) handleStartStudy(c *gin.Context) {
	var req startStudyRequest
	if c.Request.ContentLength != 0 {
		if err := bindJSON(c, &req); err != nil {
			s.respondError(c, err)
			return
		}
	}
	cards, err := s.db.ListCards(c.Request.Context(), storage.CardFilter{SessionID: req.SessionID, TagID: req.TagID})
	if err != nil {
		s.respondError(c, err)
		return
	}

	st := &study{ID: uuid.NewString(), SessionID: req.SessionID, StartedAt: s.opts.Clock()}
	log := s.log.WithField("study_id", st.ID)
	st.engine = review.NewEngine(s.db,
		review.WithClock(s.opts.Clock),
		review.WithWriteTimeout(s.opts.WriteTimeout),
		review.WithNotifier(func(err error) {
			log.WithError(err).Warn("review stats write failed")
			var pwe *review.PersistenceWriteError
			if errors.As(err, &pwe) {
				st.notice(fmt.Sprintf("Could not save progress for card %s. Your session continues.", pwe.CardID))
				return
			}
			st.notice(err.Error())
		}),
		review.WithCompletion(func(state review.State) {
			log.WithFields(logrus.Fields{
				"reviewed": state.Reviewed,
				"correct":  state.Correct,
				"score":    state.Score(),
			}).Info("study complete")
		}),
	)
	if err := st.engine.Start(cards); err != nil {
		s.respondError(c, err)
		return
	}
	if req.Shuffle {
		if err := st.engine.Shuffle(); err != nil {
			s.respondError(c, err)
			return
		}
	}
	s.evictIdleStudies()
	s.studies.add(st)
	log.WithField("cards", len(cards)).Info("study started")
	c.JSON(http.StatusCreated, st.response())
}

func (s *Server) lookupStudy(c *gin.Context) (*study, bool) {
	st, ok := s.studies.get(c.Param("id"))
	if !ok {
		s.respondError(c, fmt.Errorf("study %s: %w", c.Param("id"), domain.ErrNotFound))
		return nil, false
	}
	return st, true
}

func (s *Server) handleGetStudy(c *gin.Context) {
	st, ok := s.lookupStudy(c)
	if !ok {
		return
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	c.JSON(http.StatusOK, st.response())
}

type studyActionFunc func(*review.Engine) error

var (
	actionFlip     studyActionFunc = (*review.Engine).Flip
	actionNext     studyActionFunc = (*review.Engine).GoNext
	actionPrevious studyActionFunc = (*review.Engine).GoPrevious
	actionShuffle  studyActionFunc = (*review.Engine).Shuffle
	actionReset    studyActionFunc = (*review.Engine).Reset
)

func (s *Server) studyAction(action studyActionFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		st, ok := s.lookupStudy(c)
		if !ok {
			return
		}
		st.mu.Lock()
		defer st.mu.Unlock()
		if err := action(st.engine); err != nil {
			s.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, st.response())
	}
}

type answerRequest struct {
	Correct *bool `json:"correct" validate:"required"`
}

func (s *Server) handleAnswer(c *gin.Context) {
	var req answerRequest
	if err := bindJSON(c, &req); err != nil {
		s.respondError(c, err)
		return
	}
	st, ok := s.lookupStudy(c)
	if !ok {
		return
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if err := st.engine.Answer(*req.Correct); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, st.response())
}

// handleEndStudy waits for pending writes, then drops the study.
func (s *Server) handleEndStudy(c *gin.Context) {
	st, ok := s.studies.remove(c.Param("id"))
	if !ok {
		s.respondError(c, fmt.Errorf("study %s: %w", c.Param("id"), domain.ErrNotFound))
		return
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	st.engine.Wait()
	c.JSON(http.StatusOK, st.response())
}

// evictIdleStudies drops studies nobody has touched within the idle timeout
// once their pending writes have finished.
func (s *Server) evictIdleStudies() {
	if s.opts.StudyIdleTimeout <= 0 {
		return
	}
	for _, st := range s.studies.evictIdle(s.opts.StudyIdleTimeout) {
		st.mu.Lock()
		st.engine.Wait()
		st.mu.Unlock()
		s.log.WithFields(logrus.Fields{
			"study_id": st.ID,
			"age":      s.opts.Clock().Sub(st.StartedAt).Round(time.Second).String(),
		}).Info("idle study evicted")
	}
}
