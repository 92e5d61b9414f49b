package web

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/conorfennell/repomind/internal/domain"
	"github.com/conorfennell/repomind/internal/knol"
	"github.com/conorfennell/repomind/internal/storage"
)

func (s *Server) handleListCards(c *gin.Context) {
	cards, err := s.db.ListCards(c.Request.Context(), storage.CardFilter{
		SessionID: c.Query("session_id"),
		TagID:     c.Query("tag_id"),
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cards": orEmpty(cards), "count": len(cards)})
}

func (s *Server) handleCreateCard(c *gin.Context) {
	var in domain.CardInput
	if err := bindJSON(c, &in); err != nil {
		s.respondError(c, err)
		return
	}
	difficulty, err := domain.ParseDifficulty(in.Difficulty)
	if err != nil {
		s.respondError(c, err)
		return
	}
	card := &domain.Card{
		SessionID:    in.SessionID,
		SourceNoteID: in.SourceNoteID,
		Question:     in.Question,
		Answer:       in.Answer,
		Difficulty:   difficulty,
		AIGenerated:  in.AIGenerated,
	}
	if err := s.db.InsertCard(c.Request.Context(), card); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, card)
}

func (s *Server) handleGetCard(c *gin.Context) {
	card, err := s.db.GetCard(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, card)
}

func (s *Server) handleUpdateCard(c *gin.Context) {
	var in domain.CardInput
	if err := bindJSON(c, &in); err != nil {
		s.respondError(c, err)
		return
	}
	card, err := s.db.UpdateCard(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, card)
}

func (s *Server) handleDeleteCard(c *gin.Context) {
	if err := s.db.DeleteCard(c.Request.Context(), c.Param("id")); err != nil {
		s.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type generateRequest struct {
	SessionID string `json:"session_id" validate:"omitempty,uuid"`
	NoteID    string `json:"note_id" validate:"omitempty,uuid"`
	Content   string `json:"content"`
	Count     int    `json:"count" validate:"gte=0,lte=50"`
}

// handleGenerateCards asks the model for question/answer pairs. Without
// explicit content it uses the note, or else all notes of the session.
// Pairs are stored when a session is given; duplicates are skipped.
func (s *Server) handleGenerateCards(c *gin.Context) {
	if s.ai == nil {
		s.respondError(c, errAIDisabled)
		return
	}
	var req generateRequest
	if err := bindJSON(c, &req); err != nil {
		s.respondError(c, err)
		return
	}
	ctx := c.Request.Context()

	content := req.Content
	if content == "" && req.NoteID != "" {
		note, err := s.db.GetNote(ctx, req.NoteID)
		if err != nil {
			s.respondError(c, err)
			return
		}
		content = note.Content
		if req.SessionID == "" {
			req.SessionID = note.SessionID
		}
	}
	if content == "" && req.SessionID != "" {
		notes, err := s.db.ListNotes(ctx, req.SessionID)
		if err != nil {
			s.respondError(c, err)
			return
		}
		parts := make([]string, len(notes))
		for i, n := range notes {
			parts[i] = n.Content
		}
		content = strings.Join(parts, "\n\n")
	}

	pairs, err := s.ai.GenerateQuestions(ctx, content, req.Count)
	if err != nil {
		s.respondError(c, err)
		return
	}

	inserted := []domain.Card{}
	if req.SessionID != "" {
		for _, qa := range pairs {
			card := domain.Card{
				SessionID:    req.SessionID,
				SourceNoteID: req.NoteID,
				Question:     qa.Question,
				Answer:       qa.Answer,
				Difficulty:   domain.Medium,
				AIGenerated:  true,
			}
			card.Hash = knol.Hash(card)
			existing, err := s.db.FindCardByHash(ctx, req.SessionID, card.Hash)
			if err != nil {
				s.respondError(c, err)
				return
			}
			if existing != nil {
				continue
			}
			if err := s.db.InsertCard(ctx, &card); err != nil {
				s.respondError(c, err)
				return
			}
			inserted = append(inserted, card)
		}
	}
	c.JSON(http.StatusOK, gin.H{"cards": orEmpty(pairs), "inserted": inserted})
}
