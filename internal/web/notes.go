package web

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"

	"github.com/conorfennell/repomind/internal/domain"
	"github.com/conorfennell/repomind/internal/markup"
	"github.com/conorfennell/repomind/internal/storage"
)

const relatedLimit = 10

func (s *Server) handleListNotes(c *gin.Context) {
	notes, err := s.db.ListNotes(c.Request.Context(), c.Query("session_id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notes": orEmpty(notes), "count": len(notes)})
}

// noteFromInput renders the markdown and counts words.
func noteFromInput(in domain.NoteInput, note *domain.Note) error {
	html, err := markup.Render(in.Content)
	if err != nil {
		return err
	}
	note.SessionID = in.SessionID
	note.Title = in.Title
	note.Content = in.Content
	note.ContentHTML = html
	note.WordCount = markup.WordCount(in.Content)
	note.FilePath = in.FilePath
	note.LineStart = in.LineStart
	note.LineEnd = in.LineEnd
	return nil
}

func (s *Server) handleCreateNote(c *gin.Context) {
	var in domain.NoteInput
	if err := bindJSON(c, &in); err != nil {
		s.respondError(c, err)
		return
	}
	var note domain.Note
	if err := noteFromInput(in, &note); err != nil {
		s.respondError(c, err)
		return
	}
	if err := s.db.InsertNote(c.Request.Context(), &note); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, note)
}

func (s *Server) handleGetNote(c *gin.Context) {
	note, err := s.db.GetNote(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, note)
}

func (s *Server) handleUpdateNote(c *gin.Context) {
	var in domain.NoteInput
	if err := bindJSON(c, &in); err != nil {
		s.respondError(c, err)
		return
	}
	ctx := c.Request.Context()
	note, err := s.db.GetNote(ctx, c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	if err := noteFromInput(in, note); err != nil {
		s.respondError(c, err)
		return
	}
	if err := s.db.UpdateNote(ctx, note); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, note)
}

func (s *Server) handleDeleteNote(c *gin.Context) {
	if err := s.db.DeleteNote(c.Request.Context(), c.Param("id")); err != nil {
		s.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleSummarizeNote(c *gin.Context) {
	if s.ai == nil {
		s.respondError(c, errAIDisabled)
		return
	}
	ctx := c.Request.Context()
	note, err := s.db.GetNote(ctx, c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	summary, err := s.ai.Summarize(ctx, note.Content)
	if err != nil {
		s.respondError(c, err)
		return
	}
	if err := s.db.SetNoteSummary(ctx, note.ID, summary); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"summary": summary})
}

// handleRelatedNote extracts key concepts from a note and searches for each.
func (s *Server) handleRelatedNote(c *gin.Context) {
	if s.ai == nil {
		s.respondError(c, errAIDisabled)
		return
	}
	ctx := c.Request.Context()
	note, err := s.db.GetNote(ctx, c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	concepts, err := s.ai.FindRelated(ctx, note.Content)
	if err != nil {
		s.respondError(c, err)
		return
	}

	var results []storage.SearchResult
	for _, concept := range concepts {
		hits, err := s.db.Search(ctx, concept, relatedLimit)
		if err != nil {
			s.respondError(c, err)
			return
		}
		results = append(results, hits...)
	}
	results = lo.UniqBy(results, func(r storage.SearchResult) string { return r.Type + ":" + r.ID })
	results = lo.Filter(results, func(r storage.SearchResult, _ int) bool {
		return !(r.Type == "note" && r.ID == note.ID)
	})
	if len(results) > relatedLimit {
		results = results[:relatedLimit]
	}
	c.JSON(http.StatusOK, gin.H{"concepts": orEmpty(concepts), "results": orEmpty(results)})
}
