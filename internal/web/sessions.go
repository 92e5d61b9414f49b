package web

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/conorfennell/repomind/internal/domain"
	reposync "github.com/conorfennell/repomind/internal/sync"
)

func (s *Server) handleListSessions(c *gin.Context) {
	var status domain.Status
	if q := c.Query("status"); q != "" {
		parsed, err := domain.ParseStatus(q)
		if err != nil {
			s.respondError(c, err)
			return
		}
		status = parsed
	}
	sessions, err := s.db.ListSessions(c.Request.Context(), status)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": orEmpty(sessions), "count": len(sessions)})
}

func (s *Server) handleCreateSession(c *gin.Context) {
	var in domain.SessionInput
	if err := bindJSON(c, &in); err != nil {
		s.respondError(c, err)
		return
	}
	session, err := s.db.InsertSession(c.Request.Context(), in)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, session)
}

func (s *Server) handleGetSession(c *gin.Context) {
	session, err := s.db.GetSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

func (s *Server) handleUpdateSession(c *gin.Context) {
	var in domain.SessionInput
	if err := bindJSON(c, &in); err != nil {
		s.respondError(c, err)
		return
	}
	session, err := s.db.UpdateSession(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

func (s *Server) handleDeleteSession(c *gin.Context) {
	if err := s.db.DeleteSession(c.Request.Context(), c.Param("id")); err != nil {
		s.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// handleSummarizeSession summarizes the session description and all of its notes.
func (s *Server) handleSummarizeSession(c *gin.Context) {
	if s.ai == nil {
		s.respondError(c, errAIDisabled)
		return
	}
	ctx := c.Request.Context()
	session, err := s.db.GetSession(ctx, c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	notes, err := s.db.ListNotes(ctx, session.ID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	parts := []string{session.Description}
	for _, n := range notes {
		parts = append(parts, n.Content)
	}

	summary, err := s.ai.Summarize(ctx, strings.TrimSpace(strings.Join(parts, "\n\n")))
	if err != nil {
		s.respondError(c, err)
		return
	}
	if err := s.db.SetSessionSummary(ctx, session.ID, summary); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"summary": summary})
}

// handleImportSession clones or pulls the session repository and imports its cards.
func (s *Server) handleImportSession(c *gin.Context) {
	ctx := c.Request.Context()
	session, err := s.db.GetSession(ctx, c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	result, err := reposync.Import(ctx, s.db, session, reposync.Options{
		ReposDir: s.opts.ReposDir,
		Token:    s.opts.GitHubToken,
		Logger:   s.log,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
