package web

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"

	"github.com/conorfennell/repomind/internal/domain"
)

func (s *Server) handleListTags(c *gin.Context) {
	tags, err := s.db.ListTags(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tags": tags, "count": len(tags)})
}

func (s *Server) handleCreateTag(c *gin.Context) {
	var in domain.TagInput
	if err := bindJSON(c, &in); err != nil {
		s.respondError(c, err)
		return
	}
	tag, err := s.db.InsertTag(c.Request.Context(), in)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, tag)
}

func (s *Server) handleUpdateTag(c *gin.Context) {
	var in domain.TagInput
	if err := bindJSON(c, &in); err != nil {
		s.respondError(c, err)
		return
	}
	tag, err := s.db.UpdateTag(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tag)
}

func (s *Server) handleDeleteTag(c *gin.Context) {
	if err := s.db.DeleteTag(c.Request.Context(), c.Param("id")); err != nil {
		s.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleAttachTag(kind domain.TagKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.db.AttachTag(c.Request.Context(), kind, c.Param("id"), c.Param("tag_id")); err != nil {
			s.respondError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func (s *Server) handleDetachTag(kind domain.TagKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.db.DetachTag(c.Request.Context(), kind, c.Param("id"), c.Param("tag_id")); err != nil {
			s.respondError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

type suggestRequest struct {
	Content string `json:"content" validate:"required"`
}

// handleSuggestTags proposes tags for content, preferring names already in use.
func (s *Server) handleSuggestTags(c *gin.Context) {
	if s.ai == nil {
		s.respondError(c, errAIDisabled)
		return
	}
	var req suggestRequest
	if err := bindJSON(c, &req); err != nil {
		s.respondError(c, err)
		return
	}
	ctx := c.Request.Context()
	tags, err := s.db.ListTags(ctx)
	if err != nil {
		s.respondError(c, err)
		return
	}
	existing := lo.Map(tags, func(t domain.Tag, _ int) string { return t.Name })

	suggestions, err := s.ai.SuggestTags(ctx, req.Content, existing)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"suggestions": orEmpty(suggestions)})
}
