package web

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/conorfennell/repomind/internal/domain"
	"github.com/conorfennell/repomind/internal/export"
	"github.com/conorfennell/repomind/internal/gitsource"
	reposync "github.com/conorfennell/repomind/internal/sync"
)

const (
	defaultSearchLimit = 50
	maxQuerySize       = 1 << 10
)

func (s *Server) handleSearch(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		badRequest(c, "query parameter required")
		return
	}
	if len(query) > maxQuerySize {
		badRequest(c, "query exceeds maximum size of 1KB")
		return
	}
	limit := defaultSearchLimit
	if l, err := strconv.Atoi(c.Query("limit")); err == nil && l > 0 {
		limit = l
	}
	results, err := s.db.Search(c.Request.Context(), query, limit)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"query": query, "results": results, "count": len(results)})
}

func (s *Server) handleStats(c *gin.Context) {
	stats, err := s.db.Stats(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// handleExport streams an export as a download.
func (s *Server) handleExport(c *gin.Context) {
	format, err := export.ParseFormat(c.Query("format"))
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	sessionID := c.Query("session_id")
	now := s.opts.Clock()
	data, err := export.Collect(c.Request.Context(), s.db, sessionID, now)
	if err != nil {
		s.respondError(c, err)
		return
	}

	contentType := "text/markdown; charset=utf-8"
	if format == export.JSON {
		contentType = "application/json; charset=utf-8"
	}
	c.Header("Content-Disposition", `attachment; filename="`+export.Filename(sessionID, format, now)+`"`)
	c.Header("Content-Type", contentType)
	c.Status(http.StatusOK)
	if err := export.Write(c.Writer, format, data); err != nil {
		s.log.WithError(err).Error("failed to write export")
	}
}

// checkout resolves the local checkout of a session's repository.
func (s *Server) checkout(c *gin.Context) (string, bool) {
	session, err := s.db.GetSession(c.Request.Context(), c.Param("session_id"))
	if err != nil {
		s.respondError(c, err)
		return "", false
	}
	if session.RepositoryURL == "" {
		s.respondError(c, reposync.ErrNoRepository)
		return "", false
	}
	root, err := reposync.LocalPath(s.opts.ReposDir, session.RepositoryURL)
	if err != nil {
		badRequest(c, err.Error())
		return "", false
	}
	if _, err := os.Stat(root); errors.Is(err, os.ErrNotExist) {
		s.respondError(c, fmt.Errorf("repository not imported yet: %w", domain.ErrNotFound))
		return "", false
	}
	return root, true
}

func (s *Server) handleRepoTree(c *gin.Context) {
	root, ok := s.checkout(c)
	if !ok {
		return
	}
	entries, err := gitsource.List(root, c.Query("path"))
	if err != nil {
		s.respondRepoError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"path": c.Query("path"), "entries": entries})
}

func (s *Server) handleRepoFile(c *gin.Context) {
	path := c.Query("path")
	if path == "" {
		badRequest(c, "path parameter required")
		return
	}
	start, _ := strconv.Atoi(c.Query("start"))
	end, _ := strconv.Atoi(c.Query("end"))

	root, ok := s.checkout(c)
	if !ok {
		return
	}
	file, err := gitsource.ReadLines(root, path, start, end)
	if err != nil {
		s.respondRepoError(c, err)
		return
	}
	c.JSON(http.StatusOK, file)
}

func (s *Server) respondRepoError(c *gin.Context, err error) {
	if errors.Is(err, os.ErrNotExist) {
		err = fmt.Errorf("%s: %w", c.Query("path"), domain.ErrNotFound)
	}
	s.respondError(c, err)
}
