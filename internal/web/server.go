// Package web serves the RepoMind JSON API.
package web

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/conorfennell/repomind/internal/ai"
	"github.com/conorfennell/repomind/internal/domain"
	"github.com/conorfennell/repomind/internal/storage"
)

// Options carries the server's collaborators and settings.
type Options struct {
	ReposDir     string
	GitHubToken  string
	WriteTimeout time.Duration
	// StudyIdleTimeout evicts studies with no requests for this long.
	// Zero keeps them until they are ended.
	StudyIdleTimeout time.Duration
	Assistant        *ai.Assistant // nil disables the AI endpoints
	Logger           *logrus.Logger
	Clock            func() time.Time
}

// Server holds the dependencies for the HTTP server.
type Server struct {
	db      *storage.DB
	router  *gin.Engine
	log     *logrus.Logger
	ai      *ai.Assistant
	studies *studyRegistry
	opts    Options
}

// NewServer creates and configures a new server.
func NewServer(db *storage.DB, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	router := gin.New()
	router.Use(requestLogger(opts.Logger), gin.Recovery())

	s := &Server{
		db:      db,
		router:  router,
		log:     opts.Logger,
		ai:      opts.Assistant,
		studies: newStudyRegistry(opts.Clock),
		opts:    opts,
	}
	s.routes()
	return s
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// routes sets up the routing for the server.
func (s *Server) routes() {
	api := s.router.Group("/api")

	sessions := api.Group("/sessions")
	{
		sessions.GET("", s.handleListSessions)
		sessions.POST("", s.handleCreateSession)
		sessions.GET("/:id", s.handleGetSession)
		sessions.PUT("/:id", s.handleUpdateSession)
		sessions.DELETE("/:id", s.handleDeleteSession)
		sessions.POST("/:id/summarize", s.handleSummarizeSession)
		sessions.POST("/:id/import", s.handleImportSession)
		sessions.POST("/:id/tags/:tag_id", s.handleAttachTag(domain.SessionTags))
		sessions.DELETE("/:id/tags/:tag_id", s.handleDetachTag(domain.SessionTags))
	}

	notes := api.Group("/notes")
	{
		notes.GET("", s.handleListNotes)
		notes.POST("", s.handleCreateNote)
		notes.GET("/:id", s.handleGetNote)
		notes.PUT("/:id", s.handleUpdateNote)
		notes.DELETE("/:id", s.handleDeleteNote)
		notes.POST("/:id/summarize", s.handleSummarizeNote)
		notes.GET("/:id/related", s.handleRelatedNote)
		notes.POST("/:id/tags/:tag_id", s.handleAttachTag(domain.NoteTags))
		notes.DELETE("/:id/tags/:tag_id", s.handleDetachTag(domain.NoteTags))
	}

	cards := api.Group("/cards")
	{
		cards.GET("", s.handleListCards)
		cards.POST("", s.handleCreateCard)
		cards.POST("/generate", s.handleGenerateCards)
		cards.GET("/:id", s.handleGetCard)
		cards.PUT("/:id", s.handleUpdateCard)
		cards.DELETE("/:id", s.handleDeleteCard)
		cards.POST("/:id/tags/:tag_id", s.handleAttachTag(domain.CardTags))
		cards.DELETE("/:id/tags/:tag_id", s.handleDetachTag(domain.CardTags))
	}

	tags := api.Group("/tags")
	{
		tags.GET("", s.handleListTags)
		tags.POST("", s.handleCreateTag)
		tags.POST("/suggest", s.handleSuggestTags)
		tags.PUT("/:id", s.handleUpdateTag)
		tags.DELETE("/:id", s.handleDeleteTag)
	}

	api.GET("/search", s.handleSearch)
	api.GET("/export", s.handleExport)
	api.GET("/stats", s.handleStats)

	repos := api.Group("/repos/:session_id")
	{
		repos.GET("/tree", s.handleRepoTree)
		repos.GET("/file", s.handleRepoFile)
	}

	study := api.Group("/study")
	{
		study.POST("", s.handleStartStudy)
		study.GET("/:id", s.handleGetStudy)
		study.POST("/:id/flip", s.studyAction(actionFlip))
		study.POST("/:id/answer", s.handleAnswer)
		study.POST("/:id/next", s.studyAction(actionNext))
		study.POST("/:id/previous", s.studyAction(actionPrevious))
		study.POST("/:id/shuffle", s.studyAction(actionShuffle))
		study.POST("/:id/reset", s.studyAction(actionReset))
		study.DELETE("/:id", s.handleEndStudy)
	}
}

const evictInterval = time.Minute

// Run serves on addr until ctx is cancelled, then shuts down gracefully and
// waits for pending review writes.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", addr).Info("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	if s.opts.StudyIdleTimeout > 0 {
		evictCtx, stopEvict := context.WithCancel(ctx)
		defer stopEvict()
		go s.evictLoop(evictCtx)
	}

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.log.Info("shutting down http server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		s.Close()
		return err
	}
}

func (s *Server) evictLoop(ctx context.Context) {
	ticker := time.NewTicker(evictInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.evictIdleStudies()
		}
	}
}

// Close waits for every open study to flush its statistics writes.
func (s *Server) Close() {
	s.studies.waitAll()
}
