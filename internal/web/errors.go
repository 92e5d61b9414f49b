package web

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/conorfennell/repomind/internal/ai"
	"github.com/conorfennell/repomind/internal/domain"
	"github.com/conorfennell/repomind/internal/gitsource"
	"github.com/conorfennell/repomind/internal/review"
	reposync "github.com/conorfennell/repomind/internal/sync"
)

var errAIDisabled = errors.New("AI features are not configured")

func statusFor(err error) int {
	var ve *domain.ValidationError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &ve),
		errors.Is(err, domain.ErrInvalidDifficulty),
		errors.Is(err, domain.ErrInvalidStatus),
		errors.Is(err, domain.ErrInvalidTagKind),
		errors.Is(err, ai.ErrEmptyContent),
		errors.Is(err, review.ErrEmptyDeck),
		errors.Is(err, gitsource.ErrOutsideRepo),
		errors.Is(err, reposync.ErrNoRepository):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrDuplicateTag),
		errors.Is(err, review.ErrInvalidGrade),
		errors.Is(err, review.ErrNotStarted):
		return http.StatusConflict
	case errors.Is(err, errAIDisabled), errors.Is(err, ai.ErrNotConfigured):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// respondError writes {"error": ...}. Internal errors are logged and masked.
func (s *Server) respondError(c *gin.Context, err error) {
	status := statusFor(err)
	_ = c.Error(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal server error"
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": msg})
}

// bindJSON decodes and validates a request body.
func bindJSON(c *gin.Context, dst any) error {
	if err := c.ShouldBindJSON(dst); err != nil {
		return &domain.ValidationError{Fields: []string{"body (" + err.Error() + ")"}}
	}
	return domain.Validate(dst)
}
