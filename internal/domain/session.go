package domain

import (
	"strings"
	"time"
)

// Status is the lifecycle state of a study session.
type Status string

const (
	Active    Status = "active"
	Archived  Status = "archived"
	Completed Status = "completed"
)

// ParseStatus maps free text onto a Status. Empty input yields Active.
func ParseStatus(s string) (Status, error) {
	switch Status(strings.ToLower(strings.TrimSpace(s))) {
	case "", Active:
		return Active, nil
	case Archived:
		return Archived, nil
	case Completed:
		return Completed, nil
	}
	return "", ErrInvalidStatus
}

// StudySession groups notes and cards around one repository.
type StudySession struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Description    string    `json:"description,omitempty"`
	RepositoryURL  string    `json:"repository_url,omitempty"`
	RepositoryName string    `json:"repository_name,omitempty"`
	Status         Status    `json:"status"`
	AISummary      string    `json:"ai_summary,omitempty"`
	Tags           []Tag     `json:"tags"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// SessionInput carries user-editable session fields.
type SessionInput struct {
	Title          string `json:"title" validate:"required,max=200"`
	Description    string `json:"description" validate:"max=10000"`
	RepositoryURL  string `json:"repository_url" validate:"omitempty,url"`
	RepositoryName string `json:"repository_name" validate:"max=200"`
	Status         string `json:"status" validate:"omitempty,oneof=active archived completed"`
}

// Normalize ensures defaults and constraints before persistence.
func (s *StudySession) Normalize(now time.Time) {
	s.Title = strings.TrimSpace(s.Title)
	if s.Status == "" {
		s.Status = Active
	}
	if s.RepositoryName == "" && s.RepositoryURL != "" {
		s.RepositoryName = RepositoryName(s.RepositoryURL)
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now
	if s.Tags == nil {
		s.Tags = []Tag{}
	}
}

// RepositoryName derives "owner/repo" from a clone or browser URL.
func RepositoryName(url string) string {
	name := strings.TrimSuffix(strings.TrimSpace(url), "/")
	name = strings.TrimSuffix(name, ".git")
	if i := strings.LastIndex(name, ":"); i >= 0 && strings.HasPrefix(name, "git@") {
		return name[i+1:]
	}
	parts := strings.Split(name, "/")
	if len(parts) >= 2 {
		return parts[len(parts)-2] + "/" + parts[len(parts)-1]
	}
	return name
}
