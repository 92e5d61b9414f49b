// Package ai generates summaries, study questions and tag suggestions with an LLM.
package ai

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"strings"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"github.com/conorfennell/repomind/internal/domain"
	"github.com/conorfennell/repomind/internal/parser"
)

// Token limits per operation.
const (
	summarizeMaxTokens = 1024
	questionsMaxTokens = 2048
	tagsMaxTokens      = 512
	relatedMaxTokens   = 512
)

// DefaultQuestionCount is used when GenerateQuestions gets a non-positive count.
const DefaultQuestionCount = 5

const maxTagLength = 50

// ErrEmptyContent is returned when there is nothing to send to the model.
var ErrEmptyContent = errors.New("ai: no content")

// QA is a generated question/answer pair.
type QA struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Assistant wraps a Completer with the RepoMind prompts and response parsing.
type Assistant struct {
	llm Completer
	log logrus.FieldLogger
}

// NewAssistant returns an Assistant. A nil logger uses the logrus standard logger.
func NewAssistant(llm Completer, log logrus.FieldLogger) *Assistant {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Assistant{llm: llm, log: log}
}

// Summarize returns a short learning-oriented summary of content.
func (a *Assistant) Summarize(ctx context.Context, content string) (string, error) {
	if strings.TrimSpace(content) == "" {
		return "", ErrEmptyContent
	}
	return a.llm.Complete(ctx, Request{Prompt: summarizePrompt(content), MaxTokens: summarizeMaxTokens})
}

// GenerateQuestions asks for count question/answer pairs about content.
func (a *Assistant) GenerateQuestions(ctx context.Context, content string, count int) ([]QA, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyContent
	}
	if count <= 0 {
		count = DefaultQuestionCount
	}
	text, err := a.llm.Complete(ctx, Request{Prompt: generateQuestionsPrompt(content, count), MaxTokens: questionsMaxTokens})
	if err != nil {
		return nil, err
	}

	var cards []QA
	if err := json.Unmarshal([]byte(stripFences(text)), &cards); err != nil {
		a.log.WithError(err).Debug("question response is not JSON, parsing Q:/A: text")
		cards = parseCards(text, a.log)
	}
	return lo.Filter(cards, func(c QA, _ int) bool {
		return strings.TrimSpace(c.Question) != "" && strings.TrimSpace(c.Answer) != ""
	}), nil
}

// SuggestTags proposes lowercase tags for content, preferring existing ones.
func (a *Assistant) SuggestTags(ctx context.Context, content string, existing []string) ([]string, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyContent
	}
	text, err := a.llm.Complete(ctx, Request{Prompt: suggestTagsPrompt(content, existing), MaxTokens: tagsMaxTokens})
	if err != nil {
		return nil, err
	}
	return cleanList(text, a.log), nil
}

// FindRelated extracts key concepts that connect content to other material.
func (a *Assistant) FindRelated(ctx context.Context, content string) ([]string, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyContent
	}
	text, err := a.llm.Complete(ctx, Request{Prompt: findRelatedPrompt(content), MaxTokens: relatedMaxTokens})
	if err != nil {
		return nil, err
	}
	return cleanList(text, a.log), nil
}

var listSplit = regexp.MustCompile(`[,\n]`)

// cleanList parses a JSON string array, falling back to comma or newline separated text.
func cleanList(text string, log logrus.FieldLogger) []string {
	var items []string
	if err := json.Unmarshal([]byte(stripFences(text)), &items); err != nil {
		log.WithError(err).Debug("list response is not JSON, splitting text")
		items = listSplit.Split(text, -1)
	}
	items = lo.Map(items, func(s string, _ int) string {
		return strings.ToLower(strings.Trim(strings.TrimSpace(s), `"'[]`))
	})
	items = lo.Filter(items, func(s string, _ int) bool {
		return s != "" && len(s) < maxTagLength
	})
	return lo.Uniq(items)
}

var (
	questionPrefix = regexp.MustCompile(`(?i)^Q:\s*`)
	answerPrefix   = regexp.MustCompile(`(?i)^A:\s*`)
)

// parseCards reads Q:/A: blocks, falling back to plain line pairs.
func parseCards(text string, log logrus.FieldLogger) []QA {
	parsed, err := parser.ParseString(text)
	if err != nil {
		log.WithError(err).Warn("question response could not be fully parsed")
	}
	if len(parsed) > 0 {
		return lo.Map(parsed, func(c domain.Card, _ int) QA {
			return QA{Question: c.Question, Answer: c.Answer}
		})
	}
	return parseLinePairs(text)
}

// parseLinePairs reads non-empty lines two at a time as question then answer.
func parseLinePairs(text string) []QA {
	lines := lo.Filter(strings.Split(text, "\n"), func(l string, _ int) bool {
		return strings.TrimSpace(l) != ""
	})
	var cards []QA
	for i := 0; i+1 < len(lines); i += 2 {
		q := strings.TrimSpace(questionPrefix.ReplaceAllString(strings.TrimSpace(lines[i]), ""))
		ans := strings.TrimSpace(answerPrefix.ReplaceAllString(strings.TrimSpace(lines[i+1]), ""))
		if q != "" && ans != "" {
			cards = append(cards, QA{Question: q, Answer: ans})
		}
	}
	return cards
}

// stripFences removes a surrounding markdown code fence.
func stripFences(text string) string {
	cleaned := strings.TrimSpace(text)
	if strings.HasPrefix(cleaned, "```") {
		if idx := strings.Index(cleaned, "\n"); idx >= 0 {
			cleaned = cleaned[idx+1:]
		}
		if idx := strings.LastIndex(cleaned, "```"); idx >= 0 {
			cleaned = cleaned[:idx]
		}
		cleaned = strings.TrimSpace(cleaned)
	}
	return cleaned
}
