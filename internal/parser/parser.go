// Package parser extracts question/answer cards from markdown text.
//
// A card starts at a line beginning with "Q:" and collects the following
// lines until "A:" starts the answer. An optional "D:" line sets the
// difficulty. Cards end at the next "Q:", at a "---" separator, or at EOF.
package parser

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/conorfennell/repomind/internal/domain"
)

const (
	questionPrefix   = "Q:"
	answerPrefix     = "A:"
	difficultyPrefix = "D:"
	separator        = "---"
)

type state int

const (
	seeking state = iota
	readingQuestion
	readingAnswer
)

// ParseFile reads a file from the given path and extracts all cards.
func ParseFile(path string) ([]domain.Card, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return Parse(file)
}

// ParseString extracts all cards from s.
func ParseString(s string) ([]domain.Card, error) {
	return Parse(strings.NewReader(s))
}

// Parse reads from an io.Reader and extracts all cards.
// Cards without both a question and an answer are dropped. On a read error
// the cards completed before it are returned along with the error.
func Parse(r io.Reader) ([]domain.Card, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var cards []domain.Card
	var currentCard domain.Card
	var currentBlock []string
	currentState := seeking

	flushBlock := func() {
		content := strings.TrimSpace(strings.Join(currentBlock, "\n"))
		switch currentState {
		case readingQuestion:
			currentCard.Question = content
		case readingAnswer:
			currentCard.Answer = content
		}
		currentBlock = nil
	}

	finishCard := func() {
		flushBlock()
		if currentCard.Question != "" && currentCard.Answer != "" {
			if currentCard.Difficulty == "" {
				currentCard.Difficulty = domain.Medium
			}
			cards = append(cards, currentCard)
		}
		currentCard = domain.Card{}
		currentState = seeking
	}

	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)

		switch {
		case trimmed == separator:
			finishCard()

		case strings.HasPrefix(line, questionPrefix):
			if currentState != seeking { // A new question always starts a new card
				finishCard()
			}
			currentState = readingQuestion
			currentBlock = append(currentBlock, afterPrefix(line, questionPrefix))

		case strings.HasPrefix(line, answerPrefix) && currentState == readingQuestion:
			flushBlock()
			currentState = readingAnswer
			currentBlock = append(currentBlock, afterPrefix(line, answerPrefix))

		case strings.HasPrefix(line, difficultyPrefix) && currentState != seeking:
			if d, err := domain.ParseDifficulty(afterPrefix(line, difficultyPrefix)); err == nil {
				currentCard.Difficulty = d
			}

		case currentState != seeking:
			currentBlock = append(currentBlock, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return cards, err
	}

	finishCard() // Finish the very last card in the file

	return cards, nil
}

func afterPrefix(line, prefix string) string {
	return strings.TrimPrefix(line[len(prefix):], " ")
}
