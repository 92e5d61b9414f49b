// Package knol derives stable content identities for cards.
package knol

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/conorfennell/repomind/internal/domain"
)

// Normalize joins the card's question and answer after cleaning each part.
// Case, surrounding whitespace, line endings and runs of inner spaces are
// ignored so cosmetic edits do not produce a new identity.
func Normalize(card domain.Card) string {
	normalizePart := func(part string) string {
		p := strings.ReplaceAll(part, "\r\n", "\n")
		lines := strings.Split(strings.ToLower(p), "\n")
		for i, line := range lines {
			lines[i] = strings.Join(strings.Fields(line), " ")
		}
		return strings.TrimSpace(strings.Join(lines, "\n"))
	}

	// NUL keeps "ab"+"c" and "a"+"bc" apart.
	return normalizePart(card.Question) + "\x00" + normalizePart(card.Answer)
}

// Hash normalizes a card and returns its SHA-256 hash as a hex string.
func Hash(card domain.Card) string {
	sum := sha256.Sum256([]byte(Normalize(card)))
	return hex.EncodeToString(sum[:])
}
