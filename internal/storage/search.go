package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"
)

const snippetRadius = 60

// SearchResult is one hit of a full-text search.
type SearchResult struct {
	Type    string `json:"result_type"` // session, note or card
	ID      string `json:"result_id"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	Rank    int    `json:"rank"`
}

type searchSource struct {
	kind  string
	query string
}

var searchSources = []searchSource{
	{kind: "session", query: `SELECT id, title, description FROM study_sessions
		WHERE title LIKE ? ESCAPE '\' OR description LIKE ? ESCAPE '\'`},
	{kind: "note", query: `SELECT id, title, content FROM notes
		WHERE title LIKE ? ESCAPE '\' OR content LIKE ? ESCAPE '\'`},
	{kind: "card", query: `SELECT id, question, answer FROM cards
		WHERE question LIKE ? ESCAPE '\' OR answer LIKE ? ESCAPE '\'`},
}

// Search finds sessions, notes and cards whose text contains every term of
// the query, ranked by how often the terms occur.
func (db *DB) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return []SearchResult{}, nil
	}
	pattern := "%" + escapeLike(terms[0]) + "%"

	results := []SearchResult{}
	for _, src := range searchSources {
		args := make([]any, strings.Count(src.query, "?"))
		for i := range args {
			args[i] = pattern
		}
		rows, err := db.conn.QueryContext(ctx, src.query, args...)
		if err != nil {
			return nil, fmt.Errorf("failed to search %ss: %w", src.kind, err)
		}
		for rows.Next() {
			var id, title, body string
			if err := rows.Scan(&id, &title, &body); err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to scan %s search row: %w", src.kind, err)
			}
			rank := score(terms, title, body)
			if rank == 0 {
				continue
			}
			results = append(results, SearchResult{
				Type:    src.kind,
				ID:      id,
				Title:   title,
				Snippet: snippet(body, terms[0]),
				Rank:    rank,
			})
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to iterate %s search rows: %w", src.kind, err)
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Rank > results[j].Rank
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// score returns 0 unless every term appears in title or body.
// Title hits weigh double.
func score(terms []string, title, body string) int {
	lt, lb := strings.ToLower(title), strings.ToLower(body)
	total := 0
	for _, term := range terms {
		n := 2*strings.Count(lt, term) + strings.Count(lb, term)
		if n == 0 {
			return 0
		}
		total += n
	}
	return total
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// snippet cuts a window of text around the first occurrence of term.
func snippet(body, term string) string {
	body = strings.Join(strings.Fields(body), " ")
	idx := strings.Index(strings.ToLower(body), term)
	if idx < 0 || idx > len(body) {
		idx = 0
	}
	start := idx - snippetRadius
	if start < 0 {
		start = 0
	}
	end := idx + len(term) + snippetRadius
	if end > len(body) || end < start {
		end = len(body)
	}
	for start > 0 && !utf8.RuneStart(body[start]) {
		start--
	}
	for end < len(body) && !utf8.RuneStart(body[end]) {
		end++
	}
	out := body[start:end]
	if start > 0 {
		out = "…" + out
	}
	if end < len(body) {
		out += "…"
	}
	return out
}
