package web

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/conorfennell/repomind/internal/ai"
	"github.com/conorfennell/repomind/internal/domain"
	"github.com/conorfennell/repomind/internal/storage"
)

type fakeCompleter struct {
	reply string
}

func (f *fakeCompleter) Complete(_ context.Context, _ ai.Request) (string, error) {
	return f.reply, nil
}

type testServer struct {
	*Server
	db  *storage.DB
	llm *fakeCompleter
}

func newTestServer(t *testing.T, withAI bool) *testServer {
	t.Helper()
	return newTestServerWith(t, withAI, Options{})
}

// newTestServerWith fills in the test defaults for any zero option.
func newTestServerWith(t *testing.T, withAI bool, opts Options) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := storage.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger, _ := test.NewNullLogger()
	llm := &fakeCompleter{}
	opts.ReposDir = t.TempDir()
	opts.WriteTimeout = time.Second
	opts.Logger = logger
	if opts.Clock == nil {
		opts.Clock = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	}
	if withAI {
		opts.Assistant = ai.NewAssistant(llm, logger)
	}
	srv := NewServer(db, opts)
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, db: db, llm: llm}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	ts.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("Failed to decode response %q: %v", w.Body.String(), err)
	}
	return out
}

func expectStatus(t *testing.T, w *httptest.ResponseRecorder, status int) {
	t.Helper()
	if w.Code != status {
		t.Fatalf("Expected status %d, but got %d: %s", status, w.Code, w.Body.String())
	}
}

func (ts *testServer) createSession(t *testing.T, in domain.SessionInput) domain.StudySession {
	t.Helper()
	w := ts.do(t, http.MethodPost, "/api/sessions", in)
	expectStatus(t, w, http.StatusCreated)
	return decode[domain.StudySession](t, w)
}

func (ts *testServer) createCard(t *testing.T, sessionID, q, a string) domain.Card {
	t.Helper()
	w := ts.do(t, http.MethodPost, "/api/cards", domain.CardInput{SessionID: sessionID, Question: q, Answer: a})
	expectStatus(t, w, http.StatusCreated)
	return decode[domain.Card](t, w)
}

func TestSessionsAPI(t *testing.T) {
	ts := newTestServer(t, false)

	session := ts.createSession(t, domain.SessionInput{
		Title:         "Go runtime",
		RepositoryURL: "https://github.com/golang/go",
	})
	if session.RepositoryName != "golang/go" || session.Status != domain.Active {
		t.Errorf("Unexpected session: %+v", session)
	}

	testCases := []struct {
		name   string
		method string
		path   string
		body   any
		status int
	}{
		{name: "get", method: http.MethodGet, path: "/api/sessions/" + session.ID, status: http.StatusOK},
		{name: "missing", method: http.MethodGet, path: "/api/sessions/nope", status: http.StatusNotFound},
		{name: "invalid", method: http.MethodPost, path: "/api/sessions", body: domain.SessionInput{}, status: http.StatusBadRequest},
		{name: "bad status filter", method: http.MethodGet, path: "/api/sessions?status=paused", status: http.StatusBadRequest},
		{name: "update", method: http.MethodPut, path: "/api/sessions/" + session.ID, body: domain.SessionInput{Title: "Renamed", Status: "completed"}, status: http.StatusOK},
		{name: "list completed", method: http.MethodGet, path: "/api/sessions?status=completed", status: http.StatusOK},
		{name: "summarize without AI", method: http.MethodPost, path: "/api/sessions/" + session.ID + "/summarize", status: http.StatusServiceUnavailable},
		{name: "delete", method: http.MethodDelete, path: "/api/sessions/" + session.ID, status: http.StatusNoContent},
		{name: "delete again", method: http.MethodDelete, path: "/api/sessions/" + session.ID, status: http.StatusNotFound},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := ts.do(t, tc.method, tc.path, tc.body)
			expectStatus(t, w, tc.status)
			if tc.status >= 400 {
				body := decode[map[string]string](t, w)
				if body["error"] == "" {
					t.Errorf("Expected an error message, but got %q", w.Body.String())
				}
			}
		})
	}
}

func TestNotesRenderMarkdown(t *testing.T) {
	ts := newTestServer(t, false)
	session := ts.createSession(t, domain.SessionInput{Title: "Notes"})

	w := ts.do(t, http.MethodPost, "/api/notes", domain.NoteInput{
		SessionID: session.ID,
		Title:     "Scheduler",
		Content:   "# GMP\n\nGoroutines run on *threads*.",
		FilePath:  "/src/runtime/proc.go",
		LineStart: 1,
		LineEnd:   40,
	})
	expectStatus(t, w, http.StatusCreated)
	note := decode[domain.Note](t, w)
	if !strings.Contains(note.ContentHTML, "<em>threads</em>") || note.WordCount != 6 {
		t.Errorf("Expected rendered HTML and a word count of 6, but got %q / %d", note.ContentHTML, note.WordCount)
	}
	if note.FilePath != "src/runtime/proc.go" {
		t.Errorf("Expected a relative file path, but got %q", note.FilePath)
	}

	w = ts.do(t, http.MethodPut, "/api/notes/"+note.ID, domain.NoteInput{SessionID: session.ID, Title: "Scheduler", Content: "plain"})
	expectStatus(t, w, http.StatusOK)
	if updated := decode[domain.Note](t, w); updated.WordCount != 1 || updated.ContentHTML != "<p>plain</p>\n" {
		t.Errorf("Unexpected updated note: %+v", updated)
	}

	w = ts.do(t, http.MethodGet, "/api/notes?session_id="+session.ID, nil)
	expectStatus(t, w, http.StatusOK)
	if list := decode[struct{ Count int }](t, w); list.Count != 1 {
		t.Errorf("Expected 1 note, but got %d", list.Count)
	}
}

func TestTagsAPI(t *testing.T) {
	ts := newTestServer(t, false)
	session := ts.createSession(t, domain.SessionInput{Title: "Tags"})
	card := ts.createCard(t, session.ID, "Q?", "A.")

	w := ts.do(t, http.MethodPost, "/api/tags", domain.TagInput{Name: " Go "})
	expectStatus(t, w, http.StatusCreated)
	tag := decode[domain.Tag](t, w)
	if tag.Name != "go" || tag.Color != domain.DefaultTagColor {
		t.Errorf("Unexpected tag: %+v", tag)
	}

	expectStatus(t, ts.do(t, http.MethodPost, "/api/tags", domain.TagInput{Name: "GO"}), http.StatusConflict)
	expectStatus(t, ts.do(t, http.MethodPost, "/api/tags", domain.TagInput{Name: "x", Color: "red"}), http.StatusBadRequest)

	expectStatus(t, ts.do(t, http.MethodPost, "/api/cards/"+card.ID+"/tags/"+tag.ID, nil), http.StatusNoContent)
	expectStatus(t, ts.do(t, http.MethodPost, "/api/cards/missing/tags/"+tag.ID, nil), http.StatusNotFound)

	w = ts.do(t, http.MethodGet, "/api/cards?tag_id="+tag.ID, nil)
	expectStatus(t, w, http.StatusOK)
	list := decode[struct{ Cards []domain.Card }](t, w)
	if len(list.Cards) != 1 || len(list.Cards[0].Tags) != 1 {
		t.Errorf("Expected the tagged card, but got %+v", list.Cards)
	}

	expectStatus(t, ts.do(t, http.MethodDelete, "/api/cards/"+card.ID+"/tags/"+tag.ID, nil), http.StatusNoContent)
	expectStatus(t, ts.do(t, http.MethodDelete, "/api/cards/"+card.ID+"/tags/"+tag.ID, nil), http.StatusNotFound)
}

func TestSearchStatsAndExport(t *testing.T) {
	ts := newTestServer(t, false)
	session := ts.createSession(t, domain.SessionInput{Title: "Channels"})
	ts.createCard(t, session.ID, "What does a nil channel do?", "Blocks forever.")

	expectStatus(t, ts.do(t, http.MethodGet, "/api/search", nil), http.StatusBadRequest)
	w := ts.do(t, http.MethodGet, "/api/search?q=channel", nil)
	expectStatus(t, w, http.StatusOK)
	if res := decode[struct{ Count int }](t, w); res.Count != 2 {
		t.Errorf("Expected the session and the card, but got %d results", res.Count)
	}

	w = ts.do(t, http.MethodGet, "/api/stats", nil)
	expectStatus(t, w, http.StatusOK)
	if stats := decode[storage.Stats](t, w); stats.Sessions != 1 || stats.Cards != 1 {
		t.Errorf("Unexpected stats: %+v", stats)
	}

	w = ts.do(t, http.MethodGet, "/api/export?session_id="+session.ID, nil)
	expectStatus(t, w, http.StatusOK)
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "repomind-export-"+session.ID) {
		t.Errorf("Unexpected Content-Disposition %q", cd)
	}
	if !strings.Contains(w.Body.String(), "### Q: What does a nil channel do?") {
		t.Errorf("Expected the card in the export, but got:\n%s", w.Body.String())
	}

	w = ts.do(t, http.MethodGet, "/api/export?format=json", nil)
	expectStatus(t, w, http.StatusOK)
	if !strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		t.Errorf("Expected JSON, but got %q", w.Header().Get("Content-Type"))
	}
	expectStatus(t, ts.do(t, http.MethodGet, "/api/export?format=pdf", nil), http.StatusBadRequest)
}

func TestRepoBrowsing(t *testing.T) {
	ts := newTestServer(t, false)
	repo := t.TempDir()
	if err := os.WriteFile(filepath.Join(repo, "README.md"), []byte("one\ntwo\nthree\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	w := ts.do(t, http.MethodPost, "/api/sessions", map[string]string{"title": "Local"})
	expectStatus(t, w, http.StatusCreated)
	bare := decode[domain.StudySession](t, w)

	local, err := ts.db.InsertSession(context.Background(), domain.SessionInput{Title: "Repo", RepositoryURL: repo})
	if err != nil {
		t.Fatal(err)
	}

	w = ts.do(t, http.MethodGet, "/api/repos/"+local.ID+"/tree", nil)
	expectStatus(t, w, http.StatusOK)
	if !strings.Contains(w.Body.String(), `"README.md"`) {
		t.Errorf("Expected README.md in the tree, but got %s", w.Body.String())
	}

	w = ts.do(t, http.MethodGet, "/api/repos/"+local.ID+"/file?path=README.md&start=2&end=2", nil)
	expectStatus(t, w, http.StatusOK)
	if f := decode[struct{ Content string }](t, w); f.Content != "two" {
		t.Errorf("Expected line 2, but got %q", f.Content)
	}

	expectStatus(t, ts.do(t, http.MethodGet, "/api/repos/"+local.ID+"/file?path=../secret", nil), http.StatusBadRequest)
	expectStatus(t, ts.do(t, http.MethodGet, "/api/repos/"+local.ID+"/file?path=missing.md", nil), http.StatusNotFound)
	expectStatus(t, ts.do(t, http.MethodGet, "/api/repos/"+bare.ID+"/tree", nil), http.StatusBadRequest)

	w = ts.do(t, http.MethodPost, "/api/sessions/"+local.ID+"/import", nil)
	expectStatus(t, w, http.StatusOK)
}

func TestAIEndpoints(t *testing.T) {
	ts := newTestServer(t, true)
	session := ts.createSession(t, domain.SessionInput{Title: "AI"})

	w := ts.do(t, http.MethodPost, "/api/notes", domain.NoteInput{SessionID: session.ID, Title: "n", Content: "Goroutines are cheap."})
	expectStatus(t, w, http.StatusCreated)
	note := decode[domain.Note](t, w)

	ts.llm.reply = `[{"question": "Are goroutines cheap?", "answer": "Yes."}, {"question": "Why?", "answer": "Small stacks."}]`
	w = ts.do(t, http.MethodPost, "/api/cards/generate", map[string]any{"session_id": session.ID})
	expectStatus(t, w, http.StatusOK)
	gen := decode[struct {
		Cards    []ai.QA
		Inserted []domain.Card
	}](t, w)
	if len(gen.Cards) != 2 || len(gen.Inserted) != 2 || !gen.Inserted[0].AIGenerated {
		t.Errorf("Unexpected generation result: %+v", gen)
	}

	// The same pairs again are not inserted twice.
	w = ts.do(t, http.MethodPost, "/api/cards/generate", map[string]any{"session_id": session.ID})
	expectStatus(t, w, http.StatusOK)
	if again := decode[struct{ Inserted []domain.Card }](t, w); len(again.Inserted) != 0 {
		t.Errorf("Expected duplicates to be skipped, but got %d", len(again.Inserted))
	}

	ts.llm.reply = "A summary."
	w = ts.do(t, http.MethodPost, "/api/notes/"+note.ID+"/summarize", nil)
	expectStatus(t, w, http.StatusOK)
	stored, err := ts.db.GetNote(context.Background(), note.ID)
	if err != nil || stored.AISummary != "A summary." {
		t.Errorf("Expected the summary to be stored, got %+v, %v", stored, err)
	}

	ts.llm.reply = `["Concurrency", "go"]`
	w = ts.do(t, http.MethodPost, "/api/tags/suggest", map[string]string{"content": "goroutines"})
	expectStatus(t, w, http.StatusOK)
	if sug := decode[struct{ Suggestions []string }](t, w); len(sug.Suggestions) != 2 || sug.Suggestions[0] != "concurrency" {
		t.Errorf("Unexpected suggestions: %+v", sug)
	}

	ts.llm.reply = `["goroutines"]`
	w = ts.do(t, http.MethodGet, "/api/notes/"+note.ID+"/related", nil)
	expectStatus(t, w, http.StatusOK)
	related := decode[struct {
		Concepts []string
		Results  []storage.SearchResult
	}](t, w)
	if len(related.Concepts) != 1 {
		t.Errorf("Expected one concept, but got %v", related.Concepts)
	}
	for _, r := range related.Results {
		if r.Type == "note" && r.ID == note.ID {
			t.Error("Expected the note itself to be excluded from related results")
		}
	}

	expectStatus(t, ts.do(t, http.MethodPost, "/api/cards/generate", map[string]any{}), http.StatusBadRequest)
}
