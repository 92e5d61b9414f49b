// Package sync imports flashcards from a session's repository.
package sync

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"github.com/conorfennell/repomind/internal/domain"
	"github.com/conorfennell/repomind/internal/gitsource"
	"github.com/conorfennell/repomind/internal/knol"
	"github.com/conorfennell/repomind/internal/parser"
	"github.com/conorfennell/repomind/internal/storage"
)

// ErrNoRepository is returned when the session has no repository to import from.
var ErrNoRepository = errors.New("sync: session has no repository")

// Options configures Import.
type Options struct {
	ReposDir string
	Token    string
	Logger   logrus.FieldLogger
}

// Result summarizes one import.
type Result struct {
	Files    int      `json:"files"`
	Parsed   int      `json:"parsed"`
	Inserted int      `json:"inserted"`
	Orphaned int      `json:"orphaned"`
	Errors   []string `json:"errors"`
}

// Import brings the session's repository up to date and reconciles its cards.
// A repository URL naming an existing local directory is read in place.
func Import(ctx context.Context, db *storage.DB, session *domain.StudySession, opts Options) (*Result, error) {
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	log = log.WithField("session_id", session.ID)

	root, err := Checkout(ctx, log, session.RepositoryURL, opts.ReposDir, opts.Token)
	if err != nil {
		return nil, err
	}
	return reconcile(ctx, log, db, session.ID, root)
}

// Checkout returns the local directory holding repoURL, cloning or pulling
// git remotes into reposDir first.
func Checkout(ctx context.Context, log logrus.FieldLogger, repoURL, reposDir, token string) (string, error) {
	if repoURL == "" {
		return "", ErrNoRepository
	}
	if info, err := os.Stat(repoURL); err == nil && info.IsDir() {
		return repoURL, nil
	}

	localRepoPath, err := LocalPath(reposDir, repoURL)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(localRepoPath), os.ModePerm); err != nil {
		return "", fmt.Errorf("failed to create repos directory: %w", err)
	}
	if err := gitsource.Sync(ctx, log, repoURL, localRepoPath, token); err != nil {
		return "", err
	}
	return localRepoPath, nil
}

// LocalPath maps a repository URL to its directory under the checkout root.
// A URL naming an existing local directory maps to itself.
func LocalPath(reposDir, repoURL string) (string, error) {
	if info, err := os.Stat(repoURL); err == nil && info.IsDir() {
		return repoURL, nil
	}
	return gitUrlToLocalPath(reposDir, repoURL)
}

func reconcile(ctx context.Context, log logrus.FieldLogger, db *storage.DB, sessionID, root string) (*Result, error) {
	result := &Result{Errors: []string{}}
	foundCardHashes := make(map[string]bool)

	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() && d.Name() == ".git" {
			return filepath.SkipDir
		}
		if d.IsDir() || d.Type()&fs.ModeSymlink != 0 || !strings.HasSuffix(strings.ToLower(d.Name()), ".md") {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		result.Files++
		fileCards, parseErr := parser.ParseFile(path)
		if parseErr != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("parsing %s: %v", path, parseErr))
		}
		for _, card := range fileCards {
			card.SessionID = sessionID
			card.Imported = true
			card.Hash = knol.Hash(card)
			result.Parsed++
			if foundCardHashes[card.Hash] {
				continue
			}
			foundCardHashes[card.Hash] = true

			existingCard, findErr := db.FindCardByHash(ctx, sessionID, card.Hash)
			if findErr != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("db check for %s: %v", card.Hash, findErr))
				continue
			}
			if existingCard != nil {
				continue
			}
			log.WithField("hash", card.Hash).Debug("new card found, inserting")
			if insertErr := db.InsertCard(ctx, &card); insertErr != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("db insert for %s: %v", card.Hash, insertErr))
				continue
			}
			result.Inserted++
		}
		return nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", root, walkErr)
	}

	// An incomplete scan cannot tell a removed card from an unread one.
	if len(result.Errors) > 0 {
		log.WithField("errors", len(result.Errors)).Warn("scan had errors, keeping orphaned cards")
	} else if err := deleteOrphans(ctx, log, db, sessionID, foundCardHashes, result); err != nil {
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"path":             root,
		"files":            result.Files,
		"parsed_cards":     result.Parsed,
		"inserted":         result.Inserted,
		"orphaned_deleted": result.Orphaned,
		"errors":           len(result.Errors),
	}).Info("reconciliation complete")
	return result, nil
}

func deleteOrphans(ctx context.Context, log logrus.FieldLogger, db *storage.DB, sessionID string, found map[string]bool, result *Result) error {
	dbCards, err := db.ListCards(ctx, storage.CardFilter{SessionID: sessionID, ImportedOnly: true})
	if err != nil {
		return fmt.Errorf("failed to list imported cards: %w", err)
	}
	orphans := lo.Filter(dbCards, func(c domain.Card, _ int) bool {
		return !found[c.Hash]
	})
	for _, orphan := range orphans {
		log.WithField("hash", orphan.Hash).Info("orphaned card, deleting")
		if err := db.DeleteCard(ctx, orphan.ID); err != nil {
			log.WithError(err).WithField("hash", orphan.Hash).Warn("failed to delete orphaned card")
			continue
		}
		result.Orphaned++
	}
	return nil
}

func gitUrlToLocalPath(baseDir, repoURL string) (string, error) {
	parsedURL, err := url.Parse(repoURL)
	if err != nil || (parsedURL.Scheme != "https" && parsedURL.Scheme != "http" && parsedURL.Scheme != "file") {
		if strings.Contains(repoURL, "@") {
			parts := strings.Split(repoURL, ":")
			if len(parts) == 2 {
				hostAndUser := strings.Split(parts[0], "@")
				if len(hostAndUser) == 2 {
					host := hostAndUser[1]
					repoPath := strings.TrimSuffix(parts[1], ".git")
					return filepath.Join(baseDir, host, repoPath), nil
				}
			}
		}
		return "", fmt.Errorf("could not parse git URL: %s", repoURL)
	}

	sanitizedPath := strings.TrimSuffix(parsedURL.Path, ".git")
	host := parsedURL.Host
	if host == "" {
		host = "local"
	}
	return filepath.Join(baseDir, host, sanitizedPath), nil
}
