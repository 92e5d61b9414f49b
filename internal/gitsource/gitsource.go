// Package gitsource keeps local checkouts of study repositories and reads files from them.
package gitsource

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/sirupsen/logrus"
)

// ErrOutsideRepo is returned for paths that resolve outside the checkout.
var ErrOutsideRepo = errors.New("gitsource: path escapes repository")

// Entry is one item of a directory listing.
type Entry struct {
	Name string `json:"name"`
	Path string `json:"path"`
	Type string `json:"type"` // file or dir
	Size int64  `json:"size"`
}

// File is the content of a file or a line range of it.
type File struct {
	Path       string `json:"path"`
	Content    string `json:"content"`
	LineStart  int    `json:"line_start"`
	LineEnd    int    `json:"line_end"`
	TotalLines int    `json:"total_lines"`
}

func auth(token string) transport.AuthMethod {
	if token == "" {
		return nil
	}
	// GitHub accepts any username alongside a token.
	return &githttp.BasicAuth{Username: "x-access-token", Password: token}
}

// Sync clones a git repository if it doesn't exist at the given path,
// or pulls the latest changes if it does.
func Sync(ctx context.Context, log logrus.FieldLogger, url, localPath, token string) error {
	_, err := os.Stat(localPath)
	if os.IsNotExist(err) {
		log.WithField("url", url).WithField("path", localPath).Info("cloning repository")
		_, err := git.PlainCloneContext(ctx, localPath, false, &git.CloneOptions{
			URL:  url,
			Auth: auth(token),
		})
		if err != nil {
			os.RemoveAll(localPath)
			return fmt.Errorf("failed to clone repo %s: %w", url, err)
		}
		log.WithField("path", localPath).Info("clone successful")
	} else if err == nil {
		log.WithField("path", localPath).Info("pulling latest changes")
		repo, err := git.PlainOpen(localPath)
		if err != nil {
			return fmt.Errorf("failed to open existing repo at %s: %w", localPath, err)
		}

		worktree, err := repo.Worktree()
		if err != nil {
			return fmt.Errorf("failed to get worktree for repo at %s: %w", localPath, err)
		}

		err = worktree.PullContext(ctx, &git.PullOptions{
			RemoteName: "origin",
			Auth:       auth(token),
		})
		if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
			return fmt.Errorf("failed to pull changes for repo at %s: %w", localPath, err)
		}
		log.WithField("path", localPath).Info("pull successful (or already up-to-date)")
	} else {
		return fmt.Errorf("error checking path %s: %w", localPath, err)
	}

	return nil
}

// resolve joins rel onto root and rejects results outside root, including
// paths that leave it through a symlink.
func resolve(root, rel string) (string, error) {
	full := filepath.Join(root, filepath.FromSlash(rel))
	if !within(root, full) {
		return "", fmt.Errorf("%s: %w", rel, ErrOutsideRepo)
	}

	realRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		return "", fmt.Errorf("failed to resolve checkout %s: %w", root, err)
	}
	realFull, err := filepath.EvalSymlinks(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return full, nil // the caller reports the missing path
		}
		return "", fmt.Errorf("failed to resolve %s: %w", rel, err)
	}
	if !within(realRoot, realFull) {
		return "", fmt.Errorf("%s: %w", rel, ErrOutsideRepo)
	}
	return realFull, nil
}

func within(root, path string) bool {
	r, err := filepath.Rel(root, path)
	return err == nil && r != ".." && !strings.HasPrefix(r, ".."+string(filepath.Separator))
}

// List returns the entries of a directory inside the checkout, directories first.
// The .git directory is hidden.
func List(root, rel string) ([]Entry, error) {
	dir, err := resolve(root, rel)
	if err != nil {
		return nil, err
	}
	items, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", rel, err)
	}

	entries := make([]Entry, 0, len(items))
	for _, item := range items {
		if item.Name() == ".git" {
			continue
		}
		e := Entry{
			Name: item.Name(),
			Path: filepath.ToSlash(filepath.Join(rel, item.Name())),
			Type: "file",
		}
		if item.IsDir() {
			e.Type = "dir"
		} else if info, err := item.Info(); err == nil {
			e.Size = info.Size()
		}
		entries = append(entries, e)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Type != entries[j].Type {
			return entries[i].Type == "dir"
		}
		return entries[i].Name < entries[j].Name
	})
	return entries, nil
}

// ReadLines reads a file inside the checkout. Lines are 1-based and inclusive;
// start <= 0 means from the first line and end <= 0 means to the last.
func ReadLines(root, rel string, start, end int) (*File, error) {
	path, err := resolve(root, rel)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", rel, err)
	}
	defer f.Close()

	return readRange(f, rel, start, end)
}

func readRange(r io.Reader, rel string, start, end int) (*File, error) {
	if start <= 0 {
		start = 1
	}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var lines []string
	total := 0
	for scanner.Scan() {
		total++
		if total >= start && (end <= 0 || total <= end) {
			lines = append(lines, scanner.Text())
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", rel, err)
	}
	if end <= 0 || end > total {
		end = total
	}
	if start > end {
		start = end
	}
	return &File{
		Path:       rel,
		Content:    strings.Join(lines, "\n"),
		LineStart:  start,
		LineEnd:    end,
		TotalLines: total,
	}, nil
}
