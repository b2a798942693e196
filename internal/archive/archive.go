// Package archive keeps a git history of every persisted revision of
// the trip document. The in-document edit feed is capped at 50
// entries; the archive is the durable record beyond that.
package archive

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

const documentFile = "trip.json"

// Service archives document revisions into one local git repository.
// A nil Service is valid and records nothing.
type Service struct {
	dir string
	mu  sync.Mutex
}

// New opens or initializes the archive repository at dir. Empty dir
// disables archiving.
func New(dir string) (*Service, error) {
	if dir == "" {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create archive dir: %w", err)
	}
	if _, err := git.PlainOpen(dir); err != nil {
		if !errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, fmt.Errorf("open archive repo: %w", err)
		}
		if _, err := git.PlainInit(dir, false); err != nil {
			return nil, fmt.Errorf("init archive repo: %w", err)
		}
	}
	return &Service{dir: dir}, nil
}

// Record commits one persisted revision. Identical consecutive
// revisions produce no commit.
func (s *Service) Record(raw []byte) error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	repo, err := git.PlainOpen(s.dir)
	if err != nil {
		return fmt.Errorf("open archive repo: %w", err)
	}
	worktree, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("open worktree: %w", err)
	}

	pretty, err := prettify(raw)
	if err != nil {
		return fmt.Errorf("format revision: %w", err)
	}
	if err := os.WriteFile(filepath.Join(s.dir, documentFile), pretty, 0o644); err != nil {
		return fmt.Errorf("write revision: %w", err)
	}

	status, err := worktree.Status()
	if err != nil {
		return fmt.Errorf("worktree status: %w", err)
	}
	if status.IsClean() {
		return nil
	}

	if _, err := worktree.Add(documentFile); err != nil {
		return fmt.Errorf("git add revision: %w", err)
	}
	if _, err := worktree.Commit("Persist trip document revision", &git.CommitOptions{
		Author: &object.Signature{
			Name:  "tripboard",
			Email: "tripboard@local",
			When:  time.Now(),
		},
	}); err != nil {
		return fmt.Errorf("commit revision: %w", err)
	}
	return nil
}

// Revision describes one archived document revision.
type Revision struct {
	Hash string    `json:"hash"`
	Time time.Time `json:"time"`
}

// Revisions lists archived revisions, newest first, up to limit.
func (s *Service) Revisions(limit int) ([]Revision, error) {
	if s == nil {
		return nil, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	repo, err := git.PlainOpen(s.dir)
	if err != nil {
		return nil, fmt.Errorf("open archive repo: %w", err)
	}
	head, err := repo.Head()
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("resolve head: %w", err)
	}
	iter, err := repo.Log(&git.LogOptions{From: head.Hash()})
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	defer iter.Close()

	var out []Revision
	err = iter.ForEach(func(c *object.Commit) error {
		if limit > 0 && len(out) >= limit {
			return errStopIteration
		}
		out = append(out, Revision{Hash: c.Hash.String(), Time: c.Author.When})
		return nil
	})
	if err != nil && !errors.Is(err, errStopIteration) {
		return nil, fmt.Errorf("walk log: %w", err)
	}
	return out, nil
}

var errStopIteration = errors.New("stop iteration")

func prettify(raw []byte) ([]byte, error) {
	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, err
	}
	pretty, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(pretty, '\n'), nil
}
