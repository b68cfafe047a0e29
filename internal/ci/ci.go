// Package ci resolves the commit identity and repository URL for a
// benchmark run from the environment it executes in.
//
// Resolution order for the commit:
//  1. Explicit values (command-line flags)
//  2. The GitHub Actions event payload at $GITHUB_EVENT_PATH: head_commit
//     for pushes, pull_request.head.sha for pull requests
//  3. The local git repository (HEAD by default)
package ci

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/benchtrail/benchtrail/internal/benchmark"
	"github.com/benchtrail/benchtrail/internal/vcs"
)

// ErrNoCommit is returned when no source yields a commit id.
var ErrNoCommit = errors.New("unable to determine commit")

// Source names where commit metadata came from.
type Source string

const (
	SourceFlags       Source = "flags"
	SourcePushEvent   Source = "push-event"
	SourcePullRequest Source = "pull-request"
	SourceGit         Source = "git"
)

// Options configures ResolveCommit. Empty fields are ignored.
type Options struct {
	// Explicit commit values; CommitID selects flag resolution.
	CommitID    string
	Message     string
	AuthorName  string
	AuthorEmail string
	Timestamp   string
	URL         string

	// RepoURL overrides the repository URL used to build commit links.
	RepoURL string

	// EventPath is the event payload file. Defaults to $GITHUB_EVENT_PATH.
	EventPath string

	// Repo, when set, fills in metadata from git.
	Repo vcs.Repository

	// Ref is resolved in Repo when nothing else names a commit. Defaults
	// to HEAD.
	Ref string
}

// githubEvent is the subset of push and pull_request payloads we read.
type githubEvent struct {
	HeadCommit *struct {
		ID        string           `json:"id"`
		TreeID    string           `json:"tree_id"`
		Distinct  *bool            `json:"distinct"`
		Message   string           `json:"message"`
		Timestamp string           `json:"timestamp"`
		URL       string           `json:"url"`
		Author    benchmark.Author `json:"author"`
		Committer benchmark.Author `json:"committer"`
	} `json:"head_commit"`

	PullRequest *struct {
		HTMLURL string `json:"html_url"`
		Head    struct {
			SHA string `json:"sha"`
		} `json:"head"`
	} `json:"pull_request"`

	Repository *struct {
		HTMLURL string `json:"html_url"`
	} `json:"repository"`
}

// ResolveCommit determines the commit a run measured.
func ResolveCommit(ctx context.Context, opts Options) (benchmark.Commit, Source, error) {
	if opts.Ref == "" {
		opts.Ref = "HEAD"
	}
	repoURL := opts.RepoURL
	if repoURL == "" {
		repoURL = RepoURL(opts.EventPath)
	}

	if opts.CommitID != "" {
		c, err := fromRepo(ctx, opts.Repo, opts.CommitID, repoURL)
		if err != nil {
			c = benchmark.Commit{ID: opts.CommitID, URL: commitURL(repoURL, opts.CommitID)}
		}
		applyFlags(&c, opts)
		return c, SourceFlags, nil
	}

	event, err := readEvent(opts.EventPath)
	if err != nil {
		return benchmark.Commit{}, "", err
	}
	if event != nil && event.HeadCommit != nil && event.HeadCommit.ID != "" {
		h := event.HeadCommit
		return benchmark.Commit{
			Author:    h.Author,
			Committer: h.Committer,
			ID:        h.ID,
			Message:   h.Message,
			Timestamp: h.Timestamp,
			TreeID:    h.TreeID,
			URL:       h.URL,
			Distinct:  h.Distinct,
		}, SourcePushEvent, nil
	}
	if event != nil && event.PullRequest != nil && event.PullRequest.Head.SHA != "" {
		sha := event.PullRequest.Head.SHA
		c, err := fromRepo(ctx, opts.Repo, sha, repoURL)
		if err != nil {
			c = benchmark.Commit{ID: sha}
		}
		if event.PullRequest.HTMLURL != "" {
			c.URL = event.PullRequest.HTMLURL + "/commits/" + sha
		}
		return c, SourcePullRequest, nil
	}

	if opts.Repo != nil {
		c, err := fromRepo(ctx, opts.Repo, opts.Ref, repoURL)
		if err != nil {
			return benchmark.Commit{}, "", fmt.Errorf("%w: %v", ErrNoCommit, err)
		}
		return c, SourceGit, nil
	}
	return benchmark.Commit{}, "", ErrNoCommit
}

// RepoURL returns the repository URL from the event payload, falling back
// to $GITHUB_SERVER_URL/$GITHUB_REPOSITORY. It returns "" outside Actions.
func RepoURL(eventPath string) string {
	if event, err := readEvent(eventPath); err == nil && event != nil &&
		event.Repository != nil && event.Repository.HTMLURL != "" {
		return event.Repository.HTMLURL
	}
	repo := os.Getenv("GITHUB_REPOSITORY")
	if repo == "" {
		return ""
	}
	server := os.Getenv("GITHUB_SERVER_URL")
	if server == "" {
		server = "https://github.com"
	}
	return strings.TrimSuffix(server, "/") + "/" + repo
}

// RunDate returns t as epoch milliseconds, the artifact's date unit.
func RunDate(t time.Time) int64 {
	return t.UnixMilli()
}

func readEvent(path string) (*githubEvent, error) {
	if path == "" {
		path = os.Getenv("GITHUB_EVENT_PATH")
	}
	if path == "" {
		return nil, nil
	}
	// #nosec G304 - path is provided by the CI runner
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read event payload: %w", err)
	}
	var event githubEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, fmt.Errorf("failed to parse event payload %s: %w", path, err)
	}
	return &event, nil
}

func fromRepo(ctx context.Context, repo vcs.Repository, ref, repoURL string) (benchmark.Commit, error) {
	if repo == nil {
		return benchmark.Commit{}, vcs.ErrNotInVCS
	}
	info, err := repo.CommitInfo(ctx, ref)
	if err != nil {
		return benchmark.Commit{}, err
	}
	return benchmark.Commit{
		Author:    benchmark.Author{Name: info.Author.Name, Email: info.Author.Email},
		Committer: benchmark.Author{Name: info.Committer.Name, Email: info.Committer.Email},
		ID:        info.Hash,
		Message:   info.Message,
		Timestamp: formatTimestamp(info.Committer.When),
		TreeID:    info.Tree,
		URL:       commitURL(repoURL, info.Hash),
	}, nil
}

func applyFlags(c *benchmark.Commit, opts Options) {
	if opts.Message != "" {
		c.Message = opts.Message
	}
	if opts.AuthorName != "" {
		c.Author.Name = opts.AuthorName
		c.Committer.Name = opts.AuthorName
	}
	if opts.AuthorEmail != "" {
		c.Author.Email = opts.AuthorEmail
		c.Committer.Email = opts.AuthorEmail
	}
	if opts.Timestamp != "" {
		c.Timestamp = opts.Timestamp
	}
	if opts.URL != "" {
		c.URL = opts.URL
	}
}

func commitURL(repoURL, id string) string {
	if repoURL == "" {
		return ""
	}
	return strings.TrimSuffix(repoURL, "/") + "/commit/" + id
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}
