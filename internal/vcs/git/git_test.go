package git

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/benchtrail/benchtrail/internal/vcs"
)

// setupTestRepo creates a temporary git repository for testing
func setupTestRepo(t *testing.T) string {
	t.Helper()

	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}

	tmpDir := t.TempDir()
	gitCmd(t, tmpDir, "init", "--quiet")

	// Configure git user for commits
	gitCmd(t, tmpDir, "config", "user.name", "Test User")
	gitCmd(t, tmpDir, "config", "user.email", "test@example.com")
	gitCmd(t, tmpDir, "config", "commit.gpgsign", "false")

	return tmpDir
}

func gitCmd(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("git %v failed: %v\n%s", args, err, out)
	}
	return string(out)
}

func commitFile(t *testing.T, dir, name, content, message string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}
	gitCmd(t, dir, "add", name)
	gitCmd(t, dir, "commit", "--quiet", "-m", message)
}

func TestNew(t *testing.T) {
	repoPath := setupTestRepo(t)

	g, err := New(repoPath)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	if g.Name() != vcs.TypeGit {
		t.Errorf("Name() = %v, want %v", g.Name(), vcs.TypeGit)
	}

	// Use EvalSymlinks to handle /var -> /private/var on macOS
	want, _ := filepath.EvalSymlinks(repoPath)
	got, _ := filepath.EvalSymlinks(g.RepoRoot())
	if got != want {
		t.Errorf("RepoRoot() = %v, want %v", got, want)
	}
}

func TestNew_NotARepo(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	dir := t.TempDir()
	t.Setenv("GIT_CEILING_DIRECTORIES", filepath.Dir(dir))

	_, err := New(dir)
	if !errors.Is(err, vcs.ErrNotInVCS) {
		t.Errorf("New() error = %v, want ErrNotInVCS", err)
	}
	if !vcs.IsFatal(err) {
		t.Error("IsFatal() = false, want true")
	}
}

func TestVersion(t *testing.T) {
	repoPath := setupTestRepo(t)
	g, err := New(repoPath)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	v, err := g.Version()
	if err != nil {
		t.Fatalf("Version() error = %v", err)
	}
	if v == "" || strings.HasPrefix(v, "git version") {
		t.Errorf("Version() = %q, want a bare version number", v)
	}
}

func TestCommitInfo(t *testing.T) {
	ctx := context.Background()
	repoPath := setupTestRepo(t)
	commitFile(t, repoPath, "a.txt", "a", "subject line\n\nbody text")

	g, err := New(repoPath)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	info, err := g.CommitInfo(ctx, "HEAD")
	if err != nil {
		t.Fatalf("CommitInfo() failed: %v", err)
	}

	head, _ := g.GetCommitHash(ctx, "HEAD")
	if info.Hash != head {
		t.Errorf("Hash = %q, want %q", info.Hash, head)
	}
	if len(info.Tree) < 40 {
		t.Errorf("Tree = %q, want an object id", info.Tree)
	}
	if info.Author.Name != "Test User" || info.Author.Email != "test@example.com" {
		t.Errorf("Author = %+v", info.Author)
	}
	if info.Committer.When.IsZero() {
		t.Error("Committer.When is zero")
	}
	if info.Message != "subject line\n\nbody text" {
		t.Errorf("Message = %q", info.Message)
	}
}

func TestGetCommitHash_Missing(t *testing.T) {
	repoPath := setupTestRepo(t)
	g, err := New(repoPath)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	_, err = g.GetCommitHash(context.Background(), "refs/heads/nope")
	if !errors.Is(err, vcs.ErrRefNotFound) {
		t.Errorf("GetCommitHash() error = %v, want ErrRefNotFound", err)
	}
}

func TestWriteFileCommit_LeavesWorkingTreeAlone(t *testing.T) {
	ctx := context.Background()
	repoPath := setupTestRepo(t)
	commitFile(t, repoPath, "README.md", "readme", "initial")

	g, err := New(repoPath)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	root, err := g.WriteFileCommit(ctx, vcs.FileCommitOptions{
		Path:    "dev/bench/data.js",
		Content: []byte("window.BENCHMARK_DATA = {}\n"),
		Message: "add data",
	})
	if err != nil {
		t.Fatalf("WriteFileCommit() failed: %v", err)
	}

	child, err := g.WriteFileCommit(ctx, vcs.FileCommitOptions{
		Parent:  root,
		Path:    "dev/bench/data.js",
		Content: []byte("window.BENCHMARK_DATA = {\"a\":1}"),
		Message: "update data",
		Author:  vcs.Person{Name: "CI", Email: "ci@example.com"},
	})
	if err != nil {
		t.Fatalf("WriteFileCommit() failed: %v", err)
	}

	got, err := g.ExtractFileFromRef(ctx, child, "dev/bench/data.js")
	if err != nil {
		t.Fatalf("ExtractFileFromRef() failed: %v", err)
	}
	if string(got) != "window.BENCHMARK_DATA = {\"a\":1}" {
		t.Errorf("content = %q", got)
	}

	first, err := g.ExtractFileFromRef(ctx, root, "dev/bench/data.js")
	if err != nil {
		t.Fatalf("ExtractFileFromRef() failed: %v", err)
	}
	if string(first) != "window.BENCHMARK_DATA = {}\n" {
		t.Errorf("root content = %q, trailing newline must survive", first)
	}

	info, err := g.CommitInfo(ctx, child)
	if err != nil {
		t.Fatalf("CommitInfo() failed: %v", err)
	}
	if info.Author.Name != "CI" {
		t.Errorf("Author.Name = %q, want CI", info.Author.Name)
	}

	// The artifact commit must not leak into the working tree or index.
	if _, err := os.Stat(filepath.Join(repoPath, "dev")); !os.IsNotExist(err) {
		t.Errorf("working tree was modified: %v", err)
	}
	if status := gitCmd(t, repoPath, "status", "--porcelain"); status != "" {
		t.Errorf("status = %q, want clean", status)
	}

	_, err = g.ExtractFileFromRef(ctx, child, "missing.txt")
	if !errors.Is(err, vcs.ErrPathNotFound) {
		t.Errorf("ExtractFileFromRef(missing) error = %v, want ErrPathNotFound", err)
	}
}

func TestUpdateRef_CompareAndSwap(t *testing.T) {
	ctx := context.Background()
	repoPath := setupTestRepo(t)
	g, err := New(repoPath)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	write := func(parent, content string) string {
		t.Helper()
		h, err := g.WriteFileCommit(ctx, vcs.FileCommitOptions{
			Parent: parent, Path: "data.js", Content: []byte(content), Message: content,
		})
		if err != nil {
			t.Fatalf("WriteFileCommit() failed: %v", err)
		}
		return h
	}

	const ref = "refs/heads/gh-pages"
	c1 := write("", "one")
	if err := g.UpdateRef(ctx, ref, c1, ""); err != nil {
		t.Fatalf("UpdateRef(create) failed: %v", err)
	}

	c2 := write(c1, "two")
	if err := g.UpdateRef(ctx, ref, c2, ""); !errors.Is(err, vcs.ErrRefMoved) {
		t.Errorf("UpdateRef(create existing) error = %v, want ErrRefMoved", err)
	}
	if err := g.UpdateRef(ctx, ref, c2, c1); err != nil {
		t.Fatalf("UpdateRef(advance) failed: %v", err)
	}

	c3 := write(c1, "stale")
	err = g.UpdateRef(ctx, ref, c3, c1)
	if !errors.Is(err, vcs.ErrRefMoved) {
		t.Errorf("UpdateRef(stale) error = %v, want ErrRefMoved", err)
	}
	if !vcs.IsRetryable(err) {
		t.Error("IsRetryable(ErrRefMoved) = false, want true")
	}

	if head, _ := g.GetCommitHash(ctx, ref); head != c2 {
		t.Errorf("ref = %s, want %s", head, c2)
	}
}

func TestPush_RejectedWhenRemoteAdvanced(t *testing.T) {
	ctx := context.Background()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}

	remote := t.TempDir()
	gitCmd(t, remote, "init", "--quiet", "--bare")

	a := setupTestRepo(t)
	b := setupTestRepo(t)
	gitCmd(t, a, "remote", "add", "origin", remote)
	gitCmd(t, b, "remote", "add", "origin", remote)

	ga, err := New(a)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	gb, err := New(b)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	ca, err := ga.WriteFileCommit(ctx, vcs.FileCommitOptions{Path: "data.js", Content: []byte("a"), Message: "a"})
	if err != nil {
		t.Fatalf("WriteFileCommit() failed: %v", err)
	}
	if err := ga.Push(ctx, vcs.PushOptions{Refspec: ca + ":refs/heads/gh-pages"}); err != nil {
		t.Fatalf("Push() failed: %v", err)
	}

	cb, err := gb.WriteFileCommit(ctx, vcs.FileCommitOptions{Path: "data.js", Content: []byte("b"), Message: "b"})
	if err != nil {
		t.Fatalf("WriteFileCommit() failed: %v", err)
	}
	if err := gb.Push(ctx, vcs.PushOptions{Refspec: cb + ":refs/heads/gh-pages"}); !errors.Is(err, vcs.ErrPushRejected) {
		t.Errorf("Push() error = %v, want ErrPushRejected", err)
	}

	if err := gb.Fetch(ctx, "origin", "+refs/heads/gh-pages:refs/remotes/origin/gh-pages"); err != nil {
		t.Fatalf("Fetch() failed: %v", err)
	}
	got, err := gb.ExtractFileFromRef(ctx, "refs/remotes/origin/gh-pages", "data.js")
	if err != nil {
		t.Fatalf("ExtractFileFromRef() failed: %v", err)
	}
	if string(got) != "a" {
		t.Errorf("fetched content = %q, want a", got)
	}

	if err := gb.Fetch(ctx, "upstream", ""); !errors.Is(err, vcs.ErrNoRemote) {
		t.Errorf("Fetch(unknown remote) error = %v, want ErrNoRemote", err)
	}
}
