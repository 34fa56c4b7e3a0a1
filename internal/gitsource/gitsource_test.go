package gitsource

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

func TestLocalPath(t *testing.T) {
	testCases := []struct {
		url     string
		want    string
		wantErr bool
	}{
		{url: "https://github.com/owner/bank.git", want: filepath.Join("repos", "github.com", "owner", "bank")},
		{url: "http://example.com/a/b", want: filepath.Join("repos", "example.com", "a", "b")},
		{url: "git@github.com:owner/bank.git", want: filepath.Join("repos", "github.com", "owner", "bank")},
		{url: "not a url", wantErr: true},
		{url: "https://example.com/../../etc.git", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.url, func(t *testing.T) {
			got, err := LocalPath("repos", tc.url)
			if tc.wantErr {
				if err == nil {
					t.Errorf("Expected an error, got path %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}
			if got != tc.want {
				t.Errorf("Expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestIsGitURL(t *testing.T) {
	for source, want := range map[string]bool{
		"https://github.com/owner/bank": true,
		"git@github.com:owner/bank.git": true,
		"/home/me/bank.git":             true,
		"/home/me/notes":                false,
		"notes":                         false,
	} {
		if got := IsGitURL(source); got != want {
			t.Errorf("IsGitURL(%q): expected %v, got %v", source, want, got)
		}
	}
}

func TestSyncClonesAndPullsLocalRepository(t *testing.T) {
	origin := filepath.Join(t.TempDir(), "origin")
	repo, err := git.PlainInit(origin, false)
	if err != nil {
		t.Fatalf("Failed to init origin: %v", err)
	}
	if err := os.WriteFile(filepath.Join(origin, "1_hello.md"), []byte("## Question\nhello?\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := wt.Add("1_hello.md"); err != nil {
		t.Fatal(err)
	}
	_, err = wt.Commit("add question", &git.CommitOptions{
		Author: &object.Signature{Name: "quiz", Email: "quiz@example.com", When: time.Now()},
	})
	if err != nil {
		t.Fatal(err)
	}

	clone := filepath.Join(t.TempDir(), "clone")
	if err := Sync(context.Background(), origin, clone, nil); err != nil {
		t.Fatalf("Expected clone to succeed, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(clone, "1_hello.md")); err != nil {
		t.Errorf("Expected cloned question document, got %v", err)
	}

	if err := Sync(context.Background(), origin, clone, nil); err != nil {
		t.Errorf("Expected pull of up-to-date clone to succeed, got %v", err)
	}
}
