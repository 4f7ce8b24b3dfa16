package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport/http"

	"aiemployee/rulekit/pkg/rules"
)

// initRuleRepo creates a repository with one committed rule file under
// rules/.
func initRuleRepo(t *testing.T) (string, *gogit.Repository) {
	t.Helper()
	dir := t.TempDir()

	repo, err := gogit.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("failed to init repo: %v", err)
	}
	commitFile(t, repo, dir, "rules/access.yaml", `rules:
  - id: block-guests
    name: Block guests
    priority: high
    conditions:
      - field: user.role
        operator: equals
        value: guest
    actions:
      - type: block
`, "add access rules")
	return dir, repo
}

func commitFile(t *testing.T, repo *gogit.Repository, dir, name, content, msg string) {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		t.Fatalf("failed to get worktree: %v", err)
	}
	if _, err := wt.Add(name); err != nil {
		t.Fatalf("failed to add %s: %v", name, err)
	}
	_, err = wt.Commit(msg, &gogit.CommitOptions{
		Author: &object.Signature{Name: "Rule Author", Email: "rules@example.com", When: time.Now()},
	})
	if err != nil {
		t.Fatalf("failed to commit: %v", err)
	}
}

func TestNewGitSource(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *GitConfig
		wantErr bool
	}{
		{name: "nil config", cfg: nil, wantErr: true},
		{name: "no repository", cfg: &GitConfig{Branch: "main", LocalPath: "/tmp/x"}, wantErr: true},
		{name: "no branch", cfg: &GitConfig{Repository: "https://example.com/r.git", LocalPath: "/tmp/x"}, wantErr: true},
		{name: "no local path", cfg: &GitConfig{Repository: "https://example.com/r.git", Branch: "main"}, wantErr: true},
		{name: "absolute rule path", cfg: &GitConfig{Repository: "r", Branch: "main", LocalPath: "/tmp/x", Path: "/etc"}, wantErr: true},
		{name: "bad auth", cfg: &GitConfig{Repository: "r", Branch: "main", LocalPath: "/tmp/x", Auth: GitAuth{Type: "kerberos"}}, wantErr: true},
		{name: "valid", cfg: &GitConfig{Repository: "https://example.com/r.git", Branch: "main", LocalPath: "/tmp/x", Path: "rules"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, err := NewGitSource(tt.cfg, false, nil)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewGitSource() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && src.config.Timeout <= 0 {
				t.Error("timeout should default to a positive value")
			}
		})
	}
}

func TestGitAuthMethod(t *testing.T) {
	dir := t.TempDir()
	openKey := filepath.Join(dir, "id_open")
	if err := os.WriteFile(openKey, []byte("not a key"), 0o644); err != nil {
		t.Fatal(err)
	}
	garbageKey := filepath.Join(dir, "id_garbage")
	if err := os.WriteFile(garbageKey, []byte("not a key"), 0o600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		auth     GitAuth
		wantNil  bool
		wantUser string
		wantErr  bool
	}{
		{name: "empty", auth: GitAuth{}, wantNil: true},
		{name: "none", auth: GitAuth{Type: GitAuthNone}, wantNil: true},
		{name: "token", auth: GitAuth{Type: GitAuthToken, Token: "ghp_x"}, wantUser: "git"},
		{name: "token missing", auth: GitAuth{Type: GitAuthToken}, wantErr: true},
		{name: "basic", auth: GitAuth{Type: GitAuthBasic, Username: "ci", Password: "pw"}, wantUser: "ci"},
		{name: "basic missing user", auth: GitAuth{Type: GitAuthBasic, Password: "pw"}, wantErr: true},
		{name: "ssh missing path", auth: GitAuth{Type: GitAuthSSH}, wantErr: true},
		{name: "ssh missing file", auth: GitAuth{Type: GitAuthSSH, SSHKeyPath: filepath.Join(dir, "nope")}, wantErr: true},
		{name: "ssh open permissions", auth: GitAuth{Type: GitAuthSSH, SSHKeyPath: openKey}, wantErr: true},
		{name: "ssh unparsable key", auth: GitAuth{Type: GitAuthSSH, SSHKeyPath: garbageKey}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			method, err := GitAuthMethod(tt.auth)
			if (err != nil) != tt.wantErr {
				t.Fatalf("GitAuthMethod() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if tt.wantNil {
				if method != nil {
					t.Errorf("method = %v, want nil", method)
				}
				return
			}
			basic, ok := method.(*http.BasicAuth)
			if !ok {
				t.Fatalf("method = %T, want *http.BasicAuth", method)
			}
			if basic.Username != tt.wantUser {
				t.Errorf("username = %q, want %q", basic.Username, tt.wantUser)
			}
		})
	}
}

func TestGitSourceLoadAndPull(t *testing.T) {
	ctx := context.Background()
	origin, repo := initRuleRepo(t)

	src, err := NewGitSource(&GitConfig{
		Repository: origin,
		Branch:     "master",
		Path:       "rules",
		LocalPath:  filepath.Join(t.TempDir(), "clone"),
		Timeout:    10 * time.Second,
	}, false, nil)
	if err != nil {
		t.Fatalf("NewGitSource() error = %v", err)
	}

	if _, ok := src.Commit(); ok {
		t.Error("Commit() before Load should report false")
	}

	list, err := src.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(list) != 1 || list[0].ID != "block-guests" {
		t.Fatalf("Load() = %v, want [block-guests]", ids(list))
	}
	first, ok := src.Commit()
	if !ok || first.Message != "add access rules" || first.Author != "Rule Author" {
		t.Errorf("Commit() = %+v, %v", first, ok)
	}

	commitFile(t, repo, origin, "rules/finance.yaml", `rules:
  - name: Large expense
    priority: medium
    conditions:
      - field: amount
        operator: greater_than
        value: 1000
    actions:
      - type: review
`, "add finance rules")

	list, err = src.Load(ctx)
	if err != nil {
		t.Fatalf("second Load() error = %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("after pull Load() = %v, want 2 rules", ids(list))
	}
	second, _ := src.Commit()
	if second.SHA == first.SHA {
		t.Error("commit should advance after pull")
	}

	// A fresh source reuses the existing clone.
	again, err := NewGitSource(&GitConfig{
		Repository: origin,
		Branch:     "master",
		Path:       "rules",
		LocalPath:  src.config.LocalPath,
	}, false, nil)
	if err != nil {
		t.Fatal(err)
	}
	list, err = again.Load(ctx)
	if err != nil || len(list) != 2 {
		t.Errorf("reopened Load() = %v, %v", ids(list), err)
	}
}

func TestGitSourceCloneFailure(t *testing.T) {
	src, err := NewGitSource(&GitConfig{
		Repository: filepath.Join(t.TempDir(), "missing"),
		Branch:     "master",
		LocalPath:  filepath.Join(t.TempDir(), "clone"),
		Timeout:    5 * time.Second,
	}, false, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := src.Load(context.Background()); err == nil {
		t.Error("Load() from a missing repository should fail")
	}
}

func ids(list []*rules.Rule) []string {
	out := make([]string, len(list))
	for i, r := range list {
		out[i] = r.ID
	}
	return out
}
