package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/plumbing/transport/ssh"

	"aiemployee/rulekit/pkg/rules"
)

// Git authentication types.
const (
	GitAuthNone  = "none"
	GitAuthToken = "token"
	GitAuthBasic = "basic"
	GitAuthSSH   = "ssh"
)

// GitConfig describes a Git repository holding rule files.
type GitConfig struct {
	// Repository is the clone URL. Local paths and file:// URLs work too.
	Repository string

	// Branch is checked out and followed.
	Branch string

	// Path is the rule file or directory inside the repository. Empty
	// means the repository root.
	Path string

	// LocalPath is where the repository is cloned.
	LocalPath string

	// Depth limits the clone history; 0 clones everything.
	Depth int

	// Timeout bounds each clone or pull.
	Timeout time.Duration

	Auth GitAuth
}

// GitAuth holds the credentials for a GitConfig.
type GitAuth struct {
	Type             string
	Username         string
	Password         string
	Token            string
	SSHKeyPath       string
	SSHKeyPassphrase string
}

// CommitInfo describes the commit rules were last loaded from.
type CommitInfo struct {
	SHA     string
	Author  string
	Message string
	When    time.Time
}

// GitSource loads rules from a Git repository. The first Load clones the
// repository (or opens an existing clone), later loads pull first.
type GitSource struct {
	config *GitConfig
	auth   transport.AuthMethod
	strict bool
	logger *slog.Logger

	mu   sync.Mutex
	repo *gogit.Repository
	head string
}

// NewGitSource validates cfg and resolves its credentials.
func NewGitSource(cfg *GitConfig, strict bool, logger *slog.Logger) (*GitSource, error) {
	if cfg == nil {
		return nil, errors.New("git config cannot be nil")
	}
	if cfg.Repository == "" {
		return nil, errors.New("repository URL cannot be empty")
	}
	if cfg.Branch == "" {
		return nil, errors.New("branch cannot be empty")
	}
	if cfg.LocalPath == "" {
		return nil, errors.New("local path cannot be empty")
	}
	if filepath.IsAbs(cfg.Path) {
		return nil, fmt.Errorf("rule path %q must be relative to the repository", cfg.Path)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	auth, err := GitAuthMethod(cfg.Auth)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &GitSource{
		config: cfg,
		auth:   auth,
		strict: strict,
		logger: logger.With("component", "source.git", "repository", cfg.Repository),
	}, nil
}

// GitAuthMethod returns the transport credentials for a. A nil method means
// anonymous access.
func GitAuthMethod(a GitAuth) (transport.AuthMethod, error) {
	switch a.Type {
	case GitAuthNone, "":
		return nil, nil
	case GitAuthToken:
		if a.Token == "" {
			return nil, errors.New("token auth requires a token")
		}
		// Hosting providers ignore the user name for token auth.
		return &http.BasicAuth{Username: "git", Password: a.Token}, nil
	case GitAuthBasic:
		if a.Username == "" {
			return nil, errors.New("basic auth requires a username")
		}
		return &http.BasicAuth{Username: a.Username, Password: a.Password}, nil
	case GitAuthSSH:
		if a.SSHKeyPath == "" {
			return nil, errors.New("ssh auth requires ssh_key_path")
		}
		info, err := os.Stat(a.SSHKeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to access ssh key: %w", err)
		}
		if mode := info.Mode().Perm(); mode&0o077 != 0 {
			return nil, fmt.Errorf("ssh key permissions too open (%o), want 0600", mode)
		}
		keys, err := ssh.NewPublicKeysFromFile("git", a.SSHKeyPath, a.SSHKeyPassphrase)
		if err != nil {
			return nil, fmt.Errorf("failed to load ssh key: %w", err)
		}
		return keys, nil
	default:
		return nil, fmt.Errorf("unknown git auth type %q", a.Type)
	}
}

// Load brings the clone up to date and reads the rules under the configured
// path.
func (s *GitSource) Load(ctx context.Context) ([]*rules.Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.repo == nil {
		if err := s.open(ctx); err != nil {
			return nil, err
		}
	} else if err := s.pull(ctx); err != nil {
		return nil, err
	}

	ref, err := s.repo.Head()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve HEAD: %w", err)
	}
	if head := ref.Hash().String(); head != s.head {
		s.logger.Info("rule repository at new commit", "from", shortSHA(s.head), "to", shortSHA(head))
		s.head = head
	}

	return NewFileSource(filepath.Join(s.config.LocalPath, s.config.Path), s.strict, s.logger).Load(ctx)
}

// open reuses an existing clone at LocalPath, or clones the repository.
func (s *GitSource) open(ctx context.Context) error {
	if _, err := os.Stat(filepath.Join(s.config.LocalPath, ".git")); err == nil {
		repo, err := gogit.PlainOpen(s.config.LocalPath)
		if err != nil {
			return fmt.Errorf("failed to open existing clone: %w", err)
		}
		s.repo = repo
		return s.pull(ctx)
	}

	if err := os.MkdirAll(s.config.LocalPath, 0o755); err != nil {
		return fmt.Errorf("failed to create clone directory: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	start := time.Now()
	repo, err := gogit.PlainCloneContext(ctx, s.config.LocalPath, false, &gogit.CloneOptions{
		URL:           s.config.Repository,
		Auth:          s.auth,
		ReferenceName: plumbing.NewBranchReferenceName(s.config.Branch),
		SingleBranch:  true,
		Depth:         s.config.Depth,
	})
	if err != nil {
		return fmt.Errorf("failed to clone repository: %w", err)
	}
	s.repo = repo
	s.logger.Debug("repository cloned", "branch", s.config.Branch, "duration", time.Since(start))
	return nil
}

func (s *GitSource) pull(ctx context.Context) error {
	wt, err := s.repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to get worktree: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	err = wt.PullContext(ctx, &gogit.PullOptions{
		RemoteName:    gogit.DefaultRemoteName,
		ReferenceName: plumbing.NewBranchReferenceName(s.config.Branch),
		SingleBranch:  true,
		Auth:          s.auth,
	})
	if err != nil && !errors.Is(err, gogit.NoErrAlreadyUpToDate) {
		return fmt.Errorf("failed to pull: %w", err)
	}
	return nil
}

// Commit describes the commit of the last successful Load. It returns
// false before the first Load.
func (s *GitSource) Commit() (CommitInfo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.repo == nil || s.head == "" {
		return CommitInfo{}, false
	}
	c, err := s.repo.CommitObject(plumbing.NewHash(s.head))
	if err != nil {
		return CommitInfo{SHA: s.head}, true
	}
	return CommitInfo{
		SHA:     s.head,
		Author:  c.Author.Name,
		Message: strings.TrimSpace(c.Message),
		When:    c.Author.When,
	}, true
}

func shortSHA(sha string) string {
	if len(sha) > 8 {
		return sha[:8]
	}
	return sha
}
