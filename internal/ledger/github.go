package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/Veraticus/tripwallet/internal/common"
	"github.com/Veraticus/tripwallet/internal/model"
	"github.com/google/go-github/v66/github"
	"golang.org/x/oauth2"
)

// GitHubConfig locates the ledger file in a repository.
type GitHubConfig struct {
	Token  string
	Owner  string
	Repo   string
	Branch string
	Path   string
	// BaseURL overrides the API root, e.g. for GitHub Enterprise.
	BaseURL string
}

// Validate checks that the repository coordinates are complete.
func (c GitHubConfig) Validate() error {
	var missing []string
	if c.Token == "" {
		missing = append(missing, "token")
	}
	if c.Owner == "" {
		missing = append(missing, "owner")
	}
	if c.Repo == "" {
		missing = append(missing, "repo")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: github %s", common.ErrMissingConfig, strings.Join(missing, ", "))
	}
	return nil
}

// GitHubDocument stores the ledger as a CSV file committed to a repository
// through the contents API. Writes carry the blob SHA that was read, so a
// concurrent commit makes the write fail with ErrConflict instead of being
// silently overwritten.
type GitHubDocument struct {
	client *github.Client
	logger *slog.Logger
	cfg    GitHubConfig
}

// NewGitHubDocument authenticates with the configured token.
func NewGitHubDocument(ctx context.Context, cfg GitHubConfig, logger *slog.Logger) (*GitHubDocument, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Branch == "" {
		cfg.Branch = "main"
	}
	if cfg.Path == "" {
		cfg.Path = DefaultFilePath
	}
	if logger == nil {
		logger = slog.Default()
	}

	tokenSource := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token})
	client := github.NewClient(oauth2.NewClient(ctx, tokenSource))

	if cfg.BaseURL != "" {
		base, err := url.Parse(strings.TrimSuffix(cfg.BaseURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("%w: github base url: %w", common.ErrInvalidConfig, err)
		}
		client.BaseURL = base
	}

	return &GitHubDocument{client: client, logger: logger, cfg: cfg}, nil
}

// NewGitHubStore returns a Store backed by a repository file.
func NewGitHubStore(ctx context.Context, cfg GitHubConfig, logger *slog.Logger) (*WholeFileStore, error) {
	doc, err := NewGitHubDocument(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return NewWholeFileStore(doc, logger), nil
}

// Name implements Document.
func (d *GitHubDocument) Name() string {
	return fmt.Sprintf("github:%s/%s@%s:%s", d.cfg.Owner, d.cfg.Repo, d.cfg.Branch, d.cfg.Path)
}

// Read implements Document.
func (d *GitHubDocument) Read(ctx context.Context) (Snapshot, error) {
	file, _, resp, err := d.client.Repositories.GetContents(ctx, d.cfg.Owner, d.cfg.Repo, d.cfg.Path,
		&github.RepositoryContentGetOptions{Ref: d.cfg.Branch})
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return Snapshot{}, nil
		}
		return Snapshot{}, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	if file == nil {
		return Snapshot{}, fmt.Errorf("%w: %s is a directory", ErrStorageUnavailable, d.cfg.Path)
	}

	content, err := file.GetContent()
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: decode %s: %w", ErrStorageUnavailable, d.cfg.Path, err)
	}

	records, err := Unmarshal([]byte(content))
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}

	return Snapshot{Records: records, Revision: file.GetSHA(), Exists: true}, nil
}

// Write implements Document. It updates the file when prev exists and
// creates it otherwise.
func (d *GitHubDocument) Write(ctx context.Context, records []model.ExpenseRecord, prev Snapshot) error {
	data, err := Marshal(records)
	if err != nil {
		return err
	}

	opts := &github.RepositoryContentFileOptions{
		Content: data,
		Branch:  github.String(d.cfg.Branch),
	}

	var resp *github.Response
	if prev.Exists {
		opts.Message = github.String("Update expense ledger")
		opts.SHA = github.String(prev.Revision)
		_, resp, err = d.client.Repositories.UpdateFile(ctx, d.cfg.Owner, d.cfg.Repo, d.cfg.Path, opts)
	} else {
		opts.Message = github.String("Create expense ledger")
		_, resp, err = d.client.Repositories.CreateFile(ctx, d.cfg.Owner, d.cfg.Repo, d.cfg.Path, opts)
	}
	if err != nil {
		return d.writeError(ctx, resp, err, !prev.Exists)
	}

	d.logger.Debug("committed ledger", "path", d.cfg.Path, "records", len(records), "base_sha", prev.Revision)
	return nil
}

// Delete implements Document. The file is kept with only a header so the
// repository history shows the reset as an ordinary commit.
func (d *GitHubDocument) Delete(ctx context.Context) error {
	snap, err := d.Read(ctx)
	if err != nil {
		return err
	}
	if snap.Exists && len(snap.Records) == 0 {
		return nil
	}

	data, err := Marshal(nil)
	if err != nil {
		return err
	}

	opts := &github.RepositoryContentFileOptions{
		Message: github.String("Reset expense ledger"),
		Content: data,
		Branch:  github.String(d.cfg.Branch),
	}

	var resp *github.Response
	if snap.Exists {
		opts.SHA = github.String(snap.Revision)
		_, resp, err = d.client.Repositories.UpdateFile(ctx, d.cfg.Owner, d.cfg.Repo, d.cfg.Path, opts)
	} else {
		_, resp, err = d.client.Repositories.CreateFile(ctx, d.cfg.Owner, d.cfg.Repo, d.cfg.Path, opts)
	}
	if err != nil {
		return d.writeError(ctx, resp, err, !snap.Exists)
	}
	return nil
}

// writeError maps stale-SHA rejections to ErrConflict. GitHub answers 409
// for a mismatched SHA. A 422 on create only means a conflict when the file
// appeared meanwhile; it is also what a missing branch returns.
func (d *GitHubDocument) writeError(ctx context.Context, resp *github.Response, err error, creating bool) error {
	if resp != nil {
		switch {
		case resp.StatusCode == http.StatusConflict:
			return fmt.Errorf("%w: %w", ErrConflict, err)
		case resp.StatusCode == http.StatusUnprocessableEntity && creating && d.exists(ctx):
			return fmt.Errorf("%w: %w", ErrConflict, err)
		}
	}
	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		return fmt.Errorf("%w: %w: %w", ErrStorageUnavailable, common.ErrRateLimit, err)
	}
	return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
}

// exists reports whether the ledger file is now present. Lookup failures
// count as absent.
func (d *GitHubDocument) exists(ctx context.Context) bool {
	snap, err := d.Read(ctx)
	return err == nil && snap.Exists
}
