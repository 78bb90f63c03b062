// Package github fetches a user's public repository list from the GitHub
// REST API and maps it to the display model.
package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	gh "github.com/google/go-github/v32/github"
	"github.com/m4ns0ur/httpcache"
	"golang.org/x/oauth2"

	"github.com/repofolio/repofolio/internal/config"
	"github.com/repofolio/repofolio/internal/repo"
)

// maxPageSize matches the largest page the list endpoint allows; the
// repository list is read as a single page.
const maxPageSize = 100

// Fetcher lists one user's public repositories. The underlying client keeps
// an in-memory HTTP cache so unchanged list responses revalidate via ETag
// instead of re-downloading the full payload.
type Fetcher struct {
	client   *gh.Client
	user     string
	pageSize int
}

// NewFetcher builds a Fetcher from the Github config section. The token is
// optional; without it requests run anonymously against the public API.
func NewFetcher(cfg config.GithubConfig) (*Fetcher, error) {
	if strings.TrimSpace(cfg.User) == "" {
		return nil, errors.New("github user is required")
	}

	client := gh.NewClient(newHTTPClient(cfg.Token))
	if cfg.APIBase != "" {
		base, err := url.Parse(ensureTrailingSlash(cfg.APIBase))
		if err != nil {
			return nil, fmt.Errorf("invalid api base %q: %w", cfg.APIBase, err)
		}
		client.BaseURL = base
	}

	pageSize := cfg.PageSize
	if pageSize <= 0 || pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	return &Fetcher{
		client:   client,
		user:     cfg.User,
		pageSize: pageSize,
	}, nil
}

// newHTTPClient wraps the ETag-aware memory cache transport with an optional
// oauth2 token source.
func newHTTPClient(token string) *http.Client {
	cached := httpcache.NewMemoryCacheTransport().Client()
	if token == "" {
		return cached
	}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, cached)
	source := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	return oauth2.NewClient(ctx, source)
}

// Fetch returns the user's public repositories, most recently updated first.
// Transport errors, non-success statuses and undecodable bodies all surface
// as a single wrapped error; the caller decides how to degrade.
func (f *Fetcher) Fetch(ctx context.Context) ([]repo.Repo, error) {
	opts := &gh.RepositoryListOptions{
		Sort:        "updated",
		ListOptions: gh.ListOptions{PerPage: f.pageSize},
	}

	listed, _, err := f.client.Repositories.List(ctx, f.user, opts)
	if err != nil {
		return nil, fmt.Errorf("list repositories: %w", err)
	}

	result := make([]repo.Repo, 0, len(listed))
	for _, r := range listed {
		result = append(result, mapRepository(r))
	}
	return result, nil
}

func mapRepository(r *gh.Repository) repo.Repo {
	return repo.Repo{
		ID:          r.GetID(),
		Name:        r.GetName(),
		Description: optionalString(r.Description),
		Language:    optionalString(r.Language),
		URL:         r.GetHTMLURL(),
		Homepage:    optionalString(r.Homepage),
		UpdatedAt:   r.GetUpdatedAt().Time,
	}
}

// optionalString normalizes missing or blank upstream fields to nil so the
// JSON output stays null instead of "".
func optionalString(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	return s
}

func ensureTrailingSlash(raw string) string {
	if strings.HasSuffix(raw, "/") {
		return raw
	}
	return raw + "/"
}
