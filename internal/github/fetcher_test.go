package github

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/jarcoal/httpmock"

	"github.com/repofolio/repofolio/internal/config"
)

const listURL = "https://api.github.com/users/octocat/repos"

func TestFetchMapsRepositoryFields(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	payload := []map[string]interface{}{
		{
			"id":          1296269,
			"name":        "Hello-World",
			"description": "My first repository on GitHub!",
			"language":    nil,
			"html_url":    "https://github.com/octocat/Hello-World",
			"homepage":    "",
			"updated_at":  "2025-06-18T09:14:33Z",
		},
		{
			"id":          300192,
			"name":        "Spoon-Knife",
			"description": nil,
			"language":    "HTML",
			"html_url":    "https://github.com/octocat/Spoon-Knife",
			"homepage":    "https://octocat.github.io",
			"updated_at":  "2025-06-11T17:02:10Z",
		},
	}

	httpmock.RegisterResponder("GET", listURL,
		func(req *http.Request) (*http.Response, error) {
			if got := req.URL.Query().Get("per_page"); got != "100" {
				t.Errorf("expected per_page=100, got %q", got)
			}
			if got := req.URL.Query().Get("sort"); got != "updated" {
				t.Errorf("expected sort=updated, got %q", got)
			}
			return httpmock.NewJsonResponse(http.StatusOK, payload)
		},
	)

	fetcher := newTestFetcher(t, config.GithubConfig{User: "octocat"})
	repos, err := fetcher.Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch error: %v", err)
	}
	if len(repos) != 2 {
		t.Fatalf("expected 2 repos, got %d", len(repos))
	}

	first := repos[0]
	if first.ID != 1296269 || first.Name != "Hello-World" {
		t.Fatalf("unexpected first repo: %+v", first)
	}
	if first.Description == nil || *first.Description != "My first repository on GitHub!" {
		t.Fatalf("description mismatch: %v", first.Description)
	}
	if first.Language != nil {
		t.Fatalf("null language should map to nil, got %q", *first.Language)
	}
	if first.Homepage != nil {
		t.Fatalf("blank homepage should map to nil, got %q", *first.Homepage)
	}
	if first.URL != "https://github.com/octocat/Hello-World" {
		t.Fatalf("url mismatch: %s", first.URL)
	}
	if first.UpdatedAt.IsZero() {
		t.Fatalf("expected parsed updated_at")
	}

	second := repos[1]
	if second.Description != nil {
		t.Fatalf("null description should map to nil")
	}
	if second.Homepage == nil || *second.Homepage != "https://octocat.github.io" {
		t.Fatalf("homepage mismatch: %v", second.Homepage)
	}
}

func TestFetchEmptyListIsSuccess(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("GET", listURL,
		func(req *http.Request) (*http.Response, error) {
			return httpmock.NewJsonResponse(http.StatusOK, []map[string]interface{}{})
		},
	)

	fetcher := newTestFetcher(t, config.GithubConfig{User: "octocat"})
	repos, err := fetcher.Fetch(context.Background())
	if err != nil {
		t.Fatalf("empty page should not error: %v", err)
	}
	if len(repos) != 0 {
		t.Fatalf("expected empty result, got %d", len(repos))
	}
}

func TestFetchWrapsUpstreamFailure(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("GET", listURL,
		httpmock.NewStringResponder(http.StatusInternalServerError, `{"message":"boom"}`),
	)

	fetcher := newTestFetcher(t, config.GithubConfig{User: "octocat"})
	if _, err := fetcher.Fetch(context.Background()); err == nil {
		t.Fatalf("expected error on upstream 500")
	} else if !strings.Contains(err.Error(), "list repositories") {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}

func TestFetchSendsTokenHeader(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("GET", listURL,
		func(req *http.Request) (*http.Response, error) {
			if got := req.Header.Get("Authorization"); got != "Bearer test-token" {
				t.Errorf("expected bearer token header, got %q", got)
			}
			return httpmock.NewJsonResponse(http.StatusOK, []map[string]interface{}{})
		},
	)

	fetcher := newTestFetcher(t, config.GithubConfig{User: "octocat", Token: "test-token"})
	if _, err := fetcher.Fetch(context.Background()); err != nil {
		t.Fatalf("fetch error: %v", err)
	}
}

func TestFetchRevalidatesWithETag(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	etag := `"repo-list-v1"`
	payload := []map[string]interface{}{
		{"id": 1, "name": "dotfiles", "html_url": "https://github.com/octocat/dotfiles"},
	}

	httpmock.RegisterResponder("GET", listURL,
		func(req *http.Request) (*http.Response, error) {
			if req.Header.Get("If-None-Match") == etag {
				resp := httpmock.NewStringResponse(http.StatusNotModified, "")
				resp.Header.Set("Etag", etag)
				return resp, nil
			}
			resp, err := httpmock.NewJsonResponse(http.StatusOK, payload)
			if err != nil {
				return nil, err
			}
			resp.Header.Set("Etag", etag)
			return resp, nil
		},
	)

	fetcher := newTestFetcher(t, config.GithubConfig{User: "octocat"})

	for i := 0; i < 2; i++ {
		repos, err := fetcher.Fetch(context.Background())
		if err != nil {
			t.Fatalf("fetch %d error: %v", i+1, err)
		}
		if len(repos) != 1 || repos[0].Name != "dotfiles" {
			t.Fatalf("fetch %d unexpected result: %+v", i+1, repos)
		}
	}

	if got := httpmock.GetTotalCallCount(); got != 2 {
		t.Errorf("want 2 upstream calls (second a revalidation), got %d", got)
	}
}

func TestNewFetcherValidation(t *testing.T) {
	if _, err := NewFetcher(config.GithubConfig{}); err == nil {
		t.Fatalf("missing user should error")
	}

	fetcher := newTestFetcher(t, config.GithubConfig{
		User:    "octocat",
		APIBase: "https://ghe.example.com/api/v3",
	})
	if got := fetcher.client.BaseURL.String(); got != "https://ghe.example.com/api/v3/" {
		t.Fatalf("api base should gain trailing slash, got %s", got)
	}

	fetcher = newTestFetcher(t, config.GithubConfig{User: "octocat", PageSize: 0})
	if fetcher.pageSize != maxPageSize {
		t.Fatalf("zero page size should fall back to %d, got %d", maxPageSize, fetcher.pageSize)
	}
}

func newTestFetcher(t *testing.T, cfg config.GithubConfig) *Fetcher {
	t.Helper()
	fetcher, err := NewFetcher(cfg)
	if err != nil {
		t.Fatalf("NewFetcher error: %v", err)
	}
	return fetcher
}
