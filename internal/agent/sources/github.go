package sources

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/go-github/v80/github"
	"golang.org/x/oauth2"

	"github.com/mohammad-safakhou/sourcerer/config"
	"github.com/mohammad-safakhou/sourcerer/internal/agent/core"
)

var githubKeywords = []string{"github", "repository", "repo", "pull request", "commit", "code", "branch", "merge"}

// GitHubAgent searches GitHub repositories live and indexes the READMEs
// of the configured repositories for lexical search.
type GitHubAgent struct {
	config config.GitHubConfig
	client *github.Client
	logger *log.Logger
	ingestor
	refresh refreshState
}

func NewGitHubAgent(cfg config.GitHubConfig, in ingestor, refreshInterval time.Duration) *GitHubAgent {
	var client *github.Client
	if cfg.Token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token})
		client = github.NewClient(oauth2.NewClient(context.Background(), ts))
	} else {
		client = github.NewClient(nil)
	}
	return &GitHubAgent{
		config:   cfg,
		client:   client,
		logger:   log.New(log.Writer(), "[GITHUB] ", log.LstdFlags),
		ingestor: in,
		refresh:  refreshState{interval: refreshInterval},
	}
}

func (a *GitHubAgent) Type() core.SourceType { return core.SourceGitHub }

func (a *GitHubAgent) IsRelevant(ctx context.Context, query string) (bool, error) {
	return keywordRelevance(query, githubKeywords), nil
}

// RefreshContent fetches the README of each configured repository and
// ingests its text. Repo entries are "owner/name".
func (a *GitHubAgent) RefreshContent(ctx context.Context) error {
	var firstErr error
	for _, repo := range a.config.Repos {
		owner, name, ok := strings.Cut(repo, "/")
		if !ok {
			a.logger.Printf("skipping malformed repo entry %q, want owner/name", repo)
			continue
		}
		cctx, cancel := a.requestContext(ctx)
		readme, _, err := a.client.Repositories.GetReadme(cctx, owner, name, nil)
		cancel()
		if err != nil {
			a.logger.Printf("readme fetch failed for %s: %v", repo, err)
			if firstErr == nil {
				firstErr = fmt.Errorf("github refresh %s: %w", repo, err)
			}
			continue
		}
		text, err := readme.GetContent()
		if err != nil {
			a.logger.Printf("readme decode failed for %s: %v", repo, err)
			continue
		}
		a.ingest(text, "https://github.com/"+repo, string(core.SourceGitHub), map[string]interface{}{
			"repo": repo,
			"path": readme.GetPath(),
		})
	}
	return firstErr
}

// Search combines live repository search with indexed README chunks.
func (a *GitHubAgent) Search(ctx context.Context, query string, maxResults int) (core.AgentResponse, error) {
	if a.refresh.due() {
		if err := a.RefreshContent(ctx); err != nil {
			a.logger.Printf("lazy refresh failed, serving stale index: %v", err)
		}
	}

	var records []map[string]interface{}

	cctx, cancel := a.requestContext(ctx)
	result, _, err := a.client.Search.Repositories(cctx, a.scopedQuery(query), &github.SearchOptions{
		ListOptions: github.ListOptions{PerPage: maxResults},
	})
	cancel()
	if err != nil {
		// Live search is best effort; indexed content still answers.
		a.logger.Printf("repository search failed: %v", err)
	} else {
		for _, repo := range result.Repositories {
			records = append(records, map[string]interface{}{
				"name":        repo.GetFullName(),
				"description": repo.GetDescription(),
				"url":         repo.GetHTMLURL(),
				"stars":       repo.GetStargazersCount(),
				"language":    repo.GetLanguage(),
			})
			if len(records) >= maxResults {
				break
			}
		}
	}

	if remaining := maxResults - len(records); remaining > 0 {
		records = append(records, a.searchIndexed(query, string(core.SourceGitHub), remaining)...)
	}
	if records == nil {
		records = []map[string]interface{}{}
	}
	return core.AgentResponse{
		SourceType: core.SourceGitHub,
		Success:    true,
		Data:       records,
		Metadata:   map[string]interface{}{"repos": a.config.Repos},
	}, nil
}

// scopedQuery narrows the search to the configured organizations when
// any are set.
func (a *GitHubAgent) scopedQuery(query string) string {
	if len(a.config.Organizations) == 0 {
		return query
	}
	var sb strings.Builder
	sb.WriteString(query)
	for _, org := range a.config.Organizations {
		sb.WriteString(" org:")
		sb.WriteString(org)
	}
	return sb.String()
}

func (a *GitHubAgent) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := a.config.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return context.WithTimeout(ctx, timeout)
}

func (a *GitHubAgent) HealthCheck(ctx context.Context) (bool, error) {
	cctx, cancel := a.requestContext(ctx)
	defer cancel()
	if a.config.Token != "" {
		if _, _, err := a.client.Users.Get(cctx, ""); err != nil {
			return false, fmt.Errorf("github auth check failed: %w", err)
		}
		return true, nil
	}
	if _, _, err := a.client.Zen(cctx); err != nil {
		return false, fmt.Errorf("github unreachable: %w", err)
	}
	return true, nil
}
