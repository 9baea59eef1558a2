package sources

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"net/url"
	"time"

	"github.com/mohammad-safakhou/sourcerer/config"
	"github.com/mohammad-safakhou/sourcerer/internal/agent/core"
)

var jiraKeywords = []string{"jira", "issue", "ticket", "bug", "story", "task", "epic", "sprint", "backlog", "board"}

// JiraAgent pulls issues from the configured Jira projects into the
// content index and answers searches from the indexed chunks.
type JiraAgent struct {
	config  config.JiraConfig
	client  *core.HTTPClient
	logger  *log.Logger
	ingestor
	refresh refreshState
}

func NewJiraAgent(cfg config.JiraConfig, in ingestor, refreshInterval time.Duration) *JiraAgent {
	return &JiraAgent{
		config:   cfg,
		client:   core.NewHTTPClient(cfg.Timeout, 2, 0),
		logger:   log.New(log.Writer(), "[JIRA] ", log.LstdFlags),
		ingestor: in,
		refresh:  refreshState{interval: refreshInterval},
	}
}

func (a *JiraAgent) Type() core.SourceType { return core.SourceJira }

func (a *JiraAgent) IsRelevant(ctx context.Context, query string) (bool, error) {
	return keywordRelevance(query, jiraKeywords), nil
}

func (a *JiraAgent) configured() bool {
	return a.config.ServerURL != "" && a.config.APIToken != ""
}

func (a *JiraAgent) authHeaders() map[string]string {
	token := base64.StdEncoding.EncodeToString([]byte(a.config.Email + ":" + a.config.APIToken))
	return map[string]string{"Authorization": "Basic " + token, "Accept": "application/json"}
}

type jiraSearchResult struct {
	Issues []struct {
		Key    string `json:"key"`
		Fields struct {
			Summary     string `json:"summary"`
			Description string `json:"description"`
			Status      struct {
				Name string `json:"name"`
			} `json:"status"`
			Assignee *struct {
				DisplayName string `json:"displayName"`
			} `json:"assignee"`
			Updated string `json:"updated"`
		} `json:"fields"`
	} `json:"issues"`
}

// RefreshContent pulls recent issues for each configured project and
// ingests them. Project failures are logged and skipped so one broken
// project cannot starve the rest.
func (a *JiraAgent) RefreshContent(ctx context.Context) error {
	if !a.configured() {
		return nil
	}
	maxIssues := a.config.MaxIssues
	if maxIssues <= 0 {
		maxIssues = 50
	}

	var firstErr error
	for _, project := range a.config.Projects {
		jql := fmt.Sprintf("project = %s ORDER BY updated DESC", project)
		endpoint := fmt.Sprintf("%s/rest/api/2/search?jql=%s&maxResults=%d&fields=summary,description,status,assignee,updated",
			a.config.ServerURL, url.QueryEscape(jql), maxIssues)

		var result jiraSearchResult
		if err := a.client.DoJSON(ctx, "GET", endpoint, a.authHeaders(), nil, &result); err != nil {
			a.logger.Printf("refresh failed for project %s: %v", project, err)
			if firstErr == nil {
				firstErr = fmt.Errorf("jira refresh project %s: %w", project, err)
			}
			continue
		}

		for _, issue := range result.Issues {
			text := issue.Fields.Summary
			if issue.Fields.Description != "" {
				text += "\n\n" + issue.Fields.Description
			}
			meta := map[string]interface{}{
				"issue_key": issue.Key,
				"project":   project,
				"status":    issue.Fields.Status.Name,
				"updated":   issue.Fields.Updated,
			}
			if issue.Fields.Assignee != nil {
				meta["assignee"] = issue.Fields.Assignee.DisplayName
			}
			a.ingest(text, a.config.ServerURL+"/browse/"+issue.Key, string(core.SourceJira), meta)
		}
		a.logger.Printf("refreshed project %s: %d issue(s)", project, len(result.Issues))
	}
	return firstErr
}

func (a *JiraAgent) Search(ctx context.Context, query string, maxResults int) (core.AgentResponse, error) {
	if a.refresh.due() {
		if err := a.RefreshContent(ctx); err != nil {
			a.logger.Printf("lazy refresh failed, serving stale index: %v", err)
		}
	}
	records := a.searchIndexed(query, string(core.SourceJira), maxResults)
	return core.AgentResponse{
		SourceType: core.SourceJira,
		Success:    true,
		Data:       records,
		Metadata:   map[string]interface{}{"projects": a.config.Projects},
	}, nil
}

func (a *JiraAgent) HealthCheck(ctx context.Context) (bool, error) {
	if !a.configured() {
		return false, nil
	}
	err := a.client.DoJSON(ctx, "GET", a.config.ServerURL+"/rest/api/2/serverInfo", a.authHeaders(), nil, nil)
	if err != nil {
		return false, fmt.Errorf("jira server unreachable: %w", err)
	}
	return true, nil
}
