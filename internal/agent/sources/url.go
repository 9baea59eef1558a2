package sources

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"net/url"
	"regexp"

	readability "github.com/go-shiori/go-readability"

	"github.com/mohammad-safakhou/sourcerer/config"
	"github.com/mohammad-safakhou/sourcerer/internal/agent/core"
)

var (
	urlKeywords = []string{"url", "website", "webpage", "link", "web", "page", "site"}
	urlPattern  = regexp.MustCompile(`https?://[^\s<>"']+`)
)

// URLAgent fetches web pages referenced in the query, extracts their
// readable text and indexes it.
type URLAgent struct {
	config config.URLConfig
	client *core.HTTPClient
	logger *log.Logger
	ingestor
}

func NewURLAgent(cfg config.URLConfig, in ingestor) *URLAgent {
	return &URLAgent{
		config:   cfg,
		client:   core.NewHTTPClient(cfg.Timeout, 1, 0),
		logger:   log.New(log.Writer(), "[URL] ", log.LstdFlags),
		ingestor: in,
	}
}

func (a *URLAgent) Type() core.SourceType { return core.SourceURL }

// IsRelevant matches when the query carries a literal URL or mentions
// web content.
func (a *URLAgent) IsRelevant(ctx context.Context, query string) (bool, error) {
	if urlPattern.MatchString(query) {
		return true, nil
	}
	return keywordRelevance(query, urlKeywords), nil
}

// Search fetches every URL found in the query, extracts and indexes the
// article text and returns one record per page. Queries without URLs
// fall back to previously indexed page content.
func (a *URLAgent) Search(ctx context.Context, query string, maxResults int) (core.AgentResponse, error) {
	targets := urlPattern.FindAllString(query, -1)
	if len(targets) == 0 {
		return core.AgentResponse{
			SourceType: core.SourceURL,
			Success:    true,
			Data:       a.searchIndexed(query, string(core.SourceURL), maxResults),
		}, nil
	}

	records := make([]map[string]interface{}, 0, len(targets))
	for _, target := range targets {
		record, err := a.fetchPage(ctx, target)
		if err != nil {
			a.logger.Printf("fetch failed for %s: %v", target, err)
			records = append(records, map[string]interface{}{
				"url":   target,
				"error": err.Error(),
			})
			continue
		}
		records = append(records, record)
		if len(records) >= maxResults {
			break
		}
	}
	return core.AgentResponse{
		SourceType: core.SourceURL,
		Success:    true,
		Data:       records,
	}, nil
}

// fetchPage downloads one page, runs readability extraction and ingests
// the text.
func (a *URLAgent) fetchPage(ctx context.Context, target string) (map[string]interface{}, error) {
	parsed, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}

	headers := map[string]string{}
	if a.config.UserAgent != "" {
		headers["User-Agent"] = a.config.UserAgent
	}
	body, err := a.client.GetText(ctx, target, headers, int64(a.config.MaxChars)*4)
	if err != nil {
		return nil, err
	}

	article, err := readability.FromReader(bytes.NewReader(body), parsed)
	if err != nil {
		return nil, fmt.Errorf("extract content: %w", err)
	}
	text := article.TextContent
	if a.config.MaxChars > 0 && len(text) > a.config.MaxChars {
		text = text[:a.config.MaxChars]
	}

	a.ingest(text, target, string(core.SourceURL), map[string]interface{}{
		"url":   target,
		"title": article.Title,
	})

	excerpt := text
	if len(excerpt) > 500 {
		excerpt = excerpt[:500]
	}
	return map[string]interface{}{
		"url":     target,
		"title":   article.Title,
		"excerpt": excerpt,
		"length":  len(text),
	}, nil
}

func (a *URLAgent) HealthCheck(ctx context.Context) (bool, error) {
	// No backing system beyond outbound HTTP.
	return true, nil
}
