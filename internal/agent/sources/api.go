package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/mohammad-safakhou/sourcerer/config"
	"github.com/mohammad-safakhou/sourcerer/internal/agent/core"
)

var apiKeywords = []string{"api", "http", "rest", "endpoint", "service", "json"}

// APIAgent ingests the payloads of configured JSON endpoints and
// answers searches from the indexed chunks.
type APIAgent struct {
	config config.APIConfig
	client *core.HTTPClient
	logger *log.Logger
	ingestor
	refresh refreshState
}

func NewAPIAgent(cfg config.APIConfig, in ingestor, refreshInterval time.Duration) *APIAgent {
	return &APIAgent{
		config:   cfg,
		client:   core.NewHTTPClient(cfg.Timeout, 1, 0),
		logger:   log.New(log.Writer(), "[API] ", log.LstdFlags),
		ingestor: in,
		refresh:  refreshState{interval: refreshInterval},
	}
}

func (a *APIAgent) Type() core.SourceType { return core.SourceAPI }

func (a *APIAgent) IsRelevant(ctx context.Context, query string) (bool, error) {
	return keywordRelevance(query, apiKeywords), nil
}

// RefreshContent fetches every configured endpoint and ingests its
// payload as flattened text. Endpoint failures are isolated.
func (a *APIAgent) RefreshContent(ctx context.Context) error {
	var firstErr error
	for _, endpoint := range a.config.Endpoints {
		body, err := a.client.GetText(ctx, endpoint, map[string]string{"Accept": "application/json"}, 1<<20)
		if err != nil {
			a.logger.Printf("fetch failed for %s: %v", endpoint, err)
			if firstErr == nil {
				firstErr = fmt.Errorf("api refresh %s: %w", endpoint, err)
			}
			continue
		}
		a.ingest(flattenJSON(body), endpoint, string(core.SourceAPI), map[string]interface{}{
			"endpoint":   endpoint,
			"fetched_at": time.Now().Format(time.RFC3339),
		})
	}
	return firstErr
}

// flattenJSON renders a JSON payload as indented text so the lexical
// index can score it. Non-JSON payloads pass through unchanged.
func flattenJSON(body []byte) string {
	var parsed interface{}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return string(body)
	}
	pretty, err := json.MarshalIndent(parsed, "", "  ")
	if err != nil {
		return string(body)
	}
	return string(pretty)
}

func (a *APIAgent) Search(ctx context.Context, query string, maxResults int) (core.AgentResponse, error) {
	if a.refresh.due() {
		if err := a.RefreshContent(ctx); err != nil {
			a.logger.Printf("lazy refresh failed, serving stale index: %v", err)
		}
	}
	records := a.searchIndexed(query, string(core.SourceAPI), maxResults)
	return core.AgentResponse{
		SourceType: core.SourceAPI,
		Success:    true,
		Data:       records,
		Metadata:   map[string]interface{}{"endpoints": len(a.config.Endpoints)},
	}, nil
}

func (a *APIAgent) HealthCheck(ctx context.Context) (bool, error) {
	if len(a.config.Endpoints) == 0 {
		return false, nil
	}
	// Probe the first endpoint only.
	if _, err := a.client.GetText(ctx, a.config.Endpoints[0], nil, 1024); err != nil {
		return false, fmt.Errorf("api endpoint unreachable: %w", err)
	}
	return true, nil
}
