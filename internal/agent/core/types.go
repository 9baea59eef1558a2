package core

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// SourceType identifies one registered content source.
type SourceType string

const (
	SourceJira       SourceType = "jira"
	SourceGitHub     SourceType = "github"
	SourceAPI        SourceType = "api"
	SourceFilesystem SourceType = "filesystem"
	SourceVideo      SourceType = "video"
	SourceS3         SourceType = "s3"
	SourceURL        SourceType = "url"
)

// AllSourceTypes returns the closed set of source types in registration
// order. Router output and broadcast fan-out follow this order.
func AllSourceTypes() []SourceType {
	return []SourceType{
		SourceJira,
		SourceGitHub,
		SourceAPI,
		SourceFilesystem,
		SourceVideo,
		SourceS3,
		SourceURL,
	}
}

// ParseSourceType maps a case-insensitive name to its SourceType.
func ParseSourceType(s string) (SourceType, error) {
	st := SourceType(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range AllSourceTypes() {
		if st == known {
			return known, nil
		}
	}
	return "", fmt.Errorf("unknown source type %q", s)
}

// QueryRequest is a user query entering the orchestrator.
type QueryRequest struct {
	Prompt          string       `json:"prompt"`
	MaxResults      int          `json:"max_results"`
	SpecificSources []SourceType `json:"specific_sources,omitempty"`
}

// AgentResponse is the uniform result envelope every source search
// produces, success or failure.
type AgentResponse struct {
	SourceType SourceType               `json:"source_type"`
	Success    bool                     `json:"success"`
	Data       []map[string]interface{} `json:"data"`
	Error      string                   `json:"error,omitempty"`
	Metadata   map[string]interface{}   `json:"metadata,omitempty"`
}

// WorkflowResponse is the aggregated outcome of one query.
type WorkflowResponse struct {
	Query         string          `json:"query"`
	SourcesUsed   []SourceType    `json:"sources_used"`
	Results       []AgentResponse `json:"results"`
	Summary       string          `json:"summary"`
	TotalResults  int             `json:"total_results"`
	ExecutionTime time.Duration   `json:"execution_time"`
}

// SourceHealth reports one source's health check outcome.
type SourceHealth struct {
	Healthy bool   `json:"healthy"`
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
}

// Agent is the contract every source connector implements.
type Agent interface {
	// IsRelevant reports whether this source is worth querying for the
	// given prompt, without performing the search.
	IsRelevant(ctx context.Context, query string) (bool, error)

	// Search runs the source search and returns a populated response.
	// Implementations should return an error rather than a half-filled
	// response; the dispatcher converts errors to failed responses.
	Search(ctx context.Context, query string, maxResults int) (AgentResponse, error)

	// HealthCheck verifies the connector can reach its backing system.
	HealthCheck(ctx context.Context) (bool, error)
}

// Registration binds a source type to its agent. Registration order is
// preserved by the orchestrator.
type Registration struct {
	Type  SourceType
	Agent Agent
}

// Message is one turn of a completion conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// LLMProvider abstracts the completion backend used for routing and
// summarization. A nil provider is valid; callers degrade to their
// deterministic fallbacks.
type LLMProvider interface {
	Complete(ctx context.Context, messages []Message, maxTokens int, temperature float64) (string, error)
}
