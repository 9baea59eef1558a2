package sources

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/mohammad-safakhou/sourcerer/config"
	"github.com/mohammad-safakhou/sourcerer/internal/agent/content"
	"github.com/mohammad-safakhou/sourcerer/internal/agent/core"
	"github.com/mohammad-safakhou/sourcerer/internal/agent/telemetry"
)

// ingestor is the shared path from raw text into the content index.
// Every connector embeds one.
type ingestor struct {
	chunker *content.Chunker
	index   *content.Index
	tele    *telemetry.Telemetry
}

// ingest chunks text and adds the chunks to the index. Returns the
// number of chunks added.
func (in *ingestor) ingest(text, source, sourceType string, meta map[string]interface{}) int {
	chunks := in.chunker.Chunk(text, source, sourceType, meta)
	in.index.AddChunks(chunks)
	in.tele.RecordIngestion(sourceType, len(chunks))
	return len(chunks)
}

// searchIndexed runs a lexical search over one source type's chunks and
// converts the hits into response records.
func (in *ingestor) searchIndexed(query, sourceType string, maxResults int) []map[string]interface{} {
	chunks := in.index.SearchChunks(query, []string{sourceType}, maxResults)
	records := make([]map[string]interface{}, 0, len(chunks))
	for _, c := range chunks {
		records = append(records, map[string]interface{}{
			"chunk_id": c.ID,
			"content":  c.Content,
			"source":   c.Source,
			"metadata": c.Metadata,
		})
	}
	return records
}

// keywordRelevance reports whether any keyword occurs in the query,
// case-insensitively.
func keywordRelevance(query string, keywords []string) bool {
	q := strings.ToLower(query)
	for _, kw := range keywords {
		if strings.Contains(q, kw) {
			return true
		}
	}
	return false
}

// refreshState tracks when a connector last pulled fresh content, so
// searches can lazily re-ingest without hammering the backing system.
type refreshState struct {
	mu          sync.Mutex
	lastRefresh time.Time
	interval    time.Duration
}

// due reports whether a refresh is needed and, if so, claims it by
// stamping the refresh time. Claiming up front means a failed refresh
// waits a full interval before retrying rather than retrying on every
// search.
func (r *refreshState) due() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.interval <= 0 {
		return false
	}
	if time.Since(r.lastRefresh) < r.interval {
		return false
	}
	r.lastRefresh = time.Now()
	return true
}

// Refresher is implemented by connectors that pull content into the
// index ahead of searches.
type Refresher interface {
	Type() core.SourceType
	RefreshContent(ctx context.Context) error
}

// NewAgents constructs every source connector in registration order and
// returns the registrations for the orchestrator, plus the connectors
// that support scheduled refresh.
func NewAgents(cfg *config.Config, chunker *content.Chunker, index *content.Index, tele *telemetry.Telemetry) ([]core.Registration, []Refresher) {
	in := ingestor{chunker: chunker, index: index, tele: tele}
	interval := cfg.Content.RefreshInterval

	jira := NewJiraAgent(cfg.Sources.Jira, in, interval)
	gh := NewGitHubAgent(cfg.Sources.GitHub, in, interval)
	api := NewAPIAgent(cfg.Sources.API, in, interval)
	fs := NewFilesystemAgent(cfg.Sources.Filesystem, cfg.Content.MaxFileSize, in, interval)
	video := NewVideoAgent(cfg.Sources.Video, in)
	s3agent := NewS3Agent(cfg.Sources.S3, cfg.Content.MaxFileSize, in, interval)
	urlAgent := NewURLAgent(cfg.Sources.URL, in)

	regs := []core.Registration{
		{Type: core.SourceJira, Agent: jira},
		{Type: core.SourceGitHub, Agent: gh},
		{Type: core.SourceAPI, Agent: api},
		{Type: core.SourceFilesystem, Agent: fs},
		{Type: core.SourceVideo, Agent: video},
		{Type: core.SourceS3, Agent: s3agent},
		{Type: core.SourceURL, Agent: urlAgent},
	}
	refreshers := []Refresher{jira, gh, api, fs, s3agent}
	return regs, refreshers
}
