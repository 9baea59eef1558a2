package core

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mohammad-safakhou/sourcerer/internal/agent/telemetry"
)

// Orchestrator routes queries to the registered sources, fans searches
// out concurrently and aggregates the outcomes into a single response.
type Orchestrator struct {
	logger    *log.Logger
	telemetry *telemetry.Telemetry
	llm       LLMProvider

	order  []SourceType
	agents map[SourceType]Agent
}

// NewOrchestrator builds an orchestrator over the given registrations.
// Registration order is preserved; it drives broadcast fan-out and the
// ordering of router output. llm may be nil.
func NewOrchestrator(tele *telemetry.Telemetry, llm LLMProvider, regs []Registration) (*Orchestrator, error) {
	if len(regs) == 0 {
		return nil, fmt.Errorf("orchestrator: at least one source registration is required")
	}
	o := &Orchestrator{
		logger:    log.New(log.Writer(), "[ORCH] ", log.LstdFlags),
		telemetry: tele,
		llm:       llm,
		agents:    make(map[SourceType]Agent, len(regs)),
	}
	for _, r := range regs {
		if r.Agent == nil {
			return nil, fmt.Errorf("orchestrator: nil agent for source %q", r.Type)
		}
		if _, dup := o.agents[r.Type]; dup {
			return nil, fmt.Errorf("orchestrator: duplicate registration for source %q", r.Type)
		}
		o.agents[r.Type] = r.Agent
		o.order = append(o.order, r.Type)
	}
	return o, nil
}

// Sources returns the registered source types in registration order.
func (o *Orchestrator) Sources() []SourceType {
	return append([]SourceType(nil), o.order...)
}

// ProcessQuery runs the full workflow: route, dispatch, aggregate,
// summarize. It never returns an error; any panic escaping the workflow
// is converted into a labeled empty response so one bad query cannot
// take down a serving loop.
func (o *Orchestrator) ProcessQuery(ctx context.Context, req QueryRequest) (resp WorkflowResponse) {
	started := time.Now()
	runID := uuid.NewString()

	defer func() {
		if r := recover(); r != nil {
			o.logger.Printf("run %s: panic during query processing: %v", runID, r)
			resp = WorkflowResponse{
				Query:         req.Prompt,
				SourcesUsed:   []SourceType{},
				Results:       []AgentResponse{},
				Summary:       fmt.Sprintf("Error processing query: %v", r),
				ExecutionTime: time.Since(started),
			}
		}
		o.telemetry.RecordQuery(telemetry.QueryEvent{
			Query:        req.Prompt,
			SourcesUsed:  sourceNames(resp.SourcesUsed),
			TotalResults: resp.TotalResults,
			Failed:       len(resp.SourcesUsed) > 0 && resp.TotalResults == 0,
			Duration:     resp.ExecutionTime,
		})
	}()

	if req.MaxResults <= 0 {
		req.MaxResults = 10
	}
	o.logger.Printf("run %s: processing query: %q", runID, req.Prompt)

	selected := o.determineRelevantAgents(ctx, req)
	if len(selected) == 0 {
		o.logger.Printf("run %s: no relevant sources", runID)
		return WorkflowResponse{
			Query:         req.Prompt,
			SourcesUsed:   []SourceType{},
			Results:       []AgentResponse{},
			Summary:       "No relevant sources found for your query.",
			ExecutionTime: time.Since(started),
		}
	}
	o.logger.Printf("run %s: dispatching to %d source(s): %v", runID, len(selected), selected)

	results := o.dispatch(ctx, req, selected)

	total := 0
	for _, r := range results {
		if r.Success {
			total += len(r.Data)
		}
	}

	return WorkflowResponse{
		Query:         req.Prompt,
		SourcesUsed:   selected,
		Results:       results,
		Summary:       o.generateSummary(ctx, req.Prompt, results, total),
		TotalResults:  total,
		ExecutionTime: time.Since(started),
	}
}

// determineRelevantAgents picks the sources to query. Tiers, first hit
// wins: explicit selection, static relevance predicates, AI routing,
// broadcast to everything.
func (o *Orchestrator) determineRelevantAgents(ctx context.Context, req QueryRequest) []SourceType {
	if len(req.SpecificSources) > 0 {
		var selected []SourceType
		seen := make(map[SourceType]bool)
		for _, st := range req.SpecificSources {
			if _, ok := o.agents[st]; ok && !seen[st] {
				seen[st] = true
				selected = append(selected, st)
			}
		}
		// An explicit selection that matches nothing stays empty; the
		// caller reports no relevant sources rather than broadcasting.
		return selected
	}

	var selected []SourceType
	for _, st := range o.order {
		relevant, err := o.agents[st].IsRelevant(ctx, req.Prompt)
		if err != nil {
			o.logger.Printf("relevance check failed for %s, skipping: %v", st, err)
			continue
		}
		if relevant {
			selected = append(selected, st)
		}
	}
	if len(selected) > 0 {
		return selected
	}

	if o.llm != nil {
		if selected = o.llmDetermineRelevance(ctx, req.Prompt); len(selected) > 0 {
			return selected
		}
	}

	o.logger.Printf("WARNING: no source matched query %q, broadcasting to all sources", req.Prompt)
	return o.Sources()
}

// llmDetermineRelevance asks the completion backend to pick sources
// from the catalog. Unknown names in the reply are dropped; any failure
// returns nil so the caller can fall through to broadcast.
func (o *Orchestrator) llmDetermineRelevance(ctx context.Context, query string) []SourceType {
	var catalog strings.Builder
	for _, st := range o.order {
		fmt.Fprintf(&catalog, "- %s: %s\n", st, capabilityFor(st).Description)
	}

	prompt := fmt.Sprintf(`Given the following user query, determine which data sources are most relevant.

Available sources:
%s
User query: %s

Respond with a comma-separated list of source names only (e.g. "jira, github"). If no sources are relevant, respond with "none".`, catalog.String(), query)

	reply, err := o.llm.Complete(ctx, []Message{
		{Role: "system", Content: "You are a query routing assistant. Pick the data sources relevant to a query."},
		{Role: "user", Content: prompt},
	}, 100, 0.1)
	o.telemetry.RecordLLMRequest(err == nil)
	if err != nil {
		o.logger.Printf("AI routing failed: %v", err)
		return nil
	}

	var selected []SourceType
	seen := make(map[SourceType]bool)
	for _, token := range strings.Split(reply, ",") {
		st, err := ParseSourceType(token)
		if err != nil {
			continue
		}
		if _, ok := o.agents[st]; ok && !seen[st] {
			seen[st] = true
			selected = append(selected, st)
		}
	}
	return selected
}

// dispatch fans the search out, one goroutine per source, and joins all
// of them. Each slot in the result slice belongs to one source, so the
// output order matches the selection order regardless of completion
// order. A panicking or failing agent yields a failed response for its
// slot only.
func (o *Orchestrator) dispatch(ctx context.Context, req QueryRequest, selected []SourceType) []AgentResponse {
	results := make([]AgentResponse, len(selected))
	done := make(chan int, len(selected))

	for i, st := range selected {
		go func(slot int, st SourceType, agent Agent) {
			defer func() { done <- slot }()
			started := time.Now()

			defer func() {
				if r := recover(); r != nil {
					o.logger.Printf("source %s panicked: %v", st, r)
					results[slot] = failedResponse(st, fmt.Sprintf("panic: %v", r))
					o.telemetry.RecordSourceSearch(string(st), false, time.Since(started))
				}
			}()

			resp, err := agent.Search(ctx, req.Prompt, req.MaxResults)
			if err != nil {
				o.logger.Printf("source %s failed: %v", st, err)
				results[slot] = failedResponse(st, err.Error())
				o.telemetry.RecordSourceSearch(string(st), false, time.Since(started))
				return
			}
			resp.SourceType = st
			if resp.Data == nil {
				resp.Data = []map[string]interface{}{}
			}
			results[slot] = resp
			o.telemetry.RecordSourceSearch(string(st), resp.Success, time.Since(started))
		}(i, st, o.agents[st])
	}

	for range selected {
		<-done
	}
	return results
}

func failedResponse(st SourceType, msg string) AgentResponse {
	return AgentResponse{
		SourceType: st,
		Success:    false,
		Data:       []map[string]interface{}{},
		Error:      msg,
	}
}

// generateSummary produces the human-readable summary. The completion
// backend sees per-source counts plus up to two sample records; on any
// failure (or with no backend) the deterministic fallback is used.
func (o *Orchestrator) generateSummary(ctx context.Context, query string, results []AgentResponse, total int) string {
	if o.llm == nil {
		return basicSummary(results, total)
	}

	var digest strings.Builder
	for _, r := range results {
		if r.Success {
			fmt.Fprintf(&digest, "Source %s: %d result(s)\n", r.SourceType, len(r.Data))
			for i, rec := range r.Data {
				if i >= 2 {
					break
				}
				fmt.Fprintf(&digest, "  sample: %v\n", rec)
			}
		} else {
			fmt.Fprintf(&digest, "Source %s: failed (%s)\n", r.SourceType, r.Error)
		}
	}

	prompt := fmt.Sprintf(`Summarize the following search results for the query %q in 200 words or less. Mention which sources succeeded, which failed, and the most notable findings.

%s
Total results: %d`, query, digest.String(), total)

	reply, err := o.llm.Complete(ctx, []Message{
		{Role: "system", Content: "You summarize multi-source search results for end users."},
		{Role: "user", Content: prompt},
	}, 250, 0.3)
	o.telemetry.RecordLLMRequest(err == nil)
	if err != nil {
		o.logger.Printf("summary generation failed, using fallback: %v", err)
		return basicSummary(results, total)
	}
	return strings.TrimSpace(reply)
}

// basicSummary is the deterministic summary used when no completion
// backend is configured or the backend call fails.
func basicSummary(results []AgentResponse, total int) string {
	var succeeded, failed []string
	for _, r := range results {
		if r.Success {
			succeeded = append(succeeded, string(r.SourceType))
		} else {
			failed = append(failed, string(r.SourceType))
		}
	}

	var parts []string
	if len(succeeded) > 0 {
		parts = append(parts, "Successfully searched: "+strings.Join(succeeded, ", ")+".")
	}
	if len(failed) > 0 {
		parts = append(parts, "Failed to search: "+strings.Join(failed, ", ")+".")
	}
	parts = append(parts, fmt.Sprintf("Total results found: %d.", total))
	return strings.Join(parts, " ")
}

// HealthCheck probes every registered source and reports per-source
// status. Sources are probed sequentially in registration order.
func (o *Orchestrator) HealthCheck(ctx context.Context) map[SourceType]SourceHealth {
	out := make(map[SourceType]SourceHealth, len(o.order))
	for _, st := range o.order {
		healthy, err := o.agents[st].HealthCheck(ctx)
		h := SourceHealth{Healthy: healthy, Status: "ok"}
		if err != nil {
			h.Healthy = false
			h.Status = "error"
			h.Error = err.Error()
		} else if !healthy {
			h.Status = "unhealthy"
		}
		out[st] = h
	}
	return out
}

func sourceNames(sts []SourceType) []string {
	out := make([]string, len(sts))
	for i, st := range sts {
		out[i] = string(st)
	}
	return out
}
