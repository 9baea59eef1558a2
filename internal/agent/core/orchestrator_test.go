package core

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/mohammad-safakhou/sourcerer/config"
	"github.com/mohammad-safakhou/sourcerer/internal/agent/telemetry"
)

type stubAgent struct {
	relevant    bool
	relevantErr error
	data        []map[string]interface{}
	searchErr   error
	panicMsg    string
	healthy     bool
	healthErr   error

	gotQuery      string
	gotMaxResults int
}

func (s *stubAgent) IsRelevant(ctx context.Context, query string) (bool, error) {
	return s.relevant, s.relevantErr
}

func (s *stubAgent) Search(ctx context.Context, query string, maxResults int) (AgentResponse, error) {
	s.gotQuery = query
	s.gotMaxResults = maxResults
	if s.panicMsg != "" {
		panic(s.panicMsg)
	}
	if s.searchErr != nil {
		return AgentResponse{}, s.searchErr
	}
	return AgentResponse{Success: true, Data: s.data}, nil
}

func (s *stubAgent) HealthCheck(ctx context.Context) (bool, error) {
	return s.healthy, s.healthErr
}

type stubLLM struct {
	reply string
	err   error
	calls []int // max tokens per call
}

func (s *stubLLM) Complete(ctx context.Context, messages []Message, maxTokens int, temperature float64) (string, error) {
	s.calls = append(s.calls, maxTokens)
	return s.reply, s.err
}

func newTestOrchestrator(t *testing.T, llm LLMProvider, regs ...Registration) *Orchestrator {
	t.Helper()
	tele := telemetry.NewTelemetry(config.TelemetryConfig{Enabled: true})
	o, err := NewOrchestrator(tele, llm, regs)
	if err != nil {
		t.Fatalf("NewOrchestrator: %v", err)
	}
	return o
}

func records(n int) []map[string]interface{} {
	out := make([]map[string]interface{}, n)
	for i := range out {
		out[i] = map[string]interface{}{"i": i}
	}
	return out
}

func TestNewOrchestratorValidation(t *testing.T) {
	tele := telemetry.NewTelemetry(config.TelemetryConfig{})
	if _, err := NewOrchestrator(tele, nil, nil); err == nil {
		t.Error("expected error with no registrations")
	}
	regs := []Registration{
		{Type: SourceJira, Agent: &stubAgent{}},
		{Type: SourceJira, Agent: &stubAgent{}},
	}
	if _, err := NewOrchestrator(tele, nil, regs); err == nil {
		t.Error("expected error on duplicate registration")
	}
	if _, err := NewOrchestrator(tele, nil, []Registration{{Type: SourceJira}}); err == nil {
		t.Error("expected error on nil agent")
	}
}

func TestExplicitSourceSelection(t *testing.T) {
	jira := &stubAgent{data: records(1)}
	gh := &stubAgent{data: records(1)}
	o := newTestOrchestrator(t, nil,
		Registration{Type: SourceJira, Agent: jira},
		Registration{Type: SourceGitHub, Agent: gh},
	)

	resp := o.ProcessQuery(context.Background(), QueryRequest{
		Prompt:          "anything",
		SpecificSources: []SourceType{SourceGitHub},
	})
	if len(resp.SourcesUsed) != 1 || resp.SourcesUsed[0] != SourceGitHub {
		t.Fatalf("sources used = %v, want [github]", resp.SourcesUsed)
	}
	if jira.gotQuery != "" {
		t.Error("jira should not have been searched")
	}
}

func TestExplicitSelectionWithNoRegisteredMatch(t *testing.T) {
	o := newTestOrchestrator(t, nil,
		Registration{Type: SourceJira, Agent: &stubAgent{}},
	)

	resp := o.ProcessQuery(context.Background(), QueryRequest{
		Prompt:          "anything",
		SpecificSources: []SourceType{SourceVideo},
	})
	if len(resp.SourcesUsed) != 0 {
		t.Fatalf("sources used = %v, want none", resp.SourcesUsed)
	}
	if resp.Summary != "No relevant sources found for your query." {
		t.Errorf("summary = %q", resp.Summary)
	}
	if resp.TotalResults != 0 || len(resp.Results) != 0 {
		t.Errorf("expected empty response, got %+v", resp)
	}
}

func TestStaticRelevanceRouting(t *testing.T) {
	jira := &stubAgent{relevant: true, data: records(2)}
	gh := &stubAgent{relevant: false}
	o := newTestOrchestrator(t, nil,
		Registration{Type: SourceJira, Agent: jira},
		Registration{Type: SourceGitHub, Agent: gh},
	)

	resp := o.ProcessQuery(context.Background(), QueryRequest{Prompt: "show me jira tickets"})
	if len(resp.SourcesUsed) != 1 || resp.SourcesUsed[0] != SourceJira {
		t.Fatalf("sources used = %v, want [jira]", resp.SourcesUsed)
	}
	if resp.TotalResults != 2 {
		t.Errorf("total results = %d, want 2", resp.TotalResults)
	}
}

func TestRelevanceErrorFailsOpen(t *testing.T) {
	broken := &stubAgent{relevantErr: errors.New("predicate exploded")}
	ok := &stubAgent{relevant: true, data: records(1)}
	o := newTestOrchestrator(t, nil,
		Registration{Type: SourceJira, Agent: broken},
		Registration{Type: SourceGitHub, Agent: ok},
	)

	resp := o.ProcessQuery(context.Background(), QueryRequest{Prompt: "q"})
	if len(resp.SourcesUsed) != 1 || resp.SourcesUsed[0] != SourceGitHub {
		t.Fatalf("sources used = %v, want [github]", resp.SourcesUsed)
	}
}

func TestLLMRoutingFallback(t *testing.T) {
	jira := &stubAgent{data: records(1)}
	gh := &stubAgent{data: records(1)}
	llm := &stubLLM{reply: "Jira, GITHUB, bogus"}
	o := newTestOrchestrator(t, llm,
		Registration{Type: SourceJira, Agent: jira},
		Registration{Type: SourceGitHub, Agent: gh},
		Registration{Type: SourceURL, Agent: &stubAgent{}},
	)

	resp := o.ProcessQuery(context.Background(), QueryRequest{Prompt: "vague question"})
	if len(resp.SourcesUsed) != 2 {
		t.Fatalf("sources used = %v, want jira and github", resp.SourcesUsed)
	}
	if resp.SourcesUsed[0] != SourceJira || resp.SourcesUsed[1] != SourceGitHub {
		t.Errorf("sources used = %v, unknown names should be dropped", resp.SourcesUsed)
	}
	if len(llm.calls) == 0 || llm.calls[0] != 100 {
		t.Errorf("routing call max tokens = %v, want first call 100", llm.calls)
	}
}

func TestBroadcastFallback(t *testing.T) {
	jira := &stubAgent{}
	gh := &stubAgent{}
	o := newTestOrchestrator(t, nil,
		Registration{Type: SourceJira, Agent: jira},
		Registration{Type: SourceGitHub, Agent: gh},
	)

	resp := o.ProcessQuery(context.Background(), QueryRequest{Prompt: "nothing matches"})
	if len(resp.SourcesUsed) != 2 {
		t.Fatalf("broadcast should hit every source, got %v", resp.SourcesUsed)
	}
}

func TestLLMRoutingErrorFallsThroughToBroadcast(t *testing.T) {
	o := newTestOrchestrator(t, &stubLLM{err: errors.New("backend down")},
		Registration{Type: SourceJira, Agent: &stubAgent{}},
		Registration{Type: SourceGitHub, Agent: &stubAgent{}},
	)

	resp := o.ProcessQuery(context.Background(), QueryRequest{Prompt: "vague"})
	if len(resp.SourcesUsed) != 2 {
		t.Fatalf("expected broadcast after routing failure, got %v", resp.SourcesUsed)
	}
}

func TestSourceFailureIsolation(t *testing.T) {
	failing := &stubAgent{relevant: true, searchErr: errors.New("connection refused")}
	working := &stubAgent{relevant: true, data: records(3)}
	o := newTestOrchestrator(t, nil,
		Registration{Type: SourceJira, Agent: failing},
		Registration{Type: SourceGitHub, Agent: working},
	)

	resp := o.ProcessQuery(context.Background(), QueryRequest{Prompt: "q"})
	if len(resp.Results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(resp.Results))
	}

	var failed, succeeded *AgentResponse
	for i := range resp.Results {
		if resp.Results[i].Success {
			succeeded = &resp.Results[i]
		} else {
			failed = &resp.Results[i]
		}
	}
	if failed == nil || succeeded == nil {
		t.Fatalf("expected one failure and one success: %+v", resp.Results)
	}
	if !strings.Contains(failed.Error, "connection refused") {
		t.Errorf("failed error = %q", failed.Error)
	}
	if failed.Data == nil || len(failed.Data) != 0 {
		t.Errorf("failed response should carry an empty data slice, got %v", failed.Data)
	}
	if resp.TotalResults != 3 {
		t.Errorf("total results = %d, failures must not count", resp.TotalResults)
	}
}

func TestSourcePanicIsolation(t *testing.T) {
	panicking := &stubAgent{relevant: true, panicMsg: "boom"}
	working := &stubAgent{relevant: true, data: records(1)}
	o := newTestOrchestrator(t, nil,
		Registration{Type: SourceJira, Agent: panicking},
		Registration{Type: SourceGitHub, Agent: working},
	)

	resp := o.ProcessQuery(context.Background(), QueryRequest{Prompt: "q"})
	if resp.TotalResults != 1 {
		t.Fatalf("total results = %d, want 1", resp.TotalResults)
	}
	for _, r := range resp.Results {
		if r.SourceType == SourceJira {
			if r.Success || !strings.Contains(r.Error, "boom") {
				t.Errorf("panicking source result = %+v", r)
			}
		}
	}
}

func TestResultOrderMatchesSelectionOrder(t *testing.T) {
	o := newTestOrchestrator(t, nil,
		Registration{Type: SourceJira, Agent: &stubAgent{relevant: true, data: records(1)}},
		Registration{Type: SourceGitHub, Agent: &stubAgent{relevant: true, data: records(1)}},
		Registration{Type: SourceURL, Agent: &stubAgent{relevant: true, data: records(1)}},
	)

	resp := o.ProcessQuery(context.Background(), QueryRequest{Prompt: "q"})
	want := []SourceType{SourceJira, SourceGitHub, SourceURL}
	for i, st := range want {
		if resp.Results[i].SourceType != st {
			t.Fatalf("result %d is %s, want %s", i, resp.Results[i].SourceType, st)
		}
	}
}

func TestMaxResultsDefault(t *testing.T) {
	agent := &stubAgent{relevant: true}
	o := newTestOrchestrator(t, nil, Registration{Type: SourceJira, Agent: agent})

	o.ProcessQuery(context.Background(), QueryRequest{Prompt: "q"})
	if agent.gotMaxResults != 10 {
		t.Errorf("max results = %d, want default 10", agent.gotMaxResults)
	}
}

func TestBasicSummary(t *testing.T) {
	o := newTestOrchestrator(t, nil,
		Registration{Type: SourceJira, Agent: &stubAgent{relevant: true, data: records(2)}},
		Registration{Type: SourceGitHub, Agent: &stubAgent{relevant: true, searchErr: errors.New("down")}},
	)

	resp := o.ProcessQuery(context.Background(), QueryRequest{Prompt: "q"})
	want := "Successfully searched: jira. Failed to search: github. Total results found: 2."
	if resp.Summary != want {
		t.Errorf("summary = %q, want %q", resp.Summary, want)
	}
}

func TestLLMSummary(t *testing.T) {
	llm := &stubLLM{reply: "  All sources answered fine.  "}
	o := newTestOrchestrator(t, llm,
		Registration{Type: SourceJira, Agent: &stubAgent{relevant: true, data: records(1)}},
	)

	resp := o.ProcessQuery(context.Background(), QueryRequest{Prompt: "q"})
	if resp.Summary != "All sources answered fine." {
		t.Errorf("summary = %q", resp.Summary)
	}
	if n := len(llm.calls); n == 0 || llm.calls[n-1] != 250 {
		t.Errorf("summary call max tokens = %v, want last call 250", llm.calls)
	}
}

func TestHealthCheck(t *testing.T) {
	o := newTestOrchestrator(t, nil,
		Registration{Type: SourceJira, Agent: &stubAgent{healthy: true}},
		Registration{Type: SourceGitHub, Agent: &stubAgent{healthErr: errors.New("no token")}},
		Registration{Type: SourceURL, Agent: &stubAgent{healthy: false}},
	)

	statuses := o.HealthCheck(context.Background())
	if !statuses[SourceJira].Healthy || statuses[SourceJira].Status != "ok" {
		t.Errorf("jira = %+v", statuses[SourceJira])
	}
	if statuses[SourceGitHub].Healthy || statuses[SourceGitHub].Status != "error" {
		t.Errorf("github = %+v", statuses[SourceGitHub])
	}
	if statuses[SourceURL].Healthy || statuses[SourceURL].Status != "unhealthy" {
		t.Errorf("url = %+v", statuses[SourceURL])
	}
}

func TestParseSourceType(t *testing.T) {
	if st, err := ParseSourceType("  GitHub "); err != nil || st != SourceGitHub {
		t.Errorf("ParseSourceType = %v, %v", st, err)
	}
	if _, err := ParseSourceType("mystery"); err == nil {
		t.Error("expected error for unknown source")
	}
}
