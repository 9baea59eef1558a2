package sources

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mohammad-safakhou/sourcerer/config"
	"github.com/mohammad-safakhou/sourcerer/internal/agent/content"
	"github.com/mohammad-safakhou/sourcerer/internal/agent/core"
	"github.com/mohammad-safakhou/sourcerer/internal/agent/telemetry"
)

func testIngestor(t *testing.T) ingestor {
	t.Helper()
	chunker, err := content.NewChunker(1000, 200)
	if err != nil {
		t.Fatal(err)
	}
	return ingestor{
		chunker: chunker,
		index:   content.NewIndex(),
		tele:    telemetry.NewTelemetry(config.TelemetryConfig{}),
	}
}

func TestKeywordRelevance(t *testing.T) {
	kws := []string{"jira", "ticket"}
	if !keywordRelevance("Show me the JIRA board", kws) {
		t.Error("case-insensitive match failed")
	}
	if !keywordRelevance("open tickets please", kws) {
		t.Error("substring match failed")
	}
	if keywordRelevance("unrelated question", kws) {
		t.Error("false positive")
	}
}

func TestRefreshStateDue(t *testing.T) {
	r := refreshState{interval: time.Hour}
	if !r.due() {
		t.Fatal("first check should be due")
	}
	if r.due() {
		t.Error("second check within the interval should not be due")
	}

	disabled := refreshState{}
	if disabled.due() {
		t.Error("zero interval should disable refresh")
	}
}

func TestURLAgentRelevance(t *testing.T) {
	a := NewURLAgent(config.URLConfig{}, testIngestor(t))

	if ok, _ := a.IsRelevant(context.Background(), "summarize https://example.com/post"); !ok {
		t.Error("literal URL should be relevant")
	}
	if ok, _ := a.IsRelevant(context.Background(), "what does this webpage say"); !ok {
		t.Error("web keyword should be relevant")
	}
	if ok, _ := a.IsRelevant(context.Background(), "list jira tickets"); ok {
		t.Error("false positive")
	}
}

func TestURLAgentSearchWithoutTargets(t *testing.T) {
	in := testIngestor(t)
	in.ingest("previously indexed web article about golang", "https://old.example.com", string(core.SourceURL), nil)
	a := NewURLAgent(config.URLConfig{}, in)

	resp, err := a.Search(context.Background(), "golang article", 10)
	if err != nil {
		t.Fatal(err)
	}
	if !resp.Success || len(resp.Data) != 1 {
		t.Fatalf("expected 1 indexed hit, got %+v", resp)
	}
}

func TestFlattenJSON(t *testing.T) {
	if got := flattenJSON([]byte(`{"a":1}`)); got != "{\n  \"a\": 1\n}" {
		t.Errorf("flattenJSON = %q", got)
	}
	if got := flattenJSON([]byte("plain text")); got != "plain text" {
		t.Errorf("non-JSON should pass through, got %q", got)
	}
}

func TestFilesystemAgentRefresh(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "notes.md"), []byte("deployment error notes"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "image.png"), []byte("binary"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(root, "vendor", "dep"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "vendor", "dep", "skip.md"), []byte("excluded"), 0o644); err != nil {
		t.Fatal(err)
	}

	in := testIngestor(t)
	a := NewFilesystemAgent(config.FilesystemConfig{
		Roots:       []string{root},
		Extensions:  []string{".md"},
		ExcludeGlob: []string{"vendor/**"},
	}, 0, in, 0)

	if err := a.RefreshContent(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	chunks := in.index.ChunksByType(string(core.SourceFilesystem))
	if len(chunks) != 1 {
		t.Fatalf("expected 1 indexed file, got %d", len(chunks))
	}
	if chunks[0].Content != "deployment error notes" {
		t.Errorf("content = %q", chunks[0].Content)
	}

	resp, err := a.Search(context.Background(), "deployment error", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Data) != 1 {
		t.Fatalf("search hits = %d, want 1", len(resp.Data))
	}
}

func TestFilesystemHealthCheck(t *testing.T) {
	in := testIngestor(t)

	a := NewFilesystemAgent(config.FilesystemConfig{}, 0, in, 0)
	if ok, _ := a.HealthCheck(context.Background()); ok {
		t.Error("no roots configured should be unhealthy")
	}

	a = NewFilesystemAgent(config.FilesystemConfig{Roots: []string{t.TempDir()}}, 0, in, 0)
	if ok, err := a.HealthCheck(context.Background()); !ok || err != nil {
		t.Errorf("existing root should be healthy: %v", err)
	}

	a = NewFilesystemAgent(config.FilesystemConfig{Roots: []string{"/does/not/exist"}}, 0, in, 0)
	if ok, err := a.HealthCheck(context.Background()); ok || err == nil {
		t.Error("missing root should report an error")
	}
}

func TestNewRefreshScheduler(t *testing.T) {
	if s, err := NewRefreshScheduler("", nil); s != nil || err != nil {
		t.Errorf("empty schedule should disable scheduling, got %v, %v", s, err)
	}
	if _, err := NewRefreshScheduler("@hourly", nil); err != nil {
		t.Errorf("@hourly should parse: %v", err)
	}
	if _, err := NewRefreshScheduler("*/5 * * * *", nil); err != nil {
		t.Errorf("cron expression should parse: %v", err)
	}
	if _, err := NewRefreshScheduler("not a schedule", nil); err == nil {
		t.Error("expected parse error")
	}
}

func TestNewAgentsRegistrationOrder(t *testing.T) {
	cfg := &config.Config{
		Content: config.ContentConfig{ChunkSize: 1000, OverlapSize: 200},
	}
	chunker, err := content.NewChunker(cfg.Content.ChunkSize, cfg.Content.OverlapSize)
	if err != nil {
		t.Fatal(err)
	}
	regs, refreshers := NewAgents(cfg, chunker, content.NewIndex(), telemetry.NewTelemetry(config.TelemetryConfig{}))

	want := core.AllSourceTypes()
	if len(regs) != len(want) {
		t.Fatalf("got %d registrations, want %d", len(regs), len(want))
	}
	for i, st := range want {
		if regs[i].Type != st {
			t.Errorf("registration %d = %s, want %s", i, regs[i].Type, st)
		}
		if regs[i].Agent == nil {
			t.Errorf("registration %d has nil agent", i)
		}
	}
	if len(refreshers) == 0 {
		t.Error("expected refreshable sources")
	}
}
