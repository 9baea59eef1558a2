package content

import (
	"strings"
	"testing"
)

func TestNewChunkerRejectsBadWindows(t *testing.T) {
	cases := []struct {
		name    string
		size    int
		overlap int
	}{
		{"zero size", 0, 0},
		{"negative size", -1, 0},
		{"negative overlap", 100, -1},
		{"overlap equals size", 100, 100},
		{"overlap exceeds size", 100, 150},
	}
	for _, tc := range cases {
		if _, err := NewChunker(tc.size, tc.overlap); err == nil {
			t.Errorf("%s: expected error for NewChunker(%d, %d)", tc.name, tc.size, tc.overlap)
		}
	}
	if _, err := NewChunker(100, 20); err != nil {
		t.Fatalf("valid window rejected: %v", err)
	}
}

func TestChunkShortTextSingleChunk(t *testing.T) {
	c, err := NewChunker(100, 20)
	if err != nil {
		t.Fatal(err)
	}

	chunks := c.Chunk("short text", "src", "filesystem", map[string]interface{}{"k": "v"})
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Content != "short text" {
		t.Errorf("content = %q", chunks[0].Content)
	}
	if _, ok := chunks[0].Metadata["chunk_start"]; ok {
		t.Error("single chunk should not carry window metadata")
	}
	if chunks[0].Metadata["k"] != "v" {
		t.Error("caller metadata dropped")
	}
}

func TestChunkEmptyTextSingleChunk(t *testing.T) {
	c, _ := NewChunker(100, 20)
	chunks := c.Chunk("", "src", "url", nil)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk for empty text, got %d", len(chunks))
	}
	if chunks[0].Content != "" {
		t.Errorf("content = %q", chunks[0].Content)
	}
}

func TestChunkUnbrokenText(t *testing.T) {
	c, _ := NewChunker(100, 20)
	text := strings.Repeat("a", 250)

	chunks := c.Chunk(text, "src", "filesystem", nil)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}

	// No terminators, so the snap never fires and end wins the
	// max(start+size-overlap, end) advance: windows are back to back.
	wantBounds := [][2]int{{0, 100}, {100, 200}, {200, 250}}
	for i, want := range wantBounds {
		got := chunks[i]
		if got.Metadata["chunk_start"] != want[0] || got.Metadata["chunk_end"] != want[1] {
			t.Errorf("chunk %d bounds = [%v,%v), want [%d,%d)",
				i, got.Metadata["chunk_start"], got.Metadata["chunk_end"], want[0], want[1])
		}
		if got.Metadata["chunk_index"] != i {
			t.Errorf("chunk %d index = %v", i, got.Metadata["chunk_index"])
		}
	}
	if len(chunks[2].Content) != 50 {
		t.Errorf("tail chunk length = %d, want 50", len(chunks[2].Content))
	}
}

func TestChunkSnapsToSentenceBoundary(t *testing.T) {
	c, _ := NewChunker(100, 20)
	text := strings.Repeat("a", 90) + ". " + strings.Repeat("b", 200)

	chunks := c.Chunk(text, "src", "jira", nil)
	if len(chunks) == 0 {
		t.Fatal("no chunks")
	}
	first := chunks[0]
	if !strings.HasSuffix(first.Content, ".") {
		t.Errorf("first chunk should end at the sentence: %q", first.Content)
	}
	if first.Metadata["chunk_end"] != 91 {
		t.Errorf("chunk_end = %v, want 91 (one past the period)", first.Metadata["chunk_end"])
	}

	total := 0
	for _, ch := range chunks {
		total += strings.Count(ch.Content, "b")
	}
	if total != 200 {
		t.Errorf("b characters across chunks = %d, want 200", total)
	}
}

func TestChunkTerminates(t *testing.T) {
	c, _ := NewChunker(50, 49)
	// Dense terminators force aggressive snapping; the advance rule must
	// still make progress.
	text := strings.Repeat("ab. ", 200)
	chunks := c.Chunk(text, "src", "api", nil)
	if len(chunks) == 0 {
		t.Fatal("no chunks")
	}
	for i := 1; i < len(chunks); i++ {
		prev := chunks[i-1].Metadata["chunk_start"].(int)
		cur := chunks[i].Metadata["chunk_start"].(int)
		if cur <= prev {
			t.Fatalf("start did not advance: chunk %d start %d, chunk %d start %d", i-1, prev, i, cur)
		}
	}
}

func TestChunkIDDeterministic(t *testing.T) {
	a := NewChunk("same text", "same source", "jira", nil)
	b := NewChunk("same text", "same source", "jira", nil)
	if a.ID != b.ID {
		t.Errorf("identical inputs produced different IDs: %s vs %s", a.ID, b.ID)
	}

	other := NewChunk("same text", "other source", "jira", nil)
	if a.ID == other.ID {
		t.Error("different sources produced the same ID")
	}

	if !strings.HasPrefix(a.ID, "jira_") {
		t.Errorf("ID %q should start with the source type", a.ID)
	}
	parts := strings.Split(a.ID, "_")
	if len(parts) != 3 || len(parts[1]) != 8 || len(parts[2]) != 8 {
		t.Errorf("ID %q should be type_srchash8_contenthash8", a.ID)
	}
}
