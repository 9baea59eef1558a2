package content

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// Chunk is a bounded span of ingested text plus provenance metadata.
// Chunks are immutable once created.
type Chunk struct {
	ID         string                 `json:"chunk_id"`
	Content    string                 `json:"content"`
	Source     string                 `json:"source"`
	SourceType string                 `json:"source_type"`
	Metadata   map[string]interface{} `json:"metadata"`
	CreatedAt  time.Time              `json:"created_at"`
}

// NewChunk builds a chunk and derives its identity from the source type
// and short hashes of source and content. Identical (source, content)
// pairs always produce the same ID. The hash halves are truncated to
// eight hex characters, so collisions between distinct chunks are
// possible; nothing dedups on ID at ingestion time.
func NewChunk(text, source, sourceType string, metadata map[string]interface{}) *Chunk {
	meta := make(map[string]interface{}, len(metadata))
	for k, v := range metadata {
		meta[k] = v
	}
	return &Chunk{
		ID:         chunkID(text, source, sourceType),
		Content:    text,
		Source:     source,
		SourceType: sourceType,
		Metadata:   meta,
		CreatedAt:  time.Now(),
	}
}

func chunkID(text, source, sourceType string) string {
	contentHash := md5.Sum([]byte(text))
	sourceHash := md5.Sum([]byte(source))
	return fmt.Sprintf("%s_%s_%s",
		sourceType,
		hex.EncodeToString(sourceHash[:])[:8],
		hex.EncodeToString(contentHash[:])[:8])
}

// boundaryWindow is how far around the preferred cut point the chunker
// looks for a sentence terminator.
const boundaryWindow = 100

// sentenceTerminators are tried in order; the first one found past the
// window start wins.
var sentenceTerminators = []string{".", "!", "?", "\n\n"}

// Chunker splits raw text into bounded, overlapping chunks with
// sentence-aware boundaries.
type Chunker struct {
	ChunkSize   int
	OverlapSize int
}

// NewChunker validates the window parameters eagerly: a chunk size that
// does not exceed the overlap would stall forward progress in Chunk.
func NewChunker(chunkSize, overlapSize int) (*Chunker, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be greater than zero, got %d", chunkSize)
	}
	if overlapSize < 0 {
		return nil, fmt.Errorf("overlap size cannot be negative, got %d", overlapSize)
	}
	if overlapSize >= chunkSize {
		return nil, fmt.Errorf("chunk size (%d) must be greater than overlap size (%d)", chunkSize, overlapSize)
	}
	return &Chunker{ChunkSize: chunkSize, OverlapSize: overlapSize}, nil
}

// Chunk splits text into overlapping chunks. Text shorter than the
// chunk size becomes a single chunk, even when empty. Each emitted
// chunk carries chunk_start, chunk_end and chunk_index merged into the
// supplied metadata. Pure function over its inputs.
func (c *Chunker) Chunk(text, source, sourceType string, metadata map[string]interface{}) []*Chunk {
	if len(text) < c.ChunkSize {
		return []*Chunk{NewChunk(text, source, sourceType, metadata)}
	}

	var chunks []*Chunk
	start := 0
	for start < len(text) {
		end := start + c.ChunkSize
		if end < len(text) {
			if pos := sentenceBoundary(text, start, end); pos > start {
				end = pos
			}
		} else {
			end = len(text)
		}

		if piece := strings.TrimSpace(text[start:end]); piece != "" {
			meta := make(map[string]interface{}, len(metadata)+3)
			for k, v := range metadata {
				meta[k] = v
			}
			meta["chunk_start"] = start
			meta["chunk_end"] = end
			meta["chunk_index"] = len(chunks)
			chunks = append(chunks, NewChunk(piece, source, sourceType, meta))
		}

		// The overlap step must strictly advance; NewChunker guarantees
		// ChunkSize > OverlapSize.
		next := start + c.ChunkSize - c.OverlapSize
		if next < end {
			next = end
		}
		start = next
	}
	return chunks
}

// sentenceBoundary searches a window around preferredEnd for the
// rightmost occurrence of a terminator and returns the position just
// after it, or preferredEnd when none is found.
func sentenceBoundary(text string, start, preferredEnd int) int {
	searchStart := preferredEnd - boundaryWindow
	if searchStart < start {
		searchStart = start
	}
	searchEnd := preferredEnd + boundaryWindow
	if searchEnd > len(text) {
		searchEnd = len(text)
	}

	for _, term := range sentenceTerminators {
		if idx := strings.LastIndex(text[searchStart:searchEnd], term); idx > 0 {
			return searchStart + idx + 1
		}
	}
	return preferredEnd
}
