package content

import (
	"regexp"
	"sort"
	"strings"
	"sync"
)

var wordPattern = regexp.MustCompile(`\w+`)

// Index is the in-memory chunk store shared by all source connectors.
// It keeps three views of the same chunks: the full insertion-ordered
// sequence, buckets keyed by source and buckets keyed by source type.
// A mutex serializes mutations so a reader never observes a chunk in
// one view but not another. Chunks are never removed; re-ingesting a
// source appends fresh chunks next to the stale ones.
type Index struct {
	mu       sync.RWMutex
	chunks   []*Chunk
	bySource map[string][]*Chunk
	byType   map[string][]*Chunk
}

// Stats is a read-only snapshot of index shape for diagnostics.
type Stats struct {
	TotalChunks  int            `json:"total_chunks"`
	Sources      int            `json:"sources"`
	SourceTypes  []string       `json:"source_types"`
	ChunksByType map[string]int `json:"chunks_by_type"`
}

func NewIndex() *Index {
	return &Index{
		bySource: make(map[string][]*Chunk),
		byType:   make(map[string][]*Chunk),
	}
}

// AddChunks appends chunks to all three views in the given order.
// Each chunk is added atomically across the views; the batch as a
// whole is not, so concurrent readers may observe a partial prefix.
func (i *Index) AddChunks(chunks []*Chunk) {
	for _, c := range chunks {
		i.mu.Lock()
		i.chunks = append(i.chunks, c)
		i.bySource[c.Source] = append(i.bySource[c.Source], c)
		i.byType[c.SourceType] = append(i.byType[c.SourceType], c)
		i.mu.Unlock()
	}
}

// SearchChunks ranks chunks against the query using lexical overlap.
// The candidate set is the whole index, or the union of the requested
// source-type buckets in insertion order. Candidates scoring zero are
// dropped; ties keep their scan order.
func (i *Index) SearchChunks(query string, sourceTypes []string, maxResults int) []*Chunk {
	queryWords := tokenize(strings.ToLower(query))

	i.mu.RLock()
	var candidates []*Chunk
	if len(sourceTypes) == 0 {
		candidates = append(candidates, i.chunks...)
	} else {
		for _, st := range sourceTypes {
			candidates = append(candidates, i.byType[st]...)
		}
	}
	i.mu.RUnlock()

	type scored struct {
		chunk *Chunk
		score float64
	}
	var hits []scored
	for _, c := range candidates {
		if s := relevanceScore(strings.ToLower(c.Content), queryWords); s > 0 {
			hits = append(hits, scored{chunk: c, score: s})
		}
	}

	sort.SliceStable(hits, func(a, b int) bool { return hits[a].score > hits[b].score })
	if maxResults > 0 && len(hits) > maxResults {
		hits = hits[:maxResults]
	}

	out := make([]*Chunk, len(hits))
	for n, h := range hits {
		out[n] = h.chunk
	}
	return out
}

// relevanceScore weighs exact word overlap highest, then gives partial
// credit for query words embedded in longer content words and for
// literal phrase containment.
func relevanceScore(content string, queryWords map[string]struct{}) float64 {
	contentWords := tokenize(content)

	var exact, partial, phrase float64
	for qw := range queryWords {
		if _, ok := contentWords[qw]; ok {
			exact++
		}
		for cw := range contentWords {
			if strings.Contains(cw, qw) {
				partial += 0.5
				break
			}
		}
		if strings.Contains(content, qw) {
			phrase++
		}
	}
	return exact*2 + partial + phrase*0.5
}

func tokenize(s string) map[string]struct{} {
	words := wordPattern.FindAllString(s, -1)
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// ChunksBySource returns the chunks ingested from one source, in
// ingestion order. The returned slice is a copy.
func (i *Index) ChunksBySource(source string) []*Chunk {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return append([]*Chunk(nil), i.bySource[source]...)
}

// ChunksByType returns the chunks of one source type, in ingestion
// order. The returned slice is a copy.
func (i *Index) ChunksByType(sourceType string) []*Chunk {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return append([]*Chunk(nil), i.byType[sourceType]...)
}

// Stats reports index shape: totals, distinct sources and per-type
// counts. Source types are sorted for stable output.
func (i *Index) Stats() Stats {
	i.mu.RLock()
	defer i.mu.RUnlock()

	st := Stats{
		TotalChunks:  len(i.chunks),
		Sources:      len(i.bySource),
		ChunksByType: make(map[string]int, len(i.byType)),
	}
	for t, bucket := range i.byType {
		st.SourceTypes = append(st.SourceTypes, t)
		st.ChunksByType[t] = len(bucket)
	}
	sort.Strings(st.SourceTypes)
	return st
}
