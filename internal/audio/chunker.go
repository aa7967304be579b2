package audio

import (
	"fmt"
	"strings"
	"sync"
)

// Chunk is a contiguous byte sub-range of an original buffer, processed as an
// independent sub-request. Ownership transfers to the transcription loop when
// Split returns.
type Chunk struct {
	Index  int    `json:"index"`
	Offset int    `json:"offset"`
	Data   []byte `json:"-"`
}

// ChunkerConfig contains provider ceilings for the chunking decision.
type ChunkerConfig struct {
	MaxChunkBytes int // provider upload ceiling per request
}

// DefaultChunkerConfig matches the typical provider upload ceiling.
func DefaultChunkerConfig() ChunkerConfig {
	return ChunkerConfig{
		MaxChunkBytes: 100 << 20, // 100 MiB
	}
}

// Recommendation is an advisory settings bundle used only for user-facing
// guidance, never for control flow.
type Recommendation struct {
	EstimatedChunks     int    `json:"estimated_chunks"`
	SuggestedModel      string `json:"suggested_model"`
	SuggestedBitrateKbs int    `json:"suggested_bitrate_kbs"`
}

// ChunkerStats is a snapshot of chunking activity.
type ChunkerStats struct {
	BuffersSplit  uint64 `json:"buffers_split"`
	ChunksCreated uint64 `json:"chunks_created"`
	BytesSplit    uint64 `json:"bytes_split"`
}

// Chunker decides whether a buffer exceeds the provider ceiling and splits it
// into ordered byte-range chunks. Boundaries are byte-aligned, not
// silence-aligned; a boundary can fall mid-word, which is an accepted
// approximation surfaced to callers through Recommendation.
type Chunker struct {
	config ChunkerConfig

	buffersSplit  uint64
	chunksCreated uint64
	bytesSplit    uint64

	mu sync.Mutex
}

// NewChunker validates config and builds a chunker.
func NewChunker(config ChunkerConfig) (*Chunker, error) {
	if config.MaxChunkBytes <= 0 {
		return nil, fmt.Errorf("max chunk bytes must be positive, got %d", config.MaxChunkBytes)
	}
	return &Chunker{config: config}, nil
}

// NeedsChunking reports whether a buffer of the given size exceeds the
// provider ceiling.
func (c *Chunker) NeedsChunking(byteLength int) bool {
	return byteLength > c.config.MaxChunkBytes
}

// Split partitions data into ceil(len/ceiling) ordered chunks with no gaps or
// overlaps. Chunk data aliases the original buffer; the caller must not
// mutate data until the chunks are consumed.
func (c *Chunker) Split(data []byte) []Chunk {
	size := c.config.MaxChunkBytes
	count := (len(data) + size - 1) / size
	if count <= 1 {
		return []Chunk{{Index: 0, Offset: 0, Data: data}}
	}

	chunks := make([]Chunk, 0, count)
	for i := 0; i < count; i++ {
		start := i * size
		end := start + size
		if end > len(data) {
			end = len(data)
		}
		chunks = append(chunks, Chunk{Index: i, Offset: start, Data: data[start:end]})
	}

	c.mu.Lock()
	c.buffersSplit++
	c.chunksCreated += uint64(count)
	c.bytesSplit += uint64(len(data))
	c.mu.Unlock()

	return chunks
}

// MergeTranscripts concatenates non-empty chunk transcripts in order with a
// single separating space, skipping chunks that produced no text.
func MergeTranscripts(texts []string) string {
	parts := make([]string, 0, len(texts))
	for _, t := range texts {
		if trimmed := strings.TrimSpace(t); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return strings.Join(parts, " ")
}

// RecommendedSettings estimates how a buffer of the given size would be
// processed and which degraded settings would avoid chunking entirely.
func (c *Chunker) RecommendedSettings(byteLength int) Recommendation {
	size := c.config.MaxChunkBytes
	chunks := (byteLength + size - 1) / size
	if chunks < 1 {
		chunks = 1
	}

	rec := Recommendation{
		EstimatedChunks:     chunks,
		SuggestedModel:      "nova-2",
		SuggestedBitrateKbs: 128,
	}
	if chunks > 1 {
		rec.SuggestedModel = "base"
		rec.SuggestedBitrateKbs = 64
	}
	return rec
}

// GetStats returns a snapshot of chunking activity.
func (c *Chunker) GetStats() ChunkerStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return ChunkerStats{
		BuffersSplit:  c.buffersSplit,
		ChunksCreated: c.chunksCreated,
		BytesSplit:    c.bytesSplit,
	}
}
