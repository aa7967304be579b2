package transcription

import "time"

// Options contains the caller-facing transcription parameters. Language "auto"
// (or empty) requests provider-side language detection.
type Options struct {
	Model           string   `json:"model,omitempty"`
	Language        string   `json:"language,omitempty"`
	Punctuate       bool     `json:"punctuate"`
	SmartFormat     bool     `json:"smart_format"`
	Diarize         bool     `json:"diarize"`
	Numerals        bool     `json:"numerals"`
	ProfanityFilter bool     `json:"profanity_filter"`
	Redact          []string `json:"redact,omitempty"`
	Keywords        []string `json:"keywords,omitempty"`
}

// Word is a single recognized word with provider timing and confidence.
type Word struct {
	Word       string  `json:"word"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Confidence float64 `json:"confidence"`
	Speaker    *int    `json:"speaker,omitempty"`
}

// Segment is a derived span of consecutive words. Offsets are seconds from the
// start of the audio; End is never smaller than Start, and segments within a
// response are ordered by ID and non-decreasing in time.
type Segment struct {
	ID         int     `json:"id"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Speaker    *int    `json:"speaker,omitempty"`
}

// Metadata carries per-response accounting. Chunk fields are zero for
// single-call responses.
type Metadata struct {
	Model           string        `json:"model,omitempty"`
	ProcessingTime  time.Duration `json:"processing_time"`
	WordCount       int           `json:"word_count"`
	ChunksTotal     int           `json:"chunks_total,omitempty"`
	ChunksSucceeded int           `json:"chunks_succeeded,omitempty"`
}

// Response is the normalized result of one logical transcription request,
// either a single provider call or a merged chunk set. It is never mutated
// after being returned.
type Response struct {
	Text       string    `json:"text"`
	Language   string    `json:"language,omitempty"`
	Confidence float64   `json:"confidence,omitempty"`
	Duration   float64   `json:"duration,omitempty"`
	Segments   []Segment `json:"segments,omitempty"`
	Provider   string    `json:"provider"`
	IsPartial  bool      `json:"is_partial,omitempty"`
	Metadata   Metadata  `json:"metadata"`
}
