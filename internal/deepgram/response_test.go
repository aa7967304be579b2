package deepgram

import (
	"strings"
	"testing"

	"github.com/voxpipe/stt-client/internal/transcription"
)

func TestParseResponseMalformedJSON(t *testing.T) {
	_, err := parseResponse([]byte("{not json"), "nova-2")
	if transcription.CodeOf(err) != transcription.CodeInvalidResponse {
		t.Errorf("Expected invalid_response for malformed JSON, got %v", err)
	}
}

func TestParseResponseMissingStructure(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"no channels", `{"results":{"channels":[]}}`},
		{"no results", `{}`},
		{"no alternatives", `{"results":{"channels":[{"alternatives":[]}]}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseResponse([]byte(tt.body), "nova-2")
			if transcription.CodeOf(err) != transcription.CodeInvalidResponse {
				t.Errorf("Expected invalid_response, got %v", err)
			}
		})
	}
}

func TestParseResponseEmptyTranscript(t *testing.T) {
	body := `{
		"metadata": {"duration": 0.5},
		"results": {"channels": [{"alternatives": [{"transcript": "", "confidence": 0, "words": []}]}]}
	}`

	_, err := parseResponse([]byte(body), "nova-2")
	if transcription.CodeOf(err) != transcription.CodeEmptyTranscript {
		t.Fatalf("Expected empty_transcript, got %v", err)
	}

	te, _ := transcription.AsError(err)
	if !strings.Contains(te.Message, "no speech detected") {
		t.Errorf("Expected zero-confidence diagnosis, got '%s'", te.Message)
	}
	if !strings.Contains(te.Message, "very short") {
		t.Errorf("Expected short-audio diagnosis for 0.5s, got '%s'", te.Message)
	}
	if !strings.Contains(te.Message, "no language detected") {
		t.Errorf("Expected missing-language diagnosis, got '%s'", te.Message)
	}
	if te.Retryable {
		t.Errorf("Expected empty transcript to be non-retryable")
	}
}

func TestParseResponseWhitespaceTranscriptIsEmpty(t *testing.T) {
	body := `{
		"results": {"channels": [{"alternatives": [{"transcript": "   ", "confidence": 0.5}]}]}
	}`

	_, err := parseResponse([]byte(body), "nova-2")
	if transcription.CodeOf(err) != transcription.CodeEmptyTranscript {
		t.Errorf("Expected whitespace-only transcript to count as empty, got %v", err)
	}
}

func TestParseResponseNormalizesFields(t *testing.T) {
	body := `{
		"metadata": {"duration": 42.5, "models": ["nova-2-general"]},
		"results": {"channels": [{
			"detected_language": "uk",
			"alternatives": [{
				"transcript": "привіт світ",
				"confidence": 0.87,
				"words": [
					{"word": "привіт", "start": 0.1, "end": 0.6, "confidence": 0.9},
					{"word": "світ", "start": 0.7, "end": 1.1, "confidence": 0.84}
				]
			}]
		}]}
	}`

	response, err := parseResponse([]byte(body), "nova-2")
	if err != nil {
		t.Fatalf("Expected success, got %v", err)
	}

	if response.Text != "привіт світ" {
		t.Errorf("Expected transcript preserved, got '%s'", response.Text)
	}
	if response.Language != "uk" {
		t.Errorf("Expected detected language, got '%s'", response.Language)
	}
	if response.Duration != 42.5 {
		t.Errorf("Expected duration 42.5, got %f", response.Duration)
	}
	if response.Metadata.Model != "nova-2-general" {
		t.Errorf("Expected model from response metadata, got '%s'", response.Metadata.Model)
	}
	if response.Metadata.WordCount != 2 {
		t.Errorf("Expected 2 words, got %d", response.Metadata.WordCount)
	}
	if response.Provider != ProviderName {
		t.Errorf("Expected provider name, got '%s'", response.Provider)
	}
}

func TestParseResponseFallsBackToRequestedModel(t *testing.T) {
	body := `{
		"results": {"channels": [{"alternatives": [{"transcript": "hi", "confidence": 0.9}]}]}
	}`

	response, err := parseResponse([]byte(body), "whisper")
	if err != nil {
		t.Fatalf("Expected success, got %v", err)
	}
	if response.Metadata.Model != "whisper" {
		t.Errorf("Expected requested model as fallback, got '%s'", response.Metadata.Model)
	}
}

func TestBuildSegments(t *testing.T) {
	speaker := 1
	words := make([]rawWord, 25)
	for i := range words {
		words[i] = rawWord{
			Word:       "w",
			Start:      float64(i),
			End:        float64(i) + 0.5,
			Confidence: 0.8,
		}
	}
	words[0].Speaker = &speaker

	segments := buildSegments(words)
	if len(segments) != 3 {
		t.Fatalf("Expected 3 segments for 25 words, got %d", len(segments))
	}

	first := segments[0]
	if first.Start != 0 || first.End != 9.5 {
		t.Errorf("Expected first segment span [0, 9.5], got [%f, %f]", first.Start, first.End)
	}
	if first.Confidence != 0.8 {
		t.Errorf("Expected mean confidence 0.8, got %f", first.Confidence)
	}
	if first.Speaker == nil || *first.Speaker != 1 {
		t.Errorf("Expected speaker from first word")
	}

	last := segments[2]
	if last.ID != 2 {
		t.Errorf("Expected segment ID 2, got %d", last.ID)
	}
	if strings.Count(last.Text, "w") != 5 {
		t.Errorf("Expected 5 words in the tail segment, got '%s'", last.Text)
	}

	// Segments are ordered and non-overlapping in time.
	for i := 1; i < len(segments); i++ {
		if segments[i].Start < segments[i-1].End {
			t.Errorf("Segment %d overlaps its predecessor", i)
		}
	}
}

func TestBuildSegmentsEmptyWords(t *testing.T) {
	if segments := buildSegments(nil); segments != nil {
		t.Errorf("Expected nil segments for no words, got %v", segments)
	}
}

func TestEstimateCost(t *testing.T) {
	tests := []struct {
		name     string
		duration float64
		model    string
		want     float64
	}{
		{"one minute nova-2", 60, "nova-2", 0.0043},
		{"ten minutes enhanced", 600, "enhanced", 0.145},
		{"unknown model uses default", 60, "does-not-exist", 0.0043},
		{"zero duration", 0, "nova-2", 0},
		{"negative duration", -5, "nova-2", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EstimateCost(tt.duration, tt.model)
			if diff := got - tt.want; diff > 1e-9 || diff < -1e-9 {
				t.Errorf("Expected %f, got %f", tt.want, got)
			}
		})
	}
}
