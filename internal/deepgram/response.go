package deepgram

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/voxpipe/stt-client/internal/transcription"
)

// segmentWordWindow is the number of consecutive words grouped into one
// derived segment when word-level timestamps are present.
const segmentWordWindow = 10

// rawResponse mirrors the provider's JSON body.
type rawResponse struct {
	Metadata rawMetadata `json:"metadata"`
	Results  rawResults  `json:"results"`
}

type rawMetadata struct {
	Duration float64  `json:"duration"`
	Models   []string `json:"models"`
}

type rawResults struct {
	Channels []rawChannel `json:"channels"`
}

type rawChannel struct {
	DetectedLanguage string           `json:"detected_language"`
	Alternatives     []rawAlternative `json:"alternatives"`
}

type rawAlternative struct {
	Transcript string    `json:"transcript"`
	Confidence float64   `json:"confidence"`
	Words      []rawWord `json:"words"`
}

type rawWord struct {
	Word       string  `json:"word"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Confidence float64 `json:"confidence"`
	Speaker    *int    `json:"speaker"`
}

// parseResponse converts a 2xx provider body into the normalized response.
// A missing channel or alternative is a structural error; an empty transcript
// inside a valid structure is the distinguished EmptyTranscript condition.
func parseResponse(body []byte, model string) (*transcription.Response, error) {
	var raw rawResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, transcription.NewInvalidResponse(fmt.Sprintf("failed to parse provider JSON: %v", err))
	}

	if len(raw.Results.Channels) == 0 {
		return nil, transcription.NewInvalidResponse("provider response contains no channels")
	}
	channel := raw.Results.Channels[0]
	if len(channel.Alternatives) == 0 {
		return nil, transcription.NewInvalidResponse("provider response contains no alternatives")
	}
	alt := channel.Alternatives[0]

	if strings.TrimSpace(alt.Transcript) == "" {
		return nil, transcription.NewEmptyTranscript(diagnoseEmptyTranscript(alt, channel, raw.Metadata))
	}

	usedModel := model
	if len(raw.Metadata.Models) > 0 {
		usedModel = raw.Metadata.Models[0]
	}

	return &transcription.Response{
		Text:       alt.Transcript,
		Language:   channel.DetectedLanguage,
		Confidence: alt.Confidence,
		Duration:   raw.Metadata.Duration,
		Segments:   buildSegments(alt.Words),
		Provider:   ProviderName,
		Metadata: transcription.Metadata{
			Model:     usedModel,
			WordCount: len(alt.Words),
		},
	}, nil
}

// diagnoseEmptyTranscript inspects auxiliary response signals to explain why
// no text came back. The causes become part of the error message shown to the
// user.
func diagnoseEmptyTranscript(alt rawAlternative, channel rawChannel, meta rawMetadata) []string {
	var causes []string

	if alt.Confidence == 0 {
		causes = append(causes, "no speech detected (zero confidence)")
	}
	if len(alt.Words) == 0 {
		causes = append(causes, "no word-level timestamps returned")
	}
	if meta.Duration > 0 && meta.Duration < 1 {
		causes = append(causes, fmt.Sprintf("audio is very short (%.2fs)", meta.Duration))
	}
	if channel.DetectedLanguage == "" {
		causes = append(causes, "no language detected")
	}
	if len(causes) == 0 {
		causes = append(causes, "audio may contain no recognizable speech")
	}

	return causes
}

// buildSegments groups consecutive words into fixed-size windows. Each
// segment spans [firstWord.start, lastWord.end] with the arithmetic mean of
// its word confidences; the speaker index comes from the window's first word.
func buildSegments(words []rawWord) []transcription.Segment {
	if len(words) == 0 {
		return nil
	}

	segments := make([]transcription.Segment, 0, (len(words)+segmentWordWindow-1)/segmentWordWindow)
	for start := 0; start < len(words); start += segmentWordWindow {
		end := start + segmentWordWindow
		if end > len(words) {
			end = len(words)
		}
		window := words[start:end]

		texts := make([]string, 0, len(window))
		var confidenceSum float64
		for _, w := range window {
			texts = append(texts, w.Word)
			confidenceSum += w.Confidence
		}

		segments = append(segments, transcription.Segment{
			ID:         len(segments),
			Start:      window[0].Start,
			End:        window[len(window)-1].End,
			Text:       strings.Join(texts, " "),
			Confidence: confidenceSum / float64(len(window)),
			Speaker:    window[0].Speaker,
		})
	}

	return segments
}
