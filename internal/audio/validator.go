package audio

import (
	"bytes"
	"fmt"
)

// Format identifies an audio container detected from signature bytes.
type Format string

const (
	FormatWAV     Format = "wav"
	FormatMP3     Format = "mp3"
	FormatFLAC    Format = "flac"
	FormatOGG     Format = "ogg"
	FormatM4A     Format = "m4a"
	FormatWebM    Format = "webm"
	FormatUnknown Format = "unknown"
)

const (
	// minContainerBytes is the smallest buffer that can hold any supported
	// container header.
	minContainerBytes = 12

	// maxBufferBytes is the hard ceiling; larger inputs fail closed.
	maxBufferBytes = 2 << 30 // 2 GiB

	// smallBufferBytes triggers a "may not contain meaningful content"
	// warning.
	smallBufferBytes = 1 << 10 // 1 KiB

	// largeBufferBytes triggers a processing-time warning.
	largeBufferBytes = 100 << 20 // 100 MiB

	// silenceSampleBytes bounds how much PCM data the silence check reads.
	silenceSampleBytes = 8 << 10 // 8 KiB

	// int16FullScale is the reference amplitude for the silence check.
	int16FullScale = 32768

	silenceMeanRatio = 0.01
	silencePeakRatio = 0.05
)

// ValidationResult is the outcome of pre-flight audio inspection. Errors mean
// the buffer must not be sent; warnings are advisory only.
type ValidationResult struct {
	Valid    bool          `json:"valid"`
	Errors   []string      `json:"errors,omitempty"`
	Warnings []string      `json:"warnings,omitempty"`
	Metadata AudioMetadata `json:"metadata"`
}

// AudioMetadata describes what the validator learned about a buffer.
type AudioMetadata struct {
	Format    Format   `json:"format"`
	SizeBytes int      `json:"size_bytes"`
	WAV       *WAVInfo `json:"wav,omitempty"`
}

// DetectFormat classifies a buffer by its leading signature bytes. Buffers
// that match no known signature are tagged unknown and still processed.
func DetectFormat(data []byte) Format {
	if len(data) < minContainerBytes {
		return FormatUnknown
	}

	switch {
	case bytes.HasPrefix(data, []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WAVE")):
		return FormatWAV
	case bytes.HasPrefix(data, []byte("ID3")):
		return FormatMP3
	case data[0] == 0xFF && data[1]&0xE0 == 0xE0:
		return FormatMP3
	case bytes.HasPrefix(data, []byte("fLaC")):
		return FormatFLAC
	case bytes.HasPrefix(data, []byte("OggS")):
		return FormatOGG
	case bytes.Equal(data[4:8], []byte("ftyp")):
		return FormatM4A
	case bytes.HasPrefix(data, []byte{0x1A, 0x45, 0xDF, 0xA3}):
		return FormatWebM
	default:
		return FormatUnknown
	}
}

// ContentType returns the MIME type to send for a detected format.
func ContentType(f Format) string {
	switch f {
	case FormatWAV:
		return "audio/wav"
	case FormatMP3:
		return "audio/mpeg"
	case FormatFLAC:
		return "audio/flac"
	case FormatOGG:
		return "audio/ogg"
	case FormatM4A:
		return "audio/mp4"
	case FormatWebM:
		return "audio/webm"
	default:
		return "application/octet-stream"
	}
}

// Validate inspects a raw buffer before any network call. Size violations
// fail closed; the WAV silence check only ever adds a warning and never
// blocks a transcription attempt.
func Validate(data []byte) ValidationResult {
	result := ValidationResult{
		Metadata: AudioMetadata{
			Format:    DetectFormat(data),
			SizeBytes: len(data),
		},
	}

	switch {
	case len(data) == 0:
		result.Errors = append(result.Errors, "audio buffer is empty")
	case len(data) < minContainerBytes:
		result.Errors = append(result.Errors,
			fmt.Sprintf("audio buffer too small to be a valid container (%d bytes)", len(data)))
	case len(data) > maxBufferBytes:
		result.Errors = append(result.Errors,
			fmt.Sprintf("audio buffer exceeds the 2 GiB limit (%d bytes)", len(data)))
	}
	if len(result.Errors) > 0 {
		return result
	}

	if len(data) < smallBufferBytes {
		result.Warnings = append(result.Warnings,
			"audio buffer is very small and may not contain meaningful content")
	}
	if len(data) > largeBufferBytes {
		result.Warnings = append(result.Warnings,
			"audio buffer is very large, transcription may take longer")
	}

	if result.Metadata.Format == FormatWAV {
		if info, err := ParseWAVInfo(data); err == nil {
			result.Metadata.WAV = info
		}
		if silent, mean, peak := detectSilence(data); silent {
			result.Warnings = append(result.Warnings, fmt.Sprintf(
				"audio appears to be silent (mean amplitude %.2f%%, peak %.2f%% of full scale)",
				mean*100, peak*100))
		}
	}

	result.Valid = true
	return result
}

// detectSilence samples PCM amplitude after the WAV header. Best effort: any
// buffer that cannot be sampled is treated as not silent.
func detectSilence(data []byte) (silent bool, meanRatio, peakRatio float64) {
	mean, peak, ok := sampleAmplitudes(data, silenceSampleBytes)
	if !ok {
		return false, 0, 0
	}

	meanRatio = mean / int16FullScale
	peakRatio = float64(peak) / int16FullScale
	return meanRatio < silenceMeanRatio && peakRatio < silencePeakRatio, meanRatio, peakRatio
}
