package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// wavHeaderSize is the canonical PCM WAV header length; sample data starts at
// this offset.
const wavHeaderSize = 44

// WAVHeader mirrors the fixed 44-byte PCM WAV header layout.
type WAVHeader struct {
	ChunkID       [4]byte // "RIFF"
	ChunkSize     uint32
	Format        [4]byte // "WAVE"
	Subchunk1ID   [4]byte // "fmt "
	Subchunk1Size uint32
	AudioFormat   uint16
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	Subchunk2ID   [4]byte // "data"
	Subchunk2Size uint32
}

// WAVInfo summarizes a WAV buffer without decoding its audio data.
type WAVInfo struct {
	SampleRate    int     `json:"sample_rate"`
	Channels      int     `json:"channels"`
	BitsPerSample int     `json:"bits_per_sample"`
	Duration      float64 `json:"duration_seconds"`
	DataSize      int     `json:"data_size_bytes"`
}

// ParseWAVInfo reads the header of a WAV buffer. It fails on buffers that do
// not carry the canonical RIFF/WAVE/fmt/data layout.
func ParseWAVInfo(data []byte) (*WAVInfo, error) {
	if len(data) < wavHeaderSize {
		return nil, fmt.Errorf("WAV data too short: need at least %d bytes, got %d", wavHeaderSize, len(data))
	}

	var header WAVHeader
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("failed to read WAV header: %w", err)
	}

	if string(header.ChunkID[:]) != "RIFF" || string(header.Format[:]) != "WAVE" {
		return nil, fmt.Errorf("invalid WAV file: missing RIFF/WAVE signature")
	}
	if string(header.Subchunk1ID[:]) != "fmt " {
		return nil, fmt.Errorf("invalid WAV file: missing fmt chunk")
	}
	if string(header.Subchunk2ID[:]) != "data" {
		return nil, fmt.Errorf("invalid WAV file: missing data chunk")
	}
	if header.SampleRate == 0 {
		return nil, fmt.Errorf("invalid WAV file: zero sample rate")
	}
	if header.BitsPerSample == 0 || header.NumChannels == 0 {
		return nil, fmt.Errorf("invalid WAV file: zero bits per sample or channels")
	}

	bytesPerSample := int(header.BitsPerSample) / 8
	if bytesPerSample == 0 {
		bytesPerSample = 1
	}
	numSamples := int(header.Subchunk2Size) / bytesPerSample / int(header.NumChannels)

	return &WAVInfo{
		SampleRate:    int(header.SampleRate),
		Channels:      int(header.NumChannels),
		BitsPerSample: int(header.BitsPerSample),
		Duration:      float64(numSamples) / float64(header.SampleRate),
		DataSize:      int(header.Subchunk2Size),
	}, nil
}

// sampleAmplitudes reads up to maxBytes of 16-bit little-endian samples
// starting after the WAV header and returns their mean absolute amplitude and
// peak. Returns false when the buffer holds no usable sample data.
func sampleAmplitudes(data []byte, maxBytes int) (mean float64, peak int, ok bool) {
	if len(data) <= wavHeaderSize+1 {
		return 0, 0, false
	}

	samples := data[wavHeaderSize:]
	if len(samples) > maxBytes {
		samples = samples[:maxBytes]
	}

	count := len(samples) / 2
	if count == 0 {
		return 0, 0, false
	}

	var sum float64
	for i := 0; i < count; i++ {
		s := int(int16(binary.LittleEndian.Uint16(samples[i*2 : i*2+2])))
		if s < 0 {
			s = -s
		}
		sum += float64(s)
		if s > peak {
			peak = s
		}
	}

	return sum / float64(count), peak, true
}
