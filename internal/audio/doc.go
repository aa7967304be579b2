// Package audio handles pre-flight inspection and splitting of audio buffers.
// It implements magic-byte container detection, size validation with an
// advisory WAV silence check, and byte-range chunking with ordered transcript
// merging for inputs that exceed provider upload ceilings.
package audio
