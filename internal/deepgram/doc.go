// Package deepgram implements the provider client for Deepgram's pre-recorded
// transcription API. Each call flows through the rate limiter, circuit
// breaker, and retry handler before the audio bytes are posted; responses are
// parsed into the normalized transcription model with empty-transcript
// diagnosis.
package deepgram
