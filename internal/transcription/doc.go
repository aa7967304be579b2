// Package transcription defines the domain model for speech-to-text requests,
// the closed error taxonomy shared by every component, and the Service that
// orchestrates standard and chunked transcription against a provider client.
package transcription
