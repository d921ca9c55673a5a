// Package transcripts provides access to call transcripts produced by the
// recording pipeline, plus the analyzers that judge whether a transcript
// contains substantive two-party dialogue.
package transcripts

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrNotReady means the recording pipeline has not delivered a transcript
// for the call yet. Callers keep waiting; absence alone never means failure.
var ErrNotReady = errors.New("transcripts: not yet available")

// Transcript is the payload delivered by the recording pipeline.
type Transcript struct {
	CallID   uuid.UUID `json:"call_id"`
	OrgID    string    `json:"org_id"`
	Speakers int       `json:"speakers"`
	Chars    int       `json:"chars"`
	Text     string    `json:"text,omitempty"`
}

// Provider fetches a call's transcript.
type Provider interface {
	Fetch(ctx context.Context, orgID string, callID uuid.UUID) (*Transcript, error)
}
