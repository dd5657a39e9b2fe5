// Package record assembles the terminal record of a completed conversation
// and writes it durably through a Sink. A record is written as one
// self-contained document, at most once per conversation.
package record

import (
	"context"
	"time"

	"github.com/crowdchat/parley/types"
)

// TerminalRecord is the persisted shape of one finished conversation: the
// full transcript plus derived metadata. It is assembled exactly once, at
// the instant the conversation becomes done, and owned by the sink after
// Write returns.
type TerminalRecord struct {
	ConversationID          string            `json:"conversation_id"`
	DatasetTag              string            `json:"context_dataset"`
	TaskType                string            `json:"task_type"`
	ModelIdentity           string            `json:"model_identity"`
	WorkerID                string            `json:"worker_id"`
	Personas                []types.Persona   `json:"personas"`
	Location                *types.Location   `json:"location,omitempty"`
	Dialog                  []types.Utterance `json:"dialog"`
	AcceptabilityViolations []string          `json:"acceptability_violations"`
	FinalRating             *types.Rating     `json:"final_rating,omitempty"`
	CompletedAt             time.Time         `json:"completed_at"`
}

// HasViolations reports whether any acceptability violation was flagged.
// Empty strings in the list do not count; the original pipeline used "" as
// the no-violation marker.
func (r *TerminalRecord) HasViolations() bool {
	for _, v := range r.AcceptabilityViolations {
		if v != "" {
			return true
		}
	}
	return false
}

// Sink durably writes terminal records.
//
// Write must be called at most once per completed conversation; a second
// write for the same conversation ID fails with an ALREADY_WRITTEN error.
// The returned location identifies where the record landed (a file path, a
// storage key).
type Sink interface {
	Write(ctx context.Context, rec *TerminalRecord) (string, error)
}

// Backend names a sink implementation.
type Backend string

const (
	BackendMemory Backend = "memory"
	BackendFile   Backend = "file"
	BackendRedis  Backend = "redis"
)

func validateRecord(rec *TerminalRecord) error {
	if rec == nil {
		return types.NewError(types.ErrInvalidMessage, "nil terminal record")
	}
	if rec.ConversationID == "" {
		return types.NewError(types.ErrInvalidMessage, "terminal record has no conversation ID")
	}
	return nil
}
