package record

import (
	"context"
	"fmt"
	"sync"

	"github.com/crowdchat/parley/types"
)

// MemorySink keeps records in memory. Used in tests and local smoke runs.
type MemorySink struct {
	mu      sync.Mutex
	records map[string]*TerminalRecord
	order   []string
	writes  int
}

// NewMemorySink creates an empty in-memory sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{records: make(map[string]*TerminalRecord)}
}

// Write stores the record under a synthetic location.
func (s *MemorySink) Write(ctx context.Context, rec *TerminalRecord) (string, error) {
	if err := validateRecord(rec); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[rec.ConversationID]; ok {
		return "", types.NewErrorf(types.ErrAlreadyWritten, "record for conversation %s already written", rec.ConversationID)
	}
	s.records[rec.ConversationID] = rec
	s.order = append(s.order, rec.ConversationID)
	s.writes++
	return fmt.Sprintf("memory://%s", rec.ConversationID), nil
}

// Writes returns how many successful writes happened.
func (s *MemorySink) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

// Get returns a stored record by conversation ID.
func (s *MemorySink) Get(conversationID string) (*TerminalRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[conversationID]
	return rec, ok
}

// All returns stored records in write order.
func (s *MemorySink) All() []*TerminalRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*TerminalRecord, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.records[id])
	}
	return out
}
