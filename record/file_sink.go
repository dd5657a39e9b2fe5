package record

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/crowdchat/parley/types"
)

// FileSink writes each record as a single JSON document under a dated
// directory. Path shape:
//
//	<base>/<YYYY_MM_DD>/<YYYYMMDD_HHMMSS>_<disambiguator>_<taskType>.json
//
// The wall-clock components plus a random disambiguator make collisions
// practically impossible without a transactional store.
type FileSink struct {
	baseDir  string
	taskType string
	logger   *zap.Logger

	// now is swappable for tests.
	now func() time.Time

	mu      sync.Mutex
	written map[string]string // conversationID -> location
}

// NewFileSink creates the base directory if needed.
func NewFileSink(baseDir, taskType string, logger *zap.Logger) (*FileSink, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create chat data directory: %w", err)
	}
	return &FileSink{
		baseDir:  baseDir,
		taskType: taskType,
		logger:   logger.With(zap.String("component", "file_sink")),
		now:      time.Now,
		written:  make(map[string]string),
	}, nil
}

// Write persists the record atomically (temp file then rename) and returns
// the final path. A repeated write for the same conversation fails.
func (s *FileSink) Write(ctx context.Context, rec *TerminalRecord) (string, error) {
	if err := validateRecord(rec); err != nil {
		return "", err
	}

	s.mu.Lock()
	if loc, ok := s.written[rec.ConversationID]; ok {
		s.mu.Unlock()
		return "", types.NewErrorf(types.ErrAlreadyWritten, "record for conversation %s already written to %s", rec.ConversationID, loc)
	}
	s.mu.Unlock()

	now := s.now()
	dir := filepath.Join(s.baseDir, now.Format("2006_01_02"))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create dated directory: %w", err)
	}

	disambiguator := uuid.NewString()[:8]
	name := fmt.Sprintf("%s_%s_%s.json", now.Format("20060102_150405"), disambiguator, s.taskType)
	path := filepath.Join(dir, name)

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal terminal record: %w", err)
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0o644); err != nil {
		return "", fmt.Errorf("write terminal record: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		return "", fmt.Errorf("finalize terminal record: %w", err)
	}

	s.mu.Lock()
	s.written[rec.ConversationID] = path
	s.mu.Unlock()

	s.logger.Info("terminal record saved",
		zap.String("conversation_id", rec.ConversationID),
		zap.String("model", rec.ModelIdentity),
		zap.String("path", path),
	)
	return path, nil
}
