package qualification

import (
	"context"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// WorkerQualification is one granted qualification row. The (worker, name)
// pair is unique, which is what makes GrantPunitive idempotent under
// concurrent callers.
type WorkerQualification struct {
	ID            uint      `gorm:"primaryKey"`
	WorkerID      string    `gorm:"uniqueIndex:idx_worker_qualification;size:128"`
	Qualification string    `gorm:"uniqueIndex:idx_worker_qualification;size:128"`
	Value         int       `gorm:"default:1"`
	Reason        string    `gorm:"size:512"`
	GrantedAt     time.Time ``
}

// Store persists worker qualifications in a relational database.
type Store struct {
	db            *gorm.DB
	qualification string
	logger        *zap.Logger
}

// Open opens (or creates) the SQLite qualification database at path.
// ":memory:" gives an ephemeral database for tests.
func Open(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open qualification database: %w", err)
	}
	return db, nil
}

// NewStore migrates the schema and binds the store to one qualification
// name (the deployment's block qualification).
func NewStore(db *gorm.DB, qualificationName string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := db.AutoMigrate(&WorkerQualification{}); err != nil {
		return nil, fmt.Errorf("migrate qualification schema: %w", err)
	}
	return &Store{
		db:            db,
		qualification: qualificationName,
		logger:        logger.With(zap.String("component", "qualification_store")),
	}, nil
}

// GrantPunitive upserts the block qualification for the worker. Re-granting
// is a no-op.
func (s *Store) GrantPunitive(ctx context.Context, workerID, reason string) error {
	row := WorkerQualification{
		WorkerID:      workerID,
		Qualification: s.qualification,
		Value:         1,
		Reason:        reason,
		GrantedAt:     time.Now(),
	}

	result := s.db.WithContext(ctx).
		Where(WorkerQualification{WorkerID: workerID, Qualification: s.qualification}).
		FirstOrCreate(&row)
	if result.Error != nil {
		return fmt.Errorf("grant qualification: %w", result.Error)
	}

	if result.RowsAffected > 0 {
		s.logger.Warn("punitive qualification granted",
			zap.String("worker_id", workerID),
			zap.String("qualification", s.qualification),
			zap.String("reason", reason),
		)
	}
	return nil
}

// Has reports whether the worker already holds the block qualification.
func (s *Store) Has(ctx context.Context, workerID string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&WorkerQualification{}).
		Where("worker_id = ? AND qualification = ?", workerID, s.qualification).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("query qualification: %w", err)
	}
	return count > 0, nil
}
