package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// sampleBatchSize bounds the rows of one INSERT.
const sampleBatchSize = 500

// GormSessionRepository implements SessionRepository using GORM.
type GormSessionRepository struct {
	db *gorm.DB
}

// NewGormSessionRepository creates a new GormSessionRepository.
func NewGormSessionRepository(db *gorm.DB) *GormSessionRepository {
	return &GormSessionRepository{db: db}
}

// CreateSession inserts a new session in the running state.
func (r *GormSessionRepository) CreateSession(ctx context.Context, session *BenchSession) error {
	if session.Status == "" {
		session.Status = SessionRunning
	}
	if session.StartedAt.IsZero() {
		session.StartedAt = time.Now()
	}
	if err := r.db.WithContext(ctx).Create(session).Error; err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}
	return nil
}

// FinishSession marks a session completed or failed.
func (r *GormSessionRepository) FinishSession(ctx context.Context, sessionID string, status SessionStatus, errMsg string, finishedAt time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&BenchSession{}).
		Where("session_id = ?", sessionID).
		Updates(map[string]interface{}{
			"status":      status,
			"error":       errMsg,
			"finished_at": finishedAt,
		})

	if res.Error != nil {
		return fmt.Errorf("failed to update session: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("session %s: %w", sessionID, ErrNotFound)
	}
	return nil
}

// GetSession retrieves a session by its UUID.
func (r *GormSessionRepository) GetSession(ctx context.Context, sessionID string) (*BenchSession, error) {
	var session BenchSession
	err := r.db.WithContext(ctx).Where("session_id = ?", sessionID).First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("session %s: %w", sessionID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to query session: %w", err)
	}
	return &session, nil
}

// GormSampleRepository implements SampleRepository using GORM.
type GormSampleRepository struct {
	db *gorm.DB
}

// NewGormSampleRepository creates a new GormSampleRepository.
func NewGormSampleRepository(db *gorm.DB) *GormSampleRepository {
	return &GormSampleRepository{db: db}
}

// SaveSamples inserts samples in batches.
func (r *GormSampleRepository) SaveSamples(ctx context.Context, samples []BenchSample) error {
	if len(samples) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).CreateInBatches(samples, sampleBatchSize).Error; err != nil {
		return fmt.Errorf("failed to insert samples: %w", err)
	}
	return nil
}

// ListSamples returns the samples of a session ordered by insertion.
func (r *GormSampleRepository) ListSamples(ctx context.Context, sessionID string) ([]BenchSample, error) {
	var samples []BenchSample
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("id ASC").
		Find(&samples).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query samples: %w", err)
	}
	return samples, nil
}

// CountSamples returns the number of samples of a session.
func (r *GormSampleRepository) CountSamples(ctx context.Context, sessionID string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&BenchSample{}).Where("session_id = ?", sessionID).Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count samples: %w", err)
	}
	return n, nil
}
