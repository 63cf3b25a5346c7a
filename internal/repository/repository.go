// Package repository persists benchmark sessions and their timing samples.
package repository

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// SessionRepository stores one row per benchmark sweep.
type SessionRepository interface {
	// CreateSession inserts a new session in the running state.
	CreateSession(ctx context.Context, session *BenchSession) error

	// FinishSession marks a session completed or failed.
	FinishSession(ctx context.Context, sessionID string, status SessionStatus, errMsg string, finishedAt time.Time) error

	// GetSession retrieves a session by its UUID.
	GetSession(ctx context.Context, sessionID string) (*BenchSession, error)
}

// SampleRepository stores the elapsed time of every run.
type SampleRepository interface {
	// SaveSamples inserts samples in batches.
	SaveSamples(ctx context.Context, samples []BenchSample) error

	// ListSamples returns the samples of a session ordered by insertion.
	ListSamples(ctx context.Context, sessionID string) ([]BenchSample, error)

	// CountSamples returns the number of samples of a session.
	CountSamples(ctx context.Context, sessionID string) (int64, error)
}
