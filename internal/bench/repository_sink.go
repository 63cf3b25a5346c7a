package bench

import (
	"context"

	"github.com/histobench/internal/repository"
	apperrors "github.com/histobench/pkg/errors"
)

// RepositorySink persists samples of a session, one batch per configuration.
type RepositorySink struct {
	NopSink
	ctx       context.Context
	repo      repository.SampleRepository
	sessionID string
	pending   []repository.BenchSample
}

// NewRepositorySink creates a sink writing to repo under sessionID.
func NewRepositorySink(ctx context.Context, repo repository.SampleRepository, sessionID string) *RepositorySink {
	return &RepositorySink{ctx: ctx, repo: repo, sessionID: sessionID}
}

func (s *RepositorySink) OnSample(smp Sample) error {
	c := smp.Config
	s.pending = append(s.pending, repository.BenchSample{
		SessionID: s.sessionID,
		Strategy:  string(c.Strategy),
		Policy:    string(c.Policy),
		Threads:   c.Workers,
		ChunkSize: c.ChunkSize,
		Run:       smp.Run,
		ElapsedNs: smp.Elapsed.Nanoseconds(),
		Valid:     smp.Valid,
	})
	return nil
}

func (s *RepositorySink) OnResult(*Result) error {
	return s.flush()
}

func (s *RepositorySink) Close() error {
	return s.flush()
}

func (s *RepositorySink) flush() error {
	if len(s.pending) == 0 {
		return nil
	}
	batch := s.pending
	s.pending = nil
	if err := s.repo.SaveSamples(s.ctx, batch); err != nil {
		return apperrors.Wrap(apperrors.CodeDatabaseError, "failed to save samples", err)
	}
	return nil
}
