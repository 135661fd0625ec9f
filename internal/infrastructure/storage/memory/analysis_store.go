package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"wallet-cluster-analyzer/internal/domain/entity"
	"wallet-cluster-analyzer/internal/domain/repository"
	"wallet-cluster-analyzer/internal/infrastructure/logger"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"
)

// AnalysisStore implements repository.AnalysisRepository as a bounded in-process cache.
// Jobs expire after ttl and the least recently used job is evicted once size is reached.
type AnalysisStore struct {
	mu     sync.Mutex
	cache  *expirable.LRU[string, *entity.AnalysisJob]
	logger *logger.Logger
}

// NewAnalysisStore creates a new analysis store
func NewAnalysisStore(size int, ttl time.Duration, logger *logger.Logger) *AnalysisStore {
	log := logger.WithComponent("analysis-store")
	onEvict := func(id string, job *entity.AnalysisJob) {
		log.Debug("Analysis evicted",
			zap.String("analysis_id", id),
			zap.String("status", string(job.Status)))
	}
	return &AnalysisStore{
		cache:  expirable.NewLRU[string, *entity.AnalysisJob](size, onEvict, ttl),
		logger: log,
	}
}

// Save stores a copy of job
func (s *AnalysisStore) Save(ctx context.Context, job *entity.AnalysisJob) error {
	if job == nil || job.ID == "" {
		return fmt.Errorf("cannot save analysis without id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cache.Add(job.ID, job.Clone())
	return nil
}

// Get returns a copy of the stored job
func (s *AnalysisStore) Get(ctx context.Context, id string) (*entity.AnalysisJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.cache.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", repository.ErrAnalysisNotFound, id)
	}
	return job.Clone(), nil
}

// Update applies fn to a copy of the stored job and stores the result
func (s *AnalysisStore) Update(ctx context.Context, id string, fn func(job *entity.AnalysisJob)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.cache.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", repository.ErrAnalysisNotFound, id)
	}

	updated := job.Clone()
	fn(updated)
	updated.ID = id
	updated.UpdatedAt = time.Now().UTC()
	s.cache.Add(id, updated)
	return nil
}

// Delete removes a job
func (s *AnalysisStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.cache.Remove(id) {
		return fmt.Errorf("%w: %s", repository.ErrAnalysisNotFound, id)
	}
	return nil
}

// Len returns the number of live jobs
func (s *AnalysisStore) Len() int {
	return s.cache.Len()
}
