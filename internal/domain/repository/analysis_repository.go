package repository

import (
	"context"
	"errors"

	"wallet-cluster-analyzer/internal/domain/entity"
)

// ErrAnalysisNotFound is returned when an analysis id is unknown or has expired
var ErrAnalysisNotFound = errors.New("analysis not found")

// AnalysisRepository defines the interface for the analysis job registry
type AnalysisRepository interface {
	// Save stores a new job, replacing any job with the same id
	Save(ctx context.Context, job *entity.AnalysisJob) error

	// Get retrieves a copy of the job with the given id
	Get(ctx context.Context, id string) (*entity.AnalysisJob, error)

	// Update applies fn to the stored job atomically
	Update(ctx context.Context, id string, fn func(job *entity.AnalysisJob)) error

	// Delete removes a job
	Delete(ctx context.Context, id string) error

	// Len returns the number of jobs currently held
	Len() int
}
