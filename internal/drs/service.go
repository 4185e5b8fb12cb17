package drs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/htsget-drs-server/internal/domain"
	"github.com/htsget-drs-server/internal/repository"
)

// Service implements the DRS object graph operations on top of the
// catalog repository and the S3 presigner.
type Service struct {
	repo         *repository.Repository
	s3           domain.S3URLProvider
	indexingPath string
	log          *logrus.Logger
}

// NewService creates a DRS service. indexingPath is the touch-file queue
// directory shared with the indexing worker.
func NewService(repo *repository.Repository, s3 domain.S3URLProvider, indexingPath string, log *logrus.Logger) *Service {
	return &Service{repo: repo, s3: s3, indexingPath: indexingPath, log: log}
}

// Repo exposes the underlying catalog for callers that need read access
// beyond the DRS surface.
func (s *Service) Repo() *repository.Repository { return s.repo }

// GetObject fetches one DRS object by id or name.
func (s *Service) GetObject(ctx context.Context, id string) (*domain.DrsObject, error) {
	return s.repo.GetDrsObject(ctx, id)
}

// ListObjects lists the catalog, optionally narrowed to one cohort.
func (s *Service) ListObjects(ctx context.Context, cohort string) ([]*domain.DrsObject, error) {
	return s.repo.ListDrsObjects(ctx, cohort)
}

// CreateObject upserts a DRS object. When the object is genomic and names
// a reference genome, its variantfile row is created and the object is
// queued for indexing.
func (s *Service) CreateObject(ctx context.Context, obj *domain.DrsObject) (*domain.DrsObject, error) {
	created, err := s.repo.CreateDrsObject(ctx, obj)
	if err != nil {
		return nil, err
	}
	if obj.IsGenomic() && obj.ReferenceGenome != "" {
		if err := s.EnqueueIndexing(created.Cohort, created.ID); err != nil {
			s.log.WithError(err).WithField("object", created.ID).Warn("Could not queue object for indexing")
		}
	}
	return created, nil
}

// DeleteObject removes an object and its children from the catalog.
func (s *Service) DeleteObject(ctx context.Context, id string) error {
	return s.repo.DeleteDrsObject(ctx, id)
}

// ListCohorts returns all cohort ids.
func (s *Service) ListCohorts(ctx context.Context) ([]string, error) {
	return s.repo.ListCohorts(ctx)
}

// GetCohort returns one cohort.
func (s *Service) GetCohort(ctx context.Context, id string) (*domain.Cohort, error) {
	return s.repo.GetCohort(ctx, id)
}

// CreateCohort registers a cohort id.
func (s *Service) CreateCohort(ctx context.Context, id string) (*domain.Cohort, error) {
	return s.repo.CreateCohort(ctx, id)
}

// DeleteCohort removes a cohort and all objects scoped to it.
func (s *Service) DeleteCohort(ctx context.Context, id string) error {
	return s.repo.DeleteCohort(ctx, id)
}

// EnqueueIndexing drops a touch file named cohort~objectID into the queue
// directory; the indexing worker picks it up from there.
func (s *Service) EnqueueIndexing(cohort, objectID string) error {
	if err := os.MkdirAll(s.indexingPath, 0o755); err != nil {
		return fmt.Errorf("creating indexing queue dir: %w", err)
	}
	name := filepath.Join(s.indexingPath, QueueItemName(cohort, objectID))
	f, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("queueing %s for indexing: %w", objectID, err)
	}
	defer f.Close()
	s.log.WithFields(logrus.Fields{"object": objectID, "cohort": cohort}).Info("Object queued for indexing")
	return nil
}

// QueueItemName builds the queue filename for one object. The cohort
// travels in the name so the worker can report per-cohort status without
// a catalog lookup.
func QueueItemName(cohort, objectID string) string {
	return cohort + "~" + objectID
}

// ParseQueueItemName splits a queue filename back into cohort and object.
// Legacy names without a separator map to an empty cohort.
func ParseQueueItemName(name string) (cohort, objectID string) {
	if i := strings.Index(name, "~"); i >= 0 {
		return name[:i], name[i+1:]
	}
	return "", name
}

// CohortStatus reports indexing progress for every genomic object in a
// cohort: indexed objects are complete, queued objects whose touch file
// has accumulated error lines are errored, the rest are in progress.
func (s *Service) CohortStatus(ctx context.Context, cohortID string) (*domain.CohortStatus, error) {
	if _, err := s.repo.GetCohort(ctx, cohortID); err != nil {
		return nil, err
	}
	objects, err := s.repo.ListDrsObjects(ctx, cohortID)
	if err != nil {
		return nil, err
	}

	status := &domain.CohortStatus{
		IndexComplete:   []string{},
		IndexInProgress: []string{},
		IndexErrored:    []string{},
	}
	for _, obj := range objects {
		if !obj.IsGenomic() {
			continue
		}
		vf, err := s.repo.GetVariantFile(ctx, obj.ID)
		if err == nil && vf.Indexed == 1 {
			status.IndexComplete = append(status.IndexComplete, obj.ID)
			continue
		}
		queueFile := filepath.Join(s.indexingPath, QueueItemName(cohortID, obj.ID))
		if info, statErr := os.Stat(queueFile); statErr == nil && info.Size() > 0 {
			status.IndexErrored = append(status.IndexErrored, obj.ID)
			continue
		}
		status.IndexInProgress = append(status.IndexInProgress, obj.ID)
	}
	return status, nil
}
