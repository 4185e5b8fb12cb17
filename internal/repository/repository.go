package repository

import (
	"database/sql"
	"errors"
	"math/rand"
	"net/url"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"

	"github.com/htsget-drs-server/internal/domain"
)

const (
	maxAttempts     = 3
	minBackoff      = 500 * time.Millisecond
	maxBackoff      = 5 * time.Second
	contigCacheSize = 4096
)

// Repository is the catalog store. It owns all SQL against the schema and
// the position-bucket index queries.
type Repository struct {
	db          *sql.DB
	log         *logrus.Logger
	serviceHost string
	bucketSize  int64

	// contig normalization sits on the hot path of indexing and search
	contigCache *lru.Cache[string, string]
}

// New creates a Repository. serviceHost is used to mint self_uri values;
// a full URL is accepted and reduced to its host. bucketSize is the
// deployment-wide position bucket width in bp.
func New(db *sql.DB, logger *logrus.Logger, serviceHost string, bucketSize int64) (*Repository, error) {
	if u, err := url.Parse(serviceHost); err == nil && u.Host != "" {
		serviceHost = u.Host
	}
	cache, err := lru.New[string, string](contigCacheSize)
	if err != nil {
		return nil, err
	}
	return &Repository{
		db:          db,
		log:         logger,
		serviceHost: serviceHost,
		bucketSize:  bucketSize,
		contigCache: cache,
	}, nil
}

// BucketSize returns the configured position bucket width.
func (r *Repository) BucketSize() int64 {
	return r.bucketSize
}

// BucketOf returns the bucket id a position falls in.
func (r *Repository) BucketOf(pos int64) int64 {
	return (pos / r.bucketSize) * r.bucketSize
}

// withRetry runs fn up to maxAttempts times with a randomized 0.5-5 s
// backoff between attempts. Not-found results are returned immediately;
// the retry budget only covers transient store errors, which matter under
// contention with the single-writer indexer.
func withRetry[T any](r *Repository, op string, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		v, err := fn()
		if err == nil || errors.Is(err, domain.ErrNotFound) || errors.Is(err, sql.ErrNoRows) {
			return v, err
		}
		lastErr = err
		if attempt < maxAttempts {
			backoff := minBackoff + time.Duration(rand.Int63n(int64(maxBackoff-minBackoff)))
			r.log.WithFields(logrus.Fields{
				"op":      op,
				"attempt": attempt,
				"backoff": backoff,
				"error":   err,
			}).Warn("Transient store error, retrying")
			time.Sleep(backoff)
		}
	}
	return zero, lastErr
}
