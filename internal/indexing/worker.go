package indexing

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"github.com/htsget-drs-server/internal/domain"
	"github.com/htsget-drs-server/internal/drs"
	"github.com/htsget-drs-server/internal/repository"
	"github.com/htsget-drs-server/internal/variants"
)

// Worker is the single-writer indexing process. It drains the touch-file
// queue directory on startup, then watches it for new items. Each item is
// processed whole: on success the file is deleted, on failure a
// timestamped error line is appended so the cohort status endpoint can
// surface it.
type Worker struct {
	repo *repository.Repository
	drs  *drs.Service
	path string
	log  *logrus.Logger
}

// NewWorker creates the indexing worker over the given queue directory.
func NewWorker(repo *repository.Repository, drsSvc *drs.Service, path string, log *logrus.Logger) *Worker {
	return &Worker{repo: repo, drs: drsSvc, path: path, log: log}
}

// Run drains the backlog and then blocks on filesystem events until ctx
// is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	if err := os.MkdirAll(w.path, 0o755); err != nil {
		return fmt.Errorf("creating queue directory: %w", err)
	}

	w.log.WithField("path", w.path).Info("Indexing worker started")
	if err := w.drainBacklog(ctx); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating queue watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(w.path); err != nil {
		return fmt.Errorf("watching queue directory: %w", err)
	}

	w.log.WithField("path", w.path).Info("Listening for new queue items")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op.Has(fsnotify.Create) {
				w.process(ctx, filepath.Base(event.Name))
			}
		case werr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.log.WithError(werr).Warn("Queue watcher error")
		}
	}
}

// drainBacklog keeps listing the queue until it is empty; items queued
// while the backlog is processed are picked up by the re-list.
func (w *Worker) drainBacklog(ctx context.Context) error {
	for {
		entries, err := os.ReadDir(w.path)
		if err != nil {
			return fmt.Errorf("listing queue directory: %w", err)
		}
		pending := []string{}
		for _, entry := range entries {
			if !entry.IsDir() {
				if info, err := entry.Info(); err == nil && info.Size() == 0 {
					pending = append(pending, entry.Name())
				}
			}
		}
		if len(pending) == 0 {
			return nil
		}
		w.log.WithField("items", len(pending)).Info("Draining indexing backlog")
		for _, name := range pending {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.process(ctx, name)
		}
	}
}

// process handles one queue item end to end.
func (w *Worker) process(ctx context.Context, name string) {
	cohort, objectID := drs.ParseQueueItemName(name)
	itemPath := filepath.Join(w.path, name)
	logger := w.log.WithFields(logrus.Fields{"object": objectID, "cohort": cohort})

	logger.Info("Indexing started")
	if err := w.IndexObject(ctx, objectID); err != nil {
		logger.WithError(err).Error("Indexing failed")
		line := fmt.Sprintf("%s %v\n", time.Now().UTC().Format(time.RFC3339), err)
		f, ferr := os.OpenFile(itemPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if ferr == nil {
			f.WriteString(line)
			f.Close()
		}
		return
	}
	os.Remove(itemPath)
	logger.Info("Indexing complete")
}

var contigHeaderRe = regexp.MustCompile(`##contig=<ID=([^,>]+)`)

// IndexObject runs the whole indexing pass for one DRS object: stats,
// headers, samples, chr prefix, then the position-bucket build. Read
// files get stats only. The indexed flag flips strictly after all index
// rows are durable.
func (w *Worker) IndexObject(ctx context.Context, objectID string) error {
	if _, err := w.drs.CalculateStats(ctx, objectID); err != nil {
		return fmt.Errorf("calculating stats: %w", err)
	}

	gen, err := w.drs.GetGenomicObject(ctx, objectID)
	if err != nil {
		return err
	}
	defer gen.Close()
	if gen.Type != "variant" {
		return nil
	}

	if _, err := w.repo.GetVariantFile(ctx, objectID); err != nil {
		if _, cerr := w.repo.CreateVariantFile(ctx, &domain.VariantFile{ID: objectID}); cerr != nil {
			return cerr
		}
	}

	headerLines := gen.File.HeaderLines()
	if err := w.repo.AddHeadersForVariantFile(ctx, objectID, headerLines); err != nil {
		return err
	}
	w.log.WithFields(logrus.Fields{"object": objectID, "headers": len(headerLines)}).Info("Headers indexed")

	for _, sample := range gen.File.Samples() {
		if err := w.repo.CreateSample(ctx, sample, objectID); err != nil {
			return fmt.Errorf("adding sample %s: %w", sample, err)
		}
	}

	if err := w.setChrPrefix(ctx, objectID, headerLines); err != nil {
		return err
	}

	builder := &runBuilder{}
	unknown := map[string]bool{}
	err = gen.File.Fetch("", 0, -1, func(rec *variants.Record) error {
		canonical, nerr := w.repo.NormalizeContig(ctx, rec.Chrom)
		if nerr != nil {
			return nerr
		}
		if canonical == "" {
			if !unknown[rec.Chrom] {
				unknown[rec.Chrom] = true
				w.log.WithFields(logrus.Fields{"object": objectID, "contig": rec.Chrom}).
					Warn("Contig does not correspond to a known chromosome")
			}
			return nil
		}
		builder.Add(w.repo.BucketOf(rec.Pos), canonical)
		return nil
	})
	if err != nil {
		return fmt.Errorf("scanning records: %w", err)
	}

	buckets, contigs, counts := builder.Runs()
	w.log.WithFields(logrus.Fields{"object": objectID, "records": builder.Total(), "runs": len(buckets)}).
		Info("Writing position buckets")
	if err := w.repo.CreatePosBuckets(ctx, objectID, buckets, contigs, counts); err != nil {
		return err
	}

	return w.repo.MarkVariantFileIndexed(ctx, objectID)
}

// setChrPrefix derives how the file spells chromosomes from the first
// declared contig that normalizes, falling back to nothing when the
// header declares none.
func (w *Worker) setChrPrefix(ctx context.Context, objectID string, headerLines []string) error {
	for _, line := range headerLines {
		m := contigHeaderRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		canonical, err := w.repo.NormalizeContig(ctx, m[1])
		if err != nil {
			return err
		}
		if canonical == "" {
			continue
		}
		prefix, err := w.repo.ContigPrefix(ctx, m[1])
		if err != nil {
			return err
		}
		return w.repo.SetVariantFilePrefix(ctx, objectID, prefix)
	}
	return nil
}
