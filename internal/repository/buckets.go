package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/htsget-drs-server/internal/domain"
)

// batchCommitSize bounds how many bucket rows one transaction carries so
// long bulk inserts during indexing commit incrementally.
const batchCommitSize = 512

// CreatePosBuckets upserts a batch of bucket associations for one
// variantfile. The three slices are parallel run-length output: bucket id,
// canonical contig, and the record count of that run. PositionBucket rows
// are created lazily and the contig is attached to the variantfile on first
// sight.
func (r *Repository) CreatePosBuckets(ctx context.Context, variantfileID string, posBucketIDs []int64, contigs []string, counts []int64) error {
	if len(posBucketIDs) != len(contigs) || len(posBucketIDs) != len(counts) {
		return fmt.Errorf("bucket batch slices differ in length: %w", domain.ErrBadRequest)
	}

	seenContigs := map[string]bool{}
	for start := 0; start < len(posBucketIDs); start += batchCommitSize {
		end := start + batchCommitSize
		if end > len(posBucketIDs) {
			end = len(posBucketIDs)
		}
		if err := r.createPosBucketBatch(ctx, variantfileID, posBucketIDs[start:end], contigs[start:end], counts[start:end], seenContigs); err != nil {
			return err
		}
	}

	r.log.WithFields(logrus.Fields{
		"variantfile": variantfileID,
		"buckets":     len(posBucketIDs),
	}).Info("Position buckets written")
	return nil
}

func (r *Repository) createPosBucketBatch(ctx context.Context, variantfileID string, posBucketIDs []int64, contigs []string, counts []int64, seenContigs map[string]bool) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning bucket transaction: %w", err)
	}
	defer tx.Rollback()

	for i := range posBucketIDs {
		contig := contigs[i]
		if !seenContigs[contig] {
			if _, err := tx.ExecContext(ctx, `
				INSERT OR IGNORE INTO contig_variantfile (contig_id, variantfile_id)
				VALUES (?, ?)`, contig, variantfileID); err != nil {
				return fmt.Errorf("attaching contig %s: %w", contig, err)
			}
			seenContigs[contig] = true
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO pos_buckets (pos_bucket_id, contig_id)
			VALUES (?, ?)`, posBucketIDs[i], contig); err != nil {
			return fmt.Errorf("creating pos bucket: %w", err)
		}
		var bucketRow int64
		if err := tx.QueryRowContext(ctx,
			`SELECT id FROM pos_buckets WHERE pos_bucket_id = ? AND contig_id = ?`,
			posBucketIDs[i], contig).Scan(&bucketRow); err != nil {
			return fmt.Errorf("resolving pos bucket: %w", err)
		}

		// a file may revisit a bucket across runs; counts accumulate
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO pos_bucket_variantfile (pos_bucket, variantfile_id, bucket_count)
			VALUES (?, ?, ?)
			ON CONFLICT(pos_bucket, variantfile_id) DO UPDATE SET
				bucket_count = bucket_count + excluded.bucket_count`,
			bucketRow, variantfileID, counts[i]); err != nil {
			return fmt.Errorf("upserting bucket association: %w", err)
		}
	}
	return tx.Commit()
}

// GetVariantCountForVariantFile returns the ordered bucket list for all
// buckets of one contig intersecting [start, end). start=0 with end=-1
// means the whole contig. Bucket matching is on pos_bucket_id, so the
// result is a coarse count; the planner treats it as such.
func (r *Repository) GetVariantCountForVariantFile(ctx context.Context, variantfileID, contig string, start, end int64) ([]domain.Bucket, error) {
	query := `
		SELECT pb.pos_bucket_id, a.bucket_count
		FROM pos_bucket_variantfile a
		JOIN pos_buckets pb ON pb.id = a.pos_bucket
		WHERE a.variantfile_id = ? AND pb.contig_id = ?`
	args := []interface{}{variantfileID, contig}

	if start != 0 || end != -1 {
		query += ` AND pb.pos_bucket_id >= ?`
		args = append(args, r.BucketOf(start))
		if end != -1 {
			// inclusive: the bucket holding end still intersects the region
			query += ` AND pb.pos_bucket_id <= ?`
			args = append(args, r.BucketOf(end))
		}
	}
	query += ` ORDER BY pb.pos_bucket_id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying bucket counts: %w", err)
	}
	defer rows.Close()

	var buckets []domain.Bucket
	for rows.Next() {
		var b domain.Bucket
		if err := rows.Scan(&b.PosBucketID, &b.Count); err != nil {
			return nil, fmt.Errorf("scanning bucket: %w", err)
		}
		buckets = append(buckets, b)
	}
	return buckets, rows.Err()
}

// SearchQuery narrows variantfiles by an optional region and optional
// header substring predicates.
type SearchQuery struct {
	Region  *domain.Region
	Headers []string
}

// Search returns per-variantfile total counts over a region, optionally
// filtered to files whose header set matches any of the header predicates.
// Only indexed files are considered. Retries transient store errors.
func (r *Repository) Search(ctx context.Context, q SearchQuery) ([]domain.SearchResult, error) {
	return withRetry(r, "search", func() ([]domain.SearchResult, error) {
		return r.search(ctx, q)
	})
}

func (r *Repository) search(ctx context.Context, q SearchQuery) ([]domain.SearchResult, error) {
	var sb strings.Builder
	args := []interface{}{}

	if q.Region != nil {
		sb.WriteString(`
			SELECT vf.id, SUM(a.bucket_count), vf.reference_genome
			FROM variantfiles vf
			JOIN pos_bucket_variantfile a ON a.variantfile_id = vf.id
			JOIN pos_buckets pb ON pb.id = a.pos_bucket
			WHERE vf.indexed = 1 AND pb.contig_id = ?`)
		args = append(args, q.Region.ReferenceName)
		if q.Region.Start != 0 || q.Region.End != -1 {
			sb.WriteString(` AND pb.pos_bucket_id >= ?`)
			args = append(args, r.BucketOf(q.Region.Start))
			if q.Region.End != -1 {
				sb.WriteString(` AND pb.pos_bucket_id <= ?`)
				args = append(args, r.BucketOf(q.Region.End))
			}
		}
	} else {
		sb.WriteString(`
			SELECT vf.id, COALESCE(SUM(a.bucket_count), 0), vf.reference_genome
			FROM variantfiles vf
			LEFT JOIN pos_bucket_variantfile a ON a.variantfile_id = vf.id
			WHERE vf.indexed = 1`)
	}

	if len(q.Headers) > 0 {
		likes := make([]string, len(q.Headers))
		for i, h := range q.Headers {
			likes[i] = `h.text LIKE ?`
			args = append(args, "%"+h+"%")
		}
		sb.WriteString(` AND EXISTS (
			SELECT 1 FROM header_variantfile hv
			JOIN headers h ON h.id = hv.header_id
			WHERE hv.variantfile_id = vf.id AND (` + strings.Join(likes, " OR ") + `))`)
	}

	sb.WriteString(` GROUP BY vf.id ORDER BY vf.id`)

	rows, err := r.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("searching variantfiles: %w", err)
	}
	defer rows.Close()

	var results []domain.SearchResult
	for rows.Next() {
		var res domain.SearchResult
		if err := rows.Scan(&res.DrsObjectID, &res.VariantCount, &res.ReferenceGenome); err != nil {
			return nil, fmt.Errorf("scanning search result: %w", err)
		}
		results = append(results, res)
	}
	return results, rows.Err()
}
