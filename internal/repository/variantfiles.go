package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/htsget-drs-server/internal/domain"
)

// CreateVariantFile upserts the VariantFile row for a genomic DRS object.
// The indexed flag is preserved on conflict so re-posting metadata does not
// reset indexing state.
func (r *Repository) CreateVariantFile(ctx context.Context, vf *domain.VariantFile) (*domain.VariantFile, error) {
	genome := vf.ReferenceGenome
	if genome == "" {
		genome = "hg38"
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO variantfiles (id, reference_genome, genomic_id)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			reference_genome = excluded.reference_genome,
			genomic_id = CASE WHEN excluded.genomic_id != '' THEN excluded.genomic_id ELSE variantfiles.genomic_id END`,
		vf.ID, genome, vf.GenomicID)
	if err != nil {
		return nil, fmt.Errorf("creating variantfile: %w", err)
	}
	return r.GetVariantFile(ctx, vf.ID)
}

// GetVariantFile retrieves a VariantFile, retrying transient store errors.
func (r *Repository) GetVariantFile(ctx context.Context, id string) (*domain.VariantFile, error) {
	return withRetry(r, "get_variantfile", func() (*domain.VariantFile, error) {
		var vf domain.VariantFile
		err := r.db.QueryRowContext(ctx, `
			SELECT id, indexed, chr_prefix, reference_genome, genomic_id
			FROM variantfiles WHERE id = ?`, id).
			Scan(&vf.ID, &vf.Indexed, &vf.ChrPrefix, &vf.ReferenceGenome, &vf.GenomicID)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("variantfile %s: %w", id, domain.ErrNotFound)
		}
		if err != nil {
			return nil, fmt.Errorf("getting variantfile: %w", err)
		}
		vf.DrsObjectID = vf.ID
		return &vf, nil
	})
}

// SetVariantFilePrefix records how the file spells chromosomes.
func (r *Repository) SetVariantFilePrefix(ctx context.Context, id, prefix string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE variantfiles SET chr_prefix = ? WHERE id = ?`, prefix, id)
	if err != nil {
		return fmt.Errorf("setting chr_prefix: %w", err)
	}
	return nil
}

// MarkVariantFileIndexed transitions indexed to 1. The worker calls this
// strictly after all bucket, header and sample rows are durable.
func (r *Repository) MarkVariantFileIndexed(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE variantfiles SET indexed = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("marking variantfile indexed: %w", err)
	}
	r.log.WithField("variantfile", id).Info("Variantfile indexed")
	return nil
}

// ResetVariantFileIndex puts the file back to indexed=0 and drops its index
// rows so a force re-index starts from scratch.
func (r *Repository) ResetVariantFileIndex(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning reset transaction: %w", err)
	}
	defer tx.Rollback()

	stmts := []string{
		`DELETE FROM pos_bucket_variantfile WHERE variantfile_id = ?`,
		`DELETE FROM contig_variantfile WHERE variantfile_id = ?`,
		`DELETE FROM header_variantfile WHERE variantfile_id = ?`,
		`DELETE FROM samples WHERE variantfile_id = ?`,
		`UPDATE variantfiles SET indexed = 0, chr_prefix = '' WHERE id = ?`,
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
			return fmt.Errorf("resetting variantfile index: %w", err)
		}
	}
	return tx.Commit()
}

// AddHeadersForVariantFile persists header lines, deduplicated across files
// by exact text, preserving per-file line order.
func (r *Repository) AddHeadersForVariantFile(ctx context.Context, variantfileID string, texts []string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning header transaction: %w", err)
	}
	defer tx.Rollback()

	for ord, text := range texts {
		if text == "" || strings.HasPrefix(text, "#CHROM") {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO headers (text) VALUES (?)`, text); err != nil {
			return fmt.Errorf("inserting header: %w", err)
		}
		var headerID int64
		if err := tx.QueryRowContext(ctx,
			`SELECT id FROM headers WHERE text = ?`, text).Scan(&headerID); err != nil {
			return fmt.Errorf("resolving header id: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO header_variantfile (header_id, variantfile_id, ord)
			VALUES (?, ?, ?)`, headerID, variantfileID, ord); err != nil {
			return fmt.Errorf("linking header: %w", err)
		}
	}
	return tx.Commit()
}

// GetHeadersForVariantFile returns the file's header lines in order.
func (r *Repository) GetHeadersForVariantFile(ctx context.Context, variantfileID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT h.text FROM headers h
		JOIN header_variantfile hv ON hv.header_id = h.id
		WHERE hv.variantfile_id = ?
		ORDER BY hv.ord`, variantfileID)
	if err != nil {
		return nil, fmt.Errorf("getting headers: %w", err)
	}
	defer rows.Close()

	var texts []string
	for rows.Next() {
		var text string
		if err := rows.Scan(&text); err != nil {
			return nil, fmt.Errorf("scanning header: %w", err)
		}
		texts = append(texts, text)
	}
	return texts, rows.Err()
}

// CreateSample records a sample-name as it appears in the file.
func (r *Repository) CreateSample(ctx context.Context, sampleID, variantfileID string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO samples (sample_id, variantfile_id)
		VALUES (?, ?)`, sampleID, variantfileID)
	if err != nil {
		return fmt.Errorf("creating sample: %w", err)
	}
	return nil
}

// GetSamplesForVariantFile returns the sample names declared in a file.
func (r *Repository) GetSamplesForVariantFile(ctx context.Context, variantfileID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT sample_id FROM samples WHERE variantfile_id = ? ORDER BY id`, variantfileID)
	if err != nil {
		return nil, fmt.Errorf("getting samples: %w", err)
	}
	defer rows.Close()

	var samples []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("scanning sample: %w", err)
		}
		samples = append(samples, s)
	}
	return samples, rows.Err()
}
