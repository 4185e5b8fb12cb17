package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/htsget-drs-server/internal/domain"
)

// Refseq search fields.
const (
	RefSeqByGene       = "gene_name"
	RefSeqByTranscript = "transcript_name"
)

// SearchRefSeqs prefix-searches the static refseq table on gene or
// transcript name. Results are ordered by the searched name and then by
// reference genome for deterministic tie-breaks.
func (r *Repository) SearchRefSeqs(ctx context.Context, query, field string) ([]domain.RefSeq, error) {
	if field != RefSeqByGene && field != RefSeqByTranscript {
		return nil, fmt.Errorf("unknown refseq field %q: %w", field, domain.ErrBadRequest)
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT reference_genome, gene_name, transcript_name, contig, start, endpos
		FROM ncbi_refseqs
		WHERE `+field+` LIKE ?
		ORDER BY `+field+`, reference_genome`,
		query+"%")
	if err != nil {
		return nil, fmt.Errorf("searching refseqs: %w", err)
	}
	defer rows.Close()
	return scanRefSeqs(rows)
}

// ListRefSeqs returns the whole static table.
func (r *Repository) ListRefSeqs(ctx context.Context) ([]domain.RefSeq, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT reference_genome, gene_name, transcript_name, contig, start, endpos
		FROM ncbi_refseqs ORDER BY gene_name, reference_genome`)
	if err != nil {
		return nil, fmt.Errorf("listing refseqs: %w", err)
	}
	defer rows.Close()
	return scanRefSeqs(rows)
}

func scanRefSeqs(rows *sql.Rows) ([]domain.RefSeq, error) {
	var refseqs []domain.RefSeq
	for rows.Next() {
		var rs domain.RefSeq
		if err := rows.Scan(&rs.ReferenceGenome, &rs.GeneName, &rs.TranscriptName, &rs.Contig, &rs.Start, &rs.End); err != nil {
			return nil, fmt.Errorf("scanning refseq: %w", err)
		}
		refseqs = append(refseqs, rs)
	}
	return refseqs, rows.Err()
}

// CreateRefSeq inserts one row of the static lookup table; used to load
// gene and transcript annotations.
func (r *Repository) CreateRefSeq(ctx context.Context, rs *domain.RefSeq) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO ncbi_refseqs
			(reference_genome, gene_name, transcript_name, contig, start, endpos)
		VALUES (?, ?, ?, ?, ?, ?)`,
		rs.ReferenceGenome, strings.ToUpper(rs.GeneName), rs.TranscriptName, rs.Contig, rs.Start, rs.End)
	if err != nil {
		return fmt.Errorf("creating refseq: %w", err)
	}
	return nil
}

// GetRefSeqForChromosome returns the NCBI sequence accession for a
// canonical contig in a given assembly, e.g. ("hg38", "21") -> NC_000021.9.
func (r *Repository) GetRefSeqForChromosome(ctx context.Context, referenceGenome, contig string) (string, error) {
	var seqid string
	err := r.db.QueryRowContext(ctx, `
		SELECT transcript_name FROM ncbi_refseqs
		WHERE reference_genome = ? AND contig = ? AND transcript_name LIKE 'NC\_%' ESCAPE '\'
		ORDER BY start LIMIT 1`,
		referenceGenome, contig).Scan(&seqid)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("getting refseq for chromosome: %w", err)
	}
	return seqid, nil
}
