package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// NormalizeContig maps any contig spelling seen in the wild ("chr21", "21",
// "NC_000021.9") to its canonical unprefixed name, or "" when unknown.
// Results are cached; the alias table is static after seeding.
func (r *Repository) NormalizeContig(ctx context.Context, name string) (string, error) {
	if name == "" {
		return "", nil
	}
	if canonical, ok := r.contigCache.Get(name); ok {
		return canonical, nil
	}

	var canonical string
	err := r.db.QueryRowContext(ctx,
		`SELECT contig_id FROM aliases WHERE id = ?`, name).Scan(&canonical)
	if errors.Is(err, sql.ErrNoRows) {
		r.contigCache.Add(name, "")
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("normalizing contig %s: %w", name, err)
	}
	r.contigCache.Add(name, canonical)
	return canonical, nil
}

// ContigPrefix returns the spelling prefix of a raw contig name relative to
// its canonical form: "chr" for "chr21", "" for "21". Accession-style
// spellings have no prefix.
func (r *Repository) ContigPrefix(ctx context.Context, name string) (string, error) {
	canonical, err := r.NormalizeContig(ctx, name)
	if err != nil || canonical == "" {
		return "", err
	}
	if strings.HasSuffix(name, canonical) {
		return strings.TrimSuffix(name, canonical), nil
	}
	return "", nil
}

// ContigNameInVariantFile translates a caller-normalized contig name back
// to the spelling used inside the given variantfile: chr_prefix + canonical.
func (r *Repository) ContigNameInVariantFile(ctx context.Context, refname, variantfileID string) (string, error) {
	canonical, err := r.NormalizeContig(ctx, refname)
	if err != nil {
		return "", err
	}
	if canonical == "" {
		return "", nil
	}
	vf, err := r.GetVariantFile(ctx, variantfileID)
	if err != nil {
		return "", err
	}
	return vf.ChrPrefix + canonical, nil
}
