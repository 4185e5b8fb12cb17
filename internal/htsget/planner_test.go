package htsget

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/htsget-drs-server/internal/database"
	"github.com/htsget-drs-server/internal/domain"
	"github.com/htsget-drs-server/internal/drs"
	"github.com/htsget-drs-server/internal/repository"
)

const (
	testChunkSize  = 5
	testBucketSize = 1000000
)

func newTestService(t *testing.T) (*Service, *repository.Repository) {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	db, err := database.Open(filepath.Join(t.TempDir(), "files.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo, err := repository.New(db.SQL, logger, "localhost:3000", testBucketSize)
	require.NoError(t, err)

	drsSvc := drs.NewService(repo, nil, t.TempDir(), logger)
	return NewService(repo, drsSvc, "http://localhost:3000", testChunkSize, testBucketSize, logger), repo
}

func seedIndexedVariants(t *testing.T, repo *repository.Repository, id string, buckets, counts []int64) {
	t.Helper()
	ctx := context.Background()
	_, err := repo.CreateDrsObject(ctx, &domain.DrsObject{ID: id, Name: id})
	require.NoError(t, err)
	_, err = repo.CreateVariantFile(ctx, &domain.VariantFile{ID: id, ReferenceGenome: "hg38"})
	require.NoError(t, err)
	contigs := make([]string, len(buckets))
	for i := range contigs {
		contigs[i] = "21"
	}
	require.NoError(t, repo.CreatePosBuckets(ctx, id, buckets, contigs, counts))
	require.NoError(t, repo.MarkVariantFileIndexed(ctx, id))
}

func TestGetTicketValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	start, end := int64(500), int64(100)
	_, err := svc.GetTicket(ctx, "variant", "sample.vcf.gz", "21", &start, &end, "")
	assert.ErrorIs(t, err, domain.ErrBadRequest)

	_, err = svc.GetTicket(ctx, "alignment", "sample.vcf.gz", "21", nil, nil, "")
	assert.ErrorIs(t, err, domain.ErrBadRequest)

	_, err = svc.GetTicket(ctx, "variant", "missing.vcf.gz", "21", nil, nil, "")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGetTicketHeaderClass(t *testing.T) {
	svc, repo := newTestService(t)
	seedIndexedVariants(t, repo, "sample.vcf.gz", []int64{0}, []int64{3})

	ticket, err := svc.GetTicket(context.Background(), "variant", "sample.vcf.gz", "21", nil, nil, "header")
	require.NoError(t, err)
	assert.Equal(t, "VCF", ticket.Htsget.Format)
	require.Len(t, ticket.Htsget.URLs, 1)
	assert.Equal(t, "header", ticket.Htsget.URLs[0].Class)
	assert.Equal(t, "http://localhost:3000/htsget/v1/variants/data/sample.vcf.gz?class=header", ticket.Htsget.URLs[0].URL)
}

func TestGetTicketSplitsChunks(t *testing.T) {
	svc, repo := newTestService(t)
	// 3 + 4 exceeds the chunk cap of 5 before the third bucket is added,
	// so the third bucket opens a second body slice
	seedIndexedVariants(t, repo, "sample.vcf.gz",
		[]int64{0, 1000000, 2000000}, []int64{3, 4, 4})

	ticket, err := svc.GetTicket(context.Background(), "variant", "sample.vcf.gz", "21", nil, nil, "")
	require.NoError(t, err)
	require.Len(t, ticket.Htsget.URLs, 3)
	assert.Equal(t, "header", ticket.Htsget.URLs[0].Class)
	assert.Equal(t, "body", ticket.Htsget.URLs[1].Class)
	assert.Contains(t, ticket.Htsget.URLs[1].URL, "start=0")
	assert.Contains(t, ticket.Htsget.URLs[1].URL, "end=1000000")
	assert.Contains(t, ticket.Htsget.URLs[2].URL, "start=1000001")
	// open-ended request gets one bucket of slack past the last bucket
	assert.Contains(t, ticket.Htsget.URLs[2].URL, "end=3000000")
}

func TestGetTicketBoundedRegion(t *testing.T) {
	svc, repo := newTestService(t)
	seedIndexedVariants(t, repo, "sample.vcf.gz",
		[]int64{0, 1000000, 2000000}, []int64{3, 1, 4})

	start, end := int64(0), int64(1500000)
	ticket, err := svc.GetTicket(context.Background(), "variant", "sample.vcf.gz", "21", &start, &end, "")
	require.NoError(t, err)
	// only the buckets intersecting [0, 1500000) fold in, and the trailing
	// slice ends exactly at the requested end
	require.Len(t, ticket.Htsget.URLs, 2)
	assert.Contains(t, ticket.Htsget.URLs[1].URL, "start=0")
	assert.Contains(t, ticket.Htsget.URLs[1].URL, "end=1500000")
}

func TestGetTicketContigAliases(t *testing.T) {
	svc, repo := newTestService(t)
	seedIndexedVariants(t, repo, "sample.vcf.gz", []int64{0}, []int64{2})

	// chr21 and the RefSeq accession resolve to the same canonical contig
	for _, name := range []string{"21", "chr21", "NC_000021.9"} {
		ticket, err := svc.GetTicket(context.Background(), "variant", "sample.vcf.gz", name, nil, nil, "")
		require.NoError(t, err)
		require.Len(t, ticket.Htsget.URLs, 2, "referenceName %q", name)
	}
}

func TestSliceURL(t *testing.T) {
	svc, _ := newTestService(t)

	start, end := int64(100), int64(500)
	u := svc.SliceURL("variant", "sample.vcf.gz", "21", &start, &end)
	assert.Equal(t, "http://localhost:3000/htsget/v1/variants/sample.vcf.gz?end=500&referenceName=21&start=100", u)

	u = svc.SliceURL("read", "sample.bam", "", nil, nil)
	assert.Equal(t, "http://localhost:3000/htsget/v1/reads/sample.bam", u)
}
