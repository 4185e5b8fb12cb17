package repository

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/htsget-drs-server/internal/database"
	"github.com/htsget-drs-server/internal/domain"
)

const testBucketSize = 1000000

// seedObject creates the parent catalog row a variantfile hangs off.
func seedObject(t *testing.T, repo *Repository, id string) {
	t.Helper()
	_, err := repo.CreateDrsObject(context.Background(), &domain.DrsObject{ID: id, Name: id})
	require.NoError(t, err)
}

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	db, err := database.Open(filepath.Join(t.TempDir(), "files.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo, err := New(db.SQL, logger, "localhost:3000", testBucketSize)
	require.NoError(t, err)
	return repo
}

func TestBucketOf(t *testing.T) {
	repo := newTestRepo(t)
	assert.Equal(t, int64(0), repo.BucketOf(0))
	assert.Equal(t, int64(0), repo.BucketOf(999999))
	assert.Equal(t, int64(1000000), repo.BucketOf(1000000))
	assert.Equal(t, int64(5000000), repo.BucketOf(5030551))
}

func TestNormalizeContig(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	tests := []struct {
		input string
		want  string
	}{
		{"21", "21"},
		{"chr21", "21"},
		{"NC_000021.9", "21"},
		{"NC_000021.8", "21"},
		{"chrX", "X"},
		{"M", "M"},
		{"garbage", ""},
		{"", ""},
	}
	for _, tt := range tests {
		got, err := repo.NormalizeContig(ctx, tt.input)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "input %q", tt.input)
	}

	// cached path answers the same
	got, err := repo.NormalizeContig(ctx, "chr21")
	require.NoError(t, err)
	assert.Equal(t, "21", got)
}

func TestContigPrefix(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	prefix, err := repo.ContigPrefix(ctx, "chr21")
	require.NoError(t, err)
	assert.Equal(t, "chr", prefix)

	prefix, err = repo.ContigPrefix(ctx, "21")
	require.NoError(t, err)
	assert.Equal(t, "", prefix)

	// accession spellings have no prefix
	prefix, err = repo.ContigPrefix(ctx, "NC_000021.9")
	require.NoError(t, err)
	assert.Equal(t, "", prefix)
}

func TestContigNameInVariantFile(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	seedObject(t, repo, "vcf1")
	_, err := repo.CreateVariantFile(ctx, &domain.VariantFile{ID: "vcf1", ReferenceGenome: "hg38"})
	require.NoError(t, err)
	require.NoError(t, repo.SetVariantFilePrefix(ctx, "vcf1", "chr"))

	native, err := repo.ContigNameInVariantFile(ctx, "21", "vcf1")
	require.NoError(t, err)
	assert.Equal(t, "chr21", native)

	native, err = repo.ContigNameInVariantFile(ctx, "chr21", "vcf1")
	require.NoError(t, err)
	assert.Equal(t, "chr21", native)
}

func TestDrsObjectRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	obj := &domain.DrsObject{
		ID:          "sample.vcf.gz",
		Name:        "sample.vcf.gz",
		Description: domain.RoleVariant,
		Cohort:      "pilot",
		AccessMethods: []domain.AccessMethod{
			{Type: "s3", AccessID: "minio.local/bucket/sample.vcf.gz"},
		},
	}
	created, err := repo.CreateDrsObject(ctx, obj)
	require.NoError(t, err)
	assert.Equal(t, "drs://localhost:3000/sample.vcf.gz", created.SelfURI)
	assert.Equal(t, "pilot", created.Cohort)
	require.Len(t, created.AccessMethods, 1)
	assert.Equal(t, "minio.local/bucket/sample.vcf.gz", created.AccessMethods[0].AccessID)
	assert.False(t, created.CreatedTime.IsZero())

	// cohort is auto-created
	cohorts, err := repo.ListCohorts(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"pilot"}, cohorts)

	bundle := &domain.DrsObject{
		ID:          "HG00096",
		Name:        "HG00096",
		Description: domain.RoleWGS,
		Cohort:      "pilot",
		Contents: []domain.ContentsObject{
			{Name: "sample.vcf.gz"},
			{Name: "sample.vcf.gz.tbi"},
		},
	}
	_, err = repo.CreateDrsObject(ctx, bundle)
	require.NoError(t, err)

	got, err := repo.GetDrsObject(ctx, "HG00096")
	require.NoError(t, err)
	require.Len(t, got.Contents, 2)
	assert.Equal(t, "sample.vcf.gz", got.Contents[0].Name)

	objs, err := repo.ListDrsObjects(ctx, "pilot")
	require.NoError(t, err)
	assert.Len(t, objs, 2)

	require.NoError(t, repo.DeleteDrsObject(ctx, "HG00096"))
	_, err = repo.GetDrsObject(ctx, "HG00096")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDrsObjectUpsertReplacesChildren(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	obj := &domain.DrsObject{
		ID:   "a.vcf",
		Name: "a.vcf",
		AccessMethods: []domain.AccessMethod{
			{Type: "file", URL: "file:///data/a.vcf"},
		},
	}
	_, err := repo.CreateDrsObject(ctx, obj)
	require.NoError(t, err)

	obj.AccessMethods = []domain.AccessMethod{
		{Type: "s3", AccessID: "minio.local/bucket/a.vcf"},
	}
	updated, err := repo.CreateDrsObject(ctx, obj)
	require.NoError(t, err)
	require.Len(t, updated.AccessMethods, 1)
	assert.Equal(t, "s3", updated.AccessMethods[0].Type)
}

func TestVariantFileLifecycle(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	seedObject(t, repo, "vcf1")
	vf, err := repo.CreateVariantFile(ctx, &domain.VariantFile{ID: "vcf1", ReferenceGenome: "hg38", GenomicID: "HG00096"})
	require.NoError(t, err)
	assert.Equal(t, 0, vf.Indexed)
	assert.Equal(t, "hg38", vf.ReferenceGenome)
	assert.Equal(t, "HG00096", vf.GenomicID)

	// upsert keeps the genomic id when the new one is empty
	vf, err = repo.CreateVariantFile(ctx, &domain.VariantFile{ID: "vcf1", ReferenceGenome: "hg38"})
	require.NoError(t, err)
	assert.Equal(t, "HG00096", vf.GenomicID)

	require.NoError(t, repo.MarkVariantFileIndexed(ctx, "vcf1"))
	vf, err = repo.GetVariantFile(ctx, "vcf1")
	require.NoError(t, err)
	assert.Equal(t, 1, vf.Indexed)

	require.NoError(t, repo.ResetVariantFileIndex(ctx, "vcf1"))
	vf, err = repo.GetVariantFile(ctx, "vcf1")
	require.NoError(t, err)
	assert.Equal(t, 0, vf.Indexed)

	_, err = repo.GetVariantFile(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestHeadersAndSamples(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	seedObject(t, repo, "vcf1")
	_, err := repo.CreateVariantFile(ctx, &domain.VariantFile{ID: "vcf1", ReferenceGenome: "hg38"})
	require.NoError(t, err)

	headers := []string{"##fileformat=VCFv4.2", "##source=test"}
	require.NoError(t, repo.AddHeadersForVariantFile(ctx, "vcf1", headers))
	got, err := repo.GetHeadersForVariantFile(ctx, "vcf1")
	require.NoError(t, err)
	assert.ElementsMatch(t, headers, got)

	require.NoError(t, repo.CreateSample(ctx, "NA001", "vcf1"))
	require.NoError(t, repo.CreateSample(ctx, "NA002", "vcf1"))
	samples, err := repo.GetSamplesForVariantFile(ctx, "vcf1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"NA001", "NA002"}, samples)
}

func seedIndexedFile(t *testing.T, repo *Repository, id, genome string, buckets []int64, contigs []string, counts []int64) {
	t.Helper()
	ctx := context.Background()
	seedObject(t, repo, id)
	_, err := repo.CreateVariantFile(ctx, &domain.VariantFile{ID: id, ReferenceGenome: genome})
	require.NoError(t, err)
	require.NoError(t, repo.CreatePosBuckets(ctx, id, buckets, contigs, counts))
	require.NoError(t, repo.MarkVariantFileIndexed(ctx, id))
}

func TestGetVariantCountForVariantFile(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	seedIndexedFile(t, repo, "vcf1", "hg38",
		[]int64{0, 1000000, 2000000, 0},
		[]string{"21", "21", "21", "22"},
		[]int64{10, 20, 30, 5})

	// whole contig
	buckets, err := repo.GetVariantCountForVariantFile(ctx, "vcf1", "21", 0, -1)
	require.NoError(t, err)
	require.Len(t, buckets, 3)
	assert.Equal(t, int64(0), buckets[0].PosBucketID)
	assert.Equal(t, int64(10), buckets[0].Count)
	assert.Equal(t, int64(2000000), buckets[2].PosBucketID)

	// bounded range keeps the bucket containing end
	buckets, err = repo.GetVariantCountForVariantFile(ctx, "vcf1", "21", 0, 1500000)
	require.NoError(t, err)
	require.Len(t, buckets, 2)
	assert.Equal(t, int64(1000000), buckets[1].PosBucketID)

	// open-ended range with a lower bound
	buckets, err = repo.GetVariantCountForVariantFile(ctx, "vcf1", "21", 1000000, -1)
	require.NoError(t, err)
	require.Len(t, buckets, 2)
	assert.Equal(t, int64(1000000), buckets[0].PosBucketID)

	// other contig is isolated
	buckets, err = repo.GetVariantCountForVariantFile(ctx, "vcf1", "22", 0, -1)
	require.NoError(t, err)
	require.Len(t, buckets, 1)
	assert.Equal(t, int64(5), buckets[0].Count)
}

func TestSearch(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	seedIndexedFile(t, repo, "vcf1", "hg38",
		[]int64{0, 1000000}, []string{"21", "21"}, []int64{10, 20})
	seedIndexedFile(t, repo, "vcf2", "hg37",
		[]int64{5000000}, []string{"21"}, []int64{7})
	require.NoError(t, repo.AddHeadersForVariantFile(ctx, "vcf1", []string{"##source=dragen"}))

	// unindexed files never surface
	seedObject(t, repo, "vcf3")
	_, err := repo.CreateVariantFile(ctx, &domain.VariantFile{ID: "vcf3", ReferenceGenome: "hg38"})
	require.NoError(t, err)

	results, err := repo.Search(ctx, SearchQuery{Region: &domain.Region{ReferenceName: "21", Start: 0, End: -1}})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "vcf1", results[0].DrsObjectID)
	assert.Equal(t, int64(30), results[0].VariantCount)
	assert.Equal(t, "hg38", results[0].ReferenceGenome)
	assert.Equal(t, int64(7), results[1].VariantCount)

	// region narrows by bucket
	results, err = repo.Search(ctx, SearchQuery{Region: &domain.Region{ReferenceName: "21", Start: 4000000, End: 6000000}})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "vcf2", results[0].DrsObjectID)

	// header predicate
	results, err = repo.Search(ctx, SearchQuery{Headers: []string{"dragen"}})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "vcf1", results[0].DrsObjectID)

	// no criteria lists all indexed files
	results, err = repo.Search(ctx, SearchQuery{})
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestRefSeqLookups(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	// chromosome rows are seeded at open time
	seqid, err := repo.GetRefSeqForChromosome(ctx, "hg38", "21")
	require.NoError(t, err)
	assert.Equal(t, "NC_000021.9", seqid)

	seqid, err = repo.GetRefSeqForChromosome(ctx, "hg37", "21")
	require.NoError(t, err)
	assert.Equal(t, "NC_000021.8", seqid)

	require.NoError(t, repo.CreateRefSeq(ctx, &domain.RefSeq{
		ReferenceGenome: "hg38",
		GeneName:        "BRCA2",
		TranscriptName:  "NM_000059.4",
		Contig:          "13",
		Start:           32315507,
		End:             32400268,
	}))

	rows, err := repo.SearchRefSeqs(ctx, "BRCA", RefSeqByGene)
	require.NoError(t, err)
	require.NotEmpty(t, rows)
	assert.Equal(t, "BRCA2", rows[0].GeneName)

	rows, err = repo.SearchRefSeqs(ctx, "NM_000059.4", RefSeqByTranscript)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(32315507), rows[0].Start)
}

func TestCohortLifecycle(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	_, err := repo.CreateCohort(ctx, "pilot")
	require.NoError(t, err)

	cohort, err := repo.GetCohort(ctx, "pilot")
	require.NoError(t, err)
	assert.Equal(t, "pilot", cohort.ID)

	_, err = repo.CreateDrsObject(ctx, &domain.DrsObject{ID: "obj1", Name: "obj1", Cohort: "pilot"})
	require.NoError(t, err)

	// deleting the cohort takes its objects with it
	require.NoError(t, repo.DeleteCohort(ctx, "pilot"))
	_, err = repo.GetCohort(ctx, "pilot")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = repo.GetDrsObject(ctx, "obj1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
