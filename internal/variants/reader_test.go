package variants

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/pgzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testVCF = `##fileformat=VCFv4.2
##contig=<ID=chr21,length=46709983>
##INFO=<ID=DP,Number=1,Type=Integer,Description="Combined depth across samples">
#CHROM	POS	ID	REF	ALT	QUAL	FILTER	INFO	FORMAT	NA001	NA002
chr21	100	.	A	G	50	PASS	DP=10	GT	0/1	0/0
chr21	5000	.	C	T	50	PASS	DP=12	GT	1/1	0/1
chr22	300	.	G	A	50	PASS	DP=9	GT	0/1	0/1
`

func writeVCF(t *testing.T, dir, name string, gz bool) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if gz {
		f, err := os.Create(path)
		require.NoError(t, err)
		w := pgzip.NewWriter(f)
		_, err = w.Write([]byte(testVCF))
		require.NoError(t, err)
		require.NoError(t, w.Close())
		require.NoError(t, f.Close())
	} else {
		require.NoError(t, os.WriteFile(path, []byte(testVCF), 0o644))
	}
	return path
}

func TestOpenVCF(t *testing.T) {
	path := writeVCF(t, t.TempDir(), "sample.vcf", false)
	gf, err := Open(path)
	require.NoError(t, err)
	defer gf.Close()

	assert.Len(t, gf.HeaderLines(), 4)
	assert.Equal(t, []string{"NA001", "NA002"}, gf.Samples())
}

func TestOpenGzippedVCF(t *testing.T) {
	path := writeVCF(t, t.TempDir(), "sample.vcf.gz", true)
	gf, err := Open(path)
	require.NoError(t, err)
	defer gf.Close()

	assert.Equal(t, []string{"NA001", "NA002"}, gf.Samples())

	var count int
	require.NoError(t, gf.Fetch("", 0, -1, func(*Record) error {
		count++
		return nil
	}))
	assert.Equal(t, 3, count)
}

func TestFetchRegion(t *testing.T) {
	path := writeVCF(t, t.TempDir(), "sample.vcf", false)
	gf, err := Open(path)
	require.NoError(t, err)
	defer gf.Close()

	var positions []int64
	require.NoError(t, gf.Fetch("chr21", 0, 200, func(rec *Record) error {
		positions = append(positions, rec.Pos)
		return nil
	}))
	assert.Equal(t, []int64{100}, positions)

	positions = nil
	require.NoError(t, gf.Fetch("chr21", 0, -1, func(rec *Record) error {
		positions = append(positions, rec.Pos)
		return nil
	}))
	assert.Equal(t, []int64{100, 5000}, positions)
}

func TestOpenUnknownFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))
	_, err := Open(path)
	assert.Error(t, err)
}
