package indexing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunBuilder(t *testing.T) {
	b := &runBuilder{}
	b.Add(0, "21")
	b.Add(0, "21")
	b.Add(0, "21")
	b.Add(1000000, "21")
	b.Add(0, "22") // same bucket id, different contig starts a new run
	b.Add(0, "22")

	buckets, contigs, counts := b.Runs()
	assert.Equal(t, []int64{0, 1000000, 0}, buckets)
	assert.Equal(t, []string{"21", "21", "22"}, contigs)
	assert.Equal(t, []int64{3, 1, 2}, counts)
	assert.Equal(t, int64(6), b.Total())
}

func TestRunBuilderEmpty(t *testing.T) {
	b := &runBuilder{}
	buckets, contigs, counts := b.Runs()
	assert.Empty(t, buckets)
	assert.Empty(t, contigs)
	assert.Empty(t, counts)
	assert.Equal(t, int64(0), b.Total())
}
