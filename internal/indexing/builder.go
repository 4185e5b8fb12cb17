package indexing

// runBuilder run-length compresses a stream of (bucket, contig) pairs
// presented in file order into the three parallel slices the bucket store
// ingests. Consecutive equal pairs collapse into one run with a count.
type runBuilder struct {
	buckets []int64
	contigs []string
	counts  []int64
}

// Add appends one record's bucket/contig pair.
func (b *runBuilder) Add(bucket int64, contig string) {
	n := len(b.buckets)
	if n > 0 && b.buckets[n-1] == bucket && b.contigs[n-1] == contig {
		b.counts[n-1]++
		return
	}
	b.buckets = append(b.buckets, bucket)
	b.contigs = append(b.contigs, contig)
	b.counts = append(b.counts, 1)
}

// Runs returns the compressed parallel slices.
func (b *runBuilder) Runs() (buckets []int64, contigs []string, counts []int64) {
	return b.buckets, b.contigs, b.counts
}

// Total is the number of records added.
func (b *runBuilder) Total() int64 {
	var total int64
	for _, c := range b.counts {
		total += c
	}
	return total
}
