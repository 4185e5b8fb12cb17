package variants

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const csqHeader = `##INFO=<ID=CSQ,Number=.,Type=String,Description="Consequence annotations from Ensembl VEP. Format: Allele|Consequence|SYMBOL|Gene">`

func TestParseRecord(t *testing.T) {
	line := "chr21\t5030551\trs123\tA\tG,T\t50\tPASS\tDP=20;AF=0.5,0.1\tGT:DP\t0/1:12\t1/2:8"
	rec, err := ParseRecord(line, []string{"S1", "S2"})
	require.NoError(t, err)

	assert.Equal(t, "chr21", rec.Chrom)
	assert.Equal(t, int64(5030551), rec.Pos)
	assert.Equal(t, "rs123", rec.ID)
	assert.Equal(t, "A", rec.Ref)
	assert.Equal(t, "G,T", rec.Alt)
	assert.Equal(t, line, rec.Raw)
	assert.Equal(t, "0/1", rec.Samples["S1"]["GT"])
	assert.Equal(t, "8", rec.Samples["S2"]["DP"])

	// INFO stays raw until typed
	require.Contains(t, rec.Info, "_raw")
	assert.Equal(t, []string{"DP=20;AF=0.5,0.1"}, rec.Info["_raw"].Value)
}

func TestParseRecordMalformed(t *testing.T) {
	_, err := ParseRecord("chr21\t5030551\tonly\tfour\tcols", nil)
	assert.Error(t, err)

	_, err = ParseRecord("chr21\tnotanumber\t.\tA\tG\t.\t.\t.", nil)
	assert.Error(t, err)
}

func TestProcessInfo(t *testing.T) {
	headers := ParseInfoHeaders([]string{
		`##INFO=<ID=CUSTOM,Number=1,Type=String,Description="Something local">`,
	})
	rec, err := ParseRecord("chr21\t100\t.\tA\tG,T\t.\tPASS\tDP=20;AF=0.5,0.1;CUSTOM=x;UNDECLARED=y", nil)
	require.NoError(t, err)

	rec.ProcessInfo(headers)

	// reserved keys work without declarations, undeclared keys are dropped
	require.Contains(t, rec.Info, "DP")
	assert.Equal(t, []string{"20"}, rec.Info["DP"].Value)
	require.Contains(t, rec.Info, "AF")
	assert.Equal(t, "A", rec.Info["AF"].Number)
	assert.Equal(t, []string{"0.5", "0.1"}, rec.Info["AF"].Value)
	require.Contains(t, rec.Info, "CUSTOM")
	assert.Equal(t, []string{"x"}, rec.Info["CUSTOM"].Value)
	assert.NotContains(t, rec.Info, "UNDECLARED")
	assert.NotContains(t, rec.Info, "_raw")
}

func TestProcessInfoCSQ(t *testing.T) {
	headers := ParseInfoHeaders([]string{csqHeader})
	rec, err := ParseRecord("chr21\t100\t.\tA\tG\t.\tPASS\tCSQ=G|missense_variant|BRCA2|ENSG001,G|intron_variant|BRCA2|ENSG001", nil)
	require.NoError(t, err)

	rec.ProcessInfo(headers)

	csq := rec.Info["CSQ"]
	require.NotNil(t, csq)
	assert.Equal(t, "K", csq.Number)
	assert.Nil(t, csq.Value)
	require.Len(t, csq.CSQ["G"], 2)
	assert.Equal(t, "missense_variant", csq.CSQ["G"][0]["Consequence"])
	assert.Equal(t, "BRCA2", csq.CSQ["G"][1]["SYMBOL"])
}

func TestOverlaps(t *testing.T) {
	rec, err := ParseRecord("chr21\t100\t.\tACGT\tA\t.\t.\t.", nil)
	require.NoError(t, err)

	tests := []struct {
		name   string
		contig string
		start  int64
		end    int64
		want   bool
	}{
		{"inside region", "chr21", 0, 200, true},
		{"unbounded end", "chr21", 0, -1, true},
		{"any contig", "", 0, -1, true},
		{"wrong contig", "chr22", 0, -1, false},
		{"region ends before record", "chr21", 0, 99, false},
		{"region starts at record end", "chr21", 103, 200, false},
		{"region touches last ref base", "chr21", 102, 200, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, rec.overlaps(tt.contig, tt.start, tt.end))
		})
	}
}

func TestExpandIUPAC(t *testing.T) {
	assert.Equal(t, []string{"ACGT"}, ExpandIUPAC("ACGT"))
	assert.ElementsMatch(t, []string{"AA", "GA"}, ExpandIUPAC("RA"))
	assert.ElementsMatch(t, []string{"AA", "AC", "AG", "AT"}, ExpandIUPAC("AN"))
	assert.Len(t, ExpandIUPAC("NN"), 16)
}

func TestSeqMatch(t *testing.T) {
	assert.True(t, SeqMatch("A", "A"))
	assert.True(t, SeqMatch("R", "A"))
	assert.True(t, SeqMatch("R", "S")) // both can be G
	assert.False(t, SeqMatch("A", "G"))
	assert.False(t, SeqMatch("Y", "R"))
}

func TestGenotypeIndex(t *testing.T) {
	// VCF genotype ordering: 0/0, 0/1, 1/1, 0/2, 1/2, 2/2
	assert.Equal(t, 0, GenotypeIndex(0, 0))
	assert.Equal(t, 1, GenotypeIndex(0, 1))
	assert.Equal(t, 2, GenotypeIndex(1, 1))
	assert.Equal(t, 3, GenotypeIndex(0, 2))
	assert.Equal(t, 4, GenotypeIndex(2, 1)) // order-insensitive
	assert.Equal(t, 5, GenotypeIndex(2, 2))
}
