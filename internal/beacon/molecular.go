package beacon

import (
	"sort"
	"strings"

	"github.com/htsget-drs-server/internal/variants"
)

// VEP Consequence terms mapped to Sequence Ontology accessions.
var consequenceTerms = map[string]string{
	"transcript_ablation":                "SO:0001893",
	"splice_acceptor_variant":            "SO:0001574",
	"splice_donor_variant":               "SO:0001575",
	"stop_gained":                        "SO:0001587",
	"frameshift_variant":                 "SO:0001589",
	"stop_lost":                          "SO:0001578",
	"start_lost":                         "SO:0002012",
	"transcript_amplification":           "SO:0001889",
	"inframe_insertion":                  "SO:0001821",
	"inframe_deletion":                   "SO:0001822",
	"missense_variant":                   "SO:0001583",
	"protein_altering_variant":           "SO:0001818",
	"splice_region_variant":              "SO:0001630",
	"incomplete_terminal_codon_variant":  "SO:0001626",
	"start_retained_variant":             "SO:0002019",
	"stop_retained_variant":              "SO:0001567",
	"synonymous_variant":                 "SO:0001819",
	"coding_sequence_variant":            "SO:0001580",
	"mature_miRNA_variant":               "SO:0001620",
	"5_prime_UTR_variant":                "SO:0001623",
	"3_prime_UTR_variant":                "SO:0001624",
	"non_coding_transcript_exon_variant": "SO:0001792",
	"intron_variant":                     "SO:0001627",
	"NMD_transcript_variant":             "SO:0001621",
	"non_coding_transcript_variant":      "SO:0001619",
	"upstream_gene_variant":              "SO:0001631",
	"downstream_gene_variant":            "SO:0001632",
	"TFBS_ablation":                      "SO:0001895",
	"TFBS_amplification":                 "SO:0001892",
	"TF_binding_site_variant":            "SO:0001782",
	"regulatory_region_ablation":         "SO:0001894",
	"regulatory_region_amplification":    "SO:0001891",
	"feature_elongation":                 "SO:0001907",
	"regulatory_region_variant":          "SO:0001566",
	"feature_truncation":                 "SO:0001906",
	"intergenic_variant":                 "SO:0001628",
}

// molecularAttributesFromCSQ aggregates an allele's VEP annotations into
// gene ids and SO-coded molecular effects.
func molecularAttributesFromCSQ(entries []variants.CSQEntry) *MolecularAttributes {
	geneIDs := map[string]bool{}
	effects := map[string]bool{}
	for _, csq := range entries {
		for _, key := range []string{"HGNC_ID", "SYMBOL", "Gene"} {
			if v, ok := csq[key]; ok {
				geneIDs[v] = true
			}
		}
		if consequence, ok := csq["Consequence"]; ok {
			for _, c := range strings.Split(consequence, "&") {
				effects[c] = true
			}
		}
	}

	attrs := &MolecularAttributes{}
	for id := range geneIDs {
		attrs.GeneIDs = append(attrs.GeneIDs, id)
	}
	sort.Strings(attrs.GeneIDs)
	var effectNames []string
	for c := range effects {
		effectNames = append(effectNames, c)
	}
	sort.Strings(effectNames)
	for _, c := range effectNames {
		if so, ok := consequenceTerms[c]; ok {
			attrs.MolecularEffects = append(attrs.MolecularEffects, Zygosity{ID: so, Label: c})
		}
	}
	return attrs
}
