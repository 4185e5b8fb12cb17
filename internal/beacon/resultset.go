package beacon

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/htsget-drs-server/internal/variants"
)

// Number is a VRS numeric value.
type Number struct {
	Type  string `json:"type"`
	Value int64  `json:"value"`
}

// SequenceInterval is a VRS interbase interval.
type SequenceInterval struct {
	Start Number `json:"start"`
	End   Number `json:"end"`
	Type  string `json:"type"`
}

// SequenceLocation pins an interval to a refseq sequence.
type SequenceLocation struct {
	Interval   SequenceInterval `json:"interval"`
	SequenceID string           `json:"sequence_id"`
	Type       string           `json:"type"`
}

// SequenceState is the literal sequence of one allele.
type SequenceState struct {
	Type     string `json:"type"`
	Sequence string `json:"sequence"`
}

// Variation is a VRS Allele.
type Variation struct {
	Location SequenceLocation `json:"location"`
	State    SequenceState    `json:"state"`
	Type     string           `json:"type"`
}

// Zygosity is a GENO ontology code.
type Zygosity struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Genotype is one sample's call for an allele.
type Genotype struct {
	Value              string    `json:"value"`
	SecondaryAlleleIDs []string  `json:"secondaryAlleleIds,omitempty"`
	Zygosity           *Zygosity `json:"zygosity,omitempty"`
}

// CaseLevelData ties a genotype to an analysis and biosample; the
// identity fields are only populated for authorized callers.
type CaseLevelData struct {
	Genotype    Genotype `json:"genotype"`
	AnalysisID  string   `json:"analysisId,omitempty"`
	BiosampleID string   `json:"biosampleId,omitempty"`
}

// MolecularAttributes summarizes VEP annotations for one variation.
type MolecularAttributes struct {
	AminoacidChanges []string   `json:"aminoacidChanges,omitempty"`
	GeneIDs          []string   `json:"geneIds,omitempty"`
	MolecularEffects []Zygosity `json:"molecularEffects,omitempty"`
}

// Result is one Beacon resultset entry: a variation keyed by its genomic
// HGVS id, with the case-level observations that support it.
type Result struct {
	VariantInternalID   string               `json:"variantInternalId"`
	Identifiers         map[string]string    `json:"identifiers"`
	Variation           Variation            `json:"variation"`
	CaseLevelData       []CaseLevelData      `json:"caseLevelData,omitempty"`
	MolecularAttributes *MolecularAttributes `json:"molecularAttributes,omitempty"`
}

var (
	homozygous          = &Zygosity{ID: "GENO:0000136", Label: "homozygous"}
	simpleHeterozygous  = &Zygosity{ID: "GENO:0000458", Label: "simple heterozygous"}
	compoundHeterozygous = &Zygosity{ID: "GENO:0000402", Label: "compound heterozygous"}
)

// allele is one decomposed variation before it enters the resultset:
// the VRS shape plus its HGVS id and any allele-scoped INFO values.
type allele struct {
	Variation
	HgvsID string
	Info   map[string]alleleInfo
}

type alleleInfo struct {
	Description string
	Value       string
	CSQ         []variants.CSQEntry
}

// compileResultset folds per-file record scans into a deduplicated,
// HGVS-keyed resultset with case-level data. A variation only survives if
// at least one sample actually carries it.
func (s *Service) compileResultset(ctx context.Context, variantsByFile map[string]*fileVariants, referenceGenome string, authorized func(string) bool) ([]*Result, error) {
	resultMap := map[string]*Result{}
	var order []string

	fileIDs := make([]string, 0, len(variantsByFile))
	for id := range variantsByFile {
		fileIDs = append(fileIDs, id)
	}
	sort.Strings(fileIDs)

	for _, fileID := range fileIDs {
		fv := variantsByFile[fileID]
		isAuthed := authorized(fileID)
		vf, err := s.repo.GetVariantFile(ctx, fileID)
		if err != nil || vf.ReferenceGenome != referenceGenome {
			continue
		}

		for _, rec := range fv.records {
			alleles, err := s.compileVariations(ctx, rec.Ref, rec.Alt, rec.Chrom, rec.Pos, referenceGenome)
			if err != nil {
				return nil, err
			}
			assignInfoToAlleles(rec, alleles)

			alleleIDs := make([]string, len(alleles))
			for i, a := range alleles {
				alleleIDs[i] = a.HgvsID
				if _, ok := resultMap[a.HgvsID]; !ok {
					resultMap[a.HgvsID] = &Result{
						Identifiers: map[string]string{"genomicHGVSId": a.HgvsID},
						Variation:   a.Variation,
					}
					order = append(order, a.HgvsID)
				}
				if info, ok := a.Info["CSQ"]; ok && resultMap[a.HgvsID].MolecularAttributes == nil {
					resultMap[a.HgvsID].MolecularAttributes = molecularAttributesFromCSQ(info.CSQ)
				}
			}

			sampleNames := make([]string, 0, len(rec.Samples))
			for name := range rec.Samples {
				sampleNames = append(sampleNames, name)
			}
			sort.Strings(sampleNames)
			for _, name := range sampleNames {
				gt := rec.Samples[name]["GT"]
				if gt == "" {
					continue
				}
				s.applyGenotype(resultMap, alleleIDs, fileID, name, gt, isAuthed)
			}
		}
	}

	final := []*Result{}
	for _, id := range order {
		r := resultMap[id]
		if len(r.CaseLevelData) > 0 {
			r.VariantInternalID = id
			final = append(final, r)
		}
	}
	return final, nil
}

// applyGenotype turns one sample's GT call into case-level data on the
// alleles it names. Homozygous calls land once on their allele; a
// heterozygous call lands once per allele, each copy listing the other
// allele under secondaryAlleleIds.
func (s *Service) applyGenotype(resultMap map[string]*Result, alleleIDs []string, fileID, sampleName, gt string, isAuthed bool) {
	parts := strings.Split(gt, "/")
	if len(parts) < 2 {
		parts = strings.Split(gt, "|")
	}
	if len(parts) < 2 {
		return
	}
	a, aerr := strconv.Atoi(parts[0])
	b, berr := strconv.Atoi(parts[1])

	newCLD := func() CaseLevelData {
		cld := CaseLevelData{Genotype: Genotype{Value: gt}}
		if isAuthed {
			cld.AnalysisID = fileID
			cld.BiosampleID = sampleName
		}
		return cld
	}
	inRange := func(i int) bool { return i >= 0 && i < len(alleleIDs) }

	if aerr == nil && berr == nil && a == b {
		if !inRange(a) {
			return
		}
		cld := newCLD()
		cld.Genotype.Zygosity = homozygous
		r := resultMap[alleleIDs[a]]
		r.CaseLevelData = append(r.CaseLevelData, cld)
		return
	}

	zygosity := compoundHeterozygous
	if (aerr == nil && a == 0) || (berr == nil && b == 0) {
		zygosity = simpleHeterozygous
	}
	for _, pair := range [][2]int{{a, b}, {b, a}} {
		self, other := pair[0], pair[1]
		if !inRange(self) {
			continue
		}
		cld := newCLD()
		cld.Genotype.Zygosity = zygosity
		if inRange(other) {
			cld.Genotype.SecondaryAlleleIDs = []string{alleleIDs[other]}
		}
		r := resultMap[alleleIDs[self]]
		r.CaseLevelData = append(r.CaseLevelData, cld)
	}
}

var cnRe = regexp.MustCompile(`<CN(\d+)>`)

// compileVariations decomposes one VCF record into VRS alleles: the
// reference allele first (hgvs "...="), then one allele per alt. SNPs use
// substitution notation, <CNn> symbolic alts expand to repeats, anything
// else is notated delins-style.
func (s *Service) compileVariations(ctx context.Context, ref, alt, chrom string, pos int64, referenceGenome string) ([]*allele, error) {
	canonical, err := s.repo.NormalizeContig(ctx, chrom)
	if err != nil {
		return nil, err
	}
	seqid, err := s.repo.GetRefSeqForChromosome(ctx, referenceGenome, canonical)
	if err != nil {
		return nil, err
	}

	base := Variation{
		Type: "Allele",
		Location: SequenceLocation{
			Type: "SequenceLocation",
			Interval: SequenceInterval{
				Type:  "SequenceInterval",
				Start: Number{Type: "Number", Value: pos - 1},
				End:   Number{Type: "Number", Value: pos},
			},
		},
		State: SequenceState{Type: "LiteralSequenceExpression", Sequence: ref},
	}
	hgvsBase := ""
	if seqid != "" {
		base.Location.SequenceID = "refseq:" + seqid
		hgvsBase = fmt.Sprintf("%s:g.%d", seqid, pos)
	}

	alleles := []*allele{{Variation: base, HgvsID: hgvsBase + "="}}
	for _, a := range strings.Split(alt, ",") {
		av := &allele{Variation: base}
		av.State = SequenceState{Type: "LiteralSequenceExpression", Sequence: a}
		switch {
		case len(ref) == 1 && len(a) == 1:
			av.HgvsID = fmt.Sprintf("%s%s>%s", hgvsBase, ref, a)
		case cnRe.MatchString(a):
			m := cnRe.FindStringSubmatch(a)
			copynum, _ := strconv.Atoi(m[1])
			av.State.Sequence = strings.Repeat(ref, copynum)
			av.HgvsID = fmt.Sprintf("%s%s[%d]", hgvsBase, ref, copynum)
		default:
			av.HgvsID = fmt.Sprintf("%s_%ddelins%s", hgvsBase, pos+int64(len(ref)), a)
		}
		alleles = append(alleles, av)
	}
	return alleles, nil
}

// assignInfoToAlleles distributes per-allele INFO values onto the
// decomposed alleles: Number=R fields cover ref and alts, Number=A fields
// alts only, and the CSQ pseudo-number K matches by allele sequence the
// way VEP spells it (no ref base on insertions, "-" for deletions).
func assignInfoToAlleles(rec *variants.Record, alleles []*allele) {
	for key, field := range rec.Info {
		switch field.Number {
		case "R", "A":
			offset := 0
			if field.Number == "A" {
				offset = 1
			}
			for i, val := range field.Value {
				idx := i + offset
				if idx >= len(alleles) {
					break
				}
				setAlleleInfo(alleles[idx], key, alleleInfo{Description: field.Description, Value: val})
			}
		case "K":
			seqs := make([]string, len(alleles))
			for i, a := range alleles {
				seqs[i] = a.State.Sequence
			}
			for vepAllele, entries := range field.CSQ {
				idx := -1
				switch {
				case vepAllele == "-":
					idx = 1
				case indexOf(seqs, seqs[0]+vepAllele) >= 0:
					idx = indexOf(seqs, seqs[0]+vepAllele)
				default:
					idx = indexOf(seqs, vepAllele)
				}
				if idx < 0 || idx >= len(alleles) {
					continue
				}
				setAlleleInfo(alleles[idx], key, alleleInfo{Description: field.Description, CSQ: entries})
			}
		}
	}
}

func setAlleleInfo(a *allele, key string, info alleleInfo) {
	if a.Info == nil {
		a.Info = map[string]alleleInfo{}
	}
	a.Info[key] = info
}

func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return -1
}
