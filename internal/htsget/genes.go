package htsget

import (
	"context"
	"sort"
	"strings"

	"github.com/htsget-drs-server/internal/domain"
	"github.com/htsget-drs-server/internal/repository"
)

// maxGeneMatches bounds how many distinct names a prefix search returns.
const maxGeneMatches = 5

// GeneMatch is one distinct gene or transcript with its known regions.
type GeneMatch struct {
	GeneName       string       `json:"gene_name"`
	TranscriptName string       `json:"transcript_name"`
	Regions        []GeneRegion `json:"regions"`
}

// GeneRegion locates a gene in one reference genome.
type GeneRegion struct {
	ReferenceGenome string        `json:"reference_genome"`
	Region          domain.Region `json:"region"`
}

// ListGeneNames returns the sorted distinct values of one refseq field
// (gene or transcript name) across the whole static table.
func (s *Service) ListGeneNames(ctx context.Context, field string) ([]string, error) {
	refseqs, err := s.repo.ListRefSeqs(ctx)
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	var names []string
	for _, rs := range refseqs {
		name := refseqField(&rs, field)
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// MatchGenes prefix-searches the refseq table and returns the first
// distinct names with their per-assembly regions.
func (s *Service) MatchGenes(ctx context.Context, query, field string) ([]GeneMatch, error) {
	refseqs, err := s.repo.SearchRefSeqs(ctx, strings.ToUpper(query), field)
	if err != nil {
		return nil, err
	}

	results := []GeneMatch{}
	current := ""
	for i := range refseqs {
		rs := &refseqs[i]
		name := refseqField(rs, field)
		if name != current {
			if len(results) >= maxGeneMatches {
				break
			}
			current = name
			results = append(results, GeneMatch{
				GeneName:       rs.GeneName,
				TranscriptName: rs.TranscriptName,
				Regions:        []GeneRegion{},
			})
		}
		canonical, err := s.repo.NormalizeContig(ctx, rs.Contig)
		if err != nil || canonical == "" {
			continue
		}
		match := &results[len(results)-1]
		match.Regions = append(match.Regions, GeneRegion{
			ReferenceGenome: rs.ReferenceGenome,
			Region: domain.Region{
				ReferenceName: rs.Contig,
				Start:         rs.Start,
				End:           rs.End,
			},
		})
	}
	return results, nil
}

func refseqField(rs *domain.RefSeq, field string) string {
	if field == repository.RefSeqByTranscript {
		return rs.TranscriptName
	}
	return rs.GeneName
}
