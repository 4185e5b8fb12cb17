package htsget

import (
	"context"

	"github.com/htsget-drs-server/internal/domain"
	"github.com/htsget-drs-server/internal/repository"
	"github.com/htsget-drs-server/internal/variants"
)

// SearchRequest narrows indexed variantfiles by regions (1-based start on
// input) and/or header substring predicates.
type SearchRequest struct {
	Headers []string        `json:"headers,omitempty"`
	Regions []domain.Region `json:"regions,omitempty"`
}

// SearchHit is one matching variantfile with its (possibly exact) record
// count over the requested region and a ticket URL to stream it.
type SearchHit struct {
	Format          string         `json:"format"`
	ID              string         `json:"id"`
	Region          *domain.Region `json:"region,omitempty"`
	Htsget          TicketURL      `json:"htsget"`
	VariantCount    int64          `json:"variantcount"`
	GenomicID       string         `json:"genomic_id,omitempty"`
	Samples         []string       `json:"samples"`
	ReferenceGenome string         `json:"reference_genome"`

	searchRegion *domain.Region
}

// SearchResponse is the search envelope.
type SearchResponse struct {
	Results []SearchHit `json:"results"`
}

// SearchVariants runs a region/header search over indexed variantfiles.
// Results are restricted to files the caller may see via authorized. The
// bucket counts are coarse; when a requested region spans at most one
// bucket the hit is re-counted exactly from the file.
func (s *Service) SearchVariants(ctx context.Context, req *SearchRequest, authorized func(objectID string) bool) (*SearchResponse, error) {
	type rawHit struct {
		result     domain.SearchResult
		region     *domain.Region // 0-based search region
		origRegion *domain.Region // region as the caller spelled it
	}
	var raw []rawHit

	if len(req.Regions) > 0 {
		for i := range req.Regions {
			orig := req.Regions[i]
			canonical, err := s.repo.NormalizeContig(ctx, orig.ReferenceName)
			if err != nil {
				return nil, err
			}
			region := domain.Region{ReferenceName: canonical, Start: orig.Start - 1, End: orig.End}
			if region.Start < 0 {
				region.Start = 0
			}
			if orig.End == 0 {
				region.End = -1
			}
			results, err := s.repo.Search(ctx, repository.SearchQuery{Region: &region, Headers: req.Headers})
			if err != nil {
				return nil, err
			}
			for _, res := range results {
				raw = append(raw, rawHit{result: res, region: &region, origRegion: &orig})
			}
		}
	} else {
		results, err := s.repo.Search(ctx, repository.SearchQuery{Headers: req.Headers})
		if err != nil {
			return nil, err
		}
		for _, res := range results {
			raw = append(raw, rawHit{result: res})
		}
	}

	response := &SearchResponse{Results: []SearchHit{}}
	for _, r := range raw {
		if !authorized(r.result.DrsObjectID) {
			continue
		}
		hit := SearchHit{
			Format:          "vcf",
			ID:              r.result.DrsObjectID,
			VariantCount:    r.result.VariantCount,
			ReferenceGenome: r.result.ReferenceGenome,
			Samples:         []string{},
		}
		if vf, err := s.repo.GetVariantFile(ctx, r.result.DrsObjectID); err == nil {
			hit.GenomicID = vf.GenomicID
		}
		if samples, err := s.repo.GetSamplesForVariantFile(ctx, r.result.DrsObjectID); err == nil && samples != nil {
			hit.Samples = samples
		}
		if r.region != nil {
			hit.Region = r.origRegion
			hit.searchRegion = r.region
			native, err := s.repo.ContigNameInVariantFile(ctx, r.region.ReferenceName, r.result.DrsObjectID)
			if err != nil || native == "" {
				native = r.region.ReferenceName
			}
			start, end := r.region.Start, r.region.End
			hit.Htsget = TicketURL{URL: s.SliceURL("variant", r.result.DrsObjectID, native, &start, &end)}
		} else {
			hit.Htsget = TicketURL{URL: s.TicketBaseURL("variant", r.result.DrsObjectID)}
		}
		response.Results = append(response.Results, hit)
	}

	// bucket counts are coarse; when the region fits inside one bucket,
	// count the actual records
	for i := range response.Results {
		hit := &response.Results[i]
		region := hit.searchRegion
		if region == nil || region.End == -1 || region.End-region.Start > s.bucketSize {
			continue
		}
		gen, err := s.drs.GetGenomicObject(ctx, hit.ID)
		if err != nil {
			return nil, err
		}
		native, cerr := s.repo.ContigNameInVariantFile(ctx, region.ReferenceName, hit.ID)
		if cerr != nil || native == "" {
			native = region.ReferenceName
		}
		var exact int64
		err = gen.File.Fetch(native, region.Start, region.End, func(*variants.Record) error {
			exact++
			return nil
		})
		gen.Close()
		if err != nil {
			return nil, err
		}
		hit.VariantCount = exact
	}
	return response, nil
}
