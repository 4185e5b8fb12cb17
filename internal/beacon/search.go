package beacon

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/htsget-drs-server/internal/domain"
	"github.com/htsget-drs-server/internal/drs"
	"github.com/htsget-drs-server/internal/htsget"
	"github.com/htsget-drs-server/internal/repository"
	"github.com/htsget-drs-server/internal/variants"
	"github.com/htsget-drs-server/pkg/hgvs"
)

const (
	apiVersion = "1.0.0"
	beaconID   = "org.candig.htsget.beacon"
)

var schema = []map[string]string{
	{
		"entityType": "genomicVariant",
		"schema":     "ga4gh-beacon-variant-v2.0.0",
	},
}

// Service answers Beacon v2 genomic variant queries over the indexed
// catalog.
type Service struct {
	repo   *repository.Repository
	drs    *drs.Service
	htsget *htsget.Service
	log    *logrus.Logger
}

// NewService wires the Beacon search to the catalog, the DRS layer and
// the htsget planner (for handover tickets).
func NewService(repo *repository.Repository, drsSvc *drs.Service, htsgetSvc *htsget.Service, log *logrus.Logger) *Service {
	return &Service{repo: repo, drs: drsSvc, htsget: htsgetSvc, log: log}
}

// RequestParameters is the Beacon v2 query parameter block, snake_case as
// the upstream API spells it.
type RequestParameters struct {
	AssemblyID       string  `json:"assembly_id,omitempty"`
	ReferenceName    string  `json:"reference_name,omitempty"`
	Start            []int64 `json:"start,omitempty"`
	End              []int64 `json:"end,omitempty"`
	GeneID           string  `json:"gene_id,omitempty"`
	Allele           string  `json:"genomic_allele_short_form,omitempty"`
	ReferenceBases   string  `json:"reference_bases,omitempty"`
	AlternateBases   string  `json:"alternate_bases,omitempty"`
	VariantMinLength *int64  `json:"variant_min_length,omitempty"`
	VariantMaxLength *int64  `json:"variant_max_length,omitempty"`
}

// Request is a Beacon v2 search request.
type Request struct {
	Query struct {
		RequestParameters RequestParameters `json:"requestParameters"`
	} `json:"query"`
	Pagination           map[string]interface{} `json:"pagination,omitempty"`
	RequestedGranularity string                 `json:"requestedGranularity,omitempty"`
}

// Response is the Beacon v2 response envelope. Errors travel inside the
// envelope (Error set, HTTP status stays 200) per the v2 response shape.
type Response struct {
	Meta            map[string]interface{} `json:"meta"`
	ResponseSummary *ResponseSummary       `json:"responseSummary,omitempty"`
	BeaconHandovers []Handover             `json:"beaconHandovers,omitempty"`
	Results         []*Result              `json:"response,omitempty"`
	Error           *Error                 `json:"error,omitempty"`
}

// ResponseSummary is the boolean/count granularity summary.
type ResponseSummary struct {
	Exists          bool `json:"exists"`
	NumTotalResults int  `json:"numTotalResults"`
}

// Error is a Beacon-envelope error.
type Error struct {
	ErrorMessage string `json:"errorMessage"`
	ErrorCode    int    `json:"errorCode"`
}

// Handover links a resultset back to an htsget ticket for the region.
type Handover struct {
	*htsget.Ticket
	HandoverType map[string]string `json:"handoverType"`
}

// Search runs a Beacon v2 query. authorized reports whether the caller
// may see record-level data for a DRS object; it gates case-level
// identities and handovers but never the aggregate counts.
func (s *Service) Search(ctx context.Context, req *Request, authorized func(objectID string) bool) (*Response, error) {
	params := req.Query.RequestParameters

	meta := map[string]interface{}{
		"apiVersion": apiVersion,
		"beaconId":   beaconID,
		"receivedRequestSummary": map[string]interface{}{
			"apiVersion":        apiVersion,
			"requestedSchemas":  schema,
			"requestParameters": params,
		},
		"returnedSchemas": schema,
	}
	if req.Pagination != nil {
		meta["receivedRequestSummary"].(map[string]interface{})["pagination"] = req.Pagination
	}
	if req.RequestedGranularity != "" {
		meta["receivedRequestSummary"].(map[string]interface{})["requestedGranularity"] = req.RequestedGranularity
		meta["returnedGranularity"] = req.RequestedGranularity
	}
	response := &Response{
		Meta:            meta,
		ResponseSummary: &ResponseSummary{},
	}

	resolved, beaconErr, err := s.resolveRegion(ctx, &params)
	if err != nil {
		return nil, err
	}
	if beaconErr != nil {
		return &Response{Meta: meta, Error: beaconErr}, nil
	}

	variantsByFile, err := s.findVariantsInRegion(ctx, resolved.referenceName, resolved.start, resolved.end, resolved.referenceGenome)
	if err != nil {
		return nil, err
	}

	resultset, err := s.compileResultset(ctx, variantsByFile, resolved.referenceGenome, authorized)
	if err != nil {
		return nil, err
	}

	resultset = s.filterResultset(resultset, resolved)

	if len(resultset) > 0 {
		response.ResponseSummary.NumTotalResults = len(resultset)
		response.ResponseSummary.Exists = true
	}

	// record granularity only materializes when the caller can actually
	// reach at least one of the underlying files
	handovers := []Handover{}
	for fileID := range variantsByFile {
		if !authorized(fileID) {
			continue
		}
		start, end := resolved.start, resolved.end
		ticket, terr := s.htsget.GetTicket(ctx, "variant", fileID, resolved.referenceName, &start, &end, "")
		if terr != nil {
			continue
		}
		handovers = append(handovers, Handover{
			Ticket:       ticket,
			HandoverType: map[string]string{"id": "CUSTOM", "label": "HTSGET"},
		})
	}
	if len(handovers) > 0 {
		response.BeaconHandovers = handovers
		response.Results = resultset
	} else {
		meta["returnedGranularity"] = "count"
	}
	return response, nil
}

// resolvedRegion is the query region after gene/HGVS resolution, start
// 1-based as it came in.
type resolvedRegion struct {
	referenceGenome string
	referenceName   string
	start           int64
	end             int64
	ref             string
	alt             string
	minLen          *int64
	maxLen          *int64
}

// resolveRegion turns the Beacon parameters into a concrete region.
// Precedence: gene symbol, then HGVS short form, then explicit
// referenceName/start/end (only the first array element is consulted).
func (s *Service) resolveRegion(ctx context.Context, params *RequestParameters) (*resolvedRegion, *Error, error) {
	resolved := &resolvedRegion{
		referenceGenome: "hg38",
		referenceName:   params.ReferenceName,
		minLen:          params.VariantMinLength,
		maxLen:          params.VariantMaxLength,
	}
	if params.AssemblyID != "" {
		resolved.referenceGenome = params.AssemblyID
	}
	if len(params.Start) > 0 {
		resolved.start = params.Start[0]
	}
	endSet := false
	if len(params.End) > 0 {
		resolved.end = params.End[0]
		endSet = true
	}
	if params.AlternateBases != "" {
		resolved.alt = params.AlternateBases
	}
	if params.ReferenceBases != "" {
		resolved.ref = params.ReferenceBases
	}

	if params.GeneID != "" {
		genes, err := s.repo.SearchRefSeqs(ctx, strings.ToUpper(params.GeneID), repository.RefSeqByGene)
		if err != nil {
			return nil, nil, err
		}
		if len(genes) == 0 {
			return nil, &Error{
				ErrorMessage: fmt.Sprintf("no region was found for geneId %s", params.GeneID),
				ErrorCode:    404,
			}, nil
		}
		for _, gene := range genes {
			if gene.ReferenceGenome != resolved.referenceGenome {
				continue
			}
			canonical, err := s.repo.NormalizeContig(ctx, gene.Contig)
			if err != nil {
				return nil, nil, err
			}
			resolved.referenceName = canonical
			resolved.start = gene.Start
			resolved.end = gene.End
			endSet = true
			break
		}
	}

	if params.Allele != "" {
		loc, err := s.resolveHGVS(ctx, params.Allele, resolved.referenceGenome)
		if err != nil {
			return nil, nil, err
		}
		if loc != nil {
			resolved.referenceName = loc.referenceName
			resolved.start = loc.start
			resolved.end = loc.end
			endSet = true
			if loc.referenceGenome != "" {
				resolved.referenceGenome = loc.referenceGenome
			}
			if loc.ref != "" {
				resolved.ref = loc.ref
			}
			if loc.alt != "" {
				resolved.alt = loc.alt
			}
		}
	}

	if resolved.referenceName == "" {
		return nil, &Error{ErrorMessage: "no referenceName was provided", ErrorCode: 404}, nil
	}
	if !endSet {
		resolved.end = resolved.start
	}
	return resolved, nil, nil
}

// hgvsLocation is a resolved HGVS short form.
type hgvsLocation struct {
	referenceGenome string
	referenceName   string
	start           int64
	end             int64
	ref             string
	alt             string
}

// resolveHGVS maps an HGVS short form onto genomic coordinates. Coding
// accessions (multiple refseq rows) offset the position by the
// transcript's start in the matching assembly; chromosome accessions pin
// the assembly instead.
func (s *Service) resolveHGVS(ctx context.Context, allele, referenceGenome string) (*hgvsLocation, error) {
	parsed, err := hgvs.Parse(allele)
	if err != nil {
		return nil, nil
	}
	genes, err := s.repo.SearchRefSeqs(ctx, parsed.Accession, repository.RefSeqByTranscript)
	if err != nil {
		return nil, err
	}
	if len(genes) == 0 {
		return nil, nil
	}

	loc := &hgvsLocation{}
	if len(genes) > 1 {
		for _, gene := range genes {
			if gene.ReferenceGenome != referenceGenome {
				continue
			}
			canonical, err := s.repo.NormalizeContig(ctx, gene.Contig)
			if err != nil {
				return nil, err
			}
			loc.referenceName = canonical
			loc.start = gene.Start + parsed.Position
			break
		}
	} else {
		canonical, err := s.repo.NormalizeContig(ctx, genes[0].Contig)
		if err != nil {
			return nil, err
		}
		loc.referenceName = canonical
		loc.referenceGenome = genes[0].ReferenceGenome
		loc.start = parsed.Position
	}

	change, err := parsed.Resolve(loc.start)
	if err != nil {
		return nil, nil
	}
	loc.start = change.Start
	loc.end = change.End
	loc.ref = change.Ref
	loc.alt = change.Alt
	return loc, nil
}

// fileVariants is the per-file scan result: the file's INFO declarations
// and the records found in the region.
type fileVariants struct {
	infoHeaders map[string]variants.InfoMeta
	records     []*variants.Record
}

// findVariantsInRegion narrows candidate files through the bucket index,
// then scans each file for records in the 1-based [start, end] region.
func (s *Service) findVariantsInRegion(ctx context.Context, referenceName string, start, end int64, referenceGenome string) (map[string]*fileVariants, error) {
	canonical, err := s.repo.NormalizeContig(ctx, referenceName)
	if err != nil {
		return nil, err
	}
	region := &domain.Region{ReferenceName: canonical, Start: start - 1, End: end}
	if region.Start < 0 {
		region.Start = 0
	}

	results, err := s.repo.Search(ctx, repository.SearchQuery{Region: region})
	if err != nil {
		return nil, err
	}

	byFile := map[string]*fileVariants{}
	for _, res := range results {
		if res.ReferenceGenome != referenceGenome {
			continue
		}
		gen, err := s.drs.GetGenomicObject(ctx, res.DrsObjectID)
		if err != nil {
			s.log.WithError(err).WithField("object", res.DrsObjectID).Warn("Skipping unreadable genomic object")
			continue
		}
		native, err := s.repo.ContigNameInVariantFile(ctx, referenceName, res.DrsObjectID)
		if err != nil || native == "" {
			native = referenceName
		}
		headerMeta := variants.ParseInfoHeaders(gen.File.HeaderLines())
		fv := &fileVariants{infoHeaders: headerMeta}
		err = gen.File.Fetch(native, region.Start, region.End, func(rec *variants.Record) error {
			rec.ProcessInfo(headerMeta)
			fv.records = append(fv.records, rec)
			return nil
		})
		gen.Close()
		if err != nil {
			return nil, err
		}
		if len(fv.records) > 0 {
			byFile[res.DrsObjectID] = fv
		}
	}
	return byFile, nil
}

// filterResultset applies the post-assembly allele filters: exact
// position when start==end, then ref/alt sequence matches with IUPAC
// expansion, then length bounds.
func (s *Service) filterResultset(resultset []*Result, resolved *resolvedRegion) []*Result {
	if resolved.start == resolved.end {
		filtered := resultset[:0]
		for _, r := range resultset {
			interval := r.Variation.Location.Interval
			if interval.Start.Value == resolved.start-1 && interval.End.Value == resolved.end {
				filtered = append(filtered, r)
			}
		}
		resultset = filtered
	}
	if resolved.alt != "" {
		filtered := resultset[:0]
		for _, r := range resultset {
			// reference alleles pass through an alt filter untouched
			if isRefAllele(r.VariantInternalID) || variants.SeqMatch(r.Variation.State.Sequence, resolved.alt) {
				filtered = append(filtered, r)
			}
		}
		resultset = filtered
	}
	if resolved.ref != "" {
		filtered := resultset[:0]
		for _, r := range resultset {
			if !isRefAllele(r.VariantInternalID) || variants.SeqMatch(r.Variation.State.Sequence, resolved.ref) {
				filtered = append(filtered, r)
			}
		}
		resultset = filtered
	}
	if resolved.minLen != nil || resolved.maxLen != nil {
		filtered := resultset[:0]
		for _, r := range resultset {
			length := int64(len(r.Variation.State.Sequence))
			if resolved.minLen != nil && length < *resolved.minLen {
				continue
			}
			if resolved.maxLen != nil && length > *resolved.maxLen {
				continue
			}
			filtered = append(filtered, r)
		}
		resultset = filtered
	}
	return resultset
}

func isRefAllele(internalID string) bool {
	return len(internalID) > 0 && internalID[len(internalID)-1] == '='
}
