package domain

import (
	"regexp"
	"time"
)

// Checksum is a single content-addressed checksum on a DRS object.
type Checksum struct {
	Type     string `json:"type"`
	Checksum string `json:"checksum"`
}

// AccessMethod describes one way to retrieve the bytes of a DRS object.
// Exactly one of AccessID or URL is populated. An AccessID has the form
// endpoint/bucket/object_name[?access=K&secret=K[&public=true]].
type AccessMethod struct {
	Type     string            `json:"type"`
	AccessID string            `json:"access_id,omitempty"`
	Region   string            `json:"region,omitempty"`
	URL      string            `json:"access_url,omitempty"`
	Headers  map[string]string `json:"headers,omitempty"`
}

// ContentsObject is a link record from a bundling DRS object to another
// object in the catalog, resolved by Name.
type ContentsObject struct {
	Name     string   `json:"name"`
	ID       string   `json:"id,omitempty"`
	DrsURI   []string `json:"drs_uri,omitempty"`
	Contents []string `json:"contents,omitempty"`
}

// Object role tags carried in DrsObject.Description.
const (
	RoleWGS     = "wgs"
	RoleWTS     = "wts"
	RoleVariant = "variant"
	RoleRead    = "read"
	RoleIndex   = "index"
	RoleSample  = "sample"
)

// DrsObject is the central catalog entity.
type DrsObject struct {
	ID            string           `json:"id"`
	Name          string           `json:"name"`
	SelfURI       string           `json:"self_uri"`
	Size          int64            `json:"size"`
	CreatedTime   time.Time        `json:"created_time"`
	UpdatedTime   time.Time        `json:"updated_time"`
	Version       string           `json:"version,omitempty"`
	MimeType      string           `json:"mime_type,omitempty"`
	Description   string           `json:"description,omitempty"`
	Aliases       []string         `json:"aliases,omitempty"`
	Checksums     []Checksum       `json:"checksums"`
	AccessMethods []AccessMethod   `json:"access_methods,omitempty"`
	Contents      []ContentsObject `json:"contents,omitempty"`
	Cohort        string           `json:"cohort,omitempty"`

	// ReferenceGenome is accepted on input only; when set, the catalog
	// creates or updates the associated VariantFile row.
	ReferenceGenome string `json:"reference_genome,omitempty"`
}

// IsGenomic reports whether the object is a GenomicDrsObject, i.e. a bundle
// of one data child, one index child and sample links.
func (o *DrsObject) IsGenomic() bool {
	return o.Description == RoleWGS || o.Description == RoleWTS
}

// IsSampleObject reports whether the object groups GenomicDrsObjects for one
// canonical sample.
func (o *DrsObject) IsSampleObject() bool {
	return o.Description == RoleSample
}

// Cohort is a logical grouping of DRS objects with a shared authorization
// scope; the policy point calls it a "program".
type Cohort struct {
	ID string `json:"id"`
}

// VariantFile records indexing state for a genomic DRS object holding
// variants. ChrPrefix is how the file spells chromosomes ("" or "chr") so
// normalized contig names can be translated back to the file's naming.
type VariantFile struct {
	ID              string `json:"id"`
	DrsObjectID     string `json:"drs_object_id"`
	Indexed         int    `json:"indexed"`
	ChrPrefix       string `json:"chr_prefix"`
	ReferenceGenome string `json:"reference_genome"`
	GenomicID       string `json:"genomic_id,omitempty"`
}

// Bucket is one position bucket and the record count it holds for a file.
type Bucket struct {
	PosBucketID int64 `json:"pos_bucket"`
	Count       int64 `json:"count"`
}

// SearchResult is a per-variantfile total over a region.
type SearchResult struct {
	DrsObjectID     string `json:"drs_object_id"`
	VariantCount    int64  `json:"variantcount"`
	ReferenceGenome string `json:"reference_genome"`
}

// Region is a caller-facing genomic interval, 0-based half-open.
type Region struct {
	ReferenceName string `json:"referenceName"`
	Start         int64  `json:"start"`
	End           int64  `json:"end"`
}

// RefSeq is one row of the static NCBI refseq/gene lookup table.
type RefSeq struct {
	ReferenceGenome string `json:"reference_genome"`
	GeneName        string `json:"gene_name"`
	TranscriptName  string `json:"transcript_name"`
	Contig          string `json:"contig"`
	Start           int64  `json:"start"`
	End             int64  `json:"endpos"`
}

// CohortStatus summarizes indexing progress for every genomic object in a
// cohort.
type CohortStatus struct {
	IndexComplete   []string `json:"index_complete"`
	IndexInProgress []string `json:"index_in_progress"`
	IndexErrored    []string `json:"index_errored"`
}

// ContentRole classifies a ContentsObject inside a GenomicDrsObject.
type ContentRole string

const (
	ContentIndex   ContentRole = "index"
	ContentVariant ContentRole = "variant"
	ContentRead    ContentRole = "read"
	ContentSample  ContentRole = "sample"
)

var (
	indexNameRe   = regexp.MustCompile(`\.(..*i)$`)
	readNameRe    = regexp.MustCompile(`\.(.+?am)$`)
	variantNameRe = regexp.MustCompile(`\.(.cf)(\.gz)*$`)
)

// ClassifyContent derives a content role from a filename. Used as the
// fallback for legacy rows created before roles were stored at insert time.
func ClassifyContent(name string) ContentRole {
	switch {
	case variantNameRe.MatchString(name):
		return ContentVariant
	case indexNameRe.MatchString(name):
		return ContentIndex
	case readNameRe.MatchString(name):
		return ContentRead
	}
	return ContentSample
}

// FileFormat extracts the upper-cased genomic file format from a filename,
// e.g. "VCF" from x.vcf.gz or "BAM" from x.bam. Empty when the name does
// not look like a genomic file.
func FileFormat(name string) string {
	if m := variantNameRe.FindStringSubmatch(name); m != nil {
		return upper(m[1])
	}
	if m := readNameRe.FindStringSubmatch(name); m != nil {
		return upper(m[1])
	}
	return ""
}

func upper(s string) string {
	b := []byte(s)
	for i := range b {
		if b[i] >= 'a' && b[i] <= 'z' {
			b[i] -= 'a' - 'A'
		}
	}
	return string(b)
}
