package variants

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Record is one parsed variant (or alignment) line. Pos is 1-based as
// written in the file; Raw holds the line verbatim for passthrough
// streaming.
type Record struct {
	Chrom   string
	Pos     int64
	ID      string
	Ref     string
	Alt     string
	Qual    string
	Filter  string
	Info    map[string]*InfoField
	Samples map[string]map[string]string
	Raw     string
}

// InfoField is one INFO entry, typed against the file's INFO headers.
// When the field is a VEP CSQ annotation, Value is replaced by CSQ keyed
// by allele and Number is set to "K".
type InfoField struct {
	Type        string                `json:"Type"`
	Number      string                `json:"Number"`
	Description string                `json:"Description"`
	Value       []string              `json:"Value"`
	CSQ         map[string][]CSQEntry `json:"-"`
}

// CSQEntry is one pipe-delimited VEP consequence block, keyed by the
// field names declared in the CSQ header's Format clause.
type CSQEntry map[string]string

// InfoMeta is the declaration of one INFO field from the file header.
type InfoMeta struct {
	Number      string
	Type        string
	Description string
}

// Reserved INFO keys from the VCF spec; files may use these without
// declaring them in their headers.
var reservedInfo = map[string]InfoMeta{
	"AA":        {"1", "String", "Ancestral allele"},
	"AC":        {"A", "Integer", "Allele count in genotypes, for each ALT allele, in the same order as listed"},
	"AD":        {"R", "Integer", "Total read depth for each allele"},
	"ADF":       {"R", "Integer", "Read depth for each allele on the forward strand"},
	"ADR":       {"R", "Integer", "Read depth for each allele on the reverse strand"},
	"AF":        {"A", "Float", "Allele frequency for each ALT allele in the same order as listed (estimated from primary data, not called genotypes)"},
	"AN":        {"1", "Integer", "Total number of alleles in called genotypes"},
	"BQ":        {"1", "Float", "RMS base quality"},
	"CIGAR":     {"A", "String", "Cigar string describing how to align an alternate allele to the reference allele"},
	"DB":        {"0", "Flag", "dbSNP membership"},
	"DP":        {"1", "Integer", "Combined depth across samples"},
	"END":       {"1", "Integer", "End position on CHROM (used with symbolic alleles; see below)"},
	"H2":        {"0", "Flag", "HapMap2 membership"},
	"H3":        {"0", "Flag", "HapMap3 membership"},
	"MQ":        {"1", "Float", "RMS mapping quality"},
	"MQ0":       {"1", "Integer", "Number of MAPQ == 0 reads"},
	"NS":        {"1", "Integer", "Number of samples with data"},
	"SB":        {"4", "Integer", "Strand bias"},
	"SOMATIC":   {"0", "Flag", "Somatic mutation (for cancer genomics)"},
	"VALIDATED": {"0", "Flag", "Validated by follow-up experiment"},
	"1000G":     {"0", "Flag", "1000 Genomes membership"},
}

var infoHeaderRe = regexp.MustCompile(`##INFO=<ID=([^,]+),Number=([^,]+),Type=([^,]+),Description="([^"]*)"`)

// ParseInfoHeaders extracts INFO field declarations from header lines.
func ParseInfoHeaders(lines []string) map[string]InfoMeta {
	meta := map[string]InfoMeta{}
	for _, line := range lines {
		m := infoHeaderRe.FindStringSubmatch(line)
		if m != nil {
			meta[m[1]] = InfoMeta{Number: m[2], Type: m[3], Description: m[4]}
		}
	}
	return meta
}

// ParseRecord splits one VCF data line into a Record. samples names the
// per-sample columns in file order; INFO stays raw until typed with
// ProcessInfo.
func ParseRecord(line string, samples []string) (*Record, error) {
	cols := strings.Split(line, "\t")
	if len(cols) < 8 {
		return nil, fmt.Errorf("malformed variant line: %d columns", len(cols))
	}
	pos, err := strconv.ParseInt(cols[1], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing variant position: %w", err)
	}
	rec := &Record{
		Chrom:   cols[0],
		Pos:     pos,
		ID:      cols[2],
		Ref:     cols[3],
		Alt:     cols[4],
		Qual:    cols[5],
		Filter:  cols[6],
		Samples: map[string]map[string]string{},
		Raw:     line,
	}
	rec.Info = map[string]*InfoField{"_raw": {Value: []string{cols[7]}}}

	if len(cols) > 9 {
		format := strings.Split(cols[8], ":")
		for i, name := range samples {
			if 9+i >= len(cols) {
				break
			}
			values := strings.Split(cols[9+i], ":")
			sample := map[string]string{}
			for j, key := range format {
				if j < len(values) {
					sample[key] = values[j]
				}
			}
			rec.Samples[name] = sample
		}
	}
	return rec, nil
}

// ProcessInfo types the raw INFO column against the file's declared and
// reserved INFO headers. Undeclared keys are dropped; a CSQ field is
// expanded into per-allele VEP annotations.
func (r *Record) ProcessInfo(headers map[string]InfoMeta) {
	raw := ""
	if f, ok := r.Info["_raw"]; ok && len(f.Value) > 0 {
		raw = f.Value[0]
	}

	merged := map[string]InfoMeta{}
	for k, v := range headers {
		merged[k] = v
	}
	for k, v := range reservedInfo {
		merged[k] = v
	}

	info := map[string]*InfoField{}
	for _, piece := range strings.Split(raw, ";") {
		kv := strings.SplitN(piece, "=", 2)
		meta, ok := merged[kv[0]]
		if !ok {
			continue
		}
		field := &InfoField{
			Type:        meta.Type,
			Number:      meta.Number,
			Description: meta.Description,
		}
		if len(kv) > 1 {
			if meta.Number == "1" {
				field.Value = []string{kv[1]}
			} else {
				field.Value = strings.Split(kv[1], ",")
			}
		}
		info[kv[0]] = field
	}

	if csq, ok := info["CSQ"]; ok {
		if meta, declared := headers["CSQ"]; declared {
			csq.CSQ = parseVEPAnnotation(csq.Value, meta.Description)
			csq.Value = nil
			csq.Description = "Consequence annotations from Ensembl VEP."
			csq.Number = "K"
		}
	}
	r.Info = info
}

var csqFormatRe = regexp.MustCompile(`.+Format: (.+)`)

// parseVEPAnnotation splits the pipe-delimited CSQ values into entries
// keyed by allele, using the field names from the header's Format clause.
func parseVEPAnnotation(values []string, csqHeader string) map[string][]CSQEntry {
	m := csqFormatRe.FindStringSubmatch(csqHeader)
	if m == nil {
		return nil
	}
	fields := strings.Split(m[1], "|")

	result := map[string][]CSQEntry{}
	for _, value := range values {
		pieces := strings.Split(value, "|")
		if len(pieces) > len(fields) {
			continue
		}
		entry := CSQEntry{}
		for i, piece := range pieces {
			if piece != "" {
				entry[fields[i]] = piece
			}
		}
		allele := entry["Allele"]
		result[allele] = append(result[allele], entry)
	}
	return result
}

// overlaps reports whether the record intersects the 0-based half-open
// region [start, end) on contig. Empty contig matches everything; end==-1
// means unbounded.
func (r *Record) overlaps(contig string, start, end int64) bool {
	if contig != "" && r.Chrom != contig {
		return false
	}
	recStart := r.Pos - 1
	span := int64(len(r.Ref))
	if span == 0 {
		span = 1
	}
	recEnd := recStart + span
	if end != -1 && recStart >= end {
		return false
	}
	return recEnd > start
}
