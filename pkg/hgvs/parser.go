package hgvs

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Change types a parsed genomic allele can carry.
const (
	TypeSubstitution = "SUB"
	TypeDeletion     = "DEL"
	TypeInsertion    = "INS"
	TypeDuplication  = "DUP"
	TypeInversion    = "INV"
	TypeDelIns       = "DELINS"
	TypeRepeat       = "REP"
)

// Parsed is the decomposition of a genomic or coding HGVS short form:
// accession, 1-based position, and the raw change clause after the
// position digits.
type Parsed struct {
	Accession string
	Position  int64
	Change    string
}

// Location is a change clause resolved against a concrete start
// coordinate, expressed VCF-style: deletions and insertions shift back
// one base and pad with N placeholders.
type Location struct {
	Type  string
	Start int64
	End   int64
	Ref   string
	Alt   string
}

var (
	shortFormRe = regexp.MustCompile(`^(.+):[gc]\.(\d+)(.+)$`)

	subRe    = regexp.MustCompile(`^([A-Z]+)[>=]([A-Z]*)`)
	delRe    = regexp.MustCompile(`^_(\d+)del$`)
	insRe    = regexp.MustCompile(`^_(\d+)ins([A-Z]+)`)
	dupRe    = regexp.MustCompile(`^_(\d+)dup`)
	invRe    = regexp.MustCompile(`^_(\d+)inv`)
	delinsRe = regexp.MustCompile(`^_(\d+)delins([A-Z]+)`)
	repRe    = regexp.MustCompile(`^([A-Z]+)\[(\d+)\]`)
)

// Parse splits an HGVS short form like "NM_000059.4:c.100A>G" or
// "NC_000021.9:g.5030551_5030580del" into its accession, position and
// change clause.
func Parse(id string) (*Parsed, error) {
	m := shortFormRe.FindStringSubmatch(id)
	if m == nil {
		return nil, fmt.Errorf("unparseable HGVS short form %q", id)
	}
	pos, err := strconv.ParseInt(m[2], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing HGVS position: %w", err)
	}
	return &Parsed{Accession: m[1], Position: pos, Change: m[3]}, nil
}

// Resolve turns the change clause into a concrete VCF-style location
// given the already-computed genomic start of the allele.
func (p *Parsed) Resolve(start int64) (*Location, error) {
	if m := subRe.FindStringSubmatch(p.Change); m != nil {
		return &Location{
			Type:  TypeSubstitution,
			Start: start,
			End:   start + int64(len(m[1])),
			Ref:   m[1],
			Alt:   m[2],
		}, nil
	}

	if m := delRe.FindStringSubmatch(p.Change); m != nil {
		// deletions start the base before; ref spans the deleted bases
		end, _ := strconv.ParseInt(m[1], 10, 64)
		start--
		return &Location{
			Type:  TypeDeletion,
			Start: start,
			End:   end,
			Ref:   strings.Repeat("N", int(end-start)),
			Alt:   "N",
		}, nil
	}

	if m := insRe.FindStringSubmatch(p.Change); m != nil {
		// insertions start the base before; alt is ref base + inserted seq
		start--
		alt := "N" + m[2]
		return &Location{
			Type:  TypeInsertion,
			Start: start,
			End:   start + int64(len(alt)) + 1,
			Ref:   "N" + m[2][:1],
			Alt:   alt,
		}, nil
	}

	if m := delinsRe.FindStringSubmatch(p.Change); m != nil {
		end, _ := strconv.ParseInt(m[1], 10, 64)
		return &Location{
			Type:  TypeDelIns,
			Start: start,
			End:   end,
			Ref:   strings.Repeat("N", int(end-start)),
			Alt:   m[2],
		}, nil
	}

	if m := dupRe.FindStringSubmatch(p.Change); m != nil {
		end, _ := strconv.ParseInt(m[1], 10, 64)
		return &Location{
			Type:  TypeDuplication,
			Start: start,
			End:   end*2 - start,
		}, nil
	}

	if m := invRe.FindStringSubmatch(p.Change); m != nil {
		end, _ := strconv.ParseInt(m[1], 10, 64)
		return &Location{
			Type:  TypeInversion,
			Start: start,
			End:   end,
		}, nil
	}

	if m := repRe.FindStringSubmatch(p.Change); m != nil {
		count, _ := strconv.Atoi(m[2])
		return &Location{
			Type:  TypeRepeat,
			Start: start,
			End:   start + int64(len(m[1])),
			Ref:   m[1],
			Alt:   strings.Repeat(m[1], count),
		}, nil
	}

	return nil, fmt.Errorf("unrecognized HGVS change clause %q", p.Change)
}
