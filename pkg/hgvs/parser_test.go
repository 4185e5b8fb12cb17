package hgvs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		accession string
		position  int64
		change    string
		wantErr   bool
	}{
		{
			name:      "genomic substitution",
			input:     "NC_000021.9:g.5030551A>G",
			accession: "NC_000021.9",
			position:  5030551,
			change:    "A>G",
		},
		{
			name:      "coding substitution",
			input:     "NM_000059.4:c.100A>G",
			accession: "NM_000059.4",
			position:  100,
			change:    "A>G",
		},
		{
			name:      "range deletion",
			input:     "NC_000021.9:g.5030551_5030580del",
			accession: "NC_000021.9",
			position:  5030551,
			change:    "_5030580del",
		},
		{
			name:    "no position",
			input:   "NC_000021.9:g.del",
			wantErr: true,
		},
		{
			name:    "not hgvs at all",
			input:   "chr21:5030551",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parsed, err := Parse(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.accession, parsed.Accession)
			assert.Equal(t, tt.position, parsed.Position)
			assert.Equal(t, tt.change, parsed.Change)
		})
	}
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name    string
		change  string
		start   int64
		want    Location
		wantErr bool
	}{
		{
			name:   "substitution",
			change: "A>G",
			start:  100,
			want:   Location{Type: TypeSubstitution, Start: 100, End: 101, Ref: "A", Alt: "G"},
		},
		{
			name:   "reference identity",
			change: "A=",
			start:  100,
			want:   Location{Type: TypeSubstitution, Start: 100, End: 101, Ref: "A", Alt: ""},
		},
		{
			name:   "deletion shifts back one base",
			change: "_110del",
			start:  100,
			want:   Location{Type: TypeDeletion, Start: 99, End: 110, Ref: "NNNNNNNNNNN", Alt: "N"},
		},
		{
			name:   "insertion pads with placeholder base",
			change: "_101insACG",
			start:  100,
			want:   Location{Type: TypeInsertion, Start: 99, End: 104, Ref: "NA", Alt: "NACG"},
		},
		{
			name:   "delins",
			change: "_105delinsTT",
			start:  100,
			want:   Location{Type: TypeDelIns, Start: 100, End: 105, Ref: "NNNNN", Alt: "TT"},
		},
		{
			name:   "duplication doubles the span",
			change: "_110dup",
			start:  100,
			want:   Location{Type: TypeDuplication, Start: 100, End: 120},
		},
		{
			name:   "inversion keeps its own span",
			change: "_110inv",
			start:  100,
			want:   Location{Type: TypeInversion, Start: 100, End: 110},
		},
		{
			name:   "repeat",
			change: "CAG[3]",
			start:  100,
			want:   Location{Type: TypeRepeat, Start: 100, End: 103, Ref: "CAG", Alt: "CAGCAGCAG"},
		},
		{
			name:    "unknown clause",
			change:  "~nonsense",
			start:   100,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parsed := &Parsed{Accession: "NC_000021.9", Position: tt.start, Change: tt.change}
			loc, err := parsed.Resolve(tt.start)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, *loc)
		})
	}
}
