package variants

import "strings"

// IUPAC ambiguity codes and the concrete bases each stands for.
var iupacCodes = map[byte]string{
	'R': "AG",
	'Y': "CT",
	'S': "GC",
	'W': "AT",
	'K': "GT",
	'M': "AC",
	'B': "CGT",
	'D': "AGT",
	'H': "ACT",
	'V': "ACG",
	'N': "ACGT",
}

// ExpandIUPAC expands every ambiguity code in seq into the set of
// unambiguous sequences it can stand for. An unambiguous sequence expands
// to itself.
func ExpandIUPAC(seq string) []string {
	idx := strings.IndexAny(seq, "RYSWKMBDHVN")
	if idx < 0 {
		return []string{seq}
	}
	var result []string
	for _, base := range iupacCodes[seq[idx]] {
		expanded := seq[:idx] + string(base) + seq[idx+1:]
		result = append(result, ExpandIUPAC(expanded)...)
	}
	return result
}

// SeqMatch reports whether two possibly ambiguous sequences can denote at
// least one common unambiguous sequence.
func SeqMatch(a, b string) bool {
	setA := map[string]bool{}
	for _, s := range ExpandIUPAC(a) {
		setA[s] = true
	}
	for _, s := range ExpandIUPAC(b) {
		if setA[s] {
			return true
		}
	}
	return false
}

// GenotypeIndex returns the VCF genotype-ordering index of the unphased
// genotype a/b: with a <= b, the index is b(b+1)/2 + a.
func GenotypeIndex(a, b int) int {
	if a > b {
		a, b = b, a
	}
	return b*(b+1)/2 + a
}
