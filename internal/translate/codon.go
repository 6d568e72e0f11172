// internal/translate/codon.go
package translate

// standard is NCBI translation table 1, indexed by codon.
var standard = map[string]byte{
	"TTT": 'F', "TTC": 'F', "TTA": 'L', "TTG": 'L',
	"CTT": 'L', "CTC": 'L', "CTA": 'L', "CTG": 'L',
	"ATT": 'I', "ATC": 'I', "ATA": 'I', "ATG": 'M',
	"GTT": 'V', "GTC": 'V', "GTA": 'V', "GTG": 'V',
	"TCT": 'S', "TCC": 'S', "TCA": 'S', "TCG": 'S',
	"CCT": 'P', "CCC": 'P', "CCA": 'P', "CCG": 'P',
	"ACT": 'T', "ACC": 'T', "ACA": 'T', "ACG": 'T',
	"GCT": 'A', "GCC": 'A', "GCA": 'A', "GCG": 'A',
	"TAT": 'Y', "TAC": 'Y', "TAA": '*', "TAG": '*',
	"CAT": 'H', "CAC": 'H', "CAA": 'Q', "CAG": 'Q',
	"AAT": 'N', "AAC": 'N', "AAA": 'K', "AAG": 'K',
	"GAT": 'D', "GAC": 'D', "GAA": 'E', "GAG": 'E',
	"TGT": 'C', "TGC": 'C', "TGA": '*', "TGG": 'W',
	"CGT": 'R', "CGC": 'R', "CGA": 'R', "CGG": 'R',
	"AGT": 'S', "AGC": 'S', "AGA": 'R', "AGG": 'R',
	"GGT": 'G', "GGC": 'G', "GGA": 'G', "GGG": 'G',
}

var starts = map[string]bool{"TTG": true, "CTG": true, "ATG": true}

// iupac expands nucleotide ambiguity codes.
var iupac = map[byte]string{
	'A': "A", 'C': "C", 'G': "G", 'T': "T",
	'R': "AG", 'Y': "CT", 'S': "GC", 'W': "AT",
	'K': "GT", 'M': "AC", 'B': "CGT", 'D': "AGT",
	'H': "ACT", 'V': "ACG", 'N': "ACGT",
}

// residue translates one upper-case codon. An ambiguous codon resolves to
// the single residue all of its expansions agree on, or 'X'.
func residue(codon string) byte {
	if aa, ok := standard[codon]; ok {
		return aa
	}
	var agreed byte
	ok := expand(codon, func(c string) bool {
		aa := standard[c]
		if agreed == 0 {
			agreed = aa
		}
		return aa == agreed
	})
	if !ok || agreed == 0 {
		return 'X'
	}
	return agreed
}

// expand calls fn for every unambiguous codon codon stands for and stops
// as soon as fn returns false. It reports false for unknown symbols.
func expand(codon string, fn func(string) bool) bool {
	var b [3]byte
	var rec func(i int) bool
	rec = func(i int) bool {
		if i == 3 {
			return fn(string(b[:]))
		}
		opts, ok := iupac[codon[i]]
		if !ok {
			return false
		}
		for j := 0; j < len(opts); j++ {
			b[i] = opts[j]
			if !rec(i + 1) {
				return false
			}
		}
		return true
	}
	return rec(0)
}
