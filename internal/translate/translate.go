// internal/translate/translate.go
package translate

import (
	"bytes"
	"fmt"
)

// Policy controls how a coding sequence is translated.
type Policy struct {
	ToStop bool // stop at the first in-frame stop codon (not included)
	CDS    bool // require a complete coding sequence; see Translate
}

// Error reports a record that does not satisfy the CDS policy.
type Error struct {
	ID     string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("translate %s: %s", e.ID, e.Reason)
}

// Translate returns the protein for seq using the standard genetic code.
//
// With CDS set, seq must be a whole number of codons, start with a start
// codon (translated as M), end with a stop codon (dropped) and contain no
// other stop. Otherwise a trailing partial codon is ignored and stops are
// written as '*' unless ToStop truncates there.
func Translate(id string, seq []byte, p Policy) ([]byte, error) {
	s := bytes.ToUpper(seq)
	s = bytes.ReplaceAll(s, []byte("U"), []byte("T"))

	if p.CDS {
		if len(s)%3 != 0 {
			return nil, &Error{ID: id, Reason: fmt.Sprintf("length %d is not a multiple of three", len(s))}
		}
		if len(s) < 6 {
			return nil, &Error{ID: id, Reason: "too short for a start and a stop codon"}
		}
		if !starts[string(s[:3])] {
			return nil, &Error{ID: id, Reason: fmt.Sprintf("first codon %q is not a start codon", s[:3])}
		}
		if residue(string(s[len(s)-3:])) != '*' {
			return nil, &Error{ID: id, Reason: fmt.Sprintf("final codon %q is not a stop codon", s[len(s)-3:])}
		}
		s = s[:len(s)-3]
	}

	out := make([]byte, 0, len(s)/3)
	for i := 0; i+3 <= len(s); i += 3 {
		aa := residue(string(s[i : i+3]))
		if p.CDS {
			if i == 0 {
				aa = 'M'
			} else if aa == '*' {
				return nil, &Error{ID: id, Reason: fmt.Sprintf("extra in-frame stop codon at position %d", i)}
			}
		}
		if aa == '*' && p.ToStop {
			break
		}
		out = append(out, aa)
	}
	return out, nil
}
