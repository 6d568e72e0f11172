// internal/tools/nexus.go
package tools

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"

	"treespace/internal/fasta"
)

const nucleotides = "ACGTUN-?"

var plainTaxon = regexp.MustCompile(`^[A-Za-z0-9_.|]+$`)

// WriteNexus converts the aligned FASTA file at src to a NEXUS data block at
// dst. All sequences must have the same length. The datatype is dna when
// every residue is a nucleotide, gap or missing symbol, protein otherwise.
func WriteNexus(src, dst string) error {
	recs, err := fasta.ReadAll(context.Background(), src)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		return fmt.Errorf("%s: empty alignment", src)
	}
	nchar := len(recs[0].Seq)
	datatype := "dna"
	for _, r := range recs {
		if len(r.Seq) != nchar {
			return fmt.Errorf("%s: %s has %d columns, expected %d", src, r.ID, len(r.Seq), nchar)
		}
		if datatype == "dna" && strings.Trim(strings.ToUpper(string(r.Seq)), nucleotides) != "" {
			datatype = "protein"
		}
	}

	fh, err := os.Create(dst)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(fh)
	fmt.Fprintf(w, "#NEXUS\nbegin data;\n")
	fmt.Fprintf(w, "\tdimensions ntax=%d nchar=%d;\n", len(recs), nchar)
	fmt.Fprintf(w, "\tformat datatype=%s missing=? gap=-;\n", datatype)
	fmt.Fprintf(w, "\tmatrix\n")
	for _, r := range recs {
		fmt.Fprintf(w, "\t%s %s\n", taxonLabel(r.ID), r.Seq)
	}
	fmt.Fprintf(w, "\t;\nend;\n")
	if err := w.Flush(); err != nil {
		_ = fh.Close()
		return err
	}
	return fh.Close()
}

func taxonLabel(id string) string {
	if plainTaxon.MatchString(id) {
		return id
	}
	return "'" + strings.ReplaceAll(id, "'", "''") + "'"
}
