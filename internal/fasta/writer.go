// internal/fasta/writer.go
package fasta

import (
	"bufio"
	"fmt"
	"io"
	"os"
)

// Write emits records as ">id\nSEQ\n", one sequence line per record.
func Write(w io.Writer, recs []Record) error {
	for _, r := range recs {
		if _, err := fmt.Fprintf(w, ">%s\n%s\n", r.ID, r.Seq); err != nil {
			return err
		}
	}
	return nil
}

// WriteFile creates (or truncates) path and writes recs to it.
func WriteFile(path string, recs []Record) error {
	fh, err := os.Create(path)
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(fh)
	if err := Write(bw, recs); err != nil {
		_ = fh.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := bw.Flush(); err != nil {
		_ = fh.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return fh.Close()
}
