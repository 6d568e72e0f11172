// internal/seqrepo/seqrepo.go
package seqrepo

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"treespace/internal/fasta"
)

// Record is a loaded sequence and the species file it came from.
type Record struct {
	fasta.Record
	Species string
}

// GeneIndex maps gene id to species id.
type GeneIndex map[string]string

// Repository holds every record of every species file. It is read-only
// once Load returns and safe for concurrent readers.
type Repository struct {
	index   GeneIndex
	species []string
	byName  map[string]map[string]Record
	alias   map[string]string
}

// ListSpeciesFiles returns the regular files of dir in name order as
// absolute paths. Hidden entries and __pycache__ are skipped.
func ListSpeciesFiles(dir string) ([]string, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range ents {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || name == "__pycache__" {
			continue
		}
		out = append(out, filepath.Join(abs, name))
	}
	return out, nil
}

// Load reads paths in order. The species id of a file is its base name.
// Every gene id seen more than once, in the same file or across files, is
// collected and returned as a *DuplicateGeneIDError once all files are read.
func Load(ctx context.Context, log *slog.Logger, paths []string) (*Repository, error) {
	names := make([]string, len(paths))
	for i, p := range paths {
		names[i] = filepath.Base(p)
	}
	log.Info("species sequence files found", "count", len(paths))
	log.Info("species sequence files", "files", strings.Join(names, ", "))

	r := &Repository{
		index:  GeneIndex{},
		byName: make(map[string]map[string]Record, len(paths)),
		alias:  map[string]string{},
	}
	dups := map[string][]string{}
	for i, p := range paths {
		sp := names[i]
		if _, ok := r.byName[sp]; ok {
			return nil, fmt.Errorf("species file name %q appears twice", sp)
		}
		r.species = append(r.species, sp)
		genes := map[string]Record{}
		r.byName[sp] = genes
		n := 0
		err := fasta.ScanPath(ctx, p, func(rec fasta.Record) error {
			n++
			if prev, seen := r.index[rec.ID]; seen {
				if len(dups[rec.ID]) == 0 {
					dups[rec.ID] = append(dups[rec.ID], prev)
				}
				dups[rec.ID] = append(dups[rec.ID], sp)
				return nil
			}
			r.index[rec.ID] = sp
			genes[rec.ID] = Record{Record: rec, Species: sp}
			return nil
		})
		if err != nil {
			return nil, err
		}
		log.Debug("loaded species file", "species", sp, "records", n)
	}
	if len(dups) > 0 {
		return nil, &DuplicateGeneIDError{IDs: dups}
	}
	r.buildAliases()
	return r, nil
}

// buildAliases lets a species be addressed without its file extensions
// ("Ath.fa.gz" -> "Ath.fa" -> "Ath"), unless that stem is ambiguous.
func (r *Repository) buildAliases() {
	count := map[string]int{}
	for _, sp := range r.species {
		for _, stem := range stems(sp) {
			count[stem]++
		}
	}
	for _, sp := range r.species {
		for _, stem := range stems(sp) {
			if _, exact := r.byName[stem]; !exact && count[stem] == 1 {
				r.alias[stem] = sp
			}
		}
	}
}

func stems(name string) []string {
	var out []string
	n := strings.TrimSuffix(name, ".gz")
	if n != name {
		out = append(out, n)
	}
	if ext := filepath.Ext(n); ext != "" && ext != n {
		out = append(out, strings.TrimSuffix(n, ext))
	}
	return out
}

// Resolve maps a species id as written in an orthogroup table to the
// loaded species file name.
func (r *Repository) Resolve(species string) (string, bool) {
	if _, ok := r.byName[species]; ok {
		return species, true
	}
	sp, ok := r.alias[species]
	return sp, ok
}

// Lookup returns the record of gene in species.
func (r *Repository) Lookup(species, gene string) (Record, error) {
	sp, ok := r.Resolve(species)
	if !ok {
		return Record{}, fmt.Errorf("unknown species %q", species)
	}
	rec, ok := r.byName[sp][gene]
	if !ok {
		if other, found := r.index[gene]; found {
			return Record{}, fmt.Errorf("gene %q is in %s, not %s", gene, other, sp)
		}
		return Record{}, fmt.Errorf("gene %q not found in %s", gene, sp)
	}
	return rec, nil
}

// Species lists species ids in load order.
func (r *Repository) Species() []string { return append([]string(nil), r.species...) }

// Index returns the gene → species index. Callers must not modify it.
func (r *Repository) Index() GeneIndex { return r.index }

// Len is the number of loaded genes.
func (r *Repository) Len() int { return len(r.index) }

// DuplicateGeneIDError lists every gene id that occurs more than once,
// with the species files it was seen in (in load order).
type DuplicateGeneIDError struct {
	IDs map[string][]string
}

func (e *DuplicateGeneIDError) Error() string {
	ids := make([]string, 0, len(e.IDs))
	for id := range e.IDs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("%s (%s)", id, strings.Join(e.IDs[id], ", "))
	}
	return "duplicated gene id(s): " + strings.Join(parts, "; ")
}

// MissingGeneError lists orthogroup members that could not be found in the
// loaded species files, one entry per family/species/gene.
type MissingGeneError struct {
	Missing []string
}

func (e *MissingGeneError) Error() string {
	return fmt.Sprintf("%d orthogroup member(s) missing from sequence files: %s",
		len(e.Missing), strings.Join(e.Missing, "; "))
}
