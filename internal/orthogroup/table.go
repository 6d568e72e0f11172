// internal/orthogroup/table.go
package orthogroup

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
)

// Class is the alignment eligibility of a family.
type Class int

const (
	// Singleton families have at most one gene across all species.
	Singleton Class = iota
	// MultiMember families proceed to alignment and tree inference.
	MultiMember
)

func (c Class) String() string {
	if c == Singleton {
		return "singleton"
	}
	return "multi-member"
}

// Row is one family of the table. Cells follow Table.Species order; an empty
// cell means the family has no member in that species.
type Row struct {
	Family string
	Cells  []string
}

// Membership is the ordered gene list of one family in one species.
type Membership struct {
	Species string
	Genes   []string
}

// Table is a parsed family × species matrix.
type Table struct {
	Species []string
	Rows    []Row

	byFamily map[string]int // first row index per family
}

// Load parses the orthogroup file at path.
func Load(path string) (*Table, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()
	return Parse(fh, path)
}

// Parse reads a tab-delimited table: the header row names the species
// columns (its first cell labels the family column), and each further row is
// a family id followed by one comma-separated gene list per species.
func Parse(r io.Reader, name string) (*Table, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	t := &Table{byFamily: map[string]int{}}
	ln := 0
	header := false
	for sc.Scan() {
		ln++
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		f := strings.Split(line, "\t")
		if !header {
			if len(f) < 2 {
				return nil, fmt.Errorf("%s:%d header needs a family column and at least one species", name, ln)
			}
			for _, sp := range f[1:] {
				t.Species = append(t.Species, strings.TrimSpace(sp))
			}
			header = true
			continue
		}
		if len(f)-1 > len(t.Species) {
			return nil, fmt.Errorf("%s:%d has %d species cells, header has %d", name, ln, len(f)-1, len(t.Species))
		}
		row := Row{Family: strings.TrimSpace(f[0]), Cells: make([]string, len(t.Species))}
		if row.Family == "" {
			return nil, fmt.Errorf("%s:%d empty family id", name, ln)
		}
		for i, c := range f[1:] {
			row.Cells[i] = strings.TrimSpace(c)
		}
		if _, seen := t.byFamily[row.Family]; !seen {
			t.byFamily[row.Family] = len(t.Rows)
		}
		t.Rows = append(t.Rows, row)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if !header {
		return nil, fmt.Errorf("%s: empty orthogroup table", name)
	}
	return t, nil
}

// FamilyIDs returns every family id in table order. If any id occurs on
// more than one row, it returns a *DuplicateFamilyIDError naming all of them.
func (t *Table) FamilyIDs() ([]string, error) {
	ids := make([]string, 0, len(t.Rows))
	count := make(map[string]int, len(t.Rows))
	for _, r := range t.Rows {
		ids = append(ids, r.Family)
		count[r.Family]++
	}
	var dup []string
	for id, n := range count {
		if n > 1 {
			dup = append(dup, id)
		}
	}
	if len(dup) > 0 {
		sort.Strings(dup)
		return nil, &DuplicateFamilyIDError{IDs: dup}
	}
	return ids, nil
}

// SplitGenes splits a cell into gene ids. Empty cells yield nil.
func SplitGenes(cell string) []string {
	var out []string
	for _, g := range strings.Split(cell, ",") {
		if g = strings.TrimSpace(g); g != "" {
			out = append(out, g)
		}
	}
	return out
}

func (t *Table) row(family string) (Row, bool) {
	i, ok := t.byFamily[family]
	if !ok {
		return Row{}, false
	}
	return t.Rows[i], true
}

// Members returns the non-empty memberships of family in column order.
func (t *Table) Members(family string) []Membership {
	r, ok := t.row(family)
	if !ok {
		return nil
	}
	var out []Membership
	for i, c := range r.Cells {
		if genes := SplitGenes(c); len(genes) > 0 {
			out = append(out, Membership{Species: t.Species[i], Genes: genes})
		}
	}
	return out
}

// GeneCount is the total number of genes of family across species.
func (t *Table) GeneCount(family string) int {
	n := 0
	for _, m := range t.Members(family) {
		n += len(m.Genes)
	}
	return n
}

// IsSingleton reports whether family has at most one gene.
func (t *Table) IsSingleton(family string) bool { return t.GeneCount(family) <= 1 }

// Classify returns the singleton and multi-member family ids, each sorted.
func (t *Table) Classify() (singletons, multi []string) {
	for i, r := range t.Rows {
		if t.byFamily[r.Family] != i {
			continue // repeated id, classified by its first row
		}
		if t.IsSingleton(r.Family) {
			singletons = append(singletons, r.Family)
		} else {
			multi = append(multi, r.Family)
		}
	}
	sort.Strings(singletons)
	sort.Strings(multi)
	return singletons, multi
}

// ClassOf returns the class of family.
func (t *Table) ClassOf(family string) Class {
	if t.IsSingleton(family) {
		return Singleton
	}
	return MultiMember
}

// DuplicateFamilyIDError lists every family id that appears on more than
// one row of the table, sorted.
type DuplicateFamilyIDError struct {
	IDs []string
}

func (e *DuplicateFamilyIDError) Error() string {
	return "duplicated gene family id(s): " + strings.Join(e.IDs, ", ")
}
