// internal/materialize/materialize.go
package materialize

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"treespace/internal/fasta"
	"treespace/internal/orthogroup"
	"treespace/internal/seqrepo"
	"treespace/internal/translate"
)

// PepExt is the extension of translated family files.
const PepExt = "pep"

// Files are the per-family outputs. Pep is empty when translation is off.
type Files struct {
	Seq string
	Pep string
}

// Options selects where and how family files are written.
type Options struct {
	SeqDir    string // raw family files, <SeqDir>/<family>.<SeqType>
	PepDir    string // translated family files, <PepDir>/<family>.pep
	SeqType   string
	Translate bool
	Policy    translate.Policy
}

// Materializer writes one sequence file per family from a loaded repository.
type Materializer struct {
	Repo    *seqrepo.Repository
	Table   *orthogroup.Table
	Threads int
	Log     *slog.Logger
}

// Write materializes families. Every member of every family is resolved
// before the first file is created; missing members are reported together
// as a *seqrepo.MissingGeneError. Families are written concurrently, each to
// its own files. The first write or translation error is returned.
func (m *Materializer) Write(ctx context.Context, families []string, o Options) (map[string]Files, error) {
	plans := make([][]seqrepo.Record, len(families))
	var missing []string
	for i, fam := range families {
		for _, mem := range m.Table.Members(fam) {
			for _, g := range mem.Genes {
				rec, err := m.Repo.Lookup(mem.Species, g)
				if err != nil {
					missing = append(missing, fmt.Sprintf("%s: %v", fam, err))
					continue
				}
				plans[i] = append(plans[i], rec)
			}
		}
	}
	if len(missing) > 0 {
		return nil, &seqrepo.MissingGeneError{Missing: missing}
	}

	if err := os.MkdirAll(o.SeqDir, 0o755); err != nil {
		return nil, err
	}
	if o.Translate {
		if err := os.MkdirAll(o.PepDir, 0o755); err != nil {
			return nil, err
		}
	}

	out := make([]Files, len(families))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(m.Threads, 1))
	for i, fam := range families {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			f, err := writeFamily(fam, plans[i], o)
			if err != nil {
				return err
			}
			out[i] = f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := make(map[string]Files, len(families))
	for i, fam := range families {
		res[fam] = out[i]
	}
	m.logf("family sequence files written", "families", len(families), "dir", o.SeqDir, "translated", o.Translate)
	return res, nil
}

func writeFamily(fam string, recs []seqrepo.Record, o Options) (Files, error) {
	raw := make([]fasta.Record, len(recs))
	for i, r := range recs {
		raw[i] = r.Record
	}
	f := Files{Seq: filepath.Join(o.SeqDir, fam+"."+o.SeqType)}
	if err := fasta.WriteFile(f.Seq, raw); err != nil {
		return Files{}, err
	}
	if !o.Translate {
		return f, nil
	}
	pep := make([]fasta.Record, len(recs))
	for i, r := range recs {
		aa, err := translate.Translate(r.ID, r.Seq, o.Policy)
		if err != nil {
			return Files{}, fmt.Errorf("family %s: %w", fam, err)
		}
		pep[i] = fasta.Record{ID: r.ID, Seq: aa}
	}
	f.Pep = filepath.Join(o.PepDir, fam+"."+PepExt)
	if err := fasta.WriteFile(f.Pep, pep); err != nil {
		return Files{}, err
	}
	return f, nil
}

func (m *Materializer) logf(msg string, args ...any) {
	if m.Log != nil {
		m.Log.Info(msg, args...)
	}
}
