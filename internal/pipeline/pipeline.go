// internal/pipeline/pipeline.go
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"treespace/internal/dispatch"
	"treespace/internal/exe"
	"treespace/internal/ledger"
	"treespace/internal/materialize"
	"treespace/internal/metrics"
	"treespace/internal/orthogroup"
	"treespace/internal/params"
	"treespace/internal/report"
	"treespace/internal/seqrepo"
	"treespace/internal/tools"
	"treespace/internal/translate"
	"treespace/internal/version"
)

// Output subdirectories.
const (
	SeqDirName       = "OG_SEQ"
	TranslateDirName = "OG_SEQ_TRANSLATE"
	AlignDirName     = "OG_SEQ_ALIGNMENT_TREE"
)

// Stage names used in logs, the ledger and metrics.
const (
	StageAlign = "align"
	StageTree  = "tree"
)

// State is a step of the orchestrator.
type State int

const (
	StateInit State = iota
	StateSplit
	StateAlign
	StateInferTrees
	StateDone
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateSplit:
		return "split"
	case StateAlign:
		return "align"
	case StateInferTrees:
		return "infer-trees"
	case StateDone:
		return "done"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Options are the per-invocation inputs. Zero values defer to the
// configuration file.
type Options struct {
	ConfigPath  string
	Outdir      string
	Threads     int  // >0 overrides "Number of threads"
	FailFast    bool // overrides "Failure policy"
	MetricsPath string
	NoLedger    bool
}

// Result describes a finished (or aborted) run.
type Result struct {
	RunID      string
	State      State // last state entered
	Config     params.Config
	Outdir     string
	Singletons []string
	Multi      []string
	Families   map[string]materialize.Files // empty in family form
	Align      dispatch.Result
	Tree       dispatch.Result
	Summary    report.Summary
}

// InitError wraps every problem found before the output directory is
// touched: configuration, orthogroup table, tool selection and inputs.
type InitError struct{ Err error }

func (e *InitError) Error() string { return e.Err.Error() }
func (e *InitError) Unwrap() error { return e.Err }

// Orchestrator runs the pipeline. Runner defaults to exe.OSRunner.
type Orchestrator struct {
	Runner exe.Runner
	Log    *slog.Logger
}

type run struct {
	o       *Orchestrator
	opts    Options
	log     *slog.Logger
	res     Result
	table   *orthogroup.Table
	aligner tools.Tool
	tree    tools.Tool
	policy  dispatch.Policy
	inputs  map[string]string // family form: family -> input file

	started time.Time
	ledger  *ledger.Ledger
	metrics *metrics.Batch
}

// Run executes every state in order and returns the result reached so far
// together with the first fatal error.
func (o *Orchestrator) Run(ctx context.Context, opts Options) (Result, error) {
	r := &run{o: o, opts: opts, log: o.log(), started: time.Now(), metrics: metrics.New()}
	r.res.RunID = uuid.NewString()
	r.log = r.log.With("run", r.res.RunID)

	r.enter(StateInit)
	if err := r.init(); err != nil {
		return r.res, &InitError{Err: err}
	}

	err := r.stages(ctx)
	r.finish(err)
	return r.res, err
}

func (r *run) stages(ctx context.Context) error {
	cfg := r.res.Config
	if cfg.Form == params.FormSpecies {
		r.enter(StateSplit)
		if err := r.split(ctx); err != nil {
			return err
		}
	} else if err := r.begin(ctx); err != nil {
		return err
	}

	d := &dispatch.Dispatcher{Runner: r.o.runner(), Log: r.log, Observer: r.observers()}
	alignDir := filepath.Join(r.res.Outdir, AlignDirName)

	r.enter(StateAlign)
	jobs := make([]dispatch.Job, 0, len(r.res.Multi))
	for _, fam := range r.res.Multi {
		jobs = append(jobs, dispatch.Job{Family: fam, Input: r.inputs[fam]})
	}
	var err error
	r.res.Align, err = d.Run(ctx, dispatch.Stage{
		Name: StageAlign, Tool: r.aligner, OutDir: alignDir, Threads: cfg.Threads, Policy: r.policy,
	}, jobs)
	if err != nil {
		return fmt.Errorf("align: %w", err)
	}

	r.enter(StateInferTrees)
	r.res.Tree, err = d.Run(ctx, dispatch.Stage{
		Name: StageTree, Tool: r.tree, OutDir: alignDir, Threads: cfg.Threads, Policy: r.policy,
	}, r.res.Align.Jobs())
	if err != nil {
		return fmt.Errorf("infer trees: %w", err)
	}
	return nil
}

// init validates everything and writes nothing.
func (r *run) init() error {
	if r.opts.ConfigPath == "" {
		return errors.New("no configuration file given")
	}
	if r.opts.Outdir == "" {
		return errors.New("no output directory given")
	}
	out, err := filepath.Abs(r.opts.Outdir)
	if err != nil {
		return err
	}
	r.res.Outdir = out

	store, err := params.Load(r.opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("configuration: %w", err)
	}
	cfg, err := params.Decode(store)
	if err != nil {
		return fmt.Errorf("configuration %s: %w", r.opts.ConfigPath, err)
	}
	if r.opts.Threads > 0 {
		cfg.Threads = r.opts.Threads
	}
	if r.opts.FailFast {
		cfg.FailurePolicy = params.PolicyFailFast
	}
	r.res.Config = cfg
	r.policy = dispatch.BestEffort
	if cfg.FailurePolicy == params.PolicyFailFast {
		r.policy = dispatch.FailFast
	}
	r.logConfig()

	if r.aligner, err = tools.NewAligner(cfg.Aligner); err != nil {
		return err
	}
	if r.tree, err = tools.NewTreeBuilder(cfg.Tree); err != nil {
		return err
	}

	if r.table, err = orthogroup.Load(cfg.OrthogroupPath); err != nil {
		return fmt.Errorf("orthogroup table: %w", err)
	}
	if _, err := r.table.FamilyIDs(); err != nil {
		return err
	}
	r.res.Singletons, r.res.Multi = r.table.Classify()
	r.metrics.SetFamilies(len(r.res.Singletons), len(r.res.Multi))
	r.log.Info("orthogroups classified",
		"families", len(r.res.Singletons)+len(r.res.Multi),
		"singleton", len(r.res.Singletons), "multi_member", len(r.res.Multi))

	if cfg.Form == params.FormFamily {
		return r.familyInputs()
	}
	if _, err := os.Stat(cfg.SeqDir); err != nil {
		return fmt.Errorf("%s: %w", params.KeySeqDir, err)
	}
	return nil
}

// familyInputs locates the pre-split family files of every multi-member
// family and reports all that are missing together.
func (r *run) familyInputs() error {
	cfg := r.res.Config
	ext := cfg.SeqType
	if cfg.AlignTranslated {
		ext = materialize.PepExt
	}
	r.inputs = make(map[string]string, len(r.res.Multi))
	var missing []string
	for _, fam := range r.res.Multi {
		p := filepath.Join(cfg.SeqDir, fam+"."+ext)
		if _, err := os.Stat(p); err != nil {
			missing = append(missing, filepath.Base(p))
			continue
		}
		r.inputs[fam] = p
	}
	if len(missing) > 0 {
		return fmt.Errorf("%d family file(s) missing from %s: %v", len(missing), cfg.SeqDir, missing)
	}
	return nil
}

func (r *run) split(ctx context.Context) error {
	cfg := r.res.Config
	paths, err := seqrepo.ListSpeciesFiles(cfg.SeqDir)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("no species sequence files in %s", cfg.SeqDir)
	}
	repo, err := seqrepo.Load(ctx, r.log, paths)
	if err != nil {
		return err
	}
	r.log.Info("gene index built", "genes", repo.Len(), "species", len(repo.Species()))

	if err := r.begin(ctx); err != nil {
		return err
	}
	m := &materialize.Materializer{Repo: repo, Table: r.table, Threads: cfg.Threads, Log: r.log}
	files, err := m.Write(ctx, r.res.Multi, materialize.Options{
		SeqDir:    filepath.Join(r.res.Outdir, SeqDirName),
		PepDir:    filepath.Join(r.res.Outdir, TranslateDirName),
		SeqType:   cfg.SeqType,
		Translate: cfg.Translate,
		Policy:    translate.Policy{ToStop: cfg.ToStop, CDS: cfg.CDS},
	})
	if err != nil {
		return err
	}
	r.res.Families = files
	r.inputs = make(map[string]string, len(files))
	for fam, f := range files {
		r.inputs[fam] = f.Seq
		if cfg.AlignTranslated {
			r.inputs[fam] = f.Pep
		}
	}
	return nil
}

// begin creates the output directory and opens the run ledger.
func (r *run) begin(ctx context.Context) error {
	if err := os.MkdirAll(r.res.Outdir, 0o755); err != nil {
		return err
	}
	if r.opts.NoLedger {
		return nil
	}
	l, err := ledger.Open(filepath.Join(r.res.Outdir, ledger.FileName), r.log)
	if err != nil {
		return err
	}
	err = l.BeginRun(ctx, ledger.Run{
		ID: r.res.RunID, ConfigPath: r.res.Config.Path, Outdir: r.res.Outdir, Started: r.started,
	})
	if err != nil {
		l.Close()
		return err
	}
	r.ledger = l
	return nil
}

// finish writes the summary, closes the ledger run and exports metrics. It
// runs whether or not the stages succeeded, as long as Init did.
func (r *run) finish(runErr error) {
	if runErr == nil {
		r.enter(StateDone)
	}
	finished := time.Now()
	s := report.Summary{
		RunID:    r.res.RunID,
		Version:  version.Version,
		Started:  r.started,
		Finished: finished,
		Config:   r.res.Config.Path,
		Outdir:   r.res.Outdir,
		Threads:  r.res.Config.Threads,
		Families: report.Families{
			Total:       len(r.res.Singletons) + len(r.res.Multi),
			Singleton:   len(r.res.Singletons),
			MultiMember: len(r.res.Multi),
		},
	}
	for _, st := range []dispatch.Result{r.res.Align, r.res.Tree} {
		if st.Stage != "" {
			s.Stages = append(s.Stages, report.FromResult(st))
		}
	}
	switch {
	case runErr != nil:
		s.Status = ledger.StatusFailed
	case s.FailureCount() > 0:
		s.Status = ledger.StatusPartial
	default:
		s.Status = ledger.StatusOK
	}
	r.res.Summary = s

	if _, err := os.Stat(r.res.Outdir); err == nil {
		if err := report.Write(filepath.Join(r.res.Outdir, report.FileName), s); err != nil {
			r.log.Error("summary not written", "err", err)
		}
	}
	if r.ledger != nil {
		if err := r.ledger.FinishRun(context.Background(), s.Status, finished); err != nil {
			r.log.Error("ledger not finalised", "err", err)
		}
		if err := r.ledger.Close(); err != nil {
			r.log.Error("ledger close", "err", err)
		}
	}
	if r.opts.MetricsPath != "" {
		if err := r.metrics.WriteTextfile(r.opts.MetricsPath); err != nil {
			r.log.Error("metrics not written", "path", r.opts.MetricsPath, "err", err)
		}
	}

	for _, st := range s.Stages {
		for _, f := range st.Failures {
			r.log.Warn("family failed", "stage", st.Name, "family", f.Family, "err", f.Error)
		}
	}
	r.log.Info("run finished", "status", s.Status, "failures", s.FailureCount(),
		"trees", r.res.Tree.Succeeded(), "elapsed", finished.Sub(r.started).Round(time.Millisecond))
}

func (r *run) enter(s State) {
	r.res.State = s
	r.log.Debug("pipeline state", "state", s.String())
}

func (r *run) logConfig() {
	c := r.res.Config
	r.log.Info("configuration",
		"config", c.Path,
		"orthogroups", c.OrthogroupPath,
		"threads", c.Threads,
		"seq_type", c.SeqType,
		"seq_dir", c.SeqDir,
		"form", c.Form,
		"translate", c.Translate,
		"aligner", c.Aligner.Name,
		"tree", c.Tree.Name,
		"policy", c.FailurePolicy,
	)
}

func (r *run) observers() dispatch.Observer {
	obs := dispatch.Observers{r.metrics}
	if r.ledger != nil {
		obs = append(obs, r.ledger)
	}
	return obs
}

func (o *Orchestrator) runner() exe.Runner {
	if o.Runner == nil {
		return exe.OSRunner{Log: o.log()}
	}
	return o.Runner
}

func (o *Orchestrator) log() *slog.Logger {
	if o.Log == nil {
		return slog.New(slog.DiscardHandler)
	}
	return o.Log
}
