// internal/dispatch/dispatch.go
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"treespace/internal/exe"
	"treespace/internal/tools"
)

// Policy decides what a per-family tool failure does to the stage.
type Policy int

const (
	// BestEffort records failures and lets sibling units finish.
	BestEffort Policy = iota
	// FailFast cancels the stage on the first failure and returns it.
	FailFast
)

// Job is one family's input to a stage.
type Job struct {
	Family string
	Input  string
}

// Stage describes one pipeline phase.
type Stage struct {
	Name    string
	Tool    tools.Tool
	OutDir  string
	Threads int
	Policy  Policy
}

// Result of a completed stage.
type Result struct {
	Stage      string
	Tool       string
	Dispatched int
	Artifacts  map[string]string // family → artifact path
	Failures   []*ToolFailure    // sorted by family
}

// Jobs converts the stage's artifacts into the next stage's jobs, sorted by
// family id.
func (r Result) Jobs() []Job {
	out := make([]Job, 0, len(r.Artifacts))
	for fam, p := range r.Artifacts {
		out = append(out, Job{Family: fam, Input: p})
	}
	sortJobs(out)
	return out
}

// Succeeded is the number of families with an artifact.
func (r Result) Succeeded() int { return len(r.Artifacts) }

// ToolFailure is a per-family external tool failure.
type ToolFailure struct {
	Stage    string
	Family   string
	ExitCode int
	Stderr   string
	Err      error
}

func (f *ToolFailure) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s: ", f.Stage, f.Family)
	switch {
	case f.Err != nil:
		b.WriteString(f.Err.Error())
	default:
		fmt.Fprintf(&b, "exit status %d", f.ExitCode)
	}
	if f.Stderr != "" {
		b.WriteString(": ")
		b.WriteString(f.Stderr)
	}
	return b.String()
}

func (f *ToolFailure) Unwrap() error { return f.Err }

// Dispatcher executes stages.
type Dispatcher struct {
	Runner   exe.Runner
	Log      *slog.Logger
	Observer Observer
}

// Run executes stage.Tool once per job with at most stage.Threads units in
// flight and returns after every unit has finished. Under BestEffort the
// returned error is non-nil only for setup problems or cancellation; under
// FailFast the first *ToolFailure is returned as well.
func (d *Dispatcher) Run(ctx context.Context, stage Stage, jobs []Job) (Result, error) {
	jobs = append([]Job(nil), jobs...)
	sortJobs(jobs)
	if err := checkUnique(jobs); err != nil {
		return Result{}, err
	}
	if err := os.MkdirAll(stage.OutDir, 0o755); err != nil {
		return Result{}, err
	}
	obs := d.observer()
	octx := context.WithoutCancel(ctx)
	log := d.log().With("stage", stage.Name, "tool", stage.Tool.Name())
	log.Info("stage started", "families", len(jobs), "threads", max(stage.Threads, 1))

	res := Result{
		Stage:      stage.Name,
		Tool:       stage.Tool.Name(),
		Dispatched: len(jobs),
		Artifacts:  make(map[string]string, len(jobs)),
	}
	outcomes := make([]Outcome, len(jobs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(stage.Threads, 1))
	for i, job := range jobs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			obs.UnitStarted(octx, stage.Name, job.Family)
			oc := d.unit(gctx, stage, job, log)
			outcomes[i] = oc
			if !oc.Pending {
				obs.UnitFinished(octx, oc)
			}
			if oc.Failure != nil && stage.Policy == FailFast {
				return oc.Failure
			}
			return nil
		})
	}
	ferr := g.Wait()

	abort := ferr
	if abort == nil {
		abort = ctx.Err()
	}
	for _, i := range reconcileSorted(stage, jobs, outcomes, abort) {
		obs.UnitFinished(octx, outcomes[i])
	}

	for _, oc := range outcomes {
		switch {
		case oc.Family == "":
			// never started (fail-fast or cancelled)
		case oc.Failure != nil:
			res.Failures = append(res.Failures, oc.Failure)
			log.Warn("unit failed", "family", oc.Family, "err", oc.Failure)
		default:
			res.Artifacts[oc.Family] = oc.Artifact
		}
	}

	log.Info("stage finished", "succeeded", res.Succeeded(), "failed", len(res.Failures))
	if ferr != nil {
		return res, ferr
	}
	if err := ctx.Err(); err != nil {
		return res, err
	}
	return res, nil
}

// unit runs one job. It never returns a Go error; problems are carried in
// the Outcome so that every unit is accounted for.
func (d *Dispatcher) unit(ctx context.Context, stage Stage, job Job, log *slog.Logger) Outcome {
	oc := Outcome{Stage: stage.Name, Family: job.Family, Input: job.Input, Started: time.Now()}
	fail := func(code int, stderr []byte, err error) Outcome {
		oc.Finished = time.Now()
		oc.Failure = &ToolFailure{Stage: stage.Name, Family: job.Family, ExitCode: code, Stderr: exe.Tail(stderr, 5), Err: err}
		return oc
	}

	inv, err := stage.Tool.Prepare(job.Family, job.Input, stage.OutDir)
	if err != nil {
		return fail(0, nil, fmt.Errorf("prepare: %w", err))
	}
	defer removeAll(inv.Sidecars)

	log.Debug("unit started", "family", job.Family, "cmd", inv.Cmd.String())
	r, err := d.Runner.Run(ctx, inv.Cmd)
	oc.ExitCode = r.ExitCode
	if err != nil {
		return fail(r.ExitCode, r.Stderr, err)
	}
	if r.ExitCode != 0 {
		return fail(r.ExitCode, r.Stderr, nil)
	}
	if inv.Output == "" {
		oc.Pending = true
	} else {
		if _, err := os.Stat(inv.Output); err != nil {
			return fail(0, r.Stderr, fmt.Errorf("expected output %s: %w", filepath.Base(inv.Output), errMissingOutput))
		}
		oc.Artifact = inv.Output
	}
	removeAll(inv.Scratch)
	oc.Finished = time.Now()
	log.Debug("unit finished", "family", job.Family, "elapsed", oc.Finished.Sub(oc.Started))
	return oc
}

var errMissingOutput = errors.New("missing after successful exit")

// reconcileSorted resolves units whose tool chose its own output names:
// files ending in the tool's extension, in name order, are paired with the
// families in dispatch order. A count mismatch, or an aborted stage, fails
// every pending unit. It returns the indexes of the units it resolved.
func reconcileSorted(stage Stage, jobs []Job, outcomes []Outcome, abort error) []int {
	var pending []int
	for i := range outcomes {
		if outcomes[i].Pending {
			pending = append(pending, i)
		}
	}
	if len(pending) == 0 {
		return nil
	}
	var (
		byFamily map[string]string
		err      = abort
	)
	if err == nil && stage.Tool.Ext() == "" {
		err = errors.New("tool declares neither an output path nor an output extension")
	}
	if err == nil {
		fams := make([]string, len(jobs))
		for i, j := range jobs {
			fams[i] = j.Family
		}
		byFamily, err = ReconcileSorted(stage.OutDir, stage.Tool.Ext(), fams)
	}
	for _, i := range pending {
		oc := &outcomes[i]
		oc.Pending = false
		if err != nil {
			oc.Failure = &ToolFailure{Stage: stage.Name, Family: oc.Family, Err: fmt.Errorf("reconcile: %w", err)}
			continue
		}
		oc.Artifact = byFamily[oc.Family]
	}
	return pending
}

// ReconcileSorted maps the files in dir ending in ext to families by sorted
// order. It fails unless the number of files equals the number of families.
func ReconcileSorted(dir, ext string, families []string) (map[string]string, error) {
	files, err := listOutputs(dir, ext)
	if err != nil {
		return nil, err
	}
	if len(files) != len(families) {
		return nil, fmt.Errorf("output count mismatch: %d %s files for %d families", len(files), ext, len(families))
	}
	fams := append([]string(nil), families...)
	sort.Strings(fams)
	out := make(map[string]string, len(fams))
	for i, f := range fams {
		out[f] = files[i]
	}
	return out, nil
}

func listOutputs(dir, ext string) ([]string, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range ents {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ext) {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(out)
	return out, nil
}

func sortJobs(jobs []Job) {
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].Family < jobs[j].Family })
}

func checkUnique(jobs []Job) error {
	for i := 1; i < len(jobs); i++ {
		if jobs[i].Family == jobs[i-1].Family {
			return fmt.Errorf("family %s submitted twice", jobs[i].Family)
		}
	}
	return nil
}

func removeAll(paths []string) {
	for _, p := range paths {
		_ = os.Remove(p)
	}
}

func (d *Dispatcher) observer() Observer {
	if d.Observer == nil {
		return Observers(nil)
	}
	return d.Observer
}

func (d *Dispatcher) log() *slog.Logger {
	if d.Log == nil {
		return slog.New(slog.DiscardHandler)
	}
	return d.Log
}
