package dispatch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"treespace/internal/exe"
	"treespace/internal/tools"
)

// fakeTool writes <family><ext> in outDir. Without explicit outputs it
// behaves like a tool that picks its own names.
type fakeTool struct {
	ext      string
	implicit bool
	sidecar  bool
}

func (fakeTool) Name() string  { return "fake" }
func (t fakeTool) Ext() string { return t.ext }

func (t fakeTool) Prepare(family, input, outDir string) (tools.Invocation, error) {
	out := filepath.Join(outDir, family+t.ext)
	inv := tools.Invocation{Cmd: exe.Cmd{Name: "fake", Args: []string{family, out}, Dir: outDir}}
	if !t.implicit {
		inv.Output = out
	}
	if t.sidecar {
		side := filepath.Join(outDir, family+".driver")
		scratch := filepath.Join(outDir, family+".log")
		for _, p := range []string{side, scratch} {
			if err := os.WriteFile(p, nil, 0o644); err != nil {
				return tools.Invocation{}, err
			}
		}
		inv.Sidecars = []string{side}
		inv.Scratch = []string{scratch}
	}
	return inv, nil
}

type runnerFunc func(ctx context.Context, c exe.Cmd) (exe.Result, error)

func (f runnerFunc) Run(ctx context.Context, c exe.Cmd) (exe.Result, error) { return f(ctx, c) }

// writingRunner creates the output named in Args[1] unless the family is in
// fail, in which case it exits 2.
func writingRunner(fail map[string]bool) runnerFunc {
	return func(ctx context.Context, c exe.Cmd) (exe.Result, error) {
		if fail[c.Args[0]] {
			return exe.Result{ExitCode: 2, Stderr: []byte("bad input\n")}, nil
		}
		return exe.Result{}, os.WriteFile(c.Args[1], []byte("x"), 0o644)
	}
}

func jobsFor(fams ...string) []Job {
	out := make([]Job, len(fams))
	for i, f := range fams {
		out[i] = Job{Family: f, Input: "/in/" + f}
	}
	return out
}

func manyFamilies(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("OG%07d", n-i) // reverse order on purpose
	}
	return out
}

type span struct{ start, end time.Time }

type recorder struct {
	mu    sync.Mutex
	cur   atomic.Int32
	peak  atomic.Int32
	order []string
	spans []span
}

func (r *recorder) runner(delay time.Duration) runnerFunc {
	base := writingRunner(nil)
	return func(ctx context.Context, c exe.Cmd) (exe.Result, error) {
		start := time.Now()
		n := r.cur.Add(1)
		for {
			p := r.peak.Load()
			if n <= p || r.peak.CompareAndSwap(p, n) {
				break
			}
		}
		r.mu.Lock()
		r.order = append(r.order, c.Args[0])
		r.mu.Unlock()
		time.Sleep(delay)
		res, err := base(ctx, c)
		r.cur.Add(-1)
		r.mu.Lock()
		r.spans = append(r.spans, span{start, time.Now()})
		r.mu.Unlock()
		return res, err
	}
}

func TestRunBoundsConcurrency(t *testing.T) {
	for _, threads := range []int{1, 3, 8} {
		rec := &recorder{}
		d := &Dispatcher{Runner: rec.runner(15 * time.Millisecond)}
		fams := manyFamilies(20)
		res, err := d.Run(context.Background(), Stage{
			Name: "align", Tool: fakeTool{ext: ".aln"}, OutDir: t.TempDir(), Threads: threads,
		}, jobsFor(fams...))
		require.NoError(t, err)
		require.Equal(t, 20, res.Dispatched)
		require.Equal(t, 20, res.Succeeded())
		require.LessOrEqual(t, int(rec.peak.Load()), threads, "threads=%d", threads)
		require.Equal(t, int32(0), rec.cur.Load(), "Run returned with units still running")
		if threads > 1 {
			require.Greater(t, int(rec.peak.Load()), 1, "expected some parallelism at threads=%d", threads)
		}
	}
}

func TestRunDispatchesInSortedOrder(t *testing.T) {
	rec := &recorder{}
	d := &Dispatcher{Runner: rec.runner(0)}
	fams := manyFamilies(12)
	_, err := d.Run(context.Background(), Stage{
		Name: "align", Tool: fakeTool{ext: ".aln"}, OutDir: t.TempDir(), Threads: 1,
	}, jobsFor(fams...))
	require.NoError(t, err)
	want := append([]string(nil), fams...)
	sort.Strings(want)
	require.Equal(t, want, rec.order)
}

func TestStagesDoNotOverlap(t *testing.T) {
	rec1, rec2 := &recorder{}, &recorder{}
	dir := t.TempDir()
	d := &Dispatcher{Runner: rec1.runner(10 * time.Millisecond)}
	res, err := d.Run(context.Background(), Stage{Name: "align", Tool: fakeTool{ext: ".aln"}, OutDir: dir, Threads: 4}, jobsFor(manyFamilies(9)...))
	require.NoError(t, err)

	d.Runner = rec2.runner(0)
	_, err = d.Run(context.Background(), Stage{Name: "tree", Tool: fakeTool{ext: ".tree"}, OutDir: dir, Threads: 4}, res.Jobs())
	require.NoError(t, err)

	var lastEnd time.Time
	for _, s := range rec1.spans {
		if s.end.After(lastEnd) {
			lastEnd = s.end
		}
	}
	for _, s := range rec2.spans {
		require.False(t, s.start.Before(lastEnd), "tree unit started before alignment stage finished")
	}
}

func TestBestEffortRecordsFailures(t *testing.T) {
	d := &Dispatcher{Runner: writingRunner(map[string]bool{"OG2": true})}
	res, err := d.Run(context.Background(), Stage{
		Name: "align", Tool: fakeTool{ext: ".aln"}, OutDir: t.TempDir(), Threads: 2, Policy: BestEffort,
	}, jobsFor("OG3", "OG2", "OG1"))
	require.NoError(t, err)
	require.Len(t, res.Artifacts, 2)
	require.Len(t, res.Failures, 1)
	f := res.Failures[0]
	require.Equal(t, "OG2", f.Family)
	require.Equal(t, 2, f.ExitCode)
	require.Contains(t, f.Error(), "align OG2: exit status 2: bad input")

	next := res.Jobs()
	require.Equal(t, []string{"OG1", "OG3"}, []string{next[0].Family, next[1].Family})
}

func TestFailFastReturnsFailure(t *testing.T) {
	d := &Dispatcher{Runner: writingRunner(map[string]bool{"OG1": true})}
	_, err := d.Run(context.Background(), Stage{
		Name: "tree", Tool: fakeTool{ext: ".tree"}, OutDir: t.TempDir(), Threads: 1, Policy: FailFast,
	}, jobsFor("OG1", "OG2", "OG3"))
	var tf *ToolFailure
	require.True(t, errors.As(err, &tf), "got %v", err)
	require.Equal(t, "OG1", tf.Family)
}

func TestMissingOutputIsFailure(t *testing.T) {
	d := &Dispatcher{Runner: runnerFunc(func(context.Context, exe.Cmd) (exe.Result, error) {
		return exe.Result{}, nil
	})}
	res, err := d.Run(context.Background(), Stage{
		Name: "align", Tool: fakeTool{ext: ".aln"}, OutDir: t.TempDir(), Threads: 1,
	}, jobsFor("OG1"))
	require.NoError(t, err)
	require.Len(t, res.Failures, 1)
	require.ErrorIs(t, res.Failures[0], errMissingOutput)
}

func TestSortedReconciliation(t *testing.T) {
	dir := t.TempDir()
	// The tool names outputs by its own counter, in dispatch order.
	var n atomic.Int32
	d := &Dispatcher{Runner: runnerFunc(func(_ context.Context, c exe.Cmd) (exe.Result, error) {
		i := n.Add(1)
		return exe.Result{}, os.WriteFile(filepath.Join(c.Dir, fmt.Sprintf("out_%03d.aln", i)), nil, 0o644)
	})}
	res, err := d.Run(context.Background(), Stage{
		Name: "align", Tool: fakeTool{ext: ".aln", implicit: true}, OutDir: dir, Threads: 1,
	}, jobsFor("OGc", "OGa", "OGb"))
	require.NoError(t, err)
	require.Equal(t, map[string]string{
		"OGa": filepath.Join(dir, "out_001.aln"),
		"OGb": filepath.Join(dir, "out_002.aln"),
		"OGc": filepath.Join(dir, "out_003.aln"),
	}, res.Artifacts)
}

func TestSortedReconciliationCountMismatch(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "stale.aln"), nil, 0o644))
	d := &Dispatcher{Runner: writingRunner(nil)}
	res, err := d.Run(context.Background(), Stage{
		Name: "align", Tool: fakeTool{ext: ".aln", implicit: true}, OutDir: dir, Threads: 2,
	}, jobsFor("OG1", "OG2"))
	require.NoError(t, err)
	require.Empty(t, res.Artifacts)
	require.Len(t, res.Failures, 2)
	require.Contains(t, res.Failures[0].Error(), "output count mismatch: 3 .aln files for 2 families")
}

func TestReconcileSorted(t *testing.T) {
	dir := t.TempDir()
	for _, f := range []string{"b.tre", "a.tre", "skip.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, f), nil, 0o644))
	}
	got, err := ReconcileSorted(dir, ".tre", []string{"F2", "F1"})
	require.NoError(t, err)
	require.Equal(t, map[string]string{"F1": filepath.Join(dir, "a.tre"), "F2": filepath.Join(dir, "b.tre")}, got)

	_, err = ReconcileSorted(dir, ".tre", []string{"F1"})
	require.Error(t, err)
}

func TestSidecarsAndScratchCleanup(t *testing.T) {
	dir := t.TempDir()
	d := &Dispatcher{Runner: writingRunner(map[string]bool{"OGbad": true})}
	_, err := d.Run(context.Background(), Stage{
		Name: "tree", Tool: fakeTool{ext: ".tree", sidecar: true}, OutDir: dir, Threads: 2,
	}, jobsFor("OGok", "OGbad"))
	require.NoError(t, err)

	for _, p := range []string{"OGok.driver", "OGok.log", "OGbad.driver"} {
		_, err := os.Stat(filepath.Join(dir, p))
		require.True(t, os.IsNotExist(err), "%s should be removed", p)
	}
	_, err = os.Stat(filepath.Join(dir, "OGbad.log"))
	require.NoError(t, err, "scratch of failed unit is kept")
}

func TestDuplicateJobRejected(t *testing.T) {
	d := &Dispatcher{Runner: writingRunner(nil)}
	_, err := d.Run(context.Background(), Stage{Name: "align", Tool: fakeTool{ext: ".aln"}, OutDir: t.TempDir(), Threads: 1},
		[]Job{{Family: "OG1"}, {Family: "OG1"}})
	require.Error(t, err)
}

type countingObserver struct {
	mu       sync.Mutex
	started  int
	finished map[string]bool
}

func (c *countingObserver) UnitStarted(context.Context, string, string) {
	c.mu.Lock()
	c.started++
	c.mu.Unlock()
}

func (c *countingObserver) UnitFinished(_ context.Context, o Outcome) {
	c.mu.Lock()
	c.finished[o.Family] = o.OK()
	c.mu.Unlock()
}

func TestObserversSeeEveryUnit(t *testing.T) {
	a := &countingObserver{finished: map[string]bool{}}
	b := &countingObserver{finished: map[string]bool{}}
	d := &Dispatcher{Runner: writingRunner(map[string]bool{"OG2": true}), Observer: Observers{a, b}}
	_, err := d.Run(context.Background(), Stage{Name: "align", Tool: fakeTool{ext: ".aln"}, OutDir: t.TempDir(), Threads: 3},
		jobsFor("OG1", "OG2", "OG3"))
	require.NoError(t, err)
	for _, o := range []*countingObserver{a, b} {
		require.Equal(t, 3, o.started)
		require.Equal(t, map[string]bool{"OG1": true, "OG2": false, "OG3": true}, o.finished)
	}
}
