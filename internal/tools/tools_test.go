package tools

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"treespace/internal/params"
)

func TestSplitOptions(t *testing.T) {
	cases := map[string][]string{
		"default":                    nil,
		"":                           nil,
		"--auto":                     {"--auto"},
		"--maxiterate 1000, --quiet": {"--maxiterate", "1000", "--quiet"},
		" -m MFP , -B 1000 ,-nt 1":   {"-m", "MFP", "-B", "1000", "-nt", "1"},
	}
	for raw, want := range cases {
		if diff := cmp.Diff(want, SplitOptions(raw)); diff != "" {
			t.Errorf("SplitOptions(%q) (-want +got):\n%s", raw, diff)
		}
	}
}

func TestBlockOptions(t *testing.T) {
	got := BlockOptions("prset ratepr=fixed, mcmc ngen=5000, mcmc nchains=2")
	want := map[string][]string{
		"prset": {"ratepr=fixed"},
		"mcmc":  {"ngen=5000", "nchains=2"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("BlockOptions (-want +got):\n%s", diff)
	}
	require.Empty(t, BlockOptions("default"))
}

func TestRegistry(t *testing.T) {
	for _, n := range []string{"mafft", "muscle", "prank", "MAFFT"} {
		_, err := NewAligner(params.ToolSpec{Name: n})
		require.NoError(t, err, n)
	}
	for _, n := range []string{"iqtree", "iqtree2", "fasttree", "mrbayes"} {
		_, err := NewTreeBuilder(params.ToolSpec{Name: n})
		require.NoError(t, err, n)
	}
	_, err := NewAligner(params.ToolSpec{Name: "clustal"})
	require.ErrorContains(t, err, "known: command, mafft, muscle, prank")
	_, err = NewTreeBuilder(params.ToolSpec{Name: "raxml"})
	require.Error(t, err)
}

func TestAlignerInvocations(t *testing.T) {
	in, out := "/data/OG_SEQ/OG1.cds", "/data/ALN"

	inv, err := mafft{opts: []string{"--auto"}}.Prepare("OG1", in, out)
	require.NoError(t, err)
	require.Equal(t, "mafft", inv.Cmd.Name)
	require.Equal(t, []string{"--auto", in}, inv.Cmd.Args)
	require.Equal(t, "/data/ALN/OG1.mafft", inv.Cmd.Stdout)
	require.Equal(t, "/data/ALN/OG1.mafft", inv.Output)
	require.Equal(t, out, inv.Cmd.Dir)

	inv, err = muscle{opts: []string{"-maxiters", "2"}}.Prepare("OG1", in, out)
	require.NoError(t, err)
	require.Equal(t, []string{"-in", in, "-out", "/data/ALN/OG1.muscle", "-maxiters", "2"}, inv.Cmd.Args)

	inv, err = prank{}.Prepare("OG1", in, out)
	require.NoError(t, err)
	require.Equal(t, []string{"-d=" + in, "-o=/data/ALN/OG1.prank"}, inv.Cmd.Args)
	require.Equal(t, "/data/ALN/OG1.prank.best.fas", inv.Output)
}

func TestTreeInvocations(t *testing.T) {
	aln := "/data/ALN/OG1.mafft"

	inv, err := iqtree{bin: "iqtree2", opts: []string{"-m", "MFP"}}.Prepare("OG1", aln, "/data/ALN")
	require.NoError(t, err)
	require.Equal(t, "iqtree2", inv.Cmd.Name)
	require.Equal(t, []string{"-s", aln, "-m", "MFP"}, inv.Cmd.Args)
	require.Equal(t, aln+".treefile", inv.Output)

	inv, err = fasttree{opts: []string{"-lg"}}.Prepare("OG1", aln, "/data/ALN")
	require.NoError(t, err)
	require.Equal(t, "FastTree", inv.Cmd.Name)
	require.Equal(t, []string{"-lg", "-out", aln + ".FastTree", aln}, inv.Cmd.Args)
}

func TestMrBayesPrepareWritesScripts(t *testing.T) {
	dir := t.TempDir()
	aln := filepath.Join(dir, "OG1.mafft")
	require.NoError(t, os.WriteFile(aln, []byte(">a\nMK-L\n>b\nMKAL\n"), 0o644))

	tool := mrbayes{blocks: BlockOptions("mcmc ngen=500, set autoclose=yes")}
	inv, err := tool.Prepare("OG1", aln, dir)
	require.NoError(t, err)

	nex := aln + ".nexus"
	require.Equal(t, nex+".con.tre", inv.Output)
	require.Equal(t, dir, inv.Cmd.Dir)
	require.Equal(t, []string{nex + ".bash.mb"}, inv.Sidecars)
	require.Equal(t, []string{nex + ".config.mb", nex + ".mb.log"}, inv.Scratch)

	conf, err := os.ReadFile(nex + ".config.mb")
	require.NoError(t, err)
	want := "set autoclose=yes\n" +
		"execute OG1.mafft.nexus\n" +
		"prset ratepr=variable\n" +
		"lset rates=gamma\n" +
		"mcmcp diagnfreq=100 samplefreq=10\n" +
		"mcmc ngen=500\n" +
		"sumt\nsump\nquit\n"
	require.Equal(t, want, string(conf))

	drv, err := os.ReadFile(nex + ".bash.mb")
	require.NoError(t, err)
	require.Equal(t, "mb < 'OG1.mafft.nexus.config.mb' > 'OG1.mafft.nexus.mb.log'\n", string(drv))

	body, err := os.ReadFile(nex)
	require.NoError(t, err)
	require.Contains(t, string(body), "dimensions ntax=2 nchar=4;")
	require.Contains(t, string(body), "datatype=protein")
}

func TestWriteNexus(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.fa")
	require.NoError(t, os.WriteFile(src, []byte(">g1\nACGT-\n>g2's\nACGTN\n"), 0o644))
	dst := filepath.Join(dir, "a.nex")
	require.NoError(t, WriteNexus(src, dst))
	b, err := os.ReadFile(dst)
	require.NoError(t, err)
	s := string(b)
	require.True(t, strings.HasPrefix(s, "#NEXUS\n"))
	require.Contains(t, s, "datatype=dna")
	require.Contains(t, s, "\tg1 ACGT-\n")
	require.Contains(t, s, "\t'g2''s' ACGTN\n")

	require.NoError(t, os.WriteFile(src, []byte(">g1\nACG\n>g2\nAC\n"), 0o644))
	require.Error(t, WriteNexus(src, dst))
}

func TestCommandTool(t *testing.T) {
	tool, err := NewAligner(params.ToolSpec{Name: "command", Command: "python3 wrap.py", Ext: "aln", Params: "--fast"})
	require.NoError(t, err)
	require.Equal(t, ".aln", tool.Ext())
	require.Equal(t, "python3", tool.Name())
	inv, err := tool.Prepare("OG1", "/in/OG1.cds", "/out")
	require.NoError(t, err)
	require.Equal(t, []string{"wrap.py", "--fast", "/in/OG1.cds", "/out"}, inv.Cmd.Args)
	require.Empty(t, inv.Output)
}
