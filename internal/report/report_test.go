package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"treespace/internal/dispatch"
)

func TestFromResultSortsFailures(t *testing.T) {
	r := dispatch.Result{
		Stage: "tree", Tool: "iqtree", Dispatched: 4,
		Artifacts: map[string]string{"OG1": "/a", "OG4": "/b"},
		Failures: []*dispatch.ToolFailure{
			{Stage: "tree", Family: "OG3", ExitCode: 2},
			{Stage: "tree", Family: "OG2", ExitCode: 1, Stderr: "oops"},
		},
	}
	s := FromResult(r)
	require.Equal(t, 2, s.Succeeded)
	require.Equal(t, "OG2", s.Failures[0].Family)
	require.Equal(t, "tree OG2: exit status 1: oops", s.Failures[0].Error)
}

func TestWriteReadable(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	s := Summary{
		RunID: "r1", Status: "ok", Config: "/c.tsv", Outdir: "/o", Threads: 2,
		Families: Families{Total: 3, Singleton: 1, MultiMember: 2},
		Stages: []Stage{
			{Name: "align", Tool: "mafft", Dispatched: 2, Succeeded: 2},
			{Name: "tree", Tool: "iqtree", Dispatched: 2, Succeeded: 1, Failures: []Failure{{Family: "OG2", ExitCode: 1, Error: "x"}}},
		},
	}
	require.NoError(t, Write(path, s))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, strings.Contains(string(raw), "multi_member: 2"), string(raw))

	got, err := Read(path)
	require.NoError(t, err)
	require.Equal(t, 1, got.FailureCount())
	require.Equal(t, s.Stages, got.Stages)
}
