// internal/tools/aligners.go
package tools

import (
	"path/filepath"

	"treespace/internal/exe"
)

// mafft writes the alignment to standard output.
type mafft struct{ opts []string }

func (mafft) Name() string { return "mafft" }
func (mafft) Ext() string  { return ".mafft" }

func (t mafft) Prepare(family, input, outDir string) (Invocation, error) {
	out := filepath.Join(outDir, family+t.Ext())
	args := append(append([]string(nil), t.opts...), input)
	return Invocation{
		Cmd:    exe.Cmd{Name: "mafft", Args: args, Dir: outDir, Stdout: out},
		Output: out,
	}, nil
}

type muscle struct{ opts []string }

func (muscle) Name() string { return "muscle" }
func (muscle) Ext() string  { return ".muscle" }

func (t muscle) Prepare(family, input, outDir string) (Invocation, error) {
	out := filepath.Join(outDir, family+t.Ext())
	args := append([]string{"-in", input, "-out", out}, t.opts...)
	return Invocation{
		Cmd:    exe.Cmd{Name: "muscle", Args: args, Dir: outDir},
		Output: out,
	}, nil
}

// prank appends ".best.fas" to the name passed with -o.
type prank struct{ opts []string }

func (prank) Name() string { return "prank" }
func (prank) Ext() string  { return ".prank.best.fas" }

func (t prank) Prepare(family, input, outDir string) (Invocation, error) {
	base := filepath.Join(outDir, family+".prank")
	args := append([]string{"-d=" + input, "-o=" + base}, t.opts...)
	return Invocation{
		Cmd:    exe.Cmd{Name: "prank", Args: args, Dir: outDir},
		Output: base + ".best.fas",
	}, nil
}
