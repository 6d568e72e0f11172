// internal/tools/trees.go
package tools

import (
	"path/filepath"

	"treespace/internal/exe"
)

// iqtree covers IQ-TREE 1 and 2; both write <alignment>.treefile beside the
// alignment.
type iqtree struct {
	bin  string
	opts []string
}

func (t iqtree) Name() string { return t.bin }
func (iqtree) Ext() string    { return ".treefile" }

func (t iqtree) Prepare(family, input, outDir string) (Invocation, error) {
	args := append([]string{"-s", input}, t.opts...)
	return Invocation{
		Cmd:    exe.Cmd{Name: t.bin, Args: args, Dir: filepath.Dir(input)},
		Output: input + t.Ext(),
	}, nil
}

type fasttree struct{ opts []string }

func (fasttree) Name() string { return "fasttree" }
func (fasttree) Ext() string  { return ".FastTree" }

func (t fasttree) Prepare(family, input, outDir string) (Invocation, error) {
	out := input + t.Ext()
	args := append(append([]string(nil), t.opts...), "-out", out, input)
	return Invocation{
		Cmd:    exe.Cmd{Name: "FastTree", Args: args, Dir: filepath.Dir(input)},
		Output: out,
	}, nil
}
