// internal/tools/registry.go
package tools

import (
	"fmt"
	"sort"
	"strings"

	"treespace/internal/params"
)

// Tool registries (config name → constructor).
var (
	aligners = map[string]func(params.ToolSpec) Tool{
		"mafft":   func(s params.ToolSpec) Tool { return mafft{opts: SplitOptions(s.Params)} },
		"muscle":  func(s params.ToolSpec) Tool { return muscle{opts: SplitOptions(s.Params)} },
		"prank":   func(s params.ToolSpec) Tool { return prank{opts: SplitOptions(s.Params)} },
		"command": newCommand,
	}
	treeBuilders = map[string]func(params.ToolSpec) Tool{
		"iqtree":   func(s params.ToolSpec) Tool { return iqtree{bin: "iqtree", opts: SplitOptions(s.Params)} },
		"iqtree2":  func(s params.ToolSpec) Tool { return iqtree{bin: "iqtree2", opts: SplitOptions(s.Params)} },
		"fasttree": func(s params.ToolSpec) Tool { return fasttree{opts: SplitOptions(s.Params)} },
		"mrbayes":  func(s params.ToolSpec) Tool { return mrbayes{blocks: BlockOptions(s.Params)} },
		"command":  newCommand,
	}
)

// NewAligner returns the aligner named by spec.
func NewAligner(spec params.ToolSpec) (Tool, error) {
	return lookup("aligner", aligners, spec)
}

// NewTreeBuilder returns the tree-inference tool named by spec.
func NewTreeBuilder(spec params.ToolSpec) (Tool, error) {
	return lookup("tree algorithm", treeBuilders, spec)
}

func lookup(kind string, reg map[string]func(params.ToolSpec) Tool, spec params.ToolSpec) (Tool, error) {
	fn, ok := reg[strings.ToLower(spec.Name)]
	if !ok {
		return nil, fmt.Errorf("unknown %s %q (known: %s)", kind, spec.Name, strings.Join(names(reg), ", "))
	}
	return fn(spec), nil
}

func names(reg map[string]func(params.ToolSpec) Tool) []string {
	out := make([]string, 0, len(reg))
	for k := range reg {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
