// internal/tools/mrbayes.go
package tools

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"treespace/internal/exe"
)

// mrbayesBlocks are the command blocks written before execution settings,
// with the defaults used when the parameters do not override them.
var mrbayesBlocks = []struct{ name, def string }{
	{"prset", "ratepr=variable"},
	{"lset", "rates=gamma"},
	{"mcmcp", "diagnfreq=100 samplefreq=10"},
	{"mcmc", "ngen=1100 savebrlens=yes nchains=1"},
}

// mrbayes converts the alignment to NEXUS, writes a batch script and runs
// "mb" through a small driver so that MrBayes output lands in a log file.
type mrbayes struct {
	blocks map[string][]string
}

func (mrbayes) Name() string { return "mrbayes" }
func (mrbayes) Ext() string  { return ".con.tre" }

func (t mrbayes) Prepare(family, input, outDir string) (Invocation, error) {
	dir := filepath.Dir(input)
	nex := input + ".nexus"
	conf := nex + ".config.mb"
	logf := nex + ".mb.log"
	driver := nex + ".bash.mb"

	if err := WriteNexus(input, nex); err != nil {
		return Invocation{}, err
	}
	if err := os.WriteFile(conf, []byte(t.script(filepath.Base(nex))), 0o644); err != nil {
		return Invocation{}, err
	}
	drv := fmt.Sprintf("mb < %s > %s\n", shellQuote(filepath.Base(conf)), shellQuote(filepath.Base(logf)))
	if err := os.WriteFile(driver, []byte(drv), 0o644); err != nil {
		return Invocation{}, err
	}
	return Invocation{
		Cmd:      exe.Cmd{Name: "sh", Args: []string{driver}, Dir: dir},
		Output:   nex + t.Ext(),
		Sidecars: []string{driver},
		Scratch:  []string{conf, logf},
	}, nil
}

func (t mrbayes) script(nexusName string) string {
	var b strings.Builder
	set := "autoclose=yes nowarn=yes"
	if v, ok := t.blocks["set"]; ok {
		set = strings.Join(v, " ")
	}
	fmt.Fprintf(&b, "set %s\n", set)
	fmt.Fprintf(&b, "execute %s\n", nexusName)
	for _, blk := range mrbayesBlocks {
		v := blk.def
		if o, ok := t.blocks[blk.name]; ok {
			v = strings.Join(o, " ")
		}
		fmt.Fprintf(&b, "%s %s\n", blk.name, v)
	}
	b.WriteString("sumt\nsump\nquit\n")
	return b.String()
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
