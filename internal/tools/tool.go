// internal/tools/tool.go
package tools

import (
	"strings"

	"treespace/internal/exe"
	"treespace/internal/params"
)

// Tool turns one family's input file into one external invocation.
type Tool interface {
	Name() string
	// Ext is the suffix of the tool's primary output. It drives directory
	// reconciliation for tools whose output name is not known in advance.
	Ext() string
	// Prepare builds the invocation for family. It may write input files the
	// tool needs (e.g. format conversions); it never changes the working
	// directory.
	Prepare(family, input, outDir string) (Invocation, error)
}

// Invocation is a prepared unit of work.
type Invocation struct {
	Cmd exe.Cmd
	// Output is the artifact the tool is expected to create. Empty means the
	// tool chooses its own output name.
	Output string
	// Sidecars are removed after the unit finishes, whatever the outcome.
	Sidecars []string
	// Scratch files are removed only when the unit succeeds, so that logs
	// of failed units remain for inspection.
	Scratch []string
}

// SplitOptions turns "a, b c" into ["a", "b", "c"]: items are comma
// separated and each item is further split on whitespace. The value
// "default" (and the empty string) yield no options.
func SplitOptions(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == params.DefaultOptions {
		return nil
	}
	var out []string
	for _, item := range strings.Split(raw, ",") {
		out = append(out, strings.Fields(item)...)
	}
	return out
}

// BlockOptions groups "prset ratepr=fixed, mcmc ngen=5000, mcmc nchains=2"
// into {"prset": [ratepr=fixed], "mcmc": [ngen=5000 nchains=2]}; repeated
// blocks append.
func BlockOptions(raw string) map[string][]string {
	out := map[string][]string{}
	for _, item := range strings.Split(raw, ",") {
		f := strings.Fields(item)
		if len(f) == 0 || (len(f) == 1 && f[0] == params.DefaultOptions) {
			continue
		}
		out[f[0]] = append(out[f[0]], f[1:]...)
	}
	return out
}
