// internal/cli/usage.go
package cli

import (
	"flag"
	"fmt"
	"io"

	"treespace/internal/version"
)

func installUsage(fs *flag.FlagSet, name string) {
	fs.Usage = func() {
		out := fs.Output()
		def := func(flagName string) string {
			if f := fs.Lookup(flagName); f != nil {
				return f.DefValue
			}
			return ""
		}

		fmt.Fprintf(out, "%s – orthogroup alignment and tree pipeline\n\n", name)
		fmt.Fprintf(out, "Version: %s\n\n", version.Version)
		fmt.Fprintf(out, "Usage:\n  %s [flags] <config.tsv> <outdir>\n", name)

		fmt.Fprintln(out, "\nInput:")
		fmt.Fprintln(out, "  -c, --config file           Tab-delimited configuration (or 1st positional)")
		fmt.Fprintln(out, "  -o, --outdir dir            Output directory (or 2nd positional)")

		fmt.Fprintln(out, "\nExecution:")
		fmt.Fprintf(out, "  -t, --threads int           Concurrent external tools (0=from config) [%s]\n", def("threads"))
		fmt.Fprintf(out, "      --fail-fast             Stop a stage at the first family failure [%s]\n", def("fail-fast"))

		fmt.Fprintln(out, "\nOutput:")
		fmt.Fprintln(out, "      --metrics file          Write Prometheus textfile metrics")
		fmt.Fprintf(out, "      --no-ledger             Do not write <outdir>/treespace.db [%s]\n", def("no-ledger"))

		fmt.Fprintln(out, "\nMiscellaneous:")
		fmt.Fprintf(out, "  -q, --quiet                 Only warnings and errors [%s]\n", def("quiet"))
		fmt.Fprintf(out, "      --verbose               Debug logging [%s]\n", def("verbose"))
		fmt.Fprintln(out, "      --examples              Print a quickstart and exit")
		fmt.Fprintln(out, "  -v, --version               Print version and exit")
		fmt.Fprintln(out, "  -h, --help                  Show this help and exit")
	}
}

// Examples prints a quickstart with a sample configuration.
func Examples(out io.Writer, name string) {
	if out == nil {
		return
	}
	_, _ = fmt.Fprintf(out, "%s — quickstart\n\n", name)
	_, _ = fmt.Fprintf(out, "  %s config.tsv results/\n", name)
	_, _ = fmt.Fprintf(out, "  %s --threads 8 --fail-fast --metrics run.prom config.tsv results/\n\n", name)
	_, _ = fmt.Fprintln(out, "config.tsv (key<TAB>value):")
	for _, l := range []string{
		"Orthogroup path:\tOrthogroups.tsv",
		"Number of threads:\t4",
		"Sequences type:\tcds",
		"Sequences directory:\tproteomes",
		"Translation:\tyes",
		"Translation parameters:\tFalse,True",
		"Aligner:\tmafft",
		"Aligner parameters:\t--auto",
		"Tree algorithm:\tiqtree2",
		"Tree algorithm parameters:\t-m MFP, -B 1000",
	} {
		_, _ = fmt.Fprintf(out, "  %s\n", l)
	}
	_, _ = fmt.Fprintln(out, "\nTip: run with --help for all flags.")
}
