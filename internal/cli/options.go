// internal/cli/options.go
package cli

import (
	"errors"
	"flag"
	"fmt"

	"treespace/internal/cliutil"
)

// ErrExamples is returned by ParseArgs after the quickstart was requested.
// Apps print Examples and exit 0.
var ErrExamples = errors.New("examples requested")

// Options holds all CLI flags and arguments.
type Options struct {
	// Inputs
	ConfigPath string
	Outdir     string

	// Overrides of the configuration file
	Threads  int // 0 = use "Number of threads"
	FailFast bool

	// Outputs
	MetricsPath string
	NoLedger    bool

	// Misc
	Quiet   bool
	Verbose bool
	Version bool
}

// ParseArgs registers all flags on fs, parses argv (flags may follow
// positionals) and validates the result. Positionals are
// "<config.tsv> <outdir>"; either may be given by flag instead.
func ParseArgs(fs *flag.FlagSet, argv []string) (Options, error) {
	var opt Options
	var help, examples bool

	fs.StringVar(&opt.ConfigPath, "config", "", "tab-delimited configuration file")
	fs.StringVar(&opt.ConfigPath, "c", "", "alias of --config")
	fs.StringVar(&opt.Outdir, "outdir", "", "output directory")
	fs.StringVar(&opt.Outdir, "o", "", "alias of --outdir")

	fs.IntVar(&opt.Threads, "threads", 0, "concurrent external tools (0 = from config) [0]")
	fs.IntVar(&opt.Threads, "t", 0, "alias of --threads")
	fs.BoolVar(&opt.FailFast, "fail-fast", false, "stop a stage at the first family failure [false]")

	fs.StringVar(&opt.MetricsPath, "metrics", "", "write Prometheus textfile metrics to this path")
	fs.BoolVar(&opt.NoLedger, "no-ledger", false, "do not record the run in <outdir>/treespace.db [false]")

	fs.BoolVar(&opt.Quiet, "quiet", false, "only warnings and errors on stderr [false]")
	fs.BoolVar(&opt.Quiet, "q", false, "alias of --quiet")
	fs.BoolVar(&opt.Verbose, "verbose", false, "debug logging, including tool command lines [false]")
	fs.BoolVar(&opt.Version, "v", false, "print version and exit (shorthand) [false]")
	fs.BoolVar(&opt.Version, "version", false, "print version and exit [false]")
	fs.BoolVar(&examples, "examples", false, "print a quickstart and exit [false]")
	fs.BoolVar(&help, "h", false, "show this help message (shorthand) [false]")

	flagArgs, posArgs := cliutil.SplitFlagsAndPositionals(fs, argv)
	if err := fs.Parse(flagArgs); err != nil {
		return opt, err
	}
	if help {
		return opt, flag.ErrHelp
	}
	if examples {
		return opt, ErrExamples
	}
	if opt.Version {
		return opt, nil
	}

	if err := assignPositionals(&opt, posArgs); err != nil {
		return opt, err
	}
	return opt, Validate(opt)
}

func assignPositionals(opt *Options, pos []string) error {
	for _, dst := range []*string{&opt.ConfigPath, &opt.Outdir} {
		if *dst != "" || len(pos) == 0 {
			continue
		}
		*dst, pos = pos[0], pos[1:]
	}
	if len(pos) > 0 {
		return fmt.Errorf("unexpected argument(s): %v", pos)
	}
	return nil
}

// Validate applies the CLI invariants.
func Validate(o Options) error {
	switch {
	case o.ConfigPath == "":
		return errors.New("a configuration file is required (positional or --config)")
	case o.Outdir == "":
		return errors.New("an output directory is required (positional or --outdir)")
	case o.Threads < 0:
		return errors.New("--threads must be ≥ 0")
	case o.Quiet && o.Verbose:
		return errors.New("--quiet conflicts with --verbose")
	}
	return nil
}
