// internal/app/app.go
package app

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"syscall"

	"treespace/internal/cli"
	"treespace/internal/cmdutil"
	"treespace/internal/exe"
	"treespace/internal/pipeline"
	"treespace/internal/seqrepo"
	"treespace/internal/version"
)

const name = "treespace"

// Exit codes.
const (
	ExitOK       = 0
	ExitUsage    = 2 // usage, configuration and input validation
	ExitRuntime  = 3 // I/O, translation and fail-fast tool failures
	ExitCanceled = 130
)

func RunContext(parent context.Context, argv []string, stdout, stderr io.Writer) int {
	outw := bufio.NewWriter(stdout)
	defer func() { _ = outw.Flush() }()

	fs := cli.NewFlagSet(name)
	fs.SetOutput(io.Discard)

	opts, err := cli.ParseArgs(fs, argv)
	switch {
	case errors.Is(err, flag.ErrHelp):
		fs.SetOutput(outw)
		fs.Usage()
		return flush(outw, stderr, ExitOK)
	case errors.Is(err, cli.ErrExamples):
		cli.Examples(outw, name)
		return flush(outw, stderr, ExitOK)
	case err != nil:
		_, _ = fmt.Fprintln(stderr, err)
		fs.SetOutput(outw)
		fs.Usage()
		return flush(outw, stderr, ExitUsage)
	}

	if opts.Version {
		_, _ = fmt.Fprintf(outw, "%s version %s\n", name, version.Version)
		return flush(outw, stderr, ExitOK)
	}

	log := cmdutil.NewLogger(stderr, opts.Quiet, opts.Verbose)
	o := &pipeline.Orchestrator{Runner: exe.OSRunner{Log: log}, Log: log}
	res, err := o.Run(parent, pipeline.Options{
		ConfigPath:  opts.ConfigPath,
		Outdir:      opts.Outdir,
		Threads:     opts.Threads,
		FailFast:    opts.FailFast,
		MetricsPath: opts.MetricsPath,
		NoLedger:    opts.NoLedger,
	})
	if err != nil {
		code := ExitCode(err)
		if code != ExitCanceled {
			log.Error("run failed", "state", res.State.String(), "err", err)
		}
		return code
	}
	return ExitOK
}

func Run(argv []string, stdout, stderr io.Writer) int {
	return RunContext(context.Background(), argv, stdout, stderr)
}

// ExitCode maps a pipeline error to the process exit status.
func ExitCode(err error) int {
	var (
		initErr *pipeline.InitError
		dupGene *seqrepo.DuplicateGeneIDError
		missing *seqrepo.MissingGeneError
	)
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, context.Canceled):
		return ExitCanceled
	case errors.As(err, &initErr), errors.As(err, &dupGene), errors.As(err, &missing):
		return ExitUsage
	}
	return ExitRuntime
}

func flush(w *bufio.Writer, stderr io.Writer, code int) int {
	err := w.Flush()
	switch {
	case isBrokenPipe(err):
		return ExitOK
	case err != nil:
		_, _ = fmt.Fprintln(stderr, err)
		return ExitRuntime
	}
	return code
}

func isBrokenPipe(err error) bool {
	return err != nil && (errors.Is(err, syscall.EPIPE) || errors.Is(err, io.ErrClosedPipe))
}
