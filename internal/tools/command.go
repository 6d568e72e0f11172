// internal/tools/command.go
package tools

import (
	"errors"
	"strings"

	"treespace/internal/exe"
	"treespace/internal/params"
)

// command runs a user supplied program as "<command> [params] <input> <outDir>".
// The program names its own outputs, so results are matched back to families
// by sorted directory listing on Ext.
type command struct {
	argv []string
	opts []string
	ext  string
}

func newCommand(s params.ToolSpec) Tool {
	ext := s.Ext
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return command{argv: strings.Fields(s.Command), opts: SplitOptions(s.Params), ext: ext}
}

func (t command) Name() string {
	if len(t.argv) == 0 {
		return "command"
	}
	return t.argv[0]
}

func (t command) Ext() string { return t.ext }

func (t command) Prepare(family, input, outDir string) (Invocation, error) {
	if len(t.argv) == 0 {
		return Invocation{}, errors.New("empty tool command")
	}
	args := append(append(append([]string(nil), t.argv[1:]...), t.opts...), input, outDir)
	return Invocation{Cmd: exe.Cmd{Name: t.argv[0], Args: args, Dir: outDir}}, nil
}
