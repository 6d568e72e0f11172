// internal/params/config.go
package params

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
)

// Recognised configuration keys.
const (
	KeyOrthogroups     = "Orthogroup path"
	KeyThreads         = "Number of threads"
	KeySeqType         = "Sequences type"
	KeySeqDir          = "Sequences directory"
	KeySeqForm         = "Sequences form"
	KeyTranslation     = "Translation"
	KeyTranslationPars = "Translation parameters"
	KeyAlignTranslated = "Align translated"
	KeyAligner         = "Aligner"
	KeyAlignerPars     = "Aligner parameters"
	KeyAlignerCommand  = "Aligner command"
	KeyAlignerExt      = "Aligner extension"
	KeyTree            = "Tree algorithm"
	KeyTreePars        = "Tree algorithm parameters"
	KeyTreeCommand     = "Tree algorithm command"
	KeyTreeExt         = "Tree algorithm extension"
	KeyFailurePolicy   = "Failure policy"
)

// Sequences form values.
const (
	FormSpecies = "species"
	FormFamily  = "family"
)

// Failure policy values.
const (
	PolicyBestEffort = "best-effort"
	PolicyFailFast   = "fail-fast"
)

// DefaultOptions marks a tool parameter list that adds nothing to the
// tool's own defaults.
const DefaultOptions = "default"

// ToolSpec names an external tool and its raw parameter string.
// Command and Ext are only used by the generic "command" tool.
type ToolSpec struct {
	Name    string
	Params  string
	Command string
	Ext     string
}

// Config is the validated, typed view of a Store.
type Config struct {
	Path string // configuration file, absolute

	OrthogroupPath string
	Threads        int
	SeqType        string
	SeqDir         string
	Form           string

	Translate       bool
	ToStop          bool
	CDS             bool
	AlignTranslated bool

	Aligner ToolSpec
	Tree    ToolSpec

	FailurePolicy string
}

// Decode validates s and applies defaults. Relative paths are resolved
// against the directory of s.Path (or the working directory when s.Path is
// empty) and returned absolute.
func Decode(s *Store) (Config, error) {
	if err := s.Require(KeyOrthogroups, KeySeqType, KeySeqDir, KeyAligner, KeyTree); err != nil {
		return Config{}, err
	}
	base := "."
	var c Config
	if s.Path != "" {
		abs, err := filepath.Abs(s.Path)
		if err != nil {
			return Config{}, err
		}
		c.Path = abs
		base = filepath.Dir(abs)
	}
	resolve := func(p string) (string, error) {
		if !filepath.IsAbs(p) {
			p = filepath.Join(base, p)
		}
		return filepath.Abs(p)
	}

	var err error
	og, _ := s.Get(KeyOrthogroups)
	if c.OrthogroupPath, err = resolve(og); err != nil {
		return Config{}, err
	}
	dir, _ := s.Get(KeySeqDir)
	if c.SeqDir, err = resolve(dir); err != nil {
		return Config{}, err
	}
	c.SeqType, _ = s.Get(KeySeqType)
	if strings.ContainsAny(c.SeqType, `/\`) || strings.HasPrefix(c.SeqType, ".") {
		return Config{}, fmt.Errorf("%s %q must be a bare file extension", KeySeqType, c.SeqType)
	}

	c.Threads = runtime.NumCPU()
	if v, ok := s.Get(KeyThreads); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return Config{}, fmt.Errorf("%s must be a positive integer, got %q", KeyThreads, v)
		}
		c.Threads = n
	}

	c.Form = valueOr(s, KeySeqForm, FormSpecies)
	if c.Form != FormSpecies && c.Form != FormFamily {
		return Config{}, fmt.Errorf("%s must be %q or %q, got %q", KeySeqForm, FormSpecies, FormFamily, c.Form)
	}

	if c.Translate, err = ParseBool(valueOr(s, KeyTranslation, "no")); err != nil {
		return Config{}, fmt.Errorf("%s: %w", KeyTranslation, err)
	}
	if c.ToStop, c.CDS, err = parseTranslationParams(valueOr(s, KeyTranslationPars, "False,False")); err != nil {
		return Config{}, err
	}
	if c.AlignTranslated, err = ParseBool(valueOr(s, KeyAlignTranslated, "no")); err != nil {
		return Config{}, fmt.Errorf("%s: %w", KeyAlignTranslated, err)
	}
	if c.AlignTranslated && !c.Translate && c.Form == FormSpecies {
		return Config{}, fmt.Errorf("%s requires %s: yes", KeyAlignTranslated, KeyTranslation)
	}

	if c.Aligner, err = toolSpec(s, KeyAligner, KeyAlignerPars, KeyAlignerCommand, KeyAlignerExt); err != nil {
		return Config{}, err
	}
	if c.Tree, err = toolSpec(s, KeyTree, KeyTreePars, KeyTreeCommand, KeyTreeExt); err != nil {
		return Config{}, err
	}

	c.FailurePolicy = valueOr(s, KeyFailurePolicy, PolicyBestEffort)
	if c.FailurePolicy != PolicyBestEffort && c.FailurePolicy != PolicyFailFast {
		return Config{}, fmt.Errorf("%s must be %q or %q, got %q", KeyFailurePolicy, PolicyBestEffort, PolicyFailFast, c.FailurePolicy)
	}
	return c, nil
}

func toolSpec(s *Store, nameKey, parsKey, cmdKey, extKey string) (ToolSpec, error) {
	name, _ := s.Get(nameKey)
	t := ToolSpec{
		Name:   strings.ToLower(name),
		Params: valueOr(s, parsKey, DefaultOptions),
	}
	t.Command, _ = s.Get(cmdKey)
	t.Ext, _ = s.Get(extKey)
	if t.Name == "command" {
		if err := s.Require(cmdKey, extKey); err != nil {
			return ToolSpec{}, err
		}
	}
	return t, nil
}

func valueOr(s *Store, key, def string) string {
	if v, ok := s.Get(key); ok && v != "" {
		return v
	}
	return def
}

// ParseBool accepts yes/no, true/false and 1/0 in any case.
func ParseBool(v string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "yes", "y", "true", "t", "1":
		return true, nil
	case "no", "n", "false", "f", "0":
		return false, nil
	}
	return false, fmt.Errorf("not a boolean: %q", v)
}

// parseTranslationParams reads "to_stop,cds".
func parseTranslationParams(v string) (toStop, cds bool, err error) {
	f := strings.Split(v, ",")
	if len(f) != 2 {
		return false, false, fmt.Errorf("%s must be \"to_stop,cds\", got %q", KeyTranslationPars, v)
	}
	if toStop, err = ParseBool(f[0]); err != nil {
		return false, false, fmt.Errorf("%s: %w", KeyTranslationPars, err)
	}
	if cds, err = ParseBool(f[1]); err != nil {
		return false, false, fmt.Errorf("%s: %w", KeyTranslationPars, err)
	}
	return toStop, cds, nil
}
