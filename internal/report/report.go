// internal/report/report.go
package report

import (
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"treespace/internal/dispatch"
)

// FileName is the summary name inside the output directory.
const FileName = "summary.yaml"

// Summary is the end-of-run report.
type Summary struct {
	RunID    string    `yaml:"run_id"`
	Version  string    `yaml:"version"`
	Status   string    `yaml:"status"`
	Started  time.Time `yaml:"started"`
	Finished time.Time `yaml:"finished"`
	Config   string    `yaml:"config"`
	Outdir   string    `yaml:"outdir"`
	Threads  int       `yaml:"threads"`
	Families Families  `yaml:"families"`
	Stages   []Stage   `yaml:"stages"`
}

// Families counts the orthogroup table by class.
type Families struct {
	Total       int `yaml:"total"`
	Singleton   int `yaml:"singleton"`
	MultiMember int `yaml:"multi_member"`
}

// Stage summarises one dispatch stage.
type Stage struct {
	Name       string    `yaml:"name"`
	Tool       string    `yaml:"tool"`
	Dispatched int       `yaml:"dispatched"`
	Succeeded  int       `yaml:"succeeded"`
	Failures   []Failure `yaml:"failures,omitempty"`
}

// Failure is one failed family.
type Failure struct {
	Family   string `yaml:"family"`
	ExitCode int    `yaml:"exit_code,omitempty"`
	Error    string `yaml:"error"`
}

// FromResult converts a dispatch result.
func FromResult(r dispatch.Result) Stage {
	s := Stage{Name: r.Stage, Tool: r.Tool, Dispatched: r.Dispatched, Succeeded: r.Succeeded()}
	for _, f := range r.Failures {
		s.Failures = append(s.Failures, Failure{Family: f.Family, ExitCode: f.ExitCode, Error: f.Error()})
	}
	sort.Slice(s.Failures, func(i, j int) bool { return s.Failures[i].Family < s.Failures[j].Family })
	return s
}

// FailureCount totals failures across stages.
func (s Summary) FailureCount() int {
	n := 0
	for _, st := range s.Stages {
		n += len(st.Failures)
	}
	return n
}

// Write encodes s to path.
func Write(path string, s Summary) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("report: encode: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("report: write %s: %w", path, err)
	}
	return nil
}

// Read decodes the summary at path.
func Read(path string) (Summary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Summary{}, err
	}
	var s Summary
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Summary{}, fmt.Errorf("report: decode %s: %w", path, err)
	}
	return s, nil
}
