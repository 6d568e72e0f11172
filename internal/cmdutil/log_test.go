package cmdutil

import (
	"bytes"
	"strings"
	"testing"
)

func TestNewLoggerQuietDropsInfo(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(&buf, true, false)
	log.Info("hidden")
	log.Warn("shown")
	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, "shown") {
		t.Fatalf("quiet logger output: %q", out)
	}
}

func TestNewLoggerVerboseKeepsDebug(t *testing.T) {
	var buf bytes.Buffer
	NewLogger(&buf, false, true).Debug("unit", "family", "OG1")
	if !strings.Contains(buf.String(), "family=OG1") {
		t.Fatalf("debug line missing: %q", buf.String())
	}
}
