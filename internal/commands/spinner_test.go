package commands

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestSpinnerLifecycle_StopWithSuccess(t *testing.T) {
	var buf bytes.Buffer
	s := newSpinner(&buf, "Connecting")
	s.start()
	// Let it spin briefly
	time.Sleep(200 * time.Millisecond)
	s.stopWithSuccess("done")

	out := buf.String()
	if !strings.Contains(out, "Connecting") {
		t.Errorf("expected a rendered frame, got %q", out)
	}
	if !strings.Contains(out, "done") || !strings.Contains(out, "\033[?25h") {
		t.Errorf("expected cursor restore and success line, got %q", out)
	}
}

func TestSpinnerLifecycle_StopWithError(t *testing.T) {
	var buf bytes.Buffer
	s := newSpinner(&buf, "Connecting")
	s.start()
	time.Sleep(30 * time.Millisecond)
	// Should stop cleanly on error (no panic)
	s.stopWithError()
	s.stopWithError()
}

func TestSpinner_SetMessage(t *testing.T) {
	var buf bytes.Buffer
	s := newSpinner(&buf, "Asking")
	s.setMessage("Receiving (12 bytes)")
	s.render()

	if !strings.Contains(buf.String(), "Receiving (12 bytes)") {
		t.Errorf("expected new message, got %q", buf.String())
	}
}
