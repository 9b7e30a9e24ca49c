package turnlog

import (
	"bytes"
	"strings"
	"testing"

	charmlog "github.com/charmbracelet/log"
)

func TestWithLevelDebugEmitsDebugLines(t *testing.T) {
	var buf bytes.Buffer
	cl := WithLevel("test", "debug")
	cl.l.SetOutput(&buf)

	cl.Debug("hello", "k", "v")
	if !strings.Contains(buf.String(), "hello") {
		t.Fatalf("expected debug output to contain the message, got %q", buf.String())
	}
}

func TestWithLevelUnrecognizedFallsBackToInfo(t *testing.T) {
	cl := WithLevel("agent", "bogus")
	if cl.l.GetLevel() != charmlog.InfoLevel {
		t.Fatalf("expected fallback to info level, got %v", cl.l.GetLevel())
	}
}

func TestWithReturnsDerivedLogger(t *testing.T) {
	cl := New("agent")
	derived := cl.With("session_id", "abc")
	if derived == nil {
		t.Fatal("expected With to return a non-nil logger")
	}
}
