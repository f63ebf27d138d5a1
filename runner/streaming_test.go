package runner

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/csd-dev-tools/runcommands/command"
)

// countingSyncer records flush invocations instead of calling sync(2).
type countingSyncer struct {
	calls int
}

func (c *countingSyncer) Sync() {
	c.calls++
}

func TestStreamingRunner_PumpsAllLines(t *testing.T) {
	syncer := &countingSyncer{}
	r := NewStreamingRunner(syncer)
	ctx := context.Background()

	result, err := r.RunStreaming(ctx, mustShell(t, "echo one; echo two; echo three"), nil, false)
	if err != nil {
		t.Fatalf("RunStreaming failed: %v", err)
	}
	if result.ExitCode != 0 {
		t.Errorf("exitCode = %d; want 0", result.ExitCode)
	}
	out := string(result.Stdout)
	for _, want := range []string{"one", "two", "three"} {
		if !strings.Contains(out, want) {
			t.Errorf("stdout %q missing line %q", out, want)
		}
	}
	if syncer.calls != 1 {
		t.Errorf("syncer invoked %d times; want exactly once", syncer.calls)
	}
}

func TestStreamingRunner_StopsOnMatch(t *testing.T) {
	syncer := &countingSyncer{}
	r := NewStreamingRunner(syncer)
	ctx := context.Background()

	match, err := NewMatch("line2")
	if err != nil {
		t.Fatalf("NewMatch failed: %v", err)
	}

	producer := mustShell(t, "for i in 1 2 3 4 5; do echo line$i; done")
	start := time.Now()
	result, err := r.RunStreaming(ctx, producer, match, false)
	if err != nil {
		t.Fatalf("RunStreaming failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("RunStreaming blocked for %s after the match", elapsed)
	}

	out := string(result.Stdout)
	if !strings.Contains(out, "line1") || !strings.Contains(out, "line2") {
		t.Errorf("stdout %q missing the lines produced before the match", out)
	}
	if strings.Contains(out, "line3") {
		t.Errorf("stdout %q contains lines pumped after the match", out)
	}
	if syncer.calls != 1 {
		t.Errorf("syncer invoked %d times; want exactly once", syncer.calls)
	}
}

func TestStreamingRunner_MatchListFirstHitWins(t *testing.T) {
	r := NewStreamingRunner(&countingSyncer{})
	ctx := context.Background()

	match, err := NewMatchList("never-produced", "line2")
	if err != nil {
		t.Fatalf("NewMatchList failed: %v", err)
	}

	result, err := r.RunStreaming(ctx, mustShell(t, "echo line1; echo line2; echo line3"), match, false)
	if err != nil {
		t.Fatalf("RunStreaming failed: %v", err)
	}
	if strings.Contains(string(result.Stdout), "line3") {
		t.Errorf("stdout %q contains output pumped after the list match", result.Stdout)
	}
}

func TestStreamingRunner_PumpsStderrAfterStdout(t *testing.T) {
	r := NewStreamingRunner(&countingSyncer{})
	ctx := context.Background()

	result, err := r.RunStreaming(ctx, mustShell(t, "echo out-line; echo err-line 1>&2"), nil, false)
	if err != nil {
		t.Fatalf("RunStreaming failed: %v", err)
	}
	if !strings.Contains(string(result.Stdout), "out-line") {
		t.Errorf("stdout %q missing out-line", result.Stdout)
	}
	if !strings.Contains(string(result.Stderr), "err-line") {
		t.Errorf("stderr %q missing err-line", result.Stderr)
	}
}

func TestStreamingRunner_EmptyCommandSentinel(t *testing.T) {
	r := NewStreamingRunner(&countingSyncer{})

	var empty command.Command
	result, err := r.RunStreaming(context.Background(), empty, nil, false)
	if err == nil {
		t.Fatalf("RunStreaming of an empty command should fail")
	}
	if result.ExitCode != 999 {
		t.Errorf("exitCode = %d; want the never-ran sentinel", result.ExitCode)
	}
}
