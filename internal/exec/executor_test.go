package exec

import (
	"context"
	"runtime"
	"strings"
	"testing"
	"time"
)

func TestRun_CapturesOutputAndExitCode(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix shell test")
	}
	e := New()

	res, err := e.Run(context.Background(), Command{
		Binary:    "sh",
		Arguments: []string{"-c", "echo out; echo err 1>&2; exit 3"},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.ExitCode != 3 {
		t.Fatalf("exit code = %d, want 3", res.ExitCode)
	}
	if strings.TrimSpace(res.Stdout) != "out" {
		t.Fatalf("stdout = %q", res.Stdout)
	}
	if strings.TrimSpace(res.Stderr) != "err" {
		t.Fatalf("stderr = %q", res.Stderr)
	}
	if !strings.Contains(res.Combined, "out") || !strings.Contains(res.Combined, "err") {
		t.Fatalf("combined = %q", res.Combined)
	}
}

func TestRun_TimeoutKillsCommand(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix shell test")
	}
	e := New()

	res, err := e.Run(context.Background(), Command{
		Binary:    "sleep",
		Arguments: []string{"10"},
		Timeout:   100 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.Killed {
		t.Fatal("command not marked killed")
	}
	if !strings.Contains(res.KillReason, "timeout") {
		t.Fatalf("kill reason = %q", res.KillReason)
	}
}

func TestRun_ContextCancellation(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix shell test")
	}
	e := New()
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	res, err := e.Run(ctx, Command{Binary: "sleep", Arguments: []string{"10"}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.Killed || res.KillReason != "context canceled" {
		t.Fatalf("result = %+v, want canceled kill", res)
	}
}

func TestRun_MissingBinaryIsError(t *testing.T) {
	e := New()
	_, err := e.Run(context.Background(), Command{Binary: "definitely-not-a-binary-xyz"})
	if err == nil {
		t.Fatal("expected infrastructure error for missing binary")
	}
}

func TestRun_OutputTruncation(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix shell test")
	}
	e := NewWithConfig(Config{DefaultTimeout: 10 * time.Second, MaxOutputBytes: 64})

	res, err := e.Run(context.Background(), Command{
		Binary:    "sh",
		Arguments: []string{"-c", "yes | head -c 4096"},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.Truncated {
		t.Fatal("oversized output not truncated")
	}
	if len(res.Stdout) > 64 {
		t.Fatalf("stdout length = %d, want <= 64", len(res.Stdout))
	}
}
