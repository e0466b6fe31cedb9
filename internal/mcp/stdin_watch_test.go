package mcp_test

import (
	"bufio"
	"context"
	"io"
	"testing"
	"time"

	"tally/internal/logging"
	mcpserver "tally/internal/mcp"
)

func TestWatchParent_StopsWhenContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	mcpserver.WatchParent(ctx, logging.Discard(), cancel)
	cancel()
	time.Sleep(20 * time.Millisecond)
}

func TestWatchParent_LeavesParentAlone(t *testing.T) {
	old := mcpserver.ParentPollInterval
	mcpserver.ParentPollInterval = 5 * time.Millisecond
	t.Cleanup(func() { mcpserver.ParentPollInterval = old })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	watched, stop := context.WithCancel(ctx)
	defer stop()
	mcpserver.WatchParent(ctx, logging.Discard(), stop)

	time.Sleep(50 * time.Millisecond)
	if watched.Err() != nil {
		t.Fatal("canceled while the parent is still alive")
	}
}

func TestWatchParent_DoesNotConsumeInput(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pr, pw := io.Pipe()
	defer pr.Close()
	mcpserver.WatchParent(ctx, logging.Discard(), cancel)
	time.Sleep(20 * time.Millisecond)

	msg := `{"jsonrpc":"2.0","id":1,"method":"initialize"}`
	go func() {
		pw.Write([]byte(msg + "\n"))
		pw.Close()
	}()

	scanner := bufio.NewScanner(pr)
	if !scanner.Scan() {
		t.Fatalf("reader got no data; err=%v", scanner.Err())
	}
	if got := scanner.Text(); got != msg {
		t.Fatalf("reader got %q, want %q", got, msg)
	}
}
