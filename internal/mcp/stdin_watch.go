package mcp

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// ParentPollInterval is how often WatchParent checks the parent PID.
var ParentPollInterval = 2 * time.Second

// WatchParent calls cancel when the process that launched the server goes
// away, so an editor restart does not leave orphaned stdio servers behind.
//
// It must not read stdin: the stdio transport owns it, and stray reads
// would corrupt the JSON-RPC stream. The goroutine exits when ctx is done.
func WatchParent(ctx context.Context, log *slog.Logger, cancel context.CancelFunc) {
	ppid := os.Getppid()
	go func() {
		ticker := time.NewTicker(ParentPollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if os.Getppid() != ppid {
					log.Warn("parent process exited, shutting down", "parent_pid", ppid)
					cancel()
					return
				}
			}
		}
	}()
}
