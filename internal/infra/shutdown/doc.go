// Package shutdown ties a command run to SIGINT and SIGTERM.
//
// The signal context cancels a pending request (the poll loop stops at its
// next pause); registered hooks then run once, newest first, to release
// the archive session and flush metrics.
//
//	h := shutdown.NewHandler(5 * time.Second)
//	ctx, stop := h.Context(context.Background())
//	defer stop()
//	defer h.Run()
package shutdown
