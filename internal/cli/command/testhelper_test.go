package command

import (
	"bytes"
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/yndnr/arclink-go/internal/server/archiveserver"
)

// startNode starts a scripted archive node for one test.
func startNode(t *testing.T, responder archiveserver.Responder) *archiveserver.Server {
	t.Helper()
	srv := archiveserver.New(archiveserver.DefaultConfig(), responder, nil)
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})
	return srv
}

// dataNode answers every verb with a ready document and payload.
func dataNode(t *testing.T, payload []byte) *archiveserver.Server {
	return startNode(t, archiveserver.Static(&archiveserver.Script{Payload: payload}))
}

// nodeArgs are the global flags pointing at srv.
func nodeArgs(srv *archiveserver.Server) []string {
	ep := srv.Endpoint()
	return []string{
		"--host", ep.Host,
		"--port", strconv.Itoa(ep.Port),
		"--user", "someone@example.org",
		"--timeout", "2s",
	}
}

// runApp runs arclink-cli with args and returns stdout and stderr. HOME
// points at an empty directory so no user config or key file is read.
func runApp(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())

	var stdout, stderr bytes.Buffer
	app := App()
	app.Writer = &stdout
	app.ErrWriter = &stderr

	err := app.Run(append([]string{"arclink-cli"}, args...))
	return stdout.String(), stderr.String(), err
}

func window() []string {
	return []string{"--start", "2010-01-01T00:00:00", "--end", "2010-01-01T00:01:00"}
}

// waitFor polls cond; the node handles commands asynchronously.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
