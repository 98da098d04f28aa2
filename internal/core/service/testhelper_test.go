package service

import (
	"context"
	"testing"
	"time"

	"github.com/yndnr/arclink-go/internal/connection"
	"github.com/yndnr/arclink-go/internal/core/domain"
	"github.com/yndnr/arclink-go/internal/server/archiveserver"
)

var testCreds = domain.Credentials{User: "someone@example.org", Institution: "Anonymous"}

var testWindow = domain.Window{
	Start: time.Date(2010, 1, 1, 0, 0, 0, 0, time.UTC),
	End:   time.Date(2010, 1, 1, 0, 1, 0, 0, time.UTC),
}

// startNode starts a scripted archive node that is shut down with the test.
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

// nodeResponder answers ROUTING with routing and every other verb with
// a ready document and data.
func nodeResponder(routing string, data []byte) archiveserver.Responder {
	return archiveserver.ResponderFunc(func(req *archiveserver.Request) *archiveserver.Script {
		if req.Verb == "ROUTING" {
			return &archiveserver.Script{Payload: []byte(routing)}
		}
		return &archiveserver.Script{Payload: data}
	})
}

func newTestSession(ep domain.Endpoint) *connection.Session {
	return connection.NewSession(ep, testCreds, connection.SessionOptions{
		Transport: connection.TransportOptions{Timeout: 2 * time.Second},
	})
}

func newTestExecutor(t *testing.T, ep domain.Endpoint, keys KeyStore, dec Decryptor, opts ExecutorOptions) *Executor {
	t.Helper()
	if opts.StatusInterval == 0 {
		opts.StatusInterval = time.Millisecond
	}
	s := newTestSession(ep)
	t.Cleanup(func() { s.Close() })
	return NewExecutor(s, keys, dec, opts)
}

func waveformDescriptor(sel domain.Selector) domain.RequestDescriptor {
	return domain.NewRequestDescriptor(domain.VerbWaveform, testWindow, sel, []string{"format=MSEED"}, nil)
}

// waitFor polls cond; the node journals lines asynchronously.
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

type mapKeys map[string]string

func (m mapKeys) Lookup(dcid string) (string, bool) {
	v, ok := m[dcid]
	return v, ok
}

// prefixDecryptor "decrypts" by prepending the secret.
type prefixDecryptor struct {
	calls int
}

func (d *prefixDecryptor) Decrypt(secret string, ciphertext []byte) ([]byte, error) {
	d.calls++
	return append([]byte(secret+":"), ciphertext...), nil
}

type failingDecryptor struct{}

func (failingDecryptor) Decrypt(string, []byte) ([]byte, error) {
	return nil, domain.ErrDecryption.WithDetails("bad padding")
}
