package service

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/yndnr/arclink-go/internal/core/domain"
	"github.com/yndnr/arclink-go/internal/server/archiveserver"
	"github.com/yndnr/arclink-go/internal/telemetry/metric"
)

var apeBHZ = domain.Selector{Network: "GE", Station: "APE", Channel: "BHZ"}

func TestExecutor_Execute(t *testing.T) {
	pending := archiveserver.PendingDocument(1)
	srv := startNode(t, archiveserver.Static(&archiveserver.Script{
		Statuses: []string{pending, pending, pending, archiveserver.ReadyDocument(1)},
		Payload:  []byte("miniseed"),
	}))
	m := metric.NewRegistry()
	exec := newTestExecutor(t, srv.Endpoint(), nil, nil, ExecutorOptions{Metrics: m})

	payload, err := exec.Execute(context.Background(), waveformDescriptor(apeBHZ))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if string(payload.Data) != "miniseed" {
		t.Errorf("Data = %q, want %q", payload.Data, "miniseed")
	}
	if payload.PollRounds != 4 {
		t.Errorf("PollRounds = %d, want 4", payload.PollRounds)
	}
	if payload.Stalled || payload.Encrypted || payload.Compressed {
		t.Errorf("payload flags = %+v", payload)
	}

	if !srv.Has("REQUEST WAVEFORM format=MSEED") {
		t.Error("request line not sent")
	}
	if !srv.Has("2009,12,31,23,59,59 2010,1,1,0,1,1 GE APE BHZ ") {
		t.Errorf("data line not sent, journal = %q", srv.Journal())
	}
	waitFor(t, "BYE", func() bool { return srv.Has("BYE") })
	if !srv.Purged(1) {
		t.Error("request 1 not purged")
	}
	if exec.Session().IsOpen() {
		t.Error("session left open")
	}
	if got := testutil.ToFloat64(m.RequestsTotal.WithLabelValues("WAVEFORM", metric.OutcomeOK)); got != 1 {
		t.Errorf("ok requests = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.DownloadBytes); got != 8 {
		t.Errorf("download bytes = %v, want 8", got)
	}
}

func TestExecutor_NewHandshakePerCycle(t *testing.T) {
	srv := startNode(t, archiveserver.Static(&archiveserver.Script{Payload: []byte("x")}))
	exec := newTestExecutor(t, srv.Endpoint(), nil, nil, ExecutorOptions{})

	for i := 0; i < 2; i++ {
		if _, err := exec.Execute(context.Background(), waveformDescriptor(apeBHZ)); err != nil {
			t.Fatalf("Execute() #%d error = %v", i, err)
		}
	}
	waitFor(t, "second BYE", func() bool { return srv.Count("BYE") == 2 })
	if n := srv.Count("HELLO"); n != 2 {
		t.Errorf("HELLO count = %d, want 2", n)
	}
	if !srv.Purged(1) || !srv.Purged(2) {
		t.Error("both requests should be purged")
	}
}

func TestExecutor_SubmissionRejected(t *testing.T) {
	srv := startNode(t, archiveserver.Static(&archiveserver.Script{Reject: true}))
	exec := newTestExecutor(t, srv.Endpoint(), nil, nil, ExecutorOptions{})

	_, err := exec.Execute(context.Background(), waveformDescriptor(apeBHZ))
	if !errors.Is(err, domain.ErrSubmission) {
		t.Fatalf("Execute() error = %v, want ErrSubmission", err)
	}

	waitFor(t, "BYE", func() bool { return srv.Has("BYE") })
	if n := srv.Count("PURGE"); n != 0 {
		t.Errorf("PURGE sent %d times without a request id", n)
	}
}

func TestExecutor_ReleaseOnFailure(t *testing.T) {
	tests := []struct {
		name    string
		script  *archiveserver.Script
		wantErr error
		check   func(t *testing.T, err error)
	}{
		{
			name:    "denied",
			script:  &archiveserver.Script{Statuses: []string{archiveserver.FailedDocument(1, "DENIED", "access denied")}},
			wantErr: domain.ErrRequestStatus,
			check: func(t *testing.T, err error) {
				var se *domain.StatusError
				if !errors.As(err, &se) {
					t.Fatalf("error = %T, want *domain.StatusError", err)
				}
				if se.Status != domain.CodeDenied || se.Message != "access denied" {
					t.Errorf("StatusError = {%s %q}", se.Status, se.Message)
				}
			},
		},
		{
			name:    "no data",
			script:  &archiveserver.Script{Statuses: []string{archiveserver.FailedDocument(1, "NODATA", "")}},
			wantErr: domain.ErrNoData,
		},
		{
			name: "ready without lines",
			script: &archiveserver.Script{Statuses: []string{
				archiveserver.StatusDocument(1, true, archiveserver.Volume{ID: "GFZ", Status: "OK"}),
			}},
			wantErr: domain.ErrEmptyResult,
		},
		{
			name:    "wrong trailer",
			script:  &archiveserver.Script{Payload: []byte("abc"), Trailer: "XYZ"},
			wantErr: domain.ErrFraming,
		},
		{
			name:    "malformed status",
			script:  &archiveserver.Script{Statuses: []string{"<arclink><request"}},
			wantErr: domain.ErrProtocol,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := startNode(t, archiveserver.Static(tt.script))
			exec := newTestExecutor(t, srv.Endpoint(), nil, nil, ExecutorOptions{})

			_, err := exec.Execute(context.Background(), waveformDescriptor(apeBHZ))
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Execute() error = %v, want %v", err, tt.wantErr)
			}
			if tt.check != nil {
				tt.check(t, err)
			}

			waitFor(t, "BYE", func() bool { return srv.Has("BYE") })
			if !srv.Has("PURGE 1") {
				t.Errorf("PURGE 1 not sent, journal = %q", srv.Journal())
			}
			if exec.Session().IsOpen() {
				t.Error("session left open")
			}
		})
	}
}

func TestExecutor_TruncatedDownload(t *testing.T) {
	srv := startNode(t, archiveserver.Static(&archiveserver.Script{
		Payload:  bytes.Repeat([]byte("x"), 64),
		Truncate: true,
	}))
	exec := newTestExecutor(t, srv.Endpoint(), nil, nil, ExecutorOptions{})

	_, err := exec.Execute(context.Background(), waveformDescriptor(apeBHZ))
	if !errors.Is(err, domain.ErrFraming) {
		t.Fatalf("Execute() error = %v, want ErrFraming", err)
	}
	if exec.Session().Transport().Connected() {
		t.Error("transport left open")
	}
}

func TestExecutor_StallGuard(t *testing.T) {
	pending := archiveserver.PendingDocument(1)
	srv := startNode(t, archiveserver.Static(&archiveserver.Script{Statuses: []string{pending}}))
	m := metric.NewRegistry()
	exec := newTestExecutor(t, srv.Endpoint(), nil, nil, ExecutorOptions{Metrics: m})

	_, err := exec.Execute(context.Background(), waveformDescriptor(apeBHZ))
	if !errors.Is(err, domain.ErrEmptyResult) {
		t.Fatalf("Execute() error = %v, want ErrEmptyResult", err)
	}

	// One document to compare against plus DefaultMaxStalledPolls+1 repeats.
	if n := srv.Count("STATUS"); n != DefaultMaxStalledPolls+2 {
		t.Errorf("STATUS count = %d, want %d", n, DefaultMaxStalledPolls+2)
	}
	if got := testutil.ToFloat64(m.StalledPolls); got != 1 {
		t.Errorf("stalled polls = %v, want 1", got)
	}
	waitFor(t, "PURGE", func() bool { return srv.Has("PURGE 1") })
}

func TestExecutor_StallResetsOnChange(t *testing.T) {
	a := archiveserver.PendingDocument(1)
	b := archiveserver.StatusDocument(1, false, archiveserver.Volume{ID: "GFZ", Status: "PROCESSING", Lines: []archiveserver.Line{{Content: "x", Status: "PROCESSING"}}})
	srv := startNode(t, archiveserver.Static(&archiveserver.Script{
		Statuses: []string{a, a, a, b, b, b, b, b, b},
	}))
	exec := newTestExecutor(t, srv.Endpoint(), nil, nil, ExecutorOptions{MaxStalledPolls: 3})

	// A stalled document that is not ready never counts as a result, even
	// with content lines.
	_, err := exec.Execute(context.Background(), waveformDescriptor(apeBHZ))
	if !errors.Is(err, domain.ErrEmptyResult) {
		t.Fatalf("Execute() error = %v, want ErrEmptyResult", err)
	}
	// a a a (2 repeats), then b plus 4 repeats exceeds 3.
	if n := srv.Count("STATUS"); n != 8 {
		t.Errorf("STATUS count = %d, want 8", n)
	}
}

func TestExecutor_PollInterval(t *testing.T) {
	pending := archiveserver.PendingDocument(1)
	srv := startNode(t, archiveserver.Static(&archiveserver.Script{
		Statuses: []string{pending, pending, archiveserver.ReadyDocument(1)},
		Payload:  []byte("x"),
	}))
	mock := clock.NewMock()
	exec := newTestExecutor(t, srv.Endpoint(), nil, nil, ExecutorOptions{
		StatusInterval: 500 * time.Millisecond,
		Clock:          mock,
	})

	start := mock.Now()
	done := make(chan error, 1)
	go func() {
		_, err := exec.Execute(context.Background(), waveformDescriptor(apeBHZ))
		done <- err
	}()

	for {
		select {
		case err := <-done:
			if err != nil {
				t.Fatalf("Execute() error = %v", err)
			}
			if n := srv.Count("STATUS"); n != 3 {
				t.Errorf("STATUS count = %d, want 3", n)
			}
			if elapsed := mock.Now().Sub(start); elapsed < time.Second {
				t.Errorf("mock time advanced %v, want at least 1s for two pauses", elapsed)
			}
			return
		case <-time.After(2 * time.Millisecond):
			mock.Add(100 * time.Millisecond)
		}
	}
}

func TestExecutor_Decryption(t *testing.T) {
	newNode := func(t *testing.T) *archiveserver.Server {
		return startNode(t, archiveserver.Static(&archiveserver.Script{
			Statuses: []string{archiveserver.EncryptedDocument(1, "BIA")},
			Payload:  []byte("Salted__ciphertext"),
		}))
	}

	t.Run("known dcid", func(t *testing.T) {
		srv := newNode(t)
		dec := &prefixDecryptor{}
		exec := newTestExecutor(t, srv.Endpoint(), mapKeys{"BIA": "OfH9ekhi"}, dec, ExecutorOptions{})

		payload, err := exec.Execute(context.Background(), waveformDescriptor(apeBHZ))
		if err != nil {
			t.Fatalf("Execute() error = %v", err)
		}
		if string(payload.Data) != "OfH9ekhi:Salted__ciphertext" {
			t.Errorf("Data = %q, want decryptor output", payload.Data)
		}
		if !payload.Encrypted || payload.DCID != "BIA" || len(payload.Warnings) != 0 {
			t.Errorf("payload = %+v", payload)
		}
		if dec.calls != 1 {
			t.Errorf("decryptor called %d times, want 1", dec.calls)
		}
	})

	t.Run("unknown dcid", func(t *testing.T) {
		srv := newNode(t)
		dec := &prefixDecryptor{}
		exec := newTestExecutor(t, srv.Endpoint(), mapKeys{"GFZ": "x"}, dec, ExecutorOptions{})

		payload, err := exec.Execute(context.Background(), waveformDescriptor(apeBHZ))
		if err != nil {
			t.Fatalf("Execute() error = %v", err)
		}
		if string(payload.Data) != "Salted__ciphertext" {
			t.Errorf("Data = %q, want ciphertext unchanged", payload.Data)
		}
		if len(payload.Warnings) != 1 || !errors.Is(payload.Warnings[0], domain.ErrDecryptionUnavailable) {
			t.Errorf("Warnings = %v, want ErrDecryptionUnavailable", payload.Warnings)
		}
		if !payload.StillEncrypted() {
			t.Error("StillEncrypted() = false")
		}
		if dec.calls != 0 {
			t.Error("decryptor should not be called")
		}
	})

	t.Run("decryption failure", func(t *testing.T) {
		srv := newNode(t)
		exec := newTestExecutor(t, srv.Endpoint(), mapKeys{"BIA": "wrong"}, failingDecryptor{}, ExecutorOptions{})

		_, err := exec.Execute(context.Background(), waveformDescriptor(apeBHZ))
		if !errors.Is(err, domain.ErrDecryption) {
			t.Errorf("Execute() error = %v, want ErrDecryption", err)
		}
		waitFor(t, "PURGE", func() bool { return srv.Has("PURGE 1") })
	})
}

func TestExecutor_InvalidDescriptor(t *testing.T) {
	exec := newTestExecutor(t, domain.Endpoint{Host: "127.0.0.1", Port: 1}, nil, nil, ExecutorOptions{})

	desc := domain.NewRequestDescriptor(domain.VerbWaveform, domain.Window{}, apeBHZ, nil, nil)
	if _, err := exec.Execute(context.Background(), desc); !errors.Is(err, domain.ErrMissingArgument) {
		t.Errorf("Execute() error = %v, want ErrMissingArgument", err)
	}
}

func TestExecutor_Compressed(t *testing.T) {
	srv := startNode(t, archiveserver.Static(&archiveserver.Script{Payload: []byte("bz")}))
	exec := newTestExecutor(t, srv.Endpoint(), nil, nil, ExecutorOptions{})

	desc := domain.NewRequestDescriptor(domain.VerbWaveform, testWindow, apeBHZ,
		[]string{"format=MSEED", CompressionParam}, nil)
	payload, err := exec.Execute(context.Background(), desc)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !payload.Compressed {
		t.Error("Compressed = false, want true")
	}
}
