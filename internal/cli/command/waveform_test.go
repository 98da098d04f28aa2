package command

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/yndnr/arclink-go/internal/core/domain"
	"github.com/yndnr/arclink-go/internal/server/archiveserver"
	"github.com/yndnr/arclink-go/pkg/crypto/openssl"
)

func TestWaveform_SaveFile(t *testing.T) {
	srv := dataNode(t, []byte("mseed records"))
	out := filepath.Join(t.TempDir(), "GE.APE.mseed")

	args := append(nodeArgs(srv), "--no-route", "--output", "json", "waveform", "--compressed=false",
		"--net", "GE", "--sta", "APE", "--cha", "BHZ", "--out", out)
	stdout, _, err := runApp(t, append(args, window()...)...)
	if err != nil {
		t.Fatalf("waveform error = %v", err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(data) != "mseed records" {
		t.Errorf("file = %q", data)
	}

	var res SaveResult
	if err := json.Unmarshal([]byte(stdout), &res); err != nil {
		t.Fatalf("summary %q: %v", stdout, err)
	}
	if res.File != out || res.Bytes != len("mseed records") || res.Node != srv.Endpoint().String() {
		t.Errorf("summary = %+v", res)
	}

	reqs := srv.Requests()
	if len(reqs) != 1 || reqs[0].Verb != "WAVEFORM" || reqs[0].User != "someone@example.org" {
		t.Fatalf("requests = %+v", reqs)
	}
	if want := "2009,12,31,23,59,59 2010,1,1,0,1,1 GE APE BHZ "; reqs[0].Lines[0] != want {
		t.Errorf("data line = %q, want %q", reqs[0].Lines[0], want)
	}
}

func TestWaveform_Stdout(t *testing.T) {
	srv := dataNode(t, []byte("raw bytes"))

	args := append(nodeArgs(srv), "--no-route", "waveform", "--compressed=false", "--net", "GE", "--out", "-",
		"--start", "2010-01-01", "--duration", "1m")
	stdout, _, err := runApp(t, args...)
	if err != nil {
		t.Fatalf("waveform error = %v", err)
	}
	if stdout != "raw bytes" {
		t.Errorf("stdout = %q, want only the payload", stdout)
	}
}

// bzip2Records is the bzip2 encoding of "mseed records".
var bzip2Records = []byte("\x42\x5a\x68\x39\x31\x41\x59\x26\x53\x59\x95\x83\xe8\x45\x00\x00\x03\x91\x80\x40\x00\x0e\x02\x98\x00\x20\x00\x21\xa0\x66\xa1\x0c\x08\xcd\x51\x58\x99\x03\xc5\xdc\x91\x4e\x14\x24\x25\x60\xfa\x11\x40")

func TestWaveform_CompressedByDefault(t *testing.T) {
	t.Run("unpacked", func(t *testing.T) {
		srv := dataNode(t, bzip2Records)
		out := filepath.Join(t.TempDir(), "GE.APE.mseed")

		args := append(nodeArgs(srv), "--no-route", "waveform", "--net", "GE", "--out", out)
		if _, _, err := runApp(t, append(args, window()...)...); err != nil {
			t.Fatalf("waveform error = %v", err)
		}
		data, err := os.ReadFile(out)
		if err != nil {
			t.Fatal(err)
		}
		if string(data) != "mseed records" {
			t.Errorf("file = %q, want inflated data", data)
		}
		reqs := srv.Requests()
		if len(reqs) != 1 || strings.Join(reqs[0].Params, " ") != "format=MSEED compression=bzip2" {
			t.Errorf("requests = %+v", reqs)
		}
	})

	t.Run("kept packed", func(t *testing.T) {
		srv := dataNode(t, bzip2Records)
		out := filepath.Join(t.TempDir(), "GE.APE.mseed")

		args := append(nodeArgs(srv), "--no-route", "waveform", "--unpack=false", "--net", "GE", "--out", out)
		if _, _, err := runApp(t, append(args, window()...)...); err != nil {
			t.Fatalf("waveform error = %v", err)
		}
		data, err := os.ReadFile(out + ".bz2")
		if err != nil {
			t.Fatalf("packed file not saved with .bz2 suffix: %v", err)
		}
		if !bytes.Equal(data, bzip2Records) {
			t.Error("packed bytes changed")
		}
	})
}

func TestWaveform_MissingEnd(t *testing.T) {
	srv := dataNode(t, nil)
	args := append(nodeArgs(srv), "waveform", "--compressed=false", "--net", "GE", "--out", "-", "--start", "2010-01-01")
	if _, _, err := runApp(t, args...); !errors.Is(err, domain.ErrMissingArgument) {
		t.Errorf("error = %v, want ErrMissingArgument", err)
	}
	if n := srv.Count("HELLO"); n != 0 {
		t.Errorf("HELLO = %d, want no connection", n)
	}
}

func TestWaveform_Encrypted(t *testing.T) {
	dec := openssl.Default()
	sealed, err := dec.Encrypt("OfH9ekhi", []byte("restricted records"))
	if err != nil {
		t.Fatal(err)
	}
	script := &archiveserver.Script{
		Statuses: []string{archiveserver.EncryptedDocument(1, "BIA")},
		Payload:  sealed,
	}

	t.Run("key known", func(t *testing.T) {
		srv := startNode(t, archiveserver.Static(script))
		keyFile := filepath.Join(t.TempDir(), "keys.txt")
		if err := os.WriteFile(keyFile, []byte("BIA=OfH9ekhi\n"), 0o600); err != nil {
			t.Fatal(err)
		}
		out := filepath.Join(t.TempDir(), "data.mseed")

		args := append(nodeArgs(srv), "--no-route", "--dcid-key-file", keyFile, "waveform", "--compressed=false", "--net", "GE", "--out", out)
		if _, _, err := runApp(t, append(args, window()...)...); err != nil {
			t.Fatalf("waveform error = %v", err)
		}
		data, err := os.ReadFile(out)
		if err != nil {
			t.Fatal(err)
		}
		if string(data) != "restricted records" {
			t.Errorf("file = %q, want decrypted data", data)
		}
	})

	t.Run("aes pbkdf2 keystore", func(t *testing.T) {
		sealer, err := openssl.New(openssl.Options{Cipher: openssl.CipherAES256CBC, KDF: openssl.KDFPBKDF2})
		if err != nil {
			t.Fatal(err)
		}
		aes, err := sealer.Encrypt("OfH9ekhi", []byte("restricted records"))
		if err != nil {
			t.Fatal(err)
		}
		srv := startNode(t, archiveserver.Static(&archiveserver.Script{
			Statuses: []string{archiveserver.EncryptedDocument(1, "BIA")},
			Payload:  aes,
		}))
		keyFile := filepath.Join(t.TempDir(), "keys.txt")
		if err := os.WriteFile(keyFile, []byte("BIA=OfH9ekhi\n"), 0o600); err != nil {
			t.Fatal(err)
		}
		out := filepath.Join(t.TempDir(), "data.mseed")

		args := append(nodeArgs(srv), "--no-route", "--dcid-key-file", keyFile,
			"--dcid-cipher", "aes-256-cbc", "--dcid-kdf", "pbkdf2",
			"waveform", "--compressed=false", "--net", "GE", "--out", out)
		if _, _, err := runApp(t, append(args, window()...)...); err != nil {
			t.Fatalf("waveform error = %v", err)
		}
		data, err := os.ReadFile(out)
		if err != nil {
			t.Fatal(err)
		}
		if string(data) != "restricted records" {
			t.Errorf("file = %q, want decrypted data", data)
		}
	})

	t.Run("key unknown", func(t *testing.T) {
		srv := startNode(t, archiveserver.Static(script))
		out := filepath.Join(t.TempDir(), "data.mseed")

		args := append(nodeArgs(srv), "--no-route", "--output", "json", "waveform", "--compressed=false", "--net", "GE", "--out", out)
		stdout, _, err := runApp(t, append(args, window()...)...)
		if err != nil {
			t.Fatalf("waveform error = %v", err)
		}

		data, err := os.ReadFile(out + ".openssl")
		if err != nil {
			t.Fatalf("encrypted file not saved with .openssl suffix: %v", err)
		}
		if !bytes.Equal(data, sealed) {
			t.Error("encrypted bytes changed")
		}
		if !strings.Contains(stdout, "could not decrypt") {
			t.Errorf("summary lacks warning: %s", stdout)
		}
	})
}

func TestWaveform_ArchiveError(t *testing.T) {
	srv := startNode(t, archiveserver.Static(&archiveserver.Script{
		Statuses: []string{archiveserver.FailedDocument(1, "NODATA", "no data for GE.APE")},
	}))

	args := append(nodeArgs(srv), "--no-route", "waveform", "--compressed=false", "--net", "GE", "--out", "-")
	_, _, err := runApp(t, append(args, window()...)...)
	if !errors.Is(err, domain.ErrNoData) {
		t.Fatalf("error = %v, want ErrNoData", err)
	}
	waitFor(t, "PURGE 1", func() bool { return srv.Purged(1) })
}

func TestWaveform_MetricsTextfile(t *testing.T) {
	srv := dataNode(t, []byte("x"))
	metrics := filepath.Join(t.TempDir(), "arclink.prom")

	args := append(nodeArgs(srv), "--no-route", "--metrics-textfile", metrics, "waveform", "--compressed=false", "--net", "GE", "--out", "-")
	if _, _, err := runApp(t, append(args, window()...)...); err != nil {
		t.Fatalf("waveform error = %v", err)
	}

	data, err := os.ReadFile(metrics)
	if err != nil {
		t.Fatalf("metrics file: %v", err)
	}
	if !strings.Contains(string(data), `arclink_requests_total{outcome="ok",verb="WAVEFORM"} 1`) {
		t.Errorf("metrics:\n%s", data)
	}
}
