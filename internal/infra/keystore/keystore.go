// Package keystore holds the passphrases used to decrypt restricted
// waveform data, keyed by data center id (DCID).
package keystore

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DefaultFileName is looked up in the home directory when no key file is
// configured.
const DefaultFileName = "dcidpasswords.txt"

// Store maps DCIDs to passphrases. It is read-only after construction and
// safe to share between clients.
type Store struct {
	keys map[string]string
}

// New builds a store from inline keys only.
func New(keys map[string]string) *Store {
	s := &Store{keys: make(map[string]string, len(keys))}
	for id, pw := range keys {
		s.keys[strings.TrimSpace(id)] = pw
	}
	return s
}

// Load builds a store from inline keys and a key file. Inline keys win
// over file entries. With path empty the default file in the home
// directory is merged when it exists; an explicit path must be readable.
func Load(keys map[string]string, path string) (*Store, error) {
	s := New(keys)

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
		if path == "" {
			return s, nil
		}
	}

	f, err := os.Open(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return s, nil
		}
		return nil, fmt.Errorf("open key file: %w", err)
	}
	defer f.Close()

	if err := s.merge(f); err != nil {
		return nil, fmt.Errorf("read key file %s: %w", path, err)
	}
	return s, nil
}

// DefaultPath returns $HOME/dcidpasswords.txt, or "" without a home
// directory.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ""
	}
	return filepath.Join(home, DefaultFileName)
}

// merge reads DCID=passphrase lines. Blank lines and lines without "="
// are skipped; existing entries are kept.
func (s *Store) merge(r io.Reader) error {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		id, pw, ok := strings.Cut(sc.Text(), "=")
		if !ok {
			continue
		}
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, exists := s.keys[id]; !exists {
			s.keys[id] = strings.TrimSpace(pw)
		}
	}
	return sc.Err()
}

// Lookup returns the passphrase for dcid.
func (s *Store) Lookup(dcid string) (string, bool) {
	if s == nil {
		return "", false
	}
	pw, ok := s.keys[dcid]
	return pw, ok
}

// Len returns the number of known DCIDs.
func (s *Store) Len() int {
	if s == nil {
		return 0
	}
	return len(s.keys)
}

// IDs returns the known DCIDs in sorted order. Passphrases are never
// exposed in bulk.
func (s *Store) IDs() []string {
	if s == nil {
		return nil
	}
	ids := make([]string, 0, len(s.keys))
	for id := range s.keys {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
