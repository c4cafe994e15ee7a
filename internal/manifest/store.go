// Package manifest reads, merges and writes META-INF/services provider
// configuration files.
package manifest

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"slices"
	"strings"

	"github.com/spf13/afero"
)

// Dir is the manifest directory relative to the output root.
const Dir = "META-INF/services"

// ReadError reports an existing manifest that could not be read.
type ReadError struct {
	Contract string
	Err      error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("failed to load existing service definition for %s: %v", e.Contract, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// WriteError reports a manifest that could not be written.
type WriteError struct {
	Contract string
	Err      error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("failed to write service definition for %s: %v", e.Contract, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// Path returns the manifest path of contract relative to the output root.
func Path(contract string) (string, error) {
	if contract == "" || contract == "." || contract == ".." || strings.ContainsAny(contract, "/\\") {
		return "", fmt.Errorf("invalid contract name %q", contract)
	}
	return path.Join(Dir, contract), nil
}

// Store keeps manifests on an afero filesystem rooted at the output root.
type Store struct {
	fs afero.Fs
}

// NewStore returns a store writing into fsys.
func NewStore(fsys afero.Fs) *Store {
	return &Store{fs: fsys}
}

// NewOsStore returns a store rooted at dir on the local disk.
func NewOsStore(dir string) *Store {
	return NewStore(afero.NewBasePathFs(afero.NewOsFs(), dir))
}

// Load returns the provider names in contract's manifest. A missing
// manifest yields no names and no error.
func (s *Store) Load(contract string) ([]string, error) {
	p, err := Path(contract)
	if err != nil {
		return nil, &ReadError{Contract: contract, Err: err}
	}
	f, err := s.fs.Open(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, &ReadError{Contract: contract, Err: err}
	}
	defer f.Close()

	names, err := Decode(f)
	if err != nil {
		return nil, &ReadError{Contract: contract, Err: err}
	}
	return names, nil
}

// Save replaces contract's manifest with providers.
func (s *Store) Save(contract string, providers []string) error {
	p, err := Path(contract)
	if err != nil {
		return &WriteError{Contract: contract, Err: err}
	}
	if err := s.fs.MkdirAll(Dir, 0o755); err != nil {
		return &WriteError{Contract: contract, Err: err}
	}
	if err := afero.WriteFile(s.fs, p, Encode(providers), 0o644); err != nil {
		return &WriteError{Contract: contract, Err: err}
	}
	return nil
}

// Clean removes every manifest below the output root.
func (s *Store) Clean() error {
	if err := s.fs.RemoveAll(Dir); err != nil {
		return fmt.Errorf("remove %s: %w", Dir, err)
	}
	return nil
}

// Encode renders providers sorted and de-duplicated, one per line.
func Encode(providers []string) []byte {
	names := slices.Clone(providers)
	slices.Sort(names)
	names = slices.Compact(names)

	var buf bytes.Buffer
	for _, n := range names {
		if n == "" {
			continue
		}
		buf.WriteString(n)
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// Decode parses a provider configuration file. Surrounding whitespace and
// '#' comments are dropped, as are blank lines. Lines may be of any length.
func Decode(r io.Reader) ([]string, error) {
	var names []string
	br := bufio.NewReader(r)
	for {
		line, err := br.ReadString('\n')
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		if line = strings.TrimSpace(line); line != "" {
			names = append(names, line)
		}
		if errors.Is(err, io.EOF) {
			return names, nil
		}
		if err != nil {
			return nil, err
		}
	}
}
