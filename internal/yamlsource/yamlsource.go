// Package yamlsource reads provider declarations exported by a non-Go front
// end. The input is a YAML stream; each document is one discovery pass and
// the end of the stream is the terminal pass.
//
//	providers:
//	  - name: com.acme.JsonCodec
//	    superclass: java.lang.Object
//	    interfaces: [com.acme.Codec]
//	    contracts: []
//	    source: src/com/acme/JsonCodec.java:12:1
package yamlsource

import (
	"context"
	"errors"
	"fmt"
	"go/token"
	"io"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/iVampireSP/metainf/internal/provider"
)

// Document is one pass worth of declarations.
type Document struct {
	Providers []Entry `yaml:"providers"`
}

// Entry is one declaration as written by the front end.
type Entry struct {
	Name       string   `yaml:"name"`
	Superclass string   `yaml:"superclass,omitempty"`
	Interfaces []string `yaml:"interfaces,omitempty"`
	Contracts  []string `yaml:"contracts,omitempty"`
	Source     string   `yaml:"source,omitempty"`
}

// Source decodes passes from a YAML stream.
type Source struct {
	name   string
	dec    *yaml.Decoder
	closer io.Closer
	done   bool
}

// New reads passes from r. name labels decode errors.
func New(name string, r io.Reader) *Source {
	return &Source{name: name, dec: yaml.NewDecoder(r)}
}

// Open reads passes from the file at path.
func Open(path string) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open declarations: %w", err)
	}
	s := New(path, f)
	s.closer = f
	return s, nil
}

// Close releases the underlying file, if any.
func (s *Source) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

// Next decodes the next document.
func (s *Source) Next(ctx context.Context) (provider.Pass, error) {
	if err := ctx.Err(); err != nil {
		return provider.Pass{}, err
	}
	if s.done {
		return provider.TerminalPass(), nil
	}

	var doc Document
	if err := s.dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			s.done = true
			return provider.TerminalPass(), nil
		}
		return provider.Pass{}, fmt.Errorf("%s: decode: %w", s.name, err)
	}

	pass := provider.Pass{}
	for i, e := range doc.Providers {
		d, err := e.Declaration()
		if err != nil {
			return provider.Pass{}, fmt.Errorf("%s: provider %d: %w", s.name, i, err)
		}
		pass.Declarations = append(pass.Declarations, d)
	}
	return pass, nil
}

// Declaration converts the entry.
func (e Entry) Declaration() (provider.Declaration, error) {
	name := strings.TrimSpace(e.Name)
	if name == "" {
		return provider.Declaration{}, errors.New("missing name")
	}
	d := provider.Declaration{
		Name: name,
		Pos:  ParsePosition(e.Source),
	}
	if e.Superclass != "" {
		ref := provider.ParseTypeRef(e.Superclass)
		d.Superclass = &ref
	}
	for _, i := range e.Interfaces {
		d.Interfaces = append(d.Interfaces, provider.ParseTypeRef(i))
	}
	for _, c := range e.Contracts {
		d.Annotation.Contracts = append(d.Annotation.Contracts, provider.ParseTypeRef(c))
	}
	return d, nil
}

// ParsePosition parses "file[:line[:column]]".
func ParsePosition(s string) token.Position {
	if s == "" {
		return token.Position{}
	}
	pos := token.Position{Filename: s}
	file, rest, ok := cutNumber(s)
	if !ok {
		return pos
	}
	if f2, line, ok := cutNumber(file); ok {
		return token.Position{Filename: f2, Line: line, Column: rest}
	}
	return token.Position{Filename: file, Line: rest}
}

// cutNumber splits a trailing ":N".
func cutNumber(s string) (string, int, bool) {
	i := strings.LastIndexByte(s, ':')
	if i <= 0 {
		return s, 0, false
	}
	n, err := strconv.Atoi(s[i+1:])
	if err != nil || n <= 0 {
		return s, 0, false
	}
	return s[:i], n, true
}
