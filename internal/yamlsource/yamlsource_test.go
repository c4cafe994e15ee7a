package yamlsource

import (
	"context"
	"go/token"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iVampireSP/metainf/internal/provider"
)

const stream = `providers:
  - name: com.acme.JsonCodec
    superclass: java.lang.Object
    interfaces: [com.acme.Codec, java.io.Closeable]
    source: src/com/acme/JsonCodec.java:12:1
  - name: com.acme.Both
    superclass: com.acme.Base
    interfaces: [com.acme.Iface]
    contracts: [com.acme.Iface, int]
---
providers:
  - name: com.acme.YamlCodec
    interfaces: [com.acme.Codec]
`

func drain(t *testing.T, s *Source) []provider.Pass {
	t.Helper()
	var passes []provider.Pass
	for {
		p, err := s.Next(context.Background())
		require.NoError(t, err)
		passes = append(passes, p)
		if p.Terminal {
			return passes
		}
	}
}

func TestSource(t *testing.T) {
	passes := drain(t, New("decls.yaml", strings.NewReader(stream)))
	require.Len(t, passes, 3, "two documents then the terminal pass")
	assert.True(t, passes[2].Terminal)

	first := passes[0].Declarations
	require.Len(t, first, 2)

	obj := provider.Ref("java.lang.Object")
	assert.Equal(t, provider.Declaration{
		Name:       "com.acme.JsonCodec",
		Superclass: &obj,
		Interfaces: []provider.TypeRef{provider.Ref("com.acme.Codec"), provider.Ref("java.io.Closeable")},
		Pos:        token.Position{Filename: "src/com/acme/JsonCodec.java", Line: 12, Column: 1},
	}, first[0])

	assert.Equal(t, []provider.TypeRef{
		provider.Ref("com.acme.Iface"),
		{Name: "int", Kind: provider.Primitive},
	}, first[1].Annotation.Contracts)

	require.Len(t, passes[1].Declarations, 1)
	assert.Equal(t, "com.acme.YamlCodec", passes[1].Declarations[0].Name)
}

func TestSource_TerminalIsSticky(t *testing.T) {
	s := New("empty.yaml", strings.NewReader(""))
	for range 2 {
		p, err := s.Next(context.Background())
		require.NoError(t, err)
		assert.True(t, p.Terminal)
	}
}

func TestSource_Errors(t *testing.T) {
	t.Run("malformed", func(t *testing.T) {
		_, err := New("bad.yaml", strings.NewReader("providers: [")).Next(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bad.yaml")
	})

	t.Run("missing name", func(t *testing.T) {
		_, err := New("bad.yaml", strings.NewReader("providers:\n  - interfaces: [a.B]\n")).Next(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "missing name")
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := New("x.yaml", strings.NewReader(stream)).Next(ctx)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "decls.yaml")
	require.NoError(t, os.WriteFile(path, []byte(stream), 0o644))

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()
	assert.Len(t, drain(t, s), 3)

	_, err = Open(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestEntry_GenericAncestry(t *testing.T) {
	d, err := Entry{
		Name:       "com.acme.Both",
		Superclass: "com.acme.Base<java.lang.String>",
		Interfaces: []string{"com.acme.Iface<java.lang.String>"},
	}.Declaration()
	require.NoError(t, err)
	require.NotNil(t, d.Superclass)
	assert.Equal(t, provider.Ref("com.acme.Base"), *d.Superclass)
	assert.Equal(t, []provider.TypeRef{provider.Ref("com.acme.Iface")}, d.Interfaces)
}

func TestParsePosition(t *testing.T) {
	tests := map[string]token.Position{
		"":                {},
		"A.java":          {Filename: "A.java"},
		"A.java:7":        {Filename: "A.java", Line: 7},
		"A.java:7:3":      {Filename: "A.java", Line: 7, Column: 3},
		`C:\src\A.java:7`: {Filename: `C:\src\A.java`, Line: 7},
	}
	for in, want := range tests {
		assert.Equal(t, want, ParsePosition(in), in)
	}
}
