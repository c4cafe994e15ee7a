package manifest

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/iVampireSP/metainf/internal/diag"
)

func readManifest(t *testing.T, fsys afero.Fs, contract string) string {
	t.Helper()
	data, err := afero.ReadFile(fsys, Dir+"/"+contract)
	require.NoError(t, err)
	return string(data)
}

func TestMerger_PreservesPriorEntries(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, Dir+"/com.acme.C", []byte("com.acme.B\ncom.acme.A\n"), 0o644))

	rep := &diag.Collector{}
	m := NewMerger(NewStore(fsys), rep)
	require.NoError(t, m.Merge(context.Background(), "com.acme.C", []string{"com.acme.D"}))

	assert.Equal(t, "com.acme.A\ncom.acme.B\ncom.acme.D\n", readManifest(t, fsys, "com.acme.C"))
	require.Len(t, rep.Notes(), 1)
	assert.Equal(t, "writing META-INF/services/com.acme.C", rep.Notes()[0].Message)
	assert.Empty(t, rep.Errors())
}

func TestMerger_PreservesLongEntries(t *testing.T) {
	fsys := afero.NewMemMapFs()
	long := "com.acme." + strings.Repeat("Z", 100_000)
	require.NoError(t, afero.WriteFile(fsys, Dir+"/com.acme.C", []byte(long+"\n"), 0o644))

	rep := &diag.Collector{}
	m := NewMerger(NewStore(fsys), rep)
	require.NoError(t, m.Merge(context.Background(), "com.acme.C", []string{"com.acme.A"}))

	assert.Empty(t, rep.Errors())
	assert.Equal(t, "com.acme.A\n"+long+"\n", readManifest(t, fsys, "com.acme.C"))
}

func TestMerger_CollapsesDuplicates(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, Dir+"/com.acme.C", []byte("com.acme.A\n"), 0o644))

	m := NewMerger(NewStore(fsys), &diag.Collector{})
	require.NoError(t, m.Merge(context.Background(), "com.acme.C", []string{"com.acme.A", "com.acme.A"}))

	assert.Equal(t, "com.acme.A\n", readManifest(t, fsys, "com.acme.C"))
}

func TestMerger_ReadErrorIsNotFatal(t *testing.T) {
	mem := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(mem, Dir+"/com.acme.C", []byte("com.acme.Old\n"), 0o644))

	rep := &diag.Collector{}
	m := NewMerger(NewStore(unreadableFs{mem}), rep)
	require.NoError(t, m.Merge(context.Background(), "com.acme.C", []string{"com.acme.New"}))

	require.Len(t, rep.Errors(), 1)
	var re *ReadError
	assert.True(t, errors.As(rep.Errors()[0].Err, &re))
	// Prior content was unreadable, so it is treated as empty.
	assert.Equal(t, "com.acme.New\n", readManifest(t, mem, "com.acme.C"))
}

func TestMerger_WriteErrorIsReported(t *testing.T) {
	rep := &diag.Collector{}
	m := NewMerger(NewStore(afero.NewReadOnlyFs(afero.NewMemMapFs())), rep)

	err := m.Merge(context.Background(), "com.acme.C", []string{"com.acme.New"})
	var we *WriteError
	require.True(t, errors.As(err, &we))
	require.Len(t, rep.Errors(), 1)
	assert.Same(t, err, rep.Errors()[0].Err)
}

func TestMerger_Properties(t *testing.T) {
	name := rapid.StringMatching(`com\.acme\.[A-Z][a-z]{0,5}`)

	rapid.Check(t, func(rt *rapid.T) {
		prior := rapid.SliceOf(name).Draw(rt, "prior")
		batches := rapid.SliceOfN(rapid.SliceOf(name), 1, 4).Draw(rt, "batches")

		fsys := afero.NewMemMapFs()
		m := NewMerger(NewStore(fsys), &diag.Collector{})
		ctx := context.Background()
		if err := afero.WriteFile(fsys, Dir+"/c.C", Encode(prior), 0o644); err != nil {
			rt.Fatal(err)
		}

		want := map[string]bool{}
		for _, p := range prior {
			want[p] = true
		}
		for _, b := range batches {
			if err := m.Merge(ctx, "c.C", b); err != nil {
				rt.Fatal(err)
			}
			for _, p := range b {
				want[p] = true
			}
		}

		first, err := afero.ReadFile(fsys, Dir+"/c.C")
		if err != nil {
			rt.Fatal(err)
		}
		got, err := NewStore(fsys).Load("c.C")
		if err != nil {
			rt.Fatal(err)
		}
		if len(got) != len(want) {
			rt.Fatalf("manifest %v, want set %v", got, want)
		}
		for _, g := range got {
			if !want[g] {
				rt.Fatalf("unexpected entry %q", g)
			}
		}

		// Re-running the last batch changes nothing.
		if err := m.Merge(ctx, "c.C", batches[len(batches)-1]); err != nil {
			rt.Fatal(err)
		}
		second, err := afero.ReadFile(fsys, Dir+"/c.C")
		if err != nil {
			rt.Fatal(err)
		}
		if string(first) != string(second) {
			rt.Fatalf("not idempotent:\n%s\nvs\n%s", first, second)
		}
	})
}
