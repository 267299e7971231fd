package cli

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edwinsyarief/kura"
	"github.com/edwinsyarief/kura/internal/config"
	"github.com/edwinsyarief/kura/snapshot"
)

type position struct {
	X, Y float32
}

type level uint8

func testRoot() *RootOptions {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return &RootOptions{Config: config.Default(), Log: log}
}

// rawSnapshot returns a snapshot whose types are all raw-encoded.
func rawSnapshot(t *testing.T, opts ...snapshot.Option) []byte {
	t.Helper()
	w := testRoot().openWorld()
	kura.RegisterComponent[position](w.Types(), "position")
	kura.RegisterTag[level](w.Types(), "level")
	kura.NewBuilder[position](w, kura.Tag(w, level(1))).NewEntitiesWithValueSet(3, position{X: 1, Y: 2})
	kura.NewBuilder[position](w, kura.Tag(w, level(2))).NewEntities(2)
	var buf bytes.Buffer
	_, err := snapshot.Write(&buf, w, opts...)
	require.NoError(t, err)
	return buf.Bytes()
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	assert.Equal(t, "kura", cmd.Use)
	assert.NotNil(t, cmd.PersistentFlags().Lookup("config"))
	assert.NotNil(t, cmd.PersistentFlags().ShorthandLookup("v"))

	names := map[string]bool{}
	for _, c := range cmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"inspect", "recompress", "store"} {
		assert.True(t, names[want], "missing %s command", want)
	}

	store, _, err := cmd.Find([]string{"store"})
	require.NoError(t, err)
	assert.NotNil(t, store.PersistentFlags().Lookup("db"))
	sub := map[string]bool{}
	for _, c := range store.Commands() {
		sub[c.Name()] = true
	}
	assert.Equal(t, map[string]bool{"list": true, "put": true, "get": true, "rm": true}, sub)
}

func TestRunInspect(t *testing.T) {
	data := rawSnapshot(t)
	var out bytes.Buffer
	require.NoError(t, runInspect(testRoot(), bytes.NewReader(data), &out, false))

	s := out.String()
	assert.Contains(t, s, "format:      msgpack")
	assert.Contains(t, s, "compression: zstd")
	assert.Contains(t, s, "archetypes: 1\nentities: 5\n")
	assert.Contains(t, s, "archetype 0: components=[position] tags=[level]")
	assert.Contains(t, s, "  chunkset 1: level=[2] entities=2 chunks=1\n")

	out.Reset()
	require.NoError(t, runInspect(testRoot(), bytes.NewReader(data), &out, true))
	assert.NotContains(t, out.String(), "archetypes:")

	err := runInspect(testRoot(), bytes.NewReader(data[:20]), &out, false)
	assert.Error(t, err)
}

func TestRunRecompress(t *testing.T) {
	data := rawSnapshot(t)
	src, payload, err := snapshot.Unpack(bytes.NewReader(data))
	require.NoError(t, err)

	var out bytes.Buffer
	h, err := runRecompress(testRoot(), &RecompressOptions{Compression: "none"}, bytes.NewReader(data), &out)
	require.NoError(t, err)
	assert.Equal(t, src.ID, h.ID)
	assert.Equal(t, snapshot.FormatMsgpack, h.Format)
	assert.Equal(t, snapshot.CompressionNone, h.Compression)
	_, same, err := snapshot.Unpack(&out)
	require.NoError(t, err)
	assert.Equal(t, payload, same, "compression change keeps the payload")

	out.Reset()
	h, err = runRecompress(testRoot(), &RecompressOptions{Format: "yaml", Compression: "lz4"}, bytes.NewReader(data), &out)
	require.NoError(t, err)
	assert.Equal(t, snapshot.FormatYAML, h.Format)

	w := testRoot().openWorld()
	_, err = snapshot.Read(&out, w)
	require.NoError(t, err)
	assert.Equal(t, 5, w.Len())

	_, err = runRecompress(testRoot(), &RecompressOptions{Compression: "brotli"}, bytes.NewReader(data), &out)
	assert.Error(t, err)
}

func TestStoreCommands(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.kura")
	require.NoError(t, os.WriteFile(in, rawSnapshot(t), 0o644))
	db := filepath.Join(dir, "store.db")

	run := func(args ...string) string {
		t.Helper()
		cmd := NewRootCommand()
		var out bytes.Buffer
		cmd.SetOut(&out)
		cmd.SetErr(io.Discard)
		cmd.SetArgs(args)
		require.NoError(t, cmd.Execute(), "kura %v", args)
		return out.String()
	}

	assert.Contains(t, run("store", "--db", db, "put", "first", in), `as "first"`)
	list := run("store", "--db", db, "list")
	assert.Contains(t, list, "NAME")
	assert.Contains(t, list, "first")
	assert.Contains(t, list, "msgpack")

	outPath := filepath.Join(dir, "out.kura")
	run("store", "--db", db, "get", "first", outPath)
	got, err := os.ReadFile(outPath)
	require.NoError(t, err)
	want, err := os.ReadFile(in)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	assert.Contains(t, run("inspect", "--header", outPath), "version:     1")

	run("store", "--db", db, "rm", "first")
	assert.NotContains(t, run("store", "--db", db, "list"), "first")

	cmd := NewRootCommand()
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"store", "--db", db, "rm", "first"})
	assert.ErrorIs(t, cmd.Execute(), snapshot.ErrNotFound)
}
