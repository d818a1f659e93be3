package vectorstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/edgeflare/ragapi/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestRuntimePath(t *testing.T) {
	sc := config.StoreConfig{Path: "data/chroma", TmpDir: "/tmp"}
	assert.Equal(t, "data/chroma", RuntimePath(sc))

	sc.ImageRuntime = true
	assert.Equal(t, filepath.Join("/tmp", "data", "chroma"), RuntimePath(sc))

	sc.Path = "/var/task/data/chroma"
	assert.Equal(t, "/tmp/var/task/data/chroma", RuntimePath(sc))
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestPrepareRuntimeCopy(t *testing.T) {
	src := filepath.Join(t.TempDir(), "bundled")
	writeFile(t, filepath.Join(src, "00000000.gob"), "meta")
	writeFile(t, filepath.Join(src, "collection", "doc.gob"), "doc")

	dst := filepath.Join(t.TempDir(), "tmp", "data", "chroma")
	require.NoError(t, PrepareRuntimeCopy(src, dst, nil))

	got, err := os.ReadFile(filepath.Join(dst, "collection", "doc.gob"))
	require.NoError(t, err)
	assert.Equal(t, "doc", string(got))

	// a second run leaves the existing copy alone
	writeFile(t, filepath.Join(src, "collection", "doc.gob"), "changed")
	core, logs := observer.New(zap.InfoLevel)
	require.NoError(t, PrepareRuntimeCopy(src, dst, zap.New(core)))

	got, err = os.ReadFile(filepath.Join(dst, "collection", "doc.gob"))
	require.NoError(t, err)
	assert.Equal(t, "doc", string(got))
	assert.Equal(t, 1, logs.FilterMessage("runtime store already exists").Len())
}

func TestPrepareRuntimeCopyMissingSource(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "dst")
	err := PrepareRuntimeCopy(filepath.Join(t.TempDir(), "nope"), dst, nil)
	assert.Error(t, err)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()
	cfg.Store.Path = filepath.Join(t.TempDir(), "chroma")

	store, err := Open(ctx, &cfg, nil)
	require.NoError(t, err)
	require.NoError(t, store.Add(ctx, testRecords()))
	require.NoError(t, store.Close())

	// image runtime copies the populated store under TmpDir
	cfg.Store.ImageRuntime = true
	cfg.Store.TmpDir = t.TempDir()
	store, err = Open(ctx, &cfg, nil)
	require.NoError(t, err)
	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.DirExists(t, RuntimePath(cfg.Store))

	cfg.Store.Driver = "sqlite"
	_, err = Open(ctx, &cfg, nil)
	assert.ErrorIs(t, err, ErrUnknownDriver)
}
