package ragapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/edgeflare/ragapi/internal/testutil/pdftest"
	"github.com/edgeflare/ragapi/pkg/config"
	"github.com/edgeflare/ragapi/pkg/rag"
	"github.com/edgeflare/ragapi/pkg/vectorstore"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fixedEmbedder maps every text to the same unit vector.
type fixedEmbedder struct{}

func (fixedEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

type stubChat struct{ answer string }

func (c stubChat) Invoke(context.Context, string) (string, error) {
	return c.answer, nil
}

// setupCommandTest points the package config at a temporary chromem store and source
// directory, and returns the source directory.
func setupCommandTest(t *testing.T) string {
	t.Helper()

	c := config.Default()
	c.Store.Path = filepath.Join(t.TempDir(), "chroma")
	c.RAG.SourcePath = t.TempDir()
	c.Metrics.Enabled = false
	c.Server.ShutdownTimeout = 5 * time.Second

	prevCfg, prevLogger, prevNewApp := cfg, logger, newApp
	cfg, logger = &c, zap.NewNop()
	newApp = func(_ context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
		store, err := vectorstore.NewChromem(cfg.Store.Path, cfg.Store.Collection, logger)
		if err != nil {
			return nil, err
		}
		return &app{store: store, embedder: fixedEmbedder{}, chat: stubChat{answer: "Two to eight players."}}, nil
	}
	t.Cleanup(func() {
		cfg, logger, newApp = prevCfg, prevLogger, prevNewApp
	})
	return c.RAG.SourcePath
}

func resetFlags(c *cobra.Command) {
	c.Flags().VisitAll(func(f *pflag.Flag) {
		f.Value.Set(f.DefValue)
		f.Changed = false
	})
}

// runCommand runs c with args and returns what it printed.
func runCommand(t *testing.T, c *cobra.Command, args ...string) (string, error) {
	t.Helper()

	resetFlags(c)
	t.Cleanup(func() {
		resetFlags(c)
		c.SetOut(nil)
	})

	var out bytes.Buffer
	c.SetOut(&out)
	c.SetContext(context.Background())
	require.NoError(t, c.ParseFlags(args))

	err := c.RunE(c, c.Flags().Args())
	return out.String(), err
}

func TestPopulateCommand(t *testing.T) {
	src := setupCommandTest(t)
	pdftest.Write(t, filepath.Join(src, "monopoly.pdf"), "Monopoly is played by two to eight players")

	out, err := runCommand(t, populateCmd)
	require.NoError(t, err)
	assert.Contains(t, out, "Number of existing documents in DB: 0\n")
	assert.Contains(t, out, "👉 Added new documents: 1\n")
	assert.NotContains(t, out, "Clearing Database")

	out, err = runCommand(t, populateCmd)
	require.NoError(t, err)
	assert.Contains(t, out, "Number of existing documents in DB: 1\n")
	assert.Contains(t, out, "✅ No new documents to add\n")

	out, err = runCommand(t, populateCmd, "--reset")
	require.NoError(t, err)
	assert.Contains(t, out, "✨ Clearing Database\n")
	assert.Contains(t, out, "Number of existing documents in DB: 0\n")
	assert.Contains(t, out, "👉 Added new documents: 1\n")
}

func TestPopulateSourceFlag(t *testing.T) {
	setupCommandTest(t)
	other := t.TempDir()
	pdftest.Write(t, filepath.Join(other, "ticket.pdf"), "Ticket to Ride is about trains", "Players claim routes")

	out, err := runCommand(t, populateCmd, "--source", other)
	require.NoError(t, err)
	assert.Equal(t, other, cfg.RAG.SourcePath)
	assert.Contains(t, out, "👉 Added new documents: 2\n")
}

func TestPopulateMissingSource(t *testing.T) {
	setupCommandTest(t)

	_, err := runCommand(t, populateCmd, "--source", filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestQueryCommand(t *testing.T) {
	src := setupCommandTest(t)
	pdftest.Write(t, filepath.Join(src, "monopoly.pdf"), "Monopoly is played by two to eight players")
	_, err := runCommand(t, populateCmd)
	require.NoError(t, err)

	out, err := runCommand(t, queryCmd, "How", "many", "players?")
	require.NoError(t, err)

	var resp rag.QueryResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "How many players?", resp.QueryText)
	assert.Equal(t, "Two to eight players.", resp.ResponseText)
	assert.Equal(t, []string{filepath.Join(src, "monopoly.pdf") + ":0:0"}, resp.Sources)
}

func TestServeStopsOnCancel(t *testing.T) {
	setupCommandTest(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	cfg.Server.ListenAddr = addr

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	serveCmd.SetContext(ctx)

	done := make(chan error, 1)
	go func() { done <- runServe(serveCmd, nil) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not stop")
	}
}
