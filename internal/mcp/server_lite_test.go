package mcp

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	litecfg "github.com/snpedia-variant-pipeline/internal/config"
	"github.com/snpedia-variant-pipeline/internal/domain"
)

type pageFetcher map[string]*domain.RawPage

func (f pageFetcher) FetchPage(_ context.Context, id string) (*domain.RawPage, error) {
	if page, ok := f[id]; ok {
		return page, nil
	}
	return nil, domain.ErrPageNotFound
}

func newTestLiteServer(t *testing.T) *LiteServer {
	t.Helper()
	cfg := litecfg.DefaultLiteConfig()
	cfg.DataDir = t.TempDir()
	cfg.PollInterval = 10 * time.Millisecond

	fetcher := pageFetcher{
		"rs1801133": {VariantID: "rs1801133", Title: "Rs1801133", HTML: testHTML, Wikitext: testWikitext},
	}

	server, err := NewLiteServer(cfg, WithLogger(quietLogger()), WithFetcher(fetcher))
	require.NoError(t, err)
	t.Cleanup(func() { server.Close() })
	return server
}

func TestNewLiteServer(t *testing.T) {
	server := newTestLiteServer(t)

	assert.NotNil(t, server.Store())
	assert.NotNil(t, server.Queue())
	assert.NotNil(t, server.Cache())
	assert.FileExists(t, server.config.DBPath())
}

func TestNewLiteServer_NilFetcherRejected(t *testing.T) {
	cfg := litecfg.DefaultLiteConfig()
	cfg.DataDir = t.TempDir()

	_, err := NewLiteServer(cfg, WithFetcher(nil))
	assert.Error(t, err)
}

func TestLiteServer_FetchOnDemand(t *testing.T) {
	server := newTestLiteServer(t)
	cs := connect(t, server.server)

	text, isErr := callTool(t, cs, "get_variant", map[string]any{"variant_id": "rs1801133", "fetch": true})
	require.False(t, isErr, text)
	assert.Contains(t, text, `"gene": "MTHFR"`)

	stored, err := server.Store().Get(context.Background(), "rs1801133")
	require.NoError(t, err)
	assert.Equal(t, "folate metabolism", stored.Summary)
	assert.Nil(t, stored.RawContent)
}

func TestLiteServer_WorkerDrainsQueuedVariants(t *testing.T) {
	server := newTestLiteServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		server.syncer.Run(ctx)
	}()

	cs := connect(t, server.server)
	text, isErr := callTool(t, cs, "queue_variants", map[string]any{"variant_ids": []string{"rs1801133", "rs404"}})
	require.False(t, isErr, text)

	require.Eventually(t, func() bool {
		job, err := server.Queue().Get(context.Background(), "rs404")
		return err == nil && job.Status == domain.JobNotFound
	}, 5*time.Second, 20*time.Millisecond)

	require.Eventually(t, func() bool {
		_, err := server.Store().Get(context.Background(), "rs1801133")
		return err == nil
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	<-done
}
