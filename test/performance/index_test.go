package performance_test

import (
	"context"
	"fmt"
	"hash/fnv"
	"math/rand"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	domainservice "github.com/helixml/vidchat/domain/service"
	"github.com/helixml/vidchat/infrastructure/chunking"
	"github.com/helixml/vidchat/infrastructure/persistence"
	"github.com/helixml/vidchat/infrastructure/provider"
	"github.com/helixml/vidchat/internal/database"
	"github.com/stretchr/testify/require"
)

const (
	// embeddingDimension is the output dimension of all-mpnet-base-v2.
	embeddingDimension = 768

	// pgURLEnv names the variable holding a PostgreSQL URL with pgvector
	// installed. Tests against PostgreSQL are skipped when it is unset.
	pgURLEnv = "VIDCHAT_TEST_PG_URL"

	videos         = 20
	chunksPerVideo = 100
	searches       = 200
)

// randomEmbedder returns a pseudo-random vector seeded by the text, so equal
// texts embed identically.
type randomEmbedder struct{}

func (randomEmbedder) Dimension() int { return embeddingDimension }

func (randomEmbedder) Embed(_ context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i, text := range texts {
		h := fnv.New64a()
		_, _ = h.Write([]byte(text))
		r := rand.New(rand.NewSource(int64(h.Sum64())))
		v := make([]float64, embeddingDimension)
		for j := range v {
			v[j] = r.Float64()*2 - 1
		}
		out[i] = v
	}
	return out, nil
}

// sampleTranscript returns a lecture-like transcript of roughly n words.
func sampleTranscript(n int) string {
	sentences := []string{
		"Today we are going to talk about how stars form inside giant molecular clouds.",
		"Gravity pulls the gas together until the core becomes hot enough for fusion.",
		"Once hydrogen starts fusing into helium the star settles onto the main sequence.",
		"Massive stars burn through their fuel in only a few million years.",
		"Smaller stars like red dwarfs can shine for trillions of years.",
		"When the core runs out of hydrogen the star expands into a red giant.",
		"The outer layers drift away and leave behind a white dwarf.",
		"The most massive stars end their lives in a supernova explosion.",
	}
	var b strings.Builder
	words := 0
	for i := 0; words < n; i++ {
		s := sentences[i%len(sentences)]
		b.WriteString(s)
		b.WriteByte(' ')
		words += len(strings.Fields(s))
	}
	return b.String()
}

func newIndex(t *testing.T, url string) *domainservice.VectorIndex {
	t.Helper()
	ctx := context.Background()

	db, err := database.NewDatabase(ctx, url)
	if err != nil {
		t.Skipf("cannot connect to %s: %v", url, err)
	}
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, persistence.AutoMigrate(ctx, db))
	store, err := persistence.NewChunkStore(ctx, db, embeddingDimension, nil)
	require.NoError(t, err)
	index, err := domainservice.NewVectorIndex(store, randomEmbedder{}, nil)
	require.NoError(t, err)

	require.NoError(t, index.Clear(ctx))
	t.Cleanup(func() { _ = index.Clear(context.Background()) })
	return index
}

func measureIndex(t *testing.T, index *domainservice.VectorIndex) {
	t.Helper()
	ctx := context.Background()

	chunks, err := chunking.Split(sampleTranscript(chunksPerVideo*60), chunking.DefaultParams())
	require.NoError(t, err)
	chunks = chunks[:min(len(chunks), chunksPerVideo)]

	start := time.Now()
	for v := range videos {
		texts := make([]string, len(chunks))
		for i, c := range chunks {
			texts[i] = fmt.Sprintf("[%d] %s", v, c)
		}
		_, err := index.Insert(ctx, texts, fmt.Sprintf("video-%03d", v), nil)
		require.NoError(t, err)
	}
	insert := time.Since(start)
	t.Logf("inserted %d chunks in %s", videos*len(chunks), insert)

	latencies := make([]time.Duration, searches)
	for i := range searches {
		query := fmt.Sprintf("question %d about stellar evolution", i)
		start := time.Now()
		matches, err := index.SimilaritySearch(ctx, query, fmt.Sprintf("video-%03d", i%videos), 15)
		latencies[i] = time.Since(start)
		require.NoError(t, err)
		require.Len(t, matches, 15)
	}
	slices.Sort(latencies)
	t.Logf("search p50=%s p95=%s max=%s",
		latencies[len(latencies)/2],
		latencies[len(latencies)*95/100],
		latencies[len(latencies)-1],
	)
}

func TestVectorIndex_SQLite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping performance test in short mode")
	}
	index := newIndex(t, "sqlite:///"+filepath.Join(t.TempDir(), "perf.db"))
	measureIndex(t, index)
}

func TestVectorIndex_Pgvector(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping performance test in short mode")
	}
	url := os.Getenv(pgURLEnv)
	if url == "" {
		t.Skipf("%s is not set", pgURLEnv)
	}
	index := newIndex(t, url)
	measureIndex(t, index)
}

// TestLocalEmbedding_Throughput needs the local model on disk or compiled in
// with -tags embed_model.
func TestLocalEmbedding_Throughput(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping performance test in short mode")
	}
	modelDir := os.Getenv("VIDCHAT_MODEL_DIR")
	if modelDir == "" {
		modelDir = t.TempDir()
	}
	local := provider.NewHugotEmbedding(modelDir)
	if !local.Available() {
		t.Skip("local embedding model not available")
	}
	t.Cleanup(func() { _ = local.Close() })

	ctx := context.Background()
	embedder, err := provider.NewVectorEmbedder(ctx, local, provider.LocalEmbeddingModel, 0)
	require.NoError(t, err)

	chunks, err := chunking.Split(sampleTranscript(20000), chunking.DefaultParams())
	require.NoError(t, err)

	start := time.Now()
	vectors, err := embedder.Embed(ctx, chunks)
	require.NoError(t, err)
	elapsed := time.Since(start)

	require.Len(t, vectors, len(chunks))
	t.Logf("embedded %d chunks in %s (%.1f chunks/s)", len(chunks), elapsed, float64(len(chunks))/elapsed.Seconds())
}

func BenchmarkChunking(b *testing.B) {
	text := sampleTranscript(20000)
	params := chunking.DefaultParams()
	b.SetBytes(int64(len(text)))
	for b.Loop() {
		if _, err := chunking.Split(text, params); err != nil {
			b.Fatal(err)
		}
	}
}
