package provider

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/knights-analytics/hugot"
	"github.com/knights-analytics/hugot/pipelines"
)

// Local model defaults.
const (
	LocalEmbeddingModel     = "all-mpnet-base-v2"
	LocalEmbeddingDimension = 768
	localBatchMax           = 10
)

// localRuntime holds the process-wide inference session. ONNX Runtime allows a
// single session per process and is not safe for concurrent use, so the
// mutex guards both setup and every pipeline run.
var localRuntime struct {
	mu       sync.Mutex
	session  *hugot.Session
	pipeline *pipelines.FeatureExtractionPipeline
	ready    bool
}

// HugotEmbedding embeds text in-process with a sentence-transformers model.
// Model files are read from a subdirectory of modelDir holding a
// tokenizer.json; binaries built with the embed_model tag unpack their
// bundled model there on first use.
type HugotEmbedding struct {
	modelDir string
}

// NewHugotEmbedding creates a local embedder rooted at modelDir.
func NewHugotEmbedding(modelDir string) *HugotEmbedding {
	return &HugotEmbedding{modelDir: modelDir}
}

// Available reports whether a model is on disk or compiled in.
func (h *HugotEmbedding) Available() bool {
	if hasEmbeddedModel {
		return true
	}
	_, err := h.diskModelPath()
	return err == nil
}

// Capacity returns the maximum number of texts per Embed call.
func (h *HugotEmbedding) Capacity() int { return localBatchMax }

// Embed runs the feature extraction pipeline over at most Capacity texts.
func (h *HugotEmbedding) Embed(ctx context.Context, req EmbeddingRequest) (EmbeddingResponse, error) {
	texts := req.Texts()
	if len(texts) == 0 {
		return NewEmbeddingResponse([][]float64{}, NewUsage(0, 0, 0)), nil
	}
	if len(texts) > localBatchMax {
		return EmbeddingResponse{}, fmt.Errorf("embed: %d texts exceeds capacity %d", len(texts), localBatchMax)
	}
	if err := ctx.Err(); err != nil {
		return EmbeddingResponse{}, err
	}
	if err := h.start(); err != nil {
		return EmbeddingResponse{}, fmt.Errorf("start local embedder: %w", err)
	}

	localRuntime.mu.Lock()
	defer localRuntime.mu.Unlock()

	result, err := localRuntime.pipeline.RunPipeline(texts)
	if err != nil {
		return EmbeddingResponse{}, fmt.Errorf("run embedding pipeline: %w", err)
	}

	vectors := make([][]float64, len(result.Embeddings))
	for i, row := range result.Embeddings {
		vec := make([]float64, len(row))
		for j, v := range row {
			vec[j] = float64(v)
		}
		vectors[i] = vec
	}
	return NewEmbeddingResponse(vectors, NewUsage(0, 0, 0)), nil
}

// Close is a no-op; the shared session lives until the process exits.
func (h *HugotEmbedding) Close() error { return nil }

func (h *HugotEmbedding) start() error {
	localRuntime.mu.Lock()
	defer localRuntime.mu.Unlock()

	if localRuntime.ready {
		return nil
	}

	path, err := h.modelPath()
	if err != nil {
		return err
	}

	session, err := newHugotSession()
	if err != nil {
		return fmt.Errorf("create hugot session: %w", err)
	}

	pipeline, err := hugot.NewPipeline(session, hugot.FeatureExtractionConfig{
		ModelPath: path,
		Name:      LocalEmbeddingModel,
		Options: []hugot.FeatureExtractionOption{
			pipelines.WithNormalization(),
		},
	})
	if err != nil {
		_ = session.Destroy()
		return fmt.Errorf("create feature extraction pipeline: %w", err)
	}

	localRuntime.session = session
	localRuntime.pipeline = pipeline
	localRuntime.ready = true
	return nil
}

func (h *HugotEmbedding) modelPath() (string, error) {
	if path, err := h.diskModelPath(); err == nil {
		return path, nil
	}
	if !hasEmbeddedModel {
		return "", fmt.Errorf("no model found in %s (download one or build with -tags embed_model)", h.modelDir)
	}
	if err := os.MkdirAll(h.modelDir, 0o755); err != nil {
		return "", fmt.Errorf("create model directory: %w", err)
	}
	return unpackModel(embeddedModelFS, h.modelDir)
}

func (h *HugotEmbedding) diskModelPath() (string, error) {
	entries, err := os.ReadDir(h.modelDir)
	if err != nil {
		return "", fmt.Errorf("read model directory %s: %w", h.modelDir, err)
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		candidate := filepath.Join(h.modelDir, entry.Name())
		if _, err := os.Stat(filepath.Join(candidate, "tokenizer.json")); err == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no model with tokenizer.json in %s", h.modelDir)
}

// unpackModel copies the first model directory under models/ in bundle to
// targetDir and returns its path. Existing copies are reused.
func unpackModel(bundle fs.FS, targetDir string) (string, error) {
	models, err := fs.Sub(bundle, "models")
	if err != nil {
		return "", fmt.Errorf("open bundled models: %w", err)
	}
	entries, err := fs.ReadDir(models, ".")
	if err != nil {
		return "", fmt.Errorf("list bundled models: %w", err)
	}

	var name string
	for _, entry := range entries {
		if entry.IsDir() {
			name = entry.Name()
			break
		}
	}
	if name == "" {
		return "", fmt.Errorf("no model directory in bundle")
	}

	dest := filepath.Join(targetDir, name)
	if _, err := os.Stat(filepath.Join(dest, "tokenizer.json")); err == nil {
		return dest, nil
	}

	model, err := fs.Sub(models, name)
	if err != nil {
		return "", fmt.Errorf("open bundled model %s: %w", name, err)
	}
	err = fs.WalkDir(model, ".", func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		target := filepath.Join(dest, path)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		data, err := fs.ReadFile(model, path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		return os.WriteFile(target, data, 0o644)
	})
	if err != nil {
		return "", fmt.Errorf("unpack model: %w", err)
	}
	return dest, nil
}

var _ Embedder = (*HugotEmbedding)(nil)

// LocalModelRepository is the Hugging Face repository of the local model.
const LocalModelRepository = "sentence-transformers/" + LocalEmbeddingModel

// DownloadLocalModel fetches the ONNX export of the local model into a
// subdirectory of dest and returns its path.
func DownloadLocalModel(dest string) (string, error) {
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return "", fmt.Errorf("create model directory: %w", err)
	}
	opts := hugot.NewDownloadOptions()
	opts.OnnxFilePath = "onnx/model.onnx"
	path, err := hugot.DownloadModel(LocalModelRepository, dest, opts)
	if err != nil {
		return "", fmt.Errorf("download %s: %w", LocalModelRepository, err)
	}
	return path, nil
}
