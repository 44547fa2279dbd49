package extraction

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spacy_model", "model-best")

	_, err := Load(context.Background(), ModelConfig{Backend: "onnx", Path: path})
	var loadErr *ModelLoadError
	require.True(t, errors.As(err, &loadErr), "expected ModelLoadError, got %v", err)
	assert.Equal(t, ErrModelPathNotFound, loadErr.Code)
	assert.Equal(t, path, loadErr.Path)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestLoad_DirectoryWithoutModelFile(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(context.Background(), ModelConfig{Path: dir})
	var loadErr *ModelLoadError
	require.True(t, errors.As(err, &loadErr))
	assert.Equal(t, ErrModelPathNotFound, loadErr.Code)
	assert.Equal(t, filepath.Join(dir, modelFile), loadErr.Path)
}

func TestLoad_CorruptTokenizer(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, modelFile), []byte("not a model"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, tokenizerFile), []byte("{broken"), 0o644))

	_, err := Load(context.Background(), ModelConfig{Path: dir})
	var loadErr *ModelLoadError
	require.True(t, errors.As(err, &loadErr))
	assert.Equal(t, ErrTokenizerInvalid, loadErr.Code)
}

func TestLoad_UnsupportedBackend(t *testing.T) {
	_, err := Load(context.Background(), ModelConfig{Backend: "spacy", Path: t.TempDir()})
	var loadErr *ModelLoadError
	require.True(t, errors.As(err, &loadErr))
	assert.Equal(t, ErrUnsupportedBackend, loadErr.Code)
}

func TestLoad_HTTPBackend(t *testing.T) {
	server := newSidecar(t, nil)

	rec, err := Load(context.Background(), ModelConfig{
		Backend:    "http",
		SidecarURL: server.URL,
		Timeout:    time.Second,
	})
	require.NoError(t, err)
	defer rec.Close()
	assert.Equal(t, "model-best", rec.ModelID())
}
