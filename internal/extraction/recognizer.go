// Package extraction provides medical entity extraction using NER models.
package extraction

import (
	"context"
	"os"
	"time"
)

// Mention is one entity span recognised in a sentence.
type Mention struct {
	Text  string `json:"text"`
	Label string `json:"label"`
	// Byte offsets into the sentence; both zero when the backend does not report them.
	Start int `json:"-"`
	End   int `json:"-"`
}

// Recognizer exposes the minimal surface required by the service layer.
type Recognizer interface {
	// Recognize returns the entity mentions of sentence in model order.
	Recognize(ctx context.Context, sentence string) ([]Mention, error)
	ModelID() string
	Close() error
}

// ModelConfig configures Load.
type ModelConfig struct {
	Backend    string // "onnx" or "http"
	Path       string
	OrtLibrary string
	MaxSeqLen  int
	SidecarURL string
	Timeout    time.Duration
}

// Load opens the NER model described by cfg. Every failure is a *ModelLoadError.
func Load(ctx context.Context, cfg ModelConfig) (Recognizer, error) {
	switch cfg.Backend {
	case "", "onnx":
		if _, err := os.Stat(cfg.Path); err != nil {
			return nil, &ModelLoadError{
				Code:    ErrModelPathNotFound,
				Path:    cfg.Path,
				Message: "the given model path does not exist",
				Cause:   err,
			}
		}
		return NewOrtRecognizer(cfg)
	case "http":
		return NewSidecarRecognizer(ctx, cfg.SidecarURL, cfg.Timeout)
	default:
		return nil, &ModelLoadError{
			Code:    ErrUnsupportedBackend,
			Path:    cfg.Path,
			Message: "unsupported model backend " + cfg.Backend,
		}
	}
}
