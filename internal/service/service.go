// Package service wires entity extraction and ICD-11 code lookup behind the
// HTTP API.
package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/castlemilk/icdmapper/backend/internal/extraction"
	"github.com/castlemilk/icdmapper/backend/internal/search"
)

//go:generate mockgen -source=service.go -destination=service_mock.go -package=service

// EntityRecognizer extracts entity mentions from a sentence.
type EntityRecognizer interface {
	Recognize(ctx context.Context, sentence string) ([]extraction.Mention, error)
	ModelID() string
}

// CodeLookup maps entity mentions to ranked ICD-11 codes.
type CodeLookup interface {
	Lookup(ctx context.Context, mentions []extraction.Mention) (*search.Predictions, error)
}

// PredictResponse is the success body of the sentence endpoint.
type PredictResponse struct {
	Predictions *search.Predictions `json:"predictions"`
}

// MapperService holds the process-lifetime state: the loaded model and the
// lookup client. Both are read-only after startup and shared by all requests.
type MapperService struct {
	recognizer EntityRecognizer
	lookup     CodeLookup
	logger     *slog.Logger
}

// NewMapperService creates the service.
func NewMapperService(recognizer EntityRecognizer, lookup CodeLookup, logger *slog.Logger) *MapperService {
	if logger == nil {
		logger = slog.Default()
	}
	return &MapperService{
		recognizer: recognizer,
		lookup:     lookup,
		logger:     logger,
	}
}

// ModelID returns the identifier of the loaded NER model.
func (s *MapperService) ModelID() string {
	return s.recognizer.ModelID()
}

// Predict extracts entities from sentence and looks up their ICD-11 codes.
func (s *MapperService) Predict(ctx context.Context, sentence string) (*PredictResponse, error) {
	mentions, err := s.recognizer.Recognize(ctx, sentence)
	if err != nil {
		return nil, &ExtractionFailedError{Cause: err}
	}
	s.logger.DebugContext(ctx, "entities extracted", "count", len(mentions), "entities", mentions)

	predictions, err := s.lookup.Lookup(ctx, mentions)
	if err != nil {
		return nil, &LookupUnavailableError{Mentions: mentions, Cause: err}
	}
	return &PredictResponse{Predictions: predictions}, nil
}

// ExtractionFailedError is returned when the NER model fails on a sentence.
type ExtractionFailedError struct {
	Cause error
}

func (e *ExtractionFailedError) Error() string {
	return fmt.Sprintf("entity extraction failed: %v", e.Cause)
}

func (e *ExtractionFailedError) Unwrap() error {
	return e.Cause
}

// LookupUnavailableError is returned when the code lookup phase could not run,
// typically because no bearer token could be obtained. Mentions holds the
// entities that were already extracted.
type LookupUnavailableError struct {
	Mentions []extraction.Mention
	Cause    error
}

func (e *LookupUnavailableError) Error() string {
	return fmt.Sprintf("code lookup unavailable: %v", e.Cause)
}

func (e *LookupUnavailableError) Unwrap() error {
	return e.Cause
}
