package extraction

import "fmt"

// ModelLoadErrorCode represents specific model load failure types.
type ModelLoadErrorCode string

const (
	ErrModelPathNotFound  ModelLoadErrorCode = "MODEL_PATH_NOT_FOUND"
	ErrModelInvalid       ModelLoadErrorCode = "MODEL_INVALID"
	ErrTokenizerInvalid   ModelLoadErrorCode = "TOKENIZER_INVALID"
	ErrLabelsInvalid      ModelLoadErrorCode = "LABELS_INVALID"
	ErrRuntimeUnavailable ModelLoadErrorCode = "RUNTIME_UNAVAILABLE"
	ErrSidecarUnavailable ModelLoadErrorCode = "SIDECAR_UNAVAILABLE"
	ErrUnsupportedBackend ModelLoadErrorCode = "UNSUPPORTED_BACKEND"
)

// ModelLoadError is returned when a NER model cannot be loaded. It is fatal at startup.
type ModelLoadError struct {
	Code    ModelLoadErrorCode
	Path    string
	Message string
	Cause   error
}

func (e *ModelLoadError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s (%s): %v", e.Code, e.Message, e.Path, e.Cause)
	}
	return fmt.Sprintf("[%s] %s (%s)", e.Code, e.Message, e.Path)
}

func (e *ModelLoadError) Unwrap() error {
	return e.Cause
}
