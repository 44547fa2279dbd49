package service

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/castlemilk/icdmapper/backend/internal/extraction"
)

const (
	statusMissingValues   = "Bad Request - Found Missing Values"
	statusInvalidValues   = "Bad Request - Found Invalid Values"
	statusInvalidJSON     = "Bad Request - Invalid JSON"
	statusExtractionError = "Internal Server Error - Entity Extraction Failed"
	statusLookupError     = "Internal Server Error - Code Lookup Unavailable"

	maxBodySize = 1 << 20
)

// mandatoryInputs are the fields every sentence request must carry.
var mandatoryInputs = []string{"sentence"}

//go:embed templates/index.html
var templateFS embed.FS

var indexTemplate = template.Must(template.ParseFS(templateFS, "templates/index.html"))

// ErrorResponse is the body of every non-success answer.
type ErrorResponse struct {
	Status        string               `json:"status"`
	MissingFields []string             `json:"Missing Fields,omitempty"`
	InvalidFields []string             `json:"Invalid Fields,omitempty"`
	Entities      []extraction.Mention `json:"entities,omitempty"`
}

// RegisterRoutes registers the API routes.
func (s *MapperService) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", s.HandleIndex)
	mux.HandleFunc("POST /get_icd11_codes_for_sentence", s.HandleSentence)
	mux.HandleFunc("GET /health", s.HandleHealthCheck)
}

// HandleIndex renders the static welcome page.
func (s *MapperService) HandleIndex(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := indexTemplate.Execute(&buf, struct{ ModelID string }{s.ModelID()}); err != nil {
		s.logger.ErrorContext(r.Context(), "failed to render index", "err", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// HandleSentence extracts entities from the posted sentence and returns their
// top ICD-11 codes. Validation problems are reported in a 200 body.
func (s *MapperService) HandleSentence(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.NewString()
	w.Header().Set("X-Request-ID", requestID)
	ctx := r.Context()
	logger := s.logger.With("request_id", requestID)
	start := time.Now()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		logger.WarnContext(ctx, "failed to read request body", "err", err)
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Status: statusInvalidJSON})
		return
	}

	var input map[string]json.RawMessage
	if err := json.Unmarshal(body, &input); err != nil || input == nil {
		logger.InfoContext(ctx, "rejected request body", "err", err)
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Status: statusInvalidJSON})
		return
	}
	logger.InfoContext(ctx, "input received", "body", string(body))

	var missing []string
	for _, field := range mandatoryInputs {
		if _, ok := input[field]; !ok {
			missing = append(missing, field)
		}
	}
	if len(missing) != 0 {
		writeJSON(w, http.StatusOK, ErrorResponse{Status: statusMissingValues, MissingFields: missing})
		return
	}

	var sentence string
	if err := json.Unmarshal(input["sentence"], &sentence); err != nil {
		writeJSON(w, http.StatusOK, ErrorResponse{Status: statusInvalidValues, InvalidFields: []string{"sentence"}})
		return
	}

	resp, err := s.Predict(ctx, sentence)
	if err != nil {
		var unavailable *LookupUnavailableError
		if errors.As(err, &unavailable) {
			logger.ErrorContext(ctx, "code lookup unavailable", "err", err)
			writeJSON(w, http.StatusInternalServerError, ErrorResponse{Status: statusLookupError, Entities: unavailable.Mentions})
			return
		}
		logger.ErrorContext(ctx, "prediction failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Status: statusExtractionError})
		return
	}

	logger.InfoContext(ctx, "prediction complete",
		"entities", resp.Predictions.Len(),
		"duration_ms", time.Since(start).Milliseconds())
	writeJSON(w, http.StatusOK, resp)
}

// HandleHealthCheck provides a basic health check endpoint.
func (s *MapperService) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"model":  s.ModelID(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"status":"Internal Server Error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
	w.Write([]byte("\n"))
}
