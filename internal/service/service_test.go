package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/castlemilk/icdmapper/backend/internal/auth"
	"github.com/castlemilk/icdmapper/backend/internal/extraction"
	"github.com/castlemilk/icdmapper/backend/internal/search"
)

func newTestService(t *testing.T) (*MapperService, *MockEntityRecognizer, *MockCodeLookup, *http.ServeMux) {
	t.Helper()
	ctrl := gomock.NewController(t)
	recognizer := NewMockEntityRecognizer(ctrl)
	lookup := NewMockCodeLookup(ctrl)
	svc := NewMapperService(recognizer, lookup, nil)
	mux := http.NewServeMux()
	svc.RegisterRoutes(mux)
	return svc, recognizer, lookup, mux
}

func postSentence(mux *http.ServeMux, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/get_icd11_codes_for_sentence", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func predictionsOf(entries map[string][]search.Candidate, order ...string) *search.Predictions {
	p := search.NewPredictions()
	for _, k := range order {
		p.Set(k, entries[k])
	}
	return p
}

func TestHandleSentence_Example(t *testing.T) {
	_, recognizer, lookup, mux := newTestService(t)

	mentions := []extraction.Mention{
		{Text: "flu", Label: "DISEASE"},
		{Text: "diabetes", Label: "DISEASE"},
	}
	recognizer.EXPECT().Recognize(gomock.Any(), "Patient has flu and diabetes").Return(mentions, nil)
	lookup.EXPECT().Lookup(gomock.Any(), mentions).Return(predictionsOf(map[string][]search.Candidate{
		"flu":      {{Score: 0.9, Code: "1A20"}, {Score: 0.5, Code: "1B10"}},
		"diabetes": {{Score: 0.95, Code: "5A10"}},
	}, "flu", "diabetes"), nil)

	rec := postSentence(mux, `{"sentence": "Patient has flu and diabetes"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.JSONEq(t,
		`{"predictions": {"flu": [[0.9, "1A20"], [0.5, "1B10"]], "diabetes": [[0.95, "5A10"]]}}`,
		rec.Body.String())
}

func TestHandleSentence_NoEntities(t *testing.T) {
	_, recognizer, lookup, mux := newTestService(t)

	recognizer.EXPECT().Recognize(gomock.Any(), "All vitals normal").Return([]extraction.Mention{}, nil)
	lookup.EXPECT().Lookup(gomock.Any(), []extraction.Mention{}).Return(search.NewPredictions(), nil)

	rec := postSentence(mux, `{"sentence": "All vitals normal"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"predictions": {}}`, rec.Body.String())
}

func TestHandleSentence_MissingSentence(t *testing.T) {
	_, _, _, mux := newTestService(t)

	for _, body := range []string{`{}`, `{"text": "Patient has flu"}`} {
		t.Run(body, func(t *testing.T) {
			rec := postSentence(mux, body)

			assert.Equal(t, http.StatusOK, rec.Code)
			var resp map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, "Bad Request - Found Missing Values", resp["status"])
			assert.Equal(t, []any{"sentence"}, resp["Missing Fields"])
			assert.NotContains(t, resp, "predictions")
		})
	}
}

func TestHandleSentence_InvalidSentenceType(t *testing.T) {
	_, _, _, mux := newTestService(t)

	rec := postSentence(mux, `{"sentence": 42}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status": "Bad Request - Found Invalid Values", "Invalid Fields": ["sentence"]}`, rec.Body.String())
}

func TestHandleSentence_InvalidJSON(t *testing.T) {
	_, _, _, mux := newTestService(t)

	for _, body := range []string{`not json`, `null`, `["sentence"]`, ``} {
		t.Run(body, func(t *testing.T) {
			rec := postSentence(mux, body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.JSONEq(t, `{"status": "Bad Request - Invalid JSON"}`, rec.Body.String())
		})
	}
}

func TestHandleSentence_TokenFailureKeepsExtractedEntities(t *testing.T) {
	_, recognizer, lookup, mux := newTestService(t)

	mentions := []extraction.Mention{{Text: "flu", Label: "DISEASE"}}
	recognizer.EXPECT().Recognize(gomock.Any(), "Patient has flu").Return(mentions, nil)
	lookup.EXPECT().Lookup(gomock.Any(), mentions).Return(nil, &auth.AuthError{
		Endpoint: "https://icdaccessmanagement.who.int/connect/token",
		Message:  "unable to generate bearer token",
	})

	rec := postSentence(mux, `{"sentence": "Patient has flu"}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t,
		`{"status": "Internal Server Error - Code Lookup Unavailable", "entities": [{"text": "flu", "label": "DISEASE"}]}`,
		rec.Body.String())
}

func TestHandleSentence_ModelFailure(t *testing.T) {
	_, recognizer, _, mux := newTestService(t)

	recognizer.EXPECT().Recognize(gomock.Any(), gomock.Any()).Return(nil, errors.New("session closed"))

	rec := postSentence(mux, `{"sentence": "Patient has flu"}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"status": "Internal Server Error - Entity Extraction Failed"}`, rec.Body.String())
}

func TestHandleSentence_MethodNotAllowed(t *testing.T) {
	_, _, _, mux := newTestService(t)

	req := httptest.NewRequest(http.MethodGet, "/get_icd11_codes_for_sentence", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandleIndex(t *testing.T) {
	_, recognizer, _, mux := newTestService(t)
	recognizer.EXPECT().ModelID().Return("model-best")

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "ICD-11 Code Mapper")
	assert.Contains(t, rec.Body.String(), "model-best")
}

func TestHandleIndex_UnknownPath(t *testing.T) {
	_, _, _, mux := newTestService(t)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleHealthCheck(t *testing.T) {
	_, recognizer, _, mux := newTestService(t)
	recognizer.EXPECT().ModelID().Return("model-best")

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status": "ok", "model": "model-best"}`, rec.Body.String())
}

func TestPredict_WrapsErrors(t *testing.T) {
	svc, recognizer, lookup, _ := newTestService(t)
	ctx := context.Background()

	recognizer.EXPECT().Recognize(ctx, "x").Return(nil, errors.New("boom"))
	_, err := svc.Predict(ctx, "x")
	var extractionErr *ExtractionFailedError
	assert.True(t, errors.As(err, &extractionErr))

	mentions := []extraction.Mention{{Text: "flu", Label: "DISEASE"}}
	authErr := &auth.AuthError{Endpoint: "e", Message: "m"}
	recognizer.EXPECT().Recognize(ctx, "y").Return(mentions, nil)
	lookup.EXPECT().Lookup(ctx, mentions).Return(nil, authErr)
	_, err = svc.Predict(ctx, "y")
	var unavailable *LookupUnavailableError
	require.True(t, errors.As(err, &unavailable))
	assert.Equal(t, mentions, unavailable.Mentions)
	var gotAuth *auth.AuthError
	assert.True(t, errors.As(err, &gotAuth))
}
