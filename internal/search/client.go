// Package search maps extracted entities to ICD-11 codes through the WHO
// terminology search API.
package search

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/sync/errgroup"

	"github.com/castlemilk/icdmapper/backend/internal/extraction"
)

// TokenSource issues a bearer token for one lookup batch.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// FailureReporter records entities whose lookup failed.
type FailureReporter interface {
	Report(entity string, err error)
}

// Config holds ICD-11 search configuration.
type Config struct {
	URL           string
	ReleaseID     string
	Linearization string
	APIVersion    string
	Language      string
	TopN          int
	Timeout       time.Duration
	// Parallelism bounds concurrent searches per batch; 1 keeps them sequential.
	Parallelism int
	Normalizer  Normalizer
}

// DefaultConfig returns the WHO 2022-02 MMS release settings.
func DefaultConfig() Config {
	return Config{
		URL:           "https://id.who.int/icd/release/11/2022-02/mms/search",
		ReleaseID:     "2022-02",
		Linearization: "mms",
		APIVersion:    "v2",
		Language:      "en",
		TopN:          3,
		Timeout:       10 * time.Second,
		Parallelism:   1,
		Normalizer:    Normalize,
	}
}

// Client is an HTTP client for the ICD-11 search endpoint.
type Client struct {
	cfg        Config
	tokens     TokenSource
	httpClient *http.Client
	reporter   FailureReporter
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithFailureReporter sets where per-entity failures are recorded.
func WithFailureReporter(r FailureReporter) Option {
	return func(c *Client) { c.reporter = r }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a search client. Zero config fields take DefaultConfig values.
func NewClient(cfg Config, tokens TokenSource, opts ...Option) *Client {
	def := DefaultConfig()
	if cfg.URL == "" {
		cfg.URL = def.URL
	}
	if cfg.ReleaseID == "" {
		cfg.ReleaseID = def.ReleaseID
	}
	if cfg.Linearization == "" {
		cfg.Linearization = def.Linearization
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = def.APIVersion
	}
	if cfg.Language == "" {
		cfg.Language = def.Language
	}
	if cfg.TopN <= 0 {
		cfg.TopN = def.TopN
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = def.Parallelism
	}
	if cfg.Normalizer == nil {
		cfg.Normalizer = def.Normalizer
	}

	c := &Client{
		cfg:        cfg,
		tokens:     tokens,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// result is the outcome of one entity search.
type result struct {
	key        string
	candidates []Candidate
	ok         bool
}

// Lookup searches ICD-11 codes for every mention. A single bearer token is
// requested for the batch; if that fails the *auth.AuthError is returned and no
// entity is searched. Individual entity failures are logged, reported and skipped.
func (c *Client) Lookup(ctx context.Context, mentions []extraction.Mention) (*Predictions, error) {
	predictions := NewPredictions()
	if len(mentions) == 0 {
		return predictions, nil
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]result, len(mentions))
	if c.cfg.Parallelism == 1 {
		for i, m := range mentions {
			results[i] = c.lookupOne(ctx, token, m)
		}
	} else {
		var g errgroup.Group
		g.SetLimit(c.cfg.Parallelism)
		for i, m := range mentions {
			i, m := i, m
			g.Go(func() error {
				results[i] = c.lookupOne(ctx, token, m)
				return nil
			})
		}
		_ = g.Wait()
	}

	// Merged in mention order so a repeated key keeps the last mention's candidates.
	for _, r := range results {
		if r.ok {
			predictions.Set(r.key, r.candidates)
		}
	}
	return predictions, nil
}

func (c *Client) lookupOne(ctx context.Context, token string, m extraction.Mention) result {
	key := c.cfg.Normalizer(m.Text)
	if key == "" {
		c.logger.Debug("skipping entity with empty lookup key", "entity", m.Text, "label", m.Label)
		return result{}
	}

	candidates, err := c.Search(ctx, token, key)
	if err != nil {
		c.logger.Warn("icd lookup failed", "entity", key, "label", m.Label, "err", err)
		if c.reporter != nil {
			c.reporter.Report(key, err)
		}
		return result{}
	}
	return result{key: key, candidates: candidates, ok: true}
}

// Search runs one search request for query and returns the top ranked candidates.
// Errors are *LookupError.
func (c *Client) Search(ctx context.Context, token, query string) ([]Candidate, error) {
	params := url.Values{}
	params.Set("linearizationname", c.cfg.Linearization)
	params.Set("releaseId", c.cfg.ReleaseID)
	params.Set("q", query)
	params.Set("API-Version", c.cfg.APIVersion)
	params.Set("Accept-Language", c.cfg.Language)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.URL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, &LookupError{Code: ErrTransport, Entity: query, Cause: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Language", c.cfg.Language)
	req.Header.Set("API-Version", c.cfg.APIVersion)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &LookupError{Code: ErrTransport, Entity: query, Cause: fmt.Errorf("execute request: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &LookupError{Code: ErrBadStatus, Entity: query, Status: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &LookupError{Code: ErrTransport, Entity: query, Status: resp.StatusCode, Cause: fmt.Errorf("read response: %w", err)}
	}

	candidates, err := parseDestinationEntities(body)
	if err != nil {
		return nil, &LookupError{Code: ErrDecode, Entity: query, Status: resp.StatusCode, Cause: err}
	}
	return rank(candidates, c.cfg.TopN), nil
}

// parseDestinationEntities reads destinationEntities[].{score,theCode}. A missing
// or empty array yields no candidates.
func parseDestinationEntities(body []byte) ([]Candidate, error) {
	if !gjson.ValidBytes(body) {
		return nil, errors.New("response is not valid JSON")
	}
	entities := gjson.GetBytes(body, "destinationEntities")
	if !entities.Exists() || entities.Type == gjson.Null {
		return []Candidate{}, nil
	}
	if !entities.IsArray() {
		return nil, fmt.Errorf("destinationEntities is %s, want array", entities.Type)
	}

	candidates := make([]Candidate, 0, len(entities.Array()))
	var itemErr error
	entities.ForEach(func(_, item gjson.Result) bool {
		score := item.Get("score")
		if score.Type != gjson.Number {
			itemErr = fmt.Errorf("destination entity %s has no numeric score", item.Get("id").String())
			return false
		}
		code := item.Get("theCode")
		if !code.Exists() {
			itemErr = fmt.Errorf("destination entity %s has no theCode", item.Get("id").String())
			return false
		}
		candidates = append(candidates, Candidate{Score: score.Float(), Code: code.String()})
		return true
	})
	if itemErr != nil {
		return nil, itemErr
	}
	return candidates, nil
}
