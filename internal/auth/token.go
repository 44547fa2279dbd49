// Package auth obtains bearer tokens for the WHO ICD-11 API.
package auth

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// ClientCredentials are the static OAuth2 client credentials read at startup.
type ClientCredentials struct {
	ClientID      string
	ClientSecret  string
	Scope         string
	GrantType     string
	TokenEndpoint string
}

// TokenProvider issues short-lived bearer tokens. Tokens are never cached: the
// ICD API rejects expired tokens, so every lookup batch asks for a fresh one.
type TokenProvider struct {
	conf       *clientcredentials.Config
	httpClient *http.Client
}

// Options tune the token endpoint transport.
type Options struct {
	Timeout            time.Duration
	InsecureSkipVerify bool
}

// NewTokenProvider creates a TokenProvider for creds.
func NewTokenProvider(creds ClientCredentials, opts Options) *TokenProvider {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}

	params := url.Values{}
	if creds.GrantType != "" {
		params.Set("grant_type", creds.GrantType)
	}

	httpClient := &http.Client{Timeout: opts.Timeout}
	if opts.InsecureSkipVerify {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in via config
		httpClient.Transport = transport
	}

	return &TokenProvider{
		conf: &clientcredentials.Config{
			ClientID:       creds.ClientID,
			ClientSecret:   creds.ClientSecret,
			TokenURL:       creds.TokenEndpoint,
			Scopes:         strings.Fields(creds.Scope),
			EndpointParams: params,
			AuthStyle:      oauth2.AuthStyleInParams,
		},
		httpClient: httpClient,
	}
}

// Token performs a single token request. Any failure is an *AuthError.
func (p *TokenProvider) Token(ctx context.Context) (string, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)

	tok, err := p.conf.Token(ctx)
	if err != nil {
		return "", &AuthError{
			Endpoint: p.conf.TokenURL,
			Message:  "unable to generate bearer token",
			Cause:    err,
		}
	}
	if tok.AccessToken == "" {
		return "", &AuthError{Endpoint: p.conf.TokenURL, Message: "token response has no access_token"}
	}
	return tok.AccessToken, nil
}

// AuthError is returned when a bearer token cannot be obtained. It aborts the
// code lookup phase of the request that triggered it.
type AuthError struct {
	Endpoint string
	Message  string
	Cause    error
}

func (e *AuthError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("auth %s: %s: %v", e.Endpoint, e.Message, e.Cause)
	}
	return fmt.Sprintf("auth %s: %s", e.Endpoint, e.Message)
}

func (e *AuthError) Unwrap() error {
	return e.Cause
}
