// Package record drives the /app half of the SMART launch: exchanging
// the authorization code for an access token, assembling the patient
// record from the FHIR server, scoring it, and rendering the result.
package record

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenResponse is the OAuth2 token endpoint response. SMART servers
// add the patient id of the launch context alongside the standard
// fields.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type,omitempty"`
	ExpiresIn   int    `json:"expires_in,omitempty"`
	Scope       string `json:"scope,omitempty"`
	Patient     string `json:"patient,omitempty"`
	IDToken     string `json:"id_token,omitempty"`
}

// TokenClient exchanges authorization codes at a token endpoint.
type TokenClient struct {
	http *http.Client
}

func NewTokenClient(timeout time.Duration) *TokenClient {
	return &TokenClient{http: &http.Client{Timeout: timeout}}
}

// Exchange posts the authorization-code grant to the token endpoint.
// Any failure, transport or otherwise, is an UpstreamExchangeError.
func (t *TokenClient) Exchange(ctx context.Context, tokenURL, code, redirectURI, clientID string) (*TokenResponse, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", redirectURI)
	form.Set("client_id", clientID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &UpstreamExchangeError{TokenURL: tokenURL, Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := t.http.Do(req)
	if err != nil {
		return nil, &UpstreamExchangeError{TokenURL: tokenURL, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &UpstreamExchangeError{TokenURL: tokenURL, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &UpstreamExchangeError{
			TokenURL: tokenURL,
			Err:      fmt.Errorf("token endpoint returned status %d", resp.StatusCode),
		}
	}

	var token TokenResponse
	if err := json.Unmarshal(body, &token); err != nil {
		return nil, &UpstreamExchangeError{TokenURL: tokenURL, Err: fmt.Errorf("malformed token response: %w", err)}
	}
	if token.AccessToken == "" {
		return nil, &UpstreamExchangeError{TokenURL: tokenURL, Err: fmt.Errorf("token response has no access_token")}
	}
	return &token, nil
}

// IDTokenClaims decodes the id_token claims without verifying the
// signature. The claims are shown as launch diagnostics only and are
// never trusted for authorization decisions.
func IDTokenClaims(idToken string) ([][2]string, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(idToken, claims); err != nil {
		return nil, fmt.Errorf("decode id_token: %w", err)
	}

	keys := make([]string, 0, len(claims))
	for k := range claims {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	rows := make([][2]string, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, [2]string{k, fmt.Sprintf("%v", claims[k])})
	}
	return rows, nil
}
