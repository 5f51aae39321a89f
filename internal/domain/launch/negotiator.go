// Package launch implements the EHR side of a SMART-on-FHIR app launch:
// resolving the issuer to a registered OAuth2 client, discovering the
// issuer's authorization endpoints, and redirecting the browser to the
// authorization server with a fresh anti-forgery state.
package launch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/scorecard/scorecard/internal/config"
	"github.com/scorecard/scorecard/internal/platform/fhir"
)

// oauthURIsExtension is the SMART extension on the issuer's conformance
// statement that carries the OAuth2 endpoint URIs.
const oauthURIsExtension = "http://fhir-registry.smarthealthit.org/StructureDefinition/oauth-uris"

// ClientIdentity is the OAuth2 identity this app launches with at a
// given issuer. The zero value means no registration matched; launches
// proceed with it and fail later at the authorization server, matching
// the fail-open resolution contract.
type ClientIdentity struct {
	ClientID string
	Scopes   string
}

// Absent reports whether no registration matched the issuer.
func (id ClientIdentity) Absent() bool {
	return id.ClientID == ""
}

// Endpoints are the authorization server URLs discovered from an issuer.
type Endpoints struct {
	AuthorizeURL string
	TokenURL     string
}

// DiscoveryError means the issuer was unreachable or does not advertise
// SMART OAuth2 endpoints. It is fatal to the launch; there is no
// fallback authorization server to try.
type DiscoveryError struct {
	Issuer string
	Err    error
}

func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("discover oauth endpoints of %s: %v", e.Issuer, e.Err)
}

func (e *DiscoveryError) Unwrap() error {
	return e.Err
}

// ResolveClient finds the client identity for an issuer by substring
// match against the registration list. The first entry whose
// issuer_contains value is a substring of the issuer wins; order is the
// registration file's order, not specificity. An empty issuer or no
// match yields an absent identity, never an error.
func ResolveClient(regs []config.ClientRegistration, issuer string) ClientIdentity {
	if issuer == "" {
		return ClientIdentity{}
	}
	for _, r := range regs {
		if strings.Contains(issuer, r.IssuerContains) {
			return ClientIdentity{ClientID: r.ClientID, Scopes: r.Scopes}
		}
	}
	return ClientIdentity{}
}

// Negotiator discovers authorization endpoints and builds authorization
// redirect URLs for EHR issuers.
type Negotiator struct {
	registrations []config.ClientRegistration
	http          *http.Client
}

func NewNegotiator(regs []config.ClientRegistration, timeout time.Duration) *Negotiator {
	return &Negotiator{
		registrations: regs,
		http:          &http.Client{Timeout: timeout},
	}
}

// ResolveClient resolves the issuer against the negotiator's
// registration list.
func (n *Negotiator) ResolveClient(issuer string) ClientIdentity {
	return ResolveClient(n.registrations, issuer)
}

// Discover fetches the issuer's conformance statement and extracts the
// SMART oauth-uris extension. Both the DSTU2 Conformance and the R4
// CapabilityStatement spellings are accepted.
func (n *Negotiator) Discover(ctx context.Context, issuer string) (Endpoints, error) {
	if issuer == "" {
		return Endpoints{}, &DiscoveryError{Issuer: issuer, Err: fmt.Errorf("no issuer given")}
	}

	u := strings.TrimSuffix(issuer, "/") + "/metadata"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Endpoints{}, &DiscoveryError{Issuer: issuer, Err: err}
	}
	req.Header.Set("Accept", fhir.ClientAccept)

	resp, err := n.http.Do(req)
	if err != nil {
		return Endpoints{}, &DiscoveryError{Issuer: issuer, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Endpoints{}, &DiscoveryError{Issuer: issuer, Err: fmt.Errorf("metadata returned status %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Endpoints{}, &DiscoveryError{Issuer: issuer, Err: err}
	}

	endpoints, err := parseOAuthURIs(body)
	if err != nil {
		return Endpoints{}, &DiscoveryError{Issuer: issuer, Err: err}
	}
	return endpoints, nil
}

type conformanceExtension struct {
	URL       string                 `json:"url"`
	ValueURI  string                 `json:"valueUri"`
	Extension []conformanceExtension `json:"extension"`
}

type conformanceStatement struct {
	ResourceType string `json:"resourceType"`
	Rest         []struct {
		Security struct {
			Extension []conformanceExtension `json:"extension"`
		} `json:"security"`
	} `json:"rest"`
}

func parseOAuthURIs(body []byte) (Endpoints, error) {
	var stmt conformanceStatement
	if err := json.Unmarshal(body, &stmt); err != nil {
		return Endpoints{}, fmt.Errorf("malformed conformance statement: %w", err)
	}
	if stmt.ResourceType != "Conformance" && stmt.ResourceType != "CapabilityStatement" {
		return Endpoints{}, fmt.Errorf("expected a conformance statement, got %q", stmt.ResourceType)
	}

	for _, rest := range stmt.Rest {
		for _, ext := range rest.Security.Extension {
			if ext.URL != oauthURIsExtension {
				continue
			}
			var endpoints Endpoints
			for _, nested := range ext.Extension {
				switch nested.URL {
				case "authorize":
					endpoints.AuthorizeURL = nested.ValueURI
				case "token":
					endpoints.TokenURL = nested.ValueURI
				}
			}
			if endpoints.AuthorizeURL == "" || endpoints.TokenURL == "" {
				return Endpoints{}, fmt.Errorf("oauth-uris extension is missing authorize or token URI")
			}
			return endpoints, nil
		}
	}
	return Endpoints{}, fmt.Errorf("conformance statement has no oauth-uris extension")
}

// AuthorizeRequest are the OAuth2 parameters of one authorization
// redirect.
type AuthorizeRequest struct {
	ClientID    string
	RedirectURI string
	Scope       string
	Launch      string
	State       string
	Audience    string
}

// AuthorizeURL builds the authorization redirect URL. Each parameter is
// percent-encoded individually and emitted in a fixed order so the URL
// is reproducible for a given request.
func AuthorizeURL(authorizeEndpoint string, req AuthorizeRequest) string {
	params := []struct {
		key, value string
	}{
		{"response_type", "code"},
		{"client_id", req.ClientID},
		{"redirect_uri", req.RedirectURI},
		{"scope", req.Scope},
		{"launch", req.Launch},
		{"state", req.State},
		{"aud", req.Audience},
	}

	var b strings.Builder
	b.WriteString(authorizeEndpoint)
	for i, p := range params {
		if i == 0 {
			b.WriteByte('?')
		} else {
			b.WriteByte('&')
		}
		b.WriteString(p.key)
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(p.value))
	}
	return b.String()
}
