package launch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/scorecard/scorecard/internal/config"
)

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

var testRegistrations = []config.ClientRegistration{
	{IssuerContains: "ehr.example.org", ClientID: "ABC", Scopes: "launch patient/*.read"},
	{IssuerContains: "example.org", ClientID: "DEF", Scopes: "launch"},
}

func conformanceJSON(authorize, token string) string {
	return `{
		"resourceType": "Conformance",
		"rest": [{
			"security": {
				"extension": [{
					"url": "http://fhir-registry.smarthealthit.org/StructureDefinition/oauth-uris",
					"extension": [
						{"url": "authorize", "valueUri": "` + authorize + `"},
						{"url": "token", "valueUri": "` + token + `"}
					]
				}]
			}
		}]
	}`
}

func issuerServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/metadata" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(body))
	}))
}

// ---------------------------------------------------------------------------
// ResolveClient
// ---------------------------------------------------------------------------

func TestResolveClient_FirstMatchWins(t *testing.T) {
	// Both keys are substrings of this issuer; the first entry wins even
	// though the second is also a match.
	id := ResolveClient(testRegistrations, "https://ehr.example.org/fhir")
	if id.ClientID != "ABC" {
		t.Errorf("expected first matching registration ABC, got %q", id.ClientID)
	}
	if id.Scopes != "launch patient/*.read" {
		t.Errorf("unexpected scopes %q", id.Scopes)
	}

	id = ResolveClient(testRegistrations, "https://other.example.org/fhir")
	if id.ClientID != "DEF" {
		t.Errorf("expected DEF, got %q", id.ClientID)
	}
}

func TestResolveClient_NoMatchIsAbsent(t *testing.T) {
	for _, issuer := range []string{"", "https://unknown.hospital.net/fhir"} {
		id := ResolveClient(testRegistrations, issuer)
		if !id.Absent() {
			t.Errorf("issuer %q: expected absent identity, got %+v", issuer, id)
		}
	}
}

// ---------------------------------------------------------------------------
// Discover
// ---------------------------------------------------------------------------

func TestDiscover_ExtractsEndpoints(t *testing.T) {
	srv := issuerServer(t, conformanceJSON("https://auth.example.org/authorize", "https://auth.example.org/token"))
	defer srv.Close()

	n := NewNegotiator(testRegistrations, 5*time.Second)
	endpoints, err := n.Discover(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if endpoints.AuthorizeURL != "https://auth.example.org/authorize" {
		t.Errorf("unexpected authorize URL %s", endpoints.AuthorizeURL)
	}
	if endpoints.TokenURL != "https://auth.example.org/token" {
		t.Errorf("unexpected token URL %s", endpoints.TokenURL)
	}
}

func TestDiscover_CapabilityStatementSpelling(t *testing.T) {
	body := strings.Replace(conformanceJSON("https://a.example/auth", "https://a.example/token"),
		`"Conformance"`, `"CapabilityStatement"`, 1)
	srv := issuerServer(t, body)
	defer srv.Close()

	n := NewNegotiator(nil, 5*time.Second)
	if _, err := n.Discover(context.Background(), srv.URL); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDiscover_Failures(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"no smart extension", `{"resourceType":"Conformance","rest":[{"security":{"extension":[]}}]}`},
		{"not a conformance statement", `{"resourceType":"Patient"}`},
		{"malformed json", `{`},
		{"missing token uri", `{
			"resourceType": "Conformance",
			"rest": [{"security": {"extension": [{
				"url": "http://fhir-registry.smarthealthit.org/StructureDefinition/oauth-uris",
				"extension": [{"url": "authorize", "valueUri": "https://a.example/auth"}]
			}]}}]
		}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := issuerServer(t, tt.body)
			defer srv.Close()

			n := NewNegotiator(nil, 5*time.Second)
			_, err := n.Discover(context.Background(), srv.URL)
			if err == nil {
				t.Fatal("expected discovery error")
			}
			var discErr *DiscoveryError
			if !errors.As(err, &discErr) {
				t.Errorf("expected DiscoveryError, got %T", err)
			}
		})
	}
}

func TestDiscover_UnreachableIssuer(t *testing.T) {
	n := NewNegotiator(nil, 500*time.Millisecond)
	_, err := n.Discover(context.Background(), "http://127.0.0.1:1/fhir")
	if err == nil {
		t.Fatal("expected error for unreachable issuer")
	}
	var discErr *DiscoveryError
	if !errors.As(err, &discErr) {
		t.Errorf("expected DiscoveryError, got %T", err)
	}
}

// ---------------------------------------------------------------------------
// AuthorizeURL
// ---------------------------------------------------------------------------

func TestAuthorizeURL_EncodingAndOrder(t *testing.T) {
	got := AuthorizeURL("https://auth.example.org/authorize", AuthorizeRequest{
		ClientID:    "ABC",
		RedirectURI: "https://scorecard.example.org/app",
		Scope:       "launch patient/*.read",
		Launch:      "xyz123",
		State:       "state-1",
		Audience:    "https://ehr.example.org/fhir",
	})

	u, err := url.Parse(got)
	if err != nil {
		t.Fatalf("built URL does not parse: %v", err)
	}
	q := u.Query()
	if q.Get("response_type") != "code" {
		t.Errorf("expected response_type=code, got %q", q.Get("response_type"))
	}
	if q.Get("client_id") != "ABC" {
		t.Errorf("expected client_id=ABC, got %q", q.Get("client_id"))
	}
	if q.Get("scope") != "launch patient/*.read" {
		t.Errorf("scope did not round-trip: %q", q.Get("scope"))
	}
	if q.Get("aud") != "https://ehr.example.org/fhir" {
		t.Errorf("aud did not round-trip: %q", q.Get("aud"))
	}

	// The raw query must carry the scope percent-encoded.
	if !strings.Contains(got, "scope=launch+patient%2F%2A.read") {
		t.Errorf("scope is not percent-encoded in %s", got)
	}

	// Parameter order is fixed for reproducibility.
	wantOrder := []string{"response_type=", "client_id=", "redirect_uri=", "scope=", "launch=", "state=", "aud="}
	last := -1
	for _, param := range wantOrder {
		idx := strings.Index(got, param)
		if idx < 0 {
			t.Fatalf("parameter %q missing from %s", param, got)
		}
		if idx < last {
			t.Errorf("parameter %q out of order in %s", param, got)
		}
		last = idx
	}
}

func TestAuthorizeURL_Reproducible(t *testing.T) {
	req := AuthorizeRequest{ClientID: "ABC", State: "s", Audience: "https://ehr.example.org"}
	if AuthorizeURL("https://a.example/auth", req) != AuthorizeURL("https://a.example/auth", req) {
		t.Error("expected identical URLs for identical requests")
	}
}
