package record

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func tokenServer(t *testing.T, status int, body string) (*httptest.Server, *http.Request) {
	t.Helper()
	var captured http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		captured = *r
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	return srv, &captured
}

func TestExchange_PostsFormGrant(t *testing.T) {
	srv, captured := tokenServer(t, http.StatusOK,
		`{"access_token":"tok-1","token_type":"Bearer","expires_in":3600,"scope":"launch","patient":"pat-1"}`)
	defer srv.Close()

	client := NewTokenClient(5 * time.Second)
	token, err := client.Exchange(context.Background(), srv.URL, "code-1", "https://scorecard.example.org/app", "ABC")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if captured.Method != http.MethodPost {
		t.Errorf("expected POST, got %s", captured.Method)
	}
	if ct := captured.Header.Get("Content-Type"); ct != "application/x-www-form-urlencoded" {
		t.Errorf("unexpected content type %q", ct)
	}
	for key, want := range map[string]string{
		"grant_type":   "authorization_code",
		"code":         "code-1",
		"redirect_uri": "https://scorecard.example.org/app",
		"client_id":    "ABC",
	} {
		if got := captured.PostForm.Get(key); got != want {
			t.Errorf("form %s = %q, want %q", key, got, want)
		}
	}

	if token.AccessToken != "tok-1" || token.Patient != "pat-1" {
		t.Errorf("unexpected token %+v", token)
	}
}

func TestExchange_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"error status", http.StatusBadRequest, `{"error":"invalid_grant"}`},
		{"malformed body", http.StatusOK, `{`},
		{"missing access_token", http.StatusOK, `{"patient":"pat-1"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := tokenServer(t, tt.status, tt.body)
			defer srv.Close()

			client := NewTokenClient(5 * time.Second)
			_, err := client.Exchange(context.Background(), srv.URL, "code-1", "https://a.example/app", "ABC")
			if err == nil {
				t.Fatal("expected an error")
			}
			var exchErr *UpstreamExchangeError
			if !errors.As(err, &exchErr) {
				t.Errorf("expected UpstreamExchangeError, got %T", err)
			}
		})
	}
}

func TestExchange_UnreachableEndpoint(t *testing.T) {
	client := NewTokenClient(500 * time.Millisecond)
	_, err := client.Exchange(context.Background(), "http://127.0.0.1:1/token", "c", "r", "id")
	var exchErr *UpstreamExchangeError
	if !errors.As(err, &exchErr) {
		t.Errorf("expected UpstreamExchangeError, got %v", err)
	}
}

func unsignedJWT(t *testing.T, claims map[string]any) string {
	t.Helper()
	enc := func(v any) string {
		b, err := json.Marshal(v)
		if err != nil {
			t.Fatal(err)
		}
		return base64.RawURLEncoding.EncodeToString(b)
	}
	header := map[string]string{"alg": "none", "typ": "JWT"}
	return enc(header) + "." + enc(claims) + "."
}

func TestIDTokenClaims_SortedRows(t *testing.T) {
	token := unsignedJWT(t, map[string]any{
		"sub": "patient-1",
		"iss": "https://ehr.example.org",
	})

	rows, err := IDTokenClaims(token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 claims, got %d", len(rows))
	}
	if rows[0][0] != "iss" || rows[1][0] != "sub" {
		t.Errorf("claims not sorted by key: %v", rows)
	}
	if rows[1][1] != "patient-1" {
		t.Errorf("unexpected sub claim %q", rows[1][1])
	}
}

func TestIDTokenClaims_Garbage(t *testing.T) {
	if _, err := IDTokenClaims("not-a-jwt"); err == nil {
		t.Error("expected an error for a malformed token")
	}
}
