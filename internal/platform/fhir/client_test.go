package fhir

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"
)

func TestClient_Read(t *testing.T) {
	var gotAuth, gotAccept string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotAccept = r.Header.Get("Accept")
		if r.URL.Path != "/Patient/p1" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"resourceType":"Patient","id":"p1"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok-123", 5*time.Second)
	raw, err := c.Read(context.Background(), "Patient", "p1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ResourceTypeOf(raw) != "Patient" {
		t.Errorf("unexpected resource: %s", raw)
	}
	if gotAuth != "Bearer tok-123" {
		t.Errorf("expected bearer token, got %q", gotAuth)
	}
	if gotAccept != ClientAccept {
		t.Errorf("expected Accept %q, got %q", ClientAccept, gotAccept)
	}
}

func TestClient_Read_WrongType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"resourceType":"OperationOutcome"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok", 5*time.Second)
	if _, err := c.Read(context.Background(), "Patient", "p1"); err == nil {
		t.Fatal("expected error for mismatched resourceType")
	}
}

func TestClient_Search(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/Condition" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("clinicalstatus"); got != "active" {
			t.Errorf("expected clinicalstatus=active, got %q", got)
		}
		w.Write([]byte(`{"resourceType":"Bundle","type":"searchset","entry":[
			{"resource":{"resourceType":"Condition","id":"c1"}},
			{"resource":{"resourceType":"Condition","id":"c2"}}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok", 5*time.Second)
	params := url.Values{}
	params.Set("patient", "p1")
	params.Set("clinicalstatus", "active")

	bundle, err := c.Search(context.Background(), "Condition", params)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(bundle.Resources()) != 2 {
		t.Errorf("expected 2 resources, got %d", len(bundle.Resources()))
	}
}

func TestClient_Search_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok", 5*time.Second)
	if _, err := c.Search(context.Background(), "Condition", nil); err == nil {
		t.Fatal("expected error for non-2xx response")
	}
}

func TestClient_Search_MalformedBundle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"resourceType":"Patient"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok", 5*time.Second)
	if _, err := c.Search(context.Background(), "Condition", nil); err == nil {
		t.Fatal("expected error when search result is not a Bundle")
	}
}
