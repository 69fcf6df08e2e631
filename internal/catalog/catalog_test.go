package catalog

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestStaticContext(t *testing.T) {
	s := NewStatic()
	got, err := s.Context(context.Background())
	if err != nil {
		t.Fatalf("static context: %v", err)
	}
	if got.Segment != "equipamentos médicos" {
		t.Fatalf("segment = %q", got.Segment)
	}
	if len(got.Categories) != 3 {
		t.Fatalf("categories = %d, want 3", len(got.Categories))
	}
	if len(got.SDRQuestions) != 6 {
		t.Fatalf("sdr questions = %d, want 6", len(got.SDRQuestions))
	}
}

func TestAPIFetchesAndCaches(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.URL.Path != "/context" {
			http.NotFound(w, r)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("authorization = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"company_name":"ACME Diagnósticos","segment":"diagnóstico laboratorial","categories":[{"id":"analisadores","name":"Analisadores","keywords":["hemograma"]}],"sdr_questions":["Qual a área de interesse?"]}`)
	}))
	defer srv.Close()

	api := NewAPI(srv.URL, "secret", time.Hour)
	ctx := context.Background()

	first, err := api.Context(ctx)
	if err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	if first.CompanyName != "ACME Diagnósticos" {
		t.Fatalf("company = %q", first.CompanyName)
	}
	second, err := api.Context(ctx)
	if err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if second.CompanyName != first.CompanyName {
		t.Fatal("cached context differs")
	}
	if calls != 1 {
		t.Fatalf("server calls = %d, want 1 (cached)", calls)
	}
}

func TestAPIRefetchesAfterTTL(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"company_name":"ACME v%d","segment":"s","categories":[{"id":"c","name":"C"}],"sdr_questions":["q"]}`, calls)
	}))
	defer srv.Close()

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	api := NewAPI(srv.URL, "", time.Hour)
	api.now = func() time.Time { return now }

	ctx := context.Background()
	if _, err := api.Context(ctx); err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	now = now.Add(2 * time.Hour)
	got, err := api.Context(ctx)
	if err != nil {
		t.Fatalf("refetch: %v", err)
	}
	if got.CompanyName != "ACME v2" {
		t.Fatalf("company = %q, want refreshed ACME v2", got.CompanyName)
	}
	if calls != 2 {
		t.Fatalf("server calls = %d, want 2", calls)
	}
}

func TestAPIFallsBackToStaticOnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	api := NewAPI(srv.URL, "", time.Hour)
	got, err := api.Context(context.Background())
	if err != nil {
		t.Fatalf("fallback context: %v", err)
	}
	if got.CompanyName != "uma empresa de equipamentos" {
		t.Fatalf("expected static fallback, got company %q", got.CompanyName)
	}
}

func TestAPIRejectsEmptyContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{}`)
	}))
	defer srv.Close()

	api := NewAPI(srv.URL, "", time.Hour)
	got, err := api.Context(context.Background())
	if err != nil {
		t.Fatalf("fallback context: %v", err)
	}
	if len(got.SDRQuestions) != 6 {
		t.Fatal("expected static fallback for empty payload")
	}
}
