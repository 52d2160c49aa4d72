package memory

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPClientSearch(t *testing.T) {
	var gotPath string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"matches":[
			{"score":0.91,"metadata":{"content":"likes jazz","category":"preference","importance":"medium","date":"2026-08-01"}},
			{"score":0.42,"metadata":{"content":"old note"}}
		]}`))
	}))
	defer srv.Close()

	c := NewHTTPClient("key-1", srv.URL, srv.Client())
	records, err := c.Search(context.Background(), "music", 0, "subj_1")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if gotPath != "/v1/memories/search" {
		t.Fatalf("path = %q, want /v1/memories/search", gotPath)
	}
	if got := gotBody["top_k"]; got != float64(3) {
		t.Fatalf("top_k = %v, want default 3", got)
	}
	if got := gotBody["subject_id"]; got != "subj_1" {
		t.Fatalf("subject_id = %v, want subj_1", got)
	}
	if len(records) != 2 {
		t.Fatalf("len(records) = %d, want 2", len(records))
	}
	if records[0].Content != "likes jazz" || records[0].Score != 0.91 {
		t.Fatalf("records[0] = %+v", records[0])
	}
	if records[0].Category != "preference" || records[0].Date != "2026-08-01" {
		t.Fatalf("records[0] metadata = %+v", records[0])
	}
}

func TestHTTPClientSearchRejectsEmptyQuery(t *testing.T) {
	c := NewHTTPClient("", "http://memory.local", nil)
	if _, err := c.Search(context.Background(), "   ", 3, "subj_1"); err == nil {
		t.Fatalf("expected error for blank query")
	}
}

func TestHTTPClientSave(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/memories" {
			t.Errorf("path = %q, want /v1/memories", r.URL.Path)
		}
		var body struct {
			SubjectID string     `json:"subject_id"`
			Content   string     `json:"content"`
			Metadata  Attributes `json:"metadata"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if body.Metadata.Importance != "high" {
			t.Errorf("importance = %q, want high", body.Metadata.Importance)
		}
		_, _ = w.Write([]byte(`{"id":"mem_abc"}`))
	}))
	defer srv.Close()

	c := NewHTTPClient("key-1", srv.URL, srv.Client())
	id, err := c.Save(context.Background(), "subj_1", "met nurse today", Attributes{
		Category:   "event",
		Importance: "high",
		Date:       "2026-08-28",
	})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if id != "mem_abc" {
		t.Fatalf("id = %q, want mem_abc", id)
	}
}

func TestHTTPClientSaveErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "store unavailable", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewHTTPClient("", srv.URL, srv.Client())
	if _, err := c.Save(context.Background(), "subj_1", "note", Attributes{}); err == nil {
		t.Fatalf("expected error for non-200 response")
	}
}

func TestHTTPClientNotConfigured(t *testing.T) {
	c := NewHTTPClient("", "", nil)
	if c.Configured() {
		t.Fatalf("Configured() = true for empty base url")
	}
	if _, err := c.Search(context.Background(), "q", 3, ""); err == nil {
		t.Fatalf("expected error when unconfigured")
	}
}
