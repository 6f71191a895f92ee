package extract

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestExtractProduct(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/extract" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method: %s", r.Method)
		}

		var req map[string]string
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req["text"] == "" {
			t.Errorf("empty text in request")
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(ProductDraft{
			Name:        "Python Course",
			Price:       "19.99",
			Stock:       100,
			Category:    "Courses",
			Description: "Beginner course",
			ContentRef:  "https://example.com/python-course.pdf",
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	draft, err := c.ExtractProduct(context.Background(), "Python course for 19.99")
	if err != nil {
		t.Fatalf("ExtractProduct error: %v", err)
	}
	if draft.Name != "Python Course" || draft.Price != "19.99" {
		t.Fatalf("unexpected draft: %+v", draft)
	}
}

func TestExtractProductIncompleteData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"description":"no name or price"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	if _, err := c.ExtractProduct(context.Background(), "text"); err == nil {
		t.Fatalf("expected error for incomplete draft")
	}
}

func TestExtractProductServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	if _, err := c.ExtractProduct(context.Background(), "text"); err == nil {
		t.Fatalf("expected error for non-200 status")
	}
}

func TestExtractProductNotConfigured(t *testing.T) {
	var c *Client
	if _, err := c.ExtractProduct(context.Background(), "text"); err == nil {
		t.Fatalf("expected error for nil client")
	}
}
