package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestEmbedText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req embedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		if req.Text != "a red barn" {
			t.Errorf("text = %q, want the query text", req.Text)
		}
		json.NewEncoder(w).Encode(embedResponse{Embedding: []float32{0.5, 0.25, -1}})
	}))
	defer server.Close()

	embedder := NewHTTPTextEmbedder(server.URL, 3, time.Second)
	vec, err := embedder.EmbedText(context.Background(), "a red barn")
	if err != nil {
		t.Fatalf("EmbedText failed: %v", err)
	}
	if len(vec) != 3 || vec[0] != 0.5 || vec[2] != -1 {
		t.Errorf("got vector %v", vec)
	}
}

func TestEmbedTextErrors(t *testing.T) {
	t.Run("wrong dimension", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			json.NewEncoder(w).Encode(embedResponse{Embedding: []float32{1, 2}})
		}))
		defer server.Close()

		if _, err := NewHTTPTextEmbedder(server.URL, 3, time.Second).EmbedText(context.Background(), "x"); err == nil {
			t.Error("dimension mismatch should be rejected")
		}
	})

	t.Run("service failure", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "model not loaded", http.StatusServiceUnavailable)
		}))
		defer server.Close()

		if _, err := NewHTTPTextEmbedder(server.URL, 3, time.Second).EmbedText(context.Background(), "x"); err == nil {
			t.Error("non-200 response should be an error")
		}
	})

	t.Run("unconfigured endpoint", func(t *testing.T) {
		if _, err := NewHTTPTextEmbedder("", 3, time.Second).EmbedText(context.Background(), "x"); err == nil {
			t.Error("empty endpoint should be an error")
		}
	})
}
