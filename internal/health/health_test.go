package health

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCheckHealthyDaemon(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/version":
			io.WriteString(w, `{"version":"0.6.2"}`)
		case "/api/tags":
			io.WriteString(w, `{"models":[{"name":"a"},{"name":"b"}]}`)
		default:
			w.WriteHeader(404)
		}
	}))
	defer srv.Close()

	s := Check(context.Background(), srv.URL)
	if !s.Reachable {
		t.Fatalf("not reachable: %s", s.Error)
	}
	if s.Version != "0.6.2" {
		t.Errorf("Version = %q", s.Version)
	}
	if s.ModelCount != 2 {
		t.Errorf("ModelCount = %d, want 2", s.ModelCount)
	}
	if s.Latency <= 0 {
		t.Error("Latency not measured")
	}
}

func TestCheckUnreachableDaemon(t *testing.T) {
	s := Check(context.Background(), "http://127.0.0.1:1")
	if s.Reachable {
		t.Fatal("reported reachable for a closed port")
	}
	if !strings.Contains(s.Error, "connection refused") {
		t.Errorf("Error = %q, want friendly refusal", s.Error)
	}
}
