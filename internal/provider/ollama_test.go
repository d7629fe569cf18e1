package provider

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func collectChunks(t *testing.T, ch <-chan StreamChunk) []StreamChunk {
	t.Helper()
	var chunks []StreamChunk
	timeout := time.After(2 * time.Second)
	for {
		select {
		case chunk, ok := <-ch:
			if !ok {
				return chunks
			}
			chunks = append(chunks, chunk)
			if chunk.Done {
				return chunks
			}
		case <-timeout:
			t.Fatal("timed out draining stream")
		}
	}
}

func TestOllamaChatStreamsDeltas(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req struct {
			Model    string `json:"model"`
			Stream   bool   `json:"stream"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Model != "llama3.2" || !req.Stream || len(req.Messages) != 1 {
			t.Errorf("request = %+v", req)
		}

		io.WriteString(w, `{"message":{"content":"Hello"},"done":false}`+"\n")
		io.WriteString(w, `{"message":{"content":" world"},"done":false}`+"\n")
		io.WriteString(w, `{"message":{"content":""},"done":true}`+"\n")
	}))
	defer srv.Close()

	p := NewOllama(srv.URL)
	ch, err := p.Chat(context.Background(), "llama3.2", []Message{{Role: RoleUser, Content: "hi"}})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}

	chunks := collectChunks(t, ch)
	var text strings.Builder
	for _, c := range chunks {
		text.WriteString(c.Delta)
	}
	if text.String() != "Hello world" {
		t.Errorf("assembled text = %q", text.String())
	}
	if !chunks[len(chunks)-1].Done {
		t.Error("stream did not end with a done chunk")
	}
}

func TestOllamaChatSurfacesThinking(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"message":{"content":"","thinking":"pondering..."},"done":false}`+"\n")
		io.WriteString(w, `{"message":{"content":"42"},"done":true}`+"\n")
	}))
	defer srv.Close()

	p := NewOllama(srv.URL)
	ch, err := p.Chat(context.Background(), "deepseek-r1", []Message{{Role: RoleUser, Content: "?"}})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}

	chunks := collectChunks(t, ch)
	if chunks[0].Thinking != "pondering..." {
		t.Errorf("chunks[0] = %+v, want thinking first", chunks[0])
	}
}

func TestOllamaChatMidStreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"message":{"content":"partial"},"done":false}`+"\n")
		io.WriteString(w, `{"error":"model runner crashed"}`+"\n")
	}))
	defer srv.Close()

	p := NewOllama(srv.URL)
	ch, err := p.Chat(context.Background(), "llama3.2", []Message{{Role: RoleUser, Content: "hi"}})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}

	chunks := collectChunks(t, ch)
	last := chunks[len(chunks)-1]
	if last.Error == nil || !strings.Contains(last.Error.Error(), "model runner crashed") {
		t.Errorf("last chunk = %+v, want the daemon error", last)
	}
}

func TestOllamaChatMissingModelSuggestion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(404)
		io.WriteString(w, `{"error":"model \"llama9\" not found"}`)
	}))
	defer srv.Close()

	p := NewOllama(srv.URL)
	_, err := p.Chat(context.Background(), "llama9", []Message{{Role: RoleUser, Content: "hi"}})
	if err == nil {
		t.Fatal("expected an error for a missing model")
	}
	if !strings.Contains(err.Error(), "modeldeck pull llama9") {
		t.Errorf("error = %q, want a pull suggestion", err)
	}
}

func TestRetryGivesUpOnMissingModel(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(404)
		io.WriteString(w, `{"error":"model not found"}`)
	}))
	defer srv.Close()

	p := WithRetry(NewOllama(srv.URL), 3)
	_, err := p.Chat(context.Background(), "nope", []Message{{Role: RoleUser, Content: "hi"}})
	if err == nil {
		t.Fatal("expected an error")
	}
	if calls != 1 {
		t.Errorf("made %d attempts, want 1 (a missing model is not retryable)", calls)
	}
}

func TestRetryRecoversFromServerError(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(500)
			io.WriteString(w, "runner busy")
			return
		}
		io.WriteString(w, `{"message":{"content":"ok"},"done":true}`+"\n")
	}))
	defer srv.Close()

	p := WithRetry(NewOllama(srv.URL), 3)
	ch, err := p.Chat(context.Background(), "llama3.2", []Message{{Role: RoleUser, Content: "hi"}})
	if err != nil {
		t.Fatalf("Chat after retry: %v", err)
	}
	chunks := collectChunks(t, ch)
	if chunks[0].Delta != "ok" {
		t.Errorf("chunks = %+v", chunks)
	}
	if calls != 2 {
		t.Errorf("made %d calls, want 2", calls)
	}
}
