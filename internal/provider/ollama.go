package provider

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// OllamaProvider talks to the daemon's native /api/chat endpoint, which
// streams newline-delimited JSON rather than SSE.
type OllamaProvider struct {
	baseURL string
	client  *http.Client
}

func NewOllama(baseURL string) *OllamaProvider {
	return &OllamaProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{},
	}
}

func (o *OllamaProvider) Name() string { return "ollama" }

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatStreamLine struct {
	Message struct {
		Content  string `json:"content"`
		Thinking string `json:"thinking,omitempty"`
	} `json:"message"`
	Done  bool   `json:"done"`
	Error string `json:"error,omitempty"`
}

func (o *OllamaProvider) Chat(ctx context.Context, model string, msgs []Message) (<-chan StreamChunk, error) {
	reqMsgs := make([]chatMessage, len(msgs))
	for i, m := range msgs {
		reqMsgs[i] = chatMessage{Role: string(m.Role), Content: m.Content}
	}

	payload, err := json.Marshal(chatRequest{Model: model, Messages: reqMsgs, Stream: true})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", o.baseURL+"/api/chat", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cannot connect to daemon at %s: %w", o.baseURL, err)
	}

	if resp.StatusCode != 200 {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("chat failed: %s", parseDaemonError(model, resp.StatusCode, body))
	}

	ch := make(chan StreamChunk, 64)
	go func() {
		defer close(ch)
		defer resp.Body.Close()
		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			var line chatStreamLine
			if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
				continue
			}
			if line.Error != "" {
				ch <- StreamChunk{Error: fmt.Errorf("%s", line.Error), Done: true}
				return
			}
			if line.Message.Thinking != "" {
				ch <- StreamChunk{Thinking: line.Message.Thinking}
			}
			if line.Message.Content != "" {
				ch <- StreamChunk{Delta: line.Message.Content}
			}
			if line.Done {
				ch <- StreamChunk{Done: true}
				return
			}
		}
		if err := scanner.Err(); err != nil {
			ch <- StreamChunk{Error: err, Done: true}
		}
	}()
	return ch, nil
}
