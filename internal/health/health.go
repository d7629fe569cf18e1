package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

type Status struct {
	Endpoint   string
	Reachable  bool
	Version    string
	ModelCount int
	Error      string
	Latency    time.Duration
}

// Check verifies that the model daemon at endpoint is reachable and
// responding. It hits /api/version for liveness and /api/tags for a model
// count; a daemon that answers version but not tags is still reported
// reachable.
func Check(ctx context.Context, endpoint string) Status {
	s := Status{Endpoint: endpoint}
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	base := strings.TrimRight(endpoint, "/")

	req, err := http.NewRequestWithContext(ctx, "GET", base+"/api/version", nil)
	if err != nil {
		s.Error = err.Error()
		return s
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		s.Error = fmt.Sprintf("cannot reach %s: %s", endpoint, friendlyError(err))
		s.Latency = time.Since(start)
		return s
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		s.Error = fmt.Sprintf("daemon returned HTTP %d", resp.StatusCode)
		s.Latency = time.Since(start)
		return s
	}

	var ver struct {
		Version string `json:"version"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&ver); err == nil {
		s.Version = ver.Version
	}
	s.Reachable = true

	if req, err = http.NewRequestWithContext(ctx, "GET", base+"/api/tags", nil); err == nil {
		if tagResp, err := http.DefaultClient.Do(req); err == nil {
			defer tagResp.Body.Close()
			var result struct {
				Models []struct {
					Name string `json:"name"`
				} `json:"models"`
			}
			if json.NewDecoder(tagResp.Body).Decode(&result) == nil {
				s.ModelCount = len(result.Models)
			}
		}
	}

	s.Latency = time.Since(start)
	return s
}

func friendlyError(err error) string {
	msg := err.Error()
	if strings.Contains(msg, "connection refused") {
		return "connection refused (is the daemon running?)"
	}
	if strings.Contains(msg, "no such host") {
		return "host not found (check the endpoint URL)"
	}
	if strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline exceeded") {
		return "connection timed out (daemon may be starting up)"
	}
	return msg
}
