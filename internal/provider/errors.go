package provider

import (
	"encoding/json"
	"fmt"
	"strings"
)

// parseDaemonError extracts a human-readable error from a daemon response.
func parseDaemonError(model string, statusCode int, body []byte) string {
	var errResp struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &errResp) == nil && errResp.Error != "" {
		if strings.Contains(errResp.Error, "not found") {
			return fmt.Sprintf("%s (try: modeldeck pull %s)", errResp.Error, model)
		}
		return errResp.Error
	}

	switch statusCode {
	case 404:
		return fmt.Sprintf("model %q not found (try: modeldeck pull %s)", model, model)
	case 500:
		return "internal error in the daemon"
	case 502, 503:
		return "daemon temporarily unavailable"
	}

	s := string(body)
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return fmt.Sprintf("HTTP %d: %s", statusCode, s)
}
