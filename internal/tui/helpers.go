package tui

import (
	"fmt"
	"strings"
	"time"
)

// humanBytes renders a byte count the way the daemon's own CLI does:
// two significant decimals, binary units.
func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}

// progressBar renders a fixed-width bar like [█████░░░░░] for pct 0–100.
func progressBar(pct, width int) string {
	if width < 2 {
		width = 10
	}
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	filled := pct * width / 100
	return ProgressDoneStyle.Render(strings.Repeat("█", filled)) +
		ProgressRestStyle.Render(strings.Repeat("░", width-filled))
}

// fmtExpiry renders a countdown like "4m32s", or "never" when the daemon
// keeps the model resident.
func fmtExpiry(d *time.Duration) string {
	if d == nil {
		return "never"
	}
	s := int(d.Seconds())
	if s <= 0 {
		return "expired"
	}
	if s < 60 {
		return fmt.Sprintf("%ds", s)
	}
	return fmt.Sprintf("%dm%02ds", s/60, s%60)
}

func truncate(s string, n int) string {
	// Slice on runes so a multibyte character is never split mid-sequence.
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
