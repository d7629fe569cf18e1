package tui

import (
	"testing"
	"time"
	"unicode/utf8"
)

func TestHumanBytes(t *testing.T) {
	cases := []struct {
		in   int64
		want string
	}{
		{512, "512 B"},
		{2048, "2.0 KB"},
		{2019393189, "1.9 GB"},
	}
	for _, c := range cases {
		if got := humanBytes(c.in); got != c.want {
			t.Errorf("humanBytes(%d) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestTruncateKeepsRunesWhole(t *testing.T) {
	if got := truncate("llama3.2", 20); got != "llama3.2" {
		t.Errorf("short string changed: %q", got)
	}
	if got := truncate("a-very-long-model-name", 10); got != "a-very-lon..." {
		t.Errorf("truncate = %q", got)
	}

	// Cutting inside a multibyte sequence must not emit a broken rune.
	got := truncate("modèle-é-ü-日本語-extra", 12)
	if !utf8.ValidString(got) {
		t.Errorf("truncate produced invalid UTF-8: %q", got)
	}
	if got != "modèle-é-ü-日..." {
		t.Errorf("truncate = %q", got)
	}
}

func TestFmtExpiry(t *testing.T) {
	if got := fmtExpiry(nil); got != "never" {
		t.Errorf("nil expiry = %q", got)
	}
	past := -time.Second
	if got := fmtExpiry(&past); got != "expired" {
		t.Errorf("past expiry = %q", got)
	}
	d := 4*time.Minute + 32*time.Second
	if got := fmtExpiry(&d); got != "4m32s" {
		t.Errorf("expiry = %q", got)
	}
}
