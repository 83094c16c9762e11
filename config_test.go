package dreamcast

import (
	"strings"
	"testing"
	"time"
)

func TestParseConfigSectionsAndTypes(t *testing.T) {
	cfg := ParseConfig(strings.NewReader(`
# comment
; also a comment
toplevel=1

[video]
scale=3
vsync=true
frame_budget=16ms
`), nil)

	if v, ok := cfg.Get("", "toplevel"); !ok || v != "1" {
		t.Fatalf("Get(\"\", \"toplevel\") = %q, %v", v, ok)
	}
	if n := cfg.Int("video", "scale", -1); n != 3 {
		t.Fatalf("Int(scale) = %d, want 3", n)
	}
	if b := cfg.Bool("video", "vsync", false); !b {
		t.Fatalf("Bool(vsync) = false, want true")
	}
	if d := cfg.Duration("video", "frame_budget", 0); d != 16*time.Millisecond {
		t.Fatalf("Duration(frame_budget) = %v, want 16ms", d)
	}
}

func TestParseConfigMissingKeysReturnDefaults(t *testing.T) {
	cfg := ParseConfig(strings.NewReader(""), nil)
	if n := cfg.Int("video", "scale", 7); n != 7 {
		t.Fatalf("Int default = %d, want 7", n)
	}
	if _, ok := cfg.Get("video", "scale"); ok {
		t.Fatalf("Get on an empty config should report ok=false")
	}
}

func TestParseConfigSkipsMalformedLines(t *testing.T) {
	cfg := ParseConfig(strings.NewReader("[video]\nno-equals-sign\nscale=3\n"), nil)
	if n := cfg.Int("video", "scale", -1); n != 3 {
		t.Fatalf("a malformed line should not prevent later valid ones; scale = %d", n)
	}
}
