package debug

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestCategories(t *testing.T) {
	orig := categories
	defer func() { categories = orig }()

	tests := []struct {
		input   string
		enabled []string
		off     []string
	}{
		{input: "", off: []string{"providers", "all"}},
		{input: "providers", enabled: []string{"providers"}, off: []string{"cache"}},
		{input: " Providers ,,CACHE ", enabled: []string{"providers", "cache"}, off: []string{"mcp", "all"}},
		{input: "all", enabled: []string{"providers", "cache", "anything"}},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			categories = parseCategories(tt.input)
			for _, c := range tt.enabled {
				if !Enabled(c) {
					t.Errorf("Enabled(%q) = false", c)
				}
			}
			for _, c := range tt.off {
				if Enabled(c) {
					t.Errorf("Enabled(%q) = true", c)
				}
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"TRACE", LevelTrace},
		{"trace", LevelTrace},
		{"DEBUG", slog.LevelDebug},
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"info", slog.LevelInfo},
		{"", slog.LevelInfo},
		{" warn ", slog.LevelWarn},
		{"WARN", slog.LevelWarn},
		{"WARNING", slog.LevelWarn},
		{"ERROR", slog.LevelError},
		{"unknown", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := ParseLevel(tt.input)
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("short", 10); got != "short" {
		t.Errorf("Truncate short = %q, want %q", got, "short")
	}
	if got := Truncate("this is a long string", 10); got != "this is a ..." {
		t.Errorf("Truncate long = %q, want %q", got, "this is a ...")
	}
}

func TestLogSkipsDisabledCategory(t *testing.T) {
	origCats, origLogger := categories, slog.Default()
	defer func() {
		categories = origCats
		slog.SetDefault(origLogger)
	}()

	var buf bytes.Buffer
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: LevelTrace})))

	categories = parseCategories("cache")
	Log("providers", "hidden")
	Trace("providers", "hidden")
	if buf.Len() != 0 {
		t.Fatalf("disabled category logged: %q", buf.String())
	}

	Log("cache", "cache lookup", "tier", "memory")
	if !strings.Contains(buf.String(), "debug=cache") || !strings.Contains(buf.String(), "tier=memory") {
		t.Errorf("log line = %q", buf.String())
	}
}

func TestInitPrefersEnvironment(t *testing.T) {
	orig := categories
	defer func() { categories = orig }()

	t.Setenv("SLIDEWRIGHT_DEBUG", "cache")
	Init("providers")
	if !Enabled("cache") || Enabled("providers") {
		t.Errorf("categories = %v, want only cache", Categories())
	}

	t.Setenv("SLIDEWRIGHT_DEBUG", "")
	Init("providers, mcp")
	if !Enabled("providers") || !Enabled("mcp") {
		t.Errorf("categories = %v, want providers and mcp", Categories())
	}
}

func TestRawNeedsTraceLevel(t *testing.T) {
	origCats, origOut, origLogger := categories, rawOut, slog.Default()
	defer func() {
		categories, rawOut = origCats, origOut
		slog.SetDefault(origLogger)
	}()

	var buf bytes.Buffer
	rawOut = &buf
	categories = parseCategories("providers")

	slog.SetDefault(slog.New(slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelDebug})))
	Raw("providers", "body at debug")
	if buf.Len() != 0 {
		t.Fatalf("raw output at debug level: %q", buf.String())
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: LevelTrace})))
	Raw("providers", "body at trace")
	Raw("cache", "other category")
	if got := buf.String(); got != "body at trace\n" {
		t.Errorf("raw output = %q", got)
	}
}
