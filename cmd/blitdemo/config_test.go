package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gogpu/blit"
	"github.com/gogpu/blit/conn"
	"github.com/gogpu/blit/trace"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "blitdemo.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
width = 320
format = "r5g6b5"

[engine]
features = ["pe20"]
max_rects = 16

[trace]
output = "trace.bin"
mode = "binary"
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Width != 320 || cfg.Height != 480 {
		t.Errorf("size = %dx%d, want 320x480", cfg.Width, cfg.Height)
	}
	if !cfg.Engine.Accelerate || cfg.Engine.MaxRects != 16 || cfg.Engine.StreamWords != 32*1024 {
		t.Errorf("engine = %+v", cfg.Engine)
	}
	r, err := cfg.Validate()
	if err != nil {
		t.Fatal(err)
	}
	if r.format != blit.R5G6B5 || r.features != conn.FeaturePE20 || r.traceMode != trace.Binary {
		t.Errorf("resolved = %+v", r)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"unknown key", "colour = 1\n", "colour"},
		{"bad type", "width = \"wide\"\n", "blitdemo.toml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.body))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want mention of %q", err, tt.want)
			}
		})
	}
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("missing file loaded")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"zero width", func(c *Config) { c.Width = 0 }},
		{"format", func(c *Config) { c.Format = "rgb99" }},
		{"feature", func(c *Config) { c.Engine.Features = []string{"warp"} }},
		{"trace mode", func(c *Config) { c.Trace.Mode = "json" }},
		{"scale", func(c *Config) { c.Preview.Scale = 2 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			if _, err := cfg.Validate(); err == nil {
				t.Error("Validate accepted an invalid configuration")
			}
		})
	}
	if _, err := DefaultConfig().Validate(); err != nil {
		t.Errorf("default configuration invalid: %v", err)
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	data, err := DefaultConfig().Encode()
	if err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfig(writeConfig(t, string(data)))
	if err != nil {
		t.Fatalf("reloading encoded config: %v", err)
	}
	if cfg.Output != "blitdemo.png" || len(cfg.Engine.Features) != 3 {
		t.Errorf("reloaded = %+v", cfg)
	}
}

func TestRunScene(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Width, cfg.Height = 96, 64
	cfg.Output = filepath.Join(dir, "out.png")
	cfg.Preview.Output = filepath.Join(dir, "preview.png")
	cfg.Trace.Output = filepath.Join(dir, "trace.txt")

	sum, err := run(cfg)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	for _, f := range []string{cfg.Output, cfg.Preview.Output, cfg.Trace.Output} {
		if st, err := os.Stat(f); err != nil || st.Size() == 0 {
			t.Errorf("%s not written: %v", f, err)
		}
	}
	if sum.Submits == 0 || sum.Stats.Accelerated == 0 || sum.Stats.Fallbacks == 0 {
		t.Errorf("summary = %+v", sum)
	}
	text, err := os.ReadFile(cfg.Trace.Output)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(text), "DRAW_2D") {
		t.Error("text trace lacks draw commands")
	}
}

func TestRunSceneSoftwareOnly(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Width, cfg.Height = 48, 48
	cfg.Output = filepath.Join(t.TempDir(), "out.png")
	cfg.Engine.Accelerate = false
	sum, err := run(cfg)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if sum.Stats.Accelerated != 0 || sum.Stats.Fallbacks == 0 {
		t.Errorf("summary = %+v, want everything in software", sum)
	}
}
