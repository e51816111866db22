package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/gogpu/blit"
	"github.com/gogpu/blit/conn"
	"github.com/gogpu/blit/trace"
)

// Config is the demo configuration. It is read from a TOML file; command
// line flags override it.
type Config struct {
	Width  int    `toml:"width"`
	Height int    `toml:"height"`
	Format string `toml:"format"`
	Output string `toml:"output"`

	Engine  EngineConfig  `toml:"engine"`
	Preview PreviewConfig `toml:"preview"`
	Trace   TraceConfig   `toml:"trace"`

	Verbose bool `toml:"verbose"`
}

// EngineConfig configures the emulated engine and the accelerator.
type EngineConfig struct {
	Accelerate  bool     `toml:"accelerate"`
	Features    []string `toml:"features"`
	StreamWords int      `toml:"stream_words"`
	MaxRects    int      `toml:"max_rects"`
}

// PreviewConfig configures the scaled preview image.
type PreviewConfig struct {
	Output string  `toml:"output"`
	Scale  float64 `toml:"scale"`
}

// TraceConfig configures command stream recording.
type TraceConfig struct {
	Output string `toml:"output"`
	Mode   string `toml:"mode"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() Config {
	return Config{
		Width:  640,
		Height: 480,
		Format: "a8r8g8b8",
		Output: "blitdemo.png",
		Engine: EngineConfig{
			Accelerate:  true,
			Features:    []string{"pe20", "a8-target", "tiling"},
			StreamWords: 32 * 1024,
			MaxRects:    255,
		},
		Preview: PreviewConfig{Scale: 0.25},
		Trace:   TraceConfig{Mode: "text"},
	}
}

// LoadConfig reads a TOML file over the defaults. Unknown keys are errors.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	f, err := os.Open(path)
	if err != nil {
		return cfg, err
	}
	defer f.Close()
	dec := toml.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		var se *toml.StrictMissingError
		if errors.As(err, &se) {
			keys := make([]string, len(se.Errors))
			for i, e := range se.Errors {
				keys[i] = strings.Join(e.Key(), ".")
			}
			return cfg, fmt.Errorf("%s: unknown keys %s", path, strings.Join(keys, ", "))
		}
		var de *toml.DecodeError
		if errors.As(err, &de) {
			row, col := de.Position()
			return cfg, fmt.Errorf("%s:%d:%d: %w", path, row, col, err)
		}
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Encode returns the configuration as TOML.
func (c Config) Encode() ([]byte, error) { return toml.Marshal(c) }

// Validate checks the configuration and resolves its symbolic values.
func (c Config) Validate() (resolved, error) {
	var r resolved
	if c.Width <= 0 || c.Height <= 0 || c.Width > 0x7fff || c.Height > 0x7fff {
		return r, fmt.Errorf("invalid size %dx%d", c.Width, c.Height)
	}
	pf, err := blit.ParseFormat(c.Format)
	if err != nil {
		return r, err
	}
	features, err := conn.ParseFeatures(c.Engine.Features)
	if err != nil {
		return r, err
	}
	mode, err := trace.ParseMode(c.Trace.Mode)
	if err != nil {
		return r, err
	}
	if c.Preview.Scale <= 0 || c.Preview.Scale > 1 {
		return r, fmt.Errorf("preview scale %v outside (0, 1]", c.Preview.Scale)
	}
	return resolved{format: pf, features: features, traceMode: mode}, nil
}

// resolved holds the parsed forms of the symbolic configuration values.
type resolved struct {
	format    blit.PictFormat
	features  conn.Feature
	traceMode trace.Mode
}
