package blit

import (
	"github.com/gogpu/blit/conn"
	"github.com/gogpu/blit/internal/encode"
	"github.com/gogpu/blit/internal/stream"
)

// Option configures an Accelerator during creation.
//
// Example:
//
//	// Small command buffer, at most 64 rectangles per draw
//	a, err := blit.New(c, blit.WithStreamWords(4096), blit.WithMaxRects(64))
type Option func(*options)

// options holds the Accelerator configuration.
type options struct {
	streamWords int
	maxRects    int
	accelerate  bool
	features    conn.Feature
}

// defaultOptions returns the default accelerator options.
func defaultOptions() options {
	return options{
		streamWords: stream.DefaultWords,
		maxRects:    encode.MaxRects,
		accelerate:  true,
		features:    conn.FeatureAll,
	}
}

// WithStreamWords sets the command buffer capacity in 32-bit words. Values
// below stream.MinWords are raised to it.
func WithStreamWords(n int) Option {
	return func(o *options) {
		o.streamWords = max(n, stream.MinWords)
	}
}

// WithMaxRects sets how many rectangles one draw command carries. Values
// outside 1..255 are clamped.
func WithMaxRects(n int) Option {
	return func(o *options) {
		o.maxRects = min(max(n, 1), encode.MaxRects)
	}
}

// WithAcceleration enables or disables the engine. A disabled accelerator
// still creates pixmaps but every primitive reports a fallback.
func WithAcceleration(enable bool) Option {
	return func(o *options) {
		o.accelerate = enable
	}
}

// WithFeatures restricts the engine features the accelerator uses to mask.
// Features the connection lacks are never enabled.
func WithFeatures(mask conn.Feature) Option {
	return func(o *options) {
		o.features = mask
	}
}
