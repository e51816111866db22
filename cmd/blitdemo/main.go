// Command blitdemo renders a test scene through the emulated 2D engine and
// writes it as a PNG.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"image"
	"image/png"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"

	xdraw "golang.org/x/image/draw"

	"github.com/gogpu/blit"
	"github.com/gogpu/blit/conn"
	"github.com/gogpu/blit/emulator"
	"github.com/gogpu/blit/internal/stream"
	"github.com/gogpu/blit/trace"
)

func main() {
	var (
		configPath = flag.String("config", "", "TOML configuration file")
		width      = flag.Int("width", 0, "image width")
		height     = flag.Int("height", 0, "image height")
		pf         = flag.String("format", "", "pixel format, such as a8r8g8b8 or r5g6b5")
		output     = flag.String("output", "", "output file")
		preview    = flag.String("preview", "", "scaled preview output file")
		traceOut   = flag.String("trace", "", "command stream trace file")
		traceMode  = flag.String("trace-mode", "", "trace format: text or binary")
		disasm     = flag.String("disasm", "", "disassemble a binary trace file and exit")
		noAccel    = flag.Bool("no-accel", false, "draw everything in software")
		features   = flag.String("features", "", "comma-separated engine features (pe20, a8-target, tiling)")
		dump       = flag.Bool("dump-config", false, "print the effective configuration and exit")
		verbose    = flag.Bool("v", false, "log accelerator activity")
	)
	flag.Parse()

	if *disasm != "" {
		if err := disassemble(os.Stdout, *disasm); err != nil {
			log.Fatalf("Failed to disassemble: %v", err)
		}
		return
	}

	cfg := DefaultConfig()
	if *configPath != "" {
		var err error
		if cfg, err = LoadConfig(*configPath); err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "width":
			cfg.Width = *width
		case "height":
			cfg.Height = *height
		case "format":
			cfg.Format = *pf
		case "output":
			cfg.Output = *output
		case "preview":
			cfg.Preview.Output = *preview
		case "trace":
			cfg.Trace.Output = *traceOut
		case "trace-mode":
			cfg.Trace.Mode = *traceMode
		case "no-accel":
			cfg.Engine.Accelerate = !*noAccel
		case "features":
			cfg.Engine.Features = splitList(*features)
		case "v":
			cfg.Verbose = *verbose
		}
	})

	if *dump {
		data, err := cfg.Encode()
		if err != nil {
			log.Fatalf("Failed to encode config: %v", err)
		}
		os.Stdout.Write(data)
		return
	}

	sum, err := run(cfg)
	if err != nil {
		log.Fatalf("Failed to render: %v", err)
	}
	log.Printf("Demo saved to %s (%dx%d %s): %d submits, %d accelerated, %d fallbacks\n",
		cfg.Output, cfg.Width, cfg.Height, cfg.Format, sum.Submits, sum.Stats.Accelerated, sum.Stats.Fallbacks)
	for reason, n := range sum.Stats.Reasons {
		log.Printf("  fallback %q x%d\n", reason, n)
	}
}

// summary reports what a run did.
type summary struct {
	Submits uint64
	Engine  emulator.Stats
	Stats   blit.Stats
}

func run(cfg Config) (summary, error) {
	var sum summary
	res, err := cfg.Validate()
	if err != nil {
		return sum, err
	}
	if cfg.Verbose {
		l := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
		blit.SetLogger(l)
		emulator.SetLogger(l)
		defer blit.SetLogger(nil)
		defer emulator.SetLogger(nil)
	}

	c, err := conn.Open("emulator", conn.Options{Features: res.features})
	if err != nil {
		return sum, err
	}
	defer c.Close()
	ec, _ := c.(*emulator.Conn)

	var tc *trace.Conn
	upstream := c
	if cfg.Trace.Output != "" {
		f, err := os.Create(cfg.Trace.Output)
		if err != nil {
			return sum, err
		}
		defer f.Close()
		tc = trace.New(c, f, res.traceMode)
		upstream = tc
	}

	opts := []blit.Option{
		blit.WithAcceleration(cfg.Engine.Accelerate),
		blit.WithFeatures(res.features),
	}
	if cfg.Engine.StreamWords > 0 {
		opts = append(opts, blit.WithStreamWords(cfg.Engine.StreamWords))
	}
	if cfg.Engine.MaxRects > 0 {
		opts = append(opts, blit.WithMaxRects(cfg.Engine.MaxRects))
	}
	a, err := blit.New(upstream, opts...)
	if err != nil {
		return sum, err
	}
	defer a.Close()

	dst, err := a.CreatePixmap(uint16(cfg.Width), uint16(cfg.Height), res.format, blit.UsageDefault)
	if err != nil {
		return sum, err
	}
	defer dst.Destroy()

	s := &scene{a: a, r: blit.NewRenderer(a), pf: res.format, dst: dst, w: cfg.Width, h: cfg.Height}
	if err := s.draw(); err != nil {
		return sum, err
	}
	if err := a.Commit(); err != nil {
		return sum, err
	}
	if tc != nil && tc.Err() != nil {
		return sum, fmt.Errorf("trace: %w", tc.Err())
	}

	img, err := dst.Image()
	if err != nil {
		return sum, err
	}
	if err := writePNG(cfg.Output, img); err != nil {
		return sum, err
	}
	if cfg.Preview.Output != "" {
		if err := writePNG(cfg.Preview.Output, scaled(img, cfg.Preview.Scale)); err != nil {
			return sum, err
		}
	}

	sum.Submits = a.Submits()
	sum.Stats = s.r.Stats()
	if ec != nil {
		sum.Engine = ec.Stats()
	}
	return sum, nil
}

// scaled returns img reduced by factor with nearest-neighbour sampling.
func scaled(img image.Image, factor float64) *image.RGBA {
	b := img.Bounds()
	w := max(1, int(float64(b.Dx())*factor))
	h := max(1, int(float64(b.Dy())*factor))
	out := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.NearestNeighbor.Scale(out, out.Bounds(), img, b, xdraw.Src, nil)
	return out
}

func writePNG(path string, img image.Image) error {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

// disassemble prints every stream of a binary trace.
func disassemble(w io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	streams, err := trace.ReadAll(f)
	if err != nil {
		return err
	}
	for i, words := range streams {
		fmt.Fprintf(w, "# submission %d: %d words\n", i, len(words))
		if err := stream.Disassemble(w, words); err != nil {
			return err
		}
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
