// Package blit accelerates X-style 2D drawing on Vivante GC-series 2D
// engines.
//
// # Overview
//
// blit sits between a display server and a GPU connection. The display
// server hands it drawing primitives: span and rectangle fills, point
// plots, area copies, image uploads and Render composites. blit turns them
// into the register command stream of the fixed-function 2D engine, batches
// them, and tracks which side (CPU or GPU) holds the current contents of
// every pixmap so that CPU access always sees finished GPU work.
//
// A primitive the engine cannot perform returns an error matching
// ErrFallback. The caller then performs it in software; the Software type
// implements every primitive on the CPU, and Renderer combines the two.
//
// # Quick Start
//
//	import (
//		"github.com/gogpu/blit"
//		"github.com/gogpu/blit/conn"
//		_ "github.com/gogpu/blit/emulator"
//	)
//
//	c, _ := conn.OpenBest(conn.Options{})
//	acc, _ := blit.New(c)
//	screen, _ := acc.CreatePixmap(640, 480, blit.A8R8G8B8, blit.UsageDefault)
//
//	gc := blit.NewGC()
//	gc.Foreground = 0xff204080
//	r := blit.NewRenderer(acc)
//	r.PolyFillRectSolid(screen, gc, []blit.Rectangle{{X: 10, Y: 10, Width: 100, Height: 50}})
//	acc.Idle()
//
//	img, _ := screen.Image() // waits for the engine
//
// # Batching and Residency
//
// Operations accumulate in one command buffer. It is submitted when it fills,
// on Idle (the display server's block handler), on Commit, and whenever CPU
// access to a pixmap with outstanding GPU writes begins. PrepareAccess and
// FinishAccess bracket every CPU access; they stall only when the pixmap is
// in the in-flight set.
//
// # Connections
//
// The conn package defines the upstream GPU connection and a driver
// registry. The emulator package provides a software model of the engine
// that executes the command stream, used by tests and by cmd/blitdemo. The
// trace package records submitted streams.
//
// # Logging
//
// blit is silent by default. Call SetLogger with an *slog.Logger to see
// fallbacks, commits and residency transitions.
package blit
