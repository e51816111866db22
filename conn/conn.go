// Package conn defines the GPU connection consumed by the accelerator: feature
// queries, buffer objects with stable GPU addresses, and command submission
// with fence-based completion.
//
// Implementations register themselves with the driver registry:
//
//	func init() {
//	    conn.Register("etnaviv", 100, openEtnaviv, etnavivPresent)
//	}
//
// and callers pick one by name or by priority:
//
//	c, err := conn.OpenBest(conn.Options{})
package conn

import (
	"errors"
	"fmt"
	"strings"
)

// Errors returned by connections.
var (
	// ErrClosed is returned by operations on a closed connection.
	ErrClosed = errors.New("conn: connection closed")

	// ErrImportUnsupported is returned by Import when the connection cannot
	// map caller memory into the GPU address space.
	ErrImportUnsupported = errors.New("conn: user memory import not supported")

	// ErrNoExport is returned by BO.Export when the buffer cannot be shared.
	ErrNoExport = errors.New("conn: buffer cannot be exported")

	// ErrBadFence is returned by Wait and Retired for fences never issued.
	ErrBadFence = errors.New("conn: unknown fence")
)

// Feature is a bitmask of engine capabilities.
type Feature uint32

// Engine features.
const (
	// FeaturePE20 is the 2.0 pixel engine: extended blending and A8 sources.
	FeaturePE20 Feature = 1 << iota

	// FeatureA8Target allows A8 destination surfaces.
	FeatureA8Target

	// FeatureTiling allows 4x4 tiled surfaces.
	FeatureTiling
)

// FeatureAll is every feature the accelerator knows about.
const FeatureAll = FeaturePE20 | FeatureA8Target | FeatureTiling

var featureNames = []struct {
	f    Feature
	name string
}{
	{FeaturePE20, "pe20"},
	{FeatureA8Target, "a8-target"},
	{FeatureTiling, "tiling"},
}

// Has reports whether all features in mask are present.
func (f Feature) Has(mask Feature) bool { return f&mask == mask }

func (f Feature) String() string {
	if f == 0 {
		return "none"
	}
	var parts []string
	for _, n := range featureNames {
		if f.Has(n.f) {
			parts = append(parts, n.name)
		}
	}
	if rest := f &^ FeatureAll; rest != 0 {
		parts = append(parts, fmt.Sprintf("%#x", uint32(rest)))
	}
	return strings.Join(parts, "|")
}

// ParseFeatures parses a list of feature names as printed by Feature.String.
func ParseFeatures(names []string) (Feature, error) {
	var f Feature
outer:
	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" || name == "none" {
			continue
		}
		for _, n := range featureNames {
			if n.name == name {
				f |= n.f
				continue outer
			}
		}
		return 0, fmt.Errorf("conn: unknown feature %q", name)
	}
	return f, nil
}

// Fence identifies one submission. Fences increase monotonically; zero is
// never issued.
type Fence uint64

// CacheOp is a CPU cache maintenance operation on a buffer.
type CacheOp uint8

// Cache operations.
const (
	// CacheClean writes dirty CPU cache lines back to memory.
	CacheClean CacheOp = iota + 1

	// CacheInvalidate discards CPU cache lines so later reads see memory.
	CacheInvalidate

	// CacheFlush cleans then invalidates.
	CacheFlush
)

func (op CacheOp) String() string {
	switch op {
	case CacheClean:
		return "clean"
	case CacheInvalidate:
		return "invalidate"
	case CacheFlush:
		return "flush"
	}
	return fmt.Sprintf("CacheOp(%d)", uint8(op))
}

// BO is a buffer object mapped into the GPU address space.
type BO interface {
	// GPUAddress returns the stable GPU virtual address of the buffer.
	GPUAddress() uint32

	// Size returns the buffer size in bytes.
	Size() int

	// Map returns the CPU view of the buffer. CPU accesses go through a
	// cache that needs explicit maintenance around GPU use.
	Map() []byte

	// Cache performs CPU cache maintenance on the whole buffer.
	Cache(op CacheOp) error

	// Export returns a global name other processes can open the buffer by.
	Export() (uint32, error)

	// Release unmaps and frees the buffer. The GPU must be done with it.
	Release() error
}

// Conn is a connection to a GPU with a 2D drawing engine.
//
// A Conn is driven from a single goroutine.
type Conn interface {
	// Features returns the engine capabilities.
	Features() Feature

	// Alloc allocates a GPU buffer of at least size bytes.
	Alloc(size int) (BO, error)

	// Import maps caller memory into the GPU address space. The memory must
	// stay valid until the BO is released.
	Import(mem []byte) (BO, error)

	// Submit queues a command stream for execution and returns its fence.
	// The connection must not retain words after Submit returns.
	Submit(words []uint32) (Fence, error)

	// Wait blocks until the submission identified by f has retired.
	Wait(f Fence) error

	// Retired reports without blocking whether f has retired.
	Retired(f Fence) (bool, error)

	// Close releases the connection.
	Close() error
}
