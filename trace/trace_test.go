package trace

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/gogpu/blit/emulator"
	"github.com/gogpu/blit/internal/encode"
	"github.com/gogpu/blit/internal/stream"
)

func flushStream(t *testing.T) []uint32 {
	t.Helper()
	w := stream.NewWriter(stream.MinWords)
	if err := encode.EncodeFlush(w); err != nil {
		t.Fatal(err)
	}
	return append([]uint32(nil), w.Words()...)
}

func TestTextTrace(t *testing.T) {
	var buf bytes.Buffer
	tc := New(emulator.New(), &buf, Text)

	f, err := tc.Submit(flushStream(t))
	if err != nil {
		t.Fatal(err)
	}
	if err := tc.Wait(f); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.HasPrefix(out, "# submit 1: 2 words\n") {
		t.Errorf("trace header missing:\n%s", out)
	}
	if !strings.Contains(out, "GL.FLUSH_CACHE") {
		t.Errorf("trace does not name the flush register:\n%s", out)
	}
	if tc.Submits() != 1 || tc.Words() != 2 {
		t.Errorf("Submits, Words = %d, %d", tc.Submits(), tc.Words())
	}
}

func TestBinaryRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	tc := New(emulator.New(), &buf, Binary)
	words := flushStream(t)
	for i := 0; i < 3; i++ {
		if _, err := tc.Submit(words); err != nil {
			t.Fatal(err)
		}
	}
	if buf.Len() != 3*(4+4*len(words)) {
		t.Fatalf("trace size = %d", buf.Len())
	}

	streams, err := ReadAll(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatal(err)
	}
	if len(streams) != 3 {
		t.Fatalf("read %d streams, want 3", len(streams))
	}
	for i, s := range streams {
		if len(s) != len(words) || s[0] != words[0] || s[1] != words[1] {
			t.Errorf("stream %d = %#x, want %#x", i, s, words)
		}
	}

	replay := emulator.New()
	if err := Replay(replay, streams); err != nil {
		t.Fatal(err)
	}
	if s := replay.Stats(); s.Submits != 3 || s.Flushes != 3 {
		t.Errorf("replay stats = %+v", s)
	}
}

func TestReadTruncated(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"short header", []byte{2, 0}},
		{"short body", []byte{2, 0, 0, 0, 1, 2, 3, 4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ReadAll(bytes.NewReader(tt.data)); !errors.Is(err, ErrTruncated) {
				t.Errorf("err = %v, want ErrTruncated", err)
			}
		})
	}
}

type failWriter struct{}

var errWrite = errors.New("write failed")

func (failWriter) Write([]byte) (int, error) { return 0, errWrite }

func TestWriteFailureKeepsSubmitting(t *testing.T) {
	tc := New(emulator.New(), failWriter{}, Text)
	if _, err := tc.Submit(flushStream(t)); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if !errors.Is(tc.Err(), errWrite) {
		t.Errorf("Err() = %v", tc.Err())
	}
}

func TestParseMode(t *testing.T) {
	for _, m := range []Mode{Text, Binary} {
		got, err := ParseMode(m.String())
		if err != nil || got != m {
			t.Errorf("ParseMode(%q) = %v, %v", m.String(), got, err)
		}
	}
	if _, err := ParseMode("hex"); err == nil {
		t.Error("ParseMode accepted an unknown mode")
	}
}
