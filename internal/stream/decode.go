package stream

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/gogpu/blit/internal/regs"
)

// ErrMalformed is returned by Decode for streams that do not parse.
var ErrMalformed = errors.New("stream: malformed command stream")

// Command is one decoded front-end command.
type Command struct {
	// Op is the front-end opcode (regs.OpLoadState, regs.OpDraw2D, ...).
	Op uint32

	// Offset is the word offset of the command header.
	Offset int

	// Reg is the first register written by a load-state command.
	Reg uint32

	// Fixp is the fixed-point flag of a load-state command.
	Fixp bool

	// Values holds load-state register values, or trailing draw data words.
	Values []uint32

	// Rects holds two packed words per rectangle of a draw command.
	Rects []uint32
}

// RectCount returns the number of rectangles of a draw command.
func (c Command) RectCount() int { return len(c.Rects) / 2 }

// Rect returns rectangle i of a draw command.
func (c Command) Rect(i int) (x1, y1, x2, y2 int) {
	x1, y1 = regs.UnpackXY(c.Rects[2*i])
	x2, y2 = regs.UnpackXY(c.Rects[2*i+1])
	return x1, y1, x2, y2
}

func alignIndex(i int) int { return (i + AlignWords - 1) &^ (AlignWords - 1) }

// Decode parses a command stream. Padding inserted by Align is skipped.
func Decode(words []uint32) ([]Command, error) {
	var cmds []Command
	for i := 0; i < len(words); {
		h := words[i]
		cmd := Command{Op: h & regs.OpMask, Offset: i}
		switch cmd.Op {
		case regs.OpLoadState:
			reg, n, fixp := regs.LoadStateFields(h)
			if i+1+n > len(words) {
				return cmds, fmt.Errorf("%w: load-state at %d overruns stream", ErrMalformed, i)
			}
			cmd.Reg, cmd.Fixp = reg, fixp
			cmd.Values = words[i+1 : i+1+n]
			i = alignIndex(i + 1 + n)

		case regs.OpDraw2D:
			n, data := regs.Draw2DFields(h)
			end := i + 2 + 2*n + data
			if n == 0 || end > len(words) {
				return cmds, fmt.Errorf("%w: draw at %d overruns stream", ErrMalformed, i)
			}
			cmd.Rects = words[i+2 : i+2+2*n]
			cmd.Values = words[i+2+2*n : end]
			i = alignIndex(end)

		case regs.OpNop, regs.OpStall, regs.OpWait, regs.OpLink:
			i += 2

		case regs.OpEnd:
			cmds = append(cmds, cmd)
			return cmds, nil

		default:
			return cmds, fmt.Errorf("%w: opcode %#08x at %d", ErrMalformed, h, i)
		}
		cmds = append(cmds, cmd)
	}
	return cmds, nil
}

// Disassemble writes a human-readable listing of a command stream.
func Disassemble(w io.Writer, words []uint32) error {
	cmds, err := Decode(words)
	for _, c := range cmds {
		if _, werr := io.WriteString(w, c.String()+"\n"); werr != nil {
			return werr
		}
	}
	return err
}

func (c Command) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%04x: ", c.Offset)
	switch c.Op {
	case regs.OpLoadState:
		fmt.Fprintf(&b, "LOAD_STATE x%d", len(c.Values))
		for j, v := range c.Values {
			reg := c.Reg + uint32(4*j)
			name := regs.Name(reg)
			if name == "" {
				name = fmt.Sprintf("%05x", reg)
			}
			fmt.Fprintf(&b, "\n        %-24s = %#08x", name, v)
		}
	case regs.OpDraw2D:
		fmt.Fprintf(&b, "DRAW_2D n=%d", c.RectCount())
		for j := 0; j < c.RectCount(); j++ {
			x1, y1, x2, y2 := c.Rect(j)
			fmt.Fprintf(&b, "\n        (%d,%d)-(%d,%d)", x1, y1, x2, y2)
		}
	case regs.OpEnd:
		b.WriteString("END")
	default:
		fmt.Fprintf(&b, "OP %#08x", c.Op)
	}
	return b.String()
}
