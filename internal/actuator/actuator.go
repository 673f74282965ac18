// Package actuator is the boundary to the physical (or simulated) signal
// heads. It realizes the phase the sequencer dictates and reports failures
// upward; it never influences the logical state.
package actuator

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/crosslight-io/crosslight/engine/internal/sequencer"
	"github.com/crosslight-io/crosslight/engine/pkg/types"
)

// Frame is one complete output state: the color for every signal head.
type Frame []sequencer.LightState

func (f Frame) String() string {
	parts := make([]string, len(f))
	for i, l := range f {
		parts[i] = l.String()
	}
	return strings.Join(parts, ",")
}

// Actuator applies a frame to the signal heads.
type Actuator interface {
	Apply(ctx context.Context, frame Frame) error
}

// LineActuator writes newline-framed SET commands to a byte stream, the
// protocol the serial signal driver speaks.
type LineActuator struct {
	mu  sync.Mutex
	out io.Writer
}

// NewLineActuator creates an actuator writing to out (typically a serial
// port).
func NewLineActuator(out io.Writer) *LineActuator {
	return &LineActuator{out: out}
}

// Apply writes one SET:<r1>,<r2>,... line.
func (a *LineActuator) Apply(_ context.Context, frame Frame) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, err := fmt.Fprintf(a.out, "SET:%s\n", frame); err != nil {
		return types.NewError(types.ErrActuation,
			fmt.Sprintf("write signal command: %v", err), types.ErrTypeActuation,
			true, "check the signal driver connection")
	}
	return nil
}

// SimActuator records applied frames in memory. Used for headless runs and
// tests.
type SimActuator struct {
	mu     sync.Mutex
	frames []Frame
}

// NewSimActuator creates an empty recorder.
func NewSimActuator() *SimActuator {
	return &SimActuator{}
}

// Apply records the frame.
func (a *SimActuator) Apply(_ context.Context, frame Frame) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	cp := make(Frame, len(frame))
	copy(cp, frame)
	a.frames = append(a.frames, cp)
	return nil
}

// Frames returns a copy of everything applied so far.
func (a *SimActuator) Frames() []Frame {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Frame, len(a.frames))
	copy(out, a.frames)
	return out
}

// Last returns the most recently applied frame.
func (a *SimActuator) Last() (Frame, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.frames) == 0 {
		return nil, false
	}
	return a.frames[len(a.frames)-1], true
}
