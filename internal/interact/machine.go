// Package interact turns pointer and keyboard events into camera rotation
// and intensity window changes.
//
// A Machine is in one of three modes. Holding the left button rotates the
// camera, holding the right button adjusts the intensity window, and the
// machine is idle otherwise. Drags preview live through a Uniforms sink and
// commit when the button is released.
package interact

import "math"

// PolarEpsilon keeps the polar angle strictly inside (-π/2, π/2) so the
// camera basis never degenerates at the poles.
const PolarEpsilon = 1e-3

// Mode is the pointer mode.
type Mode int

// Pointer modes.
const (
	ModeIdle Mode = iota
	ModeRotating
	ModeWindowing
)

func (m Mode) String() string {
	switch m {
	case ModeIdle:
		return "idle"
	case ModeRotating:
		return "rotating"
	case ModeWindowing:
		return "windowing"
	}
	return "unknown"
}

// EventKind classifies an input event.
type EventKind int

// Event kinds.
const (
	PointerDown EventKind = iota
	PointerUp
	PointerMove
	KeyDown
	CloseRequested
)

// Button is a pointer button.
type Button int

// Pointer buttons.
const (
	ButtonLeft Button = iota
	ButtonRight
	ButtonMiddle

	// ButtonOther stands for any further button (back, forward). The
	// machine ignores it.
	ButtonOther
)

// Key is a keyboard key relevant to the viewer.
type Key int

// Keys.
const (
	KeyUnknown Key = iota
	KeyEnter
	KeyEscape
	KeyNextDataset
)

// Event is one input event in window pixel coordinates.
type Event struct {
	Kind   EventKind
	Button Button
	X, Y   float64
	Key    Key
}

// Action is a request the machine cannot fulfil itself.
type Action int

// Actions returned by Handle.
const (
	ActionNone Action = iota
	ActionToggleFullscreen
	ActionNextDataset
	ActionQuit
)

func (a Action) String() string {
	switch a {
	case ActionNone:
		return "none"
	case ActionToggleFullscreen:
		return "toggle-fullscreen"
	case ActionNextDataset:
		return "next-dataset"
	case ActionQuit:
		return "quit"
	}
	return "unknown"
}

// Uniforms receives the camera and window values the machine produces.
type Uniforms interface {
	SetCamera(theta, delta float32) error
	SetCuts(scale, offset float32) error
}

// Machine is the interaction state. The zero value is not usable; call
// NewMachine. A Machine is driven from the event loop goroutine only.
type Machine struct {
	out Uniforms

	mode           Mode
	width, height  float64
	anchorX        float64
	anchorY        float64
	theta, delta   float64
	dTheta, dDelta float64
	scale, offset  float64
	dScale, dOff   float64

	// err is the last error returned by out.
	err error
}

// NewMachine returns an idle machine with neutral angles and a unit
// window, writing through out.
func NewMachine(out Uniforms, width, height int) *Machine {
	m := &Machine{out: out, scale: 1, offset: 0}
	m.SetViewport(width, height)
	return m
}

// SetViewport records the window size used to normalise drag distances.
func (m *Machine) SetViewport(width, height int) {
	m.width = float64(max(width, 1))
	m.height = float64(max(height, 1))
}

// SetCuts replaces the committed window, e.g. after a new cube is loaded.
// An in-progress window drag continues from the new baseline.
func (m *Machine) SetCuts(scale, offset float32) {
	m.scale, m.offset = float64(scale), float64(offset)
}

// Mode returns the current pointer mode.
func (m *Machine) Mode() Mode { return m.mode }

// Angles returns the committed azimuth and polar angles.
func (m *Machine) Angles() (theta, delta float64) { return m.theta, m.delta }

// Cuts returns the committed window scale and offset.
func (m *Machine) Cuts() (scale, offset float64) { return m.scale, m.offset }

// Preview returns the in-flight rotation deltas.
func (m *Machine) Preview() (dTheta, dDelta float64) { return m.dTheta, m.dDelta }

// Err returns the last error reported by the Uniforms sink, if any.
func (m *Machine) Err() error { return m.err }

// Handle applies ev and returns the action the caller must perform.
func (m *Machine) Handle(ev Event) Action {
	switch ev.Kind {
	case PointerDown:
		m.pointerDown(ev)
	case PointerMove:
		m.pointerMove(ev)
	case PointerUp:
		m.pointerUp(ev)
	case KeyDown:
		switch ev.Key {
		case KeyEnter:
			return ActionToggleFullscreen
		case KeyNextDataset:
			return ActionNextDataset
		case KeyEscape:
			return ActionQuit
		}
	case CloseRequested:
		return ActionQuit
	}
	return ActionNone
}

func (m *Machine) pointerDown(ev Event) {
	if m.mode != ModeIdle {
		return
	}
	switch ev.Button {
	case ButtonLeft:
		m.mode = ModeRotating
		m.dTheta, m.dDelta = 0, 0
	case ButtonRight:
		m.mode = ModeWindowing
		m.dScale, m.dOff = 0, 0
	default:
		return
	}
	m.anchorX, m.anchorY = ev.X, ev.Y
}

func (m *Machine) pointerMove(ev Event) {
	halfW, halfH := m.width/2, m.height/2
	dx, dy := ev.X-m.anchorX, ev.Y-m.anchorY

	switch m.mode {
	case ModeRotating:
		m.dTheta = 2 * dx / halfW
		m.dDelta = dy / halfH
		m.report(m.out.SetCamera(float32(m.theta+m.dTheta), float32(ClampPolar(m.delta+m.dDelta))))
	case ModeWindowing:
		m.dScale = dy / halfH
		m.dOff = dx / halfW
		m.report(m.out.SetCuts(float32(m.scale*(1+m.dScale)), float32(m.offset*(1+m.dOff))))
	}
}

func (m *Machine) pointerUp(ev Event) {
	switch {
	case m.mode == ModeRotating && ev.Button == ButtonLeft:
		m.theta += m.dTheta
		m.delta = ClampPolar(m.delta + m.dDelta)
		m.dTheta, m.dDelta = 0, 0
		m.mode = ModeIdle
		m.report(m.out.SetCamera(float32(m.theta), float32(m.delta)))
	case m.mode == ModeWindowing && ev.Button == ButtonRight:
		m.scale *= 1 + m.dScale
		m.offset *= 1 + m.dOff
		m.dScale, m.dOff = 0, 0
		m.mode = ModeIdle
		m.report(m.out.SetCuts(float32(m.scale), float32(m.offset)))
	}
}

func (m *Machine) report(err error) {
	if err != nil {
		m.err = err
	}
}

// ClampPolar clamps a polar angle into (-π/2+ε, π/2-ε).
func ClampPolar(delta float64) float64 {
	const limit = math.Pi/2 - PolarEpsilon
	return math.Max(-limit, math.Min(limit, delta))
}
