package hud

import (
	"fmt"
	"image"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gogpu/gg"
	"github.com/gogpu/gg/text"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/text/message"
)

// Panel layout in logical pixels, before scaling.
const (
	panelWidth   = 280
	padding      = 12
	lineHeight   = 18
	infoLines    = 5
	buttonGap    = 8
	buttonHeight = 26
	panelHeight  = padding + infoLines*lineHeight + buttonGap + buttonHeight + padding
	cornerRadius = 8
)

// fpsWindow is how often the frame rate on the panel refreshes.
const fpsWindow = time.Second

// Info is what the panel shows.
type Info struct {
	Name                 string
	Width, Height, Depth uint32
	Bytes                int
	Cuts                 [2]float32
	Perspective          bool
}

type button struct {
	label  string
	action Action
	rect   image.Rectangle
}

func buttons() []button {
	top := padding + infoLines*lineHeight + buttonGap
	w := (panelWidth - 2*padding - buttonGap) / 2
	return []button{
		{
			label:  "Perspective",
			action: ActionTogglePerspective,
			rect:   image.Rect(padding, top, padding+w, top+buttonHeight),
		},
		{
			label:  "Next cube",
			action: ActionNextDataset,
			rect:   image.Rect(padding+w+buttonGap, top, padding+2*w+buttonGap, top+buttonHeight),
		},
	}
}

// lines formats the info block. fps < 0 means not yet measured.
func lines(p *message.Printer, info Info, fps float64) []string {
	name := info.Name
	if name == "" {
		name = "no cube loaded"
	}
	size := "-"
	if info.Bytes > 0 {
		size = humanize.Bytes(uint64(info.Bytes)) //nolint:gosec // checked positive
	}
	rate := "- fps"
	if fps >= 0 {
		rate = p.Sprintf("%.1f fps", fps)
	}
	return []string{
		name,
		p.Sprintf("%d × %d × %d voxels", info.Width, info.Height, info.Depth),
		"size " + size,
		fmt.Sprintf("cuts %.4g .. %.4g", info.Cuts[0], info.Cuts[1]),
		rate,
	}
}

// rasterize draws the panel at logical size and scales it to the device
// pixel size.
func rasterize(face text.Face, p *message.Printer, info Info, fps float64, hover int, scale float64) (*image.RGBA, error) {
	dc := gg.NewContext(panelWidth, panelHeight)
	defer dc.Close()

	dc.SetRGBA(0.06, 0.07, 0.09, 0.8)
	dc.DrawRoundedRectangle(0, 0, panelWidth, panelHeight, cornerRadius)
	if err := dc.Fill(); err != nil {
		return nil, fmt.Errorf("hud: fill panel: %w", err)
	}

	if face != nil {
		dc.SetFont(face)
	}
	dc.SetRGBA(0.92, 0.94, 0.96, 1)
	for i, line := range lines(p, info, fps) {
		dc.DrawString(line, padding, float64(padding+(i+1)*lineHeight-4))
	}

	for i, b := range buttons() {
		r := b.rect
		switch {
		case b.action == ActionTogglePerspective && info.Perspective:
			dc.SetRGBA(0.25, 0.5, 0.85, 0.95)
		case i == hover:
			dc.SetRGBA(0.3, 0.33, 0.38, 0.95)
		default:
			dc.SetRGBA(0.18, 0.2, 0.24, 0.95)
		}
		dc.DrawRoundedRectangle(float64(r.Min.X), float64(r.Min.Y), float64(r.Dx()), float64(r.Dy()), 4)
		if err := dc.Fill(); err != nil {
			return nil, fmt.Errorf("hud: fill button: %w", err)
		}
		dc.SetRGBA(1, 1, 1, 1)
		cx := float64(r.Min.X) + float64(r.Dx())/2
		cy := float64(r.Min.Y) + float64(r.Dy())/2
		dc.DrawStringAnchored(b.label, cx, cy, 0.5, 0.35)
	}

	return scaled(dc.Image(), scale), nil
}

// scaled returns src as RGBA at scale times its size.
func scaled(src image.Image, scale float64) *image.RGBA {
	b := src.Bounds()
	if rgba, ok := src.(*image.RGBA); ok && scale == 1 {
		return rgba
	}
	w := max(1, int(float64(b.Dx())*scale+0.5))
	h := max(1, int(float64(b.Dy())*scale+0.5))
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	if w == b.Dx() && h == b.Dy() {
		xdraw.Draw(dst, dst.Bounds(), src, b.Min, xdraw.Src)
		return dst
	}
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, b, xdraw.Src, nil)
	return dst
}

// fpsMeter turns the frame counter into a rate once per window.
type fpsMeter struct {
	window    time.Duration
	lastAt    time.Duration
	lastFrame uint64
	fps       float64
	started   bool
}

// sample records the frame counter and reports whether the rate changed.
func (m *fpsMeter) sample(elapsed time.Duration, frame uint64) bool {
	if !m.started || elapsed < m.lastAt || frame < m.lastFrame {
		m.started = true
		m.lastAt, m.lastFrame = elapsed, frame
		m.fps = -1
		return false
	}
	dt := elapsed - m.lastAt
	if dt < m.window {
		return false
	}
	m.fps = float64(frame-m.lastFrame) / dt.Seconds()
	m.lastAt, m.lastFrame = elapsed, frame
	return true
}
