package main

import (
	"github.com/gogpu/gogpu"
	"github.com/gogpu/gpucontext"

	"github.com/gogpu/fitsview/internal/interact"
)

// bindInput forwards window input to handle as interaction events.
func bindInput(app *gogpu.App, handle func(interact.Event)) {
	events := app.EventSource()

	events.OnKeyPress(func(key gpucontext.Key, _ gpucontext.Modifiers) {
		if k := mapKey(key); k != interact.KeyUnknown {
			handle(interact.Event{Kind: interact.KeyDown, Key: k})
		}
	})
	events.OnMouseMove(func(x, y float64) {
		handle(interact.Event{Kind: interact.PointerMove, X: x, Y: y})
	})
	events.OnMousePress(func(button gpucontext.MouseButton, x, y float64) {
		handle(interact.Event{Kind: interact.PointerDown, Button: mapButton(button), X: x, Y: y})
	})
	events.OnMouseRelease(func(button gpucontext.MouseButton, x, y float64) {
		handle(interact.Event{Kind: interact.PointerUp, Button: mapButton(button), X: x, Y: y})
	})
}

func mapKey(key gpucontext.Key) interact.Key {
	switch key {
	case gpucontext.KeyEnter:
		return interact.KeyEnter
	case gpucontext.KeyEscape:
		return interact.KeyEscape
	case gpucontext.KeyA:
		return interact.KeyNextDataset
	}
	return interact.KeyUnknown
}

func mapButton(b gpucontext.MouseButton) interact.Button {
	switch b {
	case gpucontext.MouseButtonLeft:
		return interact.ButtonLeft
	case gpucontext.MouseButtonRight:
		return interact.ButtonRight
	case gpucontext.MouseButtonMiddle:
		return interact.ButtonMiddle
	}
	return interact.ButtonOther
}
