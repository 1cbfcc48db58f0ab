package main

import (
	"context"
	"sync"

	"github.com/wailsapp/wails/v2/pkg/runtime"

	"deskpet/internal/ports"
)

const (
	indicatorSize   = 80
	indicatorMargin = 20
	panelWidth      = 430
	panelHeight     = 760
	panelMinWidth   = 320
	panelMinHeight  = 480
)

type bounds struct {
	x, y          int
	width, height int
}

type screenSize struct {
	width, height int
}

// windowRuntime is the slice of the Wails window API the host window needs.
type windowRuntime interface {
	Size() (int, int)
	Position() (int, int)
	SetSize(width, height int)
	SetMinSize(width, height int)
	SetPosition(x, y int)
	Center()
	CurrentScreen() (screenSize, bool)
	Quit()
}

// hostWindow implements the fire-and-forget window commands.
type hostWindow struct {
	rt       windowRuntime
	onToggle func(mini bool)

	mu    sync.Mutex
	mini  bool
	saved *bounds
}

var _ ports.HostWindow = (*hostWindow)(nil)

func newHostWindow(rt windowRuntime, onToggle func(mini bool)) *hostWindow {
	return &hostWindow{rt: rt, onToggle: onToggle}
}

// MinimizeToIndicator shrinks the window to the orb in the bottom-right
// corner of the current screen, remembering the panel bounds.
func (w *hostWindow) MinimizeToIndicator() {
	w.mu.Lock()
	if w.mini {
		w.mu.Unlock()
		return
	}
	x, y := w.rt.Position()
	width, height := w.rt.Size()
	w.saved = &bounds{x: x, y: y, width: width, height: height}

	w.rt.SetMinSize(indicatorSize, indicatorSize)
	w.rt.SetSize(indicatorSize, indicatorSize)
	if screen, ok := w.rt.CurrentScreen(); ok {
		w.rt.SetPosition(
			max(0, screen.width-indicatorSize-indicatorMargin),
			max(0, screen.height-indicatorSize-indicatorMargin),
		)
	}
	w.mini = true
	w.mu.Unlock()

	w.notify(true)
}

// RestoreToPanel returns to the remembered panel bounds, or a centered panel.
func (w *hostWindow) RestoreToPanel() {
	w.mu.Lock()
	if !w.mini {
		w.mu.Unlock()
		return
	}
	saved := w.saved
	w.saved = nil
	w.mini = false

	w.rt.SetMinSize(panelMinWidth, panelMinHeight)
	if saved != nil && saved.width > indicatorSize && saved.height > indicatorSize {
		w.rt.SetSize(saved.width, saved.height)
		w.rt.SetPosition(saved.x, saved.y)
	} else {
		w.rt.SetSize(panelWidth, panelHeight)
		w.rt.Center()
	}
	w.mu.Unlock()

	w.notify(false)
}

func (w *hostWindow) CloseApplication() {
	w.rt.Quit()
}

func (w *hostWindow) Mini() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.mini
}

func (w *hostWindow) notify(mini bool) {
	if w.onToggle != nil {
		w.onToggle(mini)
	}
}

type wailsWindow struct {
	ctx context.Context
}

func (w wailsWindow) Size() (int, int) {
	return runtime.WindowGetSize(w.ctx)
}

func (w wailsWindow) Position() (int, int) {
	return runtime.WindowGetPosition(w.ctx)
}

func (w wailsWindow) SetSize(width, height int) {
	runtime.WindowSetSize(w.ctx, width, height)
}

func (w wailsWindow) SetMinSize(width, height int) {
	runtime.WindowSetMinSize(w.ctx, width, height)
}

func (w wailsWindow) SetPosition(x, y int) {
	runtime.WindowSetPosition(w.ctx, x, y)
}

func (w wailsWindow) Center() {
	runtime.WindowCenter(w.ctx)
}

func (w wailsWindow) CurrentScreen() (screenSize, bool) {
	screens, err := runtime.ScreenGetAll(w.ctx)
	if err != nil || len(screens) == 0 {
		return screenSize{}, false
	}
	chosen := screens[0]
	for _, screen := range screens {
		if screen.IsCurrent {
			chosen = screen
			break
		}
		if screen.IsPrimary {
			chosen = screen
		}
	}
	return screenSize{width: chosen.Size.Width, height: chosen.Size.Height}, true
}

func (w wailsWindow) Quit() {
	runtime.Quit(w.ctx)
}
