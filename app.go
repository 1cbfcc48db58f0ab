package main

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/wailsapp/wails/v2/pkg/runtime"

	"deskpet/internal/bootstrap"
	"deskpet/internal/domain"
	"deskpet/internal/usecase"
)

const (
	eventState      = "deskpet:state"
	eventOrb        = "deskpet:orb"
	eventHint       = "deskpet:hint"
	eventPreview    = "deskpet:preview"
	eventTranscript = "deskpet:transcript"
	eventError      = "deskpet:error"
	eventMiniMode   = "deskpet:miniMode"
)

var errBackendNotReady = errors.New("backend is not ready yet")

// App is the Wails application root.
type App struct {
	emit func(ctx context.Context, name string, data ...interface{})

	// Written by startup, read by bound methods on Wails goroutines.
	mu       sync.RWMutex
	ctx      context.Context
	services *bootstrap.Services
	window   *hostWindow
	bootErr  error

	hintMu   sync.Mutex
	lastHint string
}

func NewApp() *App {
	return &App{emit: runtime.EventsEmit}
}

func (a *App) startup(ctx context.Context) {
	a.attach(ctx, newHostWindow(wailsWindow{ctx: ctx}, a.miniModeChanged))

	services, err := bootstrap.Build(a, &wailsClipboard{})
	if err != nil {
		a.fail(err)
		a.SessionError(domain.ErrorCodeStartup, err.Error())
		return
	}
	a.install(&services)

	cred, err := services.Launcher.Issue(ctx)
	if err != nil {
		a.fail(err)
		services.Logger.Error("backend launch failed", "err", err)
		a.SessionError(domain.ErrorCodeBackend, err.Error())
		return
	}
	services.Dispatcher.SetCredential(cred)
}

func (a *App) attach(ctx context.Context, window *hostWindow) {
	a.mu.Lock()
	a.ctx = ctx
	a.window = window
	a.mu.Unlock()
}

// install subscribes the surfaces and publishes services to the bindings.
// Subscribing emits, so it must run before the write lock is taken.
func (a *App) install(services *bootstrap.Services) {
	services.Presenter.Subscribe(panelSurface{app: a})
	services.Presenter.Subscribe(orbSurface{app: a})

	a.mu.Lock()
	a.services = services
	a.mu.Unlock()
}

func (a *App) fail(err error) {
	a.mu.Lock()
	a.bootErr = err
	a.mu.Unlock()
}

// loaded returns the services once startup has built them.
func (a *App) loaded() (*bootstrap.Services, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.services, a.services != nil
}

func (a *App) currentWindow() *hostWindow {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.window
}

func (a *App) runtimeContext() context.Context {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.ctx
}

func (a *App) bootError() error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.bootErr
}

// domReady runs on every page load, including reloads.
func (a *App) domReady(_ context.Context) {
	services, ok := a.loaded()
	if !ok {
		return
	}
	services.Dispatcher.NotifyUISurfaceLoaded()
	services.Client.RefreshTranscript()
}

func (a *App) shutdown(_ context.Context) {
	services, ok := a.loaded()
	if !ok {
		return
	}
	if err := services.Shutdown(); err != nil {
		services.Logger.Warn("backend shutdown failed", "err", err)
	}
}

// SendMessage submits a chat line. It is ignored while the channel is not open.
func (a *App) SendMessage(text string) error {
	services, err := a.requireReady()
	if err != nil {
		return err
	}
	return services.Client.SendUserMessage(text)
}

// GetStatus returns the current runtime status.
func (a *App) GetStatus() domain.Status {
	status := domain.Status{
		Presentation: domain.PresentationIdle,
		Connection:   domain.ConnectionDisconnected,
		Hint:         a.hint(),
	}
	bootErr := a.bootError()
	if bootErr != nil {
		status.Presentation = domain.PresentationError
		status.Message = bootErr.Error()
	}
	services, ok := a.loaded()
	if !ok {
		return status
	}
	if bootErr == nil {
		status.Presentation = services.Presenter.Current()
	}
	status.Connection = services.Client.State()
	status.Readiness = services.Dispatcher.Readiness()
	return status
}

// GetTranscript returns the whole conversation.
func (a *App) GetTranscript() []domain.TranscriptEntry {
	services, ok := a.loaded()
	if !ok {
		return nil
	}
	return services.Transcript.RenderFull()
}

// OpenFullChat expands the conversation view.
func (a *App) OpenFullChat() []domain.TranscriptEntry {
	services, ok := a.loaded()
	if !ok {
		return nil
	}
	services.Transcript.SetExpanded(true)
	entries := services.Transcript.RenderFull()
	a.TranscriptFull(entries)
	return entries
}

func (a *App) CloseFullChat() {
	services, ok := a.loaded()
	if !ok {
		return
	}
	services.Transcript.SetExpanded(false)
}

// MinimizeToIndicator collapses the window into the floating orb.
func (a *App) MinimizeToIndicator() {
	a.CloseFullChat()
	if window := a.currentWindow(); window != nil {
		window.MinimizeToIndicator()
	}
}

func (a *App) RestoreToPanel() {
	if window := a.currentWindow(); window != nil {
		window.RestoreToPanel()
	}
}

func (a *App) CloseApplication() {
	if window := a.currentWindow(); window != nil {
		window.CloseApplication()
	}
}

// ReloadSurface reloads the webview. The credential is delivered again once
// the page reports ready.
func (a *App) ReloadSurface() error {
	services, err := a.requireReady()
	if err != nil {
		return err
	}
	services.Dispatcher.NotifyUISurfaceLoading()
	if err := services.Client.Disconnect(); err != nil && !errors.Is(err, usecase.ErrNoActiveChannel) {
		return err
	}
	if ctx := a.runtimeContext(); ctx != nil {
		runtime.WindowReload(ctx)
	}
	return nil
}

// Reconnect redelivers the credential after a transport failure.
func (a *App) Reconnect() error {
	services, err := a.requireReady()
	if err != nil {
		return err
	}
	if services.Client.State() == domain.ConnectionOpen {
		return nil
	}
	if !services.Dispatcher.Redeliver() {
		return errBackendNotReady
	}
	return nil
}

// CopyTranscript copies the conversation to the clipboard.
func (a *App) CopyTranscript() (string, error) {
	services, err := a.requireReady()
	if err != nil {
		return "", err
	}
	return services.Exporter.Copy(a.runtimeContext())
}

func (a *App) requireReady() (*bootstrap.Services, error) {
	services, ok := a.loaded()
	if ok {
		return services, nil
	}
	if err := a.bootError(); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("application is not initialized")
}

// StatusHint emits a short status line.
func (a *App) StatusHint(text string) {
	a.hintMu.Lock()
	a.lastHint = text
	a.hintMu.Unlock()
	a.emitEvent(eventHint, map[string]string{"text": text})
}

func (a *App) TranscriptPreview(text string) {
	a.emitEvent(eventPreview, map[string]string{"text": text})
}

func (a *App) TranscriptFull(entries []domain.TranscriptEntry) {
	if entries == nil {
		entries = []domain.TranscriptEntry{}
	}
	a.emitEvent(eventTranscript, map[string]interface{}{"entries": entries})
}

// SessionError emits user-visible failures.
func (a *App) SessionError(code domain.ErrorCode, detail string) {
	a.emitEvent(eventError, map[string]string{
		"code":    string(code),
		"message": errorMessage(code, detail),
		"detail":  detail,
	})
}

func (a *App) miniModeChanged(mini bool) {
	a.emitEvent(eventMiniMode, map[string]bool{"mini": mini})
}

func (a *App) hint() string {
	a.hintMu.Lock()
	defer a.hintMu.Unlock()
	return a.lastHint
}

func (a *App) emitEvent(name string, payload interface{}) {
	ctx := a.runtimeContext()
	if ctx == nil || a.emit == nil {
		return
	}
	a.emit(ctx, name, payload)
}

// panelSurface mirrors presentation state onto the main panel.
type panelSurface struct{ app *App }

func (s panelSurface) PresentationChanged(state domain.PresentationState) {
	s.app.emitEvent(eventState, statePayload(state))
}

// orbSurface mirrors presentation state onto the minimized indicator.
type orbSurface struct{ app *App }

func (s orbSurface) PresentationChanged(state domain.PresentationState) {
	s.app.emitEvent(eventOrb, statePayload(state))
}

func statePayload(state domain.PresentationState) map[string]string {
	return map[string]string{
		"state": string(state),
		"asset": "assets/" + string(state) + ".mp4",
	}
}

func errorMessage(code domain.ErrorCode, detail string) string {
	switch code {
	case domain.ErrorCodeStartup:
		return "Startup failed"
	case domain.ErrorCodeBackend:
		return "Backend failed to start"
	case domain.ErrorCodeTransport:
		return "Connection to backend lost"
	case domain.ErrorCodeHandshake:
		return "Handshake with backend failed"
	case domain.ErrorCodeAudio:
		return "Audio playback issue"
	default:
		if detail == "" {
			return "Unknown error"
		}
		return detail
	}
}

type wailsClipboard struct{}

func (c *wailsClipboard) SetText(ctx context.Context, text string) error {
	return runtime.ClipboardSetText(ctx, text)
}
