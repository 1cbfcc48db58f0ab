package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"deskpet/internal/domain"
	"deskpet/internal/ports"
)

type fakeDialer struct {
	mu        sync.Mutex
	err       error
	endpoints []string
	channels  []*fakeChannel
}

func (f *fakeDialer) Open(_ context.Context, endpoint string, _ ports.ChannelHandler) (ports.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	ch := &fakeChannel{id: fmt.Sprintf("ch-%d", len(f.channels)+1)}
	f.endpoints = append(f.endpoints, endpoint)
	f.channels = append(f.channels, ch)
	return ch, nil
}

func (f *fakeDialer) opens() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.channels)
}

func (f *fakeDialer) channel(i int) *fakeChannel {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.channels[i]
}

func (f *fakeDialer) endpoint(i int) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.endpoints[i]
}

type fakeChannel struct {
	id string

	mu         sync.Mutex
	sent       []string
	sendErr    error
	closeCalls int
}

func (f *fakeChannel) ID() string { return f.id }

func (f *fakeChannel) Send(v any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closeCalls > 0 {
		return errors.New("closed")
	}
	if f.sendErr != nil {
		return f.sendErr
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	f.sent = append(f.sent, string(data))
	return nil
}

func (f *fakeChannel) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeCalls++
	return nil
}

func (f *fakeChannel) snapshotSent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

func (f *fakeChannel) closes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closeCalls
}

type recordingSurface struct {
	mu     sync.Mutex
	states []domain.PresentationState
}

func (s *recordingSurface) PresentationChanged(state domain.PresentationState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states = append(s.states, state)
}

func (s *recordingSurface) last() domain.PresentationState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.states) == 0 {
		return ""
	}
	return s.states[len(s.states)-1]
}

func (s *recordingSurface) snapshot() []domain.PresentationState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.PresentationState(nil), s.states...)
}

type fakePlayer struct {
	mu    sync.Mutex
	plays []playCall
	stops int
}

type playCall struct {
	payload string
	mime    string
}

func (f *fakePlayer) Play(payload string, mime string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.plays = append(f.plays, playCall{payload: payload, mime: mime})
}

func (f *fakePlayer) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
}

func (f *fakePlayer) snapshot() ([]playCall, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]playCall(nil), f.plays...), f.stops
}

type fakeEventSink struct {
	mu sync.Mutex

	hints    []string
	previews []string
	fulls    [][]domain.TranscriptEntry
	errors   []errEvent
}

type errEvent struct {
	code   domain.ErrorCode
	detail string
}

func (f *fakeEventSink) StatusHint(text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hints = append(f.hints, text)
}

func (f *fakeEventSink) TranscriptPreview(text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.previews = append(f.previews, text)
}

func (f *fakeEventSink) TranscriptFull(entries []domain.TranscriptEntry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fulls = append(f.fulls, entries)
}

func (f *fakeEventSink) SessionError(code domain.ErrorCode, detail string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors = append(f.errors, errEvent{code: code, detail: detail})
}

func (f *fakeEventSink) snapshotHints() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.hints...)
}

func (f *fakeEventSink) snapshotPreviews() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.previews...)
}

func (f *fakeEventSink) snapshotFulls() [][]domain.TranscriptEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]domain.TranscriptEntry(nil), f.fulls...)
}

func (f *fakeEventSink) snapshotErrors() []errEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]errEvent, len(f.errors))
	copy(out, f.errors)
	return out
}

type fakeClipboard struct {
	mu       sync.Mutex
	lastText string
	err      error
}

func (f *fakeClipboard) SetText(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastText = text
	return f.err
}

type fakeConfigTarget struct {
	mu        sync.Mutex
	delivered []domain.Credential
}

func (f *fakeConfigTarget) DeliverConfig(cred domain.Credential) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delivered = append(f.delivered, cred)
}

func (f *fakeConfigTarget) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.delivered)
}
