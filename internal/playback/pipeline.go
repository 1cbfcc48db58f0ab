package playback

import (
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"deskpet/internal/domain"
	"deskpet/internal/ports"
)

const (
	hintInvalidAudio = "Invalid audio received."
	hintNotPlayable  = "Audio format not playable."
)

// HintSink receives short user-facing status lines.
type HintSink interface {
	StatusHint(text string)
}

// Pipeline plays inbound audio payloads one at a time. A new payload always
// preempts the current one.
type Pipeline struct {
	strategies []Strategy
	presenter  ports.PresentationPublisher
	hints      HintSink
	logger     *slog.Logger

	mu     sync.Mutex
	active *session
	closed bool
}

type session struct {
	id       string
	strategy string
	handle   Handle
}

func NewPipeline(strategies []Strategy, presenter ports.PresentationPublisher, hints HintSink, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Pipeline{
		strategies: strategies,
		presenter:  presenter,
		hints:      hints,
		logger:     logger.With("component", "playback"),
	}
}

// Play tears down any active playback, then decodes and starts the payload.
func (p *Pipeline) Play(payload, mime string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopLocked()
	if p.closed {
		return
	}

	data, err := DecodePayload(payload)
	if err != nil {
		p.logger.Warn("invalid audio payload", "err", err)
		p.hint(hintInvalidAudio)
		p.publish(domain.PresentationIdle)
		return
	}

	clip := Clip{ID: uuid.NewString(), Data: data, MIME: normalizeMIME(mime)}
	for _, strategy := range p.strategies {
		id := clip.ID
		handle, outcome, err := strategy.Start(clip, func(err error) {
			p.finished(id, err)
		})
		switch outcome {
		case OutcomeStarted:
			p.active = &session{id: clip.ID, strategy: strategy.Name(), handle: handle}
			p.logger.Debug("playback started", "clip", clip.ID, "strategy", strategy.Name(), "mime", clip.MIME, "bytes", len(data))
			p.hint("speaking (" + clip.MIME + ")")
			p.publish(domain.PresentationSpeaking)
			return
		case OutcomeUnsupported:
			p.logger.Debug("strategy cannot play clip", "clip", clip.ID, "strategy", strategy.Name(), "err", err)
			continue
		default:
			if err == nil {
				err = errors.New("playback failed")
			}
			p.logger.Warn("playback failed to start", "clip", clip.ID, "strategy", strategy.Name(), "err", err)
			p.hint(err.Error())
			p.publish(domain.PresentationIdle)
			return
		}
	}

	p.logger.Warn("no strategy could play clip", "clip", clip.ID, "mime", clip.MIME)
	p.hint(hintNotPlayable)
	p.publish(domain.PresentationIdle)
}

// Stop halts the active playback without changing presentation state.
// Safe to call when nothing is playing.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
}

// Close stops playback and rejects later payloads.
func (p *Pipeline) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
	p.closed = true
}

// Active reports the id of the playing clip, if any.
func (p *Pipeline) Active() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.active == nil {
		return "", false
	}
	return p.active.id, true
}

func (p *Pipeline) stopLocked() {
	if p.active == nil {
		return
	}
	current := p.active
	p.active = nil
	current.handle.Stop()
	p.logger.Debug("playback stopped", "clip", current.id, "strategy", current.strategy)
}

func (p *Pipeline) finished(id string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.active == nil || p.active.id != id {
		return
	}
	current := p.active
	p.active = nil
	current.handle.Stop()
	if err != nil {
		p.logger.Warn("playback ended with error", "clip", id, "strategy", current.strategy, "err", err)
	} else {
		p.logger.Debug("playback finished", "clip", id, "strategy", current.strategy)
	}
	p.publish(domain.PresentationIdle)
}

func (p *Pipeline) hint(text string) {
	if p.hints != nil {
		p.hints.StatusHint(text)
	}
}

func (p *Pipeline) publish(state domain.PresentationState) {
	if p.presenter != nil {
		p.presenter.Publish(state)
	}
}
