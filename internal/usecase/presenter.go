package usecase

import (
	"io"
	"log/slog"
	"sync"

	"deskpet/internal/domain"
	"deskpet/internal/ports"
)

// Presenter owns the presentation state and fans every transition out to
// all subscribed surfaces before returning.
type Presenter struct {
	logger *slog.Logger

	mu       sync.Mutex
	current  domain.PresentationState
	nextID   int
	surfaces []surfaceSubscription
}

type surfaceSubscription struct {
	id      int
	surface ports.PresentationSurface
}

func NewPresenter(logger *slog.Logger) *Presenter {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Presenter{
		logger:  logger.With("component", "presenter"),
		current: domain.PresentationIdle,
	}
}

// Publish applies state to every surface. Unknown values become idle.
func (p *Presenter) Publish(state domain.PresentationState) {
	state = domain.ParsePresentationState(string(state))

	p.mu.Lock()
	defer p.mu.Unlock()

	if state != p.current {
		p.logger.Debug("presentation changed", "from", p.current, "to", state)
	}
	p.current = state
	for _, sub := range p.surfaces {
		sub.surface.PresentationChanged(state)
	}
}

// Subscribe attaches a surface and immediately brings it up to date.
func (p *Presenter) Subscribe(surface ports.PresentationSurface) func() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.nextID++
	id := p.nextID
	p.surfaces = append(p.surfaces, surfaceSubscription{id: id, surface: surface})
	surface.PresentationChanged(p.current)

	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		for i, sub := range p.surfaces {
			if sub.id == id {
				p.surfaces = append(p.surfaces[:i:i], p.surfaces[i+1:]...)
				return
			}
		}
	}
}

func (p *Presenter) Current() domain.PresentationState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}
