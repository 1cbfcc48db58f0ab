package playback

import (
	"bytes"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Format describes the sample layout an Output renders.
type Format struct {
	SampleRate int
	Channels   int
}

// Output is a low-latency audio device. One exists per process.
type Output interface {
	Format() Format
	Resume() error
	NewVoice(r io.Reader) Voice
}

// Voice is one stream rendered by an Output.
type Voice interface {
	Play()
	IsPlaying() bool
	Err() error
	Stop()
}

// OutputFactory creates the process-wide Output.
type OutputFactory func() (Output, error)

// OutputStrategy plays clips through a lazily created, shared Output.
type OutputStrategy struct {
	factory OutputFactory
	poll    time.Duration
	logger  *slog.Logger

	mu        sync.Mutex
	attempted bool
	output    Output
	outputErr error
}

func NewOutputStrategy(factory OutputFactory, logger *slog.Logger) *OutputStrategy {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &OutputStrategy{
		factory: factory,
		poll:    20 * time.Millisecond,
		logger:  logger.With("strategy", "output"),
	}
}

func (s *OutputStrategy) Name() string {
	return "output"
}

func (s *OutputStrategy) Start(clip Clip, onEnd func(err error)) (Handle, Outcome, error) {
	out, err := s.acquire()
	if err != nil {
		return nil, OutcomeUnsupported, err
	}
	if err := out.Resume(); err != nil {
		s.logger.Debug("output resume failed", "err", err)
	}

	decoded, err := decodeClip(clip)
	if err != nil {
		return nil, OutcomeUnsupported, err
	}
	samples, err := conform(decoded, out.Format())
	if err != nil {
		return nil, OutcomeUnsupported, err
	}

	voice := out.NewVoice(bytes.NewReader(samples))
	voice.Play()

	handle := &voiceHandle{voice: voice, quit: make(chan struct{})}
	go handle.watch(s.poll, onEnd)
	return handle, OutcomeStarted, nil
}

// acquire creates the Output on first use and reuses it afterwards.
// A creation failure is remembered so later clips go straight to the fallback.
func (s *OutputStrategy) acquire() (Output, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.attempted {
		s.attempted = true
		if s.factory == nil {
			s.outputErr = ErrNoOutput
		} else {
			s.output, s.outputErr = s.factory()
		}
		if s.outputErr != nil {
			s.logger.Warn("audio output unavailable", "err", s.outputErr)
		}
	}
	return s.output, s.outputErr
}

type voiceHandle struct {
	voice    Voice
	quit     chan struct{}
	stopped  atomic.Bool
	stopOnce sync.Once
}

func (h *voiceHandle) Stop() {
	h.stopOnce.Do(func() {
		h.stopped.Store(true)
		close(h.quit)
		h.voice.Stop()
	})
}

func (h *voiceHandle) watch(poll time.Duration, onEnd func(err error)) {
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		select {
		case <-h.quit:
			return
		case <-ticker.C:
			if h.voice.IsPlaying() {
				continue
			}
			if h.stopped.Load() {
				return
			}
			onEnd(h.voice.Err())
			return
		}
	}
}
