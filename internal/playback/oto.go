package playback

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ebitengine/oto/v3"
)

var ErrNoOutput = errors.New("no audio output available")

// OtoConfig sizes the shared oto context.
type OtoConfig struct {
	SampleRate int
	Channels   int
	BufferSize time.Duration
}

// NewOtoFactory returns a factory for the process-wide oto context.
// oto allows a single context per process, which matches the Output contract.
func NewOtoFactory(cfg OtoConfig) OutputFactory {
	return func() (Output, error) {
		ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
			SampleRate:   cfg.SampleRate,
			ChannelCount: cfg.Channels,
			Format:       oto.FormatSignedInt16LE,
			BufferSize:   cfg.BufferSize,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNoOutput, err)
		}
		<-ready
		return &otoOutput{
			ctx:    ctx,
			format: Format{SampleRate: cfg.SampleRate, Channels: cfg.Channels},
		}, nil
	}
}

type otoOutput struct {
	ctx    *oto.Context
	format Format
}

func (o *otoOutput) Format() Format {
	return o.format
}

func (o *otoOutput) Resume() error {
	return o.ctx.Resume()
}

func (o *otoOutput) NewVoice(r io.Reader) Voice {
	return &otoVoice{player: o.ctx.NewPlayer(r)}
}

// otoPlayer is the part of *oto.Player a voice drives.
type otoPlayer interface {
	Play()
	Pause()
	IsPlaying() bool
	Err() error
	Close() error
}

type otoVoice struct {
	player otoPlayer
}

func (v *otoVoice) Play() {
	v.player.Play()
}

func (v *otoVoice) IsPlaying() bool {
	return v.player.IsPlaying()
}

func (v *otoVoice) Err() error {
	return v.player.Err()
}

// Stop silences the voice and releases its player. The voice is unusable
// afterwards.
func (v *otoVoice) Stop() {
	v.player.Pause()
	_ = v.player.Close()
}
