package bootstrap

import (
	"errors"
	"io"
	"log/slog"
	"os"

	"deskpet/internal/backend"
	"deskpet/internal/config"
	"deskpet/internal/playback"
	"deskpet/internal/ports"
	"deskpet/internal/realtime"
	"deskpet/internal/usecase"
)

// Services is the assembled runtime graph.
type Services struct {
	Launcher   *backend.Launcher
	Dispatcher *usecase.ConfigDispatcher
	Client     *usecase.SessionClient
	Presenter  *usecase.Presenter
	Transcript *usecase.Transcript
	Pipeline   *playback.Pipeline
	Exporter   *usecase.TranscriptExporter
	Config     config.Config
	Logger     *slog.Logger
}

// Build wires all runtime dependencies. The backend is not launched here.
func Build(eventSink ports.EventSink, clipboard ports.Clipboard) (Services, error) {
	cfg, err := config.Load()
	if err != nil {
		return Services{}, err
	}
	return BuildWithConfig(cfg, eventSink, clipboard, os.Stderr), nil
}

// BuildWithConfig wires the graph from an explicit config, logging to logOut.
func BuildWithConfig(cfg config.Config, eventSink ports.EventSink, clipboard ports.Clipboard, logOut io.Writer) Services {
	logger := newLogger(logOut, cfg.Log.Level)

	presenter := usecase.NewPresenter(logger)
	transcript := usecase.NewTranscript(cfg.Transcript.PreviewWidth)

	var strategies []playback.Strategy
	if cfg.Audio.PrimaryEnabled {
		strategies = append(strategies, playback.NewOutputStrategy(playback.NewOtoFactory(playback.OtoConfig{
			SampleRate: cfg.Audio.SampleRate,
			Channels:   cfg.Audio.Channels,
			BufferSize: cfg.Audio.BufferSize,
		}), logger))
	}
	strategies = append(strategies, playback.NewExternalStrategy(cfg.Audio.PlayerCommand, "", logger))
	pipeline := playback.NewPipeline(strategies, presenter, eventSink, logger)

	dialer := realtime.NewDialer(realtime.Config{HandshakeTimeout: cfg.Session.DialTimeout}, logger)
	client := usecase.NewSessionClient(dialer, presenter, pipeline, transcript, eventSink, logger)
	dispatcher := usecase.NewConfigDispatcher(client, logger)

	launcher := backend.NewLauncher(backend.Config{
		Command:       cfg.Backend.Command,
		Args:          cfg.Backend.Args,
		Host:          cfg.Backend.Host,
		PortMin:       cfg.Backend.PortMin,
		PortMax:       cfg.Backend.PortMax,
		Path:          cfg.Backend.Path,
		ReadySentinel: cfg.Backend.ReadySentinel,
	}, logger)
	launcher.OnReady(func() {
		dispatcher.NotifyBackendReady()
	})

	return Services{
		Launcher:   launcher,
		Dispatcher: dispatcher,
		Client:     client,
		Presenter:  presenter,
		Transcript: transcript,
		Pipeline:   pipeline,
		Exporter:   usecase.NewTranscriptExporter(transcript, clipboard, eventSink),
		Config:     cfg,
		Logger:     logger,
	}
}

// Shutdown stops playback, drops the realtime channel and kills the backend.
func (s Services) Shutdown() error {
	if s.Pipeline != nil {
		s.Pipeline.Close()
	}
	if s.Client != nil {
		if err := s.Client.Disconnect(); err != nil && !errors.Is(err, usecase.ErrNoActiveChannel) {
			s.Logger.Warn("disconnect failed", "err", err)
		}
	}
	if s.Launcher != nil {
		return s.Launcher.Shutdown()
	}
	return nil
}

func newLogger(out io.Writer, level slog.Level) *slog.Logger {
	if out == nil {
		out = io.Discard
	}
	return slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level}))
}
