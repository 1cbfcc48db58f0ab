package playback

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

var ErrNoPlayer = errors.New("no audio player available")

// ExternalStrategy hands clips to a media player process. It accepts any
// container the player understands, so it sits last in the chain.
type ExternalStrategy struct {
	command string
	tempDir string
	logger  *slog.Logger
}

func NewExternalStrategy(command, tempDir string, logger *slog.Logger) *ExternalStrategy {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &ExternalStrategy{
		command: strings.TrimSpace(command),
		tempDir: tempDir,
		logger:  logger.With("strategy", "external"),
	}
}

func (s *ExternalStrategy) Name() string {
	return "external"
}

func (s *ExternalStrategy) Start(clip Clip, onEnd func(err error)) (Handle, Outcome, error) {
	if s.command == "" {
		return nil, OutcomeFailed, ErrNoPlayer
	}

	input, cleanup := s.stage(clip)
	cmd := exec.Command(s.command, playerArgs(s.command, input)...)
	if input == "-" {
		cmd.Stdin = bytes.NewReader(clip.Data)
	}
	stderr := &lockedBuffer{}
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		cleanup()
		return nil, OutcomeFailed, fmt.Errorf("failed to start %s: %w", filepath.Base(s.command), err)
	}
	s.logger.Debug("player started", "clip", clip.ID, "input", input, "pid", cmd.Process.Pid)

	h := &processHandle{
		process: cmd.Process,
		stderr:  stderr,
		waitErr: make(chan error, 1),
		cleanup: cleanup,
	}
	go func() {
		err := cmd.Wait()
		h.waitErr <- err
		close(h.waitErr)
		h.release()
		if h.stopped.Load() {
			return
		}
		onEnd(h.exitErr(err))
	}()
	return h, OutcomeStarted, nil
}

// stage writes the clip to a temp file named with a matching extension.
// When that is not possible the clip is streamed over stdin instead.
func (s *ExternalStrategy) stage(clip Clip) (string, func()) {
	file, err := os.CreateTemp(s.tempDir, "deskpet-*"+clip.extension())
	if err != nil {
		s.logger.Debug("temp file unavailable, using stdin", "err", err)
		return "-", func() {}
	}
	name := file.Name()
	_, writeErr := file.Write(clip.Data)
	closeErr := file.Close()
	if writeErr != nil || closeErr != nil {
		_ = os.Remove(name)
		s.logger.Debug("temp file write failed, using stdin", "err", errors.Join(writeErr, closeErr))
		return "-", func() {}
	}
	return name, func() {
		if err := os.Remove(name); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.Debug("temp file cleanup failed", "path", name, "err", err)
		}
	}
}

func playerArgs(command, input string) []string {
	switch strings.TrimSuffix(filepath.Base(command), ".exe") {
	case "ffplay":
		return []string{"-nodisp", "-autoexit", "-loglevel", "error", input}
	case "mpv":
		return []string{"--no-video", "--really-quiet", input}
	default:
		return []string{input}
	}
}

type processHandle struct {
	process *os.Process
	stderr  *lockedBuffer
	waitErr chan error
	cleanup func()

	stopped     atomic.Bool
	stopOnce    sync.Once
	releaseOnce sync.Once
}

func (h *processHandle) Stop() {
	h.stopOnce.Do(func() {
		h.stopped.Store(true)
		if h.process != nil {
			_ = h.process.Kill()
		}
		select {
		case <-h.waitErr:
		case <-time.After(2 * time.Second):
		}
		h.release()
	})
}

func (h *processHandle) release() {
	h.releaseOnce.Do(h.cleanup)
}

func (h *processHandle) exitErr(err error) error {
	if err == nil {
		return nil
	}
	if detail := strings.TrimSpace(h.stderr.String()); detail != "" {
		return fmt.Errorf("player exited: %w: %s", err, detail)
	}
	return fmt.Errorf("player exited: %w", err)
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
