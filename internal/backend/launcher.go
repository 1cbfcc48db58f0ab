package backend

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sethvargo/go-retry"

	"deskpet/internal/domain"
)

var ErrAlreadyLaunched = errors.New("backend process already launched")

const (
	tokenBytes       = 32
	portAttempts     = 20
	shutdownDeadline = 3 * time.Second
)

// Config controls how the backend process is launched.
type Config struct {
	Command       string
	Args          []string
	Host          string
	PortMin       int
	PortMax       int
	Path          string
	ReadySentinel string
}

// Launcher issues the session credential and owns the backend child process.
type Launcher struct {
	cfg    Config
	logger *slog.Logger

	mu       sync.Mutex
	onReady  func()
	cmd      *exec.Cmd
	launched bool
	done     chan struct{}

	ready atomic.Bool
}

func NewLauncher(cfg Config, logger *slog.Logger) *Launcher {
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.PortMin <= 0 {
		cfg.PortMin = 18000
	}
	if cfg.PortMax < cfg.PortMin {
		cfg.PortMax = cfg.PortMin
	}
	if cfg.Path == "" {
		cfg.Path = "/ws"
	}
	if cfg.ReadySentinel == "" {
		cfg.ReadySentinel = "READY"
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Launcher{cfg: cfg, logger: logger.With("component", "backend")}
}

// OnReady registers the callback fired once the readiness sentinel is observed.
func (l *Launcher) OnReady(fn func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onReady = fn
}

// Ready reports whether the backend printed its readiness sentinel.
func (l *Launcher) Ready() bool {
	return l.ready.Load()
}

// Issue picks an endpoint and token and launches the backend with them.
func (l *Launcher) Issue(ctx context.Context) (domain.Credential, error) {
	l.mu.Lock()
	if l.launched {
		l.mu.Unlock()
		return domain.Credential{}, ErrAlreadyLaunched
	}
	l.launched = true
	l.mu.Unlock()

	port, err := l.pickPort(ctx)
	if err != nil {
		return domain.Credential{}, err
	}
	token, err := newToken()
	if err != nil {
		return domain.Credential{}, err
	}

	cmd := exec.CommandContext(ctx, l.cfg.Command, l.cfg.Args...)
	cmd.Env = append(os.Environ(),
		"BACKEND_HOST="+l.cfg.Host,
		"BACKEND_PORT="+strconv.Itoa(port),
		"BACKEND_TOKEN="+token,
		"PYTHONUNBUFFERED=1",
	)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return domain.Credential{}, fmt.Errorf("failed to create backend stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return domain.Credential{}, fmt.Errorf("failed to create backend stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return domain.Credential{}, fmt.Errorf("failed to start backend: %w", err)
	}

	cred := domain.Credential{
		Endpoint: "ws://" + net.JoinHostPort(l.cfg.Host, strconv.Itoa(port)) + l.cfg.Path,
		Token:    token,
	}

	done := make(chan struct{})
	l.mu.Lock()
	l.cmd = cmd
	l.done = done
	l.mu.Unlock()

	var pipes sync.WaitGroup
	pipes.Add(2)
	go func() {
		defer pipes.Done()
		l.watchStdout(stdout, token)
	}()
	go func() {
		defer pipes.Done()
		l.forwardStderr(stderr, token)
	}()
	go func() {
		pipes.Wait()
		err := cmd.Wait()
		if !l.ready.Load() {
			l.logger.Error("backend exited before ready", "err", err)
		} else {
			l.logger.Info("backend exited", "err", err)
		}
		close(done)
	}()

	l.logger.Info("backend launched", "pid", cmd.Process.Pid, "endpoint", cred.Redacted())
	return cred, nil
}

// Shutdown terminates the backend unconditionally.
func (l *Launcher) Shutdown() error {
	l.mu.Lock()
	cmd := l.cmd
	done := l.done
	l.mu.Unlock()

	if cmd == nil || cmd.Process == nil {
		return nil
	}
	if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("failed to kill backend: %w", err)
	}

	select {
	case <-done:
		return nil
	case <-time.After(shutdownDeadline):
		return errors.New("backend did not exit after kill")
	}
}

func (l *Launcher) watchStdout(r io.Reader, token string) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := redact(scanner.Text(), token)
		l.logger.Info("backend output", "line", line)
		if strings.Contains(line, l.cfg.ReadySentinel) && l.ready.CompareAndSwap(false, true) {
			l.logger.Info("backend ready")
			l.mu.Lock()
			onReady := l.onReady
			l.mu.Unlock()
			if onReady != nil {
				onReady()
			}
		}
	}
}

func (l *Launcher) forwardStderr(r io.Reader, token string) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		l.logger.Warn("backend error output", "line", redact(scanner.Text(), token))
	}
}

func (l *Launcher) pickPort(ctx context.Context) (int, error) {
	span := int64(l.cfg.PortMax - l.cfg.PortMin + 1)
	var chosen int

	backoff := retry.WithMaxRetries(portAttempts-1, retry.NewConstant(5*time.Millisecond))
	err := retry.Do(ctx, backoff, func(_ context.Context) error {
		offset, err := rand.Int(rand.Reader, big.NewInt(span))
		if err != nil {
			return fmt.Errorf("failed to draw port: %w", err)
		}
		port := l.cfg.PortMin + int(offset.Int64())
		listener, err := net.Listen("tcp", net.JoinHostPort(l.cfg.Host, strconv.Itoa(port)))
		if err != nil {
			return retry.RetryableError(fmt.Errorf("port %d unavailable: %w", port, err))
		}
		_ = listener.Close()
		chosen = port
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("no free port in %d-%d: %w", l.cfg.PortMin, l.cfg.PortMax, err)
	}
	return chosen, nil
}

func newToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate session token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func redact(line string, token string) string {
	if token == "" {
		return line
	}
	return strings.ReplaceAll(line, token, "[redacted]")
}
