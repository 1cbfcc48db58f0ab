package backend

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestLauncherIssueSignalsReadyAndPassesEnvironment(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	envFile := filepath.Join(dir, "env.out")
	script := writeScript(t, dir, "backend.sh", "#!/usr/bin/env bash\n"+
		"printf '%s\\n%s\\n%s\\n%s\\n' \"$BACKEND_HOST\" \"$BACKEND_PORT\" \"$BACKEND_TOKEN\" \"$#\" > "+envFile+"\n"+
		"echo 'booting'\n"+
		"echo \"READY $BACKEND_HOST:$BACKEND_PORT\"\n"+
		"exec sleep 5\n")

	logs := &syncBuffer{}
	launcher := NewLauncher(Config{
		Command: script,
		PortMin: 18000,
		PortMax: 19999,
	}, slog.New(slog.NewTextHandler(logs, nil)))

	ready := make(chan struct{})
	var once sync.Once
	launcher.OnReady(func() { once.Do(func() { close(ready) }) })

	cred, err := launcher.Issue(context.Background())
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	t.Cleanup(func() { _ = launcher.Shutdown() })

	select {
	case <-ready:
	case <-time.After(3 * time.Second):
		t.Fatalf("backend never became ready")
	}
	if !launcher.Ready() {
		t.Fatalf("expected ready flag")
	}

	endpoint, err := url.Parse(cred.Endpoint)
	if err != nil {
		t.Fatalf("invalid endpoint %q: %v", cred.Endpoint, err)
	}
	if endpoint.Scheme != "ws" || endpoint.Path != "/ws" || endpoint.Hostname() != "127.0.0.1" {
		t.Fatalf("unexpected endpoint: %q", cred.Endpoint)
	}
	port, _ := strconv.Atoi(endpoint.Port())
	if port < 18000 || port > 19999 {
		t.Fatalf("port outside candidate range: %d", port)
	}
	if len(cred.Token) != 64 {
		t.Fatalf("expected 64 hex token, got %d chars", len(cred.Token))
	}

	contents, err := os.ReadFile(envFile)
	if err != nil {
		t.Fatalf("read env output: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(contents)), "\n")
	if len(lines) != 4 {
		t.Fatalf("unexpected env output: %q", contents)
	}
	if lines[0] != "127.0.0.1" || lines[1] != endpoint.Port() || lines[2] != cred.Token {
		t.Fatalf("backend did not receive credential via environment: %q", lines)
	}
	if lines[3] != "0" {
		t.Fatalf("expected no command-line arguments, got %s", lines[3])
	}

	if strings.Contains(logs.String(), cred.Token) {
		t.Fatalf("token leaked into logs")
	}
}

func TestLauncherRedactsTokenInOutput(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	script := writeScript(t, dir, "leaky.sh", "#!/usr/bin/env bash\n"+
		"echo \"token is $BACKEND_TOKEN\"\n"+
		"echo \"oops $BACKEND_TOKEN\" 1>&2\n"+
		"echo READY\n"+
		"exec sleep 5\n")

	logs := &syncBuffer{}
	launcher := NewLauncher(Config{Command: script}, slog.New(slog.NewTextHandler(logs, nil)))
	ready := make(chan struct{})
	launcher.OnReady(func() { close(ready) })

	cred, err := launcher.Issue(context.Background())
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	<-ready
	if err := launcher.Shutdown(); err != nil {
		t.Fatalf("shutdown failed: %v", err)
	}

	out := logs.String()
	if strings.Contains(out, cred.Token) {
		t.Fatalf("token leaked into logs: %s", out)
	}
	if !strings.Contains(out, "[redacted]") {
		t.Fatalf("expected redaction marker in logs: %s", out)
	}
}

func TestLauncherExitBeforeReadyStaysNotReady(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	script := writeScript(t, dir, "fail.sh", "#!/usr/bin/env bash\necho 'boom' 1>&2\nexit 1\n")

	launcher := NewLauncher(Config{Command: script}, nil)
	called := make(chan struct{}, 1)
	launcher.OnReady(func() { called <- struct{}{} })

	if _, err := launcher.Issue(context.Background()); err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	launcher.mu.Lock()
	done := launcher.done
	launcher.mu.Unlock()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatalf("backend did not exit")
	}

	if launcher.Ready() {
		t.Fatalf("expected backend to remain not ready")
	}
	select {
	case <-called:
		t.Fatalf("ready callback must not fire")
	default:
	}
}

func TestLauncherIssuesOnlyOnce(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	script := writeScript(t, dir, "backend.sh", "#!/usr/bin/env bash\nexec sleep 5\n")
	launcher := NewLauncher(Config{Command: script}, nil)

	if _, err := launcher.Issue(context.Background()); err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	t.Cleanup(func() { _ = launcher.Shutdown() })

	if _, err := launcher.Issue(context.Background()); !errors.Is(err, ErrAlreadyLaunched) {
		t.Fatalf("expected ErrAlreadyLaunched, got %v", err)
	}
}

func TestLauncherShutdownKillsProcess(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	script := writeScript(t, dir, "backend.sh", "#!/usr/bin/env bash\necho READY\nexec sleep 30\n")
	launcher := NewLauncher(Config{Command: script}, nil)

	if _, err := launcher.Issue(context.Background()); err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	start := time.Now()
	if err := launcher.Shutdown(); err != nil {
		t.Fatalf("shutdown failed: %v", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Fatalf("shutdown took too long")
	}
}

func TestLauncherShutdownWithoutLaunch(t *testing.T) {
	t.Parallel()

	if err := NewLauncher(Config{}, nil).Shutdown(); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestLauncherStartFailure(t *testing.T) {
	t.Parallel()

	launcher := NewLauncher(Config{Command: filepath.Join(t.TempDir(), "missing")}, nil)
	if _, err := launcher.Issue(context.Background()); err == nil {
		t.Fatalf("expected start error")
	}
}

func TestPickPortSkipsBusyPort(t *testing.T) {
	t.Parallel()

	busy, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen failed: %v", err)
	}
	defer busy.Close()
	busyPort := busy.Addr().(*net.TCPAddr).Port

	launcher := NewLauncher(Config{PortMin: busyPort, PortMax: busyPort}, nil)
	if _, err := launcher.pickPort(context.Background()); err == nil {
		t.Fatalf("expected error when the only candidate is taken")
	}
}

func TestNewTokenEntropy(t *testing.T) {
	t.Parallel()

	a, err := newToken()
	if err != nil {
		t.Fatalf("token failed: %v", err)
	}
	b, err := newToken()
	if err != nil {
		t.Fatalf("token failed: %v", err)
	}
	if a == b || len(a) != 64 {
		t.Fatalf("unexpected tokens: %q %q", a, b)
	}
}

func writeScript(t *testing.T, dir string, name string, contents string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(contents), 0o700); err != nil {
		t.Fatalf("failed to write script: %v", err)
	}
	return path
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
