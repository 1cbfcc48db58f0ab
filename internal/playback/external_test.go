package playback

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestExternalStrategyPlaysToNaturalEnd(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	stage := t.TempDir()
	got := filepath.Join(dir, "got")
	script := writeScript(t, "player.sh", "#!/usr/bin/env bash\ncat \"$1\" > "+got+"\n")
	strategy := NewExternalStrategy(script, stage, nil)

	ended := make(chan error, 1)
	_, outcome, err := strategy.Start(Clip{ID: "c1", Data: []byte("audio-bytes"), MIME: "audio/mpeg"}, func(err error) {
		ended <- err
	})
	if outcome != OutcomeStarted || err != nil {
		t.Fatalf("expected started, got %v %v", outcome, err)
	}

	waitEnd(t, ended, func(err error) {
		if err != nil {
			t.Fatalf("unexpected end error: %v", err)
		}
	})

	data, err := os.ReadFile(got)
	if err != nil {
		t.Fatalf("player did not receive clip: %v", err)
	}
	if string(data) != "audio-bytes" {
		t.Fatalf("unexpected clip contents: %q", data)
	}
	assertNoStagedFiles(t, stage)
}

func TestExternalStrategyReportsPlayerError(t *testing.T) {
	t.Parallel()

	script := writeScript(t, "player.sh", "#!/usr/bin/env bash\necho 'codec missing' 1>&2\nexit 3\n")
	strategy := NewExternalStrategy(script, t.TempDir(), nil)

	ended := make(chan error, 1)
	_, outcome, err := strategy.Start(Clip{Data: []byte("x"), MIME: "audio/ogg"}, func(err error) { ended <- err })
	if outcome != OutcomeStarted || err != nil {
		t.Fatalf("expected started, got %v %v", outcome, err)
	}

	waitEnd(t, ended, func(err error) {
		if err == nil || !strings.Contains(err.Error(), "codec missing") {
			t.Fatalf("expected stderr in end error, got %v", err)
		}
	})
}

func TestExternalStrategyStopKillsPlayerWithoutCallback(t *testing.T) {
	t.Parallel()

	stage := t.TempDir()
	script := writeScript(t, "player.sh", "#!/usr/bin/env bash\nexec sleep 5\n")
	strategy := NewExternalStrategy(script, stage, nil)

	ended := make(chan error, 1)
	handle, outcome, err := strategy.Start(Clip{Data: []byte("x"), MIME: "audio/mpeg"}, func(err error) { ended <- err })
	if outcome != OutcomeStarted || err != nil {
		t.Fatalf("expected started, got %v %v", outcome, err)
	}

	start := time.Now()
	handle.Stop()
	handle.Stop()
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("stop took too long: %v", elapsed)
	}

	select {
	case err := <-ended:
		t.Fatalf("unexpected end callback after stop: %v", err)
	case <-time.After(100 * time.Millisecond):
	}
	assertNoStagedFiles(t, stage)
}

func TestExternalStrategyStreamsStdinWhenStagingFails(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	got := filepath.Join(dir, "got")
	script := writeScript(t, "player.sh", "#!/usr/bin/env bash\n[ \"$1\" = \"-\" ] || exit 9\ncat > "+got+"\n")
	strategy := NewExternalStrategy(script, filepath.Join(dir, "missing"), nil)

	ended := make(chan error, 1)
	_, outcome, err := strategy.Start(Clip{Data: []byte("piped"), MIME: "audio/mpeg"}, func(err error) { ended <- err })
	if outcome != OutcomeStarted || err != nil {
		t.Fatalf("expected started, got %v %v", outcome, err)
	}
	waitEnd(t, ended, func(err error) {
		if err != nil {
			t.Fatalf("unexpected end error: %v", err)
		}
	})

	data, err := os.ReadFile(got)
	if err != nil {
		t.Fatalf("player did not receive stdin: %v", err)
	}
	if string(data) != "piped" {
		t.Fatalf("unexpected stdin contents: %q", data)
	}
}

func TestExternalStrategyStartFailures(t *testing.T) {
	t.Parallel()

	_, outcome, err := NewExternalStrategy("", "", nil).Start(Clip{Data: []byte("x")}, func(error) {})
	if outcome != OutcomeFailed || !errors.Is(err, ErrNoPlayer) {
		t.Fatalf("expected ErrNoPlayer, got %v %v", outcome, err)
	}

	stage := t.TempDir()
	missing := filepath.Join(t.TempDir(), "no-such-player")
	_, outcome, err = NewExternalStrategy(missing, stage, nil).Start(Clip{Data: []byte("x")}, func(error) {})
	if outcome != OutcomeFailed || err == nil {
		t.Fatalf("expected start failure, got %v %v", outcome, err)
	}
	assertNoStagedFiles(t, stage)
}

func TestPlayerArgs(t *testing.T) {
	t.Parallel()

	cases := []struct {
		command string
		want    []string
	}{
		{command: "/usr/bin/ffplay", want: []string{"-nodisp", "-autoexit", "-loglevel", "error", "in.mp3"}},
		{command: "mpv", want: []string{"--no-video", "--really-quiet", "in.mp3"}},
		{command: "afplay", want: []string{"in.mp3"}},
	}
	for _, tc := range cases {
		if got := playerArgs(tc.command, "in.mp3"); !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("playerArgs(%q) = %v, want %v", tc.command, got, tc.want)
		}
	}
}

func waitEnd(t *testing.T, ended <-chan error, check func(error)) {
	t.Helper()
	select {
	case err := <-ended:
		check(err)
	case <-time.After(3 * time.Second):
		t.Fatalf("expected end callback")
	}
}

func assertNoStagedFiles(t *testing.T, dir string) {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, "deskpet-*"))
	if err != nil {
		t.Fatalf("glob failed: %v", err)
	}
	if len(matches) != 0 {
		t.Fatalf("expected staged files removed, found %v", matches)
	}
}

func writeScript(t *testing.T, name string, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(contents), 0o700); err != nil {
		t.Fatalf("failed to write script: %v", err)
	}
	return path
}
