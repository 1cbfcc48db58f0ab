package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"deskpet/internal/domain"
	"deskpet/internal/ports"
)

var (
	ErrInvalidCredential = errors.New("invalid session credential")
	ErrNoActiveChannel   = errors.New("no active realtime channel")
)

const audioErrorFallback = "Audio unavailable."

// SessionClient drives the realtime channel to the backend and dispatches
// inbound events to presentation, transcript and playback.
type SessionClient struct {
	dialer     ports.ChannelDialer
	presenter  ports.PresentationPublisher
	player     ports.AudioPlayer
	transcript *Transcript
	events     ports.EventSink
	logger     *slog.Logger

	mu      sync.Mutex
	channel ports.Channel
	key     string
	token   string
	state   domain.ConnectionState
}

func NewSessionClient(
	dialer ports.ChannelDialer,
	presenter ports.PresentationPublisher,
	player ports.AudioPlayer,
	transcript *Transcript,
	events ports.EventSink,
	logger *slog.Logger,
) *SessionClient {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if transcript == nil {
		transcript = NewTranscript(DefaultPreviewWidth)
	}
	return &SessionClient{
		dialer:     dialer,
		presenter:  presenter,
		player:     player,
		transcript: transcript,
		events:     events,
		logger:     logger.With("component", "session"),
		state:      domain.ConnectionDisconnected,
	}
}

// Configure opens a channel for cred. A call with the credential of a channel
// that is already connecting or open is a no-op.
func (c *SessionClient) Configure(ctx context.Context, cred domain.Credential) error {
	if !cred.Valid() {
		return ErrInvalidCredential
	}
	key := cred.Key()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.channel != nil && c.key == key && c.state != domain.ConnectionDisconnected && c.state != domain.ConnectionClosing {
		c.logger.Debug("configure ignored, channel already active", "credential", cred.Redacted(), "state", c.state)
		return nil
	}

	if previous := c.channel; previous != nil {
		c.logger.Info("replacing realtime channel", "channel", previous.ID())
		c.detachLocked()
		_ = previous.Close()
	}

	ch, err := c.dialer.Open(ctx, cred.Endpoint, c)
	if err != nil {
		c.state = domain.ConnectionDisconnected
		c.logger.Error("failed to open realtime channel", "credential", cred.Redacted(), "err", err)
		c.presenter.Publish(domain.PresentationError)
		c.emitError(domain.ErrorCodeTransport, err.Error())
		return fmt.Errorf("open realtime channel: %w", err)
	}

	c.channel = ch
	c.key = key
	c.token = cred.Token
	c.state = domain.ConnectionConnecting
	c.logger.Info("connecting", "channel", ch.ID(), "credential", cred.Redacted())
	return nil
}

// DeliverConfig lets the dispatcher hand credentials straight to the client.
func (c *SessionClient) DeliverConfig(cred domain.Credential) {
	if err := c.Configure(context.Background(), cred); err != nil {
		c.logger.Warn("configure failed", "err", err)
	}
}

func (c *SessionClient) ChannelOpened(ch ports.Channel) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.isCurrentLocked(ch) {
		return
	}
	c.state = domain.ConnectionAuthenticating
	if err := ch.Send(domain.AuthMessage{Type: domain.MessageAuth, Token: c.token}); err != nil {
		c.logger.Warn("auth handshake failed", "channel", ch.ID(), "err", err)
		c.emitError(domain.ErrorCodeHandshake, err.Error())
		return
	}
	c.logger.Debug("auth sent", "channel", ch.ID())
}

func (c *SessionClient) ChannelMessage(ch ports.Channel, payload []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.isCurrentLocked(ch) {
		return
	}

	var event domain.ServerEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		c.logger.Debug("dropping malformed event", "channel", ch.ID(), "err", err)
		return
	}

	if c.state == domain.ConnectionAuthenticating {
		c.state = domain.ConnectionOpen
		c.logger.Info("channel open", "channel", ch.ID())
	}
	if c.state != domain.ConnectionOpen {
		return
	}

	switch event.Type {
	case domain.EventState:
		c.presenter.Publish(domain.ParsePresentationState(event.Value))
	case domain.EventDelta:
		c.transcript.AppendOrExtendBot(event.Text)
		c.publishTranscriptLocked()
	case domain.EventAudio:
		c.player.Play(event.Base64, event.AudioMIME())
	case domain.EventAudioError:
		message := strings.TrimSpace(event.Message)
		if message == "" {
			message = audioErrorFallback
		}
		c.hint(message)
	case domain.EventDone:
		c.transcript.CloseOpenBot()
	default:
		c.logger.Debug("ignoring unknown event", "type", event.Type)
	}
}

func (c *SessionClient) ChannelClosed(ch ports.Channel, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.isCurrentLocked(ch) {
		return
	}
	c.detachLocked()

	c.player.Stop()
	c.presenter.Publish(domain.PresentationError)

	detail := "connection to backend closed"
	if err != nil {
		detail = err.Error()
	}
	c.logger.Warn("realtime channel lost", "channel", ch.ID(), "err", err)
	c.emitError(domain.ErrorCodeTransport, detail)
}

// SendUserMessage submits text when the channel is open. Otherwise, or for
// blank text, it does nothing.
func (c *SessionClient) SendUserMessage(text string) error {
	text = strings.TrimSpace(text)

	c.mu.Lock()
	defer c.mu.Unlock()

	if text == "" || c.channel == nil || c.state != domain.ConnectionOpen {
		return nil
	}

	c.player.Stop()
	c.transcript.AppendUser(text)
	c.transcript.CloseOpenBot()
	c.presenter.Publish(domain.PresentationThinking)
	c.publishTranscriptLocked()

	if err := c.channel.Send(domain.UserMessage{Type: domain.MessageUserMessage, Text: text}); err != nil {
		c.logger.Warn("send failed", "channel", c.channel.ID(), "err", err)
		return fmt.Errorf("send user message: %w", err)
	}
	return nil
}

// Disconnect closes the current channel intentionally.
func (c *SessionClient) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.channel == nil {
		return ErrNoActiveChannel
	}
	ch := c.channel
	c.state = domain.ConnectionClosing
	c.detachLocked()
	c.logger.Info("disconnecting", "channel", ch.ID())
	return ch.Close()
}

func (c *SessionClient) State() domain.ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// RefreshTranscript republishes the preview and, when expanded, the full history.
func (c *SessionClient) RefreshTranscript() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.publishTranscriptLocked()
}

func (c *SessionClient) isCurrentLocked(ch ports.Channel) bool {
	return c.channel != nil && ch != nil && c.channel.ID() == ch.ID()
}

// detachLocked forgets the current channel so its remaining callbacks are dropped.
func (c *SessionClient) detachLocked() {
	c.channel = nil
	c.key = ""
	c.token = ""
	c.state = domain.ConnectionDisconnected
}

func (c *SessionClient) publishTranscriptLocked() {
	if c.events == nil {
		return
	}
	c.events.TranscriptPreview(c.transcript.Preview())
	if c.transcript.Expanded() {
		c.events.TranscriptFull(c.transcript.RenderFull())
	}
}

func (c *SessionClient) hint(text string) {
	if c.events != nil {
		c.events.StatusHint(text)
	}
}

func (c *SessionClient) emitError(code domain.ErrorCode, detail string) {
	if c.events != nil {
		c.events.SessionError(code, detail)
	}
}
