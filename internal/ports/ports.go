package ports

import (
	"context"

	"deskpet/internal/domain"
)

// Channel is one realtime connection to the backend.
type Channel interface {
	ID() string
	Send(v any) error
	// Close closes the channel from the client side. It must not block on handler callbacks.
	Close() error
}

// ChannelHandler receives transport callbacks for channels it opened.
// Callbacks for one channel arrive sequentially, in arrival order.
type ChannelHandler interface {
	ChannelOpened(ch Channel)
	ChannelMessage(ch Channel, payload []byte)
	ChannelClosed(ch Channel, err error)
}

// ChannelDialer opens realtime channels. Open returns before the transport is up;
// the handler is never invoked from within Open.
type ChannelDialer interface {
	Open(ctx context.Context, endpoint string, handler ChannelHandler) (Channel, error)
}

// PresentationSurface mirrors the presentation state (main view, minimized indicator).
type PresentationSurface interface {
	PresentationChanged(state domain.PresentationState)
}

// PresentationPublisher is the single entry point for presentation transitions.
type PresentationPublisher interface {
	Publish(state domain.PresentationState)
}

// AudioPlayer plays base64 framed audio payloads.
type AudioPlayer interface {
	Play(payload string, mime string)
	Stop()
}

// ConfigTarget receives a delivered credential.
type ConfigTarget interface {
	DeliverConfig(cred domain.Credential)
}

// Clipboard writes text into the system clipboard.
type Clipboard interface {
	SetText(ctx context.Context, text string) error
}

// HostWindow is the fire-and-forget window command surface.
type HostWindow interface {
	MinimizeToIndicator()
	RestoreToPanel()
	CloseApplication()
}

// EventSink emits non-presentation updates to the UI.
type EventSink interface {
	StatusHint(text string)
	TranscriptPreview(text string)
	TranscriptFull(entries []domain.TranscriptEntry)
	SessionError(code domain.ErrorCode, detail string)
}
