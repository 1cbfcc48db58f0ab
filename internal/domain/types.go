package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// PresentationState is the four-valued visual indicator shown by every surface.
type PresentationState string

const (
	PresentationIdle     PresentationState = "idle"
	PresentationThinking PresentationState = "thinking"
	PresentationSpeaking PresentationState = "speaking"
	PresentationError    PresentationState = "error"
)

// ParsePresentationState maps a wire value onto a known state. Unknown values become idle.
func ParsePresentationState(value string) PresentationState {
	switch PresentationState(strings.TrimSpace(strings.ToLower(value))) {
	case PresentationThinking:
		return PresentationThinking
	case PresentationSpeaking:
		return PresentationSpeaking
	case PresentationError:
		return PresentationError
	default:
		return PresentationIdle
	}
}

// ConnectionState models the realtime channel lifecycle.
type ConnectionState string

const (
	ConnectionDisconnected   ConnectionState = "disconnected"
	ConnectionConnecting     ConnectionState = "connecting"
	ConnectionAuthenticating ConnectionState = "authenticating"
	ConnectionOpen           ConnectionState = "open"
	ConnectionClosing        ConnectionState = "closing"
)

// Credential authorizes one realtime channel to one backend process.
type Credential struct {
	Endpoint string
	Token    string
}

// Valid reports whether both halves of the credential are present.
func (c Credential) Valid() bool {
	return strings.TrimSpace(c.Endpoint) != "" && strings.TrimSpace(c.Token) != ""
}

// Key is the connection identity derived from endpoint and token.
// It is a digest so it can appear in logs without leaking the token.
func (c Credential) Key() string {
	sum := sha256.Sum256([]byte(c.Endpoint + "|" + c.Token))
	return hex.EncodeToString(sum[:8])
}

// Redacted returns a log-safe rendering of the credential.
func (c Credential) Redacted() string {
	if c.Token == "" {
		return c.Endpoint + " (no token)"
	}
	return c.Endpoint + " (token " + c.Key() + ")"
}

// Readiness is the join the dispatcher waits on before delivering a credential.
type Readiness struct {
	BackendReady    bool `json:"backendReady"`
	SurfaceReady    bool `json:"surfaceReady"`
	ConfigDelivered bool `json:"configDelivered"`
}

// Role tags the author of a transcript entry.
type Role string

const (
	RoleUser Role = "user"
	RoleBot  Role = "bot"
)

// TranscriptEntry is one chat turn.
type TranscriptEntry struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// ErrorCode identifies user-visible failures.
type ErrorCode string

const (
	ErrorCodeStartup   ErrorCode = "startup"
	ErrorCodeBackend   ErrorCode = "backend"
	ErrorCodeTransport ErrorCode = "transport"
	ErrorCodeHandshake ErrorCode = "handshake"
	ErrorCodeAudio     ErrorCode = "audio"
)

// Status summarizes the runtime for the UI.
type Status struct {
	Presentation PresentationState `json:"presentation"`
	Connection   ConnectionState   `json:"connection"`
	Readiness    Readiness         `json:"readiness"`
	Hint         string            `json:"hint,omitempty"`
	Message      string            `json:"message,omitempty"`
}
