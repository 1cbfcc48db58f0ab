package domain

// Wire message types exchanged over the realtime channel.
const (
	MessageAuth        = "auth"
	MessageUserMessage = "user_message"

	EventState      = "state"
	EventDelta      = "delta"
	EventAudio      = "audio"
	EventAudioError = "audio_error"
	EventDone       = "done"
)

// DefaultAudioMIME is assumed when an audio event omits its MIME type.
const DefaultAudioMIME = "audio/mpeg"

// AuthMessage is sent exactly once after the transport opens.
type AuthMessage struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

// UserMessage carries one submitted chat line.
type UserMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// ServerEvent is the union of every backend-to-client event.
type ServerEvent struct {
	Type    string `json:"type"`
	Value   string `json:"value,omitempty"`
	Text    string `json:"text,omitempty"`
	Base64  string `json:"base64,omitempty"`
	MIME    string `json:"mime,omitempty"`
	Message string `json:"message,omitempty"`
}

// AudioMIME returns the declared MIME type or the default.
func (e ServerEvent) AudioMIME() string {
	if e.MIME == "" {
		return DefaultAudioMIME
	}
	return e.MIME
}
