package playback

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/gabriel-vasile/mimetype"

	"deskpet/internal/domain"
)

var ErrEmptyPayload = errors.New("audio payload is empty")

// NormalizeBase64 strips a data URI prefix and whitespace, maps the URL-safe
// alphabet onto the standard one and pads to a multiple of four.
func NormalizeBase64(raw string) string {
	value := strings.TrimSpace(raw)
	if strings.HasPrefix(value, "data:") {
		if idx := strings.Index(value, ","); idx >= 0 {
			value = value[idx+1:]
		}
	}

	value = strings.Map(func(r rune) rune {
		switch {
		case unicode.IsSpace(r):
			return -1
		case r == '-':
			return '+'
		case r == '_':
			return '/'
		default:
			return r
		}
	}, value)

	if pad := len(value) % 4; pad != 0 {
		value += strings.Repeat("=", 4-pad)
	}
	return value
}

// DecodePayload normalizes and decodes a base64 audio payload.
func DecodePayload(raw string) ([]byte, error) {
	normalized := NormalizeBase64(raw)
	if normalized == "" {
		return nil, ErrEmptyPayload
	}
	data, err := base64.StdEncoding.DecodeString(normalized)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 audio payload: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrEmptyPayload
	}
	return data, nil
}

// Clip is one decoded audio payload ready for a playback strategy.
type Clip struct {
	ID   string
	Data []byte
	MIME string
}

type container int

const (
	containerUnknown container = iota
	containerMP3
	containerWAV
)

// container prefers the sniffed content over the declared MIME type, since
// backends routinely label WAV output as audio/mpeg.
func (c Clip) container() container {
	detected := mimetype.Detect(c.Data)
	switch {
	case detected.Is("audio/mpeg"):
		return containerMP3
	case detected.Is("audio/wav"):
		return containerWAV
	}

	switch normalizeMIME(c.MIME) {
	case "audio/mpeg", "audio/mp3", "audio/x-mpeg":
		return containerMP3
	case "audio/wav", "audio/x-wav", "audio/wave", "audio/vnd.wave":
		return containerWAV
	default:
		return containerUnknown
	}
}

// extension picks a file extension for players that rely on it.
func (c Clip) extension() string {
	if detected := mimetype.Detect(c.Data); strings.HasPrefix(detected.String(), "audio/") && detected.Extension() != "" {
		return detected.Extension()
	}
	if known := mimetype.Lookup(normalizeMIME(c.MIME)); known != nil && known.Extension() != "" {
		return known.Extension()
	}
	return ".bin"
}

func normalizeMIME(mime string) string {
	value := strings.TrimSpace(strings.ToLower(mime))
	if idx := strings.Index(value, ";"); idx >= 0 {
		value = strings.TrimSpace(value[:idx])
	}
	if value == "" {
		return domain.DefaultAudioMIME
	}
	return value
}
