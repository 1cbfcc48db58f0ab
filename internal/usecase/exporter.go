package usecase

import (
	"context"
	"errors"
	"fmt"

	"deskpet/internal/ports"
)

var ErrEmptyTranscript = errors.New("transcript is empty")

// TranscriptExporter copies the rendered conversation to the clipboard.
type TranscriptExporter struct {
	transcript *Transcript
	clipboard  ports.Clipboard
	events     ports.EventSink
}

func NewTranscriptExporter(transcript *Transcript, clipboard ports.Clipboard, events ports.EventSink) *TranscriptExporter {
	return &TranscriptExporter{transcript: transcript, clipboard: clipboard, events: events}
}

// Copy writes the transcript to the clipboard and returns what was written.
func (e *TranscriptExporter) Copy(ctx context.Context) (string, error) {
	text := e.transcript.Render()
	if text == "" {
		return "", ErrEmptyTranscript
	}
	if e.clipboard == nil {
		return "", errors.New("clipboard unavailable")
	}
	if err := e.clipboard.SetText(ctx, text); err != nil {
		if e.events != nil {
			e.events.StatusHint("Conversation ready but clipboard write failed.")
		}
		return "", fmt.Errorf("copy transcript: %w", err)
	}
	if e.events != nil {
		e.events.StatusHint(fmt.Sprintf("Copied %d messages.", e.transcript.Len()))
	}
	return text, nil
}

