package usecase

import (
	"strings"
	"sync"
	"unicode/utf8"

	"deskpet/internal/domain"
)

const (
	DefaultPreviewWidth   = 110
	transcriptPlaceholder = "Open full conversation"
	previewEllipsis       = "..."
)

// Transcript is the in-memory chat history. Entries are never removed.
type Transcript struct {
	mu       sync.Mutex
	entries  []domain.TranscriptEntry
	openBot  int
	width    int
	expanded bool
}

func NewTranscript(previewWidth int) *Transcript {
	if previewWidth <= 0 {
		previewWidth = DefaultPreviewWidth
	}
	return &Transcript{openBot: -1, width: previewWidth}
}

func (t *Transcript) AppendUser(text string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = append(t.entries, domain.TranscriptEntry{Role: domain.RoleUser, Text: text})
}

// AppendOrExtendBot appends fragment to the streaming bot turn, opening one if needed.
func (t *Transcript) AppendOrExtendBot(fragment string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.openBot < 0 {
		t.entries = append(t.entries, domain.TranscriptEntry{Role: domain.RoleBot})
		t.openBot = len(t.entries) - 1
	}
	t.entries[t.openBot].Text += fragment
}

func (t *Transcript) CloseOpenBot() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.openBot = -1
}

func (t *Transcript) HasOpenBot() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.openBot >= 0
}

// Preview is the last entry, whitespace collapsed and cut to the preview width.
func (t *Transcript) Preview() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.entries) == 0 {
		return transcriptPlaceholder
	}
	text := strings.Join(strings.Fields(t.entries[len(t.entries)-1].Text), " ")
	if text == "" {
		return transcriptPlaceholder
	}
	if utf8.RuneCountInString(text) <= t.width {
		return text
	}
	return string([]rune(text)[:t.width]) + previewEllipsis
}

// RenderFull returns a copy of every entry in order.
func (t *Transcript) RenderFull() []domain.TranscriptEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]domain.TranscriptEntry(nil), t.entries...)
}

// Render formats the history as "role: text" lines.
func (t *Transcript) Render() string {
	entries := t.RenderFull()
	var b strings.Builder
	for i, entry := range entries {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(string(entry.Role))
		b.WriteString(": ")
		b.WriteString(entry.Text)
	}
	return b.String()
}

func (t *Transcript) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

func (t *Transcript) SetExpanded(expanded bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.expanded = expanded
}

func (t *Transcript) Expanded() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.expanded
}
