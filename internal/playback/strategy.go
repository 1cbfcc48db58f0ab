package playback

// Outcome is the typed result of a strategy attempt.
type Outcome int

const (
	// OutcomeStarted means audio is playing and onEnd will fire exactly once unless stopped.
	OutcomeStarted Outcome = iota
	// OutcomeUnsupported means this strategy cannot play the clip; the next one should try.
	OutcomeUnsupported
	// OutcomeFailed means playback could not start; the error is user facing.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeStarted:
		return "started"
	case OutcomeUnsupported:
		return "unsupported"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Handle controls one started playback.
type Handle interface {
	// Stop halts output, detaches the completion callback and releases resources.
	// It is idempotent.
	Stop()
}

// Strategy is one way of turning a clip into sound.
// onEnd must be invoked asynchronously, never from within Start.
type Strategy interface {
	Name() string
	Start(clip Clip, onEnd func(err error)) (Handle, Outcome, error)
}
