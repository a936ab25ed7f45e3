package recognition

// EventKind identifies an upstream recognizer event. The wire protocol is
// decoded once at the boundary; everything downstream switches on this closed
// set.
type EventKind int

const (
	// KindReady signals that the upstream accepts audio from now on.
	KindReady EventKind = iota
	// KindPartial carries an in-progress transcription fragment.
	KindPartial
	// KindFinal carries a completed utterance with its detected language.
	KindFinal
	// KindError carries a provider-side error.
	KindError
	// KindClosed signals that the upstream channel is gone.
	KindClosed
)

func (k EventKind) String() string {
	switch k {
	case KindReady:
		return "ready"
	case KindPartial:
		return "partial"
	case KindFinal:
		return "final"
	case KindError:
		return "error"
	case KindClosed:
		return "closed"
	}
	return "unknown"
}

// Event is one decoded upstream message. Fields beyond Kind are populated
// per kind: Text for partial/final, DetectedLanguage for final, Err for
// error, Code/Reason for closed.
type Event struct {
	Kind             EventKind
	Text             string
	DetectedLanguage string
	Err              error
	Code             int
	Reason           string
}

// Non-fatal close codes: normal closure, no status received, and abnormal
// closure during teardown. Everything else is treated as fatal.
var nonFatalCloseCodes = map[int]bool{
	1000: true,
	1005: true,
	1006: true,
}

// FatalClose reports whether a close event should tear down the session with
// an error rather than a clean stop.
func FatalClose(code int) bool {
	return !nonFatalCloseCodes[code]
}
