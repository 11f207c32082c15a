package vad

import "time"

// Event represents a voice activity detection result for a single audio frame.
type Event struct {
	// Type is the detection result.
	Type EventType

	// Probability is the speech probability score (0.0–1.0). Engines that only
	// produce hard decisions report 1 for speech and 0 for silence.
	Probability float64
}

// IsSpeech reports whether the frame carrying this event was classified as
// speech.
func (e Event) IsSpeech() bool {
	return e.Type == SpeechStart || e.Type == SpeechContinue
}

// EventType enumerates VAD detection states.
type EventType int

const (
	// SpeechStart indicates speech has just begun.
	SpeechStart EventType = iota

	// SpeechContinue indicates ongoing speech.
	SpeechContinue

	// SpeechEnd indicates speech has just ended.
	SpeechEnd

	// Silence indicates no speech detected.
	Silence
)

// String returns the event type name.
func (t EventType) String() string {
	switch t {
	case SpeechStart:
		return "speech_start"
	case SpeechContinue:
		return "speech_continue"
	case SpeechEnd:
		return "speech_end"
	case Silence:
		return "silence"
	default:
		return "unknown"
	}
}

// Segment is a span of detected speech, as an offset from the start of the
// recording.
type Segment struct {
	Start time.Duration
	// End is zero when speech runs to the end of the recording.
	End time.Duration
}

// SegmentDetector is implemented by backends that classify a whole recording
// at once instead of frame by frame.
type SegmentDetector interface {
	// DetectSegments returns the speech segments of mono samples in
	// chronological order.
	DetectSegments(samples []float32, sampleRate int) ([]Segment, error)
}
