package registry

// Outbound client events. Each carries a type tag so the gateway can write
// them as-is to the socket.

type SubscribeAck struct {
	Type      string `json:"type"`
	MeetingID string `json:"meetingId"`
	Language  string `json:"language"`
}

type UnsubscribeAck struct {
	Type      string `json:"type"`
	MeetingID string `json:"meetingId"`
}

type SessionStarted struct {
	Type      string `json:"type"`
	MeetingID string `json:"meetingId"`
}

type SessionStopped struct {
	Type string `json:"type"`
}

type PartialTranscript struct {
	Type     string `json:"type"`
	Text     string `json:"text"`
	Language string `json:"language"`
}

type FinalTranscript struct {
	Type           string `json:"type"`
	Text           string `json:"text"`
	TranslatedText string `json:"translatedText,omitempty"`
	SourceLanguage string `json:"sourceLanguage"`
	TargetLanguage string `json:"targetLanguage"`
	SpeakerID      string `json:"speakerId"`
	SpeakerName    string `json:"speakerName"`
}

type SubtitleUpdate struct {
	Type           string `json:"type"`
	MeetingID      string `json:"meetingId"`
	SpeakerID      string `json:"speakerId"`
	SpeakerName    string `json:"speakerName"`
	OriginalText   string `json:"originalText"`
	TranslatedText string `json:"translatedText"`
	SourceLanguage string `json:"sourceLanguage"`
	TargetLanguage string `json:"targetLanguage"`
	Timestamp      int64  `json:"timestamp"`
}

type TranslationFailed struct {
	Type                string `json:"type"`
	TargetLanguage      string `json:"targetLanguage"`
	OriginalTextPreview string `json:"originalTextPreview"`
}

type ErrorEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

const (
	eventSubscribeAck      = "subscribeAck"
	eventUnsubscribeAck    = "unsubscribeAck"
	eventSessionStarted    = "sessionStarted"
	eventSessionStopped    = "sessionStopped"
	eventPartialTranscript = "partialTranscript"
	eventFinalTranscript   = "finalTranscript"
	eventSubtitleUpdate    = "subtitleUpdate"
	eventTranslationFailed = "translationFailed"
	eventError             = "error"
)
