// Package broadcast fans one finalized utterance out to every subscriber of
// its meeting, in that subscriber's own language, with at most one translation
// call per distinct target language.
package broadcast

import (
	"context"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/Musab74/OnAir-backend/internal/language"
	"github.com/Musab74/OnAir-backend/internal/quality"
	"github.com/Musab74/OnAir-backend/internal/translate"
)

// Utterance is one finalized recognition result. Immutable once created.
type Utterance struct {
	MeetingID      string
	SpeakerID      string
	SpeakerName    string
	Text           string
	SourceLanguage string
	Timestamp      int64 // unix millis
}

// Delivery is the personalized payload one language group receives.
type Delivery struct {
	MeetingID      string `json:"meetingId"`
	SpeakerID      string `json:"speakerId"`
	SpeakerName    string `json:"speakerName"`
	OriginalText   string `json:"originalText"`
	TranslatedText string `json:"translatedText"`
	SourceLanguage string `json:"sourceLanguage"`
	TargetLanguage string `json:"targetLanguage"`
	Timestamp      int64  `json:"timestamp"`
}

// Recipient is one subscribed viewer. The registry adapts client connections
// to this interface.
type Recipient interface {
	ID() string
	DeliverSubtitle(Delivery)
	NotifyTranslationFailed(targetLanguage, originalTextPreview string)
}

// Archiver persists delivered subtitles. Optional.
type Archiver interface {
	SaveSubtitle(Delivery)
}

// Engine computes language groups and drives the translation fan-out.
type Engine struct {
	translator translate.Translator
	archiver   Archiver
	logger     *log.Logger
}

func NewEngine(translator translate.Translator, archiver Archiver, logger *log.Logger) *Engine {
	return &Engine{
		translator: translator,
		archiver:   archiver,
		logger:     logger,
	}
}

const previewRunes = 40

// Broadcast delivers utt to every recipient whose preferred language differs
// from the source language. prefs maps recipient id to stored preference;
// missing or invalid entries default to the primary language. Translation
// requests run concurrently and fail independently; a failed or
// quality-rejected translation produces a failure notice for that group only,
// never original-language text.
func (e *Engine) Broadcast(ctx context.Context, utt Utterance, recipients []Recipient, prefs map[string]string) {
	if !language.Supported(utt.SourceLanguage) {
		e.logger.Warn("dropping utterance with unsupported source language",
			"meeting", utt.MeetingID, "language", utt.SourceLanguage)
		return
	}
	if len(recipients) == 0 {
		return
	}

	source := language.Normalize(utt.SourceLanguage)

	// Partition recipients by preferred language, skipping anyone who already
	// understands the source.
	groups := make(map[string][]Recipient)
	for _, r := range recipients {
		target := language.Normalize(prefs[r.ID()])
		if target == source {
			continue
		}
		groups[target] = append(groups[target], r)
	}
	if len(groups) == 0 {
		return
	}

	var wg sync.WaitGroup
	for target, group := range groups {
		wg.Add(1)
		go func(target string, group []Recipient) {
			defer wg.Done()
			e.deliverGroup(ctx, utt, source, target, group)
		}(target, group)
	}
	wg.Wait()
}

func (e *Engine) deliverGroup(ctx context.Context, utt Utterance, source, target string, group []Recipient) {
	translated, err := e.translator.Translate(ctx, utt.Text, source, target)
	if err != nil || translated == "" || !quality.Accept(translated) {
		if err != nil {
			e.logger.Warn("translation failed",
				"meeting", utt.MeetingID, "target", target, "error", err)
		} else {
			e.logger.Warn("translated text rejected",
				"meeting", utt.MeetingID, "target", target)
		}
		preview := truncate(utt.Text, previewRunes)
		for _, r := range group {
			r.NotifyTranslationFailed(target, preview)
		}
		return
	}

	d := Delivery{
		MeetingID:      utt.MeetingID,
		SpeakerID:      utt.SpeakerID,
		SpeakerName:    utt.SpeakerName,
		OriginalText:   utt.Text,
		TranslatedText: translated,
		SourceLanguage: source,
		TargetLanguage: target,
		Timestamp:      utt.Timestamp,
	}
	for _, r := range group {
		r.DeliverSubtitle(d)
	}
	if e.archiver != nil {
		e.archiver.SaveSubtitle(d)
	}
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "…"
}
